// checkpoint persists per-gene fit records in a bolt database so an
// interrupted run over a large expression matrix can be resumed
// without refitting finished genes.
package checkpoint

import (
	"encoding/json"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// FITS is the bucket name for per-gene fit records.
var FITS = []byte("fits")

// Store provides checkpoint operations on a bolt database. Keys are
// gene identifiers, values JSON-encoded fit records.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a checkpoint database.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores the fit record for a gene.
func (s *Store) Save(gene string, record interface{}) error {
	if s == nil || s.db == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		log.Error("Error serializing checkpoint record", err)
		return err
	}
	err = SaveData(s.db, []byte(gene), data)
	if err != nil {
		log.Error("Error saving checkpoint record", err)
	}
	return err
}

// Load retrieves the fit record for a gene into record, returning
// false if the gene has no checkpoint.
func (s *Store) Load(gene string, record interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	data, err := LoadData(s.db, []byte(gene))
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, record); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of checkpointed genes.
func (s *Store) Count() (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(FITS)
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// SaveData saves a value in the bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(FITS)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads a value from the bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(FITS)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
