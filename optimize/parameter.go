package optimize

import (
	"fmt"
	"math"
	"strconv"
)

// FloatParameter is a named model parameter with optional boundaries.
type FloatParameter interface {
	Name() string
	Get() float64
	Set(float64)
	SetMin(float64)
	SetMax(float64)
	GetMin() float64
	GetMax() float64
	// SetOnChange registers a callback invoked every time the
	// value changes; models use it to invalidate caches.
	SetOnChange(func())
	InRange() bool
	ValueInRange(float64) bool
	String() string
}

// FloatParameters is a collection of model parameters.
type FloatParameters []FloatParameter

// Append adds a parameter to the collection.
func (p *FloatParameters) Append(par FloatParameter) {
	*p = append(*p, par)
}

// Names returns parameter names. The is slice is reused if not nil.
func (p *FloatParameters) Names(is []string) (s []string) {
	if is == nil {
		s = make([]string, len(*p))
	} else {
		s = is
	}
	for i, par := range *p {
		s[i] = par.Name()
	}
	return
}

// Values returns parameter values. The iv slice is reused if not nil.
func (p *FloatParameters) Values(iv []float64) (v []float64) {
	if iv == nil {
		v = make([]float64, len(*p))
	} else {
		v = iv
	}
	for i, par := range *p {
		v[i] = par.Get()
	}
	return
}

// SetValues sets all parameter values from a slice.
func (p *FloatParameters) SetValues(v []float64) error {
	if len(v) != len(*p) {
		return fmt.Errorf("expected %d parameter values, got %d", len(*p), len(v))
	}
	for i, par := range *p {
		par.Set(v[i])
	}
	return nil
}

// SetFromMap sets parameter values present in the name->value map.
func (p *FloatParameters) SetFromMap(m map[string]float64) error {
	for _, par := range *p {
		v, ok := m[par.Name()]
		if !ok {
			return fmt.Errorf("no value for parameter %q", par.Name())
		}
		par.Set(v)
	}
	return nil
}

// ValuesInRange checks whether all values are within the boundaries.
func (p *FloatParameters) ValuesInRange(vals []float64) bool {
	if len(vals) != len(*p) {
		panic("incorrect number of parameters")
	}
	for i, par := range *p {
		if !par.ValueInRange(vals[i]) {
			return false
		}
	}
	return true
}

// InRange checks whether all current values are within the boundaries.
func (p *FloatParameters) InRange() bool {
	for _, par := range *p {
		if !par.InRange() {
			return false
		}
	}
	return true
}

// Update copies values from another parameter collection.
func (p *FloatParameters) Update(pSrc *FloatParameters) {
	for i := range *p {
		(*p)[i].Set((*pSrc)[i].Get())
	}
}

// NamesString returns tab-separated parameter names.
func (p *FloatParameters) NamesString() (s string) {
	for i, par := range *p {
		if i != 0 {
			s += "\t"
		}
		s += par.Name()
	}
	return
}

// ValuesString returns tab-separated parameter values.
func (p *FloatParameters) ValuesString() (s string) {
	for i, par := range *p {
		if i != 0 {
			s += "\t"
		}
		s += par.String()
	}
	return
}

// BasicFloatParameter is a float64-backed FloatParameter.
type BasicFloatParameter struct {
	*float64
	name     string
	min      float64
	max      float64
	onChange func()
}

// NewBasicFloatParameter creates a new unbounded parameter backed by
// the given float64.
func NewBasicFloatParameter(par *float64, name string) *BasicFloatParameter {
	return &BasicFloatParameter{
		float64: par,
		name:    name,
		min:     math.Inf(-1),
		max:     math.Inf(+1),
	}
}

// Name returns the parameter name.
func (p *BasicFloatParameter) Name() string {
	return p.name
}

// Get returns the current value.
func (p *BasicFloatParameter) Get() float64 {
	return *p.float64
}

// Set changes the value and fires the onChange callback.
func (p *BasicFloatParameter) Set(v float64) {
	if *p.float64 == v {
		// do nothing if value has not changed
		return
	}
	*p.float64 = v
	if p.onChange != nil {
		p.onChange()
	}
}

// SetMin sets the lower boundary.
func (p *BasicFloatParameter) SetMin(min float64) {
	p.min = min
}

// SetMax sets the upper boundary.
func (p *BasicFloatParameter) SetMax(max float64) {
	p.max = max
}

// GetMin returns the lower boundary.
func (p *BasicFloatParameter) GetMin() float64 {
	return p.min
}

// GetMax returns the upper boundary.
func (p *BasicFloatParameter) GetMax() float64 {
	return p.max
}

// SetOnChange registers the value-change callback.
func (p *BasicFloatParameter) SetOnChange(f func()) {
	p.onChange = f
}

// ValueInRange checks whether a value is within the boundaries.
func (p *BasicFloatParameter) ValueInRange(v float64) bool {
	return v >= p.min && v <= p.max
}

// InRange checks whether the current value is within the boundaries.
func (p *BasicFloatParameter) InRange() bool {
	return p.ValueInRange(*p.float64)
}

func (p *BasicFloatParameter) String() string {
	return strconv.FormatFloat(*p.float64, 'f', 6, 64)
}
