package uniform

import (
	"errors"
	"fmt"
)

// MaxUniforms bounds the shared table and each program's location cache.
const MaxUniforms = 32

var (
	ErrKindMismatch = errors.New("uniform kind mismatch")
	ErrTableFull    = errors.New("uniform table full")
	ErrUnknown      = errors.New("unknown uniform")
)

type slot struct {
	name  string
	value Value
}

// Table is a fixed-capacity, insertion-ordered set of named values. Slot
// indices are stable so per-program location caches can be indexed by them.
type Table struct {
	slots [MaxUniforms]slot
	count int
}

// NewTable returns a table seeded with defs.
func NewTable(defs []Def) (*Table, error) {
	t := &Table{}
	for _, d := range defs {
		if err := t.Declare(d.Name, d.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Declare adds name with its initial value. Redeclaring with the same kind
// updates the value.
func (t *Table) Declare(name string, v Value) error {
	if name == "" || v == nil {
		return fmt.Errorf("uniform %q: empty name or value", name)
	}
	if i := t.Index(name); i >= 0 {
		return t.setAt(i, v)
	}
	if t.count == MaxUniforms {
		return fmt.Errorf("%w: cannot add %q (capacity %d)", ErrTableFull, name, MaxUniforms)
	}
	t.slots[t.count] = slot{name: name, value: v}
	t.count++
	return nil
}

// Set changes the value of a declared uniform. The kind must not change.
func (t *Table) Set(name string, v Value) error {
	i := t.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return t.setAt(i, v)
}

func (t *Table) setAt(i int, v Value) error {
	if v == nil {
		return fmt.Errorf("uniform %q: nil value", t.slots[i].name)
	}
	if have := t.slots[i].value.Kind(); have != v.Kind() {
		return fmt.Errorf("%w: %q is %v, got %v", ErrKindMismatch, t.slots[i].name, have, v.Kind())
	}
	t.slots[i].value = v
	return nil
}

// Get returns the current value of name.
func (t *Table) Get(name string) (Value, bool) {
	if i := t.Index(name); i >= 0 {
		return t.slots[i].value, true
	}
	return nil, false
}

// Index returns the slot of name or -1.
func (t *Table) Index(name string) int {
	for i := 0; i < t.count; i++ {
		if t.slots[i].name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of declared uniforms.
func (t *Table) Len() int { return t.count }

// At returns the name and value in slot i.
func (t *Table) At(i int) (string, Value) {
	s := t.slots[i]
	return s.name, s.value
}
