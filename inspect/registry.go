// Package inspect keeps a small fixed set of debug panels that describe
// live pipeline state as text.
package inspect

import (
	"errors"
	"fmt"
	"io"
)

// MaxPanels is the number of registry slots.
const MaxPanels = 16

var (
	ErrRegistryFull = errors.New("panel registry full")
	ErrNoPanel      = errors.New("no panel in slot")
)

// Panel reports a titled block of text lines.
type Panel interface {
	Title() string
	Lines() []string
}

// Registry holds up to MaxPanels panels. Slots freed by Unregister are
// reused by the next Register.
type Registry struct {
	slots [MaxPanels]Panel
	open  [MaxPanels]bool
}

// Register puts p in the first free slot and returns the slot index.
func (r *Registry) Register(p Panel) (int, error) {
	for i := range r.slots {
		if r.slots[i] == nil {
			r.slots[i] = p
			r.open[i] = true
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: cannot add %q", ErrRegistryFull, p.Title())
}

// Unregister frees slot id.
func (r *Registry) Unregister(id int) error {
	if id < 0 || id >= MaxPanels || r.slots[id] == nil {
		return fmt.Errorf("%w %d", ErrNoPanel, id)
	}
	r.slots[id] = nil
	r.open[id] = false
	return nil
}

// SetOpen shows or hides a panel without freeing its slot.
func (r *Registry) SetOpen(id int, open bool) error {
	if id < 0 || id >= MaxPanels || r.slots[id] == nil {
		return fmt.Errorf("%w %d", ErrNoPanel, id)
	}
	r.open[id] = open
	return nil
}

// Toggle flips every registered panel between shown and hidden.
func (r *Registry) Toggle() {
	show := true
	for i := range r.slots {
		if r.slots[i] != nil && r.open[i] {
			show = false
			break
		}
	}
	for i := range r.slots {
		if r.slots[i] != nil {
			r.open[i] = show
		}
	}
}

// Len counts registered panels.
func (r *Registry) Len() int {
	n := 0
	for _, p := range r.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// Each calls fn for every open panel in slot order.
func (r *Registry) Each(fn func(id int, p Panel)) {
	for i, p := range r.slots {
		if p != nil && r.open[i] {
			fn(i, p)
		}
	}
}

// WriteTo prints every open panel.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var n int64
	var err error
	r.Each(func(id int, p Panel) {
		if err != nil {
			return
		}
		var k int
		k, err = fmt.Fprintf(w, "[%d] %s\n", id, p.Title())
		n += int64(k)
		for _, ln := range p.Lines() {
			if err != nil {
				return
			}
			k, err = fmt.Fprintf(w, "    %s\n", ln)
			n += int64(k)
		}
	})
	return n, err
}
