package rendertarget

import (
	"fmt"

	"github.com/richinsley/goshaderfx/graphics"
)

// Pair is a double-buffered target. Read holds the last completed result,
// Write is scratch for the pass currently rendering.
type Pair struct {
	Read  Target
	Write Target
}

// NewPair allocates both sides with identical size and format. The format
// of the first side decides the second, so a fallback can never leave the
// two sides mismatched.
func (f *Factory) NewPair(width, height int, wanted graphics.Format) (Pair, error) {
	read, err := f.CreateWithFallback(width, height, wanted)
	if err != nil {
		return Pair{}, fmt.Errorf("read buffer: %w", err)
	}
	write, err := f.Create(width, height, read.Format)
	if err != nil {
		f.Destroy(&read)
		return Pair{}, fmt.Errorf("write buffer: %w", err)
	}
	return Pair{Read: read, Write: write}, nil
}

// Swap exchanges the two sides. Handles move, pixels do not.
func (p *Pair) Swap() {
	p.Read, p.Write = p.Write, p.Read
}

// Valid reports whether both sides are allocated.
func (p Pair) Valid() bool {
	return p.Read.Valid() && p.Write.Valid()
}

// Size returns the dimensions shared by both sides.
func (p Pair) Size() (int, int) {
	return p.Read.Width, p.Read.Height
}

// DestroyPair releases both sides of p.
func (f *Factory) DestroyPair(p *Pair) {
	f.Destroy(&p.Read)
	f.Destroy(&p.Write)
}
