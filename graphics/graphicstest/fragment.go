package graphicstest

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
)

// Fragment is the per-pixel view a Kernel gets of the program state.
type Fragment struct {
	UV            mgl32.Vec2
	X, Y          int
	Width, Height int

	dev  *Device
	prog *program
}

func (f *Fragment) values(name string) []float32 {
	loc, ok := f.prog.locs[name]
	if !ok {
		return nil
	}
	return f.prog.values[loc]
}

// Float returns a float uniform, or 0 if unset.
func (f *Fragment) Float(name string) float32 {
	if v := f.values(name); len(v) > 0 {
		return v[0]
	}
	return 0
}

// Int returns an int uniform, or 0 if unset.
func (f *Fragment) Int(name string) int32 {
	return int32(f.Float(name))
}

// Vec2 returns a vec2 uniform.
func (f *Fragment) Vec2(name string) mgl32.Vec2 {
	var out mgl32.Vec2
	copy(out[:], f.values(name))
	return out
}

// Vec4 returns a vec4 uniform.
func (f *Fragment) Vec4(name string) mgl32.Vec4 {
	var out mgl32.Vec4
	copy(out[:], f.values(name))
	return out
}

// Floats returns an array uniform as uploaded.
func (f *Fragment) Floats(name string) []float32 {
	return f.values(name)
}

// Sample reads the texture bound to the unit the named sampler points at.
// Unbound samplers read transparent black, like an incomplete texture.
func (f *Fragment) Sample(sampler string, uv mgl32.Vec2) mgl32.Vec4 {
	v := f.values(sampler)
	if len(v) == 0 {
		return mgl32.Vec4{}
	}
	tex, ok := f.dev.units[int(v[0])]
	if !ok {
		return mgl32.Vec4{}
	}
	t, ok := f.dev.textures[tex]
	if !ok {
		return mgl32.Vec4{}
	}
	return t.sample(uv)
}

func (t *texture) at(x, y int) mgl32.Vec4 {
	x = clamp(x, 0, t.width-1)
	y = clamp(y, 0, t.height-1)
	return t.pix[y*t.width+x]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t *texture) sample(uv mgl32.Vec2) mgl32.Vec4 {
	px := float64(uv[0])*float64(t.width) - 0.5
	py := float64(uv[1])*float64(t.height) - 0.5
	if t.filter == graphics.FilterNearest {
		return t.at(int(math.Round(px)), int(math.Round(py)))
	}
	x0, y0 := math.Floor(px), math.Floor(py)
	fx, fy := float32(px-x0), float32(py-y0)
	ix, iy := int(x0), int(y0)
	a := t.at(ix, iy).Mul(1 - fx).Add(t.at(ix+1, iy).Mul(fx))
	b := t.at(ix, iy+1).Mul(1 - fx).Add(t.at(ix+1, iy+1).Mul(fx))
	return a.Mul(1 - fy).Add(b.Mul(fy))
}
