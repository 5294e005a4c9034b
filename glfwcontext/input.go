package glfwcontext

import (
	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// keymap runs a binding when its key goes down. Repeats and releases are
// ignored so a held key fires once.
type keymap map[glfw.Key]func()

func (k keymap) bind(key glfw.Key, f func()) {
	if f == nil {
		delete(k, key)
		return
	}
	k[key] = f
}

func (k keymap) dispatch(key glfw.Key, action glfw.Action) bool {
	if action != glfw.Press {
		return false
	}
	f, ok := k[key]
	if ok {
		f()
	}
	return ok
}

// pointer follows the left button in framebuffer pixels with the origin at
// the bottom left.
type pointer struct {
	down  bool
	press mgl32.Vec2
}

// update folds one cursor sample into the state. cursor is in window
// coordinates, which grow downwards and differ from framebuffer pixels on
// HiDPI displays. The result is x, y, pressX, pressY; the press position is
// negated while the button is up.
func (p *pointer) update(cursor mgl32.Vec2, down bool, fb, win [2]int) [4]float32 {
	scale := mgl32.Vec2{1, 1}
	if win[0] > 0 && win[1] > 0 {
		scale = mgl32.Vec2{float32(fb[0]) / float32(win[0]), float32(fb[1]) / float32(win[1])}
	}
	pos := mgl32.Vec2{cursor[0] * scale[0], float32(fb[1]) - cursor[1]*scale[1]}
	if down && !p.down {
		p.press = pos
	}
	p.down = down

	press := p.press
	if !down {
		press = press.Mul(-1)
	}
	return [4]float32{pos[0], pos[1], press[0], press[1]}
}
