package glfwcontext

import (
	"testing"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestKeymapFiresOncePerPress(t *testing.T) {
	keys := keymap{}
	n := 0
	keys.bind(glfw.KeyR, func() { n++ })

	assert.True(t, keys.dispatch(glfw.KeyR, glfw.Press))
	assert.False(t, keys.dispatch(glfw.KeyR, glfw.Repeat))
	assert.False(t, keys.dispatch(glfw.KeyR, glfw.Release))
	assert.False(t, keys.dispatch(glfw.KeyTab, glfw.Press))
	assert.Equal(t, 1, n)

	keys.bind(glfw.KeyR, nil)
	assert.False(t, keys.dispatch(glfw.KeyR, glfw.Press))
	assert.Equal(t, 1, n)
}

func TestPointerFlipsAndScales(t *testing.T) {
	var p pointer
	fb, win := [2]int{200, 100}, [2]int{100, 50}

	// hover: press position is negated while the button is up
	assert.Equal(t, [4]float32{20, 80, 0, 0}, p.update(mgl32.Vec2{10, 10}, false, fb, win))

	// press records the position, drag keeps it
	assert.Equal(t, [4]float32{40, 60, 40, 60}, p.update(mgl32.Vec2{20, 20}, true, fb, win))
	assert.Equal(t, [4]float32{60, 40, 40, 60}, p.update(mgl32.Vec2{30, 30}, true, fb, win))

	// release keeps the last press, negated
	assert.Equal(t, [4]float32{60, 40, -40, -60}, p.update(mgl32.Vec2{30, 30}, false, fb, win))
}

func TestPointerMinimizedWindowUsesUnitScale(t *testing.T) {
	var p pointer
	got := p.update(mgl32.Vec2{5, 5}, true, [2]int{10, 10}, [2]int{0, 0})
	assert.Equal(t, [4]float32{5, 5, 5, 5}, got)
}
