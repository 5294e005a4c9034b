package glfwcontext

import (
	"fmt"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"go.uber.org/zap"
)

// Context is a GLFW window with a desktop GL context. Key bindings run on
// the goroutine that polls events, inside EndFrame.
type Context struct {
	window *glfw.Window
	keys   keymap
	mouse  pointer
}

var _ graphics.Context = (*Context)(nil)

// New creates a GL 4.1 core window. A hidden window still has a usable
// context, which the GL integration tests rely on. Escape closes it.
func New(width, height int, title string, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfwBool(visible))
	glfw.WindowHint(glfw.Resizable, glfwBool(visible))

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create %dx%d window: %w", width, height, err)
	}

	c := &Context{window: win, keys: keymap{}}
	c.keys.bind(glfw.KeyEscape, func() { win.SetShouldClose(true) })
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		c.keys.dispatch(key, action)
	})
	return c, nil
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// RegisterKeyCallback binds f to key, replacing any earlier binding. A nil
// f removes it.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keys.bind(key, f)
}

// DetachCurrent makes no context current on the calling thread.
func (c *Context) DetachCurrent() {
	glfw.DetachCurrentContext()
}

// IsGLES is always false: the window requests a desktop core profile.
func (c *Context) IsGLES() bool {
	return false
}

// GetMouseInput returns x, y, pressX, pressY in framebuffer pixels with the
// origin at the bottom left. The press position is negated while the left
// button is up.
func (c *Context) GetMouseInput() [4]float32 {
	if c.window == nil {
		return [4]float32{}
	}
	var fb, win [2]int
	fb[0], fb[1] = c.window.GetFramebufferSize()
	win[0], win[1] = c.window.GetSize()
	x, y := c.window.GetCursorPos()
	down := c.window.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
	return c.mouse.update(mgl32.Vec2{float32(x), float32(y)}, down, fb, win)
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

// Window returns the underlying *glfw.Window.
func (c *Context) Window() *glfw.Window {
	return c.window
}

// InitGraphics initializes GLFW and pins the caller to its OS thread, which
// GLFW requires to be the main one.
func InitGraphics(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	logger.Debug("glfw initialized", zap.String("version", glfw.GetVersionString()))
	return nil
}

// TerminateGraphics shuts GLFW down. Must be called from the main thread.
func TerminateGraphics(logger *zap.Logger) {
	glfw.Terminate()
	if logger != nil {
		logger.Debug("glfw terminated")
	}
}
