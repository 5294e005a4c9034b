//go:build !linux

package headless

import (
	"errors"

	"github.com/richinsley/goshaderfx/graphics"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("egl headless rendering is not supported on this platform")

// Context is unavailable outside Linux.
type Context struct{}

var _ graphics.Context = (*Context)(nil)

// New always fails on this platform.
func New(width, height, frames int, fps float64, logger *zap.Logger) (*Context, error) {
	return nil, errUnsupported
}

func (h *Context) MakeCurrent()                   {}
func (h *Context) Shutdown()                      {}
func (h *Context) ShouldClose() bool              { return true }
func (h *Context) EndFrame()                      {}
func (h *Context) GetFramebufferSize() (int, int) { return 0, 0 }
func (h *Context) Time() float64                  { return 0 }
func (h *Context) GetMouseInput() [4]float32      { return [4]float32{} }
func (h *Context) IsGLES() bool                   { return false }
func (h *Context) Frames() int                    { return 0 }
