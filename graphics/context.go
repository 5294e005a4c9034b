package graphics

// Context defines the interface for the window/GL context the renderer drives.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
	// GetMouseInput returns the current mouse state: x, y, clickX, clickY
	GetMouseInput() [4]float32
	// IsGLES reports whether the context speaks the ES shader dialect.
	IsGLES() bool
}
