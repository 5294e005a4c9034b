package graphics

import (
	"errors"
	"fmt"
)

// Handle types. Zero is never a valid GPU object.
type (
	Texture      uint32
	Framebuffer  uint32
	Renderbuffer uint32
	Program      uint32
)

var (
	// ErrCompile is returned when a shader fails to compile or link.
	ErrCompile = errors.New("shader compilation failed")
	// ErrUnsupportedFormat is returned when the device cannot render to a pixel format.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrIncompleteFramebuffer is returned when a framebuffer fails its completeness check.
	ErrIncompleteFramebuffer = errors.New("framebuffer incomplete")
)

// Format is the colour attachment pixel format of an off-screen target.
type Format int

const (
	FormatNone Format = iota
	FormatRGBA8
	FormatRGBA16F
	FormatRGBA32F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Filter is the sampling filter applied to a texture.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

func (f Filter) String() string {
	if f == FilterNearest {
		return "nearest"
	}
	return "linear"
}

// Surface is the set of GPU objects backing one off-screen target.
type Surface struct {
	FBO   Framebuffer
	Color Texture
	Depth Renderbuffer
}

// Valid reports whether the surface holds live GPU objects.
func (s Surface) Valid() bool {
	return s.FBO != 0 && s.Color != 0
}

// Device is the seam between the pipeline and the graphics API. All calls
// happen on the render thread.
type Device interface {
	// CreateSurface allocates a framebuffer with one colour attachment of the
	// given format and one depth attachment.
	CreateSurface(width, height int, format Format) (Surface, error)
	DeleteSurface(s Surface)
	// SetSampling sets filtering and clamp-to-edge wrapping on a texture.
	SetSampling(tex Texture, filter Filter)

	// BindFramebuffer binds fb as the draw target and sets the viewport.
	// fb 0 is the default framebuffer.
	BindFramebuffer(fb Framebuffer, width, height int)
	Clear(r, g, b, a float32)

	CompileProgram(vertexSource, fragmentSource string) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program)
	// UniformLocation returns -1 when the program does not declare name.
	UniformLocation(p Program, name string) int32

	Uniform1f(loc int32, v float32)
	Uniform1i(loc int32, v int32)
	Uniform2f(loc int32, x, y float32)
	Uniform3f(loc int32, x, y, z float32)
	Uniform4f(loc int32, x, y, z, w float32)
	Uniform1fv(loc int32, v []float32)
	Uniform2fv(loc int32, v []float32)

	// BindTexture binds tex to the given texture unit.
	BindTexture(unit int, tex Texture)
	// DrawFullscreenQuad issues the single quad draw of a pass.
	DrawFullscreenQuad()

	// ReadPixels reads back the RGBA contents of fb as floats, bottom row
	// first. Framebuffer 0 is what was presented this frame.
	ReadPixels(fb Framebuffer, width, height int) ([]float32, error)
}
