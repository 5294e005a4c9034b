// Package glbackend implements graphics.Device on desktop OpenGL 4.1 core.
package glbackend

import (
	"fmt"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goshaderfx/graphics"
	"go.uber.org/zap"
)

// gl.Init() must only run once per process.
var glInitOnce sync.Once

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// Device issues GL calls on the thread owning the current context.
type Device struct {
	quadVAO uint32
	quadVBO uint32
	logger  *zap.Logger
}

var _ graphics.Device = (*Device)(nil)

// New loads the GL function pointers and creates the fullscreen quad. The
// context must be current on the calling thread.
func New(logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}
	logger.Info("OpenGL initialized", zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))))

	d := &Device{logger: logger}
	gl.GenVertexArrays(1, &d.quadVAO)
	gl.GenBuffers(1, &d.quadVBO)
	gl.BindVertexArray(d.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return d, nil
}

// Release deletes the quad geometry.
func (d *Device) Release() {
	if d.quadVBO != 0 {
		gl.DeleteBuffers(1, &d.quadVBO)
		d.quadVBO = 0
	}
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
}

func formatParams(f graphics.Format) (internal int32, pixelType uint32, ok bool) {
	switch f {
	case graphics.FormatRGBA32F:
		return gl.RGBA32F, gl.FLOAT, true
	case graphics.FormatRGBA16F:
		return gl.RGBA16F, gl.HALF_FLOAT, true
	case graphics.FormatRGBA8:
		return gl.RGBA8, gl.UNSIGNED_BYTE, true
	}
	return 0, 0, false
}

func (d *Device) CreateSurface(width, height int, format graphics.Format) (graphics.Surface, error) {
	internal, pixelType, ok := formatParams(format)
	if !ok {
		return graphics.Surface{}, fmt.Errorf("%w: %v", graphics.ErrUnsupportedFormat, format)
	}
	// drain stale errors so the check below only sees this allocation
	for i := 0; i < 16 && gl.GetError() != gl.NO_ERROR; i++ {
	}

	var s graphics.Surface
	var tex, fbo, rbo uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, gl.RGBA, pixelType, nil)
	s.Color = graphics.Texture(tex)
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		d.DeleteSurface(s)
		return graphics.Surface{}, fmt.Errorf("%w: %v (gl error 0x%x)", graphics.ErrUnsupportedFormat, format, code)
	}

	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
	s.FBO = graphics.Framebuffer(fbo)

	gl.GenRenderbuffers(1, &rbo)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rbo)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, rbo)
	s.Depth = graphics.Renderbuffer(rbo)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)

	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		d.DeleteSurface(s)
		return graphics.Surface{}, fmt.Errorf("%w: %v status 0x%x", graphics.ErrIncompleteFramebuffer, format, status)
	}
	return s, nil
}

func (d *Device) DeleteSurface(s graphics.Surface) {
	if s.FBO != 0 {
		fbo := uint32(s.FBO)
		gl.DeleteFramebuffers(1, &fbo)
	}
	if s.Depth != 0 {
		rbo := uint32(s.Depth)
		gl.DeleteRenderbuffers(1, &rbo)
	}
	if s.Color != 0 {
		tex := uint32(s.Color)
		gl.DeleteTextures(1, &tex)
	}
}

func (d *Device) SetSampling(tex graphics.Texture, filter graphics.Filter) {
	mode := int32(gl.LINEAR)
	if filter == graphics.FilterNearest {
		mode = gl.NEAREST
	}
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, mode)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, mode)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (d *Device) BindFramebuffer(fb graphics.Framebuffer, width, height int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) CompileProgram(vertexSource, fragmentSource string) (graphics.Program, error) {
	p, err := newProgram(vertexSource, fragmentSource)
	if err != nil {
		return 0, err
	}
	return graphics.Program(p), nil
}

func (d *Device) DeleteProgram(p graphics.Program) {
	if p != 0 {
		gl.DeleteProgram(uint32(p))
	}
}

func (d *Device) UseProgram(p graphics.Program) { gl.UseProgram(uint32(p)) }

func (d *Device) UniformLocation(p graphics.Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) Uniform1f(loc int32, v float32)          { gl.Uniform1f(loc, v) }
func (d *Device) Uniform1i(loc int32, v int32)            { gl.Uniform1i(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32)       { gl.Uniform2f(loc, x, y) }
func (d *Device) Uniform3f(loc int32, x, y, z float32)    { gl.Uniform3f(loc, x, y, z) }
func (d *Device) Uniform4f(loc int32, x, y, z, w float32) { gl.Uniform4f(loc, x, y, z, w) }

func (d *Device) Uniform1fv(loc int32, v []float32) {
	if len(v) > 0 {
		gl.Uniform1fv(loc, int32(len(v)), &v[0])
	}
}

func (d *Device) Uniform2fv(loc int32, v []float32) {
	if len(v) > 1 {
		gl.Uniform2fv(loc, int32(len(v)/2), &v[0])
	}
}

func (d *Device) BindTexture(unit int, tex graphics.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
}

func (d *Device) DrawFullscreenQuad() {
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
}

func (d *Device) ReadPixels(fb graphics.Framebuffer, width, height int) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid read size %dx%d", width, height)
	}
	pixels := make([]float32, width*height*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(fb))
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.FLOAT, gl.Ptr(pixels))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("glReadPixels failed: 0x%x", code)
	}
	return pixels, nil
}
