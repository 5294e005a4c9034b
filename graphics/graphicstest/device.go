// Package graphicstest provides a software graphics.Device for tests.
//
// Programs are "compiled" by matching registered Go kernels against the
// fragment source: the first kernel whose key occurs in the source runs for
// every pixel of a fullscreen draw. Uniform declarations are parsed from the
// GLSL text so that locations behave like a real driver (-1 for undeclared
// names). A source containing "#error" fails to compile.
package graphicstest

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
)

// Kernel computes the colour of one fragment.
type Kernel func(f *Fragment) mgl32.Vec4

type kernelEntry struct {
	key string
	fn  Kernel
}

type texture struct {
	width, height int
	format        graphics.Format
	filter        graphics.Filter
	pix           []mgl32.Vec4
}

type framebuffer struct {
	color         graphics.Texture
	depth         graphics.Renderbuffer
	width, height int
}

type program struct {
	kernel Kernel
	key    string
	locs   map[string]int32
	values map[int32][]float32
}

// Draw records one DrawFullscreenQuad call.
type Draw struct {
	Program graphics.Program
	Kernel  string
	Target  graphics.Framebuffer
	// Units maps texture unit to the texture bound at draw time.
	Units map[int]graphics.Texture
}

// Device is a deterministic CPU implementation of graphics.Device.
type Device struct {
	// Supported lists the formats CreateSurface accepts.
	Supported map[graphics.Format]bool
	// FailSurfaces forces the next n CreateSurface calls to fail.
	FailSurfaces int
	// FailNthSurface makes the nth CreateSurface call from now fail
	// (1 = the next one). Zero disables it.
	FailNthSurface int

	kernels []kernelEntry

	next          uint32
	textures      map[graphics.Texture]*texture
	framebuffers  map[graphics.Framebuffer]*framebuffer
	renderbuffers map[graphics.Renderbuffer]struct{}
	programs      map[graphics.Program]*program

	current graphics.Program
	bound   graphics.Framebuffer
	units   map[int]graphics.Texture
	// screen backs framebuffer 0. It is sized by the last bind.
	screen *texture

	Draws []Draw
	// Feedback counts draws that sampled the texture they were writing.
	Feedback int
	// Compiles counts successful CompileProgram calls.
	Compiles int
}

var _ graphics.Device = (*Device)(nil)

// NewDevice returns a device supporting every format.
func NewDevice() *Device {
	return &Device{
		Supported: map[graphics.Format]bool{
			graphics.FormatRGBA8:   true,
			graphics.FormatRGBA16F: true,
			graphics.FormatRGBA32F: true,
		},
		textures:      make(map[graphics.Texture]*texture),
		framebuffers:  make(map[graphics.Framebuffer]*framebuffer),
		renderbuffers: make(map[graphics.Renderbuffer]struct{}),
		programs:      make(map[graphics.Program]*program),
		units:         make(map[int]graphics.Texture),
	}
}

// Handle registers fn for programs whose fragment source contains key.
// Kernels registered later take precedence.
func (d *Device) Handle(key string, fn Kernel) {
	d.kernels = append([]kernelEntry{{key: key, fn: fn}}, d.kernels...)
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

func (d *Device) CreateSurface(width, height int, format graphics.Format) (graphics.Surface, error) {
	if d.FailNthSurface > 0 {
		d.FailNthSurface--
		if d.FailNthSurface == 0 {
			return graphics.Surface{}, fmt.Errorf("%w: injected failure", graphics.ErrIncompleteFramebuffer)
		}
	}
	if d.FailSurfaces > 0 {
		d.FailSurfaces--
		return graphics.Surface{}, fmt.Errorf("%w: injected failure", graphics.ErrIncompleteFramebuffer)
	}
	if !d.Supported[format] {
		return graphics.Surface{}, fmt.Errorf("%w: %v", graphics.ErrUnsupportedFormat, format)
	}
	if width <= 0 || height <= 0 {
		return graphics.Surface{}, fmt.Errorf("%w: size %dx%d", graphics.ErrIncompleteFramebuffer, width, height)
	}
	tex := graphics.Texture(d.id())
	d.textures[tex] = &texture{
		width:  width,
		height: height,
		format: format,
		// uninitialised memory is not zero on real drivers
		pix: fill(width*height, mgl32.Vec4{0.3, 0.7, 0.1, 0.9}),
	}
	rbo := graphics.Renderbuffer(d.id())
	d.renderbuffers[rbo] = struct{}{}
	fbo := graphics.Framebuffer(d.id())
	d.framebuffers[fbo] = &framebuffer{color: tex, depth: rbo, width: width, height: height}
	return graphics.Surface{FBO: fbo, Color: tex, Depth: rbo}, nil
}

func fill(n int, c mgl32.Vec4) []mgl32.Vec4 {
	pix := make([]mgl32.Vec4, n)
	for i := range pix {
		pix[i] = c
	}
	return pix
}

func (d *Device) DeleteSurface(s graphics.Surface) {
	delete(d.framebuffers, s.FBO)
	delete(d.textures, s.Color)
	delete(d.renderbuffers, s.Depth)
}

func (d *Device) SetSampling(tex graphics.Texture, filter graphics.Filter) {
	if t, ok := d.textures[tex]; ok {
		t.filter = filter
	}
}

func (d *Device) BindFramebuffer(fb graphics.Framebuffer, width, height int) {
	d.bound = fb
	if fb == 0 && width > 0 && height > 0 &&
		(d.screen == nil || d.screen.width != width || d.screen.height != height) {
		d.screen = &texture{
			width:  width,
			height: height,
			format: graphics.FormatRGBA8,
			pix:    make([]mgl32.Vec4, width*height),
		}
	}
}

// drawTarget returns the texture behind the bound framebuffer.
func (d *Device) drawTarget() (*texture, graphics.Texture, bool) {
	if d.bound == 0 {
		return d.screen, 0, d.screen != nil
	}
	fb, ok := d.framebuffers[d.bound]
	if !ok {
		return nil, 0, false
	}
	return d.textures[fb.color], fb.color, true
}

func (d *Device) Clear(r, g, b, a float32) {
	t, _, ok := d.drawTarget()
	if !ok {
		return
	}
	c := quantize(t.format, mgl32.Vec4{r, g, b, a})
	for i := range t.pix {
		t.pix[i] = c
	}
}

var uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*(\[\s*\d+\s*\])?\s*;`)

func (d *Device) CompileProgram(vertexSource, fragmentSource string) (graphics.Program, error) {
	if strings.Contains(fragmentSource, "#error") || strings.Contains(vertexSource, "#error") {
		return 0, fmt.Errorf("%w: #error directive", graphics.ErrCompile)
	}
	var entry *kernelEntry
	for i := range d.kernels {
		if strings.Contains(fragmentSource, d.kernels[i].key) {
			entry = &d.kernels[i]
			break
		}
	}
	if entry == nil {
		return 0, fmt.Errorf("%w: no kernel matches fragment source", graphics.ErrCompile)
	}
	p := &program{
		kernel: entry.fn,
		key:    entry.key,
		locs:   make(map[string]int32),
		values: make(map[int32][]float32),
	}
	var next int32
	for _, src := range []string{vertexSource, fragmentSource} {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			name := m[1]
			if _, ok := p.locs[name]; ok {
				continue
			}
			p.locs[name] = next
			if m[2] != "" {
				p.locs[name+"[0]"] = next
			}
			next++
		}
	}
	handle := graphics.Program(d.id())
	d.programs[handle] = p
	d.Compiles++
	return handle, nil
}

func (d *Device) DeleteProgram(p graphics.Program) {
	delete(d.programs, p)
	if d.current == p {
		d.current = 0
	}
}

func (d *Device) UseProgram(p graphics.Program) { d.current = p }

func (d *Device) UniformLocation(p graphics.Program, name string) int32 {
	prog, ok := d.programs[p]
	if !ok {
		return -1
	}
	if loc, ok := prog.locs[name]; ok {
		return loc
	}
	return -1
}

func (d *Device) set(loc int32, v ...float32) {
	prog, ok := d.programs[d.current]
	if !ok || loc < 0 {
		return
	}
	prog.values[loc] = append([]float32(nil), v...)
}

func (d *Device) Uniform1f(loc int32, v float32)          { d.set(loc, v) }
func (d *Device) Uniform1i(loc int32, v int32)            { d.set(loc, float32(v)) }
func (d *Device) Uniform2f(loc int32, x, y float32)       { d.set(loc, x, y) }
func (d *Device) Uniform3f(loc int32, x, y, z float32)    { d.set(loc, x, y, z) }
func (d *Device) Uniform4f(loc int32, x, y, z, w float32) { d.set(loc, x, y, z, w) }
func (d *Device) Uniform1fv(loc int32, v []float32)       { d.set(loc, v...) }
func (d *Device) Uniform2fv(loc int32, v []float32)       { d.set(loc, v...) }

func (d *Device) BindTexture(unit int, tex graphics.Texture) {
	if tex == 0 {
		delete(d.units, unit)
		return
	}
	d.units[unit] = tex
}

func (d *Device) DrawFullscreenQuad() {
	prog, ok := d.programs[d.current]
	if !ok {
		return
	}
	dst, color, ok := d.drawTarget()
	if !ok {
		return
	}
	units := make(map[int]graphics.Texture, len(d.units))
	for u, t := range d.units {
		units[u] = t
	}
	d.Draws = append(d.Draws, Draw{Program: d.current, Kernel: prog.key, Target: d.bound, Units: units})

	frag := &Fragment{dev: d, prog: prog, Width: dst.width, Height: dst.height}
	for name, loc := range prog.locs {
		v, ok := prog.values[loc]
		if !ok || len(v) != 1 || strings.HasSuffix(name, "]") {
			continue
		}
		if tex, bound := units[int(v[0])]; bound && tex == color && strings.HasSuffix(name, "Texture") {
			d.Feedback++
		}
	}

	out := make([]mgl32.Vec4, len(dst.pix))
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			frag.X, frag.Y = x, y
			frag.UV = mgl32.Vec2{(float32(x) + 0.5) / float32(dst.width), (float32(y) + 0.5) / float32(dst.height)}
			out[y*dst.width+x] = quantize(dst.format, prog.kernel(frag))
		}
	}
	dst.pix = out
}

func (d *Device) ReadPixels(fb graphics.Framebuffer, width, height int) ([]float32, error) {
	var t *texture
	if fb == 0 {
		if d.screen == nil {
			return nil, fmt.Errorf("nothing presented to framebuffer 0")
		}
		t = d.screen
	} else {
		f, ok := d.framebuffers[fb]
		if !ok {
			return nil, fmt.Errorf("unknown framebuffer %d", fb)
		}
		t = d.textures[f.color]
	}
	if width != t.width || height != t.height {
		return nil, fmt.Errorf("read %dx%d from %dx%d framebuffer", width, height, t.width, t.height)
	}
	out := make([]float32, 0, len(t.pix)*4)
	for _, p := range t.pix {
		out = append(out, p[0], p[1], p[2], p[3])
	}
	return out, nil
}

// TexturePixels returns a copy of a texture's contents.
func (d *Device) TexturePixels(tex graphics.Texture) (pix []mgl32.Vec4, width, height int, ok bool) {
	t, ok := d.textures[tex]
	if !ok {
		return nil, 0, 0, false
	}
	return append([]mgl32.Vec4(nil), t.pix...), t.width, t.height, true
}

// Screen returns a copy of the default framebuffer contents.
func (d *Device) Screen() (pix []mgl32.Vec4, width, height int, ok bool) {
	if d.screen == nil {
		return nil, 0, 0, false
	}
	return append([]mgl32.Vec4(nil), d.screen.pix...), d.screen.width, d.screen.height, true
}

// TextureFormat returns the format a texture was allocated with.
func (d *Device) TextureFormat(tex graphics.Texture) graphics.Format {
	if t, ok := d.textures[tex]; ok {
		return t.format
	}
	return graphics.FormatNone
}

// TextureFilter returns the filter applied to a texture.
func (d *Device) TextureFilter(tex graphics.Texture) graphics.Filter {
	if t, ok := d.textures[tex]; ok {
		return t.filter
	}
	return graphics.FilterLinear
}

// LiveSurfaces counts framebuffers that have not been deleted.
func (d *Device) LiveSurfaces() int { return len(d.framebuffers) }

// LivePrograms counts programs that have not been deleted.
func (d *Device) LivePrograms() int { return len(d.programs) }

// HasProgram reports whether p is a live program.
func (d *Device) HasProgram(p graphics.Program) bool {
	_, ok := d.programs[p]
	return ok
}

func quantize(f graphics.Format, c mgl32.Vec4) mgl32.Vec4 {
	if f != graphics.FormatRGBA8 {
		return c
	}
	for i := range c {
		v := math.Max(0, math.Min(1, float64(c[i])))
		c[i] = float32(math.Round(v*255) / 255)
	}
	return c
}
