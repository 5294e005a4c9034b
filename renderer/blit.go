package renderer

import (
	"fmt"

	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/shaders"
)

// blitter copies a texture to the default framebuffer.
type blitter struct {
	dev    graphics.Device
	loader *shader.Loader
	vertex string

	prog     graphics.Program
	inputLoc int32
}

func newBlitter(dev graphics.Device, loader *shader.Loader, vertex string) (*blitter, error) {
	b := &blitter{dev: dev, loader: loader, vertex: vertex}
	prog, loc, err := b.compile()
	if err != nil {
		return nil, err
	}
	b.prog, b.inputLoc = prog, loc
	return b, nil
}

func (b *blitter) compile() (graphics.Program, int32, error) {
	vs, err := b.loader.Load(b.vertex, shader.Vertex)
	if err != nil {
		return 0, -1, err
	}
	fs, err := b.loader.Load(shaders.Blit, shader.Fragment)
	if err != nil {
		return 0, -1, err
	}
	prog, err := b.dev.CompileProgram(vs.Code, fs.Code)
	if err != nil {
		return 0, -1, fmt.Errorf("failed to create blit program: %w", err)
	}
	return prog, b.dev.UniformLocation(prog, fs.UniformName("inputTexture")), nil
}

// reload swaps in a freshly compiled program, keeping the old one on failure.
func (b *blitter) reload() error {
	prog, loc, err := b.compile()
	if err != nil {
		return err
	}
	b.dev.DeleteProgram(b.prog)
	b.prog, b.inputLoc = prog, loc
	return nil
}

// draw clears the default framebuffer and, when tex is non-zero, draws it
// over the whole viewport.
func (b *blitter) draw(tex graphics.Texture, width, height int) {
	b.dev.BindFramebuffer(0, width, height)
	b.dev.Clear(0, 0, 0, 1)
	if tex == 0 {
		return
	}
	b.dev.UseProgram(b.prog)
	b.dev.BindTexture(0, tex)
	b.dev.Uniform1i(b.inputLoc, 0)
	b.dev.DrawFullscreenQuad()
	b.dev.BindTexture(0, 0)
}

func (b *blitter) destroy() {
	if b.prog != 0 {
		b.dev.DeleteProgram(b.prog)
		b.prog = 0
	}
}
