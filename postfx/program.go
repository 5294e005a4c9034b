package postfx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/shader"
	"go.uber.org/zap"
)

// program is a compiled effect shader with its uniform locations resolved
// once at compile time.
type program struct {
	path string
	prog graphics.Program
	locs map[string]int32
}

func (p *program) loc(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	return -1
}

// compileSet compiles every fragment path against the vertex shader. Either
// all programs are returned or none.
func (e *env) compileSet(frags []string, uniforms [][]string) ([]program, error) {
	vs, err := e.loader.Load(e.vertex, shader.Vertex)
	if err != nil {
		return nil, err
	}
	out := make([]program, 0, len(frags))
	for i, path := range frags {
		fs, err := e.loader.Load(path, shader.Fragment)
		if err != nil {
			e.deleteSet(out)
			return nil, err
		}
		prog, err := e.dev.CompileProgram(vs.Code, fs.Code)
		if err != nil {
			e.logger.Error("effect shader failed to compile", zap.String("path", path), zap.Error(err))
			e.deleteSet(out)
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p := program{path: path, prog: prog, locs: make(map[string]int32, len(uniforms[i]))}
		for _, name := range uniforms[i] {
			p.locs[name] = e.dev.UniformLocation(prog, fs.UniformName(name))
		}
		out = append(out, p)
	}
	return out, nil
}

func (e *env) deleteSet(ps []program) {
	for i := range ps {
		if ps[i].prog != 0 {
			e.dev.DeleteProgram(ps[i].prog)
			ps[i].prog = 0
		}
	}
}

// draw helpers operate on the currently used program.

func (e *env) use(p *program) {
	e.dev.UseProgram(p.prog)
}

func (e *env) float(p *program, name string, v float32) {
	if loc := p.loc(name); loc >= 0 {
		e.dev.Uniform1f(loc, v)
	}
}

func (e *env) vec2(p *program, name string, v mgl32.Vec2) {
	if loc := p.loc(name); loc >= 0 {
		e.dev.Uniform2f(loc, v[0], v[1])
	}
}

func (e *env) sampler(p *program, name string, unit int, tex graphics.Texture) {
	e.dev.BindTexture(unit, tex)
	if loc := p.loc(name); loc >= 0 {
		e.dev.Uniform1i(loc, int32(unit))
	}
}

func (e *env) unbind(units int) {
	for u := 0; u < units; u++ {
		e.dev.BindTexture(u, 0)
	}
}
