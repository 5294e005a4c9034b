package inspect

import (
	"fmt"

	"github.com/richinsley/goshaderfx/pipeline"
	"github.com/richinsley/goshaderfx/postfx"
	"github.com/richinsley/goshaderfx/uniform"
)

// PassBindings shows, for the last stable frame pair, which texture every
// pass sampler was bound to and which buffers each pass rendered through.
type PassBindings struct {
	m *pipeline.Manager
}

func NewPassBindings(m *pipeline.Manager) *PassBindings {
	return &PassBindings{m: m}
}

func (p *PassBindings) Title() string {
	return "passes: " + p.m.Name()
}

func (p *PassBindings) Lines() []string {
	pair, ok := p.m.Capture().Pair()
	if !ok {
		return []string{"waiting for a stable frame pair"}
	}
	lines := []string{fmt.Sprintf("frames %d/%d", pair.FrameA, pair.FrameB)}
	for i := range pair.SnapshotB {
		a, b := pair.SnapshotA[i], pair.SnapshotB[i]
		lines = append(lines, fmt.Sprintf("pass %d %s: read %d->%d write %d->%d %dx%d %v",
			i, p.m.PassPath(i),
			a.Read.Color, b.Read.Color,
			a.Write.Color, b.Write.Color,
			b.Read.Width, b.Read.Height, b.Read.Format))
		for _, bind := range p.m.Bindings(i) {
			// as drawn in frame B: earlier passes had already swapped in B,
			// later ones still held what frame A left behind
			snap := pair.SnapshotB
			if bind.Frame == pipeline.FramePrevious {
				snap = pair.SnapshotA
			}
			lines = append(lines, fmt.Sprintf("  frame %d: %s <- tex %d (pass %d, %s frame)",
				pair.FrameB, bind.Uniform, snap[bind.Pass].Read.Color, bind.Pass, bind.Frame))
		}
	}
	return lines
}

// Uniforms lists the shared uniform table.
type Uniforms struct {
	m *pipeline.Manager
}

func NewUniforms(m *pipeline.Manager) *Uniforms {
	return &Uniforms{m: m}
}

func (u *Uniforms) Title() string { return "uniforms: " + u.m.Name() }

func (u *Uniforms) Lines() []string {
	defs := u.m.UniformDefs()
	lines := make([]string, 0, len(defs))
	for _, d := range defs {
		lines = append(lines, fmt.Sprintf("%-12s %-7v %s", d.Name, d.Value.Kind(), formatValue(d.Value)))
	}
	return lines
}

func formatValue(v uniform.Value) string {
	switch v := v.(type) {
	case uniform.Float:
		return fmt.Sprintf("%.4g", float32(v))
	case uniform.Int:
		return fmt.Sprintf("%d", int32(v))
	case uniform.Vec2:
		return fmt.Sprintf("(%.4g, %.4g)", v[0], v[1])
	case uniform.Vec3:
		return fmt.Sprintf("(%.4g, %.4g, %.4g)", v[0], v[1], v[2])
	case uniform.Vec4:
		return fmt.Sprintf("(%.4g, %.4g, %.4g, %.4g)", v[0], v[1], v[2], v[3])
	case uniform.Texture:
		return fmt.Sprintf("tex %d", uint32(v))
	}
	return "?"
}

// Effects lists the post-processing chain.
type Effects struct {
	chain *postfx.Chain
}

func NewEffects(c *postfx.Chain) *Effects {
	return &Effects{chain: c}
}

func (e *Effects) Title() string { return "effects" }

func (e *Effects) Lines() []string {
	var lines []string
	for _, fx := range e.chain.Effects() {
		switch fx := fx.(type) {
		case *postfx.Bloom:
			cfg := fx.Config()
			lines = append(lines, fmt.Sprintf("bloom %s threshold=%.3g intensity=%.3g strength=%.3g exposure=%.3g radius=%.3g mips=%d",
				state(fx.Initialized()), cfg.Threshold, cfg.Intensity, cfg.Strength, cfg.Exposure, cfg.Radius, len(fx.Levels())))
		case *postfx.BCS:
			cfg := fx.Config()
			lines = append(lines, fmt.Sprintf("bcs %s brightness=%.3g contrast=%.3g saturation=%.3g",
				state(fx.Initialized()), cfg.Brightness, cfg.Contrast, cfg.Saturation))
		default:
			lines = append(lines, fx.Name())
		}
	}
	return lines
}

func state(ok bool) string {
	if ok {
		return "on"
	}
	return "off"
}
