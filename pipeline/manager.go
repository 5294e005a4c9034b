// Package pipeline runs an ordered chain of fullscreen fragment passes,
// each rendering into its own double-buffered target.
//
// Every pass can sample every pass's read buffer through a sampler named
// pass<N>Texture. Passes run in ascending index order, so a lower-index pass
// is seen as of the current frame and a higher-index pass (or the pass
// itself) as of the previous frame. See Observes.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/rendertarget"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/uniform"
	"go.uber.org/zap"
)

// MaxPasses is the largest pass count a manager accepts.
const MaxPasses = 8

var (
	ErrPassOrder     = errors.New("pass order violation")
	ErrTooManyPasses = errors.New("too many passes")
	ErrNotReady      = errors.New("pipeline not ready")
	ErrFeedback      = errors.New("pass samples its own write target")
	ErrNoPasses      = errors.New("pipeline has no passes")
)

// Builtin uniforms written by RenderFrame before the first pass.
const (
	UniformTime       = "time"
	UniformDeltaTime  = "delta_time"
	UniformFrame      = "frame"
	UniformResolution = "resolution"
	UniformMouse      = "mouse"
)

// Pass describes one stage.
type Pass struct {
	// Fragment is the fragment shader path relative to the shader root.
	Fragment string
	// CurrentInputs lists passes whose output of this same frame the pass
	// relies on. Each must have a lower index.
	CurrentInputs []int
}

// Config is the fixed description of a pipeline.
type Config struct {
	Name     string
	Vertex   string
	Passes   []Pass
	Uniforms []uniform.Def
	Width    int
	Height   int
	// Format is the preferred precision of every pass target. Zero means RGBA32F.
	Format graphics.Format
}

// Fragments builds passes without declared current-frame inputs.
func Fragments(paths ...string) []Pass {
	passes := make([]Pass, len(paths))
	for i, p := range paths {
		passes[i] = Pass{Fragment: p}
	}
	return passes
}

// FrameState is the per-frame input to RenderFrame.
type FrameState struct {
	Time      float32
	DeltaTime float32
	// Mouse is xy = current position, zw = last click position, in pixels.
	Mouse mgl32.Vec4
}

// Option configures a Manager.
type Option func(*Manager)

// WithReader sets where shader sources are read from.
func WithReader(read shader.FileReader) Option {
	return func(m *Manager) { m.read = read }
}

// WithLoaderOptions forwards options to the shader loader, e.g. a
// translator or a different dialect root.
func WithLoaderOptions(opts ...shader.LoaderOption) Option {
	return func(m *Manager) { m.loaderOpts = append(m.loaderOpts, opts...) }
}

// WithFilter sets the sampling filter of every pass target.
func WithFilter(filter graphics.Filter) Option {
	return func(m *Manager) { m.filter = filter }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// programs is the part of the manager rebuilt by a hot reload.
type programs struct {
	prog    [MaxPasses]graphics.Program
	sources [MaxPasses]shader.Source
	// uniformLocs is indexed by uniform table slot.
	uniformLocs [MaxPasses][uniform.MaxUniforms]int32
	passLocs    [MaxPasses][MaxPasses]int32
}

// Manager owns the pass programs and targets of one pipeline.
type Manager struct {
	dev        graphics.Device
	factory    *rendertarget.Factory
	loader     *shader.Loader
	logger     *zap.Logger
	read       shader.FileReader
	loaderOpts []shader.LoaderOption
	filter     graphics.Filter

	name   string
	vertex string
	passes [MaxPasses]Pass
	count  int
	format graphics.Format

	progs programs

	pairs     [MaxPasses]rendertarget.Pair
	uniforms  *uniform.Table
	width     int
	height    int
	frame     uint64
	capture   Capture
	ready     bool
	destroyed bool
}

// New loads, compiles and allocates everything cfg describes. Any failure
// releases what was created so far.
func New(dev graphics.Device, cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		dev:    dev,
		logger: zap.NewNop(),
		filter: graphics.FilterLinear,
		name:   cfg.Name,
		vertex: cfg.Vertex,
		count:  len(cfg.Passes),
		format: cfg.Format,
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With(zap.String("pipeline", m.name))
	if m.format == graphics.FormatNone {
		m.format = graphics.FormatRGBA32F
	}

	switch {
	case m.count == 0:
		return nil, fmt.Errorf("pipeline %s: %w", m.name, ErrNoPasses)
	case m.count > MaxPasses:
		return nil, fmt.Errorf("pipeline %s: %w: %d, at most %d", m.name, ErrTooManyPasses, m.count, MaxPasses)
	}
	if err := checkOrder(cfg.Passes); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", m.name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("pipeline %s: %w: %dx%d", m.name, rendertarget.ErrInvalidSize, cfg.Width, cfg.Height)
	}
	copy(m.passes[:], cfg.Passes)

	table, err := uniform.NewTable(cfg.Uniforms)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", m.name, err)
	}
	m.uniforms = table
	if err := m.declareBuiltins(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", m.name, err)
	}

	m.factory = rendertarget.NewFactory(dev, m.filter, m.logger)
	m.loader = shader.NewLoader(m.read, append([]shader.LoaderOption{shader.WithLogger(m.logger)}, m.loaderOpts...)...)

	progs, err := m.compile()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", m.name, err)
	}
	m.progs = progs

	if err := m.createPairs(cfg.Width, cfg.Height); err != nil {
		m.deletePrograms(&m.progs)
		return nil, fmt.Errorf("pipeline %s: %w", m.name, err)
	}
	m.width, m.height = cfg.Width, cfg.Height
	m.ready = true
	m.logger.Info("pipeline created",
		zap.Int("passes", m.count),
		zap.Int("width", m.width),
		zap.Int("height", m.height),
		zap.Stringer("format", m.pairs[0].Read.Format))
	return m, nil
}

func (m *Manager) declareBuiltins() error {
	builtins := []uniform.Def{
		{Name: UniformTime, Value: uniform.Float(0)},
		{Name: UniformDeltaTime, Value: uniform.Float(0)},
		{Name: UniformFrame, Value: uniform.Int(0)},
		{Name: UniformResolution, Value: uniform.Vec2{}},
		{Name: UniformMouse, Value: uniform.Vec4{}},
	}
	for _, b := range builtins {
		if v, ok := m.uniforms.Get(b.Name); ok {
			if v.Kind() != b.Value.Kind() {
				return fmt.Errorf("%w: builtin %q must be %v", uniform.ErrKindMismatch, b.Name, b.Value.Kind())
			}
			continue
		}
		if err := m.uniforms.Declare(b.Name, b.Value); err != nil {
			return err
		}
	}
	return nil
}

// compile builds a complete program set. Nothing is kept on failure.
func (m *Manager) compile() (programs, error) {
	var ps programs
	vs, err := m.loader.Load(m.vertex, shader.Vertex)
	if err != nil {
		return ps, err
	}
	for i := 0; i < m.count; i++ {
		fs, err := m.loader.Load(m.passes[i].Fragment, shader.Fragment)
		if err != nil {
			m.deletePrograms(&ps)
			return ps, fmt.Errorf("pass %d: %w", i, err)
		}
		prog, err := m.dev.CompileProgram(vs.Code, fs.Code)
		if err != nil {
			m.logger.Error("pass program failed to compile",
				zap.Int("pass", i),
				zap.String("path", fs.Path),
				zap.Error(err))
			m.deletePrograms(&ps)
			return ps, fmt.Errorf("pass %d (%s): %w", i, fs.Path, err)
		}
		ps.prog[i] = prog
		ps.sources[i] = fs
		for j := 0; j < m.count; j++ {
			ps.passLocs[i][j] = m.dev.UniformLocation(prog, fs.UniformName(PassTextureName(j)))
		}
		for slot := 0; slot < uniform.MaxUniforms; slot++ {
			ps.uniformLocs[i][slot] = -1
		}
		for slot := 0; slot < m.uniforms.Len(); slot++ {
			m.locate(&ps, i, slot)
		}
	}
	return ps, nil
}

func (m *Manager) locate(ps *programs, pass, slot int) {
	name, _ := m.uniforms.At(slot)
	ps.uniformLocs[pass][slot] = m.dev.UniformLocation(ps.prog[pass], ps.sources[pass].UniformName(name))
}

func (m *Manager) deletePrograms(ps *programs) {
	for i := range ps.prog {
		if ps.prog[i] != 0 {
			m.dev.DeleteProgram(ps.prog[i])
			ps.prog[i] = 0
		}
	}
}

func (m *Manager) createPairs(width, height int) error {
	for i := 0; i < m.count; i++ {
		p, err := m.factory.NewPair(width, height, m.format)
		if err != nil {
			m.destroyPairs()
			return fmt.Errorf("pass %d target: %w", i, err)
		}
		m.pairs[i] = p
	}
	return nil
}

func (m *Manager) destroyPairs() {
	for i := range m.pairs {
		m.factory.DestroyPair(&m.pairs[i])
	}
}

// RenderFrame runs every pass once, in index order.
func (m *Manager) RenderFrame(fs FrameState) error {
	if !m.ready {
		return fmt.Errorf("pipeline %s: %w", m.name, ErrNotReady)
	}
	m.writeBuiltins(fs)

	m.capture.Begin(m.frame, m.pairs[:m.count])
	for i := 0; i < m.count; i++ {
		m.renderPass(i)
	}
	m.capture.End(m.frame, m.pairs[:m.count])

	m.dev.BindFramebuffer(0, m.width, m.height)
	m.frame++
	return nil
}

func (m *Manager) writeBuiltins(fs FrameState) {
	// kinds are fixed by declareBuiltins, so Set cannot fail here
	_ = m.uniforms.Set(UniformTime, uniform.Float(fs.Time))
	_ = m.uniforms.Set(UniformDeltaTime, uniform.Float(fs.DeltaTime))
	_ = m.uniforms.Set(UniformFrame, uniform.Int(int32(m.frame)))
	_ = m.uniforms.Set(UniformResolution, uniform.Vec2{float32(m.width), float32(m.height)})
	_ = m.uniforms.Set(UniformMouse, uniform.Vec4(fs.Mouse))
}

func (m *Manager) renderPass(i int) {
	dst := &m.pairs[i]
	m.dev.BindFramebuffer(dst.Write.FBO, dst.Write.Width, dst.Write.Height)
	m.dev.Clear(0, 0, 0, 0)
	m.dev.UseProgram(m.progs.prog[i])

	unit := 0
	for j := 0; j < m.count; j++ {
		loc := m.progs.passLocs[i][j]
		if loc < 0 {
			continue
		}
		tex := m.pairs[j].Read.Color
		if tex == dst.Write.Color {
			m.logger.Error("skipping sampler binding",
				zap.Int("pass", i),
				zap.String("sampler", PassTextureName(j)),
				zap.Error(ErrFeedback))
			continue
		}
		m.dev.BindTexture(unit, tex)
		m.dev.Uniform1i(loc, int32(unit))
		unit++
	}

	for slot := 0; slot < m.uniforms.Len(); slot++ {
		loc := m.progs.uniformLocs[i][slot]
		if loc < 0 {
			continue
		}
		_, v := m.uniforms.At(slot)
		if t, ok := v.(uniform.Texture); ok {
			if graphics.Texture(t) == dst.Write.Color {
				continue
			}
			uniform.Apply(m.dev, loc, v, unit)
			unit++
			continue
		}
		uniform.Apply(m.dev, loc, v, 0)
	}

	m.dev.DrawFullscreenQuad()

	for u := 0; u < unit; u++ {
		m.dev.BindTexture(u, 0)
	}
	dst.Swap()
}

// ReloadShaders recompiles every pass. The new programs replace the old
// ones only if all of them compile; otherwise the old set stays in use.
func (m *Manager) ReloadShaders() error {
	if m.destroyed {
		return fmt.Errorf("pipeline %s: %w", m.name, ErrNotReady)
	}
	progs, err := m.compile()
	if err != nil {
		m.logger.Warn("hot reload failed, keeping previous programs", zap.Error(err))
		return fmt.Errorf("pipeline %s reload: %w", m.name, err)
	}
	old := m.progs
	m.progs = progs
	m.deletePrograms(&old)
	m.logger.Info("shaders reloaded", zap.Int("passes", m.count))
	return nil
}

// Resize recreates every pass target at the new size. Contents are lost.
// If allocation fails the manager stays not ready until a later Resize
// succeeds.
func (m *Manager) Resize(width, height int) error {
	if m.destroyed {
		return fmt.Errorf("pipeline %s: %w", m.name, ErrNotReady)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pipeline %s: %w: %dx%d", m.name, rendertarget.ErrInvalidSize, width, height)
	}
	m.ready = false
	m.destroyPairs()
	m.capture.Reset()
	if err := m.createPairs(width, height); err != nil {
		m.logger.Error("resize failed", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		return fmt.Errorf("pipeline %s resize: %w", m.name, err)
	}
	m.width, m.height = width, height
	m.ready = true
	m.logger.Debug("pipeline resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Destroy releases every program and target. Calling it again is a no-op.
func (m *Manager) Destroy() {
	if m.destroyed {
		return
	}
	m.deletePrograms(&m.progs)
	m.destroyPairs()
	m.capture.Reset()
	m.ready = false
	m.destroyed = true
}

// SetUniform changes a declared uniform. The kind must match the declaration.
func (m *Manager) SetUniform(name string, v uniform.Value) error {
	return m.uniforms.Set(name, v)
}

// DeclareUniform adds a uniform after creation and resolves its location
// in every pass program.
func (m *Manager) DeclareUniform(name string, v uniform.Value) error {
	known := m.uniforms.Index(name) >= 0
	if err := m.uniforms.Declare(name, v); err != nil {
		return err
	}
	if known || m.destroyed {
		return nil
	}
	slot := m.uniforms.Index(name)
	for i := 0; i < m.count; i++ {
		m.locate(&m.progs, i, slot)
	}
	return nil
}

// Uniform returns the current value of name.
func (m *Manager) Uniform(name string) (uniform.Value, bool) {
	return m.uniforms.Get(name)
}

// UniformDefs returns a snapshot of the shared table in slot order.
func (m *Manager) UniformDefs() []uniform.Def {
	defs := make([]uniform.Def, m.uniforms.Len())
	for i := range defs {
		defs[i].Name, defs[i].Value = m.uniforms.At(i)
	}
	return defs
}

// Output is the read buffer of the last pass, or 0 when not ready.
func (m *Manager) Output() graphics.Texture {
	if !m.ready {
		return 0
	}
	return m.pairs[m.count-1].Read.Color
}

// OutputTarget is the target behind Output.
func (m *Manager) OutputTarget() rendertarget.Target {
	if !m.ready {
		return rendertarget.Target{}
	}
	return m.pairs[m.count-1].Read
}

// Pair returns the buffers of pass i.
func (m *Manager) Pair(i int) rendertarget.Pair {
	if i < 0 || i >= m.count {
		return rendertarget.Pair{}
	}
	return m.pairs[i]
}

// Bindings lists the pass samplers pass i actually declares.
func (m *Manager) Bindings(i int) []Binding {
	if i < 0 || i >= m.count {
		return nil
	}
	var out []Binding
	for j := 0; j < m.count; j++ {
		if m.progs.passLocs[i][j] < 0 {
			continue
		}
		out = append(out, Binding{Uniform: PassTextureName(j), Pass: j, Frame: Observes(i, j)})
	}
	return out
}

// Binding is one pass sampler of a pass program.
type Binding struct {
	Uniform string
	Pass    int
	Frame   FrameOf
}

func (m *Manager) Name() string      { return m.name }
func (m *Manager) Size() (int, int)  { return m.width, m.height }
func (m *Manager) PassCount() int    { return m.count }
func (m *Manager) Frame() uint64     { return m.frame }
func (m *Manager) Ready() bool       { return m.ready }
func (m *Manager) Capture() *Capture { return &m.capture }

// PassPath returns the fragment path of pass i, or "" when there is no
// such pass.
func (m *Manager) PassPath(i int) string {
	if i < 0 || i >= m.count {
		return ""
	}
	return m.passes[i].Fragment
}

// Program returns the program currently used by pass i, or 0 when there is
// no such pass.
func (m *Manager) Program(i int) graphics.Program {
	if i < 0 || i >= m.count {
		return 0
	}
	return m.progs.prog[i]
}
