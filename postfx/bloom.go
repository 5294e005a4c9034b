package postfx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/rendertarget"
	"github.com/richinsley/goshaderfx/shaders"
	"go.uber.org/zap"
)

const (
	bloomBright = iota
	bloomDown
	bloomUp
	bloomComposite
)

var bloomSources = []string{
	shaders.BloomBright,
	shaders.BloomDownsample,
	shaders.BloomUpsample,
	shaders.BloomComposite,
}

var bloomUniforms = [][]string{
	{"inputTexture", "threshold", "intensity"},
	{"sourceTexture", "texelSize", "radius", "tapOffsets", "tapWeights"},
	{"sourceTexture", "residualTexture", "texelSize", "radius", "mipWeight", "tapOffsets", "tapWeights"},
	{"originalTexture", "bloomTexture", "strength", "exposure"},
}

// MipLevel is one level of the bloom chain.
type MipLevel struct {
	rendertarget.Pair
	Width  int
	Height int
}

// Bloom extracts bright areas, blurs them across a mip chain and adds them
// back with a tonemap.
type Bloom struct {
	env
	cfg BloomConfig

	progs  []program
	mips   [MaxMipLevels]MipLevel
	levels int
	output rendertarget.Target
	width  int
	height int
	ready  bool

	downOffsets, downWeights []float32
	upOffsets, upWeights     []float32
}

var _ Effect = (*Bloom)(nil)

// NewBloom validates cfg and returns an uninitialized effect.
func NewBloom(dev graphics.Device, cfg BloomConfig, opts ...Option) (*Bloom, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bloom{env: newEnv(dev, "bloom", opts), cfg: cfg.Clone()}
	b.downOffsets, b.downWeights = tapArrays(DownsampleTaps[:])
	b.upOffsets, b.upWeights = tapArrays(UpsampleTaps[:])
	return b, nil
}

func (b *Bloom) Name() string { return "bloom" }

// Config returns a copy of the current configuration.
func (b *Bloom) Config() BloomConfig { return b.cfg.Clone() }

// Initialized reports whether Apply does any work.
func (b *Bloom) Initialized() bool { return b.ready }

// Levels returns the live mip chain.
func (b *Bloom) Levels() []MipLevel { return b.mips[:b.levels] }

// Output returns the effect-owned composite target.
func (b *Bloom) Output() rendertarget.Target { return b.output }

// Init compiles the four programs and allocates the chain. On failure
// nothing is kept and the effect stays pass-through.
func (b *Bloom) Init(width, height int) error {
	b.Destroy()
	progs, err := b.compileSet(bloomSources, bloomUniforms)
	if err != nil {
		return fmt.Errorf("bloom init: %w", err)
	}
	b.progs = progs
	if err := b.allocate(width, height); err != nil {
		b.deleteSet(b.progs)
		b.progs = nil
		return fmt.Errorf("bloom init: %w", err)
	}
	b.ready = true
	b.logger.Info("bloom initialized",
		zap.Int("levels", b.levels),
		zap.Int("width", width),
		zap.Int("height", height))
	return nil
}

func (b *Bloom) allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", rendertarget.ErrInvalidSize, width, height)
	}
	out, err := b.factory.CreateWithFallback(width, height, b.format)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	b.output = out
	for k := 0; k < b.cfg.MipLevels; k++ {
		w, h := MipSize(width, height, k)
		p, err := b.factory.NewPair(w, h, b.format)
		if err != nil {
			b.release()
			return fmt.Errorf("mip %d (%dx%d): %w", k, w, h, err)
		}
		b.mips[k] = MipLevel{Pair: p, Width: w, Height: h}
		b.levels = k + 1
	}
	b.width, b.height = width, height
	return nil
}

func (b *Bloom) release() {
	for k := range b.mips {
		b.factory.DestroyPair(&b.mips[k].Pair)
		b.mips[k] = MipLevel{}
	}
	b.levels = 0
	b.factory.Destroy(&b.output)
}

// Apply runs the full effect and returns the composite, or input if the
// effect is not initialized.
func (b *Bloom) Apply(input graphics.Texture) graphics.Texture {
	if !b.ready || input == 0 {
		return input
	}
	if err := b.ApplyTo(input, b.output); err != nil {
		b.logger.Debug("bloom skipped", zap.Error(err))
		return input
	}
	return b.output.Color
}

// ApplyTo runs the effect with the composite written into dst. dst must not
// be input, nor one of the effect's mip targets.
func (b *Bloom) ApplyTo(input graphics.Texture, dst rendertarget.Target) error {
	if !b.ready {
		return ErrNotInitialized
	}
	if !dst.Valid() {
		return fmt.Errorf("bloom: %w", rendertarget.ErrInvalidSize)
	}
	if dst.Color == input || b.ownsMip(input) || b.ownsMip(dst.Color) {
		return fmt.Errorf("bloom: texture %d: %w", input, ErrFeedback)
	}
	b.brightPass(input)
	for k := 1; k < b.levels; k++ {
		b.downsample(k)
	}
	for k := b.levels - 2; k >= 0; k-- {
		b.upsample(k)
	}
	b.composite(input, dst)
	b.dev.BindFramebuffer(0, b.width, b.height)
	return nil
}

func (b *Bloom) ownsMip(tex graphics.Texture) bool {
	for _, m := range b.mips[:b.levels] {
		if tex == m.Read.Color || tex == m.Write.Color {
			return true
		}
	}
	return false
}

func (b *Bloom) target(t rendertarget.Target) {
	b.dev.BindFramebuffer(t.FBO, t.Width, t.Height)
	b.dev.Clear(0, 0, 0, 0)
}

func (b *Bloom) brightPass(input graphics.Texture) {
	p := &b.progs[bloomBright]
	mip := &b.mips[0]
	b.target(mip.Write)
	b.use(p)
	b.sampler(p, "inputTexture", 0, input)
	b.float(p, "threshold", b.cfg.Threshold)
	b.float(p, "intensity", b.cfg.Intensity)
	b.dev.DrawFullscreenQuad()
	b.unbind(1)
	mip.Swap()
}

func (b *Bloom) downsample(k int) {
	p := &b.progs[bloomDown]
	src, dst := &b.mips[k-1], &b.mips[k]
	b.target(dst.Write)
	b.use(p)
	b.sampler(p, "sourceTexture", 0, src.Read.Color)
	b.vec2(p, "texelSize", mgl32.Vec2{1 / float32(src.Width), 1 / float32(src.Height)})
	b.float(p, "radius", b.cfg.Radius)
	b.taps(p, b.downOffsets, b.downWeights)
	b.dev.DrawFullscreenQuad()
	b.unbind(1)
	dst.Swap()
}

func (b *Bloom) upsample(k int) {
	p := &b.progs[bloomUp]
	src, dst := &b.mips[k+1], &b.mips[k]
	b.target(dst.Write)
	b.use(p)
	b.sampler(p, "sourceTexture", 0, src.Read.Color)
	b.sampler(p, "residualTexture", 1, dst.Read.Color)
	b.vec2(p, "texelSize", mgl32.Vec2{1 / float32(src.Width), 1 / float32(src.Height)})
	b.float(p, "radius", b.cfg.Radius)
	b.float(p, "mipWeight", b.cfg.MipWeights[k])
	b.taps(p, b.upOffsets, b.upWeights)
	b.dev.DrawFullscreenQuad()
	b.unbind(2)
	dst.Swap()
}

func (b *Bloom) composite(input graphics.Texture, dst rendertarget.Target) {
	p := &b.progs[bloomComposite]
	b.target(dst)
	b.use(p)
	b.sampler(p, "originalTexture", 0, input)
	b.sampler(p, "bloomTexture", 1, b.mips[0].Read.Color)
	b.float(p, "strength", b.cfg.Strength)
	b.float(p, "exposure", b.cfg.Exposure)
	b.dev.DrawFullscreenQuad()
	b.unbind(2)
}

func (b *Bloom) taps(p *program, offsets, weights []float32) {
	if loc := p.loc("tapOffsets"); loc >= 0 {
		b.dev.Uniform2fv(loc, offsets)
	}
	if loc := p.loc("tapWeights"); loc >= 0 {
		b.dev.Uniform1fv(loc, weights)
	}
}

// Resize rebuilds the whole chain at the new size. If allocation fails the
// effect becomes pass-through until a later Resize or Init succeeds.
func (b *Bloom) Resize(width, height int) error {
	if b.progs == nil {
		return ErrNotInitialized
	}
	b.ready = false
	b.release()
	if err := b.allocate(width, height); err != nil {
		b.logger.Error("bloom resize failed", zap.Error(err))
		return fmt.Errorf("bloom resize: %w", err)
	}
	b.ready = true
	return nil
}

// HotReload recompiles all four programs. They replace the running ones
// only if every one compiles.
func (b *Bloom) HotReload() error {
	if b.progs == nil {
		return ErrNotInitialized
	}
	progs, err := b.compileSet(bloomSources, bloomUniforms)
	if err != nil {
		b.logger.Warn("bloom reload failed, keeping previous programs", zap.Error(err))
		return fmt.Errorf("bloom reload: %w", err)
	}
	b.deleteSet(b.progs)
	b.progs = progs
	return nil
}

// SetConfig validates and applies cfg. A different mip count rebuilds the
// chain.
func (b *Bloom) SetConfig(cfg BloomConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rebuild := cfg.MipLevels != b.cfg.MipLevels
	b.cfg = cfg.Clone()
	if rebuild && b.progs != nil {
		return b.Resize(b.width, b.height)
	}
	return nil
}

// Destroy releases every level, the output and the programs. It is safe to
// call more than once.
func (b *Bloom) Destroy() {
	b.release()
	b.deleteSet(b.progs)
	b.progs = nil
	b.ready = false
}
