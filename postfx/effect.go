// Package postfx holds screen-space effects applied to a finished frame:
// a mip-chain bloom and a brightness/contrast/saturation grade.
//
// Effects never fail the frame. An effect that could not initialize, or
// lost its targets in a resize, returns its input from Apply unchanged.
package postfx

import (
	"errors"

	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/rendertarget"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/shaders"
	"go.uber.org/zap"
)

var (
	// ErrRange is returned by Validate for a parameter outside its range.
	ErrRange = errors.New("parameter out of range")
	// ErrMipWeights is returned when the weight count does not match the mip count.
	ErrMipWeights = errors.New("mip weight count mismatch")
	// ErrNotInitialized is returned by operations that need GPU resources.
	ErrNotInitialized = errors.New("effect not initialized")
	// ErrFeedback is returned when an effect would sample the texture it
	// is writing.
	ErrFeedback = errors.New("effect input is its output")
)

// Effect is one post-processing stage.
type Effect interface {
	Name() string
	Init(width, height int) error
	// Apply processes input and returns the texture to show, which is input
	// itself when the effect is not initialized.
	Apply(input graphics.Texture) graphics.Texture
	Initialized() bool
	Resize(width, height int) error
	HotReload() error
	Destroy()
}

// Option configures an effect.
type Option func(*env)

// env is what every effect needs to build its programs and targets.
type env struct {
	dev        graphics.Device
	read       shader.FileReader
	loaderOpts []shader.LoaderOption
	vertex     string
	filter     graphics.Filter
	format     graphics.Format
	logger     *zap.Logger

	loader  *shader.Loader
	factory *rendertarget.Factory
}

// WithReader reads shaders through read instead of the embedded sources.
func WithReader(read shader.FileReader) Option {
	return func(e *env) { e.read = read }
}

// WithLoaderOptions forwards options to the shader loader.
func WithLoaderOptions(opts ...shader.LoaderOption) Option {
	return func(e *env) { e.loaderOpts = append(e.loaderOpts, opts...) }
}

// WithVertex overrides the fullscreen vertex shader path.
func WithVertex(path string) Option {
	return func(e *env) { e.vertex = path }
}

// WithFilter sets the sampling filter of the effect's targets.
func WithFilter(filter graphics.Filter) Option {
	return func(e *env) { e.filter = filter }
}

// WithFormat sets the preferred precision of the effect's targets.
func WithFormat(format graphics.Format) Option {
	return func(e *env) { e.format = format }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *env) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func newEnv(dev graphics.Device, name string, opts []Option) env {
	e := env{
		dev:    dev,
		read:   shaders.Reader(),
		vertex: shaders.FullscreenVertex,
		filter: graphics.FilterLinear,
		format: graphics.FormatRGBA16F,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(&e)
	}
	e.logger = e.logger.With(zap.String("effect", name))
	e.loader = shader.NewLoader(e.read, append([]shader.LoaderOption{shader.WithLogger(e.logger)}, e.loaderOpts...)...)
	e.factory = rendertarget.NewFactory(dev, e.filter, e.logger)
	return e
}

// Chain runs effects in order, feeding each one's output to the next.
type Chain struct {
	effects []Effect
	logger  *zap.Logger
	width   int
	height  int
}

// NewChain returns a chain over effects. A nil logger discards output.
func NewChain(logger *zap.Logger, effects ...Effect) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{effects: effects, logger: logger}
}

// Effects returns the effects in application order.
func (c *Chain) Effects() []Effect { return c.effects }

// Init initializes every effect. Failures are logged and leave that effect
// passing its input through.
func (c *Chain) Init(width, height int) {
	c.width, c.height = width, height
	for _, e := range c.effects {
		if err := e.Init(width, height); err != nil {
			c.logger.Warn("effect disabled", zap.String("effect", e.Name()), zap.Error(err))
		}
	}
}

// Apply runs the chain over input.
func (c *Chain) Apply(input graphics.Texture) graphics.Texture {
	tex := input
	for _, e := range c.effects {
		tex = e.Apply(tex)
	}
	return tex
}

// Resize resizes every effect.
func (c *Chain) Resize(width, height int) {
	c.width, c.height = width, height
	for _, e := range c.effects {
		if err := e.Resize(width, height); err != nil {
			c.logger.Warn("effect resize failed", zap.String("effect", e.Name()), zap.Error(err))
		}
	}
}

// HotReload reloads the shaders of every running effect and returns the
// joined failures. Effects that are disabled get another Init instead, so
// an edit that fixes their shaders brings them back; a repeated Init
// failure is not a reload failure.
func (c *Chain) HotReload() error {
	var errs []error
	for _, e := range c.effects {
		if !e.Initialized() {
			c.retryInit(e)
			continue
		}
		if err := e.HotReload(); err != nil {
			c.logger.Warn("effect reload failed", zap.String("effect", e.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Chain) retryInit(e Effect) {
	if c.width <= 0 || c.height <= 0 {
		return
	}
	if err := e.Init(c.width, c.height); err != nil {
		c.logger.Debug("effect still disabled", zap.String("effect", e.Name()), zap.Error(err))
		return
	}
	c.logger.Info("effect enabled on reload", zap.String("effect", e.Name()))
}

// Destroy destroys every effect.
func (c *Chain) Destroy() {
	for _, e := range c.effects {
		e.Destroy()
	}
}
