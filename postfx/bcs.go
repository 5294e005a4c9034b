package postfx

import (
	"fmt"
	"math"

	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/rendertarget"
	"github.com/richinsley/goshaderfx/shaders"
	"go.uber.org/zap"
)

// Tuning profiles decide the contrast range.
const (
	ProfileStandard = "standard"
	ProfileExtended = "extended"
)

// BCSConfig holds brightness, contrast and saturation.
type BCSConfig struct {
	Brightness float32 `toml:"brightness"`
	Contrast   float32 `toml:"contrast"`
	Saturation float32 `toml:"saturation"`
	// Profile is ProfileStandard (contrast up to 2) or ProfileExtended
	// (contrast up to 3). Empty means standard.
	Profile string `toml:"profile"`
}

// DefaultBCSConfig returns the identity grade.
func DefaultBCSConfig() BCSConfig {
	return BCSConfig{Brightness: 0, Contrast: 1, Saturation: 1, Profile: ProfileStandard}
}

// ContrastMax returns the upper contrast bound of the profile.
func (c BCSConfig) ContrastMax() (float32, error) {
	switch c.Profile {
	case "", ProfileStandard:
		return 2, nil
	case ProfileExtended:
		return 3, nil
	default:
		return 0, fmt.Errorf("unknown bcs profile %q", c.Profile)
	}
}

func (c BCSConfig) Validate() error {
	hi, err := c.ContrastMax()
	if err != nil {
		return err
	}
	for _, v := range []struct {
		name string
		val  float32
	}{{"brightness", c.Brightness}, {"contrast", c.Contrast}, {"saturation", c.Saturation}} {
		if math.IsNaN(float64(v.val)) {
			return fmt.Errorf("bcs %s is NaN: %w", v.name, ErrRange)
		}
	}
	if c.Brightness < -1 || c.Brightness > 1 {
		return fmt.Errorf("bcs brightness %v not in [-1,1]: %w", c.Brightness, ErrRange)
	}
	if c.Contrast < 0 || c.Contrast > hi {
		return fmt.Errorf("bcs contrast %v not in [0,%v]: %w", c.Contrast, hi, ErrRange)
	}
	if c.Saturation < 0 || c.Saturation > 2 {
		return fmt.Errorf("bcs saturation %v not in [0,2]: %w", c.Saturation, ErrRange)
	}
	return nil
}

var bcsUniforms = [][]string{{"inputTexture", "brightness", "contrast", "saturation"}}

// BCS is a single-pass colour grade into one owned target.
type BCS struct {
	env
	cfg BCSConfig

	progs  []program
	output rendertarget.Target
	width  int
	height int
	ready  bool
}

var _ Effect = (*BCS)(nil)

// NewBCS validates cfg and returns an uninitialized effect.
func NewBCS(dev graphics.Device, cfg BCSConfig, opts ...Option) (*BCS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BCS{env: newEnv(dev, "bcs", opts), cfg: cfg}, nil
}

func (c *BCS) Name() string                { return "bcs" }
func (c *BCS) Config() BCSConfig           { return c.cfg }
func (c *BCS) Initialized() bool           { return c.ready }
func (c *BCS) Output() rendertarget.Target { return c.output }

func (c *BCS) Init(width, height int) error {
	c.Destroy()
	progs, err := c.compileSet([]string{shaders.BCS}, bcsUniforms)
	if err != nil {
		return fmt.Errorf("bcs init: %w", err)
	}
	c.progs = progs
	if err := c.allocate(width, height); err != nil {
		c.deleteSet(c.progs)
		c.progs = nil
		return fmt.Errorf("bcs init: %w", err)
	}
	c.ready = true
	return nil
}

func (c *BCS) allocate(width, height int) error {
	out, err := c.factory.CreateWithFallback(width, height, c.format)
	if err != nil {
		return err
	}
	c.output = out
	c.width, c.height = width, height
	return nil
}

func (c *BCS) Apply(input graphics.Texture) graphics.Texture {
	if !c.ready || input == 0 || input == c.output.Color {
		return input
	}
	p := &c.progs[0]
	c.dev.BindFramebuffer(c.output.FBO, c.output.Width, c.output.Height)
	c.dev.Clear(0, 0, 0, 0)
	c.use(p)
	c.sampler(p, "inputTexture", 0, input)
	c.float(p, "brightness", c.cfg.Brightness)
	c.float(p, "contrast", c.cfg.Contrast)
	c.float(p, "saturation", c.cfg.Saturation)
	c.dev.DrawFullscreenQuad()
	c.unbind(1)
	c.dev.BindFramebuffer(0, c.width, c.height)
	return c.output.Color
}

func (c *BCS) Resize(width, height int) error {
	if c.progs == nil {
		return ErrNotInitialized
	}
	c.ready = false
	c.factory.Destroy(&c.output)
	if err := c.allocate(width, height); err != nil {
		c.logger.Error("bcs resize failed", zap.Error(err))
		return fmt.Errorf("bcs resize: %w", err)
	}
	c.ready = true
	return nil
}

func (c *BCS) HotReload() error {
	if c.progs == nil {
		return ErrNotInitialized
	}
	progs, err := c.compileSet([]string{shaders.BCS}, bcsUniforms)
	if err != nil {
		c.logger.Warn("bcs reload failed, keeping previous program", zap.Error(err))
		return fmt.Errorf("bcs reload: %w", err)
	}
	c.deleteSet(c.progs)
	c.progs = progs
	return nil
}

// SetConfig validates and applies cfg.
func (c *BCS) SetConfig(cfg BCSConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *BCS) Destroy() {
	c.factory.Destroy(&c.output)
	c.deleteSet(c.progs)
	c.progs = nil
	c.ready = false
}
