// Package rendertarget creates off-screen colour+depth targets and the
// double-buffered pairs the passes render into.
package rendertarget

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderfx/graphics"
	"go.uber.org/zap"
)

var (
	// ErrInvalidSize is returned for non-positive target dimensions.
	ErrInvalidSize = errors.New("invalid render target size")
	// ErrAllocation is returned when no format in the fallback chain could be allocated.
	ErrAllocation = errors.New("render target allocation failed")
)

// Target is one off-screen framebuffer. The zero value is "no target".
type Target struct {
	graphics.Surface
	Width  int
	Height int
	Format graphics.Format
}

// Valid reports whether t holds live GPU objects.
func (t Target) Valid() bool {
	return t.Surface.Valid()
}

// Texture returns the colour attachment.
func (t Target) Texture() graphics.Texture {
	return t.Color
}

// Factory allocates targets on a device with a consistent sampling filter.
type Factory struct {
	dev    graphics.Device
	filter graphics.Filter
	logger *zap.Logger
}

// NewFactory returns a factory. A nil logger discards output.
func NewFactory(dev graphics.Device, filter graphics.Filter, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{dev: dev, filter: filter, logger: logger}
}

// Device returns the device targets are allocated on.
func (f *Factory) Device() graphics.Device { return f.dev }

// Create allocates a target with exactly the requested format. On failure
// the zero Target is returned together with the cause.
func (f *Factory) Create(width, height int, format graphics.Format) (Target, error) {
	if width <= 0 || height <= 0 {
		return Target{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	s, err := f.dev.CreateSurface(width, height, format)
	if err != nil {
		return Target{}, err
	}
	t := Target{Surface: s, Width: width, Height: height, Format: format}
	f.dev.SetSampling(t.Color, f.filter)
	f.dev.BindFramebuffer(t.FBO, width, height)
	f.dev.Clear(0, 0, 0, 0)
	f.dev.BindFramebuffer(0, width, height)
	return t, nil
}

// FallbackChain returns the formats tried for wanted, highest precision first.
func FallbackChain(wanted graphics.Format) []graphics.Format {
	switch wanted {
	case graphics.FormatRGBA32F:
		return []graphics.Format{graphics.FormatRGBA32F, graphics.FormatRGBA16F, graphics.FormatRGBA8}
	case graphics.FormatRGBA16F:
		return []graphics.Format{graphics.FormatRGBA16F, graphics.FormatRGBA8}
	default:
		return []graphics.Format{graphics.FormatRGBA8}
	}
}

// CreateWithFallback tries wanted and then each lower-precision format of
// its chain until one allocates.
func (f *Factory) CreateWithFallback(width, height int, wanted graphics.Format) (Target, error) {
	if width <= 0 || height <= 0 {
		return Target{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	var errs []error
	for _, format := range FallbackChain(wanted) {
		t, err := f.Create(width, height, format)
		if err == nil {
			if format != wanted {
				f.logger.Warn("render target fell back to lower precision",
					zap.Stringer("wanted", wanted),
					zap.Stringer("format", format),
					zap.Int("width", width),
					zap.Int("height", height))
			}
			return t, nil
		}
		f.logger.Debug("render target format rejected",
			zap.Stringer("format", format),
			zap.Error(err))
		errs = append(errs, err)
	}
	return Target{}, fmt.Errorf("%w: %dx%d: %w", ErrAllocation, width, height, errors.Join(errs...))
}

// Destroy releases t. Destroying the zero Target is a no-op.
func (f *Factory) Destroy(t *Target) {
	if t.Valid() {
		f.dev.DeleteSurface(t.Surface)
	}
	*t = Target{}
}
