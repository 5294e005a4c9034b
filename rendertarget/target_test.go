package rendertarget

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/graphics/graphicstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClearsAndSetsSampling(t *testing.T) {
	dev := graphicstest.NewDevice()
	f := NewFactory(dev, graphics.FilterNearest, nil)

	tgt, err := f.Create(4, 3, graphics.FormatRGBA16F)
	require.NoError(t, err)
	require.True(t, tgt.Valid())
	assert.Equal(t, 4, tgt.Width)
	assert.Equal(t, 3, tgt.Height)
	assert.NotZero(t, tgt.Depth)
	assert.Equal(t, graphics.FilterNearest, dev.TextureFilter(tgt.Texture()))

	pix, w, h, ok := dev.TexturePixels(tgt.Texture())
	require.True(t, ok)
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	for _, p := range pix {
		assert.Equal(t, mgl32.Vec4{}, p)
	}
}

func TestCreateFailureReturnsZeroTarget(t *testing.T) {
	dev := graphicstest.NewDevice()
	dev.Supported[graphics.FormatRGBA32F] = false
	f := NewFactory(dev, graphics.FilterLinear, nil)

	tgt, err := f.Create(8, 8, graphics.FormatRGBA32F)
	require.ErrorIs(t, err, graphics.ErrUnsupportedFormat)
	assert.Equal(t, Target{}, tgt)
	assert.False(t, tgt.Valid())

	_, err = f.Create(0, 8, graphics.FormatRGBA8)
	require.ErrorIs(t, err, ErrInvalidSize)
	assert.Zero(t, dev.LiveSurfaces())
}

func TestFallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		supported []graphics.Format
		want      graphics.Format
	}{
		{"full precision", []graphics.Format{graphics.FormatRGBA32F, graphics.FormatRGBA16F, graphics.FormatRGBA8}, graphics.FormatRGBA32F},
		{"half float", []graphics.Format{graphics.FormatRGBA16F, graphics.FormatRGBA8}, graphics.FormatRGBA16F},
		{"8 bit only", []graphics.Format{graphics.FormatRGBA8}, graphics.FormatRGBA8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := graphicstest.NewDevice()
			dev.Supported = map[graphics.Format]bool{}
			for _, f := range tt.supported {
				dev.Supported[f] = true
			}
			f := NewFactory(dev, graphics.FilterLinear, nil)
			tgt, err := f.CreateWithFallback(16, 16, graphics.FormatRGBA32F)
			require.NoError(t, err)
			require.True(t, tgt.Valid())
			assert.Equal(t, tt.want, tgt.Format)
			assert.Equal(t, tt.want, dev.TextureFormat(tgt.Texture()))
		})
	}
}

func TestFallbackExhausted(t *testing.T) {
	dev := graphicstest.NewDevice()
	dev.Supported = map[graphics.Format]bool{}
	f := NewFactory(dev, graphics.FilterLinear, nil)

	tgt, err := f.CreateWithFallback(16, 16, graphics.FormatRGBA32F)
	require.ErrorIs(t, err, ErrAllocation)
	require.ErrorIs(t, err, graphics.ErrUnsupportedFormat)
	assert.False(t, tgt.Valid())
}

func TestFallbackChainNeverRaisesPrecision(t *testing.T) {
	assert.Equal(t, []graphics.Format{graphics.FormatRGBA8}, FallbackChain(graphics.FormatRGBA8))
	assert.Equal(t, []graphics.Format{graphics.FormatRGBA16F, graphics.FormatRGBA8}, FallbackChain(graphics.FormatRGBA16F))
}

func TestDestroyIsIdempotent(t *testing.T) {
	dev := graphicstest.NewDevice()
	f := NewFactory(dev, graphics.FilterLinear, nil)
	tgt, err := f.Create(2, 2, graphics.FormatRGBA8)
	require.NoError(t, err)
	require.Equal(t, 1, dev.LiveSurfaces())

	f.Destroy(&tgt)
	f.Destroy(&tgt)
	assert.Zero(t, dev.LiveSurfaces())
	assert.False(t, tgt.Valid())
}
