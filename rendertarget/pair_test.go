package rendertarget

import (
	"testing"

	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/graphics/graphicstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairSwapExchangesHandles(t *testing.T) {
	dev := graphicstest.NewDevice()
	f := NewFactory(dev, graphics.FilterLinear, nil)
	p, err := f.NewPair(32, 16, graphics.FormatRGBA32F)
	require.NoError(t, err)
	require.True(t, p.Valid())

	read, write := p.Read, p.Write
	require.NotEqual(t, read.FBO, write.FBO)

	p.Swap()
	assert.Equal(t, write, p.Read)
	assert.Equal(t, read, p.Write)

	p.Swap()
	assert.Equal(t, read, p.Read)
	assert.Equal(t, write, p.Write)

	w, h := p.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
}

func TestPairSidesShareFallbackFormat(t *testing.T) {
	dev := graphicstest.NewDevice()
	dev.Supported[graphics.FormatRGBA32F] = false
	f := NewFactory(dev, graphics.FilterLinear, nil)

	p, err := f.NewPair(8, 8, graphics.FormatRGBA32F)
	require.NoError(t, err)
	assert.Equal(t, graphics.FormatRGBA16F, p.Read.Format)
	assert.Equal(t, p.Read.Format, p.Write.Format)
}

func TestPairWriteFailureReleasesRead(t *testing.T) {
	dev := graphicstest.NewDevice()
	f := NewFactory(dev, graphics.FilterLinear, nil)

	// read side allocates, write side fails
	dev.FailNthSurface = 2
	p, err := f.NewPair(8, 8, graphics.FormatRGBA8)
	require.Error(t, err)
	assert.False(t, p.Valid())
	assert.Zero(t, dev.LiveSurfaces())

	p, err = f.NewPair(8, 8, graphics.FormatRGBA8)
	require.NoError(t, err)
	f.DestroyPair(&p)
	f.DestroyPair(&p)
	assert.Zero(t, dev.LiveSurfaces())
}
