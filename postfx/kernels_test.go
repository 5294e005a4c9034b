package postfx

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/graphics/graphicstest"
	"github.com/richinsley/goshaderfx/rendertarget"
	"github.com/stretchr/testify/require"
)

func luma(c mgl32.Vec4) float32 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}

func tapSum(f *graphicstest.Fragment) mgl32.Vec3 {
	offsets, weights := f.Floats("tapOffsets"), f.Floats("tapWeights")
	texel := f.Vec2("texelSize")
	radius := f.Float("radius")
	var sum mgl32.Vec3
	for i, w := range weights {
		off := mgl32.Vec2{offsets[2*i] * texel[0] * radius, offsets[2*i+1] * texel[1] * radius}
		sum = sum.Add(f.Sample("sourceTexture", f.UV.Add(off)).Vec3().Mul(w))
	}
	return sum
}

// effectDevice mirrors the embedded effect shaders in Go.
func effectDevice() *graphicstest.Device {
	dev := graphicstest.NewDevice()
	dev.Handle("bloom/bright.fs", func(f *graphicstest.Fragment) mgl32.Vec4 {
		c := f.Sample("inputTexture", f.UV)
		if luma(c) > f.Float("threshold") {
			return c.Vec3().Mul(f.Float("intensity")).Vec4(1)
		}
		return mgl32.Vec4{0, 0, 0, 1}
	})
	dev.Handle("bloom/downsample.fs", func(f *graphicstest.Fragment) mgl32.Vec4 {
		return tapSum(f).Vec4(1)
	})
	dev.Handle("bloom/upsample.fs", func(f *graphicstest.Fragment) mgl32.Vec4 {
		residual := f.Sample("residualTexture", f.UV).Vec3()
		return tapSum(f).Add(residual.Mul(f.Float("mipWeight"))).Vec4(1)
	})
	dev.Handle("bloom/composite.fs", func(f *graphicstest.Fragment) mgl32.Vec4 {
		orig := f.Sample("originalTexture", f.UV)
		hdr := orig.Vec3().Add(f.Sample("bloomTexture", f.UV).Vec3().Mul(f.Float("strength")))
		e := f.Float("exposure")
		var out mgl32.Vec4
		for i := 0; i < 3; i++ {
			out[i] = 1 - float32(math.Exp(float64(-hdr[i]*e)))
		}
		out[3] = orig[3]
		return out
	})
	dev.Handle("bcs/bcs.fs", func(f *graphicstest.Fragment) mgl32.Vec4 {
		src := f.Sample("inputTexture", f.UV)
		c := src.Vec3().Add(mgl32.Vec3{1, 1, 1}.Mul(f.Float("brightness")))
		half := mgl32.Vec3{0.5, 0.5, 0.5}
		c = c.Sub(half).Mul(f.Float("contrast")).Add(half)
		l := luma(c.Vec4(0))
		grey := mgl32.Vec3{l, l, l}
		c = grey.Add(c.Sub(grey).Mul(f.Float("saturation")))
		return c.Vec4(src[3])
	})
	return dev
}

// solid allocates a target filled with c.
func solid(t *testing.T, dev *graphicstest.Device, w, h int, c mgl32.Vec4) rendertarget.Target {
	t.Helper()
	f := rendertarget.NewFactory(dev, graphics.FilterLinear, nil)
	tgt, err := f.Create(w, h, graphics.FormatRGBA32F)
	require.NoError(t, err)
	dev.BindFramebuffer(tgt.FBO, w, h)
	dev.Clear(c[0], c[1], c[2], c[3])
	return tgt
}

func requireSolid(t *testing.T, dev *graphicstest.Device, tex graphics.Texture, want mgl32.Vec4, delta float64) {
	t.Helper()
	pix, _, _, ok := dev.TexturePixels(tex)
	require.True(t, ok)
	for i, p := range pix {
		for c := 0; c < 4; c++ {
			require.InDelta(t, want[c], p[c], delta, "pixel %d channel %d", i, c)
		}
	}
}
