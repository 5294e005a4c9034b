package postfx

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxMipLevels bounds the bloom mip chain.
const MaxMipLevels = 8

// BloomConfig holds the bloom tuning parameters. It owns no GPU state.
type BloomConfig struct {
	// Threshold is the luma above which a pixel contributes to bloom.
	Threshold float32 `toml:"threshold"`
	Intensity float32 `toml:"intensity"`
	Strength  float32 `toml:"strength"`
	Exposure  float32 `toml:"exposure"`
	// Radius scales the filter tap offsets, in source texels.
	Radius    float32 `toml:"radius"`
	MipLevels int     `toml:"mip_levels"`
	// MipWeights[k] scales the residual of level k in the upsample ladder.
	// The deepest level has no residual; its entry is kept so the slice
	// lines up with the levels.
	MipWeights []float32 `toml:"mip_weights"`
}

// DefaultBloomConfig returns a five-level bloom.
func DefaultBloomConfig() BloomConfig {
	return BloomConfig{
		Threshold:  0.8,
		Intensity:  1.0,
		Strength:   0.6,
		Exposure:   1.0,
		Radius:     1.0,
		MipLevels:  5,
		MipWeights: []float32{1.0, 0.8, 0.6, 0.4, 0.2},
	}
}

// Clone returns a copy that shares no memory with c.
func (c BloomConfig) Clone() BloomConfig {
	c.MipWeights = append([]float32(nil), c.MipWeights...)
	return c
}

// Validate checks parameter ranges and the weight count.
func (c BloomConfig) Validate() error {
	checks := []struct {
		name string
		v    float32
		ok   bool
	}{
		{"threshold", c.Threshold, c.Threshold >= 0},
		{"intensity", c.Intensity, c.Intensity >= 0},
		{"strength", c.Strength, c.Strength >= 0},
		{"exposure", c.Exposure, c.Exposure > 0},
		{"radius", c.Radius, c.Radius > 0},
	}
	for _, ch := range checks {
		if !ch.ok || math.IsNaN(float64(ch.v)) {
			return fmt.Errorf("bloom %s %v: %w", ch.name, ch.v, ErrRange)
		}
	}
	if c.MipLevels < 1 || c.MipLevels > MaxMipLevels {
		return fmt.Errorf("bloom mip levels %d not in [1,%d]: %w", c.MipLevels, MaxMipLevels, ErrRange)
	}
	if len(c.MipWeights) != c.MipLevels {
		return fmt.Errorf("bloom has %d mip levels but %d weights: %w", c.MipLevels, len(c.MipWeights), ErrMipWeights)
	}
	for k, w := range c.MipWeights {
		if w < 0 || math.IsNaN(float64(w)) {
			return fmt.Errorf("bloom mip weight %d = %v: %w", k, w, ErrRange)
		}
	}
	return nil
}

// MipSize returns the dimensions of mip level k of a width x height chain.
func MipSize(width, height, k int) (int, int) {
	return max(1, width>>k), max(1, height>>k)
}

// Tap is one filter sample, offset in texels from the centre.
type Tap struct {
	Offset mgl32.Vec2
	Weight float32
}

// DownsampleTaps is the 13-tap box filter of the downsample ladder. The
// relative weights are 0.196 centre, 0.098 axis, 0.049 diagonal and 0.024
// at twice the axis distance, normalized to sum to one.
var DownsampleTaps = normalize([13]Tap{
	{mgl32.Vec2{0, 0}, 0.196},
	{mgl32.Vec2{1, 0}, 0.098}, {mgl32.Vec2{-1, 0}, 0.098}, {mgl32.Vec2{0, 1}, 0.098}, {mgl32.Vec2{0, -1}, 0.098},
	{mgl32.Vec2{1, 1}, 0.049}, {mgl32.Vec2{-1, 1}, 0.049}, {mgl32.Vec2{1, -1}, 0.049}, {mgl32.Vec2{-1, -1}, 0.049},
	{mgl32.Vec2{2, 0}, 0.024}, {mgl32.Vec2{-2, 0}, 0.024}, {mgl32.Vec2{0, 2}, 0.024}, {mgl32.Vec2{0, -2}, 0.024},
})

// UpsampleTaps is the 9-tap tent of the upsample ladder.
var UpsampleTaps = [9]Tap{
	{mgl32.Vec2{0, 0}, 0.25},
	{mgl32.Vec2{1, 0}, 0.125}, {mgl32.Vec2{-1, 0}, 0.125}, {mgl32.Vec2{0, 1}, 0.125}, {mgl32.Vec2{0, -1}, 0.125},
	{mgl32.Vec2{1, 1}, 0.0625}, {mgl32.Vec2{-1, 1}, 0.0625}, {mgl32.Vec2{1, -1}, 0.0625}, {mgl32.Vec2{-1, -1}, 0.0625},
}

func normalize(taps [13]Tap) [13]Tap {
	var sum float32
	for _, t := range taps {
		sum += t.Weight
	}
	for i := range taps {
		taps[i].Weight /= sum
	}
	return taps
}

// tapArrays flattens taps into the offset and weight arrays the shaders declare.
func tapArrays(taps []Tap) (offsets, weights []float32) {
	offsets = make([]float32, 0, 2*len(taps))
	weights = make([]float32, 0, len(taps))
	for _, t := range taps {
		offsets = append(offsets, t.Offset[0], t.Offset[1])
		weights = append(weights, t.Weight)
	}
	return offsets, weights
}
