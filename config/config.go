// Package config reads tuning profiles: which passes the pipeline runs, its
// uniforms, and the bloom and BCS settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/pipeline"
	"github.com/richinsley/goshaderfx/postfx"
	"github.com/richinsley/goshaderfx/shaders"
	"github.com/richinsley/goshaderfx/uniform"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Profile is one TOML tuning file.
type Profile struct {
	Pipeline Pipeline `toml:"pipeline"`
	Bloom    Bloom    `toml:"bloom"`
	BCS      BCS      `toml:"bcs"`
	Reload   Reload   `toml:"reload"`
}

type Pipeline struct {
	Name   string `toml:"name"`
	Vertex string `toml:"vertex"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// Format is rgba32f, rgba16f or rgba8.
	Format string `toml:"format"`
	// Filter is linear or nearest.
	Filter string `toml:"filter"`
	// ShaderDir reads sources from disk instead of the embedded set.
	ShaderDir string `toml:"shader_dir,omitempty"`
	// Translate runs sources through the WebGL2 translator.
	Translate bool      `toml:"translate"`
	Passes    []Pass    `toml:"pass"`
	Uniforms  []Uniform `toml:"uniform"`
}

type Pass struct {
	Fragment      string `toml:"fragment"`
	CurrentInputs []int  `toml:"current_inputs,omitempty"`
}

type Uniform struct {
	Name  string    `toml:"name"`
	Type  string    `toml:"type"`
	Value []float64 `toml:"value"`
}

type Bloom struct {
	Enabled bool `toml:"enabled"`
	postfx.BloomConfig
}

type BCS struct {
	Enabled bool `toml:"enabled"`
	postfx.BCSConfig
}

// Reload configures the shader directory watcher.
type Reload struct {
	Watch      bool `toml:"watch"`
	DebounceMS int  `toml:"debounce_ms"`
}

// Debounce returns the watcher debounce window.
func (r Reload) Debounce() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

// Default is the built-in demo: an animated background with a feedback
// trail, bloom and a neutral grade.
func Default() Profile {
	return Profile{
		Pipeline: Pipeline{
			Name:   "demo",
			Vertex: shaders.FullscreenVertex,
			Width:  1280,
			Height: 720,
			Format: "rgba32f",
			Filter: "linear",
			Passes: []Pass{
				{Fragment: shaders.ScenePlasma},
				{Fragment: shaders.SceneTrails, CurrentInputs: []int{0}},
			},
			Uniforms: []Uniform{
				{Name: "speed", Type: "float", Value: []float64{0.6}},
				{Name: "decay", Type: "float", Value: []float64{0.85}},
			},
		},
		Bloom:  Bloom{Enabled: true, BloomConfig: postfx.DefaultBloomConfig()},
		BCS:    BCS{Enabled: true, BCSConfig: postfx.DefaultBCSConfig()},
		Reload: Reload{Watch: false, DebounceMS: 150},
	}
}

// Parse decodes a profile on top of Default. Unknown keys are an error so
// typos do not silently fall back to defaults.
func Parse(data []byte) (Profile, error) {
	p := Default()
	// tables replace rather than merge with the default lists
	p.Pipeline.Passes = nil
	p.Pipeline.Uniforms = nil
	p.Bloom.MipWeights = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Profile{}, fmt.Errorf("%w: line %d column %d: %s", ErrInvalid, row, col, derr.Error())
		}
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	def := Default()
	if len(p.Pipeline.Passes) == 0 {
		p.Pipeline.Passes = def.Pipeline.Passes
		if p.Pipeline.Uniforms == nil {
			p.Pipeline.Uniforms = def.Pipeline.Uniforms
		}
	}
	if p.Bloom.MipWeights == nil && p.Bloom.MipLevels == def.Bloom.MipLevels {
		p.Bloom.MipWeights = def.Bloom.MipWeights
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Load reads and parses the profile at path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode writes p as TOML.
func (p Profile) Encode() ([]byte, error) {
	return toml.Marshal(p)
}

// Validate checks every section.
func (p Profile) Validate() error {
	if _, err := p.Pipeline.Config(); err != nil {
		return err
	}
	if _, err := ParseFilter(p.Pipeline.Filter); err != nil {
		return err
	}
	if err := p.Bloom.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := p.BCS.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if p.Reload.DebounceMS < 0 {
		return fmt.Errorf("%w: reload debounce_ms %d", ErrInvalid, p.Reload.DebounceMS)
	}
	return nil
}

// Config converts the pipeline section to a pipeline.Config.
func (p Pipeline) Config() (pipeline.Config, error) {
	format, err := ParseFormat(p.Format)
	if err != nil {
		return pipeline.Config{}, err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return pipeline.Config{}, fmt.Errorf("%w: pipeline size %dx%d", ErrInvalid, p.Width, p.Height)
	}
	if len(p.Passes) == 0 || len(p.Passes) > pipeline.MaxPasses {
		return pipeline.Config{}, fmt.Errorf("%w: %d passes, want 1..%d", ErrInvalid, len(p.Passes), pipeline.MaxPasses)
	}
	cfg := pipeline.Config{
		Name:   p.Name,
		Vertex: p.Vertex,
		Width:  p.Width,
		Height: p.Height,
		Format: format,
	}
	if cfg.Vertex == "" {
		cfg.Vertex = shaders.FullscreenVertex
	}
	for i, ps := range p.Passes {
		if ps.Fragment == "" {
			return pipeline.Config{}, fmt.Errorf("%w: pass %d has no fragment shader", ErrInvalid, i)
		}
		for _, j := range ps.CurrentInputs {
			if j < 0 || j >= i {
				return pipeline.Config{}, fmt.Errorf("%w: pass %d: %w: current input %d", ErrInvalid, i, pipeline.ErrPassOrder, j)
			}
		}
		cfg.Passes = append(cfg.Passes, pipeline.Pass{
			Fragment:      ps.Fragment,
			CurrentInputs: append([]int(nil), ps.CurrentInputs...),
		})
	}
	seen := make(map[string]bool, len(p.Uniforms))
	for _, u := range p.Uniforms {
		if u.Name == "" || seen[u.Name] {
			return pipeline.Config{}, fmt.Errorf("%w: uniform name %q empty or repeated", ErrInvalid, u.Name)
		}
		seen[u.Name] = true
		v, err := uniform.Parse(u.Type, u.Value)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: uniform %s: %w", ErrInvalid, u.Name, err)
		}
		cfg.Uniforms = append(cfg.Uniforms, uniform.Def{Name: u.Name, Value: v})
	}
	if len(cfg.Uniforms) > uniform.MaxUniforms {
		return pipeline.Config{}, fmt.Errorf("%w: %d uniforms: %w", ErrInvalid, len(cfg.Uniforms), uniform.ErrTableFull)
	}
	return cfg, nil
}

// ParseFormat maps a profile format name to a graphics.Format. Empty means rgba32f.
func ParseFormat(s string) (graphics.Format, error) {
	switch strings.ToLower(s) {
	case "", "rgba32f":
		return graphics.FormatRGBA32F, nil
	case "rgba16f":
		return graphics.FormatRGBA16F, nil
	case "rgba8":
		return graphics.FormatRGBA8, nil
	}
	return graphics.FormatNone, fmt.Errorf("%w: unknown format %q", ErrInvalid, s)
}

// ParseFilter maps a profile filter name to a graphics.Filter. Empty means linear.
func ParseFilter(s string) (graphics.Filter, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return graphics.FilterLinear, nil
	case "nearest":
		return graphics.FilterNearest, nil
	}
	return graphics.FilterLinear, fmt.Errorf("%w: unknown filter %q", ErrInvalid, s)
}
