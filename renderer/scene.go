package renderer

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/pipeline"
	"github.com/richinsley/goshaderfx/postfx"
	"github.com/richinsley/goshaderfx/shader"
	"go.uber.org/zap"
)

// sources is where a scene reads and how it preprocesses its shaders.
type sources struct {
	read       shader.FileReader
	root       string
	loaderOpts []shader.LoaderOption
}

// Scene encapsulates the GPU resources of one loaded profile: the pass
// pipeline and the effect chain applied to its output.
type Scene struct {
	Name     string
	Pipeline *pipeline.Manager
	Chain    *postfx.Chain
	// Bloom and BCS are nil when the profile disables them.
	Bloom *postfx.Bloom
	BCS   *postfx.BCS

	logger *zap.Logger
}

// LoadScene builds the pipeline and effects described by profile at the
// given size. Effects that fail to initialize are left passing through;
// a pipeline failure fails the whole load.
func LoadScene(dev graphics.Device, profile config.Profile, width, height int, src sources, logger *zap.Logger) (*Scene, error) {
	cfg, err := profile.Pipeline.Config()
	if err != nil {
		return nil, err
	}
	cfg.Width, cfg.Height = width, height
	filter, err := config.ParseFilter(profile.Pipeline.Filter)
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(dev, cfg,
		pipeline.WithReader(src.read),
		pipeline.WithLoaderOptions(src.loaderOpts...),
		pipeline.WithFilter(filter),
		pipeline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline %q: %w", cfg.Name, err)
	}

	s := &Scene{Name: cfg.Name, Pipeline: pipe, logger: logger}
	fxOpts := []postfx.Option{
		postfx.WithReader(src.read),
		postfx.WithLoaderOptions(src.loaderOpts...),
		postfx.WithVertex(cfg.Vertex),
		postfx.WithLogger(logger),
	}
	var effects []postfx.Effect
	if profile.Bloom.Enabled {
		s.Bloom, err = postfx.NewBloom(dev, profile.Bloom.BloomConfig, fxOpts...)
		if err != nil {
			pipe.Destroy()
			return nil, err
		}
		effects = append(effects, s.Bloom)
	}
	if profile.BCS.Enabled {
		s.BCS, err = postfx.NewBCS(dev, profile.BCS.BCSConfig, fxOpts...)
		if err != nil {
			pipe.Destroy()
			return nil, err
		}
		effects = append(effects, s.BCS)
	}
	s.Chain = postfx.NewChain(logger, effects...)
	s.Chain.Init(width, height)

	logger.Info("scene loaded",
		zap.String("scene", s.Name),
		zap.Int("passes", pipe.PassCount()),
		zap.Int("effects", len(effects)),
		zap.Int("width", width),
		zap.Int("height", height))
	return s, nil
}

// Render runs one frame of the pipeline and returns the final texture
// after effects.
func (s *Scene) Render(fs pipeline.FrameState) (graphics.Texture, error) {
	if err := s.Pipeline.RenderFrame(fs); err != nil {
		return 0, err
	}
	return s.Chain.Apply(s.Pipeline.Output()), nil
}

// Resize resizes the pipeline, then the effects. Effects are only resized
// once the pipeline has valid targets at the new size.
func (s *Scene) Resize(width, height int) error {
	if err := s.Pipeline.Resize(width, height); err != nil {
		return err
	}
	s.Chain.Resize(width, height)
	return nil
}

// Reload recompiles every shader of the scene. A failing part keeps its
// previous programs.
func (s *Scene) Reload() error {
	return errors.Join(s.Pipeline.ReloadShaders(), s.Chain.HotReload())
}

// Destroy releases all GPU resources used by the scene.
func (s *Scene) Destroy() {
	if s == nil {
		return
	}
	s.logger.Debug("destroying scene", zap.String("scene", s.Name))
	s.Chain.Destroy()
	s.Pipeline.Destroy()
}
