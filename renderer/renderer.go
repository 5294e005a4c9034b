// Package renderer drives the demo: it renders a scene's pipeline, applies
// its effects and blits the result to the window, handling resize and hot
// reload between frames.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/hotreload"
	"github.com/richinsley/goshaderfx/inspect"
	"github.com/richinsley/goshaderfx/pipeline"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/shaders"
	"github.com/richinsley/goshaderfx/translator"
	"go.uber.org/zap"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReader overrides where shaders are read from. By default the
// profile's shader_dir is used, or the embedded sources when it is empty.
func WithReader(read shader.FileReader) Option {
	return func(r *Renderer) { r.read = read }
}

// WithTranslator overrides the translator used when the profile asks for
// translation.
func WithTranslator(t shader.Translator) Option {
	return func(r *Renderer) { r.translator = t }
}

// FrameSink receives every presented frame as RGBA floats, bottom row
// first. encoder.Encoder is one.
type FrameSink interface {
	WriteFrame(pix []float32, width, height int) error
}

type Renderer struct {
	context graphics.Context
	dev     graphics.Device
	logger  *zap.Logger

	read       shader.FileReader
	translator shader.Translator
	src        sources

	profile config.Profile
	scene   *Scene
	blit    *blitter
	panels  inspect.Registry
	panelID []int

	sink FrameSink

	watcher     *hotreload.Watcher
	stopWatcher context.CancelFunc

	reloadRequested atomic.Bool
	width           int
	height          int
	startTime       float64
	lastTime        float64
	lastErr         string
}

// New loads profile into a scene sized to the context's framebuffer.
func New(ctx graphics.Context, dev graphics.Device, profile config.Profile, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		context: ctx,
		dev:     dev,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	if err := r.configureSources(profile); err != nil {
		return nil, err
	}

	r.width, r.height = ctx.GetFramebufferSize()
	if r.width <= 0 || r.height <= 0 {
		r.width, r.height = profile.Pipeline.Width, profile.Pipeline.Height
	}

	scene, err := LoadScene(dev, profile, r.width, r.height, r.src, r.logger)
	if err != nil {
		return nil, err
	}
	vertex := profile.Pipeline.Vertex
	if vertex == "" {
		vertex = shaders.FullscreenVertex
	}
	loader := shader.NewLoader(r.src.read, r.src.loaderOpts...)
	r.blit, err = newBlitter(dev, loader, vertex)
	if err != nil {
		scene.Destroy()
		return nil, err
	}
	r.profile = profile
	r.setScene(scene)

	if profile.Reload.Watch {
		r.startWatcher(profile)
	}

	r.startTime = ctx.Time()
	r.lastTime = 0
	return r, nil
}

func (r *Renderer) configureSources(profile config.Profile) error {
	read := r.read
	switch {
	case read != nil:
	case profile.Pipeline.ShaderDir != "":
		read = shader.OSReader(profile.Pipeline.ShaderDir)
	default:
		read = shaders.Reader()
	}
	root := shader.Root
	loaderOpts := []shader.LoaderOption{shader.WithLogger(r.logger)}
	if profile.Pipeline.Translate {
		if r.translator == nil {
			t, err := translator.New(r.context.IsGLES())
			if err != nil {
				return err
			}
			r.translator = t
		}
		// the translator takes ES 3.00 input on every build
		root = shader.TranslateRoot
		loaderOpts = append(loaderOpts, shader.WithTranslator(r.translator))
	}
	loaderOpts = append(loaderOpts, shader.WithRoot(root))
	r.src = sources{read: read, root: root, loaderOpts: loaderOpts}
	return nil
}

// setScene makes s current and points the debug panels at it.
func (r *Renderer) setScene(s *Scene) {
	for _, id := range r.panelID {
		_ = r.panels.Unregister(id)
	}
	r.panelID = r.panelID[:0]
	r.scene = s
	for _, p := range []inspect.Panel{
		inspect.NewPassBindings(s.Pipeline),
		inspect.NewUniforms(s.Pipeline),
		inspect.NewEffects(s.Chain),
	} {
		id, err := r.panels.Register(p)
		if err != nil {
			r.logger.Warn("debug panel not registered", zap.String("panel", p.Title()), zap.Error(err))
			continue
		}
		r.panelID = append(r.panelID, id)
	}
}

func (r *Renderer) startWatcher(profile config.Profile) {
	dir := profile.Pipeline.ShaderDir
	if dir == "" {
		r.logger.Info("shader watch skipped: shaders are embedded")
		return
	}
	w, err := hotreload.New(filepath.Join(dir, r.src.root),
		hotreload.WithDebounce(profile.Reload.Debounce()),
		hotreload.WithLogger(r.logger))
	if err != nil {
		r.logger.Warn("shader watch disabled", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		_ = w.Stop()
		r.logger.Warn("shader watch disabled", zap.Error(err))
		return
	}
	r.watcher, r.stopWatcher = w, cancel
}

// RequestReload asks for a shader reload at the start of the next frame.
func (r *Renderer) RequestReload() {
	r.reloadRequested.Store(true)
}

// Reload recompiles every program of the scene and the blit. Parts that
// fail keep running their previous programs.
func (r *Renderer) Reload() error {
	err := errors.Join(r.scene.Reload(), r.blit.reload())
	if err != nil {
		r.logger.Warn("shader reload incomplete", zap.Error(err))
		return err
	}
	r.logger.Info("shaders reloaded", zap.String("scene", r.scene.Name))
	return nil
}

// LoadProfile replaces the current scene with one built from profile. The
// current scene is kept if the new one fails to load.
func (r *Renderer) LoadProfile(profile config.Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	s, err := LoadScene(r.dev, profile, r.width, r.height, r.src, r.logger)
	if err != nil {
		return err
	}
	old := r.scene
	r.profile = profile
	r.setScene(s)
	old.Destroy()
	return nil
}

// syncSize resizes the scene when the framebuffer size changed since the
// last frame. A zero size (minimised window) is ignored.
func (r *Renderer) syncSize() {
	w, h := r.context.GetFramebufferSize()
	if w <= 0 || h <= 0 || (w == r.width && h == r.height) {
		return
	}
	if err := r.scene.Resize(w, h); err != nil {
		r.logger.Error("resize failed", zap.Int("width", w), zap.Int("height", h), zap.Error(err))
		return
	}
	r.logger.Debug("resized", zap.Int("width", w), zap.Int("height", h))
	r.width, r.height = w, h
}

// Frame renders and presents one frame. Resize and reload requests are
// handled first so that they never happen mid-frame.
func (r *Renderer) Frame() error {
	r.syncSize()
	reload := r.reloadRequested.Swap(false)
	if r.watcher != nil && r.watcher.Pending() {
		reload = true
	}
	if reload {
		_ = r.Reload()
	}

	now := r.context.Time() - r.startTime
	dt := now - r.lastTime
	r.lastTime = now

	tex, err := r.scene.Render(pipeline.FrameState{
		Time:      float32(now),
		DeltaTime: float32(dt),
		Mouse:     mgl32.Vec4(r.context.GetMouseInput()),
	})
	r.blit.draw(tex, r.width, r.height)
	if err != nil {
		return fmt.Errorf("frame %d: %w", r.scene.Pipeline.Frame(), err)
	}
	if r.sink != nil {
		if err := r.capture(); err != nil {
			return fmt.Errorf("frame %d: %w", r.scene.Pipeline.Frame(), err)
		}
	}
	return nil
}

// SetFrameSink makes every following frame go to sink once presented. A
// nil sink stops capture.
func (r *Renderer) SetFrameSink(sink FrameSink) {
	r.sink = sink
}

func (r *Renderer) capture() error {
	pix, err := r.dev.ReadPixels(0, r.width, r.height)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	return r.sink.WriteFrame(pix, r.width, r.height)
}

// Run renders until the window is closed. Frame errors are logged once per
// distinct message so that a broken scene does not flood the log.
func (r *Renderer) Run() {
	for !r.context.ShouldClose() {
		if err := r.Frame(); err != nil {
			if msg := err.Error(); msg != r.lastErr {
				r.logger.Error("frame failed", zap.Error(err))
				r.lastErr = msg
			}
		} else {
			r.lastErr = ""
		}
		r.context.EndFrame()
	}
}

// TogglePanels shows or hides every debug panel.
func (r *Renderer) TogglePanels() {
	r.panels.Toggle()
}

// DumpPanels writes every open debug panel to w.
func (r *Renderer) DumpPanels(w io.Writer) error {
	_, err := r.panels.WriteTo(w)
	return err
}

func (r *Renderer) Scene() *Scene             { return r.scene }
func (r *Renderer) Panels() *inspect.Registry { return &r.panels }
func (r *Renderer) Profile() config.Profile   { return r.profile }
func (r *Renderer) Size() (int, int)          { return r.width, r.height }

// Shutdown stops the watcher, releases GPU resources and closes the context.
func (r *Renderer) Shutdown() {
	if r.watcher != nil {
		r.stopWatcher()
		if err := r.watcher.Stop(); err != nil {
			r.logger.Warn("shader watcher stop", zap.Error(err))
		}
		r.watcher = nil
	}
	r.blit.destroy()
	r.scene.Destroy()
	r.context.Shutdown()
}
