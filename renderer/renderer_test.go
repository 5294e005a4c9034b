package renderer

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/graphics/graphicstest"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	width, height int
	now           float64
	closeAfter    int
	frames        int
	shutdown      bool
	mouse         [4]float32
}

func (c *fakeContext) MakeCurrent()                   {}
func (c *fakeContext) Shutdown()                      { c.shutdown = true }
func (c *fakeContext) ShouldClose() bool              { return c.closeAfter > 0 && c.frames >= c.closeAfter }
func (c *fakeContext) EndFrame()                      { c.frames++; c.now += 1.0 / 60 }
func (c *fakeContext) GetFramebufferSize() (int, int) { return c.width, c.height }
func (c *fakeContext) Time() float64                  { return c.now }
func (c *fakeContext) GetMouseInput() [4]float32      { return c.mouse }
func (c *fakeContext) IsGLES() bool                   { return false }

var red = mgl32.Vec4{1, 0, 0, 1}

func sceneDevice() *graphicstest.Device {
	dev := graphicstest.NewDevice()
	dev.Handle(shaders.ScenePlasma, func(f *graphicstest.Fragment) mgl32.Vec4 { return red })
	dev.Handle(shaders.SceneTrails, func(f *graphicstest.Fragment) mgl32.Vec4 {
		return f.Sample("pass0Texture", f.UV)
	})
	dev.Handle(shaders.BCS, func(f *graphicstest.Fragment) mgl32.Vec4 {
		c := f.Sample("inputTexture", f.UV)
		b := f.Float("brightness")
		return mgl32.Vec4{c[0] + b, c[1] + b, c[2] + b, c[3]}
	})
	dev.Handle(shaders.Blit, func(f *graphicstest.Fragment) mgl32.Vec4 {
		c := f.Sample("inputTexture", f.UV)
		return mgl32.Vec4{c[0], c[1], c[2], 1}
	})
	return dev
}

func testProfile() config.Profile {
	p := config.Default()
	p.Bloom.Enabled = false
	p.BCS.Enabled = false
	return p
}

func newRenderer(t *testing.T, dev *graphicstest.Device, ctx *fakeContext, p config.Profile) *Renderer {
	t.Helper()
	r, err := New(ctx, dev, p)
	require.NoError(t, err)
	return r
}

func requireScreen(t *testing.T, dev *graphicstest.Device, want mgl32.Vec4) {
	t.Helper()
	pix, _, _, ok := dev.Screen()
	require.True(t, ok, "nothing presented")
	for i, p := range pix {
		if !p.ApproxEqualThreshold(want, 1e-2) {
			t.Fatalf("screen pixel %d = %v, want %v", i, p, want)
		}
	}
}

func TestFramePresentsSceneOutput(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 16, height: 8}
	r := newRenderer(t, dev, ctx, testProfile())
	defer r.Shutdown()

	require.NoError(t, r.Frame())
	requireScreen(t, dev, red)
	_, w, h, _ := dev.Screen()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, uint64(1), r.Scene().Pipeline.Frame())
}

func TestEffectsRunBeforeBlit(t *testing.T) {
	dev := sceneDevice()
	p := testProfile()
	p.BCS.Enabled = true
	p.BCS.Brightness = -0.5
	r := newRenderer(t, dev, &fakeContext{width: 8, height: 8}, p)
	defer r.Shutdown()

	require.NoError(t, r.Frame())
	requireScreen(t, dev, mgl32.Vec4{0.5, 0, 0, 1})
}

func TestResizeIsDeferredToNextFrame(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 16, height: 16}
	r := newRenderer(t, dev, ctx, testProfile())
	defer r.Shutdown()

	require.NoError(t, r.Frame())
	ctx.width, ctx.height = 32, 24
	w, h := r.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)

	require.NoError(t, r.Frame())
	w, h = r.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
	pw, ph := r.Scene().Pipeline.Size()
	assert.Equal(t, 32, pw)
	assert.Equal(t, 24, ph)
	requireScreen(t, dev, red)
}

func TestMinimizedWindowKeepsSize(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 16, height: 16}
	r := newRenderer(t, dev, ctx, testProfile())
	defer r.Shutdown()

	ctx.width, ctx.height = 0, 0
	require.NoError(t, r.Frame())
	w, h := r.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)
}

func TestZeroFramebufferUsesProfileSize(t *testing.T) {
	dev := sceneDevice()
	p := testProfile()
	p.Pipeline.Width, p.Pipeline.Height = 20, 10
	r := newRenderer(t, dev, &fakeContext{}, p)
	defer r.Shutdown()

	w, h := r.Size()
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
}

func TestRequestReloadRecompiles(t *testing.T) {
	dev := sceneDevice()
	r := newRenderer(t, dev, &fakeContext{width: 8, height: 8}, testProfile())
	defer r.Shutdown()

	before := dev.Compiles
	require.NoError(t, r.Frame())
	assert.Equal(t, before, dev.Compiles)

	r.RequestReload()
	require.NoError(t, r.Frame())
	// two passes and the blit
	assert.Equal(t, before+3, dev.Compiles)

	require.NoError(t, r.Frame())
	assert.Equal(t, before+3, dev.Compiles, "a request is consumed once")
}

func TestLoadProfileFailureKeepsScene(t *testing.T) {
	dev := sceneDevice()
	r := newRenderer(t, dev, &fakeContext{width: 8, height: 8}, testProfile())
	defer r.Shutdown()

	scene := r.Scene()
	p := testProfile()
	p.Pipeline.Passes = []config.Pass{{Fragment: "missing.fs"}}
	require.Error(t, r.LoadProfile(p))
	assert.Same(t, scene, r.Scene())
	require.NoError(t, r.Frame())
	requireScreen(t, dev, red)
}

func TestLoadProfileRepointsPanels(t *testing.T) {
	dev := sceneDevice()
	r := newRenderer(t, dev, &fakeContext{width: 8, height: 8}, testProfile())
	defer r.Shutdown()
	assert.Equal(t, 3, r.Panels().Len())

	p := testProfile()
	p.Pipeline.Name = "graded"
	p.BCS.Enabled = true
	require.NoError(t, r.LoadProfile(p))
	assert.Equal(t, 3, r.Panels().Len())
	assert.Equal(t, "graded", r.Scene().Name)

	require.NoError(t, r.Frame())
	require.NoError(t, r.Frame())
	var buf bytes.Buffer
	require.NoError(t, r.DumpPanels(&buf))
	assert.Contains(t, buf.String(), "uniforms: graded")
	assert.Contains(t, buf.String(), "bcs on")

	r.TogglePanels()
	buf.Reset()
	require.NoError(t, r.DumpPanels(&buf))
	assert.Empty(t, buf.String())
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 8, height: 8, closeAfter: 3}
	r := newRenderer(t, dev, ctx, testProfile())
	defer r.Shutdown()

	r.Run()
	assert.Equal(t, 3, ctx.frames)
	assert.Equal(t, uint64(3), r.Scene().Pipeline.Frame())
}

func TestShutdownReleasesEverything(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 8, height: 8}
	p := testProfile()
	p.BCS.Enabled = true
	r := newRenderer(t, dev, ctx, p)
	require.NoError(t, r.Frame())

	r.Shutdown()
	assert.Zero(t, dev.LiveSurfaces())
	assert.Zero(t, dev.LivePrograms())
	assert.True(t, ctx.shutdown)
}

// passthroughTranslator records what it is given and returns it unchanged.
type passthroughTranslator struct{ inputs []string }

func (p *passthroughTranslator) Translate(code string, stage shader.Stage) (string, map[string]string, error) {
	p.inputs = append(p.inputs, code)
	return code, nil, nil
}

func TestTranslateLoadsESSources(t *testing.T) {
	dev := sceneDevice()
	tr := &passthroughTranslator{}
	p := testProfile()
	p.Pipeline.Translate = true
	r, err := New(&fakeContext{width: 8, height: 8}, dev, p, WithTranslator(tr))
	require.NoError(t, err)
	defer r.Shutdown()

	require.NotEmpty(t, tr.inputs)
	var vertex, plasma bool
	for _, code := range tr.inputs {
		assert.True(t, strings.HasPrefix(code, "#version 300 es"), "translator fed a non-ES source:\n%s", code)
		vertex = vertex || strings.Contains(code, "// "+shaders.FullscreenVertex)
		plasma = plasma || strings.Contains(code, "// "+shaders.ScenePlasma)
	}
	assert.True(t, vertex, "fullscreen vertex not translated")
	assert.True(t, plasma, "plasma pass not translated")

	require.NoError(t, r.Frame())
	requireScreen(t, dev, red)
}

func TestMissingBlitShaderFailsNew(t *testing.T) {
	dev := sceneDevice()
	read := func(path string) ([]byte, bool) {
		if filepath.Base(path) == shaders.Blit {
			return nil, false
		}
		return shaders.Reader()(path)
	}
	_, err := New(&fakeContext{width: 8, height: 8}, dev, testProfile(), WithReader(read))
	require.Error(t, err)
	assert.Zero(t, dev.LiveSurfaces())
	assert.Zero(t, dev.LivePrograms())
}

// copyShaders writes the embedded sources to a directory so they can be
// edited on disk.
func copyShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := fs.WalkDir(shaders.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		data, err := fs.ReadFile(shaders.FS, path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	})
	require.NoError(t, err)
	return dir
}

func TestShaderEditOnDiskReloads(t *testing.T) {
	dir := copyShaders(t)
	dev := sceneDevice()
	p := testProfile()
	p.Pipeline.ShaderDir = dir
	p.Reload.Watch = true
	p.Reload.DebounceMS = 20
	r := newRenderer(t, dev, &fakeContext{width: 8, height: 8}, p)
	defer r.Shutdown()

	require.NoError(t, r.Frame())
	before := dev.Compiles

	plasma := filepath.Join(dir, shader.Root, filepath.FromSlash(shaders.ScenePlasma))
	src, err := os.ReadFile(plasma)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(plasma, append(src, '\n'), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for dev.Compiles == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, r.Frame())
	}
	assert.Greater(t, dev.Compiles, before, "edit on disk did not trigger a reload")
	requireScreen(t, dev, red)
}

type frameRecorder struct {
	frames [][]float32
	sizes  [][2]int
	err    error
}

func (f *frameRecorder) WriteFrame(pix []float32, width, height int) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, pix)
	f.sizes = append(f.sizes, [2]int{width, height})
	return nil
}

func TestFrameSinkReceivesPresentedFrames(t *testing.T) {
	dev := sceneDevice()
	ctx := &fakeContext{width: 4, height: 2}
	r := newRenderer(t, dev, ctx, testProfile())
	defer r.Shutdown()

	sink := &frameRecorder{}
	r.SetFrameSink(sink)
	require.NoError(t, r.Frame())
	ctx.width = 6
	require.NoError(t, r.Frame())

	require.Len(t, sink.frames, 2)
	assert.Equal(t, [][2]int{{4, 2}, {6, 2}}, sink.sizes)
	require.Len(t, sink.frames[1], 6*2*4)
	for i := 0; i < len(sink.frames[1]); i += 4 {
		assert.Equal(t, []float32{1, 0, 0, 1}, sink.frames[1][i:i+4], "pixel %d", i/4)
	}

	sink.err = errors.New("disk full")
	err := r.Frame()
	require.ErrorIs(t, err, sink.err)

	r.SetFrameSink(nil)
	require.NoError(t, r.Frame())
	assert.Len(t, sink.frames, 2)
}

func TestReloadIgnoresDisabledEffect(t *testing.T) {
	dev := sceneDevice()
	read := func(path string) ([]byte, bool) {
		if strings.HasSuffix(path, shaders.BCS) {
			return nil, false
		}
		return shaders.Reader()(path)
	}
	p := testProfile()
	p.BCS.Enabled = true
	r, err := New(&fakeContext{width: 8, height: 8}, dev, p, WithReader(read))
	require.NoError(t, err)
	defer r.Shutdown()
	require.False(t, r.Scene().BCS.Initialized())

	require.NoError(t, r.Reload())
	require.NoError(t, r.Frame())
	requireScreen(t, dev, red)
}
