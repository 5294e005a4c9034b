package inspect

import (
	"bytes"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/graphics/graphicstest"
	"github.com/richinsley/goshaderfx/pipeline"
	"github.com/richinsley/goshaderfx/postfx"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type static struct {
	title string
	lines []string
}

func (s static) Title() string   { return s.title }
func (s static) Lines() []string { return s.lines }

func TestRegistryReusesFirstFreeSlot(t *testing.T) {
	var r Registry
	for i := 0; i < MaxPanels; i++ {
		id, err := r.Register(static{title: fmt.Sprint(i)})
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
	_, err := r.Register(static{title: "extra"})
	require.ErrorIs(t, err, ErrRegistryFull)

	require.NoError(t, r.Unregister(5))
	require.NoError(t, r.Unregister(2))
	id, err := r.Register(static{title: "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	id, err = r.Register(static{title: "b"})
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	assert.Equal(t, MaxPanels, r.Len())

	require.ErrorIs(t, r.Unregister(MaxPanels), ErrNoPanel)
	require.ErrorIs(t, r.Unregister(-1), ErrNoPanel)
}

func TestRegistryWriteToSkipsClosedPanels(t *testing.T) {
	var r Registry
	a, _ := r.Register(static{title: "alpha", lines: []string{"one", "two"}})
	b, _ := r.Register(static{title: "beta", lines: []string{"three"}})
	require.NoError(t, r.SetOpen(b, false))

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, fmt.Sprintf("[%d] alpha\n    one\n    two\n", a), buf.String())

	r.Toggle()
	buf.Reset()
	_, _ = r.WriteTo(&buf)
	assert.Empty(t, buf.String())

	r.Toggle()
	buf.Reset()
	_, _ = r.WriteTo(&buf)
	assert.Contains(t, buf.String(), "beta")
}

func testManager(t *testing.T) (*pipeline.Manager, *graphicstest.Device) {
	t.Helper()
	dev := graphicstest.NewDevice()
	dev.Handle("test/solid.fs", func(f *graphicstest.Fragment) mgl32.Vec4 { return mgl32.Vec4{1, 1, 1, 1} })
	dev.Handle("test/feedback.fs", func(f *graphicstest.Fragment) mgl32.Vec4 { return f.Sample("pass1Texture", f.UV) })
	fsys := fstest.MapFS{
		"t/q.vs":        {Data: []byte("#version 410 core\nvoid main() {}\n")},
		"t/solid.fs":    {Data: []byte("// test/solid.fs\nuniform float gain;\n")},
		"t/feedback.fs": {Data: []byte("// test/feedback.fs\nuniform sampler2D pass0Texture;\nuniform sampler2D pass1Texture;\n")},
	}
	m, err := pipeline.New(dev, pipeline.Config{
		Name:     "demo",
		Vertex:   "q.vs",
		Passes:   pipeline.Fragments("solid.fs", "feedback.fs"),
		Uniforms: []uniform.Def{{Name: "gain", Value: uniform.Float(0.25)}},
		Width:    4,
		Height:   4,
	}, pipeline.WithReader(shader.FSReader(fsys)), pipeline.WithLoaderOptions(shader.WithRoot("t")))
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	return m, dev
}

func TestPassBindingsDescribeStablePair(t *testing.T) {
	m, dev := testManager(t)
	panel := NewPassBindings(m)
	assert.Equal(t, "passes: demo", panel.Title())
	assert.Equal(t, []string{"waiting for a stable frame pair"}, panel.Lines())

	require.NoError(t, m.RenderFrame(pipeline.FrameState{}))
	require.NoError(t, m.RenderFrame(pipeline.FrameState{}))

	lines := panel.Lines()
	require.Len(t, lines, 1+1+1+2)
	assert.Equal(t, "frames 0/1", lines[0])
	assert.Contains(t, lines[1], "pass 0 solid.fs")
	assert.Contains(t, lines[2], "pass 1 feedback.fs")

	// frame 1's draw of pass 1 is the last draw
	last := dev.Draws[len(dev.Draws)-1]
	require.Equal(t, "test/feedback.fs", last.Kernel)
	bound := make(map[graphics.Texture]bool)
	for _, tex := range last.Units {
		bound[tex] = true
	}
	pass0, pass1 := m.Pair(0).Read.Color, m.Pair(1).Write.Color
	require.True(t, bound[pass0], "pass0Texture not bound in frame 1")
	require.True(t, bound[pass1], "pass1Texture not bound in frame 1")
	assert.Equal(t, fmt.Sprintf("  frame 1: pass0Texture <- tex %d (pass 0, current frame)", pass0), lines[3])
	assert.Equal(t, fmt.Sprintf("  frame 1: pass1Texture <- tex %d (pass 1, previous frame)", pass1), lines[4])
}

func TestUniformsPanel(t *testing.T) {
	m, _ := testManager(t)
	lines := NewUniforms(m).Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "gain")
	assert.Contains(t, lines[0], "0.25")
	assert.Len(t, lines, 6)
}

func TestEffectsPanel(t *testing.T) {
	dev := graphicstest.NewDevice()
	bloom, err := postfx.NewBloom(dev, postfx.DefaultBloomConfig())
	require.NoError(t, err)
	bcs, err := postfx.NewBCS(dev, postfx.DefaultBCSConfig())
	require.NoError(t, err)
	lines := NewEffects(postfx.NewChain(nil, bloom, bcs)).Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "bloom off")
	assert.Contains(t, lines[1], "bcs off")
}
