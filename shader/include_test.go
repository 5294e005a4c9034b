package shader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessResolvesNestedIncludes(t *testing.T) {
	fsys := fstest.MapFS{
		"gl410/main.fs":          {Data: []byte("#version 410 core\n#include \"lib/color.glsl\"\nvoid main() {}\n")},
		"gl410/lib/color.glsl":   {Data: []byte("// #include \"lib/luma.glsl\"\nvec3 tint;\n")},
		"gl410/lib/luma.glsl":    {Data: []byte("float luma(vec3 c) { return c.g; }")},
		"gles300/lib/color.glsl": {Data: []byte("wrong dialect")},
	}
	code, err := Preprocess(FSReader(fsys), "gl410", "main.fs")
	require.NoError(t, err)

	assert.Equal(t, "#version 410 core\nfloat luma(vec3 c) { return c.g; }\nvec3 tint;\nvoid main() {}\n", code)
	assert.NotContains(t, code, "#include")
	assert.NotContains(t, code, "wrong dialect")
}

func TestPreprocessMissingIncludeNamesPath(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.fs": {Data: []byte("#include \"nope.glsl\"\n")},
	}
	_, err := Preprocess(FSReader(fsys), "root", "a.fs")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "root/nope.glsl")
	assert.Contains(t, err.Error(), "root/a.fs:1")

	_, err = Preprocess(FSReader(fsys), "root", "missing.fs")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "root/missing.fs")
}

func TestPreprocessCycleHitsDepthLimit(t *testing.T) {
	fsys := fstest.MapFS{
		"r/a.glsl": {Data: []byte("#include \"b.glsl\"\n")},
		"r/b.glsl": {Data: []byte("#include \"a.glsl\"\n")},
	}
	_, err := Preprocess(FSReader(fsys), "r", "a.glsl")
	require.ErrorIs(t, err, ErrIncludeDepth)
}

func TestPreprocessDepthBoundary(t *testing.T) {
	chain := func(n int) fstest.MapFS {
		fsys := fstest.MapFS{}
		for i := 0; i < n; i++ {
			fsys[fmt.Sprintf("r/%d.glsl", i)] = &fstest.MapFile{Data: []byte(fmt.Sprintf("#include \"%d.glsl\"\n", i+1))}
		}
		fsys[fmt.Sprintf("r/%d.glsl", n)] = &fstest.MapFile{Data: []byte("leaf\n")}
		return fsys
	}

	code, err := Preprocess(FSReader(chain(MaxIncludeDepth)), "r", "0.glsl")
	require.NoError(t, err)
	assert.Equal(t, "leaf\n", code)

	_, err = Preprocess(FSReader(chain(MaxIncludeDepth+1)), "r", "0.glsl")
	require.ErrorIs(t, err, ErrIncludeDepth)
}

func TestOSReader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gl410"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gl410", "x.fs"), []byte("void main() {}\n"), 0o644))

	read := OSReader(dir)
	b, ok := read("gl410/x.fs")
	require.True(t, ok)
	assert.Equal(t, "void main() {}\n", string(b))

	_, ok = read("gl410/y.fs")
	assert.False(t, ok)
}

type upperTranslator struct{ err error }

func (u upperTranslator) Translate(code string, stage Stage) (string, map[string]string, error) {
	if u.err != nil {
		return "", nil, u.err
	}
	return strings.ReplaceAll(code, "speed", "_uspeed"), map[string]string{"speed": "_uspeed"}, nil
}

func TestLoaderTranslatesAndMapsNames(t *testing.T) {
	fsys := fstest.MapFS{
		"custom/p.fs": {Data: []byte("uniform float speed;\n")},
	}
	l := NewLoader(FSReader(fsys), WithRoot("custom"), WithTranslator(upperTranslator{}))
	assert.Equal(t, "custom", l.Root())

	src, err := l.Load("p.fs", Fragment)
	require.NoError(t, err)
	assert.Equal(t, "p.fs", src.Path)
	assert.Equal(t, "uniform float _uspeed;\n", src.Code)
	assert.Equal(t, "_uspeed", src.UniformName("speed"))
	assert.Equal(t, "time", src.UniformName("time"))

	l = NewLoader(FSReader(fsys), WithRoot("custom"), WithTranslator(upperTranslator{err: fmt.Errorf("boom")}))
	_, err = l.Load("p.fs", Fragment)
	require.Error(t, err)
}

func TestLoaderDefaultsToDialectRoot(t *testing.T) {
	l := NewLoader(nil)
	assert.Equal(t, Root, l.Root())
	_, err := l.Load("anything.fs", Fragment)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTranslatingLoaderReadsESTree(t *testing.T) {
	fsys := fstest.MapFS{
		"gl410/p.fs":   {Data: []byte("#version 410 core\nuniform float speed;\n")},
		"gles300/p.fs": {Data: []byte("#version 300 es\nuniform float speed;\n")},
	}
	l := NewLoader(FSReader(fsys), WithTranslator(upperTranslator{}))
	assert.Equal(t, TranslateRoot, l.Root())
	src, err := l.Load("p.fs", Fragment)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src.Code, "#version 300 es"), src.Code)

	// an explicit root wins regardless of option order
	l = NewLoader(FSReader(fsys), WithRoot("gl410"), WithTranslator(upperTranslator{}))
	assert.Equal(t, "gl410", l.Root())
}
