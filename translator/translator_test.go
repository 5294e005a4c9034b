package translator

import (
	"testing"

	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const esFragment = `#version 300 es
precision highp float;
uniform float time;
uniform sampler2D pass0Texture;
in vec2 frag_uv;
out vec4 fragColor;
void main() {
    fragColor = texture(pass0Texture, frag_uv) * time;
}
`

func TestTranslateMapsUniformNames(t *testing.T) {
	tr, err := New(false)
	require.NoError(t, err)

	code, names, err := tr.Translate(esFragment, shader.Fragment)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Contains(t, names, "time")
	assert.Contains(t, names, "pass0Texture")
}

func TestTranslateRejectsInvalidSource(t *testing.T) {
	tr, err := New(false)
	require.NoError(t, err)

	_, _, err = tr.Translate("#version 300 es\nvoid main() { undefined_call(); }\n", shader.Fragment)
	require.Error(t, err)
}

func TestTranslatorIsShared(t *testing.T) {
	a, err := New(false)
	require.NoError(t, err)
	b, err := New(true)
	require.NoError(t, err)
	assert.Same(t, a.t, b.t)
}

func TestTranslateEmbeddedSceneSources(t *testing.T) {
	tr, err := New(false)
	require.NoError(t, err)
	l := shader.NewLoader(shaders.Reader(), shader.WithTranslator(tr))
	require.Equal(t, shader.TranslateRoot, l.Root())

	vs, err := l.Load(shaders.FullscreenVertex, shader.Vertex)
	require.NoError(t, err)
	assert.NotContains(t, vs.Code, "#version 300 es")

	fs, err := l.Load(shaders.ScenePlasma, shader.Fragment)
	require.NoError(t, err)
	assert.NotContains(t, fs.Code, "#version 300 es")
	assert.NotEmpty(t, fs.UniformName("time"))
}
