package shaders

import (
	"strings"
	"testing"

	"github.com/richinsley/goshaderfx/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSourcesPreprocess(t *testing.T) {
	files := []string{
		FullscreenVertex, BloomBright, BloomDownsample, BloomUpsample,
		BloomComposite, BCS, ScenePlasma, SceneTrails, Blit,
	}
	for _, root := range []string{"gl410", "gles300"} {
		for _, f := range files {
			t.Run(root+"/"+f, func(t *testing.T) {
				code, err := shader.Preprocess(Reader(), root, f)
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(code, "#version"), "version directive must stay first")
				assert.NotContains(t, code, "#include")
				assert.Contains(t, code, "// "+f)
			})
		}
	}
}
