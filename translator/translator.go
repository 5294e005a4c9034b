// Package translator adapts goshadertranslator to shader.Translator so
// sources authored in the WebGL2 / GLSL ES 3.00 dialect run on desktop GL.
package translator

import (
	"context"
	"fmt"
	"sync"

	"github.com/richinsley/goshaderfx/shader"
	gst "github.com/richinsley/goshadertranslator"
)

// The underlying translator boots a wasm runtime; share one per process.
var (
	sharedOnce sync.Once
	shared     *gst.ShaderTranslator
	sharedErr  error
)

func getShared() (*gst.ShaderTranslator, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = gst.NewShaderTranslator(context.Background())
	})
	return shared, sharedErr
}

// Translator converts ES 3.00 sources to GLSL 4.10, or to ESSL when the
// target context is GLES.
type Translator struct {
	t    *gst.ShaderTranslator
	gles bool
}

var _ shader.Translator = (*Translator)(nil)

// New returns a translator targeting desktop GL or GLES.
func New(gles bool) (*Translator, error) {
	t, err := getShared()
	if err != nil {
		return nil, fmt.Errorf("failed to start shader translator: %w", err)
	}
	return &Translator{t: t, gles: gles}, nil
}

// Translate implements shader.Translator.
func (tr *Translator) Translate(code string, stage shader.Stage) (string, map[string]string, error) {
	output := gst.OutputFormatGLSL410
	if tr.gles {
		output = gst.OutputFormatESSL
	}
	res, err := tr.t.TranslateShader(code, stage.String(), gst.ShaderSpecWebGL2, output)
	if err != nil {
		return "", nil, fmt.Errorf("%s shader translation failed: %w", stage, err)
	}
	names := make(map[string]string, len(res.Variables))
	for name, v := range res.Variables {
		names[name] = v.MappedName
	}
	return res.Code, names, nil
}
