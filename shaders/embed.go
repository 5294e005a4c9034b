// Package shaders embeds the built-in GLSL sources for both dialects.
//
// Layout: <dialect>/fullscreen.vs, <dialect>/bloom/*.fs, <dialect>/bcs/bcs.fs,
// <dialect>/scene/*.fs and shared snippets under <dialect>/common.
package shaders

import (
	"embed"

	"github.com/richinsley/goshaderfx/shader"
)

//go:embed gl410 gles300
var FS embed.FS

// Reader returns a shader.FileReader over the embedded sources.
func Reader() shader.FileReader {
	return shader.FSReader(FS)
}

// Built-in source paths, relative to the dialect root.
const (
	FullscreenVertex = "fullscreen.vs"
	BloomBright      = "bloom/bright.fs"
	BloomDownsample  = "bloom/downsample.fs"
	BloomUpsample    = "bloom/upsample.fs"
	BloomComposite   = "bloom/composite.fs"
	BCS              = "bcs/bcs.fs"
	ScenePlasma      = "scene/plasma.fs"
	SceneTrails      = "scene/trails.fs"
	Blit             = "blit.fs"
)
