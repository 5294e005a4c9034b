//go:build !gles

package shader

// Root is the shader directory of the desktop GLSL 4.10 dialect.
const Root = "gl410"

// GLES reports whether this build targets the ES dialect.
const GLES = false
