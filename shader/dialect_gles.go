//go:build gles

package shader

// Root is the shader directory of the GLSL ES 3.00 dialect used for
// GLES and web builds.
const Root = "gles300"

// GLES reports whether this build targets the ES dialect.
const GLES = true
