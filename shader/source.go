// Package shader loads GLSL sources through an injected reader, resolves
// #include directives and optionally translates between dialects.
package shader

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when a shader or include file cannot be read.
	ErrNotFound = errors.New("shader source not found")
	// ErrIncludeDepth is returned when includes nest deeper than MaxIncludeDepth.
	ErrIncludeDepth = errors.New("include depth exceeded")
)

// FileReader abstracts over the storage backend shader sources come from.
type FileReader func(path string) ([]byte, bool)

// OSReader reads sources from the local filesystem below dir.
func OSReader(dir string) FileReader {
	return func(p string) ([]byte, bool) {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return nil, false
		}
		return b, true
	}
}

// FSReader reads sources from fsys, e.g. an embedded filesystem.
func FSReader(fsys fs.FS) FileReader {
	return func(p string) ([]byte, bool) {
		b, err := fs.ReadFile(fsys, strings.TrimPrefix(path.Clean(p), "/"))
		if err != nil {
			return nil, false
		}
		return b, true
	}
}

// Stage is the pipeline stage a source is compiled for.
type Stage int

const (
	Vertex Stage = iota
	Fragment
)

func (s Stage) String() string {
	if s == Vertex {
		return "vertex"
	}
	return "fragment"
}

// Source is a fully preprocessed shader ready for compilation.
type Source struct {
	Path string
	Code string
	// names maps declared uniform names to the names the driver sees when
	// the source went through a translator.
	names map[string]string
}

// UniformName returns the name to query the driver with for a uniform
// declared as name in the original source.
func (s Source) UniformName(name string) string {
	if mapped, ok := s.names[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
