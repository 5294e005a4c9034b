package shader

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// MaxIncludeDepth caps #include nesting so cycles terminate.
const MaxIncludeDepth = 10

// matches `#include "x"` and the commented `// #include "x"` form editors
// leave alone
var includeLine = regexp.MustCompile(`^\s*(?://\s*)?#include\s+"([^"]+)"\s*$`)

// Preprocess reads file (relative to root) and splices in every include,
// recursively. Include paths are relative to root as well.
func Preprocess(read FileReader, root, file string) (string, error) {
	var b strings.Builder
	if err := expand(read, root, file, 0, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func expand(read FileReader, root, file string, depth int, out *strings.Builder) error {
	if depth > MaxIncludeDepth {
		return fmt.Errorf("%w: %q nested more than %d levels", ErrIncludeDepth, file, MaxIncludeDepth)
	}
	full := path.Join(root, file)
	data, ok := read(full)
	if !ok {
		if depth == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, full)
		}
		return fmt.Errorf("%w: include %s", ErrNotFound, full)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i, ln := range lines {
		if m := includeLine.FindStringSubmatch(ln); m != nil {
			if err := expand(read, root, m[1], depth+1, out); err != nil {
				return fmt.Errorf("%s:%d: %w", full, i+1, err)
			}
			continue
		}
		out.WriteString(ln)
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}
	if !strings.HasSuffix(out.String(), "\n") {
		out.WriteByte('\n')
	}
	return nil
}
