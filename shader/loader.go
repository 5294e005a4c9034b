package shader

import (
	"fmt"

	"go.uber.org/zap"
)

// Translator rewrites a preprocessed source into the dialect the driver
// accepts. names maps original uniform names to translated ones.
type Translator interface {
	Translate(code string, stage Stage) (translated string, names map[string]string, err error)
}

// TranslateRoot is the directory a translating loader reads from unless a
// root is given: translators take GLSL ES 3.00 input whatever the build.
const TranslateRoot = "gles300"

// Loader turns shader paths into compilable sources.
type Loader struct {
	read       FileReader
	root       string
	rootSet    bool
	translator Translator
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRoot overrides the dialect root directory.
func WithRoot(root string) LoaderOption {
	return func(l *Loader) { l.root, l.rootSet = root, true }
}

// WithTranslator runs every loaded source through t.
func WithTranslator(t Translator) LoaderOption {
	return func(l *Loader) { l.translator = t }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a loader reading through read from the build's dialect
// root, or from TranslateRoot when a translator is configured.
func NewLoader(read FileReader, opts ...LoaderOption) *Loader {
	l := &Loader{read: read, root: Root, logger: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	if l.translator != nil && !l.rootSet {
		l.root = TranslateRoot
	}
	return l
}

// Root returns the directory sources are resolved from.
func (l *Loader) Root() string { return l.root }

// Load reads, preprocesses and (optionally) translates one source.
func (l *Loader) Load(file string, stage Stage) (Source, error) {
	if l.read == nil {
		return Source{}, fmt.Errorf("%w: no file reader for %s", ErrNotFound, file)
	}
	code, err := Preprocess(l.read, l.root, file)
	if err != nil {
		l.logger.Error("shader source load failed", zap.String("path", file), zap.Error(err))
		return Source{}, err
	}
	src := Source{Path: file, Code: code}
	if l.translator != nil {
		translated, names, err := l.translator.Translate(code, stage)
		if err != nil {
			l.logger.Error("shader translation failed", zap.String("path", file), zap.Error(err))
			return Source{}, fmt.Errorf("translate %s: %w", file, err)
		}
		src.Code = translated
		src.names = names
	}
	l.logger.Debug("shader source loaded",
		zap.String("path", file),
		zap.Stringer("stage", stage),
		zap.Int("bytes", len(src.Code)))
	return src, nil
}
