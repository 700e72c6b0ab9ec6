package profile

import (
	"fmt"
	"path"
	"strings"
)

// Language identifies the toolchain that produced a fuzzer's artifacts.
type Language string

const (
	LangCCpp   Language = "c-cpp"
	LangPython Language = "python"
	LangJVM    Language = "jvm"
)

// languageSpec describes how a language names its fuzzer entrypoint and
// its fuzzer source files.
type languageSpec struct {
	entrypoint string
	marker     string
	extensions []string
}

var languages = map[Language]languageSpec{
	LangCCpp: {
		entrypoint: "LLVMFuzzerTestOneInput",
		marker:     "LLVMFuzzerTestOneInput",
		extensions: []string{".cpp", ".cxx", ".cc", ".c"},
	},
	LangPython: {
		entrypoint: "TestOneInput",
		marker:     "TestOneInput",
		extensions: []string{".py"},
	},
	LangJVM: {
		entrypoint: "fuzzerTestOneInput",
		marker:     "fuzzerTestOneInput",
		extensions: []string{".java", ".kt"},
	},
}

// Languages returns all supported languages.
func Languages() []Language {
	return []Language{LangCCpp, LangPython, LangJVM}
}

// ParseLanguage converts a string to a Language. The empty string is c-cpp.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "cpp", "c++", "c-cpp":
		return LangCCpp, nil
	case "python", "py":
		return LangPython, nil
	case "jvm", "java":
		return LangJVM, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

// String returns the string representation.
func (l Language) String() string {
	return string(l)
}

func (l Language) spec() languageSpec {
	if s, ok := languages[l]; ok {
		return s
	}
	return languages[LangCCpp]
}

// Entrypoint returns the canonical fuzzer entrypoint name.
func (l Language) Entrypoint() string {
	return l.spec().entrypoint
}

// FindEntrypoint returns the entrypoint among names: an exact match on the
// canonical name if present, otherwise the first name containing the
// language's entry marker.
func (l Language) FindEntrypoint(names []string) (string, bool) {
	spec := l.spec()
	for _, n := range names {
		if n == spec.entrypoint {
			return n, true
		}
	}
	for _, n := range names {
		if strings.Contains(n, spec.marker) {
			return n, true
		}
	}
	return "", false
}

// TargetName normalizes a fuzzer source path into the name used to find its
// runtime coverage: the base name with the source extension removed.
func (l Language) TargetName(sourceFile string) string {
	if sourceFile == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(sourceFile, "\\", "/"))
	for _, ext := range l.spec().extensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
