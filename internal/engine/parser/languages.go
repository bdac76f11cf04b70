package parser

import (
	"sort"
	"strings"

	"connascence/internal/core/config"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// LanguageSpec binds a language id to its grammar, file extensions and
// extraction dialect.
type LanguageSpec struct {
	ID               string
	Extensions       []string
	TestFilePatterns []string
	grammar          func() *sitter.Language
	dialect          func() *dialect
}

func defaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:               "go",
			Extensions:       []string{".go"},
			TestFilePatterns: []string{"*_test.go"},
			grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_go.Language()) },
			dialect:          goDialect,
		},
		{
			ID:               "javascript",
			Extensions:       []string{".js", ".jsx", ".mjs", ".cjs"},
			TestFilePatterns: []string{"*.test.js", "*.spec.js", "*.test.jsx", "*.spec.jsx"},
			grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_javascript.Language()) },
			dialect:          func() *dialect { return javascriptDialect("javascript") },
		},
		{
			ID:               "python",
			Extensions:       []string{".py"},
			TestFilePatterns: []string{"test_*.py", "*_test.py"},
			grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_python.Language()) },
			dialect:          pythonDialect,
		},
		{
			ID:               "tsx",
			Extensions:       []string{".tsx"},
			TestFilePatterns: []string{"*.test.tsx", "*.spec.tsx"},
			grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()) },
			dialect:          func() *dialect { return javascriptDialect("tsx") },
		},
		{
			ID:               "typescript",
			Extensions:       []string{".ts", ".mts", ".cts"},
			TestFilePatterns: []string{"*.test.ts", "*.spec.ts"},
			grammar:          func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) },
			dialect:          func() *dialect { return javascriptDialect("typescript") },
		},
	}
}

// ResolveLanguages applies config overrides to the built-in language table.
// A language with enabled=false is dropped; non-empty extensions replace the
// defaults.
func ResolveLanguages(overrides map[string]config.Language) []LanguageSpec {
	specs := defaultLanguages()
	out := make([]LanguageSpec, 0, len(specs))
	for _, spec := range specs {
		override, ok := overrides[spec.ID]
		if ok {
			if !config.Enabled(override.Enabled) {
				continue
			}
			if len(override.Extensions) > 0 {
				spec.Extensions = append([]string(nil), override.Extensions...)
			}
		}
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
