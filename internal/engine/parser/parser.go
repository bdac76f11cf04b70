// Package parser turns source files into the language-neutral syntax model
// consumed by the detectors, using pooled tree-sitter parsers.
package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/shared/observability"

	"github.com/gobwas/glob"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

type language struct {
	spec    LanguageSpec
	pool    *ParserPool
	dialect *dialect
	tests   []glob.Glob
}

// Parser is safe for concurrent use; its tables are fixed at construction.
type Parser struct {
	languages  map[string]*language
	extensions map[string]string
}

// New builds a parser for the languages enabled in cfg. A nil map enables
// every built-in language with its default extensions.
func New(overrides map[string]config.Language) *Parser {
	p := &Parser{
		languages:  make(map[string]*language),
		extensions: make(map[string]string),
	}
	for _, spec := range ResolveLanguages(overrides) {
		lang := &language{
			spec:    spec,
			pool:    NewParserPool(spec.grammar()),
			dialect: spec.dialect(),
		}
		for _, pattern := range spec.TestFilePatterns {
			if g, err := glob.Compile(pattern); err == nil {
				lang.tests = append(lang.tests, g)
			}
		}
		p.languages[spec.ID] = lang
		for _, ext := range spec.Extensions {
			p.extensions[normalizeExtension(ext)] = spec.ID
		}
	}
	return p
}

// Parse parses content as the language implied by path's extension. Syntax
// errors fail with PARSE_ERROR; the partial tree is never extracted.
func (p *Parser) Parse(path string, content []byte) (file *File, err error) {
	id := p.Language(path)
	lang := p.languages[id]
	if lang == nil {
		return nil, coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeNotSupported, "unsupported language"),
			coreerrors.CtxPath, path,
		)
	}

	start := time.Now()
	defer func() {
		observability.ParseDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	}()

	sp := lang.pool.Get()
	defer lang.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, parseError(path, id, "parser returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := firstErrorPosition(root)
		return nil, parseError(path, id, fmt.Sprintf("syntax error at line %d, column %d", line, col))
	}

	defer func() {
		if r := recover(); r != nil {
			file = nil
			err = parseError(path, id, fmt.Sprintf("extraction failed: %v", r))
		}
	}()
	return newExtractor(lang.dialect, content, path).extract(root), nil
}

func parseError(path, lang, msg string) error {
	err := coreerrors.New(coreerrors.CodeParse, msg)
	err = coreerrors.AddContext(err, coreerrors.CtxPath, path)
	return coreerrors.AddContext(err, coreerrors.CtxLanguage, lang)
}

// firstErrorPosition finds the first ERROR or MISSING node, 1-based.
func firstErrorPosition(n *sitter.Node) (int, int) {
	if n.IsError() || n.IsMissing() {
		pos := n.StartPosition()
		return int(pos.Row) + 1, int(pos.Column) + 1
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorPosition(child)
		}
	}
	pos := n.StartPosition()
	return int(pos.Row) + 1, int(pos.Column) + 1
}

// Language returns the language id for path, or "" when unsupported.
func (p *Parser) Language(path string) string {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.Language(path) != ""
}

func (p *Parser) IsTestFile(path string) bool {
	lang := p.languages[p.Language(path)]
	if lang == nil {
		return false
	}
	base := filepath.Base(path)
	for _, g := range lang.tests {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (p *Parser) SupportedExtensions() []string {
	out := make([]string, 0, len(p.extensions))
	for ext := range p.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// PoolStats reports parser pool usage per language.
func (p *Parser) PoolStats() map[string]PoolStats {
	out := make(map[string]PoolStats, len(p.languages))
	for id, lang := range p.languages {
		out[id] = lang.pool.Stats()
	}
	return out
}
