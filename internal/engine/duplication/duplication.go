// Package duplication runs the project-wide duplicate logic scan. It sees
// every parsed file of a run at once, after the per-file barrier, and reports
// statement blocks that reappear in a different file. Repeats inside a single
// file belong to the Algorithm detector.
package duplication

import (
	"fmt"
	"sort"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleCrossFileDuplicate = "cross-file-duplicate"

type Scanner struct {
	enabled bool
	size    int
}

type occurrence struct {
	file  int
	fn    int
	start int
}

type pairKey struct {
	a, b occurrence
}

func New(cfg config.Duplication) *Scanner {
	size := cfg.MinBlockStatements
	if size <= 0 {
		size = config.Default().Duplication.MinBlockStatements
	}
	return &Scanner{enabled: config.Enabled(cfg.Enabled), size: size}
}

// Scan reports one violation per pair of functions in different files that
// share a block of at least min_block_statements normalized statements. The
// first occurrence, in path order, is the original; the violation is placed
// on the later copy.
func (s *Scanner) Scan(files []*parser.File) []analysis.Violation {
	if !s.enabled {
		return nil
	}
	sorted := make([]*parser.File, 0, len(files))
	for _, f := range files {
		if f != nil && len(f.Functions) > 0 {
			sorted = append(sorted, f)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	first := make(map[uint64]occurrence)
	reported := make(map[pairKey]bool)
	var out []analysis.Violation

	for fi, file := range sorted {
		for fn, function := range file.Functions {
			for start, fp := range function.BlockFingerprints(s.size) {
				orig, ok := first[fp]
				if !ok {
					first[fp] = occurrence{file: fi, fn: fn, start: start}
					continue
				}
				if orig.file == fi {
					continue
				}
				key := pairKey{
					a: occurrence{file: orig.file, fn: orig.fn},
					b: occurrence{file: fi, fn: fn},
				}
				if reported[key] {
					continue
				}
				reported[key] = true
				out = append(out, s.violation(sorted, orig, occurrence{file: fi, fn: fn, start: start}))
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	return out
}

func (s *Scanner) violation(files []*parser.File, orig, dup occurrence) analysis.Violation {
	origFile, dupFile := files[orig.file], files[dup.file]
	origFn, dupFn := origFile.Functions[orig.fn], dupFile.Functions[dup.fn]
	origLine := origFn.StatementLines[orig.start]

	loc := analysis.Location{File: dupFile.Path, Line: dupFn.StatementLines[dup.start], Column: 1}
	v := analysis.NewViolation(RuleCrossFileDuplicate, analysis.CategoryAlgorithm, analysis.SeverityMedium, loc)
	v.Entity = dupFn.QualifiedName()
	v.Description = fmt.Sprintf("%d statements in %s repeat the logic of %s at %s:%d",
		s.size, dupFn.QualifiedName(), origFn.QualifiedName(), origFile.Path, origLine)
	v.Recommendation = "Move the shared algorithm into one module and call it from both places."
	v.Confidence = 0.8
	v.Context = map[string]any{
		"statements":     s.size,
		"duplicate_of":   origFn.QualifiedName(),
		"duplicate_file": origFile.Path,
		"duplicate_line": origLine,
	}
	return v
}
