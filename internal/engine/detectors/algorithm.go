package detectors

import (
	"fmt"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleDuplicateBlock = "duplicate-block"

// Algorithm finds statement blocks that repeat the same logic inside one
// file, ignoring identifier names and literal values.
type Algorithm struct {
	accumulator
	cfg config.Algorithm
}

type blockRef struct {
	fn    int
	start int
}

func NewAlgorithm(cfg config.Algorithm) *Algorithm {
	return &Algorithm{cfg: cfg}
}

func (d *Algorithm) Category() analysis.Category { return analysis.CategoryAlgorithm }

func (d *Algorithm) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	size := d.cfg.MinBlockStatements
	seen := make(map[uint64]blockRef)
	reported := make(map[[2]int]bool)

	for fi, fn := range file.Functions {
		for start, fp := range fn.BlockFingerprints(size) {
			first, ok := seen[fp]
			if !ok {
				seen[fp] = blockRef{fn: fi, start: start}
				continue
			}
			if first.fn == fi && start < first.start+size {
				continue
			}
			pair := [2]int{first.fn, fi}
			if reported[pair] {
				continue
			}
			reported[pair] = true

			orig := file.Functions[first.fn]
			loc := parser.Location{Line: fn.StatementLines[start], Column: 1}
			v := analysis.NewViolation(RuleDuplicateBlock, analysis.CategoryAlgorithm, analysis.SeverityMedium, d.location(file, loc))
			v.Entity = fn.QualifiedName()
			v.Description = fmt.Sprintf("%d statements in %s repeat the logic at line %d in %s",
				size, fn.QualifiedName(), orig.StatementLines[first.start], orig.QualifiedName())
			v.Recommendation = "Extract the shared block into one function so the algorithm lives in a single place."
			v.Confidence = 0.85
			v.Context = map[string]any{
				"statements":     size,
				"duplicate_of":   orig.QualifiedName(),
				"duplicate_line": orig.StatementLines[first.start],
			}
			d.add(v)
		}
	}
	return d.results(), nil
}
