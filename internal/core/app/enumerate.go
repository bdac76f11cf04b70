package app

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"connascence/internal/core/app/helpers"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/core/ports"

	"github.com/gobwas/glob"
)

type testFileDetector interface {
	IsTestFile(path string) bool
}

// dirEnumerator walks roots and keeps files the parser supports, skipping
// excluded directory and file base names.
type dirEnumerator struct {
	parser       ports.SourceParser
	includeTests bool
	dirGlobs     []glob.Glob
	fileGlobs    []glob.Glob
}

var _ ports.FileEnumerator = (*dirEnumerator)(nil)

// NewEnumerator builds the default file walker. Invalid exclude patterns are
// a CONFIGURATION_ERROR.
func NewEnumerator(p ports.SourceParser, exclude config.Exclude, includeTests bool) (ports.FileEnumerator, error) {
	dirGlobs, err := helpers.CompileGlobs(exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfiguration, "compile exclude patterns")
	}
	fileGlobs, err := helpers.CompileGlobs(exclude.Files, "exclude file")
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfiguration, "compile exclude patterns")
	}
	return &dirEnumerator{
		parser:       p,
		includeTests: includeTests,
		dirGlobs:     dirGlobs,
		fileGlobs:    fileGlobs,
	}, nil
}

// ListFiles returns absolute, sorted, de-duplicated paths. A root that does
// not exist is NOT_FOUND.
func (e *dirEnumerator) ListFiles(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range helpers.UniqueScanRoots(roots) {
		info, err := os.Stat(root)
		if err != nil {
			return nil, coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeNotFound, "analysis root not found"),
				coreerrors.CtxPath, root,
			)
		}
		if !info.IsDir() {
			if e.Accept(root) {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && helpers.MatchAny(e.dirGlobs, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if e.Accept(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, coreerrors.Wrap(ctxErr, coreerrors.CodeTimeout, "file enumeration cancelled")
			}
			return nil, coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeCacheIO, "walk analysis root"),
				coreerrors.CtxPath, root,
			)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Accept applies the file filters to a single path without touching disk.
// Directory excludes are enforced by the walk, not here.
func (e *dirEnumerator) Accept(path string) bool {
	if !e.parser.IsSupportedPath(path) {
		return false
	}
	if !e.includeTests {
		if td, ok := e.parser.(testFileDetector); ok && td.IsTestFile(path) {
			return false
		}
	}
	return !helpers.MatchAny(e.fileGlobs, filepath.Base(path))
}
