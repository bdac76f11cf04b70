package parser

import (
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

func pythonLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if got := pool.Stats().Active; got != 1 {
		t.Fatalf("expected 1 active lease, got %d", got)
	}
	pool.Put(sp)
	if got := pool.Stats().Active; got != 0 {
		t.Fatalf("expected no active leases after Put, got %d", got)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(pythonLanguage())
	pool.Put(nil)
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	const goroutines = 16
	const iters = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	src := []byte("def run(a, b):\n    return a + b\n")
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				sp := pool.Get()
				tree := sp.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
				} else {
					if tree.RootNode().HasError() {
						t.Errorf("unexpected syntax error")
					}
					tree.Close()
				}
				pool.Put(sp)
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	if stats.Active != 0 {
		t.Fatalf("expected all leases returned, got %d", stats.Active)
	}
	if stats.Created < 1 {
		t.Fatalf("expected at least one parser created, got %d", stats.Created)
	}
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := NewParserPool(pythonLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp2 := pool.Get()
	defer pool.Put(sp2)
	tree := sp2.Parse([]byte("x = 1\n"), nil)
	if tree == nil {
		t.Fatal("parser should still parse after Reset")
	}
	defer tree.Close()
}
