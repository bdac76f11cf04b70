package parser

import (
	"sync"
	"sync/atomic"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool recycles tree-sitter parsers for one grammar. tree-sitter
// parsers are not safe for concurrent use, so each Get hands out a parser
// owned by the caller until Put.
//
//	sp := pool.Get()
//	defer pool.Put(sp)
//	tree := sp.Parse(source, nil)
type ParserPool struct {
	lang    *sitter.Language
	pool    sync.Pool
	created atomic.Int64

	leases   map[*sitter.Parser]time.Time
	leasesMu sync.Mutex
}

type PoolStats struct {
	Active  int
	Created int64
	// Age of the oldest outstanding lease; zero when none are active.
	OldestLease time.Duration
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{
		lang:   lang,
		leases: make(map[*sitter.Parser]time.Time),
	}
	p.pool = sync.Pool{
		New: func() any {
			p.created.Add(1)
			sp := sitter.NewParser()
			_ = sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)

	p.leasesMu.Lock()
	p.leases[sp] = time.Now()
	p.leasesMu.Unlock()
	return sp
}

// Put resets sp and returns it to the pool. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leasesMu.Lock()
	delete(p.leases, sp)
	p.leasesMu.Unlock()

	sp.Reset()
	p.pool.Put(sp)
}

func (p *ParserPool) Stats() PoolStats {
	p.leasesMu.Lock()
	defer p.leasesMu.Unlock()
	stats := PoolStats{Active: len(p.leases), Created: p.created.Load()}
	now := time.Now()
	for _, since := range p.leases {
		if age := now.Sub(since); age > stats.OldestLease {
			stats.OldestLease = age
		}
	}
	return stats
}
