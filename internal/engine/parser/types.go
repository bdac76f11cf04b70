package parser

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// File is the language-neutral syntax model detectors work on. It is built
// once per content hash and shared read-only between detectors.
type File struct {
	Path      string
	Language  string
	LineCount int
	Functions []Function
	Classes   []Class
	Literals  []Literal
	Calls     []Call
	Globals   []Global
	Loops     []Loop
}

type Location struct {
	File   string
	Line   int
	Column int
}

type Function struct {
	Name     string
	Class    string
	Location Location
	EndLine  int
	Params   []Param
	// Direct statements of the body, in source order. Hashes ignore
	// identifier names and literal values.
	StatementHashes []uint64
	StatementLines  []int
	// Receiver of a bare method-call statement, "" for any other statement.
	StatementCalls []string
	MaxNesting     int
	Recursive      bool
	Lines          int
}

// QualifiedName returns Class.Name for methods and Name otherwise.
func (f Function) QualifiedName() string {
	if f.Class == "" {
		return f.Name
	}
	return f.Class + "." + f.Name
}

// PositionalCount counts parameters a caller must pass by position.
func (f Function) PositionalCount() int {
	n := 0
	for _, p := range f.Params {
		if p.Kind == ParamPositional {
			n++
		}
	}
	return n
}

// BlockFingerprints hashes every window of size consecutive statements;
// element i covers statements i through i+size-1.
func (f Function) BlockFingerprints(size int) []uint64 {
	if size <= 0 || len(f.StatementHashes) < size {
		return nil
	}
	out := make([]uint64, 0, len(f.StatementHashes)-size+1)
	buf := make([]byte, 8*size)
	for i := 0; i+size <= len(f.StatementHashes); i++ {
		for j := 0; j < size; j++ {
			binary.LittleEndian.PutUint64(buf[j*8:], f.StatementHashes[i+j])
		}
		out = append(out, xxhash.Sum64(buf))
	}
	return out
}

type ParamKind string

const (
	ParamPositional      ParamKind = "positional"
	ParamKeywordOnly     ParamKind = "keyword_only"
	ParamVariadic        ParamKind = "variadic"
	ParamKeywordVariadic ParamKind = "keyword_variadic"
	ParamReceiver        ParamKind = "receiver"
)

type Param struct {
	Name       string
	Kind       ParamKind
	HasDefault bool
	// Node kind of the default value expression, e.g. "list" or "call".
	DefaultKind string
	DefaultText string
}

type Class struct {
	Name     string
	Location Location
	EndLine  int
	Methods  int
	Fields   []string
	Lines    int
}

type LiteralKind string

const (
	LiteralNumber LiteralKind = "number"
	LiteralString LiteralKind = "string"
)

type Literal struct {
	Kind          LiteralKind
	Value         string
	Location      Location
	Function      string
	InConditional bool
	InComparison  bool
	InConstant    bool
}

type Call struct {
	Name     string
	Receiver string
	Location Location
	Function string
	Args     int
}

// Global is a write to module-level state from inside a function.
type Global struct {
	Name     string
	Function string
	Location Location
}

type Loop struct {
	Function  string
	Location  Location
	Unbounded bool
}
