package parser

import (
	"testing"

	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
)

func mustParse(t *testing.T, path, code string) *File {
	t.Helper()
	file, err := New(nil).Parse(path, []byte(code))
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", path, err)
	}
	return file
}

func findFunction(t *testing.T, file *File, qualified string) Function {
	t.Helper()
	for _, fn := range file.Functions {
		if fn.QualifiedName() == qualified {
			return fn
		}
	}
	t.Fatalf("function %q not found in %v", qualified, functionNames(file))
	return Function{}
}

func functionNames(file *File) []string {
	names := make([]string, 0, len(file.Functions))
	for _, fn := range file.Functions {
		names = append(names, fn.QualifiedName())
	}
	return names
}

func findLiteral(file *File, value string) (Literal, bool) {
	for _, lit := range file.Literals {
		if lit.Value == value {
			return lit, true
		}
	}
	return Literal{}, false
}

func TestPythonExtraction(t *testing.T) {
	code := `import os

MAX_RETRIES = 5

class Account:
    """Bank account."""
    kind = "basic"

    def __init__(self, owner, balance=0):
        self.owner = owner
        self.balance = balance

    def apply(self, rate, *args, flag=False, **kwargs):
        if self.balance > 10000:
            return self.balance * 0.025
        return rate

def factorial(n):
    if n <= 1:
        return 1
    return factorial(n - 1)

def spin():
    global counter
    while True:
        counter += 1
`
	file := mustParse(t, "bank/account.py", code)

	if file.Language != "python" {
		t.Fatalf("expected python, got %q", file.Language)
	}
	if len(file.Functions) != 4 {
		t.Fatalf("expected 4 functions, got %v", functionNames(file))
	}
	if len(file.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(file.Classes))
	}
	cls := file.Classes[0]
	if cls.Name != "Account" || cls.Methods != 2 {
		t.Errorf("unexpected class: %+v", cls)
	}
	if len(cls.Fields) != 3 {
		t.Errorf("expected fields kind, owner, balance; got %v", cls.Fields)
	}

	apply := findFunction(t, file, "Account.apply")
	kindsSeen := map[ParamKind]int{}
	for _, p := range apply.Params {
		kindsSeen[p.Kind]++
	}
	if apply.PositionalCount() != 1 || kindsSeen[ParamReceiver] != 1 || kindsSeen[ParamKeywordOnly] != 1 ||
		kindsSeen[ParamVariadic] != 1 || kindsSeen[ParamKeywordVariadic] != 1 {
		t.Errorf("unexpected params for apply: %+v", apply.Params)
	}

	ctor := findFunction(t, file, "Account.__init__")
	if ctor.PositionalCount() != 2 {
		t.Errorf("expected 2 positional params for __init__, got %+v", ctor.Params)
	}
	if !ctor.Params[2].HasDefault || ctor.Params[2].DefaultKind != "integer" {
		t.Errorf("expected integer default on balance, got %+v", ctor.Params[2])
	}

	lit, ok := findLiteral(file, "10000")
	if !ok || !lit.InConditional || !lit.InComparison || lit.Function != "Account.apply" {
		t.Errorf("unexpected literal 10000: %+v (found=%v)", lit, ok)
	}
	lit, ok = findLiteral(file, "0.025")
	if !ok || lit.InConditional {
		t.Errorf("unexpected literal 0.025: %+v (found=%v)", lit, ok)
	}
	lit, ok = findLiteral(file, "5")
	if !ok || !lit.InConstant {
		t.Errorf("expected MAX_RETRIES literal to be a constant: %+v", lit)
	}
	if _, ok := findLiteral(file, "Bank account."); ok {
		t.Error("docstrings must not be reported as literals")
	}

	if !findFunction(t, file, "factorial").Recursive {
		t.Error("expected factorial to be recursive")
	}
	if findFunction(t, file, "Account.apply").Recursive {
		t.Error("apply must not be recursive")
	}

	if len(file.Loops) != 1 || !file.Loops[0].Unbounded || file.Loops[0].Function != "spin" {
		t.Errorf("expected one unbounded loop in spin, got %+v", file.Loops)
	}
	if len(file.Globals) != 1 || file.Globals[0].Name != "counter" {
		t.Errorf("expected global counter, got %+v", file.Globals)
	}
	if file.LineCount != 26 {
		t.Errorf("expected 26 lines, got %d", file.LineCount)
	}
}

func TestJavaScriptExtraction(t *testing.T) {
	code := `const TIMEOUT_MS = 5000;
let counter = 0;

class Cache {
  size = 10;
  constructor(store) {
    this.store = store;
  }
  get(key, fallback = null, ...rest) {
    if (key === "admin") {
      return fallback;
    }
    return this.store.get(key);
  }
}

function bump() {
  counter++;
  for (;;) {
    break;
  }
}

const handler = (a, b) => a + b;
`
	file := mustParse(t, "src/cache.js", code)

	if len(file.Functions) != 4 {
		t.Fatalf("expected 4 functions, got %v", functionNames(file))
	}
	findFunction(t, file, "handler")
	get := findFunction(t, file, "Cache.get")
	if get.PositionalCount() != 2 {
		t.Errorf("expected 2 positional params, got %+v", get.Params)
	}
	if get.Params[1].DefaultKind != "null" || get.Params[2].Kind != ParamVariadic {
		t.Errorf("unexpected params: %+v", get.Params)
	}

	cls := file.Classes[0]
	if cls.Name != "Cache" || cls.Methods != 2 || len(cls.Fields) != 2 {
		t.Errorf("unexpected class: %+v", cls)
	}

	lit, ok := findLiteral(file, "admin")
	if !ok || lit.Kind != LiteralString || !lit.InConditional || !lit.InComparison {
		t.Errorf("unexpected literal admin: %+v", lit)
	}
	lit, ok = findLiteral(file, "5000")
	if !ok || !lit.InConstant {
		t.Errorf("expected TIMEOUT_MS to be a constant: %+v", lit)
	}

	if len(file.Globals) != 1 || file.Globals[0].Name != "counter" || file.Globals[0].Function != "bump" {
		t.Errorf("expected counter mutation in bump, got %+v", file.Globals)
	}
	if len(file.Loops) != 1 || !file.Loops[0].Unbounded {
		t.Errorf("expected unbounded for(;;), got %+v", file.Loops)
	}

	var found bool
	for _, call := range file.Calls {
		if call.Name == "this.store.get" && call.Receiver == "this.store" && call.Args == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected this.store.get call, got %+v", file.Calls)
	}
}

func TestTypeScriptExtraction(t *testing.T) {
	code := `interface Shape {
  area(): number;
}

export class Circle {
  private radius: number = 2;
  constructor(radius: number) {
    this.radius = radius;
  }
  scale(this: Circle, factor: number, offset?: number, ...extra: number[]): number {
    return this.radius * factor * 3.14;
  }
}
`
	file := mustParse(t, "geo/circle.ts", code)
	if file.Language != "typescript" {
		t.Fatalf("expected typescript, got %q", file.Language)
	}
	scale := findFunction(t, file, "Circle.scale")
	if scale.PositionalCount() != 2 {
		t.Errorf("expected factor and offset to be positional, got %+v", scale.Params)
	}
	if scale.Params[0].Kind != ParamReceiver || scale.Params[3].Kind != ParamVariadic {
		t.Errorf("unexpected params: %+v", scale.Params)
	}
	if len(file.Classes) != 1 || len(file.Classes[0].Fields) != 1 {
		t.Errorf("expected Circle with one field, got %+v", file.Classes)
	}
	if _, ok := findLiteral(file, "3.14"); !ok {
		t.Error("expected literal 3.14")
	}
}

func TestGoExtraction(t *testing.T) {
	code := `package shop

import "time"

var hits int

const limit = 42

type Cart struct {
	Items []string
	Owner string
	*Base
}

func (c *Cart) Add(item string, qty, price int, tags ...string) {
	hits++
	if qty > 100 {
		return
	}
	c.Add(item, qty-1, price)
}

func poll() {
	for {
		time.Sleep(5 * time.Second)
	}
}
`
	file := mustParse(t, "shop/cart.go", code)

	add := findFunction(t, file, "Cart.Add")
	if add.PositionalCount() != 3 || len(add.Params) != 4 || add.Params[3].Kind != ParamVariadic {
		t.Errorf("unexpected params: %+v", add.Params)
	}
	if !add.Recursive {
		t.Error("expected Add to be recursive through its receiver")
	}

	if len(file.Classes) != 1 {
		t.Fatalf("expected Cart struct, got %+v", file.Classes)
	}
	cart := file.Classes[0]
	if cart.Methods != 1 || len(cart.Fields) != 3 {
		t.Errorf("unexpected Cart: %+v", cart)
	}

	lit, ok := findLiteral(file, "42")
	if !ok || !lit.InConstant {
		t.Errorf("expected const literal, got %+v", lit)
	}
	lit, ok = findLiteral(file, "100")
	if !ok || !lit.InConditional || !lit.InComparison {
		t.Errorf("expected conditional literal, got %+v", lit)
	}

	if len(file.Globals) != 1 || file.Globals[0].Name != "hits" {
		t.Errorf("expected hits mutation, got %+v", file.Globals)
	}
	if len(file.Loops) != 1 || !file.Loops[0].Unbounded || file.Loops[0].Function != "poll" {
		t.Errorf("expected unbounded loop in poll, got %+v", file.Loops)
	}

	var sleep bool
	for _, call := range file.Calls {
		if call.Name == "time.Sleep" && call.Receiver == "time" {
			sleep = true
		}
	}
	if !sleep {
		t.Errorf("expected time.Sleep call, got %+v", file.Calls)
	}
}

func TestNestingIgnoresElseIfChains(t *testing.T) {
	code := `package p

func classify(n int) string {
	if n < 0 {
		return "neg"
	} else if n == 0 {
		return "zero"
	} else if n < 10 {
		for i := 0; i < n; i++ {
			if i == 3 {
				return "three"
			}
		}
	}
	return "big"
}
`
	fn := findFunction(t, mustParse(t, "p/classify.go", code), "classify")
	if fn.MaxNesting != 3 {
		t.Errorf("expected nesting 3, got %d", fn.MaxNesting)
	}
}

func TestStatementHashesIgnoreNames(t *testing.T) {
	code := `def first(x):
    y = x + 1
    return y

def second(z):
    w = z + 2
    return w

def third(z):
    return z
`
	file := mustParse(t, "dup.py", code)
	a := findFunction(t, file, "first")
	b := findFunction(t, file, "second")
	c := findFunction(t, file, "third")
	if len(a.StatementHashes) != 2 || len(b.StatementHashes) != 2 {
		t.Fatalf("expected two statements each, got %d and %d", len(a.StatementHashes), len(b.StatementHashes))
	}
	for i := range a.StatementHashes {
		if a.StatementHashes[i] != b.StatementHashes[i] {
			t.Errorf("statement %d should hash identically", i)
		}
	}
	if c.StatementHashes[0] == a.StatementHashes[0] {
		t.Error("different statements must hash differently")
	}
	if a.StatementLines[0] != 2 {
		t.Errorf("expected first statement on line 2, got %d", a.StatementLines[0])
	}
}

func TestStatementCallsTrackReceivers(t *testing.T) {
	code := `def setup(conn):
    conn.open()
    conn.auth()
    x = conn.ready()
    conn.close()
`
	fn := findFunction(t, mustParse(t, "seq.py", code), "setup")
	want := []string{"conn", "conn", "", "conn"}
	if len(fn.StatementCalls) != len(want) {
		t.Fatalf("expected %d statements, got %v", len(want), fn.StatementCalls)
	}
	for i := range want {
		if fn.StatementCalls[i] != want[i] {
			t.Errorf("statement %d: expected receiver %q, got %q", i, want[i], fn.StatementCalls[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	p := New(nil)

	_, err := p.Parse("broken.py", []byte("def broken(:\n    pass\n"))
	if !coreerrors.IsCode(err, coreerrors.CodeParse) {
		t.Fatalf("expected PARSE_ERROR, got %v", err)
	}

	_, err = p.Parse("script.rb", []byte("puts 1"))
	if !coreerrors.IsCode(err, coreerrors.CodeNotSupported) {
		t.Fatalf("expected NOT_SUPPORTED, got %v", err)
	}
}

func TestParseEmptyFile(t *testing.T) {
	file := mustParse(t, "empty.py", "")
	if file.LineCount != 0 || len(file.Functions) != 0 || len(file.Literals) != 0 {
		t.Fatalf("expected an empty model, got %+v", file)
	}
}

func TestLanguageDetection(t *testing.T) {
	p := New(nil)
	cases := map[string]string{
		"a.py":          "python",
		"b.JS":          "javascript",
		"c.tsx":         "tsx",
		"d.ts":          "typescript",
		"e.go":          "go",
		"README.md":     "",
		"lib/f.mjs":     "javascript",
		"pkg/g_test.go": "go",
	}
	for path, want := range cases {
		if got := p.Language(path); got != want {
			t.Errorf("Language(%q) = %q, want %q", path, got, want)
		}
	}
	if !p.IsTestFile("pkg/g_test.go") || !p.IsTestFile("tests/test_api.py") || !p.IsTestFile("ui/button.spec.ts") {
		t.Error("expected test files to be recognized")
	}
	if p.IsTestFile("pkg/g.go") {
		t.Error("g.go is not a test file")
	}
}

func TestLanguageOverrides(t *testing.T) {
	disabled := false
	p := New(map[string]config.Language{
		"go":     {Enabled: &disabled},
		"python": {Extensions: []string{".pyw"}},
	})
	if p.IsSupportedPath("main.go") {
		t.Error("go should be disabled")
	}
	if p.Language("tool.pyw") != "python" || p.IsSupportedPath("tool.py") {
		t.Error("python extensions should be replaced")
	}
}
