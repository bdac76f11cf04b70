package detectors

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

func parse(t *testing.T, path, src string) (*parser.File, []string) {
	t.Helper()
	file, err := parser.New(nil).Parse(path, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return file, strings.Split(strings.TrimSuffix(src, "\n"), "\n")
}

func run(t *testing.T, d Detector, file *parser.File, lines []string) []analysis.Violation {
	t.Helper()
	path := ""
	if file != nil {
		path = file.Path
	}
	d.Reset(path, lines)
	out, err := d.Detect(file, lines)
	if err != nil {
		t.Fatalf("%s detector failed: %v", d.Category(), err)
	}
	return out
}

func defaults() config.Detectors {
	return config.Default().Detectors
}

func countRule(vs []analysis.Violation, rule string) int {
	n := 0
	for _, v := range vs {
		if v.RuleID == rule {
			n++
		}
	}
	return n
}

func TestPositionThresholds(t *testing.T) {
	file, lines := parse(t, "calc.py", "def compute(a, b, c, d, e, f):\n    return a\n")

	cfg := defaults().Position
	cfg.MaxPositionalParams = 3
	got := run(t, NewPosition(cfg), file, lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(got))
	}
	if got[0].Category != analysis.CategoryPosition || got[0].Severity != analysis.SeverityMedium {
		t.Fatalf("unexpected violation: %+v", got[0])
	}
	if n, _ := got[0].IntContext("positional_params"); n != 6 {
		t.Fatalf("expected positional_params=6 in context, got %v", got[0].Context)
	}

	cfg.MaxPositionalParams = 10
	if got := run(t, NewPosition(cfg), file, lines); len(got) != 0 {
		t.Fatalf("expected no violations with max 10, got %d", len(got))
	}
}

func TestPositionSeverityBands(t *testing.T) {
	cfg := defaults().Position
	cfg.MaxPositionalParams = 0
	d := NewPosition(cfg)

	tests := []struct {
		params int
		want   analysis.Severity
	}{
		{1, analysis.SeverityLow},
		{3, analysis.SeverityLow},
		{4, analysis.SeverityMedium},
		{6, analysis.SeverityMedium},
		{7, analysis.SeverityHigh},
		{10, analysis.SeverityHigh},
		{11, analysis.SeverityCritical},
		{15, analysis.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d params", tt.params), func(t *testing.T) {
			if got := d.severity(tt.params); got != tt.want {
				t.Fatalf("severity(%d) = %s, want %s", tt.params, got, tt.want)
			}
		})
	}
}

func TestPositionIgnoresReceiversAndKeywordOnly(t *testing.T) {
	src := "class Shape:\n    def move(self, dx, dy, *, animate=False, **opts):\n        pass\n"
	file, lines := parse(t, "shape.py", src)
	cfg := defaults().Position
	cfg.MaxPositionalParams = 2
	if got := run(t, NewPosition(cfg), file, lines); len(got) != 0 {
		t.Fatalf("self and keyword-only params must not count, got %+v", got)
	}
}

func TestPositionMonotonic(t *testing.T) {
	src := "def a(p1, p2):\n    pass\n\ndef b(p1, p2, p3, p4, p5):\n    pass\n\ndef c(p1, p2, p3, p4, p5, p6, p7, p8, p9):\n    pass\n"
	file, lines := parse(t, "mono.py", src)

	prev := -1
	for limit := 0; limit <= 12; limit++ {
		cfg := defaults().Position
		cfg.MaxPositionalParams = limit
		n := len(run(t, NewPosition(cfg), file, lines))
		if prev >= 0 && n > prev {
			t.Fatalf("raising max to %d increased violations from %d to %d", limit, prev, n)
		}
		prev = n
	}
}

func TestMagicLiterals(t *testing.T) {
	src := `def price(amount):
    fee = amount * 0.025
    if amount > 10000:
        fee = fee * 1.5
    return fee + 1
`
	file, lines := parse(t, "pricing.py", src)
	got := run(t, NewMagicLiteral(defaults().MagicLiteral), file, lines)

	if len(got) != 3 {
		t.Fatalf("expected 3 Meaning violations, got %d: %+v", len(got), got)
	}
	values := map[string]analysis.Severity{}
	for _, v := range got {
		if v.Category != analysis.CategoryMeaning {
			t.Fatalf("unexpected category %s", v.Category)
		}
		values[v.Context["value"].(string)] = v.Severity
	}
	want := map[string]analysis.Severity{
		"0.025": analysis.SeverityLow,
		"10000": analysis.SeverityMedium,
		"1.5":   analysis.SeverityLow,
	}
	if !reflect.DeepEqual(values, want) {
		t.Fatalf("unexpected literals: %v", values)
	}
	if got[0].Context["source"] != "fee = amount * 0.025" {
		t.Fatalf("expected source snippet, got %v", got[0].Context["source"])
	}
}

func TestMagicLiteralExclusions(t *testing.T) {
	src := `TIMEOUT = 30

def run(mode, retries=5):
    """Docstring with 42 inside."""
    if mode == "fast":
        return TIMEOUT
    label = "unused label"
    return 0x10 + 100
`
	file, lines := parse(t, "run.py", src)
	got := run(t, NewMagicLiteral(defaults().MagicLiteral), file, lines)

	// "fast" is flagged because it sits in a condition; 0x10 is 16.
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %+v", got)
	}
	cfg := defaults().MagicLiteral
	cfg.FlagStrings = true
	if got := run(t, NewMagicLiteral(cfg), file, lines); len(got) != 3 {
		t.Fatalf("expected flag_strings to add the label, got %+v", got)
	}
}

func TestRepeatedLiteral(t *testing.T) {
	src := `def a():
    return 42

def b():
    return 42

def c():
    return 42 + 7
`
	file, lines := parse(t, "rep.py", src)
	got := run(t, NewMagicLiteral(defaults().MagicLiteral), file, lines)
	if countRule(got, RuleRepeatedLiteral) != 1 {
		t.Fatalf("expected one repeated-literal, got %+v", got)
	}
	if countRule(got, RuleMagicLiteral) != 4 {
		t.Fatalf("expected four magic-literal findings, got %d", countRule(got, RuleMagicLiteral))
	}
	for _, v := range got {
		if v.RuleID == RuleRepeatedLiteral && v.Location.Line != 2 {
			t.Fatalf("repeated-literal should point at the first use, got line %d", v.Location.Line)
		}
	}
}

func TestNumericValue(t *testing.T) {
	tests := map[string]float64{
		"10":    10,
		"1_000": 1000,
		"0x10":  16,
		"0o17":  15,
		"1e3":   1000,
		"10L":   10,
		"2j":    2,
		"9n":    9,
		"-1":    -1,
	}
	for raw, want := range tests {
		got, ok := numericValue(raw)
		if !ok || got != want {
			t.Errorf("numericValue(%q) = %v, %v; want %v", raw, got, ok, want)
		}
	}
	if _, ok := numericValue("abc"); ok {
		t.Error("expected abc to be rejected")
	}
}

func godClass(methods, fields, lines int) *parser.File {
	names := make([]string, fields)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i)
	}
	return &parser.File{
		Path:     "god.py",
		Language: "python",
		Classes: []parser.Class{{
			Name:     "Manager",
			Location: parser.Location{File: "god.py", Line: 1, Column: 1},
			Methods:  methods,
			Fields:   names,
			Lines:    lines,
		}},
	}
}

func TestGodObject(t *testing.T) {
	cfg := defaults().GodObject
	cfg.MaxMethods = 20

	got := run(t, NewGodObject(cfg), godClass(25, 20, 100), nil)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d", len(got))
	}
	v := got[0]
	if v.Category != analysis.CategoryGodObject || v.Severity != analysis.SeverityMedium {
		t.Fatalf("unexpected violation: %+v", v)
	}
	for _, key := range []string{"methods", "fields", "lines", "max_methods", "max_fields", "max_lines", "ratio"} {
		if _, ok := v.Context[key]; !ok {
			t.Errorf("missing context %q", key)
		}
	}

	tests := []struct {
		methods int
		want    analysis.Severity
	}{
		{30, analysis.SeverityMedium},
		{35, analysis.SeverityHigh},
		{40, analysis.SeverityHigh},
		{41, analysis.SeverityCritical},
	}
	for _, tt := range tests {
		got := run(t, NewGodObject(cfg), godClass(tt.methods, 0, 10), nil)
		if len(got) != 1 || got[0].Severity != tt.want {
			t.Errorf("%d methods: expected %s, got %+v", tt.methods, tt.want, got)
		}
	}

	if got := run(t, NewGodObject(cfg), godClass(20, 15, 500), nil); len(got) != 0 {
		t.Fatalf("class at the limits must pass, got %+v", got)
	}
}

func TestDuplicateBlock(t *testing.T) {
	src := `def first(items):
    total = 0
    for item in items:
        total += item
    result = total * 2
    return result

def second(values):
    acc = 0
    for v in values:
        acc += v
    out = acc * 3
    return out

def third(x):
    return x
`
	file, lines := parse(t, "dup.py", src)
	got := run(t, NewAlgorithm(defaults().Algorithm), file, lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 duplicate-block, got %+v", got)
	}
	if got[0].Entity != "second" || got[0].Context["duplicate_of"] != "first" || got[0].Location.Line != 9 {
		t.Fatalf("unexpected violation: %+v", got[0])
	}
}

func TestSleepCoupling(t *testing.T) {
	src := `import time, asyncio

def wait():
    time.sleep(1)
    asyncio.sleep(2)
    clock.tick()
`
	file, lines := parse(t, "wait.py", src)
	got := run(t, NewTiming(defaults().Timing), file, lines)
	if len(got) != 2 {
		t.Fatalf("expected 2 timing violations, got %+v", got)
	}
	if got[0].Context["call"] != "time.sleep" {
		t.Fatalf("unexpected first call: %v", got[0].Context)
	}
}

func TestNamingConvention(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want int
	}{
		{"python ok", "ok.py", "class Widget:\n    def __init__(self):\n        pass\n    def draw_all(self):\n        pass\n", 0},
		{"python bad", "bad.py", "class lower_case:\n    pass\n\ndef BadName():\n    pass\n", 2},
		{"go ok", "ok.go", "package p\n\nfunc TestSomething_Case(t int) {}\nfunc doThing() {}\n", 0},
		{"go bad", "bad.go", "package p\n\ntype my_type struct{}\n\nfunc do_thing() {}\n", 2},
		{"js", "a.js", "function load_data() {}\nfunction loadData() {}\nclass widget {}\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, lines := parse(t, tt.path, tt.src)
			got := run(t, NewConvention(), file, lines)
			if len(got) != tt.want {
				t.Fatalf("expected %d violations, got %+v", tt.want, got)
			}
		})
	}
}

func TestSharedValue(t *testing.T) {
	src := `def check(role):
    if role == "admin":
        return 1
    return 0

def allow(role):
    return role == "admin"

def deny(role):
    while role != "admin":
        role = rotate(role)
`
	file, lines := parse(t, "roles.py", src)
	got := run(t, NewValues(defaults().Values, defaults().MagicLiteral), file, lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 shared-value violation, got %+v", got)
	}
	if n, _ := got[0].IntContext("occurrences"); n != 3 {
		t.Fatalf("expected 3 occurrences, got %v", got[0].Context)
	}
	if !reflect.DeepEqual(got[0].Context["functions"], []string{"allow", "check", "deny"}) {
		t.Fatalf("unexpected functions: %v", got[0].Context["functions"])
	}
}

func TestCallSequence(t *testing.T) {
	src := `def boot(conn):
    conn.open()
    conn.auth()
    conn.select()
    conn.ready()

def short(conn):
    conn.open()
    conn.close()
`
	file, lines := parse(t, "boot.py", src)
	got := run(t, NewExecution(defaults().Execution), file, lines)
	if len(got) != 1 || got[0].Entity != "boot" || got[0].Location.Line != 2 {
		t.Fatalf("expected one call-sequence in boot, got %+v", got)
	}
}

func TestIdentity(t *testing.T) {
	src := `counter = 0

def add(item, bucket=[], seen=None, index=dict()):
    bucket.append(item)
    return bucket

def bump():
    global counter
    counter += 1
`
	file, lines := parse(t, "ident.py", src)
	got := run(t, NewIdentity(), file, lines)
	if countRule(got, RuleMutableDefault) != 2 {
		t.Fatalf("expected 2 mutable defaults, got %+v", got)
	}
	if countRule(got, RuleGlobalMutation) != 1 {
		t.Fatalf("expected 1 global mutation, got %+v", got)
	}
}

func TestEmptyInputs(t *testing.T) {
	empty, _ := parse(t, "empty.py", "")
	reg := Builtin(defaults())
	for _, cat := range reg.Categories() {
		d, err := reg.New(cat)
		if err != nil {
			t.Fatal(err)
		}
		if got := run(t, d, empty, nil); len(got) != 0 {
			t.Errorf("%s: expected nothing for an empty file, got %+v", cat, got)
		}
		if got := run(t, d, nil, nil); len(got) != 0 {
			t.Errorf("%s: expected nothing for a nil tree, got %+v", cat, got)
		}
	}
}

func TestResetDoesNotCorruptReturnedResults(t *testing.T) {
	file, lines := parse(t, "calc.py", "def compute(a, b, c, d, e, f):\n    return a\n")
	d := NewPosition(defaults().Position)

	first := run(t, d, file, lines)
	snapshot := append([]analysis.Violation(nil), first...)

	other, otherLines := parse(t, "other.py", "def g(a, b, c, d, e, f, g, h):\n    return a\n")
	second := run(t, d, other, otherLines)

	if !reflect.DeepEqual(first, snapshot) {
		t.Fatal("results of a previous run changed after reuse")
	}
	if len(second) != 1 || second[0].Location.File != "other.py" {
		t.Fatalf("unexpected second run: %+v", second)
	}
}

func TestDetectorsAreDeterministic(t *testing.T) {
	src := `def price(amount, rate, tax, fee, extra):
    if amount > 10000:
        return amount * 0.025
    return 42
`
	file, lines := parse(t, "det.py", src)
	reg := Builtin(defaults())
	for _, cat := range reg.Categories() {
		a, _ := reg.New(cat)
		b, _ := reg.New(cat)
		if !reflect.DeepEqual(run(t, a, file, lines), run(t, b, file, lines)) {
			t.Errorf("%s produced different results for the same input", cat)
		}
	}
}
