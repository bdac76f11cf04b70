package parser

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractor walks one tree and fills the syntax model. It is single-use.
type extractor struct {
	d          *dialect
	src        []byte
	file       *File
	moduleVars map[string]bool
	classIdx   map[string]int
	pending    []pendingMethod
}

type pendingMethod struct {
	fn       int
	typeName string
}

type scope struct {
	fn          int
	class       int
	inClassBody bool
	depth       int
	condition   bool
	comparison  bool
	constant    bool
	locals      map[string]bool
	self        []string
}

func newExtractor(d *dialect, src []byte, path string) *extractor {
	return &extractor{
		d:          d,
		src:        src,
		file:       &File{Path: path, Language: d.language, LineCount: countLines(src)},
		moduleVars: make(map[string]bool),
		classIdx:   make(map[string]int),
	}
}

func (x *extractor) extract(root *sitter.Node) *File {
	if root == nil {
		return x.file
	}
	if x.d.moduleVars != nil {
		for _, name := range x.d.moduleVars(x, root) {
			x.moduleVars[name] = true
		}
	}
	x.walk(root, scope{fn: -1, class: -1})
	x.attachMethods()
	return x.file
}

func (x *extractor) walk(n *sitter.Node, s scope) {
	if n == nil {
		return
	}
	d := x.d
	kind := n.Kind()
	if d.comments[kind] || d.opaque[kind] {
		return
	}
	if d.classes[kind] {
		if name, ok := d.classInfo(x, n); ok {
			x.enterClass(n, name, s)
			return
		}
	}
	if d.functions[kind] {
		x.enterFunction(n, s)
		return
	}
	if !x.visit(n, s) {
		return
	}

	child := s
	if d.nesting[kind] && s.fn >= 0 {
		child.depth++
		if child.depth > x.file.Functions[s.fn].MaxNesting {
			x.file.Functions[s.fn].MaxNesting = child.depth
		}
	}
	if d.calls[kind] {
		child.comparison = false
	}
	if d.isComparison != nil && d.isComparison(x, n) {
		child.comparison = true
	}
	if d.isConstant != nil && d.isConstant(x, n) {
		child.constant = true
	}

	var cond, alt *sitter.Node
	if field, ok := d.conditionFields[kind]; ok {
		cond = n.ChildByFieldName(field)
	}
	if d.nesting[kind] {
		alt = n.ChildByFieldName("alternative")
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		cs := child
		if cond != nil && sameNode(c, cond) {
			cs.condition = true
			if d.cases[kind] {
				cs.comparison = true
			}
		}
		if alt != nil && sameNode(c, alt) && x.isElseIf(c, kind) {
			cs.depth = s.depth
		}
		x.walk(c, cs)
	}
}

// isElseIf reports whether an alternative branch is a chained if, which
// should not count as one more nesting level.
func (x *extractor) isElseIf(alt *sitter.Node, kind string) bool {
	if alt.Kind() == kind {
		return true
	}
	if alt.NamedChildCount() == 1 && alt.NamedChild(0).Kind() == kind {
		return true
	}
	return false
}

// visit records the node's own facts and reports whether to descend.
func (x *extractor) visit(n *sitter.Node, s scope) bool {
	d := x.d
	kind := n.Kind()
	switch {
	case d.isInert != nil && d.isInert(x, n):
		return false
	case d.unary[kind]:
		if value, ok := x.negativeNumber(n); ok {
			x.addLiteral(LiteralNumber, value, n, s)
			return false
		}
	case d.numbers[kind]:
		x.addLiteral(LiteralNumber, normalizeNumber(x.text(n)), n, s)
		return false
	case d.strings[kind]:
		if d.isTemplate != nil && d.isTemplate(n) {
			return true
		}
		x.addLiteral(LiteralString, x.stringValue(n), n, s)
		return false
	case d.calls[kind]:
		x.addCall(n, s)
	case d.loops[kind]:
		x.file.Loops = append(x.file.Loops, Loop{
			Function:  x.functionName(s),
			Location:  x.location(n),
			Unbounded: d.unbounded != nil && d.unbounded(x, n),
		})
	}

	if s.fn >= 0 {
		x.recordWrites(n, s)
	}
	if s.class >= 0 && s.inClassBody && s.fn < 0 && d.fieldDecl != nil {
		for _, name := range d.fieldDecl(x, n) {
			x.addField(s.class, name)
		}
	}
	return true
}

func (x *extractor) enterClass(n *sitter.Node, name string, s scope) {
	loc := x.location(n)
	end := endLine(n)
	idx := len(x.file.Classes)
	x.file.Classes = append(x.file.Classes, Class{
		Name:     name,
		Location: loc,
		EndLine:  end,
		Lines:    end - loc.Line + 1,
	})
	if _, exists := x.classIdx[name]; !exists {
		x.classIdx[name] = idx
	}
	inner := scope{fn: -1, class: idx, inClassBody: true}
	for i := uint(0); i < n.ChildCount(); i++ {
		x.walk(n.Child(i), inner)
	}
}

func (x *extractor) enterFunction(n *sitter.Node, s scope) {
	d := x.d
	method := s.inClassBody && s.class >= 0 && s.fn < 0
	fn := Function{
		Name:     d.functionName(x, n),
		Location: x.location(n),
		EndLine:  endLine(n),
	}
	fn.Lines = fn.EndLine - fn.Location.Line + 1
	if method {
		fn.Class = x.file.Classes[s.class].Name
		x.file.Classes[s.class].Methods++
	}

	self := append([]string(nil), d.selfNames...)
	var typeName string
	if d.receiver != nil {
		var recv string
		typeName, recv = d.receiver(x, n)
		if typeName != "" {
			fn.Class = typeName
		}
		if recv != "" {
			self = append(self, recv)
		}
	}
	fn.Params = d.params(x, n, method)

	body := d.body(n)
	for _, stmt := range x.statements(body) {
		fn.StatementHashes = append(fn.StatementHashes, x.hashStatement(stmt))
		fn.StatementLines = append(fn.StatementLines, int(stmt.StartPosition().Row)+1)
		fn.StatementCalls = append(fn.StatementCalls, x.statementReceiver(stmt))
	}

	idx := len(x.file.Functions)
	x.file.Functions = append(x.file.Functions, fn)
	if typeName != "" {
		x.pending = append(x.pending, pendingMethod{fn: idx, typeName: typeName})
	}

	inner := scope{fn: idx, class: -1, locals: make(map[string]bool), self: self}
	if method {
		inner.class = s.class
	}
	for _, p := range fn.Params {
		inner.locals[p.Name] = true
	}
	callStart := len(x.file.Calls)
	x.walk(body, inner)

	qualified := fn.QualifiedName()
	for _, call := range x.file.Calls[callStart:] {
		if call.Function != qualified {
			continue
		}
		if x.isSelfCall(call, fn.Name, self) {
			x.file.Functions[idx].Recursive = true
			break
		}
	}
}

func (x *extractor) isSelfCall(call Call, name string, self []string) bool {
	if call.Receiver == "" {
		return call.Name == name
	}
	for _, recv := range self {
		if call.Receiver == recv && call.Name == recv+"."+name {
			return true
		}
	}
	return false
}

// attachMethods credits methods declared outside their type's body to the
// type, for languages that declare methods at top level.
func (x *extractor) attachMethods() {
	for _, p := range x.pending {
		idx, ok := x.classIdx[p.typeName]
		if !ok {
			continue
		}
		x.file.Classes[idx].Methods++
		x.file.Classes[idx].Lines += x.file.Functions[p.fn].Lines
	}
}

func (x *extractor) statements(body *sitter.Node) []*sitter.Node {
	if body == nil {
		return nil
	}
	if !x.d.blocks[body.Kind()] {
		return []*sitter.Node{body}
	}
	var out []*sitter.Node
	for i := uint(0); i < body.NamedChildCount(); i++ {
		c := body.NamedChild(i)
		switch {
		case x.d.comments[c.Kind()]:
		case x.d.blocks[c.Kind()]:
			out = append(out, x.statements(c)...)
		case x.d.isInert != nil && x.d.isInert(x, c):
		default:
			out = append(out, c)
		}
	}
	return out
}

// hashStatement fingerprints a statement's shape: identifiers and literal
// values are erased so renamed copies hash identically.
func (x *extractor) hashStatement(n *sitter.Node) uint64 {
	h := xxhash.New()
	x.writeShape(h, n)
	return h.Sum64()
}

func (x *extractor) writeShape(h *xxhash.Digest, n *sitter.Node) {
	if n == nil {
		return
	}
	d := x.d
	kind := n.Kind()
	switch {
	case d.comments[kind]:
		return
	case d.identifiers[kind]:
		_, _ = h.WriteString("id ")
	case d.literals[kind] || d.numbers[kind] || d.strings[kind]:
		_, _ = h.WriteString("lit ")
	case n.ChildCount() == 0:
		_, _ = h.WriteString(kind)
		_, _ = h.WriteString(" ")
	default:
		_, _ = h.WriteString(kind)
		_, _ = h.WriteString("(")
		for i := uint(0); i < n.ChildCount(); i++ {
			x.writeShape(h, n.Child(i))
		}
		_, _ = h.WriteString(")")
	}
}

// statementReceiver returns the receiver of a statement that is a bare
// method call, such as conn.open().
func (x *extractor) statementReceiver(stmt *sitter.Node) string {
	n := stmt
	if n.Kind() == "expression_statement" && n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
	}
	for n != nil && (n.Kind() == "await" || n.Kind() == "await_expression") && n.NamedChildCount() > 0 {
		n = n.NamedChild(n.NamedChildCount() - 1)
	}
	if n == nil || !x.d.calls[n.Kind()] {
		return ""
	}
	callee := n.ChildByFieldName("function")
	if callee == nil {
		return ""
	}
	if m, ok := x.d.members[callee.Kind()]; ok {
		return compact(x.text(callee.ChildByFieldName(m.object)))
	}
	return ""
}

func (x *extractor) addCall(n *sitter.Node, s scope) {
	callee := n.ChildByFieldName("function")
	if callee == nil {
		return
	}
	call := Call{
		Name:     compact(x.text(callee)),
		Location: x.location(n),
		Function: x.functionName(s),
	}
	if m, ok := x.d.members[callee.Kind()]; ok {
		call.Receiver = compact(x.text(callee.ChildByFieldName(m.object)))
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := uint(0); i < args.NamedChildCount(); i++ {
			if !x.d.comments[args.NamedChild(i).Kind()] {
				call.Args++
			}
		}
	}
	x.file.Calls = append(x.file.Calls, call)
}

func (x *extractor) addLiteral(kind LiteralKind, value string, n *sitter.Node, s scope) {
	x.file.Literals = append(x.file.Literals, Literal{
		Kind:          kind,
		Value:         value,
		Location:      x.location(n),
		Function:      x.functionName(s),
		InConditional: s.condition,
		InComparison:  s.comparison,
		InConstant:    s.constant,
	})
}

func (x *extractor) addField(class int, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	cls := &x.file.Classes[class]
	for _, existing := range cls.Fields {
		if existing == name {
			return
		}
	}
	cls.Fields = append(cls.Fields, name)
}

// recordWrites tracks local declarations, instance field writes and writes
// to module-level names inside a function body.
func (x *extractor) recordWrites(n *sitter.Node, s scope) {
	d := x.d
	if d.localDecl != nil {
		for _, name := range d.localDecl(x, n) {
			s.locals[name] = true
		}
	}
	if d.globalDecl != nil {
		for _, name := range d.globalDecl(x, n) {
			x.file.Globals = append(x.file.Globals, Global{
				Name:     name,
				Function: x.functionName(s),
				Location: x.location(n),
			})
		}
	}
	if !d.assignments[n.Kind()] || d.assignTargets == nil {
		return
	}
	for _, target := range d.assignTargets(x, n) {
		if target == nil {
			continue
		}
		if m, ok := d.members[target.Kind()]; ok {
			if s.class < 0 {
				continue
			}
			obj := x.text(target.ChildByFieldName(m.object))
			for _, self := range d.selfNames {
				if obj == self {
					x.addField(s.class, x.text(target.ChildByFieldName(m.property)))
				}
			}
			continue
		}
		if !d.identifiers[target.Kind()] {
			continue
		}
		name := x.text(target)
		if x.moduleVars[name] && !s.locals[name] {
			x.file.Globals = append(x.file.Globals, Global{
				Name:     name,
				Function: x.functionName(s),
				Location: x.location(target),
			})
		}
	}
}

func (x *extractor) negativeNumber(n *sitter.Node) (string, bool) {
	if n.ChildCount() != 2 || n.Child(0).Kind() != "-" {
		return "", false
	}
	operand := n.Child(1)
	if !x.d.numbers[operand.Kind()] {
		return "", false
	}
	return "-" + normalizeNumber(x.text(operand)), true
}

func (x *extractor) stringValue(n *sitter.Node) string {
	var b strings.Builder
	found := false
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if stringContentKinds[c.Kind()] {
			b.WriteString(x.text(c))
			found = true
		}
	}
	if found {
		return b.String()
	}
	return trimQuoted(x.text(n))
}

func (x *extractor) functionName(s scope) string {
	if s.fn < 0 {
		return ""
	}
	return x.file.Functions[s.fn].QualifiedName()
}

func (x *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(x.src[n.StartByte():n.EndByte()])
}

func (x *extractor) location(n *sitter.Node) Location {
	return Location{
		File:   x.file.Path,
		Line:   int(n.StartPosition().Row) + 1,
		Column: int(n.StartPosition().Column) + 1,
	}
}

func endLine(n *sitter.Node) int {
	end := n.EndPosition()
	// A node ending at column 0 stops at the previous line's newline.
	if end.Column == 0 && end.Row > n.StartPosition().Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := strings.Count(string(src), "\n")
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}

func compact(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, value)
}

func trimQuoted(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, "\"'`")
}

func normalizeNumber(raw string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
}

func isUpperSnake(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return hasLetter
}
