package parser

import (
	"fmt"

	"github.com/pklrun/pkl/internal/ast"
)

// ParseError carries a message plus the source span it refers to (spec
// §4.2: "ParseError carries a list of spans + messages").
type ParseError struct {
	Message string
	Span    ast.Span
}

func (e ParseError) Error() string { return e.Message }

type parser struct {
	toks []token
	pos  int
	errs []ParseError
}

// Parse turns src into a *ast.Module, with parent pointers wired via
// ast.Link, and any accumulated syntax errors. It never returns a nil
// Module on error — partial trees are still returned so callers can
// report as much as possible, matching the teacher's tolerant-parse
// style in internal/parser.
func Parse(src string) (*ast.Module, []ParseError) {
	p := &parser{toks: lex(src)}
	mod := p.parseModule()
	ast.Link(mod)
	return mod, p.errs
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) at(kind tokenKind) bool { return p.cur().kind == kind }
func (p *parser) atPunct(s string) bool  { return p.cur().kind == tokPunct && p.cur().text == s }
func (p *parser) atIdent(s string) bool  { return p.cur().kind == tokIdent && p.cur().text == s }

func (p *parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) {
	t := p.cur()
	p.errs = append(p.errs, ParseError{
		Message: fmt.Sprintf(format, args...),
		Span:    ast.Span{CharIndex: t.start, Length: uint32(t.end - t.start)},
	})
}

func (p *parser) expectPunct(s string) bool {
	if p.atPunct(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q", s)
	return false
}

func (p *parser) span(start token) ast.Span {
	end := p.toks[p.pos-1]
	if end.end < start.start {
		end = start
	}
	return ast.Span{CharIndex: start.start, Length: uint32(end.end - start.start)}
}

func isModifierWord(s string) (ast.Modifier, bool) {
	switch s {
	case "external":
		return ast.ModExternal, true
	case "abstract":
		return ast.ModAbstract, true
	case "open":
		return ast.ModOpen, true
	case "local":
		return ast.ModLocal, true
	case "hidden":
		return ast.ModHidden, true
	case "fixed":
		return ast.ModFixed, true
	case "const":
		return ast.ModConst, true
	}
	return "", false
}

func (p *parser) parseModifiers() []ast.Modifier {
	var mods []ast.Modifier
	for p.at(tokIdent) {
		if m, ok := isModifierWord(p.cur().text); ok {
			mods = append(mods, m)
			p.advance()
			continue
		}
		break
	}
	return mods
}

func (p *parser) parseModule() *ast.Module {
	start := p.cur()
	mod := &ast.Module{Base: ast.NewBase(ast.Span{})}

	// optional module declaration: [modifiers] "module" qualifiedName [extends|amends]
	savedPos := p.pos
	mods := p.parseModifiers()
	if p.atIdent("module") {
		p.advance()
		name := p.parseQualifiedName()
		decl := &ast.ModuleDecl{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name}
		if p.atIdent("extends") {
			p.advance()
			u := p.parseStringLiteralText()
			decl.Extends = &ast.ExtendsDecl{Base: ast.NewBase(p.span(start)), URL: u}
		} else if p.atIdent("amends") {
			p.advance()
			u := p.parseStringLiteralText()
			decl.Amends = &ast.AmendsDecl{Base: ast.NewBase(p.span(start)), URL: u}
		}
		mod.Decl = decl
	} else {
		p.pos = savedPos
	}

	for p.atIdent("import") {
		mod.Imports = append(mod.Imports, p.parseImport())
	}

	for !p.at(tokEOF) {
		entry := p.parseModuleEntry()
		if entry == nil {
			p.advance()
			continue
		}
		mod.Entries = append(mod.Entries, entry)
	}

	mod.Base = ast.NewBase(p.span(start))
	return mod
}

func (p *parser) parseImport() *ast.Import {
	start := p.cur()
	p.advance() // "import"
	glob := false
	if p.atPunct("*") {
		glob = true
		p.advance()
	}
	uri := p.parseStringLiteralText()
	alias := ""
	if p.atIdent("as") {
		p.advance()
		if p.at(tokIdent) {
			alias = p.advance().text
		}
	}
	return &ast.Import{Base: ast.NewBase(p.span(start)), URI: uri, Glob: glob, Alias: alias}
}

func (p *parser) parseQualifiedName() ast.QualifiedName {
	var q ast.QualifiedName
	if p.at(tokIdent) {
		q = append(q, p.advance().text)
	}
	for p.atPunct(".") {
		p.advance()
		if p.at(tokIdent) {
			q = append(q, p.advance().text)
		}
	}
	return q
}

// parseStringLiteralText reads a simple (non-interpolated-in-practice)
// string literal token and returns its literal text, used for import/
// extends/amends URIs.
func (p *parser) parseStringLiteralText() string {
	if p.at(tokInterpString) {
		t := p.advance()
		if len(t.literals) > 0 {
			return t.literals[0]
		}
		return ""
	}
	p.errorf("expected string literal")
	return ""
}

func (p *parser) parseModuleEntry() ast.ModuleEntry {
	start := p.cur()
	mods := p.parseModifiers()

	if p.atIdent("class") {
		p.advance()
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		var typeParams []string
		if p.atPunct("<") {
			typeParams = p.parseTypeParamList()
		}
		var super ast.QualifiedName
		if p.atIdent("extends") {
			p.advance()
			super = p.parseQualifiedName()
		}
		clazz := &ast.Clazz{Base: ast.NewBase(ast.Span{}), Modifiers: mods, Name: name, TypeParams: typeParams, SuperClass: super}
		if p.atPunct("{") {
			p.advance()
			for !p.atPunct("}") && !p.at(tokEOF) {
				e := p.parseClassEntry()
				if e != nil {
					clazz.Entries = append(clazz.Entries, e)
				} else {
					p.advance()
				}
			}
			p.expectPunct("}")
		}
		clazz.Base = ast.NewBase(p.span(start))
		return clazz
	}

	if p.atIdent("typealias") {
		p.advance()
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		var typeParams []string
		if p.atPunct("<") {
			typeParams = p.parseTypeParamList()
		}
		p.expectPunct("=")
		body := p.parseType()
		return &ast.TypeAlias{Base: ast.NewBase(p.span(start)), Name: name, TypeParams: typeParams, Body: body}
	}

	return p.parseClassEntryAsModuleEntry(start, mods)
}

func (p *parser) parseTypeParamList() []string {
	var out []string
	p.expectPunct("<")
	for !p.atPunct(">") && !p.at(tokEOF) {
		if p.at(tokIdent) {
			out = append(out, p.advance().text)
		}
		if p.atPunct(",") {
			p.advance()
		}
	}
	p.expectPunct(">")
	return out
}

func (p *parser) parseClassEntryAsModuleEntry(start token, mods []ast.Modifier) ast.ModuleEntry {
	e := p.parseClassEntryBody(start, mods)
	if e == nil {
		return nil
	}
	return e.(ast.ModuleEntry)
}

func (p *parser) parseClassEntry() ast.ClassEntry {
	start := p.cur()
	mods := p.parseModifiers()
	e := p.parseClassEntryBody(start, mods)
	if e == nil {
		return nil
	}
	return e.(ast.ClassEntry)
}

// parseClassEntryBody parses a function/property declaration body shared
// by module scope and class scope (spec §3.2: ClassEntry variants also
// appear as ModuleEntry).
func (p *parser) parseClassEntryBody(start token, mods []ast.Modifier) interface {
	ast.Node
} {
	if p.atIdent("function") {
		p.advance()
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		var typeParams []string
		if p.atPunct("<") {
			typeParams = p.parseTypeParamList()
		}
		params := p.parseParamList()
		var ret ast.Type
		if p.atPunct(":") {
			p.advance()
			ret = p.parseType()
		}
		var body ast.Expr
		if p.atPunct("=") {
			p.advance()
			body = p.parseExpr()
		}
		return &ast.ClassMethod{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, TypeParams: typeParams, Params: params, ReturnType: ret, Body: body}
	}

	if !p.at(tokIdent) {
		return nil
	}
	name := p.advance().text

	if p.atPunct("{") {
		var bodies []*ast.ObjectBody
		for p.atPunct("{") {
			bodies = append(bodies, p.parseObjectBody())
		}
		return &ast.ClassPropertyBody{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, Bodies: bodies}
	}

	var typ ast.Type
	if p.atPunct(":") {
		p.advance()
		typ = p.parseType()
	}
	if p.atPunct("=") {
		p.advance()
		expr := p.parseExpr()
		return &ast.ClassPropertyExpr{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, Type: typ, Expr: expr}
	}
	return &ast.ClassProperty{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, Type: typ}
}

func (p *parser) parseParamList() []ast.Param {
	var out []ast.Param
	p.expectPunct("(")
	for !p.atPunct(")") && !p.at(tokEOF) {
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		var typ ast.Type
		if p.atPunct(":") {
			p.advance()
			typ = p.parseType()
		}
		out = append(out, ast.Param{Name: name, Type: typ})
		if p.atPunct(",") {
			p.advance()
		}
	}
	p.expectPunct(")")
	return out
}

// ---- Types ----

func (p *parser) parseType() ast.Type {
	t := p.parseUnionType()
	return t
}

func (p *parser) parseUnionType() ast.Type {
	left := p.parseDefaultUnionType()
	for p.atPunct("|") {
		p.advance()
		right := p.parseDefaultUnionType()
		left = &ast.Union{Left: left, Right: right}
	}
	return left
}

func (p *parser) parseDefaultUnionType() ast.Type {
	if p.atPunct("*") {
		p.advance()
		return &ast.DefaultUnion{Inner: p.parseNullableType()}
	}
	return p.parseNullableType()
}

func (p *parser) parseNullableType() ast.Type {
	inner := p.parseAtomType()
	for p.atPunct("?") {
		p.advance()
		inner = &ast.Nullable{Inner: inner}
	}
	return inner
}

func (p *parser) parseAtomType() ast.Type {
	start := p.cur()
	switch {
	case p.atIdent("unknown"):
		p.advance()
		return &ast.UnknownType{Base: ast.NewBase(p.span(start))}
	case p.atIdent("nothing"):
		p.advance()
		return &ast.NothingType{Base: ast.NewBase(p.span(start))}
	case p.atIdent("module"):
		p.advance()
		return &ast.ModuleType{Base: ast.NewBase(p.span(start))}
	case p.atPunct("("):
		p.advance()
		// could be a parenthesized type or a function type `(T, T) -> T`
		var args []ast.Node
		if !p.atPunct(")") {
			args = append(args, p.parseType())
			for p.atPunct(",") {
				p.advance()
				args = append(args, p.parseType())
			}
		}
		p.expectPunct(")")
		if p.atPunct("->") {
			p.advance()
			ret := p.parseType()
			return &ast.FunctionType{Args: args, Ret: ret}
		}
		if len(args) == 1 {
			if t, ok := args[0].(ast.Type); ok {
				return &ast.ParenthesizedType{Inner: t}
			}
		}
		return &ast.UnknownType{Base: ast.NewBase(p.span(start))}
	case p.at(tokInterpString):
		t := p.advance()
		text := ""
		if len(t.literals) > 0 {
			text = t.literals[0]
		}
		return &ast.StringConstantType{Base: ast.NewBase(p.span(start)), Text: text}
	case p.at(tokIdent):
		name := p.parseQualifiedName()
		var typeArgs []ast.Node
		if p.atPunct("<") {
			p.advance()
			for !p.atPunct(">") && !p.at(tokEOF) {
				typeArgs = append(typeArgs, p.parseType())
				if p.atPunct(",") {
					p.advance()
				}
			}
			p.expectPunct(">")
		}
		decl := ast.Type(&ast.Declared{Base: ast.NewBase(p.span(start)), Name: name, TypeArgs: typeArgs})
		if p.atPunct("(") {
			p.advance()
			var preds []ast.Node
			if !p.atPunct(")") {
				preds = append(preds, p.parseExpr())
				for p.atPunct(",") {
					p.advance()
					preds = append(preds, p.parseExpr())
				}
			}
			p.expectPunct(")")
			return &ast.Constrained{Inner: decl, Predicates: preds}
		}
		return decl
	default:
		p.errorf("expected type")
		p.advance()
		return &ast.UnknownType{Base: ast.NewBase(p.span(start))}
	}
}

// ---- Object bodies ----

func (p *parser) parseObjectBody() *ast.ObjectBody {
	start := p.cur()
	body := &ast.ObjectBody{Base: ast.NewBase(ast.Span{})}
	p.expectPunct("{")
	for !p.atPunct("}") && !p.at(tokEOF) {
		if p.atPunct(";") {
			p.advance()
			continue
		}
		m := p.parseObjectMember()
		if m != nil {
			body.Members = append(body.Members, m)
		} else {
			p.advance()
		}
	}
	p.expectPunct("}")
	body.Base = ast.NewBase(p.span(start))
	return body
}

func (p *parser) parseObjectMember() ast.ObjectMember {
	start := p.cur()

	if p.atIdent("when") {
		p.advance()
		p.expectPunct("(")
		cond := p.parseExpr()
		p.expectPunct(")")
		then := p.parseObjectBody()
		var els *ast.ObjectBody
		if p.atIdent("else") {
			p.advance()
			els = p.parseObjectBody()
		}
		return &ast.WhenGenerator{Base: ast.NewBase(p.span(start)), Cond: cond, Then: then, Else: els}
	}

	if p.atIdent("for") {
		p.advance()
		p.expectPunct("(")
		p1 := ""
		p2 := ""
		if p.at(tokIdent) {
			p1 = p.advance().text
		}
		if p.atPunct(",") {
			p.advance()
			if p.at(tokIdent) {
				p2 = p.advance().text
			}
		}
		if p.atIdent("in") {
			p.advance()
		}
		src := p.parseExpr()
		p.expectPunct(")")
		body := p.parseObjectBody()
		return &ast.ForGenerator{Base: ast.NewBase(p.span(start)), P1: p1, P2: p2, Source: src, Body: body}
	}

	if p.atPunct("...") {
		p.advance()
		nullable := false
		if p.atPunct("?") {
			nullable = true
			p.advance()
		}
		e := p.parseExpr()
		return &ast.ObjectSpread{Base: ast.NewBase(p.span(start)), Expr: e, IsNullable: nullable}
	}

	if p.atPunct("[") && p.peekDoubleBracket() {
		return p.parseMemberPredicate(start)
	}

	if p.atPunct("[") {
		return p.parseObjectEntry(start)
	}

	mods := p.parseModifiers()
	if p.atIdent("function") {
		return p.parseObjectMethod(start, mods)
	}

	if p.at(tokIdent) && !p.nextIsAssignLike() {
		// bare expression element, e.g. a string/number/new literal
		e := p.parseExpr()
		return &ast.ObjectElement{Base: ast.NewBase(p.span(start)), Expr: e}
	}

	if p.at(tokIdent) {
		name := p.advance().text
		if p.atPunct("{") {
			var bodies []*ast.ObjectBody
			for p.atPunct("{") {
				bodies = append(bodies, p.parseObjectBody())
			}
			return &ast.ObjectBodyProperty{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, Bodies: bodies}
		}
		var typ ast.Type
		if p.atPunct(":") {
			p.advance()
			typ = p.parseType()
		}
		p.expectPunct("=")
		e := p.parseDeleteOrExpr(start)
		return &ast.ObjectProperty{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, Type: typ, Expr: e}
	}

	// fall back: treat as a bare expression element (covers literals,
	// `new`, parenthesized expressions used as Listing elements).
	e := p.parseExpr()
	return &ast.ObjectElement{Base: ast.NewBase(p.span(start)), Expr: e}
}

// nextIsAssignLike reports whether the current identifier token begins a
// `name = ...` / `name: T = ...` / `name { ... }` property form, as
// opposed to a bare identifier expression used as an element.
func (p *parser) nextIsAssignLike() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if !p.at(tokIdent) {
		return false
	}
	p.advance()
	if p.atPunct("{") || p.atPunct("=") || p.atPunct(":") {
		return true
	}
	return false
}

func (p *parser) peekDoubleBracket() bool {
	return p.atPunct("[") && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "["
}

func (p *parser) parseMemberPredicate(start token) ast.ObjectMember {
	p.advance()
	p.advance()
	pred := p.parseExpr()
	p.expectPunct("]")
	p.expectPunct("]")
	if p.atPunct("{") {
		var bodies []*ast.ObjectBody
		for p.atPunct("{") {
			bodies = append(bodies, p.parseObjectBody())
		}
		return &ast.MemberPredicateBody{Base: ast.NewBase(p.span(start)), Key: pred, Bodies: bodies}
	}
	p.expectPunct("=")
	e := p.parseDeleteOrExpr(start)
	return &ast.MemberPredicate{Base: ast.NewBase(p.span(start)), Predicate: pred, Expr: e}
}

// parseDeleteOrExpr parses the RHS of a property/entry/predicate
// assignment, recognizing the bare `delete` keyword as ast.DeleteMarker
// rather than an identifier reference (spec §4.5 rules 6-7).
func (p *parser) parseDeleteOrExpr(start token) ast.Expr {
	if p.atIdent("delete") && !p.deleteUsedAsIdentifier() {
		p.advance()
		return &ast.DeleteMarker{Base: ast.NewBase(p.span(start))}
	}
	return p.parseExpr()
}

// deleteUsedAsIdentifier disambiguates a `delete` keyword from a user
// identifier literally named `delete` used as the start of a larger
// expression (e.g. `delete.foo()` or `delete(x)`), which would not be
// the deletion sentinel.
func (p *parser) deleteUsedAsIdentifier() bool {
	save := p.pos
	defer func() { p.pos = save }()
	p.advance()
	return p.atPunct(".") || p.atPunct("(") || p.atPunct("[")
}

func (p *parser) parseObjectEntry(start token) ast.ObjectMember {
	p.expectPunct("[")
	key := p.parseExpr()
	p.expectPunct("]")
	if p.atPunct("{") {
		var bodies []*ast.ObjectBody
		for p.atPunct("{") {
			bodies = append(bodies, p.parseObjectBody())
		}
		return &ast.ObjectEntryBody{Base: ast.NewBase(p.span(start)), Key: key, Bodies: bodies}
	}
	p.expectPunct("=")
	val := p.parseDeleteOrExpr(start)
	return &ast.ObjectEntry{Base: ast.NewBase(p.span(start)), Key: key, Value: val}
}

func (p *parser) parseObjectMethod(start token, mods []ast.Modifier) ast.ObjectMember {
	p.advance() // "function"
	name := ""
	if p.at(tokIdent) {
		name = p.advance().text
	}
	var typeParams []string
	if p.atPunct("<") {
		typeParams = p.parseTypeParamList()
	}
	params := p.parseParamList()
	var ret ast.Type
	if p.atPunct(":") {
		p.advance()
		ret = p.parseType()
	}
	var body ast.Expr
	if p.atPunct("=") {
		p.advance()
		body = p.parseExpr()
	}
	return &ast.ObjectMethod{Base: ast.NewBase(p.span(start)), Modifiers: mods, Name: name, TypeParams: typeParams, Params: params, ReturnType: ret, Body: body}
}

// ---- Expressions ----

// precedence climbing over the closed operator set of spec §3.2.
var binPrec = map[ast.BinOp]int{
	ast.OpCoalesce: 1,
	ast.OpOr:       2,
	ast.OpAnd:      3,
	ast.OpEq:       4, ast.OpNeq: 4,
	ast.OpLt: 5, ast.OpLe: 5, ast.OpGt: 5, ast.OpGe: 5,
	ast.OpIs: 5, ast.OpAs: 5,
	ast.OpAdd: 6, ast.OpSub: 6,
	ast.OpMul: 7, ast.OpDiv: 7, ast.OpIntDiv: 7, ast.OpMod: 7,
	ast.OpPow:  8,
	ast.OpPipe: 1,
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		op, ok := p.peekBinOp()
		if !ok {
			break
		}
		prec := binPrec[op]
		if prec < minPrec {
			break
		}
		start := p.cur()
		p.consumeBinOp(op)
		if op == ast.OpIs {
			t := p.parseType()
			left = &ast.TypeCheck{Base: ast.NewBase(p.span(start)), Expr: left, Type: t}
			continue
		}
		if op == ast.OpAs {
			t := p.parseType()
			left = &ast.TypeCast{Base: ast.NewBase(p.span(start)), Expr: left, Type: t}
			continue
		}
		right := p.parseBinary(prec + 1)
		left = &ast.BinaryOp{Base: ast.NewBase(p.span(start)), Left: left, Right: right, Op: op}
	}
	return left
}

func (p *parser) peekBinOp() (ast.BinOp, bool) {
	t := p.cur()
	if t.kind == tokIdent {
		switch t.text {
		case "is":
			return ast.OpIs, true
		case "as":
			return ast.OpAs, true
		case "intDiv":
			return ast.OpIntDiv, true
		case "mod":
			return ast.OpMod, true
		}
		return "", false
	}
	if t.kind != tokPunct {
		return "", false
	}
	switch t.text {
	case "+":
		return ast.OpAdd, true
	case "-":
		return ast.OpSub, true
	case "*":
		return ast.OpMul, true
	case "/":
		return ast.OpDiv, true
	case "==":
		return ast.OpEq, true
	case "!=":
		return ast.OpNeq, true
	case "<":
		return ast.OpLt, true
	case "<=":
		return ast.OpLe, true
	case ">":
		return ast.OpGt, true
	case ">=":
		return ast.OpGe, true
	case "&&":
		return ast.OpAnd, true
	case "||":
		return ast.OpOr, true
	case "??":
		return ast.OpCoalesce, true
	case "|>":
		return ast.OpPipe, true
	}
	return "", false
}

func (p *parser) consumeBinOp(op ast.BinOp) {
	p.advance()
}

func (p *parser) parseUnary() ast.Expr {
	start := p.cur()
	if p.atPunct("-") {
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryMinus{Base: ast.NewBase(p.span(start)), Expr: e}
	}
	if p.atPunct("!") {
		p.advance()
		e := p.parseUnary()
		return &ast.LogicalNot{Base: ast.NewBase(p.span(start)), Expr: e}
	}
	if p.at(tokIdent) && p.cur().text == "intDiv" {
		// handled as binary op keyword; shouldn't reach here as unary
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		start := p.cur()
		switch {
		case p.atPunct("."):
			p.advance()
			name := ""
			if p.at(tokIdent) {
				name = p.advance().text
			}
			var args []ast.Expr
			hasArgs := false
			if p.atPunct("(") {
				hasArgs = true
				args = p.parseArgList()
			}
			q := &ast.QualifiedAccess{Base: ast.NewBase(p.span(start)), Receiver: e, Name: name}
			if hasArgs {
				q.Args = args
			}
			e = q
		case p.atPunct("?."):
			p.advance()
			name := ""
			if p.at(tokIdent) {
				name = p.advance().text
			}
			var args []ast.Expr
			hasArgs := false
			if p.atPunct("(") {
				hasArgs = true
				args = p.parseArgList()
			}
			q := &ast.QualifiedAccess{Base: ast.NewBase(p.span(start)), Receiver: e, Name: name, IsNullable: true}
			if hasArgs {
				q.Args = args
			}
			e = q
		case p.atPunct("["):
			p.advance()
			idx := p.parseExpr()
			p.expectPunct("]")
			e = &ast.Subscript{Base: ast.NewBase(p.span(start)), Receiver: e, Index: idx}
		case p.atPunct("!!"):
			p.advance()
			e = &ast.NonNull{Base: ast.NewBase(p.span(start)), Expr: e}
		case p.atPunct("{"):
			body := p.parseObjectBody()
			e = &ast.Amends{Base: ast.NewBase(p.span(start)), Expr: e, Body: body}
		default:
			return e
		}
	}
}

func (p *parser) parseArgList() []ast.Expr {
	var args []ast.Expr
	p.expectPunct("(")
	for !p.atPunct(")") && !p.at(tokEOF) {
		args = append(args, p.parseExpr())
		if p.atPunct(",") {
			p.advance()
		}
	}
	p.expectPunct(")")
	if args == nil {
		args = []ast.Expr{}
	}
	return args
}

func (p *parser) parsePrimary() ast.Expr {
	start := p.cur()

	switch {
	case p.at(tokInterpString):
		return p.parseInterpString()
	case p.at(tokInt):
		t := p.advance()
		return &ast.IntLit{Base: ast.NewBase(p.span(start)), Digits: t.text}
	case p.at(tokFloat):
		t := p.advance()
		return &ast.FloatLit{Base: ast.NewBase(p.span(start)), Digits: t.text}
	case p.atPunct("("):
		// could be a parenthesized expr or a lambda param list `(x) -> e`
		save := p.pos
		if params, ok := p.tryParseLambdaParams(); ok {
			p.expectPunct("->")
			body := p.parseExpr()
			return &ast.FunctionLiteral{Base: ast.NewBase(p.span(start)), Params: params, Body: body}
		}
		p.pos = save
		p.advance()
		e := p.parseExpr()
		p.expectPunct(")")
		return &ast.Parenthesized{Base: ast.NewBase(p.span(start)), Expr: e}
	case p.atIdent("this"):
		p.advance()
		return &ast.This{Base: ast.NewBase(p.span(start))}
	case p.atIdent("outer"):
		p.advance()
		return &ast.Outer{Base: ast.NewBase(p.span(start))}
	case p.atIdent("module"):
		p.advance()
		return &ast.ModuleRef{Base: ast.NewBase(p.span(start))}
	case p.atIdent("null"):
		p.advance()
		return &ast.NullLit{Base: ast.NewBase(p.span(start))}
	case p.atIdent("true"):
		p.advance()
		return &ast.BoolLit{Base: ast.NewBase(p.span(start)), Value: true}
	case p.atIdent("false"):
		p.advance()
		return &ast.BoolLit{Base: ast.NewBase(p.span(start)), Value: false}
	case p.atIdent("if"):
		p.advance()
		p.expectPunct("(")
		cond := p.parseExpr()
		p.expectPunct(")")
		then := p.parseExpr()
		var els ast.Expr
		if p.atIdent("else") {
			p.advance()
			els = p.parseExpr()
		}
		return &ast.If{Base: ast.NewBase(p.span(start)), Cond: cond, Then: then, Else: els}
	case p.atIdent("let"):
		p.advance()
		p.expectPunct("(")
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		var typ ast.Type
		if p.atPunct(":") {
			p.advance()
			typ = p.parseType()
		}
		p.expectPunct("=")
		binding := p.parseExpr()
		p.expectPunct(")")
		body := p.parseExpr()
		return &ast.Let{Base: ast.NewBase(p.span(start)), Param: ast.Param{Name: name, Type: typ}, Binding: binding, Body: body}
	case p.atIdent("throw"):
		p.advance()
		p.expectPunct("(")
		e := p.parseExpr()
		p.expectPunct(")")
		return &ast.Throw{Base: ast.NewBase(p.span(start)), Expr: e}
	case p.atIdent("trace"):
		p.advance()
		p.expectPunct("(")
		e := p.parseExpr()
		p.expectPunct(")")
		return &ast.Trace{Base: ast.NewBase(p.span(start)), Expr: e}
	case p.atIdent("import"):
		p.advance()
		glob := false
		if p.atPunct("*") {
			glob = true
			p.advance()
		}
		p.expectPunct("(")
		path := p.parseStringLiteralText()
		p.expectPunct(")")
		return &ast.ImportExpr{Base: ast.NewBase(p.span(start)), Path: path, IsGlob: glob}
	case p.atIdent("read") || p.atIdent("readGlob") || p.atIdent("readNull"):
		kind := p.advance().text
		p.expectPunct("(")
		e := p.parseExpr()
		p.expectPunct(")")
		switch kind {
		case "readGlob":
			return &ast.ReadGlob{Base: ast.NewBase(p.span(start)), Expr: e}
		case "readNull":
			return &ast.ReadNull{Base: ast.NewBase(p.span(start)), Expr: e}
		default:
			return &ast.Read{Base: ast.NewBase(p.span(start)), Expr: e}
		}
	case p.atIdent("new"):
		p.advance()
		var typ ast.Type
		if !p.atPunct("{") {
			typ = p.parseAtomType()
		}
		body := p.parseObjectBody()
		return &ast.New{Base: ast.NewBase(p.span(start)), Type: typ, Body: body}
	case p.atIdent("super"):
		p.advance()
		p.expectPunct(".")
		name := ""
		if p.at(tokIdent) {
			name = p.advance().text
		}
		if p.atPunct("(") {
			args := p.parseArgList()
			return &ast.SuperAccess{Base: ast.NewBase(p.span(start)), Name: name, Args: args}
		}
		return &ast.SuperAccess{Base: ast.NewBase(p.span(start)), Name: name}
	case p.at(tokIdent):
		name := p.advance().text
		if p.atPunct("(") {
			args := p.parseArgList()
			return &ast.UnqualifiedAccess{Base: ast.NewBase(p.span(start)), Name: name, Args: args}
		}
		return &ast.UnqualifiedAccess{Base: ast.NewBase(p.span(start)), Name: name}
	default:
		p.errorf("unexpected token %q", p.cur().text)
		p.advance()
		return &ast.NullLit{Base: ast.NewBase(p.span(start))}
	}
}

func (p *parser) tryParseLambdaParams() (params []ast.Param, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if !p.atPunct("(") {
		return nil, false
	}
	p.advance()
	for !p.atPunct(")") {
		if !p.at(tokIdent) {
			return nil, false
		}
		name := p.advance().text
		var typ ast.Type
		if p.atPunct(":") {
			p.advance()
			typ = p.parseType()
		}
		params = append(params, ast.Param{Name: name, Type: typ})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if !p.atPunct(")") {
		return nil, false
	}
	p.advance()
	if !p.atPunct("->") {
		return nil, false
	}
	return params, true
}

func (p *parser) parseInterpString() ast.Expr {
	start := p.cur()
	t := p.advance()
	if len(t.exprSrcs) == 0 {
		text := ""
		if len(t.literals) > 0 {
			text = t.literals[0]
		}
		return &ast.StringConstant{Base: ast.NewBase(p.span(start)), Text: text}
	}
	var parts []ast.Expr
	for _, src := range t.exprSrcs {
		sub := &parser{toks: lex(src)}
		parts = append(parts, sub.parseExpr())
		p.errs = append(p.errs, sub.errs...)
	}
	return &ast.InterpolatedString{Base: ast.NewBase(p.span(start)), Literals: t.literals, Parts: parts, Multi: t.multi}
}
