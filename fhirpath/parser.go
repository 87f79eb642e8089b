package fhirpath

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/joelmontavon/fhir4ds/expr"
)

type parser struct {
	lex *lexer
}

func (p *parser) tok() token { return p.lex.tok }

func (p *parser) next() { p.lex.next() }

func (p *parser) errf(f string, args ...any) error {
	t := p.tok()
	return SyntaxError{line: t.line, column: t.col, msg: fmt.Sprintf(f, args...)}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok().kind != kind {
		return p.errf("expected %s, got %q", what, p.tok().text)
	}
	p.next()
	return nil
}

// isKeyword reports whether the current token is the given bare keyword.
func (p *parser) isKeyword(kw string) bool {
	return p.tok().kind == tkIdent && p.tok().text == kw
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) parseEntire() (expr.Node, error) {
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.tok().kind != tkEOF {
		return nil, p.errf("unexpected trailing input %q", p.tok().text)
	}
	if len(p.lex.errs) > 0 {
		return nil, errors.Join(p.lex.errs...)
	}
	return n, nil
}

func (p *parser) parseExpression() (expr.Node, error) {
	return p.parseImplies()
}

func (p *parser) parseImplies() (expr.Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("implies") {
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: expr.OpImplies, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseOr() (expr.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch {
		case p.isKeyword("or"):
			op = expr.OpOr
		case p.isKeyword("xor"):
			op = expr.OpXor
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAnd() (expr.Node, error) {
	left, err := p.parseMembership()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		right, err := p.parseMembership()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: expr.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMembership() (expr.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch {
		case p.isKeyword("in"):
			op = expr.OpIn
		case p.isKeyword("contains"):
			op = expr.OpContains
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseEquality() (expr.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch p.tok().kind {
		case tkEq:
			op = expr.OpEqual
		case tkNotEq:
			op = expr.OpNotEqual
		case tkEquiv:
			op = expr.OpEquivalent
		case tkNotEquiv:
			op = expr.OpNotEquiv
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseComparison() (expr.Node, error) {
	left, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch p.tok().kind {
		case tkLess:
			op = expr.OpLess
		case tkLessEq:
			op = expr.OpLessEq
		case tkGreater:
			op = expr.OpGreater
		case tkGreaterEq:
			op = expr.OpGreaterEq
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnion() (expr.Node, error) {
	left, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	for p.tok().kind == tkPipe {
		p.next()
		right, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: expr.OpUnion, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTypeExpr() (expr.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch {
		case p.isKeyword("is"):
			op = expr.OpIs
		case p.isKeyword("as"):
			op = expr.OpAs
		default:
			return left, nil
		}
		p.next()
		spec, err := p.parseTypeSpecifier()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: spec}
	}
}

func (p *parser) parseTypeSpecifier() (expr.Node, error) {
	if p.tok().kind != tkIdent && p.tok().kind != tkDelimIdent {
		return nil, p.errf("expected type specifier, got %q", p.tok().text)
	}
	name := p.tok().text
	p.next()
	for p.tok().kind == tkDot {
		p.next()
		if p.tok().kind != tkIdent && p.tok().kind != tkDelimIdent {
			return nil, p.errf("expected identifier after '.' in type specifier")
		}
		name += "." + p.tok().text
		p.next()
	}
	return &expr.Identifier{Name: name}, nil
}

func (p *parser) parseAdditive() (expr.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch p.tok().kind {
		case tkPlus:
			op = expr.OpAdd
		case tkMinus:
			op = expr.OpSubtract
		case tkAmp:
			op = expr.OpConcat
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (expr.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op expr.BinaryOperator
		switch {
		case p.tok().kind == tkStar:
			op = expr.OpMultiply
		case p.tok().kind == tkSlash:
			op = expr.OpDivide
		case p.isKeyword("div"):
			op = expr.OpDiv
		case p.isKeyword("mod"):
			op = expr.OpMod
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &expr.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (expr.Node, error) {
	switch {
	case p.tok().kind == tkPlus:
		p.next()
		return p.parseUnary()
	case p.tok().kind == tkMinus:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// fold the sign into number literals for canonical output
		if lit, ok := operand.(*expr.Literal); ok {
			switch lit.Kind {
			case expr.LitInteger, expr.LitLong, expr.LitDecimal, expr.LitQuantity:
				return &expr.Literal{Kind: lit.Kind, Value: "-" + lit.Value, Unit: lit.Unit}, nil
			}
		}
		return &expr.UnaryOp{Op: expr.OpNegate, Operand: operand}, nil
	case p.isKeyword("not") && !p.nextIsInvocation():
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr.UnaryOp{Op: expr.OpNot, Operand: operand}, nil
	case p.isKeyword("exists") && p.peekIsLParen():
		// CQL prefix exists(...)
		p.next()
		if err := p.expect(tkLParen, "'('"); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return &expr.FunctionCall{Name: "exists", Args: []expr.Node{inner}}, nil
	case p.isKeyword("exists") && p.peekIsLBracket():
		// CQL prefix exists applied to a retrieve, without parentheses
		p.next()
		inner, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &expr.FunctionCall{Name: "exists", Args: []expr.Node{inner}}, nil
	}
	return p.parsePostfix()
}

// nextIsInvocation distinguishes the CQL unary keyword "not" from a path that
// begins with an element literally named not (e.g. not.something is not valid
// FHIRPath anyway, but not(...) is the FHIRPath function call form).
func (p *parser) nextIsInvocation() bool {
	save := *p.lex
	p.lex.next()
	isInv := p.lex.tok.kind == tkLParen || p.lex.tok.kind == tkDot
	*p.lex = save
	return isInv
}

func (p *parser) peekIsLParen() bool {
	save := *p.lex
	p.lex.next()
	ok := p.lex.tok.kind == tkLParen
	*p.lex = save
	return ok
}

func (p *parser) peekIsLBracket() bool {
	save := *p.lex
	p.lex.next()
	ok := p.lex.tok.kind == tkLBracket
	*p.lex = save
	return ok
}

// parsePostfix parses a term followed by any number of path invocations and
// indexers, plus the CQL aliased-query suffix.
func (p *parser) parsePostfix() (expr.Node, error) {
	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	var segments []expr.Node
	for {
		switch p.tok().kind {
		case tkDot:
			p.next()
			seg, err := p.parseInvocation()
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
			continue
		case tkLBracket:
			p.next()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tkRBracket, "']'"); err != nil {
				return nil, err
			}
			segments = append(segments, &expr.Indexer{Index: idx})
			continue
		}
		break
	}

	node := term
	if len(segments) > 0 {
		all := append([]expr.Node{term}, segments...)
		node = &expr.Path{Segments: all}
	}

	// CQL aliased query: a retrieve or parenthesized source followed by a
	// bare identifier introduces query clauses.
	if p.queryAliasFollows(term) {
		return p.parseQuery(node)
	}
	return node, nil
}

func (p *parser) queryAliasFollows(source expr.Node) bool {
	if _, ok := source.(*expr.Retrieve); !ok {
		return false
	}
	t := p.tok()
	if t.kind != tkIdent {
		return false
	}
	_, isKw := keywords[t.text]
	return !isKw
}

func (p *parser) parseQuery(source expr.Node) (expr.Node, error) {
	q := &expr.Query{Source: source, Alias: p.tok().text}
	p.next()

	for {
		var kind expr.RelationshipKind
		switch {
		case p.isKeyword("with"):
			kind = expr.RelWith
		case p.isKeyword("without"):
			kind = expr.RelWithout
		default:
			goto clauses
		}
		p.next()
		relSource, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if p.tok().kind != tkIdent {
			return nil, p.errf("expected alias after with/without source")
		}
		alias := p.tok().text
		p.next()
		if !p.acceptKeyword("such") || !p.acceptKeyword("that") {
			return nil, p.errf("expected 'such that' in with/without clause")
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		q.Relationships = append(q.Relationships, expr.Relationship{
			Kind: kind, Source: relSource, Alias: alias, SuchThat: cond,
		})
	}

clauses:
	if p.acceptKeyword("where") {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}
	if p.acceptKeyword("return") {
		ret, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		q.Return = ret
	}
	if p.acceptKeyword("sort") {
		if !p.acceptKeyword("by") {
			return nil, p.errf("expected 'by' after 'sort'")
		}
		for {
			item := expr.SortItem{Direction: expr.SortAsc}
			switch {
			case p.isKeyword("asc"), p.isKeyword("ascending"):
				p.next()
			case p.isKeyword("desc"), p.isKeyword("descending"):
				item.Direction = expr.SortDesc
				p.next()
			default:
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				item.Expr = e
				switch {
				case p.isKeyword("asc"), p.isKeyword("ascending"):
					p.next()
				case p.isKeyword("desc"), p.isKeyword("descending"):
					item.Direction = expr.SortDesc
					p.next()
				}
			}
			q.Sort = append(q.Sort, item)
			if p.tok().kind != tkComma {
				break
			}
			p.next()
		}
	}
	return q, nil
}

// parseInvocation parses a single path segment after a dot: an identifier or
// a function call operating on the accumulated path.
func (p *parser) parseInvocation() (expr.Node, error) {
	t := p.tok()
	if t.kind != tkIdent && t.kind != tkDelimIdent {
		return nil, p.errf("expected identifier after '.', got %q", t.text)
	}
	name := t.text
	p.next()

	if p.tok().kind != tkLParen {
		return &expr.Identifier{Name: name}, nil
	}
	p.next()
	var args []expr.Node
	if p.tok().kind != tkRParen {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok().kind != tkComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tkRParen, "')'"); err != nil {
		return nil, err
	}
	return &expr.FunctionCall{Name: name, Args: args}, nil
}

func (p *parser) parseTerm() (expr.Node, error) {
	t := p.tok()
	switch t.kind {
	case tkString:
		p.next()
		return &expr.Literal{Kind: expr.LitString, Value: t.text}, nil
	case tkNumber:
		return p.parseNumber(false)
	case tkLongNumber:
		return p.parseNumber(true)
	case tkDateTime:
		p.next()
		return temporalLiteral(t.text), nil
	case tkLParen:
		p.next()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tkLBrace:
		return p.parseCollectionLiteral()
	case tkLBracket:
		return p.parseRetrieve()
	case tkPercent:
		p.next()
		switch p.tok().kind {
		case tkIdent, tkDelimIdent:
			name := p.tok().text
			p.next()
			return &expr.ExternalConstant{Name: name}, nil
		case tkString:
			name := p.tok().text
			p.next()
			return &expr.ExternalConstant{Name: name}, nil
		default:
			return nil, p.errf("expected name after '%%'")
		}
	case tkIdent, tkDelimIdent:
		switch t.text {
		case "true":
			p.next()
			return &expr.Literal{Kind: expr.LitBoolean, Value: "true"}, nil
		case "false":
			p.next()
			return &expr.Literal{Kind: expr.LitBoolean, Value: "false"}, nil
		case "null":
			p.next()
			return &expr.Literal{Kind: expr.LitNull}, nil
		case "Interval":
			if p.peekIntervalStart() {
				return p.parseInterval()
			}
		case "Tuple":
			if p.peekIsLBrace() {
				return p.parseTuple()
			}
		}
		return p.parseInvocation()
	default:
		return nil, p.errf("unexpected token %q", t.text)
	}
}

func (p *parser) peekIntervalStart() bool {
	save := *p.lex
	p.lex.next()
	k := p.lex.tok.kind
	*p.lex = save
	return k == tkLBracket || k == tkLParen
}

func (p *parser) peekIsLBrace() bool {
	save := *p.lex
	p.lex.next()
	ok := p.lex.tok.kind == tkLBrace
	*p.lex = save
	return ok
}

// parseNumber handles integer, long, decimal, and quantity literals. A number
// followed by a quoted UCUM unit or a calendar duration keyword becomes a
// quantity.
func (p *parser) parseNumber(long bool) (expr.Node, error) {
	t := p.tok()
	p.next()

	kind := expr.LitInteger
	value := t.text
	if long {
		kind = expr.LitLong
	}
	if !long && containsDot(t.text) {
		d, _, err := apd.NewFromString(t.text)
		if err != nil {
			return nil, p.errf("invalid decimal literal %q: %v", t.text, err)
		}
		kind = expr.LitDecimal
		value = d.Text('f')
	}

	// quantity suffix
	if p.tok().kind == tkString {
		unit := p.tok().text
		p.next()
		return &expr.Literal{Kind: expr.LitQuantity, Value: value, Unit: unit}, nil
	}
	if p.tok().kind == tkIdent {
		if unit, ok := durationUnits[p.tok().text]; ok {
			p.next()
			return &expr.Literal{Kind: expr.LitQuantity, Value: value, Unit: unit}, nil
		}
	}
	return &expr.Literal{Kind: kind, Value: value}, nil
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func temporalLiteral(text string) *expr.Literal {
	if len(text) > 0 && text[0] == 'T' {
		return &expr.Literal{Kind: expr.LitTime, Value: text[1:]}
	}
	for i := 0; i < len(text); i++ {
		if text[i] == 'T' {
			return &expr.Literal{Kind: expr.LitDateTime, Value: text}
		}
	}
	return &expr.Literal{Kind: expr.LitDate, Value: text}
}

func (p *parser) parseCollectionLiteral() (expr.Node, error) {
	p.next() // consume '{'
	c := &expr.CollectionLiteral{}
	if p.tok().kind == tkRBrace {
		p.next()
		return c, nil
	}
	for {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, item)
		if p.tok().kind != tkComma {
			break
		}
		p.next()
	}
	if err := p.expect(tkRBrace, "'}'"); err != nil {
		return nil, err
	}
	return c, nil
}

// parseRetrieve parses [Type], [Type: "value set"], and
// [Type: codePath in "value set"].
func (p *parser) parseRetrieve() (expr.Node, error) {
	p.next() // consume '['
	if p.tok().kind != tkIdent && p.tok().kind != tkDelimIdent {
		return nil, p.errf("expected resource type in retrieve")
	}
	r := &expr.Retrieve{ResourceType: p.tok().text}
	p.next()

	if p.tok().kind == tkColon {
		p.next()
		if p.tok().kind == tkIdent {
			r.CodePath = p.tok().text
			p.next()
			if !p.acceptKeyword("in") {
				return nil, p.errf("expected 'in' after code path in retrieve")
			}
		}
		switch p.tok().kind {
		case tkString, tkDelimIdent:
			r.ValueSet = p.tok().text
			p.next()
		default:
			return nil, p.errf("expected value set in retrieve")
		}
	}
	if err := p.expect(tkRBracket, "']'"); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *parser) parseInterval() (expr.Node, error) {
	p.next() // consume 'Interval'
	iv := &expr.Interval{}
	switch p.tok().kind {
	case tkLBracket:
		iv.LowClosed = true
	case tkLParen:
	default:
		return nil, p.errf("expected '[' or '(' after Interval")
	}
	p.next()
	low, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	iv.Low = low
	if err := p.expect(tkComma, "','"); err != nil {
		return nil, err
	}
	high, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	iv.High = high
	switch p.tok().kind {
	case tkRBracket:
		iv.HighClosed = true
	case tkRParen:
	default:
		return nil, p.errf("expected ']' or ')' to close Interval")
	}
	p.next()
	return iv, nil
}

func (p *parser) parseTuple() (expr.Node, error) {
	p.next() // consume 'Tuple'
	if err := p.expect(tkLBrace, "'{'"); err != nil {
		return nil, err
	}
	t := &expr.Tuple{}
	for {
		if p.tok().kind != tkIdent && p.tok().kind != tkDelimIdent && p.tok().kind != tkString {
			return nil, p.errf("expected field name in Tuple")
		}
		name := p.tok().text
		p.next()
		if err := p.expect(tkColon, "':'"); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, expr.TupleField{Name: name, Value: value})
		if p.tok().kind != tkComma {
			break
		}
		p.next()
	}
	if err := p.expect(tkRBrace, "'}'"); err != nil {
		return nil, err
	}
	return t, nil
}
