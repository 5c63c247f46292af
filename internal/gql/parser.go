package gql

import (
	"fmt"
	"strings"
)

// Parser is a recursive-descent parser over a pre-lexed token stream.
// Grounded on pkg/cypher/transaction.go's keyword-prefix statement
// dispatch (peek the first keyword, branch to a dedicated parse routine)
// and pkg/cypher/pattern_parser.go's pattern-body parsing.
type Parser struct {
	toks []Token
	pos  int
}

// Parse lexes and parses a single GQL statement.
func Parse(src string) (Statement, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

// kw reports whether the current token is an identifier matching kw
// case-insensitively (GQL keywords are case-insensitive, §6).
func (p *Parser) kw(kw string) bool {
	t := p.cur()
	return (t.Kind == TokIdent) && strings.EqualFold(t.Text, kw)
}

func (p *Parser) punct(s string) bool {
	t := p.cur()
	return t.Kind == TokPunct && t.Text == s
}

func (p *Parser) expectPunct(s string) error {
	if !p.punct(s) {
		return fmt.Errorf("gql: expected %q, got %q at %d", s, p.cur().Text, p.cur().Pos)
	}
	p.advance()
	return nil
}

func (p *Parser) expectKw(kw string) error {
	if !p.kw(kw) {
		return fmt.Errorf("gql: expected keyword %q, got %q at %d", kw, p.cur().Text, p.cur().Pos)
	}
	p.advance()
	return nil
}

func identText(t Token) string {
	return t.Text
}

func (p *Parser) parseIdentifier() (string, error) {
	t := p.cur()
	if t.Kind != TokIdent && t.Kind != TokDelimitedIdent {
		return "", fmt.Errorf("gql: expected identifier, got %q at %d", t.Text, t.Pos)
	}
	p.advance()
	return identText(t), nil
}

// parseGraphPath parses a `/schema/graph`-style path, or a bare/delimited
// identifier sequence joined with `.` or `/` (§3 "full graph path").
func (p *Parser) parseGraphPath() (string, error) {
	var b strings.Builder
	if p.punct("/") {
		b.WriteString("/")
		p.advance()
	}
	for {
		id, err := p.parseIdentifier()
		if err != nil {
			return "", err
		}
		b.WriteString(id)
		if p.punct("/") {
			b.WriteString("/")
			p.advance()
			continue
		}
		if p.punct(".") {
			b.WriteString("/")
			p.advance()
			continue
		}
		break
	}
	return b.String(), nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.kw("BEGIN"):
		p.advance()
		return &TransactionStatement{Verb: "BEGIN"}, nil
	case p.kw("COMMIT"):
		p.advance()
		return &TransactionStatement{Verb: "COMMIT"}, nil
	case p.kw("ROLLBACK"):
		p.advance()
		return &TransactionStatement{Verb: "ROLLBACK"}, nil
	case p.kw("CLOSE"):
		p.advance()
		return &SessionStatement{Directive: "Close"}, nil
	case p.kw("RESET"):
		p.advance()
		return &SessionStatement{Directive: "Reset"}, nil
	case p.kw("SESSION"):
		// `SESSION SET ...` (§6 DDL surface) is an alias for a bare
		// `SET ...` session-characteristic statement.
		p.advance()
		return p.parseSetOrSessionSet()
	case p.kw("SET"):
		return p.parseSetOrSessionSet()
	case p.kw("CREATE"), p.kw("DROP"):
		return p.parseDDLOrInsert()
	case p.kw("CALL"):
		return p.parseCall()
	default:
		return p.parseDataStatement()
	}
}

// parseSetOrSessionSet disambiguates session-level `SET GRAPH|SCHEMA|TIME
// ZONE ...` from a data-statement starting with a SET clause (the latter
// requires a preceding MATCH, so a leading SET is always session-level).
func (p *Parser) parseSetOrSessionSet() (Statement, error) {
	p.advance() // SET
	switch {
	case p.kw("GRAPH"):
		p.advance()
		path, err := p.parseGraphPath()
		if err != nil {
			return nil, err
		}
		return &SessionStatement{Directive: "SetGraph", Value: path}, nil
	case p.kw("SCHEMA"):
		p.advance()
		path, err := p.parseGraphPath()
		if err != nil {
			return nil, err
		}
		return &SessionStatement{Directive: "SetSchema", Value: path}, nil
	case p.kw("TIME"):
		p.advance()
		if err := p.expectKw("ZONE"); err != nil {
			return nil, err
		}
		t := p.advance()
		return &SessionStatement{Directive: "SetTimeZone", Value: t.Text}, nil
	default:
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &SetStatement{ParamName: name, Value: val}, nil
	}
}

func (p *Parser) parseDDLOrInsert() (Statement, error) {
	verb := strings.ToUpper(p.advance().Text) // CREATE | DROP
	if p.kw("SCHEMA") || p.kw("GRAPH") {
		entityKind := strings.ToUpper(p.advance().Text)
		if entityKind == "GRAPH" && p.kw("TYPE") {
			p.advance()
			entityKind = "GRAPH TYPE"
		}
		stmt := &DDLStatement{Verb: verb, EntityKind: entityKind, Options: map[string]any{}}
		if verb == "CREATE" && p.kw("IF") {
			p.advance()
			if err := p.expectKw("NOT"); err != nil {
				return nil, err
			}
			if err := p.expectKw("EXISTS"); err != nil {
				return nil, err
			}
			stmt.IfNotExist = true
		}
		if verb == "DROP" && p.kw("IF") {
			p.advance()
			if err := p.expectKw("EXISTS"); err != nil {
				return nil, err
			}
			stmt.IfExists = true
		}
		path, err := p.parseGraphPath()
		if err != nil {
			return nil, err
		}
		stmt.Path = path
		if verb == "DROP" && p.kw("CASCADE") {
			p.advance()
			stmt.Cascade = true
		}
		return stmt, nil
	}
	// CREATE as the first clause of an INSERT-shaped data statement
	// (`CREATE (a:Label)` is legal GQL INSERT syntax alongside `INSERT`).
	return p.parseDataStatementFrom(verb)
}

func (p *Parser) parseCall() (Statement, error) {
	p.advance() // CALL
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	// Procedure names are dotted (`gql.nodeCount`, `tx.setMetaData`, §6
	// "CALL gql.<builtin>(...)").
	for p.punct(".") {
		p.advance()
		part, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		name += "." + part
	}
	stmt := &CallStatement{Name: name}
	if p.punct("(") {
		p.advance()
		for !p.punct(")") {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Args = append(stmt.Args, arg)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if p.kw("YIELD") {
		p.advance()
		for {
			id, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			stmt.Yield = append(stmt.Yield, id)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return stmt, nil
}

func (p *Parser) parseDataStatement() (Statement, error) {
	return p.parseDataStatementFrom("")
}

// parseDataStatementFrom parses a clause pipeline; leadingVerb is "CREATE"
// when the caller already consumed a leading CREATE keyword that turned
// out to start an INSERT-shaped pattern rather than a DDL statement.
func (p *Parser) parseDataStatementFrom(leadingVerb string) (Statement, error) {
	stmt := &DataStatement{}
	if leadingVerb == "CREATE" {
		clause, err := p.parseInsertBody()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}

	for !p.atEOF() {
		switch {
		case p.kw("MATCH"):
			c, err := p.parseMatchClause(false)
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("OPTIONAL"):
			p.advance()
			if err := p.expectKw("MATCH"); err != nil {
				return nil, err
			}
			c, err := p.parseMatchClause(true)
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("INSERT"):
			p.advance()
			c, err := p.parseInsertBody()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("SET"):
			c, err := p.parseSetClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("REMOVE"):
			c, err := p.parseRemoveClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("DELETE"):
			c, err := p.parseDeleteClause(false)
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("DETACH"):
			p.advance()
			if err := p.expectKw("DELETE"); err != nil {
				return nil, err
			}
			c, err := p.parseDeleteClause(true)
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("WITH"):
			c, err := p.parseWithClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("UNWIND"):
			c, err := p.parseUnwindClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("WHERE"):
			// A bare WHERE belongs to the UNWIND-preprocessing shape
			// (§4.5.4: "UNWIND ... AS item, optional WHERE, REMOVE|SET");
			// every other WHERE is parsed inline by its owning clause.
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, &WhereClause{Expr: expr})
		case p.kw("RETURN"):
			c, err := p.parseReturnClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		case p.kw("UNION"), p.kw("INTERSECT"), p.kw("EXCEPT"):
			c, err := p.parseSetOpClause()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, c)
		default:
			return nil, fmt.Errorf("gql: unexpected token %q at %d", p.cur().Text, p.cur().Pos)
		}
	}
	return stmt, nil
}

func (p *Parser) parseMatchClause(optional bool) (*MatchClause, error) {
	p.advance() // MATCH
	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	c := &MatchClause{Patterns: patterns, Optional: optional}
	if p.kw("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Where = where
	}
	return c, nil
}

func (p *Parser) parseInsertBody() (*InsertClause, error) {
	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	return &InsertClause{Patterns: patterns}, nil
}

func (p *Parser) parsePatternList() ([]PatternElement, error) {
	var patterns []PatternElement
	for {
		el, err := p.parsePatternElement()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, el)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return patterns, nil
}

// parsePatternElement parses `(n1)-[e1]->(n2)-[e2]-(n3)...`, sandwiching
// edges between nodes per §4.5.3's insert-pattern validation.
func (p *Parser) parsePatternElement() (PatternElement, error) {
	var el PatternElement
	n, err := p.parseNodePattern()
	if err != nil {
		return el, err
	}
	el.Nodes = append(el.Nodes, n)

	for p.punct("-") || p.punct("<-") || p.punct("-[") || p.punct("<-[") {
		edge, err := p.parseEdgePattern()
		if err != nil {
			return el, err
		}
		el.Edges = append(el.Edges, edge)
		n, err := p.parseNodePattern()
		if err != nil {
			return el, err
		}
		el.Nodes = append(el.Nodes, n)
	}
	return el, nil
}

func (p *Parser) parseNodePattern() (NodePattern, error) {
	var n NodePattern
	if err := p.expectPunct("("); err != nil {
		return n, err
	}
	if p.cur().Kind == TokIdent && !p.kw("AS") {
		id, err := p.parseIdentifier()
		if err != nil {
			return n, err
		}
		n.Variable = id
	}
	for p.punct(":") {
		p.advance()
		label, err := p.parseIdentifier()
		if err != nil {
			return n, err
		}
		n.Labels = append(n.Labels, label)
	}
	if p.punct("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return n, err
		}
		n.Properties = props
	}
	if err := p.expectPunct(")"); err != nil {
		return n, err
	}
	return n, nil
}

func (p *Parser) parseEdgePattern() (EdgePattern, error) {
	var e EdgePattern
	e.Direction = DirEither

	if p.punct("<-[") {
		e.Direction = DirIncoming
		p.advance()
	} else if p.punct("-[") {
		p.advance()
	} else if p.punct("<-") {
		e.Direction = DirIncoming
		p.advance()
	} else if p.punct("-") {
		p.advance()
		if p.punct("[") {
			p.advance()
		}
	}

	if p.cur().Kind == TokIdent {
		id, err := p.parseIdentifier()
		if err != nil {
			return e, err
		}
		e.Variable = id
	}
	if p.punct(":") {
		p.advance()
		label, err := p.parseIdentifier()
		if err != nil {
			return e, err
		}
		e.Label = label
	}
	if p.punct("{") {
		props, err := p.parsePropertyMap()
		if err != nil {
			return e, err
		}
		e.Properties = props
	}
	if p.punct("]") {
		p.advance()
	}
	if p.punct("->") {
		if e.Direction == DirIncoming {
			return e, fmt.Errorf("gql: edge pattern cannot point both directions at %d", p.cur().Pos)
		}
		e.Direction = DirOutgoing
		p.advance()
	} else if p.punct("-") {
		p.advance()
	}
	return e, nil
}

func (p *Parser) parsePropertyMap() (map[string]Expr, error) {
	props := make(map[string]Expr)
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.punct("}") {
		key, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		props[key] = val
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return props, nil
}

func (p *Parser) parseSetClause() (*SetClause, error) {
	p.advance() // SET
	c := &SetClause{}
	for {
		a, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		c.Assignments = append(c.Assignments, a)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return c, nil
}

func (p *Parser) parseAssignment() (Assignment, error) {
	var a Assignment
	varName, err := p.parseIdentifier()
	if err != nil {
		return a, err
	}
	if p.punct(":") {
		p.advance()
		label, err := p.parseIdentifier()
		if err != nil {
			return a, err
		}
		a.Target = varName
		a.AddLabel = label
		return a, nil
	}
	target := varName
	if p.punct(".") {
		p.advance()
		prop, err := p.parseIdentifier()
		if err != nil {
			return a, err
		}
		target = varName + "." + prop
	}
	if err := p.expectPunct("="); err != nil {
		return a, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return a, err
	}
	a.Target = target
	a.Value = val
	return a, nil
}

func (p *Parser) parseRemoveClause() (*RemoveClause, error) {
	p.advance() // REMOVE
	c := &RemoveClause{RemoveLabels: map[string]string{}}
	for {
		varName, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if p.punct(":") {
			p.advance()
			label, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			c.RemoveLabels[varName] = label
		} else if p.punct(".") {
			p.advance()
			prop, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			c.Targets = append(c.Targets, varName+"."+prop)
		} else {
			c.Targets = append(c.Targets, varName)
		}
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return c, nil
}

func (p *Parser) parseDeleteClause(detach bool) (*DeleteClause, error) {
	p.advance() // DELETE
	c := &DeleteClause{Detach: detach}
	for {
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		c.Variables = append(c.Variables, id)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return c, nil
}

func (p *Parser) parseWithClause() (*WithClause, error) {
	p.advance() // WITH
	c := &WithClause{}
	projs, err := p.parseProjectionList()
	if err != nil {
		return nil, err
	}
	c.Projections = projs
	if p.kw("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Where = where
	}
	if p.kw("ORDER") {
		order, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		c.OrderBy = order
	}
	if p.kw("LIMIT") {
		p.advance()
		lim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Limit = lim
	}
	return c, nil
}

func (p *Parser) parseUnwindClause() (*UnwindClause, error) {
	p.advance() // UNWIND
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("AS"); err != nil {
		return nil, err
	}
	alias, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	return &UnwindClause{Source: src, As: alias}, nil
}

func (p *Parser) parseReturnClause() (*ReturnClause, error) {
	p.advance() // RETURN
	c := &ReturnClause{}
	if p.kw("DISTINCT") {
		p.advance()
		c.Distinct = true
	}
	projs, err := p.parseProjectionList()
	if err != nil {
		return nil, err
	}
	c.Projections = projs
	if p.kw("ORDER") {
		order, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		c.OrderBy = order
	}
	if p.kw("SKIP") {
		p.advance()
		skip, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Skip = skip
	}
	if p.kw("LIMIT") {
		p.advance()
		lim, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Limit = lim
	}
	return c, nil
}

func (p *Parser) parseSetOpClause() (*SetOpClause, error) {
	op := strings.ToUpper(p.advance().Text)
	if op == "UNION" && p.kw("ALL") {
		p.advance()
		op = "UNION ALL"
	}
	right, err := p.parseDataStatement()
	if err != nil {
		return nil, err
	}
	ds, ok := right.(*DataStatement)
	if !ok {
		return nil, fmt.Errorf("gql: right side of %s must be a data statement", op)
	}
	return &SetOpClause{Op: op, Right: ds}, nil
}

func (p *Parser) parseProjectionList() ([]Projection, error) {
	var projs []Projection
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		proj := Projection{Expr: expr}
		if p.kw("AS") {
			p.advance()
			alias, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			proj.Alias = alias
		}
		projs = append(projs, proj)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return projs, nil
}

func (p *Parser) parseOrderBy() ([]OrderTerm, error) {
	p.advance() // ORDER
	if err := p.expectKw("BY"); err != nil {
		return nil, err
	}
	var terms []OrderTerm
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		term := OrderTerm{Expr: expr}
		if p.kw("DESC") {
			p.advance()
			term.Descending = true
		} else if p.kw("ASC") {
			p.advance()
		}
		terms = append(terms, term)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return terms, nil
}

// ---- expression parsing (precedence-climbing) ----

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.kw("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.kw("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.kw("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"=": true, "<>": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == TokPunct && comparisonOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}
	if p.kw("IS") {
		p.advance()
		negate := false
		if p.kw("NOT") {
			p.advance()
			negate = true
		}
		if err := p.expectKw("NULL"); err != nil {
			return nil, err
		}
		op := "IS NULL"
		if negate {
			op = "IS NOT NULL"
		}
		return &UnaryExpr{Op: op, Operand: left}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.punct("+") || p.punct("-") {
		op := p.advance().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.punct("*") || p.punct("/") || p.punct("%") {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.punct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.punct(".") {
		p.advance()
		prop, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if v, ok := expr.(*Variable); ok {
			expr = &PropertyAccess{Variable: v.Name, Property: prop}
			continue
		}
		return nil, fmt.Errorf("gql: property access on non-variable expression at %d", p.cur().Pos)
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Kind {
	case TokNumber:
		p.advance()
		n, err := parseNumberLiteral(t.Text)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: n}, nil
	case TokString:
		p.advance()
		return &Literal{Value: t.Text}, nil
	case TokParam:
		p.advance()
		return &Parameter{Name: t.Text}, nil
	case TokIdent, TokDelimitedIdent:
		return p.parseIdentOrCall(t)
	case TokPunct:
		switch t.Text {
		case "(":
			p.advance()
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseListLiteral()
		}
	}
	return nil, fmt.Errorf("gql: unexpected token %q at %d", t.Text, t.Pos)
}

func (p *Parser) parseIdentOrCall(t Token) (Expr, error) {
	switch strings.ToUpper(t.Text) {
	case "TRUE":
		p.advance()
		return &Literal{Value: true}, nil
	case "FALSE":
		p.advance()
		return &Literal{Value: false}, nil
	case "NULL":
		p.advance()
		return &Literal{Value: nil}, nil
	}

	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if p.punct("(") {
		p.advance()
		call := &FunctionCall{Name: name}
		if p.kw("DISTINCT") {
			p.advance()
			call.Distinct = true
		}
		for !p.punct(")") {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
	return &Variable{Name: name}, nil
}

func (p *Parser) parseListLiteral() (Expr, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	lit := &ListLiteral{}
	for !p.punct("]") {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, item)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return lit, nil
}
