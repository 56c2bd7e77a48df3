// Package parser implements §4.6.1's hand-written recursive-descent /
// precedence-climbing parser over query/token, building a query/ast tree in
// a single bump arena per call — the Go replacement for the original's
// bison grammar (`query_bison.cpp`), in the lexer/parser split shape of the
// retrieved token packages.
package parser

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/ledgerwatch/turbodb/path"
	"github.com/ledgerwatch/turbodb/query/ast"
	"github.com/ledgerwatch/turbodb/query/token"
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/value"
)

type parser struct {
	lex   *token.Lexer
	cur   token.Token
	arena *ast.Arena
}

// Parse compiles src into a *ast.Query. Parsing is a pure function of src
// alone — binding against a table schema happens later, in query/binder
// (§4.6.3).
func Parse(src string) (*ast.Query, error) {
	p := &parser{lex: token.NewLexer(src), arena: ast.NewArena()}
	p.advance()

	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	q := &ast.Query{Arena: p.arena, Predicate: pred}
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.SORT:
			if err := p.parseSort(q); err != nil {
				return nil, err
			}
		case token.DISTINCT:
			if err := p.parseDistinct(q); err != nil {
				return nil, err
			}
		case token.LIMIT:
			if err := p.parseLimit(q); err != nil {
				return nil, err
			}
		default:
			return nil, p.syntaxErrorf("unexpected token %q", p.cur.Literal)
		}
	}
	return q, nil
}

func (p *parser) advance() { p.cur = p.lex.Next() }

func (p *parser) syntaxErrorf(format string, args ...interface{}) error {
	return status.Newf(status.SyntaxError, "query: "+format+" (at byte %d)", append(args, int(p.cur.Pos))...)
}

func (p *parser) expect(tt token.Type) error {
	if p.cur.Type != tt {
		return p.syntaxErrorf("expected %s, got %q", tt, p.cur.Literal)
	}
	p.advance()
	return nil
}

// --- logical connectives, lowest precedence first ---

func (p *parser) parseOr() (ast.NodeID, error) {
	left, err := p.parseAnd()
	if err != nil {
		return ast.Invalid, err
	}
	if p.cur.Type != token.OR_OR && p.cur.Type != token.OR {
		return left, nil
	}
	kids := []ast.NodeID{left}
	for p.cur.Type == token.OR_OR || p.cur.Type == token.OR {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return ast.Invalid, err
		}
		kids = append(kids, next)
	}
	return p.arena.New(ast.Node{Kind: ast.KOr, Kids: kids}), nil
}

func (p *parser) parseAnd() (ast.NodeID, error) {
	left, err := p.parseNot()
	if err != nil {
		return ast.Invalid, err
	}
	if p.cur.Type != token.AND_AND && p.cur.Type != token.AND {
		return left, nil
	}
	kids := []ast.NodeID{left}
	for p.cur.Type == token.AND_AND || p.cur.Type == token.AND {
		p.advance()
		next, err := p.parseNot()
		if err != nil {
			return ast.Invalid, err
		}
		kids = append(kids, next)
	}
	return p.arena.New(ast.Node{Kind: ast.KAnd, Kids: kids}), nil
}

func (p *parser) parseNot() (ast.NodeID, error) {
	if p.cur.Type == token.BANG || p.cur.Type == token.NOT {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return ast.Invalid, err
		}
		return p.arena.New(ast.Node{Kind: ast.KNot, Left: inner}), nil
	}
	return p.parseAtom()
}

// parseAtom handles parenthesized predicates, the two boolean literal
// predicates, and every comparison/between/geowithin form.
func (p *parser) parseAtom() (ast.NodeID, error) {
	switch p.cur.Type {
	case token.LPAREN:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return ast.Invalid, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return ast.Invalid, err
		}
		return inner, nil
	case token.TRUEPREDICATE:
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KBoolLit, BoolValue: true}), nil
	case token.FALSEPREDICATE:
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KBoolLit, BoolValue: false}), nil
	}

	left, err := p.parseValue()
	if err != nil {
		return ast.Invalid, err
	}

	switch p.cur.Type {
	case token.EQ, token.NEQ, token.LT, token.LE, token.GT, token.GE, token.IN,
		token.BEGINSWITH, token.ENDSWITH, token.CONTAINS, token.LIKE, token.FULLTEXT:
		op := compareOpFor(p.cur.Type)
		p.advance()
		ci := false
		if p.cur.Type == token.CASE_INSENSITIVE {
			ci = true
			p.advance()
		}
		right, err := p.parseValue()
		if err != nil {
			return ast.Invalid, err
		}
		return p.arena.New(ast.Node{Kind: ast.KCompare, CompareOp: op, CaseInsensitive: ci, Left: left, Right: right}), nil

	case token.BETWEEN:
		p.advance()
		if err := p.expect(token.LBRACE); err != nil {
			return ast.Invalid, err
		}
		lo, err := p.parseValue()
		if err != nil {
			return ast.Invalid, err
		}
		if err := p.expect(token.COMMA); err != nil {
			return ast.Invalid, err
		}
		hi, err := p.parseValue()
		if err != nil {
			return ast.Invalid, err
		}
		if err := p.expect(token.RBRACE); err != nil {
			return ast.Invalid, err
		}
		list := p.arena.New(ast.Node{Kind: ast.KListLiteral, Kids: []ast.NodeID{lo, hi}})
		return p.arena.New(ast.Node{Kind: ast.KBetween, Left: left, Right: list}), nil

	case token.GEOWITHIN:
		p.advance()
		geo, err := p.parseGeoOperand()
		if err != nil {
			return ast.Invalid, err
		}
		return p.arena.New(ast.Node{Kind: ast.KGeoWithin, Left: left, Right: geo}), nil

	default:
		// Bare value used as a boolean predicate (a column of kind Bool
		// referenced alone, matching typical query-language shorthand).
		// Supplemental to the explicit grammar of §4.6.1, which does not
		// name this form, but it falls out naturally of letting Property
		// stand wherever a predicate is expected with implicit "== true".
		return p.arena.New(ast.Node{Kind: ast.KCompare, CompareOp: ast.Eq, Left: left,
			Right: p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.BoolVal(true)})}), nil
	}
}

func compareOpFor(tt token.Type) ast.CompareOp {
	switch tt {
	case token.EQ:
		return ast.Eq
	case token.NEQ:
		return ast.Neq
	case token.LT:
		return ast.Lt
	case token.LE:
		return ast.Le
	case token.GT:
		return ast.Gt
	case token.GE:
		return ast.Ge
	case token.IN:
		return ast.In
	case token.BEGINSWITH:
		return ast.BeginsWith
	case token.ENDSWITH:
		return ast.EndsWith
	case token.CONTAINS:
		return ast.Contains
	case token.LIKE:
		return ast.Like
	case token.FULLTEXT:
		return ast.FullText
	default:
		return ast.Eq
	}
}

// --- values ---

func (p *parser) parseValue() (ast.NodeID, error) {
	quant := ast.NoQuantifier
	switch p.cur.Type {
	case token.ANY:
		quant = ast.QAny
		p.advance()
	case token.ALL:
		quant = ast.QAll
		p.advance()
	case token.NONE:
		quant = ast.QNone
		p.advance()
	}

	id, err := p.parsePrimaryValue()
	if err != nil {
		return ast.Invalid, err
	}
	if quant != ast.NoQuantifier {
		n := p.arena.Get(id)
		if n.Kind != ast.KProperty {
			return ast.Invalid, p.syntaxErrorf("quantifier may only prefix a property path")
		}
		n.Quantifier = quant
	}
	return id, nil
}

func (p *parser) parsePrimaryValue() (ast.NodeID, error) {
	switch p.cur.Type {
	case token.ARGUMENT:
		n, _ := strconv.Atoi(p.cur.Literal)
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, IsArgument: true, ArgIndex: n}), nil

	case token.MINUS:
		p.advance()
		inner, err := p.parsePrimaryValue()
		if err != nil {
			return ast.Invalid, err
		}
		n := p.arena.Get(inner)
		if n.Kind != ast.KConstant || n.IsArgument {
			return ast.Invalid, p.syntaxErrorf("unary minus only applies to a numeric literal")
		}
		switch n.ConstValue.Kind {
		case value.Int:
			n.ConstValue.I = -n.ConstValue.I
		case value.Double:
			n.ConstValue.F64 = -n.ConstValue.F64
		case value.Float:
			n.ConstValue.F32 = -n.ConstValue.F32
		default:
			return ast.Invalid, p.syntaxErrorf("unary minus requires a numeric literal")
		}
		return inner, nil

	case token.INT:
		v, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return ast.Invalid, p.syntaxErrorf("invalid integer literal %q", p.cur.Literal)
		}
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.IntVal(v)}), nil

	case token.FLOAT:
		lit := p.cur.Literal
		p.advance()
		var f float64
		switch lit {
		case "NaN":
			f = nan()
		case "infinity":
			f = inf()
		default:
			var err error
			f, err = strconv.ParseFloat(lit, 64)
			if err != nil {
				return ast.Invalid, p.syntaxErrorf("invalid float literal %q", lit)
			}
		}
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.DoubleVal(f)}), nil

	case token.STRING:
		s := p.cur.Literal
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.StringVal(s)}), nil

	case token.TRUE:
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.BoolVal(true)}), nil
	case token.FALSE:
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.BoolVal(false)}), nil
	case token.NULL:
		p.advance()
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.NullVal()}), nil

	case token.BINARY:
		raw := p.cur.Literal
		p.advance()
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return ast.Invalid, p.syntaxErrorf("invalid base64 in binary(): %v", err)
		}
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.BinaryVal(b)}), nil

	case token.DATE:
		raw := p.cur.Literal
		p.advance()
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return ast.Invalid, p.syntaxErrorf("invalid date() literal %q: %v", raw, err)
		}
		return p.arena.New(ast.Node{Kind: ast.KConstant, ConstValue: value.TimestampVal(value.Ts{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())})}), nil

	case token.LBRACE:
		p.advance()
		var kids []ast.NodeID
		if p.cur.Type != token.RBRACE {
			for {
				el, err := p.parseValue()
				if err != nil {
					return ast.Invalid, err
				}
				kids = append(kids, el)
				if p.cur.Type != token.COMMA {
					break
				}
				p.advance()
			}
		}
		if err := p.expect(token.RBRACE); err != nil {
			return ast.Invalid, err
		}
		return p.arena.New(ast.Node{Kind: ast.KListLiteral, Kids: kids}), nil

	case token.SUBQUERY:
		return p.parseSubquery()

	case token.IDENT:
		return p.parsePathValue()

	default:
		return ast.Invalid, p.syntaxErrorf("unexpected token %q in value position", p.cur.Literal)
	}
}

func nan() float64 { var z float64; return z / z }
func inf() float64 { return 1e308 * 10 }

// parseSubquery parses `SUBQUERY(path, var, predicate).@size`, binding the
// loop variable name syntactically here; query/binder resolves it against
// the element schema (§4.6's [ADD] backlink/subquery supplement).
func (p *parser) parseSubquery() (ast.NodeID, error) {
	p.advance() // SUBQUERY
	if err := p.expect(token.LPAREN); err != nil {
		return ast.Invalid, err
	}
	pathID, err := p.parsePathValue()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.COMMA); err != nil {
		return ast.Invalid, err
	}
	if p.cur.Type != token.IDENT {
		return ast.Invalid, p.syntaxErrorf("expected subquery variable name")
	}
	varName := p.cur.Literal
	p.advance()
	if err := p.expect(token.COMMA); err != nil {
		return ast.Invalid, err
	}
	pred, err := p.parseOr()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.DOT); err != nil {
		return ast.Invalid, err
	}
	if p.cur.Type != token.IDENT || p.cur.Literal != "@size" {
		return ast.Invalid, p.syntaxErrorf("expected .@size after SUBQUERY(...)")
	}
	p.advance()

	return p.arena.New(ast.Node{
		Kind:         ast.KSubquery,
		Left:         pathID,
		SubqueryVar:  varName,
		SubqueryPred: pred,
	}), nil
}

// aggregatePostOps maps the ".@word" suffix spelling to its PostOp.
var aggregatePostOps = map[string]ast.PostOp{
	"@size":   ast.PostSize,
	"@type":   ast.PostType,
	"@count":  ast.PostCount,
	"@max":    ast.PostMax,
	"@min":    ast.PostMin,
	"@sum":    ast.PostSum,
	"@avg":    ast.PostAvg,
	"@keys":   ast.PostKeys,
	"@values": ast.PostValues,
}

// parsePathValue parses a dotted/bracketed path expression, recognizing the
// @links backlink segment and any trailing aggregate/post-op suffix, and
// builds the appropriate Property/ListAggr/LinkAggr node.
func (p *parser) parsePathValue() (ast.NodeID, error) {
	var segs path.Path
	if p.cur.Type != token.IDENT {
		return ast.Invalid, p.syntaxErrorf("expected identifier, got %q", p.cur.Literal)
	}

	for {
		if p.cur.Type != token.IDENT {
			return ast.Invalid, p.syntaxErrorf("expected path segment, got %q", p.cur.Literal)
		}
		word := p.cur.Literal
		p.advance()

		if word == "@links" {
			if err := p.expect(token.DOT); err != nil {
				return ast.Invalid, err
			}
			if p.cur.Type != token.IDENT {
				return ast.Invalid, p.syntaxErrorf("expected backlink type name after @links.")
			}
			typeName := p.cur.Literal
			p.advance()
			if err := p.expect(token.DOT); err != nil {
				return ast.Invalid, err
			}
			if p.cur.Type != token.IDENT {
				return ast.Invalid, p.syntaxErrorf("expected backlink property name after @links.%s.", typeName)
			}
			propName := p.cur.Literal
			p.advance()
			segs = append(segs, path.ColumnElem("@links:"+typeName+":"+propName))
		} else if op, ok := aggregatePostOps[word]; ok {
			return p.finishPathWithPostOp(segs, op)
		} else {
			segs = append(segs, path.ColumnElem(word))
		}

		for p.cur.Type == token.LBRACKET {
			p.advance()
			el, err := p.parseIndexElement()
			if err != nil {
				return ast.Invalid, err
			}
			segs = append(segs, el)
			if err := p.expect(token.RBRACKET); err != nil {
				return ast.Invalid, err
			}
		}

		if p.cur.Type != token.DOT {
			break
		}
		// Peek: a dot followed by an "@word" is a post-op, not a further
		// plain segment; parsePathValue's loop handles both via the same
		// IDENT branch above, so just consume the dot and continue.
		p.advance()
	}

	return p.arena.New(ast.Node{Kind: ast.KProperty, Path: segs}), nil
}

// finishPathWithPostOp builds the Property/ListAggr/LinkAggr node once a
// ".@word" suffix has been consumed, per §4.6.2's split between Property's
// Size/Type/Count post-op and the separate ListAggr/LinkAggr aggregate
// nodes for Max/Min/Sum/Avg.
func (p *parser) finishPathWithPostOp(segs path.Path, op ast.PostOp) (ast.NodeID, error) {
	switch op {
	case ast.PostMax, ast.PostMin, ast.PostSum, ast.PostAvg:
		if p.cur.Type == token.DOT {
			save := p.cur
			p.advance()
			if p.cur.Type == token.IDENT {
				propName := p.cur.Literal
				p.advance()
				return p.arena.New(ast.Node{Kind: ast.KLinkAggr, Path: segs, PostOp: op, AggrProp: propName}), nil
			}
			// Not actually a trailing property; nothing else consumes a
			// bare dot here, so this is a syntax error.
			return ast.Invalid, p.syntaxErrorf("unexpected token after aggregate: %q", save.Literal)
		}
		return p.arena.New(ast.Node{Kind: ast.KListAggr, Path: segs, PostOp: op}), nil
	default:
		return p.arena.New(ast.Node{Kind: ast.KProperty, Path: segs, PostOp: op}), nil
	}
}

func (p *parser) parseIndexElement() (path.Element, error) {
	switch p.cur.Type {
	case token.ASTERISK:
		p.advance()
		return path.WildcardElem(), nil
	case token.IDENT:
		word := p.cur.Literal
		p.advance()
		switch word {
		case "FIRST":
			return path.IndexElem(path.First), nil
		case "LAST":
			return path.IndexElem(path.Last), nil
		default:
			return path.Element{}, p.syntaxErrorf("invalid index %q", word)
		}
	case token.INT:
		n, _ := strconv.Atoi(p.cur.Literal)
		p.advance()
		return path.IndexElem(n), nil
	case token.STRING:
		key := p.cur.Literal
		p.advance()
		return path.DictKeyElem(key), nil
	default:
		return path.Element{}, p.syntaxErrorf("invalid index/key %q", p.cur.Literal)
	}
}

// --- geo literals ---

func (p *parser) parseGeoOperand() (ast.NodeID, error) {
	if p.cur.Type == token.ARGUMENT {
		return p.parsePrimaryValue()
	}
	switch p.cur.Type {
	case token.GEOBOX:
		return p.parseGeoBox()
	case token.GEOCIRCLE:
		return p.parseGeoCircle()
	case token.GEOPOLYGON:
		return p.parseGeoPolygon()
	default:
		return ast.Invalid, p.syntaxErrorf("expected geobox/geocircle/geopolygon, got %q", p.cur.Literal)
	}
}

func (p *parser) parseNumber() (float64, error) {
	neg := false
	if p.cur.Type == token.MINUS {
		neg = true
		p.advance()
	}
	if p.cur.Type != token.INT && p.cur.Type != token.FLOAT {
		return 0, p.syntaxErrorf("expected number, got %q", p.cur.Literal)
	}
	f, err := strconv.ParseFloat(p.cur.Literal, 64)
	if err != nil {
		return 0, p.syntaxErrorf("invalid number %q", p.cur.Literal)
	}
	p.advance()
	if neg {
		f = -f
	}
	return f, nil
}

func (p *parser) parsePoint() (ast.Point, error) {
	lon, err := p.parseNumber()
	if err != nil {
		return ast.Point{}, err
	}
	lat, err := p.parseNumber()
	if err != nil {
		return ast.Point{}, err
	}
	return ast.Point{Lon: lon, Lat: lat}, nil
}

func (p *parser) parseGeoBox() (ast.NodeID, error) {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return ast.Invalid, err
	}
	p1, err := p.parsePoint()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.COMMA); err != nil {
		return ast.Invalid, err
	}
	p2, err := p.parsePoint()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return ast.Invalid, err
	}
	return p.arena.New(ast.Node{Kind: ast.KGeoLiteral, GeoKind: ast.GeoBox, GeoPoints: []ast.Point{p1, p2}}), nil
}

func (p *parser) parseGeoCircle() (ast.NodeID, error) {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return ast.Invalid, err
	}
	center, err := p.parsePoint()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.COMMA); err != nil {
		return ast.Invalid, err
	}
	radius, err := p.parseNumber()
	if err != nil {
		return ast.Invalid, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return ast.Invalid, err
	}
	return p.arena.New(ast.Node{Kind: ast.KGeoLiteral, GeoKind: ast.GeoCircle, GeoPoints: []ast.Point{center}, GeoRadius: radius}), nil
}

func (p *parser) parseGeoPolygon() (ast.NodeID, error) {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return ast.Invalid, err
	}
	outer, err := p.parseRing()
	if err != nil {
		return ast.Invalid, err
	}
	// Hole rings (interior exclusion loops) are not supported by this
	// grammar: the lexer has no ring-separator token, so geopolygon() only
	// ever parses a single outer loop. See DESIGN.md.
	var holes [][]ast.Point
	if err := p.expect(token.RPAREN); err != nil {
		return ast.Invalid, err
	}
	return p.arena.New(ast.Node{Kind: ast.KGeoLiteral, GeoKind: ast.GeoPolygon, GeoPoints: outer, GeoHoles: holes}), nil
}

func (p *parser) parseRing() ([]ast.Point, error) {
	var pts []ast.Point
	for {
		pt, err := p.parsePoint()
		if err != nil {
			return nil, err
		}
		pts = append(pts, pt)
		if p.cur.Type != token.COMMA {
			break
		}
		p.advance()
	}
	return pts, nil
}

// --- descriptors ---

func (p *parser) parseSort(q *ast.Query) error {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return err
	}
	for {
		pathID, err := p.parsePathValue()
		if err != nil {
			return err
		}
		n := p.arena.Get(pathID)
		asc := true
		switch p.cur.Type {
		case token.ASC:
			p.advance()
		case token.DESC:
			asc = false
			p.advance()
		}
		q.Sort = append(q.Sort, ast.SortEntry{Path: n.Path, Ascending: asc})
		if p.cur.Type != token.COMMA {
			break
		}
		p.advance()
	}
	return p.expect(token.RPAREN)
}

func (p *parser) parseDistinct(q *ast.Query) error {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return err
	}
	for {
		pathID, err := p.parsePathValue()
		if err != nil {
			return err
		}
		n := p.arena.Get(pathID)
		q.Distinct = append(q.Distinct, n.Path)
		if p.cur.Type != token.COMMA {
			break
		}
		p.advance()
	}
	return p.expect(token.RPAREN)
}

func (p *parser) parseLimit(q *ast.Query) error {
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return err
	}
	if p.cur.Type != token.INT {
		return p.syntaxErrorf("expected integer in LIMIT(), got %q", p.cur.Literal)
	}
	n, err := strconv.ParseUint(p.cur.Literal, 10, 64)
	if err != nil {
		return p.syntaxErrorf("invalid LIMIT value %q", p.cur.Literal)
	}
	p.advance()
	if err := p.expect(token.RPAREN); err != nil {
		return err
	}
	q.Limit = &n
	return nil
}
