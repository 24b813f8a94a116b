package preprocessor

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// exprValue is an #if operand: intmax_t, or uintmax_t when unsigned is set.
type exprValue struct {
	v        int64
	unsigned bool
}

func (x exprValue) truth() bool { return x.v != 0 }

func boolValue(b bool) exprValue {
	if b {
		return exprValue{v: 1}
	}
	return exprValue{}
}

type exprParser struct {
	r      *Reader
	tok    Token
	ntoks  int
	failed bool

	// operands of && || ?: that are not evaluated
	skipEval int

	first       TokenType
	definedAt   int
	definedNode *Node
}

// evalCondition evaluates the expression of #if or #elif. When the whole
// expression is "!defined X" it also returns X as an include-guard
// candidate.
func (r *Reader) evalCondition() (bool, *Node) {
	p := &exprParser{r: r}
	p.advance()
	if p.tok.Type == EOF {
		r.errorf("#%s with no expression", r.dir.name)
		return false, nil
	}
	v := p.comma()
	switch {
	case p.failed, p.tok.Type == EOF:
	case p.tok.Type == Colon:
		p.fail("':' without preceding '?'")
	default:
		p.fail("missing binary operator before token \"%s\"", Spell(p.tok))
	}
	if p.failed {
		return false, nil
	}

	var guard *Node
	if p.first == Not && p.definedAt == 2 && (p.ntoks == 3 || p.ntoks == 5) {
		guard = p.definedNode
	}
	return v.truth(), guard
}

func (p *exprParser) advance() {
	p.tok = p.r.GetToken()
	if p.tok.Type == EOF {
		return
	}
	p.ntoks++
	if p.ntoks == 1 {
		p.first = p.tok.Type
	}
}

func (p *exprParser) fail(format string, args ...any) {
	if !p.failed {
		p.failed = true
		p.r.errorf(format, args...)
	}
}

func (p *exprParser) comma() exprValue {
	v := p.conditional()
	for !p.failed && p.tok.Type == Comma {
		if p.r.opts.Pedantic && (!p.r.opts.Lang.c99() || p.skipEval == 0) {
			p.r.pedwarnf("comma operator in operand of #if")
		}
		p.advance()
		v = p.conditional()
	}
	return v
}

func (p *exprParser) conditional() exprValue {
	cond := p.binary(1)
	if p.failed || p.tok.Type != Query {
		return cond
	}
	p.advance()

	if !cond.truth() {
		p.skipEval++
	}
	a := p.comma()
	if !cond.truth() {
		p.skipEval--
	}
	if p.failed {
		return exprValue{}
	}
	if p.tok.Type != Colon {
		p.fail("'?' without following ':'")
		return exprValue{}
	}
	p.advance()

	if cond.truth() {
		p.skipEval++
	}
	b := p.conditional()
	if cond.truth() {
		p.skipEval--
	}

	res := b
	if cond.truth() {
		res = a
	}
	res.unsigned = a.unsigned || b.unsigned
	return res
}

func binaryPrec(t TokenType) int {
	switch t {
	case Mult, Div, Mod:
		return 10
	case Plus, Minus:
		return 9
	case LShift, RShift:
		return 8
	case Less, Greater, LessEq, GreaterEq:
		return 7
	case EqEq, NotEq:
		return 6
	case And:
		return 5
	case Xor:
		return 4
	case Or:
		return 3
	case AndAnd:
		return 2
	case OrOr:
		return 1
	}
	return 0
}

// binary parses operators of precedence min and above.
func (p *exprParser) binary(min int) exprValue {
	lhs := p.unary()
	for !p.failed {
		op := p.tok
		prec := binaryPrec(op.Type)
		if prec < min || prec == 0 {
			return lhs
		}
		p.advance()
		if p.tok.Type == EOF {
			p.fail("operator '%s' has no right operand", Spell(op))
			return exprValue{}
		}

		skip := (op.Type == AndAnd && !lhs.truth()) || (op.Type == OrOr && lhs.truth())
		if skip {
			p.skipEval++
		}
		rhs := p.binary(prec + 1)
		if skip {
			p.skipEval--
		}
		if p.failed {
			return exprValue{}
		}
		lhs = p.apply(op, lhs, rhs)
	}
	return lhs
}

func (p *exprParser) overflow() {
	if p.skipEval == 0 {
		p.r.pedwarnf("integer overflow in preprocessor expression")
	}
}

func (p *exprParser) apply(op Token, a, b exprValue) exprValue {
	switch op.Type {
	case AndAnd:
		return boolValue(a.truth() && b.truth())
	case OrOr:
		return boolValue(a.truth() || b.truth())
	case LShift, RShift:
		return p.shift(op.Type == LShift, a, b)
	}

	unsigned := a.unsigned || b.unsigned
	ua, ub := uint64(a.v), uint64(b.v)
	switch op.Type {
	case Less:
		if unsigned {
			return boolValue(ua < ub)
		}
		return boolValue(a.v < b.v)
	case Greater:
		if unsigned {
			return boolValue(ua > ub)
		}
		return boolValue(a.v > b.v)
	case LessEq:
		if unsigned {
			return boolValue(ua <= ub)
		}
		return boolValue(a.v <= b.v)
	case GreaterEq:
		if unsigned {
			return boolValue(ua >= ub)
		}
		return boolValue(a.v >= b.v)
	case EqEq:
		return boolValue(a.v == b.v)
	case NotEq:
		return boolValue(a.v != b.v)
	}

	res := exprValue{unsigned: unsigned}
	switch op.Type {
	case And:
		res.v = a.v & b.v
	case Or:
		res.v = a.v | b.v
	case Xor:
		res.v = a.v ^ b.v
	case Plus:
		res.v = int64(ua + ub)
		if !unsigned && (a.v >= 0) == (b.v >= 0) && (res.v >= 0) != (a.v >= 0) {
			p.overflow()
		}
	case Minus:
		res.v = int64(ua - ub)
		if !unsigned && (a.v >= 0) != (b.v >= 0) && (res.v >= 0) != (a.v >= 0) {
			p.overflow()
		}
	case Mult:
		res.v = int64(ua * ub)
		if !unsigned && a.v != 0 && (res.v/a.v != b.v || (a.v == -1 && b.v == math.MinInt64)) {
			p.overflow()
		}
	case Div, Mod:
		if b.v == 0 {
			if p.skipEval == 0 {
				p.fail("division by zero in #if")
			}
			return res
		}
		switch {
		case unsigned && op.Type == Div:
			res.v = int64(ua / ub)
		case unsigned:
			res.v = int64(ua % ub)
		case a.v == math.MinInt64 && b.v == -1:
			if op.Type == Div {
				res.v = a.v
				p.overflow()
			}
		case op.Type == Div:
			res.v = a.v / b.v
		default:
			res.v = a.v % b.v
		}
	}
	return res
}

// shift implements << and >>. Negative counts shift the other way; counts
// of the operand width or more give 0 or, for negative signed values
// shifted right, -1.
func (p *exprParser) shift(left bool, a, b exprValue) exprValue {
	res := exprValue{unsigned: a.unsigned}
	n := b.v
	if !b.unsigned && n < 0 {
		left = !left
		n = -n
	}
	if b.unsigned && uint64(b.v) > 64 {
		n = 64
	}
	if left {
		if n >= 64 {
			return res
		}
		res.v = int64(uint64(a.v) << uint(n))
		if !a.unsigned && res.v>>uint(n) != a.v {
			p.overflow()
		}
		return res
	}
	switch {
	case a.unsigned && n >= 64:
	case a.unsigned:
		res.v = int64(uint64(a.v) >> uint(n))
	case n >= 64:
		if a.v < 0 {
			res.v = -1
		}
	default:
		res.v = a.v >> uint(n)
	}
	return res
}

func (p *exprParser) unary() exprValue {
	tok := p.tok
	switch tok.Type {
	case Plus, Minus, Compl, Not:
		p.advance()
		if p.tok.Type == EOF {
			p.fail("operator '%s' has no right operand", Spell(tok))
			return exprValue{}
		}
		v := p.unary()
		if p.failed {
			return exprValue{}
		}
		switch tok.Type {
		case Minus:
			if !v.unsigned && v.v == math.MinInt64 {
				p.overflow()
			}
			v.v = -v.v
		case Compl:
			v.v = ^v.v
		case Not:
			return boolValue(!v.truth())
		}
		return v
	case OpenParen:
		p.advance()
		v := p.comma()
		if p.failed {
			return exprValue{}
		}
		switch p.tok.Type {
		case CloseParen:
		case Colon:
			p.fail("':' without preceding '?'")
			return exprValue{}
		default:
			p.fail("missing ')' in expression")
			return exprValue{}
		}
		p.advance()
		return v
	}
	return p.primary()
}

func (p *exprParser) primary() exprValue {
	tok := p.tok
	r := p.r
	switch tok.Type {
	case Number:
		v := p.number(tok.Text)
		p.advance()
		return v
	case Char, WChar:
		v := p.charConst(tok)
		p.advance()
		return v
	case Name:
		if tok.Node == r.nodes.defined {
			return p.defined()
		}
		if r.opts.Lang.cplusplus() && (tok.Node == r.nodes.trueOp || tok.Node == r.nodes.falseOp) {
			p.advance()
			return boolValue(tok.Node == r.nodes.trueOp)
		}
		if r.opts.WarnUndef && p.skipEval == 0 {
			r.warnAt(tok.Pos, "\"%s\" is not defined", tok.Node.name)
		}
		p.advance()
		return exprValue{}
	case Hash:
		ok, found := r.testAssertion()
		if !ok {
			p.failed = true
			return exprValue{}
		}
		p.advance()
		return boolValue(found)
	case EOF:
		p.fail("#%s with no expression", r.dir.name)
	case String, WString, HeaderName:
		p.fail("string literals are not valid in #if expressions")
	case CloseParen:
		p.fail("missing expression between '(' and ')'")
	default:
		if tok.Type >= Eq && tok.Type <= DotStar {
			p.fail("token \"%s\" is not valid in #if expressions", Spell(tok))
		} else {
			p.fail("\"%s\" is not valid in #if expressions", Spell(tok))
		}
	}
	return exprValue{}
}

// defined parses "defined X" or "defined ( X )" with macro expansion off.
func (p *exprParser) defined() exprValue {
	r := p.r
	r.state.preventExpansion++
	p.definedAt = p.ntoks
	p.advance()
	paren := p.tok.Type == OpenParen
	if paren {
		p.advance()
	}
	if p.tok.Type != Name {
		r.state.preventExpansion--
		p.fail("operator \"defined\" requires an identifier")
		return exprValue{}
	}
	node := p.tok.Node
	if paren {
		p.advance()
		if p.tok.Type != CloseParen {
			r.state.preventExpansion--
			p.fail("missing ')' after \"defined\"")
			return exprValue{}
		}
	}
	r.state.preventExpansion--
	p.advance()

	p.definedNode = node
	return boolValue(node.IsMacro())
}

// number converts a pp-number to an integer constant.
func (p *exprParser) number(s string) exprValue {
	lower := strings.ToLower(s)
	hex := strings.HasPrefix(lower, "0x")
	if strings.ContainsAny(lower, ".") || (!hex && strings.Contains(lower, "e")) || (hex && strings.Contains(lower, "p")) {
		p.fail("floating point numbers are not valid in #if")
		return exprValue{}
	}

	base, start := 10, 0
	switch {
	case hex:
		base, start = 16, 2
	case lower[0] == '0':
		base = 8
	}
	end := start
	for end < len(lower) && (isDigit(int(lower[end])) || (hex && isHexDigit(lower[end]))) {
		end++
	}
	digits, suffix := lower[start:end], lower[end:]
	switch suffix {
	case "", "u", "l", "ul", "lu":
	case "ll", "ull", "llu":
		if p.r.opts.Pedantic && !p.r.opts.Lang.c99() {
			p.r.pedwarnf("too many 'l' suffixes in integer constant")
		}
	default:
		p.fail("invalid suffix \"%s\" on integer constant", s[end:])
		return exprValue{}
	}
	if digits == "" {
		p.fail("invalid suffix \"%s\" on integer constant", s[1:])
		return exprValue{}
	}
	if base == 8 {
		if i := strings.IndexAny(digits, "89"); i >= 0 {
			p.fail("invalid digit \"%c\" in octal constant", digits[i])
			return exprValue{}
		}
	}

	v := exprValue{unsigned: strings.Contains(suffix, "u")}
	u, err := strconv.ParseUint(digits, base, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		p.r.pedwarnf("integer constant out of range")
	case !v.unsigned && u > math.MaxInt64:
		if base == 10 {
			p.r.warnf("integer constant is so large that it is unsigned")
		}
		v.unsigned = true
	}
	v.v = int64(u)
	return v
}

// charConst evaluates a character constant the way the target's signed
// char and int would.
func (p *exprParser) charConst(tok Token) exprValue {
	r := p.r
	s := tok.Text
	wide := tok.Type == WChar
	if wide {
		s = s[1:]
	}
	body := s[1 : len(s)-1]

	var chars []int64
	for i := 0; i < len(body); {
		c := int64(body[i])
		i++
		if c == '\\' && i < len(body) {
			c, i = p.escape(body, i)
		}
		chars = append(chars, c)
	}

	switch {
	case len(chars) == 0:
		p.fail("empty character constant")
		return exprValue{}
	case wide:
		if len(chars) > 1 {
			r.warnf("character constant too long")
		}
		return exprValue{v: int64(int32(chars[len(chars)-1]))}
	case len(chars) == 1:
		return exprValue{v: int64(int8(chars[0]))}
	}

	if len(chars) > 4 {
		r.warnf("character constant too long")
	} else {
		r.warnf("multi-character character constant")
	}
	var v int32
	for _, c := range chars {
		v = v<<8 | int32(c&0xff)
	}
	return exprValue{v: int64(v)}
}

func (p *exprParser) escape(s string, i int) (int64, int) {
	c := s[i]
	i++
	switch c {
	case 'n':
		return '\n', i
	case 't':
		return '\t', i
	case 'r':
		return '\r', i
	case 'b':
		return '\b', i
	case 'f':
		return '\f', i
	case 'v':
		return '\v', i
	case 'a':
		return 7, i
	case 'e', 'E':
		if p.r.opts.Pedantic {
			p.r.pedwarnf("non-ISO-standard escape sequence, '\\%c'", c)
		}
		return 27, i
	case 'x':
		var v int64
		n := 0
		for ; i < len(s) && isHexDigit(s[i]); i++ {
			v = v<<4 | int64(hexValue(s[i]))
			n++
		}
		if n == 0 {
			p.r.errorf("\\x used with no following hex digits")
		}
		return v, i
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int64(c - '0')
		for n := 1; n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7'; n++ {
			v = v<<3 | int64(s[i]-'0')
			i++
		}
		return v, i
	}
	return int64(c), i
}

func isHexDigit(c byte) bool {
	return isDigit(int(c)) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) int {
	switch {
	case c >= 'a':
		return int(c-'a') + 10
	case c >= 'A':
		return int(c-'A') + 10
	}
	return int(c - '0')
}
