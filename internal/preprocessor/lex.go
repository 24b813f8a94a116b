package preprocessor

func isIdentStart(c int, dollars bool) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c == '$' && dollars)
}

func isDigit(c int) bool { return c >= '0' && c <= '9' }

func (r *Reader) isIdentChar(c int) bool {
	return isIdentStart(c, r.opts.DollarsInIdent) || isDigit(c)
}

func (r *Reader) eofToken() Token {
	b := r.buffer
	return Token{Type: EOF, Pos: Position{Line: b.line, OutputLine: b.logicalLine, Col: b.col()}}
}

// lexToken returns the next token from the buffer stack, running any
// directives it meets and dropping tokens in skipped conditional blocks.
func (r *Reader) lexToken() Token {
	for {
		if r.aborted {
			return r.eofToken()
		}
		tok := r.lexDirect()
		if tok.Flags&startOfLine != 0 && tok.Type == Hash && !r.state.inDirective {
			if r.handleDirective(tok) {
				continue
			}
		}
		if r.state.inDirective || tok.Type == EOF {
			return tok
		}
		if r.state.skipping {
			continue
		}
		r.buffer.mi.valid = false
		return tok
	}
}

// lexDirect lexes one token from the top buffer. At the end of a file
// buffer it pops the buffer and continues in the includer unless the
// reader is in a directive or collecting macro arguments.
func (r *Reader) lexDirect() Token {
	var flags TokenFlags
	if r.buffer.bol {
		flags |= startOfLine
	}

skip:
	for {
		b := r.buffer
		c, _ := r.peekc()
		switch c {
		case eof:
			if r.endOfBuffer() {
				return r.eofToken()
			}
			flags = 0
			if r.buffer.bol {
				flags = startOfLine
			}
		case '\n', '\r':
			if r.state.inDirective {
				return r.eofToken()
			}
			r.newline()
			flags = startOfLine
		case ' ', '\f', '\v', 0:
			r.getc()
			flags |= PrevWhite
		case '\t':
			r.tab()
			r.getc()
			flags |= PrevWhite
		case '/':
			save := b.save()
			pos := r.pos()
			r.getc()
			next, _ := r.peekc()
			if next != '*' && !(next == '/' && r.opts.CplusplusComments) {
				b.restore(save)
				break skip
			}
			start := save.cur
			r.lexComment(next == '*', pos)
			if r.opts.KeepComments && !r.state.inDirective && r.state.parsingArgs == 0 && !r.state.skipping {
				b.bol = false
				return Token{Type: Comment, Flags: flags, Pos: pos, Text: string(b.src[start:b.cur])}
			}
			flags |= PrevWhite
		default:
			break skip
		}
	}

	b := r.buffer
	tok := Token{Flags: flags, Pos: r.pos()}
	b.bol = false
	if b.isFile() {
		r.lastLoc = Location{File: b.name, Line: tok.Pos.Line, Col: tok.Pos.Col}
	}
	c := r.getc()

	switch {
	case c == 'L':
		if p, _ := r.peekc(); p == '"' || p == '\'' {
			r.getc()
			r.lexString(&tok, p, true)
			return tok
		}
		r.lexIdent(&tok, c)
	case isIdentStart(c, r.opts.DollarsInIdent):
		r.lexIdent(&tok, c)
	case isDigit(c):
		r.lexNumber(&tok, c)
	case c == '"' || c == '\'':
		r.lexString(&tok, c, false)
	default:
		r.lexPunct(&tok, c)
	}
	return tok
}

func (r *Reader) pos() Position {
	b := r.buffer
	return Position{Line: b.line, OutputLine: b.logicalLine, Col: b.col()}
}

// endOfBuffer handles the end of the top buffer. It reports whether EOF
// should be returned; otherwise the buffer was popped.
func (r *Reader) endOfBuffer() bool {
	b := r.buffer
	if b.isFile() && !b.done && len(b.src) > 0 && newlineLen(b.src, len(b.src)-1) == 0 && r.opts.Pedantic {
		b.done = true
		r.report(SeverityPedwarn, r.here(), "no newline at end of file")
	}
	if r.state.inDirective || r.state.parsingArgs > 0 || !b.isFile() {
		return true
	}
	if b.prev == nil {
		if len(b.ifs) > 0 {
			r.closeConditionals(b)
		}
		b.done = true
		return true
	}
	r.popBuffer()
	return false
}

func (r *Reader) lexComment(block bool, start Position) {
	b := r.buffer
	r.inComment = true
	defer func() { r.inComment = false }()
	r.getc()
	if !block {
		for {
			c, _ := r.peekc()
			if c == eof || c == '\n' || c == '\r' {
				return
			}
			r.getc()
		}
	}
	for {
		c, _ := r.peekc()
		switch c {
		case eof:
			r.report(SeverityError, Location{File: b.name, Line: start.Line, Col: start.Col}, "unterminated comment")
			return
		case '\n', '\r':
			n := newlineLen(b.src, b.cur)
			b.cur += n
			b.line++
			b.lineBase = b.cur
			b.colAdjust = 0
		case '\t':
			r.tab()
			r.getc()
		case '*':
			r.getc()
			if r.accept('/') {
				return
			}
		case '/':
			r.getc()
			if p, _ := r.peekc(); p == '*' && r.opts.WarnComments && !r.quiet() {
				r.report(SeverityWarning, r.here(), "\"/*\" within comment")
			}
		default:
			r.getc()
		}
	}
}

func (r *Reader) lexIdent(tok *Token, c int) {
	r.spell = append(r.spell[:0], byte(c))
	for {
		p, _ := r.peekc()
		if !r.isIdentChar(p) {
			break
		}
		r.getc()
		r.spell = append(r.spell, byte(p))
	}
	node := r.syms.InternBytes(r.spell)
	tok.Type = Name
	tok.Node = node

	if node.flags&NodeDiagnostic != 0 && !r.quiet() {
		if node.flags&NodePoisoned != 0 && !r.state.poisonOK {
			r.errorf("attempt to use poisoned \"%s\"", node.name)
		}
		if node == r.nodes.vaArgs && !r.state.vaArgsOK {
			r.errorf("__VA_ARGS__ can only appear in the expansion of a C99 variadic macro")
		}
	}
	if node.flags&NodeOperator != 0 {
		tok.Type = node.operator
		tok.Flags |= NamedOp
	}
}

// lexNumber scans a preprocessing number.
func (r *Reader) lexNumber(tok *Token, c int) {
	r.spell = append(r.spell[:0], byte(c))
	for {
		p, _ := r.peekc()
		if !r.isIdentChar(p) && p != '.' {
			break
		}
		r.getc()
		r.spell = append(r.spell, byte(p))
		if p == 'e' || p == 'E' || ((p == 'p' || p == 'P') && r.opts.Lang.c99()) {
			if s, _ := r.peekc(); s == '+' || s == '-' {
				r.getc()
				r.spell = append(r.spell, byte(s))
			}
		}
	}
	tok.Type = Number
	tok.Text = string(r.spell)
}

// lexString scans a string or character literal whose opening quote has
// been consumed.
func (r *Reader) lexString(tok *Token, quote int, wide bool) {
	b := r.buffer
	afterQuote := b.save()
	r.spell = r.spell[:0]
	if wide {
		r.spell = append(r.spell, 'L')
	}
	r.spell = append(r.spell, byte(quote))
	switch {
	case quote == '"' && wide:
		tok.Type = WString
	case quote == '"':
		tok.Type = String
	case wide:
		tok.Type = WChar
	default:
		tok.Type = Char
	}

	for {
		c, _ := r.peekc()
		if c == eof || c == '\n' || c == '\r' {
			if quote == '\'' && r.opts.Lang == ASM && !wide {
				b.restore(afterQuote)
				tok.Type = Other
				tok.Other = '\''
				return
			}
			if !r.quiet() {
				r.warnAt(tok.Pos, "missing terminating %c character", quote)
			}
			r.spell = append(r.spell, byte(quote))
			break
		}
		r.getc()
		r.spell = append(r.spell, byte(c))
		if c == '\\' {
			if e, _ := r.peekc(); e != eof && e != '\n' && e != '\r' {
				r.getc()
				r.spell = append(r.spell, byte(e))
			}
			continue
		}
		if c == quote {
			break
		}
	}
	tok.Text = string(r.spell)
}

// lexHeaderName tries to scan <...> after the '<' has been consumed.
func (r *Reader) lexHeaderName(tok *Token) bool {
	b := r.buffer
	save := b.save()
	r.spell = append(r.spell[:0], '<')
	for {
		c, _ := r.peekc()
		if c == eof || c == '\n' || c == '\r' {
			b.restore(save)
			return false
		}
		r.getc()
		r.spell = append(r.spell, byte(c))
		if c == '>' {
			tok.Type = HeaderName
			tok.Text = string(r.spell)
			return true
		}
	}
}

func (r *Reader) lexPunct(tok *Token, c int) {
	b := r.buffer
	t := Other
	digraph := false
	switch c {
	case '=':
		t = Eq
		if r.accept('=') {
			t = EqEq
		}
	case '!':
		t = Not
		if r.accept('=') {
			t = NotEq
		}
	case '<':
		if r.state.angledHeaders && r.lexHeaderName(tok) {
			return
		}
		t = Less
		switch {
		case r.accept('='):
			t = LessEq
		case r.accept('<'):
			t = LShift
			if r.accept('=') {
				t = LShiftEq
			}
		case r.opts.Digraphs && r.accept(':'):
			t, digraph = OpenSquare, true
		case r.opts.Digraphs && r.accept('%'):
			t, digraph = OpenBrace, true
		}
	case '>':
		t = Greater
		switch {
		case r.accept('='):
			t = GreaterEq
		case r.accept('>'):
			t = RShift
			if r.accept('=') {
				t = RShiftEq
			}
		}
	case '%':
		t = Mod
		switch {
		case r.accept('='):
			t = ModEq
		case r.opts.Digraphs && r.accept(':'):
			t, digraph = Hash, true
			save := b.save()
			if r.accept('%') {
				if r.accept(':') {
					t = Paste
				} else {
					b.restore(save)
				}
			}
		case r.opts.Digraphs && r.accept('>'):
			t, digraph = CloseBrace, true
		}
	case '+':
		t = Plus
		switch {
		case r.accept('+'):
			t = PlusPlus
		case r.accept('='):
			t = PlusEq
		}
	case '-':
		t = Minus
		switch {
		case r.accept('>'):
			t = Deref
			if r.opts.Lang.cplusplus() && r.accept('*') {
				t = DerefStar
			}
		case r.accept('-'):
			t = MinusMinus
		case r.accept('='):
			t = MinusEq
		}
	case '&':
		t = And
		switch {
		case r.accept('&'):
			t = AndAnd
		case r.accept('='):
			t = AndEq
		}
	case '|':
		t = Or
		switch {
		case r.accept('|'):
			t = OrOr
		case r.accept('='):
			t = OrEq
		}
	case ':':
		t = Colon
		switch {
		case r.opts.Lang.cplusplus() && r.accept(':'):
			t = Scope
		case r.opts.Digraphs && r.accept('>'):
			t, digraph = CloseSquare, true
		}
	case '*':
		t = Mult
		if r.accept('=') {
			t = MultEq
		}
	case '/':
		t = Div
		if r.accept('=') {
			t = DivEq
		}
	case '^':
		t = Xor
		if r.accept('=') {
			t = XorEq
		}
	case '#':
		t = Hash
		if r.accept('#') {
			t = Paste
		}
	case '.':
		if p, _ := r.peekc(); isDigit(p) {
			r.lexNumber(tok, c)
			return
		}
		t = Dot
		save := b.save()
		switch {
		case r.accept('.'):
			if r.accept('.') {
				t = Ellipsis
			} else {
				b.restore(save)
			}
		case r.opts.Lang.cplusplus() && r.accept('*'):
			t = DotStar
		}
	case '?':
		t = Query
	case '~':
		t = Compl
	case ',':
		t = Comma
	case '(':
		t = OpenParen
	case ')':
		t = CloseParen
	case '[':
		t = OpenSquare
	case ']':
		t = CloseSquare
	case '{':
		t = OpenBrace
	case '}':
		t = CloseBrace
	case ';':
		t = Semicolon
	}
	tok.Type = t
	if digraph {
		tok.Flags |= Digraph
	}
	if t == Other {
		tok.Other = byte(c)
	}
}
