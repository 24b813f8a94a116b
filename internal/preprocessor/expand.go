package preprocessor

import "strings"

// macroArg is one collected argument.
type macroArg struct {
	raw      []Token
	expanded []Token
	done     bool
}

// enterMacroContext expands the macro named by name, pushing a context with
// its replacement. It returns false when the name is left unexpanded.
func (r *Reader) enterMacroContext(name Token) bool {
	m := name.Node.macro
	var args []macroArg

	if m.Paramc >= 0 {
		paren := r.peekParen()
		if paren.Type != OpenParen {
			r.pushBack(paren)
			return false
		}
		var ok bool
		if args, ok = r.collectArgs(name, paren); !ok {
			return false
		}
	}

	mark := r.tokens.Scratch.Mark()
	for i := range args {
		args[i].raw = r.tokens.Scratch.Slice(r.tokens.Scratch.Copy(args[i].raw))
	}

	// Arguments stay put while they are pre-expanded.
	r.tokens.Scratch.Lock()
	exp := r.substitute(name, m, args)
	r.tokens.Scratch.Unlock()

	toks := r.tokens.Scratch.Slice(r.tokens.Scratch.Copy(exp))
	r.pushContext(m, toks, mark)
	return true
}

// peekParen reads the token after a function-like macro name.
func (r *Reader) peekParen() Token {
	r.state.parsingArgs = 1
	r.state.preventExpansion++
	tok := r.nextRaw()
	for tok.Type == Comment {
		tok = r.nextRaw()
	}
	r.state.preventExpansion--
	r.state.parsingArgs = 0
	return tok
}

// collectArgs reads the arguments of an invocation whose '(' has been
// read. On an arity error the tokens are pushed back so the invocation
// reads as plain text.
func (r *Reader) collectArgs(name Token, paren Token) ([]macroArg, bool) {
	m := name.Node.macro
	r.state.parsingArgs = 2
	r.state.preventExpansion++
	defer func() {
		r.state.preventExpansion--
		r.state.parsingArgs = 0
	}()

	all := []Token{paren}
	args := []macroArg{{}}
	depth := 0
collect:
	for {
		tok := r.nextRaw()
		if tok.Flags&startOfLine != 0 {
			tok.Flags |= PrevWhite
		}
		cur := &args[len(args)-1]
		switch tok.Type {
		case EOF:
			r.errorf("unterminated argument list invoking macro \"%s\"", name.Node.name)
			return nil, false
		case Comment:
			continue
		case OpenParen:
			depth++
		case CloseParen:
			if depth == 0 {
				all = append(all, tok)
				break collect
			}
			depth--
		case Comma:
			if depth == 0 && !(m.Variadic && len(args) == m.Paramc) {
				all = append(all, tok)
				args = append(args, macroArg{})
				continue
			}
		}
		all = append(all, tok)
		cur.raw = append(cur.raw, tok)
	}

	argc := len(args)
	switch {
	case argc == m.Paramc:
		return args, true
	case argc == 1 && m.Paramc == 0 && len(args[0].raw) == 0:
		return nil, true
	case argc < m.Paramc:
		if argc+1 == m.Paramc && m.Variadic {
			if r.opts.Lang.Strict() || r.opts.Pedantic {
				r.pedwarnf("ISO C99 requires rest arguments to be used")
			}
			return append(args, macroArg{}), true
		}
		r.errorf("macro \"%s\" requires %d arguments, but only %d given", name.Node.name, m.Paramc, argc)
	default:
		r.errorf("macro \"%s\" passed %d arguments, but takes just %d", name.Node.name, argc, m.Paramc)
	}
	r.pushBackTokens(all)
	return nil, false
}

// expandArg fully macro-expands an argument in a context of its own.
func (r *Reader) expandArg(arg *macroArg) []Token {
	if arg.done {
		return arg.expanded
	}
	arg.done = true
	if len(arg.raw) == 0 {
		return nil
	}

	r.pushContext(nil, arg.raw, r.tokens.Scratch.Mark())
	depth := len(r.contexts)
	var out []Token
	for {
		tok := r.GetToken()
		if tok.Type == EOF {
			break
		}
		out = append(out, tok)
	}
	for len(r.contexts) >= depth {
		r.popContext()
	}
	arg.expanded = r.tokens.Scratch.Slice(r.tokens.Scratch.Copy(out))
	return arg.expanded
}

// substitute builds the replacement of one invocation.
func (r *Reader) substitute(name Token, m *Macro, args []macroArg) []Token {
	out := make([]Token, 0, len(m.Body))
	src := 0
	literal := func(n int) {
		out = append(out, m.Body[src:src+n]...)
		src += n
	}

	for _, ref := range m.Pattern {
		literal(ref.Literal)
		at := m.Body[src]
		src++
		arg := &args[ref.Arg]

		if ref.PasteBefore && ref.RestArgs && ref.Literal > 0 && !r.opts.Lang.Strict() {
			if n := len(out); m.Body[src-2].Type == Comma {
				// GNU ", ## __VA_ARGS__"
				if len(arg.raw) == 0 {
					out = out[:n-1]
					if ref.PasteAfter {
						out = append(out, Token{Type: placemarker, Flags: PasteLeft})
					}
					continue
				}
				out[n-1].Flags &^= PasteLeft
			}
		}

		var toks []Token
		switch {
		case ref.Stringify:
			toks = []Token{r.stringifyArg(arg.raw, at)}
		case ref.PasteBefore || ref.PasteAfter:
			toks = arg.raw
		default:
			toks = r.expandArg(arg)
		}
		if len(toks) == 0 {
			if !ref.PasteBefore && !ref.PasteAfter {
				continue
			}
			toks = []Token{{Type: placemarker}}
		}

		start := len(out)
		out = append(out, toks...)
		for i := start; i < len(out); i++ {
			out[i].Flags &^= PasteLeft | startOfLine
		}
		out[start].Flags = out[start].Flags&^PrevWhite | at.Flags&PrevWhite
		if ref.PasteAfter {
			out[len(out)-1].Flags |= PasteLeft
		}
	}
	literal(m.Trailing)

	out = r.pasteAll(out)

	res := out[:0]
	for _, t := range out {
		if t.Type == placemarker {
			continue
		}
		t.Pos = name.Pos
		res = append(res, t)
	}
	if len(res) > 0 {
		res[0].Flags = res[0].Flags&^PrevWhite | name.Flags&PrevWhite
	}
	return res
}

// stringifyArg implements the # operator.
func (r *Reader) stringifyArg(raw []Token, at Token) Token {
	var b strings.Builder
	b.WriteByte('"')
	for i, t := range raw {
		if i > 0 && t.Flags&PrevWhite != 0 {
			b.WriteByte(' ')
		}
		s := Spell(t)
		switch t.Type {
		case String, WString, Char, WChar:
			for j := 0; j < len(s); j++ {
				if s[j] == '"' || s[j] == '\\' {
					b.WriteByte('\\')
				}
				b.WriteByte(s[j])
			}
		default:
			b.WriteString(s)
		}
	}

	text := b.String()
	backslashes := 0
	for i := len(text) - 1; i > 0 && text[i] == '\\'; i-- {
		backslashes++
	}
	if backslashes%2 == 1 {
		r.warnf("invalid string literal, ignoring final '\\'")
		text = text[:len(text)-1]
	}
	return Token{Type: String, Flags: at.Flags & PrevWhite, Pos: at.Pos, Text: text + `"`}
}

// pasteAll resolves every ## in toks.
func (r *Reader) pasteAll(toks []Token) []Token {
	res := toks[:0]
	for i := 0; i < len(toks); i++ {
		lhs := toks[i]
		for lhs.Flags&PasteLeft != 0 && i+1 < len(toks) {
			i++
			rhs := toks[i]
			pasted, ok := r.pasteTokens(lhs, rhs)
			if !ok {
				r.report(r.opts.PasteSeverity, r.loc(), "pasting \"%s\" and \"%s\" does not give a valid preprocessing token", Spell(lhs), Spell(rhs))
				lhs.Flags &^= PasteLeft
				res = append(res, lhs)
				lhs = rhs
				continue
			}
			lhs = pasted
		}
		lhs.Flags &^= PasteLeft
		res = append(res, lhs)
	}
	return res
}

// pasteTokens lexes the spellings of lhs and rhs run together and reports
// whether they form exactly one token.
func (r *Reader) pasteTokens(lhs, rhs Token) (Token, bool) {
	switch {
	case lhs.Type == placemarker:
		rhs.Flags = rhs.Flags&^PrevWhite | lhs.Flags&PrevWhite
		return rhs, true
	case rhs.Type == placemarker:
		lhs.Flags = lhs.Flags&^PasteLeft | rhs.Flags&PasteLeft
		return lhs, true
	case lhs.Type == Div && rhs.Type != Eq:
		// would start a comment
		return Token{}, false
	}

	text := Spell(lhs) + Spell(rhs)
	saved := r.state
	r.state.pasting = true
	r.state.angledHeaders = false
	b := r.pushBuffer([]byte(text), true)
	tok := r.lexDirect()
	valid := b.cur == len(b.src)
	r.buffer = b.prev
	r.state = saved
	if !valid || tok.Type == EOF {
		return Token{}, false
	}

	tok.Flags = tok.Flags&(Digraph|NamedOp) | lhs.Flags&PrevWhite | rhs.Flags&PasteLeft
	tok.Pos = lhs.Pos
	return tok, true
}
