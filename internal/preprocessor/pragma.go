package preprocessor

import "strings"

// PragmaHandler runs a registered pragma. The pragma name has been read;
// the handler may read the rest of the line.
type PragmaHandler func(r *Reader)

// RegisterPragma installs h for "#pragma name", or "#pragma space name"
// when space is not empty.
func (r *Reader) RegisterPragma(space, name string, h PragmaHandler) {
	if r.pragmas == nil {
		r.pragmas = make(map[string]map[string]PragmaHandler)
	}
	m, ok := r.pragmas[space]
	if !ok {
		m = make(map[string]PragmaHandler)
		r.pragmas[space] = m
	}
	m[name] = h
}

func (r *Reader) initPragmas() {
	for _, space := range []string{"", "GCC"} {
		r.RegisterPragma(space, "once", (*Reader).pragmaOnce)
		r.RegisterPragma(space, "poison", (*Reader).pragmaPoison)
		r.RegisterPragma(space, "system_header", (*Reader).pragmaSystemHeader)
	}
}

// doPragma dispatches registered pragmas. Anything else goes to the Pragma
// callback with the whole line.
func (r *Reader) doPragma() {
	r.StartLookahead()
	var h PragmaHandler
	if tok := r.lexBase(); tok.Type == Name {
		h = r.pragmas[""][tok.Node.name]
		if space, ok := r.pragmas[tok.Node.name]; ok && tok.Node.name != "" {
			if next := r.lexBase(); next.Type == Name {
				h = space[next.Node.name]
			}
		}
	}
	r.StopLookahead(h != nil)

	if h != nil {
		h(r)
		return
	}
	r.cb.Pragma(r, r.restOfLine())
}

func (r *Reader) pragmaOnce() {
	b := r.fileBuffer()
	if b == nil || b.prev == nil {
		r.warnAt(r.dirPos, "#pragma once in main file")
	} else {
		b.inc.once = true
	}
	r.checkEOL()
}

func (r *Reader) pragmaPoison() {
	r.state.poisonOK = true
	defer func() { r.state.poisonOK = false }()
	for {
		tok := r.lexBase()
		if tok.Type == EOF {
			return
		}
		if tok.Type != Name {
			r.errorf("invalid #pragma GCC poison directive")
			return
		}
		node := tok.Node
		if node.flags&NodePoisoned != 0 {
			continue
		}
		if node.IsMacro() {
			r.warnAt(tok.Pos, "poisoning existing macro \"%s\"", node.name)
		}
		r.syms.ClearMacro(node)
		r.syms.SetPoisoned(node)
		r.cb.Poison(r, node)
	}
}

func (r *Reader) pragmaSystemHeader() {
	b := r.fileBuffer()
	if b == nil || b.prev == nil {
		r.warnAt(r.dirPos, "#pragma system_header ignored outside include file")
		return
	}
	r.checkEOL()
	b.sysp = 1
	r.cb.FileRename(r, FileChange{
		Reason: RenameFile,
		From:   Location{File: b.name, Line: b.line, Col: 1},
		To:     Location{File: b.name, Line: b.line + 1, Col: 1},
		Sysp:   1,
	})
}

// doPragmaOperator executes _Pragma("..."), the name having been read.
func (r *Reader) doPragmaOperator(name Token) bool {
	open := r.GetToken()
	str := Token{Type: EOF}
	if open.Type == OpenParen {
		str = r.GetToken()
		if str.Type == String || str.Type == WString {
			if r.GetToken().Type != CloseParen {
				str.Type = EOF
			}
		}
	}
	if str.Type != String && str.Type != WString {
		r.errorAt(name.Pos, "_Pragma takes a parenthesized string literal")
		return true
	}
	r.runDirective("pragma", destringize(str.Text))
	return true
}

// destringize undoes the escaping of \ and " in a string literal.
func destringize(s string) string {
	s = strings.TrimPrefix(s, "L")
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '"') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
