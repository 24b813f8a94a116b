package preprocessor

import (
	"fmt"
	"strings"
)

// SubstRef describes one argument occurrence in a replacement list:
// Literal body tokens are copied, then argument Arg is substituted.
type SubstRef struct {
	Literal     int
	Arg         int
	Stringify   bool
	PasteBefore bool
	PasteAfter  bool
	RestArgs    bool
}

// Macro is a macro definition.
type Macro struct {
	Params   []*Node
	Paramc   int // -1 for object-like macros
	Variadic bool

	// Body is the replacement list with parameters replaced by MacroArg
	// tokens. It lives in the permanent token arena.
	Body     []Token
	Pattern  []SubstRef
	Trailing int

	File string
	Line int
	Col  int

	disabled bool
}

// FunctionLike reports whether the macro takes arguments.
func (m *Macro) FunctionLike() bool { return m.Paramc >= 0 }

// Disabled reports whether the macro is being expanded.
func (m *Macro) Disabled() bool { return m.disabled }

func (m *Macro) buildPattern() {
	m.Pattern = m.Pattern[:0]
	lit := 0
	for i, t := range m.Body {
		if t.Type != MacroArg {
			lit++
			continue
		}
		m.Pattern = append(m.Pattern, SubstRef{
			Literal:     lit,
			Arg:         t.Arg,
			Stringify:   t.Flags&StringifyArg != 0,
			PasteBefore: i > 0 && m.Body[i-1].Flags&PasteLeft != 0,
			PasteAfter:  t.Flags&PasteLeft != 0,
			RestArgs:    m.Variadic && t.Arg == m.Paramc-1,
		})
		lit = 0
	}
	m.Trailing = lit
}

func (m *Macro) equal(o *Macro) bool {
	if m.Paramc != o.Paramc || m.Variadic != o.Variadic || len(m.Body) != len(o.Body) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range m.Body {
		if !equalTokens(m.Body[i], o.Body[i]) {
			return false
		}
	}
	return true
}

// lexMacroNode reads the macro name of #define, #undef, #ifdef and #ifndef.
func (r *Reader) lexMacroNode() *Node {
	tok := r.lexBase()
	switch {
	case tok.Flags&NamedOp != 0:
		r.errorf("\"%s\" cannot be used as a macro name as it is an operator in C++", tok.Node.name)
	case tok.Type == Name:
		if tok.Node == r.nodes.defined {
			r.errorf("\"defined\" cannot be used as a macro name")
			return nil
		}
		if tok.Node.flags&NodePoisoned != 0 {
			return nil
		}
		return tok.Node
	case tok.Type == EOF:
		r.errorf("no macro name given in #%s directive", r.dir.name)
	default:
		r.errorf("macro names must be identifiers")
	}
	return nil
}

func (r *Reader) doDefine() {
	node := r.lexMacroNode()
	if node == nil {
		return
	}
	if !r.createDefinition(node) {
		return
	}
	r.cb.Define(r, node)
}

func (r *Reader) doUndef() {
	node := r.lexMacroNode()
	if node == nil {
		return
	}
	r.checkEOL()
	if node.kind != NodeMacro {
		return
	}
	if node.flags&NodeBuiltin != 0 {
		r.pedwarnf("undefining \"%s\"", node.name)
	}
	r.cb.Undef(r, node)
	r.syms.ClearMacro(node)
}

func (r *Reader) createDefinition(node *Node) bool {
	m := &Macro{Paramc: -1, File: r.lastLoc.File, Line: r.dirPos.Line, Col: r.dirPos.Col}

	tok := r.lexBase()
	if tok.Type == OpenParen && tok.Flags&PrevWhite == 0 {
		ok := r.parseParams(m)
		r.state.vaArgsOK = false
		if !ok {
			return false
		}
		r.state.vaArgsOK = m.Variadic && len(m.Params) > 0 && m.Params[len(m.Params)-1] == r.nodes.vaArgs
		defer func() { r.state.vaArgsOK = false }()
		tok = r.lexBase()
	} else if tok.Type != EOF && tok.Flags&PrevWhite == 0 && r.opts.Lang.c99() {
		r.pedwarnf("ISO C99 requires whitespace after the macro name")
	}

	var body []Token
	for ; tok.Type != EOF; tok = r.lexBase() {
		tok.Flags &^= startOfLine | NoExpand
		if tok.Type == Name {
			if idx := paramIndex(m, tok.Node); idx >= 0 {
				tok = Token{Type: MacroArg, Arg: idx, Flags: tok.Flags & PrevWhite, Pos: tok.Pos}
			}
		}

		n := len(body)
		if m.Paramc >= 0 && n > 0 && body[n-1].Type == Hash && body[n-1].Flags&StringifyArg != 0 {
			if tok.Type == MacroArg {
				// the '#' becomes the stringified argument
				body[n-1] = Token{Type: MacroArg, Arg: tok.Arg, Flags: body[n-1].Flags, Pos: body[n-1].Pos}
				continue
			}
			if r.opts.Lang != ASM {
				r.errorf("'#' is not followed by a macro parameter")
				return false
			}
			body[n-1].Flags &^= StringifyArg
		}

		switch {
		case tok.Type == Paste:
			if n == 0 {
				r.errorf("'##' cannot appear at either end of a macro expansion")
				return false
			}
			body[n-1].Flags |= PasteLeft
			continue
		case tok.Type == Hash && m.Paramc >= 0:
			// tentatively a stringify operator
			tok.Flags |= StringifyArg
		}
		body = append(body, tok)
	}

	if n := len(body); n > 0 {
		if body[n-1].Flags&PasteLeft != 0 {
			r.errorf("'##' cannot appear at either end of a macro expansion")
			return false
		}
		if body[n-1].Type == Hash && body[n-1].Flags&StringifyArg != 0 {
			if r.opts.Lang != ASM {
				r.errorf("'#' is not followed by a macro parameter")
				return false
			}
			body[n-1].Flags &^= StringifyArg
		}
		body[0].Flags &^= PrevWhite
	}

	m.Body = r.tokens.Permanent.Slice(r.tokens.Permanent.Copy(body))
	m.buildPattern()

	if node.kind == NodeMacro {
		if node.flags&NodeBuiltin != 0 {
			r.pedwarnf("redefining \"%s\"", node.name)
		} else if old := node.macro; !old.equal(m) {
			r.report(SeverityWarning, r.locAt(r.dirPos), "\"%s\" redefined (previous definition at %s:%d:%d)", node.name, old.File, old.Line, old.Col)
		}
	}
	if err := r.syms.SetMacro(node, m); err != nil {
		r.errorf("\"%s\": %v", node.name, err)
		return false
	}
	return true
}

func paramIndex(m *Macro, n *Node) int {
	for i, p := range m.Params {
		if p == n {
			return i
		}
	}
	return -1
}

func (r *Reader) parseParams(m *Macro) bool {
	m.Paramc = 0
	prevIdent := false
	for {
		tok := r.lexBase()
		switch tok.Type {
		case Name:
			if prevIdent {
				r.errorf("macro parameters must be comma-separated")
				return false
			}
			prevIdent = true
			if tok.Node == r.nodes.vaArgs {
				return false
			}
			if paramIndex(m, tok.Node) >= 0 {
				r.errorf("duplicate macro parameter \"%s\"", tok.Node.name)
				return false
			}
			m.Params = append(m.Params, tok.Node)
			m.Paramc++
			continue
		case CloseParen:
			if prevIdent || m.Paramc == 0 {
				return true
			}
			r.errorf("parameter name missing")
			return false
		case Comma:
			if !prevIdent {
				r.errorf("parameter name missing")
				return false
			}
			prevIdent = false
			continue
		case Ellipsis:
			m.Variadic = true
			if !prevIdent {
				m.Params = append(m.Params, r.nodes.vaArgs)
				m.Paramc++
				if r.opts.Pedantic && !r.opts.Lang.c99() {
					r.pedwarnf("anonymous variadic macros were introduced in C99")
				}
			} else if r.opts.Pedantic {
				r.pedwarnf("ISO C does not permit named variadic macros")
			}
			if r.lexBase().Type == CloseParen {
				return true
			}
			r.errorf("missing ')' in macro parameter list")
			return false
		case EOF:
			r.errorf("missing ')' in macro parameter list")
			return false
		default:
			r.errorf("\"%s\" may not appear in macro parameter list", Spell(tok))
			return false
		}
	}
}

// MacroDefinition renders the definition of node in #define syntax, without
// the leading "#define ".
func (r *Reader) MacroDefinition(node *Node) string {
	var b strings.Builder
	b.WriteString(node.name)
	m := node.macro
	if m == nil {
		if _, ok := node.Builtin(); ok {
			return b.String()
		}
		return ""
	}
	if m.Paramc >= 0 {
		b.WriteByte('(')
		for i, p := range m.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			if m.Variadic && i == len(m.Params)-1 {
				if p != r.nodes.vaArgs {
					b.WriteString(p.name)
				}
				b.WriteString("...")
				continue
			}
			b.WriteString(p.name)
		}
		b.WriteByte(')')
	}
	if len(m.Body) > 0 {
		b.WriteByte(' ')
	}
	afterPaste := false
	for i, t := range m.Body {
		if i > 0 && (t.Flags&PrevWhite != 0 || afterPaste) {
			b.WriteByte(' ')
		}
		if t.Flags&StringifyArg != 0 {
			b.WriteByte('#')
		}
		if t.Type == MacroArg {
			b.WriteString(m.Params[t.Arg].name)
		} else {
			b.WriteString(Spell(t))
		}
		afterPaste = t.Flags&PasteLeft != 0
		if afterPaste {
			b.WriteString(" ##")
		}
	}
	return b.String()
}

// Define defines a macro from "NAME" (value 1) or "NAME=VALUE".
func (r *Reader) Define(def string) {
	if i := strings.IndexByte(def, '='); i >= 0 {
		def = def[:i] + " " + def[i+1:]
	} else {
		def += " 1"
	}
	r.runDirective("define", def)
}

// Undef removes the definition of name.
func (r *Reader) Undef(name string) {
	r.runDirective("undef", name)
}

// Defined reports whether name is currently a macro.
func (r *Reader) Defined(name string) bool {
	n, ok := r.syms.Lookup(name)
	return ok && n.IsMacro()
}

// Lookup returns the macro definition of name, if any.
func (r *Reader) Lookup(name string) (*Macro, bool) {
	n, ok := r.syms.Lookup(name)
	if !ok || n.macro == nil {
		return nil, false
	}
	return n.macro, true
}

func (m *Macro) String() string {
	return fmt.Sprintf("macro(%d params, %d tokens)", m.Paramc, len(m.Body))
}
