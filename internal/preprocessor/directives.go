package preprocessor

import (
	"strconv"
	"strings"
)

type dirFlags uint8

const (
	dirCond   dirFlags = 1 << iota // interpreted while skipping
	dirIfCond                      // opens a conditional
	dirExtension
)

type directive struct {
	name    string
	handler func(*Reader)
	flags   dirFlags
}

// directiveTable and linemarker are filled in init because the handlers
// refer back to the lexer that consults them.
var (
	directiveTable []directive
	linemarker     directive
)

func init() {
	directiveTable = []directive{
		{"define", (*Reader).doDefine, 0},
		{"include", (*Reader).doInclude, 0},
		{"endif", (*Reader).doEndif, dirCond},
		{"ifdef", (*Reader).doIfdef, dirCond | dirIfCond},
		{"if", (*Reader).doIf, dirCond | dirIfCond},
		{"else", (*Reader).doElse, dirCond},
		{"ifndef", (*Reader).doIfndef, dirCond | dirIfCond},
		{"undef", (*Reader).doUndef, 0},
		{"line", (*Reader).doLine, 0},
		{"elif", (*Reader).doElif, dirCond},
		{"error", (*Reader).doError, 0},
		{"pragma", (*Reader).doPragma, 0},
		{"warning", (*Reader).doWarning, dirExtension},
		{"include_next", (*Reader).doIncludeNext, dirExtension},
		{"ident", (*Reader).doIdent, dirExtension},
		{"import", (*Reader).doImport, dirExtension},
		{"assert", (*Reader).doAssert, dirExtension},
		{"unassert", (*Reader).doUnassert, dirExtension},
		{"sccs", (*Reader).doIdent, dirExtension},
	}
	linemarker = directive{name: "line", handler: (*Reader).doLinemarker}
}

// condFrame is one open conditional of a buffer.
type condFrame struct {
	pos         Position
	typ         string
	wasSkipping bool
	skipElses   bool
	miCmacro    *Node // guard candidate
}

type pendingInclude struct {
	kind   string
	header Token
	angled bool
	pos    Position
}

// directiveSave is the reader state a directive runs without.
type directiveSave struct {
	contexts []context
	pending  []Token
	replay   []Token
	state    state
	release  func()
}

func (r *Reader) startDirective() directiveSave {
	s := directiveSave{contexts: r.contexts, pending: r.pending, replay: r.replay, state: r.state}
	s.release = r.tokens.Scope()
	r.contexts, r.pending, r.replay = nil, nil, nil
	r.state.parsingArgs = 0
	r.state.preventExpansion = 0
	r.state.angledHeaders = false
	r.state.inDirective = true
	return s
}

// endDirective discards the rest of the line and restores the state saved
// by startDirective. The conditional skipping state is kept. Expansions the
// directive left unfinished are dropped along with its scratch tokens.
func (r *Reader) endDirective(s directiveSave) {
	for r.lexDirect().Type != EOF {
	}
	for len(r.contexts) > 0 {
		r.popContext()
	}
	s.release()
	skipping := r.state.skipping
	r.state = s.state
	r.state.skipping = skipping
	r.contexts, r.pending, r.replay = s.contexts, s.pending, s.replay
	r.dir = nil
}

// handleDirective runs the directive introduced by hash. It returns false
// when the line is not a directive and its tokens should be returned as
// text.
func (r *Reader) handleDirective(hash Token) bool {
	wasParsingArgs := r.state.parsingArgs > 0
	saved := r.startDirective()
	r.dirPos = hash.Pos

	var d *directive
	tok := r.lexBase()
	switch {
	case tok.Type == Name && tok.Node.directive > 0:
		d = &directiveTable[tok.Node.directive-1]
		if r.state.skipping && d.flags&dirCond == 0 {
			d = nil
		}
	case tok.Type == Number && r.opts.Lang != ASM:
		if !r.state.skipping {
			d = &linemarker
			r.pushBack(tok)
			if r.opts.Pedantic {
				r.pedwarnf("style of line directive is a GCC extension")
			}
		}
	case tok.Type == EOF:
		// null directive
	case r.state.skipping:
	case r.opts.Lang == ASM:
		// "# text" passes through in assembler source
		r.state = saved.state
		r.contexts, r.pending = saved.contexts, saved.pending
		r.replay = append([]Token{tok}, saved.replay...)
		return false
	default:
		r.errorAt(tok.Pos, "invalid preprocessing directive #%s", Spell(tok))
	}

	if d != nil {
		if d.flags&dirIfCond == 0 {
			r.buffer.mi.valid = false
		}
		if wasParsingArgs && r.opts.Pedantic && !r.state.skipping {
			r.pedwarnf("embedding a directive within macro arguments is not portable")
		}
		if d.flags&dirExtension != 0 && r.opts.Pedantic && !r.state.skipping {
			r.pedwarnf("#%s is a GCC extension", d.name)
		}
		r.dir = d
		d.handler(r)
	}
	r.endDirective(saved)
	r.newline()

	if p := r.pendingInclude; p != nil {
		r.pendingInclude = nil
		r.runInclude(p)
	}
	return true
}

// runDirective executes one directive line given as text, as the
// command-line options and _Pragma do.
func (r *Reader) runDirective(name, text string) {
	node := r.syms.Intern(name)
	if node.directive == 0 {
		return
	}
	saved := r.startDirective()
	r.state.skipping = false
	b := r.pushBuffer([]byte(text), true)
	r.dirPos = r.pos()
	r.dir = &directiveTable[node.directive-1]
	r.dir.handler(r)
	r.endDirective(saved)
	r.state.skipping = saved.state.skipping
	r.buffer = b.prev
	r.pendingInclude = nil
}

// checkEOL complains about tokens left on the directive line.
func (r *Reader) checkEOL() {
	if tok := r.lexBase(); tok.Type != EOF {
		r.pedwarnf("extra tokens at end of #%s directive", r.dir.name)
	}
}

// restOfLine returns the unexpanded tokens up to the end of the directive.
func (r *Reader) restOfLine() []Token {
	var toks []Token
	for {
		tok := r.lexBase()
		if tok.Type == EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (r *Reader) pushConditional(skip bool, typ string, cmacro *Node) {
	b := r.buffer
	f := condFrame{
		pos:         r.dirPos,
		typ:         typ,
		wasSkipping: r.state.skipping,
		skipElses:   r.state.skipping || !skip,
	}
	if b.mi.valid && b.mi.cmacro == nil {
		f.miCmacro = cmacro
	}
	b.mi.valid = false
	r.state.skipping = r.state.skipping || skip
	b.ifs = append(b.ifs, f)
}

func (r *Reader) doIfdef() {
	skip := true
	if !r.state.skipping {
		if node := r.lexMacroNode(); node != nil {
			skip = !node.IsMacro()
			r.checkEOL()
		}
	}
	r.pushConditional(skip, "ifdef", nil)
}

func (r *Reader) doIfndef() {
	skip := true
	var node *Node
	if !r.state.skipping {
		if node = r.lexMacroNode(); node != nil {
			skip = node.IsMacro()
			r.checkEOL()
		}
	}
	r.pushConditional(skip, "ifndef", node)
}

func (r *Reader) doIf() {
	skip := true
	var cmacro *Node
	if !r.state.skipping {
		var v bool
		v, cmacro = r.evalCondition()
		skip = !v
	}
	r.pushConditional(skip, "if", cmacro)
}

// topConditional returns the innermost open conditional of the current
// buffer, reporting an error naming the directive when there is none.
func (r *Reader) topConditional() *condFrame {
	b := r.buffer
	if len(b.ifs) == 0 {
		r.errorAt(r.dirPos, "#%s without #if", r.dir.name)
		return nil
	}
	return &b.ifs[len(b.ifs)-1]
}

func (r *Reader) afterElse(f *condFrame) {
	r.errorAt(r.dirPos, "#%s after #else", r.dir.name)
	r.report(SeverityNote, r.locAt(f.pos), "the conditional began here")
}

func (r *Reader) doElse() {
	f := r.topConditional()
	if f == nil {
		return
	}
	if f.typ == "else" {
		r.afterElse(f)
	}
	f.typ = "else"
	r.state.skipping = f.skipElses
	f.skipElses = true
	f.miCmacro = nil
	if !f.wasSkipping {
		r.checkEOL()
	}
}

func (r *Reader) doElif() {
	f := r.topConditional()
	if f == nil {
		return
	}
	if f.typ == "else" {
		r.afterElse(f)
	}
	f.typ = "elif"
	if f.skipElses {
		r.state.skipping = true
	} else {
		r.state.skipping = false
		v, _ := r.evalCondition()
		r.state.skipping = !v
		f.skipElses = v
	}
	f.miCmacro = nil
}

func (r *Reader) doEndif() {
	f := r.topConditional()
	if f == nil {
		return
	}
	if !f.wasSkipping {
		r.checkEOL()
	}
	b := r.buffer
	if len(b.ifs) == 1 && f.miCmacro != nil {
		b.mi.valid = true
		b.mi.cmacro = f.miCmacro
	}
	r.state.skipping = f.wasSkipping
	b.ifs = b.ifs[:len(b.ifs)-1]
}

func (r *Reader) doLine()       { r.lineDirective(false) }
func (r *Reader) doLinemarker() { r.lineDirective(true) }

func (r *Reader) lineDirective(marker bool) {
	b := r.buffer
	tok := r.GetToken()
	n, err := strconv.ParseUint(tok.Text, 10, 32)
	if tok.Type != Number || err != nil || strings.TrimLeft(tok.Text, "0123456789") != "" {
		r.errorf("\"%s\" after #line is not a positive integer", Spell(tok))
		return
	}
	if r.opts.Pedantic && (n == 0 || n > 2147483647) {
		r.pedwarnf("line number out of range")
	}

	name := b.name
	reason := RenameFile
	sysp := b.sysp
	tok = r.GetToken()
	switch tok.Type {
	case String:
		name = unquoteString(tok.Text)
		if marker {
			if reason, sysp = r.lineFlags(); sysp < 0 {
				return
			}
		} else {
			r.checkEOL()
		}
	case EOF:
	default:
		r.errorf("invalid format #line directive")
		return
	}

	from := Location{File: b.name, Line: b.line, Col: 1}
	b.name = name
	b.sysp = sysp
	b.line = int(n) - 1
	b.logicalLine = b.line
	fc := FileChange{Reason: reason, From: from, To: Location{File: name, Line: int(n), Col: 1}, Sysp: sysp}
	switch reason {
	case EnterFile:
		r.cb.FileEnter(r, fc)
	case LeaveFile:
		r.cb.FileLeave(r, fc)
	default:
		r.cb.FileRename(r, fc)
	}
}

// lineFlags reads the flags of a linemarker. sysp is -1 after an error.
func (r *Reader) lineFlags() (reason ChangeReason, sysp int) {
	reason = RenameFile
	last := 0
	for {
		tok := r.GetToken()
		if tok.Type == EOF {
			return reason, sysp
		}
		f, err := strconv.Atoi(tok.Text)
		if tok.Type != Number || err != nil || f <= last || f > 4 || (f <= 2 && last != 0) {
			r.errorf("invalid flag \"%s\" in line directive", Spell(tok))
			return reason, -1
		}
		switch f {
		case 1:
			reason = EnterFile
		case 2:
			reason = LeaveFile
		case 3:
			sysp = 1
		case 4:
			sysp = 2
		}
		last = f
	}
}

func unquoteString(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (r *Reader) doError()   { r.diagnosticDirective(SeverityError) }
func (r *Reader) doWarning() { r.diagnosticDirective(SeverityWarning) }

func (r *Reader) diagnosticDirective(sev Severity) {
	msg := "#" + r.dir.name
	if rest := SpellTokens(r.restOfLine()); rest != "" {
		msg += " " + rest
	}
	r.report(sev, r.locAt(r.dirPos), "%s", msg)
}

func (r *Reader) doIdent() {
	tok := r.GetToken()
	if tok.Type != String {
		r.errorf("invalid #%s directive", r.dir.name)
		return
	}
	r.cb.Ident(r, tok.Text)
	r.checkEOL()
}

func (r *Reader) doInclude()     { r.includeDirective("include") }
func (r *Reader) doIncludeNext() { r.includeDirective("include_next") }

func (r *Reader) doImport() {
	if !r.warnedImport {
		r.warnedImport = true
		r.warnAt(r.dirPos, "#import is obsolete, use an #ifndef wrapper in the header file")
	}
	r.includeDirective("import")
}

// parseInclude reads the header name of an include directive, macro
// expanding the line when it is not a literal name.
func (r *Reader) parseInclude() (Token, bool) {
	r.state.angledHeaders = true
	tok := r.GetToken()
	r.state.angledHeaders = false

	switch tok.Type {
	case String, HeaderName:
	case Less:
		var b strings.Builder
		b.WriteByte('<')
		for {
			t := r.GetToken()
			if t.Type == EOF {
				r.errorf("missing terminating > character")
				return Token{}, false
			}
			if t.Type == Greater {
				break
			}
			if t.Flags&PrevWhite != 0 && b.Len() > 1 {
				b.WriteByte(' ')
			}
			b.WriteString(Spell(t))
		}
		b.WriteByte('>')
		tok = Token{Type: HeaderName, Flags: tok.Flags, Pos: tok.Pos, Text: b.String()}
	default:
		r.errorf("#%s expects \"FILENAME\" or <FILENAME>", r.dir.name)
		return Token{}, false
	}
	if len(tok.Text) <= 2 {
		r.errorf("empty file name in #%s", r.dir.name)
		return Token{}, false
	}
	r.checkEOL()
	return tok, true
}

func (r *Reader) includeDirective(kind string) {
	header, ok := r.parseInclude()
	if !ok {
		return
	}
	if kind == "include_next" && r.fileBuffer() != nil && r.fileBuffer().prev == nil {
		r.warnAt(r.dirPos, "#include_next in primary source file")
		kind = "include"
	}
	r.cb.Include(r, kind, header)
	r.pendingInclude = &pendingInclude{
		kind:   kind,
		header: header,
		angled: header.Type == HeaderName,
		pos:    r.dirPos,
	}
}

// runInclude enters the file named by an include directive once the
// directive line has been consumed.
func (r *Reader) runInclude(p *pendingInclude) {
	if r.depth >= r.opts.MaxIncludeDepth {
		r.fatalf("%v", ErrTooDeep)
		return
	}
	includer := r.fileBuffer()
	name := p.header.Text[1 : len(p.header.Text)-1]
	start := 0
	if p.kind == "include_next" && includer != nil {
		start = includer.dirIdx + 1
	}

	inc, path, idx, err := r.files.find(name, p.angled, start, p.kind == "include_next", includer)
	if err != nil {
		r.report(SeverityError, r.locAt(p.pos), "%s: %v", name, err)
		return
	}
	if inc.once || (p.kind == "import" && inc.entered > 0) {
		r.log.V(1).Info("skipping file included once", "file", inc.path)
		return
	}
	if inc.guard != nil && inc.guard.IsMacro() {
		r.log.V(1).Info("skipping guarded file", "file", inc.path, "guard", inc.guard.name)
		return
	}
	src, err := r.files.read(inc)
	if err != nil {
		r.report(SeverityError, r.locAt(p.pos), "%s: %v", name, err)
		return
	}
	if p.kind == "import" {
		inc.once = true
	}
	sysp := 0
	if includer != nil {
		sysp = includer.sysp
	}
	r.pushFile(inc, src, path, idx, sysp)
}
