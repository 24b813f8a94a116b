package preprocessor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/fwessels/gocpp/internal/arena"
)

var (
	ErrNoInput = errors.New("no input file")
	ErrTooDeep = errors.New("#include nested too deeply")
)

// context is one level of the macro expansion stack.
type context struct {
	macro *Macro // nil for an argument being pre-expanded
	toks  []Token
	pos   int
	mark  arena.Mark
}

type state struct {
	inDirective      bool
	skipping         bool
	angledHeaders    bool
	parsingArgs      int // 1 while looking for '(', 2 while collecting
	preventExpansion int
	poisonOK         bool
	vaArgsOK         bool
	pasting          bool
}

type specialNodes struct {
	defined  *Node
	vaArgs   *Node
	pragmaOp *Node
	trueOp   *Node
	falseOp  *Node
}

// Reader holds the whole state of one preprocessing run. A Reader is not
// safe for concurrent use; drive it from a single goroutine.
type Reader struct {
	opts Options
	log  logr.Logger
	cb   Callbacks

	syms   *SymbolTable
	tokens *arena.Pool[Token]
	files  *fileTable

	buffer   *buffer
	depth    int
	mainFile string

	contexts []context
	pending  []Token // pushed-back tokens, next one last

	recording []Token
	lookMarks []lookMark
	replay    []Token // raw tokens put back by a directive lookahead
	replayOut []Token // expanded tokens put back by a lookahead
	getDepth  int

	state     state
	inComment bool
	counts    diagCounts
	aborted   bool
	lastLoc   Location

	dir            *directive
	dirPos         Position
	pendingInclude *pendingInclude
	warnedImport   bool

	pragmas map[string]map[string]PragmaHandler
	nodes   specialNodes

	date, clock string
	spell       []byte
}

// NewReader creates a reader. cb may be nil.
func NewReader(opts Options, cb Callbacks) *Reader {
	opts.fill()
	if cb == nil {
		cb = NopCallbacks{}
	}
	r := &Reader{
		opts:   opts,
		log:    opts.Logger,
		cb:     cb,
		syms:   NewSymbolTable(),
		tokens: arena.NewPool[Token](arena.DefaultChunkSize),
	}
	r.lastLoc = Location{Line: 1, Col: 1}
	r.files = newFileTable(r, opts)
	r.initNodes()
	r.initBuiltins()
	r.initPragmas()
	return r
}

var namedOperators = []struct {
	name string
	op   TokenType
}{
	{"and", AndAnd}, {"and_eq", AndEq}, {"bitand", And}, {"bitor", Or},
	{"compl", Compl}, {"not", Not}, {"not_eq", NotEq}, {"or", OrOr},
	{"or_eq", OrEq}, {"xor", Xor}, {"xor_eq", XorEq},
}

func (r *Reader) initNodes() {
	r.nodes = specialNodes{
		defined:  r.syms.Intern("defined"),
		vaArgs:   r.syms.Intern("__VA_ARGS__"),
		pragmaOp: r.syms.Intern("_Pragma"),
		trueOp:   r.syms.Intern("true"),
		falseOp:  r.syms.Intern("false"),
	}
	r.syms.SetDiagnostic(r.nodes.vaArgs)
	for i, d := range directiveTable {
		r.syms.Intern(d.name).directive = i + 1
	}
	if r.opts.Lang.cplusplus() {
		for _, o := range namedOperators {
			r.syms.SetOperator(r.syms.Intern(o.name), o.op)
		}
	}
}

// Options returns the options the reader was created with.
func (r *Reader) Options() Options { return r.opts }

// Symbols exposes the symbol table.
func (r *Reader) Symbols() *SymbolTable { return r.syms }

// StartRead opens the main file and applies the pending command-line
// operations.
func (r *Reader) StartRead(path string) error {
	if path == "" {
		return ErrNoInput
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading main file: %w", err)
	}
	return r.StartReadSource(path, src)
}

// StartReadSource is StartRead for source already in memory.
func (r *Reader) StartReadSource(name string, src []byte) error {
	if r.buffer != nil {
		return fmt.Errorf("%s: reader already started", name)
	}
	r.applyPending()
	r.mainFile = name
	inc := r.files.mainFile(name, src)
	r.pushFile(inc, src, name, -1, 0)
	return nil
}

func (r *Reader) applyPending() {
	for _, p := range r.opts.Pending {
		switch p.Kind {
		case PendingDefine:
			r.Define(p.Arg)
		case PendingUndef:
			r.Undef(p.Arg)
		case PendingAssert:
			r.Assert(p.Arg)
		case PendingUnassert:
			r.Unassert(p.Arg)
		}
	}
}

func (r *Reader) pushFile(inc *includeFile, src []byte, name string, dirIdx, sysp int) {
	from := r.here()
	b := r.pushBuffer(src, false)
	b.line, b.logicalLine = 1, 1
	b.bol = true
	b.name = name
	b.dir = filepath.Dir(name)
	b.inc = inc
	b.dirIdx = dirIdx
	b.sysp = sysp
	b.mi.valid = true
	r.depth++
	inc.entered++
	r.log.V(1).Info("entering file", "file", name, "depth", r.depth)
	r.cb.FileEnter(r, FileChange{
		Reason: EnterFile,
		From:   from,
		To:     Location{File: name, Line: 1, Col: 1},
		Sysp:   sysp,
	})
}

// Finish pops every remaining buffer, reporting unterminated conditionals.
func (r *Reader) Finish() {
	for r.buffer != nil {
		r.popBuffer()
	}
	r.contexts = nil
	r.pending = nil
	r.replayOut = nil
}

// Position returns the location of the lexer in the current file.
func (r *Reader) Position() Location {
	if b := r.fileBuffer(); b != nil {
		return Location{File: b.name, Line: b.line, Col: b.col()}
	}
	return r.lastLoc
}

// IncludeDepth is the number of files on the buffer stack.
func (r *Reader) IncludeDepth() int { return r.depth }

// ForEachNode visits every symbol in definition order.
func (r *Reader) ForEachNode(fn func(*Node) bool) { r.syms.ForEach(fn) }

func (r *Reader) abort() {
	r.aborted = true
	r.contexts = nil
	r.pending = nil
}

// Aborted reports whether a fatal error stopped the run.
func (r *Reader) Aborted() bool { return r.aborted }

// GetToken returns the next fully macro-expanded token. At the end of the
// main file, and after a fatal error, it returns EOF.
func (r *Reader) GetToken() Token {
	if r.getDepth == 0 && len(r.replayOut) > 0 && !r.aborted {
		tok := r.replayOut[0]
		r.replayOut = r.replayOut[1:]
		r.recordOutput(tok)
		return tok
	}
	r.getDepth++
	tok := r.getToken()
	r.getDepth--
	if r.getDepth == 0 {
		r.recordOutput(tok)
	}
	return tok
}

func (r *Reader) getToken() Token {
	for {
		if r.aborted {
			return Token{Type: EOF}
		}
		tok := r.nextRaw()
		if tok.Type != Name || tok.Flags&NoExpand != 0 {
			return tok
		}
		node := tok.Node
		if node.kind != NodeMacro {
			if node == r.nodes.pragmaOp && !r.state.inDirective && r.state.preventExpansion == 0 {
				if r.doPragmaOperator(tok) {
					continue
				}
			}
			return tok
		}
		if r.state.preventExpansion > 0 {
			return tok
		}
		if code, ok := node.Builtin(); ok {
			return r.builtinToken(tok, code)
		}
		if r.enterMacroContext(tok) {
			continue
		}
		return tok
	}
}

// nextRaw reads the next unexpanded token, marking names of macros that
// are being expanded so they are never expanded again.
func (r *Reader) nextRaw() Token {
	tok := r.nextToken()
	if tok.Type == Name && tok.Node.kind == NodeMacro && tok.Node.macro != nil && tok.Node.macro.disabled {
		tok.Flags |= NoExpand
	}
	return tok
}

func (r *Reader) nextToken() Token {
	for {
		if n := len(r.pending); n > 0 {
			tok := r.pending[n-1]
			r.pending = r.pending[:n-1]
			return tok
		}
		if n := len(r.contexts); n > 0 {
			c := &r.contexts[n-1]
			if c.pos < len(c.toks) {
				tok := c.toks[c.pos]
				c.pos++
				return tok
			}
			if c.macro == nil {
				// argument pre-expansion ends here
				return Token{Type: EOF, Pos: r.pos()}
			}
			r.popContext()
			continue
		}
		return r.lexBase()
	}
}

func (r *Reader) pushContext(m *Macro, toks []Token, mark arena.Mark) {
	r.contexts = append(r.contexts, context{macro: m, toks: toks, mark: mark})
	if m != nil {
		m.disabled = true
	}
}

func (r *Reader) popContext() {
	n := len(r.contexts)
	c := r.contexts[n-1]
	r.contexts = r.contexts[:n-1]
	if c.macro != nil {
		c.macro.disabled = false
	}
	r.tokens.Scratch.Release(c.mark)
}

// pushBack returns tok to the front of the stream. EOF is never pushed
// back; reading again produces it anyway.
func (r *Reader) pushBack(tok Token) {
	if tok.Type != EOF {
		r.pending = append(r.pending, tok)
	}
}

// pushBackTokens returns toks to the stream so they are read in order.
func (r *Reader) pushBackTokens(toks []Token) {
	for i := len(toks) - 1; i >= 0; i-- {
		r.pushBack(toks[i])
	}
}

// lexBase reads below the macro contexts: replayed lookahead tokens first,
// then the lexer.
func (r *Reader) lexBase() Token {
	var tok Token
	if len(r.replay) > 0 {
		tok = r.replay[0]
		r.replay = r.replay[1:]
	} else {
		tok = r.lexToken()
	}
	if n := len(r.lookMarks); n > 0 && tok.Type != EOF && r.lookMarks[n-1].directive && r.state.inDirective {
		r.recording = append(r.recording, tok)
	}
	return tok
}

// recordOutput records a token handed out by the outermost GetToken.
func (r *Reader) recordOutput(tok Token) {
	if n := len(r.lookMarks); n > 0 && tok.Type != EOF && !r.lookMarks[n-1].directive {
		r.recording = append(r.recording, tok)
	}
}
