package preprocessor

const eof = -1

var trigraphMap = [256]byte{
	'=': '#', '(': '[', '/': '\\', ')': ']', '\'': '^',
	'<': '{', '!': '|', '>': '}', '-': '~',
}

// buffer is one frame of the input stack: a file or injected text.
type buffer struct {
	prev *buffer

	src         []byte
	cur         int
	lineBase    int // offset of the current physical line
	line        int
	logicalLine int // line the current logical line started on
	colAdjust   int
	bol         bool
	warnedTo    int // trigraph warnings already issued below this offset

	name   string // nominal name, changed by #line
	dir    string // directory the file was opened from
	inc    *includeFile
	dirIdx int // search-chain index the file was found in, -1 if none
	sysp   int

	ifs []condFrame
	mi  struct {
		valid  bool
		cmacro *Node
	}

	// Injected text has already been through trigraph replacement and
	// line splicing.
	fromStage3 bool
	done       bool
}

type cursor struct {
	cur, lineBase, line, logicalLine, colAdjust int
}

func (b *buffer) save() cursor {
	return cursor{b.cur, b.lineBase, b.line, b.logicalLine, b.colAdjust}
}

func (b *buffer) restore(c cursor) {
	b.cur, b.lineBase, b.line, b.logicalLine, b.colAdjust = c.cur, c.lineBase, c.line, c.logicalLine, c.colAdjust
}

// col is the 1-based, tab-adjusted column of the cursor.
func (b *buffer) col() int {
	return b.cur - b.lineBase + b.colAdjust + 1
}

func (b *buffer) isFile() bool { return b.inc != nil }

func newlineLen(src []byte, i int) int {
	if i >= len(src) {
		return 0
	}
	switch src[i] {
	case '\n':
		return 1
	case '\r':
		if i+1 < len(src) && src[i+1] == '\n' {
			return 2
		}
		return 1
	}
	return 0
}

func isHSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v'
}

// skipSplices steps over any backslash-newlines at the cursor.
func (r *Reader) skipSplices() {
	b := r.buffer
	for {
		i := b.cur
		n := 0
		switch {
		case i < len(b.src) && b.src[i] == '\\':
			n = 1
		case r.opts.Trigraphs && i+2 < len(b.src) && b.src[i] == '?' && b.src[i+1] == '?' && b.src[i+2] == '/':
			n = 3
		default:
			return
		}
		j := i + n
		for j < len(b.src) && isHSpace(b.src[j]) {
			j++
		}
		nl := newlineLen(b.src, j)
		if nl == 0 {
			return
		}
		if j > i+n && !r.quiet() {
			r.report(SeverityWarning, r.here(), "backslash and newline separated by space")
		}
		b.cur = j + nl
		b.line++
		b.lineBase = b.cur
		b.colAdjust = 0
	}
}

// peekc returns the character at the cursor after splicing and trigraph
// replacement, and the number of source bytes it spans.
func (r *Reader) peekc() (int, int) {
	b := r.buffer
	if !b.fromStage3 {
		r.skipSplices()
	}
	if b.cur >= len(b.src) {
		return eof, 0
	}
	c := b.src[b.cur]
	if c == '?' && r.opts.Trigraphs && !b.fromStage3 && b.cur+2 < len(b.src) && b.src[b.cur+1] == '?' {
		if t := trigraphMap[b.src[b.cur+2]]; t != 0 {
			return int(t), 3
		}
	}
	return int(c), 1
}

// getc consumes and returns the character at the cursor.
func (r *Reader) getc() int {
	c, n := r.peekc()
	b := r.buffer
	if n > 0 && r.opts.WarnTrigraphs && !b.fromStage3 && b.cur >= b.warnedTo && !r.quiet() && !r.inComment {
		if n == 3 {
			r.report(SeverityWarning, r.here(), "trigraph ??%c converted to %c", b.src[b.cur+2], c)
			b.warnedTo = b.cur + 3
		} else if c == '?' && b.cur+2 < len(b.src) && b.src[b.cur+1] == '?' && trigraphMap[b.src[b.cur+2]] != 0 {
			r.report(SeverityWarning, r.here(), "trigraph ??%c ignored", b.src[b.cur+2])
			b.warnedTo = b.cur + 3
		}
	}
	b.cur += n
	return c
}

// accept consumes c if it is next.
func (r *Reader) accept(c int) bool {
	if p, _ := r.peekc(); p == c {
		r.getc()
		return true
	}
	return false
}

// newline consumes a line terminator at the cursor.
func (r *Reader) newline() {
	b := r.buffer
	n := newlineLen(b.src, b.cur)
	if n == 0 {
		return
	}
	b.cur += n
	b.line++
	b.logicalLine = b.line
	b.lineBase = b.cur
	b.colAdjust = 0
	b.bol = true
}

// tab accounts for a tab at the cursor before it is consumed.
func (r *Reader) tab() {
	b := r.buffer
	col := b.cur - b.lineBase + b.colAdjust
	b.colAdjust += r.opts.TabStop - 1 - col%r.opts.TabStop
}

func (r *Reader) quiet() bool {
	return r.state.skipping || r.state.pasting
}

// here is the location of the lexer cursor.
func (r *Reader) here() Location {
	b := r.buffer
	loc := r.lastLoc
	if b != nil && b.isFile() {
		loc = Location{File: b.name, Line: b.line, Col: b.col()}
	}
	return loc
}

// fileBuffer returns the innermost buffer that reads a file.
func (r *Reader) fileBuffer() *buffer {
	for b := r.buffer; b != nil; b = b.prev {
		if b.isFile() {
			return b
		}
	}
	return nil
}

// PushBuffer injects src above the current input. The tokens it lexes come
// before those of the buffer below; at its end GetToken returns EOF until
// PopBuffer is called.
func (r *Reader) PushBuffer(src []byte) {
	r.pushBuffer(src, false)
}

func (r *Reader) pushBuffer(src []byte, fromStage3 bool) *buffer {
	b := &buffer{
		prev:        r.buffer,
		src:         src,
		line:        1,
		logicalLine: 1,
		dirIdx:      -1,
		fromStage3:  fromStage3,
	}
	if r.buffer != nil {
		b.line, b.logicalLine = r.buffer.line, r.buffer.logicalLine
		b.name = r.buffer.name
		b.sysp = r.buffer.sysp
	}
	r.buffer = b
	return b
}

// PopBuffer removes the top buffer, reporting any conditional left open in
// it.
func (r *Reader) PopBuffer() {
	if r.buffer != nil {
		r.popBuffer()
	}
}

func (r *Reader) popBuffer() {
	b := r.buffer
	r.closeConditionals(b)
	r.buffer = b.prev
	if !b.isFile() {
		return
	}

	r.depth--
	if b.mi.valid && b.mi.cmacro != nil && b.inc.guard == nil {
		b.inc.guard = b.mi.cmacro
		r.log.V(1).Info("include guard detected", "file", b.inc.path, "guard", b.mi.cmacro.name)
	}
	r.log.V(1).Info("leaving file", "file", b.name, "depth", r.depth)
	if p := r.fileBuffer(); p != nil {
		r.cb.FileLeave(r, FileChange{
			Reason: LeaveFile,
			From:   Location{File: b.name, Line: b.line, Col: 1},
			To:     Location{File: p.name, Line: p.line, Col: 1},
			Sysp:   p.sysp,
		})
	}
}

// closeConditionals reports every conditional still open in b.
func (r *Reader) closeConditionals(b *buffer) {
	if len(b.ifs) == 0 {
		return
	}
	for i := len(b.ifs) - 1; i >= 0; i-- {
		f := b.ifs[i]
		r.report(SeverityError, Location{File: b.name, Line: f.pos.Line, Col: f.pos.Col}, "unterminated #%s", f.typ)
	}
	r.state.skipping = b.ifs[0].wasSkipping
	b.ifs = nil
}
