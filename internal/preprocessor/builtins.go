package preprocessor

import (
	"strconv"
	"strings"
)

var builtinMacros = []struct {
	name string
	code BuiltinKind
}{
	{"__LINE__", BuiltinLine},
	{"__DATE__", BuiltinDate},
	{"__FILE__", BuiltinFile},
	{"__BASE_FILE__", BuiltinBaseFile},
	{"__INCLUDE_LEVEL__", BuiltinIncludeLevel},
	{"__TIME__", BuiltinTime},
	{"__STDC__", BuiltinStdc},
}

func (r *Reader) initBuiltins() {
	for _, b := range builtinMacros {
		r.syms.MarkBuiltin(r.syms.Intern(b.name), b.code)
	}

	switch r.opts.Lang {
	case C99, GNUC99:
		r.Define("__STDC_VERSION__=199901L")
	case C94:
		r.Define("__STDC_VERSION__=199409L")
	case CPlusPlus:
		r.Define("__cplusplus")
	case ASM:
		r.Define("__ASSEMBLER__")
	}
	if r.opts.Lang.Strict() {
		r.Define("__STRICT_ANSI__")
	}
}

// builtinToken expands a builtin macro to a single token.
func (r *Reader) builtinToken(name Token, code BuiltinKind) Token {
	tok := Token{Flags: name.Flags & PrevWhite, Pos: name.Pos}
	switch code {
	case BuiltinLine:
		tok.Type, tok.Text = Number, strconv.Itoa(r.lastLoc.Line)
	case BuiltinFile:
		file := r.mainFile
		if b := r.fileBuffer(); b != nil {
			file = b.name
		}
		tok.Type, tok.Text = String, quoteString(file)
	case BuiltinBaseFile:
		tok.Type, tok.Text = String, quoteString(r.mainFile)
	case BuiltinIncludeLevel:
		level := r.depth - 1
		if level < 0 {
			level = 0
		}
		tok.Type, tok.Text = Number, strconv.Itoa(level)
	case BuiltinDate, BuiltinTime:
		if r.date == "" {
			now := r.opts.Now()
			r.date = `"` + now.Format("Jan _2 2006") + `"`
			r.clock = `"` + now.Format("15:04:05") + `"`
		}
		tok.Type, tok.Text = String, r.date
		if code == BuiltinTime {
			tok.Text = r.clock
		}
	case BuiltinStdc:
		tok.Type, tok.Text = Number, "1"
	}
	return tok
}

// quoteString returns s as a C string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
