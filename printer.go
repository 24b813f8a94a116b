/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gocpp

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fwessels/gocpp/internal/preprocessor"
)

// maxBlankLines is the largest gap filled with newlines rather than a line
// marker.
const maxBlankLines = 8

// printer writes the token stream as text, keeping output lines in step
// with the source so that compiler diagnostics point at the right place.
type printer struct {
	preprocessor.NopCallbacks

	w   *bufio.Writer
	cfg Config

	file    string
	sysp    int
	line    int  // output line the next character lands on
	srcLine int  // source line of the last token printed
	printed bool // the current output line has text
	resync  bool // file changed since the last token

	prev    preprocessor.Token
	hasPrev bool
}

func newPrinter(w *bufio.Writer, cfg Config) *printer {
	return &printer{w: w, cfg: cfg}
}

func (p *printer) newline() {
	p.w.WriteByte('\n')
	p.line++
	p.printed = false
}

// maybePrintLine moves the output to source line n of the current file,
// with blank lines when the gap is small and a line marker otherwise.
func (p *printer) maybePrintLine(n int) {
	if p.printed {
		p.newline()
	}
	if n >= p.line && n < p.line+maxBlankLines {
		for n > p.line {
			p.newline()
		}
		return
	}
	p.printLine(n, "")
}

func (p *printer) printLine(n int, flags string) {
	if p.printed {
		p.newline()
	}
	p.line = n
	if p.cfg.NoLineMarkers || p.cfg.Dump == DumpMacros {
		return
	}
	switch p.sysp {
	case 1:
		flags += " 3"
	case 2:
		flags += " 3 4"
	}
	fmt.Fprintf(p.w, "# %d %s%s\n", n, quoteFile(p.file), flags)
}

func quoteFile(name string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name) + `"`
}

func (p *printer) fileChange(fc preprocessor.FileChange, flags string) {
	p.file, p.sysp = fc.To.File, fc.Sysp
	p.resync = true
	p.printLine(fc.To.Line, flags)
}

func (p *printer) FileEnter(_ *preprocessor.Reader, fc preprocessor.FileChange) {
	flags := ""
	if fc.From.File != "" {
		flags = " 1"
	}
	p.fileChange(fc, flags)
}

func (p *printer) FileLeave(_ *preprocessor.Reader, fc preprocessor.FileChange) {
	p.fileChange(fc, " 2")
}

func (p *printer) FileRename(_ *preprocessor.Reader, fc preprocessor.FileChange) {
	p.fileChange(fc, "")
}

func (p *printer) Pragma(r *preprocessor.Reader, line []preprocessor.Token) {
	p.directive(r, "#pragma "+preprocessor.SpellTokens(line))
}

func (p *printer) Ident(r *preprocessor.Reader, s string) {
	p.directive(r, "#ident "+s)
}

func (p *printer) Define(r *preprocessor.Reader, node *preprocessor.Node) {
	if p.cfg.Dump == DumpDefinitions && p.file != "" {
		p.directive(r, "#define "+r.MacroDefinition(node))
	}
}

func (p *printer) Undef(r *preprocessor.Reader, node *preprocessor.Node) {
	if p.cfg.Dump == DumpDefinitions && p.file != "" {
		p.directive(r, "#undef "+node.Name())
	}
}

// directive copies a directive line that the compiler proper needs to see.
func (p *printer) directive(r *preprocessor.Reader, text string) {
	if p.cfg.Dump == DumpMacros {
		return
	}
	p.maybePrintLine(r.Position().Line)
	p.w.WriteString(text)
	p.newline()
	p.hasPrev = false
}

// token prints tok, starting a new output line when it comes from a later
// source line.
func (p *printer) token(tok preprocessor.Token) {
	if p.resync || tok.Pos.OutputLine != p.srcLine {
		p.resync = false
		p.srcLine = tok.Pos.OutputLine
		p.maybePrintLine(tok.Pos.OutputLine)
		p.printed = true
		p.hasPrev = false
		// PrevWhite supplies the last space.
		if tok.Pos.Col > 2 {
			p.w.WriteString(strings.Repeat(" ", tok.Pos.Col-2))
		}
	}

	switch {
	case tok.Flags&preprocessor.PrevWhite != 0:
		p.w.WriteByte(' ')
	case p.hasPrev && preprocessor.AvoidPaste(p.prev, tok):
		p.w.WriteByte(' ')
	case !p.hasPrev && tok.Type == preprocessor.Hash:
		p.w.WriteByte(' ')
	}

	s := preprocessor.Spell(tok)
	p.w.WriteString(s)
	p.line += strings.Count(s, "\n")
	p.prev, p.hasPrev = tok, true
}

// scan prints every token of the run.
func (p *printer) scan(r *preprocessor.Reader) {
	for {
		tok := r.GetToken()
		if tok.Type == preprocessor.EOF {
			break
		}
		p.token(tok)
	}
	if p.printed {
		p.newline()
	}
}

// dumpMacros prints the definition of every macro still defined, builtins
// excepted.
func (p *printer) dumpMacros(r *preprocessor.Reader) {
	r.ForEachNode(func(n *preprocessor.Node) bool {
		if _, builtin := n.Builtin(); n.IsMacro() && !builtin {
			p.w.WriteString("#define " + r.MacroDefinition(n))
			p.w.WriteByte('\n')
		}
		return true
	})
}
