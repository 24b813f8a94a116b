package preprocessor

// lookMark is where a lookahead began in the recording. A lookahead begun
// by a directive records the raw tokens of the line; any other records the
// tokens GetToken hands out. Tokens read by a directive met during a
// lookahead are not recorded, since the directive is not run again.
type lookMark struct {
	pos       int
	directive bool
}

// StartLookahead begins recording the tokens read. Lookaheads nest.
func (r *Reader) StartLookahead() {
	r.lookMarks = append(r.lookMarks, lookMark{pos: len(r.recording), directive: r.state.inDirective})
}

// StopLookahead ends the innermost lookahead. With commit false the tokens
// read since StartLookahead are put back and will be read again.
func (r *Reader) StopLookahead(commit bool) {
	n := len(r.lookMarks)
	if n == 0 {
		return
	}
	m := r.lookMarks[n-1]
	mark := m.pos
	r.lookMarks = r.lookMarks[:n-1]

	if !commit {
		toks := r.recording[mark:]
		if m.directive {
			r.replay = prependTokens(toks, r.replay)
		} else {
			r.replayOut = prependTokens(toks, r.replayOut)
		}
		r.recording = r.recording[:mark]
		return
	}
	if n == 1 || r.lookMarks[n-2].directive != m.directive {
		r.recording = r.recording[:mark]
	}
}

func prependTokens(toks, rest []Token) []Token {
	out := make([]Token, 0, len(toks)+len(rest))
	out = append(out, toks...)
	return append(out, rest...)
}

// InLookahead reports whether a lookahead is active.
func (r *Reader) InLookahead() bool { return len(r.lookMarks) > 0 }
