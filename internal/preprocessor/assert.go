package preprocessor

import "strings"

// Answer is one answer asserted for a predicate.
type Answer struct {
	Tokens []Token
}

func (a *Answer) equal(b *Answer) bool {
	if len(a.Tokens) != len(b.Tokens) {
		return false
	}
	for i := range a.Tokens {
		if !equalTokens(a.Tokens[i], b.Tokens[i]) {
			return false
		}
	}
	return true
}

func (a *Answer) String() string { return SpellTokens(a.Tokens) }

// answerIndex returns the index of ans among the answers of pred, or -1.
func answerIndex(pred *Node, ans *Answer) int {
	for i, a := range pred.answers {
		if a.equal(ans) {
			return i
		}
	}
	return -1
}

type assertionUse uint8

const (
	useAssert assertionUse = iota
	useUnassert
	useTest
)

// parseAssertion reads "pred" or "pred(answer)". Predicates are kept under
// "#pred" so they never meet macros of the same name.
func (r *Reader) parseAssertion(use assertionUse) (*Node, *Answer, bool) {
	r.state.preventExpansion++
	defer func() { r.state.preventExpansion-- }()

	tok := r.GetToken()
	switch tok.Type {
	case Name:
	case EOF:
		r.errorf("assertion without predicate")
		return nil, nil, false
	default:
		r.errorf("predicate must be an identifier")
		return nil, nil, false
	}
	pred := r.syms.Intern("#" + tok.Node.name)

	paren := r.GetToken()
	if paren.Type != OpenParen {
		switch {
		case use == useTest:
			r.pushBack(paren)
			return pred, nil, true
		case use == useUnassert && paren.Type == EOF:
			return pred, nil, true
		}
		r.errorf("missing '(' after predicate")
		return nil, nil, false
	}

	var toks []Token
	for {
		t := r.GetToken()
		if t.Type == CloseParen {
			break
		}
		if t.Type == EOF {
			r.errorf("missing ')' to complete answer")
			return nil, nil, false
		}
		t.Flags &^= startOfLine | NoExpand
		toks = append(toks, t)
	}
	if len(toks) == 0 {
		r.errorf("predicate's answer is empty")
		return nil, nil, false
	}
	toks[0].Flags &^= PrevWhite
	// An answer that is only compared lives until the directive ends.
	a := r.tokens.Scratch
	if use == useAssert {
		a = r.tokens.Permanent
	}
	return pred, &Answer{Tokens: a.Slice(a.Copy(toks))}, true
}

func (r *Reader) doAssert() {
	pred, ans, ok := r.parseAssertion(useAssert)
	if !ok {
		return
	}
	r.checkEOL()
	if pred.kind == NodeAssertion && answerIndex(pred, ans) >= 0 {
		r.warnAt(r.dirPos, "\"%s\" re-asserted", pred.name[1:])
		return
	}
	answers := append(append([]*Answer(nil), pred.answers...), ans)
	if err := r.syms.SetAnswers(pred, answers); err != nil {
		r.errorf("\"%s\": %v", pred.name[1:], err)
	}
}

func (r *Reader) doUnassert() {
	pred, ans, ok := r.parseAssertion(useUnassert)
	if !ok {
		return
	}
	r.checkEOL()
	if pred.kind != NodeAssertion {
		return
	}
	if ans == nil {
		r.syms.ClearAnswers(pred)
		return
	}
	i := answerIndex(pred, ans)
	if i < 0 {
		return
	}
	answers := append(append([]*Answer(nil), pred.answers[:i]...), pred.answers[i+1:]...)
	r.syms.SetAnswers(pred, answers)
}

// testAssertion evaluates "#pred" or "#pred(answer)" in #if, the '#'
// having been read.
func (r *Reader) testAssertion() (ok, found bool) {
	pred, ans, ok := r.parseAssertion(useTest)
	if !ok {
		return false, false
	}
	if pred.kind != NodeAssertion {
		return true, false
	}
	return true, ans == nil || answerIndex(pred, ans) >= 0
}

// Assert asserts "pred=answer" or "pred(answer)".
func (r *Reader) Assert(s string) {
	r.runDirective("assert", assertionText(s))
}

// Unassert removes one answer, or with "pred" alone every answer.
func (r *Reader) Unassert(s string) {
	r.runDirective("unassert", assertionText(s))
}

func assertionText(s string) string {
	if i := strings.IndexByte(s, '='); i >= 0 && !strings.Contains(s[:i], "(") {
		return s[:i] + "(" + s[i+1:] + ")"
	}
	return s
}

// Asserted reports whether pred has the answer ans, or any answer when ans
// is empty.
func (r *Reader) Asserted(pred, ans string) bool {
	node, ok := r.syms.Lookup("#" + pred)
	if !ok || node.kind != NodeAssertion {
		return false
	}
	if ans == "" {
		return true
	}
	for _, a := range node.answers {
		if a.String() == ans {
			return true
		}
	}
	return false
}
