package preprocessor

import (
	"fmt"
	"strings"
)

// TokenType classifies a preprocessing token.
type TokenType uint8

// Operators that can be followed by '=' come first, in the same order as
// their '=' forms, so the lexer can map one to the other by offset.
const (
	Eq TokenType = iota
	Not
	Greater
	Less
	Plus
	Minus
	Mult
	Div
	Mod
	And
	Or
	Xor
	RShift
	LShift

	Compl
	AndAnd
	OrOr
	Query
	Colon
	Comma
	OpenParen
	CloseParen
	EqEq
	NotEq
	GreaterEq
	LessEq

	PlusEq
	MinusEq
	MultEq
	DivEq
	ModEq
	AndEq
	OrEq
	XorEq
	RShiftEq
	LShiftEq

	// Digraph-capable punctuators.
	Hash
	Paste
	OpenSquare
	CloseSquare
	OpenBrace
	CloseBrace

	Semicolon
	Ellipsis
	PlusPlus
	MinusMinus
	Deref
	Dot
	Scope
	DerefStar
	DotStar

	Name
	Number
	Char
	WChar
	Other
	String
	WString
	HeaderName
	Comment
	MacroArg
	placemarker
	EOF

	numTokenTypes
)

const (
	lastEq         = LShift
	firstDigraph   = Hash
	lastPunctuator = DotStar
)

var operatorSpellings = [...]string{
	Eq: "=", Not: "!", Greater: ">", Less: "<", Plus: "+", Minus: "-",
	Mult: "*", Div: "/", Mod: "%", And: "&", Or: "|", Xor: "^",
	RShift: ">>", LShift: "<<",
	Compl: "~", AndAnd: "&&", OrOr: "||", Query: "?", Colon: ":",
	Comma: ",", OpenParen: "(", CloseParen: ")", EqEq: "==", NotEq: "!=",
	GreaterEq: ">=", LessEq: "<=",
	PlusEq: "+=", MinusEq: "-=", MultEq: "*=", DivEq: "/=", ModEq: "%=",
	AndEq: "&=", OrEq: "|=", XorEq: "^=", RShiftEq: ">>=", LShiftEq: "<<=",
	Hash: "#", Paste: "##", OpenSquare: "[", CloseSquare: "]",
	OpenBrace: "{", CloseBrace: "}",
	Semicolon: ";", Ellipsis: "...", PlusPlus: "++", MinusMinus: "--",
	Deref: "->", Dot: ".", Scope: "::", DerefStar: "->*", DotStar: ".*",
}

var digraphSpellings = [...]string{"%:", "%:%:", "<:", ":>", "<%", "%>"}

var typeNames = [...]string{
	Name: "NAME", Number: "NUMBER", Char: "CHAR", WChar: "WCHAR",
	Other: "OTHER", String: "STRING", WString: "WSTRING",
	HeaderName: "HEADER_NAME", Comment: "COMMENT", MacroArg: "MACRO_ARG",
	placemarker: "PLACEMARKER", EOF: "EOF",
}

func (t TokenType) String() string {
	if t <= lastPunctuator {
		return operatorSpellings[t]
	}
	if t < numTokenTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// IsOperator reports whether t is a punctuator.
func (t TokenType) IsOperator() bool { return t <= lastPunctuator }

// TokenFlags is the per-token flag set.
type TokenFlags uint8

const (
	PrevWhite    TokenFlags = 1 << iota // whitespace before this token
	Digraph                             // spelled as a digraph
	StringifyArg                        // macro argument to be stringized
	PasteLeft                           // left operand of ##
	NamedOp                             // C++ named operator
	NoExpand                            // never macro-expand this token

	// set on the first token of a line; internal to the lexer
	startOfLine
)

// PayloadKind says which Token field carries the value. It is a function
// of the token type alone.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadNode
	PayloadText
	PayloadArg
	PayloadChar
)

// Position locates a token in its buffer.
type Position struct {
	Line       int // physical line
	OutputLine int // line the logical (post-splice) line started on
	Col        int
}

// Token is a preprocessing token.
type Token struct {
	Type  TokenType
	Flags TokenFlags
	Pos   Position

	Node  *Node  // Name
	Text  string // Number, Char, WChar, String, WString, HeaderName, Comment
	Arg   int    // MacroArg
	Other byte   // Other
}

// Payload returns the kind of value the token carries.
func (t Token) Payload() PayloadKind {
	switch t.Type {
	case Name:
		return PayloadNode
	case Number, Char, WChar, String, WString, HeaderName, Comment:
		return PayloadText
	case MacroArg:
		return PayloadArg
	case Other:
		return PayloadChar
	default:
		return PayloadNone
	}
}

// Is reports whether t is the identifier name.
func (t Token) Is(name string) bool {
	return t.Type == Name && t.Node.name == name
}

// Spell returns the source spelling of t. Macro arguments spell as the
// argument index since the parameter name is not recorded on the token.
func Spell(t Token) string {
	if t.Flags&NamedOp != 0 && t.Node != nil {
		return t.Node.name
	}
	switch t.Payload() {
	case PayloadNode:
		return t.Node.name
	case PayloadText:
		return t.Text
	case PayloadArg:
		return fmt.Sprintf("$%d", t.Arg)
	case PayloadChar:
		return string([]byte{t.Other})
	}
	if t.Type.IsOperator() {
		if t.Flags&Digraph != 0 {
			if s, ok := digraphSpelling(t.Type); ok {
				return s
			}
		}
		return operatorSpellings[t.Type]
	}
	return ""
}

func digraphSpelling(t TokenType) (string, bool) {
	if t < firstDigraph || t > CloseBrace {
		return "", false
	}
	return digraphSpellings[t-firstDigraph], true
}

func (t Token) String() string { return Spell(t) }

// SpellTokens joins spellings, inserting a space where a token was
// preceded by whitespace.
func SpellTokens(toks []Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.Flags&PrevWhite != 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Spell(t))
	}
	return b.String()
}

// AvoidPaste reports whether printing b directly after a would lex as
// something other than the two tokens.
func AvoidPaste(a, b Token) bool {
	if a.Flags&NamedOp != 0 {
		a.Type = Name
	}
	if b.Flags&NamedOp != 0 {
		b.Type = Name
	}

	var c byte
	if b.Type.IsOperator() {
		c = Spell(b)[0]
	}

	if a.Type <= lastEq && c == '=' {
		return true
	}

	switch a.Type {
	case Greater:
		return c == '>'
	case Less:
		return c == '<' || c == '%' || c == ':'
	case Plus:
		return c == '+'
	case Minus:
		return c == '-' || c == '>'
	case Div:
		return c == '/' || c == '*'
	case Mod:
		return c == ':' || c == '%'
	case And:
		return c == '&'
	case Or:
		return c == '|'
	case Colon:
		return c == ':' || c == '>'
	case Deref:
		return c == '*'
	case Dot:
		return c == '.' || c == '%' || b.Type == Number
	case Hash:
		return c == '#' || c == '%'
	case Name:
		return b.Type == Name || b.Type == Number || b.Type == Char || b.Type == String
	case Number:
		return b.Type == Number || b.Type == Name || c == '.' || c == '+' || c == '-'
	case Other:
		return false
	}
	return false
}

// equalTokens compares two tokens by type, spelling and the flags that
// matter when comparing macro definitions.
func equalTokens(a, b Token) bool {
	if a.Type != b.Type || a.Flags&(PrevWhite|StringifyArg|PasteLeft) != b.Flags&(PrevWhite|StringifyArg|PasteLeft) {
		return false
	}
	switch a.Payload() {
	case PayloadNode:
		return a.Node == b.Node
	case PayloadText:
		return a.Text == b.Text
	case PayloadArg:
		return a.Arg == b.Arg
	case PayloadChar:
		return a.Other == b.Other
	}
	return a.Flags&Digraph == b.Flags&Digraph
}
