package preprocessor

import (
	"errors"

	"github.com/cespare/xxhash/v2"

	"github.com/fwessels/gocpp/internal/arena"
)

// NodeKind is the kind of value a symbol-table node holds.
type NodeKind uint8

const (
	NodeVoid NodeKind = iota
	NodeMacro
	NodeAssertion
)

// NodeFlags annotate a node independently of its kind.
type NodeFlags uint8

const (
	NodeOperator   NodeFlags = 1 << iota // C++ named operator
	NodePoisoned                         // #pragma poison
	NodeBuiltin                          // __LINE__ and friends
	NodeDiagnostic                       // lexing it may need a diagnostic
)

// BuiltinKind identifies a builtin macro.
type BuiltinKind uint8

const (
	BuiltinLine BuiltinKind = iota
	BuiltinDate
	BuiltinFile
	BuiltinBaseFile
	BuiltinIncludeLevel
	BuiltinTime
	BuiltinStdc
)

var ErrKindConflict = errors.New("symbol already holds a value of another kind")

// Node is the unique symbol-table entry for one spelling.
type Node struct {
	name  string
	hash  uint64
	kind  NodeKind
	flags NodeFlags

	macro    *Macro
	answers  []*Answer
	builtin  BuiltinKind
	operator TokenType

	directive int // 1-based index into the directive table
}

func (n *Node) Name() string       { return n.name }
func (n *Node) Hash() uint64       { return n.hash }
func (n *Node) Len() int           { return len(n.name) }
func (n *Node) Kind() NodeKind     { return n.kind }
func (n *Node) Flags() NodeFlags   { return n.flags }
func (n *Node) Macro() *Macro      { return n.macro }
func (n *Node) Answers() []*Answer { return n.answers }

// IsMacro reports whether n is defined as a macro, builtins included.
func (n *Node) IsMacro() bool { return n.kind == NodeMacro }

// Builtin returns the builtin code when n is a builtin macro.
func (n *Node) Builtin() (BuiltinKind, bool) {
	return n.builtin, n.kind == NodeMacro && n.flags&NodeBuiltin != 0
}

// SymbolTable interns identifiers. One table lives for one preprocessing
// run.
type SymbolTable struct {
	nodes   *arena.Arena[Node]
	buckets map[uint64][]arena.Handle
	order   []arena.Handle
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		nodes:   arena.New[Node](512),
		buckets: make(map[uint64][]arena.Handle),
	}
}

func (t *SymbolTable) find(name string, h uint64) *Node {
	for _, hd := range t.buckets[h] {
		if n := t.nodes.At(hd); n.name == name {
			return n
		}
	}
	return nil
}

// Intern returns the node for name, creating a void node on first sight.
func (t *SymbolTable) Intern(name string) *Node {
	h := xxhash.Sum64String(name)
	if n := t.find(name, h); n != nil {
		return n
	}
	hd := t.nodes.Alloc(Node{name: name, hash: h})
	t.buckets[h] = append(t.buckets[h], hd)
	t.order = append(t.order, hd)
	return t.nodes.At(hd)
}

// InternBytes is Intern for a byte slice; it only allocates a string for
// names not seen before.
func (t *SymbolTable) InternBytes(name []byte) *Node {
	h := xxhash.Sum64(name)
	for _, hd := range t.buckets[h] {
		if n := t.nodes.At(hd); n.name == string(name) {
			return n
		}
	}
	return t.Intern(string(name))
}

// Lookup returns the node for name without creating it.
func (t *SymbolTable) Lookup(name string) (*Node, bool) {
	n := t.find(name, xxhash.Sum64String(name))
	return n, n != nil
}

// Len returns the number of interned names.
func (t *SymbolTable) Len() int { return len(t.order) }

// ForEach visits nodes in the order they were interned until fn returns
// false.
func (t *SymbolTable) ForEach(fn func(*Node) bool) {
	for _, hd := range t.order {
		if !fn(t.nodes.At(hd)) {
			return
		}
	}
}

// SetMacro installs m as the definition of n, replacing any previous macro
// or builtin.
func (t *SymbolTable) SetMacro(n *Node, m *Macro) error {
	if n.kind == NodeAssertion {
		return ErrKindConflict
	}
	n.kind = NodeMacro
	n.flags &^= NodeBuiltin
	n.macro = m
	return nil
}

// ClearMacro returns n to the void kind.
func (t *SymbolTable) ClearMacro(n *Node) {
	if n.kind != NodeMacro {
		return
	}
	n.kind = NodeVoid
	n.flags &^= NodeBuiltin
	n.macro = nil
}

// MarkBuiltin turns n into a builtin macro.
func (t *SymbolTable) MarkBuiltin(n *Node, code BuiltinKind) error {
	if n.kind == NodeAssertion {
		return ErrKindConflict
	}
	n.kind = NodeMacro
	n.flags |= NodeBuiltin
	n.macro = nil
	n.builtin = code
	return nil
}

// SetPoisoned poisons n; lexing it afterwards is an error.
func (t *SymbolTable) SetPoisoned(n *Node) {
	n.flags |= NodePoisoned | NodeDiagnostic
}

// SetOperator marks n as a named operator spelling op.
func (t *SymbolTable) SetOperator(n *Node, op TokenType) {
	n.flags |= NodeOperator
	n.operator = op
}

// SetDiagnostic flags n for a check each time it is lexed.
func (t *SymbolTable) SetDiagnostic(n *Node) {
	n.flags |= NodeDiagnostic
}

// SetAnswers replaces the assertion answers of n. An empty list returns n
// to the void kind.
func (t *SymbolTable) SetAnswers(n *Node, answers []*Answer) error {
	if n.kind == NodeMacro {
		return ErrKindConflict
	}
	if len(answers) == 0 {
		n.kind = NodeVoid
		n.answers = nil
		return nil
	}
	n.kind = NodeAssertion
	n.answers = answers
	return nil
}

// ClearAnswers removes every answer of the assertion n.
func (t *SymbolTable) ClearAnswers(n *Node) {
	if n.kind != NodeAssertion {
		return
	}
	n.kind = NodeVoid
	n.answers = nil
}
