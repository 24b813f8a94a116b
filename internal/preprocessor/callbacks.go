package preprocessor

// ChangeReason says why the current file changed.
type ChangeReason uint8

const (
	EnterFile ChangeReason = iota
	LeaveFile
	RenameFile
)

// FileChange describes a transition reported through Callbacks.
type FileChange struct {
	Reason ChangeReason
	From   Location // position in the file being left or renamed, if any
	To     Location // first line of the file now current
	Sysp   int      // 1 for a system header, 2 for an implicit extern "C" one
}

// Callbacks receives engine activity. All methods are called synchronously
// from the goroutine driving the Reader. Embed NopCallbacks to implement a
// subset.
type Callbacks interface {
	FileEnter(r *Reader, fc FileChange)
	FileLeave(r *Reader, fc FileChange)
	FileRename(r *Reader, fc FileChange)
	Include(r *Reader, directive string, header Token)
	Define(r *Reader, node *Node)
	Undef(r *Reader, node *Node)
	Poison(r *Reader, node *Node)
	Ident(r *Reader, s string)
	Pragma(r *Reader, line []Token)
}

// NopCallbacks ignores everything.
type NopCallbacks struct{}

func (NopCallbacks) FileEnter(*Reader, FileChange)  {}
func (NopCallbacks) FileLeave(*Reader, FileChange)  {}
func (NopCallbacks) FileRename(*Reader, FileChange) {}
func (NopCallbacks) Include(*Reader, string, Token) {}
func (NopCallbacks) Define(*Reader, *Node)          {}
func (NopCallbacks) Undef(*Reader, *Node)           {}
func (NopCallbacks) Poison(*Reader, *Node)          {}
func (NopCallbacks) Ident(*Reader, string)          {}
func (NopCallbacks) Pragma(*Reader, []Token)        {}

var _ Callbacks = NopCallbacks{}
