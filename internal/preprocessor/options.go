package preprocessor

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Lang selects the source dialect.
type Lang uint8

const (
	GNUC89 Lang = iota
	GNUC99
	C89
	C94
	C99
	CPlusPlus
	ASM
)

var langNames = map[string]Lang{
	"gnu89": GNUC89, "gnu99": GNUC99, "c89": C89, "iso9899:1990": C89,
	"iso9899:199409": C94, "c99": C99, "iso9899:1999": C99,
	"c++98": CPlusPlus, "gnu++98": CPlusPlus, "assembler-with-cpp": ASM,
}

// ParseLang maps a -std style name to a dialect.
func ParseLang(s string) (Lang, error) {
	l, ok := langNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown language standard %q", s)
	}
	return l, nil
}

func (l Lang) String() string {
	switch l {
	case GNUC89:
		return "gnu89"
	case GNUC99:
		return "gnu99"
	case C89:
		return "c89"
	case C94:
		return "iso9899:199409"
	case C99:
		return "c99"
	case CPlusPlus:
		return "c++98"
	case ASM:
		return "assembler-with-cpp"
	}
	return fmt.Sprintf("Lang(%d)", l)
}

// Strict reports whether l is an ISO dialect without GNU extensions.
func (l Lang) Strict() bool { return l == C89 || l == C94 || l == C99 }

func (l Lang) c99() bool { return l == GNUC99 || l == C99 || l == CPlusPlus }

func (l Lang) cplusplus() bool { return l == CPlusPlus }

// PendingKind is a command-line definition operation.
type PendingKind uint8

const (
	PendingDefine PendingKind = iota
	PendingUndef
	PendingAssert
	PendingUnassert
)

// Pending is one -D, -U or -A operation, applied in order before the main
// file is read.
type Pending struct {
	Kind PendingKind
	Arg  string
}

// Options configures a Reader. Use DefaultOptions to get sensible values.
type Options struct {
	Lang Lang

	QuoteIncludeDirs   []string // -iquote, searched for "" includes only
	BracketIncludeDirs []string // -I
	IgnoreSourceDir    bool     // -I-
	Remap              bool

	Pending []Pending

	Trigraphs         bool
	Digraphs          bool
	DollarsInIdent    bool
	CplusplusComments bool
	TabStop           int

	Pedantic          bool
	PedanticErrors    bool
	WarningsAreErrors bool
	InhibitWarnings   bool
	WarnTrigraphs     bool
	WarnComments      bool
	WarnUndef         bool
	PasteSeverity     Severity

	KeepComments bool

	MaxIncludeDepth int
	FatalLimit      int

	Now          func() time.Time
	Logger       logr.Logger
	OnDiagnostic func(Diagnostic)
}

// DefaultOptions returns the defaults for dialect lang.
func DefaultOptions(lang Lang) Options {
	o := Options{
		Lang:              lang,
		Digraphs:          lang != C89 && lang != ASM,
		DollarsInIdent:    true,
		CplusplusComments: lang != C89 && lang != C94,
		TabStop:           8,
		PasteSeverity:     SeverityWarning,
		MaxIncludeDepth:   200,
		FatalLimit:        1000,
		Now:               time.Now,
		Logger:            logr.Discard(),
	}
	if lang.Strict() {
		o.Trigraphs = true
		o.DollarsInIdent = false
	}
	return o
}

func (o *Options) fill() {
	if o.TabStop <= 0 || o.TabStop > 100 {
		o.TabStop = 8
	}
	if o.MaxIncludeDepth <= 0 {
		o.MaxIncludeDepth = 200
	}
	if o.FatalLimit <= 0 {
		o.FatalLimit = 1000
	}
	if o.PasteSeverity == SeverityNote {
		o.PasteSeverity = SeverityWarning
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
}
