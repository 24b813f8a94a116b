package preprocessor

import "fmt"

// Severity classifies a diagnostic.
type Severity uint8

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityPedwarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityPedwarn:
		return "pedantic warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal error"
	}
	return fmt.Sprintf("Severity(%d)", s)
}

// Location is a position in a named file.
type Location struct {
	File string
	Line int
	Col  int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("<command line>:%d:%d", l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Diagnostic is a message delivered to Options.OnDiagnostic.
type Diagnostic struct {
	Severity Severity
	Location Location
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

type diagCounts struct {
	errors   int
	warnings int
}

// report is the single path for every diagnostic the engine issues.
func (r *Reader) report(sev Severity, loc Location, format string, args ...any) {
	if r.aborted {
		return
	}
	if sev == SeverityPedwarn && r.opts.PedanticErrors {
		sev = SeverityError
	}
	switch sev {
	case SeverityWarning, SeverityPedwarn:
		if r.opts.InhibitWarnings {
			return
		}
		r.counts.warnings++
		if r.opts.WarningsAreErrors {
			r.counts.errors++
		}
	case SeverityError, SeverityFatal:
		r.counts.errors++
	}

	d := Diagnostic{Severity: sev, Location: loc, Message: fmt.Sprintf(format, args...)}
	if r.opts.OnDiagnostic != nil {
		r.opts.OnDiagnostic(d)
	}

	if sev == SeverityFatal {
		r.abort()
		return
	}
	if sev == SeverityError && r.counts.errors >= r.opts.FatalLimit {
		r.report(SeverityFatal, loc, "too many errors")
	}
}

func (r *Reader) errorf(format string, args ...any) {
	r.report(SeverityError, r.loc(), format, args...)
}

func (r *Reader) errorAt(pos Position, format string, args ...any) {
	r.report(SeverityError, r.locAt(pos), format, args...)
}

func (r *Reader) warnf(format string, args ...any) {
	r.report(SeverityWarning, r.loc(), format, args...)
}

func (r *Reader) warnAt(pos Position, format string, args ...any) {
	r.report(SeverityWarning, r.locAt(pos), format, args...)
}

// pedwarnf is issued whatever the Pedantic setting; callers gate on it
// where the diagnostic is pedantic-only.
func (r *Reader) pedwarnf(format string, args ...any) {
	r.report(SeverityPedwarn, r.loc(), format, args...)
}

func (r *Reader) fatalf(format string, args ...any) {
	r.report(SeverityFatal, r.loc(), format, args...)
}

// loc is the position of the most recent token lexed from a file.
func (r *Reader) loc() Location {
	return r.lastLoc
}

func (r *Reader) locAt(pos Position) Location {
	return Location{File: r.lastLoc.File, Line: pos.Line, Col: pos.Col}
}

// ErrorCount returns the number of errors, including warnings promoted by
// WarningsAreErrors.
func (r *Reader) ErrorCount() int { return r.counts.errors }

// WarningCount returns the number of warnings issued.
func (r *Reader) WarningCount() int { return r.counts.warnings }

// ExitStatus is 1 if any error was recorded and 0 otherwise.
func (r *Reader) ExitStatus() int {
	if r.counts.errors > 0 {
		return 1
	}
	return 0
}
