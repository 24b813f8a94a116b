package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fwessels/gocpp"
	"github.com/fwessels/gocpp/internal/preprocessor"
)

// errFailed is returned when diagnostics already told the user what went
// wrong.
var errFailed = errors.New("preprocessing failed")

func main() {
	if err := run(os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := cli.NewApp()
	app.Name = "gocpp"
	app.Usage = "Preprocess a C source file"
	app.ArgsUsage = "[input]"
	app.Reader, app.Writer, app.ErrWriter = stdin, stdout, stderr
	app.DisableSliceFlagSeparator = true
	app.HideHelpCommand = true
	app.Flags = []cli.Flag{
		&cli.StringSliceFlag{Name: "I", Usage: "Add `dir` to the search path for #include <...> and \"...\""},
		&cli.StringSliceFlag{Name: "iquote", Usage: "Add `dir` to the search path for #include \"...\" only"},
		&cli.BoolFlag{Name: "I-", Usage: "Do not search the directory of the current file for #include \"...\""},
		&cli.StringSliceFlag{Name: "D", Usage: "Define `macro`, as NAME or NAME=VALUE"},
		&cli.StringSliceFlag{Name: "U", Usage: "Undefine `macro`"},
		&cli.StringSliceFlag{Name: "A", Usage: "Assert `pred(answer)`, or cancel it with -pred(answer)"},
		&cli.StringFlag{Name: "std", Value: "gnu89", Usage: "Language `standard`"},
		&cli.BoolFlag{Name: "trigraphs", Usage: "Replace trigraphs"},
		&cli.BoolFlag{Name: "digraphs", Usage: "Recognise digraphs"},
		&cli.BoolFlag{Name: "dollars", Usage: "Allow '$' in identifiers"},
		&cli.IntFlag{Name: "tabstop", Value: 8, Usage: "Distance between tab stops for column numbers"},
		&cli.BoolFlag{Name: "pedantic", Usage: "Issue the warnings ISO C requires"},
		&cli.BoolFlag{Name: "pedantic-errors", Usage: "Make pedantic warnings errors"},
		&cli.BoolFlag{Name: "Werror", Usage: "Make warnings count as errors"},
		&cli.BoolFlag{Name: "w", Usage: "Inhibit warnings"},
		&cli.BoolFlag{Name: "Wundef", Usage: "Warn about undefined identifiers in #if"},
		&cli.BoolFlag{Name: "Wtrigraphs", Usage: "Warn about trigraphs"},
		&cli.BoolFlag{Name: "Wcomment", Usage: "Warn about nested comment openers"},
		&cli.BoolFlag{Name: "C", Usage: "Keep comments in the output"},
		&cli.BoolFlag{Name: "P", Usage: "Do not write line markers"},
		&cli.BoolFlag{Name: "dM", Usage: "Only print the macros defined at the end"},
		&cli.BoolFlag{Name: "dD", Usage: "Keep #define and #undef directives in the output"},
		&cli.BoolFlag{Name: "remap", Usage: "Remap file names using header.gcc and directory listings"},
		&cli.StringFlag{Name: "o", Usage: "Write output to `file`"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
	}
	app.Action = func(c *cli.Context) error {
		return preprocess(c, stdin, stdout, stderr)
	}
	return app.Run(args)
}

func preprocess(c *cli.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	if c.NArg() > 1 {
		return fmt.Errorf("too many input files")
	}

	zapCfg := zap.NewProductionConfig()
	if c.Bool("debug") {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zl, err := zapCfg.Build()
	if err != nil {
		return err
	}
	defer zl.Sync() //nolint:errcheck

	cfg, err := configure(c)
	if err != nil {
		return err
	}
	cfg.Logger = zapr.NewLogger(zl)
	cfg.OnDiagnostic = diagnosticPrinter(stderr)

	name, src := c.Args().First(), []byte(nil)
	if name == "" || name == "-" {
		name = "<stdin>"
		if src, err = io.ReadAll(stdin); err != nil {
			return fmt.Errorf("reading standard input: %w", err)
		}
	}

	out := stdout
	if path := c.String("o"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	r, err := gocpp.Preprocess(out, name, src, cfg)
	if err != nil {
		return err
	}
	if r.ExitStatus() != 0 {
		return errFailed
	}
	return nil
}

// configure maps the command line onto the engine options.
func configure(c *cli.Context) (gocpp.Config, error) {
	lang, err := preprocessor.ParseLang(c.String("std"))
	if err != nil {
		return gocpp.Config{}, err
	}
	opts := preprocessor.DefaultOptions(lang)

	opts.BracketIncludeDirs = c.StringSlice("I")
	opts.QuoteIncludeDirs = c.StringSlice("iquote")
	opts.IgnoreSourceDir = c.Bool("I-")
	opts.Remap = c.Bool("remap")

	for _, d := range c.StringSlice("D") {
		opts.Pending = append(opts.Pending, preprocessor.Pending{Kind: preprocessor.PendingDefine, Arg: d})
	}
	for _, u := range c.StringSlice("U") {
		opts.Pending = append(opts.Pending, preprocessor.Pending{Kind: preprocessor.PendingUndef, Arg: u})
	}
	for _, a := range c.StringSlice("A") {
		if len(a) > 1 && a[0] == '-' {
			opts.Pending = append(opts.Pending, preprocessor.Pending{Kind: preprocessor.PendingUnassert, Arg: a[1:]})
		} else {
			opts.Pending = append(opts.Pending, preprocessor.Pending{Kind: preprocessor.PendingAssert, Arg: a})
		}
	}

	if c.IsSet("trigraphs") {
		opts.Trigraphs = c.Bool("trigraphs")
	}
	if c.IsSet("digraphs") {
		opts.Digraphs = c.Bool("digraphs")
	}
	if c.IsSet("dollars") {
		opts.DollarsInIdent = c.Bool("dollars")
	}
	if n := c.Int("tabstop"); n > 0 && n <= 100 {
		opts.TabStop = n
	}

	opts.Pedantic = c.Bool("pedantic") || c.Bool("pedantic-errors")
	opts.PedanticErrors = c.Bool("pedantic-errors")
	opts.WarningsAreErrors = c.Bool("Werror")
	opts.InhibitWarnings = c.Bool("w")
	opts.WarnUndef = c.Bool("Wundef")
	opts.WarnTrigraphs = c.Bool("Wtrigraphs")
	opts.WarnComments = c.Bool("Wcomment")
	opts.KeepComments = c.Bool("C")

	cfg := gocpp.Config{Options: opts, NoLineMarkers: c.Bool("P")}
	switch {
	case c.Bool("dM"):
		cfg.Dump = gocpp.DumpMacros
	case c.Bool("dD"):
		cfg.Dump = gocpp.DumpDefinitions
	}
	return cfg, nil
}

var severityColors = map[preprocessor.Severity]string{
	preprocessor.SeverityNote:    "\x1b[1;36m",
	preprocessor.SeverityWarning: "\x1b[1;35m",
	preprocessor.SeverityPedwarn: "\x1b[1;35m",
	preprocessor.SeverityError:   "\x1b[1;31m",
	preprocessor.SeverityFatal:   "\x1b[1;31m",
}

// diagnosticPrinter writes diagnostics to w, in colour when w is a
// terminal.
func diagnosticPrinter(w io.Writer) func(preprocessor.Diagnostic) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return func(d preprocessor.Diagnostic) {
		if !color {
			fmt.Fprintln(w, d)
			return
		}
		fmt.Fprintf(w, "\x1b[1m%s:\x1b[0m %s%s:\x1b[0m %s\n", d.Location, severityColors[d.Severity], d.Severity, d.Message)
	}
}
