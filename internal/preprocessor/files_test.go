package preprocessor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// includeRun preprocesses dir/main.c.
func includeRun(t *testing.T, opts Options, dir string, cb Callbacks) (*Reader, string, []string) {
	t.Helper()
	r, diags := newTestReader(opts, cb)
	src, err := os.ReadFile(filepath.Join(dir, "main.c"))
	require.NoError(t, err)
	require.NoError(t, r.StartReadSource(filepath.Join(dir, "main.c"), src))
	out := drain(r)
	r.Finish()
	return r, out, *diags
}

func TestIncludeGuard(t *testing.T) {
	tests := []struct {
		name   string
		header string
		output string
		guard  string
	}{
		{
			"ifndef",
			lines("#ifndef G", "#define G", "body", "#endif"),
			lines("body", "end"),
			"G",
		},
		{
			"if not defined",
			lines("/* leading comment */", "#if !defined(G)", "#define G", "body", "#endif"),
			lines("body", "end"),
			"G",
		},
		{
			"token before",
			lines("x", "#ifndef G", "#define G", "#endif"),
			lines("x.x", "end"),
			"",
		},
		{
			"token after",
			lines("#ifndef G", "#define G", "#endif", "y"),
			lines("y.y", "end"),
			"",
		},
		{
			"else branch",
			lines("#ifndef G", "#define G", "body", "#else", "#endif"),
			lines("body", "end"),
			"",
		},
		{
			"two conditionals",
			lines("#ifndef G", "#define G", "#endif", "#ifdef G", "#endif"),
			lines("end"),
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{
				"main.c": lines(`#include "g.h"`, `#include "g.h"`, "end"),
				"g.h":    tt.header,
			})
			r, out, diags := includeRun(t, DefaultOptions(GNUC89), dir, nil)
			require.Empty(t, diags)
			if diff := cmp.Diff(tt.output, out); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}

			entered := 2
			if tt.guard != "" {
				entered = 1
			}
			want := []IncludeInfo{
				{Path: filepath.Join(dir, "g.h"), Guard: tt.guard, Entered: entered},
				{Path: filepath.Join(dir, "main.c"), Entered: 1},
			}
			if diff := cmp.Diff(want, r.Includes()); diff != "" {
				t.Errorf("includes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPragmaOnceAndImport(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "o.h"`, `#include "o.h"`, `#import "i.h"`, `#import "i.h"`, `#include "i.h"`, "end"),
		"o.h":    lines("#pragma once", "once"),
		"i.h":    lines("imported"),
	})
	r, out, diags := includeRun(t, DefaultOptions(GNUC89), dir, nil)
	if diff := cmp.Diff(lines("once", "imported", "end"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"warning: #import is obsolete, use an #ifndef wrapper in the header file"}, diags); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	for _, inc := range r.Includes() {
		if filepath.Base(inc.Path) != "main.c" {
			assert.True(t, inc.Once, inc.Path)
			assert.Equal(t, 1, inc.Entered, inc.Path)
		}
	}
}

func TestIncludeNext(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines("#include <x.h>"),
		"d1/x.h": lines("one", "#include_next <x.h>"),
		"d2/x.h": lines("two", `#include_next "x.h"`),
		"d3/x.h": lines("three"),
	})
	opts := DefaultOptions(GNUC89)
	opts.BracketIncludeDirs = []string{filepath.Join(dir, "d1"), filepath.Join(dir, "d2"), filepath.Join(dir, "d3")}
	r, out, diags := includeRun(t, opts, dir, nil)
	require.Empty(t, diags)
	if diff := cmp.Diff(lines("one", "two", "three"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	want := []string{filepath.Join(dir, "d3/x.h"), filepath.Join(dir, "d2/x.h"), filepath.Join(dir, "d1/x.h")}
	if diff := cmp.Diff(want, r.IncludesNamed("x.h")); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeSearchOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "a.h"`, "#include <a.h>", `#include "b.h"`),
		"a.h":    lines("local"),
		"q/a.h":  lines("quote"),
		"q/b.h":  lines("quote_b"),
		"b/a.h":  lines("bracket"),
		"b/b.h":  lines("bracket_b"),
	})
	opts := DefaultOptions(GNUC89)
	opts.QuoteIncludeDirs = []string{filepath.Join(dir, "q")}
	opts.BracketIncludeDirs = []string{filepath.Join(dir, "b")}

	_, out, diags := includeRun(t, opts, dir, nil)
	require.Empty(t, diags)
	if diff := cmp.Diff(lines("local", "bracket", "quote_b"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	opts.IgnoreSourceDir = true
	_, out, diags = includeRun(t, opts, dir, nil)
	require.Empty(t, diags)
	if diff := cmp.Diff(lines("quote", "bracket", "quote_b"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeMacroExpanded(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#define HDR "m.h"`, "#include HDR", "#define SYS <n.h>", "#include SYS"),
		"m.h":    lines("m"),
		"n.h":    lines("n"),
	})
	opts := DefaultOptions(GNUC89)
	opts.BracketIncludeDirs = []string{dir}
	_, out, diags := includeRun(t, opts, dir, nil)
	require.Empty(t, diags)
	if diff := cmp.Diff(lines("m", "n"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRemap(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c":             lines(`#include "short.h"`, `#include "upper.h"`),
		"header.gcc":         lines("short.h really_long_name.h"),
		"really_long_name.h": lines("remapped"),
		"Upper.H":            lines("upper"),
	})
	opts := DefaultOptions(GNUC89)
	opts.Remap = true
	_, out, diags := includeRun(t, opts, dir, nil)
	require.Empty(t, diags)
	if diff := cmp.Diff(lines("remapped", "upper"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	opts.Remap = false
	_, _, diags = includeRun(t, opts, dir, nil)
	require.Contains(t, diags, "error: short.h: no such file or directory")
}

func TestIncludeDepth(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "self.h"`, "after"),
		"self.h": lines(`#include "self.h"`),
	})
	opts := DefaultOptions(GNUC89)
	opts.MaxIncludeDepth = 5
	r, out, diags := includeRun(t, opts, dir, nil)
	require.Equal(t, "", out)
	if diff := cmp.Diff([]string{"fatal error: #include nested too deeply"}, diags); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	require.True(t, r.Aborted())
	require.Equal(t, 1, r.ExitStatus())
}

func TestIncludeUnterminatedConditional(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "u.h"`, "after"),
		"u.h":    lines("#if 1", "in"),
	})
	_, out, diags := includeRun(t, DefaultOptions(GNUC89), dir, nil)
	if diff := cmp.Diff(lines("in", "after"), out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"error: unterminated #if"}, diags); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeCallbacks(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "h.h"`, "__FILE__ __INCLUDE_LEVEL__"),
		"h.h":    lines("__FILE__ __INCLUDE_LEVEL__ __BASE_FILE__"),
	})
	cb := &recorder{}
	_, out, diags := includeRun(t, DefaultOptions(GNUC89), dir, cb)
	require.Empty(t, diags)

	main, header := filepath.Join(dir, "main.c"), filepath.Join(dir, "h.h")
	want := lines(
		quoteString(header)+".1."+quoteString(main),
		quoteString(main)+".0",
	)
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	events := []string{
		"enter " + main,
		`include "h.h"`,
		"enter " + header,
		"leave " + main,
	}
	if diff := cmp.Diff(events, cb.events); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemHeader(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.c": lines(`#include "s.h"`),
		"s.h":    lines("#pragma GCC system_header", "x"),
	})
	cb := &sysRecorder{}
	_, out, diags := includeRun(t, DefaultOptions(GNUC89), dir, cb)
	require.Empty(t, diags)
	require.Equal(t, lines("x"), out)
	require.Equal(t, []int{0, 0, 1}, cb.sysp)
}

type sysRecorder struct {
	NopCallbacks
	sysp []int
}

func (c *sysRecorder) FileEnter(_ *Reader, fc FileChange)  { c.sysp = append(c.sysp, fc.Sysp) }
func (c *sysRecorder) FileRename(_ *Reader, fc FileChange) { c.sysp = append(c.sysp, fc.Sysp) }
