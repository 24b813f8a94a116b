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
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/gocpp/internal/preprocessor"
)

func testConfig() Config {
	return Config{Options: preprocessor.DefaultOptions(preprocessor.GNUC89)}
}

func TestPreprocess(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		cfg  func(*Config)
		want string
	}{
		{
			name: "expansion",
			src:  "#define A 1 + 2\nint x = A;\n",
			want: "# 1 \"t.c\"\n\nint x = 1 + 2;\n",
		},
		{
			name: "small gap",
			src:  "a\n\n\n\nb\n",
			want: "# 1 \"t.c\"\na\n\n\n\nb\n",
		},
		{
			name: "large gap",
			src:  "a\n" + strings.Repeat("\n", 10) + "b\n",
			want: "# 1 \"t.c\"\na\n# 12 \"t.c\"\nb\n",
		},
		{
			name: "no line markers",
			src:  "a\n" + strings.Repeat("\n", 10) + "b\n",
			cfg:  func(c *Config) { c.NoLineMarkers = true },
			want: "a\nb\n",
		},
		{
			name: "column",
			src:  "    x  y\n",
			want: "# 1 \"t.c\"\n    x y\n",
		},
		{
			name: "avoid paste",
			src:  "#define PLUS +\n#define EMPTY\n+PLUS -EMPTY-\n",
			want: "# 1 \"t.c\"\n\n\n+ + - -\n",
		},
		{
			name: "pragma and ident",
			src:  "#pragma foo bar\n#ident \"v1\"\nx\n",
			want: "# 1 \"t.c\"\n#pragma foo bar\n#ident \"v1\"\nx\n",
		},
		{
			name: "line directive",
			src:  "a\n#line 100 \"other.c\"\nb\n",
			want: "# 1 \"t.c\"\na\n# 100 \"other.c\"\nb\n",
		},
		{
			name: "keep definitions",
			src:  "#define A 1\n#undef A\nx\n",
			cfg:  func(c *Config) { c.Dump = DumpDefinitions },
			want: "# 1 \"t.c\"\n#define A 1\n#undef A\nx\n",
		},
		{
			name: "dump macros",
			src:  "#define A 1\n#define F(x,y) x ## y\n#undef A\n#define B\nF(a,b)\n",
			cfg:  func(c *Config) { c.Dump = DumpMacros },
			want: "#define F(x,y) x ## y\n#define B\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			var out bytes.Buffer
			r, err := Preprocess(&out, "t.c", []byte(tc.src), cfg)
			require.NoError(t, err)
			require.Zero(t, r.ExitStatus())
			if diff := cmp.Diff(tc.want, out.String()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreprocessIncludes(t *testing.T) {
	dir := t.TempDir()
	main, header, sys := filepath.Join(dir, "main.c"), filepath.Join(dir, "h.h"), filepath.Join(dir, "s.h")
	require.NoError(t, os.WriteFile(main, []byte("#include \"h.h\"\nm\n#include \"s.h\"\n"), 0o644))
	require.NoError(t, os.WriteFile(header, []byte("h\n"), 0o644))
	require.NoError(t, os.WriteFile(sys, []byte("#pragma GCC system_header\ny\n"), 0o644))

	var out bytes.Buffer
	r, err := Preprocess(&out, main, nil, testConfig())
	require.NoError(t, err)
	require.Zero(t, r.ExitStatus())

	want := strings.Join([]string{
		`# 1 "` + main + `"`,
		`# 1 "` + header + `" 1`,
		`h`,
		`# 2 "` + main + `" 2`,
		`m`,
		`# 1 "` + sys + `" 1`,
		`# 2 "` + sys + `" 3`,
		`y`,
		`# 4 "` + main + `" 2`,
		``,
	}, "\n")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPreprocessErrors(t *testing.T) {
	var out bytes.Buffer
	_, err := Preprocess(&out, filepath.Join(t.TempDir(), "missing.c"), nil, testConfig())
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Preprocess(&out, "", nil, testConfig())
	require.ErrorIs(t, err, preprocessor.ErrNoInput)

	var diags []string
	cfg := testConfig()
	cfg.OnDiagnostic = func(d preprocessor.Diagnostic) { diags = append(diags, d.String()) }
	out.Reset()
	r, err := Preprocess(&out, "t.c", []byte("a\n#error stop\nb\n"), cfg)
	require.NoError(t, err)
	require.Equal(t, 1, r.ExitStatus())
	require.Equal(t, []string{"t.c:2:1: error: #error stop"}, diags)
	require.Equal(t, "# 1 \"t.c\"\na\n\nb\n", out.String())
}
