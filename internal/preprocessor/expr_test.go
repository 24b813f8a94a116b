package preprocessor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ifValue wraps expr so that the output is "1" when it holds and "0"
// otherwise.
func ifValue(prelude, expr string) string {
	return prelude + "#if " + expr + "\n1\n#else\n0\n#endif\n"
}

func TestIfExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"1 + 2 == 3", true},
		{"1 + 2 * 3 == 7", true},
		{"(1 + 2) * 3 == 9", true},
		{"10 / 3 == 3 && 10 % 3 == 1", true},
		{"-7 / 2 == -3", true},
		{"1 ? 2 : 3", true},
		{"0 ? 2 : 0", false},
		{"1 ? 0 ? 3 : 4 : 5", true},
		{"1 ? 0 ? 3 : 0 : 5", false},
		{"0 ? 1 : 0 ? 2 : 0", false},
		{"(1 ? 2 : 3) == 2", true},
		{"(0, 1)", true},
		{"-1 < 0", true},
		{"-1 < 0u", false},
		{"-1 > 0U", true},
		{"0xff == 255", true},
		{"010 == 8", true},
		{"0 == 0L", true},
		{"1 << 3 == 8", true},
		{"-16 >> 2 == -4", true},
		{"1 << -1 == 0", true},
		{"~0 == -1", true},
		{"!0 && !!1", true},
		{"(3 & 5) == 1 && (3 | 5) == 7 && (3 ^ 5) == 6", true},
		{"2 >= 2 && 2 <= 2 && 2 != 3", true},
		{"'a' == 97", true},
		{"'\\n' == 10 && '\\x41' == 65 && '\\101' == 65", true},
		{"'\\377' < 0", true},
		{"L'\\377' > 0", true},
		{"UNDEFINED == 0", true},
		{"defined(A) && A == 3", true},
		{"defined A", true},
		{"defined B", false},
		{"F(2) == 4", true},
		{"0 && (1 / 0)", false},
		{"1 || (1 / 0)", true},
		{"1 ? 1 : 1 / 0", true},
		{"9223372036854775807 + 0 > 0", true},
		{"0xffffffffffffffff == -1", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, diags := lexDrain(t, DefaultOptions(GNUC89), ifValue("#define A 3\n#define F(x) x*x\n", tt.expr))
			want := lines("0")
			if tt.want {
				want = lines("1")
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if len(diags) != 0 {
				t.Errorf("unexpected diagnostics: %q", diags)
			}
		})
	}
}

func TestBadIfExpressions(t *testing.T) {
	tests := []struct {
		expr  string
		diags []string
	}{
		{"", []string{"error: #if with no expression"}},
		{"1 +", []string{"error: operator '+' has no right operand"}},
		{"!", []string{"error: operator '!' has no right operand"}},
		{"1 2", []string{`error: missing binary operator before token "2"`}},
		{"(1", []string{"error: missing ')' in expression"}},
		{"()", []string{"error: missing expression between '(' and ')'"}},
		{"1 ? 2", []string{"error: '?' without following ':'"}},
		{"1 : 2", []string{"error: ':' without preceding '?'"}},
		{"(1 : 2)", []string{"error: ':' without preceding '?'"}},
		{"1 ? 2 : 3 : 4", []string{"error: ':' without preceding '?'"}},
		{"1 / 0", []string{"error: division by zero in #if"}},
		{"1 % 0", []string{"error: division by zero in #if"}},
		{`"s"`, []string{"error: string literals are not valid in #if expressions"}},
		{"= 1", []string{`error: token "=" is not valid in #if expressions`}},
		{"1.0", []string{"error: floating point numbers are not valid in #if"}},
		{"1e3", []string{"error: floating point numbers are not valid in #if"}},
		{"08", []string{`error: invalid digit "8" in octal constant`}},
		{"1x", []string{`error: invalid suffix "x" on integer constant`}},
		{"0x", []string{`error: invalid suffix "x" on integer constant`}},
		{"''", []string{"error: empty character constant"}},
		{"defined", []string{`error: operator "defined" requires an identifier`}},
		{"defined(A", []string{`error: missing ')' after "defined"`}},
		{"'ab' != 0", []string{"warning: multi-character character constant"}},
		{"'abcde' != 0", []string{"warning: character constant too long"}},
		{"18446744073709551615 != 0", []string{"warning: integer constant is so large that it is unsigned"}},
		{"99999999999999999999 != 0", []string{"pedantic warning: integer constant out of range"}},
		{"9223372036854775807 + 1 < 0", []string{"pedantic warning: integer overflow in preprocessor expression"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, diags := lexDrain(t, DefaultOptions(GNUC89), ifValue("", tt.expr))
			if diff := cmp.Diff(tt.diags, diags); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIfWarnUndef(t *testing.T) {
	opts := DefaultOptions(GNUC89)
	opts.WarnUndef = true
	got, diags := lexDrain(t, opts, ifValue("", "FOO || (0 && BAR)"))
	if diff := cmp.Diff(lines("0"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`warning: "FOO" is not defined`}, diags); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIfPedantic(t *testing.T) {
	opts := DefaultOptions(GNUC89)
	opts.Pedantic = true
	_, diags := lexDrain(t, opts, ifValue("", "(1, 2) && 1LL"))
	want := []string{
		"pedantic warning: comma operator in operand of #if",
		"pedantic warning: too many 'l' suffixes in integer constant",
	}
	if diff := cmp.Diff(want, diags); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
