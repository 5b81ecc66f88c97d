package tgui

import "testing"

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel…"},
		{"héllo", 2, "hé…"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Errorf("TruncRunes(%q,%d)=%q want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestLinesEscapes(t *testing.T) {
	t.Parallel()

	got := Lines(B("a<b"), Esc("  "), I("x & y"))
	if want := H("<b>a&lt;b</b>\n<i>x &amp; y</i>"); got != want {
		t.Fatalf("Lines=%q want %q", got, want)
	}
}
