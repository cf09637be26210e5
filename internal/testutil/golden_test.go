package testutil

import "testing"

func TestFirstDiff(t *testing.T) {
	tests := []struct {
		want, got, expected string
	}{
		{"a\nb\n", "a\nc\n", `line 2: want "b", got "c"`},
		{"a\n", "a\nb\n", `line 2: want "", got "b"`},
		{"a", "a", "end of file"},
	}
	for _, tc := range tests {
		if got := firstDiff(tc.want, tc.got); got != tc.expected {
			t.Errorf("firstDiff(%q, %q) = %q, want %q", tc.want, tc.got, got, tc.expected)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("a\r\nb\r\n"); got != "a\nb\n" {
		t.Errorf("unexpected %q", got)
	}
}
