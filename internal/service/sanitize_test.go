package service

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"plain", "Best color?", 500, "Best color?"},
		{"strips tags", "<script>alert(1)</script>hello", 500, "alert(1)hello"},
		{"strips entities", "fish &amp; chips", 500, "fish  chips"},
		{"trims whitespace", "  hello  ", 500, "hello"},
		{"clamps length", strings.Repeat("a", 20), 10, strings.Repeat("a", 10)},
		{"only markup", "<b></b>", 500, ""},
		{"multibyte clamp", "héllo wörld", 5, "héllo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeText(tc.input, tc.maxLength); got != tc.want {
				t.Errorf("sanitizeText(%q, %d) = %q, want %q", tc.input, tc.maxLength, got, tc.want)
			}
		})
	}
}

func TestHashFingerprint(t *testing.T) {
	h := HashFingerprint("device-abc")

	if len(h) != 64 {
		t.Errorf("digest length = %d, want 64", len(h))
	}
	for _, ch := range h {
		if !strings.ContainsRune("0123456789abcdef", ch) {
			t.Errorf("digest contains non-hex character %q", ch)
		}
	}
	if h != HashFingerprint("device-abc") {
		t.Error("hash is not deterministic")
	}
	if h == HashFingerprint("device-abd") {
		t.Error("distinct inputs collided")
	}
	if h == "device-abc" {
		t.Error("raw fingerprint leaked through")
	}
}
