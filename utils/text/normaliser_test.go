package text

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown", "Your **hemoglobin** is *normal*.", "Your hemoglobin is normal."},
		{"whitespace", "  Yes,\n\n  it is   fine. ", "Yes, it is fine."},
		{"emoji", "All good 👍", "All good"},
		{"units survive", "13.2 g/dL (12-16)", "13.2 g/dL (12-16)"},
		{"accents survive", "Tu hemoglobina está bien.", "Tu hemoglobina está bien."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeForSpeech(tt.in); got != tt.want {
				t.Errorf("NormalizeForSpeech(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitForSpeech_Short(t *testing.T) {
	got := SplitForSpeech("Short answer.", 100)
	if len(got) != 1 || got[0] != "Short answer." {
		t.Errorf("unexpected chunks %q", got)
	}
	if SplitForSpeech("   ", 100) != nil {
		t.Error("blank text should produce no chunks")
	}
}

func TestSplitForSpeech_RespectsLimit(t *testing.T) {
	in := "Your hemoglobin is 13.2 g/dL. That is within the normal range for adults. " +
		"Your white cell count is also normal! There is nothing to worry about in this report."
	chunks := SplitForSpeech(in, 40)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %q", chunks)
	}
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 40 {
			t.Errorf("chunk %q has %d runes, limit 40", c, n)
		}
	}
	joined := strings.Join(chunks, " ")
	if strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(in), " ") {
		t.Errorf("chunks lost text:\n%q\n%q", joined, in)
	}
}

func TestSplitForSpeech_LongWord(t *testing.T) {
	chunks := SplitForSpeech(strings.Repeat("a", 25), 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %q", chunks)
	}
	if chunks[2] != "aaaaa" {
		t.Errorf("last chunk = %q", chunks[2])
	}
}
