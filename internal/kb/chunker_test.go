package kb

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "basic terminators",
			text: "First sentence. Second one! Third one?",
			want: []string{"First sentence.", "Second one!", "Third one?"},
		},
		{
			name: "trailing fragment without terminator",
			text: "Complete sentence. Trailing fragment",
			want: []string{"Complete sentence.", "Trailing fragment"},
		},
		{
			name: "empty fragments dropped",
			text: "One... Two.",
			want: []string{"One.", "Two."},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "punctuation only",
			text: " . ! ? ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d sentences, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestChunkTextShortInputIsSingleChunk(t *testing.T) {
	text := "The standard deduction for single filers in 2024 is $14,600. It increases most years."
	chunks := ChunkText(text, DefaultMaxChunkSize, DefaultOverlap)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected chunk to equal input text\nwant: %q\ngot:  %q", text, chunks[0])
	}
}

func TestChunkTextSplitsAtSizeLimit(t *testing.T) {
	// 20 sentences of ~50 chars each, max 200 chars per chunk.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("This sentence is exactly long enough to be counted. ")
	}
	chunks := ChunkText(b.String(), 200, 60)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 200+60 {
			t.Errorf("chunk %d exceeds size plus overlap budget: %d chars", i, len(c))
		}
	}
}

func TestChunkTextNoSentenceDropped(t *testing.T) {
	sentences := []string{
		"Standard deductions reduce taxable income.",
		"The 2024 single filer amount is $14,600!",
		"Married filing jointly doubles that amount.",
		"Head of household gets $21,900.",
		"Itemizing may beat the standard deduction?",
		"State taxes are a common itemized deduction.",
	}
	text := strings.Join(sentences, " ")
	chunks := ChunkText(text, 100, 30)

	joined := strings.Join(chunks, " ")
	for _, s := range sentences {
		if !strings.Contains(joined, s) {
			t.Errorf("sentence dropped during chunking: %q", s)
		}
	}
}

func TestChunkTextOverlapSeedsNextChunk(t *testing.T) {
	sentences := []string{
		"Alpha bravo charlie delta echo foxtrot golf hotel.",
		"India juliet kilo lima mike november oscar papa.",
		"Quebec romeo sierra tango uniform victor whiskey xray.",
	}
	text := strings.Join(sentences, " ")
	overlap := 60 // 10 words of overlap
	chunks := ChunkText(text, 60, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	words := strings.Fields(chunks[0])
	n := overlap / 6
	if len(words) > n {
		words = words[len(words)-n:]
	}
	tail := strings.Join(words, " ")
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("second chunk should start with the last %d words of the first\ntail: %q\nchunk: %q", n, tail, chunks[1])
	}
}

func TestChunkTextOversizedSentenceEmittedWhole(t *testing.T) {
	long := "This single sentence goes on far longer than the configured chunk size would normally allow because there is no terminator anywhere inside it until the very end."
	chunks := ChunkText(long, 50, 12)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for a single oversized sentence, got %d", len(chunks))
	}
	if chunks[0] != long {
		t.Errorf("oversized sentence must not be truncated")
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("Deterministic chunking matters for reproducible builds. ", 40)
	a := ChunkText(text, 300, 90)
	b := ChunkText(text, 300, 90)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between identical runs", i)
		}
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if got := ChunkText("", 1000, 200); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
