// Package kb turns raw knowledge-base documents into bounded, overlapping
// text chunks suitable for independent embedding.
package kb

import "strings"

const (
	DefaultMaxChunkSize = 1000
	DefaultOverlap      = 200
)

// SplitSentences splits text on sentence terminators (. ! ?), keeping the
// terminator attached to its sentence and dropping empty fragments.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" && !isTerminatorOnly(s) {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" && !isTerminatorOnly(s) {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminatorOnly(s string) bool {
	return strings.Trim(s, ".!? ") == ""
}

// ChunkText accumulates sentences into chunks of at most maxChunkSize
// characters. When a sentence would push a non-empty chunk past the limit,
// the chunk is emitted and the next one is seeded with the last
// overlap/6 words of it. A single sentence longer than maxChunkSize is
// still emitted whole: the size check only fires once the running chunk
// has content.
func ChunkText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	overlapWords := overlap / 6

	var chunks []string
	var current string
	for _, sentence := range sentences {
		if current != "" && len(current)+len(sentence)+1 > maxChunkSize {
			chunks = append(chunks, current)
			current = tailWords(current, overlapWords)
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// tailWords returns the last n whitespace-separated words of s.
func tailWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
