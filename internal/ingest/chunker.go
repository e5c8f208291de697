package ingest

import "strings"

// DefaultChunkSize is the minimum chunk length, in runes, before a chunk
// is closed at the next sentence boundary.
const DefaultChunkSize = 500

// Chunks splits text into sentence-aligned chunks. A chunk is closed at
// the first '.' at or after size runes; the trailing remainder (or a text
// with no further '.') becomes the final chunk. Chunks are trimmed of
// surrounding whitespace and empty chunks are dropped.
func Chunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)

	var chunks []string
	emit := func(s string) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	start := 0
	for start < len(runes) {
		if len(runes)-start <= size {
			emit(string(runes[start:]))
			break
		}

		cut := -1
		for i := start + size; i < len(runes); i++ {
			if runes[i] == '.' {
				cut = i + 1 // Keep the period with its sentence
				break
			}
		}
		if cut < 0 {
			emit(string(runes[start:]))
			break
		}

		emit(string(runes[start:cut]))
		start = cut
	}

	return chunks
}
