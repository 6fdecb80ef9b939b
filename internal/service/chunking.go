package service

import (
	"strings"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

// ChunkConfig controls how extracted document text is split before embedding.
// Sizes are measured in runes.
type ChunkConfig struct {
	MaxSize int
	Overlap int
}

// DefaultChunkConfig provides the defaults used for PDF ingestion.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize: 1000,
		Overlap: 100,
	}
}

// Validate rejects parameters for which the sliding window would not advance.
func (c ChunkConfig) Validate() error {
	if c.MaxSize <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxSize {
		return domain.ErrInvalidChunkOverlap
	}
	return nil
}

// ChunkText splits text into overlapping windows of at most maxSize runes,
// preferring to end a window after the last ". " or "\n" in its second half.
//
// Chunking stops at the first window that reaches the end of the text. A
// chunker that keeps sliding by maxSize-overlap emits one extra chunk, made of
// overlap only, when the last window's tail is between maxSize-overlap and
// maxSize runes long. For such documents the chunk count, the set of ChunkID
// values and the ingested count differ from a collection populated that way.
func ChunkText(text string, maxSize, overlap int) ([]string, error) {
	if err := (ChunkConfig{MaxSize: maxSize, Overlap: overlap}).Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/maxSize+1)
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end < len(runes) {
			if brk := lastBreak(runes[start:end]); brk >= 0 && 2*brk >= maxSize {
				end = start + brk + 1
			}
		} else {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// lastBreak returns the offset of the later of the last sentence terminator
// (the '.' of ". ") and the last newline in window, or -1.
func lastBreak(window []rune) int {
	period := -1
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '.' && window[i+1] == ' ' {
			period = i
			break
		}
	}
	newline := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			newline = i
			break
		}
	}
	if newline > period {
		return newline
	}
	return period
}

// chunkDocument applies cfg to a document's text and tags each piece with its index.
func chunkDocument(text string, cfg ChunkConfig) ([]domain.Chunk, error) {
	pieces, err := ChunkText(text, cfg.MaxSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{Index: i, Text: p}
	}
	return chunks, nil
}
