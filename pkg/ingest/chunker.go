package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/telerag/telerag/pkg/models"
)

// SplitChunks splits text into fixed-width rune chunks. Chunks are trimmed
// of surrounding whitespace and chunks shorter than minLength runes are
// dropped. Chunk ids are derived from the source name and a content hash so
// re-chunking identical content always yields the same ids.
func SplitChunks(source string, text string, chunkSize int, minLength int) []models.Chunk {
	if chunkSize <= 0 {
		return nil
	}

	runes := []rune(text)

	var chunks []models.Chunk
	index := 0
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunkText := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunkText)) < minLength {
			continue
		}

		chunks = append(chunks, models.Chunk{
			ID:     chunkID(source, chunkText, index),
			Text:   chunkText,
			Source: source,
			Index:  index,
		})
		index++
	}

	return chunks
}

// chunkID builds a stable chunk id from the source name, a short content
// hash and the chunk's position.
func chunkID(source string, text string, index int) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s_%s_%d", source, hex.EncodeToString(hash[:4]), index)
}
