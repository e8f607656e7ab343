package retrieval

import (
	"fmt"
	"strings"

	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
)

const snippetRunes = 250

const (
	highConfidence = 0.7
	midConfidence  = 0.5
)

// Compose merges the model's answer with the retrieved context into a
// single user-facing message. Purely a formatting function.
func Compose(answer string, results []models.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(answer))

	if len(results) == 0 {
		b.WriteString("\n\n_No relevant context found in the document archive._")
		return b.String()
	}

	b.WriteString("\n\n📚 *Sources*\n")
	for _, result := range results {
		b.WriteString(fmt.Sprintf(
			"%s %s (%.2f): %s\n",
			confidenceIndicator(result.Score),
			result.Source,
			result.Score,
			internal.TruncateRunes(result.Text, snippetRunes),
		))
	}

	return strings.TrimRight(b.String(), "\n")
}

func confidenceIndicator(score float64) string {
	switch {
	case score >= highConfidence:
		return "🟢"
	case score >= midConfidence:
		return "🟡"
	default:
		return "🔴"
	}
}
