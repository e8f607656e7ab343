package testutils

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telerag/telerag/pkg/models"
)

var TestMessages = []models.Message{
	{
		Role:    models.RoleUser,
		Content: "Hello",
	},
	{
		Role:    models.RoleAssistant,
		Content: "Hi there! How can I help you today?",
	},
	{
		Role:    models.RoleUser,
		Content: "What does the termination clause in the standard contract say?",
	},
	{
		Role:    models.RoleAssistant,
		Content: "The standard contract allows either party to terminate with thirty days written notice.",
	},
	{
		Role:    models.RoleUser,
		Content: "And what notice period applies to subcontractors?",
	},
	{
		Role:    models.RoleAssistant,
		Content: "Subcontractor agreements require a fourteen day notice period unless otherwise stated.",
	},
}

// GenerateMessages returns count alternating user/assistant messages with
// random content.
func GenerateMessages(count int) []models.Message {
	messages := make([]models.Message, count)
	for i := range messages {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		messages[i] = models.Message{
			Role:    role,
			Content: gofakeit.Sentence(12),
		}
	}
	return messages
}

// GenerateChunks returns count chunks for a synthetic source document.
func GenerateChunks(count int) []models.Chunk {
	source := gofakeit.AppName() + ".txt"
	chunks := make([]models.Chunk, count)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:     fmt.Sprintf("%s_%s_%d", source, GenerateRandomString(8), i),
			Text:   gofakeit.Paragraph(1, 4, 12, " "),
			Source: source,
			Index:  i,
		}
	}
	return chunks
}

// GenerateFloatVector returns a random embedding of the given width.
func GenerateFloatVector(width int) []float32 {
	vector := make([]float32, width)
	for i := range vector {
		vector[i] = float32(gofakeit.Float64Range(-1, 1))
	}
	return vector
}
