package llms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTextEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeTextEmbedder) EmbedText(_ context.Context, _ string, _ bool) ([]float32, error) {
	return f.vector, f.err
}

func constantVector(dimensions int, value float32) []float32 {
	vector := make([]float32, dimensions)
	for i := range vector {
		vector[i] = value
	}
	return vector
}

func TestEmbedder_Embed(t *testing.T) {
	const dimensions = 1024

	tests := []struct {
		name         string
		provider     *fakeTextEmbedder
		text         string
		wantErr      bool
		wantDegraded bool
	}{
		{
			name:     "valid embedding",
			provider: &fakeTextEmbedder{vector: constantVector(dimensions, 0.5)},
			text:     "the rain in spain",
		},
		{
			name:     "empty text is a hard input error",
			provider: &fakeTextEmbedder{vector: constantVector(dimensions, 0.5)},
			text:     "",
			wantErr:  true,
		},
		{
			name:     "whitespace-only text is a hard input error",
			provider: &fakeTextEmbedder{vector: constantVector(dimensions, 0.5)},
			text:     "   \n\t  ",
			wantErr:  true,
		},
		{
			name:         "provider failure falls back to synthetic vector",
			provider:     &fakeTextEmbedder{err: errors.New("rate limited")},
			text:         "some text",
			wantDegraded: true,
		},
		{
			name:         "near-zero embedding is treated as failed",
			provider:     &fakeTextEmbedder{vector: constantVector(dimensions, 1e-5)},
			text:         "some text",
			wantDegraded: true,
		},
		{
			name:         "dimension mismatch falls back to synthetic vector",
			provider:     &fakeTextEmbedder{vector: constantVector(768, 0.5)},
			text:         "some text",
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &Embedder{provider: tt.provider, dimensions: dimensions}

			result, err := embedder.Embed(context.Background(), tt.text, false)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, result)
				return
			}

			assert.NoError(t, err)
			assert.Len(t, result.Vector, dimensions)
			assert.Equal(t, tt.wantDegraded, result.Degraded)
			if tt.wantDegraded {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestIsDegenerate(t *testing.T) {
	assert.True(t, isDegenerate(constantVector(8, 0)))
	assert.True(t, isDegenerate(constantVector(8, 5e-5)))
	assert.False(t, isDegenerate(constantVector(8, 0.1)))

	mixed := constantVector(8, 0)
	mixed[3] = 0.2
	assert.False(t, isDegenerate(mixed))
}

func TestSyntheticVector(t *testing.T) {
	vector := SyntheticVector(1024)
	assert.Len(t, vector, 1024)
}
