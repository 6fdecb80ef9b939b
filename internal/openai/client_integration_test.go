//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	embedder := NewEmbedder(Config{APIKey: apiKey})
	ctx := context.Background()

	vectors, err := embedder.Embed(ctx, []string{
		"This is a test document for generating embeddings.",
		"A second passage about something else.",
	})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], DefaultEmbeddingDimensions)
	assert.Len(t, vectors[1], DefaultEmbeddingDimensions)
}

func TestIntegration_TokenCounter_RealEncoding(t *testing.T) {
	counter := NewTokenCounter()

	assert.Greater(t, counter.CountTokens("hello world, this is a token count"), 0)
}
