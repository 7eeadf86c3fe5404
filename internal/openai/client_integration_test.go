//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()
	text := "Convocatoria de ayudas para la digitalización de pymes."

	embedding, err := client.GenerateEmbedding(ctx, text)

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Complete_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewChatClient(apiKey, "gpt-4o-mini")
	ctx := context.Background()

	completion, err := client.Complete(ctx, "Responde en una sola frase.", "¿Qué es una convocatoria de subvenciones?")

	require.NoError(t, err)
	assert.NotEmpty(t, completion.Text)
	assert.Greater(t, completion.Confidence, 0.0)
	assert.LessOrEqual(t, completion.Confidence, 1.0)
}
