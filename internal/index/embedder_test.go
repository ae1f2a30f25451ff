package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "nomic-embed-text")
	require.Error(t, err)

	_, err = NewOpenAIEmbedder("http://localhost:11434/v1", "", "")
	require.Error(t, err)
}

func TestEmbed_PlacesVectorsByIndex(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		// Respond out of order: callers must place vectors by index.
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0.4, 0.5}},
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2}},
			},
			"model": "nomic-embed-text",
		})
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "", "nomic-embed-text")
	require.NoError(t, err)

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.4, 0.5}, vectors[1])
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1}},
			},
			"model": "nomic-embed-text",
		})
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "", "nomic-embed-text")
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), []string{"first", "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestEmbed_EmptyInputIsNoop(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("http://localhost:11434/v1", "", "nomic-embed-text")
	require.NoError(t, err)

	vectors, err := embedder.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
