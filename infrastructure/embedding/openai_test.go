package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data []embeddingDatum `json:"data"`
}

// newTestServer serves /embeddings, capturing requests and answering with
// vectors whose first component encodes the input index.
func newTestServer(t *testing.T, dimension int, shuffle bool) (*httptest.Server, *[]embeddingRequest) {
	t.Helper()
	var requests []embeddingRequest

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		resp := embeddingResponse{}
		for i := range req.Input {
			vec := make([]float32, dimension)
			vec[0] = float32(i)
			resp.Data = append(resp.Data, embeddingDatum{Index: i, Embedding: vec})
		}
		if shuffle && len(resp.Data) > 1 {
			resp.Data[0], resp.Data[1] = resp.Data[1], resp.Data[0]
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(t *testing.T, baseURL string, dimension int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:       baseURL,
		Model:         "test-e5",
		Dimension:     dimension,
		QueryPrefix:   "query: ",
		PassagePrefix: "passage: ",
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURLAndModel(t *testing.T) {
	_, err := NewClient(Config{Model: "m"}, zap.NewNop())
	require.Error(t, err, "base URL is mandatory")

	_, err = NewClient(Config{BaseURL: "http://localhost:9999"}, zap.NewNop())
	require.Error(t, err, "model is mandatory")
}

func TestEmbedQuery_PrependsQueryMarker(t *testing.T) {
	// Given a server that records requests
	srv, requests := newTestServer(t, 4, false)
	client := newTestClient(t, srv.URL, 4)

	// When embedding a query
	vec, err := client.EmbedQuery(context.Background(), "When do admissions open?")

	// Then the query marker is prepended before encoding
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	require.Len(t, *requests, 1)
	assert.Equal(t, []string{"query: When do admissions open?"}, (*requests)[0].Input)
}

func TestEmbedPassages_PrependsPassageMarkerAndKeepsOrder(t *testing.T) {
	// Given a server that returns embeddings out of order
	srv, requests := newTestServer(t, 4, true)
	client := newTestClient(t, srv.URL, 4)

	// When embedding two passages
	vectors, err := client.EmbedPassages(context.Background(), []string{"first text", "second text"})

	// Then markers are prepended and the index field restores input order
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []string{"passage: first text", "passage: second text"}, (*requests)[0].Input)
	assert.Equal(t, float32(0), vectors[0][0], "first vector must match first input despite shuffled response")
	assert.Equal(t, float32(1), vectors[1][0], "second vector must match second input despite shuffled response")
}

func TestEmbedPassages_EmptyInput(t *testing.T) {
	srv, requests := newTestServer(t, 4, false)
	client := newTestClient(t, srv.URL, 4)

	vectors, err := client.EmbedPassages(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, *requests, "no request should be made for empty input")
}

func TestEmbed_RejectsDimensionMismatch(t *testing.T) {
	// Given a server returning 4-dimensional vectors
	srv, _ := newTestServer(t, 4, false)
	// And a client expecting 768
	client := newTestClient(t, srv.URL, 768)

	_, err := client.EmbedQuery(context.Background(), "question")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}
