package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurukulapp/heavenly-trial/internal/question"
)

func quizResponse(n int) generatorResponse {
	resp := generatorResponse{}
	for i := 0; i < n; i++ {
		resp.Quiz = append(resp.Quiz, generatedQuestion{
			Question: "What is the capital of France?",
			Options:  []string{"Paris", "Lyon", "Nice", "Lille"},
			Answer:   "Paris",
		})
	}
	return resp
}

func TestGenerateSuccess(t *testing.T) {
	var gotReq generatorRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(quizResponse(5))
	}))
	defer srv.Close()

	g := NewGenerator(Config{GeneratorURL: srv.URL, GeneratorKey: "test-key"}, zerolog.Nop())
	qs, err := g.Generate(context.Background(), "Geography", 5, "medium")
	require.NoError(t, err)

	assert.Len(t, qs, 5)
	assert.Equal(t, "Paris", qs[0].Answer)
	assert.Equal(t, "Geography", gotReq.Topic)
	assert.Equal(t, 5, gotReq.Count)
	assert.Equal(t, "medium", gotReq.Difficulty)
}

func TestGenerateUpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGenerator(Config{GeneratorURL: srv.URL}, zerolog.Nop())
	_, err := g.Generate(context.Background(), "Geography", 5, "medium")

	var genErr *question.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "503")
}

func TestGenerateMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quiz": "not an array"`))
	}))
	defer srv.Close()

	g := NewGenerator(Config{GeneratorURL: srv.URL}, zerolog.Nop())
	_, err := g.Generate(context.Background(), "Geography", 5, "medium")

	var genErr *question.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateShortPackRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(quizResponse(3))
	}))
	defer srv.Close()

	g := NewGenerator(Config{GeneratorURL: srv.URL}, zerolog.Nop())
	_, err := g.Generate(context.Background(), "Geography", 5, "medium")

	var genErr *question.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateUnreachable(t *testing.T) {
	g := NewGenerator(Config{GeneratorURL: "http://127.0.0.1:1"}, zerolog.Nop())
	_, err := g.Generate(context.Background(), "Geography", 5, "medium")

	var genErr *question.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "generator unreachable", genErr.Reason)
}

func TestGenerateWithoutEndpointConfigured(t *testing.T) {
	g := NewGenerator(Config{}, zerolog.Nop())
	_, err := g.Generate(context.Background(), "Geography", 5, "medium")

	var genErr *question.GenerationError
	assert.ErrorAs(t, err, &genErr)
}
