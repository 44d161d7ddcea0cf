package perplexica

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-verifier/internal/resilience"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantSources   int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"message": "{\"belongs_to\": true, \"explanation\": \"Persil appartient à Henkel\"}",
				"sources": [
					{"pageContent": "Persil is a brand owned by Henkel", "metadata": {"title": "Henkel brands", "url": "https://www.henkel.com/brands"}},
					{"pageContent": "", "metadata": {"title": "INPI", "url": "https://data.inpi.fr/marques/1"}}
				]
			}`,
			wantSources: 2,
		},
		{
			name:          "overloaded",
			status:        http.StatusServiceUnavailable,
			body:          `upstream unavailable`,
			wantErr:       "unexpected status 503",
			wantTransient: true,
		},
		{
			name:    "bad_request",
			status:  http.StatusBadRequest,
			body:    `{"message":"Missing focus mode or query"}`,
			wantErr: "Missing focus mode",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/search", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(WithURL(srv.URL + "/api/search"))
			resp, err := client.Search(context.Background(), SearchRequest{Query: "Persil Henkel"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Contains(t, resp.Message, "belongs_to")
			require.Len(t, resp.Sources, tt.wantSources)
			assert.Equal(t, "https://www.henkel.com/brands", resp.Sources[0].Metadata.URL)
			assert.Equal(t, "Persil is a brand owned by Henkel", resp.Sources[0].PageContent)
		})
	}
}

func TestSearch_RequestDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.Equal(t, map[string]any{"provider": "openai", "name": "gpt-4o-mini"}, raw["chatModel"])
		assert.Equal(t, map[string]any{"provider": "openai", "name": "text-embedding-3-large"}, raw["embeddingModel"])
		assert.Equal(t, "speed", raw["optimizationMode"])
		assert.Equal(t, "webSearch", raw["focusMode"])
		assert.Equal(t, []any{}, raw["history"])
		assert.Equal(t, false, raw["stream"])
		assert.Equal(t, "Answer in JSON", raw["systemInstructions"])

		_, _ = w.Write([]byte(`{"message":"ok","sources":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithURL(srv.URL)).Search(context.Background(), SearchRequest{
		Query:              "q",
		SystemInstructions: "Answer in JSON",
		Stream:             true,
	})
	require.NoError(t, err)
}

func TestSearch_OptionsOverrideDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelRef{Provider: "ollama", Name: "llama3"}, req.ChatModel)
		assert.Equal(t, ModelRef{Provider: "ollama", Name: "nomic"}, req.EmbeddingModel)
		assert.Equal(t, OptimizationAccuracy, req.OptimizationMode)
		assert.Equal(t, "academicSearch", req.FocusMode)
		_, _ = w.Write([]byte(`{"message":"ok","sources":[]}`))
	}))
	defer srv.Close()

	client := NewClient(
		WithURL(srv.URL),
		WithChatModel("ollama", "llama3"),
		WithEmbeddingModel("ollama", "nomic"),
		WithModes(OptimizationAccuracy, "academicSearch"),
	)
	_, err := client.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
}

func TestSearch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(WithURL(srv.URL)).Search(ctx, SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	hc := NewClient().(*httpClient)
	assert.Equal(t, defaultURL, hc.url)
	assert.Equal(t, OptimizationSpeed, hc.optimizationMode)
	assert.Equal(t, FocusWebSearch, hc.focusMode)
	assert.NotNil(t, hc.http)

	custom := &http.Client{}
	hc = NewClient(WithHTTPClient(custom)).(*httpClient)
	assert.Equal(t, custom, hc.http)
}

func TestNewClient_EmptyOptionsKeepDefaults(t *testing.T) {
	hc := NewClient(WithURL(""), WithChatModel("", ""), WithEmbeddingModel("openai", ""), WithModes("", "")).(*httpClient)
	assert.Equal(t, defaultURL, hc.url)
	assert.Equal(t, OptimizationSpeed, hc.optimizationMode)
	assert.Equal(t, FocusWebSearch, hc.focusMode)
	assert.NotEmpty(t, hc.chatModel.Name)
	assert.NotEmpty(t, hc.embeddingModel.Name)
}
