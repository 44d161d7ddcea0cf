// Package perplexica is a client for the Perplexica search API, an
// LLM-backed web search that returns an answer plus the documents it read.
package perplexica

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/resilience"
)

const (
	defaultURL = "http://localhost:3000/api/search"

	// OptimizationSpeed and OptimizationAccuracy are the search depth modes.
	OptimizationSpeed    = "speed"
	OptimizationAccuracy = "accuracy"

	// FocusWebSearch searches the open web.
	FocusWebSearch = "webSearch"
)

// Client runs searches against a Perplexica instance.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// ModelRef names a provider model.
type ModelRef struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// HistoryMessage is one prior turn: a ["human"|"assistant", text] pair.
type HistoryMessage [2]string

// SearchRequest is the request body for POST /api/search.
type SearchRequest struct {
	ChatModel          ModelRef         `json:"chatModel"`
	EmbeddingModel     ModelRef         `json:"embeddingModel"`
	OptimizationMode   string           `json:"optimizationMode"`
	FocusMode          string           `json:"focusMode"`
	Query              string           `json:"query"`
	History            []HistoryMessage `json:"history"`
	SystemInstructions string           `json:"systemInstructions,omitempty"`
	Stream             bool             `json:"stream"`
}

// SearchResponse is the non-streamed response from POST /api/search.
type SearchResponse struct {
	Message string   `json:"message"`
	Sources []Source `json:"sources"`
}

// Source is one retrieved document.
type Source struct {
	PageContent string         `json:"pageContent"`
	Metadata    SourceMetadata `json:"metadata"`
}

// SourceMetadata describes where a document came from.
type SourceMetadata struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithURL overrides the search endpoint.
func WithURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.url = url
		}
	}
}

// WithChatModel sets the default chat model. Empty values are ignored.
func WithChatModel(provider, name string) Option {
	return func(c *httpClient) {
		if provider != "" && name != "" {
			c.chatModel = ModelRef{Provider: provider, Name: name}
		}
	}
}

// WithEmbeddingModel sets the default embedding model. Empty values are ignored.
func WithEmbeddingModel(provider, name string) Option {
	return func(c *httpClient) {
		if provider != "" && name != "" {
			c.embeddingModel = ModelRef{Provider: provider, Name: name}
		}
	}
}

// WithModes sets the default optimization and focus modes. Empty values
// keep the current mode.
func WithModes(optimization, focus string) Option {
	return func(c *httpClient) {
		if optimization != "" {
			c.optimizationMode = optimization
		}
		if focus != "" {
			c.focusMode = focus
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	url              string
	chatModel        ModelRef
	embeddingModel   ModelRef
	optimizationMode string
	focusMode        string
	http             *http.Client
}

// NewClient creates a Perplexica client. Request fields left empty are
// filled from the client defaults.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		url:              defaultURL,
		chatModel:        ModelRef{Provider: "openai", Name: "gpt-4o-mini"},
		embeddingModel:   ModelRef{Provider: "openai", Name: "text-embedding-3-large"},
		optimizationMode: OptimizationSpeed,
		focusMode:        FocusWebSearch,
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.ChatModel == (ModelRef{}) {
		req.ChatModel = c.chatModel
	}
	if req.EmbeddingModel == (ModelRef{}) {
		req.EmbeddingModel = c.embeddingModel
	}
	if req.OptimizationMode == "" {
		req.OptimizationMode = c.optimizationMode
	}
	if req.FocusMode == "" {
		req.FocusMode = c.focusMode
	}
	if req.History == nil {
		req.History = []HistoryMessage{}
	}
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexica: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexica: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexica: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexica: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("perplexica", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "perplexica: unmarshal response")
	}

	return &result, nil
}
