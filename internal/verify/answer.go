package verify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/pkg/perplexica"
	"github.com/sells-group/brand-verifier/pkg/perplexity"
)

// Query is one question for the search service.
type Query struct {
	Prompt string
	System string
}

// RawAnswer is the unparsed answer text plus the sources the service cited.
type RawAnswer struct {
	Message string
	Sources []model.SourceRef
}

// Answerer answers a query using live web search.
type Answerer interface {
	Answer(ctx context.Context, q Query) (*RawAnswer, error)
}

// AnswererFunc adapts a function to the Answerer interface.
type AnswererFunc func(ctx context.Context, q Query) (*RawAnswer, error)

// Answer calls f.
func (f AnswererFunc) Answer(ctx context.Context, q Query) (*RawAnswer, error) {
	return f(ctx, q)
}

// PerplexicaAnswerer answers through a Perplexica instance.
type PerplexicaAnswerer struct {
	client perplexica.Client
}

// NewPerplexicaAnswerer wraps a Perplexica client.
func NewPerplexicaAnswerer(client perplexica.Client) *PerplexicaAnswerer {
	return &PerplexicaAnswerer{client: client}
}

// Answer runs one search.
func (a *PerplexicaAnswerer) Answer(ctx context.Context, q Query) (*RawAnswer, error) {
	resp, err := a.client.Search(ctx, perplexica.SearchRequest{
		Query:              q.Prompt,
		SystemInstructions: q.System,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, eris.New("perplexica: empty response")
	}

	out := &RawAnswer{Message: resp.Message}
	for _, s := range resp.Sources {
		content := s.Metadata.Content
		if content == "" {
			content = s.PageContent
		}
		out.Sources = append(out.Sources, model.StructuredSource(s.Metadata.URL, s.Metadata.Title, content))
	}
	return out, nil
}

// PerplexityAnswerer answers through the Perplexity chat completions API.
type PerplexityAnswerer struct {
	client perplexity.Client
}

// NewPerplexityAnswerer wraps a Perplexity client.
func NewPerplexityAnswerer(client perplexity.Client) *PerplexityAnswerer {
	return &PerplexityAnswerer{client: client}
}

// Answer runs one chat completion. Search results become structured
// sources; citations without a matching search result become bare ones.
func (a *PerplexityAnswerer) Answer(ctx context.Context, q Query) (*RawAnswer, error) {
	var msgs []perplexity.Message
	if q.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: q.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: q.Prompt})

	resp, err := a.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{Messages: msgs})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, eris.New("perplexity: response has no choices")
	}

	out := &RawAnswer{Message: resp.Content()}
	seen := make(map[string]bool, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		seen[r.URL] = true
		out.Sources = append(out.Sources, model.StructuredSource(r.URL, r.Title, ""))
	}
	for _, c := range resp.Citations {
		if !seen[c] {
			out.Sources = append(out.Sources, model.BareSource(c))
		}
	}
	return out, nil
}
