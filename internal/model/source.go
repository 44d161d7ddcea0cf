package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// SourceKind discriminates the two SourceRef shapes.
type SourceKind string

const (
	SourceBare       SourceKind = "bare"
	SourceStructured SourceKind = "structured"
)

// SourceRef is a citation: either bare text (usually a URL) or a structured
// record with URL, title and a content snippet.
type SourceRef struct {
	Kind    SourceKind
	Text    string
	URL     string
	Title   string
	Content string
}

// NormalizedSource is the uniform view of a SourceRef used for scoring.
type NormalizedSource struct {
	URL     string
	Title   string
	Content string
}

// BareSource creates a bare citation.
func BareSource(text string) SourceRef {
	return SourceRef{Kind: SourceBare, Text: text}
}

// StructuredSource creates a structured citation.
func StructuredSource(url, title, content string) SourceRef {
	return SourceRef{Kind: SourceStructured, URL: url, Title: title, Content: content}
}

// Normalize lowercases every field. Bare text is treated as the URL.
func (s SourceRef) Normalize() NormalizedSource {
	if s.Kind == SourceStructured {
		return NormalizedSource{
			URL:     strings.ToLower(s.URL),
			Title:   strings.ToLower(s.Title),
			Content: strings.ToLower(s.Content),
		}
	}
	return NormalizedSource{URL: strings.ToLower(s.Text)}
}

// Format renders the citation for the output table.
func (s SourceRef) Format() string {
	if s.Kind != SourceStructured {
		return s.Text
	}
	title := s.Title
	if title == "" {
		title = "No title"
	}
	url := s.URL
	if url == "" {
		url = "No URL"
	}
	return title + " - " + url
}

// FormatSources joins formatted citations with " | ".
func FormatSources(sources []SourceRef) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if f := s.Format(); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " | ")
}

type structuredJSON struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// MarshalJSON writes bare sources as strings and structured ones as objects.
func (s SourceRef) MarshalJSON() ([]byte, error) {
	if s.Kind == SourceStructured {
		return json.Marshal(structuredJSON{URL: s.URL, Title: s.Title, Content: s.Content})
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON accepts a string, a flat {url,title,content} object, or a
// search document {pageContent, metadata:{url,title}}.
func (s *SourceRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = SourceRef{Kind: SourceBare}
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return eris.Wrap(err, "source: unmarshal text")
		}
		*s = BareSource(text)
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "source: unmarshal object")
	}
	*s = SourceFromMap(raw)
	return nil
}

// SourceFromAny converts a decoded JSON value into a SourceRef.
func SourceFromAny(v any) SourceRef {
	switch t := v.(type) {
	case string:
		return BareSource(t)
	case map[string]any:
		return SourceFromMap(t)
	case nil:
		return BareSource("")
	default:
		return BareSource(fmt.Sprint(t))
	}
}

// SourceFromMap converts a decoded JSON object into a structured SourceRef.
func SourceFromMap(m map[string]any) SourceRef {
	src := StructuredSource(
		firstString(m, "url", "link", "href"),
		firstString(m, "title", "name"),
		firstString(m, "content", "content_snippet", "snippet", "pageContent"),
	)
	if meta, ok := m["metadata"].(map[string]any); ok {
		if src.URL == "" {
			src.URL = firstString(meta, "url", "link")
		}
		if src.Title == "" {
			src.Title = firstString(meta, "title")
		}
		if src.Content == "" {
			src.Content = firstString(meta, "content", "snippet")
		}
	}
	return src
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// MergeSources concatenates source lists, dropping empty citations and
// repeats of an earlier citation with the same normalized URL and title.
func MergeSources(lists ...[]SourceRef) []SourceRef {
	var out []SourceRef
	seen := make(map[NormalizedSource]bool)
	for _, list := range lists {
		for _, s := range list {
			n := s.Normalize()
			if n.URL == "" && n.Title == "" && n.Content == "" {
				continue
			}
			key := NormalizedSource{URL: n.URL, Title: n.Title}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
