package verify

import (
	"encoding/json"
	"strings"
)

// ExtractionKind classifies why an answer could not be turned into a verdict.
type ExtractionKind string

const (
	NoJSONFound   ExtractionKind = "no_json_found"
	MalformedJSON ExtractionKind = "malformed_json"
	MissingFields ExtractionKind = "missing_fields"
)

// ExtractionError reports a rejected answer.
type ExtractionError struct {
	Kind   ExtractionKind
	Fields []string // absent required fields, for MissingFields
	Err    error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case NoJSONFound:
		return "verify: no JSON object found in answer"
	case MissingFields:
		return "verify: missing required fields: " + strings.Join(e.Fields, ", ")
	default:
		if e.Err != nil {
			return "verify: malformed JSON in answer: " + e.Err.Error()
		}
		return "verify: malformed JSON in answer"
	}
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ExtractJSON locates and parses the JSON object embedded in text.
func ExtractJSON(text string) (map[string]any, error) {
	_, obj, err := extractObject(text)
	return obj, err
}

// extractObject returns the raw bytes and decoded form of the embedded object.
func extractObject(text string) ([]byte, map[string]any, error) {
	cleaned := cleanFences(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
		return []byte(cleaned), obj, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	// no opening brace before a closing one
	if start < 0 || end <= start {
		return nil, nil, &ExtractionError{Kind: NoJSONFound}
	}

	span := cleaned[start : end+1]
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, nil, &ExtractionError{Kind: MalformedJSON, Err: err}
	}
	return []byte(span), obj, nil
}

// cleanFences strips markdown code fences.
func cleanFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
