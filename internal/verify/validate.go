package verify

import (
	"github.com/kaptinlin/jsonschema"
	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/model"
)

// verdictSchema type-checks the fields an answer may carry. Presence of the
// required fields is checked separately so the missing ones can be named.
const verdictSchema = `{
  "type": "object",
  "properties": {
    "belongs_to": {"type": "boolean"},
    "explanation": {"type": "string"},
    "confidence": {"type": ["number", "string", "null"]},
    "sources": {"type": ["array", "string", "null"]},
    "type_relation": {"type": ["string", "null"]},
    "zones_geographiques": {"type": ["string", "array", "null"]},
    "date_changement": {"type": ["string", "number", "null"]},
    "details_relation": {"type": ["string", "null"]}
  }
}`

// Validator checks that an extracted answer carries a usable verdict.
type Validator struct {
	required []string
	schema   *jsonschema.Schema
}

// NewValidator builds a validator. belongs_to and explanation are always
// required; confidence is required too when requireConfidence is set.
func NewValidator(requireConfidence bool) (*Validator, error) {
	schema, err := jsonschema.NewCompiler().Compile([]byte(verdictSchema))
	if err != nil {
		return nil, eris.Wrap(err, "verify: compile verdict schema")
	}
	required := []string{model.FieldBelongsTo, model.FieldExplanation}
	if requireConfidence {
		required = append(required, model.FieldConfidence)
	}
	return &Validator{required: required, schema: schema}, nil
}

// Parse extracts, validates and converts an answer message.
func (v *Validator) Parse(message string) (model.Verdict, error) {
	raw, obj, err := extractObject(message)
	if err != nil {
		return model.Verdict{}, err
	}
	if err := v.check(raw, obj); err != nil {
		return model.Verdict{}, err
	}
	return model.VerdictFromMap(obj), nil
}

func (v *Validator) check(raw []byte, obj map[string]any) error {
	var missing []string
	for _, f := range v.required {
		if val, ok := obj[f]; !ok || val == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ExtractionError{Kind: MissingFields, Fields: missing}
	}

	result := v.schema.ValidateJSON(raw)
	if !result.IsValid() {
		return &ExtractionError{Kind: MalformedJSON, Err: eris.Errorf("schema validation failed: %v", result.Errors)}
	}
	return nil
}
