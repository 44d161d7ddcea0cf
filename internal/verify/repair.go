package verify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/pkg/anthropic"
)

// Repairer restructures an answer whose JSON could not be extracted.
type Repairer interface {
	Repair(ctx context.Context, req model.VerificationRequest, message string) (string, error)
}

// repairInstructions is identical for every call and sent as a cached
// system block.
const repairInstructions = `You receive a research answer about whether a brand belongs to a company.
Rewrite it as a single JSON object with exactly these fields and no other text:
{"belongs_to": boolean, "confidence": number 0-100 or null, "explanation": string in French, "sources": array of URLs, "type_relation": string, "zones_geographiques": string, "date_changement": string or null, "details_relation": string}
Use only facts stated in the text. If the text does not say whether the brand belongs to the company, set belongs_to to false.`

const repairQuestion = `Brand: %s
Company: %s

Text:
%s`

// AnthropicRepairer repairs answers with a small Claude model.
type AnthropicRepairer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicRepairer creates a repairer using model.
func NewAnthropicRepairer(client anthropic.Client, model string) *AnthropicRepairer {
	return &AnthropicRepairer{client: client, model: model}
}

// Repair asks the model to restate message as a verdict object.
func (r *AnthropicRepairer) Repair(ctx context.Context, req model.VerificationRequest, message string) (string, error) {
	if message == "" {
		return "", eris.New("verify: nothing to repair")
	}
	temp := 0.0
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   1024,
		Temperature: &temp,
		System: []anthropic.SystemBlock{
			{Text: repairInstructions, CacheControl: &anthropic.CacheControl{TTL: "1h"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(repairQuestion, req.Brand, req.Holding, message)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "verify: repair answer")
	}
	resp.Usage.LogCost(r.model, "repair")
	return resp.Text(), nil
}
