package discover

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/verify"
)

// SystemInstructions frame the discovery query.
const SystemInstructions = `You are a brand portfolio expert. List the brands missing from the known list and the sub-brands of the holding. Answer with the requested JSON object only.`

// BuildPrompt asks for the brands of holding missing from known, and for
// its sub-brands.
func BuildPrompt(holding string, known []string) string {
	return fmt.Sprintf(`Known brands of %s: %s

1. List every missing brand.
2. List every sub-brand (example: MIR Couleur is a sub-brand of MIR).

JSON format:
{
    "marques_manquantes": ["brand1", "brand2"],
    "sous_marques": [
        {"marque_principale": "MIR", "sous_marque": "MIR Couleur"}
    ]
}`, holding, strings.Join(known, ", "))
}

// SubBrandPair is one main brand / sub-brand pair from an answer.
type SubBrandPair struct {
	Main string
	Sub  string
}

// Answer is a parsed discovery answer.
type Answer struct {
	Missing   []string
	SubBrands []SubBrandPair
}

// ParseAnswer extracts the discovery object from message. At least one of
// marques_manquantes or sous_marques must be present. Entries of the wrong
// shape are skipped.
func ParseAnswer(message string) (*Answer, error) {
	obj, err := verify.ExtractJSON(message)
	if err != nil {
		return nil, err
	}

	missing, hasMissing := obj["marques_manquantes"]
	subs, hasSubs := obj["sous_marques"]
	if !hasMissing && !hasSubs {
		return nil, &verify.ExtractionError{
			Kind:   verify.MissingFields,
			Fields: []string{"marques_manquantes", "sous_marques"},
		}
	}

	ans := &Answer{}
	if list, ok := missing.([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				ans.Missing = append(ans.Missing, s)
			}
		}
	} else if hasMissing && missing != nil {
		return nil, &verify.ExtractionError{Kind: verify.MalformedJSON, Err: eris.New("marques_manquantes is not a list")}
	}

	if list, ok := subs.([]any); ok {
		for _, v := range list {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			main, _ := m["marque_principale"].(string)
			sub, _ := m["sous_marque"].(string)
			main, sub = strings.TrimSpace(main), strings.TrimSpace(sub)
			if main == "" || sub == "" {
				continue
			}
			ans.SubBrands = append(ans.SubBrands, SubBrandPair{Main: main, Sub: sub})
		}
	} else if hasSubs && subs != nil {
		return nil, &verify.ExtractionError{Kind: verify.MalformedJSON, Err: eris.New("sous_marques is not a list")}
	}

	ans.Missing = CleanBrands(ans.Missing)
	return ans, nil
}
