package verify

import (
	"fmt"
	"strings"

	"github.com/sells-group/brand-verifier/internal/model"
)

// SystemInstructions steer the search model toward official sources and
// strict JSON output.
const SystemInstructions = `You are an expert in brand ownership verification. Your task is to determine whether a brand belongs to a specific company.
Follow these strict rules:
1. Use ONLY official and reliable sources.
2. NEVER use Wikipedia or other collaborative content.
3. Check the companies' official websites first.
4. Look for acquisition announcements.
5. Cross-check across several reliable sources.
6. Check indirect ownership through subsidiaries or parent companies.
7. Write every explanation in French.
8. Include geographic zones and relationship details.
Return a JSON object with the required fields and nothing else.`

// contextLabels maps optional input columns to their prompt labels.
var contextLabels = map[string]string{
	model.ContextProductCategory: "Product category",
	model.ContextSubCategory:     "Sub-category",
	model.ContextBusinessUnit:    "Business unit",
}

// BuildPrompt renders the verification question for req.
func BuildPrompt(req model.VerificationRequest) string {
	brand, holding := req.Brand, req.Holding

	var b strings.Builder
	fmt.Fprintf(&b, "Please provide factual information about the brand '%s' and its relationship with '%s'.\n", brand, holding)

	var ctx []string
	for _, col := range model.ContextColumns {
		if v := req.Context[col]; v != "" {
			ctx = append(ctx, fmt.Sprintf("%s: %s", contextLabels[col], v))
		}
	}
	if len(ctx) > 0 {
		b.WriteString("Context information:\n")
		b.WriteString(strings.Join(ctx, "\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `
Focus on verifiable facts and include specific details about:

1. Direct and indirect ownership:
- Is %[1]s directly owned by %[2]s?
- If not, is it owned by a subsidiary or brand owned by %[2]s?
- What is the complete ownership chain (e.g., Brand -> Subsidiary -> %[2]s)?
- When did each ownership relationship begin?
- If %[1]s belongs to another brand that itself belongs to %[2]s, state this in the explanation and set belongs_to to true.

2. Recent changes:
- Have there been any ownership changes in the last 2 years?
- If the brand has been sold or transferred, when did this occur?
- If the brand is not owned by %[2]s, does %[2]s hold distribution rights or a license, and where?

3. Market presence:
- In which geographic zones is the brand active?

Cite specific sources: official company websites, trademark registries, annual reports, press releases, official announcements.
If you cannot find verifiable information about the relationship between %[1]s and %[2]s, say so clearly.

Format your response as JSON with the following fields:
{
    "belongs_to": true/false,
    "confidence": number between 0 and 100,
    "explanation": "Explanation in French",
    "sources": ["list of sources"],
    "type_relation": "Type of relationship (direct ownership, distribution, license, none)",
    "zones_geographiques": "Geographic zones where the brand is active",
    "date_changement": "Date of the last ownership or license change, if any",
    "details_relation": "Details about the relationship (dates, conditions)"
}

IMPORTANT: All explanations must be in French.`, brand, holding)

	return b.String()
}
