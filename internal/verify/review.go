package verify

import "strings"

// negativePhrases mark explanations that admit a lack of evidence.
var negativePhrases = []string{
	"no information indicating",
	"could not find",
	"no evidence",
	"not found",
	"pas d'information",
	"aucune preuve",
	"aucune information",
	"impossible de trouver",
	"no clear indication",
	"unable to confirm",
	"cannot verify",
	"no confirmation",
	"no documentation",
	"no official source",
	"no reliable source",
	"no definitive answer",
	"no conclusive evidence",
	"no direct evidence",
	"no explicit confirmation",
	"no clear ownership",
	"no clear relationship",
	"no clear connection",
	"no clear association",
	"no clear link",
	"no clear tie",
	"no clear affiliation",
	"no clear partnership",
	"no clear agreement",
	"no clear contract",
	"no clear deal",
	"no clear arrangement",
}

// NeedsManualReview reports whether a human should check the outcome:
// anything short of full confidence, or an explanation admitting missing
// evidence.
func NeedsManualReview(confidence float64, explanation string) bool {
	if confidence < 100 {
		return true
	}
	lower := strings.ToLower(explanation)
	for _, p := range negativePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
