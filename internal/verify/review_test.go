package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsManualReview(t *testing.T) {
	tests := []struct {
		name        string
		confidence  float64
		explanation string
		want        bool
	}{
		{"full confidence, clear explanation", 100, "Persil est une marque du groupe Henkel", false},
		{"below full confidence", 99.9, "Persil est une marque du groupe Henkel", true},
		{"negative english phrase", 100, "We could NOT FIND any filing", true},
		{"negative french phrase", 100, "Aucune preuve d'un lien direct", true},
		{"no clear link", 100, "There is no clear link between the two", true},
		{"zero", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsManualReview(tt.confidence, tt.explanation))
		})
	}
}
