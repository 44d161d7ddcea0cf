package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/model"
	"github.com/sells-group/brand-verifier/pkg/registry"
)

// RegistryCheck looks for a trademark registration of the brand held by the
// holding or one of its legal units.
type RegistryCheck struct {
	client registry.Client
}

// NewRegistryCheck creates a RegistryCheck.
func NewRegistryCheck(client registry.Client) *RegistryCheck {
	return &RegistryCheck{client: client}
}

// Sources returns one structured source per matching registration. Lookup
// failures are logged and yield no sources.
func (r *RegistryCheck) Sources(ctx context.Context, req model.VerificationRequest) []model.SourceRef {
	log := zap.L().With(zap.String("brand", req.Brand), zap.String("holding", req.Holding))

	marks, err := r.client.Trademarks(ctx, req.Brand)
	if err != nil {
		log.Warn("verify: trademark lookup failed", zap.Error(err))
		return nil
	}
	if len(marks) == 0 {
		return nil
	}

	names := []string{strings.ToLower(req.Holding)}
	if r.client.HasSirene() {
		units, err := r.client.LegalUnits(ctx, req.Holding)
		if err != nil {
			log.Warn("verify: legal unit lookup failed", zap.Error(err))
		}
		for _, u := range units {
			names = append(names, strings.ToLower(u.Name))
		}
	}

	var sources []model.SourceRef
	seen := make(map[string]bool)
	for _, m := range marks {
		holder := strings.ToLower(m.Holder)
		if seen[holder] || !containsName(holder, names) {
			continue
		}
		seen[holder] = true
		sources = append(sources, model.StructuredSource(
			m.URL,
			fmt.Sprintf("WIPO Global Brand Database: %s", m.Holder),
			fmt.Sprintf("Trademark %s is registered to %s.", req.Brand, m.Holder),
		))
	}
	log.Debug("verify: registry lookup", zap.Int("trademarks", len(marks)), zap.Int("matches", len(sources)))
	return sources
}

func containsName(holder string, names []string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(holder, n) {
			return true
		}
	}
	return false
}
