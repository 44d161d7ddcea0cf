// Package scorer derives a 0-100 trust score for an ownership verdict from
// the metadata of the sources that back it.
package scorer

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// BaseSource selects where the base component of the score comes from.
type BaseSource string

const (
	// BaseFromOwnership uses BaseOwned / BaseNotOwned depending on the verdict.
	BaseFromOwnership BaseSource = "ownership"
	// BaseFromRemote uses the answer's own confidence, falling back to
	// ownership when the answer did not supply one.
	BaseFromRemote BaseSource = "remote"
)

// Preset names.
const (
	PresetOwnership   = "ownership"
	PresetRemotePrior = "remote-prior"
)

// Weights are the linear blend applied to base, quality and recency.
type Weights struct {
	Base    float64 `yaml:"base"`
	Quality float64 `yaml:"quality"`
	Recency float64 `yaml:"recency"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Base + w.Quality + w.Recency
}

// Adjustment is one multiplicative bonus or malus. Every condition that is
// set must hold for the factor to apply.
type Adjustment struct {
	Name            string   `yaml:"name"`
	Factor          float64  `yaml:"factor"`
	MinOfficial     int      `yaml:"min_official"`
	MinQuality      float64  `yaml:"min_quality"`
	OwnershipChain  bool     `yaml:"ownership_chain"`
	NoRecentSources bool     `yaml:"no_recent_sources"`
	ExplanationAny  []string `yaml:"explanation_any"`
}

// Config fully describes one scoring variant.
type Config struct {
	Name              string       `yaml:"name"`
	OfficialDomains   []string     `yaml:"official_domains"`
	RecentYears       []string     `yaml:"recent_years"`
	OwnershipKeywords []string     `yaml:"ownership_keywords"`
	Weights           Weights      `yaml:"weights"`
	BaseSource        BaseSource   `yaml:"base_source"`
	BaseOwned         float64      `yaml:"base_owned"`
	BaseNotOwned      float64      `yaml:"base_not_owned"`
	ShortCircuit      bool         `yaml:"short_circuit"`
	Adjustments       []Adjustment `yaml:"adjustments"`
}

// DefaultOfficialDomains is the allow-list of substrings marking a source
// as official. Matching is case-insensitive over URL, title and content.
var DefaultOfficialDomains = []string{
	".com", ".org", ".gov", ".edu",
	"annualreport", "financial", "press-release",
	"investor", "corporate", "official",
	"generalmills", "sec.gov", "businesswire",
	"autoritedelaconcurrence", "inpi.fr",
	"marques.inpi.fr", "data.inpi.fr",
	"henkel.com", "henkel.fr",
	"marques.ic.gc.ca", "tmdn.org",
	"euipo.europa.eu", "wipo.int",
}

// DefaultOwnershipKeywords signal a documented ownership chain in source content.
var DefaultOwnershipKeywords = []string{"subsidiary", "owned by", "acquisition"}

// RecentYearsFrom returns the year of now and the two years before it.
func RecentYearsFrom(now time.Time) []string {
	y := now.Year()
	return []string{strconv.Itoa(y - 2), strconv.Itoa(y - 1), strconv.Itoa(y)}
}

// OwnershipPreset is the variant used by the sequential run: the base
// follows the verdict and the adjustments reward ownership evidence.
func OwnershipPreset() Config {
	return Config{
		Name:              PresetOwnership,
		OfficialDomains:   DefaultOfficialDomains,
		RecentYears:       RecentYearsFrom(time.Now()),
		OwnershipKeywords: DefaultOwnershipKeywords,
		Weights:           Weights{Base: 0.4, Quality: 0.4, Recency: 0.2},
		BaseSource:        BaseFromOwnership,
		BaseOwned:         80,
		BaseNotOwned:      20,
		ShortCircuit:      true,
		Adjustments: []Adjustment{
			{Name: "multiple_official", Factor: 1.2, MinOfficial: 2},
			{Name: "ownership_chain", Factor: 1.15, OwnershipChain: true},
			{Name: "stale_sale", Factor: 0.7, NoRecentSources: true, ExplanationAny: []string{"sold"}},
		},
	}
}

// RemotePriorPreset is the variant used by the parallel run: the remote
// confidence is the base and the adjustments reward official corroboration.
func RemotePriorPreset() Config {
	return Config{
		Name:              PresetRemotePrior,
		OfficialDomains:   DefaultOfficialDomains,
		RecentYears:       RecentYearsFrom(time.Now()),
		OwnershipKeywords: DefaultOwnershipKeywords,
		Weights:           Weights{Base: 0.5, Quality: 0.3, Recency: 0.2},
		BaseSource:        BaseFromRemote,
		BaseOwned:         80,
		BaseNotOwned:      20,
		ShortCircuit:      true,
		Adjustments: []Adjustment{
			{Name: "reliable_official", Factor: 1.2, MinOfficial: 2, MinQuality: 80},
			{Name: "documented_acquisition", Factor: 1.1, MinOfficial: 2, ExplanationAny: []string{"acquisition"}},
			{Name: "corroborated", Factor: 1.15, MinOfficial: 3},
		},
	}
}

// Presets returns the built-in presets keyed by name.
func Presets() map[string]Config {
	return map[string]Config{
		PresetOwnership:   OwnershipPreset(),
		PresetRemotePrior: RemotePriorPreset(),
	}
}

// presetFile is the on-disk layout of a presets override file.
type presetFile struct {
	Presets map[string]Config `yaml:"presets"`
}

// LoadPresets parses a YAML presets file and merges it over the built-ins.
// Unset list fields inherit from the ownership preset.
func LoadPresets(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read presets %s", path)
	}
	return ParsePresets(data)
}

// ParsePresets is LoadPresets on in-memory YAML.
func ParsePresets(data []byte) (map[string]Config, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "scorer: parse presets yaml")
	}

	out := Presets()
	for name, cfg := range f.Presets {
		cfg.Name = name
		cfg = applyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			return nil, eris.Wrapf(err, "scorer: preset %q", name)
		}
		out[name] = cfg
	}
	return out, nil
}

// Resolve picks a preset by name from presets, defaulting to ownership.
func Resolve(presets map[string]Config, name string) (Config, error) {
	if name == "" {
		name = PresetOwnership
	}
	cfg, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return Config{}, eris.Errorf("scorer: unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	def := OwnershipPreset()
	if len(cfg.OfficialDomains) == 0 {
		cfg.OfficialDomains = def.OfficialDomains
	}
	if len(cfg.RecentYears) == 0 {
		cfg.RecentYears = def.RecentYears
	}
	if len(cfg.OwnershipKeywords) == 0 {
		cfg.OwnershipKeywords = def.OwnershipKeywords
	}
	if cfg.BaseSource == "" {
		cfg.BaseSource = BaseFromOwnership
	}
	if cfg.BaseOwned == 0 && cfg.BaseNotOwned == 0 {
		cfg.BaseOwned, cfg.BaseNotOwned = def.BaseOwned, def.BaseNotOwned
	}
	return cfg
}

// Validate checks that a Config is internally consistent.
func Validate(c Config) error {
	var errs []string

	if c.Weights.Base < 0 || c.Weights.Quality < 0 || c.Weights.Recency < 0 {
		errs = append(errs, "weights must be >= 0")
	}
	if math.Abs(c.Weights.Sum()-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", c.Weights.Sum()))
	}

	switch c.BaseSource {
	case BaseFromOwnership, BaseFromRemote:
	default:
		errs = append(errs, fmt.Sprintf("unknown base_source %q", c.BaseSource))
	}

	if c.BaseOwned < 0 || c.BaseOwned > 100 || c.BaseNotOwned < 0 || c.BaseNotOwned > 100 {
		errs = append(errs, "base scores must be between 0 and 100")
	}

	for i, a := range c.Adjustments {
		if a.Factor <= 0 {
			errs = append(errs, fmt.Sprintf("adjustments[%d] factor must be > 0", i))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
