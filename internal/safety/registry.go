package safety

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// TriggerRule is one detection category: a set of lower-case phrases that are
// matched by substring containment, plus the metadata the gate needs.
type TriggerRule struct {
	Category       string   `yaml:"category" json:"category"`
	Patterns       []string `yaml:"patterns" json:"patterns"`
	ResponseCode   string   `yaml:"response_code" json:"response_code"`
	ActionNote     string   `yaml:"action_note" json:"action_note"`
	ReferralTarget *string  `yaml:"referral_target,omitempty" json:"referral_target,omitempty"`
	BlockedTopics  []string `yaml:"blocked_topics,omitempty" json:"blocked_topics,omitempty"`
}

// Tier groups the rules of a single level. Rule order is significant: the
// first registered category that matches wins.
type Tier struct {
	Level Level         `yaml:"level"`
	Rules []TriggerRule `yaml:"rules"`
}

// Registry is the immutable pattern catalogue, evaluated RED, ORANGE, YELLOW.
type Registry struct {
	version string
	tiers   []Tier
}

// registryFile is the on-disk YAML shape
type registryFile struct {
	Version string `yaml:"version"`
	Tiers   []Tier `yaml:"tiers"`
}

// NewRegistry builds a registry from tiers, normalising patterns to lower
// case. Tiers must be given in descending severity.
func NewRegistry(version string, tiers []Tier) (*Registry, error) {
	normalized := make([]Tier, len(tiers))
	for i, tier := range tiers {
		rules := make([]TriggerRule, len(tier.Rules))
		for j, rule := range tier.Rules {
			patterns := make([]string, 0, len(rule.Patterns))
			for _, p := range rule.Patterns {
				p = foldApostrophes(strings.ToLower(strings.TrimSpace(p)))
				if p != "" {
					patterns = append(patterns, p)
				}
			}
			rule.Patterns = patterns
			rule.BlockedTopics = append([]string(nil), rule.BlockedTopics...)
			rule.ReferralTarget = cloneString(rule.ReferralTarget)
			rules[j] = rule
		}
		normalized[i] = Tier{Level: tier.Level, Rules: rules}
	}

	r := &Registry{version: version, tiers: normalized}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRegistry decodes a YAML registry document
func LoadRegistry(reader io.Reader) (*Registry, error) {
	var file registryFile
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return NewRegistry(file.Version, file.Tiers)
}

// LoadRegistryFile reads a YAML registry from disk
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file: %w", err)
	}
	defer f.Close()

	return LoadRegistry(f)
}

// Validate checks the structural invariants of the registry.
func (r *Registry) Validate() error {
	if len(r.tiers) == 0 {
		return fmt.Errorf("registry has no tiers")
	}

	seen := make(map[string]Level)
	prev := LevelRed + 1
	for _, tier := range r.tiers {
		if tier.Level <= LevelGreen || tier.Level > LevelRed {
			return fmt.Errorf("tier level %s cannot carry rules", tier.Level)
		}
		if tier.Level >= prev {
			return fmt.Errorf("tier %s is out of order: tiers must be listed RED, ORANGE, YELLOW", tier.Level)
		}
		prev = tier.Level

		for _, rule := range tier.Rules {
			if rule.Category == "" {
				return fmt.Errorf("%s rule without category", tier.Level)
			}
			if lvl, dup := seen[rule.Category]; dup {
				return fmt.Errorf("category %q registered twice (%s and %s)", rule.Category, lvl, tier.Level)
			}
			seen[rule.Category] = tier.Level

			if len(rule.Patterns) == 0 {
				return fmt.Errorf("category %q has no patterns", rule.Category)
			}
			if tier.Level == LevelRed && rule.ResponseCode == "" {
				return fmt.Errorf("RED category %q has no response code", rule.Category)
			}
		}
	}
	return nil
}

// Version returns the registry's declared version
func (r *Registry) Version() string {
	return r.version
}

// Tiers returns a copy of the tiers in evaluation order
func (r *Registry) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	for i, tier := range r.tiers {
		rules := make([]TriggerRule, len(tier.Rules))
		for j, rule := range tier.Rules {
			rule.Patterns = slices.Clone(rule.Patterns)
			rule.BlockedTopics = slices.Clone(rule.BlockedTopics)
			rule.ReferralTarget = cloneString(rule.ReferralTarget)
			rules[j] = rule
		}
		out[i] = Tier{Level: tier.Level, Rules: rules}
	}
	return out
}

// Rule looks up a rule by category
func (r *Registry) Rule(category string) (TriggerRule, Level, bool) {
	for _, tier := range r.tiers {
		for _, rule := range tier.Rules {
			if rule.Category == category {
				rule.Patterns = slices.Clone(rule.Patterns)
				rule.BlockedTopics = slices.Clone(rule.BlockedTopics)
				rule.ReferralTarget = cloneString(rule.ReferralTarget)
				return rule, tier.Level, true
			}
		}
	}
	return TriggerRule{}, LevelGreen, false
}

// ResponseCodes lists every response code reachable from RED rules
func (r *Registry) ResponseCodes() []string {
	var codes []string
	for _, tier := range r.tiers {
		if tier.Level != LevelRed {
			continue
		}
		for _, rule := range tier.Rules {
			codes = append(codes, rule.ResponseCode)
		}
	}
	return codes
}
