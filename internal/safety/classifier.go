package safety

import (
	"slices"
	"strings"
)

// Classification is the outcome of classifying one message. It carries only
// rule identifiers, never message text, so it can be audited as-is.
type Classification struct {
	Level           Level    `json:"level"`
	TriggerCategory string   `json:"trigger_category,omitempty"`
	ResponseCode    string   `json:"response_code,omitempty"`
	ReferralTarget  *string  `json:"referral_target,omitempty"`
	BlockedTopics   []string `json:"blocked_topics,omitempty"`
}

// Classifier runs messages against a registry in priority order.
type Classifier struct {
	registry *Registry
}

// NewClassifier creates a classifier over the given registry
func NewClassifier(registry *Registry) *Classifier {
	return &Classifier{registry: registry}
}

// typographic apostrophes are folded so "can’t" matches "can't"
var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// foldApostrophes normalises message text, model output and patterns alike
func foldApostrophes(s string) string {
	return apostropheReplacer.Replace(s)
}

// Classify returns the highest-severity match. A RED match returns
// immediately without evaluating lower tiers; within a tier the first
// registered category wins. No match is GREEN.
func (c *Classifier) Classify(message string) Classification {
	if message == "" {
		return Classification{Level: LevelGreen}
	}

	lower := foldApostrophes(strings.ToLower(message))

	for _, tier := range c.registry.tiers {
		for _, rule := range tier.Rules {
			if matchesAny(lower, rule.Patterns) {
				// copies keep callers from reaching into the shared registry
				return Classification{
					Level:           tier.Level,
					TriggerCategory: rule.Category,
					ResponseCode:    rule.ResponseCode,
					ReferralTarget:  cloneString(rule.ReferralTarget),
					BlockedTopics:   slices.Clone(rule.BlockedTopics),
				}
			}
		}
	}

	return Classification{Level: LevelGreen}
}

func matchesAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
