package safety

import (
	"strings"
	"testing"
)

func TestClassifyLevels(t *testing.T) {
	classifier := NewClassifier(DefaultRegistry())

	tests := []struct {
		name     string
		message  string
		level    Level
		category string
	}{
		{"empty message", "", LevelGreen, ""},
		{"greeting", "Good morning, we went for a walk in the park today.", LevelGreen, ""},
		{"bath refusal", "They keep refusing their bath", LevelYellow, "behavioralSymptoms"},
		{"self harm", "I can't go on, I want to die", LevelRed, "selfHarm"},
		{"curly apostrophe", "I can’t go on anymore", LevelRed, "selfHarm"},
		{"upper case", "SHE WANDERED OFF AND I CAN'T FIND HER", LevelRed, "missingPerson"},
		{"missed dose", "Mom missed a dose this morning, what now?", LevelOrange, "medicationConfusion"},
		{"diagnosis request", "Is it dementia or just normal aging?", LevelOrange, "diagnosisRequest"},
		{"same tier first registered wins", "I'm stressed and can't sleep", LevelYellow, "sleepDisturbance"},
		{"substring inside word", "Our routine is going well", LevelGreen, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifier.Classify(tt.message)
			if c.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, c.Level)
			}
			if c.TriggerCategory != tt.category {
				t.Errorf("Expected category %q, got %q", tt.category, c.TriggerCategory)
			}
		})
	}
}

// RED patterns win even when lower tiers also match
func TestClassifyRedPreemption(t *testing.T) {
	registry := DefaultRegistry()
	classifier := NewClassifier(registry)

	for _, tier := range registry.Tiers() {
		if tier.Level != LevelRed {
			continue
		}
		for _, rule := range tier.Rules {
			for _, pattern := range rule.Patterns {
				msg := "I'm so stressed, she won't sleep or take her medication and " + pattern
				c := classifier.Classify(msg)
				if c.Level != LevelRed {
					t.Errorf("pattern %q: expected RED, got %s", pattern, c.Level)
				}
				if c.ResponseCode == "" {
					t.Errorf("pattern %q: expected response code", pattern)
				}
			}
		}
	}
}

func TestClassifyReferralForOrange(t *testing.T) {
	classifier := NewClassifier(DefaultRegistry())

	c := classifier.Classify("She forgot to take her pills yesterday")
	if c.Level != LevelOrange {
		t.Fatalf("Expected ORANGE, got %s", c.Level)
	}
	if c.ReferralTarget == nil || !strings.Contains(*c.ReferralTarget, "pharmacist") {
		t.Errorf("Expected pharmacist referral, got %v", c.ReferralTarget)
	}
	if len(c.BlockedTopics) == 0 {
		t.Error("Expected blocked topics")
	}
}

func TestClassifyResultsDoNotAliasRegistry(t *testing.T) {
	registry := DefaultRegistry()
	classifier := NewClassifier(registry)
	msg := "She forgot to take her pills yesterday"

	first := classifier.Classify(msg)
	wantTopic := first.BlockedTopics[0]
	wantReferral := *first.ReferralTarget

	mutations := []struct {
		name   string
		mutate func()
	}{
		{"blocked topics", func() { first.BlockedTopics[0] = "changed" }},
		{"referral target", func() { *first.ReferralTarget = "changed" }},
		{"tiers", func() {
			tiers := registry.Tiers()
			for i := range tiers {
				for j := range tiers[i].Rules {
					tiers[i].Rules[j].Patterns[0] = "zzz"
					if len(tiers[i].Rules[j].BlockedTopics) > 0 {
						tiers[i].Rules[j].BlockedTopics[0] = "changed"
					}
					if tiers[i].Rules[j].ReferralTarget != nil {
						*tiers[i].Rules[j].ReferralTarget = "changed"
					}
				}
			}
		}},
		{"rule lookup", func() {
			rule, _, _ := registry.Rule(first.TriggerCategory)
			rule.Patterns[0] = "zzz"
			rule.BlockedTopics[0] = "changed"
			*rule.ReferralTarget = "changed"
		}},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate()
			again := classifier.Classify(msg)
			if again.Level != LevelOrange || again.TriggerCategory != first.TriggerCategory {
				t.Fatalf("Expected ORANGE %s, got %s %s", first.TriggerCategory, again.Level, again.TriggerCategory)
			}
			if again.BlockedTopics[0] != wantTopic {
				t.Errorf("Expected topic %q, got %q", wantTopic, again.BlockedTopics[0])
			}
			if *again.ReferralTarget != wantReferral {
				t.Errorf("Expected referral %q, got %q", wantReferral, *again.ReferralTarget)
			}
		})
	}
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"no tiers", nil},
		{"green tier", []Tier{{Level: LevelGreen, Rules: []TriggerRule{{Category: "a", Patterns: []string{"x"}}}}}},
		{"out of order", []Tier{
			{Level: LevelYellow, Rules: []TriggerRule{{Category: "a", Patterns: []string{"x"}}}},
			{Level: LevelRed, Rules: []TriggerRule{{Category: "b", Patterns: []string{"y"}, ResponseCode: "C"}}},
		}},
		{"duplicate category", []Tier{
			{Level: LevelOrange, Rules: []TriggerRule{{Category: "a", Patterns: []string{"x"}}}},
			{Level: LevelYellow, Rules: []TriggerRule{{Category: "a", Patterns: []string{"y"}}}},
		}},
		{"no patterns", []Tier{{Level: LevelYellow, Rules: []TriggerRule{{Category: "a", Patterns: []string{"  "}}}}}},
		{"red without code", []Tier{{Level: LevelRed, Rules: []TriggerRule{{Category: "a", Patterns: []string{"x"}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry("test", tt.tiers); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	doc := `
version: "test-1"
tiers:
  - level: RED
    rules:
      - category: selfHarm
        patterns: ["Want To Die"]
        response_code: CRISIS_SELF_HARM
  - level: YELLOW
    rules:
      - category: sleepDisturbance
        patterns: ["sleep"]
        response_code: SUPPORT_SLEEP
`
	registry, err := LoadRegistry(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}
	if registry.Version() != "test-1" {
		t.Errorf("Expected version test-1, got %s", registry.Version())
	}

	rule, level, ok := registry.Rule("selfHarm")
	if !ok || level != LevelRed {
		t.Fatalf("Expected RED selfHarm rule, got %v %s", ok, level)
	}
	if rule.Patterns[0] != "want to die" {
		t.Errorf("Expected lower-cased pattern, got %q", rule.Patterns[0])
	}

	c := NewClassifier(registry).Classify("I WANT TO DIE")
	if c.ResponseCode != "CRISIS_SELF_HARM" {
		t.Errorf("Expected CRISIS_SELF_HARM, got %q", c.ResponseCode)
	}
}

func TestLoadRegistryFoldsTypographicApostrophes(t *testing.T) {
	doc := `
version: "test-2"
tiers:
  - level: ORANGE
    rules:
      - category: caregiverBurnout
        patterns: ["Can’t cope"]
`
	registry, err := LoadRegistry(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}
	classifier := NewClassifier(registry)

	tests := []struct {
		name    string
		message string
	}{
		{"straight apostrophe", "I can't cope anymore"},
		{"curly apostrophe", "I can’t cope anymore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifier.Classify(tt.message)
			if c.Level != LevelOrange || c.TriggerCategory != "caregiverBurnout" {
				t.Errorf("Expected ORANGE caregiverBurnout, got %s %q", c.Level, c.TriggerCategory)
			}
		})
	}
}

func TestLoadRegistryRejectsUnknownFields(t *testing.T) {
	doc := `
version: "x"
tiers:
  - level: YELLOW
    severity: 3
    rules: []
`
	if _, err := LoadRegistry(strings.NewReader(doc)); err == nil {
		t.Error("Expected error for unknown field")
	}

	bad := `
version: "x"
tiers:
  - level: PURPLE
    rules: []
`
	if _, err := LoadRegistry(strings.NewReader(bad)); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestDefaultRegistryResponseCodes(t *testing.T) {
	for _, code := range DefaultRegistry().ResponseCodes() {
		if !HasResponse(code) {
			t.Errorf("RED response code %s has no crisis template", code)
		}
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelGreen, LevelYellow, LevelOrange, LevelRed} {
		parsed, err := ParseLevel(strings.ToLower(l.String()))
		if err != nil {
			t.Fatalf("ParseLevel(%s) failed: %v", l, err)
		}
		if parsed != l {
			t.Errorf("Expected %s, got %s", l, parsed)
		}
	}
	if _, err := ParseLevel("BLUE"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
