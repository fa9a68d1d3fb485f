package safety

import (
	"strings"
	"testing"
)

func newTestGate() *Gate {
	return NewGate(
		NewClassifier(DefaultRegistry()),
		NewCrisisResolver(DefaultResources(), "US"),
		DefaultDisclaimers(),
	)
}

func TestPreProcessRed(t *testing.T) {
	gate := newTestGate()

	d := gate.PreProcess("I can't go on, I want to die", RoleCaregiver)
	if d.Proceed {
		t.Fatal("RED must not proceed to the model")
	}
	if d.SafetyLevel != LevelRed {
		t.Errorf("Expected RED, got %s", d.SafetyLevel)
	}
	if d.StaticResponse == nil {
		t.Fatal("Expected static response")
	}
	if d.StaticResponse.Code != "CRISIS_SELF_HARM" {
		t.Errorf("Expected CRISIS_SELF_HARM, got %s", d.StaticResponse.Code)
	}
	if d.ContextInjection != "" || d.Disclaimer != "" {
		t.Error("RED decisions carry no injection or disclaimer")
	}
	if !containsContact(d.StaticResponse.Resources, "988") {
		t.Errorf("Expected US crisis line, got %+v", d.StaticResponse.Resources)
	}
}

func TestPreProcessRedLocalised(t *testing.T) {
	gate := newTestGate()

	d := gate.PreProcessForCountry("I want to die", RoleCaregiver, "gb")
	if d.StaticResponse == nil {
		t.Fatal("Expected static response")
	}
	if !containsContact(d.StaticResponse.Resources, "116 123") {
		t.Errorf("Expected Samaritans, got %+v", d.StaticResponse.Resources)
	}
}

func TestPreProcessOrange(t *testing.T) {
	gate := newTestGate()

	d := gate.PreProcess("She missed a dose of her tablets", RoleCaregiver)
	if !d.Proceed || d.SafetyLevel != LevelOrange {
		t.Fatalf("Expected ORANGE proceed, got %s proceed=%v", d.SafetyLevel, d.Proceed)
	}
	for _, want := range []string{
		"SAFETY CONSTRAINTS (mandatory):",
		"Do not attempt to resolve the clinical issue",
		"their pharmacist or prescribing doctor",
		"dosages",
	} {
		if !strings.Contains(d.ContextInjection, want) {
			t.Errorf("Expected injection to contain %q:\n%s", want, d.ContextInjection)
		}
	}
	if d.Disclaimer != DefaultDisclaimers().Resolve("medicationConfusion") {
		t.Errorf("Unexpected disclaimer %q", d.Disclaimer)
	}
	if d.StaticResponse != nil {
		t.Error("ORANGE carries no static response")
	}
}

func TestPreProcessYellow(t *testing.T) {
	gate := newTestGate()

	tests := []struct {
		name    string
		role    Role
		patient bool
	}{
		{"caregiver", RoleCaregiver, false},
		{"patient", RolePatient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gate.PreProcess("They keep refusing their bath", tt.role)
			if !d.Proceed || d.SafetyLevel != LevelYellow {
				t.Fatalf("Expected YELLOW proceed, got %s", d.SafetyLevel)
			}
			if !strings.HasPrefix(d.ContextInjection, "GUIDANCE:") {
				t.Errorf("Unexpected injection %q", d.ContextInjection)
			}
			if got := strings.Contains(d.ContextInjection, patientLanguageInstruction); got != tt.patient {
				t.Errorf("Expected patient instruction=%v", tt.patient)
			}
			if d.Disclaimer != defaultDisclaimerTexts[TopicBehavioralChange] {
				t.Errorf("Unexpected disclaimer %q", d.Disclaimer)
			}
		})
	}
}

func TestPreProcessGreen(t *testing.T) {
	gate := newTestGate()

	for _, msg := range []string{"", "We planted tomatoes together today."} {
		d := gate.PreProcess(msg, RoleCaregiver)
		if !d.Proceed || d.SafetyLevel != LevelGreen {
			t.Errorf("%q: expected GREEN proceed, got %s", msg, d.SafetyLevel)
		}
		if d.ContextInjection != "" || d.Disclaimer != "" || d.StaticResponse != nil {
			t.Errorf("%q: GREEN carries no constraints", msg)
		}
	}
}

func TestCrisisResolver(t *testing.T) {
	resolver := NewCrisisResolver(DefaultResources(), "")

	for _, code := range DefaultRegistry().ResponseCodes() {
		resp := resolver.Resolve(code)
		if resp.Code != code {
			t.Errorf("Expected code %s, got %s", code, resp.Code)
		}
		if resp.Message == "" || len(resp.Resources) == 0 {
			t.Errorf("%s: expected message and resources", code)
		}
	}

	unknown := resolver.Resolve("CRISIS_UNHEARD_OF")
	if unknown.Code != CodeEmergency {
		t.Errorf("Expected fallback to %s, got %s", CodeEmergency, unknown.Code)
	}

	def := DefaultResources().ForCountry(DefaultCountry)
	for _, country := range []string{"ZZ", ""} {
		resp := resolver.ResolveForCountry("CRISIS_SELF_HARM", country)
		if resp.Resources[0] != def.Emergency {
			t.Errorf("%q: expected DEFAULT emergency contact, got %+v", country, resp.Resources[0])
		}
	}
}

func TestResourceTable(t *testing.T) {
	table := DefaultResources()

	if !table.Has("us") || table.Has("ZZ") {
		t.Error("Unexpected Has result")
	}
	if got := table.ForCountry("zz").Country; got != DefaultCountry {
		t.Errorf("Expected DEFAULT, got %s", got)
	}

	_, err := NewResourceTable([]CountryResources{{
		Country:   "US",
		Emergency: CrisisResource{Kind: ResourceEmergency, Contact: "911"},
	}})
	if err == nil {
		t.Error("Expected error without DEFAULT entry")
	}

	_, err = NewResourceTable([]CountryResources{{Country: DefaultCountry}})
	if err == nil {
		t.Error("Expected error without emergency contact")
	}
}

func TestDisclaimerMap(t *testing.T) {
	m := DefaultDisclaimers()

	if m.Topic("diagnosisRequest") != TopicGeneral {
		t.Errorf("Expected unmapped category to use general topic")
	}
	if m.Resolve("sleepDisturbance") != defaultDisclaimerTexts[TopicSleep] {
		t.Error("Expected sleep disclaimer")
	}
	if _, ok := NewDisclaimerMap(nil, map[string]string{TopicSleep: "x"}); ok {
		t.Error("Expected map without general topic to be rejected")
	}
}

func containsContact(resources []CrisisResource, contact string) bool {
	for _, r := range resources {
		if r.Contact == contact {
			return true
		}
	}
	return false
}
