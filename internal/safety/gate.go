package safety

import (
	"fmt"
	"strings"
)

// PreDecision tells the caller whether the model may be called and with
// which constraints.
type PreDecision struct {
	Proceed          bool            `json:"proceed"`
	SafetyLevel      Level           `json:"safety_level"`
	Classification   Classification  `json:"classification"`
	StaticResponse   *CrisisResponse `json:"static_response,omitempty"`
	ContextInjection string          `json:"context_injection,omitempty"`
	Disclaimer       string          `json:"disclaimer,omitempty"`
}

// Gate turns a classification into an actionable decision. It performs no
// I/O and is safe for concurrent use.
type Gate struct {
	classifier  *Classifier
	crisis      *CrisisResolver
	disclaimers DisclaimerMap
}

// NewGate wires the gate's collaborators
func NewGate(classifier *Classifier, crisis *CrisisResolver, disclaimers DisclaimerMap) *Gate {
	return &Gate{classifier: classifier, crisis: crisis, disclaimers: disclaimers}
}

// PreProcess classifies a message and decides how the model may be used.
func (g *Gate) PreProcess(message string, role Role) PreDecision {
	return g.PreProcessForCountry(message, role, "")
}

// PreProcessForCountry is PreProcess with crisis resources localised to an
// ISO country code.
func (g *Gate) PreProcessForCountry(message string, role Role, country string) PreDecision {
	c := g.classifier.Classify(message)

	decision := PreDecision{
		Proceed:        true,
		SafetyLevel:    c.Level,
		Classification: c,
	}

	switch c.Level {
	case LevelRed:
		resp := g.crisis.ResolveForCountry(c.ResponseCode, country)
		decision.Proceed = false
		decision.StaticResponse = &resp

	case LevelOrange:
		decision.ContextInjection = orangeInjection(c, role)
		decision.Disclaimer = g.disclaimers.Resolve(c.TriggerCategory)

	case LevelYellow:
		decision.ContextInjection = yellowInjection(c, role)
		decision.Disclaimer = g.disclaimers.Resolve(c.TriggerCategory)
	}

	return decision
}

const patientLanguageInstruction = "You are speaking with the person receiving care. Use warm, simple " +
	"language and never use clinical labels such as dementia, Alzheimer's or cognitive decline."

func orangeInjection(c Classification, role Role) string {
	referral := "a qualified healthcare professional"
	if c.ReferralTarget != nil && *c.ReferralTarget != "" {
		referral = *c.ReferralTarget
	}

	var b strings.Builder
	b.WriteString("SAFETY CONSTRAINTS (mandatory):\n")
	fmt.Fprintf(&b, "- The user's message relates to %q. Do not attempt to resolve the clinical issue yourself.\n",
		c.TriggerCategory)
	fmt.Fprintf(&b, "- Clearly recommend that they contact %s.\n", referral)
	b.WriteString("- Do not name any medication, dosage or treatment, and do not suggest starting, " +
		"stopping or changing one.\n")
	b.WriteString("- Do not diagnose or predict how the condition will progress.\n")
	if len(c.BlockedTopics) > 0 {
		fmt.Fprintf(&b, "- Do not discuss: %s.\n", strings.Join(c.BlockedTopics, ", "))
	}
	b.WriteString("- You may offer emotional support and practical, non-clinical safety steps.")
	if role == RolePatient {
		b.WriteString("\n- " + patientLanguageInstruction)
	}
	return b.String()
}

func yellowInjection(c Classification, role Role) string {
	var b strings.Builder
	b.WriteString("GUIDANCE:\n")
	fmt.Fprintf(&b, "- The user's message relates to %q. Offer practical, supportive strategies.\n",
		c.TriggerCategory)
	b.WriteString("- Gently suggest discussing it with their healthcare provider if it is new or worsening.\n")
	b.WriteString("- Do not diagnose, and do not mention medications or dosages.")
	if role == RolePatient {
		b.WriteString("\n- " + patientLanguageInstruction)
	}
	return b.String()
}
