package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Golden rule labels
const (
	RuleDiagnosis       = "GR-001"
	RuleMedication      = "GR-002"
	RulePrognosis       = "GR-003"
	RuleRestraint       = "GR-004"
	RuleDehumanizing    = "GR-005"
	RulePatientVocab    = "PATIENT-VOCAB"
	disclaimerSeparator = "\n\n---\n"
)

// BlockedResponseFallback replaces any model output that breaks a hard rule.
const BlockedResponseFallback = "I'm not able to help with that question. For anything about " +
	"diagnosis, medications or how a condition may progress, please speak with a doctor, nurse " +
	"or pharmacist who knows the person you care for."

// PostDecision is the verdict on a model response.
type PostDecision struct {
	Approved           bool     `json:"approved"`
	FinalText          string   `json:"final_text"`
	Violations         []string `json:"violations"`
	DisclaimerAppended bool     `json:"disclaimer_appended"`
}

// OutputRule is one labelled pattern checked against model output.
type OutputRule struct {
	Label       string
	Description string
	Pattern     *regexp.Regexp
}

func rule(label, description, pattern string) OutputRule {
	return OutputRule{Label: label, Description: description, Pattern: regexp.MustCompile(pattern)}
}

// DefaultOutputRules returns the built-in golden rule patterns in
// evaluation order.
func DefaultOutputRules() []OutputRule {
	return []OutputRule{
		// diagnosis
		rule(RuleDiagnosis, "diagnostic language",
			`(?i)\bthis (?:sounds|looks|seems) like (?:a case of|a sign of|signs of|symptoms of|early)\b`),
		rule(RuleDiagnosis, "diagnostic language",
			`(?i)\bconsistent with (?:a |an )?(?:diagnosis|dementia|alzheimer'?s|delirium|depression|lewy body)\b`),
		rule(RuleDiagnosis, "diagnostic statement",
			`(?i)\b(?:he|she|they|your (?:mother|father|mom|dad|husband|wife|partner|loved one)) `+
				`(?:has|have|probably has|likely has|may have|might have|is suffering from) `+
				`(?:dementia|alzheimer'?s|delirium|lewy body|frontotemporal|vascular dementia|parkinson'?s|a uti|an infection)\b`),
		rule(RuleDiagnosis, "staging",
			`(?i)\b(?:is|are|in) (?:in )?the (?:early|middle|late|mild|moderate|severe|final) stages?\b`),

		// medication and treatment instructions
		rule(RuleMedication, "dosage",
			`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|milligrams?|micrograms?|ml|milliliters?|iu)\b`),
		rule(RuleMedication, "dosing instruction",
			`(?i)\b(?:take|give) (?:\d+|one|two|three|four|half|a) (?:pills?|tablets?|capsules?|doses?)\b`),
		rule(RuleMedication, "dose change",
			`(?i)\b(?:increase|decrease|reduce|lower|raise|double|adjust)\b(?:\W+\w+){0,3}?\W+(?:dose|dosage)\b`),
		rule(RuleMedication, "start or stop treatment",
			`(?i)\b(?:start|stop|begin|quit|discontinue) taking\b`),

		// prognosis
		rule(RulePrognosis, "prognosis",
			`(?i)\bwill (?:eventually|inevitably|continue to) (?:decline|get worse|worsen|deteriorate)\b`),
		rule(RulePrognosis, "prognosis", `(?i)\blife expectancy\b`),
		rule(RulePrognosis, "prognosis", `(?i)\b(?:years|months|weeks) left\b`),
		rule(RulePrognosis, "prognosis", `(?i)\b(?:a few|several|\d+) (?:years|months|weeks) to live\b`),
		rule(RulePrognosis, "prognosis", `(?i)\b(?:terminal|end[- ]stage)\b`),

		// restraint
		rule(RuleRestraint, "restraint advice", `(?i)\b(?:tie|strap|lock) (?:them|him|her) (?:in|to|up|down)\b`),
		rule(RuleRestraint, "restraint advice", `(?i)\b(?:physical|chemical) restraints?\b`),
		rule(RuleRestraint, "restraint advice", `(?i)\b(?:restrain|sedate) (?:them|him|her)\b`),

		// dehumanizing language
		rule(RuleDehumanizing, "dehumanizing language",
			`(?i)\b(?:dementia|alzheimer'?s) (?:patient|sufferer|victim)s?\b`),
		rule(RuleDehumanizing, "dehumanizing language", `(?i)\ba shell of\b`),
		rule(RuleDehumanizing, "dehumanizing language", `(?i)\bgone already\b`),
		rule(RuleDehumanizing, "dehumanizing language", `(?i)\bnot (?:really )?there anymore\b`),
		rule(RuleDehumanizing, "dehumanizing language", `(?i)\b(?:demented|senile)\b`),
	}
}

var defaultPatientVocabulary = []string{
	"dementia", "alzheimer", "alzheimer's", "alzheimers", "cognitive decline", "cognitive impairment",
	"mild cognitive impairment", "memory loss", "neurodegenerative", "disease progression",
	"sundowning", "mci",
}

// IsHardViolation reports whether a violation label unconditionally blocks
// a response.
func IsHardViolation(violation string) bool {
	return strings.HasPrefix(violation, RuleDiagnosis) ||
		strings.HasPrefix(violation, RuleMedication) ||
		strings.HasPrefix(violation, RulePrognosis)
}

// Enforcer applies the golden rules to model output.
type Enforcer struct {
	rules        []OutputRule
	medications  *TermScanner
	patientVocab *TermScanner
}

// NewEnforcer creates an enforcer with the given output rules and scanner
func NewEnforcer(rules []OutputRule, medications *TermScanner) *Enforcer {
	return &Enforcer{
		rules:        rules,
		medications:  medications,
		patientVocab: NewTermScanner(defaultPatientVocabulary),
	}
}

// DefaultEnforcer uses the built-in rules and medication vocabulary
func DefaultEnforcer() *Enforcer {
	return NewEnforcer(DefaultOutputRules(), DefaultMedicationScanner())
}

// Scan returns every violation found in text for the given role.
func (e *Enforcer) Scan(text string, role Role) []string {
	text = foldApostrophes(text)
	violations := []string{}
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			violations = append(violations, v)
		}
	}

	for _, term := range e.medications.Scan(text) {
		add(fmt.Sprintf("%s: medication term %q", RuleMedication, term))
	}

	for _, r := range e.rules {
		if r.Pattern.MatchString(text) {
			add(r.Label + ": " + r.Description)
		}
	}

	if role == RolePatient {
		for _, term := range e.patientVocab.Scan(text) {
			add(fmt.Sprintf("%s: %q", RulePatientVocab, term))
		}
	}

	return violations
}

// PostProcess decides whether model output may be shown. Hard violations
// (GR-001, GR-002, GR-003) block the text and FinalText is replaced by
// BlockedResponseFallback. Other violations are reported but do not block.
// Approved YELLOW and ORANGE responses get the disclaimer appended.
func (e *Enforcer) PostProcess(aiText string, level Level, role Role, disclaimer string) PostDecision {
	violations := e.Scan(aiText, role)

	for _, v := range violations {
		if IsHardViolation(v) {
			return PostDecision{
				Approved:   false,
				FinalText:  BlockedResponseFallback,
				Violations: violations,
			}
		}
	}

	decision := PostDecision{
		Approved:   true,
		FinalText:  aiText,
		Violations: violations,
	}

	if (level == LevelYellow || level == LevelOrange) && disclaimer != "" {
		decision.FinalText = aiText + disclaimerSeparator + disclaimer
		decision.DisclaimerAppended = true
	}

	return decision
}

// ViolationRule returns the rule label of a violation, e.g. "GR-002"
func ViolationRule(violation string) string {
	label, _, _ := strings.Cut(violation, ":")
	return label
}
