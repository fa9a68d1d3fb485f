package safety

import (
	"regexp"
	"sort"
	"strings"
)

var dementiaDrugs = []string{
	"donepezil", "aricept", "rivastigmine", "exelon", "galantamine", "razadyne",
	"memantine", "namenda", "namzaric", "lecanemab", "leqembi", "aducanumab", "aduhelm",
	"donanemab", "kisunla",
}

var psychiatricDrugs = []string{
	"quetiapine", "seroquel", "risperidone", "risperdal", "olanzapine", "zyprexa",
	"haloperidol", "haldol", "aripiprazole", "abilify", "brexpiprazole", "rexulti",
	"sertraline", "zoloft", "citalopram", "celexa", "escitalopram", "lexapro",
	"fluoxetine", "prozac", "trazodone", "mirtazapine", "remeron",
	"lorazepam", "ativan", "alprazolam", "xanax", "diazepam", "valium", "clonazepam", "klonopin",
}

var sleepAndOTCDrugs = []string{
	"melatonin", "zolpidem", "ambien", "diphenhydramine", "benadryl", "doxylamine", "unisom",
	"zzzquil", "tylenol pm", "advil pm", "acetaminophen", "paracetamol", "tylenol",
	"ibuprofen", "advil", "aspirin", "naproxen",
}

var supplements = []string{
	"ginkgo biloba", "ginkgo", "vitamin e", "vitamin b12", "b12", "fish oil", "omega-3",
	"coconut oil", "turmeric", "curcumin", "huperzine a", "st. john's wort", "prevagen", "cbd",
}

var drugClasses = []string{
	"ssri", "ssris", "snri", "snris", "antidepressant", "antidepressants",
	"antipsychotic", "antipsychotics", "benzodiazepine", "benzodiazepines",
	"sedative", "sedatives", "sleeping pill", "sleeping pills", "sleep aid", "sleep aids",
	"cholinesterase inhibitor", "cholinesterase inhibitors", "opioid", "opioids",
	"antihistamine", "antihistamines", "anticholinergic", "anticholinergics",
	"tranquilizer", "tranquilizers",
}

// MedicationVocabulary returns the five curated lists concatenated.
func MedicationVocabulary() []string {
	var all []string
	for _, list := range [][]string{dementiaDrugs, psychiatricDrugs, sleepAndOTCDrugs, supplements, drugClasses} {
		all = append(all, list...)
	}
	return all
}

// TermScanner finds whole-word mentions of a fixed vocabulary, such as
// medication, supplement and drug-class names.
type TermScanner struct {
	pattern *regexp.Regexp
}

// NewTermScanner compiles a case-insensitive, word-boundary anchored
// matcher for the given terms. Longer terms are tried first so "vitamin b12"
// wins over "b12".
func NewTermScanner(terms []string) *TermScanner {
	sorted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = foldApostrophes(strings.ToLower(strings.TrimSpace(t)))
		if t != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	quoted := make([]string, len(sorted))
	for i, t := range sorted {
		quoted[i] = regexp.QuoteMeta(t)
	}

	return &TermScanner{
		pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// DefaultMedicationScanner scans for the built-in vocabulary
func DefaultMedicationScanner() *TermScanner {
	return NewTermScanner(MedicationVocabulary())
}

// Scan returns every distinct vocabulary term found in text, lower-cased, in
// order of first appearance. It returns an empty, non-nil slice when nothing
// matches.
func (s *TermScanner) Scan(text string) []string {
	found := []string{}
	if text == "" {
		return found
	}

	seen := make(map[string]bool)
	for _, m := range s.pattern.FindAllString(foldApostrophes(text), -1) {
		term := strings.ToLower(m)
		if !seen[term] {
			seen[term] = true
			found = append(found, term)
		}
	}
	return found
}
