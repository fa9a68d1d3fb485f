package safety

// Disclaimer topics
const (
	TopicBehavioralChange   = "behavioral_change"
	TopicSleep              = "sleep"
	TopicNutrition          = "nutrition"
	TopicFalls              = "falls"
	TopicMood               = "mood"
	TopicCaregiverWellbeing = "caregiver_wellbeing"
	TopicMedicationAdjacent = "medication_adjacent"
	TopicGeneral            = "general"
)

var defaultDisclaimerTexts = map[string]string{
	TopicBehavioralChange: "Changes in behavior can have many causes, including pain, infection or " +
		"medication effects. If this behavior is new or getting worse, please talk with their healthcare provider.",
	TopicSleep: "Sleep changes are common, but new or worsening sleep problems are worth " +
		"discussing with their healthcare provider.",
	TopicNutrition: "If you notice weight loss, difficulty swallowing or a lasting change in " +
		"appetite, please let their healthcare provider know.",
	TopicFalls: "After any fall, watch for pain, confusion or changes in movement. Their " +
		"healthcare provider can help assess fall risk.",
	TopicMood: "Mood changes can be part of many conditions. If low mood or anxiety lasts " +
		"more than two weeks, please talk with their healthcare provider.",
	TopicCaregiverWellbeing: "Caring for someone is demanding. Your own health matters too; " +
		"consider talking with your doctor or a caregiver support service.",
	TopicMedicationAdjacent: "I can't give advice about medications. Please check with their " +
		"pharmacist or prescribing doctor before making any change.",
	TopicGeneral: "This information is general support, not medical advice. Please talk with " +
		"a healthcare provider about anything specific to your situation.",
}

var defaultCategoryTopics = map[string]string{
	"behavioralSymptoms":    TopicBehavioralChange,
	"suddenCognitiveChange": TopicBehavioralChange,
	"aggressiveBehavior":    TopicBehavioralChange,
	"sleepDisturbance":      TopicSleep,
	"eatingAndNutrition":    TopicNutrition,
	"fallRisk":              TopicFalls,
	"fallWithInjury":        TopicFalls,
	"moodChanges":           TopicMood,
	"caregiverStress":       TopicCaregiverWellbeing,
	"caregiverCrisis":       TopicCaregiverWellbeing,
	"medicationConfusion":   TopicMedicationAdjacent,
}

// DisclaimerMap resolves trigger categories to canned disclaimers.
type DisclaimerMap struct {
	topics map[string]string
	texts  map[string]string
}

// DefaultDisclaimers returns the built-in disclaimer map
func DefaultDisclaimers() DisclaimerMap {
	return DisclaimerMap{topics: defaultCategoryTopics, texts: defaultDisclaimerTexts}
}

// NewDisclaimerMap builds a map from category->topic and topic->text tables.
// The general topic must be present.
func NewDisclaimerMap(categoryTopics, topicTexts map[string]string) (DisclaimerMap, bool) {
	if _, ok := topicTexts[TopicGeneral]; !ok {
		return DisclaimerMap{}, false
	}
	return DisclaimerMap{topics: categoryTopics, texts: topicTexts}, true
}

// Topic returns the disclaimer topic for a category, general when unmapped
func (m DisclaimerMap) Topic(category string) string {
	topic, ok := m.topics[category]
	if !ok {
		return TopicGeneral
	}
	if _, ok := m.texts[topic]; !ok {
		return TopicGeneral
	}
	return topic
}

// Resolve returns the disclaimer text for a category
func (m DisclaimerMap) Resolve(category string) string {
	return m.texts[m.Topic(category)]
}
