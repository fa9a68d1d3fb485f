package safety

// DefaultRegistryVersion identifies the built-in pattern set.
const DefaultRegistryVersion = "2025.1"

func ptr(s string) *string { return &s }

// defaultTiers is the built-in pattern catalogue. Patterns are plain
// lower-case phrases matched by substring containment, so short fragments
// that occur inside unrelated words ("uti" in "routine") are avoided.
var defaultTiers = []Tier{
	{
		Level: LevelRed,
		Rules: []TriggerRule{
			{
				Category: "selfHarm",
				Patterns: []string{
					"want to die", "wanna die", "kill myself", "end my life", "take my own life",
					"suicide", "suicidal", "can't go on", "cant go on", "no reason to live",
					"better off dead", "hurt myself", "end it all",
				},
				ResponseCode: "CRISIS_SELF_HARM",
				ActionNote:   "Show self-harm crisis resources; never call the model.",
			},
			{
				Category: "harmToOthers",
				Patterns: []string{
					"going to hurt him", "going to hurt her", "going to hurt them",
					"want to hurt him", "want to hurt her", "want to hurt them",
					"kill him", "kill her", "kill them", "has a gun", "with a knife",
				},
				ResponseCode: "CRISIS_HARM_TO_OTHERS",
				ActionNote:   "Show emergency and caregiver crisis resources.",
			},
			{
				Category: "medicalEmergency",
				Patterns: []string{
					"not breathing", "can't breathe", "cant breathe", "chest pain", "unconscious",
					"won't wake up", "wont wake up", "unresponsive", "having a stroke",
					"face is drooping", "seizure", "choking", "bleeding heavily", "won't stop bleeding",
				},
				ResponseCode: "CRISIS_MEDICAL_EMERGENCY",
				ActionNote:   "Direct to emergency services immediately.",
			},
			{
				Category: "abuseOrNeglect",
				Patterns: []string{
					"abuse", "being hit by", "stealing their money", "stealing from them",
					"took all their money", "left alone for days", "neglected", "neglecting them",
				},
				ResponseCode: "CRISIS_ELDER_ABUSE",
				ActionNote:   "Show elder abuse reporting resources.",
			},
			{
				Category: "missingPerson",
				Patterns: []string{
					"wandered off", "wandered away", "went missing", "gone missing",
					"can't find my mom", "can't find my dad", "can't find my husband", "can't find my wife",
					"hasn't come home", "didn't come home",
				},
				ResponseCode: "CRISIS_MISSING_PERSON",
				ActionNote:   "Call emergency services; a missing person with dementia is an emergency.",
			},
			{
				Category: "poisoning",
				Patterns: []string{
					"overdose", "took too many pills", "swallowed too many", "poison",
					"drank bleach", "swallowed bleach", "drank cleaning", "ate detergent", "swallowed a battery",
				},
				ResponseCode: "CRISIS_POISONING",
				ActionNote:   "Show poison control and emergency resources.",
			},
		},
	},
	{
		Level: LevelOrange,
		Rules: []TriggerRule{
			{
				Category: "medicationConfusion",
				Patterns: []string{
					"missed a dose", "missed dose", "double dose", "forgot to take", "forgot their pills",
					"forgot his pills", "forgot her pills", "wrong pill", "wrong medication",
					"mixed up their pills", "mixed up the pills", "stop taking", "side effect",
					"dosage", "increase the dose", "reduce the dose", "medication", "medicine", "pills",
				},
				ResponseCode:   "REFER_PHARMACIST",
				ActionNote:     "Do not advise on medication; refer to pharmacist or prescriber.",
				ReferralTarget: ptr("their pharmacist or prescribing doctor"),
				BlockedTopics:  []string{"medication names", "dosages", "starting or stopping medication"},
			},
			{
				Category: "suddenCognitiveChange",
				Patterns: []string{
					"suddenly confused", "sudden confusion", "suddenly worse", "much worse overnight",
					"hallucinating", "seeing things that aren't there", "seeing people who aren't there",
					"doesn't recognize me", "doesn't know who i am", "talking nonsense",
					"very drowsy", "urinary infection", "urine infection",
				},
				ResponseCode:   "REFER_DOCTOR_URGENT",
				ActionNote:     "Sudden change can signal a treatable condition; same-day medical review.",
				ReferralTarget: ptr("their doctor or an urgent care clinic today"),
				BlockedTopics:  []string{"diagnosis", "causes of confusion", "treatment"},
			},
			{
				Category: "fallWithInjury",
				Patterns: []string{
					"fell and hit", "fell and hurt", "fell and can't", "fall and hurt",
					"hit their head", "hit his head", "hit her head", "head injury",
					"can't get up", "cant get up", "broken bone", "broken hip",
				},
				ResponseCode:   "REFER_DOCTOR_URGENT",
				ActionNote:     "Injury after a fall needs medical assessment.",
				ReferralTarget: ptr("their doctor or urgent care"),
				BlockedTopics:  []string{"injury assessment", "treatment"},
			},
			{
				Category: "diagnosisRequest",
				Patterns: []string{
					"does she have dementia", "does he have dementia", "do they have dementia",
					"is it dementia", "is it alzheimer", "what stage", "which stage",
					"normal aging", "get diagnosed", "diagnosis", "how long do they have",
					"how long does she have", "how long does he have", "life expectancy",
				},
				ResponseCode:   "REFER_MEMORY_CLINIC",
				ActionNote:     "Never diagnose or stage; refer to clinician.",
				ReferralTarget: ptr("their doctor or a memory clinic"),
				BlockedTopics:  []string{"diagnosis", "staging", "prognosis"},
			},
			{
				Category: "aggressiveBehavior",
				Patterns: []string{
					"hit me", "hits me", "hitting me", "punched", "kicked me", "scratched me",
					"bit me", "threatened me", "violent", "aggressive", "throwing things",
				},
				ResponseCode:   "REFER_BEHAVIOR_SPECIALIST",
				ActionNote:     "Safety first; refer to clinician for behavior assessment.",
				ReferralTarget: ptr("their doctor or a dementia behavior specialist"),
				BlockedTopics:  []string{"sedation", "restraint", "medication for behavior"},
			},
			{
				Category: "caregiverCrisis",
				Patterns: []string{
					"can't cope", "cant cope", "breaking point", "breaking down",
					"can't do this anymore", "cant do this anymore", "falling apart",
					"completely exhausted", "no help at all",
				},
				ResponseCode:   "REFER_CAREGIVER_SUPPORT",
				ActionNote:     "Validate and connect caregiver with support services.",
				ReferralTarget: ptr("a caregiver support line or respite care service"),
				BlockedTopics:  []string{"medical advice"},
			},
		},
	},
	{
		Level: LevelYellow,
		Rules: []TriggerRule{
			{
				Category: "behavioralSymptoms",
				Patterns: []string{
					"refusing", "refuses", "won't bathe", "bath", "shower", "agitated", "agitation",
					"sundowning", "repeating", "asks the same question", "wandering", "pacing",
					"restless", "hiding things", "accusing", "yelling", "shouting", "won't change clothes",
				},
				ResponseCode: "SUPPORT_BEHAVIOR",
				ActionNote:   "Offer supportive, non-clinical strategies.",
			},
			{
				Category: "sleepDisturbance",
				Patterns: []string{
					"sleep", "awake at night", "up all night", "insomnia", "napping", "naps", "nighttime",
				},
				ResponseCode: "SUPPORT_SLEEP",
				ActionNote:   "Offer sleep routine strategies.",
			},
			{
				Category: "eatingAndNutrition",
				Patterns: []string{
					"not eating", "won't eat", "stopped eating", "appetite", "weight loss",
					"losing weight", "drinking enough", "dehydrated", "mealtime",
				},
				ResponseCode: "SUPPORT_NUTRITION",
				ActionNote:   "Offer mealtime strategies.",
			},
			{
				Category: "fallRisk",
				Patterns: []string{
					"fall", "unsteady", "balance", "tripped", "trip over",
				},
				ResponseCode: "SUPPORT_FALLS",
				ActionNote:   "Offer home safety strategies.",
			},
			{
				Category: "moodChanges",
				Patterns: []string{
					"depressed", "depression", "sad", "crying", "withdrawn", "anxious",
					"anxiety", "lonely", "mood", "apathy", "no interest",
				},
				ResponseCode: "SUPPORT_MOOD",
				ActionNote:   "Offer engagement strategies; suggest check-in if persistent.",
			},
			{
				Category: "caregiverStress",
				Patterns: []string{
					"stressed", "stress", "exhausted", "overwhelmed", "burnout", "burned out",
					"tired all the time", "need a break", "respite", "guilty", "frustrated",
				},
				ResponseCode: "SUPPORT_CAREGIVER",
				ActionNote:   "Validate feelings; suggest self-care and support.",
			},
		},
	},
}

// DefaultRegistry returns the built-in pattern catalogue.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRegistryVersion, defaultTiers)
	if err != nil {
		panic("safety: invalid built-in registry: " + err.Error())
	}
	return r
}
