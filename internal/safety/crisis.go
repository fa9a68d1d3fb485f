package safety

// CodeEmergency is the generic crisis response used for unmapped codes.
const CodeEmergency = "CRISIS_EMERGENCY"

// CrisisResponse is pre-authored text shown instead of any model output.
type CrisisResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Resources []CrisisResource `json:"resources"`
}

// crisisTemplate is the static part of a response plus the resource slots it
// surfaces, in display order.
type crisisTemplate struct {
	message string
	slots   []ResourceKind
}

var crisisTemplates = map[string]crisisTemplate{
	CodeEmergency: {
		message: "This sounds like an emergency. Please contact emergency services now. " +
			"If you are not in immediate danger, a crisis line can help you talk through what is happening.",
		slots: []ResourceKind{ResourceEmergency, ResourceCrisisLine},
	},
	"CRISIS_SELF_HARM": {
		message: "I'm really sorry you're feeling this way. You deserve support right now, and you don't " +
			"have to face this alone. If you might act on these thoughts, please call emergency services. " +
			"You can also reach a trained crisis counselor at any time.",
		slots: []ResourceKind{ResourceEmergency, ResourceCrisisLine, ResourceCrisisText},
	},
	"CRISIS_HARM_TO_OTHERS": {
		message: "It sounds like someone may be at risk of being hurt. If anyone is in danger right now, " +
			"move to a safe place and call emergency services. When it is safe, a support line can help " +
			"you plan what to do next.",
		slots: []ResourceKind{ResourceEmergency, ResourceCrisisLine, ResourceCaregiverSupport},
	},
	"CRISIS_MEDICAL_EMERGENCY": {
		message: "This may be a medical emergency. Please call emergency services now and follow " +
			"the dispatcher's instructions. Stay with the person until help arrives.",
		slots: []ResourceKind{ResourceEmergency},
	},
	"CRISIS_ELDER_ABUSE": {
		message: "Thank you for telling me. If someone is in immediate danger, call emergency services. " +
			"Suspected abuse or neglect of an older adult can be reported confidentially.",
		slots: []ResourceKind{ResourceEmergency, ResourceElderAbuse, ResourceCrisisLine},
	},
	"CRISIS_MISSING_PERSON": {
		message: "A person living with memory loss who is missing needs help right away. Call emergency " +
			"services now and tell them the person has dementia. Have a recent photo ready and check " +
			"nearby places they used to go.",
		slots: []ResourceKind{ResourceEmergency, ResourceAlzheimerAssociation, ResourceCaregiverSupport},
	},
	"CRISIS_POISONING": {
		message: "If someone may have swallowed something harmful or taken too much of a medicine, " +
			"call poison control or emergency services right away. If they are unconscious or " +
			"having trouble breathing, call emergency services first.",
		slots: []ResourceKind{ResourceEmergency, ResourcePoisonControl},
	},
}

// CrisisResolver maps RED response codes to static, model-free responses.
type CrisisResolver struct {
	resources      *ResourceTable
	defaultCountry string
}

// NewCrisisResolver creates a resolver that localises to defaultCountry when
// no country is given.
func NewCrisisResolver(resources *ResourceTable, defaultCountry string) *CrisisResolver {
	if defaultCountry == "" {
		defaultCountry = DefaultCountry
	}
	return &CrisisResolver{resources: resources, defaultCountry: defaultCountry}
}

// Resolve returns the static response for a code, localised to the default
// country. Unmapped codes fall back to the generic emergency response.
func (r *CrisisResolver) Resolve(code string) CrisisResponse {
	return r.ResolveForCountry(code, "")
}

// ResolveForCountry returns the static response for a code with resources
// for the given ISO country code.
func (r *CrisisResolver) ResolveForCountry(code, country string) CrisisResponse {
	tmpl, ok := crisisTemplates[code]
	if !ok {
		code = CodeEmergency
		tmpl = crisisTemplates[CodeEmergency]
	}

	if country == "" {
		country = r.defaultCountry
	}
	entry := r.resources.ForCountry(country)

	resources := make([]CrisisResource, 0, len(tmpl.slots))
	for _, kind := range tmpl.slots {
		if resource, ok := entry.Slot(kind); ok {
			resources = append(resources, resource)
		}
	}
	// Emergency is always present, so this only guards a hand-built table
	if len(resources) == 0 {
		resources = append(resources, entry.Emergency)
	}

	return CrisisResponse{
		Code:      code,
		Message:   tmpl.message,
		Resources: resources,
	}
}

// HasResponse reports whether a code has its own template
func HasResponse(code string) bool {
	_, ok := crisisTemplates[code]
	return ok
}
