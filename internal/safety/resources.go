package safety

import (
	"fmt"
	"strings"
)

// DefaultCountry is the key of the mandatory fallback entry.
const DefaultCountry = "DEFAULT"

// ResourceKind names a crisis resource slot
type ResourceKind string

const (
	ResourceEmergency            ResourceKind = "emergency"
	ResourceCrisisLine           ResourceKind = "crisis_line"
	ResourceCrisisText           ResourceKind = "crisis_text"
	ResourceElderAbuse           ResourceKind = "elder_abuse"
	ResourceCaregiverSupport     ResourceKind = "caregiver_support"
	ResourceAlzheimerAssociation ResourceKind = "alzheimer_association"
	ResourcePoisonControl        ResourceKind = "poison_control"
)

// CrisisResource is one contact shown alongside a static crisis response.
type CrisisResource struct {
	Kind    ResourceKind `json:"kind"`
	Label   string       `json:"label"`
	Contact string       `json:"contact"`
}

// CountryResources holds the crisis contacts for one country. Emergency,
// CrisisLine and CaregiverSupport are required; the rest are optional.
type CountryResources struct {
	Country              string          `json:"country"`
	Emergency            CrisisResource  `json:"emergency"`
	CrisisLine           CrisisResource  `json:"crisis_line"`
	CrisisText           *CrisisResource `json:"crisis_text,omitempty"`
	ElderAbuse           *CrisisResource `json:"elder_abuse,omitempty"`
	CaregiverSupport     CrisisResource  `json:"caregiver_support"`
	AlzheimerAssociation *CrisisResource `json:"alzheimer_association,omitempty"`
	PoisonControl        *CrisisResource `json:"poison_control,omitempty"`
}

// Slot returns the resource for a kind, if the country has one
func (c CountryResources) Slot(kind ResourceKind) (CrisisResource, bool) {
	switch kind {
	case ResourceEmergency:
		return c.Emergency, true
	case ResourceCrisisLine:
		return c.CrisisLine, true
	case ResourceCaregiverSupport:
		return c.CaregiverSupport, true
	case ResourceCrisisText:
		return deref(c.CrisisText)
	case ResourceElderAbuse:
		return deref(c.ElderAbuse)
	case ResourceAlzheimerAssociation:
		return deref(c.AlzheimerAssociation)
	case ResourcePoisonControl:
		return deref(c.PoisonControl)
	}
	return CrisisResource{}, false
}

func deref(r *CrisisResource) (CrisisResource, bool) {
	if r == nil {
		return CrisisResource{}, false
	}
	return *r, true
}

// ResourceTable maps ISO country codes to crisis resources.
type ResourceTable struct {
	entries map[string]CountryResources
}

// NewResourceTable validates and indexes entries. A DEFAULT entry is required.
func NewResourceTable(entries []CountryResources) (*ResourceTable, error) {
	t := &ResourceTable{entries: make(map[string]CountryResources, len(entries))}
	for _, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Country))
		if code == "" {
			return nil, fmt.Errorf("crisis resource entry without country code")
		}
		if e.Emergency.Contact == "" {
			return nil, fmt.Errorf("country %s has no emergency contact", code)
		}
		e.Country = code
		t.entries[code] = e
	}
	if _, ok := t.entries[DefaultCountry]; !ok {
		return nil, fmt.Errorf("crisis resource table must contain a %s entry", DefaultCountry)
	}
	return t, nil
}

// ForCountry returns the entry for an ISO country code, falling back to
// DEFAULT for unknown or empty codes.
func (t *ResourceTable) ForCountry(country string) CountryResources {
	if e, ok := t.entries[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return e
	}
	return t.entries[DefaultCountry]
}

// Has reports whether a country has its own entry
func (t *ResourceTable) Has(country string) bool {
	_, ok := t.entries[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

func res(kind ResourceKind, label, contact string) CrisisResource {
	return CrisisResource{Kind: kind, Label: label, Contact: contact}
}

func resPtr(kind ResourceKind, label, contact string) *CrisisResource {
	r := res(kind, label, contact)
	return &r
}

var defaultCountryResources = []CountryResources{
	{
		Country:              "US",
		Emergency:            res(ResourceEmergency, "Emergency services", "911"),
		CrisisLine:           res(ResourceCrisisLine, "988 Suicide & Crisis Lifeline", "988"),
		CrisisText:           resPtr(ResourceCrisisText, "Crisis Text Line", "Text HOME to 741741"),
		ElderAbuse:           resPtr(ResourceElderAbuse, "Eldercare Locator (Adult Protective Services)", "1-800-677-1116"),
		CaregiverSupport:     res(ResourceCaregiverSupport, "Alzheimer's Association 24/7 Helpline", "1-800-272-3900"),
		AlzheimerAssociation: resPtr(ResourceAlzheimerAssociation, "Alzheimer's Association 24/7 Helpline", "1-800-272-3900"),
		PoisonControl:        resPtr(ResourcePoisonControl, "Poison Control", "1-800-222-1222"),
	},
	{
		Country:              "CA",
		Emergency:            res(ResourceEmergency, "Emergency services", "911"),
		CrisisLine:           res(ResourceCrisisLine, "9-8-8 Suicide Crisis Helpline", "988"),
		CrisisText:           resPtr(ResourceCrisisText, "9-8-8 by text", "Text 988"),
		CaregiverSupport:     res(ResourceCaregiverSupport, "Alzheimer Society of Canada", "1-855-705-4636"),
		AlzheimerAssociation: resPtr(ResourceAlzheimerAssociation, "Alzheimer Society of Canada", "1-855-705-4636"),
	},
	{
		Country:              "GB",
		Emergency:            res(ResourceEmergency, "Emergency services", "999"),
		CrisisLine:           res(ResourceCrisisLine, "Samaritans", "116 123"),
		CrisisText:           resPtr(ResourceCrisisText, "Shout", "Text SHOUT to 85258"),
		ElderAbuse:           resPtr(ResourceElderAbuse, "Hourglass Helpline", "0808 808 8141"),
		CaregiverSupport:     res(ResourceCaregiverSupport, "Carers UK Helpline", "0808 808 7777"),
		AlzheimerAssociation: resPtr(ResourceAlzheimerAssociation, "Dementia UK Admiral Nurse Helpline", "0800 888 6678"),
		PoisonControl:        resPtr(ResourcePoisonControl, "NHS 111", "111"),
	},
	{
		Country:              "IE",
		Emergency:            res(ResourceEmergency, "Emergency services", "112 or 999"),
		CrisisLine:           res(ResourceCrisisLine, "Samaritans", "116 123"),
		CrisisText:           resPtr(ResourceCrisisText, "Text About It", "Text HELLO to 50808"),
		CaregiverSupport:     res(ResourceCaregiverSupport, "Family Carers Ireland", "1800 24 07 24"),
		AlzheimerAssociation: resPtr(ResourceAlzheimerAssociation, "Alzheimer Society of Ireland Helpline", "1800 341 341"),
		PoisonControl:        resPtr(ResourcePoisonControl, "National Poisons Information Centre", "01 809 2166"),
	},
	{
		Country:              "AU",
		Emergency:            res(ResourceEmergency, "Emergency services", "000"),
		CrisisLine:           res(ResourceCrisisLine, "Lifeline", "13 11 14"),
		CrisisText:           resPtr(ResourceCrisisText, "Lifeline Text", "Text 0477 13 11 14"),
		ElderAbuse:           resPtr(ResourceElderAbuse, "Elder Abuse Phone Line", "1800 353 374"),
		CaregiverSupport:     res(ResourceCaregiverSupport, "Carer Gateway", "1800 422 737"),
		AlzheimerAssociation: resPtr(ResourceAlzheimerAssociation, "National Dementia Helpline", "1800 100 500"),
		PoisonControl:        resPtr(ResourcePoisonControl, "Poisons Information Centre", "13 11 26"),
	},
	{
		Country:          "NZ",
		Emergency:        res(ResourceEmergency, "Emergency services", "111"),
		CrisisLine:       res(ResourceCrisisLine, "Need to talk? (call or text)", "1737"),
		CaregiverSupport: res(ResourceCaregiverSupport, "Dementia New Zealand", "0800 433 636"),
		PoisonControl:    resPtr(ResourcePoisonControl, "National Poisons Centre", "0800 764 766"),
	},
	{
		Country:          DefaultCountry,
		Emergency:        res(ResourceEmergency, "Local emergency services", "Call your local emergency number (112 in many countries)"),
		CrisisLine:       res(ResourceCrisisLine, "Find a Helpline", "https://findahelpline.com"),
		CaregiverSupport: res(ResourceCaregiverSupport, "Alzheimer's Disease International", "https://www.alzint.org/resource/alzheimer-associations/"),
	},
}

// DefaultResources returns the built-in crisis resource table.
func DefaultResources() *ResourceTable {
	t, err := NewResourceTable(defaultCountryResources)
	if err != nil {
		panic("safety: invalid built-in resource table: " + err.Error())
	}
	return t
}
