package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/types"
)

// canonicalJSON produces deterministic JSON with sorted map keys so the hash
// is stable across Go map iteration and JSONB key reordering.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// Entry is one safety decision. It never holds message or response text.
type Entry struct {
	ID        types.ID  `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	// Attribution
	SessionID types.ID    `json:"session_id"`
	UserID    types.ID    `json:"user_id"`
	UserRole  safety.Role `json:"user_role"`

	// Decision trail
	SafetyLevel                  safety.Level `json:"safety_level"`
	TriggerCategory              string       `json:"trigger_category,omitempty"`
	AIModelCalled                bool         `json:"ai_model_called"`
	ResponseApproved             bool         `json:"response_approved"`
	PostProcessViolations        []string     `json:"post_process_violations"`
	DisclaimerIncluded           bool         `json:"disclaimer_included"`
	ProfessionalReferralIncluded bool         `json:"professional_referral_included"`
	EscalatedToCrisis            bool         `json:"escalated_to_crisis"`
	ResponseTimeMs               int64        `json:"response_time_ms"`
}

// NewEntry creates an entry stamped with a fresh ID and the current time.
// Chain fields are filled in by the sink that persists it.
func NewEntry(sessionID, userID types.ID, role safety.Role, level safety.Level) *Entry {
	return &Entry{
		ID:                    types.NewID(),
		Timestamp:             time.Now().UTC().Truncate(time.Microsecond), // PostgreSQL precision
		SessionID:             sessionID,
		UserID:                userID,
		UserRole:              role,
		SafetyLevel:           level,
		PostProcessViolations: []string{},
	}
}

// calculateHash hashes the entry content with canonical JSON. The timestamp
// is always formatted in UTC so verification is timezone independent.
func (e *Entry) calculateHash() string {
	violations := e.PostProcessViolations
	if violations == nil {
		violations = []string{}
	}

	data := map[string]any{
		"id":                             e.ID,
		"timestamp":                      e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash":                      e.PrevHash,
		"session_id":                     e.SessionID,
		"user_id":                        e.UserID,
		"user_role":                      e.UserRole,
		"safety_level":                   e.SafetyLevel.String(),
		"ai_model_called":                e.AIModelCalled,
		"response_approved":              e.ResponseApproved,
		"post_process_violations":        violations,
		"disclaimer_included":            e.DisclaimerIncluded,
		"professional_referral_included": e.ProfessionalReferralIncluded,
		"escalated_to_crisis":            e.EscalatedToCrisis,
		"response_time_ms":               e.ResponseTimeMs,
	}
	if e.TriggerCategory != "" {
		data["trigger_category"] = e.TriggerCategory
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// Seal links the entry to prevHash and computes its hash
func (e *Entry) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.Hash = e.calculateHash()
}

// VerifyHash verifies the entry's hash
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.calculateHash()
}

// ComputeHash computes and returns the correct hash for this entry
func (e *Entry) ComputeHash() string {
	return e.calculateHash()
}

// Filter narrows audit listings for compliance review
type Filter struct {
	SessionID   *types.ID     `json:"session_id,omitempty"`
	UserID      *types.ID     `json:"user_id,omitempty"`
	SafetyLevel *safety.Level `json:"safety_level,omitempty"`
	StartTime   *time.Time    `json:"start_time,omitempty"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	Offset      int           `json:"offset,omitempty"`
}

// Matches reports whether an entry passes the filter's predicates. Limit and
// offset are applied by the caller.
func (f Filter) Matches(e *Entry) bool {
	if f.SessionID != nil && e.SessionID != *f.SessionID {
		return false
	}
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.SafetyLevel != nil && e.SafetyLevel != *f.SafetyLevel {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// VerifyResult contains chain verification results
type VerifyResult struct {
	Valid          bool                `json:"valid"`
	Checked        int                 `json:"checked"`
	ContentValid   int                 `json:"content_valid"`
	ContentInvalid int                 `json:"content_invalid"`
	LinkageValid   int                 `json:"linkage_valid"`
	LinkageInvalid int                 `json:"linkage_invalid"`
	Violations     []string            `json:"violations,omitempty"`
	Entries        []VerifyEntryResult `json:"entries,omitempty"`
}

// VerifyEntryResult is the verification result for a single entry
type VerifyEntryResult struct {
	ID            types.ID `json:"id"`
	Sequence      int64    `json:"sequence"`
	Hash          string   `json:"hash"`
	ComputedHash  string   `json:"computed_hash,omitempty"`
	PrevHash      string   `json:"prev_hash"`
	Valid         bool     `json:"valid"`
	ContentValid  bool     `json:"content_valid"`
	LinkageValid  bool     `json:"linkage_valid"`
	ViolationType string   `json:"violation_type,omitempty"` // content, linkage, both
}

// verifyEntries checks content hashes and prev_hash linkage of entries given
// newest first.
func verifyEntries(entries []*Entry, includeDetails bool) *VerifyResult {
	result := &VerifyResult{Valid: true, Checked: len(entries)}

	for i, e := range entries {
		detail := VerifyEntryResult{
			ID:           e.ID,
			Sequence:     e.Sequence,
			Hash:         e.Hash,
			PrevHash:     e.PrevHash,
			ContentValid: true,
			LinkageValid: true,
			Valid:        true,
		}

		computed := e.ComputeHash()
		detail.ComputedHash = computed
		if computed != e.Hash {
			detail.ContentValid = false
			detail.Valid = false
			detail.ViolationType = "content"
			result.ContentInvalid++
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("CONTENT TAMPERED: entry %s (seq %d) stored hash doesn't match content", e.ID, e.Sequence))
		} else {
			result.ContentValid++
		}

		// entries[i+1] is the entry written just before e
		if i < len(entries)-1 {
			older := entries[i+1]
			if e.PrevHash != older.Hash {
				detail.LinkageValid = false
				detail.Valid = false
				if detail.ViolationType == "content" {
					detail.ViolationType = "both"
				} else {
					detail.ViolationType = "linkage"
				}
				result.LinkageInvalid++
				result.Valid = false
				result.Violations = append(result.Violations,
					fmt.Sprintf("CHAIN BROKEN: entry %d prev_hash doesn't match entry %d hash", e.Sequence, older.Sequence))
			} else {
				result.LinkageValid++
			}
		} else {
			result.LinkageValid++
		}

		if includeDetails {
			result.Entries = append(result.Entries, detail)
		}
	}

	return result
}
