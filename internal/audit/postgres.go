package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, sequence, timestamp, hash, prev_hash,
	session_id, user_id, user_role,
	safety_level, trigger_category, ai_model_called, response_approved,
	post_process_violations, disclaimer_included, professional_referral_included,
	escalated_to_crisis, response_time_ms`

// PostgresSink stores entries in safety.audit_entries. The table has no
// update or delete path; a trigger rejects both.
type PostgresSink struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewPostgresSink creates a sink over an existing pool
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Initialize loads the last hash so new entries extend the existing chain
func (s *PostgresSink) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT hash FROM safety.audit_entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)

	if err != nil && err != pgx.ErrNoRows {
		return errors.Wrap(err, "failed to get last audit hash")
	}

	s.lastHash = hash
	return nil
}

// Append inserts an entry at the end of the chain
func (s *PostgresSink) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Seal(s.lastHash)

	violations, err := json.Marshal(nonNil(entry.PostProcessViolations))
	if err != nil {
		return errors.Wrap(err, "failed to marshal violations")
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO safety.audit_entries (
			id, timestamp, hash, prev_hash,
			session_id, user_id, user_role,
			safety_level, trigger_category, ai_model_called, response_approved,
			post_process_violations, disclaimer_included, professional_referral_included,
			escalated_to_crisis, response_time_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		) RETURNING sequence`,
		entry.ID, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.SessionID, entry.UserID, string(entry.UserRole),
		entry.SafetyLevel.String(), entry.TriggerCategory, entry.AIModelCalled, entry.ResponseApproved,
		violations, entry.DisclaimerIncluded, entry.ProfessionalReferralIncluded,
		entry.EscalatedToCrisis, entry.ResponseTimeMs,
	).Scan(&entry.Sequence)

	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	s.lastHash = entry.Hash
	return nil
}

// List lists entries newest first (read-only)
func (s *PostgresSink) List(ctx context.Context, filter Filter) ([]*Entry, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.SessionID != nil {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", argNum))
		args = append(args, *filter.SessionID)
		argNum++
	}

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
		args = append(args, *filter.UserID)
		argNum++
	}

	if filter.SafetyLevel != nil {
		conditions = append(conditions, fmt.Sprintf("safety_level = $%d", argNum))
		args = append(args, filter.SafetyLevel.String())
		argNum++
	}

	if filter.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argNum))
		args = append(args, *filter.StartTime)
		argNum++
	}

	if filter.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argNum))
		args = append(args, *filter.EndTime)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM safety.audit_entries %s", whereClause)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM safety.audit_entries
		%s
		ORDER BY sequence DESC
		LIMIT $%d OFFSET $%d`, entryColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	entries, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// VerifyChain recomputes content hashes and checks linkage over the most
// recent limit entries.
func (s *PostgresSink) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := s.query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM safety.audit_entries
		ORDER BY sequence DESC
		LIMIT $1`, entryColumns), limit)
	if err != nil {
		return nil, err
	}

	return verifyEntries(entries, includeDetails), nil
}

func (s *PostgresSink) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var role, level string
		var violations []byte

		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.SessionID, &e.UserID, &role,
			&level, &e.TriggerCategory, &e.AIModelCalled, &e.ResponseApproved,
			&violations, &e.DisclaimerIncluded, &e.ProfessionalReferralIncluded,
			&e.EscalatedToCrisis, &e.ResponseTimeMs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}

		e.UserRole = safety.Role(role)
		if e.SafetyLevel, err = safety.ParseLevel(level); err != nil {
			return nil, errors.Wrap(err, "invalid stored safety level")
		}
		if err := json.Unmarshal(violations, &e.PostProcessViolations); err != nil {
			e.PostProcessViolations = []string{}
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read audit entries")
	}

	return entries, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
