package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carecircle/guardrail/internal/ai"
	"github.com/carecircle/guardrail/internal/audit"
	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/metrics"
	"github.com/carecircle/guardrail/internal/shared/types"
	"go.uber.org/zap"
)

// EventLogger records one audit entry per processed message
type EventLogger interface {
	LogSafetyEvent(entry *audit.Entry)
}

// Request is one inbound message from a care circle member
type Request struct {
	SessionID types.ID
	UserID    types.ID
	Role      safety.Role
	Message   string
	// Country localises crisis resources; empty uses the configured default
	Country string
}

// Response is what the user is shown. Text is always approved content: the
// model reply after post-processing, a static crisis response, or the
// blocked-response fallback.
type Response struct {
	Text               string                 `json:"text"`
	SafetyLevel        safety.Level           `json:"safety_level"`
	TriggerCategory    string                 `json:"trigger_category,omitempty"`
	Blocked            bool                   `json:"blocked"`
	Crisis             *safety.CrisisResponse `json:"crisis,omitempty"`
	DisclaimerIncluded bool                   `json:"disclaimer_included"`
	ReferralTarget     string                 `json:"referral_target,omitempty"`
	AuditEntryID       types.ID               `json:"audit_entry_id"`
}

// Pipeline runs a message through the pre-processing gate, the model and
// the golden rule enforcer, and audits the outcome.
type Pipeline struct {
	gate         *safety.Gate
	enforcer     *safety.Enforcer
	model        ai.Completer
	audit        EventLogger
	log          *zap.Logger
	modelTimeout time.Duration
	now          func() time.Time
}

// NewPipeline creates a pipeline. modelTimeout bounds each model call.
func NewPipeline(gate *safety.Gate, enforcer *safety.Enforcer, model ai.Completer, auditLog EventLogger, log *zap.Logger, modelTimeout time.Duration) *Pipeline {
	return &Pipeline{
		gate:         gate,
		enforcer:     enforcer,
		model:        model,
		audit:        auditLog,
		log:          log.Named("chat"),
		modelTimeout: modelTimeout,
		now:          time.Now,
	}
}

// Process handles one message. It never fails: model errors degrade to the
// fallback text and audit failures are handled by the audit logger.
func (p *Pipeline) Process(ctx context.Context, req Request) Response {
	start := p.now()

	pre := p.gate.PreProcessForCountry(req.Message, req.Role, req.Country)
	level := pre.SafetyLevel
	metrics.RecordClassification(level.String())

	entry := audit.NewEntry(req.SessionID, req.UserID, req.Role, level)
	entry.TriggerCategory = pre.Classification.TriggerCategory

	resp := Response{
		SafetyLevel:     level,
		TriggerCategory: pre.Classification.TriggerCategory,
		AuditEntryID:    entry.ID,
	}
	if pre.Classification.ReferralTarget != nil {
		resp.ReferralTarget = *pre.Classification.ReferralTarget
	}

	if !pre.Proceed {
		resp.Text = pre.StaticResponse.Message
		resp.Crisis = pre.StaticResponse
		entry.EscalatedToCrisis = true
		entry.ResponseApproved = true
		p.finish(entry, start)
		return resp
	}

	entry.AIModelCalled = true
	aiText, err := p.complete(ctx, req.Message, pre.ContextInjection)
	if err != nil {
		p.log.Warn("model call failed, using fallback",
			zap.String("entry_id", entry.ID.String()),
			zap.Stringer("safety_level", level),
			zap.Error(err))

		resp.Text = safety.BlockedResponseFallback
		resp.Blocked = true
		entry.ResponseApproved = false
		entry.ProfessionalReferralIncluded = true
		p.finish(entry, start)
		return resp
	}

	post := p.enforcer.PostProcess(aiText, level, req.Role, pre.Disclaimer)
	metrics.RecordPostProcess(post.Approved)
	for _, v := range post.Violations {
		metrics.RecordViolation(safety.ViolationRule(v))
	}

	// FinalText is already the fallback when post.Approved is false
	resp.Text = post.FinalText
	resp.Blocked = !post.Approved
	resp.DisclaimerIncluded = post.DisclaimerAppended

	entry.ResponseApproved = post.Approved
	entry.PostProcessViolations = post.Violations
	entry.DisclaimerIncluded = post.DisclaimerAppended
	entry.ProfessionalReferralIncluded = !post.Approved || level == safety.LevelOrange

	p.finish(entry, start)
	return resp
}

func (p *Pipeline) complete(ctx context.Context, prompt, contextInjection string) (string, error) {
	if p.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.modelTimeout)
		defer cancel()
	}

	text, err := p.model.Complete(ctx, prompt, contextInjection)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordModelCall("timeout")
		return "", err
	case err != nil:
		metrics.RecordModelCall("error")
		return "", err
	case strings.TrimSpace(text) == "":
		metrics.RecordModelCall("error")
		return "", ai.ErrEmptyCompletion
	}

	metrics.RecordModelCall("ok")
	return text, nil
}

func (p *Pipeline) finish(entry *audit.Entry, start time.Time) {
	elapsed := p.now().Sub(start)
	entry.ResponseTimeMs = elapsed.Milliseconds()
	metrics.ObservePipeline(entry.SafetyLevel.String(), elapsed)
	p.audit.LogSafetyEvent(entry)
}
