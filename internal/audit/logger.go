package audit

import (
	"context"
	"sync"
	"time"

	"github.com/carecircle/guardrail/internal/shared/metrics"
	"go.uber.org/zap"
)

// LoggerConfig sizes the asynchronous write path
type LoggerConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// DefaultLoggerConfig returns the settings used when none are configured
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{QueueSize: 1024, Workers: 2, WriteTimeout: 5 * time.Second}
}

// Logger records safety decisions. Every call writes a local log line
// synchronously and hands the entry to background workers for the durable
// sink. Sink failures are logged and counted, never returned.
type Logger struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	queue   chan *Entry
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewLogger starts cfg.Workers goroutines draining into sink
func NewLogger(sink Sink, log *zap.Logger, cfg LoggerConfig) *Logger {
	def := DefaultLoggerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if sink == nil {
		sink = NopSink{}
	}

	l := &Logger{
		sink:    sink,
		log:     log.Named("safety_audit"),
		timeout: cfg.WriteTimeout,
		queue:   make(chan *Entry, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}

	return l
}

// LogSafetyEvent records entry without blocking the caller. The entry must not
// be modified after the call.
func (l *Logger) LogSafetyEvent(entry *Entry) {
	if entry == nil {
		return
	}

	l.log.Info("safety decision",
		zap.String("entry_id", entry.ID.String()),
		zap.String("session_id", entry.SessionID.String()),
		zap.String("user_id", entry.UserID.String()),
		zap.String("user_role", string(entry.UserRole)),
		zap.Stringer("safety_level", entry.SafetyLevel),
		zap.String("trigger_category", entry.TriggerCategory),
		zap.Bool("ai_model_called", entry.AIModelCalled),
		zap.Bool("response_approved", entry.ResponseApproved),
		zap.Strings("post_process_violations", entry.PostProcessViolations),
		zap.Bool("disclaimer_included", entry.DisclaimerIncluded),
		zap.Bool("professional_referral_included", entry.ProfessionalReferralIncluded),
		zap.Bool("escalated_to_crisis", entry.EscalatedToCrisis),
		zap.Int64("response_time_ms", entry.ResponseTimeMs),
	)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.log.Warn("audit logger closed, entry not persisted", zap.String("entry_id", entry.ID.String()))
		metrics.RecordAuditWrite("dropped")
		return
	}

	select {
	case l.queue <- entry:
	default:
		l.log.Warn("audit queue full, entry not persisted", zap.String("entry_id", entry.ID.String()))
		metrics.RecordAuditWrite("dropped")
	}
}

func (l *Logger) worker() {
	defer l.wg.Done()

	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		err := l.sink.Append(ctx, entry)
		cancel()

		if err != nil {
			l.log.Warn("failed to persist audit entry",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err))
			metrics.RecordAuditWrite("failed")
			continue
		}
		metrics.RecordAuditWrite("ok")
	}
}

// Close stops accepting entries and waits for queued ones to be written, or
// for ctx to expire.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
