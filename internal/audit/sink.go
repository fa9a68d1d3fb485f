package audit

import "context"

// Sink is an insert-only store for safety audit entries. Implementations
// set the chain fields (Sequence, PrevHash, Hash) and must serialise their
// own appends.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
}

// Reader is implemented by sinks that support compliance review.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]*Entry, int, error)
	VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error)
}

// NopSink discards entries; the local log line is the only record.
type NopSink struct{}

// Append implements Sink
func (NopSink) Append(context.Context, *Entry) error { return nil }

var (
	_ Sink   = (*PostgresSink)(nil)
	_ Reader = (*PostgresSink)(nil)
	_ Sink   = (*KurrentSink)(nil)
	_ Reader = (*KurrentSink)(nil)
	_ Sink   = (*JSONLSink)(nil)
	_ Sink   = NopSink{}
)
