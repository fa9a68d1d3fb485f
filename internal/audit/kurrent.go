package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/carecircle/guardrail/internal/shared/errors"
	"github.com/google/uuid"
)

const (
	// StreamName is the stream holding every safety audit entry
	StreamName = "safety-audit"
	// EventType is the event type of a safety audit entry
	EventType = "SafetyAuditEntry"
)

// KurrentSink appends entries to a KurrentDB stream. Streams are append-only
// by construction.
type KurrentSink struct {
	client   *esdb.Client
	stream   string
	mu       sync.Mutex
	lastHash string
	sequence int64
}

// NewKurrentSink creates a sink writing to StreamName
func NewKurrentSink(client *esdb.Client) *KurrentSink {
	return &KurrentSink{client: client, stream: StreamName}
}

// Initialize loads the last hash and sequence from the stream
func (s *KurrentSink) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.client.ReadStream(ctx, s.stream, esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}, 1)
	if err != nil {
		if isStreamNotFound(err) {
			s.lastHash, s.sequence = "", 0
			return nil
		}
		return errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		s.lastHash, s.sequence = "", 0
		return nil
	}

	if event.Event != nil && event.Event.EventType == EventType {
		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
			s.lastHash = entry.Hash
			s.sequence = entry.Sequence
		}
	}

	return nil
}

// Append appends an entry as a new event
func (s *KurrentSink) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Sequence = s.sequence + 1
	entry.Seal(s.lastHash)

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	eventData := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   EventType,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		Metadata: []byte(fmt.Sprintf(`{"sequence":%d,"hash":"%s","safety_level":"%s"}`,
			entry.Sequence, entry.Hash, entry.SafetyLevel)),
	}

	if _, err := s.client.AppendToStream(ctx, s.stream, esdb.AppendToStreamOptions{}, eventData); err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	s.sequence = entry.Sequence
	s.lastHash = entry.Hash
	return nil
}

// List reads the stream backwards and filters in memory
func (s *KurrentSink) List(ctx context.Context, filter Filter) ([]*Entry, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	all, err := s.readBackwards(ctx, 10000)
	if err != nil {
		return nil, 0, err
	}

	entries := []*Entry{}
	total := 0
	for _, entry := range all {
		if !filter.Matches(entry) {
			continue
		}
		total++
		if total <= filter.Offset || len(entries) >= limit {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, total, nil
}

// VerifyChain verifies the most recent limit entries
func (s *KurrentSink) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := s.readBackwards(ctx, uint64(limit))
	if err != nil {
		return nil, err
	}
	return verifyEntries(entries, includeDetails), nil
}

func (s *KurrentSink) readBackwards(ctx context.Context, max uint64) ([]*Entry, error) {
	stream, err := s.client.ReadStream(ctx, s.stream, esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}, max)
	if err != nil {
		if isStreamNotFound(err) {
			return []*Entry{}, nil
		}
		return nil, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	entries := []*Entry{}
	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != EventType {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
			entries = append(entries, &entry)
		}
	}
	return entries, nil
}

func isStreamNotFound(err error) bool {
	esdbErr, _ := esdb.FromError(err)
	return esdbErr != nil && esdbErr.Code() == esdb.ErrorCodeResourceNotFound
}
