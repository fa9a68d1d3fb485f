package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/auth"
	"github.com/carecircle/guardrail/internal/shared/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEntry(level safety.Level) *Entry {
	e := NewEntry(types.NewID(), types.NewID(), safety.RoleCaregiver, level)
	e.TriggerCategory = "sleepDisturbance"
	e.AIModelCalled = true
	e.ResponseApproved = true
	e.ResponseTimeMs = 42
	return e
}

func TestNewEntry(t *testing.T) {
	e := newTestEntry(safety.LevelYellow)

	if e.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if e.PostProcessViolations == nil {
		t.Error("Expected non-nil violations")
	}
	if e.Timestamp.Location() != time.UTC {
		t.Error("Expected UTC timestamp")
	}
	if e.Timestamp.Nanosecond()%1000 != 0 {
		t.Error("Expected microsecond precision")
	}
}

func TestEntryNeverSerialisesContent(t *testing.T) {
	data, err := json.Marshal(newTestEntry(safety.LevelGreen))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"message", "text", "response", "prompt"} {
		if _, ok := fields[key]; ok {
			t.Errorf("Entry must not carry %q", key)
		}
	}
	if fields["safety_level"] != "GREEN" {
		t.Errorf("Expected level name, got %v", fields["safety_level"])
	}
}

func TestSealAndVerifyHash(t *testing.T) {
	e := newTestEntry(safety.LevelOrange)
	e.Seal("")

	if e.Hash == "" {
		t.Fatal("Expected hash")
	}
	if !e.VerifyHash() {
		t.Error("Expected hash to verify")
	}

	tests := []struct {
		name   string
		tamper func(*Entry)
	}{
		{"approval flipped", func(e *Entry) { e.ResponseApproved = false }},
		{"level lowered", func(e *Entry) { e.SafetyLevel = safety.LevelGreen }},
		{"violation added", func(e *Entry) { e.PostProcessViolations = []string{"GR-005: dehumanizing language"} }},
		{"timing changed", func(e *Entry) { e.ResponseTimeMs = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *e
			tt.tamper(&c)
			if c.VerifyHash() {
				t.Error("Expected tampering to be detected")
			}
		})
	}
}

func TestHashIgnoresTimezone(t *testing.T) {
	e := newTestEntry(safety.LevelGreen)
	e.Seal("abc")

	loc := time.FixedZone("UTC+2", 2*60*60)
	e.Timestamp = e.Timestamp.In(loc)
	if !e.VerifyHash() {
		t.Error("Expected hash to be timezone independent")
	}
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	a := map[string]any{"z": 1, "a": []any{map[string]any{"y": true, "b": "x"}}, "m": "n"}
	b := map[string]any{"m": "n", "a": []any{map[string]any{"b": "x", "y": true}}, "z": 1}

	ja, err := canonicalJSON(a)
	if err != nil {
		t.Fatal(err)
	}
	jb, err := canonicalJSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ja) != string(jb) {
		t.Errorf("Expected identical output, got %s and %s", ja, jb)
	}
	if string(ja) != `{"a":[{"b":"x","y":true}],"m":"n","z":1}` {
		t.Errorf("Unexpected canonical form %s", ja)
	}
}

func buildChain(n int) []*Entry {
	entries := make([]*Entry, n)
	prev := ""
	for i := 0; i < n; i++ {
		e := newTestEntry(safety.LevelYellow)
		e.Sequence = int64(i + 1)
		e.Seal(prev)
		prev = e.Hash
		entries[i] = e
	}
	// newest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func TestVerifyEntries(t *testing.T) {
	t.Run("valid chain", func(t *testing.T) {
		result := verifyEntries(buildChain(5), true)
		if !result.Valid || result.Checked != 5 || result.ContentValid != 5 || result.LinkageValid != 5 {
			t.Errorf("Unexpected result %+v", result)
		}
		if len(result.Entries) != 5 {
			t.Errorf("Expected details for 5 entries, got %d", len(result.Entries))
		}
	})

	t.Run("content tampered", func(t *testing.T) {
		chain := buildChain(5)
		chain[2].EscalatedToCrisis = true
		result := verifyEntries(chain, false)
		if result.Valid || result.ContentInvalid != 1 {
			t.Errorf("Expected one content violation, got %+v", result)
		}
		if len(result.Entries) != 0 {
			t.Error("Expected no details")
		}
	})

	t.Run("entry removed", func(t *testing.T) {
		chain := buildChain(5)
		chain = append(chain[:2], chain[3:]...)
		result := verifyEntries(chain, true)
		if result.Valid || result.LinkageInvalid != 1 {
			t.Errorf("Expected one linkage violation, got %+v", result)
		}
		if result.Entries[1].ViolationType != "linkage" {
			t.Errorf("Expected linkage violation, got %q", result.Entries[1].ViolationType)
		}
	})
}

func TestFilterMatches(t *testing.T) {
	e := newTestEntry(safety.LevelRed)
	other := types.NewID()
	red, green := safety.LevelRed, safety.LevelGreen
	before := e.Timestamp.Add(-time.Minute)
	after := e.Timestamp.Add(time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"session match", Filter{SessionID: &e.SessionID}, true},
		{"session mismatch", Filter{SessionID: &other}, false},
		{"level match", Filter{SafetyLevel: &red}, true},
		{"level mismatch", Filter{SafetyLevel: &green}, false},
		{"window", Filter{StartTime: &before, EndTime: &after}, true},
		{"too early", Filter{StartTime: &after}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestJSONLSinkChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "safety.jsonl")

	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink failed: %v", err)
	}

	first := newTestEntry(safety.LevelGreen)
	second := newTestEntry(safety.LevelRed)
	if err := sink.Append(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	sink.Close()

	if second.PrevHash != first.Hash || second.Sequence != 2 {
		t.Errorf("Expected second entry linked to first, got seq=%d prev=%s", second.Sequence, second.PrevHash)
	}

	// reopening continues the chain
	sink, err = NewJSONLSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	third := newTestEntry(safety.LevelYellow)
	if err := sink.Append(context.Background(), third); err != nil {
		t.Fatal(err)
	}
	if third.PrevHash != second.Hash || third.Sequence != 3 {
		t.Errorf("Expected chain to continue, got seq=%d", third.Sequence)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("Expected 3 lines, got %d", lines)
	}
}

func TestJSONLSinkRecoversTornTail(t *testing.T) {
	tests := []struct {
		name string
		tail string
	}{
		{"intact file", ""},
		{"partial line", `{"id":"0f4e","sequence":2,"ha`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "safety.jsonl")

			sink, err := NewJSONLSink(path)
			if err != nil {
				t.Fatalf("NewJSONLSink failed: %v", err)
			}
			first := newTestEntry(safety.LevelGreen)
			if err := sink.Append(context.Background(), first); err != nil {
				t.Fatal(err)
			}
			sink.Close()

			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := f.WriteString(tt.tail); err != nil {
				t.Fatal(err)
			}
			f.Close()

			sink, err = NewJSONLSink(path)
			if err != nil {
				t.Fatal(err)
			}
			second := newTestEntry(safety.LevelOrange)
			if err := sink.Append(context.Background(), second); err != nil {
				t.Fatal(err)
			}
			sink.Close()
			if second.PrevHash != first.Hash || second.Sequence != 2 {
				t.Fatalf("Expected chain from last valid entry, got seq=%d", second.Sequence)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			var last Entry
			if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
				t.Fatalf("Expected appended entry on its own line: %v", err)
			}
			if last.Hash != second.Hash {
				t.Errorf("Expected last line hash %s, got %s", second.Hash, last.Hash)
			}

			// a further reopen still sees the appended entry
			sink, err = NewJSONLSink(path)
			if err != nil {
				t.Fatal(err)
			}
			defer sink.Close()
			third := newTestEntry(safety.LevelYellow)
			if err := sink.Append(context.Background(), third); err != nil {
				t.Fatal(err)
			}
			if third.PrevHash != second.Hash || third.Sequence != 3 {
				t.Errorf("Expected chain to continue from appended entry, got seq=%d", third.Sequence)
			}
		})
	}
}

// recordingSink collects entries and can be made to fail or block
type recordingSink struct {
	mu      sync.Mutex
	entries []*Entry
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *recordingSink) Append(ctx context.Context, e *Entry) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestLoggerPersistsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := &recordingSink{}
	logger := NewLogger(sink, zap.New(core), LoggerConfig{QueueSize: 8, Workers: 2})

	for i := 0; i < 5; i++ {
		logger.LogSafetyEvent(newTestEntry(safety.LevelYellow))
	}
	if err := logger.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if sink.count() != 5 {
		t.Errorf("Expected 5 persisted entries, got %d", sink.count())
	}
	if n := logs.FilterMessage("safety decision").Len(); n != 5 {
		t.Errorf("Expected 5 local log lines, got %d", n)
	}
}

func TestLoggerSwallowsSinkFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{err: errors.New("database unavailable")}
	logger := NewLogger(sink, zap.New(core), LoggerConfig{QueueSize: 4, Workers: 1})

	logger.LogSafetyEvent(newTestEntry(safety.LevelRed))
	if err := logger.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if n := logs.FilterMessage("failed to persist audit entry").Len(); n != 1 {
		t.Errorf("Expected one warning, got %d", n)
	}
}

func TestLoggerDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{started: make(chan struct{}, 4), release: make(chan struct{})}
	logger := NewLogger(sink, zap.New(core), LoggerConfig{QueueSize: 1, Workers: 1})

	logger.LogSafetyEvent(newTestEntry(safety.LevelGreen))
	<-sink.started // worker is now blocked inside Append

	logger.LogSafetyEvent(newTestEntry(safety.LevelGreen)) // queued

	done := make(chan struct{})
	go func() {
		logger.LogSafetyEvent(newTestEntry(safety.LevelGreen)) // dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogSafetyEvent blocked on a full queue")
	}

	if n := logs.FilterMessage("audit queue full, entry not persisted").Len(); n != 1 {
		t.Errorf("Expected one drop warning, got %d", n)
	}

	close(sink.release)
	if err := logger.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sink.count() != 2 {
		t.Errorf("Expected 2 persisted entries, got %d", sink.count())
	}
}

func TestLoggerAfterClose(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := NewLogger(nil, zap.New(core), LoggerConfig{})
	logger.Close(context.Background())

	logger.LogSafetyEvent(newTestEntry(safety.LevelGreen))
	if logs.FilterMessage("audit logger closed, entry not persisted").Len() != 1 {
		t.Error("Expected warning for entry logged after close")
	}
}

type fakeReader struct {
	filter Filter
	result *VerifyResult
}

func (f *fakeReader) List(_ context.Context, filter Filter) ([]*Entry, int, error) {
	f.filter = filter
	return []*Entry{newTestEntry(safety.LevelRed)}, 1, nil
}

func (f *fakeReader) VerifyChain(context.Context, int, bool) (*VerifyResult, error) {
	return f.result, nil
}

func TestHandler(t *testing.T) {
	reader := &fakeReader{result: &VerifyResult{Valid: true, Checked: 3}}

	t.Run("list with filters", func(t *testing.T) {
		router := NewHandler(reader, true).Routes()
		req := httptest.NewRequest(http.MethodGet, "/?safety_level=red&session_id=s-1&limit=10", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if reader.filter.SafetyLevel == nil || *reader.filter.SafetyLevel != safety.LevelRed {
			t.Error("Expected level filter")
		}
		if reader.filter.SessionID == nil || *reader.filter.SessionID != "s-1" {
			t.Error("Expected session filter")
		}
		if reader.filter.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", reader.filter.Limit)
		}
	})

	t.Run("bad level", func(t *testing.T) {
		router := NewHandler(reader, true).Routes()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?safety_level=purple", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("verify", func(t *testing.T) {
		router := NewHandler(reader, true).Routes()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

		var result VerifyResult
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatal(err)
		}
		if !result.Valid || result.Checked != 3 {
			t.Errorf("Unexpected result %+v", result)
		}
	})

	t.Run("forbidden outside dev mode", func(t *testing.T) {
		router := NewHandler(reader, false).Routes()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("auditor outside dev mode", func(t *testing.T) {
		router := NewHandler(reader, false).Routes()

		for _, tt := range []struct {
			user *auth.User
			want int
		}{
			{&auth.User{ID: "c1", Role: safety.RoleCaregiver}, http.StatusForbidden},
			{&auth.User{ID: "a1", Roles: []string{auth.RoleSafetyAuditor}}, http.StatusOK},
		} {
			req := httptest.NewRequest(http.MethodGet, "/verify", nil)
			req = req.WithContext(auth.WithUser(req.Context(), tt.user))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("user %s: expected %d, got %d", tt.user.ID, tt.want, rec.Code)
			}
		}
	})
}
