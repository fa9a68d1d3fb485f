package logging

import "testing"

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production", ""} {
		logger, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}
}
