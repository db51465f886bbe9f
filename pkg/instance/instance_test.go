package instance

import "testing"

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("WORKER_ID", "worker-3")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", " ")
	t.Setenv("HOSTNAME", "")
	if got := GetID(); got != fallbackID {
		t.Fatalf("expected fallback id, got %q", got)
	}
}
