package telemetry

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScopedAPI(t *testing.T) {
	recorder := &Recorder{}
	scoped := NewScopedAPI("fetch", NewScopedAPI("tracker", recorder))

	err := errors.New("forbidden")
	scoped.ReportWarning("client.fetch", "https://www.amazon.in/dp/B0CHX1W1XY", err)
	scoped.ReportBroken("client.session", err)
	scoped.ReportDebug("client.attempt", 1)
	scoped.ReportCount("client.blocked", 3)

	expected := []Report{{
		Kind:   "warning",
		ID:     "tracker: fetch: client.fetch",
		Params: []any{"https://www.amazon.in/dp/B0CHX1W1XY", err},
	}}
	diff := cmp.Diff(expected, recorder.Reports("warning", "client"), cmp.Comparer(func(a, b error) bool {
		return a == b
	}))
	if diff != "" {
		t.Fatal(diff)
	}

	if len(recorder.Reports("broken", "session")) != 1 {
		t.Fatal("expected a single broken report")
	}
	counts := recorder.Reports("count", "blocked")
	if len(counts) != 1 || counts[0].Params[0] != int64(3) {
		t.Fatalf("unexpected counts %v", counts)
	}
	if len(recorder.Reports("debug", "nothing")) != 0 {
		t.Fatal("expected no matching debug reports")
	}
}
