package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "matrixconsole/pkg/logx"
)

func mustRule(t *testing.T, descriptor string) Rule {
	t.Helper()
	rule, err := ParseDescriptor(descriptor)
	if err != nil {
		t.Fatalf("ParseDescriptor(%q): %v", descriptor, err)
	}
	return rule
}

func noopAction(ctx context.Context) error { return nil }

func TestAddJobReplace(t *testing.T) {
	r := NewRunner("", logx.Nop())
	r.Start(context.Background())
	defer r.Stop(context.Background())

	if err := r.AddJob("X", "Update - daily", mustRule(t, "daily"), noopAction); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := r.AddJob("X", "Update - weekly", mustRule(t, "weekly"), noopAction); err != nil {
		t.Fatalf("AddJob replace: %v", err)
	}

	jobs := r.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after replace, got %d", len(jobs))
	}
	if jobs[0].Next.IsZero() {
		t.Fatal("expected non-zero next fire time")
	}
	// Only rule B (weekly, Sunday 03:00) may be observed.
	if got := jobs[0].Next.Weekday(); got != time.Sunday {
		t.Fatalf("next fire on %v, want Sunday", got)
	}
	if jobs[0].Name != "Update - weekly" {
		t.Fatalf("unexpected name %q", jobs[0].Name)
	}
}

func TestRemoveJobIdempotent(t *testing.T) {
	r := NewRunner("", logx.Nop())
	if err := r.AddJob("keep", "keep", mustRule(t, "daily"), noopAction); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	r.RemoveJob("never-existed")
	if got := len(r.Jobs()); got != 1 {
		t.Fatalf("unrelated job affected, have %d jobs", got)
	}

	r.RemoveJob("keep")
	r.RemoveJob("keep")
	if got := len(r.Jobs()); got != 0 {
		t.Fatalf("expected empty table, have %d jobs", got)
	}
}

func TestAtMostOneConcurrentPerID(t *testing.T) {
	r := NewRunner("", logx.Nop())

	var calls int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	action := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-release
		return nil
	}
	if err := r.AddJob("X", "x", mustRule(t, "daily"), action); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.fire("X")
		close(done)
	}()
	<-started

	// Second slot arrives while the first run is in flight: skipped, not queued.
	r.fire("X")
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("overlapping execution started: %d calls", got)
	}

	close(release)
	<-done

	// After completion the job fires again.
	r.fire("X")
	<-started
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls after completion, got %d", got)
	}
}

func TestFailingActionStaysRegistered(t *testing.T) {
	r := NewRunner("", logx.Nop())
	var calls int32
	action := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}
	if err := r.AddJob("X", "x", mustRule(t, "daily"), action); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	r.fire("X")
	if got := len(r.Jobs()); got != 1 {
		t.Fatalf("failing job was deregistered, have %d jobs", got)
	}
	// Still fires on the next slot.
	r.fire("X")
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestPanickingActionContained(t *testing.T) {
	r := NewRunner("", logx.Nop())
	action := func(ctx context.Context) error { panic("kaboom") }
	if err := r.AddJob("X", "x", mustRule(t, "daily"), action); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	r.fire("X") // must not propagate the panic
	if got := len(r.Jobs()); got != 1 {
		t.Fatalf("panicking job was deregistered, have %d jobs", got)
	}
}
