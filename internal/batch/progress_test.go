package batch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
	reg := NewRegistry()
	reg.now = clock.now
	return reg, clock
}

func TestPercentageIsFloored(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 66},
		{3, 3, 100},
		{7, 8, 87},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := percentage(tc.completed, tc.total); got != tc.want {
			t.Fatalf("percentage(%d, %d) = %d, want %d", tc.completed, tc.total, got, tc.want)
		}
	}
}

func TestEstimatedRemainingExtrapolatesMeanItemTime(t *testing.T) {
	reg, clock := newTestRegistry()
	reg.create("t1", 5)
	if err := reg.start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, _ := reg.Progress("t1")
	if snap.EstimatedRemainingSeconds != nil {
		t.Fatalf("expected no ETA before the first item completes")
	}

	_ = reg.recordSuccess("t1", ItemResult{ItemID: "a"})
	_ = reg.recordFailure("t1", ItemError{ItemID: "b", Message: "x"})
	clock.t = clock.t.Add(10 * time.Second)

	snap, _ = reg.Progress("t1")
	if snap.EstimatedRemainingSeconds == nil || *snap.EstimatedRemainingSeconds != 15 {
		t.Fatalf("expected ETA 15s, got %v", snap.EstimatedRemainingSeconds)
	}
	if snap.Percentage != 40 {
		t.Fatalf("expected 40%%, got %d", snap.Percentage)
	}

	clock.t = clock.t.Add(1500 * time.Millisecond)
	snap, _ = reg.Progress("t1")
	if *snap.EstimatedRemainingSeconds != 17 {
		t.Fatalf("expected ETA truncated to 17s, got %d", *snap.EstimatedRemainingSeconds)
	}
}

func TestNoEstimateUnlessRunning(t *testing.T) {
	reg, clock := newTestRegistry()
	reg.create("t1", 2)
	_ = reg.start("t1")
	_ = reg.recordSuccess("t1", ItemResult{ItemID: "a"})
	_ = reg.recordSuccess("t1", ItemResult{ItemID: "b"})
	clock.t = clock.t.Add(time.Second)
	_ = reg.finish("t1")

	snap, _ := reg.Progress("t1")
	if snap.EstimatedRemainingSeconds != nil {
		t.Fatalf("expected no ETA for completed task")
	}
	if snap.FinishedAt == nil || !snap.FinishedAt.Equal(clock.t) {
		t.Fatalf("unexpected finished_at %v", snap.FinishedAt)
	}
}

func TestProgressUnknownTask(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Progress("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.create("t1", 2)
	_ = reg.start("t1")
	_ = reg.recordFailure("t1", ItemError{ItemID: "a", Message: "x"})
	_ = reg.recordSuccess("t1", ItemResult{ItemID: "b", Decision: "d"})
	_ = reg.finish("t1")

	snap, _ := reg.Progress("t1")
	snap.Errors[0].Message = "mutated"
	snap.Results[0].Decision = "mutated"

	again, _ := reg.Progress("t1")
	if again.Errors[0].Message != "x" || again.Results[0].Decision != "d" {
		t.Fatalf("registry state leaked through snapshot: %+v", again)
	}
}

func TestCountersCannotExceedTotal(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.create("t1", 1)
	_ = reg.start("t1")
	if err := reg.recordSuccess("t1", ItemResult{ItemID: "a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := reg.recordFailure("t1", ItemError{ItemID: "b"}); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected ErrCounterOverflow, got %v", err)
	}
}

func TestRecordRequiresRunningTask(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.create("t1", 1)
	if err := reg.recordSuccess("t1", ItemResult{}); !errors.Is(err, ErrTaskNotRunning) {
		t.Fatalf("expected ErrTaskNotRunning, got %v", err)
	}
}

func TestSweepRemovesExpiredTerminalTasks(t *testing.T) {
	reg, clock := newTestRegistry()
	reg.create("old", 1)
	_ = reg.start("old")
	_ = reg.recordSuccess("old", ItemResult{})
	_ = reg.finish("old")

	reg.create("failed", 1)
	_ = reg.fail("failed", "prepare")

	reg.create("running", 1)
	_ = reg.start("running")

	clock.t = clock.t.Add(25 * time.Hour)
	reg.create("fresh", 1)
	_ = reg.fail("fresh", "prepare")

	if active, terminal := reg.Counts(); active != 1 || terminal != 3 {
		t.Fatalf("expected 1 active and 3 terminal, got %d and %d", active, terminal)
	}

	if n := reg.Sweep(24 * time.Hour); n != 2 {
		t.Fatalf("expected 2 tasks swept, got %d", n)
	}
	for _, id := range []string{"old", "failed"} {
		if _, err := reg.Progress(id); !errors.Is(err, ErrTaskNotFound) {
			t.Fatalf("expected %s to be gone, got %v", id, err)
		}
	}
	for _, id := range []string{"running", "fresh"} {
		if _, err := reg.Progress(id); err != nil {
			t.Fatalf("expected %s to remain: %v", id, err)
		}
	}
}

func snapshotFields(t *testing.T, reg *Registry, id string) map[string]json.RawMessage {
	t.Helper()
	snap, err := reg.Progress(id)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return fields
}

func TestResultsArrayPresentOnceCompleted(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.create("t1", 2)
	_ = reg.start("t1")
	_ = reg.recordFailure("t1", ItemError{ItemID: "a", Message: "boom"})

	if _, ok := snapshotFields(t, reg, "t1")["results"]; ok {
		t.Fatalf("expected no results while running")
	}

	_ = reg.recordFailure("t1", ItemError{ItemID: "b", Message: "boom"})
	_ = reg.finish("t1")

	fields := snapshotFields(t, reg, "t1")
	if string(fields["status"]) != `"completed"` || string(fields["results"]) != "[]" {
		t.Fatalf("expected empty results array, got status %s results %s", fields["status"], fields["results"])
	}
}

func TestResultsOmittedForFailedBatch(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.create("t1", 1)
	_ = reg.fail("t1", "prepare")

	fields := snapshotFields(t, reg, "t1")
	if _, ok := fields["results"]; ok {
		t.Fatalf("expected no results for a failed batch")
	}
	if string(fields["error"]) != `"prepare"` {
		t.Fatalf("unexpected error field %s", fields["error"])
	}
}
