package batch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"justicebench/internal/shared/telemetry"
)

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("case-%02d", i)
	}
	return ids
}

func echoCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		return ItemResult{Title: "title " + itemID, Decision: "decision " + itemID}, nil
	})
}

func mustProgress(t *testing.T, reg *Registry, id string) Snapshot {
	t.Helper()
	snap, err := reg.Progress(id)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	return snap
}

func TestSubmitFiftyItemsAllSucceed(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 50)

	taskID, err := pool.Submit(context.Background(), itemIDs(50), echoCapability())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if snap.Completed != 50 || snap.Total != 50 || snap.Success != 50 || snap.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", snap.Percentage)
	}
	if snap.EstimatedRemainingSeconds != nil {
		t.Fatalf("expected no ETA once completed")
	}
	if snap.FinishedAt == nil {
		t.Fatalf("expected finished_at")
	}
	if len(snap.Results) != 50 {
		t.Fatalf("expected 50 results, got %d", len(snap.Results))
	}
	seen := make(map[string]bool)
	for _, r := range snap.Results {
		if r.Decision != "decision "+r.ItemID {
			t.Fatalf("result %q carries decision %q", r.ItemID, r.Decision)
		}
		seen[r.ItemID] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 distinct item ids, got %d", len(seen))
	}
}

func TestPartialFailureStillCompletes(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 8)
	ids := itemIDs(20)

	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		switch itemID {
		case "case-03":
			return ItemResult{}, &ItemFailure{Title: "借款合同纠纷", Err: errors.New("model timeout")}
		case "case-07":
			panic("boom")
		case "case-11":
			return ItemResult{}, errors.New("case text missing")
		}
		return ItemResult{Decision: "ok"}, nil
	})

	taskID, err := pool.Submit(context.Background(), ids, capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.Status, snap.Error)
	}
	if snap.Success != 17 || snap.Failed != 3 || snap.Completed != 20 {
		t.Fatalf("unexpected counters: success=%d failed=%d completed=%d", snap.Success, snap.Failed, snap.Completed)
	}
	if len(snap.Results) != 17 || len(snap.Errors) != 3 {
		t.Fatalf("expected 17 results and 3 errors, got %d and %d", len(snap.Results), len(snap.Errors))
	}

	byID := make(map[string]ItemError)
	for _, e := range snap.Errors {
		byID[e.ItemID] = e
	}
	if got := byID["case-03"]; got.ItemTitle != "借款合同纠纷" || got.Message != "model timeout" {
		t.Fatalf("unexpected titled error: %+v", got)
	}
	if got := byID["case-07"]; got.Message != "panic: boom" {
		t.Fatalf("unexpected panic error: %+v", got)
	}
	if got := byID["case-11"]; got.Message != "case text missing" {
		t.Fatalf("unexpected plain error: %+v", got)
	}
}

func TestAllItemsFailingIsStillCompleted(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 4)
	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		return ItemResult{}, errors.New("unavailable")
	})

	taskID, err := pool.Submit(context.Background(), itemIDs(5), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Status != StatusCompleted || snap.Failed != 5 || snap.Success != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(snap.Results))
	}
}

type recordingSink struct {
	mu      sync.Mutex
	taskIDs map[string]string
}

func (s *recordingSink) RecordResult(ctx context.Context, taskID string, result ItemResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskIDs[result.ItemID] = taskID
}

func TestResultSinkReceivesOnlySuccesses(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 3)
	sink := &recordingSink{taskIDs: map[string]string{}}
	pool.SetResultSink(sink)

	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		if itemID == "case-01" {
			return ItemResult{}, errors.New("unavailable")
		}
		return ItemResult{Decision: "ok"}, nil
	})
	taskID, err := pool.Submit(context.Background(), itemIDs(4), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	want := map[string]string{"case-00": taskID, "case-02": taskID, "case-03": taskID}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !reflect.DeepEqual(sink.taskIDs, want) {
		t.Fatalf("sink got %v, want %v", sink.taskIDs, want)
	}
}

func TestConcurrencyIsBoundedByMaxWorkers(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 4)

	var active, peak int32
	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return ItemResult{}, nil
	})

	if _, err := pool.Submit(context.Background(), itemIDs(24), capability); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	if got := atomic.LoadInt32(&peak); got > 4 {
		t.Fatalf("expected at most 4 concurrent items, saw %d", got)
	}
}

func TestSubmitReturnsBeforeItemsRun(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 2)
	release := make(chan struct{})
	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		<-release
		return ItemResult{}, nil
	})

	taskID, err := pool.Submit(context.Background(), itemIDs(3), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := mustProgress(t, reg, taskID)
	if snap.Status.Terminal() || snap.Completed != 0 || snap.Total != 3 {
		t.Fatalf("expected an unfinished task, got %+v", snap)
	}
	if snap.Results != nil {
		t.Fatalf("expected no results before completion")
	}

	close(release)
	pool.Wait()
	if got := mustProgress(t, reg, taskID); got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestProgressIsMonotonicWhileRunning(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 3)
	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		time.Sleep(2 * time.Millisecond)
		if itemID == "case-05" {
			return ItemResult{}, errors.New("bad")
		}
		return ItemResult{}, nil
	})

	taskID, err := pool.Submit(context.Background(), itemIDs(30), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	last := -1
	for {
		snap := mustProgress(t, reg, taskID)
		if snap.Completed < last {
			t.Fatalf("completed went backwards: %d -> %d", last, snap.Completed)
		}
		if snap.Completed != snap.Success+snap.Failed {
			t.Fatalf("completed %d != success %d + failed %d", snap.Completed, snap.Success, snap.Failed)
		}
		if snap.Completed > snap.Total {
			t.Fatalf("completed %d exceeds total %d", snap.Completed, snap.Total)
		}
		if snap.Status != StatusCompleted && snap.Results != nil {
			t.Fatalf("results exposed before completion")
		}
		last = snap.Completed
		if snap.Status.Terminal() {
			break
		}
		select {
		case <-done:
		case <-time.After(time.Millisecond):
		}
	}
	<-done
}

func TestTerminalSnapshotIsStable(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 5)
	taskID, err := pool.Submit(context.Background(), itemIDs(5), echoCapability())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	first := mustProgress(t, reg, taskID)
	if err := reg.recordSuccess(taskID, ItemResult{ItemID: "late"}); !errors.Is(err, ErrTaskTerminal) {
		t.Fatalf("expected ErrTaskTerminal, got %v", err)
	}
	if err := reg.fail(taskID, "late"); !errors.Is(err, ErrTaskTerminal) {
		t.Fatalf("expected ErrTaskTerminal, got %v", err)
	}
	second := mustProgress(t, reg, taskID)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("terminal snapshot changed:\n%+v\n%+v", first, second)
	}
}

func TestSubmissionErrorsCreateNoTask(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 5)

	cases := []struct {
		name       string
		items      []string
		capability Capability
		want       error
	}{
		{name: "empty", items: nil, capability: echoCapability(), want: ErrEmptySubmission},
		{name: "blank", items: []string{"a", "  "}, capability: echoCapability(), want: ErrMalformedItem},
		{name: "duplicate", items: []string{"a", "b", "a"}, capability: echoCapability(), want: ErrMalformedItem},
		{name: "nil capability", items: []string{"a"}, capability: nil, want: ErrNilCapability},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			taskID, err := pool.Submit(context.Background(), tc.items, tc.capability)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsSubmissionError(err) {
				t.Fatalf("expected a submission error")
			}
			if taskID != "" {
				t.Fatalf("expected no task id, got %q", taskID)
			}
		})
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if len(reg.tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(reg.tasks))
	}
}

type preparingCapability struct {
	CapabilityFunc
	prepare func(ctx context.Context, itemIDs []string) error
}

func (p preparingCapability) Prepare(ctx context.Context, itemIDs []string) error {
	return p.prepare(ctx, itemIDs)
}

func TestPrepareFailureFailsWholeBatch(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 5)
	var ran int32
	capability := preparingCapability{
		CapabilityFunc: func(ctx context.Context, itemID string) (ItemResult, error) {
			atomic.AddInt32(&ran, 1)
			return ItemResult{}, nil
		},
		prepare: func(ctx context.Context, itemIDs []string) error {
			return errors.New("case store unavailable")
		},
	}

	taskID, err := pool.Submit(context.Background(), itemIDs(4), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.Error != "case store unavailable" {
		t.Fatalf("unexpected failure reason %q", snap.Error)
	}
	if snap.Completed != 0 || atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("expected no items to run")
	}
}

func TestPreparePanicFailsWholeBatch(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 5)
	capability := preparingCapability{
		CapabilityFunc: func(ctx context.Context, itemID string) (ItemResult, error) {
			return ItemResult{}, nil
		},
		prepare: func(ctx context.Context, itemIDs []string) error {
			panic("nil map")
		},
	}

	taskID, err := pool.Submit(context.Background(), itemIDs(2), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Status != StatusFailed || snap.Error != "dispatcher panic: nil map" {
		t.Fatalf("unexpected snapshot: status=%s error=%q", snap.Status, snap.Error)
	}
}

func TestBatchOutlivesRequestContext(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(reg, 2)

	ctx, cancel := context.WithCancel(telemetry.WithRequestID(context.Background(), "req-1"))
	var mu sync.Mutex
	var seen []string
	capability := CapabilityFunc(func(ctx context.Context, itemID string) (ItemResult, error) {
		if err := ctx.Err(); err != nil {
			return ItemResult{}, err
		}
		mu.Lock()
		seen = append(seen, telemetry.RequestID(ctx))
		mu.Unlock()
		return ItemResult{}, nil
	})

	taskID, err := pool.Submit(ctx, itemIDs(3), capability)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()
	pool.Wait()

	snap := mustProgress(t, reg, taskID)
	if snap.Success != 3 {
		t.Fatalf("expected all items to succeed after cancel, got %+v", snap)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(seen))
	}
	for _, id := range seen {
		if id != "req-1" {
			t.Fatalf("expected request id to propagate, got %q", id)
		}
	}
}
