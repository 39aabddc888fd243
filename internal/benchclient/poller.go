package benchclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"justicebench/internal/batch"
	"justicebench/internal/shared/telemetry"
)

// DefaultPollInterval is the spacing between progress queries.
const DefaultPollInterval = time.Second

// ErrPollStopped is returned by Wait when the poll was stopped before the
// batch reached a terminal status.
var ErrPollStopped = errors.New("poll stopped before batch finished")

// ProgressSource fetches a batch snapshot.
type ProgressSource interface {
	GetProgress(ctx context.Context, taskID string) (batch.Snapshot, error)
}

// PollState is the lifecycle of one Poll.
type PollState string

const (
	PollIdle      PollState = "idle"
	PollPolling   PollState = "polling"
	PollCompleted PollState = "completed"
	PollFailed    PollState = "failed"
	PollStopped   PollState = "stopped"
)

// Poller tracks at most one batch at a time.
type Poller struct {
	Source   ProgressSource
	Interval time.Duration

	mu      sync.Mutex
	current *Poll
}

// NewPoller constructs a Poller with the default interval.
func NewPoller(src ProgressSource) *Poller {
	return &Poller{Source: src, Interval: DefaultPollInterval}
}

// Poll is one running progress loop.
type Poll struct {
	TaskID string

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	mu    sync.Mutex
	state PollState
	last  batch.Snapshot
	seen  bool
}

// Start begins polling taskID, stopping any poll already running. onUpdate
// receives every snapshot, in order, from the polling goroutine. The first
// query is made immediately.
func (p *Poller) Start(taskID string, onUpdate func(batch.Snapshot)) *Poll {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	poll := &Poll{
		TaskID: taskID,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  PollPolling,
	}

	p.mu.Lock()
	previous := p.current
	p.current = poll
	p.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}

	go poll.run(ctx, p.Source, interval, onUpdate)
	return poll
}

// Stop ends the current poll, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// State reports the current poll's state, or PollIdle when none was started.
func (p *Poller) State() PollState {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return PollIdle
	}
	return current.State()
}

func (pl *Poll) run(ctx context.Context, src ProgressSource, interval time.Duration, onUpdate func(batch.Snapshot)) {
	defer close(pl.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if pl.query(ctx, src, onUpdate) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// query fetches one snapshot and reports whether polling is over.
func (pl *Poll) query(ctx context.Context, src ProgressSource, onUpdate func(batch.Snapshot)) bool {
	snap, err := src.GetProgress(ctx, pl.TaskID)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		telemetry.Warn("poller.query_failed", map[string]any{
			"task_id":   pl.TaskID,
			"not_found": IsNotFound(err),
			"error":     err.Error(),
		})
		return false
	}

	pl.mu.Lock()
	pl.last = snap
	pl.seen = true
	terminal := snap.Status.Terminal()
	if terminal {
		pl.state = PollCompleted
		if snap.Status == batch.StatusFailed {
			pl.state = PollFailed
		}
	}
	pl.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snap)
	}
	if terminal {
		pl.stopOnce.Do(pl.cancel)
	}
	return terminal
}

// Stop ends the loop. It is safe to call more than once and never affects
// the batch on the server.
func (pl *Poll) Stop() {
	pl.stopOnce.Do(func() {
		pl.mu.Lock()
		if pl.state == PollPolling {
			pl.state = PollStopped
		}
		pl.mu.Unlock()
		pl.cancel()
	})
}

// Done is closed when the loop has exited.
func (pl *Poll) Done() <-chan struct{} {
	return pl.done
}

// State reports the poll's lifecycle state.
func (pl *Poll) State() PollState {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.state
}

// Last returns the most recent snapshot and whether one has been received.
func (pl *Poll) Last() (batch.Snapshot, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.last, pl.seen
}

// Wait blocks until the loop exits or ctx is done and returns the final
// snapshot.
func (pl *Poll) Wait(ctx context.Context) (batch.Snapshot, error) {
	select {
	case <-pl.done:
	case <-ctx.Done():
		return batch.Snapshot{}, ctx.Err()
	}
	snap, _ := pl.Last()
	switch pl.State() {
	case PollCompleted, PollFailed:
		return snap, nil
	}
	return snap, ErrPollStopped
}
