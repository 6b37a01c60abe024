package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/utils"
)

// TaskState lifecycle of a PeriodicTask
type TaskState string

const (
	TaskIdle     TaskState = "idle"
	TaskFetching TaskState = "fetching"
	TaskRetrying TaskState = "retrying"
	TaskPaused   TaskState = "paused"
)

var (
	// ErrStaleResult a newer cycle was issued while this one ran; its result was dropped
	ErrStaleResult = errors.New("stale poll result discarded")
	// ErrTaskPaused the task is stopped or the node is unreachable
	ErrTaskPaused = errors.New("poll task paused")
)

// TaskOptions schedule and retry policy of one PeriodicTask
type TaskOptions struct {
	Name        string
	Interval    time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// AttemptTimeout bounds a single fetch attempt. Zero means 30s.
	AttemptTimeout time.Duration
	// Probe runs before each cycle when set; a failing probe pauses the task
	Probe func(ctx context.Context) error
}

// PeriodicTask runs fetch on a schedule and keeps the latest successful result.
// Every cycle takes a generation number; only the latest generation may publish.
type PeriodicTask[T any] struct {
	opts  TaskOptions
	fetch func(ctx context.Context) (T, error)

	mu          sync.RWMutex
	state       TaskState
	snapshot    T
	hasSnapshot bool
	lastErr     error
	lastSuccess time.Time
	stopped     bool
	offline     bool
	listeners   []func(T)

	generation atomic.Uint64
	inFlight   atomic.Int32

	refreshCh chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	cycles    sync.WaitGroup
}

// NewPeriodicTask creates an idle task; nothing runs until Start or RunOnce
func NewPeriodicTask[T any](opts TaskOptions, fetch func(ctx context.Context) (T, error)) *PeriodicTask[T] {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	return &PeriodicTask[T]{
		opts:      opts,
		fetch:     fetch,
		state:     TaskIdle,
		refreshCh: make(chan struct{}, 1),
	}
}

// Name of the task, used in logs and metrics
func (t *PeriodicTask[T]) Name() string {
	return t.opts.Name
}

// OnUpdate registers fn to be called with each applied result
func (t *PeriodicTask[T]) OnUpdate(fn func(T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Start runs a cycle now and then every Interval until ctx is done or Shutdown is called
func (t *PeriodicTask[T]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	logrus.Infof("🚀 [%s] Polling every %v", t.opts.Name, t.opts.Interval)
	go t.loop(ctx)
}

func (t *PeriodicTask[T]) loop(ctx context.Context) {
	defer close(t.done)

	t.trigger(ctx)

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a slow cycle is not stacked on; Refresh is the way to supersede it
			if t.inFlight.Load() == 0 {
				t.trigger(ctx)
			}
		case <-t.refreshCh:
			t.trigger(ctx)
		}
	}
}

func (t *PeriodicTask[T]) trigger(ctx context.Context) {
	t.cycles.Add(1)
	go func() {
		defer t.cycles.Done()
		if err := t.RunOnce(ctx); err != nil && !errors.Is(err, ErrStaleResult) && !errors.Is(err, ErrTaskPaused) {
			logrus.WithFields(logrus.Fields{
				"task":  t.opts.Name,
				"error": err.Error(),
			}).Warn("⚠️ Poll cycle failed, keeping last snapshot")
		}
	}()
}

// Shutdown stops the schedule and waits for in-flight cycles
func (t *PeriodicTask[T]) Shutdown() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cycles.Wait()
	logrus.Infof("🛑 [%s] Polling stopped", t.opts.Name)
}

// Stop pauses scheduling. Cycles already running finish but their results are dropped.
func (t *PeriodicTask[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.state = TaskPaused
	t.generation.Add(1)
}

// Resume undoes Stop and refreshes right away
func (t *PeriodicTask[T]) Resume() {
	t.mu.Lock()
	t.stopped = false
	if t.state == TaskPaused {
		t.state = TaskIdle
	}
	t.mu.Unlock()
	t.Refresh()
}

// Refresh asks the running loop for an immediate cycle
func (t *PeriodicTask[T]) Refresh() {
	select {
	case t.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the last applied result and whether there is one
func (t *PeriodicTask[T]) Snapshot() (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot, t.hasSnapshot
}

func (t *PeriodicTask[T]) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// LastError is the error of the most recent failed cycle, cleared on success
func (t *PeriodicTask[T]) LastError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}

func (t *PeriodicTask[T]) LastSuccess() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSuccess
}

func (t *PeriodicTask[T]) setState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.state = s
	}
}

// RunOnce runs one cycle synchronously: probe, fetch with retries, then apply
// if no newer cycle has been issued in the meantime.
func (t *PeriodicTask[T]) RunOnce(ctx context.Context) error {
	t.inFlight.Add(1)
	defer t.inFlight.Add(-1)

	gen := t.generation.Add(1)

	t.mu.RLock()
	stopped := t.stopped
	t.mu.RUnlock()
	if stopped {
		metrics.PollCyclesTotal.WithLabelValues(t.opts.Name, "paused").Inc()
		return ErrTaskPaused
	}

	if t.opts.Probe != nil {
		if err := t.probe(ctx); err != nil {
			return err
		}
	}

	t.setState(TaskFetching)

	var result T
	attempt := 0
	op := func() error {
		if t.generation.Load() != gen {
			return backoff.Permanent(ErrStaleResult)
		}
		if attempt > 0 {
			t.setState(TaskRetrying)
			metrics.PollRetriesTotal.WithLabelValues(t.opts.Name).Inc()
		}
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, t.opts.AttemptTimeout)
		defer cancel()
		r, err := t.fetch(attemptCtx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(utils.NewExponentialBackoff(t.opts.BackoffBase, t.opts.BackoffMax), uint64(t.opts.MaxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, delay time.Duration) {
		logrus.Warnf("🔁 [%s] Attempt %d failed, retrying in %s: %v", t.opts.Name, attempt, delay.Round(time.Millisecond), err)
	})
	return t.apply(gen, result, err)
}

func (t *PeriodicTask[T]) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := t.opts.Probe(probeCtx)

	t.mu.Lock()
	wasOffline := t.offline
	t.offline = err != nil
	if err != nil && !t.stopped {
		t.state = TaskPaused
	}
	t.mu.Unlock()

	if err != nil {
		if !wasOffline {
			logrus.Warnf("⏸️ [%s] Node unreachable, pausing: %v", t.opts.Name, err)
		}
		metrics.PollCyclesTotal.WithLabelValues(t.opts.Name, "paused").Inc()
		return ErrTaskPaused
	}
	if wasOffline {
		logrus.Infof("▶️ [%s] Node reachable again, resuming", t.opts.Name)
	}
	return nil
}

func (t *PeriodicTask[T]) apply(gen uint64, result T, err error) error {
	t.mu.Lock()
	if gen != t.generation.Load() || errors.Is(err, ErrStaleResult) {
		t.mu.Unlock()
		metrics.PollCyclesTotal.WithLabelValues(t.opts.Name, "stale").Inc()
		return ErrStaleResult
	}
	if !t.stopped {
		t.state = TaskIdle
	}
	if err != nil {
		t.lastErr = err
		t.mu.Unlock()
		metrics.PollCyclesTotal.WithLabelValues(t.opts.Name, "failed").Inc()
		return err
	}

	t.snapshot = result
	t.hasSnapshot = true
	t.lastErr = nil
	t.lastSuccess = time.Now()
	listeners := append([]func(T){}, t.listeners...)
	t.mu.Unlock()

	metrics.PollCyclesTotal.WithLabelValues(t.opts.Name, "applied").Inc()
	metrics.PollLastSuccess.WithLabelValues(t.opts.Name).SetToCurrentTime()
	for _, fn := range listeners {
		fn(result)
	}
	return nil
}
