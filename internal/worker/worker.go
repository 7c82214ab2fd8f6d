// Package worker drives refresh cycles on a fixed interval and runs delayed
// one-shot follow-ups.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Start after Teardown.
var ErrStopped = errors.New("worker torn down")

type State int

const (
	Idle State = iota
	Running
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// CycleFunc runs one refresh cycle. initial is true only for the very first
// cycle the worker runs.
type CycleFunc func(ctx context.Context, initial bool)

type Worker struct {
	logger   *slog.Logger
	interval time.Duration
	cycle    CycleFunc

	mu         sync.Mutex
	state      State
	ranInitial bool
	life       context.Context
	endLife    context.CancelFunc
	stopLoop   context.CancelFunc
	loopDone   chan struct{}
	followUps  map[*time.Timer]struct{}
}

func NewWorker(logger *slog.Logger, interval time.Duration, cycle CycleFunc) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	life, end := context.WithCancel(context.Background())
	return &Worker{
		logger:    logger,
		interval:  interval,
		cycle:     cycle,
		life:      life,
		endLife:   end,
		followUps: make(map[*time.Timer]struct{}),
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start runs one cycle immediately and then one per interval until Stop or
// Teardown. Starting a running worker is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Stopped:
		return ErrStopped
	case Running:
		return nil
	}

	ctx, cancel := context.WithCancel(w.life)
	done := make(chan struct{})
	initial := !w.ranInitial
	w.ranInitial = true
	w.stopLoop = cancel
	w.loopDone = done
	w.state = Running

	go w.loop(ctx, done, initial)
	w.logger.Info("refresh worker started", "interval", w.interval)
	return nil
}

// loop ends when stop is cancelled. Cycles get the worker lifetime context
// instead, so a cycle in progress is only cancelled by Teardown.
func (w *Worker) loop(stop context.Context, done chan struct{}, initial bool) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cycle(w.life, initial)
	for {
		select {
		case <-stop.Done():
			return
		case <-ticker.C:
			w.cycle(w.life, false)
		}
	}
}

// Stop cancels the periodic trigger and waits for a cycle in progress to
// finish; its requests are not cancelled. Calling it on a worker that is not
// running does nothing. It must not be called from inside a CycleFunc.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return
	}
	w.state = Idle
	done := w.haltLocked()
	w.mu.Unlock()

	<-done
	w.logger.Info("refresh worker stopped")
}

func (w *Worker) haltLocked() chan struct{} {
	w.stopLoop()
	w.stopLoop = nil
	done := w.loopDone
	w.loopDone = nil
	return done
}

// Teardown moves the worker to its terminal state: the periodic trigger and
// every pending follow-up are cancelled and no cycle may start again.
func (w *Worker) Teardown() {
	w.mu.Lock()
	if w.state == Stopped {
		w.mu.Unlock()
		return
	}
	var done chan struct{}
	if w.state == Running {
		done = w.haltLocked()
	}
	w.state = Stopped
	for t := range w.followUps {
		t.Stop()
		delete(w.followUps, t)
	}
	w.endLife()
	w.mu.Unlock()

	if done != nil {
		<-done
	}
	w.logger.Info("refresh worker torn down")
}

// After runs fn once after d, independently of the periodic trigger. It
// reports false when the worker is already torn down.
func (w *Worker) After(d time.Duration, fn func(ctx context.Context)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Stopped {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		w.mu.Lock()
		if _, ok := w.followUps[t]; !ok {
			w.mu.Unlock()
			return
		}
		delete(w.followUps, t)
		ctx := w.life
		w.mu.Unlock()

		fn(ctx)
	})
	w.followUps[t] = struct{}{}
	return true
}

// Pending reports how many follow-ups have not fired yet.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.followUps)
}
