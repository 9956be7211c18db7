package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
)

// ErrStopped is returned by Submit once Wait has been called.
var ErrStopped = errors.New("worker: executor is stopped")

// Task is a unit of background work. Returned errors are logged, never
// propagated to the submitter.
type Task func(ctx context.Context) error

// Config contains the runtime settings of the executor.
type Config struct {
	// TaskTimeout bounds each task. Zero means no bound.
	TaskTimeout time.Duration
}

// Executor runs tasks detached from the request that submitted them and keeps
// track of them so shutdown can drain in-flight work.
type Executor struct {
	cfg    Config
	logger zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	group   errgroup.Group

	now func() time.Time
}

// NewExecutor constructs an executor.
func NewExecutor(cfg Config, logger zerolog.Logger) *Executor {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Executor{
		cfg:    cfg,
		logger: logger.With().Str("component", "executor").Logger(),
		base:   base,
		cancel: cancel,
		now:    time.Now,
	}
}

// Submit schedules task and returns immediately.
func (e *Executor) Submit(name string, task Task) error {
	if task == nil {
		return errors.New("worker: task is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return ErrStopped
	}

	e.group.Go(func() error {
		e.run(name, task)
		return nil
	})
	return nil
}

// Wait stops accepting tasks and blocks until in-flight tasks finish or ctx is
// done. When ctx ends first the remaining tasks are cancelled and ctx's error
// is returned.
func (e *Executor) Wait(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = e.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.Warn().Msg("worker: shutdown deadline reached; cancelling in-flight tasks")
		<-done
		return ctx.Err()
	}
}

func (e *Executor) run(name string, task Task) {
	ctx := e.base
	if e.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
		defer cancel()
	}

	start := e.now()
	logger := e.logger.With().Str("task", name).Logger()

	err := e.invoke(ctx, task)
	duration := e.now().Sub(start)
	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", string(faults.KindOf(err))).
			Dur("duration", duration).
			Msg("worker: task failed")
		return
	}
	logger.Debug().Dur("duration", duration).Msg("worker: task finished")
}

func (e *Executor) invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: task panicked: %v", r)
			e.logger.Error().Bytes("stack", debug.Stack()).Msg("worker: recovered panic")
		}
	}()
	return task(ctx)
}
