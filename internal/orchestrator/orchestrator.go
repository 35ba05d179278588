// Package orchestrator runs every job of an invocation through the capture
// pipeline and collects the outcome of each.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"multishot/internal/capture"
	"multishot/internal/logging"
	"multishot/internal/namer"
)

// Default limits.
const (
	DefaultConcurrency = 1
	DefaultTimeout     = 30 * time.Second
)

// Runner executes one resolved output. *capture.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, out namer.Output) error
}

// Options controls scheduling.
type Options struct {
	// Concurrency bounds how many jobs capture at once. Values below 1 mean
	// DefaultConcurrency.
	Concurrency int
	// Timeout is the deadline of each job. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *logging.Logger
}

// Outcome is the result of one job. Err is nil when the job reached Done.
type Outcome struct {
	Output   namer.Output
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Result collects the outcomes of a run in job order.
type Result struct {
	Outcomes []Outcome
	// Fatal is set when the backend became unusable and remaining jobs were
	// not attempted.
	Fatal error
}

// Failed returns the outcomes that did not reach Done.
func (r *Result) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// OK reports whether every job succeeded.
func (r *Result) OK() bool {
	return r.Fatal == nil && len(r.Failed()) == 0
}

// Run executes outputs with at most opts.Concurrency jobs in flight. A failed
// job never cancels its siblings. If a job fails because the backend is
// unavailable, jobs that have not started yet are marked as skipped with a
// BackendError. Cancelling ctx stops jobs that have not started.
func Run(ctx context.Context, runner Runner, outputs []namer.Output, opts Options) *Result {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	result := &Result{Outcomes: make([]Outcome, len(outputs))}
	var fatal atomic.Pointer[error]

	p := pool.New().WithMaxGoroutines(opts.Concurrency)
	for i, out := range outputs {
		p.Go(func() {
			o := Outcome{Output: out}
			defer func() { result.Outcomes[i] = o }()

			if errp := fatal.Load(); errp != nil {
				o.Skipped = true
				o.Err = &capture.Error{
					Kind:  capture.BackendError,
					State: capture.StatePending,
					Err:   fmt.Errorf("not attempted: %w", *errp),
				}
				return
			}
			if err := ctx.Err(); err != nil {
				o.Skipped = true
				o.Err = &capture.Error{Kind: capture.NavigationError, State: capture.StatePending, Err: err}
				return
			}

			jobCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()

			start := time.Now()
			o.Err = runner.Run(jobCtx, out)
			o.Duration = time.Since(start)

			if errors.Is(o.Err, capture.ErrBackendUnavailable) {
				err := o.Err
				if fatal.CompareAndSwap(nil, &err) {
					logger.Error("rendering backend unavailable, skipping remaining jobs", "error", err.Error())
				}
			}
		})
	}
	p.Wait()

	if errp := fatal.Load(); errp != nil {
		result.Fatal = *errp
	}

	logger.Info("run finished",
		"jobs", len(outputs),
		"failed", len(result.Failed()),
	)
	return result
}
