// Package capture runs a single job against a rendering backend.
//
// A job moves through the states Pending, Loading, Selecting (only with a
// selector), Rendering, Encoding, Writing and Done. Any failure moves it to
// Errored with an *Error describing the kind of failure; the job's temporary
// file, if any, is removed and no other job is affected.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multishot/internal/logging"
	"multishot/internal/namer"
)

// State is a step of the capture state machine.
type State int

const (
	StatePending State = iota
	StateLoading
	StateSelecting
	StateRendering
	StateEncoding
	StateWriting
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoading:
		return "loading"
	case StateSelecting:
		return "selecting"
	case StateRendering:
		return "rendering"
	case StateEncoding:
		return "encoding"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pipeline executes jobs. It holds no per-job state and is safe for
// concurrent use if its Backend is.
type Pipeline struct {
	backend Backend
	writer  *Writer
	logger  *logging.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a Pipeline. A nil logger discards log output.
func NewPipeline(backend Backend, writer *Writer, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Pipeline{
		backend: backend,
		writer:  writer,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run captures out.Job and writes it to out.Path. A returned error is always
// an *Error. The context deadline bounds the whole job; expiry is reported as
// a NavigationError.
func (p *Pipeline) Run(ctx context.Context, out namer.Output) error {
	j := out.Job
	log := p.logger.WithJob(j.Index, j.Label())
	state := StatePending

	enter := func(next State) {
		log.Debug("state transition", "from", state.String(), "to", next.String())
		state = next
	}
	fail := func(kind Kind, err error) error {
		// Deadline expiry surfaces as whatever the backend was doing; report
		// it as the navigation timeout it is. Encoding and writing never
		// consult ctx, so their errors keep their kind.
		if errors.Is(err, ErrBackendUnavailable) {
			kind = BackendError
		} else if ctxErr := ctx.Err(); ctxErr != nil && state <= StateRendering {
			kind = NavigationError
			err = fmt.Errorf("job did not finish in time: %w", ctxErr)
		}
		e := &Error{Kind: kind, State: state, Err: err}
		enter(StateErrored)
		log.Warn("capture failed", "kind", kind.String(), "error", err.Error())
		return e
	}

	enter(StateLoading)
	sess, err := p.backend.Open(ctx, OpenRequest{
		Target:            j.Target,
		Width:             j.Size.Width,
		Height:            j.Size.Height,
		ZoomFactor:        j.ZoomFactor,
		DeviceScaleFactor: j.DeviceScaleFactor,
		Flags:             j.ExtraFlags,
	})
	if err != nil {
		return fail(NavigationError, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug("failed to close session", "error", err.Error())
		}
	}()

	if err := sess.WaitLoaded(ctx); err != nil {
		return fail(NavigationError, err)
	}
	loadedAt := time.Now()
	if j.Delay > 0 {
		log.Debug("waiting after load", "delay_ms", j.Delay.Milliseconds())
		if err := p.sleep(ctx, j.Delay); err != nil {
			return fail(NavigationError, err)
		}
	}

	region := Rect{Width: float64(j.Size.Width), Height: float64(j.Size.Height)}
	if j.Selector != "" {
		enter(StateSelecting)
		box, found, err := sess.QuerySelector(ctx, j.Selector)
		if err != nil {
			return fail(BackendError, err)
		}
		if !found {
			return fail(SelectorNotFound, fmt.Errorf("no element matches %q", j.Selector))
		}
		if box.Empty() {
			return fail(SelectorNotFound, fmt.Errorf("element matching %q has an empty bounding box", j.Selector))
		}
		region = box
	}

	enter(StateRendering)
	img, err := sess.Capture(ctx, region)
	if err != nil {
		return fail(BackendError, err)
	}

	enter(StateEncoding)
	data, err := p.backend.Encode(img, j.Format, j.Quality)
	if err != nil {
		return fail(BackendError, fmt.Errorf("failed to encode %s: %w", j.Format, err))
	}

	enter(StateWriting)
	if err := p.writer.Write(out.Path, data); err != nil {
		return fail(WriteError, err)
	}

	enter(StateDone)
	log.Info("capture written",
		"path", out.Path,
		"bytes", len(data),
		"since_load_ms", time.Since(loadedAt).Milliseconds(),
	)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
