package capture

import (
	"context"
	"errors"
	"image"

	"multishot/internal/job"
)

// ErrBackendUnavailable marks backend failures that make the backend unusable
// for every remaining job, such as a browser that cannot be started or has
// crashed. Backends wrap it so the orchestrator can stop scheduling work.
var ErrBackendUnavailable = errors.New("rendering backend unavailable")

// Rect is a region in CSS pixels relative to the top-left of the document.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty reports whether the region has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// OpenRequest describes the document a session navigates to.
type OpenRequest struct {
	Target            string
	Width             int
	Height            int
	ZoomFactor        float64
	DeviceScaleFactor float64
	// Flags are backend-specific switches passed through from the job.
	Flags map[string]string
}

// Backend renders documents and encodes their pixels.
type Backend interface {
	// Open navigates a fresh, isolated session to the request target with
	// viewport and scale factors applied before first paint.
	Open(ctx context.Context, req OpenRequest) (Session, error)
	// Encode converts a captured buffer to the given format. quality only
	// affects jpg; 0 selects the encoder default.
	Encode(img image.Image, format job.Format, quality int) ([]byte, error)
}

// Session is one open document.
type Session interface {
	// WaitLoaded blocks until the document reports load completion.
	WaitLoaded(ctx context.Context) error
	// QuerySelector returns the bounding box of the first element matching
	// selector. found is false when nothing matches.
	QuerySelector(ctx context.Context, selector string) (box Rect, found bool, err error)
	// Capture returns the pixels of region. Output pixel dimensions are the
	// region size multiplied by the device scale factor.
	Capture(ctx context.Context, region Rect) (image.Image, error)
	Close() error
}
