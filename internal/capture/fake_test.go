package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"

	"multishot/internal/job"
)

// fakeBackend renders a solid image whose colour depends on the captured
// region, so different clips produce different bytes.
type fakeBackend struct {
	mu     sync.Mutex
	events []string

	openErr    error
	loadErr    error
	blockLoad  bool
	boxes      map[string]Rect
	captureErr error
	encodeErr  error
	// onEncode runs before encoding, e.g. to expire the job deadline.
	onEncode func()
}

func (b *fakeBackend) record(ev string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *fakeBackend) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *fakeBackend) Open(ctx context.Context, req OpenRequest) (Session, error) {
	b.record("open")
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fakeSession{backend: b, req: req}, nil
}

func (b *fakeBackend) Encode(img image.Image, format job.Format, quality int) ([]byte, error) {
	b.record("encode")
	if b.onEncode != nil {
		b.onEncode()
	}
	if b.encodeErr != nil {
		return nil, b.encodeErr
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type fakeSession struct {
	backend *fakeBackend
	req     OpenRequest
}

func (s *fakeSession) WaitLoaded(ctx context.Context) error {
	s.backend.record("loaded")
	if s.backend.blockLoad {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.backend.loadErr
}

func (s *fakeSession) QuerySelector(ctx context.Context, selector string) (Rect, bool, error) {
	s.backend.record("query " + selector)
	box, ok := s.backend.boxes[selector]
	return box, ok, nil
}

func (s *fakeSession) Capture(ctx context.Context, region Rect) (image.Image, error) {
	s.backend.record("capture")
	if s.backend.captureErr != nil {
		return nil, s.backend.captureErr
	}
	w := int(region.Width * s.req.DeviceScaleFactor)
	h := int(region.Height * s.req.DeviceScaleFactor)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: uint8(region.X), G: uint8(region.Y), B: uint8(region.Width), A: 255}
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img, nil
}

func (s *fakeSession) Close() error {
	s.backend.record("close")
	return nil
}
