// Package browser implements the capture backend on headless Chrome using
// chromedp.
//
// One Chrome process is started per distinct set of extra command-line flags
// and shared by every job using that set. Each job runs in its own browser
// context, so cookies, storage and navigation state never leak between jobs.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"maps"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"multishot/internal/capture"
	"multishot/internal/job"
	"multishot/internal/logging"
)

// Options configures the Chrome backend.
type Options struct {
	// ChromePath overrides binary discovery; see ResolveChromePath.
	ChromePath string
	Logger     *logging.Logger
}

// Backend drives Chrome over the DevTools protocol. It is safe for
// concurrent use.
type Backend struct {
	chromePath string
	logger     *logging.Logger

	mu       sync.Mutex
	browsers map[string]*browserProc
	closed   bool
}

type browserProc struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var _ capture.Backend = (*Backend)(nil)

// New creates a Backend. No browser is started until the first Open.
func New(opts Options) *Backend {
	path := ResolveChromePath(opts.ChromePath)
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Backend{
		chromePath: path,
		logger:     logger,
		browsers:   make(map[string]*browserProc),
	}
}

// Close terminates every browser the backend started.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, p := range b.browsers {
		p.cancel()
		p.allocCancel()
		delete(b.browsers, key)
	}
	b.closed = true
	return nil
}

// Encode implements capture.Backend.
func (b *Backend) Encode(img image.Image, format job.Format, quality int) ([]byte, error) {
	return Encode(img, format, quality)
}

// browserFor returns the running browser for flags, starting it if needed.
func (b *Backend) browserFor(flags map[string]string) (*browserProc, error) {
	key := flagKey(flags)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("backend closed: %w", capture.ErrBackendUnavailable)
	}
	if p, ok := b.browsers[key]; ok {
		if p.ctx.Err() == nil {
			return p, nil
		}
		return nil, fmt.Errorf("browser exited: %w", capture.ErrBackendUnavailable)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dbus", true),
	)
	if b.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.chromePath))
	}
	opts = append(opts, flagOptions(flags)...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Running with no actions starts the browser.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser (install Chrome/Chromium or set CHROME_BIN): %w: %w", capture.ErrBackendUnavailable, err)
	}
	b.logger.Debug("browser started", "chrome_path", b.chromePath, "flags", key)

	p := &browserProc{ctx: ctx, cancel: cancel, allocCancel: allocCancel}
	b.browsers[key] = p
	return p, nil
}

// flagKey is a stable identity for a flag set.
func flagKey(flags map[string]string) string {
	keys := slices.Sorted(maps.Keys(flags))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + flags[k]
	}
	return strings.Join(parts, " ")
}

// flagOptions turns pass-through job flags into Chrome switches. "true" and
// "false" become boolean switches; anything else is passed as a value.
func flagOptions(flags map[string]string) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(flags))
	for _, name := range slices.Sorted(maps.Keys(flags)) {
		switch v := flags[name]; v {
		case "true":
			opts = append(opts, chromedp.Flag(name, true))
		case "false":
			opts = append(opts, chromedp.Flag(name, false))
		default:
			opts = append(opts, chromedp.Flag(name, v))
		}
	}
	return opts
}

// unavailable wraps err with ErrBackendUnavailable when the browser process
// behind p has gone away.
func unavailable(p *browserProc, err error) error {
	if p.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", capture.ErrBackendUnavailable, err)
	}
	return err
}

// Open implements capture.Backend.
func (b *Backend) Open(ctx context.Context, req capture.OpenRequest) (capture.Session, error) {
	proc, err := b.browserFor(req.Flags)
	if err != nil {
		return nil, err
	}

	target, err := TargetURL(req.Target)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(proc.ctx, chromedp.WithNewBrowserContext())
	stop := context.AfterFunc(ctx, tabCancel)
	s := &session{
		ctx:  tabCtx,
		proc: proc,
		close: func() {
			stop()
			tabCancel()
		},
	}

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(req.Width), int64(req.Height), chromedp.EmulateScale(req.DeviceScaleFactor)),
	}
	if req.ZoomFactor != 1 {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(zoomScript(req.ZoomFactor)).Do(ctx)
			return err
		}))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		s.Close()
		return nil, unavailable(proc, fmt.Errorf("failed to prepare page: %w", err))
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(target))
	if err != nil {
		s.Close()
		return nil, unavailable(proc, fmt.Errorf("failed to load %s: %w", target, err))
	}
	if resp != nil && resp.Status >= 400 {
		s.Close()
		return nil, fmt.Errorf("failed to load %s: HTTP %d %s", target, resp.Status, resp.StatusText)
	}

	return s, nil
}

// zoomScript scales page layout the way browser zoom does, applied as soon
// as the root element exists so the first paint is already zoomed.
func zoomScript(zoom float64) string {
	return fmt.Sprintf(`(() => {
  const apply = () => { if (document.documentElement) document.documentElement.style.zoom = %q; };
  apply();
  document.addEventListener('DOMContentLoaded', apply);
})();`, fmt.Sprint(zoom))
}

// TargetURL converts a capture target into a URL. Targets with a scheme are
// used as-is; anything else is treated as a local file path.
func TargetURL(target string) (string, error) {
	if u, err := url.Parse(target); err == nil && len(u.Scheme) > 1 {
		return target, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String(), nil
}

type session struct {
	ctx   context.Context
	proc  *browserProc
	close func()
	once  sync.Once
}

func (s *session) WaitLoaded(ctx context.Context) error {
	var ready bool
	err := chromedp.Run(s.ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &ready, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return unavailable(s.proc, fmt.Errorf("page did not finish loading: %w", err))
	}
	return nil
}

type elementBox struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *session) QuerySelector(ctx context.Context, selector string) (capture.Rect, bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return capture.Rect{}, false, err
	}
	script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  return {found: true, x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height};
})()`, quoted)

	var box elementBox
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &box)); err != nil {
		return capture.Rect{}, false, unavailable(s.proc, fmt.Errorf("failed to query %q: %w", selector, err))
	}
	if !box.Found {
		return capture.Rect{}, false, nil
	}
	return capture.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, true, nil
}

func (s *session) Capture(ctx context.Context, region capture.Rect) (image.Image, error) {
	var buf []byte
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      region.X,
				Y:      region.Y,
				Width:  region.Width,
				Height: region.Height,
				Scale:  1,
			}).
			WithCaptureBeyondViewport(true).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, unavailable(s.proc, fmt.Errorf("screenshot failed: %w", err))
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

func (s *session) Close() error {
	s.once.Do(s.close)
	return nil
}
