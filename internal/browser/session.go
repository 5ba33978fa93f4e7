// -- internal/browser/session.go --
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
	"github.com/Mukuloli/browser-automation-1/internal/config"
)

// Session owns one Chrome instance and the executor bound to it. A process
// runs at most one session at a time; the interaction registry enforces that.
type Session struct {
	id       string
	cfg      config.BrowserConfig
	logger   *zap.Logger
	exec     Executor
	cancels  []context.CancelFunc
	closeMu  sync.Mutex
	closed   bool
	viewport schemas.Viewport
}

// NewSession launches Chrome, applies viewport emulation and returns a ready
// session. The parent context bounds the whole browser lifetime.
func NewSession(parentCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", sessionID))

	vp := schemas.Viewport{Width: cfg.ViewportWidth(), Height: cfg.ViewportHeight()}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(vp.Width, vp.Height),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &Session{
		id:       sessionID,
		cfg:      cfg,
		logger:   log,
		cancels:  []context.CancelFunc{browserCancel, allocCancel},
		viewport: vp,
	}

	// Starting the browser eagerly surfaces launch failures here instead of
	// on the first action.
	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height))); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	s.exec = newCDPExecutor(browserCtx, log)
	log.Info("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", vp.Width),
		zap.Int("viewport_height", vp.Height),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Executor exposes the low-level browser surface.
func (s *Session) Executor() Executor { return s.exec }

// Viewport returns the emulated viewport dimensions.
func (s *Session) Viewport() schemas.Viewport { return s.viewport }

// Screenshot captures the viewport and re-encodes oversized captures.
func (s *Session) Screenshot(ctx context.Context) ([]byte, string, error) {
	raw, err := s.exec.CaptureScreenshot(ctx)
	if err != nil {
		return nil, "", err
	}
	return OptimizeScreenshot(raw, s.cfg.ScreenshotMaxBytes)
}

// Close tears down the browser. Safe to call more than once.
func (s *Session) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.logger.Info("Browser session closed")
}
