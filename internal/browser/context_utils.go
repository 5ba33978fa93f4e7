// -- internal/browser/context_utils.go --
package browser

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of primary (the
// chromedp session context) but is cancelled as soon as either primary or
// secondary is done. chromedp.Run requires the session context's values, while
// callers still need their own deadlines respected.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	stop := make(chan struct{})
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		case <-stop:
		}
	}()

	return combined, func() {
		close(stop)
		cancel()
	}
}

// Detach returns a context that keeps primary's values but ignores its
// cancellation and deadline. Used for cleanup paths that must outlive the
// operation that triggered them.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

type valueOnlyContext struct{ context.Context }

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }
