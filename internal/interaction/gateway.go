// -- internal/interaction/gateway.go --
package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultAnswerTimeout bounds how long a workflow waits on a human.
const DefaultAnswerTimeout = 300 * time.Second

var (
	// ErrAnswerTimeout means the human never responded in time.
	ErrAnswerTimeout = fmt.Errorf("timed out waiting for user answer")
	// ErrNoPendingQuestion means an answer arrived with nothing to answer.
	ErrNoPendingQuestion = fmt.Errorf("no question is pending")
	// ErrQuestionPending means a second question was asked before the first
	// was resolved.
	ErrQuestionPending = fmt.Errorf("a question is already pending")
)

// Gateway carries questions from the running automation out to a human and
// answers back in. The CLI reads questions from the terminal; the HTTP bridge
// polls them and posts answers.
type Gateway struct {
	registry *Registry
	logger   *zap.Logger
	timeout  time.Duration

	mu          sync.Mutex
	pending     string
	pendingShot []byte
	answerCh    chan string
}

// NewGateway builds a gateway bound to the status registry. A zero timeout
// uses DefaultAnswerTimeout.
func NewGateway(registry *Registry, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultAnswerTimeout
	}
	return &Gateway{
		registry: registry,
		logger:   logger.Named("gateway"),
		timeout:  timeout,
	}
}

// Ask publishes a question with an optional screenshot for context, flips the
// session to waiting_for_user and blocks until an answer, the answer timeout,
// or context cancellation.
func (g *Gateway) Ask(ctx context.Context, question string, screenshot []byte) (string, error) {
	g.mu.Lock()
	if g.pending != "" {
		g.mu.Unlock()
		return "", ErrQuestionPending
	}
	answerCh := make(chan string, 1)
	g.pending = question
	g.pendingShot = screenshot
	g.answerCh = answerCh
	g.mu.Unlock()

	g.registry.SetWaiting(question)
	g.logger.Info("Waiting for user input", zap.String("question", question))

	defer func() {
		g.mu.Lock()
		g.pending = ""
		g.pendingShot = nil
		g.answerCh = nil
		g.mu.Unlock()
		g.registry.Resume()
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case answer := <-answerCh:
		g.logger.Info("User answered")
		return answer, nil
	case <-timer.C:
		return "", ErrAnswerTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PendingQuestion returns the open question, or "" when none is waiting.
func (g *Gateway) PendingQuestion() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// PendingMessage returns the open question together with the screenshot that
// accompanied it, if any.
func (g *Gateway) PendingMessage() (string, []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pendingShot
}

// Answer delivers the human's response to the blocked Ask call.
func (g *Gateway) Answer(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.answerCh == nil {
		return ErrNoPendingQuestion
	}
	select {
	case g.answerCh <- text:
		return nil
	default:
		// Ask already gave up (timeout or cancellation).
		return ErrNoPendingQuestion
	}
}
