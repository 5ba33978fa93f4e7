// -- internal/interaction/gateway_test.go --
package interaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestGateway(t *testing.T, timeout time.Duration) (*Gateway, *Registry) {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, registry.Begin("sess-1", "test goal"))
	return NewGateway(registry, timeout, zaptest.NewLogger(t)), registry
}

func TestGateway_AskAnswerRoundtrip(t *testing.T) {
	gw, registry := newTestGateway(t, 5*time.Second)

	done := make(chan struct{})
	var answer string
	var askErr error
	go func() {
		defer close(done)
		answer, askErr = gw.Ask(context.Background(), "Which option?", nil)
	}()

	// Wait for the question to become visible.
	require.Eventually(t, func() bool {
		return gw.PendingQuestion() == "Which option?"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, schemas.StateWaitingForUser, registry.Snapshot().State)

	require.NoError(t, gw.Answer("option 2"))
	<-done

	require.NoError(t, askErr)
	assert.Equal(t, "option 2", answer)
	assert.Empty(t, gw.PendingQuestion())
	assert.Equal(t, schemas.StateRunning, registry.Snapshot().State)
}

func TestGateway_AskTimesOut(t *testing.T) {
	gw, registry := newTestGateway(t, 50*time.Millisecond)

	_, err := gw.Ask(context.Background(), "anyone there?", nil)
	require.ErrorIs(t, err, ErrAnswerTimeout)
	assert.Empty(t, gw.PendingQuestion())
	assert.Equal(t, schemas.StateRunning, registry.Snapshot().State)
}

func TestGateway_AskCancelledByContext(t *testing.T) {
	gw, _ := newTestGateway(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gw.Ask(ctx, "question", nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return gw.PendingQuestion() != ""
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestGateway_SecondQuestionRejected(t *testing.T) {
	gw, _ := newTestGateway(t, 5*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = gw.Ask(context.Background(), "first", nil)
	}()

	require.Eventually(t, func() bool {
		return gw.PendingQuestion() == "first"
	}, 2*time.Second, 10*time.Millisecond)

	_, err := gw.Ask(context.Background(), "second", nil)
	require.ErrorIs(t, err, ErrQuestionPending)

	require.NoError(t, gw.Answer("done"))
	<-done
}

func TestGateway_AskCarriesScreenshot(t *testing.T) {
	gw, _ := newTestGateway(t, 5*time.Second)
	shot := []byte("png-bytes")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = gw.Ask(context.Background(), "pick one", shot)
	}()

	require.Eventually(t, func() bool {
		return gw.PendingQuestion() != ""
	}, 2*time.Second, 10*time.Millisecond)

	question, pending := gw.PendingMessage()
	assert.Equal(t, "pick one", question)
	assert.Equal(t, shot, pending)

	require.NoError(t, gw.Answer("ok"))
	<-done

	question, pending = gw.PendingMessage()
	assert.Empty(t, question)
	assert.Nil(t, pending, "the screenshot clears with the question")
}

func TestGateway_AnswerWithoutQuestion(t *testing.T) {
	gw, _ := newTestGateway(t, time.Second)
	require.ErrorIs(t, gw.Answer("hello?"), ErrNoPendingQuestion)
}

func TestGateway_ZeroTimeoutUsesDefault(t *testing.T) {
	registry := NewRegistry()
	gw := NewGateway(registry, 0, zaptest.NewLogger(t))
	assert.Equal(t, DefaultAnswerTimeout, gw.timeout)
}
