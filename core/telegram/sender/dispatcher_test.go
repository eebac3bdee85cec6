package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDispatcherRunsAndRetries(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.photo", "sendPhoto", func() error {
		calls.Add(1)
		return errors.New("telegram: bad request: wrong file identifier (400)")
	}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	d.Close()
}

func TestRetryDelay(t *testing.T) {
	d := &Dispatcher{opts: Options{RetryBackoff: time.Second}}

	delay, ok := d.retryDelay(tele.FloodError{RetryAfter: 3}, 1)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)

	delay, ok = d.retryDelay(timeoutErr{}, 2)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)

	_, ok = d.retryDelay(errors.New("forbidden (403)"), 1)
	assert.False(t, ok)
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-x_y/sendMessage": timeout`)
	assert.NotContains(t, redact(err), "AAE-x_y")
	assert.Contains(t, redact(err), "bot<redacted>")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "timeout", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "http_4xx", errorKind(errors.New("telegram: chat not found (400)")))
	assert.Equal(t, "http_5xx", errorKind(errors.New("telegram: internal (502)")))
	assert.Equal(t, "unknown", errorKind(errors.New("weird")))
}

func TestEnqueueQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return timeoutErr{}
	}))
	d.Close()
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}
