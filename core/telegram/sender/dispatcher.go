// Package sender runs outbound Bot API calls on a small worker pool so
// handlers return before Telegram answers.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/core/telegram/netutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the queue has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")

	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tg",
		Name:      "sends_total",
		Help:      "Outbound Telegram calls by action and result.",
	}, []string{"action", "result"})
)

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher is a bounded queue drained by a fixed set of workers.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup
	errs atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that finally failed.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close rejects new jobs, drains the queue and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	if j.ctx == nil {
		j.ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt, err := d.attempt(ctx, j)
	attrs := append(j.attrs(j.ctx),
		slog.Int("attempt", attempt),
		slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	if err == nil {
		sendsTotal.WithLabelValues(j.action, "ok").Inc()
		logger.Debug(j.ctx, component, "send.success", attrs...)
		return
	}
	d.errs.Add(1)
	kind := errorKind(err)
	sendsTotal.WithLabelValues(j.action, kind).Inc()
	logger.Error(j.ctx, component, "send.fail", append(attrs,
		slog.String("err", redact(err)),
		slog.String("err_kind", kind),
	)...)
}

// attempt runs j until it succeeds, fails permanently, runs out of retries
// or ctx expires. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	var err error
	for n := 1; ; n++ {
		if cerr := ctx.Err(); cerr != nil {
			return n - 1, errors.Join(err, cerr)
		}
		if err = j.run(); err == nil {
			return n, nil
		}
		delay, retry := d.retryDelay(err, n)
		if !retry || n > d.opts.MaxRetries {
			return n, err
		}
		logger.Debug(j.ctx, component, "send.retry", append(j.attrs(j.ctx),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// retryDelay honours flood control's retry_after and otherwise backs off
// linearly on transient network failures.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func (j job) attrs(ctx context.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}
