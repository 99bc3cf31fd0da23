package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPollTimeout ends a subscription that outlived the maximum poll duration.
var ErrPollTimeout = errors.New("progress polling timed out")

// Source returns the latest progress of a job.
type Source interface {
	Progress(ctx context.Context, processID string) (Progress, error)
}

// Observer receives poll outcomes. Calls are sequential, in request order.
type Observer interface {
	// Progress is called with every successfully decoded snapshot,
	// terminal ones included.
	Progress(processID string, p Progress)
	// PollFailed is called for each failed poll; polling continues.
	PollFailed(processID string, err error)
	// Finished is called once when the job reaches a terminal status or the
	// subscription times out. It is not called after Stop.
	Finished(processID string, p Progress, err error)
}

// PollerConfig tunes polling.
type PollerConfig struct {
	Interval    time.Duration
	BackoffMax  time.Duration
	MaxDuration time.Duration
	Logger      *zap.Logger
}

// Poller starts progress subscriptions.
type Poller struct {
	source   Source
	interval time.Duration
	maxDur   time.Duration
	backoff  backoffPolicy
	logger   *zap.Logger
}

// NewPoller wires a Poller. Zero interval defaults to two seconds.
func NewPoller(source Source, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		interval: interval,
		maxDur:   cfg.MaxDuration,
		backoff:  newBackoffPolicy(interval, cfg.BackoffMax),
		logger:   logger.Named("poller"),
	}
}

// Subscription is one running poll loop.
type Subscription struct {
	processID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// ProcessID returns the polled job id.
func (s *Subscription) ProcessID() string {
	return s.processID
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (s *Subscription) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed when the loop exits.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrPollTimeout, the context error after cancellation, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Start polls processID until a terminal status, ctx cancellation, Stop or
// the maximum duration. The first poll happens one interval after Start.
func (p *Poller) Start(ctx context.Context, processID string, obs Observer) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		processID: processID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go p.run(ctx, sub, obs)
	return sub
}

func (p *Poller) run(ctx context.Context, sub *Subscription, obs Observer) {
	defer close(sub.done)
	defer sub.cancel()

	logger := p.logger.With(zap.String("process_id", sub.processID))
	var deadline <-chan time.Time
	if p.maxDur > 0 {
		dt := time.NewTimer(p.maxDur)
		defer dt.Stop()
		deadline = dt.C
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			sub.setErr(ctx.Err())
			return
		case <-deadline:
			logger.Warn("progress polling timed out", zap.Duration("max_duration", p.maxDur))
			sub.setErr(ErrPollTimeout)
			obs.Finished(sub.processID, Progress{}, ErrPollTimeout)
			return
		case <-timer.C:
		}

		prog, err := p.source.Progress(ctx, sub.processID)
		if ctx.Err() != nil {
			sub.setErr(ctx.Err())
			return
		}
		if err != nil {
			failures++
			next := p.backoff.Delay(failures)
			logger.Warn("progress poll failed",
				zap.Int("consecutive_failures", failures),
				zap.Duration("next_poll_in", next),
				zap.Error(err),
			)
			obs.PollFailed(sub.processID, err)
			timer.Reset(next)
			continue
		}
		failures = 0
		obs.Progress(sub.processID, prog)
		if prog.Status.Terminal() {
			logger.Info("job reached terminal status", zap.String("status", string(prog.Status)))
			obs.Finished(sub.processID, prog, nil)
			return
		}
		timer.Reset(p.interval)
	}
}
