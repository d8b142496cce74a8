// Package orchestrator drives one provider task from submission to a terminal state.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/metrics"
	"mindgate/internal/pkg/logger"
)

// Upstream is the provider surface the orchestrator needs
type Upstream interface {
	Submit(ctx context.Context, req core.GenerationRequest) (core.TaskHandle, error)
	Poll(ctx context.Context, handle core.TaskHandle) (core.TaskSnapshot, error)
}

// Policy bounds a polling loop
type Policy struct {
	Interval time.Duration
	Deadline time.Duration
}

// EventKind identifies an orchestration step
type EventKind int

const (
	EventSubmitted EventKind = iota
	EventProgress
	EventCompleted
)

// Event is one step visible to the caller
type Event struct {
	Kind     EventKind
	Handle   core.TaskHandle
	Snapshot core.TaskSnapshot
	// Text is the caller-facing rendering of the step
	Text string
}

// Clock abstracts time so polling can be tested without sleeping
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Orchestrator runs submit -> poll cycles. It is safe for concurrent use; each
// call owns its own state.
type Orchestrator struct {
	upstream Upstream
	clock    Clock
	log      *logger.Logger
	metrics  *metrics.Recorder
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator over upstream
func New(upstream Upstream, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		upstream: upstream,
		clock:    realClock{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("orchestrator")
	return o
}

// Submit creates the task. Failures are returned as-is and never retried.
func (o *Orchestrator) Submit(ctx context.Context, req core.GenerationRequest) (core.TaskHandle, error) {
	handle, err := o.upstream.Submit(ctx, req)
	if err != nil {
		return core.TaskHandle{}, normalize(err)
	}
	handle.SubmittedAt = o.clock.Now()
	o.log.Info("task submitted",
		zap.String("task_id", handle.TaskID),
		zap.String("model", handle.ModelKey),
	)
	return handle, nil
}

// Track polls handle until it completes, fails or the policy deadline passes.
// emit receives one EventProgress per non-terminal snapshot and a final
// EventCompleted on success; failures are returned instead of emitted.
func (o *Orchestrator) Track(ctx context.Context, handle core.TaskHandle, policy Policy, emit func(Event)) (core.TaskSnapshot, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	start := handle.SubmittedAt
	if start.IsZero() {
		start = o.clock.Now()
	}
	deadline := start.Add(policy.Deadline)
	log := o.log.With(zap.String("task_id", handle.TaskID))

	var (
		latest  core.TaskSnapshot
		tracker progressTracker
	)
	for {
		remaining := deadline.Sub(o.clock.Now())
		if remaining <= 0 {
			return latest, o.timedOut(handle, policy, log)
		}

		snap, expired, err := o.poll(ctx, handle, remaining)
		if err != nil {
			if expired {
				return latest, o.timedOut(handle, policy, log)
			}
			log.Warn("poll failed", zap.Error(err))
			return latest, normalize(err)
		}
		latest = snap
		o.metrics.ObservePoll(string(snap.Status))

		if snap.Status.IsTerminal() {
			if snap.Status == core.StatusFailed {
				msg := core.NormalizeProviderMessage(snap.ErrorMessage)
				log.Info("task failed", zap.String("remark", snap.ErrorMessage))
				return snap, core.NewGenerationFailed(msg)
			}
			log.Info("task completed", zap.String("url", snap.ResultURL))
			emit(Event{Kind: EventCompleted, Handle: handle, Snapshot: snap, Text: CompletedText(snap.ResultURL)})
			return snap, nil
		}

		label := tracker.observe(snap)
		log.Debug("task progress",
			zap.String("status", string(snap.Status)),
			zap.Int("progress", snap.Progress),
			zap.Int("parked_polls", tracker.parked),
		)
		emit(Event{Kind: EventProgress, Handle: handle, Snapshot: snap, Text: label})

		wait := policy.Interval
		if left := deadline.Sub(o.clock.Now()); left < wait {
			wait = left
		}
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return latest, ctx.Err()
		case <-o.clock.After(wait):
		}
	}
}

// Run submits and tracks in one call
func (o *Orchestrator) Run(ctx context.Context, req core.GenerationRequest, policy Policy, emit func(Event)) (core.TaskHandle, core.TaskSnapshot, error) {
	handle, err := o.Submit(ctx, req)
	if err != nil {
		return core.TaskHandle{}, core.TaskSnapshot{}, err
	}
	if emit != nil {
		emit(Event{Kind: EventSubmitted, Handle: handle, Text: SubmittedText})
	}
	snap, err := o.Track(ctx, handle, policy, emit)
	return handle, snap, err
}

// Poll takes one snapshot without a deadline. A failed remark is normalized
// in place; callers decide what a non-terminal status means.
func (o *Orchestrator) Poll(ctx context.Context, handle core.TaskHandle) (core.TaskSnapshot, error) {
	snap, err := o.upstream.Poll(ctx, handle)
	if err != nil {
		return core.TaskSnapshot{}, normalize(err)
	}
	o.metrics.ObservePoll(string(snap.Status))
	if snap.Status == core.StatusFailed {
		snap.ErrorMessage = core.NormalizeProviderMessage(snap.ErrorMessage)
	}
	return snap, nil
}

// errDeadline marks a poll cut short by the task deadline, as opposed to a
// timeout inside the transport
var errDeadline = errors.New("orchestration deadline reached")

// poll bounds one provider call by the time left before the deadline.
// expired is true only when that bound fired.
func (o *Orchestrator) poll(ctx context.Context, handle core.TaskHandle, remaining time.Duration) (core.TaskSnapshot, bool, error) {
	pollCtx, cancel := context.WithTimeoutCause(ctx, remaining, errDeadline)
	defer cancel()
	snap, err := o.upstream.Poll(pollCtx, handle)
	if err != nil {
		return snap, errors.Is(context.Cause(pollCtx), errDeadline), err
	}
	return snap, false, nil
}

func (o *Orchestrator) timedOut(handle core.TaskHandle, policy Policy, log *logger.Logger) error {
	log.Warn("task timed out", zap.Duration("deadline", policy.Deadline))
	return core.NewGenerationTimedOut(handle.TaskID, policy.Deadline.String())
}

// normalize applies the provider message rewrite to business errors
func normalize(err error) error {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind == core.KindUpstreamBusiness {
		if msg := core.NormalizeProviderMessage(gwErr.Message); msg != gwErr.Message {
			copied := *gwErr
			copied.Message = msg
			return &copied
		}
	}
	return err
}
