// Package bridge turns orchestrated provider tasks into caller-facing
// deliveries: an incremental chunk stream or a single blocking result.
package bridge

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/orchestrator"
	"mindgate/internal/metrics"
	"mindgate/internal/pkg/logger"
)

const defaultBuffer = 16

// Stream is an open incremental delivery
type Stream struct {
	ID      string
	Model   string
	Created int64
	Handle  core.TaskHandle

	pipe *Pipe
}

// Chunks yields the messages until the orchestration ends
func (s *Stream) Chunks() <-chan Chunk {
	return s.pipe.Chunks()
}

// Detach stops delivery; the orchestration keeps running to its end
func (s *Stream) Detach() {
	s.pipe.Detach()
}

// Policies holds the polling bounds per delivery mode
type Policies struct {
	Stream   orchestrator.Policy
	Blocking orchestrator.Policy
}

// Bridge wires the pipeline, the orchestrator and the handle book together
type Bridge struct {
	orch     *orchestrator.Orchestrator
	policies Policies
	pipeline *core.Pipeline
	book     *HandleBook
	fallback func() (core.Credential, error)
	metrics  *metrics.Recorder
	log      *logger.Logger
	buffer   int
}

// Option configures a Bridge
type Option func(*Bridge)

// WithPipeline sets the processors run around every generation
func WithPipeline(p *core.Pipeline) Option {
	return func(b *Bridge) { b.pipeline = p }
}

// WithHandleBook replaces the default handle book
func WithHandleBook(book *HandleBook) Option {
	return func(b *Bridge) { b.book = book }
}

// WithFallbackCredential sets the credential source for tasks missing from the book
func WithFallbackCredential(fn func() (core.Credential, error)) Option {
	return func(b *Bridge) { b.fallback = fn }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// New creates a bridge
func New(orch *orchestrator.Orchestrator, policies Policies, opts ...Option) *Bridge {
	b := &Bridge{
		orch:     orch,
		policies: policies,
		pipeline: core.NewPipeline(),
		book:     NewHandleBook(DefaultHandleTTL),
		log:      logger.Nop(),
		buffer:   defaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Named("bridge")
	return b
}

// Policies returns the configured polling bounds
func (b *Bridge) Policies() Policies {
	return b.policies
}

// Stream submits req and starts polling in the background. Submission
// errors are returned before any chunk exists; afterwards every outcome,
// including failures, arrives as chunks and the channel is always closed.
func (b *Bridge) Stream(gctx *core.GatewayContext, req core.GenerationRequest) (*Stream, error) {
	gctx.SetMetadata(core.MetaMode, core.ModeStream)
	handle, err := b.submit(gctx, &req)
	if err != nil {
		return nil, err
	}

	model := req.ModelKey
	if model == "" {
		model = handle.ModelKey
	}
	s := &Stream{
		ID:      CompletionID(handle.TaskID),
		Model:   model,
		Created: handle.SubmittedAt.Unix(),
		Handle:  handle,
		pipe:    newPipe(b.buffer),
	}
	b.log.Debug("stream opened", zap.String("task_id", handle.TaskID), zap.String("request_id", gctx.RequestID))
	go b.produce(gctx.Detached(), handle, s.pipe)
	return s, nil
}

func (b *Bridge) produce(gctx *core.GatewayContext, handle core.TaskHandle, pipe *Pipe) {
	defer pipe.Close()
	defer func() {
		if r := recover(); r != nil {
			err := core.NewGenerationFailed(fmt.Sprintf("internal error: %v", r))
			gctx.Log.Error("stream producer panicked", zap.Any("panic", r))
			pipe.Send(Chunk{Text: orchestrator.ErrorText(err.UserMessage()), Final: true})
			b.finish(gctx, handle, core.TaskSnapshot{}, err)
		}
	}()

	pipe.Send(Chunk{Text: orchestrator.SubmittedText})
	snap, err := b.orch.Track(gctx, handle, b.policies.Stream, func(e orchestrator.Event) {
		if !pipe.Send(Chunk{Text: e.Text, Final: e.Kind == orchestrator.EventCompleted}) {
			gctx.Log.Debug("caller gone, chunk discarded", zap.String("task_id", handle.TaskID))
		}
	})
	if err != nil {
		pipe.Send(Chunk{Text: orchestrator.ErrorText(core.AsGatewayError(err).UserMessage()), Final: true})
	}
	b.finish(gctx, handle, snap, err)
}

// Generate runs req to a terminal state under the blocking policy. The
// orchestration outlives a disconnected caller.
func (b *Bridge) Generate(gctx *core.GatewayContext, req core.GenerationRequest) (core.TaskHandle, core.TaskSnapshot, error) {
	if gctx.GetString(core.MetaMode) == "" {
		gctx.SetMetadata(core.MetaMode, core.ModeBlocking)
	}
	handle, err := b.submit(gctx, &req)
	if err != nil {
		return core.TaskHandle{}, core.TaskSnapshot{}, err
	}

	detached := gctx.Detached()
	snap, err := b.orch.Track(detached, handle, b.policies.Blocking, nil)
	b.finish(detached, handle, snap, err)
	return handle, snap, err
}

// Submit creates the task and leaves polling to the caller
func (b *Bridge) Submit(gctx *core.GatewayContext, req core.GenerationRequest) (core.TaskHandle, error) {
	gctx.SetMetadata(core.MetaMode, core.ModeClientPoll)
	handle, err := b.submit(gctx, &req)
	if err != nil {
		return core.TaskHandle{}, err
	}
	b.metrics.ObserveGeneration(core.ModeClientPoll, "submitted", time.Since(gctx.StartTime))
	return handle, nil
}

// Query takes one snapshot of taskID, using the credential that created it
// when known
func (b *Bridge) Query(gctx *core.GatewayContext, taskID string) (core.TaskSnapshot, error) {
	if taskID == "" {
		return core.TaskSnapshot{}, core.NewInvalidRequestError("taskId is required", nil)
	}
	handle, ok := b.book.Get(taskID)
	if !ok {
		if b.fallback == nil {
			return core.TaskSnapshot{}, core.NewInvalidRequestError(fmt.Sprintf("unknown task %s", taskID), nil)
		}
		cred, err := b.fallback()
		if err != nil {
			return core.TaskSnapshot{}, err
		}
		handle = core.TaskHandle{TaskID: taskID, Credential: cred}
		gctx.Log.Debug("task not in handle book, using fallback credential", zap.String("task_id", taskID))
	}
	return b.orch.Poll(gctx, handle)
}

func (b *Bridge) submit(gctx *core.GatewayContext, req *core.GenerationRequest) (core.TaskHandle, error) {
	if err := b.pipeline.ExecuteRequest(gctx, req); err != nil {
		b.finish(gctx, core.TaskHandle{ModelKey: req.ModelKey}, core.TaskSnapshot{}, err)
		return core.TaskHandle{}, err
	}
	handle, err := b.orch.Submit(gctx, *req)
	if err != nil {
		b.finish(gctx, core.TaskHandle{ModelKey: req.ModelKey}, core.TaskSnapshot{}, err)
		return core.TaskHandle{}, err
	}
	gctx.SetMetadata(core.MetaTaskID, handle.TaskID)
	b.book.Put(handle)
	return handle, nil
}

// finish reports the terminal outcome to processors and metrics
func (b *Bridge) finish(gctx *core.GatewayContext, handle core.TaskHandle, snap core.TaskSnapshot, err error) {
	result := &core.GenerationResult{Handle: handle, Snapshot: snap, Err: err}
	if perr := b.pipeline.ExecuteResponse(gctx, result); perr != nil {
		gctx.Log.Warn("response processor failed", zap.Error(perr))
	}

	outcome := "completed"
	if err != nil {
		outcome = string(core.KindOf(err))
	}
	b.metrics.ObserveGeneration(gctx.GetString(core.MetaMode), outcome, time.Since(gctx.StartTime))
}
