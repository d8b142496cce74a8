package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"mindgate/internal/core"
	"mindgate/internal/core/orchestrator"
	"mindgate/internal/core/processors"
	"mindgate/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeUpstream struct {
	mu          sync.Mutex
	submitErr   error
	submits     int
	snapshots   []core.TaskSnapshot
	polls       int
	credentials []core.Credential
}

func (f *fakeUpstream) Submit(ctx context.Context, req core.GenerationRequest) (core.TaskHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return core.TaskHandle{}, f.submitErr
	}
	return core.TaskHandle{TaskID: "T1", Credential: "tok-b", ModelKey: "gemini-3-image"}, nil
}

func (f *fakeUpstream) Poll(ctx context.Context, handle core.TaskHandle) (core.TaskSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	f.credentials = append(f.credentials, handle.Credential)
	if f.polls > len(f.snapshots) {
		return f.snapshots[len(f.snapshots)-1], nil
	}
	return f.snapshots[f.polls-1], nil
}

func (f *fakeUpstream) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func foxSnapshots() []core.TaskSnapshot {
	return []core.TaskSnapshot{
		{Status: core.StatusRunning, Progress: 40},
		{Status: core.StatusRunning, Progress: 99},
		{Status: core.StatusCompleted, Progress: 100, ResultURL: "https://x/fox.png"},
	}
}

var testPolicies = Policies{
	Stream:   orchestrator.Policy{Interval: 5 * time.Second, Deadline: 600 * time.Second},
	Blocking: orchestrator.Policy{Interval: 3 * time.Second, Deadline: 120 * time.Second},
}

func newTestBridge(up *fakeUpstream, opts ...Option) *Bridge {
	orch := orchestrator.New(up, orchestrator.WithClock(newFakeClock()))
	return New(orch, testPolicies, opts...)
}

func newGatewayContext() *core.GatewayContext {
	return core.NewGatewayContext(context.Background(), nil)
}

func drain(t *testing.T, s *Stream) []Chunk {
	t.Helper()
	var chunks []Chunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-s.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatal("stream was never closed")
			return nil
		}
	}
}

func encodeAll(t *testing.T, s *Stream, chunks []Chunk) []string {
	t.Helper()
	var lines []string
	for _, c := range chunks {
		line, err := EncodeChunk(s, c)
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
	return lines
}

func TestStreamRedFoxScenario(t *testing.T) {
	up := &fakeUpstream{snapshots: foxSnapshots()}
	b := newTestBridge(up)

	s, err := b.Stream(newGatewayContext(), core.GenerationRequest{ModelKey: "gemini-3-image", Prompt: "a red fox"})
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-T1", s.ID)

	chunks := drain(t, s)
	require.Len(t, chunks, 4)
	assert.Equal(t, orchestrator.SubmittedText, chunks[0].Text)
	assert.Equal(t, "⏳ 进度: 40%", chunks[1].Text)
	assert.Equal(t, orchestrator.FinalizingText, chunks[2].Text)
	assert.Equal(t, "\n\n![Generated Content](https://x/fox.png)", chunks[3].Text)
	assert.True(t, chunks[3].Final)

	lines := encodeAll(t, s, chunks)
	for i, line := range lines {
		assert.True(t, len(line) > 8 && line[:6] == "data: " && line[len(line)-2:] == "\n\n", line)
		payload := gjson.Parse(line[6:])
		assert.Equal(t, "chat.completion.chunk", payload.Get("object").String())
		assert.Equal(t, "gemini-3-image", payload.Get("model").String())
		assert.Equal(t, chunks[i].Text, payload.Get("choices.0.delta.content").String())
		if i < 3 {
			assert.Equal(t, gjson.Null, payload.Get("choices.0.finish_reason").Type)
		}
	}
	assert.Equal(t, "stop", gjson.Parse(lines[3][6:]).Get("choices.0.finish_reason").String())
}

func TestStreamOutputIsIdempotent(t *testing.T) {
	run := func() []string {
		up := &fakeUpstream{snapshots: foxSnapshots()}
		s, err := newTestBridge(up).Stream(newGatewayContext(), core.GenerationRequest{ModelKey: "gemini-3-image", Prompt: "a red fox"})
		require.NoError(t, err)
		return encodeAll(t, s, drain(t, s))
	}

	assert.Equal(t, run(), run())
}

func TestStreamFailureEndsWithErrorChunk(t *testing.T) {
	up := &fakeUpstream{snapshots: []core.TaskSnapshot{{Status: core.StatusFailed, ErrorMessage: "人数过多"}}}
	s, err := newTestBridge(up).Stream(newGatewayContext(), core.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)

	chunks := drain(t, s)
	require.Len(t, chunks, 2)
	assert.Equal(t, "\n\n❌ 错误: "+core.BusyMessage, chunks[1].Text)
	assert.True(t, chunks[1].Final)
}

func TestStreamTimeoutEndsWithErrorChunk(t *testing.T) {
	up := &fakeUpstream{snapshots: []core.TaskSnapshot{{Status: core.StatusPending}}}
	s, err := newTestBridge(up).Stream(newGatewayContext(), core.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)

	chunks := drain(t, s)
	last := chunks[len(chunks)-1]
	assert.True(t, last.Final)
	assert.Contains(t, last.Text, "❌ 错误: task T1 did not finish within 10m0s")
	assert.Equal(t, 120, up.pollCount())
}

func TestStreamSubmitErrorReturnedBeforeStream(t *testing.T) {
	up := &fakeUpstream{submitErr: core.NewBusinessError(500, "余额不足")}
	s, err := newTestBridge(up).Stream(newGatewayContext(), core.GenerationRequest{Prompt: "p"})

	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, core.KindUpstreamBusiness, core.KindOf(err))
	assert.Zero(t, up.pollCount())
}

func TestStreamDetachedCallerDoesNotStopOrchestration(t *testing.T) {
	up := &fakeUpstream{snapshots: foxSnapshots()}
	b := newTestBridge(up)
	b.buffer = 0

	s, err := b.Stream(newGatewayContext(), core.GenerationRequest{Prompt: "a red fox"})
	require.NoError(t, err)
	s.Detach()

	drain(t, s)
	assert.Equal(t, 3, up.pollCount())
}

func TestStreamPipelineRejectsBeforeSubmit(t *testing.T) {
	up := &fakeUpstream{snapshots: foxSnapshots()}
	b := newTestBridge(up, WithPipeline(core.NewPipeline(processors.NewPromptGuard(nil))))

	_, err := b.Stream(newGatewayContext(), core.GenerationRequest{Prompt: "   "})
	assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
	assert.Zero(t, up.submits)
}

func TestStreamRecordsMetrics(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())
	up := &fakeUpstream{snapshots: foxSnapshots()}
	b := newTestBridge(up, WithMetrics(rec))

	s, err := b.Stream(newGatewayContext(), core.GenerationRequest{Prompt: "a red fox"})
	require.NoError(t, err)
	drain(t, s)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.GenerationCounter(core.ModeStream, "completed")))
}

func TestGenerateBlocking(t *testing.T) {
	up := &fakeUpstream{snapshots: foxSnapshots()}
	handle, snap, err := newTestBridge(up).Generate(newGatewayContext(), core.GenerationRequest{Prompt: "a red fox"})

	require.NoError(t, err)
	assert.Equal(t, "T1", handle.TaskID)
	assert.Equal(t, "https://x/fox.png", snap.ResultURL)
}

func TestGenerateBlockingTimesOut(t *testing.T) {
	up := &fakeUpstream{snapshots: []core.TaskSnapshot{{Status: core.StatusRunning, Progress: 10}}}
	_, _, err := newTestBridge(up).Generate(newGatewayContext(), core.GenerationRequest{Prompt: "p"})

	assert.Equal(t, core.KindGenerationTimedOut, core.KindOf(err))
	assert.Equal(t, 40, up.pollCount())
}

func TestGenerateKeepsCallerMode(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())
	up := &fakeUpstream{snapshots: foxSnapshots()}
	gctx := newGatewayContext()
	gctx.SetMetadata(core.MetaMode, core.ModeImage)

	_, _, err := newTestBridge(up, WithMetrics(rec)).Generate(gctx, core.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.GenerationCounter(core.ModeImage, "completed")))
}

func TestSubmitThenQueryKeepsCredential(t *testing.T) {
	up := &fakeUpstream{snapshots: []core.TaskSnapshot{{Status: core.StatusRunning, Progress: 12}}}
	b := newTestBridge(up, WithFallbackCredential(func() (core.Credential, error) { return "tok-first", nil }))

	handle, err := b.Submit(newGatewayContext(), core.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Zero(t, up.pollCount())

	snap, err := b.Query(newGatewayContext(), handle.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Progress)

	_, err = b.Query(newGatewayContext(), "T-unknown")
	require.NoError(t, err)

	assert.Equal(t, []core.Credential{"tok-b", "tok-first"}, up.credentials)
}

func TestQueryValidation(t *testing.T) {
	b := newTestBridge(&fakeUpstream{snapshots: foxSnapshots()})

	_, err := b.Query(newGatewayContext(), "")
	assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))

	_, err = b.Query(newGatewayContext(), "T-unknown")
	assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))
}

func TestNewChatCompletion(t *testing.T) {
	c := NewChatCompletion(CompletionID("T9"), "sora-2-free", 1700000000, "[TASK_ID:T9]")

	assert.Equal(t, "chatcmpl-T9", c.ID)
	assert.Equal(t, "chat.completion", c.Object)
	require.Len(t, c.Choices, 1)
	assert.Equal(t, "assistant", c.Choices[0].Message.Role)
	assert.Equal(t, "[TASK_ID:T9]", c.Choices[0].Message.Content)
	assert.Equal(t, "stop", c.Choices[0].FinishReason)
}
