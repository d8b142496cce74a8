package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	name     string
	priority int
	calls    *[]string
	failOn   string
}

func (r *recordingProcessor) Name() string  { return r.name }
func (r *recordingProcessor) Priority() int { return r.priority }

func (r *recordingProcessor) OnRequest(ctx *GatewayContext, req *GenerationRequest) error {
	*r.calls = append(*r.calls, r.name+".request")
	if r.failOn == "request" {
		return errors.New(r.name + " rejected")
	}
	return nil
}

func (r *recordingProcessor) OnResponse(ctx *GatewayContext, result *GenerationResult) error {
	*r.calls = append(*r.calls, r.name+".response")
	return nil
}

func TestPipelineRunsInPriorityOrder(t *testing.T) {
	var calls []string
	p := NewPipeline(
		&recordingProcessor{name: "guard", priority: 100, calls: &calls},
		&recordingProcessor{name: "logger", priority: -100, calls: &calls},
	)
	ctx := NewGatewayContext(context.Background(), nil)

	require.NoError(t, p.ExecuteRequest(ctx, &GenerationRequest{Prompt: "a red fox"}))
	require.NoError(t, p.ExecuteResponse(ctx, &GenerationResult{}))

	assert.Equal(t, []string{"logger.request", "guard.request", "logger.response", "guard.response"}, calls)
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	var calls []string
	p := NewPipeline(
		&recordingProcessor{name: "first", priority: 1, calls: &calls, failOn: "request"},
		&recordingProcessor{name: "second", priority: 2, calls: &calls},
	)

	err := p.ExecuteRequest(NewGatewayContext(context.Background(), nil), &GenerationRequest{})
	assert.EqualError(t, err, "first rejected")
	assert.Equal(t, []string{"first.request"}, calls)
}

func TestGatewayContextDetached(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := NewGatewayContext(parent, nil)
	ctx.RequestID = "req-1"
	ctx.SetMetadata("mode", "stream")

	detached := ctx.Detached()
	cancel()

	assert.Error(t, ctx.Err())
	assert.NoError(t, detached.Err())
	assert.Equal(t, "req-1", detached.RequestID)
	assert.Equal(t, "stream", detached.GetString("mode"))

	detached.SetMetadata("mode", "blocking")
	assert.Equal(t, "stream", ctx.GetString("mode"))
}
