package core

// Processor is the middleware interface for the generation pipeline
type Processor interface {
	// Name returns the processor name
	Name() string
	// Priority returns the execution priority (lower = earlier)
	Priority() int
	// OnRequest is called before the task is submitted
	OnRequest(ctx *GatewayContext, req *GenerationRequest) error
	// OnResponse is called once the generation reached a terminal state
	OnResponse(ctx *GatewayContext, result *GenerationResult) error
}
