package core

import (
	"sort"
)

// Pipeline holds a collection of processors and manages their execution
type Pipeline struct {
	processors []Processor
}

// NewPipeline creates a new pipeline instance
func NewPipeline(processors ...Processor) *Pipeline {
	p := &Pipeline{
		processors: make([]Processor, 0, len(processors)),
	}
	for _, proc := range processors {
		p.AddProcessor(proc)
	}
	return p
}

// AddProcessor adds a processor and keeps the list ordered by priority
func (p *Pipeline) AddProcessor(processor Processor) {
	p.processors = append(p.processors, processor)
	// lower number = higher priority = runs earlier
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Priority() < p.processors[j].Priority()
	})
}

// Processors returns the processors in execution order
func (p *Pipeline) Processors() []Processor {
	out := make([]Processor, len(p.processors))
	copy(out, p.processors)
	return out
}

// ExecuteRequest runs every OnRequest in priority order and stops at the first error
func (p *Pipeline) ExecuteRequest(ctx *GatewayContext, req *GenerationRequest) error {
	for _, processor := range p.processors {
		if err := processor.OnRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteResponse runs every OnResponse in priority order and stops at the first error
func (p *Pipeline) ExecuteResponse(ctx *GatewayContext, result *GenerationResult) error {
	for _, processor := range p.processors {
		if err := processor.OnResponse(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
