package processors

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/security"
)

// PromptGuard validates the generation request and redacts secrets from the
// prompt before it is sent to the provider
type PromptGuard struct {
	scanner *security.Scanner
}

// NewPromptGuard creates a new prompt guard processor
func NewPromptGuard(scanner *security.Scanner) *PromptGuard {
	if scanner == nil {
		scanner = security.NewScanner()
	}
	return &PromptGuard{scanner: scanner}
}

// Name returns the processor name
func (p *PromptGuard) Name() string {
	return "prompt-guard"
}

// Priority returns the execution priority (high priority for security)
func (p *PromptGuard) Priority() int {
	return 100
}

// OnRequest rejects unusable requests and masks sensitive values in place
func (p *PromptGuard) OnRequest(ctx *core.GatewayContext, req *core.GenerationRequest) error {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return core.NewInvalidRequestError("prompt is required", nil)
	}
	if n := len(req.Options.Images); n > core.MaxReferenceImages {
		return core.NewInvalidRequestError(
			fmt.Sprintf("at most %d reference images are supported, got %d", core.MaxReferenceImages, n), nil)
	}

	hits := p.scanner.Detect(req.Prompt)
	if len(hits) == 0 {
		return nil
	}
	req.Prompt = p.scanner.Sanitize(req.Prompt)
	ctx.Log.Warn("Sensitive data redacted from prompt", zap.Strings("rules", hits))
	return nil
}

// OnResponse is a passthrough
func (p *PromptGuard) OnResponse(ctx *core.GatewayContext, result *core.GenerationResult) error {
	return nil
}
