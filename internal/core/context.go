package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metadata keys shared between the server and processors
const (
	MetaMode   = "mode"
	MetaTaskID = "task_id"
)

// Generation modes recorded under MetaMode
const (
	ModeStream     = "stream"
	ModeBlocking   = "blocking"
	ModeClientPoll = "client_poll"
	ModeImage      = "image"
)

// GatewayContext extends standard context with per-request gateway fields
type GatewayContext struct {
	context.Context
	RequestID string
	StartTime time.Time
	Log       *zap.Logger

	mu       sync.RWMutex
	metadata map[string]interface{}
}

// NewGatewayContext creates a new GatewayContext
func NewGatewayContext(ctx context.Context, logger *zap.Logger) *GatewayContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayContext{
		Context:   ctx,
		StartTime: time.Now(),
		Log:       logger,
		metadata:  make(map[string]interface{}),
	}
}

// Detached returns a copy whose context outlives the caller's connection.
// Metadata is copied; later writes on either side are not seen by the other.
func (c *GatewayContext) Detached() *GatewayContext {
	return &GatewayContext{
		Context:   context.WithoutCancel(c.Context),
		RequestID: c.RequestID,
		StartTime: c.StartTime,
		Log:       c.Log,
		metadata:  c.Metadata(),
	}
}

// SetMetadata sets a metadata value (thread-safe)
func (c *GatewayContext) SetMetadata(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// GetMetadata gets a metadata value (thread-safe)
func (c *GatewayContext) GetMetadata(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// GetString returns a string metadata value or ""
func (c *GatewayContext) GetString(key string) string {
	v, ok := c.GetMetadata(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Metadata returns a copy of all metadata (thread-safe)
func (c *GatewayContext) Metadata() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	copy := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		copy[k] = v
	}
	return copy
}
