package core

import "time"

// Category is the kind of media a model produces
type Category string

const (
	CategoryVideo Category = "video"
	CategoryImage Category = "image"
)

// MaxReferenceImages is the number of reference images the provider accepts
const MaxReferenceImages = 2

// ModelDescriptor describes how a public model key maps onto provider parameters
type ModelDescriptor struct {
	// ProviderID is the provider's bot id
	ProviderID int `mapstructure:"id" json:"id"`
	// ProviderType is the provider's creation type
	ProviderType int `mapstructure:"type" json:"type"`
	// Category decides the submit payload shape
	Category Category `mapstructure:"category" json:"category"`
	// DisplayName is shown in model listings
	DisplayName string `mapstructure:"name" json:"name"`
}

// GenerationOptions carries optional provider parameters
type GenerationOptions struct {
	// Size is the video resolution, e.g. "1280x720"
	Size string
	// Images are reference image URLs, primary first
	Images []string
}

// GenerationRequest is one inbound generation call
type GenerationRequest struct {
	ModelKey string
	Prompt   string
	Options  GenerationOptions
}

// Credential is an opaque provider bearer token
type Credential string

// TaskHandle binds a provider task to the credential that created it
type TaskHandle struct {
	TaskID      string
	Credential  Credential
	ModelKey    string
	SubmittedAt time.Time
}

// TaskStatus is the provider task state
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further polling should happen
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskSnapshot is the provider's view of a task at one poll
type TaskSnapshot struct {
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	ResultURL    string     `json:"url,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
}

// GenerationResult is handed to processors once a generation ends
type GenerationResult struct {
	Handle   TaskHandle
	Snapshot TaskSnapshot
	Err      error
}
