package engine

import (
	"fmt"
	"sort"
	"strings"

	"mindgate/internal/core"
)

// ModelEntry pairs a public model key with its descriptor
type ModelEntry struct {
	Key        string               `json:"key"`
	Descriptor core.ModelDescriptor `json:"descriptor"`
}

// Registry resolves public model keys to provider parameters. It is built once and never mutated.
type Registry struct {
	models     map[string]core.ModelDescriptor
	defaultKey string
}

// NewRegistry validates the model table and the default key
func NewRegistry(models map[string]core.ModelDescriptor, defaultKey string) (*Registry, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("model registry is empty")
	}
	copied := make(map[string]core.ModelDescriptor, len(models))
	for key, desc := range models {
		switch desc.Category {
		case core.CategoryVideo, core.CategoryImage:
		default:
			return nil, fmt.Errorf("model %s: unknown category %q", key, desc.Category)
		}
		copied[key] = desc
	}
	if _, ok := copied[defaultKey]; !ok {
		return nil, fmt.Errorf("default model %q is not registered", defaultKey)
	}
	return &Registry{models: copied, defaultKey: defaultKey}, nil
}

// Resolve returns the descriptor for key, falling back to the default model
func (r *Registry) Resolve(key string) (string, core.ModelDescriptor) {
	key = strings.TrimSpace(key)
	if desc, ok := r.models[key]; ok {
		return key, desc
	}
	return r.defaultKey, r.models[r.defaultKey]
}

// Lookup returns the descriptor for key without fallback
func (r *Registry) Lookup(key string) (core.ModelDescriptor, bool) {
	desc, ok := r.models[key]
	return desc, ok
}

// DefaultKey returns the fallback model key
func (r *Registry) DefaultKey() string {
	return r.defaultKey
}

// List returns all models sorted by key
func (r *Registry) List() []ModelEntry {
	entries := make([]ModelEntry, 0, len(r.models))
	for key, desc := range r.models {
		entries = append(entries, ModelEntry{Key: key, Descriptor: desc})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}
