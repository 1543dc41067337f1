// Package provider adapts LLM vendors to a common streaming contract.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// Provider issues one generation request and returns its output as a lazy event
// sequence. Implementations keep only immutable configuration between calls.
type Provider interface {
	ID() model.ProviderID
	Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error)
	// RequiresCredential is false for providers that can run without a caller key.
	RequiresCredential() bool
}

// Options carries generation parameters shared by every adapter.
type Options struct {
	Temperature     float32
	MaxOutputTokens int
	MaxPushBack     int
	MaxPendingBytes int
}

func (o Options) assembler() *stream.Assembler {
	return stream.NewAssembler(o.MaxPushBack, o.MaxPendingBytes)
}

var ErrUnknownProvider = errors.New("unknown provider")

// Registry maps provider IDs to adapters. It is built once at startup and passed to
// the services that need it.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.ProviderID]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.ProviderID]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id model.ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs lists the registered providers in a stable order.
func (r *Registry) IDs() []model.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]model.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
