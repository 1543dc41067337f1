package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/stream"
)

var (
	ErrProxyDisabled   = errors.New("the generate-code proxy is disabled")
	ErrProxyKeyMissing = errors.New("API key is not configured on the server")
	ErrEmptyPrompt     = errors.New("prompt is required")
)

// ProxyService forwards a browser generation request to a vendor using either the
// caller's key or the server key.
type ProxyService struct {
	cfg      *config.ProxyConfig
	registry *provider.Registry
}

func NewProxyService(cfg *config.Config, registry *provider.Registry) *ProxyService {
	return &ProxyService{cfg: &cfg.Proxy, registry: registry}
}

func (s *ProxyService) Enabled() bool {
	return s.cfg.Enabled
}

// Stream issues the request and returns the vendor's event stream.
func (s *ProxyService) Stream(ctx context.Context, req model.ProxyRequest) (*stream.Reader, error) {
	if !s.cfg.Enabled {
		return nil, ErrProxyDisabled
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	id := model.ProviderID(req.Provider)
	if id == "" {
		id = model.ProviderID(s.cfg.Provider)
	}
	adapter, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = s.cfg.ServerAPIKey
	}
	if key == "" && adapter.RequiresCredential() {
		return nil, fmt.Errorf("%w for %s", ErrProxyKeyMissing, id)
	}

	gen := model.GenerationRequest{
		Prompt:     req.Prompt,
		Provider:   id,
		Credential: key,
	}
	if req.CurrentCode != "" {
		base := req.CurrentCode
		gen.BaseDocument = &base
	}
	return adapter.Issue(ctx, gen)
}
