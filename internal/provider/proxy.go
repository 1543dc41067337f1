package provider

import (
	"context"
	"net/http"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// Proxy sends the raw prompt to a generate-code endpoint, which owns the instruction
// templates and may inject its own vendor key. The endpoint always answers with
// Gemini-shaped frames.
type Proxy struct {
	cfg    config.ProxyClient
	opts   Options
	client *http.Client
}

func NewProxy(cfg config.ProxyClient, opts Options, client *http.Client) *Proxy {
	return &Proxy{cfg: cfg, opts: opts, client: client}
}

func (p *Proxy) ID() model.ProviderID { return model.ProviderProxy }

func (p *Proxy) RequiresCredential() bool { return p.cfg.RequireKey }

func (p *Proxy) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	body := model.ProxyRequest{
		Prompt:   req.Prompt,
		APIKey:   req.Credential,
		Provider: p.cfg.Upstream,
	}
	if req.HasBase() {
		body.CurrentCode = *req.BaseDocument
	}

	header := http.Header{}
	if req.Credential != "" {
		header.Set("Authorization", "Bearer "+req.Credential)
	}
	return postStream(ctx, p.client, p.opts, p.cfg.URL, header, body, GeminiFormat)
}
