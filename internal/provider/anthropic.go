package provider

import (
	"context"
	"net/http"
	"strings"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// AnthropicFormat reads content_block_delta events. The stream has no [DONE] line and
// ends at EOF after message_stop.
var AnthropicFormat = stream.Format{
	Text: stream.ParsePath("delta.text"),
	Inspect: func(payload any) error {
		if stream.ParsePath("delta.stop_reason").Text(payload) == "refusal" {
			return &ProviderError{Kind: model.ErrContentBlocked, Message: "model refused the request"}
		}
		return nil
	},
}

type Anthropic struct {
	cfg    config.AnthropicConfig
	opts   Options
	client *http.Client
}

func NewAnthropic(cfg config.AnthropicConfig, opts Options, client *http.Client) *Anthropic {
	return &Anthropic{cfg: cfg, opts: opts, client: client}
}

func (a *Anthropic) ID() model.ProviderID { return model.ProviderAnthropic }

func (a *Anthropic) RequiresCredential() bool { return true }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

func (a *Anthropic) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	system, user := Instructions(req)
	maxTokens := a.opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	body := anthropicRequest{
		Model:       a.cfg.Model,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		MaxTokens:   maxTokens,
		Temperature: a.opts.Temperature,
		Stream:      true,
	}

	header := http.Header{}
	header.Set("x-api-key", req.Credential)
	header.Set("anthropic-version", a.cfg.Version)

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	return postStream(ctx, a.client, a.opts, endpoint, header, body, AnthropicFormat)
}
