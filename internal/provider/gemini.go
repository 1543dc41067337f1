package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// GeminiTextPath is where Gemini puts the text of each streamed chunk.
var GeminiTextPath = stream.ParsePath("candidates.0.content.parts.0.text")

var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
	"RECITATION":         true,
}

// GeminiFormat decodes streamGenerateContent frames and rejects safety blocks.
var GeminiFormat = stream.Format{
	Text: GeminiTextPath,
	Inspect: func(payload any) error {
		if reason := stream.ParsePath("promptFeedback.blockReason").Text(payload); reason != "" {
			return &ProviderError{Kind: model.ErrContentBlocked, Message: "prompt blocked: " + reason}
		}
		if reason := stream.ParsePath("candidates.0.finishReason").Text(payload); blockedFinishReasons[reason] {
			return &ProviderError{Kind: model.ErrContentBlocked, Message: "response blocked: " + reason}
		}
		return nil
	},
}

// Gemini calls the REST streamGenerateContent endpoint with the key as a query
// parameter.
type Gemini struct {
	cfg    config.GeminiConfig
	opts   Options
	client *http.Client
}

func NewGemini(cfg config.GeminiConfig, opts Options, client *http.Client) *Gemini {
	return &Gemini{cfg: cfg, opts: opts, client: client}
}

func (g *Gemini) ID() model.ProviderID { return model.ProviderGemini }

func (g *Gemini) RequiresCredential() bool { return true }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

func (g *Gemini) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	system, user := Instructions(req)
	body := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.opts.Temperature,
			MaxOutputTokens: g.opts.MaxOutputTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, url.QueryEscape(req.Credential))

	return postStream(ctx, g.client, g.opts, endpoint, nil, body, GeminiFormat)
}
