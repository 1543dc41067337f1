package provider

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// GeminiSDK uses the genai client and a whole-response generateContent call. The
// response is delivered as a single delta followed by done.
type GeminiSDK struct {
	cfg    config.GeminiConfig
	opts   Options
	client *http.Client
}

func NewGeminiSDK(cfg config.GeminiConfig, opts Options, client *http.Client) *GeminiSDK {
	return &GeminiSDK{cfg: cfg, opts: opts, client: client}
}

func (g *GeminiSDK) ID() model.ProviderID { return model.ProviderGeminiSDK }

func (g *GeminiSDK) RequiresCredential() bool { return true }

func (g *GeminiSDK) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     req.Credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.client,
	}
	if g.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, FromError(fmt.Errorf("creating genai client: %w", err))
	}

	system, user := Instructions(req)
	temp := g.opts.Temperature
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   int32(g.opts.MaxOutputTokens),
	}
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	return stream.Go(ctx, 1, func(ctx context.Context, w *stream.Writer) error {
		res, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, genCfg)
		if err != nil {
			return err
		}
		if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
			return &ProviderError{Kind: model.ErrContentBlocked, Message: "prompt blocked: " + string(res.PromptFeedback.BlockReason)}
		}
		if len(res.Candidates) > 0 && blockedFinishReasons[string(res.Candidates[0].FinishReason)] {
			return &ProviderError{Kind: model.ErrContentBlocked, Message: "response blocked: " + string(res.Candidates[0].FinishReason)}
		}
		return w.Delta(res.Text())
	}), nil
}
