package provider

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// OpenAI streams chat completions through go-openai with a bearer key.
type OpenAI struct {
	cfg    config.OpenAIConfig
	opts   Options
	client *http.Client
}

func NewOpenAI(cfg config.OpenAIConfig, opts Options, client *http.Client) *OpenAI {
	return &OpenAI{cfg: cfg, opts: opts, client: client}
}

func (o *OpenAI) ID() model.ProviderID { return model.ProviderOpenAI }

func (o *OpenAI) RequiresCredential() bool { return true }

func (o *OpenAI) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	clientConfig := openai.DefaultConfig(req.Credential)
	if o.cfg.BaseURL != "" {
		clientConfig.BaseURL = o.cfg.BaseURL
	}
	if o.client != nil {
		clientConfig.HTTPClient = o.client
	}
	client := openai.NewClientWithConfig(clientConfig)

	system, user := Instructions(req)
	reqCtx, cancel := context.WithCancel(ctx)
	st, err := client.CreateChatCompletionStream(reqCtx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxOutputTokens,
		Stream:      true,
	})
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, FromError(err)
	}

	r := stream.Go(reqCtx, 16, func(ctx context.Context, w *stream.Writer) error {
		defer st.Close()
		for {
			resp, err := st.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.FinishReason == openai.FinishReasonContentFilter {
				return &ProviderError{Kind: model.ErrContentBlocked, Message: "response stopped by content filter"}
			}
			if err := w.Delta(choice.Delta.Content); err != nil {
				return err
			}
		}
	})
	r.OnClose(cancel)
	return r, nil
}
