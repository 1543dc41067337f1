package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
	"sitegen-backend/pkg/logger"
)

// chatModelFactory builds an eino chat model for one request's credential.
type chatModelFactory func(ctx context.Context, apiKey string) (einoModel.BaseChatModel, error)

// Eino adapts any eino chat model to the Provider contract. Doubao and Qwen are
// served through it.
type Eino struct {
	id      model.ProviderID
	newChat chatModelFactory
}

func NewEino(id model.ProviderID, newChat chatModelFactory) *Eino {
	return &Eino{id: id, newChat: newChat}
}

func (e *Eino) ID() model.ProviderID { return e.id }

func (e *Eino) RequiresCredential() bool { return true }

func (e *Eino) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	chatModel, err := e.newChat(ctx, req.Credential)
	if err != nil {
		return nil, FromError(fmt.Errorf("creating %s model: %w", e.id, err))
	}

	system, user := Instructions(req)
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	reqCtx, cancel := context.WithCancel(ctx)
	sr, err := chatModel.Stream(reqCtx, messages)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, FromError(err)
	}

	r := stream.Go(reqCtx, 16, func(ctx context.Context, w *stream.Writer) error {
		defer sr.Close()
		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if msg == nil {
				continue
			}
			if err := w.Delta(msg.Content); err != nil {
				return err
			}
		}
	})
	r.OnClose(cancel)
	return r, nil
}

// NewDoubao serves Volcengine Ark models.
func NewDoubao(cfg config.DoubaoConfig, opts Options) *Eino {
	return NewEino(model.ProviderDoubao, func(ctx context.Context, apiKey string) (einoModel.BaseChatModel, error) {
		temp := opts.Temperature
		maxTokens := opts.MaxOutputTokens
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:      apiKey,
			Model:       cfg.Model,
			Temperature: &temp,
			MaxTokens:   &maxTokens,
		})
	})
}

// NewQwen serves DashScope models. Requests go through DebugTransport so the bodies
// can be logged when debug_request is on.
func NewQwen(cfg config.QwenConfig, opts Options) *Eino {
	httpClient := &http.Client{
		Transport: NewDebugTransport(nil, cfg.DebugRequest, string(model.ProviderQwen)),
		Timeout:   cfg.Timeout,
	}
	if cfg.DebugRequest {
		logger.Infof("qwen debug transport enabled, model %s", cfg.Model)
	}

	return NewEino(model.ProviderQwen, func(ctx context.Context, apiKey string) (einoModel.BaseChatModel, error) {
		temp := opts.Temperature
		topP := cfg.TopP
		maxTokens := opts.MaxOutputTokens
		return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temp,
			TopP:        &topP,
			Timeout:     cfg.Timeout,
			HTTPClient:  httpClient,
		})
	})
}
