package provider

import (
	"net/http"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/utils"
	"sitegen-backend/pkg/logger"
)

// OptionsFromConfig collects the generation parameters every adapter shares.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Temperature:     cfg.Generation.Temperature,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		MaxPushBack:     cfg.Generation.MaxPushBack,
		MaxPendingBytes: cfg.Generation.MaxPendingBytes,
	}
}

// FromConfig registers every enabled provider.
func FromConfig(cfg *config.Config) *Registry {
	opts := OptionsFromConfig(cfg)
	pc := cfg.Providers
	base := utils.NewTransport()

	client := func(id model.ProviderID) *http.Client {
		return &http.Client{
			Timeout:   pc.Timeout,
			Transport: NewDebugTransport(base, pc.Debug, string(id)),
		}
	}

	r := NewRegistry()
	if pc.Gemini.Enabled {
		r.Register(NewGemini(pc.Gemini, opts, client(model.ProviderGemini)))
	}
	if pc.GeminiSDK.Enabled {
		r.Register(NewGeminiSDK(pc.GeminiSDK, opts, client(model.ProviderGeminiSDK)))
	}
	if pc.Anthropic.Enabled {
		r.Register(NewAnthropic(pc.Anthropic, opts, client(model.ProviderAnthropic)))
	}
	if pc.OpenAI.Enabled {
		r.Register(NewOpenAI(pc.OpenAI, opts, client(model.ProviderOpenAI)))
	}
	if pc.Doubao.Enabled {
		r.Register(NewDoubao(pc.Doubao, opts))
	}
	if pc.Qwen.Enabled {
		r.Register(NewQwen(pc.Qwen, opts))
	}
	if pc.Proxy.Enabled {
		if pc.Proxy.URL == "" {
			logger.Warn("proxy provider enabled without providers.proxy.url, skipping")
		} else {
			r.Register(NewProxy(pc.Proxy, opts, client(model.ProviderProxy)))
		}
	}
	if pc.Mock.Enabled {
		r.Register(NewMock(pc.Mock.Delay))
	}

	logger.Infof("providers registered: %v", r.IDs())
	return r
}

// ConfiguredKey returns the API key from the config file or environment for id.
func ConfiguredKey(cfg *config.Config, id model.ProviderID) string {
	pc := cfg.Providers
	switch id {
	case model.ProviderGemini:
		return pc.Gemini.APIKey
	case model.ProviderGeminiSDK:
		return pc.GeminiSDK.APIKey
	case model.ProviderAnthropic:
		return pc.Anthropic.APIKey
	case model.ProviderOpenAI:
		return pc.OpenAI.APIKey
	case model.ProviderDoubao:
		return pc.Doubao.APIKey
	case model.ProviderQwen:
		return pc.Qwen.APIKey
	}
	return ""
}
