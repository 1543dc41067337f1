package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

var testOpts = Options{Temperature: 0.7, MaxOutputTokens: 1024}

func geminiFrame(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
	})
	return "data: " + string(b) + "\r\n\r\n"
}

func TestGeminiStreams(t *testing.T) {
	var gotQuery, gotPath string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, geminiFrame("```html\n<!DOCTYPE html>"))
		w.(http.Flusher).Flush()
		fmt.Fprint(w, geminiFrame("<html></html>\n```"))
	}))
	defer srv.Close()

	g := NewGemini(config.GeminiConfig{BaseURL: srv.URL, Model: "gemini-test"}, testOpts, srv.Client())
	r, err := g.Issue(context.Background(), model.GenerationRequest{Prompt: "a page", Credential: "k&1"})
	require.NoError(t, err)

	text, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "```html\n<!DOCTYPE html><html></html>\n```", text)
	assert.Equal(t, "k&1", gotQuery)
	assert.Equal(t, "/models/gemini-test:streamGenerateContent", gotPath)
	require.Len(t, gotBody.Contents, 1)
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, `"a page"`)
	assert.Equal(t, 1024, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGeminiHTTPErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	g := NewGemini(config.GeminiConfig{BaseURL: srv.URL, Model: "m"}, testOpts, srv.Client())
	_, err := g.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "bad"})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ErrAuthInvalid, pe.Kind)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Contains(t, pe.Message, "API key not valid")
}

func TestGeminiSafetyBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiFrame("<p>"))
		fmt.Fprint(w, "data: {\"candidates\":[{\"finishReason\":\"SAFETY\"}]}\n\n")
	}))
	defer srv.Close()

	g := NewGemini(config.GeminiConfig{BaseURL: srv.URL, Model: "m"}, testOpts, srv.Client())
	r, err := g.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "k"})
	require.NoError(t, err)

	_, err = stream.Collect(r)
	assert.Equal(t, model.ErrContentBlocked, FromError(err).Kind)
}

func TestAnthropicStreams(t *testing.T) {
	var header http.Header
	var body anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"<!DOCTYPE html>\"}}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"<html></html>\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a := NewAnthropic(config.AnthropicConfig{BaseURL: srv.URL, Model: "claude-test", Version: "2023-06-01"}, testOpts, srv.Client())
	base := "<html>old</html>"
	r, err := a.Issue(context.Background(), model.GenerationRequest{Prompt: "make it blue", BaseDocument: &base, Credential: "sk-ant"})
	require.NoError(t, err)

	text, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><html></html>", text)
	assert.Equal(t, "sk-ant", header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", header.Get("anthropic-version"))
	assert.True(t, body.Stream)
	assert.Equal(t, "claude-test", body.Model)
	assert.Equal(t, modifyInstructions, body.System)
	assert.Contains(t, body.Messages[0].Content, base)
}

func TestAnthropicStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	a := NewAnthropic(config.AnthropicConfig{BaseURL: srv.URL, Model: "m", Version: "v"}, testOpts, srv.Client())
	r, err := a.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "k"})
	require.NoError(t, err)

	_, err = stream.Collect(r)
	require.Error(t, err)
	assert.Equal(t, model.ErrRateLimited, FromError(err).Kind)
}

func TestOpenAIStreams(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"<!DOCTYPE html>", "<html>", "</html>"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	o := NewOpenAI(config.OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "gpt-test"}, testOpts, srv.Client())
	r, err := o.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "sk-test"})
	require.NoError(t, err)

	text, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><html></html>", text)
	assert.Equal(t, "Bearer sk-test", auth)
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Rate limit reached for requests","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	o := NewOpenAI(config.OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "gpt-test"}, testOpts, srv.Client())
	_, err := o.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "sk-test"})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ErrRateLimited, pe.Kind)
}

func TestProxySendsPromptAndKey(t *testing.T) {
	var got model.ProxyRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, geminiFrame("<!DOCTYPE html>"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewProxy(config.ProxyClient{URL: srv.URL, Upstream: "gemini"}, testOpts, srv.Client())
	assert.False(t, p.RequiresCredential())

	base := "<html></html>"
	r, err := p.Issue(context.Background(), model.GenerationRequest{Prompt: "hello", BaseDocument: &base, Credential: "user-key"})
	require.NoError(t, err)
	text, err := stream.Collect(r)
	require.NoError(t, err)

	assert.Equal(t, "<!DOCTYPE html>", text)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, "user-key", got.APIKey)
	assert.Equal(t, "gemini", got.Provider)
	assert.Equal(t, base, got.CurrentCode)
	assert.Equal(t, "Bearer user-key", auth)
}

func TestIssueCancelClosesConnection(t *testing.T) {
	closed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a disconnect once the request body is drained.
		_, _ = io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, geminiFrame("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(closed)
	}))
	defer srv.Close()

	g := NewGemini(config.GeminiConfig{BaseURL: srv.URL, Model: "m"}, testOpts, srv.Client())
	r, err := g.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: "k"})
	require.NoError(t, err)

	ev, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", ev.Text)

	require.NoError(t, r.Close())
	<-closed
	_, err = r.Recv()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockProducesFencedPage(t *testing.T) {
	m := NewMock(0)
	r, err := m.Issue(context.Background(), model.GenerationRequest{Prompt: "create a button that says Hello"})
	require.NoError(t, err)

	text, err := stream.Collect(r)
	require.NoError(t, err)
	assert.Contains(t, text, "```html\n<!DOCTYPE html>")
	assert.Contains(t, text, "create a button that says Hello")

	base := "<!DOCTYPE html><html><body><h1>x</h1></body></html>"
	r, err = m.Issue(context.Background(), model.GenerationRequest{Prompt: "make it <blue>", BaseDocument: &base})
	require.NoError(t, err)
	text, err = stream.Collect(r)
	require.NoError(t, err)
	assert.Contains(t, text, "<p class=\"change\">make it &lt;blue&gt;</p>\n</body>")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		msg    string
		want   model.ErrorKind
	}{
		{401, "", model.ErrAuthInvalid},
		{400, "API key not valid. Please pass a valid API key.", model.ErrAuthInvalid},
		{0, "authentication_error: invalid x-api-key", model.ErrAuthInvalid},
		{429, "RESOURCE_EXHAUSTED You exceeded your current quota", model.ErrQuotaExceeded},
		{400, "Your credit balance is too low", model.ErrQuotaExceeded},
		{429, "slow down", model.ErrRateLimited},
		{529, "overloaded_error Overloaded", model.ErrRateLimited},
		{400, "response blocked: SAFETY", model.ErrContentBlocked},
		{503, "", model.ErrNetworkUnreachable},
		{0, "dial tcp: lookup api.example.com: no such host", model.ErrNetworkUnreachable},
		{500, "something odd happened", model.ErrUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, tt.msg), "%d %q", tt.status, tt.msg)
	}
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	timeout := FromError(fmt.Errorf("reading: %w", context.DeadlineExceeded))
	assert.Equal(t, model.ErrNetworkUnreachable, timeout.Kind)
	assert.Equal(t, "timed out", timeout.Message)

	sdk := FromError(errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"))
	assert.Equal(t, 429, sdk.Status)
	assert.Equal(t, model.ErrRateLimited, sdk.Kind)

	raw := FromError(io.ErrShortBuffer)
	assert.Equal(t, model.ErrUnknown, raw.Kind)
	assert.Equal(t, io.ErrShortBuffer.Error(), raw.Message)

	pe := &ProviderError{Kind: model.ErrContentBlocked, Message: "x"}
	assert.Same(t, pe, FromError(fmt.Errorf("wrapped: %w", pe)))
}

func TestInstructions(t *testing.T) {
	system, user := Instructions(model.GenerationRequest{Prompt: "todo app"})
	assert.Equal(t, createInstructions, system)
	assert.Contains(t, user, `"todo app"`)
	assert.NotContains(t, user, "backend")

	base := "<html></html>"
	system, user = Instructions(model.GenerationRequest{
		Prompt:       "add a footer",
		BaseDocument: &base,
		AuxiliaryConfig: map[string]string{
			"supabase_url":      "https://x.supabase.co",
			"supabase_anon_key": "anon",
			"empty":             " ",
		},
	})
	assert.Equal(t, modifyInstructions, system)
	assert.Contains(t, user, "```html\n<html></html>\n```")
	assert.Contains(t, user, "- Supabase URL: https://x.supabase.co")
	assert.Contains(t, user, "- Supabase anon key: anon")
	assert.NotContains(t, user, "empty")

	empty := ""
	system, _ = Instructions(model.GenerationRequest{Prompt: "x", BaseDocument: &empty})
	assert.Equal(t, createInstructions, system)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewMock(0))
	p, err := r.Get(model.ProviderMock)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderMock, p.ID())

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	cfg := config.Default()
	cfg.Providers.Mock.Enabled = true
	ids := FromConfig(cfg).IDs()
	assert.Contains(t, ids, model.ProviderGemini)
	assert.Contains(t, ids, model.ProviderMock)
	assert.NotContains(t, ids, model.ProviderProxy)
}

func TestRedaction(t *testing.T) {
	assert.Equal(t, `{"apiKey": "[REDACTED]","prompt":"x"}`, sanitizeJSONFields(`{"apiKey": "secret","prompt":"x"}`))
	assert.True(t, isSensitiveHeader("X-Api-Key"))
	assert.False(t, isSensitiveHeader("Content-Type"))
}

func TestUnreachableUpstreamDoesNotLeakKey(t *testing.T) {
	const secret = "SUPERSECRETKEY"

	g := NewGemini(config.GeminiConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, testOpts, &http.Client{})
	_, err := g.Issue(context.Background(), model.GenerationRequest{Prompt: "x", Credential: secret})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ErrNetworkUnreachable, pe.Kind)
	assert.NotContains(t, pe.Error(), secret)
	assert.NotContains(t, pe.Message, secret)
	assert.NotContains(t, fmt.Sprintf("%+v", pe.Err), secret)
	assert.Contains(t, pe.Message, "key=REDACTED")

	raw := &url.Error{
		Op:  "Post",
		URL: "https://generativelanguage.googleapis.com/v1beta/models/m:streamGenerateContent?alt=sse&key=" + secret,
		Err: errors.New("dial tcp: connection refused"),
	}
	classified := FromError(fmt.Errorf("issue: %w", raw))
	assert.Equal(t, model.ErrNetworkUnreachable, classified.Kind)
	assert.NotContains(t, classified.Message, secret)
	assert.Contains(t, classified.Message, "alt=sse")
}
