package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

const maxErrorBody = 64 << 10

// postStream sends body as JSON and hands a successful response to the assembler.
// Non-2xx responses are read, closed and returned as a classified *ProviderError.
func postStream(ctx context.Context, client *http.Client, opts Options, endpoint string, header http.Header, body any, format stream.Format) (*stream.Reader, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		err = redactError(err)
		return nil, &ProviderError{Kind: model.ErrNetworkUnreachable, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newError(resp.StatusCode, errorMessage(raw, resp.Status), nil)
	}

	r := opts.assembler().Consume(reqCtx, resp.Body, format)
	r.OnClose(cancel)
	return r, nil
}

// errorMessage extracts the vendor's message from an error body, falling back to the
// raw text.
func errorMessage(raw []byte, status string) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		var nested struct {
			Message string `json:"message"`
			Status  string `json:"status"`
			Type    string `json:"type"`
		}
		var flat string
		switch {
		case json.Unmarshal(body.Error, &nested) == nil && nested.Message != "":
			return joinNonEmpty(nested.Status, nested.Type, nested.Message)
		case json.Unmarshal(body.Error, &flat) == nil && flat != "":
			return flat
		case body.Message != "":
			return body.Message
		}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return status
	}
	return text
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
