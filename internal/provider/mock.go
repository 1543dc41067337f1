package provider

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// Mock produces a deterministic page without any network access. It is meant for
// local development and demos.
type Mock struct {
	delay time.Duration
}

func NewMock(delay time.Duration) *Mock {
	return &Mock{delay: delay}
}

func (m *Mock) ID() model.ProviderID { return model.ProviderMock }

func (m *Mock) RequiresCredential() bool { return false }

func (m *Mock) Issue(ctx context.Context, req model.GenerationRequest) (*stream.Reader, error) {
	chunks := mockChunks(req)
	return stream.Go(ctx, 0, func(ctx context.Context, w *stream.Writer) error {
		for _, c := range chunks {
			if m.delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(m.delay):
				}
			}
			if err := w.Delta(c); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// mockChunks renders the answer a well-behaved model would give, split the way a
// network stream would split it.
func mockChunks(req model.GenerationRequest) []string {
	prompt := html.EscapeString(req.Prompt)

	var page string
	if req.HasBase() {
		base := *req.BaseDocument
		note := fmt.Sprintf("<p class=\"change\">%s</p>\n", prompt)
		if i := strings.LastIndex(strings.ToLower(base), "</body>"); i >= 0 {
			page = base[:i] + note + base[i:]
		} else {
			page = base + "\n" + note
		}
	} else {
		page = "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n" +
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n" +
			"<title>" + prompt + "</title>\n" +
			"<style>body{font-family:system-ui,sans-serif;display:flex;flex-direction:column;align-items:center;padding:2rem}</style>\n" +
			"</head>\n<body>\n<h1>" + prompt + "</h1>\n" +
			"<script>document.title = document.title.trim();</script>\n</body>\n</html>"
	}

	raw := "Here is your page:\n\n```html\n" + page + "\n```\n"
	return splitEvery(raw, 64)
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		cut := n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
