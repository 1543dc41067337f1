package provider

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"sitegen-backend/pkg/logger"
)

// DebugTransport logs outgoing provider requests with credentials redacted.
type DebugTransport struct {
	base         http.RoundTripper
	debugEnabled bool
	log          *logrus.Entry
}

func NewDebugTransport(base http.RoundTripper, debugEnabled bool, provider string) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{
		base:         base,
		debugEnabled: debugEnabled,
		log:          logger.WithFields(logger.Fields{"provider": provider}),
	}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.debugEnabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.debugEnabled {
		t.log.Errorf("request failed: %v", err)
	}
	if resp != nil && t.debugEnabled {
		t.log.Debugf("response status: %s", resp.Status)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	fields := logger.Fields{
		"method": req.Method,
		"url":    redactURL(req.URL),
	}
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			fields["header."+name] = "[REDACTED]"
		} else {
			fields["header."+name] = strings.Join(values, ", ")
		}
	}

	if req.Body != nil && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			raw, _ := io.ReadAll(body)
			body.Close()
			fields["body_size"] = len(raw)
			fields["body"] = sanitizeJSONFields(string(raw))
		}
	} else if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.log.Errorf("failed to read request body: %v", err)
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(raw))
		fields["body_size"] = len(raw)
		fields["body"] = sanitizeJSONFields(string(raw))
	}

	t.log.WithFields(fields).Info("provider request")
}

var sensitiveFieldPattern = regexp.MustCompile(`(?i)("(?:api_key|apiKey|password|secret|token|key)"\s*:\s*)"[^"]*"`)

// sanitizeJSONFields masks the values of credential-like JSON fields.
func sanitizeJSONFields(body string) string {
	return sensitiveFieldPattern.ReplaceAllString(body, `${1}"[REDACTED]"`)
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	q := clone.Query()
	for _, k := range []string{"key", "api_key", "apikey"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	clone.RawQuery = q.Encode()
	return clone.String()
}

// redactError masks credentials in the URL of a *url.Error. net/http strips only the
// userinfo password, so a query key would otherwise reach logs and responses.
func redactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		ue.URL = redactURL(u)
	} else {
		ue.URL = "[REDACTED]"
	}
	return err
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "x-goog-api-key", "x-auth-token", "cookie", "apikey"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
