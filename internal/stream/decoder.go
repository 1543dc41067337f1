package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sitegen-backend/pkg/logger"
)

const (
	dataPrefix = "data:"
	// DoneSentinel is the payload that ends an OpenAI-style event stream.
	DoneSentinel = "[DONE]"

	DefaultMaxPushBack     = 8
	DefaultMaxPendingBytes = 1 << 20
)

// FieldPath addresses a nested value in a decoded JSON payload. Numeric segments index
// arrays.
type FieldPath []string

// ParsePath splits a dotted path such as "candidates.0.content.parts.0.text".
func ParsePath(path string) FieldPath {
	if path == "" {
		return nil
	}
	return FieldPath(strings.Split(path, "."))
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Lookup walks the path through maps and slices produced by encoding/json.
func (p FieldPath) Lookup(v any) (any, bool) {
	cur := v
	for _, seg := range p {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Text returns the string at the path, or "" when absent or not a string.
func (p FieldPath) Text(v any) string {
	got, ok := p.Lookup(v)
	if !ok {
		return ""
	}
	s, _ := got.(string)
	return s
}

// Format tells the decoder where a provider keeps its text.
type Format struct {
	Text FieldPath
	// Inspect may reject a payload, e.g. a safety block; the error ends the stream.
	Inspect func(payload any) error
}

// UpstreamError is an error object reported inside the event stream itself.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error (%s): %s", e.Code, e.Message)
	}
	return "upstream error: " + e.Message
}

// Decoder reassembles "data: " lines from arbitrarily split chunks. It is not safe for
// concurrent use.
type Decoder struct {
	format          Format
	maxPushBack     int
	maxPendingBytes int

	buf       []byte
	pending   string
	pushBacks int
	done      bool
}

func NewDecoder(format Format) *Decoder {
	return &Decoder{
		format:          format,
		maxPushBack:     DefaultMaxPushBack,
		maxPendingBytes: DefaultMaxPendingBytes,
	}
}

// WithLimits bounds how often a malformed payload is re-joined with following lines.
func (d *Decoder) WithLimits(maxPushBack, maxPendingBytes int) *Decoder {
	if maxPushBack > 0 {
		d.maxPushBack = maxPushBack
	}
	if maxPendingBytes > 0 {
		d.maxPendingBytes = maxPendingBytes
	}
	return d
}

// Done reports whether the sentinel was seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends a network chunk and returns the text fragments of every complete line.
// A trailing partial line stays buffered until its newline arrives.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}
	d.buf = append(d.buf, chunk...)

	var out []string
	for !d.done {
		nl := bytes.IndexByte(d.buf, '\n')
		if nl == -1 {
			break
		}
		line := string(d.buf[:nl])
		d.buf = d.buf[nl+1:]

		text, err := d.line(line)
		if err != nil {
			return out, err
		}
		if text != "" {
			out = append(out, text)
		}
	}
	if d.done {
		d.buf = nil
	}
	return out, nil
}

// Flush handles an unterminated final line at end of input.
func (d *Decoder) Flush() ([]string, error) {
	if d.done {
		return nil, nil
	}
	var out []string
	if len(d.buf) > 0 {
		line := string(d.buf)
		d.buf = nil
		text, err := d.line(line)
		if err != nil {
			return nil, err
		}
		if text != "" {
			out = append(out, text)
		}
	}
	if d.pending != "" {
		logger.Warnf("stream ended with unparseable payload (%d bytes), dropped", len(d.pending))
		d.pending = ""
	}
	return out, nil
}

func (d *Decoder) line(line string) (string, error) {
	line = strings.TrimSuffix(line, "\r")

	payload, isData := dataPayload(line)
	if !isData {
		// Comments, blank separators, event:/id: fields. A continuation of a payload
		// that was split by a stray newline is neither, so try joining it.
		if d.pending != "" && line != "" && !strings.HasPrefix(line, ":") && !isField(line) {
			return d.retry(line)
		}
		return "", nil
	}

	if d.pending != "" {
		logger.Warnf("dropping unparseable payload (%d bytes) superseded by a new event", len(d.pending))
		d.pending = ""
		d.pushBacks = 0
	}

	if payload == DoneSentinel {
		d.done = true
		return "", nil
	}
	if payload == "" {
		return "", nil
	}

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		d.pending = payload
		d.pushBacks = 0
		return "", nil
	}
	return d.extract(v)
}

// retry joins the continuation onto the pending payload. The separator is tried both
// as raw whitespace and as an escaped newline inside a JSON string.
func (d *Decoder) retry(continuation string) (string, error) {
	d.pushBacks++
	candidates := []string{
		d.pending + "\n" + continuation,
		d.pending + `\n` + continuation,
	}
	for _, c := range candidates {
		var v any
		if json.Unmarshal([]byte(c), &v) == nil {
			d.pending = ""
			d.pushBacks = 0
			return d.extract(v)
		}
	}

	d.pending = candidates[1]
	if d.pushBacks >= d.maxPushBack || len(d.pending) > d.maxPendingBytes {
		logger.Warnf("giving up on unparseable payload after %d joins (%d bytes)", d.pushBacks, len(d.pending))
		d.pending = ""
		d.pushBacks = 0
	}
	return "", nil
}

func (d *Decoder) extract(v any) (string, error) {
	if err := upstreamError(v); err != nil {
		return "", err
	}
	if d.format.Inspect != nil {
		if err := d.format.Inspect(v); err != nil {
			return "", err
		}
	}
	return d.format.Text.Text(v), nil
}

func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line[len(dataPrefix):], " ")
	return strings.TrimSpace(payload), true
}

func isField(line string) bool {
	for _, f := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, f) {
			return true
		}
	}
	return false
}

// upstreamError recognises {"error": {...}} and {"error": "..."} payloads.
func upstreamError(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := obj["error"]
	if !ok || raw == nil {
		return nil
	}

	ue := &UpstreamError{}
	switch e := raw.(type) {
	case string:
		ue.Message = e
	case map[string]any:
		ue.Message, _ = e["message"].(string)
		if code, ok := e["code"].(float64); ok {
			ue.Status = int(code)
		}
		if status, ok := e["status"].(string); ok {
			ue.Code = status
		} else if typ, ok := e["type"].(string); ok {
			ue.Code = typ
		}
	default:
		ue.Message = fmt.Sprint(e)
	}
	if ue.Message == "" {
		ue.Message = "unknown upstream error"
	}
	return ue
}
