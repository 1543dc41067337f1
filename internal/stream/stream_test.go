package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen-backend/internal/model"
)

// chunkedBody hands out one predefined chunk per Read call.
type chunkedBody struct {
	chunks [][]byte
	closed bool
}

func newChunkedBody(chunks ...string) *chunkedBody {
	b := &chunkedBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	for len(b.chunks) > 0 && len(b.chunks[0]) == 0 {
		b.chunks = b.chunks[1:]
	}
	if len(b.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks[0] = b.chunks[0][n:]
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}

var textFormat = Format{Text: ParsePath("t")}

func drain(t *testing.T, r *Reader) (string, []model.StreamEvent) {
	t.Helper()
	defer r.Close()
	var text strings.Builder
	var terminals []model.StreamEvent
	for {
		ev, err := r.Recv()
		if err == io.EOF {
			return text.String(), terminals
		}
		require.NoError(t, err)
		if ev.Kind == model.EventDelta {
			require.Empty(t, terminals, "delta after terminal event")
			text.WriteString(ev.Text)
		} else {
			terminals = append(terminals, ev)
		}
	}
}

func TestConsumeEverySplitPoint(t *testing.T) {
	raw := "data: {\"t\":\"<!DOCTYPE html>\"}\n\n" +
		": keep-alive\n\n" +
		"event: message\r\n" +
		"data:{\"t\":\"<p>héllo</p>\"}\r\n\r\n" +
		"data: {\"other\":1}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"t\":\"ignored\"}\n"
	want := "<!DOCTYPE html><p>héllo</p>"

	a := NewAssembler(0, 0)
	for i := 0; i <= len(raw); i++ {
		body := newChunkedBody(raw[:i], raw[i:])
		got, terminals := drain(t, a.Consume(context.Background(), body, textFormat))
		assert.Equal(t, want, got, "split at %d", i)
		require.Len(t, terminals, 1, "split at %d", i)
		assert.Equal(t, model.EventDone, terminals[0].Kind)
	}
}

func TestConsumeByteByByte(t *testing.T) {
	raw := "data: {\"t\":\"a\"}\ndata: {\"t\":\"b\"}\ndata: [DONE]\n"
	chunks := make([]string, 0, len(raw))
	for i := range raw {
		chunks = append(chunks, raw[i:i+1])
	}

	got, err := Collect(NewAssembler(0, 0).Consume(context.Background(), newChunkedBody(chunks...), textFormat))
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}

func TestConsumeEOFWithoutSentinel(t *testing.T) {
	body := newChunkedBody("data: {\"t\":\"a\"}\n", "data: {\"t\":\"b\"}")
	got, terminals := drain(t, NewAssembler(0, 0).Consume(context.Background(), body, textFormat))
	assert.Equal(t, "ab", got)
	require.Len(t, terminals, 1)
	assert.Equal(t, model.EventDone, terminals[0].Kind)
	assert.True(t, body.closed)
}

func TestConsumeUpstreamError(t *testing.T) {
	body := newChunkedBody(
		"data: {\"t\":\"partial\"}\n",
		"data: {\"error\":{\"code\":429,\"message\":\"Resource has been exhausted\",\"status\":\"RESOURCE_EXHAUSTED\"}}\n",
		"data: {\"t\":\"never\"}\n",
	)
	got, err := Collect(NewAssembler(0, 0).Consume(context.Background(), body, textFormat))
	assert.Equal(t, "partial", got)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 429, ue.Status)
	assert.Equal(t, "RESOURCE_EXHAUSTED", ue.Code)
}

func TestConsumeInspectRejects(t *testing.T) {
	blocked := errors.New("blocked")
	format := Format{
		Text: ParsePath("t"),
		Inspect: func(payload any) error {
			if v, ok := ParsePath("finish").Lookup(payload); ok && v == "SAFETY" {
				return blocked
			}
			return nil
		},
	}
	body := newChunkedBody("data: {\"t\":\"x\"}\ndata: {\"finish\":\"SAFETY\"}\n")
	got, err := Collect(NewAssembler(0, 0).Consume(context.Background(), body, format))
	assert.Equal(t, "x", got)
	assert.ErrorIs(t, err, blocked)
}

func TestDecoderJoinsSplitPayload(t *testing.T) {
	d := NewDecoder(textFormat)
	out, err := d.Feed([]byte("data: {\"t\":\"line1\nline2\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"line1\nline2"}, out)

	d = NewDecoder(Format{Text: ParsePath("t")})
	out, err = d.Feed([]byte("data: {\"t\":\n\"whitespace split\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"whitespace split"}, out)
}

func TestDecoderPushBackCap(t *testing.T) {
	feed := "data: {\"t\":\"x\njunk1\njunk2\n\"}\n"

	d := NewDecoder(textFormat)
	out, err := d.Feed([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, []string{"x\njunk1\njunk2\n"}, out)

	capped := NewDecoder(textFormat).WithLimits(2, 0)
	out, err = capped.Feed([]byte(feed))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = capped.Feed([]byte("data: {\"t\":\"next\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, out)
}

func TestDecoderNewDataLineDropsPending(t *testing.T) {
	d := NewDecoder(textFormat)
	out, err := d.Feed([]byte("data: {\"t\":\"bro\ndata: {\"t\":\"ok\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, out)
}

func TestConsumeCloseStopsProducer(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewAssembler(0, 0).Consume(context.Background(), pr, textFormat)

	go func() {
		_, _ = pw.Write([]byte("data: {\"t\":\"first\"}\n"))
	}()

	ev, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", ev.Text)

	require.NoError(t, r.Close())
	_, err = r.Recv()
	assert.ErrorIs(t, err, context.Canceled)

	_, werr := pw.Write([]byte("data: {\"t\":\"late\"}\n"))
	assert.ErrorIs(t, werr, io.ErrClosedPipe)
	assert.NoError(t, r.Close())
}

func TestConsumeParentDeadline(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := NewAssembler(0, 0).Consume(ctx, pr, textFormat)
	defer r.Close()

	_, err := r.Recv()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGoProducerError(t *testing.T) {
	boom := errors.New("boom")
	r := Go(context.Background(), 0, func(ctx context.Context, w *Writer) error {
		if err := w.Delta("a"); err != nil {
			return err
		}
		_ = w.Delta("")
		return boom
	})

	got, err := Collect(r)
	assert.Equal(t, "a", got)
	assert.ErrorIs(t, err, boom)
}

func TestOnCloseAfterClose(t *testing.T) {
	r := Go(context.Background(), 0, func(ctx context.Context, w *Writer) error { return nil })
	require.NoError(t, r.Close())

	called := false
	r.OnClose(func() { called = true })
	assert.True(t, called)
}

func TestFieldPathLookup(t *testing.T) {
	payload := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "hi"}}}},
		},
	}
	p := ParsePath("candidates.0.content.parts.0.text")
	assert.Equal(t, "hi", p.Text(payload))
	assert.Equal(t, "", ParsePath("candidates.1.content").Text(payload))
	assert.Equal(t, "", ParsePath("candidates.x").Text(payload))
	assert.Equal(t, "candidates.0.content.parts.0.text", p.String())
}
