package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const page = "<!DOCTYPE html>\n<html>\n<head><style>body{color:red}</style></head>\n<body><button>Hello</button>\n<script>const s = `a`;</script>\n</body>\n</html>"

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		source Source
	}{
		{
			name:   "fenced html block",
			raw:    "```html\n" + page + "\n```",
			want:   page,
			source: SourceFence,
		},
		{
			name:   "fenced with chatter around it",
			raw:    "Sure! Here is your site:\n\n```html\n" + page + "\n```\nLet me know if you want changes.",
			want:   page,
			source: SourceFence,
		},
		{
			name:   "upper case language tag and CRLF",
			raw:    "```HTML\r\n" + page + "\r\n```",
			want:   page,
			source: SourceFence,
		},
		{
			name:   "skips non markup fence before the html one",
			raw:    "```css\nbody{}\n```\n```html\n" + page + "\n```",
			want:   page,
			source: SourceFence,
		},
		{
			name:   "untagged fence holding markup",
			raw:    "```\n" + page + "\n```",
			want:   page,
			source: SourceFence,
		},
		{
			name:   "closing fence glued to last line",
			raw:    "```html\n<html><body>x</body></html>```",
			want:   "<html><body>x</body></html>",
			source: SourceFence,
		},
		{
			name:   "bare doctype without fences",
			raw:    "\n\n  " + page + "  \n",
			want:   page,
			source: SourceDoctype,
		},
		{
			name:   "lower case doctype",
			raw:    "<!doctype html><html></html>",
			want:   "<!doctype html><html></html>",
			source: SourceDoctype,
		},
		{
			name:   "neither fence nor doctype",
			raw:    "  <div>just a fragment</div>\n",
			want:   "<div>just a fragment</div>",
			source: SourceRaw,
		},
		{
			name:   "plain chatter",
			raw:    "I cannot help with that.",
			want:   "I cannot help with that.",
			source: SourceRaw,
		},
		{
			name:   "empty input",
			raw:    "   ",
			want:   "",
			source: SourceRaw,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze(tt.raw)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.source, res.Source)
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestExtractIdempotentOnFencedInput(t *testing.T) {
	inputs := []string{
		page,
		"<html><body><p>one line</p></body></html>",
		"<!DOCTYPE html><html><script>let x = 1 > 0 && '``';</script></html>",
	}
	for _, x := range inputs {
		once := Extract("```html\n" + x + "\n```")
		assert.Equal(t, x, once)
		assert.Equal(t, x, Extract("```html\n"+once+"\n```"))
	}
}

func TestExtractOnGrowingPrefix(t *testing.T) {
	raw := "Here you go:\n```html\n" + page + "\n```\nEnjoy!"

	for i := 0; i <= len(raw); i++ {
		prefix := raw[:i]
		assert.NotPanics(t, func() {
			got := Analyze(prefix)
			// Never surface the closing fence, even half written.
			assert.False(t, strings.HasSuffix(got.Content, "``") && got.Source == SourceFence, "prefix %d: %q", i, got.Content)
		})
	}

	partial := raw[:strings.Index(raw, "<body>")]
	res := Analyze(partial)
	assert.Equal(t, SourceFence, res.Source)
	assert.False(t, res.Complete)
	assert.True(t, strings.HasPrefix(res.Content, "<!DOCTYPE html>"))

	full := Analyze(raw)
	assert.True(t, full.Complete)
	assert.Equal(t, page, full.Content)
}

func TestExtractTruncatedMarkup(t *testing.T) {
	got := Extract("```html\n<!DOCTYPE html><html><body><div class=\"a")
	assert.Equal(t, "<!DOCTYPE html><html><body><div class=\"a", got)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(""), ErrEmptyDocument)
	assert.ErrorIs(t, Validate(" \n\t"), ErrEmptyDocument)
	assert.NoError(t, Validate("<p>x</p>"))
}

func TestLooksLikeMarkup(t *testing.T) {
	assert.True(t, LooksLikeMarkup("  <!DOCTYPE html>"))
	assert.True(t, LooksLikeMarkup("<HTML lang=\"en\">"))
	assert.False(t, LooksLikeMarkup("<div>"))
	assert.False(t, LooksLikeMarkup("hello"))
}
