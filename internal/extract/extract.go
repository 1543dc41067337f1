// Package extract isolates the HTML document from raw model output.
package extract

import (
	"errors"
	"strings"
)

var ErrEmptyDocument = errors.New("extracted document is empty")

// Source records which rule of the fallback chain produced a result.
type Source string

const (
	SourceFence   Source = "fence"
	SourceDoctype Source = "doctype"
	SourceRaw     Source = "raw"
)

type Result struct {
	Content string
	Source  Source
	// Complete is false while a fenced block is still missing its closing fence.
	Complete bool
}

const fence = "```"

var markupLangs = map[string]bool{
	"html":  true,
	"htm":   true,
	"xhtml": true,
}

// Extract returns the document embedded in raw. It never fails: a fenced markup block
// wins, then text that already starts with a doctype, then the trimmed input as is.
// raw may be an incomplete prefix of a stream; an unterminated fence yields what has
// arrived so far.
func Extract(raw string) string {
	return Analyze(raw).Content
}

// Analyze is Extract with the rule that matched.
func Analyze(raw string) Result {
	if body, closed, ok := fencedMarkup(raw); ok {
		return Result{Content: body, Source: SourceFence, Complete: closed}
	}

	trimmed := strings.TrimSpace(raw)
	if HasDoctype(trimmed) {
		return Result{Content: trimmed, Source: SourceDoctype, Complete: true}
	}
	return Result{Content: trimmed, Source: SourceRaw, Complete: true}
}

// Validate rejects content that cannot be rendered at all.
func Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyDocument
	}
	return nil
}

// HasDoctype reports whether s begins with a document type declaration.
func HasDoctype(s string) bool {
	return hasPrefixFold(strings.TrimSpace(s), "<!doctype")
}

// LooksLikeMarkup reports whether s starts with a doctype or an <html> root tag.
func LooksLikeMarkup(s string) bool {
	s = strings.TrimSpace(s)
	return HasDoctype(s) || hasPrefixFold(s, "<html")
}

// fencedMarkup scans for the first fenced block whose info string is a markup
// language and returns its trimmed interior and whether the block was closed.
func fencedMarkup(raw string) (string, bool, bool) {
	offset := 0
	for {
		idx := strings.Index(raw[offset:], fence)
		if idx == -1 {
			return "", false, false
		}
		afterOpen := offset + idx + len(fence)

		lineEnd := strings.IndexByte(raw[afterOpen:], '\n')
		if lineEnd == -1 {
			// The info string itself is still streaming in.
			return "", false, false
		}
		lang := strings.TrimSpace(raw[afterOpen : afterOpen+lineEnd])
		bodyStart := afterOpen + lineEnd + 1

		closeIdx := closingFence(raw[bodyStart:])
		if !isMarkupFence(lang, raw[bodyStart:]) {
			if closeIdx == -1 {
				return "", false, false
			}
			offset = bodyStart + closeIdx + len(fence)
			continue
		}

		if closeIdx == -1 {
			return strings.TrimSpace(trimPartialFence(raw[bodyStart:])), false, true
		}
		return strings.TrimSpace(raw[bodyStart : bodyStart+closeIdx]), true, true
	}
}

// isMarkupFence accepts an html-tagged fence, or an untagged one whose body opens
// with markup.
func isMarkupFence(lang, body string) bool {
	if lang == "" {
		return LooksLikeMarkup(body)
	}
	return markupLangs[strings.ToLower(lang)]
}

// closingFence prefers a fence at the start of a line, so backticks inside inline
// script strings do not end the block early. A fence glued to the last line of
// markup is accepted when no line-start fence exists.
func closingFence(body string) int {
	first := -1
	pos := 0
	for {
		idx := strings.Index(body[pos:], fence)
		if idx == -1 {
			return first
		}
		at := pos + idx
		if at == 0 || body[at-1] == '\n' {
			return at
		}
		if first == -1 {
			first = at
		}
		pos = at + len(fence)
	}
}

// trimPartialFence drops a trailing run of one or two backticks at line start, which
// is a closing fence still in flight.
func trimPartialFence(body string) string {
	nl := strings.LastIndexByte(body, '\n')
	tail := body[nl+1:]
	if tail != "" && strings.Trim(tail, "`") == "" && len(tail) < len(fence) {
		return body[:nl+1]
	}
	return body
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
