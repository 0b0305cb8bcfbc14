package feed

import (
	"regexp"
	"strings"
)

// Buffer accumulates feed lines and yields complete top-level elements.
// It is not safe for concurrent use.
type Buffer struct {
	text     strings.Builder
	latest   string
	peak     int
	patterns map[string]*regexp.Regexp
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{patterns: make(map[string]*regexp.Regexp)}
}

// Append adds one line of raw text. The line becomes the latest line probed by TryExtract.
func (b *Buffer) Append(line string) {
	b.text.WriteString(line)
	b.latest = strings.ToLower(line)
	if b.text.Len() > b.peak {
		b.peak = b.text.Len()
	}
}

// TryExtract returns the first complete <tag ...>...</tag> span in the buffer.
// The buffer is only searched when the latest appended line contains the closing tag.
func (b *Buffer) TryExtract(tag string) (string, bool) {
	tag = strings.ToLower(tag)
	if !strings.Contains(b.latest, "</"+tag+">") {
		return "", false
	}

	match := b.pattern(tag).FindString(b.text.String())
	if match == "" {
		return "", false
	}
	return match, true
}

// Discard removes the first complete span of tag and trims surrounding whitespace.
func (b *Buffer) Discard(tag string) {
	text := b.text.String()
	loc := b.pattern(strings.ToLower(tag)).FindStringIndex(text)
	if loc == nil {
		return
	}
	rest := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	b.text.Reset()
	b.text.WriteString(rest)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.text.Len()
}

// Peak returns the largest buffered size observed.
func (b *Buffer) Peak() int {
	return b.peak
}

// String returns the buffered text.
func (b *Buffer) String() string {
	return b.text.String()
}

// Reset clears the buffer but keeps compiled patterns.
func (b *Buffer) Reset() {
	b.text.Reset()
	b.latest = ""
	b.peak = 0
}

func (b *Buffer) pattern(tag string) *regexp.Regexp {
	if re, ok := b.patterns[tag]; ok {
		return re
	}
	q := regexp.QuoteMeta(tag)
	re := regexp.MustCompile(`(?is)<` + q + `\b.*?>.*?</` + q + `>`)
	b.patterns[tag] = re
	return re
}
