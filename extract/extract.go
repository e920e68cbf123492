// Package extract summarises a matched message element as a short line of
// text for the prompt list.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/promptnav/dom"
)

// Options controls summarisation.
type Options struct {
	// MaxLen is the maximum length in characters before truncation. Default: 80.
	MaxLen int `yaml:"max_len"`
	// Ellipsis is appended to truncated text. Default: "...".
	Ellipsis string `yaml:"ellipsis"`
	// ImageMarker prefixes text of elements that also embed images. Default: "[Image]".
	ImageMarker string `yaml:"image_marker"`
}

func (o *Options) defaults() {
	if o.MaxLen <= 0 {
		o.MaxLen = 80
	}
	if o.Ellipsis == "" {
		o.Ellipsis = "..."
	}
	if o.ImageMarker == "" {
		o.ImageMarker = "[Image]"
	}
}

// Extractor turns elements into prompt text.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	opts.defaults()
	return &Extractor{opts: opts}
}

// Extract returns the summary for el. An empty string means the element
// carries neither text nor images and should be skipped. Errors come from
// the element, typically dom.ErrDetached.
func (x *Extractor) Extract(ctx context.Context, el dom.Element) (string, error) {
	raw, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	images, err := el.ImageCount(ctx)
	if err != nil {
		return "", err
	}
	return x.Summarize(raw, images), nil
}

// Summarize applies the text policy to already-read element content. Text
// is trimmed; inner whitespace and line breaks are kept.
func (x *Extractor) Summarize(text string, images int) string {
	text = strings.TrimSpace(text)

	switch {
	case text == "" && images == 0:
		return ""
	case text == "":
		text = imagePlaceholder(images)
	case images > 0:
		text = x.opts.ImageMarker + " " + text
	}

	return x.truncate(text)
}

// truncate cuts at MaxLen characters with no word awareness.
func (x *Extractor) truncate(s string) string {
	if utf8.RuneCountInString(s) <= x.opts.MaxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:x.opts.MaxLen]) + x.opts.Ellipsis
}

func imagePlaceholder(n int) string {
	if n == 1 {
		return "[1 image]"
	}
	return fmt.Sprintf("[%d images]", n)
}
