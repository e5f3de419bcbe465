package core

import (
	"errors"
	"net/url"
	"strings"
)

const (
	// DefaultPlaceholder is substituted with the selected overlay ids.
	DefaultPlaceholder = "{overlayIds}"
	// DefaultQuote wraps every id the way the imagery browser expects
	// ids inside its overlays parameter.
	DefaultQuote = `\\\"`
	// DefaultLinkTemplate is used when nothing else is configured.
	DefaultLinkTemplate = "https://homevisit.local/project?overlays=" + DefaultPlaceholder
)

// ErrLinkTemplateMissing is returned by NewLinkBuilder for an empty template.
var ErrLinkTemplateMissing = errors.New("link template is empty")

// LinkBuilder renders a deep link for a list of overlay ids.
type LinkBuilder struct {
	Template    string
	Placeholder string
	Quote       string
	// QueryEscape URL-query-escapes every id before quoting.
	QueryEscape bool
}

// NewLinkBuilder returns a builder with the default placeholder and quote.
func NewLinkBuilder(template string) (LinkBuilder, error) {
	if strings.TrimSpace(template) == "" {
		return LinkBuilder{}, ErrLinkTemplateMissing
	}
	return LinkBuilder{Template: template, Placeholder: DefaultPlaceholder, Quote: DefaultQuote}, nil
}

// Build substitutes the first placeholder occurrence with the comma-joined,
// quoted ids. No ids yields an empty substitution.
func (b LinkBuilder) Build(ids []string) string {
	placeholder := b.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return strings.Replace(b.Template, placeholder, b.join(ids), 1)
}

func (b LinkBuilder) join(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		if b.QueryEscape {
			id = url.QueryEscape(id)
		}
		sb.WriteString(b.Quote)
		sb.WriteString(id)
		sb.WriteString(b.Quote)
	}
	return sb.String()
}
