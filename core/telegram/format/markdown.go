// Package format escapes user text for Telegram markdown parse modes.
package format

import (
	"fmt"
	"strings"
)

// Markdown versions accepted by EscapeMarkdown.
const (
	MarkdownV1 = 1
	MarkdownV2 = 2
)

// EntityCode marks text placed inside `code` or ```pre``` entities.
const EntityCode = "code"

var (
	v1Escaper     = escaper("_*`[")
	v2Escaper     = escaper("_*[]()~`>#+-=|{}.!\\")
	v2CodeEscaper = escaper("`\\")
)

// escaper prefixes every rune of special with a backslash.
func escaper(special string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(special))
	for _, r := range special {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes text for the given markdown version. Inside V2 code
// entities only backticks and backslashes are escaped.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return v1Escaper.Replace(text), nil
	case MarkdownV2:
		if strings.EqualFold(entityType, EntityCode) {
			return v2CodeEscaper.Replace(text), nil
		}
		return v2Escaper.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Code wraps text in a MarkdownV2 inline code entity.
func Code(text string) string {
	escaped, _ := EscapeMarkdown(text, MarkdownV2, EntityCode)
	return "`" + escaped + "`"
}
