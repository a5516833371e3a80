package gateway

import (
	"regexp"
	"strings"
)

var (
	quotedSenderPrefix = regexp.MustCompile(`(?i)^\s*\[Message de [^\]]+\]\s*`)
	anyMention         = regexp.MustCompile(`@\w+\s*`)
)

// FormatReply wraps text in a WhatsApp monospace block after removing an
// echo of the member's message the model may have prepended.
func FormatReply(text, original string) string {
	if text == "" {
		return text
	}
	return "```" + stripQuoted(text, original) + "```"
}

func stripQuoted(text, original string) string {
	text = quotedSenderPrefix.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if clean := strings.TrimSpace(anyMention.ReplaceAllString(original, "")); clean != "" {
		if strings.HasPrefix(text, clean) {
			text = strings.TrimSpace(text[len(clean):])
		}
	}
	return text
}
