package gateway

import (
	"regexp"
	"strings"
)

// DefaultMention is always recognized, whatever the configured bot name.
const DefaultMention = "regelebot"

// Mentions decides which group messages the bot answers.
type Mentions struct {
	pattern *regexp.Regexp
}

// NewMentions matches "@regelebot" and "@<botName>", case-insensitively.
func NewMentions(botName string) *Mentions {
	names := []string{regexp.QuoteMeta(DefaultMention)}
	if name := strings.ToLower(strings.TrimSpace(botName)); name != "" && name != DefaultMention {
		names = append(names, regexp.QuoteMeta(name))
	}
	return &Mentions{
		pattern: regexp.MustCompile(`(?i)@(?:` + strings.Join(names, "|") + `)\s*`),
	}
}

// IsCommand reports whether message is a slash command.
func IsCommand(message string) bool {
	return strings.HasPrefix(message, "/")
}

// ShouldRespond reports whether message is a command or mentions the bot.
func (m *Mentions) ShouldRespond(message string) bool {
	return IsCommand(message) || m.pattern.MatchString(message)
}

// Clean removes the bot mentions from message.
func (m *Mentions) Clean(message string) string {
	return strings.TrimSpace(m.pattern.ReplaceAllString(message, ""))
}
