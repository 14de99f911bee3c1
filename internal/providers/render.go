package providers

import (
	"context"
	"regexp"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/template"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Prepare performs safe `{key}`-placeholder substitution over msg.Content:
// known keys in params are substituted, unknown ones are left untouched.
// This is the Go analogue of the original's SafeDict-backed format_map.
func Prepare(msg domain.Message, params map[string]string) domain.Message {
	msg.Content = placeholderRe.ReplaceAllStringFunc(msg.Content, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := params[key]; ok {
			return v
		}
		return match
	})
	return msg
}

// Render produces the final body for a single recipient: if msg.Template is
// empty, msg.Content is returned unchanged; otherwise it's rendered through
// engine using the standard context (recipient, username, message, subject,
// plus any extra fields the caller supplies).
func Render(ctx context.Context, engine template.Engine, to domain.Recipient, msg domain.Message, subject string, extra map[string]any) (string, error) {
	if msg.Template == "" {
		return msg.Content, nil
	}
	data := template.StandardContext(to, msg.Content, subject, extra)
	return engine.Render(ctx, msg.Template, data)
}
