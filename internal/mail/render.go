package mail

import (
	"fmt"
	"html"
)

// Template kinds produced by the core's job consumers.
const (
	TemplateScanAlert    = "scan-alert"
	TemplateUnreadDigest = "unread-digest"
)

// FallbackRenderer produces minimal HTML bodies when no real template
// renderer is injected. Real deployments replace this with the application's
// template engine.
type FallbackRenderer struct{}

func (FallbackRenderer) Render(kind string, data map[string]any) (string, error) {
	switch kind {
	case TemplateScanAlert:
		return fmt.Sprintf(
			"<p>A link you shared was flagged as <strong>%s</strong>.</p><p>URL: %s</p><p>%s</p>",
			html.EscapeString(str(data["status"])),
			html.EscapeString(str(data["url"])),
			html.EscapeString(str(data["reasoning"])),
		), nil
	case TemplateUnreadDigest:
		return fmt.Sprintf(
			"<p>Hi %s,</p><p>You have %v unread messages waiting for you.</p>",
			html.EscapeString(str(data["name"])),
			data["unread_count"],
		), nil
	}
	return "", fmt.Errorf("mail: unknown template kind %q", kind)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
