package mail

import (
	"strings"
	"testing"
)

func TestFallbackRendererScanAlert(t *testing.T) {
	html, err := FallbackRenderer{}.Render(TemplateScanAlert, map[string]any{
		"status":    "MALICIOUS",
		"url":       "https://evil.example.com",
		"reasoning": "known phishing kit",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"MALICIOUS", "https://evil.example.com", "known phishing kit"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q: %s", want, html)
		}
	}
}

func TestFallbackRendererEscapesHTML(t *testing.T) {
	html, err := FallbackRenderer{}.Render(TemplateScanAlert, map[string]any{
		"url": `https://example.com/<script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("unescaped markup in body: %s", html)
	}
}

func TestFallbackRendererUnreadDigest(t *testing.T) {
	html, err := FallbackRenderer{}.Render(TemplateUnreadDigest, map[string]any{
		"name":         "Dana",
		"unread_count": int64(7),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "Dana") || !strings.Contains(html, "7") {
		t.Fatalf("digest body = %s", html)
	}
}

func TestFallbackRendererUnknownTemplate(t *testing.T) {
	if _, err := (FallbackRenderer{}).Render("password-reset", nil); err == nil {
		t.Fatal("unknown template kind should error")
	}
}
