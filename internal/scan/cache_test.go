package scan

import (
	"context"
	"testing"
	"time"

	"github.com/wirechat/wirechat/internal/models"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/page", "https://example.com/page"},
		{"HTTPS://example.com/page", "https://example.com/page"},
		{"https://example.com:443/page", "https://example.com/page"},
		{"http://example.com:80/page", "http://example.com/page"},
		{"http://example.com:8080/page", "http://example.com:8080/page"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/", "https://example.com"},
		{"  https://example.com/page  ", "https://example.com/page"},
		{"https://example.com/page?b=2&a=1", "https://example.com/page?b=2&a=1"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if err != nil {
			t.Errorf("NormalizeURL(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	for _, in := range []string{"", "not a url at all \x7f://", "/relative/path", "example.com/page"} {
		if _, err := NormalizeURL(in); err == nil {
			t.Errorf("NormalizeURL(%q) accepted a non-absolute url", in)
		}
	}
}

func TestVerdictKeyIsStable(t *testing.T) {
	a := verdictKey("https://example.com/page")
	b := verdictKey("https://example.com/page")
	c := verdictKey("https://example.com/other")

	if a != b {
		t.Fatal("same url produced different keys")
	}
	if a == c {
		t.Fatal("different urls produced the same key")
	}
}

func TestMemoryCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	got, err := cache.Get(ctx, "https://example.com")
	if err != nil || got != nil {
		t.Fatalf("empty cache get = (%v, %v), want miss", got, err)
	}

	v := &models.ScanVerdict{Safe: true, Status: models.ScanStatusSafe, Score: 0.1}
	if err := cache.Put(ctx, "https://example.com", v); err != nil {
		t.Fatal(err)
	}

	got, err = cache.Get(ctx, "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != models.ScanStatusSafe || got.Score != 0.1 {
		t.Fatalf("cached verdict = %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	current := time.Now()
	cache.now = func() time.Time { return current }

	v := &models.ScanVerdict{Safe: true, Status: models.ScanStatusSafe}
	if err := cache.Put(ctx, "https://example.com", v); err != nil {
		t.Fatal(err)
	}

	current = current.Add(VerdictTTL - time.Minute)
	if got, _ := cache.Get(ctx, "https://example.com"); got == nil {
		t.Fatal("entry expired before its ttl")
	}

	current = current.Add(2 * time.Minute)
	if got, _ := cache.Get(ctx, "https://example.com"); got != nil {
		t.Fatal("entry survived past its ttl")
	}
}

func TestMemoryCacheReturnsCopy(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	v := &models.ScanVerdict{Status: models.ScanStatusSafe}
	_ = cache.Put(ctx, "https://example.com", v)

	first, _ := cache.Get(ctx, "https://example.com")
	first.Status = models.ScanStatusMalicious

	second, _ := cache.Get(ctx, "https://example.com")
	if second.Status != models.ScanStatusSafe {
		t.Fatal("cache entry mutated through a returned verdict")
	}
}
