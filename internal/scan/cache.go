// Package scan deduplicates URL safety scans behind a shared verdict cache
// and drives the scan job pipeline: cache check, external classification,
// idempotent persistence, and security-alert email enqueue.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wirechat/wirechat/internal/models"
)

// VerdictTTL is the retention window for cached verdicts.
const VerdictTTL = 24 * time.Hour

// Cache stores scan verdicts keyed by normalized URL. Get returns (nil, nil)
// on a miss.
type Cache interface {
	Get(ctx context.Context, normalizedURL string) (*models.ScanVerdict, error)
	Put(ctx context.Context, normalizedURL string, v *models.ScanVerdict) error
}

// NormalizeURL canonicalizes a target URL so equivalent spellings share one
// cache entry: scheme and host lowercased, default ports stripped, fragment
// dropped, empty path collapsed.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("scan: not an absolute url: %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if host, port, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}
	if u.Path == "/" {
		u.Path = ""
	}

	return u.String(), nil
}

func verdictKey(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return fmt.Sprintf("scan:verdict:%s", hex.EncodeToString(sum[:16]))
}

// RedisCache implements Cache on a shared Redis instance so all consumer
// instances deduplicate against the same entries.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a verdict cache on an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, normalizedURL string) (*models.ScanVerdict, error) {
	data, err := c.client.Get(ctx, verdictKey(normalizedURL)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var v models.ScanVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		// A corrupt entry is treated as a miss; the rescan overwrites it.
		return nil, nil
	}
	return &v, nil
}

func (c *RedisCache) Put(ctx context.Context, normalizedURL string, v *models.ScanVerdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, verdictKey(normalizedURL), data, VerdictTTL).Err()
}
