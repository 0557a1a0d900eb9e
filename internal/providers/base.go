package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SwingScan/internal/service/cache"
	"SwingScan/pkg/config"
	xhttp "SwingScan/pkg/http"
)

// HTTPServiceBase centralizes client construction, JSON POST handling, and
// response caching for the signal provider clients.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	cache    cache.BytesCache
	cacheTTL time.Duration
}

func NewHTTPServiceBase(cfg *config.Config, c cache.BytesCache) *HTTPServiceBase {
	timeout := cfg.Providers.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPServiceBase{
		baseURL:  cfg.Providers.BaseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cache:    c,
		cacheTTL: cfg.Providers.Cache.TTL,
	}
}

// PostJSON posts the payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("provider http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONCached is PostJSON behind the bytes cache. The raw response body
// is cached under key so repeated evaluations inside the TTL skip the
// round trip. Cache errors degrade to a direct fetch.
func (b *HTTPServiceBase) PostJSONCached(ctx context.Context, key, path string, payload interface{}, dest interface{}) error {
	if b.cache != nil {
		if raw, ok, err := b.cache.GetBytes(key); err == nil && ok {
			if err := json.Unmarshal(raw, dest); err == nil {
				return nil
			}
		}
	}

	var raw []byte
	if err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, &raw); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if b.cache != nil {
		_ = b.cache.SetBytes(key, raw, b.cacheTTL)
	}
	return nil
}

func cacheKey(provider, symbol string) string {
	return "prov:" + provider + ":" + symbol
}
