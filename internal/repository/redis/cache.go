package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const aiCacheKeyPrefix = "ai:"

// ResponseCache stores text-generation responses keyed by a hash of the prompt
type ResponseCache struct {
	client *Client
	ttl    time.Duration
}

func NewResponseCache(client *Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

// promptKey hashes the model and prompt so keys stay short and fixed-size
func promptKey(model, prompt string) string {
	h := xxhash.New()
	_, _ = h.WriteString(model)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(prompt)
	return aiCacheKeyPrefix + model + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// Get returns the cached response and whether it was found
func (c *ResponseCache) Get(ctx context.Context, model, prompt string) (string, bool, error) {
	v, err := c.client.Get(ctx, promptKey(model, prompt))
	if errors.Is(err, ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *ResponseCache) Set(ctx context.Context, model, prompt, response string) error {
	return c.client.Set(ctx, promptKey(model, prompt), response, c.ttl)
}
