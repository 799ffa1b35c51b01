package moodle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/encryption"
	"github.com/guiqiqi/itmo-moodle-agent/redis"
)

// tokenCachePurpose separates the cache key from other uses of the secret.
const tokenCachePurpose = "moodle-token-cache"

// TokenCache keeps web-service tokens in Redis, sealed with a key derived
// from the service secret. Each entry is bound to its cache key, so a
// ciphertext copied to another key does not open.
type TokenCache struct {
	client *redis.Client
	enc    encryption.Encryptor
	ttl    time.Duration
}

// NewTokenCache creates a TokenCache sealing entries under secret.
func NewTokenCache(client *redis.Client, secret string, ttl time.Duration) (*TokenCache, error) {
	enc, err := encryption.New(secret, tokenCachePurpose)
	if err != nil {
		return nil, fmt.Errorf("moodle token cache: %w", err)
	}
	return &TokenCache{client: client, enc: enc, ttl: ttl}, nil
}

// TokenKey names the cache entry for username on the site at baseURL.
func TokenKey(baseURL, username string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "moodle:token:" + host + ":" + username
}

// Get returns the cached token. A missing or unreadable entry reports
// found=false; unreadable entries are removed.
func (c *TokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, err := c.client.Get(ctx, key)
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	token, err := c.enc.Decrypt(sealed, key)
	if errors.Is(err, encryption.ErrDecrypt) {
		_ = c.client.Del(ctx, key)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// Put stores token under key.
func (c *TokenCache) Put(ctx context.Context, key, token string) error {
	sealed, err := c.enc.Encrypt(token, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, sealed, c.ttl)
}

// Invalidate removes the entry for key.
func (c *TokenCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key)
}
