package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

type ConnectionInfo struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// Client wraps go-redis and namespaces every key with a prefix
type Client struct {
	raw    *goredis.Client
	prefix string
}

// NewClient connects and pings the server
func NewClient(info ConnectionInfo) (*Client, error) {
	if info.Timeout == 0 {
		info.Timeout = 3 * time.Second
	}
	if info.DialTimeout == 0 {
		info.DialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         info.Addr,
		Password:     info.Password,
		DB:           info.DB,
		MaxRetries:   info.MaxRetries,
		DialTimeout:  info.DialTimeout,
		ReadTimeout:  info.Timeout,
		WriteTimeout: info.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), info.Timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Client{raw: rdb, prefix: normalizePrefix(info.Prefix)}, nil
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return "mlms:"
	}
	if prefix[len(prefix)-1] != ':' {
		return prefix + ":"
	}
	return prefix
}

func (c *Client) Close() {
	if c == nil || c.raw == nil {
		return
	}
	_ = c.raw.Close()
}

func (c *Client) withPrefix(key string) string {
	return c.prefix + key
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.raw.Set(ctx, c.withPrefix(key), value, ttl).Err()
}

// Get returns ErrCacheMiss when the key is absent
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.raw.Get(ctx, c.withPrefix(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *Client) Del(ctx context.Context, key string) (int64, error) {
	return c.raw.Del(ctx, c.withPrefix(key)).Result()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}
