package settings

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache keeps loaded servers between events. Implementations store copies.
type Cache interface {
	Get(ctx context.Context, serverID string) (*Server, bool, error)
	Set(ctx context.Context, server *Server) error
	Purge(ctx context.Context, serverID string) error
}

type MemCache struct {
	data *expirable.LRU[string, *Server]
}

var _ Cache = (*MemCache)(nil)

func NewMemCache(capacity int, ttl time.Duration) *MemCache {
	return &MemCache{data: expirable.NewLRU[string, *Server](capacity, nil, ttl)}
}

func (c *MemCache) Get(ctx context.Context, serverID string) (*Server, bool, error) {
	server, ok := c.data.Get(serverID)
	if !ok {
		return nil, false, nil
	}
	return server.Clone(), true, nil
}

func (c *MemCache) Set(ctx context.Context, server *Server) error {
	c.data.Add(server.ID, server.Clone())
	return nil
}

func (c *MemCache) Purge(ctx context.Context, serverID string) error {
	c.data.Remove(serverID)
	return nil
}

// RedisCache shares loaded settings between processes, msgpack-encoded.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedisCache parses redisURL and checks the connection before returning.
func DialRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCache(client, ttl), nil
}

func redisCacheKey(serverID string) string {
	return "settings/server/" + serverID
}

func (c *RedisCache) Get(ctx context.Context, serverID string) (*Server, bool, error) {
	raw, err := c.client.Get(ctx, redisCacheKey(serverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var server Server
	if err := msgpack.Unmarshal(raw, &server); err != nil {
		return nil, false, err
	}
	return &server, true, nil
}

func (c *RedisCache) Set(ctx context.Context, server *Server) error {
	raw, err := msgpack.Marshal(server)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisCacheKey(server.ID), raw, c.ttl).Err()
}

func (c *RedisCache) Purge(ctx context.Context, serverID string) error {
	return c.client.Del(ctx, redisCacheKey(serverID)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
