package source

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Source with Redis-backed read-through caching.
type Cache struct {
	base  Source
	redis *redis.Client
	ttl   time.Duration
	// Prefix namespaces keys when several deployments share one Redis.
	Prefix string
}

// NewCache creates a caching Source wrapper using the provided Redis client and TTL.
func NewCache(base Source, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("source.NewCache: base source is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, Prefix: "taskboard:"}
}

func (c *Cache) Todos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	if c.load(ctx, c.key("todos"), &todos) {
		return todos, nil
	}
	todos, err := c.base.Todos(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.key("todos"), todos)
	return todos, nil
}

func (c *Cache) Todo(ctx context.Context, id int64) (Todo, error) {
	key := c.key("todo:" + strconv.FormatInt(id, 10))
	var todo Todo
	if c.load(ctx, key, &todo) {
		return todo, nil
	}
	todo, err := c.base.Todo(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	c.store(ctx, key, todo)
	return todo, nil
}

func (c *Cache) Users(ctx context.Context) ([]User, error) {
	var users []User
	if c.load(ctx, c.key("users"), &users) {
		return users, nil
	}
	users, err := c.base.Users(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.key("users"), users)
	return users, nil
}

// Evict drops every cached remote response.
func (c *Cache) Evict(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	keys, err := c.redis.Keys(ctx, c.Prefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the remote source without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) key(name string) string {
	return c.Prefix + name
}
