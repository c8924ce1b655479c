package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端包装器，所有键自动加上前缀
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient 创建新的Redis客户端
func NewClient(addr, password string, db int, prefix string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := &Client{
		rdb:    rdb,
		prefix: prefix,
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", addr, err)
	}

	return client, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetWithExpiration 设置键值对（带过期时间，0 表示永久）
func (c *Client) SetWithExpiration(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, value, expiration).Err()
}

// GetBytes returns nil without error when the key does not exist.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	result := c.rdb.Get(ctx, c.prefix+key)
	if result.Err() == redis.Nil {
		return nil, nil
	}
	return result.Bytes()
}

// DelPrefix deletes every key under the client prefix and returns how many
// were removed.
func (c *Client) DelPrefix(ctx context.Context) (int64, error) {
	var removed int64
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if len(batch) > 0 {
		n, err := c.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
