package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"lyrics-engine/pkg/fileutil"
	"lyrics-engine/pkg/lyric"
	"lyrics-engine/pkg/redis"
)

// ResultCache 保存可缓存的查询结果
type ResultCache interface {
	Get(ctx context.Context, key string) (*lyric.SourceResult, bool)
	Set(ctx context.Context, key string, res *lyric.SourceResult) error
	Clear(ctx context.Context) error
}

// redisCache 基于 Redis 的结果缓存
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(client *redis.Client, ttl time.Duration) *redisCache {
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) (*lyric.SourceResult, bool) {
	data, err := c.client.GetBytes(ctx, key)
	if err != nil || data == nil {
		return nil, false
	}
	var res lyric.SourceResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (c *redisCache) Set(ctx context.Context, key string, res *lyric.SourceResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return c.client.SetWithExpiration(ctx, key, data, c.ttl)
}

func (c *redisCache) Clear(ctx context.Context) error {
	_, err := c.client.DelPrefix(ctx)
	return err
}

// fileCache 每个结果一个 JSON 文件
type fileCache struct {
	dir string
}

func newFileCache(dir string) *fileCache {
	return &fileCache{dir: dir}
}

var unsafeFilenameRe = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(name string) string {
	return unsafeFilenameRe.ReplaceAllString(name, "-")
}

func (c *fileCache) path(key string) string {
	return filepath.Join(c.dir, sanitizeFilename(key)+".json")
}

func (c *fileCache) Get(_ context.Context, key string) (*lyric.SourceResult, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var res lyric.SourceResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (c *fileCache) Set(_ context.Context, key string, res *lyric.SourceResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return fileutil.WriteFileOverwrite(c.path(key), data, 0644)
}

func (c *fileCache) Clear(context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
