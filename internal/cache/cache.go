// Package cache 缓存指定种子的优化结果。相同输入与种子的结果完全确定，可以直接复用
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/scheduler/optimizer"
)

// ResultCache 优化结果缓存
type ResultCache interface {
	Get(ctx context.Context, key string) (*optimizer.Result, bool, error)
	Set(ctx context.Context, key string, result *optimizer.Result) error
}

// Request 参与缓存键计算的完整输入
type Request struct {
	Config    optimizer.Config         `json:"config"`
	Employees []model.EmployeeProfile  `json:"employees"`
	Shifts    []model.ShiftRequirement `json:"shifts"`
	Prior     []model.Assignment       `json:"prior,omitempty"`
	Runs      int                      `json:"runs"`
}

// Key 计算缓存键，未指定种子时返回 false
func Key(prefix string, req Request) (string, bool) {
	if req.Config.Seed == nil {
		return "", false
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%s%016x", prefix, h.Sum64()), true
}

// NewRedis 创建 Redis 客户端并测试连通性
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.CodeCacheError, "Redis 连接失败")
	}

	logger.Info().Str("addr", cfg.Addr()).Msg("Redis 连接成功")
	return client, nil
}

// RedisCache 基于 Redis 的结果缓存
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建结果缓存，client 为 nil 时总是未命中
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string) (*optimizer.Result, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, errors.CodeCacheError, "读取缓存失败").WithField("key", key)
	}

	var res optimizer.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, errors.Wrap(err, errors.CodeCacheError, "缓存内容损坏").WithField("key", key)
	}
	return &res, true, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key string, result *optimizer.Result) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "序列化结果失败")
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "写入缓存失败").WithField("key", key)
	}
	return nil
}
