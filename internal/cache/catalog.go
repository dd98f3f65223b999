package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const ProductsCacheKey = "inventory:products"

// Catalog caches the branch-independent product list. Implementations never
// fail the caller; a miss just means reading the database.
type Catalog interface {
	Products(ctx context.Context) ([]models.Product, bool)
	SetProducts(ctx context.Context, products []models.Product)
	InvalidateProducts(ctx context.Context)
}

type Noop struct{}

func (Noop) Products(context.Context) ([]models.Product, bool) { return nil, false }
func (Noop) SetProducts(context.Context, []models.Product)     {}
func (Noop) InvalidateProducts(context.Context)                {}

func NewRedisClient(cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

type RedisCatalog struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewRedisCatalog(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCatalog {
	return &RedisCatalog{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisCatalog) Products(ctx context.Context) ([]models.Product, bool) {
	raw, err := c.rdb.Get(ctx, ProductsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("catalog cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.log.Warn("catalog cache entry is corrupt", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (c *RedisCatalog) SetProducts(ctx context.Context, products []models.Product) {
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, ProductsCacheKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.Error(err))
	}
}

func (c *RedisCatalog) InvalidateProducts(ctx context.Context) {
	if err := c.rdb.Del(ctx, ProductsCacheKey).Err(); err != nil {
		c.log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
