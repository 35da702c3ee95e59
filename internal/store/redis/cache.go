package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"candlescope/internal/model"
)

const (
	keyPrefix       = "cs:"
	defaultTTL      = 10 * time.Minute
	scanBatch       = 256
	breakerFailures = 5
	breakerReset    = 10 * time.Second
)

// Config configures the Redis memo cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // entry lifetime; <= 0 uses the default
}

// kv is the slice of the go-redis API the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
}

// Cache memoizes aggregated candles and rendered charts. Every call goes
// through a circuit breaker; a failing or open Redis reads as a miss and
// writes are skipped, so callers always fall back to recomputing.
type Cache struct {
	client *goredis.Client
	kv     kv
	cb     *CircuitBreaker
	ttl    time.Duration

	// Callbacks (optional), labelled by kind: "candles" or "chart".
	OnHit  func(kind string)
	OnMiss func(kind string)
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	c := newCache(client, cfg.TTL)
	c.client = client
	return c, nil
}

func newCache(store kv, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		kv:  store,
		cb:  NewCircuitBreaker(breakerFailures, breakerReset),
		ttl: ttl,
	}
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Breaker exposes the circuit breaker so callers can observe transitions.
func (c *Cache) Breaker() *CircuitBreaker { return c.cb }

func sessionPrefix(instrument, date string) string {
	return keyPrefix + instrument + ":" + date + ":"
}

// CandlesKey identifies the candles of one instrument/date/interval.
func CandlesKey(instrument, date string, interval int) string {
	return sessionPrefix(instrument, date) + "candles:" + model.Itoa(interval)
}

// ChartKey identifies one rendered chart.
func ChartKey(instrument, date string, interval int, mode, highlight string, width, height int) string {
	return sessionPrefix(instrument, date) + "chart:" + model.Itoa(interval) + ":" + mode + ":" +
		highlight + ":" + model.Itoa(width) + "x" + model.Itoa(height)
}

// GetCandles returns the cached candles under key, or false on a miss.
func (c *Cache) GetCandles(ctx context.Context, key string) ([]model.Candle, bool) {
	data, ok := c.get(ctx, "candles", key)
	if !ok {
		return nil, false
	}
	var candles []model.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		log.Printf("[redis] corrupt candles at %s: %v", key, err)
		return nil, false
	}
	return candles, true
}

// SetCandles caches candles under key.
func (c *Cache) SetCandles(ctx context.Context, key string, candles []model.Candle) {
	data, err := json.Marshal(candles)
	if err != nil {
		log.Printf("[redis] marshal candles: %v", err)
		return
	}
	c.set(ctx, key, data)
}

// GetChart returns the cached PNG under key, or false on a miss.
func (c *Cache) GetChart(ctx context.Context, key string) ([]byte, bool) {
	return c.get(ctx, "chart", key)
}

// SetChart caches a rendered PNG under key.
func (c *Cache) SetChart(ctx context.Context, key string, png []byte) {
	c.set(ctx, key, png)
}

// Invalidate drops every entry of instrument/date, e.g. after its ticks are
// re-imported. Returns the number of keys removed.
func (c *Cache) Invalidate(ctx context.Context, instrument, date string) (int64, error) {
	var removed int64
	err := c.cb.Execute(func() error {
		var cursor uint64
		for {
			keys, next, err := c.kv.Scan(ctx, cursor, sessionPrefix(instrument, date)+"*", scanBatch).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				n, err := c.kv.Del(ctx, keys...).Result()
				if err != nil {
					return err
				}
				removed += n
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	if err != nil {
		return removed, fmt.Errorf("redis invalidate %s %s: %w", instrument, date, err)
	}
	return removed, nil
}

func (c *Cache) get(ctx context.Context, kind, key string) ([]byte, bool) {
	var data []byte
	err := c.cb.Execute(func() error {
		b, err := c.kv.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		data = b
		return err
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		log.Printf("[redis] get %s: %v", key, err)
	}
	if err != nil || data == nil {
		if c.OnMiss != nil {
			c.OnMiss(kind)
		}
		return nil, false
	}
	if c.OnHit != nil {
		c.OnHit(kind)
	}
	return data, true
}

func (c *Cache) set(ctx context.Context, key string, data []byte) {
	err := c.cb.Execute(func() error {
		return c.kv.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		log.Printf("[redis] set %s: %v", key, err)
	}
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
