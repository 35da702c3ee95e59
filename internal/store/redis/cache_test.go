package redis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescope/internal/model"
)

// memKV is an in-process stand-in for the Redis commands the cache uses.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
	gets int
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) *goredis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return goredis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return goredis.NewStatusResult("", m.err)
	}
	m.data[key] = string(value.([]byte))
	m.ttl[key] = exp
	return goredis.NewStatusResult("OK", nil)
}

func (m *memKV) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (m *memKV) Scan(_ context.Context, _ uint64, match string, _ int64) *goredis.ScanCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return goredis.NewScanCmdResult(nil, 0, m.err)
	}
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return goredis.NewScanCmdResult(keys, 0, nil)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cs:TCS:02-01-2025:candles:5", CandlesKey("TCS", "02-01-2025", 5))
	assert.Equal(t, "cs:TCS:02-01-2025:chart:15:volume:09:30:800x400",
		ChartKey("TCS", "02-01-2025", 15, "volume", "09:30", 800, 400))
}

func TestCache_CandlesRoundTrip(t *testing.T) {
	store := newMemKV()
	c := newCache(store, time.Minute)
	var hits, misses []string
	c.OnHit = func(k string) { hits = append(hits, k) }
	c.OnMiss = func(k string) { misses = append(misses, k) }
	ctx := context.Background()
	key := CandlesKey("TCS", "02-01-2025", 5)

	_, ok := c.GetCandles(ctx, key)
	assert.False(t, ok)

	candles := []model.Candle{
		{Time: "09:15", Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 15, Ticks: 2},
		{Time: "09:20", Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 7, Ticks: 1},
	}
	c.SetCandles(ctx, key, candles)
	assert.Equal(t, time.Minute, store.ttl[key])

	got, ok := c.GetCandles(ctx, key)
	require.True(t, ok)
	assert.Equal(t, candles, got)

	assert.Equal(t, []string{"candles"}, hits)
	assert.Equal(t, []string{"candles"}, misses)
}

func TestCache_Chart(t *testing.T) {
	c := newCache(newMemKV(), 0)
	assert.Equal(t, defaultTTL, c.ttl)

	ctx := context.Background()
	key := ChartKey("TCS", "02-01-2025", 5, "line", "", 800, 400)
	png := []byte("\x89PNG fake")
	c.SetChart(ctx, key, png)
	got, ok := c.GetChart(ctx, key)
	require.True(t, ok)
	assert.Equal(t, png, got)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	store := newMemKV()
	c := newCache(store, time.Minute)
	key := CandlesKey("TCS", "02-01-2025", 5)
	store.data[key] = "{not json"

	_, ok := c.GetCandles(context.Background(), key)
	assert.False(t, ok)
}

func TestCache_FailuresTripBreaker(t *testing.T) {
	store := newMemKV()
	store.err = errors.New("connection refused")
	c := newCache(store, time.Minute)
	ctx := context.Background()
	key := CandlesKey("TCS", "02-01-2025", 5)

	for i := 0; i < breakerFailures; i++ {
		_, ok := c.GetCandles(ctx, key)
		assert.False(t, ok)
	}
	assert.Equal(t, StateOpen, c.Breaker().CurrentState())

	// While open, Redis is not touched at all.
	before := store.gets
	_, ok := c.GetCandles(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, before, store.gets)

	// Writes are silently skipped.
	store.err = nil
	c.SetCandles(ctx, key, []model.Candle{{Time: "09:15"}})
	assert.Empty(t, store.data)
}

func TestCache_Invalidate(t *testing.T) {
	store := newMemKV()
	c := newCache(store, time.Minute)
	ctx := context.Background()

	c.SetCandles(ctx, CandlesKey("TCS", "02-01-2025", 5), nil)
	c.SetChart(ctx, ChartKey("TCS", "02-01-2025", 5, "candlestick", "", 800, 400), []byte("x"))
	c.SetCandles(ctx, CandlesKey("TCS", "03-01-2025", 5), nil)
	c.SetCandles(ctx, CandlesKey("INFY", "02-01-2025", 5), nil)

	n, err := c.Invalidate(ctx, "TCS", "02-01-2025")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.data, 2)

	store.err = errors.New("down")
	_, err = c.Invalidate(ctx, "TCS", "03-01-2025")
	assert.Error(t, err)
}

func TestCache_NilClientClose(t *testing.T) {
	c := newCache(newMemKV(), 0)
	assert.Nil(t, c.Client())
	assert.NoError(t, c.Close())
}
