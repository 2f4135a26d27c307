package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/cache"
	"github.com/felixgeelhaar/ragent/domain/config"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

func TestCache_prefixKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		keyPrefix string
		key       string
		want      string
	}{
		{"default prefix", "ragent:", "vector_search:ab12", "ragent:tool:vector_search:ab12"},
		{"empty prefix", "", "fetch:00", "tool:fetch:00"},
		{"scan pattern", "prod:", "*", "prod:tool:*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewCacheFromClient(nil, tt.keyPrefix).prefixKey(tt.key); got != tt.want {
				t.Errorf("prefixKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("WRONGTYPE")
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", timeoutError{}, true},
		{"other", plain, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := wrapError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("wrapError(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("wrapError() = %v, want it to wrap %v", got, tt.err)
			}
			if errors.Is(got, cache.ErrOperationTimeout) != tt.wantTimeout {
				t.Errorf("timeout classification = %v, want %v", !tt.wantTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestCache_InvalidKeyAndCancelledContext(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil, "test:")
	if err := c.Set(context.Background(), "", []byte("x"), cache.SetOptions{}); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v, want ErrInvalidKey", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if _, err := c.Exists(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exists() error = %v, want context.Canceled", err)
	}
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil, "test:")
	c.hits.Add(3)
	c.misses.Add(2)

	stats := c.Stats()
	if stats.Hits != 3 || stats.Misses != 2 {
		t.Errorf("Stats() = %+v, want 3 hits 2 misses", stats)
	}
}

func TestNewCache_Unreachable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	_, err := NewCache(context.Background(), cfg,
		WithAddress("127.0.0.1:1"),
		WithTimeouts(200*time.Millisecond, 200*time.Millisecond, 200*time.Millisecond),
	)
	if !errors.Is(err, cache.ErrConnectionFailed) {
		t.Errorf("NewCache() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	got := ConfigFrom(config.RedisConfig{})
	if got != DefaultConfig() {
		t.Errorf("ConfigFrom(zero) = %+v, want defaults", got)
	}

	got = ConfigFrom(config.RedisConfig{Address: "cache:6380", DB: 2, KeyPrefix: "qa:"})
	if got.Address != "cache:6380" || got.DB != 2 || got.KeyPrefix != "qa:" {
		t.Errorf("ConfigFrom() = %+v", got)
	}
	if got.PoolSize != DefaultConfig().PoolSize {
		t.Errorf("PoolSize = %d, want default", got.PoolSize)
	}
}
