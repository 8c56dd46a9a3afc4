package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), Config{URL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}

func TestNewRedis_Defaults(t *testing.T) {
	r := newRedis(redis.NewClient(&redis.Options{Addr: "localhost:0"}), Config{})
	defer r.Close()

	assert.Equal(t, DefaultTTL, r.ttl)
	assert.Equal(t, "ocr-review:llm:abc", r.key("llm:abc"))
}

func TestRedis_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, Config{URL: url, Prefix: "ocr-review-test", TTL: time.Minute})
	require.NoError(t, err)
	defer r.Close()

	key := uuid.NewString()
	defer r.Delete(ctx, key)

	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte(`{"text":"x"}`)))

	data, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"text":"x"}`, string(data))
}
