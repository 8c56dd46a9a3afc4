package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

type countingClient struct {
	calls int
	text  string
	err   error
}

func (c *countingClient) Generate(ctx context.Context, req *Request) (*RawResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &RawResponse{Text: c.text, Model: "m", Attempts: 1}, nil
}

func (c *countingClient) GetModel(tier ModelTier) string { return "m-" + string(tier) }
func (c *countingClient) Close() error                   { return nil }

func TestCachedClient_ServesRepeatedRequests(t *testing.T) {
	inner := &countingClient{text: `{"a": 1}`}
	cache := &memoryCache{entries: map[string][]byte{}}
	client := NewCachedClient(inner, cache, nil)

	req := &Request{Tier: TierAdvanced, Prompt: "page 1", Images: []Image{{MIMEType: "image/png", Data: []byte("img")}}}

	first, err := client.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, second.Attempts)
	assert.Equal(t, first.Text, second.Text)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedClient_DoesNotStoreEmptyOrFailed(t *testing.T) {
	cache := &memoryCache{entries: map[string][]byte{}}

	empty := &countingClient{}
	_, err := NewCachedClient(empty, cache, nil).Generate(context.Background(), &Request{Prompt: "p"})
	require.NoError(t, err)

	failing := &countingClient{err: errors.New("boom")}
	_, err = NewCachedClient(failing, cache, nil).Generate(context.Background(), &Request{Prompt: "q"})
	require.Error(t, err)

	assert.Empty(t, cache.entries)
}

func TestCachedClient_CacheErrorsAreIgnored(t *testing.T) {
	inner := &countingClient{text: "x"}
	client := NewCachedClient(inner, &memoryCache{entries: map[string][]byte{}, failGet: true}, nil)

	resp, err := client.Generate(context.Background(), &Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "x", resp.Text)
}

func TestCachedClient_BypassRefreshesEntry(t *testing.T) {
	inner := &countingClient{text: "stale"}
	cache := &memoryCache{entries: map[string][]byte{}}
	client := NewCachedClient(inner, cache, nil)
	req := &Request{Prompt: "p"}

	_, err := client.Generate(context.Background(), req)
	require.NoError(t, err)

	inner.text = "fresh"
	ctx := WithoutCachedResponses(context.Background())
	assert.True(t, CachedResponsesBypassed(ctx))
	assert.False(t, CachedResponsesBypassed(context.Background()))

	resp, err := client.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "fresh", resp.Text)
	assert.Equal(t, 2, inner.calls)

	resp, err = client.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "fresh", resp.Text)
	assert.Equal(t, 2, inner.calls)
}

func TestCacheKey(t *testing.T) {
	temp := float32(1)
	base := &Request{System: "s", Prompt: "p", Images: []Image{{MIMEType: "image/png", Data: []byte("a")}}}

	key := CacheKey("model", base)
	assert.Equal(t, key, CacheKey("model", &Request{System: "s", Prompt: "p", Images: []Image{{MIMEType: "image/png", Data: []byte("a")}}}))

	variants := []*Request{
		{System: "s", Prompt: "p"},
		{System: "s", Prompt: "p2", Images: base.Images},
		{System: "sp", Prompt: "", Images: base.Images},
		{System: "s", Prompt: "p", Images: []Image{{MIMEType: "image/png", Data: []byte("b")}}},
		{System: "s", Prompt: "p", Images: base.Images, MaxTokens: 10},
		{System: "s", Prompt: "p", Images: base.Images, Temperature: &temp},
	}
	for i, v := range variants {
		assert.NotEqual(t, key, CacheKey("model", v), "variant %d", i)
	}
	assert.NotEqual(t, key, CacheKey("other", base))
}
