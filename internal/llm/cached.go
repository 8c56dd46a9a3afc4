package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math"
)

// ResponseCache stores raw responses keyed by request fingerprint.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type bypassKey struct{}

// WithoutCachedResponses marks ctx so cached clients call the model instead of
// serving a stored response. The fresh response replaces the stored one.
func WithoutCachedResponses(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// CachedResponsesBypassed reports whether ctx was marked by WithoutCachedResponses.
func CachedResponsesBypassed(ctx context.Context) bool {
	bypass, _ := ctx.Value(bypassKey{}).(bool)
	return bypass
}

// CachedClient wraps a Client and serves repeated identical requests from a cache.
// Cache failures are logged and never fail the call.
type CachedClient struct {
	Client
	cache  ResponseCache
	logger *slog.Logger
}

// NewCachedClient creates a caching decorator around inner.
func NewCachedClient(inner Client, cache ResponseCache, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{Client: inner, cache: cache, logger: logger}
}

// Generate returns a cached response when one exists for an identical request.
// Only responses with non-empty text are stored.
func (c *CachedClient) Generate(ctx context.Context, req *Request) (*RawResponse, error) {
	key := CacheKey(c.GetModel(req.Tier), req)

	var (
		data []byte
		ok   bool
		err  error
	)
	if !CachedResponsesBypassed(ctx) {
		data, ok, err = c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("response cache read failed", "error", err)
		}
	}
	if ok {
		var cached RawResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Cached = true
			cached.Attempts = 0
			return &cached, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	}

	resp, err := c.Client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Text != "" {
		if data, err := json.Marshal(resp); err == nil {
			if err := c.cache.Set(ctx, key, data); err != nil {
				c.logger.Warn("response cache write failed", "error", err)
			}
		}
	}
	return resp, nil
}

// CacheKey fingerprints everything that influences the model output.
func CacheKey(model string, req *Request) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}

	writeField([]byte(model))
	writeField([]byte(req.System))
	writeField([]byte(req.Prompt))
	for _, img := range req.Images {
		sum := sha256.Sum256(img.Data)
		writeField([]byte(img.MIMEType))
		writeField(sum[:])
	}

	var params [24]byte
	binary.BigEndian.PutUint64(params[0:], uint64(req.MaxTokens))
	binary.BigEndian.PutUint64(params[8:], uint64(req.ReasoningBudget))
	if req.Temperature != nil {
		binary.BigEndian.PutUint64(params[16:], uint64(math.Float32bits(*req.Temperature))|1<<32)
	}
	writeField(params[:])

	return "llm:" + hex.EncodeToString(h.Sum(nil))
}
