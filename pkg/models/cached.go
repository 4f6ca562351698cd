package models

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/Protocol-Lattice/saathi/pkg/cache"
)

// CachedLLM wraps an Agent and caches completions by prompt and attachment bytes.
type CachedLLM struct {
	Agent Agent
	Cache *cache.LRU[any]
}

// NewCachedLLM creates a new CachedLLM wrapper.
func NewCachedLLM(agent Agent, size int, ttl time.Duration) *CachedLLM {
	return &CachedLLM{Agent: agent, Cache: cache.New[any](size, ttl)}
}

// Generate checks the cache before calling the underlying agent.
func (c *CachedLLM) Generate(ctx context.Context, prompt string) (any, error) {
	key := cache.HashKey([]byte(prompt))
	if val, ok := c.Cache.Get(key); ok {
		return val, nil
	}
	res, err := c.Agent.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	c.Cache.Set(key, res)
	return res, nil
}

// GenerateWithFiles checks the cache (including file hashes) before calling the underlying agent.
func (c *CachedLLM) GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error) {
	parts := [][]byte{[]byte(prompt)}
	for _, f := range files {
		parts = append(parts, []byte(f.Name), []byte(f.MIME), f.Data)
	}
	key := cache.HashKey(parts...)
	if val, ok := c.Cache.Get(key); ok {
		return val, nil
	}
	res, err := c.Agent.GenerateWithFiles(ctx, prompt, files)
	if err != nil {
		return nil, err
	}
	c.Cache.Set(key, res)
	return res, nil
}

// TryCreateCachedLLM wraps agent when size is positive. A zero size falls back
// to SAATHI_LLM_CACHE_SIZE / SAATHI_LLM_CACHE_TTL (seconds).
func TryCreateCachedLLM(agent Agent, size int, ttl time.Duration) Agent {
	if size <= 0 {
		if n, err := strconv.Atoi(os.Getenv("SAATHI_LLM_CACHE_SIZE")); err == nil {
			size = n
		}
	}
	if size <= 0 {
		return agent
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
		if sec, err := strconv.Atoi(os.Getenv("SAATHI_LLM_CACHE_TTL")); err == nil && sec > 0 {
			ttl = time.Duration(sec) * time.Second
		}
	}
	return NewCachedLLM(agent, size, ttl)
}

var _ Agent = (*CachedLLM)(nil)
