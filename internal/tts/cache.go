package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachingSynthesizer remembers recent audio by script so a retried stage
// does not pay for the same narration twice.
type CachingSynthesizer struct {
	next  Synthesizer
	cache *cache.Cache
}

// NewCachingSynthesizer wraps next with an in-memory cache
func NewCachingSynthesizer(next Synthesizer, ttl, cleanup time.Duration) *CachingSynthesizer {
	return &CachingSynthesizer{
		next:  next,
		cache: cache.New(ttl, cleanup),
	}
}

// Synthesize returns cached audio for text or calls through. Failures are
// never cached.
func (s *CachingSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := cacheKey(text)
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), nil
	}

	audio, err := s.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, audio)
	return audio, nil
}

// Forget drops the cached audio for text
func (s *CachingSynthesizer) Forget(text string) {
	s.cache.Delete(cacheKey(text))
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(CleanForSpeech(text)))
	return hex.EncodeToString(sum[:])
}
