package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/adalundhe/relay/core/locale"
)

// AnswerCache short-circuits dispatch for recently answered questions.
// A nil cache (size <= 0) is valid and never hits.
type AnswerCache struct {
	lru *expirable.LRU[string, string]
}

func NewAnswerCache(size int, ttl time.Duration) *AnswerCache {
	if size <= 0 {
		return nil
	}
	return &AnswerCache{
		lru: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *AnswerCache) Get(lang locale.Lang, question string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.lru.Get(cacheKey(lang, question))
}

func (c *AnswerCache) Add(lang locale.Lang, question, answer string) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(lang, question), answer)
}

func cacheKey(lang locale.Lang, question string) string {
	sum := sha256.Sum256([]byte(string(lang) + "\x1f" + question))
	return hex.EncodeToString(sum[:])
}
