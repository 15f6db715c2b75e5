// Package ratelimit applies per-caller hourly and daily quotas to chat
// requests, with whitelist and loopback bypasses.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/adalundhe/relay/core/locale"
)

// Decision is the outcome of a quota check. Message is set, localized, only
// when the request is denied.
type Decision struct {
	Allowed bool
	Message string
}

// Gate is the rate-limiting seam in front of the router. WindowLimiter
// enforces quotas; Noop is the disabled toggle.
type Gate interface {
	CheckAndConsume(callerID, userAgent, ip, referrer string, lang locale.Lang) Decision
}

// Noop allows everything.
type Noop struct{}

func (Noop) CheckAndConsume(_, _, _, _ string, _ locale.Lang) Decision {
	return Decision{Allowed: true}
}

type Config struct {
	MaxPerHour     int
	MaxPerDay      int
	Whitelist      []string
	LoopbackBypass bool
}

type Option func(*WindowLimiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *WindowLimiter) {
		l.logger = logger
	}
}

// WindowLimiter counts requests per caller fingerprint in fixed hourly and
// daily windows held in a TTL counter store. Store failures fail open:
// chat availability outranks strict quota enforcement.
type WindowLimiter struct {
	config    Config
	store     CounterStore
	whitelist []glob.Glob
	logger    *slog.Logger
}

func NewWindowLimiter(config Config, store CounterStore, opts ...Option) *WindowLimiter {
	l := &WindowLimiter{
		config: config,
		store:  store,
		logger: slog.Default(),
	}

	for _, pattern := range config.Whitelist {
		g, err := glob.Compile(pattern)
		if err != nil {
			// Unparseable pattern degrades to an exact match.
			g = mustLiteral(pattern)
		}
		l.whitelist = append(l.whitelist, g)
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func mustLiteral(s string) glob.Glob {
	g, err := glob.Compile(glob.QuoteMeta(s))
	if err != nil {
		return nil
	}
	return g
}

// Fingerprint derives the caller's counter key from its identifier and
// user-agent. One-way and deterministic; used only as a cache key.
func Fingerprint(callerID, userAgent string) string {
	sum := sha256.Sum256([]byte(callerID + userAgent))
	return hex.EncodeToString(sum[:])
}

// CheckAndConsume applies bypass rules, then checks the hourly and daily
// windows for the caller, incrementing both on allow.
//
// The whitelist compares a client-supplied address, so it is a development
// convenience, not an authentication control.
func (l *WindowLimiter) CheckAndConsume(callerID, userAgent, ip, referrer string, lang locale.Lang) Decision {
	if l.whitelisted(ip) {
		return Decision{Allowed: true}
	}
	if l.config.LoopbackBypass && isLoopbackReferrer(referrer) {
		return Decision{Allowed: true}
	}

	fp := Fingerprint(callerID, userAgent)
	hourKey := fp + ":hour"
	dayKey := fp + ":day"

	hourly, err := l.store.Count(hourKey)
	if err != nil {
		return l.failOpen(err)
	}
	if hourly >= l.config.MaxPerHour {
		return Decision{Message: locale.HourlyLimit(lang, l.config.MaxPerHour)}
	}

	daily, err := l.store.Count(dayKey)
	if err != nil {
		return l.failOpen(err)
	}
	if daily >= l.config.MaxPerDay {
		return Decision{Message: locale.DailyLimit(lang, l.config.MaxPerDay)}
	}

	if _, err := l.store.Incr(hourKey, time.Hour); err != nil {
		return l.failOpen(err)
	}
	if _, err := l.store.Incr(dayKey, 24*time.Hour); err != nil {
		return l.failOpen(err)
	}

	return Decision{Allowed: true}
}

func (l *WindowLimiter) whitelisted(ip string) bool {
	if ip == "" {
		return false
	}
	for _, g := range l.whitelist {
		if g != nil && g.Match(ip) {
			return true
		}
	}
	return false
}

func isLoopbackReferrer(referrer string) bool {
	return strings.Contains(referrer, "localhost") || strings.Contains(referrer, "127.0.0.1")
}

func (l *WindowLimiter) failOpen(err error) Decision {
	l.logger.Warn("rate limit store unavailable, allowing request", "error", err)
	return Decision{Allowed: true}
}
