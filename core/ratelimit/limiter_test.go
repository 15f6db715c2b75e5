package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/relay/core/locale"
)

type fakeStore struct {
	counts map[string]int
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: make(map[string]int)}
}

func (s *fakeStore) Count(key string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[key], nil
}

func (s *fakeStore) Incr(key string, _ time.Duration) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func newLimiter(t *testing.T, cfg Config, store CounterStore) *WindowLimiter {
	t.Helper()
	if cfg.MaxPerHour == 0 {
		cfg.MaxPerHour = 3
	}
	if cfg.MaxPerDay == 0 {
		cfg.MaxPerDay = 10
	}
	return NewWindowLimiter(cfg, store)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("user-1", "agent")
	b := Fingerprint("user-1", "agent")
	c := Fingerprint("user-2", "agent")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestCheckAndConsume_HourlyLimit(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 3, MaxPerDay: 100}, store)

	for i := 0; i < 3; i++ {
		d := l.CheckAndConsume("caller", "agent", "203.0.113.5", "", locale.English)
		require.True(t, d.Allowed, "request %d should be allowed", i)
	}

	denied := l.CheckAndConsume("caller", "agent", "203.0.113.5", "", locale.English)
	assert.False(t, denied.Allowed)
	assert.Equal(t, locale.HourlyLimit(locale.English, 3), denied.Message)

	// A different fingerprint in the same window is unaffected.
	other := l.CheckAndConsume("someone-else", "agent", "203.0.113.5", "", locale.English)
	assert.True(t, other.Allowed)
}

func TestCheckAndConsume_DailyLimit(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 100, MaxPerDay: 2}, store)

	require.True(t, l.CheckAndConsume("c", "a", "", "", locale.Russian).Allowed)
	require.True(t, l.CheckAndConsume("c", "a", "", "", locale.Russian).Allowed)

	denied := l.CheckAndConsume("c", "a", "", "", locale.Russian)
	assert.False(t, denied.Allowed)
	assert.Equal(t, locale.DailyLimit(locale.Russian, 2), denied.Message)
}

func TestCheckAndConsume_LocalizedDenial(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 1, MaxPerDay: 100}, store)

	require.True(t, l.CheckAndConsume("c", "a", "", "", locale.Russian).Allowed)

	denied := l.CheckAndConsume("c", "a", "", "", locale.Russian)
	assert.False(t, denied.Allowed)
	assert.Equal(t, locale.HourlyLimit(locale.Russian, 1), denied.Message)
}

func TestCheckAndConsume_WhitelistBypassesCounters(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{
		MaxPerHour: 1,
		MaxPerDay:  1,
		Whitelist:  []string{"172.16.255.61"},
	}, store)

	// Saturate the counters for the fingerprint first.
	fp := Fingerprint("c", "a")
	store.counts[fp+":hour"] = 99
	store.counts[fp+":day"] = 99

	d := l.CheckAndConsume("c", "a", "172.16.255.61", "", locale.English)
	assert.True(t, d.Allowed)

	// Whitelisted traffic does not consume quota either.
	assert.Equal(t, 99, store.counts[fp+":hour"])
}

func TestCheckAndConsume_WhitelistGlobPattern(t *testing.T) {
	l := newLimiter(t, Config{
		MaxPerHour: 1,
		MaxPerDay:  1,
		Whitelist:  []string{"10.0.*"},
	}, newFakeStore())

	assert.True(t, l.CheckAndConsume("c", "a", "10.0.0.7", "", locale.English).Allowed)
	assert.True(t, l.CheckAndConsume("c", "a", "10.0.12.1", "", locale.English).Allowed)
}

func TestCheckAndConsume_LoopbackReferrerBypass(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 1, MaxPerDay: 1, LoopbackBypass: true}, store)

	fp := Fingerprint("c", "a")
	store.counts[fp+":hour"] = 99

	for _, ref := range []string{
		"http://localhost:3000/index.html",
		"http://127.0.0.1/portfolio",
	} {
		d := l.CheckAndConsume("c", "a", "203.0.113.5", ref, locale.English)
		assert.True(t, d.Allowed, "referrer %s", ref)
	}
}

func TestCheckAndConsume_LoopbackBypassDisabled(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 1, MaxPerDay: 1, LoopbackBypass: false}, store)

	fp := Fingerprint("c", "a")
	store.counts[fp+":hour"] = 99

	d := l.CheckAndConsume("c", "a", "", "http://localhost:3000/", locale.English)
	assert.False(t, d.Allowed)
}

func TestCheckAndConsume_FailsOpenOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("store down")
	l := newLimiter(t, Config{MaxPerHour: 1, MaxPerDay: 1}, store)

	d := l.CheckAndConsume("c", "a", "", "", locale.English)
	assert.True(t, d.Allowed)
}

func TestCheckAndConsume_IncrementsBothWindows(t *testing.T) {
	store := newFakeStore()
	l := newLimiter(t, Config{MaxPerHour: 10, MaxPerDay: 10}, store)

	l.CheckAndConsume("c", "a", "", "", locale.English)

	fp := Fingerprint("c", "a")
	assert.Equal(t, 1, store.counts[fp+":hour"])
	assert.Equal(t, 1, store.counts[fp+":day"])
}

func TestNoop_AlwaysAllows(t *testing.T) {
	var g Gate = Noop{}
	for i := 0; i < 100; i++ {
		d := g.CheckAndConsume(fmt.Sprintf("c%d", i), "a", "", "", locale.English)
		require.True(t, d.Allowed)
	}
}
