// Package ratelimit enforces per-source UDP packet budgets for the
// listener. Each source (ip, port) gets a sliding one-minute window
// plus a burst cap; windows unseen for an hour are evicted lazily.
package ratelimit

import (
	"net/netip"
	"sync"
	"time"
)

const (
	window     = time.Minute
	evictAfter = time.Hour
)

type source struct {
	mu        sync.Mutex
	stamps    []time.Time
	lastSeen  time.Time
	packets   int64
}

// Limiter tracks per-(ip,port) sliding windows under a sharded lock: each
// source is mutated only through its own mutex, so concurrent sources never
// contend.
type Limiter struct {
	perMinute int
	burst     int

	mu      sync.RWMutex
	sources map[netip.AddrPort]*source
}

// New creates a Limiter enforcing perMinute packets per minute and burst
// packets within any window, per source.
func New(perMinute, burst int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		burst:     burst,
		sources:   make(map[netip.AddrPort]*source),
	}
}

// Allow records a packet arrival from addr at now and reports whether it is
// within the per-minute and burst budgets. On first sight of a source it
// always admits the packet and reports firstSeen=true.
func (l *Limiter) Allow(addr netip.AddrPort, now time.Time) (allowed bool, firstSeen bool) {
	src, firstSeen := l.sourceFor(addr)

	src.mu.Lock()
	defer src.mu.Unlock()

	src.lastSeen = now
	src.packets++

	cutoff := now.Add(-window)
	kept := src.stamps[:0]
	for _, ts := range src.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	src.stamps = kept

	if len(src.stamps) >= l.perMinute || len(src.stamps) >= l.burst {
		return false, firstSeen
	}

	src.stamps = append(src.stamps, now)
	return true, firstSeen
}

func (l *Limiter) sourceFor(addr netip.AddrPort) (*source, bool) {
	l.mu.RLock()
	src, ok := l.sources[addr]
	l.mu.RUnlock()
	if ok {
		return src, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if src, ok := l.sources[addr]; ok {
		return src, false
	}
	src = &source{stamps: make([]time.Time, 0, l.burst)}
	l.sources[addr] = src
	return src, true
}

// EvictStale removes sources with no activity for more than an hour. Call
// periodically from the listener's background maintenance loop.
func (l *Limiter) EvictStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for addr, src := range l.sources {
		src.mu.Lock()
		stale := now.Sub(src.lastSeen) > evictAfter
		src.mu.Unlock()
		if stale {
			delete(l.sources, addr)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of tracked sources, mainly for tests/metrics.
func (l *Limiter) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sources)
}
