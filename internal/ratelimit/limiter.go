package ratelimit

import (
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a new rate limiter with the specified rate (requests per second)
// and burst capacity (maximum tokens that can accumulate)
func New(ratePerSecond float64, burstCapacity int) *Limiter {
	return &Limiter{
		tokens:     float64(burstCapacity),
		maxTokens:  float64(burstCapacity),
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
	}
}

// refill adds tokens based on elapsed time since last refill
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Allow checks if a request can proceed immediately
// Returns true and consumes a token if available, false otherwise
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Tokens returns the current number of available tokens (approximate)
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// KeyedLimiter maintains one token bucket per key so each webhook
// source is throttled independently
type KeyedLimiter struct {
	mu            sync.Mutex
	limiters      map[string]*Limiter
	ratePerSecond float64
	burstCapacity int
}

// NewKeyed creates a keyed limiter where every key gets its own bucket
// refilled at perMinute requests per minute with burst capacity equal
// to the per-minute rate
func NewKeyed(perMinute int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters:      make(map[string]*Limiter),
		ratePerSecond: float64(perMinute) / 60.0,
		burstCapacity: perMinute,
	}
}

// Allow checks whether a request for the given key can proceed
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.ratePerSecond, k.burstCapacity)
		k.limiters[key] = l
	}
	k.mu.Unlock()

	return l.Allow()
}
