// Package ratelimit provides the token bucket that caps inbound signaling
// message rates per connection.
package ratelimit

import (
	"sync"
	"time"
)

// One token is 1e9 nano-tokens. Fixed-point avoids float rounding drift and
// makes a rate of X tokens/sec exactly X nano-tokens per elapsed nanosecond.
const nanoPerToken int64 = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket refills at an integer rate (tokens/sec) against an injectable
// Clock.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity int64 // tokens
	rate     int64 // tokens/sec

	availableNano int64
	last          time.Time
}

func NewTokenBucket(clock Clock, capacity, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:         clock,
		capacity:      capacity,
		rate:          rate,
		availableNano: toNano(capacity),
		last:          clock.Now(),
	}
}

// Allow consumes tokens if available. tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if tokens <= 0 {
		return true
	}
	cost := toNano(tokens)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.availableNano < cost {
		return false
	}
	b.availableNano -= cost
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Time went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	if elapsed <= 0 {
		return
	}
	b.last = now

	if b.rate <= 0 || b.capacity <= 0 {
		return
	}

	capNano := toNano(b.capacity)
	need := capNano - b.availableNano
	if need <= 0 {
		b.availableNano = capNano
		return
	}

	// elapsed*rate can overflow; if enough time passed to fill the bucket,
	// clamp instead of multiplying.
	if fillTime := need / b.rate; fillTime <= 0 || elapsed >= fillTime {
		b.availableNano = capNano
		return
	}
	b.availableNano += elapsed * b.rate
	if b.availableNano > capNano {
		b.availableNano = capNano
	}
}

func toNano(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanoPerToken {
		return maxInt64
	}
	return tokens * nanoPerToken
}
