package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTokenBucketStartsFull(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clock, 3, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow(1) {
			t.Fatalf("allow %d failed with a full bucket", i)
		}
	}
	if b.Allow(1) {
		t.Fatal("allow succeeded with an empty bucket")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clock, 10, 5)

	if !b.Allow(10) {
		t.Fatal("draining a full bucket failed")
	}
	if b.Allow(1) {
		t.Fatal("empty bucket allowed a token")
	}

	clock.advance(200 * time.Millisecond) // 1 token at 5/sec
	if !b.Allow(1) {
		t.Fatal("bucket did not refill after 200ms")
	}
	if b.Allow(1) {
		t.Fatal("bucket refilled more than expected")
	}

	clock.advance(10 * time.Second) // far beyond capacity; clamps
	if !b.Allow(10) {
		t.Fatal("bucket did not clamp to capacity")
	}
	if b.Allow(1) {
		t.Fatal("bucket exceeded capacity")
	}
}

func TestTokenBucketNonPositiveCost(t *testing.T) {
	b := NewTokenBucket(&fakeClock{now: time.Unix(0, 0)}, 0, 0)
	if !b.Allow(0) {
		t.Fatal("zero-cost allow failed")
	}
	if !b.Allow(-5) {
		t.Fatal("negative-cost allow failed")
	}
	if b.Allow(1) {
		t.Fatal("zero-capacity bucket allowed a token")
	}
}

func TestTokenBucketTimeGoingBackwards(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	b := NewTokenBucket(clock, 1, 1)

	if !b.Allow(1) {
		t.Fatal("full bucket rejected a token")
	}

	clock.now = time.Unix(50, 0)
	if b.Allow(1) {
		t.Fatal("bucket refilled while time went backwards")
	}

	clock.advance(time.Second)
	if !b.Allow(1) {
		t.Fatal("bucket did not refill after time recovered")
	}
}
