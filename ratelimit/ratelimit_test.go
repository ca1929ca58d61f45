package ratelimit

import (
	"testing"
	"time"
)

// fixedClock lets tests advance time deterministically.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(window time.Duration) (*Limiter, *fixedClock) {
	clock := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	l := New(window)
	l.now = clock.now
	return l, clock
}

func TestCheck_AdmitsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)

	for i := 0; i < 3; i++ {
		d := l.Check("k", 3)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 3-i-1 {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, d.Remaining, 3-i-1)
		}
	}

	d := l.Check("k", 3)
	if d.Allowed {
		t.Fatal("fourth request should be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("denied Remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter < 59 {
		t.Errorf("RetryAfter = %d, want >= 59", d.RetryAfter)
	}
}

func TestCheck_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(time.Minute)

	for i := 0; i < 2; i++ {
		l.Check("k", 2)
	}
	if l.Check("k", 2).Allowed {
		t.Fatal("limit reached, should deny")
	}

	clock.advance(61 * time.Second)

	if !l.Check("k", 2).Allowed {
		t.Error("after the window slides past old timestamps, requests admit again")
	}
}

func TestCheck_IdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)

	l.Check("a", 1)
	if l.Check("a", 1).Allowed {
		t.Error("identifier a should be at its limit")
	}
	if !l.Check("b", 1).Allowed {
		t.Error("identifier b has its own window")
	}
}

func TestCheck_NeverExceedsLimitWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(time.Minute)

	admitted := 0
	for i := 0; i < 200; i++ {
		if l.Check("k", 10).Allowed {
			admitted++
		}
		clock.advance(100 * time.Millisecond) // 200 calls over 20s, all in-window
	}
	if admitted > 10 {
		t.Errorf("admitted %d requests within one window, limit is 10", admitted)
	}
}

func TestCleanup_RemovesEmptyIdentifiers(t *testing.T) {
	l, clock := newTestLimiter(time.Minute)

	l.Check("a", 5)
	l.Check("b", 5)
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	clock.advance(2 * time.Minute)
	l.Cleanup()

	if l.Len() != 0 {
		t.Errorf("Len() = %d after Cleanup, want 0", l.Len())
	}
}

func TestCleanup_KeepsActiveIdentifiers(t *testing.T) {
	l, clock := newTestLimiter(time.Minute)

	l.Check("old", 5)
	clock.advance(59 * time.Second)
	l.Check("fresh", 5)
	clock.advance(30 * time.Second)
	l.Cleanup()

	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (only the fresh identifier)", l.Len())
	}
}
