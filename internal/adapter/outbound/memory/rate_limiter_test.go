package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/ratelimit"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRateLimiter(clock *fakeClock) *RateLimiter {
	r := NewRateLimiter()
	r.now = clock.Now
	return r
}

var loginPolicy = ratelimit.Policy{Rate: 5, Burst: 5, Period: time.Minute}

func TestRateLimiter_AllowsBurstThenDenies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestRateLimiter(newFakeClock())

	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "k", loginPolicy)
		if err != nil {
			t.Fatalf("Allow() #%d error: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("Allow() #%d denied, want allowed", i)
		}
		if want := 4 - i; d.Remaining != want {
			t.Errorf("Allow() #%d Remaining = %d, want %d", i, d.Remaining, want)
		}
	}

	d, err := limiter.Allow(ctx, "k", loginPolicy)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if d.Allowed {
		t.Fatal("sixth attempt allowed, want denied")
	}
	if d.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", d.RetryAfter)
	}
}

func TestRateLimiter_Recovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	limiter := newTestRateLimiter(clock)

	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(ctx, "k", loginPolicy)
	}
	if d, _ := limiter.Allow(ctx, "k", loginPolicy); d.Allowed {
		t.Fatal("attempt allowed after exhaustion")
	}

	clock.Advance(12 * time.Second)
	if d, _ := limiter.Allow(ctx, "k", loginPolicy); !d.Allowed {
		t.Error("attempt denied after one emission interval")
	}
}

func TestRateLimiter_KeyIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestRateLimiter(newFakeClock())
	policy := ratelimit.Policy{Rate: 1, Period: time.Minute}

	if d, _ := limiter.Allow(ctx, ratelimit.FormatKey(ratelimit.KeyTypeIP, "10.0.0.1"), policy); !d.Allowed {
		t.Fatal("first key denied")
	}
	if d, _ := limiter.Allow(ctx, ratelimit.FormatKey(ratelimit.KeyTypeIP, "10.0.0.1"), policy); d.Allowed {
		t.Error("first key allowed twice")
	}
	if d, _ := limiter.Allow(ctx, ratelimit.FormatKey(ratelimit.KeyTypeIP, "10.0.0.2"), policy); !d.Allowed {
		t.Error("second key throttled by first")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestRateLimiter(newFakeClock())
	policy := ratelimit.Policy{Rate: 1, Period: time.Hour}

	_, _ = limiter.Allow(ctx, "k", policy)
	if d, _ := limiter.Allow(ctx, "k", policy); d.Allowed {
		t.Fatal("second attempt allowed")
	}
	if err := limiter.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if d, _ := limiter.Allow(ctx, "k", policy); !d.Allowed {
		t.Error("attempt denied after Reset")
	}
}

func TestRateLimiter_ZeroRateAndBurstDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := newTestRateLimiter(newFakeClock())
	policy := ratelimit.Policy{Period: time.Minute}

	if d, _ := limiter.Allow(ctx, "k", policy); !d.Allowed {
		t.Fatal("first attempt denied with zero rate")
	}
	if d, _ := limiter.Allow(ctx, "k", policy); d.Allowed {
		t.Error("zero rate should behave as one per period")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter := NewRateLimiter()
	policy := ratelimit.Policy{Rate: 50, Period: time.Hour}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, "shared", policy)
			if err != nil {
				t.Errorf("Allow() error: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := NewRateLimiterWithConfig(10*time.Millisecond, 20*time.Millisecond)
	policy := ratelimit.Policy{Rate: 100, Period: time.Second}
	for _, k := range []string{"a", "b", "c"} {
		_, _ = limiter.Allow(ctx, k, policy)
	}
	if limiter.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", limiter.Size())
	}

	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for limiter.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if limiter.Size() != 0 {
		t.Errorf("Size() after cleanup = %d, want 0", limiter.Size())
	}
}

func TestRateLimiterNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	limiter := NewRateLimiterWithConfig(5*time.Millisecond, time.Minute)
	limiter.StartCleanup(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()
	limiter.Stop()
}

func TestRateLimiterStopMultipleCalls(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	limiter.StartCleanup(context.Background())
	limiter.Stop()
	limiter.Stop()
}
