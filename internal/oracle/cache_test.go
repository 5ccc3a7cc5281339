package oracle

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c, err := NewCacheFromURL(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Minute)
	if err != nil {
		t.Fatalf("NewCacheFromURL: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if got, err := c.Get(ctx, startFEN, 12); err != nil || got != nil {
		t.Fatalf("expected miss, got %+v err=%v", got, err)
	}

	want := Reply{Move: "e2e4", Eval: 0.3, HasEval: true}
	if err := c.Put(ctx, startFEN, 12, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(ctx, startFEN, 12)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}

	// Same position at a different depth is a distinct entry
	if other, err := c.Get(ctx, startFEN, 10); err != nil || other != nil {
		t.Fatalf("depth collision: %+v err=%v", other, err)
	}
}

func TestCacheInvalidURL(t *testing.T) {
	if _, err := NewCacheFromURL("not a url", time.Minute); err == nil {
		t.Fatal("expected parse error")
	}
}
