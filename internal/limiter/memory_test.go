package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BlocksAtThresholdAndExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()
	c := HashClient("1.2.3.4")

	for i := 0; i < 2; i++ {
		if blocked, _, _ := m.Failure(ctx, "a@x.com", c); blocked {
			t.Fatalf("blocked too early at attempt %d", i+1)
		}
	}
	blocked, d, err := m.Failure(ctx, "A@X.com", c)
	if err != nil || !blocked || d != 5*time.Minute {
		t.Fatalf("third failure must block: %v %v %v", blocked, d, err)
	}
	if ok, left, _ := m.Allow(ctx, "a@x.com", c); ok || left != 5*time.Minute {
		t.Fatalf("want blocked for 5m, got ok=%v left=%v", ok, left)
	}
	if ok, _, _ := m.Allow(ctx, "a@x.com", HashClient("9.9.9.9")); !ok {
		t.Fatalf("other client must not be blocked")
	}

	now = now.Add(6 * time.Minute)
	if ok, _, _ := m.Allow(ctx, "a@x.com", c); !ok {
		t.Fatalf("block must expire")
	}
}

func TestMemory_WindowResetsAndSuccessClears(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()
	c := HashClient("1.2.3.4")

	_, _, _ = m.Failure(ctx, "a", c)
	now = now.Add(2 * time.Minute)
	if blocked, _, _ := m.Failure(ctx, "a", c); blocked {
		t.Fatalf("failure outside the window must start a new count")
	}
	_ = m.Success(ctx, "a", c)
	if blocked, _, _ := m.Failure(ctx, "a", c); blocked {
		t.Fatalf("success must clear the count")
	}
}

func TestHashClient_Determinism(t *testing.T) {
	a, b, c := HashClient("1.2.3.4"), HashClient("1.2.3.4"), HashClient("5.6.7.8")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("unexpected hashes")
	}
}
