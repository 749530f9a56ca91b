package cache

import (
	"context"
	"testing"
	"time"
)

func TestDepositGuardWithStore(t *testing.T) {
	ctx := context.Background()
	g := NewDepositGuard(openTestStore(t), 0)

	if ok, err := g.ShouldSubmit(ctx, "addr-1"); err != nil || !ok {
		t.Fatalf("first ShouldSubmit = %v, %v", ok, err)
	}
	if ok, _ := g.ShouldSubmit(ctx, "addr-1"); ok {
		t.Fatal("second submit inside the window must be rejected")
	}
	if ok, _ := g.ShouldSubmit(ctx, "addr-2"); !ok {
		t.Fatal("other addresses are independent")
	}
	if err := g.Clear(ctx, "addr-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ok, _ := g.ShouldSubmit(ctx, "addr-1"); !ok {
		t.Fatal("cleared marker should allow a new submit")
	}
}

func TestDepositGuardInMemory(t *testing.T) {
	ctx := context.Background()
	g := NewDepositGuard(nil, 5*time.Second)
	now := time.Date(2025, 12, 11, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if ok, _ := g.ShouldSubmit(ctx, "addr"); !ok {
		t.Fatal("expected first submit")
	}
	now = now.Add(4 * time.Second)
	if ok, _ := g.ShouldSubmit(ctx, "addr"); ok {
		t.Fatal("expected rejection inside the window")
	}
	now = now.Add(2 * time.Second)
	if ok, _ := g.ShouldSubmit(ctx, "addr"); !ok {
		t.Fatal("expected submit after the window")
	}
}
