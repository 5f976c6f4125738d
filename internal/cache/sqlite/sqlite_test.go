package sqlite

import (
	"context"
	"testing"
	"time"
)

func openTest(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestGetSet(t *testing.T) {
	b := openTest(t)
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("miss must report ok=false, not an error")
	}

	if err := b.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "v" {
		t.Errorf("wrong value: %q", v)
	}
}

func TestOverwrite(t *testing.T) {
	b := openTest(t)
	ctx := context.Background()

	_ = b.Set(ctx, "k", []byte("old"), time.Minute)
	_ = b.Set(ctx, "k", []byte("new"), time.Minute)

	v, ok, err := b.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "new" {
		t.Errorf("upsert did not replace value: %q", v)
	}
}

func TestExpiry(t *testing.T) {
	b := openTest(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_ = b.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Error("entry should be gone after expiry")
	}
	// The expired row is deleted, so the next read is a plain miss.
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Error("expired row should have been deleted")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	b := openTest(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_ = b.Set(ctx, "k", []byte("v"), 0)
	now = now.Add(1000 * time.Hour)
	if _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Error("zero TTL must mean no expiry")
	}
}

func TestExists(t *testing.T) {
	b := openTest(t)
	ctx := context.Background()

	exists, err := b.Exists(ctx, "k")
	if err != nil || exists {
		t.Errorf("expected absent, got %v/%v", exists, err)
	}
	_ = b.Set(ctx, "k", []byte("v"), time.Minute)
	exists, err = b.Exists(ctx, "k")
	if err != nil || !exists {
		t.Errorf("expected present, got %v/%v", exists, err)
	}
}
