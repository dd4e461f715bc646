package verifycache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryPutPop(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	entry := Entry{UserUID: 7, AccountNumber: "1234567801", Deposit: 1000}
	if err := c.Put(ctx, "tok", entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.Pop(ctx, "tok")
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got.UserUID != 7 || got.AccountNumber != "1234567801" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestMemoryPopIsSingleUse(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Put(ctx, "tok", Entry{UserUID: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := c.Pop(ctx, "tok"); err != nil {
		t.Fatalf("first pop: %v", err)
	}
	if _, err := c.Pop(ctx, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second pop should fail, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Put(ctx, "tok", Entry{UserUID: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(TTL + time.Second)
	if _, err := c.Pop(ctx, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token should not be redeemable, got %v", err)
	}
}

func TestMemoryUnknownToken(t *testing.T) {
	c := NewMemory()
	if _, err := c.Pop(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
