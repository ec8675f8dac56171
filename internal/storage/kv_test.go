package storage

import (
	"context"
	"errors"
	"testing"

	"ontrack-driver/internal/apperr"
)

func TestMemory_GetSetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if err := m.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q, want v1", got)
	}

	// last write wins
	if err := m.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ = m.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("got %q, want v2", got)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "k", []byte("abc"))

	got, _ := m.Get(ctx, "k")
	got[0] = 'x'

	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value mutated: %q", again)
	}
}
