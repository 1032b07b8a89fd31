package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/beije/packet-storefront/internal/storage"
	"github.com/beije/packet-storefront/pkg/logger"
)

type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingKV) Set(context.Context, string, string) error { return f.err }
func (f failingKV) Delete(context.Context, string) error { return f.err }

func TestPersistedStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPersistedStore(storage.NewMemory(), "s1", logger.Nop())

	s := New()
	s.Set("a", 20)
	s.Set("b", 10)
	if !store.Save(ctx, s) {
		t.Fatal("expected save to reach storage")
	}

	if got := store.Load(ctx); !got.Equal(s) {
		t.Fatalf("expected %v, got %v", s.Entries(), got.Entries())
	}

	if !store.Clear(ctx) {
		t.Fatal("expected clear to reach storage")
	}
	if got := store.Load(ctx); !got.IsEmpty() {
		t.Fatalf("expected empty after clear, got %v", got.Entries())
	}
}

func TestPersistedStoreFailsOpen(t *testing.T) {
	ctx := context.Background()

	kv := storage.NewMemory()
	_ = kv.Set(ctx, storage.SelectionKey("s1"), "not json")
	if got := NewPersistedStore(kv, "s1", logger.Nop()).Load(ctx); !got.IsEmpty() {
		t.Fatalf("expected empty selection for malformed data, got %v", got.Entries())
	}

	if got := NewPersistedStore(storage.NewMemory(), "s1", nil).Load(ctx); !got.IsEmpty() {
		t.Fatal("expected empty selection when absent")
	}

	broken := NewPersistedStore(failingKV{err: errors.New("unavailable")}, "s1", logger.Nop())
	if got := broken.Load(ctx); !got.IsEmpty() {
		t.Fatal("expected empty selection when storage is unavailable")
	}
	s := New()
	s.Set("a", 1)
	if broken.Save(ctx, s) {
		t.Fatal("expected save against unavailable storage to report failure")
	}
	if broken.Clear(ctx) {
		t.Fatal("expected clear against unavailable storage to report failure")
	}
}

func TestPersistedStoreIsScopedPerSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New()
	s.Set("a", 1)
	NewPersistedStore(kv, "s1", nil).Save(ctx, s)

	if got := NewPersistedStore(kv, "s2", nil).Load(ctx); !got.IsEmpty() {
		t.Fatalf("session s2 saw s1's selection: %v", got.Entries())
	}
}
