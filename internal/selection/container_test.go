package selection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/internal/storage"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/enums"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

func newTestContainer(t *testing.T) (*Container, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	return NewContainer(NewPersistedStore(kv, "s1", logger.Nop()), logger.Nop()), kv
}

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		Products: []catalog.Product{
			{ID: "p1", Category: enums.ProductCategoryMenstrual, SubProducts: []catalog.SubProduct{
				{ID: "A", Price: decimal.NewFromInt(10)},
			}},
			{ID: "p2", Category: enums.ProductCategoryOther, SubProducts: []catalog.SubProduct{
				{ID: "B", Price: decimal.NewFromInt(5)},
			}},
		},
	}
}

func TestSetQuantityWritesThrough(t *testing.T) {
	ctx := context.Background()
	c, kv := newTestContainer(t)

	if err := c.SetQuantity(ctx, "A", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, err := kv.Get(ctx, storage.SelectionKey("s1"))
	if err != nil {
		t.Fatalf("expected persisted selection: %v", err)
	}
	if raw != `{"A":2}` {
		t.Fatalf("unexpected persisted value %s", raw)
	}
}

func TestSetQuantityRejectsNegative(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	_ = c.SetQuantity(ctx, "A", 2)
	before := c.Snapshot()

	err := c.SetQuantity(ctx, "A", -1)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", pkgerrors.CodeOf(err))
	}
	if !c.Snapshot().Equal(before) {
		t.Fatal("selection changed after rejected quantity")
	}

	if err := c.SetQuantity(ctx, " ", 1); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected blank id to be rejected, got %v", err)
	}
}

func TestSetQuantityIdempotentAndZeroRemoves(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	_ = c.SetQuantity(ctx, "A", 3)
	once := c.Snapshot()
	_ = c.SetQuantity(ctx, "A", 3)
	if !c.Snapshot().Equal(once) {
		t.Fatal("repeated set changed selection")
	}
	_ = c.SetQuantity(ctx, "A", 0)
	if c.Snapshot().Has("A") {
		t.Fatal("zero quantity must remove the key")
	}
}

func TestClearEmptiesMemoryAndStorage(t *testing.T) {
	ctx := context.Background()
	c, kv := newTestContainer(t)
	_ = c.SetQuantity(ctx, "A", 2)
	c.Clear(ctx)
	if !c.Snapshot().IsEmpty() {
		t.Fatal("expected empty selection")
	}
	if _, err := kv.Get(ctx, storage.SelectionKey("s1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected persisted selection removed, got %v", err)
	}
}

func TestSetCatalogKeepsStaleKeys(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	c.SetCatalog(testCatalog())
	_ = c.SetQuantity(ctx, "A", 2)
	_ = c.SetQuantity(ctx, "B", 3)
	if total := c.Summary().Total; !total.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected 35, got %s", total)
	}

	c.SetCatalog(catalog.Catalog{Products: testCatalog().Products[:1]})
	if !c.Snapshot().Has("B") {
		t.Fatal("catalog replacement must not prune the selection")
	}
	summary := c.Summary()
	if !summary.Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected stale B to contribute 0, got %s", summary.Total)
	}
	if groups := summary.Groups; len(groups) != 1 {
		t.Fatalf("expected only the Menstrual group, got %+v", groups)
	}
}

func TestRehydrateRejectsInvalidPersistedEntries(t *testing.T) {
	ctx := context.Background()
	c, kv := newTestContainer(t)
	_ = kv.Set(ctx, storage.SelectionKey("s1"), `{"B":3,"bad":-5,"A":2,"":1}`)

	c.Rehydrate(ctx)
	snap := c.Snapshot()
	entries := snap.Entries()
	if len(entries) != 2 || entries[0].SubProductID != "B" || entries[1].SubProductID != "A" {
		t.Fatalf("unexpected rehydrated entries %v", entries)
	}
}

// toggleKV wraps a memory store whose reads and writes can be failed on demand.
type toggleKV struct {
	*storage.Memory
	mu      sync.Mutex
	failGet bool
	failSet bool
}

func (k *toggleKV) set(failGet, failSet bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failGet, k.failSet = failGet, failSet
}

func (k *toggleKV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	fail := k.failGet
	k.mu.Unlock()
	if fail {
		return "", errors.New("storage unavailable")
	}
	return k.Memory.Get(ctx, key)
}

func (k *toggleKV) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	fail := k.failSet
	k.mu.Unlock()
	if fail {
		return errors.New("storage unavailable")
	}
	return k.Memory.Set(ctx, key, value)
}

func TestRehydrateKeepsSelectionWhenStorageIsDown(t *testing.T) {
	ctx := context.Background()
	c := NewContainer(NewPersistedStore(failingKV{err: errors.New("unavailable")}, "s1", logger.Nop()), logger.Nop())
	if err := c.SetQuantity(ctx, "A", 2); err != nil {
		t.Fatalf("set: %v", err)
	}

	c.Rehydrate(ctx)
	if got := c.Snapshot(); got.Get("A") != 2 || got.Len() != 1 {
		t.Fatalf("expected {A:2} to survive, got %v", got.Entries())
	}
}

func TestRehydrateKeepsSelectionOnUnreadableStorage(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(ctx context.Context, kv *toggleKV)
	}{
		{
			name:    "read fails",
			prepare: func(_ context.Context, kv *toggleKV) { kv.set(true, false) },
		},
		{
			name: "malformed payload",
			prepare: func(ctx context.Context, kv *toggleKV) {
				_ = kv.Memory.Set(ctx, storage.SelectionKey("s1"), "{not json")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := &toggleKV{Memory: storage.NewMemory()}
			c := NewContainer(NewPersistedStore(kv, "s1", logger.Nop()), logger.Nop())
			_ = c.SetQuantity(ctx, "A", 2)
			_ = c.SetQuantity(ctx, "B", 3)

			tt.prepare(ctx, kv)
			c.Rehydrate(ctx)

			got := c.Snapshot()
			if got.Get("A") != 2 || got.Get("B") != 3 || got.Len() != 2 {
				t.Fatalf("expected {A:2,B:3} to survive, got %v", got.Entries())
			}
		})
	}
}

func TestRehydrateWritesBackAfterMissedSave(t *testing.T) {
	ctx := context.Background()
	kv := &toggleKV{Memory: storage.NewMemory()}
	c := NewContainer(NewPersistedStore(kv, "s1", logger.Nop()), logger.Nop())
	_ = c.SetQuantity(ctx, "A", 2)

	kv.set(false, true)
	_ = c.SetQuantity(ctx, "B", 3)
	kv.set(false, false)

	c.Rehydrate(ctx)
	got := c.Snapshot()
	if got.Get("A") != 2 || got.Get("B") != 3 {
		t.Fatalf("expected {A:2,B:3} to survive, got %v", got.Entries())
	}
	raw, err := kv.Memory.Get(ctx, storage.SelectionKey("s1"))
	if err != nil || raw != `{"A":2,"B":3}` {
		t.Fatalf("expected selection written back, got %q (%v)", raw, err)
	}

	// Once in sync, storage is authoritative again.
	_ = kv.Memory.Set(ctx, storage.SelectionKey("s1"), `{"C":1}`)
	c.Rehydrate(ctx)
	if got := c.Snapshot(); got.Len() != 1 || got.Get("C") != 1 {
		t.Fatalf("expected storage selection after resync, got %v", got.Entries())
	}
}

func TestRehydrateWithNothingPersistedEmpties(t *testing.T) {
	ctx := context.Background()
	c, kv := newTestContainer(t)
	_ = c.SetQuantity(ctx, "A", 2)
	_ = kv.Delete(ctx, storage.SelectionKey("s1"))

	c.Rehydrate(ctx)
	if !c.Snapshot().IsEmpty() {
		t.Fatalf("expected empty selection, got %v", c.Snapshot().Entries())
	}
}

func TestRemoveCommitted(t *testing.T) {
	ctx := context.Background()
	c, kv := newTestContainer(t)
	_ = c.SetQuantity(ctx, "A", 2)
	_ = c.SetQuantity(ctx, "B", 3)
	committed := c.Snapshot()

	_ = c.SetQuantity(ctx, "C", 4)
	_ = c.SetQuantity(ctx, "B", 5)
	c.RemoveCommitted(ctx, committed)

	got := c.Snapshot()
	if got.Has("A") || got.Get("B") != 5 || got.Get("C") != 4 {
		t.Fatalf("unexpected selection %v", got.Entries())
	}
	raw, err := kv.Get(ctx, storage.SelectionKey("s1"))
	if err != nil || raw != `{"B":5,"C":4}` {
		t.Fatalf("unexpected persisted selection %q (%v)", raw, err)
	}

	c.RemoveCommitted(ctx, c.Snapshot())
	if !c.Snapshot().IsEmpty() {
		t.Fatal("expected empty selection")
	}
	if _, err := kv.Get(ctx, storage.SelectionKey("s1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected persisted selection removed, got %v", err)
	}
}

func TestStateCopiesCatalogAndSelection(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	c.SetCatalog(testCatalog())
	_ = c.SetQuantity(ctx, "A", 2)

	cat, sel := c.State()
	sel.Set("A", 9)
	cat.Products[0].SubProducts[0].Price = decimal.NewFromInt(1)

	if c.Snapshot().Get("A") != 2 {
		t.Fatal("State selection must be a copy")
	}
	if total := c.Summary().Total; !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("State catalog must be a copy, total %s", total)
	}
}

func TestStepUsesPolicy(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	policy := NewStepPolicy(10)

	if got, _ := c.Step(ctx, "A", policy, true); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got, _ := c.Step(ctx, "A", policy, true); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	_ = c.SetQuantity(ctx, "A", 5)
	if got, _ := c.Step(ctx, "A", policy, false); got != 0 {
		t.Fatalf("expected floor at 0, got %d", got)
	}
	if c.Snapshot().Has("A") {
		t.Fatal("decrement to zero must remove the entry")
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestContainer(t)
	policy := NewStepPolicy(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Step(ctx, "A", policy, true)
		}()
	}
	wg.Wait()
	if got := c.Snapshot().Get("A"); got != 50 {
		t.Fatalf("expected 50 after concurrent increments, got %d", got)
	}
}

func TestStepPolicyDefaults(t *testing.T) {
	if NewStepPolicy(0).Step != DefaultStep {
		t.Fatal("expected default step")
	}
	if got := (StepPolicy{}).Increment(0); got != DefaultStep {
		t.Fatalf("zero-value policy should step by default, got %d", got)
	}
}
