package selection

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/internal/pricing"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
)

var ErrInvalidQuantity = errors.New("quantity must not be negative")

// Container is the authoritative in-memory state of one session's packet builder.
// Every method is safe for concurrent use; mutations are serialized and written
// through to the persisted store.
type Container struct {
	mu      sync.Mutex
	catalog catalog.Catalog
	sel     Selection
	store   *PersistedStore
	logg    *logger.Logger

	// unsynced is set while the last write to the store failed.
	unsynced bool
}

func NewContainer(store *PersistedStore, logg *logger.Logger) *Container {
	return &Container{
		catalog: catalog.Empty(),
		sel:     New(),
		store:   store,
		logg:    logg,
	}
}

// SetQuantity sets quantity for id, removing it at zero. Negative quantities leave the
// selection unchanged.
func (c *Container) SetQuantity(ctx context.Context, id string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.setLocked(id, quantity); err != nil {
		return err
	}
	c.persistLocked(ctx)
	return nil
}

func (c *Container) setLocked(id string, quantity int) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sub-product id is required")
	}
	if quantity < 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidQuantity, ErrInvalidQuantity.Error()).
			WithDetails(map[string]any{"subProductId": id, "quantity": quantity})
	}
	c.sel.Set(id, quantity)
	return nil
}

// Step applies a step policy to the current quantity of id and returns the new value.
func (c *Container) Step(ctx context.Context, id string, policy StepPolicy, up bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.sel.Get(id)
	next := policy.Decrement(current)
	if up {
		next = policy.Increment(current)
	}
	if err := c.setLocked(id, next); err != nil {
		return current, err
	}
	c.persistLocked(ctx)
	return next, nil
}

// Clear empties the selection and its persisted copy.
func (c *Container) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = New()
	c.unsynced = !c.store.Clear(ctx)
}

// RemoveCommitted drops the entries of committed whose quantity is still the committed
// one. Entries added or changed since committed was taken are kept.
func (c *Container) RemoveCommitted(ctx context.Context, committed Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	committed.Each(func(id string, qty int) {
		if c.sel.Get(id) == qty {
			c.sel.Delete(id)
		}
	})
	if c.sel.IsEmpty() {
		c.unsynced = !c.store.Clear(ctx)
		return
	}
	c.persistLocked(ctx)
}

// SetCatalog replaces the catalog. Selected ids that no longer resolve are kept.
func (c *Container) SetCatalog(cat catalog.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = cat.Clone()
}

// Rehydrate replays the persisted selection through SetQuantity rules, skipping and
// logging entries that would be rejected. Nothing persisted means an empty selection.
// When storage cannot be read, holds a malformed payload, or missed one of this
// container's writes, the in-memory selection is kept.
func (c *Container) Rehydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsynced {
		c.persistLocked(ctx)
		return
	}
	entries, err := c.store.loadEntries(ctx)
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"error": err.Error(),
			"kept":  c.sel.Len(),
		}), "selection.rehydrate_skipped")
		return
	}
	restored := New()
	for _, e := range entries {
		if e.Quantity < 0 || strings.TrimSpace(e.SubProductID) == "" {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"sub_product_id": e.SubProductID,
				"quantity":       e.Quantity,
			}), "selection.rehydrate_rejected")
			continue
		}
		restored.Set(e.SubProductID, e.Quantity)
	}
	c.sel = restored
}

func (c *Container) persistLocked(ctx context.Context) {
	c.unsynced = !c.store.Save(ctx, c.sel)
}

// Snapshot returns a copy of the current selection.
func (c *Container) Snapshot() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Clone()
}

// State returns copies of the catalog and selection taken under one lock.
func (c *Container) State() (catalog.Catalog, Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Clone(), c.sel.Clone()
}

func (c *Container) Summary() pricing.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.Summarize(c.catalog, c.sel)
}
