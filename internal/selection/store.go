package selection

import (
	"context"
	"errors"

	"github.com/beije/packet-storefront/internal/storage"
	"github.com/beije/packet-storefront/pkg/logger"
)

// PersistedStore mirrors a session's selection into a KV under one fixed key.
// Load fails open and Save/Clear are best effort: storage problems are logged,
// never returned as errors.
type PersistedStore struct {
	kv   storage.KV
	key  string
	logg *logger.Logger
}

func NewPersistedStore(kv storage.KV, sessionID string, logg *logger.Logger) *PersistedStore {
	return &PersistedStore{kv: kv, key: storage.SelectionKey(sessionID), logg: logg}
}

// Load returns the persisted selection, or an empty one when absent, malformed, or
// the storage is unavailable.
func (p *PersistedStore) Load(ctx context.Context) Selection {
	out := New()
	entries, _ := p.loadEntries(ctx)
	for _, e := range entries {
		out.Set(e.SubProductID, e.Quantity)
	}
	return out
}

// loadEntries returns nil entries and a nil error when nothing is persisted. Storage
// failures and malformed payloads are logged and returned.
func (p *PersistedStore) loadEntries(ctx context.Context) ([]Entry, error) {
	if p == nil || p.kv == nil {
		return nil, nil
	}
	raw, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "selection.load_failed")
		return nil, err
	}
	entries, err := decodeEntries([]byte(raw))
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "selection.load_malformed")
		return nil, err
	}
	return entries, nil
}

// Save writes sel and reports whether the write reached storage.
func (p *PersistedStore) Save(ctx context.Context, sel Selection) bool {
	if p == nil || p.kv == nil {
		return true
	}
	payload, err := sel.MarshalJSON()
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "selection.encode_failed")
		return false
	}
	if err := p.kv.Set(ctx, p.key, string(payload)); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "selection.save_failed")
		return false
	}
	return true
}

// Clear removes the persisted selection and reports whether storage accepted it.
func (p *PersistedStore) Clear(ctx context.Context) bool {
	if p == nil || p.kv == nil {
		return true
	}
	if err := p.kv.Delete(ctx, p.key); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "selection.clear_failed")
		return false
	}
	return true
}
