// Package session owns one explicitly constructed workspace per browser session.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beije/packet-storefront/internal/checkout"
	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/selection"
	"github.com/beije/packet-storefront/internal/storage"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/beije/packet-storefront/pkg/metrics"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// Workspace is the state a single session's packet builder and checkout run against.
type Workspace struct {
	SessionID string
	Selection *selection.Container
	Checkout  *checkout.Reconciler
}

type verifier interface {
	VerifyPacketPrice(ctx context.Context, token string, req gateway.VerifyRequest) gateway.Result[gateway.Verification]
}

type tokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

// RegistryParams configure the registry. Locker and Metrics are optional.
type RegistryParams struct {
	Storage       storage.KV
	Verifier      verifier
	Tokens        tokenSource
	Locker        checkout.Locker
	Metrics       *metrics.StorefrontMetrics
	Logger        *logger.Logger
	IdleTTL       time.Duration
	SubmitTimeout time.Duration
	LockTTL       time.Duration
	Now           func() time.Time
}

type entry struct {
	ws       *Workspace
	lastSeen time.Time
}

// Registry creates workspaces on first use and evicts idle ones. An evicted
// workspace's selection survives in storage and is rehydrated on next access.
type Registry struct {
	params RegistryParams
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Storage == nil {
		return nil, fmt.Errorf("storage required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("price verifier required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token source required")
	}
	if params.IdleTTL <= 0 {
		params.IdleTTL = defaultIdleTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		params:  params,
		now:     now,
		entries: map[string]*entry{},
	}, nil
}

// Workspace returns the workspace for sessionID, creating and rehydrating it if needed.
func (r *Registry) Workspace(ctx context.Context, sessionID string) (*Workspace, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	if ws := r.touch(sessionID); ws != nil {
		return ws, nil
	}

	// Rehydration reads storage, so build outside the lock and keep the first
	// workspace stored if two requests race.
	ws, err := r.build(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sessionID]; ok {
		e.lastSeen = r.now()
		return e.ws, nil
	}
	r.entries[sessionID] = &entry{ws: ws, lastSeen: r.now()}
	r.params.Metrics.SetWorkspaces(len(r.entries))
	return ws, nil
}

func (r *Registry) touch(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil
	}
	e.lastSeen = r.now()
	return e.ws
}

func (r *Registry) build(ctx context.Context, sessionID string) (*Workspace, error) {
	logg := r.params.Logger
	container := selection.NewContainer(selection.NewPersistedStore(r.params.Storage, sessionID, logg), logg)
	container.Rehydrate(logg.WithSessionID(ctx, sessionID))

	reconciler, err := checkout.NewReconciler(checkout.Params{
		SessionID:     sessionID,
		Container:     container,
		Verifier:      r.params.Verifier,
		Tokens:        r.params.Tokens,
		Locker:        r.params.Locker,
		Recorder:      r.params.Metrics,
		Logger:        logg,
		SubmitTimeout: r.params.SubmitTimeout,
		LockTTL:       r.params.LockTTL,
	})
	if err != nil {
		return nil, err
	}
	return &Workspace{SessionID: sessionID, Selection: container, Checkout: reconciler}, nil
}

// Sweep drops workspaces idle longer than the idle TTL. Workspaces with a checkout in
// flight are kept. It returns the number evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.params.IdleTTL)
	evicted := 0
	for id, e := range r.entries {
		if e.lastSeen.After(cutoff) || e.ws.Checkout.Submitting() {
			continue
		}
		delete(r.entries, id)
		evicted++
	}
	if evicted > 0 {
		r.params.Metrics.SetWorkspaces(len(r.entries))
		r.params.Logger.Debug(r.params.Logger.WithField(ctx, "evicted", evicted), "session.sweep")
	}
	return evicted
}

// Run sweeps on a fixed cadence until the context is canceled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
