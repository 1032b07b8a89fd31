// Package checkout reconciles the locally computed packet total with the gateway
// before a packet is committed.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/pricing"
	"github.com/beije/packet-storefront/internal/selection"
	pkgauth "github.com/beije/packet-storefront/pkg/auth"
	"github.com/beije/packet-storefront/pkg/enums"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrPreconditionFailed = errors.New("checkout precondition failed")
)

const (
	defaultSubmitTimeout = 15 * time.Second
	defaultLockTTL       = 30 * time.Second
)

type verifier interface {
	VerifyPacketPrice(ctx context.Context, token string, req gateway.VerifyRequest) gateway.Result[gateway.Verification]
}

type tokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

// Locker guards a session's checkout across processes.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type recorder interface {
	ObserveCheckout(outcome string, duration time.Duration)
}

// Params bundles the dependencies of a Reconciler. Locker and Recorder are optional.
type Params struct {
	SessionID     string
	Container     *selection.Container
	Verifier      verifier
	Tokens        tokenSource
	Locker        Locker
	Recorder      recorder
	Logger        *logger.Logger
	SubmitTimeout time.Duration
	LockTTL       time.Duration
	Now           func() time.Time
}

// Outcome describes a finished verification attempt.
type Outcome struct {
	State       enums.CheckoutState  `json:"state"`
	Total       decimal.Decimal      `json:"total"`
	Lines       []gateway.PacketLine `json:"lines"`
	AttemptedAt time.Time            `json:"attemptedAt"`
}

// Status is the read model of the state machine.
type Status struct {
	State         enums.CheckoutState `json:"state"`
	LastOutcome   enums.CheckoutState `json:"lastOutcome,omitempty"`
	LastError     string              `json:"lastError,omitempty"`
	LastTotal     *decimal.Decimal    `json:"lastTotal,omitempty"`
	LastAttemptAt *time.Time          `json:"lastAttemptAt,omitempty"`
}

// Reconciler runs the idle -> submitting -> succeeded|failed -> idle state machine
// for one session. At most one verification call is in flight at a time.
type Reconciler struct {
	sessionID     string
	container     *selection.Container
	verifier      verifier
	tokens        tokenSource
	locker        Locker
	recorder      recorder
	logg          *logger.Logger
	submitTimeout time.Duration
	lockTTL       time.Duration
	now           func() time.Time

	mu   sync.Mutex
	st   enums.CheckoutState
	last *attempt
}

type attempt struct {
	outcome enums.CheckoutState
	total   decimal.Decimal
	errMsg  string
	at      time.Time
}

func NewReconciler(params Params) (*Reconciler, error) {
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if params.Container == nil {
		return nil, fmt.Errorf("selection container is required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("price verifier is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	r := &Reconciler{
		sessionID:     params.SessionID,
		container:     params.Container,
		verifier:      params.Verifier,
		tokens:        params.Tokens,
		locker:        params.Locker,
		recorder:      params.Recorder,
		logg:          params.Logger,
		submitTimeout: params.SubmitTimeout,
		lockTTL:       params.LockTTL,
		now:           params.Now,
		st:            enums.CheckoutStateIdle,
	}
	if r.submitTimeout <= 0 {
		r.submitTimeout = defaultSubmitTimeout
	}
	if r.lockTTL <= 0 {
		r.lockTTL = defaultLockTTL
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Submit verifies the current selection with the gateway. On success the submitted
// entries are removed from the selection and its persisted copy; entries changed while
// the call was pending stay. On failure the selection is left untouched and the error
// is returned. There is no automatic retry.
func (r *Reconciler) Submit(ctx context.Context) (*Outcome, error) {
	if !r.enter() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrCheckoutInProgress, ErrCheckoutInProgress.Error())
	}
	settled := false
	defer func() {
		if !settled {
			r.reset()
		}
	}()

	token, err := r.precondition(ctx)
	if err != nil {
		return nil, err
	}

	if r.locker != nil {
		release, err := r.lock(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	cat, snapshot := r.container.State()
	total := pricing.TotalPrice(cat, snapshot)
	lines := verifiableLines(cat, snapshot)
	if len(lines) == 0 {
		return nil, precondition("selection has no priced items")
	}

	started := r.now()
	callCtx, cancel := context.WithTimeout(ctx, r.submitTimeout)
	res := r.verifier.VerifyPacketPrice(callCtx, token, gateway.VerifyRequest{Lines: lines, TotalPrice: total})
	cancel()
	elapsed := r.now().Sub(started)

	outcome := &Outcome{Total: total, Lines: lines, AttemptedAt: started}
	if !res.Ok() {
		outcome.State = enums.CheckoutStateFailed
		r.settle(outcome, res.Err())
		settled = true
		r.observe(outcome.State, elapsed)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"total":      total.String(),
			"error_code": pkgerrors.CodeOf(res.Err()),
			"error":      res.Err().Error(),
		}), "checkout.verification_failed")
		return outcome, res.Err()
	}

	r.container.RemoveCommitted(ctx, snapshot)
	outcome.State = enums.CheckoutStateSucceeded
	r.settle(outcome, nil)
	settled = true
	r.observe(outcome.State, elapsed)
	r.logg.Info(r.logg.WithField(ctx, "total", total.String()), "checkout.verified")
	return outcome, nil
}

// Status returns the current state and the last finished attempt.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := Status{State: r.st}
	if r.last != nil {
		status.LastOutcome = r.last.outcome
		status.LastError = r.last.errMsg
		total := r.last.total
		status.LastTotal = &total
		at := r.last.at
		status.LastAttemptAt = &at
	}
	return status
}

// Submitting reports whether a verification is in flight.
func (r *Reconciler) Submitting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st == enums.CheckoutStateSubmitting
}

func (r *Reconciler) enter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == enums.CheckoutStateSubmitting {
		return false
	}
	r.st = enums.CheckoutStateSubmitting
	return true
}

func (r *Reconciler) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st = enums.CheckoutStateIdle
}

func (r *Reconciler) settle(outcome *Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &attempt{outcome: outcome.State, total: outcome.Total, at: outcome.AttemptedAt}
	if err != nil {
		a.errMsg = publicMessage(err)
	}
	r.last = a
	r.st = enums.CheckoutStateIdle
}

func (r *Reconciler) precondition(ctx context.Context) (string, error) {
	if r.container.Snapshot().IsEmpty() {
		return "", precondition("selection is empty")
	}
	token, err := r.tokens.Token(ctx, r.sessionID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeUnauthorized {
			return "", precondition("login required")
		}
		return "", err
	}
	if err := pkgauth.CheckUsable(token, r.now()); err != nil {
		return "", precondition(err.Error())
	}
	return token, nil
}

func (r *Reconciler) lock(ctx context.Context) (func(), error) {
	name := "checkout:" + r.sessionID
	ok, err := r.locker.AcquireLock(ctx, name, r.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrCheckoutInProgress, ErrCheckoutInProgress.Error())
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.locker.ReleaseLock(releaseCtx, name); err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "checkout.lock_release_failed")
		}
	}, nil
}

// verifiableLines lists the entries of snapshot that resolve in cat, in selection order.
func verifiableLines(cat catalog.Catalog, snapshot selection.Selection) []gateway.PacketLine {
	lines := make([]gateway.PacketLine, 0, snapshot.Len())
	snapshot.Each(func(id string, qty int) {
		if _, _, ok := cat.Resolve(id); ok {
			lines = append(lines, gateway.PacketLine{ID: id, Count: qty})
		}
	})
	return lines
}

func (r *Reconciler) observe(state enums.CheckoutState, elapsed time.Duration) {
	if r.recorder == nil {
		return
	}
	r.recorder.ObserveCheckout(string(state), elapsed)
}

func precondition(reason string) error {
	return pkgerrors.Wrap(pkgerrors.CodePrecondition, ErrPreconditionFailed, reason)
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
