package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beije/packet-storefront/api/middleware"
	"github.com/beije/packet-storefront/api/responses"
	"github.com/beije/packet-storefront/api/validators"
	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/pricing"
	"github.com/beije/packet-storefront/internal/selection"
	"github.com/beije/packet-storefront/internal/session"
	pkgauth "github.com/beije/packet-storefront/pkg/auth"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
)

const catalogWarning = "catalog unavailable"

// Workspaces resolves the per-session workspace for a request.
type Workspaces interface {
	Workspace(ctx context.Context, sessionID string) (*session.Workspace, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) gateway.Result[catalog.Catalog]
}

type TokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

type activationResponse struct {
	Catalog   catalog.Catalog     `json:"catalog"`
	Selection selection.Selection `json:"selection"`
	Summary   pricing.Summary     `json:"summary"`
	Warning   string              `json:"warning,omitempty"`
}

type selectionResponse struct {
	Selection selection.Selection `json:"selection"`
	Summary   pricing.Summary     `json:"summary"`
}

type stepResponse struct {
	SubProductID string              `json:"subProductId"`
	Quantity     int                 `json:"quantity"`
	Selection    selection.Selection `json:"selection"`
	Summary      pricing.Summary     `json:"summary"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// PacketsActivate opens the packet builder: it requires a usable token, refreshes
// the catalog and rehydrates the stored selection. A catalog failure still answers
// with the current selection and an empty catalog.
func PacketsActivate(ws Workspaces, source CatalogSource, tokens TokenSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ws == nil || source == nil || tokens == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packet builder unavailable"))
			return
		}
		ctx := r.Context()
		sessionID := middleware.SessionIDFromContext(ctx)

		token, err := tokens.Token(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := pkgauth.CheckUsable(token, time.Now()); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "login required"))
			return
		}

		workspace, err := ws.Workspace(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := activationResponse{Catalog: catalog.Empty()}
		if cat, err := source.Catalog(ctx).Unwrap(); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "packets.catalog_unavailable")
			resp.Warning = catalogWarning
		} else {
			workspace.Selection.SetCatalog(cat)
			resp.Catalog = cat
		}
		workspace.Selection.Rehydrate(ctx)

		resp.Selection = workspace.Selection.Snapshot()
		resp.Summary = workspace.Selection.Summary()
		responses.WriteSuccess(w, resp)
	}
}

func SelectionGet(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		responses.WriteSuccess(w, selectionView(workspace))
	})
}

// SelectionPut sets the exact quantity for a sub product. Zero removes it.
func SelectionPut(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := workspace.Selection.SetQuantity(r.Context(), chi.URLParam(r, "subProductID"), *body.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, selectionView(workspace))
	})
}

func SelectionIncrement(ws Workspaces, policy selection.StepPolicy, logg *logger.Logger) http.HandlerFunc {
	return selectionStep(ws, policy, true, logg)
}

func SelectionDecrement(ws Workspaces, policy selection.StepPolicy, logg *logger.Logger) http.HandlerFunc {
	return selectionStep(ws, policy, false, logg)
}

func selectionStep(ws Workspaces, policy selection.StepPolicy, up bool, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		id := chi.URLParam(r, "subProductID")
		qty, err := workspace.Selection.Step(r.Context(), id, policy, up)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := selectionView(workspace)
		responses.WriteSuccess(w, stepResponse{
			SubProductID: id,
			Quantity:     qty,
			Selection:    view.Selection,
			Summary:      view.Summary,
		})
	})
}

func SelectionDelete(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		if err := workspace.Selection.SetQuantity(r.Context(), chi.URLParam(r, "subProductID"), 0); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, selectionView(workspace))
	})
}

func SelectionClear(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		workspace.Selection.Clear(r.Context())
		responses.WriteSuccess(w, selectionView(workspace))
	})
}

// CheckoutSubmit verifies the current selection with the gateway.
func CheckoutSubmit(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		outcome, err := workspace.Checkout.Submit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	})
}

func CheckoutStatus(ws Workspaces, logg *logger.Logger) http.HandlerFunc {
	return withWorkspace(ws, logg, func(w http.ResponseWriter, r *http.Request, workspace *session.Workspace) {
		responses.WriteSuccess(w, workspace.Checkout.Status())
	})
}

func withWorkspace(ws Workspaces, logg *logger.Logger, next func(http.ResponseWriter, *http.Request, *session.Workspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ws == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packet builder unavailable"))
			return
		}
		workspace, err := ws.Workspace(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next(w, r, workspace)
	}
}

func selectionView(workspace *session.Workspace) selectionResponse {
	return selectionResponse{
		Selection: workspace.Selection.Snapshot(),
		Summary:   workspace.Selection.Summary(),
	}
}
