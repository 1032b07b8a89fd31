package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/beije/packet-storefront/api/responses"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR envelope. Panics with
// http.ErrAbortHandler are re-raised so net/http can abort the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := logg.WithFields(r.Context(), map[string]any{
					"panic":      fmt.Sprint(rec),
					"path":       r.URL.Path,
					"session_id": SessionIDFromContext(r.Context()),
				})
				logg.Error(ctx, "panic.recovered", err)
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
