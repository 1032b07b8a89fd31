package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/beije/packet-storefront/pkg/logger"
)

const (
	defaultSessionHeader = "X-Session-Id"
	defaultSessionCookie = "pf_session"
	maxSessionIDLength   = 128
)

// SessionOptions configure how the session id travels.
type SessionOptions struct {
	Header       string
	CookieName   string
	CookieSecure bool
}

// Session resolves the caller's session id from the header, then the cookie, minting
// a new one when neither carries a usable value. The id is echoed in the response
// header and cookie.
func Session(opts SessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	if opts.Header == "" {
		opts.Header = defaultSessionHeader
	}
	if opts.CookieName == "" {
		opts.CookieName = defaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sanitizeID(r.Header.Get(opts.Header))
			if sid == "" {
				if c, err := r.Cookie(opts.CookieName); err == nil {
					sid = sanitizeID(c.Value)
				}
			}
			if sid == "" {
				sid = uuid.NewString()
			}

			w.Header().Set(opts.Header, sid)
			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				Secure:   opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSessionID(r.Context(), sid)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sid)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeID(raw string) string {
	sid := strings.TrimSpace(raw)
	if sid == "" || len(sid) > maxSessionIDLength {
		return ""
	}
	for _, r := range sid {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return ""
		}
	}
	return sid
}
