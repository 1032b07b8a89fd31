package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beije/packet-storefront/api/responses"
	"github.com/beije/packet-storefront/api/validators"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
)

const maxRateLimitedBodyBytes = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy defines the throttling parameters for a traffic surface.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

// NewAuthRateLimitPolicy builds a policy with the supplied window and limits.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "auth"
	}
	return p.name
}

func (p AuthRateLimitPolicy) ipScope(ip string) string {
	if ip == "" {
		return ""
	}
	return fmt.Sprintf("ip:%s:%s", p.normalizedName(), ip)
}

func (p AuthRateLimitPolicy) emailScope(hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("email:%s:%s", p.normalizedName(), hash)
}

// AuthRateLimit counts login attempts per client IP and per hashed email within the
// policy window. Counter storage failures reject the request as DEPENDENCY_ERROR.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		l := limiter{policy: policy, store: store, logg: logg}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if policy.ipLimit > 0 && !l.admit(w, r, attempt{kind: "ip", scope: policy.ipScope(ip), ip: ip}, policy.ipLimit) {
				return
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitedBodyBytes))
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := validators.NormalizeEmail(extractEmail(body)); email != "" {
					hash := hashValue(email)
					if !l.admit(w, r, attempt{kind: "email", scope: policy.emailScope(hash), emailHash: hash}, policy.emailLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limiter struct {
	policy AuthRateLimitPolicy
	store  rateLimiterStore
	logg   *logger.Logger
}

type attempt struct {
	kind      string
	scope     string
	ip        string
	emailHash string
}

// admit increments the counter for a and writes the rejection itself when the
// request must not proceed.
func (l limiter) admit(w http.ResponseWriter, r *http.Request, a attempt, limit int) bool {
	if a.scope == "" {
		return true
	}
	ctx := r.Context()
	count, err := l.store.IncrWithTTL(ctx, l.store.RateLimitKey(a.scope), l.policy.window)
	if err != nil {
		responses.WriteError(ctx, l.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if count <= int64(limit) {
		return true
	}

	fields := map[string]any{
		"scope":          a.kind,
		"policy":         l.policy.normalizedName(),
		"attempts":       count,
		"limit":          limit,
		"window_seconds": int(l.policy.window.Seconds()),
	}
	if a.ip != "" {
		fields["ip"] = a.ip
	}
	if a.emailHash != "" {
		fields["email_hash"] = a.emailHash
	}
	l.logg.Warn(l.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")

	w.Header().Set("Retry-After", strconv.Itoa(int(l.policy.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later"))
	return false
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
