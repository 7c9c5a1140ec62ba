package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/shopledger/ledger"
)

type ctxKey struct{}

// ErrorWriter renders an auth failure. The api package supplies one so that
// auth errors share the normal error body.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func WithPrincipal(ctx context.Context, p ledger.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the authenticated caller, or the zero Principal.
func PrincipalFrom(ctx context.Context) ledger.Principal {
	p, _ := ctx.Value(ctxKey{}).(ledger.Principal)
	return p
}

// Authenticate requires "Authorization: Bearer <token>" and stores the
// verified principal in the request context.
func Authenticate(tokens *Tokens, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				onError(w, r, ledger.ErrUnauthenticated)
				return
			}

			p, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers whose principal lacks role.
func RequireRole(role ledger.Role, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ledger.RequireRole(PrincipalFrom(r.Context()), role); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
