package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/store"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const secret = "test-secret"

func newService(t *testing.T) (*auth.Service, *auth.Tokens, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	tokens := auth.NewTokens(secret, time.Hour)
	return auth.NewService(mem, tokens, auth.WithBcryptCost(bcrypt.MinCost)), tokens, mem
}

// =============================================================================
// TOKENS
// =============================================================================

func TestTokens_RoundTrip(t *testing.T) {
	tokens := auth.NewTokens(secret, time.Hour)
	want := ledger.Principal{UserID: "u1", Role: ledger.RoleAdmin, Username: "boss", Email: "boss@shop.test"}

	raw, err := tokens.Issue(want)
	require.NoError(t, err)
	got, err := tokens.Verify(raw)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokens_Rejections(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := auth.NewTokens(secret, time.Hour).WithClock(func() time.Time { return issued })
	p := ledger.Principal{UserID: "u1", Role: ledger.RoleUser}
	raw, err := tokens.Issue(p)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := tokens.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })
		_, err := later.Verify(raw)
		assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	})

	t.Run("other key", func(t *testing.T) {
		other := auth.NewTokens("another-secret", time.Hour).WithClock(func() time.Time { return issued })
		_, err := other.Verify(raw)
		assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS512, auth.Claims{
			Role: ledger.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u1",
				ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
			},
		})
		s, err := forged.SignedString([]byte(secret))
		require.NoError(t, err)

		_, err = tokens.Verify(s)
		assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not-a-token")
		assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	})
}

// =============================================================================
// REGISTER / LOGIN
// =============================================================================

func TestRegister(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, auth.RegisterInput{Email: "  Ana@Shop.Test ", Username: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ana@shop.test", u.Email)
	assert.Equal(t, ledger.RoleUser, u.Role)
	assert.True(t, u.DebtAmount.IsZero())
	assert.NotEqual(t, "pw", u.PasswordHash)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{Email: "ana@shop.test", Username: "ana2", Password: "pw"})
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("admin self-registration", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{Email: "x@shop.test", Username: "x", Password: "pw", Role: ledger.RoleAdmin})
		assert.ErrorIs(t, err, ledger.ErrForbidden)
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, in := range []auth.RegisterInput{
			{Username: "a", Password: "p"},
			{Email: "a@b", Password: "p"},
			{Email: "a@b", Username: "a"},
			{Email: "a@b", Username: "a", Password: "p", Role: "owner"},
		} {
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		}
	})
}

func TestLogin(t *testing.T) {
	svc, tokens, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, auth.RegisterInput{Email: "ben@shop.test", Username: "ben", Password: "s3cret"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "BEN@shop.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, res.User.UserID)

	p, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, p.UserID)
	assert.Equal(t, ledger.RoleUser, p.Role)
	assert.Equal(t, "ben", p.Username)

	_, err = svc.Login(ctx, "ben@shop.test", "wrong")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody@shop.test", "s3cret")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
	_, err = svc.Login(ctx, "", "s3cret")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestEnsureAdmin(t *testing.T) {
	svc, _, mem := newService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root@shop.test", "", "pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "root@shop.test", "", "pw")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := mem.GetUserByEmail(ctx, "root@shop.test")
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleAdmin, u.Role)
	assert.Equal(t, "admin", u.Username)

	res, err := svc.Login(ctx, "root@shop.test", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestMiddleware(t *testing.T) {
	tokens := auth.NewTokens(secret, time.Hour)
	var failed error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusTeapot)
	}
	var seen ledger.Principal
	h := auth.Authenticate(tokens, onError)(auth.RequireRole(ledger.RoleAdmin, onError)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = auth.PrincipalFrom(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	))

	call := func(header string) int {
		failed = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	adminToken, err := tokens.Issue(ledger.Principal{UserID: "a", Role: ledger.RoleAdmin})
	require.NoError(t, err)
	userToken, err := tokens.Issue(ledger.Principal{UserID: "u", Role: ledger.RoleUser})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, call("Bearer "+adminToken))
	assert.Equal(t, ledger.UserID("a"), seen.UserID)

	assert.Equal(t, http.StatusTeapot, call("bearer "+userToken))
	assert.ErrorIs(t, failed, ledger.ErrForbidden)

	assert.Equal(t, http.StatusTeapot, call(""))
	assert.ErrorIs(t, failed, ledger.ErrUnauthenticated)

	assert.Equal(t, http.StatusTeapot, call("Token "+adminToken))
	assert.ErrorIs(t, failed, ledger.ErrUnauthenticated)
}
