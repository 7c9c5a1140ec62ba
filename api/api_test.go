package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/api"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/store"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t          *testing.T
	backend    ledger.Backend
	router     http.Handler
	adminToken string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWith(t, store.NewMemory())
}

func newTestAPIWith(t *testing.T, backend ledger.Backend) *testAPI {
	t.Helper()
	tokens := auth.NewTokens("test-secret", time.Hour)
	svc := auth.NewService(backend, tokens, auth.WithBcryptCost(bcrypt.MinCost))
	h := api.NewHandler(api.Deps{Backend: backend, Auth: svc, Tokens: tokens})

	_, err := svc.EnsureAdmin(context.Background(), "boss@shop.test", "boss", "secret")
	require.NoError(t, err)

	a := &testAPI{t: t, backend: backend, router: api.NewRouter(h, []string{"http://localhost:5173"})}
	a.adminToken = a.login("boss@shop.test", "secret")
	return a
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/login", "", api.LoginRequest{Email: email, Password: password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.LoginResponse](a.t, rec).Token
}

// customer registers a customer and returns their id and token.
func (a *testAPI) customer(username string) (string, string) {
	a.t.Helper()
	email := username + "@shop.test"
	rec := a.do(http.MethodPost, "/api/auth/register", "", api.RegisterRequest{
		Email: email, Username: username, Password: "pw-" + username,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := decode[api.AccountDTO](a.t, rec)
	return acc.ID, a.login(email, "pw-"+username)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
