package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/api"
)

func TestScenarios_LoadCornerShop(t *testing.T) {
	// GIVEN: a store with unrelated data
	a := newTestAPI(t)
	a.customer("stranger")

	// WHEN: the corner shop is loaded
	rec := a.do(http.MethodPost, "/api/scenarios/load", a.adminToken, api.LoadScenarioRequest{ScenarioID: "corner-shop"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: the store holds exactly the demo shop
	rec = a.do(http.MethodGet, "/api/accounts", a.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decode[[]api.AccountDTO](t, rec)
	assert.Len(t, accounts, 4)
	debts := map[string]float64{}
	for _, acc := range accounts {
		debts[acc.Username] = acc.DebtAmount
	}
	assert.Equal(t, map[string]float64{"admin": 0, "alice": 10, "bob": 6.2, "carol": 0}, debts)

	rec = a.do(http.MethodGet, "/api/debts/outstanding", a.adminToken, nil)
	groups := decode[[]api.OutstandingDebtDTO](t, rec)
	require.Len(t, groups, 2)
	assert.Equal(t, "alice", groups[0].User)
	assert.InDelta(t, 17.7, groups[0].TotalAmount, 1e-9)
	assert.Equal(t, 2, groups[0].TransactionCount)
	assert.Equal(t, "bob", groups[1].User)

	// AND: the demo admin can log in
	a.login("admin@shop.local", "admin123")

	rec = a.do(http.MethodGet, "/api/scenarios/current", a.adminToken, nil)
	assert.Equal(t, "corner-shop", decode[api.ScenarioDTO](t, rec).ID)
}

func TestScenarios_Listing(t *testing.T) {
	a := newTestAPI(t)
	_, token := a.customer("alice")

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/scenarios", token, nil).Code)

	rec := a.do(http.MethodGet, "/api/scenarios", a.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ScenarioDTO](t, rec), 2)

	rec = a.do(http.MethodGet, "/api/scenarios/current", a.adminToken, nil)
	assert.Equal(t, "null\n", rec.Body.String())

	rec = a.do(http.MethodPost, "/api/scenarios/load", a.adminToken, `{"scenarioId":"moon-base"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_EmptyShop(t *testing.T) {
	a := newTestAPI(t)
	a.customer("alice")

	rec := a.do(http.MethodPost, "/api/scenarios/load", a.adminToken, `{"scenarioId":"empty-shop"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/accounts", a.adminToken, nil)
	accounts := decode[[]api.AccountDTO](t, rec)
	require.Len(t, accounts, 1)
	assert.Equal(t, "admin@shop.local", accounts[0].Email)
}
