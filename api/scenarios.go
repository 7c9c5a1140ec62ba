/*
scenarios.go - Demo shop loaders for development and demonstrations

PURPOSE:

	Populates the store with a small, realistic shop so the admin UI has
	something to show. Every loader goes through the ledger services, so
	demo data obeys the same rules as real data (history entries, stock
	decrements, bcrypt hashes).

AVAILABLE SCENARIOS:

	corner-shop:  admin, three customers, a stocked catalog, pending and
	              paid sales, and balances with history
	empty-shop:   only the demo admin account

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create the demo admin (admin@shop.local / admin123)
 3. Run the scenario loader

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "corner-shop"}

NOTE:

	Loading resets the store, including the account of the caller. Their
	token stays valid until it expires. Only use in development.

SEE ALSO:
  - handlers.go: Handler dependencies
  - ledger/debt.go: AdjustDebt used to seed balances
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
	"go.uber.org/zap"
)

const (
	DemoAdminEmail    = "admin@shop.local"
	DemoAdminUsername = "admin"
	DemoAdminPassword = "admin123"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "corner-shop",
			Name:        "Corner Shop",
			Description: "Three regulars with open tabs, a small catalog and a week of sales",
		},
		load: loadCornerShop,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "empty-shop",
			Name:        "Empty Shop",
			Description: "Only the admin account",
		},
		load: func(context.Context, *Handler) error { return nil },
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		h.writeError(w, r, &ledger.NotFoundError{Kind: "scenario", ID: req.ScenarioID})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.loadScenario(r.Context(), *found); err != nil {
		h.currentScenario = ""
		h.writeError(w, r, err)
		return
	}
	h.currentScenario = found.ID
	h.log.Info("scenario loaded", zap.String("scenario_id", found.ID))
	writeJSON(w, http.StatusOK, found.ScenarioDTO)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.backend.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if _, err := h.auth.EnsureAdmin(ctx, DemoAdminEmail, DemoAdminUsername, DemoAdminPassword); err != nil {
		return fmt.Errorf("demo admin: %w", err)
	}
	if err := s.load(ctx, h); err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	return nil
}

// =============================================================================
// CORNER SHOP
// =============================================================================

func loadCornerShop(ctx context.Context, h *Handler) error {
	customers := map[string]ledger.User{}
	for _, c := range []struct{ username, email, password string }{
		{"alice", "alice@shop.local", "alice123"},
		{"bob", "bob@shop.local", "bob123"},
		{"carol", "carol@shop.local", "carol123"},
	} {
		u, err := h.auth.Register(ctx, auth.RegisterInput{Email: c.email, Username: c.username, Password: c.password})
		if err != nil {
			return err
		}
		customers[c.username] = u
	}

	categories := map[string]ledger.CategoryID{}
	for _, name := range []string{"Drinks", "Snacks", "Bakery"} {
		cat, err := h.catalog.CreateCategory(ctx, name)
		if err != nil {
			return err
		}
		categories[name] = cat.ID
	}

	products := map[string]ledger.ProductID{}
	for _, p := range []struct {
		sku, name, category, price string
		qty                        int
	}{
		{"COLA-330", "Cola 330ml", "Drinks", "1.50", 24},
		{"WATER-500", "Still water 500ml", "Drinks", "0.80", 48},
		{"CHIPS-SALT", "Salted chips", "Snacks", "2.20", 15},
		{"BREAD-RYE", "Rye bread", "Bakery", "3.10", 6},
		{"CROISSANT", "Butter croissant", "Bakery", "1.40", 0},
	} {
		created, err := h.catalog.CreateProduct(ctx, ledger.ProductInput{
			SKU:        p.sku,
			Name:       p.name,
			CategoryID: categories[p.category],
			Price:      decimal.RequireFromString(p.price),
			Quantity:   p.qty,
		})
		if err != nil {
			return err
		}
		products[p.sku] = created.ID
	}

	sales := []ledger.NewTransactionInput{
		{User: "alice", Items: []ledger.ItemInput{
			{ProductID: products["COLA-330"], Quantity: 2},
			{ProductID: products["CHIPS-SALT"], Quantity: 1},
		}},
		{User: "alice", TotalAmount: amount("12.50")},
		{User: "bob", Items: []ledger.ItemInput{{ProductID: products["BREAD-RYE"], Quantity: 2}}},
		{User: "carol", TotalAmount: amount("5.00")},
	}
	var created []ledger.Transaction
	for _, in := range sales {
		tx, err := h.transactions.Create(ctx, in)
		if err != nil {
			return err
		}
		created = append(created, tx)
	}
	// Carol paid at the till.
	if _, err := h.transactions.Settle(ctx, created[3].ID); err != nil {
		return err
	}

	for _, adj := range []struct {
		user, amount, note string
	}{
		{"alice", "18.40", "tab opened"},
		{"alice", "10.00", "paid 8.40 in cash"},
		{"bob", "6.20", "bread on credit"},
	} {
		_, err := h.debts.AdjustDebt(ctx, ledger.AdjustDebtInput{
			UserID:        customers[adj.user].UserID,
			NewDebtAmount: decimal.RequireFromString(adj.amount),
			Note:          adj.note,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
