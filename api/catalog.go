package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/shopledger/ledger"
)

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cat, err := h.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(cat))
}

// DeleteCategory removes a category. Its products become uncategorized.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), ledger.CategoryID(chi.URLParam(r, "id"))); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts supports search, category, status, minPrice, maxPrice,
// sortBy, order (asc|desc), page and limit.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.catalog.Products(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]ProductDTO, 0, len(page.Products))
	for _, p := range page.Products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, ProductPageResponse{
		Data:       dtos,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		TotalItems: page.TotalItems,
	})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.Context(), ledger.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), ledger.ProductID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), ledger.ProductID(chi.URLParam(r, "id"))); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func decodeProduct(r *http.Request) (ledger.ProductInput, error) {
	var req ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		return ledger.ProductInput{}, err
	}
	price, err := parseAmount(req.Price, "price")
	if err != nil {
		return ledger.ProductInput{}, err
	}
	if price == nil {
		return ledger.ProductInput{}, &ledger.ValidationError{Field: "price", Message: "is required"}
	}
	return ledger.ProductInput{
		SKU:        req.SKU,
		Name:       req.Name,
		CategoryID: ledger.CategoryID(req.CategoryID),
		Price:      *price,
		Quantity:   req.Quantity,
		Status:     ledger.ProductStatus(req.Status),
	}, nil
}

func parseProductFilter(r *http.Request) (ledger.ProductFilter, error) {
	q := r.URL.Query()
	f := ledger.ProductFilter{
		Search:     q.Get("search"),
		CategoryID: ledger.CategoryID(q.Get("category")),
		Status:     ledger.ProductStatus(q.Get("status")),
		SortBy:     q.Get("sortBy"),
	}

	switch q.Get("order") {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, &ledger.ValidationError{Field: "order", Message: "must be asc or desc"}
	}

	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, &ledger.ValidationError{Field: p.name, Message: "must be a number"}
		}
		*p.dst = &d
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"limit", &f.Limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, &ledger.ValidationError{Field: p.name, Message: "must be a positive integer"}
		}
		*p.dst = n
	}
	return f, nil
}
