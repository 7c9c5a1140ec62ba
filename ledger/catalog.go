package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog manages categories and products. Transactions reference
// products; the debt core never touches them.
type Catalog struct {
	store TxStore
	opts  options
}

func NewCatalog(store TxStore, opts ...Option) *Catalog {
	return &Catalog{store: store, opts: buildOptions(opts)}
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (c *Catalog) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, &ValidationError{Field: "name", Message: "is required"}
	}
	cat := Category{ID: CategoryID(uuid.NewString()), Name: name, CreatedAt: c.opts.now()}
	if err := c.store.SaveCategory(ctx, cat); err != nil {
		return Category{}, err
	}
	return cat, nil
}

func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	cats, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (c *Catalog) DeleteCategory(ctx context.Context, id CategoryID) error {
	return c.store.DeleteCategory(ctx, id)
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductInput struct {
	SKU        string
	Name       string
	CategoryID CategoryID
	Price      decimal.Decimal
	Quantity   int
	Status     ProductStatus // empty means in_stock
}

func (c *Catalog) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p := Product{ID: ProductID(uuid.NewString()), CreatedAt: c.opts.now()}
	// The category check and the insert share a transaction so a concurrent
	// DeleteCategory cannot leave the product pointing at nothing.
	err := c.store.WithTx(ctx, func(s Store) error {
		if err := c.apply(ctx, s, &p, in); err != nil {
			return err
		}
		return s.SaveProduct(ctx, p)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) UpdateProduct(ctx context.Context, id ProductID, in ProductInput) (Product, error) {
	var updated Product
	err := c.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := c.apply(ctx, s, p, in); err != nil {
			return err
		}
		updated = *p
		return s.SaveProduct(ctx, updated)
	})
	return updated, err
}

func (c *Catalog) Product(ctx context.Context, id ProductID) (Product, error) {
	p, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	return *p, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id ProductID) error {
	return c.store.DeleteProduct(ctx, id)
}

// apply validates in and copies it onto p. A quantity of zero always
// means out_of_stock.
func (c *Catalog) apply(ctx context.Context, s Store, p *Product, in ProductInput) error {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" {
		return &ValidationError{Field: "sku", Message: "is required"}
	}
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if in.Quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	switch in.Status {
	case "":
		in.Status = ProductInStock
	case ProductInStock, ProductOutOfStock:
	default:
		return &ValidationError{Field: "status", Message: "must be in_stock or out_of_stock"}
	}
	if in.Quantity == 0 {
		in.Status = ProductOutOfStock
	}
	if in.CategoryID != "" {
		if _, err := s.GetCategory(ctx, in.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return &ValidationError{Field: "category", Message: "unknown category"}
			}
			return err
		}
	}

	p.SKU = in.SKU
	p.Name = in.Name
	p.CategoryID = in.CategoryID
	p.Price = in.Price
	p.Quantity = in.Quantity
	p.Status = in.Status
	return nil
}

// =============================================================================
// PRODUCT LISTING
// =============================================================================

// ProductFilter drives the public product listing.
type ProductFilter struct {
	Search     string // case-insensitive substring of name or SKU
	CategoryID CategoryID
	Status     ProductStatus
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string // createdAt (default), price, name, quantity
	Ascending  bool
	Page       int // 1-based
	Limit      int
}

type ProductPage struct {
	Products   []Product
	Page       int
	TotalPages int
	TotalItems int
}

const defaultPageSize = 10

// Products filters, sorts and paginates the catalog. The catalog is small,
// so filtering happens here rather than in each store.
func (c *Catalog) Products(ctx context.Context, f ProductFilter) (ProductPage, error) {
	switch f.SortBy {
	case "", "createdAt", "price", "name", "quantity":
	default:
		return ProductPage{}, &ValidationError{Field: "sortBy", Message: "must be createdAt, price, name or quantity"}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}

	all, err := c.store.ListProducts(ctx)
	if err != nil {
		return ProductPage{}, err
	}

	search := strings.ToLower(f.Search)
	matched := make([]Product, 0, len(all))
	for _, p := range all {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}

	less := productLess(f.SortBy)
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Ascending {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})

	page := ProductPage{
		Page:       f.Page,
		TotalItems: len(matched),
		TotalPages: (len(matched) + f.Limit - 1) / f.Limit,
	}
	start := (f.Page - 1) * f.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Products = matched[start:end]
	return page, nil
}

func productLess(sortBy string) func(a, b Product) bool {
	switch sortBy {
	case "price":
		return func(a, b Product) bool { return a.Price.LessThan(b.Price) }
	case "name":
		return func(a, b Product) bool { return a.Name < b.Name }
	case "quantity":
		return func(a, b Product) bool { return a.Quantity < b.Quantity }
	}
	return func(a, b Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
}
