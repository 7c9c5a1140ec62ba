package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/ledger/store"
)

func TestCatalog_ProductValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    ledger.ProductInput
		field string
	}{
		{"missing sku", ledger.ProductInput{Name: "Tea", Price: dec("1"), Quantity: 1}, "sku"},
		{"missing name", ledger.ProductInput{SKU: "TEA", Price: dec("1"), Quantity: 1}, "name"},
		{"negative price", ledger.ProductInput{SKU: "TEA", Name: "Tea", Price: dec("-1"), Quantity: 1}, "price"},
		{"negative quantity", ledger.ProductInput{SKU: "TEA", Name: "Tea", Price: dec("1"), Quantity: -1}, "quantity"},
		{"bad status", ledger.ProductInput{SKU: "TEA", Name: "Tea", Price: dec("1"), Quantity: 1, Status: "gone"}, "status"},
		{"unknown category", ledger.ProductInput{SKU: "TEA", Name: "Tea", Price: dec("1"), Quantity: 1, CategoryID: "nope"}, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := newShop(t)

			_, err := shop.catalog.CreateProduct(context.Background(), tt.in)

			var ve *ledger.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCatalog_ZeroQuantityIsOutOfStock(t *testing.T) {
	shop := newShop(t)
	ctx := context.Background()
	p := shop.product(t, "RICE", "4", 5)

	updated, err := shop.catalog.UpdateProduct(ctx, p.ID, ledger.ProductInput{
		SKU: "RICE", Name: "Rice", Price: dec("4.5"), Quantity: 0, Status: ledger.ProductInStock,
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.ProductOutOfStock, updated.Status)
	assert.Equal(t, "Rice", updated.Name)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
}

func TestCatalog_UpdateUnknownProduct(t *testing.T) {
	shop := newShop(t)

	_, err := shop.catalog.UpdateProduct(context.Background(), "missing", ledger.ProductInput{SKU: "A", Name: "A"})

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCatalog_DeleteCategoryDetachesProducts(t *testing.T) {
	// GIVEN: a product in a category
	shop := newShop(t)
	ctx := context.Background()
	drinks, err := shop.catalog.CreateCategory(ctx, "Drinks")
	require.NoError(t, err)
	cola, err := shop.catalog.CreateProduct(ctx, ledger.ProductInput{
		SKU: "COLA", Name: "Cola", CategoryID: drinks.ID, Price: dec("1.5"), Quantity: 24,
	})
	require.NoError(t, err)

	// WHEN: the category is deleted
	require.NoError(t, shop.catalog.DeleteCategory(ctx, drinks.ID))

	// THEN: the product survives uncategorized
	got, err := shop.catalog.Product(ctx, cola.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	assert.ErrorIs(t, shop.catalog.DeleteCategory(ctx, drinks.ID), ledger.ErrNotFound)
}

func TestCatalog_CategoriesSortedByName(t *testing.T) {
	shop := newShop(t)
	ctx := context.Background()
	for _, name := range []string{"Snacks", "Bakery", "Dairy"} {
		_, err := shop.catalog.CreateCategory(ctx, name)
		require.NoError(t, err)
	}
	_, err := shop.catalog.CreateCategory(ctx, " ")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	cats, err := shop.catalog.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Bakery", cats[0].Name)
	assert.Equal(t, "Snacks", cats[2].Name)
}

func TestCatalog_ProductsFilterSortPaginate(t *testing.T) {
	// GIVEN: five products created in order
	shop := newShop(t)
	ctx := context.Background()
	shop.product(t, "APL", "0.50", 100)
	shop.product(t, "BAN", "0.25", 0)
	shop.product(t, "CHE", "6.00", 10)
	shop.product(t, "DAT", "3.00", 7)
	shop.product(t, "EGG", "0.30", 12)

	t.Run("default is newest first, ten per page", func(t *testing.T) {
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{})
		require.NoError(t, err)
		assert.Equal(t, 5, page.TotalItems)
		assert.Equal(t, 1, page.TotalPages)
		assert.Equal(t, "EGG", page.Products[0].SKU)
	})

	t.Run("search matches sku case-insensitively", func(t *testing.T) {
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{Search: "che"})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "CHE", page.Products[0].SKU)
	})

	t.Run("price range ascending", func(t *testing.T) {
		lo, hi := dec("0.30"), dec("3")
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{
			MinPrice: &lo, MaxPrice: &hi, SortBy: "price", Ascending: true,
		})
		require.NoError(t, err)
		require.Len(t, page.Products, 3)
		assert.Equal(t, []string{"EGG", "APL", "DAT"},
			[]string{page.Products[0].SKU, page.Products[1].SKU, page.Products[2].SKU})
	})

	t.Run("status", func(t *testing.T) {
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{Status: ledger.ProductOutOfStock})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "BAN", page.Products[0].SKU)
	})

	t.Run("second page", func(t *testing.T) {
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{SortBy: "name", Ascending: true, Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalPages)
		require.Len(t, page.Products, 2)
		assert.Equal(t, "CHE", page.Products[0].SKU)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		page, err := shop.catalog.Products(ctx, ledger.ProductFilter{Page: 9})
		require.NoError(t, err)
		assert.Empty(t, page.Products)
	})

	t.Run("unknown sort key", func(t *testing.T) {
		_, err := shop.catalog.Products(ctx, ledger.ProductFilter{SortBy: "color"})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

var errOutsideTx = errors.New("catalog write outside a transaction")

// txOnlyCatalog refuses category reads and product writes made directly on
// the store; the same calls through WithTx reach the memory store.
type txOnlyCatalog struct {
	*store.Memory
}

func (txOnlyCatalog) GetCategory(context.Context, ledger.CategoryID) (*ledger.Category, error) {
	return nil, errOutsideTx
}

func (txOnlyCatalog) SaveProduct(context.Context, ledger.Product) error {
	return errOutsideTx
}

func TestCatalog_CreateProductChecksCategoryInsideTx(t *testing.T) {
	// GIVEN: a category, and a store that only serves catalog calls inside WithTx
	ctx := context.Background()
	mem := store.NewMemory()
	catalog := ledger.NewCatalog(txOnlyCatalog{mem})
	drinks, err := catalog.CreateCategory(ctx, "Drinks")
	require.NoError(t, err)

	// WHEN: a categorized product is created
	p, err := catalog.CreateProduct(ctx, ledger.ProductInput{
		SKU: "COLA", Name: "Cola", CategoryID: drinks.ID, Price: dec("1.5"), Quantity: 3,
	})

	// THEN: lookup and insert both ran in the transaction
	require.NoError(t, err)
	got, err := mem.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, drinks.ID, got.CategoryID)
}

func TestCatalog_CreateProductRacingCategoryDelete(t *testing.T) {
	// GIVEN: many categories, each deleted while a product is created in it
	ctx := context.Background()
	mem := store.NewMemory()
	catalog := ledger.NewCatalog(mem)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		cat, err := catalog.CreateCategory(ctx, fmt.Sprintf("cat-%d", i))
		require.NoError(t, err)

		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			// Losing the race is a validation error, not a dangling reference.
			_, err := catalog.CreateProduct(ctx, ledger.ProductInput{
				SKU: fmt.Sprintf("P%d", i), Name: "p", CategoryID: cat.ID, Price: dec("1"), Quantity: 1,
			})
			if err != nil {
				assert.ErrorIs(t, err, ledger.ErrValidation)
			}
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, catalog.DeleteCategory(ctx, cat.ID))
		}()
	}
	wg.Wait()

	// THEN: no product refers to a deleted category
	products, err := mem.ListProducts(ctx)
	require.NoError(t, err)
	for _, p := range products {
		assert.Empty(t, p.CategoryID, "product %s kept a deleted category", p.SKU)
	}
}
