package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/config"
	"github.com/warp/shopledger/store"
)

func TestOpen_SQLite(t *testing.T) {
	b, err := store.Open(context.Background(), config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "shop.db"),
	})
	require.NoError(t, err)
	defer b.Close()

	accounts, err := b.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.DBConfig{Driver: "mongo"})
	assert.Error(t, err)
}
