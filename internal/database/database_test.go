package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddProduct(t *testing.T) {
	db := newTestDB(t)

	p, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "https://www.amazon.it/dp/B08N5WRWNW", 29.99)
	require.NoError(t, err)

	assert.Equal(t, int64(100), p.ChatID)
	assert.Equal(t, "B08N5WRWNW", p.ASIN)
	assert.Equal(t, 29.99, p.TargetPrice)
	assert.Zero(t, p.LastPrice)
	assert.True(t, p.LastChecked.IsZero())
}

func TestAddProductDuplicado(t *testing.T) {
	db := newTestDB(t)

	_, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 29.99)
	require.NoError(t, err)

	// Mesmo ASIN no mesmo chat: viola UNIQUE(chat_id, asin)
	_, err = db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 25.00)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	// Mesmo ASIN em outro chat é permitido
	_, err = db.AddProduct(200, "B08N5WRWNW", "Echo Dot", "", 25.00)
	assert.NoError(t, err)
}

func TestUpdateProductPrice(t *testing.T) {
	db := newTestDB(t)

	p, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 29.99)
	require.NoError(t, err)

	checkedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.UpdateProductPrice(p.ID, 27.50, checkedAt))

	updated, err := db.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 27.50, updated.LastPrice)
	assert.False(t, updated.LastChecked.IsZero())

	// Cada atualização registra uma observação no histórico
	count, err := db.CountHistoryEntries(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, db.UpdateProductPrice(p.ID, 26.00, checkedAt.Add(time.Hour)))
	count, err = db.CountHistoryEntries(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	history, err := db.GetPriceHistory(p.ID, 30)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 27.50, history[0].Price)
	assert.Equal(t, 26.00, history[1].Price)
}

func TestRemoveProductApagaHistorico(t *testing.T) {
	db := newTestDB(t)

	p, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 29.99)
	require.NoError(t, err)
	require.NoError(t, db.UpdateProductPrice(p.ID, 27.50, time.Now()))
	require.NoError(t, db.UpdateProductPrice(p.ID, 26.00, time.Now()))

	require.NoError(t, db.RemoveProduct(p.ID))

	_, err = db.GetProductByID(p.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Sem observações órfãs depois da remoção
	count, err := db.CountHistoryEntries(p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoveProductInexistente(t *testing.T) {
	db := newTestDB(t)
	assert.ErrorIs(t, db.RemoveProduct(999), sql.ErrNoRows)
}

func TestGetProductsByChat(t *testing.T) {
	db := newTestDB(t)

	_, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 29.99)
	require.NoError(t, err)
	_, err = db.AddProduct(100, "B084DWG2VQ", "Fire Stick", "", 19.99)
	require.NoError(t, err)
	_, err = db.AddProduct(200, "B07XJ8C8F5", "Kindle", "", 79.99)
	require.NoError(t, err)

	products, err := db.GetProductsByChat(100)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	all, err := db.GetAllProducts()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := db.CountProductsByChat(100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPruneHistory(t *testing.T) {
	db := newTestDB(t)

	p, err := db.AddProduct(100, "B08N5WRWNW", "Echo Dot", "", 29.99)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, db.UpdateProductPrice(p.ID, 31.00, now.AddDate(0, 0, -90)))
	require.NoError(t, db.UpdateProductPrice(p.ID, 30.00, now.AddDate(0, 0, -10)))
	require.NoError(t, db.UpdateProductPrice(p.ID, 29.00, now))

	removed, err := db.PruneHistory(60)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err := db.CountHistoryEntries(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
