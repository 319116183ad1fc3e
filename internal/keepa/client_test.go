package keepa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New("test-key", "it")
	client.baseURL = server.URL
	return client
}

func TestFetchPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "8", r.URL.Query().Get("domain"))
		assert.Equal(t, "B08N5WRWNW", r.URL.Query().Get("asin"))
		assert.Equal(t, "30", r.URL.Query().Get("stats"))

		w.Write([]byte(`{
			"products": [{
				"asin": "B08N5WRWNW",
				"title": "Echo Dot",
				"lastUpdate": 7400000,
				"stats": {
					"current": [2999, -1],
					"min": [[7300000, 2499]],
					"max": [[7200000, 5999]]
				}
			}]
		}`))
	})

	info, err := client.FetchPrice(context.Background(), "B08N5WRWNW")
	require.NoError(t, err)

	assert.Equal(t, "B08N5WRWNW", info.ASIN)
	assert.Equal(t, "Echo Dot", info.Title)
	assert.Equal(t, 29.99, info.CurrentPrice)
	assert.Equal(t, 24.99, info.MinPrice30)
	assert.Equal(t, 59.99, info.MaxPrice30)

	// Minutos Keepa convertidos para tempo Unix
	expected := time.Unix(int64(7400000+keepaTimeOffset)*60, 0).UTC()
	assert.Equal(t, expected, info.ObservedAt)
}

func TestFetchPriceProdutoNaoEncontrado(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": [], "error": {"type": "productNotFound", "message": "not found"}}`))
	})

	_, err := client.FetchPrice(context.Background(), "B000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchPriceSemProdutos(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": []}`))
	})

	_, err := client.FetchPrice(context.Background(), "B000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchPriceSemOferta(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"products": [{
				"asin": "B08N5WRWNW",
				"title": "Echo Dot",
				"stats": {"current": [-1]}
			}]
		}`))
	})

	// Preço -1 significa produto sem oferta: falha transitória, não NotFound
	_, err := client.FetchPrice(context.Background(), "B08N5WRWNW")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchPriceErroDeServidor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchPrice(context.Background(), "B08N5WRWNW")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "echo dot", r.URL.Query().Get("term"))

		w.Write([]byte(`{
			"products": [
				{"asin": "B08N5WRWNW", "title": "Echo Dot 4", "stats": {"current": [2999]}},
				{"asin": "B09B8V1LZ3", "title": "Echo Dot 5", "stats": {"current": [-1]}}
			]
		}`))
	})

	results, err := client.Search(context.Background(), "echo dot")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "B08N5WRWNW", results[0].ASIN)
	assert.Equal(t, 29.99, results[0].CurrentPrice)
	// Sem oferta: preço fica zerado no resultado da busca
	assert.Equal(t, 0.0, results[1].CurrentPrice)
}
