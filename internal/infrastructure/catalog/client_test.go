package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shelfmatch/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchProducts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/products/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("query"))
		assert.Equal(t, "Acme", r.URL.Query().Get("brand"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"products": [
				{"gtin": "111", "name": "Acme Cola Zero", "brand": "Acme", "size": "500 ml", "frontImage": "https://img/111.jpg", "storeTags": ["MegaMart"]},
				{"gtin": "222", "name": "Acme Cola Classic", "brand": "Acme", "size": "500 ml"}
			],
			"totalHits": 2,
			"totalPages": 1
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	candidates, err := client.SearchProducts(context.Background(), domain.SearchQuery{
		Brand:       "Acme",
		ProductName: "Cola Zero",
	})

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "111", candidates[0].CatalogKey)
	assert.Equal(t, "Acme Cola Zero", candidates[0].Name)
	assert.Equal(t, "https://img/111.jpg", candidates[0].ImageRef)
	assert.Equal(t, []string{"MegaMart"}, candidates[0].StoreTags)
	assert.NotEmpty(t, candidates[0].Raw, "raw payload should survive mapping")
}

func TestSearchProducts_DropsKeylessEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": [
			{"gtin": "", "name": "No Key Product"},
			{"gtin": "333", "name": "Keyed Product"}
		]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	candidates, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Product"})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "333", candidates[0].CatalogKey)
}

func TestSearchProducts_EmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": [], "totalHits": 0}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	candidates, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Unicorn Snacks"})

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchProducts_MissingAPIKey(t *testing.T) {
	client := NewClient("", "http://unused", 10, 100)
	_, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Cola"})

	assert.ErrorIs(t, err, domain.ErrSearchMisconfigured)
}

func TestSearchProducts_AuthFailureIsMisconfiguration(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient("bad-key", server.URL, 10, 100)
		_, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Cola"})
		server.Close()

		assert.ErrorIs(t, err, domain.ErrSearchMisconfigured, "status %d", status)
	}
}

func TestSearchProducts_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	_, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Cola"})

	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestSearchProducts_MalformedResponseIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": [not json`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	_, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Cola"})

	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestSearchProducts_NoSearchableAttributes(t *testing.T) {
	client := NewClient("test-key", "http://unused", 10, 100)
	_, err := client.SearchProducts(context.Background(), domain.SearchQuery{})

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSearchProducts_SingleAttempt(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 10, 100)
	_, err := client.SearchProducts(context.Background(), domain.SearchQuery{ProductName: "Cola"})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "client must not retry on its own")
}
