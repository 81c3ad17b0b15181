package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lentaHandler(t *testing.T, fn func(req lentaRPCRequest, w http.ResponseWriter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jrpc", r.URL.Path)
		var req lentaRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "2.0", req.JSONRPC)
		fn(req, w)
	}
}

func TestLenta_SearchPaginatesByReportedTotal(t *testing.T) {
	var calls int
	srv := httptest.NewServer(lentaHandler(t, func(req lentaRPCRequest, w http.ResponseWriter) {
		require.Equal(t, "catalog.search", req.Method)
		require.Equal(t, "молоко", req.Params["query"])
		calls++
		fmt.Fprint(w, `{
			"result": {
				"total": 1,
				"items": [
					{"title": "Молоко Лента 3.2%",
					 "prices": {"price": 82.49, "pricePerUnit": 88.70},
					 "webUrl": "/product/molo-82", "imageUrl": "https://cdn.example.com/l.png",
					 "categoryName": "Молочные продукты"}
				]
			}
		}`)
	}))
	defer srv.Close()

	l := NewLenta(newTestDeps(t, srv))
	l.baseURL = srv.URL

	listings, err := l.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 1, calls) // total reached after the first page

	assert.Equal(t, "Молоко Лента 3.2%", listings[0].Name)
	assert.Equal(t, 82.49, listings[0].Price)
	require.NotNil(t, listings[0].PricePerUnit)
	assert.Equal(t, 88.70, *listings[0].PricePerUnit)
	assert.Equal(t, srv.URL+"/product/molo-82", listings[0].URL)
}

func TestLenta_RPCErrorFallsBackToCategories(t *testing.T) {
	srv := httptest.NewServer(lentaHandler(t, func(req lentaRPCRequest, w http.ResponseWriter) {
		switch req.Method {
		case "catalog.search":
			fmt.Fprint(w, `{"error": {"code": -32000, "message": "search unavailable"}}`)
		case "catalog.categoryGoods":
			if req.Params["category"] == "molochnye-produkty" {
				fmt.Fprint(w, `{
					"result": {"total": 1, "items": [
						{"title": "Творог 9%", "prices": {"price": 129.99}, "webUrl": "/product/tv-9"}
					]}
				}`)
				return
			}
			fmt.Fprint(w, `{"result": {"total": 0, "items": []}}`)
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer srv.Close()

	l := NewLenta(newTestDeps(t, srv))
	l.baseURL = srv.URL

	listings, err := l.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Творог 9%", listings[0].Name)
}

func TestLenta_AllMethodsFailing(t *testing.T) {
	srv := httptest.NewServer(lentaHandler(t, func(req lentaRPCRequest, w http.ResponseWriter) {
		fmt.Fprint(w, `{"error": {"code": -32000, "message": "maintenance"}}`)
	}))
	defer srv.Close()

	l := NewLenta(newTestDeps(t, srv))
	l.baseURL = srv.URL

	_, err := l.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}
