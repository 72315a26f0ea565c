package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/exception"
	"main/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CST", "cst")
		w.Header().Set("X-SECURITY-TOKEN", "sec")
		json.NewEncoder(w).Encode(map[string]any{})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sessions := NewSessionManager(srv.URL, testCreds(), nil)
	return NewClient(srv.URL, "test-key", sessions, nil), srv
}

func TestClientPrices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/EPIC/HISTORICAL/15MINUTE", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("max"))
		assert.Equal(t, "cst", r.Header.Get("CST"))
		assert.Equal(t, "sec", r.Header.Get("X-SECURITY-TOKEN"))
		json.NewEncoder(w).Encode(map[string]any{
			"prices": []map[string]any{
				{"open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 10},
			},
		})
	})

	series, err := client.Prices(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 1.5, series[0].Close)
}

func TestClientPricesCandlesAlias(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candles": []map[string]any{{"close": 2.5}},
		})
	})

	series, err := client.Prices(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 2.5, series[0].Close)
}

func TestClientPricesInvalidTimeframe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Prices(context.Background(), "EPIC", "3MINUTE", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrBadDataRequest))
}

func TestClientStatusMapping(t *testing.T) {
	testCases := []struct {
		desc     string
		status   int
		expected error
	}{
		{"unauthorized", http.StatusUnauthorized, exception.ErrUnauthorized},
		{"bad request", http.StatusBadRequest, exception.ErrBadDataRequest},
		{"not found", http.StatusNotFound, exception.ErrBadDataRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			_, err := client.Prices(context.Background(), "EPIC", model.TimeframeQuarter, 100)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expected))
		})
	}
}

func TestClientPriorDaily(t *testing.T) {
	t.Run("uses the second-to-last bar", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/prices/EPIC/HISTORICAL/DAILY", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"prices": []map[string]any{
					{"high": 110, "low": 90},
					{"high": 120, "low": 100},
				},
			})
		})
		high, low, ok, err := client.PriorDaily(context.Background(), "EPIC")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 110.0, high)
		assert.Equal(t, 90.0, low)
	})

	t.Run("fewer than two bars", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"prices": []map[string]any{{"high": 110, "low": 90}},
			})
		})
		_, _, ok, err := client.PriorDaily(context.Background(), "EPIC")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClientPlaceOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions/otc", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BUY", req.Direction)
		assert.Equal(t, "MARKET", req.OrderType)

		json.NewEncoder(w).Encode(map[string]any{"dealReference": "deal-42"})
	})

	ref, err := client.PlaceOrder(context.Background(), OrderRequest{
		Epic: "EPIC", Direction: "BUY", Size: 0.5, OrderType: "MARKET",
	})
	require.NoError(t, err)
	assert.Equal(t, "deal-42", ref)
}

func TestClientUpdateStop(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions/deal-42", r.URL.Path)
		assert.Equal(t, http.MethodPut, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 97.5, req["stopLevel"])
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.UpdateStop(context.Background(), "deal-42", 97.5))
}
