package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

func TestGetLatestPrice(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/api/quote/PETR4", r.URL.Path)
		fmt.Fprint(w, `{"results":[{"symbol":"PETR4","regularMarketPrice":36.52}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zerolog.Nop())

	price, err := client.GetLatestPrice(context.Background(), "petr4 ")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("36.52")))

	// A second call within the TTL is served from cache.
	_, err = client.GetLatestPrice(context.Background(), "PETR4")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestGetPrice_NearestCloseOnOrBeforeDate(t *testing.T) {
	// History for Jan 29 (Thu), Jan 30 (Fri) and Feb 2 (Mon). A request
	// for Sunday Feb 1 must land on the Friday close, not Monday's.
	jan29 := time.Date(2026, 1, 29, 13, 0, 0, 0, time.UTC).Unix()
	jan30 := time.Date(2026, 1, 30, 13, 0, 0, 0, time.UTC).Unix()
	feb2 := time.Date(2026, 2, 2, 13, 0, 0, 0, time.UTC).Unix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("range"))
		fmt.Fprintf(w, `{"results":[{"symbol":"PETR4","regularMarketPrice":40,
			"historicalDataPrice":[
				{"date":%d,"close":35.10},
				{"date":%d,"close":35.80},
				{"date":%d,"close":36.40}
			]}]}`, jan29, jan30, feb2)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zerolog.Nop())

	price, err := client.GetPrice(context.Background(), "PETR4", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("35.80")))
}

func TestGetPrice_NoCloseBeforeDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		future := time.Now().AddDate(0, 1, 0).Unix()
		fmt.Fprintf(w, `{"results":[{"symbol":"NEW11","regularMarketPrice":10,
			"historicalDataPrice":[{"date":%d,"close":10}]}]}`, future)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zerolog.Nop())

	_, err := client.GetPrice(context.Background(), "NEW11", time.Now().AddDate(0, -1, 0))
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func TestFetch_HTTPErrorMappedToMissingPriceData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zerolog.Nop())

	_, err := client.GetLatestPrice(context.Background(), "PETR4")
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func TestFetch_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zerolog.Nop())

	_, err := client.GetLatestPrice(context.Background(), "XXXX4")
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func TestGetLatestPrice_EmptyTicker(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())
	_, err := client.GetLatestPrice(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func TestHistoryRange(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "1mo", historyRange(now.AddDate(0, 0, -10)))
	assert.Equal(t, "3mo", historyRange(now.AddDate(0, -2, 0)))
	assert.Equal(t, "1y", historyRange(now.AddDate(0, -6, 0)))
	assert.Equal(t, "max", historyRange(now.AddDate(-15, 0, 0)))
}
