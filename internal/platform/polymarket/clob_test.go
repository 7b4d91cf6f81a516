package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/platform/polymarket"
)

// The CLOB lists asks worst-first.
const bookJSON = `{
  "market": "0xabc",
  "asset_id": "tok-nyk",
  "timestamp": "1773529200000",
  "bids": [{"price": "0.29", "size": "300"}, {"price": "0.30", "size": "120"}],
  "asks": [{"price": "0.35", "size": "500"}, {"price": "0.33", "size": "40"}, {"price": "0.31", "size": "60"}],
  "tick_size": "0.01"
}`

func TestFetchBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tok-nyk", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bookJSON))
	}))
	defer srv.Close()

	src := polymarket.NewBookSource(polymarket.NewClobClient(srv.URL))
	book, err := src.FetchBook(context.Background(), "tok-nyk")
	require.NoError(t, err)

	assert.Equal(t, domain.VenuePolymarket, book.Quote.Venue)
	assert.Equal(t, 0.31, book.Quote.BestAsk)
	assert.Equal(t, 0.30, book.Quote.BestBid)
	assert.Equal(t, time.UnixMilli(1773529200000), book.Quote.ObservedAt)

	require.Len(t, book.Asks.Levels, 3)
	assert.Equal(t, domain.PriceLevel{Price: 0.31, Size: 60}, book.Asks.Levels[0])
	assert.Equal(t, domain.PriceLevel{Price: 0.35, Size: 500}, book.Asks.Levels[2])
	assert.NoError(t, book.Asks.Validate())
}

func TestFetchBook_NoAsksIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asset_id":"tok","bids":[{"price":"0.2","size":"10"}],"asks":[]}`))
	}))
	defer srv.Close()

	src := polymarket.NewBookSource(polymarket.NewClobClient(srv.URL))
	_, err := src.FetchBook(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrMissingQuote)
}

func TestFetchBook_UnknownTokenIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No orderbook exists for the requested token id"}`))
	}))
	defer srv.Close()

	src := polymarket.NewBookSource(polymarket.NewClobClient(srv.URL))
	_, err := src.FetchBook(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrMissingQuote)
}

func TestGetBook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := polymarket.NewClobClient(srv.URL).GetBook(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMissingQuote)
}

func TestToVenueBook_MergesAndFallsBack(t *testing.T) {
	fallback := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	book, err := polymarket.ToVenueBook("tok", polymarket.BookResponse{
		Asks: []polymarket.BookLevel{{Price: "0.40", Size: "5"}, {Price: "0.40", Size: "7"}, {Price: "0.41", Size: "0"}},
	}, fallback)
	require.NoError(t, err)

	require.Len(t, book.Asks.Levels, 1)
	assert.Equal(t, 12.0, book.Asks.Levels[0].Size)
	assert.Equal(t, fallback, book.Quote.ObservedAt)

	_, err = polymarket.ToVenueBook("tok", polymarket.BookResponse{
		Asks: []polymarket.BookLevel{{Price: "abc", Size: "5"}},
	}, fallback)
	assert.Error(t, err)
}
