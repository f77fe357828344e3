package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tickerBody = `{"jsonrpc":"2.0","result":{"instrument_name":"BTC-PERPETUAL","last_price":108390.5,"index_price":108400}}`

	instrumentsBody = `{"jsonrpc":"2.0","result":[
		{"instrument_name":"BTC-5JUL25-100000-C","kind":"option","strike":100000,"option_type":"call","expiration_timestamp":1751702400000,"contract_size":1},
		{"instrument_name":"BTC-5JUL25-100000-P","kind":"option","strike":100000,"option_type":"put","expiration_timestamp":1751702400000,"contract_size":1}
	]}`

	newInstrument = `{"instrument_name":"BTC-5JUL25-105000-C","kind":"option","strike":105000,"option_type":"call","expiration_timestamp":1751702400000,"contract_size":1}`
	newBook       = `{"instrument_name":"BTC-5JUL25-105000-C","bid_price":0.01,"ask_price":0.011,"mark_price":0.0105,"volume":1,"open_interest":2,"mark_iv":54}`

	booksBody = `{"jsonrpc":"2.0","result":[
		{"instrument_name":"BTC-5JUL25-100000-C","bid_price":0.03,"ask_price":0.031,"mark_price":0.0305,"volume":12.3,"open_interest":40,"mark_iv":55.2},
		{"instrument_name":"BTC-5JUL25-100000-P","bid_price":null,"ask_price":0.028,"mark_price":0.027,"volume":null,"open_interest":10,"mark_iv":56}
	]}`
)

type fakeDeribit struct {
	server      *httptest.Server
	tickerCalls atomic.Int32
	instCalls   atomic.Int32
	failTicker  atomic.Bool
	failBooks   atomic.Bool
	// listNew adds a freshly listed strike to instruments and books
	listNew atomic.Bool
}

func newFakeDeribit(t *testing.T) *fakeDeribit {
	f := &fakeDeribit{}
	mux := http.NewServeMux()
	json := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			h(w, r)
		}
	}
	mux.HandleFunc("/public/ticker", json(func(w http.ResponseWriter, r *http.Request) {
		f.tickerCalls.Add(1)
		if f.failTicker.Load() {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"jsonrpc":"2.0","error":{"code":10004,"message":"instrument_not_found"}}`)
			return
		}
		assert.Equal(t, "BTC-PERPETUAL", r.URL.Query().Get("instrument_name"))
		fmt.Fprint(w, tickerBody)
	}))
	mux.HandleFunc("/public/get_instruments", json(func(w http.ResponseWriter, r *http.Request) {
		f.instCalls.Add(1)
		assert.Equal(t, "option", r.URL.Query().Get("kind"))
		assert.Equal(t, "false", r.URL.Query().Get("expired"))
		fmt.Fprint(w, withListing(instrumentsBody, newInstrument, f.listNew.Load()))
	}))
	mux.HandleFunc("/public/get_book_summary_by_currency", func(w http.ResponseWriter, r *http.Request) {
		if f.failBooks.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, withListing(booksBody, newBook, f.listNew.Load()))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// withListing appends entry to the result array of body when add is set
func withListing(body, entry string, add bool) string {
	if !add {
		return body
	}
	return strings.TrimSuffix(body, "]}") + "," + entry + "]}"
}

func TestDeribitSourceFetches(t *testing.T) {
	fake := newFakeDeribit(t)
	src := NewDeribitSource("deribit", fake.server.URL, 2*time.Second)
	ctx := context.Background()

	spot, err := src.SpotPrice(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, 108390.5, spot)

	instruments, err := src.Instruments(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, 100000.0, instruments[0].Strike)
	assert.Equal(t, "put", instruments[1].OptionType)

	books, err := src.BookSummaries(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.NotNil(t, books[0].BidPrice)
	assert.Equal(t, 0.03, *books[0].BidPrice)
	assert.Nil(t, books[1].BidPrice)
	assert.Nil(t, books[1].Volume)

	status := src.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, int64(3), status.MessagesCount)
	assert.Positive(t, status.BytesReceived)
}

func TestDeribitSourceErrors(t *testing.T) {
	fake := newFakeDeribit(t)
	fake.failTicker.Store(true)
	src := NewDeribitSource("deribit", fake.server.URL, 2*time.Second)

	_, err := src.SpotPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrument_not_found")

	status := src.Status()
	assert.False(t, status.Connected)
	assert.Positive(t, status.Errors)
	assert.Contains(t, status.LastError, "instrument_not_found")
}

func TestPerpetualName(t *testing.T) {
	assert.Equal(t, "ETH-PERPETUAL", PerpetualName("eth"))
}
