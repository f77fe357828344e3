package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/config"
	"github.com/svirmi/options-scanner/internal/models"
)

func fakeDeribit(t *testing.T) *httptest.Server {
	t.Helper()
	expires := time.Now().Add(10 * 24 * time.Hour).UnixMilli()
	respond := func(w http.ResponseWriter, result string) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s}`, result)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/public/ticker", func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"instrument_name":"BTC-PERPETUAL","last_price":100000}`)
	})
	mux.HandleFunc("/public/get_instruments", func(w http.ResponseWriter, r *http.Request) {
		respond(w, fmt.Sprintf(`[
			{"instrument_name":"BTC-5JUL30-100000-C","kind":"option","strike":100000,"option_type":"call","expiration_timestamp":%d,"contract_size":1},
			{"instrument_name":"BTC-5JUL30-100000-P","kind":"option","strike":100000,"option_type":"put","expiration_timestamp":%d,"contract_size":1}
		]`, expires, expires))
	})
	mux.HandleFunc("/public/get_book_summary_by_currency", func(w http.ResponseWriter, r *http.Request) {
		respond(w, `[
			{"instrument_name":"BTC-5JUL30-100000-C","bid_price":3000,"ask_price":3100,"volume":25,"open_interest":60,"mark_iv":55},
			{"instrument_name":"BTC-5JUL30-100000-P","bid_price":2700,"ask_price":2800,"volume":25,"open_interest":60,"mark_iv":57}
		]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	return &config.Config{
		DeribitBaseURL:     baseURL,
		Currencies:         []string{"BTC"},
		RequestTimeout:     2 * time.Second,
		ScanInterval:       time.Minute,
		InstrumentCacheTTL: time.Minute,
		FallbackSpot:       map[string]float64{"BTC": 108390},
		DatabasePath:       filepath.Join(t.TempDir(), "scanner.db"),
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(cfg, arbitrage.DefaultConfig(), zerolog.Nop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGreeksCommand(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")

	out, err := run(t, cfg, "greeks", "--spot", "100000", "--strike", "100000", "--days", "30", "--iv", "60", "--json")
	require.NoError(t, err)
	var view greeksView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Greater(t, view.Greeks.Delta, 0.5)
	assert.Less(t, view.Greeks.Delta, 0.6)
	assert.Equal(t, 0.05, view.Input.RiskFreeRate)

	out, err = run(t, cfg, "greeks", "--spot", "100000", "--strike", "100000", "--type", "put")
	require.NoError(t, err)
	assert.Contains(t, out, "Delta")

	_, err = run(t, cfg, "greeks", "--spot", "100000", "--strike", "100000", "--type", "future")
	assert.Error(t, err)
	_, err = run(t, cfg, "greeks", "--strike", "100000")
	assert.Error(t, err, "spot is required")
}

func TestStrategyCommands(t *testing.T) {
	cfg := testConfig(t, fakeDeribit(t).URL)

	out, err := run(t, cfg, "strategy", "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "iron-condor")

	out, err = run(t, cfg, "strategy", "analyze", "--template", "straddle", "--spot", "100000", "--json")
	require.NoError(t, err)
	var result struct {
		Legs     []models.StrategyLeg    `json:"legs"`
		Analysis models.StrategyAnalysis `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Legs, 2)
	assert.Len(t, result.Analysis.Breakevens, 2)
	assert.True(t, result.Analysis.ProfitUnbounded)

	// Live spot from the ticker when --spot is omitted
	out, err = run(t, cfg, "strategy", "analyze", "--template", "long-put")
	require.NoError(t, err)
	assert.Contains(t, out, "spot 100000.00")

	out, err = run(t, cfg, "strategy", "analyze", "--template", "long-call", "--spot", "100000", "--csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "price,pnl", lines[0])
	assert.Len(t, lines, 102)

	_, err = run(t, cfg, "strategy", "analyze", "--template", "butterfly", "--spot", "100000")
	assert.Error(t, err)
	_, err = run(t, cfg, "strategy", "analyze")
	assert.Error(t, err)

	_, err = run(t, cfg, "strategy", "save", "condor", "--template", "iron-condor", "--spot", "100000")
	require.NoError(t, err)
	out, err = run(t, cfg, "strategy", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `["condor"]`, out)

	out, err = run(t, cfg, "strategy", "analyze", "--saved", "condor", "--spot", "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "max profit")
}

func TestScanCommand(t *testing.T) {
	cfg := testConfig(t, fakeDeribit(t).URL)

	out, err := run(t, cfg, "scan", "--json")
	require.NoError(t, err)
	var report models.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "BTC", report.Currency)
	require.Len(t, report.Opportunities, 1)
	assert.Equal(t, models.Conversion, report.Opportunities[0].Type)
	assert.Equal(t, 198.5, report.Opportunities[0].Profit)

	out, err = run(t, cfg, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "CONVERSION")
	assert.Contains(t, out, "1 opportunities")

	out, err = run(t, cfg, "scan", "--csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "id,type,strike"))

	out, err = run(t, cfg, "scan", "--type", "box", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Opportunities)

	_, err = run(t, cfg, "scan", "--type", "butterfly")
	assert.Error(t, err)
}

func TestChainCommand(t *testing.T) {
	cfg := testConfig(t, fakeDeribit(t).URL)

	out, err := run(t, cfg, "chain", "--json")
	require.NoError(t, err)
	var view chainView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "5JUL30", view.Expiry)
	require.Len(t, view.Rows, 1)
	require.NotNil(t, view.Rows[0].Call)
	assert.Equal(t, 3000.0, view.Rows[0].Call.Bid)

	out, err = run(t, cfg, "chain")
	require.NoError(t, err)
	assert.Contains(t, out, "Strike")

	_, err = run(t, cfg, "chain", "--expiry", "1JAN20")
	assert.Error(t, err)
}
