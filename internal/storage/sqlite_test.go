package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/models"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "scanner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReportRoundTrip(t *testing.T) {
	store := newStore(t)

	_, err := store.LoadReport("BTC")
	assert.ErrorIs(t, err, ErrNotFound)

	report := models.ScanReport{
		Currency:   "BTC",
		Generation: 7,
		Spot:       108390,
		Opportunities: []models.Opportunity{
			{ID: "conversion:a:b", Type: models.Conversion, Profit: 198.5},
		},
	}
	require.NoError(t, store.SaveReport(report))

	report.Generation = 8
	require.NoError(t, store.SaveReport(report))

	got, err := store.LoadReport("btc")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got.Generation)
	require.Len(t, got.Opportunities, 1)
	assert.Equal(t, 198.5, got.Opportunities[0].Profit)
}

func TestStrategies(t *testing.T) {
	store := newStore(t)

	legs := []models.StrategyLeg{
		{ID: "a", Type: models.Call, Action: models.Buy, Quantity: 1, Strike: 100000, Premium: 2500},
	}
	require.NoError(t, store.SaveStrategy("my-call", legs))
	require.NoError(t, store.SaveStrategy("another", legs))
	assert.Error(t, store.SaveStrategy("", legs))

	got, err := store.LoadStrategy("my-call")
	require.NoError(t, err)
	assert.Equal(t, legs, got)

	names, err := store.Strategies()
	require.NoError(t, err)
	assert.Equal(t, []string{"another", "my-call"}, names)

	require.NoError(t, store.Delete(StrategyKey("another")))
	assert.ErrorIs(t, store.Delete(StrategyKey("another")), ErrNotFound)
}

func TestPersist(t *testing.T) {
	store := newStore(t)
	ch := make(chan models.ScanReport, 2)
	ch <- models.ScanReport{Currency: "ETH", Generation: 1}
	ch <- models.ScanReport{Currency: "ETH", Generation: 2}
	close(ch)

	done := make(chan struct{})
	go func() {
		store.Persist(context.Background(), ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persist did not return after channel close")
	}

	got, err := store.LoadReport("ETH")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Generation)
}
