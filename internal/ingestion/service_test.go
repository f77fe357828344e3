package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, fake *fakeDeribit, opts ServiceOptions) *DataIngestionService {
	svc := NewDataIngestionService(opts)
	require.NoError(t, svc.AddSource(NewDeribitSource("deribit", fake.server.URL, 2*time.Second)))
	return svc
}

func TestLoadSnapshot(t *testing.T) {
	fake := newFakeDeribit(t)
	svc := newService(t, fake, ServiceOptions{InstrumentTTL: time.Minute})

	snap, err := svc.LoadSnapshot(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", snap.Currency)
	assert.Equal(t, 108390.5, snap.Spot)
	assert.False(t, snap.SpotFallback)
	assert.Len(t, snap.Instruments, 2)
	assert.Len(t, snap.Books, 2)

	_, err = svc.LoadSnapshot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.instCalls.Load(), "instruments must come from cache")

	svc.InvalidateInstruments("BTC")
	_, err = svc.LoadSnapshot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.instCalls.Load())
}

func TestLoadSnapshotRefreshesStaleInstruments(t *testing.T) {
	fake := newFakeDeribit(t)
	svc := newService(t, fake, ServiceOptions{InstrumentTTL: time.Hour})
	ctx := context.Background()

	snap, err := svc.LoadSnapshot(ctx, "BTC")
	require.NoError(t, err)
	assert.Len(t, snap.Instruments, 2)

	fake.listNew.Store(true)
	snap, err = svc.LoadSnapshot(ctx, "BTC")
	require.NoError(t, err)
	assert.Len(t, snap.Books, 3)
	assert.Len(t, snap.Instruments, 3, "new listing must trigger a metadata refresh")
	assert.Equal(t, int32(2), fake.instCalls.Load())

	_, err = svc.LoadSnapshot(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.instCalls.Load(), "refreshed metadata is cached again")
}

func TestSpotFallsBackToLastKnownThenConfigured(t *testing.T) {
	fake := newFakeDeribit(t)
	svc := newService(t, fake, ServiceOptions{FallbackSpot: map[string]float64{"BTC": 108390}})
	ctx := context.Background()

	fake.failTicker.Store(true)
	spot, fallback, err := svc.Spot(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, 108390.0, spot)

	fake.failTicker.Store(false)
	spot, fallback, err = svc.Spot(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, 108390.5, spot)

	fake.failTicker.Store(true)
	spot, fallback, err = svc.Spot(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, 108390.5, spot, "last known price wins over the configured fallback")
}

func TestSpotWithoutFallbackFails(t *testing.T) {
	fake := newFakeDeribit(t)
	fake.failTicker.Store(true)
	svc := newService(t, fake, ServiceOptions{})

	_, _, err := svc.Spot(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestLoadSnapshotFailsOnBooks(t *testing.T) {
	fake := newFakeDeribit(t)
	fake.failBooks.Store(true)
	svc := newService(t, fake, ServiceOptions{})

	_, err := svc.LoadSnapshot(context.Background(), "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "book summaries")
}

func TestNoSources(t *testing.T) {
	svc := NewDataIngestionService(ServiceOptions{})
	_, err := svc.LoadSnapshot(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestSourceRegistry(t *testing.T) {
	fake := newFakeDeribit(t)
	svc := newService(t, fake, ServiceOptions{})

	assert.Error(t, svc.AddSource(NewDeribitSource("deribit", fake.server.URL, time.Second)))
	_, err := svc.GetSourceStatus("deribit")
	assert.NoError(t, err)
	assert.Contains(t, svc.GetAllSourceStatuses(), "deribit")

	_, err = svc.GetSourceStatus("bybit")
	assert.Error(t, err)
}
