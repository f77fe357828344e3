package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/models"
)

func contract(id string, typ models.OptionType, strike float64, expiry string, bid, ask float64) models.OptionContract {
	return models.OptionContract{InstrumentID: id, Type: typ, Strike: strike, ExpiryCode: expiry, Bid: bid, Ask: ask}
}

func TestGroupFirstSeenWins(t *testing.T) {
	contracts := []models.OptionContract{
		contract("a", models.Call, 100, "5JUL25", 10, 12),
		contract("b", models.Call, 100, "5JUL25", 10, 11),
		contract("c", models.Put, 100, "5JUL25", 5, 6),
		contract("d", models.Call, 90, "5JUL25", 20, 21),
	}

	g := Group(contracts)
	grp, ok := g.Get(100, "5JUL25")
	require.True(t, ok)
	assert.Equal(t, "a", grp.Call.InstrumentID)
	assert.Equal(t, "c", grp.Put.InstrumentID)
	assert.True(t, grp.Complete())

	lonely, ok := g.Get(90, "5JUL25")
	require.True(t, ok)
	assert.False(t, lonely.Complete())
	assert.Nil(t, lonely.Put)

	assert.Equal(t, []float64{90, 100}, g.Strikes)
	assert.Equal(t, []GroupKey{{100, "5JUL25"}, {90, "5JUL25"}}, g.Order)
}

func TestGroupWithPreference(t *testing.T) {
	contracts := []models.OptionContract{
		contract("wide", models.Call, 100, "5JUL25", 10, 12),
		contract("tight", models.Call, 100, "5JUL25", 10, 11),
	}
	g := Group(contracts, WithPreference(TighterSpread))
	grp, _ := g.Get(100, "5JUL25")
	assert.Equal(t, "tight", grp.Call.InstrumentID)
}

func TestGroupOrdersExpiriesByTime(t *testing.T) {
	late := contract("x", models.Call, 100, "26DEC25", 1, 2)
	late.ExpiresAt = time.Date(2025, 12, 26, 8, 0, 0, 0, time.UTC)
	early := contract("y", models.Call, 100, "5JUL25", 1, 2)
	early.ExpiresAt = time.Date(2025, 7, 5, 8, 0, 0, 0, time.UTC)

	g := Group([]models.OptionContract{late, early})
	assert.Equal(t, []string{"5JUL25", "26DEC25"}, g.Expiries)
	assert.Equal(t, early.ExpiresAt, g.ExpiryTime("5JUL25"))
}

func TestChain(t *testing.T) {
	contracts := []models.OptionContract{
		contract("c110", models.Call, 110, "5JUL25", 1, 2),
		contract("p100", models.Put, 100, "5JUL25", 1, 2),
		contract("c100", models.Call, 100, "5JUL25", 3, 4),
		contract("other", models.Call, 105, "26DEC25", 1, 2),
	}
	rows := Group(contracts).Chain("5JUL25")
	require.Len(t, rows, 2)
	assert.Equal(t, 100.0, rows[0].Strike)
	assert.Equal(t, "c100", rows[0].Call.InstrumentID)
	assert.Equal(t, "p100", rows[0].Put.InstrumentID)
	assert.Nil(t, rows[1].Put)
}
