package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/models"
)

func TestTemplateNames(t *testing.T) {
	assert.Equal(t, []string{"custom", "iron-condor", "long-call", "long-put", "straddle", "strangle"}, TemplateNames())
}

func TestStrikeStep(t *testing.T) {
	assert.Equal(t, 1000.0, StrikeStep(108390))
	assert.Equal(t, 10.0, StrikeStep(2500))
	assert.Equal(t, 1.0, StrikeStep(50))
}

func TestIronCondorTemplate(t *testing.T) {
	e := NewEngine(0.05)
	legs, err := e.Template("iron-condor", 108390)
	require.NoError(t, err)
	require.Len(t, legs, 4)

	strikes := []float64{105000, 106000, 110000, 111000}
	actions := []models.TradeAction{models.Buy, models.Sell, models.Sell, models.Buy}
	for i, leg := range legs {
		assert.Equal(t, strikes[i], leg.Strike)
		assert.Equal(t, actions[i], leg.Action)
		assert.Greater(t, leg.Premium, 0.0)
		assert.NotEmpty(t, leg.ID)
		assert.NoError(t, leg.Validate())
	}
	assert.Equal(t, 75.0, legs[0].ImpliedVol)
	assert.Equal(t, 70.0, legs[1].ImpliedVol)

	a, err := e.Analyze(legs, 108390)
	require.NoError(t, err)
	assert.Len(t, a.Curve, 101)
	assert.False(t, a.ProfitUnbounded)
	assert.False(t, a.LossUnbounded)
}

func TestStraddleTemplateAtTheMoney(t *testing.T) {
	legs, err := NewEngine(0.05).Template("straddle", 108390)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, 108000.0, legs[0].Strike)
	assert.Equal(t, legs[0].Strike, legs[1].Strike)
	assert.Equal(t, models.Call, legs[0].Type)
	assert.Equal(t, models.Put, legs[1].Type)
}

func TestTemplateErrors(t *testing.T) {
	e := NewEngine(0.05)
	_, err := e.Template("butterfly", 100000)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = e.Template("straddle", -1)
	assert.ErrorIs(t, err, ErrInvalidSpot)

	legs, err := e.Template("custom", 100000)
	require.NoError(t, err)
	assert.Empty(t, legs)
}
