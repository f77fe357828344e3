package arbitrage

import "github.com/svirmi/options-scanner/internal/models"

func step(action, instrument string, price float64) models.ExecutionStep {
	return models.ExecutionStep{Action: action, Instrument: instrument, Price: price, Quantity: 1}
}

func conversionSteps(underlying string, spot float64, call, put *models.OptionContract) []models.ExecutionStep {
	return []models.ExecutionStep{
		step("BUY", underlying, spot),
		step("BUY", put.InstrumentID, put.Ask),
		step("SELL", call.InstrumentID, call.Bid),
	}
}

func reversalSteps(underlying string, spot float64, call, put *models.OptionContract) []models.ExecutionStep {
	return []models.ExecutionStep{
		step("SELL", underlying, spot),
		step("SELL", put.InstrumentID, put.Bid),
		step("BUY", call.InstrumentID, call.Ask),
	}
}

func boxSteps(low, high *boxLegs) []models.ExecutionStep {
	return []models.ExecutionStep{
		step("BUY", low.call.InstrumentID, low.call.Ask),
		step("SELL", high.call.InstrumentID, high.call.Bid),
		step("BUY", high.put.InstrumentID, high.put.Ask),
		step("SELL", low.put.InstrumentID, low.put.Bid),
	}
}
