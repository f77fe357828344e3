package models

import "encoding/json"

// DeribitResponse represents the JSON-RPC envelope returned by Deribit public endpoints
type DeribitResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *DeribitError   `json:"error,omitempty"`
	UsIn    int64           `json:"usIn"`
	UsOut   int64           `json:"usOut"`
}

type DeribitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *DeribitError) Error() string {
	return e.Message
}

// DeribitTicker represents the subset of /public/ticker used for spot lookup
type DeribitTicker struct {
	InstrumentName string  `json:"instrument_name"`
	LastPrice      float64 `json:"last_price"`
	IndexPrice     float64 `json:"index_price"`
	MarkPrice      float64 `json:"mark_price"`
	Timestamp      int64   `json:"timestamp"`
}

// DeribitInstrument represents one entry of /public/get_instruments
type DeribitInstrument struct {
	InstrumentName      string  `json:"instrument_name"`
	Kind                string  `json:"kind"`
	BaseCurrency        string  `json:"base_currency"`
	Strike              float64 `json:"strike"`
	OptionType          string  `json:"option_type"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"`
	CreationTimestamp   int64   `json:"creation_timestamp"`
	ContractSize        float64 `json:"contract_size"`
	TickSize            float64 `json:"tick_size"`
	MinTradeAmount      float64 `json:"min_trade_amount"`
	IsActive            bool    `json:"is_active"`
}

// DeribitGreeks is only present on book summaries for some instruments
type DeribitGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// DeribitBookSummary represents one entry of /public/get_book_summary_by_currency.
// Deribit sends null for empty sides of the book, hence the pointers.
type DeribitBookSummary struct {
	InstrumentName  string         `json:"instrument_name"`
	BidPrice        *float64       `json:"bid_price"`
	AskPrice        *float64       `json:"ask_price"`
	MarkPrice       *float64       `json:"mark_price"`
	Last            *float64       `json:"last"`
	Volume          *float64       `json:"volume"`
	OpenInterest    *float64       `json:"open_interest"`
	MarkIV          *float64       `json:"mark_iv"`
	UnderlyingPrice float64        `json:"underlying_price"`
	CreationTime    int64          `json:"creation_timestamp"`
	Greeks          *DeribitGreeks `json:"greeks,omitempty"`
}
