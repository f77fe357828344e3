package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
)

const DefaultDeribitURL = "https://www.deribit.com/api/v2"

// DeribitSource reads public market data from the Deribit REST API
type DeribitSource struct {
	id     string
	client *resty.Client
	status *statusTracker
	logger zerolog.Logger
}

func NewDeribitSource(id, baseURL string, timeout time.Duration) *DeribitSource {
	if baseURL == "" {
		baseURL = DefaultDeribitURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &DeribitSource{
		id:     id,
		client: client,
		status: newStatusTracker(),
		logger: logger.GetLogger("deribit_source").With().Str("source_id", id).Logger(),
	}
}

func (d *DeribitSource) ID() string {
	return d.id
}

func (d *DeribitSource) Status() SourceStatus {
	return d.status.snapshot()
}

// SpotPrice returns the last traded price of the currency's perpetual
func (d *DeribitSource) SpotPrice(ctx context.Context, currency string) (float64, error) {
	var ticker models.DeribitTicker
	if err := d.get(ctx, "/public/ticker", map[string]string{
		"instrument_name": PerpetualName(currency),
	}, &ticker); err != nil {
		return 0, err
	}
	if ticker.LastPrice <= 0 {
		err := fmt.Errorf("ticker %s: non-positive last price %v", ticker.InstrumentName, ticker.LastPrice)
		d.status.failure(err)
		return 0, err
	}
	return ticker.LastPrice, nil
}

func (d *DeribitSource) Instruments(ctx context.Context, currency string) ([]models.DeribitInstrument, error) {
	var instruments []models.DeribitInstrument
	err := d.get(ctx, "/public/get_instruments", map[string]string{
		"currency": currency,
		"kind":     "option",
		"expired":  "false",
	}, &instruments)
	return instruments, err
}

func (d *DeribitSource) BookSummaries(ctx context.Context, currency string) ([]models.DeribitBookSummary, error) {
	var books []models.DeribitBookSummary
	err := d.get(ctx, "/public/get_book_summary_by_currency", map[string]string{
		"currency": currency,
		"kind":     "option",
	}, &books)
	return books, err
}

func (d *DeribitSource) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var envelope models.DeribitResponse

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(&envelope).
		SetError(&envelope).
		Get(path)
	if err != nil {
		err = fmt.Errorf("deribit %s: %w", path, err)
		d.status.failure(err)
		return err
	}

	if envelope.Error != nil {
		err = fmt.Errorf("deribit %s: %w (code %d)", path, envelope.Error, envelope.Error.Code)
		d.status.failure(err)
		return err
	}
	if resp.IsError() {
		err = fmt.Errorf("deribit %s: unexpected status %d", path, resp.StatusCode())
		d.status.failure(err)
		return err
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		err = fmt.Errorf("deribit %s: decoding result: %w", path, err)
		d.status.failure(err)
		return err
	}

	d.status.success(len(resp.Body()))
	d.logger.Debug().
		Str("path", path).
		Interface("params", params).
		Int("bytes", len(resp.Body())).
		Dur("latency", resp.Time()).
		Msg("Fetched")
	return nil
}

// PerpetualName returns the perpetual instrument used for spot, e.g. BTC-PERPETUAL
func PerpetualName(currency string) string {
	return strings.ToUpper(currency) + "-PERPETUAL"
}
