package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/svirmi/options-scanner/internal/greeks"
	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/scanner"
	"github.com/svirmi/options-scanner/internal/storage"
	"github.com/svirmi/options-scanner/internal/strategy"
)

var errStoreDisabled = errors.New("strategy storage is not configured")

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, scanner.ErrUnknownCurrency),
		errors.Is(err, strategy.ErrUnknownTemplate),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, strategy.ErrLegNotFound):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrNoLegs),
		errors.Is(err, strategy.ErrInvalidSpot):
		return http.StatusBadRequest
	case errors.Is(err, errStoreDisabled):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func parseFilter(r *http.Request) (models.Filter, error) {
	var f models.Filter
	q := r.URL.Query()
	if t := q.Get("type"); t != "" && !strings.EqualFold(t, "all") {
		typ, ok := models.ParseArbitrageType(t)
		if !ok {
			return f, fmt.Errorf("invalid type %q", t)
		}
		f.Type = typ
	}
	if mp := q.Get("min_profit"); mp != "" {
		v, err := strconv.ParseFloat(mp, 64)
		if err != nil {
			return f, fmt.Errorf("invalid min_profit %q", mp)
		}
		f.MinProfit = v
	}
	return f, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opps, err := s.deps.Registry.Opportunities(r.URL.Query().Get("currency"), filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, opps)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sch, err := s.deps.Registry.Get(mux.Vars(r)["currency"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, ok := sch.Latest(filter)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no completed scan for %s", sch.Currency()))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleScan triggers a cycle for one currency, or for all when none is given
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	currencies := s.deps.Registry.Currencies()
	if ccy := r.URL.Query().Get("currency"); ccy != "" {
		currencies = []string{ccy}
	}

	reports := make([]models.ScanReport, 0, len(currencies))
	for _, ccy := range currencies {
		sch, err := s.deps.Registry.Get(ccy)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		report, err := sch.Trigger(r.Context())
		if err != nil {
			report.Error = err.Error()
		}
		reports = append(reports, report)
	}
	writeJSON(w, http.StatusOK, reports)
}

type greeksResponse struct {
	models.Greeks
	Price float64 `json:"price"`
}

func (s *Server) handleGreeks(w http.ResponseWriter, r *http.Request) {
	var in greeks.Input
	var err error
	for _, p := range []struct {
		key string
		dst *float64
		def float64
	}{
		{"spot", &in.Spot, 0},
		{"strike", &in.Strike, 0},
		{"days", &in.DaysToExpiry, s.deps.Engine.DefaultDays},
		{"iv", &in.ImpliedVol, 0},
		{"rate", &in.RiskFreeRate, s.deps.Engine.RiskFreeRate},
	} {
		if *p.dst, err = queryFloat(r, p.key, p.def); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if in.Spot <= 0 || in.Strike <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("spot and strike must be positive"))
		return
	}
	in.Type = models.Call
	if t := r.URL.Query().Get("type"); t != "" {
		if in.Type, err = models.ParseOptionType(t); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, greeksResponse{Greeks: greeks.Compute(in), Price: greeks.Price(in)})
}

type analyzeRequest struct {
	Spot     float64              `json:"spot"`
	Currency string               `json:"currency"`
	Legs     []models.StrategyLeg `json:"legs"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Spot <= 0 {
		req.Spot = s.latestSpot(req.Currency)
	}

	analysis, err := s.deps.Engine.Analyze(req.Legs, req.Spot)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// leg validation failures
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleTemplateNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, strategy.TemplateNames())
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	spot, err := queryFloat(r, "spot", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if spot <= 0 {
		spot = s.latestSpot(r.URL.Query().Get("currency"))
	}

	legs, err := s.deps.Engine.Template(mux.Vars(r)["name"], spot)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, legs)
}

// latestSpot returns the spot of the latest report for currency, or of the
// first configured currency when none is named. Zero when unknown.
func (s *Server) latestSpot(currency string) float64 {
	if currency == "" {
		ccys := s.deps.Registry.Currencies()
		if len(ccys) == 0 {
			return 0
		}
		currency = ccys[0]
	}
	sch, err := s.deps.Registry.Get(currency)
	if err != nil {
		return 0
	}
	report, ok := sch.Session().Latest()
	if !ok {
		return 0
	}
	return report.Spot
}

func (s *Server) handleStrategyNames(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, statusFor(errStoreDisabled), errStoreDisabled)
		return
	}
	names, err := s.deps.Store.Strategies()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleLoadStrategy(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, statusFor(errStoreDisabled), errStoreDisabled)
		return
	}
	legs, err := s.deps.Store.LoadStrategy(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, legs)
}

// handleSaveStrategy validates the legs through a Book before storing them
func (s *Server) handleSaveStrategy(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, statusFor(errStoreDisabled), errStoreDisabled)
		return
	}
	var legs []models.StrategyLeg
	if err := decodeBody(w, r, &legs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(legs) == 0 {
		writeError(w, http.StatusBadRequest, strategy.ErrNoLegs)
		return
	}
	book, err := strategy.NewBook(legs...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Store.SaveStrategy(mux.Vars(r)["name"], book.Legs()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, book.Legs())
}

// legPatch carries the fields of a leg edit; absent fields are kept
type legPatch struct {
	Type         *string  `json:"option_type"`
	Action       *string  `json:"action"`
	Quantity     *int     `json:"quantity"`
	Strike       *float64 `json:"strike"`
	Premium      *float64 `json:"premium"`
	ImpliedVol   *float64 `json:"implied_vol"`
	ExpiryCode   *string  `json:"expiry"`
	DaysToExpiry *float64 `json:"days_to_expiry"`
}

// apply parses the enum fields up front so the edit itself cannot fail
func (p legPatch) apply() (func(*models.StrategyLeg), error) {
	var typ models.OptionType
	var action models.TradeAction
	var err error
	if p.Type != nil {
		if typ, err = models.ParseOptionType(*p.Type); err != nil {
			return nil, err
		}
	}
	if p.Action != nil {
		if action, err = models.ParseTradeAction(*p.Action); err != nil {
			return nil, err
		}
	}

	return func(l *models.StrategyLeg) {
		if p.Type != nil {
			l.Type = typ
		}
		if p.Action != nil {
			l.Action = action
		}
		if p.Quantity != nil {
			l.Quantity = *p.Quantity
		}
		if p.Strike != nil {
			l.Strike = *p.Strike
		}
		if p.Premium != nil {
			l.Premium = *p.Premium
		}
		if p.ImpliedVol != nil {
			l.ImpliedVol = *p.ImpliedVol
		}
		if p.ExpiryCode != nil {
			l.ExpiryCode = strings.ToUpper(*p.ExpiryCode)
		}
		if p.DaysToExpiry != nil {
			l.DaysToExpiry = *p.DaysToExpiry
		}
	}, nil
}

// editStrategy loads a saved strategy into a Book, applies edit and stores
// the result
func (s *Server) editStrategy(w http.ResponseWriter, name string, edit func(*strategy.Book) error) {
	if s.deps.Store == nil {
		writeError(w, statusFor(errStoreDisabled), errStoreDisabled)
		return
	}
	legs, err := s.deps.Store.LoadStrategy(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	book, err := strategy.NewBook(legs...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := edit(book); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	if err := s.deps.Store.SaveStrategy(name, book.Legs()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, book.Legs())
}

func (s *Server) handleUpdateLeg(w http.ResponseWriter, r *http.Request) {
	var patch legPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	edit, err := patch.apply()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	vars := mux.Vars(r)
	s.editStrategy(w, vars["name"], func(b *strategy.Book) error {
		return b.Update(vars["id"], edit)
	})
}

// handleRemoveLeg deletes one leg; the last leg of a strategy cannot be removed
func (s *Server) handleRemoveLeg(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.editStrategy(w, vars["name"], func(b *strategy.Book) error {
		if err := b.Remove(vars["id"]); err != nil {
			return err
		}
		if b.Len() == 0 {
			return strategy.ErrNoLegs
		}
		return nil
	})
}
