package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/internal/circuitbreaker"
	"github.com/mselser95/kalshi-mm/internal/fairvalue"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

// ControlHandler serves risk state and the operator controls: the kill
// switch, manual fair values and spot prices.
type ControlHandler struct {
	books      *orderbook.Manager
	risk       *risk.Engine
	ledger     *ledger.Ledger
	killSwitch *circuitbreaker.KillSwitch
	fairValues *fairvalue.Store
	model      *fairvalue.Model
	logger     *zap.Logger
	now        func() time.Time
}

// RiskResponse is the HTTP response for GET /api/risk.
type RiskResponse struct {
	Snapshot      risk.Snapshot              `json:"snapshot"`
	Positions     map[string]ledger.Position `json:"positions"`
	OpenOrders    []ledger.OpenOrder         `json:"open_orders"`
	RealizedPnL   float64                    `json:"realized_pnl"`
	UnrealizedPnL float64                    `json:"unrealized_pnl"`
}

// ActivateRequest is the body of POST /api/killswitch/activate.
type ActivateRequest struct {
	Reason string `json:"reason"`
}

// FairValueRequest is the body of POST /api/fairvalue.
type FairValueRequest struct {
	Ticker string `json:"ticker"`
	Cents  *int   `json:"cents"`
}

// SpotRequest is the body of POST /api/spot.
type SpotRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// SpotResponse reports how many markets a spot update repriced.
type SpotResponse struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Repriced int     `json:"repriced"`
}

// HandleRisk handles GET /api/risk.
func (h *ControlHandler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	positions := h.ledger.Positions()
	openOrders := h.ledger.OpenOrders()

	mids := make(map[string]float64, len(positions))
	if h.books != nil {
		for ticker := range positions {
			if s, ok := h.books.Summary(ticker); ok && s.Valid {
				mids[ticker] = s.Mid
			}
		}
	}

	writeJSON(w, h.logger, http.StatusOK, RiskResponse{
		Snapshot:      h.risk.Metrics(positions, openOrders, mids),
		Positions:     positions,
		OpenOrders:    openOrders,
		RealizedPnL:   h.ledger.RealizedPnL(),
		UnrealizedPnL: h.ledger.UnrealizedPnL(mids),
	})
}

// HandleKillSwitchStatus handles GET /api/killswitch.
func (h *ControlHandler) HandleKillSwitchStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.killSwitch.GetStatus())
}

// HandleKillSwitchActivate handles POST /api/killswitch/activate.
func (h *ControlHandler) HandleKillSwitchActivate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !h.decode(w, r, &req) {
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		writeError(w, h.logger, "reason is required", http.StatusBadRequest)
		return
	}

	h.killSwitch.Activate("manual: " + reason)
	h.logger.Warn("kill-switch-activated-via-api", zap.String("reason", reason))

	writeJSON(w, h.logger, http.StatusOK, h.killSwitch.GetStatus())
}

// HandleKillSwitchReset handles POST /api/killswitch/reset.
func (h *ControlHandler) HandleKillSwitchReset(w http.ResponseWriter, r *http.Request) {
	h.killSwitch.Reset()
	h.logger.Info("kill-switch-reset-via-api")

	writeJSON(w, h.logger, http.StatusOK, h.killSwitch.GetStatus())
}

// HandleGetFairValue handles GET /api/fairvalue?ticker=<ticker>.
func (h *ControlHandler) HandleGetFairValue(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, h.logger, "missing required query parameter: ticker", http.StatusBadRequest)
		return
	}

	entry, ok := h.fairValues.Get(ticker)
	if !ok {
		writeError(w, h.logger, "fair value not found", http.StatusNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, entry)
}

// HandleSetFairValue handles POST /api/fairvalue.
func (h *ControlHandler) HandleSetFairValue(w http.ResponseWriter, r *http.Request) {
	var req FairValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Cents == nil {
		writeError(w, h.logger, "cents is required", http.StatusBadRequest)
		return
	}

	err := h.fairValues.Set(req.Ticker, *req.Cents, fairvalue.SourceManual)
	if err != nil {
		writeError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	entry, _ := h.fairValues.Get(req.Ticker)
	h.logger.Info("fair-value-set-via-api",
		zap.String("ticker", req.Ticker),
		zap.Int("cents", *req.Cents))

	writeJSON(w, h.logger, http.StatusOK, entry)
}

// HandleSpot handles POST /api/spot.
func (h *ControlHandler) HandleSpot(w http.ResponseWriter, r *http.Request) {
	var req SpotRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Symbol == "" {
		writeError(w, h.logger, "symbol is required", http.StatusBadRequest)
		return
	}
	if req.Price <= 0 {
		writeError(w, h.logger, "price must be positive", http.StatusBadRequest)
		return
	}

	n := h.model.OnSpot(req.Symbol, req.Price, h.now())

	writeJSON(w, h.logger, http.StatusOK, SpotResponse{
		Symbol:   req.Symbol,
		Price:    req.Price,
		Repriced: n,
	})
}

func (h *ControlHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		writeError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
