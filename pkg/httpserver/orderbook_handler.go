package httpserver

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
)

const (
	defaultDepth = 10
	maxDepth     = 100
)

// OrderbookHandler serves book state and the engine's view of a market.
type OrderbookHandler struct {
	books  *orderbook.Manager
	engine *engine.Engine // optional
	logger *zap.Logger
}

// NewOrderbookHandler creates a new orderbook handler.
func NewOrderbookHandler(books *orderbook.Manager, eng *engine.Engine, logger *zap.Logger) *OrderbookHandler {
	return &OrderbookHandler{
		books:  books,
		engine: eng,
		logger: logger,
	}
}

// OrderbookResponse is the HTTP response for one market's book.
type OrderbookResponse struct {
	Summary   types.BookSummary  `json:"summary"`
	Imbalance float64            `json:"imbalance"`
	Yes       []types.PriceLevel `json:"yes"`
	No        []types.PriceLevel `json:"no"`
}

// DecisionResponse is the HTTP response for the engine's current decision.
type DecisionResponse struct {
	engine.View
	Description string `json:"description"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleOrderbook handles GET /api/orderbook?ticker=<ticker>&depth=<n>.
func (h *OrderbookHandler) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, h.logger, "missing required query parameter: ticker", http.StatusBadRequest)
		return
	}

	depth := defaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.logger, "depth must be a positive integer", http.StatusBadRequest)
			return
		}
		depth = min(n, maxDepth)
	}

	book, ok := h.books.Snapshot(ticker)
	if !ok {
		writeError(w, h.logger, "orderbook not found", http.StatusNotFound)
		return
	}

	yes, no := book.Depth(depth)
	resp := OrderbookResponse{
		Summary:   book.Summary(),
		Imbalance: book.Imbalance(),
		Yes:       yes,
		No:        no,
	}

	h.logger.Debug("orderbook-served",
		zap.String("ticker", ticker),
		zap.Int("depth", depth))

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// HandleDecision handles GET /api/decision?ticker=<ticker>. Evaluation is
// read-only: nothing is sent to execution.
func (h *OrderbookHandler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, h.logger, "missing required query parameter: ticker", http.StatusBadRequest)
		return
	}

	d := h.engine.Evaluate(ticker)
	writeJSON(w, h.logger, http.StatusOK, DecisionResponse{
		View:        engine.ToView(d),
		Description: engine.Describe(d),
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, message string, status int) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}
