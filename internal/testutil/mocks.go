package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/storage"
	"github.com/mselser95/kalshi-mm/pkg/types"
)

// MockKalshiAPI is a mock HTTP server that serves the Kalshi public market
// endpoints in a single page.
type MockKalshiAPI struct {
	*httptest.Server
	Markets []types.Market
	mu      sync.RWMutex
}

// NewMockKalshiAPI creates a new mock Kalshi API server.
func NewMockKalshiAPI(markets []types.Market) *MockKalshiAPI {
	mock := &MockKalshiAPI{
		Markets: markets,
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/markets" {
			series := r.URL.Query().Get("series_ticker")
			resp := types.MarketsResponse{Markets: []types.Market{}}
			for _, m := range mock.Markets {
				if series == "" || m.SeriesTicker == series {
					resp.Markets = append(resp.Markets, m)
				}
			}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		if ticker, ok := strings.CutPrefix(r.URL.Path, "/markets/"); ok {
			for _, m := range mock.Markets {
				if m.Ticker == ticker {
					_ = json.NewEncoder(w).Encode(map[string]any{"market": m})
					return
				}
			}
		}

		http.NotFound(w, r)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetMarkets replaces the served market list.
func (m *MockKalshiAPI) SetMarkets(markets []types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markets = markets
}

// MockStorage is an in-memory storage implementation for testing.
type MockStorage struct {
	decisions []storage.DecisionRecord
	fills     []ledger.Fill
	closed    bool
	mu        sync.Mutex
}

var _ storage.Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// StoreDecision records a decision in memory.
func (m *MockStorage) StoreDecision(ctx context.Context, rec storage.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	return nil
}

// StoreFill records a fill in memory.
func (m *MockStorage) StoreFill(ctx context.Context, fill ledger.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, fill)
	return nil
}

// Close marks the storage closed.
func (m *MockStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Decisions returns a copy of all stored decisions.
func (m *MockStorage) Decisions() []storage.DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.DecisionRecord(nil), m.decisions...)
}

// Fills returns a copy of all stored fills.
func (m *MockStorage) Fills() []ledger.Fill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Fill(nil), m.fills...)
}

// Closed reports whether Close was called.
func (m *MockStorage) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Clear drops everything stored.
func (m *MockStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = nil
	m.fills = nil
}
