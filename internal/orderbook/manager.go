package orderbook

import (
	"context"
	"hash/crc32"
	"sync"
	"time"

	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultShardCount    = 32
	defaultResyncTimeout = 30 * time.Second
)

// ResyncRequest asks the feed to fetch a fresh snapshot for one ticker.
type ResyncRequest struct {
	Ticker string
	Reason string
	At     time.Time
}

// entry owns one ticker's book. Its mutex is the per-ticker exclusion.
type entry struct {
	mu            sync.Mutex
	book          *Book
	resyncPending bool
	resyncAt      time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Manager manages order book state for all subscribed markets.
//
// Books are sharded by ticker so feeds writing unrelated markets never
// contend. The shard lock only guards map membership; mutation happens under
// the ticker's own lock. Readers receive deep copies.
type Manager struct {
	shards     []*shard
	logger     *zap.Logger
	msgChan    <-chan *types.FeedMessage
	resyncChan chan ResyncRequest
	resyncWait time.Duration
	now        func() time.Time
	ctx        context.Context
	wg         sync.WaitGroup
}

// Config holds orderbook manager configuration.
type Config struct {
	Logger           *zap.Logger
	MessageChannel   <-chan *types.FeedMessage
	ResyncBufferSize int
	Shards           int

	// ResyncTimeout is how long a resync may stay outstanding without a
	// snapshot before the next update on that ticker requests another.
	ResyncTimeout time.Duration
}

// New creates a new orderbook manager.
func New(cfg *Config) *Manager {
	shardCount := cfg.Shards
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}

	resyncBuffer := cfg.ResyncBufferSize
	if resyncBuffer <= 0 {
		resyncBuffer = 1000
	}

	resyncWait := cfg.ResyncTimeout
	if resyncWait <= 0 {
		resyncWait = defaultResyncTimeout
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*entry)}
	}

	return &Manager{
		shards:     shards,
		logger:     cfg.Logger,
		msgChan:    cfg.MessageChannel,
		resyncChan: make(chan ResyncRequest, resyncBuffer),
		resyncWait: resyncWait,
		now:        time.Now,
	}
}

// Start starts consuming feed messages.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx = ctx
	m.logger.Info("orderbook-manager-starting", zap.Int("shards", len(m.shards)))

	if m.msgChan == nil {
		return nil
	}

	m.wg.Add(1)
	go m.processMessages()

	return nil
}

// processMessages processes incoming feed messages.
func (m *Manager) processMessages() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("orderbook-manager-stopping")
			return
		case msg, ok := <-m.msgChan:
			if !ok {
				m.logger.Info("message-channel-closed")
				return
			}
			m.handleMessage(msg)
		}
	}
}

func (m *Manager) handleMessage(msg *types.FeedMessage) {
	timer := prometheus.NewTimer(UpdateProcessingDuration)
	defer timer.ObserveDuration()

	switch {
	case msg.Snapshot != nil:
		m.HandleSnapshot(msg.Snapshot)
	case msg.Delta != nil:
		m.HandleDelta(msg.Delta)
	default:
		m.logger.Debug("empty-feed-message-ignored")
	}
}

// HandleSnapshot applies a full snapshot, creating the book on first sight.
func (m *Manager) HandleSnapshot(msg *types.SnapshotMessage) {
	UpdatesTotal.WithLabelValues("snapshot").Inc()

	at := msg.ReceivedAt
	if at.IsZero() {
		at = m.now()
	}

	e := m.getOrCreate(msg.Ticker)

	lockStart := time.Now()
	e.mu.Lock()
	LockContentionDuration.Observe(time.Since(lockStart).Seconds())

	wasValid := e.book.IsValid()
	e.book.ApplySnapshot(msg.Yes, msg.No, msg.Seq, at)
	e.resyncPending = false
	e.mu.Unlock()

	if !wasValid {
		InvalidBooks.Dec()
	}

	m.logger.Debug("orderbook-snapshot-applied",
		zap.String("ticker", msg.Ticker),
		zap.Int64("seq", msg.Seq),
		zap.Int("yes-levels", len(msg.Yes)),
		zap.Int("no-levels", len(msg.No)))
}

// HandleDelta applies one incremental update. The wire delta is a change in
// quantity; the level's new quantity is max(0, current+delta).
// It returns false when the update could not be applied and a resync was requested.
func (m *Manager) HandleDelta(msg *types.DeltaMessage) bool {
	UpdatesTotal.WithLabelValues("delta").Inc()

	if !msg.Side.Valid() || msg.Price <= 0 || msg.Price >= 100 {
		m.logger.Warn("orderbook-delta-malformed",
			zap.String("ticker", msg.Ticker),
			zap.String("side", string(msg.Side)),
			zap.Int("price", msg.Price))
		MalformedTotal.Inc()
		m.invalidate(msg.Ticker, "malformed-delta")
		return false
	}

	at := msg.ReceivedAt
	if at.IsZero() {
		at = m.now()
	}

	e, created := m.getOrCreateFlag(msg.Ticker)
	if created {
		// Delta before any snapshot: the book is invalid until one arrives.
		m.requestResync(e, msg.Ticker, "delta-before-snapshot")
		return false
	}

	e.mu.Lock()
	if !e.book.IsValid() {
		// Only a snapshot revives an invalid book.
		e.mu.Unlock()
		m.requestResync(e, msg.Ticker, "awaiting-snapshot")
		return false
	}
	newQty := e.book.Quantity(msg.Side, msg.Price) + msg.Delta
	if newQty < 0 {
		newQty = 0
	}
	applied := e.book.ApplyDelta(msg.Side, msg.Price, newQty, msg.Seq, at)
	lastSeq := e.book.LastDeltaSeq()
	e.mu.Unlock()

	if applied {
		return true
	}

	InvalidBooks.Inc()
	GapsTotal.Inc()
	m.logger.Warn("orderbook-gap-detected",
		zap.String("ticker", msg.Ticker),
		zap.Int64("expected-seq", lastSeq+1),
		zap.Int64("received-seq", msg.Seq))

	m.requestResync(e, msg.Ticker, "sequence-gap")

	return false
}

func (m *Manager) invalidate(ticker string, reason string) {
	e, created := m.getOrCreateFlag(ticker)

	e.mu.Lock()
	wasValid := e.book.IsValid()
	e.book.Invalidate()
	e.mu.Unlock()

	if wasValid && !created {
		InvalidBooks.Inc()
	}

	m.requestResync(e, ticker, reason)
}

// requestResync emits at most one outstanding resync per ticker. An
// outstanding request older than the resync timeout is considered lost.
func (m *Manager) requestResync(e *entry, ticker string, reason string) {
	now := m.now()

	e.mu.Lock()
	if e.resyncPending && now.Sub(e.resyncAt) < m.resyncWait {
		e.mu.Unlock()
		return
	}
	if e.resyncPending {
		ResyncTimeoutsTotal.Inc()
		reason = "resync-timeout"
	}
	e.resyncPending = true
	e.resyncAt = now
	e.mu.Unlock()

	req := ResyncRequest{Ticker: ticker, Reason: reason, At: now}

	select {
	case m.resyncChan <- req:
		ResyncRequestsTotal.WithLabelValues(reason).Inc()
		m.logger.Info("orderbook-resync-requested",
			zap.String("ticker", ticker),
			zap.String("reason", reason))
	default:
		// Leave pending unset so the next delta retries the request.
		e.mu.Lock()
		e.resyncPending = false
		e.mu.Unlock()
		ResyncDroppedTotal.Inc()
		m.logger.Error("orderbook-resync-channel-full",
			zap.String("ticker", ticker),
			zap.Int("buffer-size", cap(m.resyncChan)))
	}
}

// ResyncFailed re-queues a resync for ticker after the feed could not
// perform one. It does nothing if the book was restored meanwhile.
func (m *Manager) ResyncFailed(ticker string) {
	e, ok := m.get(ticker)
	if !ok {
		return
	}

	e.mu.Lock()
	if e.book.IsValid() {
		e.mu.Unlock()
		return
	}
	e.resyncPending = false
	e.mu.Unlock()

	m.requestResync(e, ticker, "resync-failed")
}

// ResyncChan returns the channel of resync requests for the feed.
func (m *Manager) ResyncChan() <-chan ResyncRequest {
	return m.resyncChan
}

// Snapshot returns a deep copy of a ticker's book.
func (m *Manager) Snapshot(ticker string) (*Book, bool) {
	e, ok := m.get(ticker)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.book.Clone(), true
}

// Summary returns a ticker's book summary.
func (m *Manager) Summary(ticker string) (types.BookSummary, bool) {
	e, ok := m.get(ticker)
	if !ok {
		return types.BookSummary{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.book.Summary(), true
}

// Tickers returns every ticker with a book.
func (m *Manager) Tickers() []string {
	var tickers []string
	for _, s := range m.shards {
		s.mu.RLock()
		for ticker := range s.entries {
			tickers = append(tickers, ticker)
		}
		s.mu.RUnlock()
	}
	return tickers
}

// Len returns the number of books tracked.
func (m *Manager) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Remove drops a ticker's book. It reports whether the book existed.
func (m *Manager) Remove(ticker string) bool {
	s := m.shardFor(ticker)

	s.mu.Lock()
	e, ok := s.entries[ticker]
	if ok {
		delete(s.entries, ticker)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	if !e.book.IsValid() {
		InvalidBooks.Dec()
	}
	e.mu.Unlock()

	BooksTracked.Dec()

	return true
}

// GC removes the books of closed markets and returns how many were dropped.
func (m *Manager) GC(closed []string) int {
	removed := 0
	for _, ticker := range closed {
		if m.Remove(ticker) {
			removed++
		}
	}

	if removed > 0 {
		BooksCollectedTotal.Add(float64(removed))
		m.logger.Info("orderbook-gc-complete",
			zap.Int("removed", removed),
			zap.Int("remaining", m.Len()))
	}

	return removed
}

// Close waits for the processing loop to exit.
func (m *Manager) Close() error {
	m.logger.Info("closing-orderbook-manager")
	m.wg.Wait()
	return nil
}

func (m *Manager) shardFor(ticker string) *shard {
	return m.shards[crc32.ChecksumIEEE([]byte(ticker))%uint32(len(m.shards))]
}

func (m *Manager) get(ticker string) (*entry, bool) {
	s := m.shardFor(ticker)
	s.mu.RLock()
	e, ok := s.entries[ticker]
	s.mu.RUnlock()
	return e, ok
}

func (m *Manager) getOrCreate(ticker string) *entry {
	e, _ := m.getOrCreateFlag(ticker)
	return e
}

func (m *Manager) getOrCreateFlag(ticker string) (*entry, bool) {
	if e, ok := m.get(ticker); ok {
		return e, false
	}

	s := m.shardFor(ticker)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[ticker]; ok {
		return e, false
	}

	e := &entry{book: NewBook(ticker)}
	s.entries[ticker] = e
	BooksTracked.Inc()
	InvalidBooks.Inc()

	return e, true
}
