package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotSubscribed is returned by Resync for a ticker the manager does not own.
var ErrNotSubscribed = errors.New("ticker not subscribed")

// subscription is one ticker's feed subscription. Sid is zero until the
// server acknowledges it.
type subscription struct {
	sid int64
}

// Manager manages a single WebSocket connection to the Kalshi feed.
//
// Every ticker gets its own subscription so the server's per-subscription
// sequence numbers are also per-ticker sequence numbers.
type Manager struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	messageChan     chan *types.FeedMessage
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	writeMu         sync.Mutex
	subscribed      map[string]*subscription
	pending         map[int64]string // command id -> ticker awaiting ack
	limiters        map[string]*rate.Limiter
	nextID          atomic.Int64
	connected       atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int

	// ResyncInterval is the minimum spacing of resyncs for one ticker.
	ResyncInterval time.Duration
	Logger         *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = time.Second
	}

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.FeedMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]*subscription),
		pending:      make(map[int64]string),
		limiters:     make(map[string]*rate.Limiter),
	}
}

// Start dials the feed and starts the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("websocket-manager-starting", zap.String("url", m.url))

	if err := m.connect(m.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	m.logger.Info("connecting-to-websocket", zap.String("url", m.url))

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	// sids belong to the old connection
	for _, sub := range m.subscribed {
		sub.sid = 0
	}
	m.pending = make(map[int64]string)
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPongTime.Store(now.Unix())
	m.connectionStart.Store(now.Unix())
	ActiveConnections.Inc()

	m.logger.Info("websocket-connected")

	return nil
}

// Subscribe subscribes to the order book channel of each new ticker.
func (m *Manager) Subscribe(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	m.mu.Lock()
	newTickers := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if _, ok := m.subscribed[ticker]; !ok {
			newTickers = append(newTickers, ticker)
			m.subscribed[ticker] = &subscription{}
		}
	}
	total := len(m.subscribed)
	m.mu.Unlock()

	if len(newTickers) == 0 {
		m.logger.Debug("all-tickers-already-subscribed")
		return nil
	}

	for i, ticker := range newTickers {
		if err := m.sendSubscribe(ticker); err != nil {
			m.mu.Lock()
			for _, t := range newTickers[i:] {
				delete(m.subscribed, t)
			}
			m.mu.Unlock()
			return fmt.Errorf("write subscribe command: %w", err)
		}
	}

	m.logger.Info("subscribed-to-tickers",
		zap.Int("new-count", len(newTickers)),
		zap.Int("total-count", total))

	return nil
}

// Unsubscribe drops the subscriptions of tickers.
func (m *Manager) Unsubscribe(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	type removal struct {
		ticker string
		sid    int64
	}

	m.mu.Lock()
	removed := make([]removal, 0, len(tickers))
	for _, ticker := range tickers {
		if sub, ok := m.subscribed[ticker]; ok {
			removed = append(removed, removal{ticker: ticker, sid: sub.sid})
			delete(m.subscribed, ticker)
			delete(m.limiters, ticker)
		}
	}
	remaining := len(m.subscribed)
	m.mu.Unlock()

	if len(removed) == 0 {
		m.logger.Debug("no-tickers-to-unsubscribe")
		return nil
	}

	for _, r := range removed {
		if err := m.sendUnsubscribe(r.ticker, r.sid); err != nil {
			return fmt.Errorf("write unsubscribe command: %w", err)
		}
	}

	UnsubscriptionsTotal.Add(float64(len(removed)))

	m.logger.Info("unsubscribed-from-tickers",
		zap.Int("count", len(removed)),
		zap.Int("remaining-count", remaining))

	return nil
}

// Resync re-requests a snapshot for one ticker by cycling its subscription.
// Resyncs of the same ticker are spaced by ResyncInterval; Resync waits for
// its turn or for ctx.
func (m *Manager) Resync(ctx context.Context, ticker string) error {
	m.mu.Lock()
	sub, ok := m.subscribed[ticker]
	if !ok {
		m.mu.Unlock()
		return ErrNotSubscribed
	}
	limiter, ok := m.limiters[ticker]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(m.config.ResyncInterval), 1)
		m.limiters[ticker] = limiter
	}
	m.mu.Unlock()

	if !limiter.Allow() {
		ResyncThrottledTotal.Inc()
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for resync slot: %w", err)
		}
	}

	m.mu.RLock()
	sid := sub.sid
	_, still := m.subscribed[ticker]
	m.mu.RUnlock()

	if !still {
		return ErrNotSubscribed
	}

	if err := m.sendUnsubscribe(ticker, sid); err != nil {
		return fmt.Errorf("write resync unsubscribe: %w", err)
	}

	m.mu.Lock()
	sub.sid = 0
	m.mu.Unlock()

	if err := m.sendSubscribe(ticker); err != nil {
		return fmt.Errorf("write resync subscribe: %w", err)
	}

	ResyncsTotal.Inc()
	m.logger.Info("ticker-resynced", zap.String("ticker", ticker))

	return nil
}

// Subscribed returns the subscribed tickers, sorted.
func (m *Manager) Subscribed() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.subscribed))
	for t := range m.subscribed {
		out = append(out, t)
	}
	m.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (m *Manager) sendSubscribe(ticker string) error {
	id := m.nextID.Add(1)

	m.mu.Lock()
	m.pending[id] = ticker
	m.mu.Unlock()

	err := m.writeCommand(types.Command{
		ID:  id,
		Cmd: "subscribe",
		Params: types.CommandParams{
			Channels:      []string{types.ChannelOrderbookDelta},
			MarketTickers: []string{ticker},
		},
	})
	if err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return err
	}

	SubscriptionCount.Inc()
	return nil
}

// sendUnsubscribe cancels by sid when the server has acknowledged one and by
// ticker otherwise.
func (m *Manager) sendUnsubscribe(ticker string, sid int64) error {
	params := types.CommandParams{Sids: []int64{sid}}
	if sid == 0 {
		params = types.CommandParams{
			Channels:      []string{types.ChannelOrderbookDelta},
			MarketTickers: []string{ticker},
		}
	}

	err := m.writeCommand(types.Command{
		ID:     m.nextID.Add(1),
		Cmd:    "unsubscribe",
		Params: params,
	})
	if err != nil {
		return err
	}

	SubscriptionCount.Dec()
	return nil
}

func (m *Manager) writeCommand(cmd types.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				m.logger.Warn("read-error", zap.Error(err))
			}

			startTime := m.connectionStart.Load()
			if startTime > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
			}

			m.connected.Store(false)
			ActiveConnections.Dec()
			return
		}

		m.handleMessage(message)
	}
}

// handleMessage peeks at the frame type and decodes only order book payloads.
func (m *Manager) handleMessage(message []byte) {
	start := time.Now()
	msgType := gjson.GetBytes(message, "type").String()

	MessagesReceivedTotal.WithLabelValues(msgType).Inc()

	var feedMsg *types.FeedMessage

	switch msgType {
	case types.MsgOrderbookSnapshot:
		snap, err := decodeSnapshot(message, start)
		if err != nil {
			m.protocolError(err)
			return
		}
		feedMsg = &types.FeedMessage{Snapshot: snap}

	case types.MsgOrderbookDelta:
		delta, err := decodeDelta(message, start)
		if err != nil {
			m.protocolError(err)
			return
		}
		feedMsg = &types.FeedMessage{Delta: delta}

	case types.MsgSubscribed:
		m.handleSubscribed(message)
		return

	case types.MsgUnsubscribed:
		return

	case types.MsgError:
		m.logger.Warn("websocket-server-error",
			zap.Int64("code", gjson.GetBytes(message, "msg.code").Int()),
			zap.String("msg", gjson.GetBytes(message, "msg.msg").String()))
		return

	default:
		m.logger.Debug("websocket-unknown-message",
			zap.String("type", msgType),
			zap.Int("bytes", len(message)))
		return
	}

	select {
	case m.messageChan <- feedMsg:
	default:
		m.logger.Warn("message-channel-full",
			zap.String("type", msgType),
			zap.String("ticker", feedMsg.Ticker()))
		MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
	}

	MessageLatencySeconds.Observe(time.Since(start).Seconds())
}

func (m *Manager) handleSubscribed(message []byte) {
	id := gjson.GetBytes(message, "id").Int()
	sid := gjson.GetBytes(message, "msg.sid").Int()

	m.mu.Lock()
	ticker, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
		if sub, subscribed := m.subscribed[ticker]; subscribed {
			sub.sid = sid
		}
	}
	m.mu.Unlock()

	m.logger.Debug("subscription-acknowledged",
		zap.String("ticker", ticker),
		zap.Int64("sid", sid))
}

func (m *Manager) protocolError(err error) {
	var perr *types.ProtocolError
	reason := "decode-failed"
	if errors.As(err, &perr) {
		reason = perr.Reason
	}

	ProtocolErrorsTotal.WithLabelValues(reason).Inc()
	m.logger.Warn("websocket-protocol-error", zap.Error(err))
}

type snapshotFrame struct {
	types.Envelope
	Msg types.SnapshotPayload `json:"msg"`
}

type deltaFrame struct {
	types.Envelope
	Msg types.DeltaPayload `json:"msg"`
}

func decodeSnapshot(message []byte, at time.Time) (*types.SnapshotMessage, error) {
	var frame snapshotFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, &types.ProtocolError{Reason: "bad-snapshot", Detail: err.Error()}
	}
	if frame.Msg.MarketTicker == "" {
		return nil, &types.ProtocolError{Reason: "missing-ticker", Detail: types.MsgOrderbookSnapshot}
	}

	return &types.SnapshotMessage{
		Ticker:     frame.Msg.MarketTicker,
		Seq:        pickSeq(frame.Seq, frame.Msg.Seq),
		Yes:        frame.Msg.Yes,
		No:         frame.Msg.No,
		ReceivedAt: at,
	}, nil
}

func decodeDelta(message []byte, at time.Time) (*types.DeltaMessage, error) {
	var frame deltaFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, &types.ProtocolError{Reason: "bad-delta", Detail: err.Error()}
	}
	if frame.Msg.MarketTicker == "" {
		return nil, &types.ProtocolError{Reason: "missing-ticker", Detail: types.MsgOrderbookDelta}
	}

	return &types.DeltaMessage{
		Ticker:     frame.Msg.MarketTicker,
		Seq:        pickSeq(frame.Seq, frame.Msg.Seq),
		Side:       frame.Msg.Side,
		Price:      frame.Msg.Price,
		Delta:      frame.Msg.Delta,
		ReceivedAt: at,
	}, nil
}

// pickSeq prefers the envelope sequence and falls back to one in the payload.
func pickSeq(envelope, payload int64) int64 {
	if envelope != 0 {
		return envelope
	}
	return payload
}

func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		m.mu.RLock()
		old := m.conn
		m.mu.RUnlock()
		if old != nil {
			old.Close()
		}

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		m.wg.Add(1)
		go m.readLoop()

		if err := m.resubscribeAll(); err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			continue
		}

		m.logger.Info("reconnection-complete")
	}
}

// resubscribeAll subscribes every tracked ticker on the new connection. The
// server answers each with a fresh snapshot.
func (m *Manager) resubscribeAll() error {
	tickers := m.Subscribed()
	if len(tickers) == 0 {
		return nil
	}

	SubscriptionCount.Sub(float64(len(tickers)))

	for _, ticker := range tickers {
		if err := m.sendSubscribe(ticker); err != nil {
			return fmt.Errorf("write resubscribe command: %w", err)
		}
	}

	ResubscriptionsTotal.Inc()
	m.logger.Info("resubscribed-to-all-markets", zap.Int("count", len(tickers)))

	return nil
}

// MessageChan returns the channel of decoded feed messages.
func (m *Manager) MessageChan() <-chan *types.FeedMessage {
	return m.messageChan
}

// Connected reports whether the connection is up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close gracefully closes the WebSocket manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket-manager")

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.messageChan)

	m.logger.Info("websocket-manager-closed")

	return nil
}
