package alerts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Telegram Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

const sendTimeout = 10 * time.Second

// Telegram sends operator alerts through a Telegram bot.
type Telegram struct {
	enabled bool
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// Config holds Telegram configuration.
type Config struct {
	Enabled bool
	Token   string
	ChatID  string
	BaseURL string       // defaults to DefaultBaseURL
	Client  *http.Client // optional
	Logger  *zap.Logger
}

// New creates a Telegram notifier. A disabled notifier accepts every message
// and sends nothing.
func New(cfg *Config) (*Telegram, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	token := strings.TrimSpace(cfg.Token)
	chatID := strings.TrimSpace(cfg.ChatID)
	if cfg.Enabled && (token == "" || chatID == "") {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: sendTimeout}
	}

	return &Telegram{
		enabled: cfg.Enabled,
		token:   token,
		chatID:  chatID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  cfg.Logger,
	}, nil
}

// Enabled reports whether messages are actually sent.
func (t *Telegram) Enabled() bool {
	return t.enabled
}

// Send posts message to the configured chat.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if !t.enabled {
		return nil
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("telegram message is empty")
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		AlertsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		AlertsTotal.WithLabelValues("error").Inc()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		AlertsTotal.WithLabelValues("error").Inc()
		desc := strings.TrimSpace(result.Description)
		if desc == "" {
			desc = "unknown telegram error"
		}
		return fmt.Errorf("telegram send failed: %s", desc)
	}

	AlertsTotal.WithLabelValues("sent").Inc()
	return nil
}

// SendAsync sends message on its own goroutine and logs failures. Callers on
// the trading path use it so a slow Bot API never blocks them.
func (t *Telegram) SendAsync(message string) {
	if !t.enabled {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := t.Send(ctx, message); err != nil {
			t.logger.Warn("telegram-send-failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every SendAsync call has finished.
func (t *Telegram) Wait() {
	t.wg.Wait()
}
