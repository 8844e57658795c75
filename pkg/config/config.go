package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage modes.
const (
	StorageConsole  = "console"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string `yaml:"log_level"`
	HTTPPort string `yaml:"http_port"`

	// Kalshi endpoints
	KalshiWSURL  string `yaml:"kalshi_ws_url"`
	KalshiAPIURL string `yaml:"kalshi_api_url"`

	// Market discovery
	DiscoveryPollInterval time.Duration     `yaml:"discovery_poll_interval"`
	DiscoveryMarketLimit  int               `yaml:"discovery_market_limit"`
	DiscoverySeries       []string          `yaml:"discovery_series"`
	DiscoveryUnderlyings  map[string]string `yaml:"discovery_underlyings"` // series -> spot symbol
	DiscoveryRequestRate  float64           `yaml:"discovery_request_rate"`

	// WebSocket
	WSDialTimeout           time.Duration `yaml:"ws_dial_timeout"`
	WSPongTimeout           time.Duration `yaml:"ws_pong_timeout"`
	WSPingInterval          time.Duration `yaml:"ws_ping_interval"`
	WSReconnectInitialDelay time.Duration `yaml:"ws_reconnect_initial_delay"`
	WSReconnectMaxDelay     time.Duration `yaml:"ws_reconnect_max_delay"`
	WSReconnectBackoffMult  float64       `yaml:"ws_reconnect_backoff_multiplier"`
	WSMessageBufferSize     int           `yaml:"ws_message_buffer_size"`
	WSPoolSize              int           `yaml:"ws_pool_size"`
	WSResyncInterval        time.Duration `yaml:"ws_resync_interval"`

	// Decision engine
	EngineBaseSize       int           `yaml:"engine_base_size"`
	EngineMaxPosition    int           `yaml:"engine_max_position"`
	EngineBaseHalfSpread int           `yaml:"engine_base_half_spread"`
	EngineSkewDivisor    int           `yaml:"engine_skew_divisor"`
	EngineCrossClamp     int           `yaml:"engine_cross_clamp"`
	EngineTakerEnabled   bool          `yaml:"engine_taker_enabled"`
	EngineMakerEnabled   bool          `yaml:"engine_maker_enabled"`
	EngineEvalInterval   time.Duration `yaml:"engine_eval_interval"`
	EngineMaxBookAge     time.Duration `yaml:"engine_max_book_age"`
	EngineOrderTTL       time.Duration `yaml:"engine_order_ttl"`

	// Execution
	ExecutionMode string `yaml:"execution_mode"`

	// Risk limits
	RiskMaxNotionalPerMarket float64       `yaml:"risk_max_notional_per_market"`
	RiskMaxInventory         int           `yaml:"risk_max_inventory"`
	RiskMaxOpenOrders        int           `yaml:"risk_max_open_orders"`
	RiskMaxOrdersPerMin      int           `yaml:"risk_max_orders_per_min"`
	RiskMaxDailyLoss         float64       `yaml:"risk_max_daily_loss"`
	RiskMaxTakerSlippage     int           `yaml:"risk_max_taker_slippage"`
	RiskFeedStale            time.Duration `yaml:"risk_feed_stale"`

	// Pricer and fair values
	PricerSettlementWindow int           `yaml:"pricer_settlement_window_seconds"`
	PricerBasisBuffer      float64       `yaml:"pricer_basis_buffer"`
	PricerFallbackVol      float64       `yaml:"pricer_fallback_vol"`
	FairValueTTL           time.Duration `yaml:"fair_value_ttl"`
	CacheMaxItems          int64         `yaml:"cache_max_items"`

	// Storage
	StorageMode     string `yaml:"storage_mode"`
	PostgresHost    string `yaml:"postgres_host"`
	PostgresPort    string `yaml:"postgres_port"`
	PostgresUser    string `yaml:"postgres_user"`
	PostgresPass    string `yaml:"postgres_password"`
	PostgresDB      string `yaml:"postgres_db"`
	PostgresSSL     string `yaml:"postgres_sslmode"`
	PostgresMigrate bool   `yaml:"postgres_migrate"`
	SQLitePath      string `yaml:"sqlite_path"`

	// Alerts
	TelegramEnabled bool   `yaml:"telegram_enabled"`
	TelegramToken   string `yaml:"telegram_token"`
	TelegramChatID  string `yaml:"telegram_chat_id"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		HTTPPort: "8080",

		KalshiWSURL:  "wss://api.elections.kalshi.com/trade-api/ws/v2",
		KalshiAPIURL: "https://api.elections.kalshi.com/trade-api/v2",

		DiscoveryPollInterval: 30 * time.Second,
		DiscoveryMarketLimit:  0,
		DiscoveryUnderlyings:  map[string]string{},
		DiscoveryRequestRate:  10,

		WSDialTimeout:           10 * time.Second,
		WSPongTimeout:           15 * time.Second,
		WSPingInterval:          10 * time.Second,
		WSReconnectInitialDelay: 1 * time.Second,
		WSReconnectMaxDelay:     60 * time.Second,
		WSReconnectBackoffMult:  2.0,
		WSMessageBufferSize:     1000,
		WSPoolSize:              1,
		WSResyncInterval:        1 * time.Second,

		EngineBaseSize:       10,
		EngineMaxPosition:    100,
		EngineBaseHalfSpread: 2,
		EngineSkewDivisor:    10,
		EngineCrossClamp:     1,
		EngineTakerEnabled:   true,
		EngineMakerEnabled:   true,
		EngineEvalInterval:   time.Second,
		EngineMaxBookAge:     5 * time.Second,
		EngineOrderTTL:       30 * time.Second,

		ExecutionMode: "paper",

		RiskMaxNotionalPerMarket: 500,
		RiskMaxInventory:         100,
		RiskMaxOpenOrders:        50,
		RiskMaxOrdersPerMin:      60,
		RiskMaxDailyLoss:         100,
		RiskMaxTakerSlippage:     2,
		RiskFeedStale:            5 * time.Second,

		PricerSettlementWindow: 60,
		PricerBasisBuffer:      0.01,
		PricerFallbackVol:      0.5,
		FairValueTTL:           5 * time.Minute,
		CacheMaxItems:          10000,

		StorageMode:  StorageConsole,
		PostgresHost: "localhost",
		PostgresPort: "5432",
		PostgresUser: "kalshi",
		PostgresPass: "kalshi",
		PostgresDB:   "kalshi_mm",
		PostgresSSL:  "disable",
		SQLitePath:   "kalshi-mm.db",
	}
}

// LoadFromEnv builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
// A .env file in the working directory is loaded first when present.
func LoadFromEnv() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cfg.applyYAML(path)
		if err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyYAML overlays the keys present in path onto c.
func (c *Config) applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.HTTPPort = getEnvOrDefault("HTTP_PORT", c.HTTPPort)

	c.KalshiWSURL = getEnvOrDefault("KALSHI_WS_URL", c.KalshiWSURL)
	c.KalshiAPIURL = getEnvOrDefault("KALSHI_API_URL", c.KalshiAPIURL)

	c.DiscoveryPollInterval = getDurationOrDefault("DISCOVERY_POLL_INTERVAL", c.DiscoveryPollInterval)
	c.DiscoveryMarketLimit = getIntOrDefault("DISCOVERY_MARKET_LIMIT", c.DiscoveryMarketLimit)
	c.DiscoverySeries = getListOrDefault("DISCOVERY_SERIES", c.DiscoverySeries)
	c.DiscoveryUnderlyings = getMapOrDefault("DISCOVERY_UNDERLYINGS", c.DiscoveryUnderlyings)
	c.DiscoveryRequestRate = getFloat64OrDefault("DISCOVERY_REQUEST_RATE", c.DiscoveryRequestRate)

	c.WSDialTimeout = getDurationOrDefault("WS_DIAL_TIMEOUT", c.WSDialTimeout)
	c.WSPongTimeout = getDurationOrDefault("WS_PONG_TIMEOUT", c.WSPongTimeout)
	c.WSPingInterval = getDurationOrDefault("WS_PING_INTERVAL", c.WSPingInterval)
	c.WSReconnectInitialDelay = getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", c.WSReconnectInitialDelay)
	c.WSReconnectMaxDelay = getDurationOrDefault("WS_RECONNECT_MAX_DELAY", c.WSReconnectMaxDelay)
	c.WSReconnectBackoffMult = getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", c.WSReconnectBackoffMult)
	c.WSMessageBufferSize = getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", c.WSMessageBufferSize)
	c.WSPoolSize = getIntOrDefault("WS_POOL_SIZE", c.WSPoolSize)
	c.WSResyncInterval = getDurationOrDefault("WS_RESYNC_INTERVAL", c.WSResyncInterval)

	c.EngineBaseSize = getIntOrDefault("ENGINE_BASE_SIZE", c.EngineBaseSize)
	c.EngineMaxPosition = getIntOrDefault("ENGINE_MAX_POSITION", c.EngineMaxPosition)
	c.EngineBaseHalfSpread = getIntOrDefault("ENGINE_BASE_HALF_SPREAD", c.EngineBaseHalfSpread)
	c.EngineSkewDivisor = getIntOrDefault("ENGINE_SKEW_DIVISOR", c.EngineSkewDivisor)
	c.EngineCrossClamp = getIntOrDefault("ENGINE_CROSS_CLAMP", c.EngineCrossClamp)
	c.EngineTakerEnabled = getBoolOrDefault("ENGINE_TAKER_ENABLED", c.EngineTakerEnabled)
	c.EngineMakerEnabled = getBoolOrDefault("ENGINE_MAKER_ENABLED", c.EngineMakerEnabled)
	c.EngineEvalInterval = getDurationOrDefault("ENGINE_EVAL_INTERVAL", c.EngineEvalInterval)
	c.EngineMaxBookAge = getDurationOrDefault("ENGINE_MAX_BOOK_AGE", c.EngineMaxBookAge)
	c.EngineOrderTTL = getDurationOrDefault("ENGINE_ORDER_TTL", c.EngineOrderTTL)

	c.ExecutionMode = getEnvOrDefault("EXECUTION_MODE", c.ExecutionMode)

	c.RiskMaxNotionalPerMarket = getFloat64OrDefault("RISK_MAX_NOTIONAL_PER_MARKET", c.RiskMaxNotionalPerMarket)
	c.RiskMaxInventory = getIntOrDefault("RISK_MAX_INVENTORY", c.RiskMaxInventory)
	c.RiskMaxOpenOrders = getIntOrDefault("RISK_MAX_OPEN_ORDERS", c.RiskMaxOpenOrders)
	c.RiskMaxOrdersPerMin = getIntOrDefault("RISK_MAX_ORDERS_PER_MIN", c.RiskMaxOrdersPerMin)
	c.RiskMaxDailyLoss = getFloat64OrDefault("RISK_MAX_DAILY_LOSS", c.RiskMaxDailyLoss)
	c.RiskMaxTakerSlippage = getIntOrDefault("RISK_MAX_TAKER_SLIPPAGE", c.RiskMaxTakerSlippage)
	c.RiskFeedStale = getDurationOrDefault("RISK_FEED_STALE", c.RiskFeedStale)

	c.PricerSettlementWindow = getIntOrDefault("PRICER_SETTLEMENT_WINDOW_SECONDS", c.PricerSettlementWindow)
	c.PricerBasisBuffer = getFloat64OrDefault("PRICER_BASIS_BUFFER", c.PricerBasisBuffer)
	c.PricerFallbackVol = getFloat64OrDefault("PRICER_FALLBACK_VOL", c.PricerFallbackVol)
	c.FairValueTTL = getDurationOrDefault("FAIR_VALUE_TTL", c.FairValueTTL)
	c.CacheMaxItems = int64(getIntOrDefault("CACHE_MAX_ITEMS", int(c.CacheMaxItems)))

	c.StorageMode = getEnvOrDefault("STORAGE_MODE", c.StorageMode)
	c.PostgresHost = getEnvOrDefault("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnvOrDefault("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnvOrDefault("POSTGRES_USER", c.PostgresUser)
	c.PostgresPass = getEnvOrDefault("POSTGRES_PASSWORD", c.PostgresPass)
	c.PostgresDB = getEnvOrDefault("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSL = getEnvOrDefault("POSTGRES_SSLMODE", c.PostgresSSL)
	c.PostgresMigrate = getBoolOrDefault("POSTGRES_MIGRATE", c.PostgresMigrate)
	c.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.SQLitePath)

	c.TelegramEnabled = getBoolOrDefault("TELEGRAM_ENABLED", c.TelegramEnabled)
	c.TelegramToken = getEnvOrDefault("TELEGRAM_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", c.TelegramChatID)
}

// Validate checks that configuration values are valid. Risk limits are
// validated again by the risk engine at construction.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.KalshiWSURL == "" {
		return fmt.Errorf("KALSHI_WS_URL cannot be empty")
	}
	if c.KalshiAPIURL == "" {
		return fmt.Errorf("KALSHI_API_URL cannot be empty")
	}

	if c.DiscoveryPollInterval <= 0 {
		return fmt.Errorf("DISCOVERY_POLL_INTERVAL must be positive, got %s", c.DiscoveryPollInterval)
	}
	if c.DiscoveryMarketLimit < 0 {
		return fmt.Errorf("DISCOVERY_MARKET_LIMIT cannot be negative, got %d", c.DiscoveryMarketLimit)
	}
	if !positiveFinite(c.DiscoveryRequestRate) {
		return fmt.Errorf("DISCOVERY_REQUEST_RATE must be positive, got %f", c.DiscoveryRequestRate)
	}

	if c.WSPoolSize <= 0 {
		return fmt.Errorf("WS_POOL_SIZE must be positive, got %d", c.WSPoolSize)
	}
	if c.WSMessageBufferSize <= 0 {
		return fmt.Errorf("WS_MESSAGE_BUFFER_SIZE must be positive, got %d", c.WSMessageBufferSize)
	}
	if c.WSReconnectInitialDelay <= 0 || c.WSReconnectMaxDelay < c.WSReconnectInitialDelay {
		return fmt.Errorf("WS reconnect delays must satisfy 0 < initial <= max")
	}
	if c.WSReconnectBackoffMult < 1 {
		return fmt.Errorf("WS_RECONNECT_BACKOFF_MULTIPLIER must be at least 1, got %f", c.WSReconnectBackoffMult)
	}

	if c.EngineBaseSize <= 0 {
		return fmt.Errorf("ENGINE_BASE_SIZE must be positive, got %d", c.EngineBaseSize)
	}
	if c.EngineMaxPosition <= 0 {
		return fmt.Errorf("ENGINE_MAX_POSITION must be positive, got %d", c.EngineMaxPosition)
	}
	if c.EngineSkewDivisor <= 0 {
		return fmt.Errorf("ENGINE_SKEW_DIVISOR must be positive, got %d", c.EngineSkewDivisor)
	}
	if c.EngineBaseHalfSpread < 0 || c.EngineCrossClamp < 0 {
		return fmt.Errorf("ENGINE_BASE_HALF_SPREAD and ENGINE_CROSS_CLAMP cannot be negative")
	}
	if c.EngineEvalInterval <= 0 {
		return fmt.Errorf("ENGINE_EVAL_INTERVAL must be positive, got %s", c.EngineEvalInterval)
	}

	if c.ExecutionMode != "paper" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper', got %q", c.ExecutionMode)
	}

	if !positiveFinite(c.RiskMaxNotionalPerMarket) {
		return fmt.Errorf("RISK_MAX_NOTIONAL_PER_MARKET must be positive and finite")
	}
	if !positiveFinite(c.RiskMaxDailyLoss) {
		return fmt.Errorf("RISK_MAX_DAILY_LOSS must be positive and finite")
	}
	if c.RiskMaxInventory <= 0 || c.RiskMaxOpenOrders <= 0 || c.RiskMaxOrdersPerMin <= 0 {
		return fmt.Errorf("risk inventory, open order and rate limits must be positive")
	}

	if c.PricerSettlementWindow < 0 || c.PricerBasisBuffer < 0 {
		return fmt.Errorf("pricer settlement window and basis buffer cannot be negative")
	}
	if !positiveFinite(c.PricerFallbackVol) {
		return fmt.Errorf("PRICER_FALLBACK_VOL must be positive and finite")
	}
	if c.FairValueTTL <= 0 {
		return fmt.Errorf("FAIR_VALUE_TTL must be positive, got %s", c.FairValueTTL)
	}
	if c.CacheMaxItems <= 0 {
		return fmt.Errorf("CACHE_MAX_ITEMS must be positive, got %d", c.CacheMaxItems)
	}

	switch c.StorageMode {
	case StorageConsole, StoragePostgres:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty in sqlite mode")
		}
	default:
		return fmt.Errorf("STORAGE_MODE must be console, postgres or sqlite, got %q", c.StorageMode)
	}

	if c.TelegramEnabled && (c.TelegramToken == "" || c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required when alerts are enabled")
	}

	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault reads a comma-separated list.
func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getMapOrDefault reads comma-separated key=value pairs. Malformed pairs are skipped.
func getMapOrDefault(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
