package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/kalshi-mm/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxPageSize is the largest page GET /markets accepts.
	MaxPageSize = 1000

	// DefaultBaseURL is Kalshi's public trade API.
	DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
)

// Client is an HTTP client for Kalshi's public market endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client that issues at most rps requests per second.
func NewClient(baseURL string, rps float64, logger *zap.Logger) *Client {
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// FetchOpenMarkets returns open markets, following the cursor until the
// listing is exhausted or limit markets were read. A limit of 0 reads all.
// An empty seriesTicker lists every series.
func (c *Client) FetchOpenMarkets(ctx context.Context, seriesTicker string, limit int) ([]types.Market, error) {
	var (
		all    []types.Market
		cursor string
		page   int
	)

	for {
		pageSize := MaxPageSize
		if limit > 0 {
			pageSize = min(MaxPageSize, limit-len(all))
		}

		resp, err := c.fetchPage(ctx, seriesTicker, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, resp.Markets...)

		c.logger.Debug("fetched-page",
			zap.Int("page", page),
			zap.Int("markets", len(resp.Markets)),
			zap.Int("total", len(all)))

		if resp.Cursor == "" || len(resp.Markets) == 0 {
			break
		}
		if limit > 0 && len(all) >= limit {
			break
		}

		cursor = resp.Cursor
		page++
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, seriesTicker, cursor string, pageSize int) (*types.MarketsResponse, error) {
	params := url.Values{}
	params.Set("status", types.MarketStatusOpen)
	params.Set("limit", strconv.Itoa(pageSize))
	if seriesTicker != "" {
		params.Set("series_ticker", seriesTicker)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var out types.MarketsResponse
	err := c.get(ctx, "/markets?"+params.Encode(), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMarket returns a single market by ticker.
func (c *Client) FetchMarket(ctx context.Context, ticker string) (*types.Market, error) {
	var out struct {
		Market types.Market `json:"market"`
	}

	err := c.get(ctx, "/markets/"+url.PathEscape(ticker), &out)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", ticker, err)
	}
	return &out.Market, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	defer func() {
		RequestDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kalshi-mm/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
