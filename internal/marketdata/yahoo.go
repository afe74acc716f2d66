package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"tremor/internal/config"
	apperrors "tremor/internal/errors"
)

// YahooClient fetches daily closes from the Yahoo Finance chart API. FRED
// series resolve through the same endpoint, which serves FRED tickers too.
// Requests are rate limited so batch propagation checks stay polite.
type YahooClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	nodes   map[string]NodeConfig
	logger  *slog.Logger
}

// NewYahooClient creates a market-data client over the built-in node registry
func NewYahooClient(cfg config.MarketConfig, logger *slog.Logger) *YahooClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 4
	}
	return &YahooClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		nodes:   DefaultNodes,
		logger:  logger.With(slog.String("component", "marketdata")),
	}
}

// chartResponse mirrors the subset of the chart API payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily returns daily closing levels for the node's ticker over
// [start, end]. An in-range ticker with no observations yields an empty
// series, not an error.
func (c *YahooClient) FetchDaily(ctx context.Context, node string, start, end time.Time) (Series, error) {
	nodeCfg, err := LookupNode(c.nodes, node)
	if err != nil {
		return nil, err
	}
	return c.fetchCloses(ctx, nodeCfg.Ticker, start, end)
}

// FetchNodeSeries returns the node's weekly derived series over [start, end].
func (c *YahooClient) FetchNodeSeries(ctx context.Context, node string, start, end time.Time) (Series, error) {
	nodeCfg, err := LookupNode(c.nodes, node)
	if err != nil {
		return nil, err
	}

	daily, err := c.fetchCloses(ctx, nodeCfg.Ticker, start, end)
	if err != nil {
		return nil, err
	}
	weekly := WeeklyLast(daily)

	switch nodeCfg.Method {
	case MethodWeeklyLogReturn:
		return LogReturns(weekly), nil
	case MethodWeeklyChange:
		return Diff(weekly), nil
	default:
		return weekly, nil
	}
}

func (c *YahooClient) fetchCloses(ctx context.Context, ticker string, start, end time.Time) (Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", "tremor/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("fetch chart data for %s", ticker), err)
	}
	defer resp.Body.Close()

	// The chart API answers 404 for tickers with no data in range; that is
	// an expected gap, not a provider failure.
	if resp.StatusCode == http.StatusNotFound {
		return Series{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("chart API returned %d for %s", resp.StatusCode, ticker), nil)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("decode chart payload for %s", ticker), err)
	}
	if payload.Chart.Error != nil {
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("chart API error for %s: %s", ticker, payload.Chart.Error.Description), nil)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return Series{}, nil
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	series := make(Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series = append(series, Point{
			Date:  Day(time.Unix(ts, 0)),
			Value: *closes[i],
		})
	}

	c.logger.DebugContext(ctx, "fetched daily closes",
		slog.String("ticker", ticker),
		slog.Int("points", len(series)),
	)
	return series, nil
}
