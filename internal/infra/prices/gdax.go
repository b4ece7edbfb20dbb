package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"mm_stats/internal/domain"
	"mm_stats/internal/infra"

	"github.com/shopspring/decimal"
)

// maxCandles is the most candles the GDAX API returns for one request.
const maxCandles = 300

// GDAXClient fetches historical close prices from the GDAX (Coinbase) candles API
type GDAXClient struct {
	apiURL      string
	product     string
	granularity time.Duration
	attempts    int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewGDAXClient creates a new candles client
func NewGDAXClient(apiURL, product string, granularitySec int) *GDAXClient {
	granularity := time.Duration(granularitySec) * time.Second
	if granularity <= 0 {
		granularity = time.Minute
	}
	return &GDAXClient{
		apiURL:      apiURL,
		product:     product,
		granularity: granularity,
		attempts:    3,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default().With("module", "gdax_prices"),
	}
}

// FetchPrices returns one close price per candle in [start, end], oldest first.
// The window is split into pages of at most maxCandles candles. A window
// without a single candle is domain.ErrEmptyResponse.
func (c *GDAXClient) FetchPrices(ctx context.Context, start, end time.Time) ([]domain.PricePoint, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s..%s", domain.ErrInvalidRange, start, end)
	}

	page := c.granularity * maxCandles
	seen := make(map[domain.Timestamp]bool)
	var points []domain.PricePoint

	for from := start; !from.After(end); from = from.Add(page) {
		to := from.Add(page - c.granularity)
		if to.After(end) {
			to = end
		}

		var candles []domain.PricePoint
		op := fmt.Sprintf("candles(%s %s..%s)", c.product, from.Format(time.RFC3339), to.Format(time.RFC3339))
		err := infra.Retry(ctx, op, c.attempts, func(ctx context.Context) error {
			res, err := c.doFetch(ctx, from, to)
			if err != nil {
				return err
			}
			candles = res
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, p := range candles {
			if seen[p.Timestamp] {
				continue
			}
			seen[p.Timestamp] = true
			points = append(points, p)
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no %s candles in %s..%s", domain.ErrEmptyResponse, c.product,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	c.logger.Info("Fetched reference prices", slog.String("product", c.product), slog.Int("count", len(points)))
	return points, nil
}

func (c *GDAXClient) doFetch(ctx context.Context, from, to time.Time) ([]domain.PricePoint, error) {
	q := url.Values{}
	q.Set("start", from.UTC().Format(time.RFC3339))
	q.Set("end", to.UTC().Format(time.RFC3339))
	q.Set("granularity", fmt.Sprintf("%d", int(c.granularity.Seconds())))
	endpoint := fmt.Sprintf("%s/products/%s/candles?%s", c.apiURL, url.PathEscape(c.product), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError("candles", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("candles", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.NewNetworkError("candles", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	default:
		return nil, domain.NewFatalNetworkError("candles", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("candles", err)
	}

	// [[time, low, high, open, close, volume], ...] newest first
	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domain.NewFatalNetworkError("candles", fmt.Errorf("decode: %w", err))
	}

	points := make([]domain.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		ts, err := row[0].Int64()
		if err != nil {
			continue
		}
		closePrice, err := decimal.NewFromString(row[4].String())
		if err != nil {
			continue
		}
		points = append(points, domain.PricePoint{
			Timestamp: domain.Timestamp(ts),
			Price:     domain.NewAmount(closePrice),
		})
	}
	return points, nil
}
