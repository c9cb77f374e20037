package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// DefaultChartURL is the public Yahoo Finance chart endpoint.
const DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// ChartClient fetches daily closes from a Yahoo-compatible chart API.
type ChartClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewChartClient creates a client for baseURL. An empty baseURL uses
// DefaultChartURL.
func NewChartClient(baseURL string, timeout time.Duration) *ChartClient {
	if baseURL == "" {
		baseURL = DefaultChartURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChartClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// ClosingPrice returns the daily close for ticker on date, rounded to cents.
func (c *ChartClient) ClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	day := model.CalendarDate(date)
	// Pad the window a day each side so exchange time zones never clip it.
	q := url.Values{}
	q.Set("period1", fmt.Sprint(day.AddDate(0, 0, -1).Unix()))
	q.Set("period2", fmt.Sprint(day.AddDate(0, 0, 2).Unix()))
	q.Set("interval", "1d")
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(model.NormalizeTicker(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("building chart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "journal-engine/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("%w: %s: unknown symbol", ErrPriceUnavailable, Key(ticker, day))
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("chart request: status %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("parsing response: %w", err)
	}
	if e := parsed.Chart.Error; e != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %s", ErrPriceUnavailable, e.Code, e.Description)
	}

	for _, res := range parsed.Chart.Result {
		if len(res.Indicators.Quote) == 0 {
			continue
		}
		closes := res.Indicators.Quote[0].Close
		for i, ts := range res.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			local := time.Unix(ts+int64(res.Meta.GMTOffset), 0).UTC()
			if model.CalendarDate(local).Equal(day) {
				return decimal.NewFromFloat(*closes[i]).Round(2), nil
			}
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, Key(ticker, day))
}
