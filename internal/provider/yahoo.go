package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kassandra/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	yahooBaseURL   = "https://query1.finance.yahoo.com"
	yahooUserAgent = "kassandra/1.0"
)

// YahooProvider fetches daily OHLCV bars from the Yahoo Finance v8 chart API.
type YahooProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
	limiter   *RateLimiter
}

// NewYahooProvider creates a provider rate limited to 10 requests per minute.
func NewYahooProvider(tracer trace.Tracer) *YahooProvider {
	return &YahooProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   yahooBaseURL,
		userAgent: yahooUserAgent,
		tracer:    tracer,
		limiter:   NewRateLimiter(10, 6*time.Second),
	}
}

// FetchDailyBars returns the daily bars for symbol in [from, to], oldest
// first. Sessions Yahoo reports with null quotes (halts, partial data at
// the right edge) are skipped.
func (p *YahooProvider) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	_, span := p.tracer.Start(ctx, "yahoo.fetch-daily-bars")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if !to.After(from) {
		return nil, fmt.Errorf("empty date range %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=history",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(symbol), from.Unix(), to.Unix())

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yahoo chart API error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*float64 `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode yahoo chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart response has no quote data for %s", symbol)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := at(quote.Open, i)
		h := at(quote.High, i)
		l := at(quote.Low, i)
		c := at(quote.Close, i)
		v := at(quote.Volume, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC()
		var volume float64
		if v != nil {
			volume = *v
		}
		bars = append(bars, domain.Bar{
			Date:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: volume,
		})
	}
	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}
