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

const pageviewsBaseURL = "https://wikimedia.org/api/rest_v1"

// PageviewsProvider reads daily Wikipedia article pageviews as a public
// proxy for retail search interest in the company. Values are normalized
// to [0, 1] against the window maximum.
type PageviewsProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
}

func NewPageviewsProvider(tracer trace.Tracer) *PageviewsProvider {
	return &PageviewsProvider{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   pageviewsBaseURL,
		userAgent: "kassandra/1.0 (stock sentiment research)",
		tracer:    tracer,
	}
}

// FetchInterest returns the normalized daily series for the article in
// [from, to], oldest first. Days the API omits are simply absent; the
// fusion layer forward-fills them.
func (p *PageviewsProvider) FetchInterest(ctx context.Context, article string, from, to time.Time) ([]domain.InterestPoint, error) {
	_, span := p.tracer.Start(ctx, "pageviews.fetch-interest")
	defer span.End()

	article = strings.TrimSpace(article)
	if article == "" {
		return nil, fmt.Errorf("article is required")
	}
	if !to.After(from) {
		return nil, fmt.Errorf("empty date range %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	u := fmt.Sprintf("%s/metrics/pageviews/per-article/en.wikipedia/all-access/user/%s/daily/%s/%s",
		strings.TrimRight(p.baseURL, "/"),
		url.PathEscape(strings.ReplaceAll(article, " ", "_")),
		from.UTC().Format("2006010200"),
		to.UTC().Format("2006010200"))

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
		return nil, fmt.Errorf("pageviews API error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Items []struct {
			Timestamp string  `json:"timestamp"`
			Views     float64 `json:"views"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode pageviews response: %w", err)
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("pageviews response has no rows for %s", article)
	}

	var peak float64
	points := make([]domain.InterestPoint, 0, len(payload.Items))
	for _, item := range payload.Items {
		day, err := time.Parse("2006010200", strings.TrimSpace(item.Timestamp))
		if err != nil {
			continue
		}
		if item.Views > peak {
			peak = item.Views
		}
		points = append(points, domain.InterestPoint{Date: day.UTC(), Value: item.Views})
	}
	if peak > 0 {
		for i := range points {
			points[i].Value /= peak
		}
	}
	return points, nil
}
