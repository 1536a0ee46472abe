package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"TrendChannel/internal/model"
)

// AnalyserFetcher implements Fetcher using the crypto analyser backend.
type AnalyserFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAnalyserFetcher creates a new fetcher with optional proxy support.
func NewAnalyserFetcher(baseURL, apiKey, proxyURL string) *AnalyserFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &AnalyserFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *AnalyserFetcher) Name() string { return "analyser" }

// analyserBar is the JSON shape of one list item. Timestamps are in seconds.
type analyserBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

type analyserList struct {
	List []analyserBar `json:"list"`
}

// FetchCandles queries /historicalData/_list. The backend only knows the
// pair it was deployed for, so symbol is ignored.
func (f *AnalyserFetcher) FetchCandles(ctx context.Context, _ string, aggregateMinutes int, from, to int64) (model.CandleSeries, error) {
	q := url.Values{}
	q.Set("aggregateInMinutes", strconv.Itoa(aggregateMinutes))
	q.Set("timestampFrom", strconv.FormatInt(from/1000, 10))
	q.Set("timestampTo", strconv.FormatInt(to/1000, 10))
	endpoint := fmt.Sprintf("%s/historicalData/_list?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch candles: status %d, body: %s", resp.StatusCode, string(body))
	}

	var list analyserList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	series := make(model.CandleSeries, len(list.List))
	for i, b := range list.List {
		series[i] = model.Candle{
			Timestamp: b.Timestamp * 1000,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
		}
	}
	return series, nil
}
