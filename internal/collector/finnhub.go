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

	"signalist/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// FinnhubFetcher implements Provider using the Finnhub REST API.
type FinnhubFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewFinnhubFetcher creates a fetcher with optional proxy support. perSecond caps
// the request rate (the free tier allows 60 calls per minute); <= 0 disables it.
func NewFinnhubFetcher(baseURL, apiKey, proxyURL string, perSecond float64) *FinnhubFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &FinnhubFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Limiter: limiter,
	}
}

func (f *FinnhubFetcher) Name() string { return "finnhub" }

// finnhubCandles is the column-oriented shape of /stock/candle.
type finnhubCandles struct {
	Status string            `json:"s"`
	Time   []int64           `json:"t"`
	Open   []decimal.Decimal `json:"o"`
	High   []decimal.Decimal `json:"h"`
	Low    []decimal.Decimal `json:"l"`
	Close  []decimal.Decimal `json:"c"`
	Volume []float64         `json:"v"`
}

type finnhubQuote struct {
	Current   decimal.Decimal `json:"c"`
	Change    decimal.Decimal `json:"d"`
	ChangePct decimal.Decimal `json:"dp"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Open      decimal.Decimal `json:"o"`
	PrevClose decimal.Decimal `json:"pc"`
	Time      int64           `json:"t"`
}

func (f *FinnhubFetcher) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("resolution", "D")
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))

	var res finnhubCandles
	if err := f.get(ctx, "/stock/candle", params, &res); err != nil {
		return nil, err
	}
	if res.Status == "no_data" {
		return nil, nil
	}
	if res.Status != "ok" {
		return nil, fmt.Errorf("finnhub candles %s: status %q: %w", symbol, res.Status, model.ErrProviderUnavailable)
	}

	n := len(res.Time)
	if len(res.Open) != n || len(res.High) != n || len(res.Low) != n || len(res.Close) != n {
		return nil, fmt.Errorf("finnhub candles %s: ragged columns: %w", symbol, model.ErrProviderUnavailable)
	}
	bars := make([]model.Bar, n)
	for i := range res.Time {
		var vol int64
		if i < len(res.Volume) {
			vol = int64(res.Volume[i])
		}
		bars[i] = model.Bar{
			Time:   time.Unix(res.Time[i], 0).UTC(),
			Open:   res.Open[i],
			High:   res.High[i],
			Low:    res.Low[i],
			Close:  res.Close[i],
			Volume: vol,
		}
	}
	return bars, nil
}

func (f *FinnhubFetcher) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var res finnhubQuote
	if err := f.get(ctx, "/quote", params, &res); err != nil {
		return model.Quote{}, err
	}
	// Finnhub answers unknown symbols with an all-zero quote.
	if !res.Current.IsPositive() {
		return model.Quote{}, fmt.Errorf("finnhub quote %s: no price: %w", symbol, model.ErrProviderUnavailable)
	}
	return model.Quote{
		Symbol:    symbol,
		Price:     res.Current,
		Change:    res.Change,
		ChangePct: res.ChangePct,
		High:      res.High,
		Low:       res.Low,
		Open:      res.Open,
		PrevClose: res.PrevClose,
		Time:      unixTime(res.Time),
	}, nil
}

func (f *FinnhubFetcher) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := f.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("finnhub rate limit: %w", err)
	}
	endpoint := f.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("X-Finnhub-Token", f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("finnhub %s: %w: %w", path, model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("finnhub %s: status %d, body: %s: %w", path, resp.StatusCode, string(body), model.ErrProviderUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("finnhub %s: decode: %w: %w", path, model.ErrProviderUnavailable, err)
	}
	return nil
}
