package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"launchpad-backend/internal/metrics"
)

// OKXTicker one entry of the OKX market ticker response
type OKXTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	LastSz    string `json:"lastSz"`
	AskPx     string `json:"askPx"`
	BidPx     string `json:"bidPx"`
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	VolCcy24h string `json:"volCcy24h"`
	Vol24h    string `json:"vol24h"`
	SodUtc0   string `json:"sodUtc0"`
	SodUtc8   string `json:"sodUtc8"`
	Ts        string `json:"ts"`
}

// OKXTickerResponse OKX v5 envelope
type OKXTickerResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []OKXTicker `json:"data"`
}

// NativePrice ticker stats for the chain's native asset
type NativePrice struct {
	InstID    string          `json:"instId"`
	Price     decimal.Decimal `json:"price"`
	Open24h   decimal.Decimal `json:"open24h"`
	High24h   decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low24h"`
	Volume24h decimal.Decimal `json:"volume24h"`
	Change24h decimal.Decimal `json:"change24h"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceFeedClient polls the OKX public ticker
type PriceFeedClient struct {
	httpClient *http.Client
	baseURL    string
	instID     string
	breaker    *gobreaker.CircuitBreaker
}

// NewPriceFeedClient baseURL is the ticker endpoint without query string
func NewPriceFeedClient(baseURL, instID string, timeout time.Duration) *PriceFeedClient {
	return &PriceFeedClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		instID:     instID,
		breaker:    newBreaker("price-feed"),
	}
}

// FetchTicker returns the current ticker; code != "0" is an error
func (c *PriceFeedClient) FetchTicker(ctx context.Context) (*NativePrice, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		metrics.PriceFeedRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PriceFeedRequestsTotal.WithLabelValues("ok").Inc()

	price := res.(*NativePrice)
	f, _ := price.Price.Float64()
	metrics.NativePriceUSD.Set(f)
	return price, nil
}

func (c *PriceFeedClient) fetch(ctx context.Context) (*NativePrice, error) {
	endpoint := c.baseURL + "?instId=" + url.QueryEscape(c.instID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticker response: %w", err)
	}

	var ticker OKXTickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	if ticker.Code != "0" {
		msg := ticker.Msg
		if msg == "" {
			msg = "failed to fetch price data"
		}
		return nil, fmt.Errorf("ticker error code %s: %s", ticker.Code, msg)
	}
	if len(ticker.Data) == 0 {
		return nil, errors.New("ticker response has no data")
	}

	return parseTicker(ticker.Data[0])
}

func parseTicker(t OKXTicker) (*NativePrice, error) {
	last, err := decimal.NewFromString(t.Last)
	if err != nil {
		return nil, fmt.Errorf("invalid last price %q: %w", t.Last, err)
	}
	p := &NativePrice{
		InstID:    t.InstID,
		Price:     last,
		Open24h:   decimalOrZero(t.Open24h),
		High24h:   decimalOrZero(t.High24h),
		Low24h:    decimalOrZero(t.Low24h),
		Volume24h: decimalOrZero(t.Vol24h),
		Timestamp: time.Now(),
	}
	if !p.Open24h.IsZero() {
		p.Change24h = last.Sub(p.Open24h).Div(p.Open24h).Mul(decimal.NewFromInt(100)).Round(2)
	}
	if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil {
		p.Timestamp = time.UnixMilli(ms)
	}
	return p, nil
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
