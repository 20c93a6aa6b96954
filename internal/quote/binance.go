package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBinanceURL = "https://api.binance.com"

// BinanceFeed reads the spot ticker and daily klines of a Binance symbol.
type BinanceFeed struct {
	baseURL    string
	symbol     string
	httpClient *http.Client
}

// NewBinanceFeed creates a feed for symbol, e.g. "USDTBRL".
func NewBinanceFeed(baseURL, symbol string) *BinanceFeed {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbol:     strings.ToUpper(strings.ReplaceAll(symbol, "-", "")),
		httpClient: newHTTPClient(),
	}
}

func (b *BinanceFeed) Name() string { return "binance" }

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (b *BinanceFeed) Fetch(ctx context.Context) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", b.symbol)

	body, err := doGet(ctx, b.httpClient, b.baseURL+"/api/v3/ticker/price?"+params.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: ticker %s: %w", b.symbol, err)
	}

	var ticker binanceTicker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode ticker: %w", err)
	}
	price, err := parsePrice(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: %w", err)
	}
	return price, nil
}

// CloseOn returns the daily close of the symbol for the UTC calendar day of day.
func (b *BinanceFeed) CloseOn(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	params := url.Values{}
	params.Set("symbol", b.symbol)
	params.Set("interval", "1d")
	params.Set("startTime", fmt.Sprintf("%d", start.UnixMilli()))
	params.Set("limit", "1")

	body, err := doGet(ctx, b.httpClient, b.baseURL+"/api/v3/klines?"+params.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: klines %s: %w", b.symbol, err)
	}

	// Each kline is [openTime, open, high, low, close, volume, ...].
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode klines: %w", err)
	}
	if len(klines) == 0 || len(klines[0]) < 5 {
		return decimal.Zero, fmt.Errorf("binance: no kline for %s", start.Format("2006-01-02"))
	}

	var openTime int64
	if err := json.Unmarshal(klines[0][0], &openTime); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode kline open time: %w", err)
	}
	if openTime != start.UnixMilli() {
		return decimal.Zero, fmt.Errorf("binance: no kline for %s", start.Format("2006-01-02"))
	}

	var closing string
	if err := json.Unmarshal(klines[0][4], &closing); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode kline close: %w", err)
	}
	price, err := parsePrice(closing)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: %w", err)
	}
	return price, nil
}
