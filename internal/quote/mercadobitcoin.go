package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultMercadoBitcoinURL = "https://api.mercadobitcoin.net"

// MercadoBitcoinFeed reads the last traded price from the Mercado Bitcoin
// v4 tickers endpoint.
type MercadoBitcoinFeed struct {
	baseURL    string
	pair       string
	httpClient *http.Client
}

// NewMercadoBitcoinFeed creates a feed for symbol. "USDTBRL" and "USDT-BRL"
// are both accepted.
func NewMercadoBitcoinFeed(baseURL, symbol string) *MercadoBitcoinFeed {
	if baseURL == "" {
		baseURL = DefaultMercadoBitcoinURL
	}
	return &MercadoBitcoinFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pair:       mbPair(symbol),
		httpClient: newHTTPClient(),
	}
}

func mbPair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "-") || len(s) < 4 {
		return s
	}
	return s[:len(s)-3] + "-" + s[len(s)-3:]
}

func (m *MercadoBitcoinFeed) Name() string { return "mercadobitcoin" }

type mbTicker struct {
	Pair string `json:"pair"`
	Last string `json:"last"`
}

func (m *MercadoBitcoinFeed) Fetch(ctx context.Context) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbols", m.pair)

	body, err := doGet(ctx, m.httpClient, m.baseURL+"/api/v4/tickers?"+params.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("mercadobitcoin: ticker %s: %w", m.pair, err)
	}

	var tickers []mbTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return decimal.Zero, fmt.Errorf("mercadobitcoin: decode tickers: %w", err)
	}
	for _, t := range tickers {
		if strings.EqualFold(t.Pair, m.pair) {
			price, err := parsePrice(t.Last)
			if err != nil {
				return decimal.Zero, fmt.Errorf("mercadobitcoin: %w", err)
			}
			return price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("mercadobitcoin: pair %s missing from response", m.pair)
}
