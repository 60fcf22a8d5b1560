// Package oanda implements the market-data and execution ports against the
// OANDA v20 REST API.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

const (
	// PracticeURL is the OANDA practice/demo environment.
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the OANDA live trading environment.
	LiveURL = "https://api-fxtrade.oanda.com"

	// UnitsPerLot is the standard FX lot size in base-currency units.
	UnitsPerLot = 100000
)

// Client implements ports.MarketDataProvider and ports.ExecutionClient.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     ports.Logger
}

// Config holds configuration for the OANDA client adapter.
type Config struct {
	Token     string
	AccountID string
	Practice  bool
	Logger    ports.Logger
	// RequestsPerSecond caps outgoing API calls; OANDA allows far more but
	// the agent has no reason to burst. Defaults to 10.
	RequestsPerSecond float64
}

// New creates a new OANDA client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for OANDA client")
	}
	if cfg.Token == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("OANDA token and account ID are required: %w", ports.ErrConfigurationError)
	}
	baseURL := LiveURL
	if cfg.Practice {
		baseURL = PracticeURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	cfg.Logger.Info(context.Background(), "OANDA client configured", map[string]interface{}{
		"baseURL": baseURL, "practice": cfg.Practice,
	})
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		accountID:  cfg.AccountID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     cfg.Logger,
	}, nil
}

// doRequest performs one rate-limited, authenticated API call and decodes the
// response into out. HTTP and transport failures are mapped to ports errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", ports.ErrTimeout)
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, ports.ErrConnectionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.mapStatusError(ctx, resp.StatusCode, method+" "+path, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response for %s: %w", path, err)
		}
	}
	return nil
}

// mapStatusError translates HTTP status codes into standardized ports errors.
func (c *Client) mapStatusError(ctx context.Context, status int, op, body string) error {
	fields := map[string]interface{}{"operation": op, "status": status, "body": body}
	var mapped error
	switch {
	case status == http.StatusTooManyRequests:
		mapped = ports.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		mapped = ports.ErrAuthenticationFailed
	case status >= 500:
		mapped = ports.ErrProviderUnavailable
	default:
		mapped = fmt.Errorf("OANDA API error (status %d)", status)
	}
	c.logger.Warn(ctx, "OANDA request failed", fields)
	return fmt.Errorf("%s: %w", op, mapped)
}

// --- ports.MarketDataProvider implementation ---

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

// GetCurrentPrice retrieves the latest bid/ask for an instrument.
func (c *Client) GetCurrentPrice(ctx context.Context, pair string) (domain.Price, error) {
	path := fmt.Sprintf("/v3/accounts/%s/pricing?instruments=%s", c.accountID, url.QueryEscape(pair))
	var resp pricingResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.Price{}, err
	}
	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return domain.Price{}, fmt.Errorf("no pricing returned for %s: %w", pair, ports.ErrNotFound)
	}
	bid, err := strconv.ParseFloat(resp.Prices[0].Bids[0].Price, 64)
	if err != nil {
		return domain.Price{}, fmt.Errorf("bad bid price for %s: %w", pair, err)
	}
	ask, err := strconv.ParseFloat(resp.Prices[0].Asks[0].Price, 64)
	if err != nil {
		return domain.Price{}, fmt.Errorf("bad ask price for %s: %w", pair, err)
	}
	return domain.Price{Bid: bid, Ask: ask}, nil
}

type candlesResponse struct {
	Candles []struct {
		Time     time.Time `json:"time"`
		Volume   float64   `json:"volume"`
		Complete bool      `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

// GetCandles retrieves up to count most recent midpoint candles.
func (c *Client) GetCandles(ctx context.Context, pair, granularity string, count int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v3/instruments/%s/candles?granularity=%s&count=%d&price=M",
		url.PathEscape(pair), url.QueryEscape(granularity), count)
	var resp candlesResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		o, err1 := strconv.ParseFloat(raw.Mid.O, 64)
		h, err2 := strconv.ParseFloat(raw.Mid.H, 64)
		l, err3 := strconv.ParseFloat(raw.Mid.L, 64)
		cl, err4 := strconv.ParseFloat(raw.Mid.C, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("bad candle data for %s %s", pair, granularity)
		}
		candles = append(candles, domain.Candle{
			Time: raw.Time, Open: o, High: h, Low: l, Close: cl, Volume: raw.Volume,
		})
	}
	return candles, nil
}

type accountSummaryResponse struct {
	Account struct {
		Balance string `json:"balance"`
	} `json:"account"`
}

// GetAccountSummary retrieves the current account balance.
func (c *Client) GetAccountSummary(ctx context.Context) (ports.AccountSummary, error) {
	path := fmt.Sprintf("/v3/accounts/%s/summary", c.accountID)
	var resp accountSummaryResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return ports.AccountSummary{}, err
	}
	balance, err := strconv.ParseFloat(resp.Account.Balance, 64)
	if err != nil {
		return ports.AccountSummary{}, fmt.Errorf("bad account balance: %w", err)
	}
	return ports.AccountSummary{Balance: balance}, nil
}

// --- ports.ExecutionClient implementation ---

type marketOrderRequest struct {
	Order struct {
		Type             string `json:"type"`
		Instrument       string `json:"instrument"`
		Units            string `json:"units"`
		TimeInForce      string `json:"timeInForce"`
		PositionFill     string `json:"positionFill"`
		StopLossOnFill   *struct {
			Price string `json:"price"`
		} `json:"stopLossOnFill,omitempty"`
		TakeProfitOnFill *struct {
			Price string `json:"price"`
		} `json:"takeProfitOnFill,omitempty"`
		ClientExtensions struct {
			ID string `json:"id"`
		} `json:"clientExtensions"`
	} `json:"order"`
}

type orderResponse struct {
	OrderFillTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
}

// PlaceMarketOrder submits a market order with attached SL/TP. Units are
// signed: positive buys, negative sells.
func (c *Client) PlaceMarketOrder(ctx context.Context, pair string, units int, stopLoss, takeProfit float64) (*ports.OrderResult, error) {
	var req marketOrderRequest
	req.Order.Type = "MARKET"
	req.Order.Instrument = pair
	req.Order.Units = strconv.Itoa(units)
	req.Order.TimeInForce = "FOK"
	req.Order.PositionFill = "DEFAULT"
	if stopLoss > 0 {
		req.Order.StopLossOnFill = &struct {
			Price string `json:"price"`
		}{Price: formatPrice(stopLoss)}
	}
	if takeProfit > 0 {
		req.Order.TakeProfitOnFill = &struct {
			Price string `json:"price"`
		}{Price: formatPrice(takeProfit)}
	}
	req.Order.ClientExtensions.ID = "fxpilot-" + uuid.NewString()

	path := fmt.Sprintf("/v3/accounts/%s/orders", c.accountID)
	var resp orderResponse
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderFillTransaction == nil {
		reason := "unknown"
		if resp.OrderCancelTransaction != nil {
			reason = resp.OrderCancelTransaction.Reason
		}
		return nil, fmt.Errorf("order for %s not filled (%s): %w", pair, reason, ports.ErrOrderPlacementFailed)
	}
	fillPrice, err := strconv.ParseFloat(resp.OrderFillTransaction.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad fill price in order response: %w", err)
	}
	c.logger.Info(ctx, "Market order filled", map[string]interface{}{
		"pair": pair, "units": units, "orderID": resp.OrderFillTransaction.ID, "fillPrice": fillPrice,
	})
	return &ports.OrderResult{
		OrderID:   resp.OrderFillTransaction.ID,
		FillPrice: fillPrice,
	}, nil
}

type openPositionsResponse struct {
	Positions []struct {
		Instrument string `json:"instrument"`
		Long       struct {
			Units        string `json:"units"`
			AveragePrice string `json:"averagePrice"`
		} `json:"long"`
		Short struct {
			Units        string `json:"units"`
			AveragePrice string `json:"averagePrice"`
		} `json:"short"`
	} `json:"positions"`
}

// ListOpenPositions retrieves the broker's open positions keyed by instrument.
func (c *Client) ListOpenPositions(ctx context.Context) (map[string]ports.BrokerPosition, error) {
	path := fmt.Sprintf("/v3/accounts/%s/openPositions", c.accountID)
	var resp openPositionsResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	positions := make(map[string]ports.BrokerPosition, len(resp.Positions))
	for _, p := range resp.Positions {
		longUnits, _ := strconv.Atoi(p.Long.Units)
		shortUnits, _ := strconv.Atoi(p.Short.Units)
		switch {
		case longUnits != 0:
			avg, _ := strconv.ParseFloat(p.Long.AveragePrice, 64)
			positions[p.Instrument] = ports.BrokerPosition{Side: "LONG", Units: longUnits, AvgPrice: avg}
		case shortUnits != 0:
			avg, _ := strconv.ParseFloat(p.Short.AveragePrice, 64)
			if shortUnits < 0 {
				shortUnits = -shortUnits
			}
			positions[p.Instrument] = ports.BrokerPosition{Side: "SHORT", Units: shortUnits, AvgPrice: avg}
		}
	}
	return positions, nil
}

// formatPrice renders a price with the 5-digit precision OANDA expects for
// the majors this agent trades.
func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 5, 64)
}
