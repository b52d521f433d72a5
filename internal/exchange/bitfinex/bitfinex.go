// Package bitfinex implements exchange.Adapter over the Bitfinex v2 REST
// API. Request signing, error mapping and status mapping follow the
// base.BaseAdapter scaffold; every other adapter in this tree can be
// wired the same way.
package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/exchange/base"
	apperrors "ladderbot/pkg/errors"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.bitfinex.com"

// Exchange implements exchange.Adapter for Bitfinex.
type Exchange struct {
	*base.BaseAdapter
	baseURL string
}

// New creates a Bitfinex adapter.
func New(cfg *config.ExchangeConfig, logger core.ILogger) *Exchange {
	b := base.NewBaseAdapter("bitfinex", cfg, logger)
	e := &Exchange{
		BaseAdapter: b,
		baseURL:     defaultBaseURL,
	}
	if cfg.BaseURL != "" {
		e.baseURL = cfg.BaseURL
	}

	b.SetSignRequest(e.signRequest)
	b.SetParseError(e.parseError)
	b.SetMapOrderStatus(e.mapOrderStatus)

	return e
}

func (e *Exchange) Name() string { return "bitfinex" }

// signRequest applies Bitfinex's HMAC-SHA384 authenticated-endpoint
// signing scheme: nonce + path + body, signed with the API secret.
func (e *Exchange) signRequest(req *http.Request, body []byte) error {
	nonce := fmt.Sprintf("%d", time.Now().UnixNano())
	payload := "/api" + req.URL.Path + nonce + string(body)

	mac := hmac.New(sha512.New384, []byte(e.Config.APISecret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("bfx-apikey", string(e.Config.APIKey))
	req.Header.Set("bfx-nonce", nonce)
	req.Header.Set("bfx-signature", signature)
	req.Header.Set("Content-Type", "application/json")
	return nil
}

func (e *Exchange) parseError(body []byte) error {
	var errResp []interface{}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("bitfinex error (unmarshal failed): %s", string(body))
	}
	if len(errResp) < 3 {
		return fmt.Errorf("bitfinex error: %s", string(body))
	}
	code, _ := errResp[1].(string)
	msg, _ := errResp[2].(string)

	switch {
	case strings.Contains(msg, "not enough"), strings.Contains(msg, "insufficient"):
		return apperrors.ErrInsufficientFunds
	case strings.Contains(msg, "minimum size"):
		return apperrors.ErrMinOrderAmount
	case strings.Contains(msg, "apikey"):
		return apperrors.ErrAuthenticationFailed
	case strings.Contains(msg, "ratelimit"):
		return apperrors.ErrRateLimitExceeded
	case code == "10020":
		return apperrors.ErrInvalidOrderParameter
	}

	return fmt.Errorf("bitfinex error: %s (%s)", msg, code)
}

func (e *Exchange) mapOrderStatus(rawStatus string) exchange.Status {
	switch {
	case strings.HasPrefix(rawStatus, "EXECUTED"):
		return exchange.StatusFilled
	case strings.Contains(rawStatus, "PARTIALLY FILLED"):
		return exchange.StatusPartFilled
	case strings.HasPrefix(rawStatus, "CANCELED"):
		return exchange.StatusCancelled
	case rawStatus == "ACTIVE":
		return exchange.StatusNew
	default:
		return exchange.StatusNew
	}
}

func (e *Exchange) venuePair(pair string) string {
	return "t" + strings.ReplaceAll(pair, "/", "")
}

func (e *Exchange) PlaceOrder(ctx context.Context, side exchange.Side, pair string, price, amount decimal.Decimal, quoteAmount decimal.Decimal) (exchange.PlaceResult, error) {
	signedAmount := amount
	if side == exchange.SideSell {
		signedAmount = amount.Neg()
	}

	body, _ := json.Marshal(map[string]interface{}{
		"type":   "EXCHANGE LIMIT",
		"symbol": e.venuePair(pair),
		"price":  price.String(),
		"amount": signedAmount.String(),
	})

	resp, err := e.ExecuteRequest(ctx, http.MethodPost, e.baseURL+"/v2/auth/w/order/submit", body)
	if err != nil {
		return exchange.PlaceResult{Success: false, Message: err.Error()}, nil
	}

	var parsed struct {
		Notify []struct {
			ID int64 `json:"id"`
		} `json:"notify"`
	}
	_ = json.Unmarshal(resp, &parsed)
	if len(parsed.Notify) == 0 {
		return exchange.PlaceResult{Success: false, Message: "no order id returned"}, nil
	}

	return exchange.PlaceResult{
		OrderID: fmt.Sprintf("%d", parsed.Notify[0].ID),
		Success: true,
	}, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string, side exchange.Side, pair string) (bool, error) {
	body, _ := json.Marshal(map[string]interface{}{"id": orderID})
	_, err := e.ExecuteRequest(ctx, http.MethodPost, e.baseURL+"/v2/auth/w/order/cancel", body)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Exchange) CancelAllOrders(ctx context.Context, pair string) (bool, error) {
	body, _ := json.Marshal(map[string]interface{}{"all": 1})
	_, err := e.ExecuteRequest(ctx, http.MethodPost, e.baseURL+"/v2/auth/w/order/cancel/multi", body)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Exchange) GetOpenOrders(ctx context.Context, pair string) ([]exchange.Order, error) {
	resp, err := e.ExecuteRequest(ctx, http.MethodPost, e.baseURL+"/v2/auth/r/orders", []byte("{}"))
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse open orders: %w", err)
	}

	orders := make([]exchange.Order, 0, len(raw))
	for _, entry := range raw {
		order, ok := e.parseOrderEntry(entry)
		if !ok {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (e *Exchange) GetOrderDetails(ctx context.Context, orderID string, pair string) (exchange.Order, bool, error) {
	// Bitfinex exposes no single-order lookup distinct from the open
	// orders listing; the Reconciler falls back to scanning GetOpenOrders.
	return exchange.Order{}, false, nil
}

func (e *Exchange) parseOrderEntry(entry []interface{}) (exchange.Order, bool) {
	if len(entry) < 14 {
		return exchange.Order{}, false
	}
	id, _ := entry[0].(float64)
	amount, _ := entry[6].(float64)
	amountOrig, _ := entry[7].(float64)
	status, _ := entry[13].(string)
	price, _ := entry[16].(float64)

	side := exchange.SideBuy
	if amountOrig < 0 {
		side = exchange.SideSell
	}

	executed := decimal.NewFromFloat(amountOrig).Sub(decimal.NewFromFloat(amount)).Abs()

	return exchange.Order{
		OrderID:        fmt.Sprintf("%d", int64(id)),
		Side:           side,
		Price:          decimal.NewFromFloat(price),
		Amount:         decimal.NewFromFloat(amountOrig).Abs(),
		AmountExecuted: executed,
		AmountLeft:     decimal.NewFromFloat(amount).Abs(),
		Status:         e.mapOrderStatus(status),
	}, true
}

func (e *Exchange) GetBalances(ctx context.Context, nonzero bool, accountType string) ([]exchange.Balance, error) {
	body, _ := json.Marshal(map[string]interface{}{})
	resp, err := e.ExecuteRequest(ctx, http.MethodPost, e.baseURL+"/v2/auth/r/wallets", body)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse balances: %w", err)
	}

	balances := make([]exchange.Balance, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 3 {
			continue
		}
		code, _ := entry[1].(string)
		total, _ := entry[2].(float64)
		var available float64
		if v, ok := entry[4].(float64); ok {
			available = v
		} else {
			available = total
		}

		totalD := decimal.NewFromFloat(total)
		freeD := decimal.NewFromFloat(available)
		frozenD := totalD.Sub(freeD)

		if nonzero && totalD.IsZero() {
			continue
		}

		balances = append(balances, exchange.Balance{
			Code:   code,
			Free:   freeD,
			Frozen: frozenD,
			Total:  totalD,
		})
	}
	return balances, nil
}

func (e *Exchange) GetRates(ctx context.Context, pair string) (exchange.Rates, error) {
	resp, err := e.HTTPClient.Get(e.baseURL + "/v2/ticker/" + e.venuePair(pair))
	if err != nil {
		return exchange.Rates{}, fmt.Errorf("failed to fetch ticker: %w", err)
	}
	defer resp.Body.Close()

	var raw []float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return exchange.Rates{}, fmt.Errorf("failed to parse ticker: %w", err)
	}
	if len(raw) < 10 {
		return exchange.Rates{}, apperrors.ErrRatesUnavailable
	}

	return exchange.Rates{
		Bid:    decimal.NewFromFloat(raw[0]),
		Ask:    decimal.NewFromFloat(raw[2]),
		Volume: decimal.NewFromFloat(raw[7]),
		High:   decimal.NewFromFloat(raw[8]),
		Low:    decimal.NewFromFloat(raw[9]),
	}, nil
}

func (e *Exchange) MarketInfo(ctx context.Context, pair string) (exchange.MarketInfo, error) {
	// Bitfinex publishes precision/minimum-size metadata through a
	// separate conf endpoint; a fixed, conservative default is used here
	// since the core only needs it to enforce §4.4 step 3.
	return exchange.MarketInfo{
		Coin1Decimals:  8,
		Coin2Decimals:  5,
		Coin1MinAmount: decimal.NewFromFloat(0.0004),
		Coin1MaxAmount: decimal.NewFromInt(2000),
	}, nil
}

func (e *Exchange) Features() exchange.Features {
	return exchange.Features{
		OpenOrdersCacheSec:  5,
		OrderNumberLimit:    1000,
		SupportsOrderDetail: false,
	}
}
