// Package base provides common functionality for exchange adapters
package base

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	apperrors "ladderbot/pkg/errors"
	"ladderbot/pkg/retry"
	"ladderbot/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// SignRequestFunc is a function type for exchange-specific request signing
type SignRequestFunc func(req *http.Request, body []byte) error

// ParseErrorFunc is a function type for exchange-specific error parsing
type ParseErrorFunc func(body []byte) error

// MapOrderStatusFunc is a function type for exchange-specific order status mapping
type MapOrderStatusFunc func(rawStatus string) exchange.Status

// BaseAdapter provides common functionality for all exchange adapters
type BaseAdapter struct {
	Name       string
	Config     *config.ExchangeConfig
	Logger     core.ILogger
	HTTPClient *http.Client

	// Exchange-specific functions to be set by concrete implementations
	SignRequestFunc SignRequestFunc
	ParseError      ParseErrorFunc
	MapOrderStatus  MapOrderStatusFunc
}

// NewBaseAdapter creates a new base adapter with common configuration
func NewBaseAdapter(name string, cfg *config.ExchangeConfig, logger core.ILogger) *BaseAdapter {
	return &BaseAdapter{
		Name:   name,
		Config: cfg,
		Logger: logger.WithField("exchange", name),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
	}
}

// GetName returns the exchange name
func (b *BaseAdapter) GetName() string {
	return b.Name
}

// SetSignRequest sets the exchange-specific request signing function
func (b *BaseAdapter) SetSignRequest(fn SignRequestFunc) {
	b.SignRequestFunc = fn
}

// SetParseError sets the exchange-specific error parsing function
func (b *BaseAdapter) SetParseError(fn ParseErrorFunc) {
	b.ParseError = fn
}

// SetMapOrderStatus sets the exchange-specific order status mapping function
func (b *BaseAdapter) SetMapOrderStatus(fn MapOrderStatusFunc) {
	b.MapOrderStatus = fn
}

// GetConfig returns the exchange configuration
func (b *BaseAdapter) GetConfig() *config.ExchangeConfig {
	return b.Config
}

// GetLogger returns the logger instance
func (b *BaseAdapter) GetLogger() core.ILogger {
	return b.Logger
}

// GetHTTPClient returns the HTTP client instance
func (b *BaseAdapter) GetHTTPClient() *http.Client {
	return b.HTTPClient
}

// ExecuteRequest executes an HTTP request with common error handling
func (b *BaseAdapter) ExecuteRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var respBody []byte
	start := time.Now()

	err := retry.Do(ctx, retry.DefaultPolicy, isTransient, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		if b.SignRequestFunc != nil {
			if err := b.SignRequestFunc(req, body); err != nil {
				return fmt.Errorf("failed to sign request: %w", err)
			}
		}

		resp, err := b.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			if b.ParseError != nil {
				if parseErr := b.ParseError(raw); parseErr != nil {
					return parseErr
				}
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%w: HTTP %d: %s", apperrors.ErrSystemOverload, resp.StatusCode, string(raw))
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
		}

		respBody = raw
		return nil
	})
	telemetry.GetGlobalMetrics().RecordExchangeLatency(ctx, b.Name, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// isTransient reports whether err is worth retrying: network failures,
// rate limiting and upstream overload, never parsed exchange rejections.
func isTransient(err error) bool {
	return errors.Is(err, apperrors.ErrNetwork) ||
		errors.Is(err, apperrors.ErrRateLimitExceeded) ||
		errors.Is(err, apperrors.ErrSystemOverload)
}

// SafeMapOrderStatus maps an exchange-specific raw status string to the
// normalized exchange.Status.
func (b *BaseAdapter) SafeMapOrderStatus(rawStatus string) exchange.Status {
	if b.MapOrderStatus != nil {
		return b.MapOrderStatus(rawStatus)
	}
	return exchange.StatusNew
}

// ParseDecimal safely parses a string to decimal
func (b *BaseAdapter) ParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		b.Logger.Warn("failed to parse decimal", "value", s, "error", err)
		return decimal.Zero
	}
	return d
}

// ParseTimestamp safely parses a timestamp in milliseconds
func (b *BaseAdapter) ParseTimestamp(ms int64) time.Time {
	return exchange.NormalizeTimestamp(ms)
}
