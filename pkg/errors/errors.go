package apperrors

import "errors"

// Standardized Exchange Errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderRejected         = errors.New("order rejected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrExchangeMaintenance   = errors.New("exchange maintenance")
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateOrder        = errors.New("duplicate order")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrSystemOverload        = errors.New("system overload")
	ErrTimestampOutOfBounds  = errors.New("timestamp out of bounds")
)

// Ladder-specific errors
var (
	// ErrMinOrderAmount is returned when a computed rung size falls below
	// the exchange's minimum order amount for the market.
	ErrMinOrderAmount = errors.New("order amount below exchange minimum")
	// ErrRatesUnavailable is returned when the mid-price source (ticker,
	// external rate feed) cannot produce a usable price this iteration.
	ErrRatesUnavailable = errors.New("mid price unavailable")
	// ErrLadderReInit signals that the ladder's configuration changed in a
	// way that invalidates the existing topology and requires a full
	// cancel-and-rebuild rather than an incremental reconcile.
	ErrLadderReInit = errors.New("ladder re-initialization required")
)
