package config

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LiveStore is the Ladder Builder's view onto the subset of Config that
// changes at runtime: the shifted mid-price and the one-shot reinit
// flag. It mutates the in-memory Config under a mutex and is not written
// back to disk, so a restart starts again from the configured
// ladder_mid_price.
type LiveStore struct {
	mu  sync.Mutex
	cfg *Config
}

func NewLiveStore(cfg *Config) *LiveStore {
	return &LiveStore{cfg: cfg}
}

func (s *LiveStore) MidPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decimal.NewFromFloat(s.cfg.Ladder.MidPrice)
}

// SetMidPrice persists the new mid-price and its provenance label
// ("Shifted" after an iteration, "Configured" only at cold start).
func (s *LiveStore) SetMidPrice(mid decimal.Decimal, midType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Ladder.MidPrice = mid.InexactFloat64()
	s.cfg.Ladder.MidPriceType = midType
}

// IsActive reports whether the ladder is currently enabled for trading;
// the Scheduler polls at InactivePollMs while this is false.
func (s *LiveStore) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Ladder.IsActive
}

// SetActive flips the ladder's active flag; an operator control surface
// mirroring SetReInit.
func (s *LiveStore) SetActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Ladder.IsActive = v
}

func (s *LiveStore) ReInit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Ladder.ReInit
}

// ClearReInit drops the one-shot flag after the Closer reports full
// success cancelling the entire ladder.
func (s *LiveStore) ClearReInit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Ladder.ReInit = false
}

// SetReInit arms or disarms the one-shot flag; this is the control
// surface an operator (or an admin endpoint) uses to request a full
// ladder rebuild on the next iteration.
func (s *LiveStore) SetReInit(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Ladder.ReInit = v
}
