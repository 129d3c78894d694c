package service

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/payment"
)

// SettingsService loads the payment policy from the settings store and
// caches it until the settings change.
type SettingsService struct {
	store  SettingsStore
	logger *slog.Logger

	mu     sync.RWMutex
	cached *payment.PolicyConfig
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(store SettingsStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// PolicyConfig returns the current payment policy configuration.
func (s *SettingsService) PolicyConfig(ctx context.Context) (payment.PolicyConfig, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	values, err := s.store.GetSettings(ctx, payment.SettingsPrefix)
	if err != nil {
		return payment.PolicyConfig{}, domain.Internal(err, "settings.policy", "failed to load payment settings")
	}

	cfg, err := payment.ParsePolicyConfig(values)
	if err != nil {
		// A bad stored value is an operator error, not a caller error.
		s.logger.ErrorContext(ctx, "stored payment settings are invalid", "error", err)
		return payment.PolicyConfig{}, domain.Internal(err, "settings.policy", "payment settings are invalid")
	}

	s.mu.Lock()
	s.cached = &cfg
	s.mu.Unlock()

	return cfg, nil
}

// UpdatePolicy merges values into the stored settings. Unknown keys and
// malformed values are rejected before anything is written.
func (s *SettingsService) UpdatePolicy(ctx context.Context, values map[string]string) (payment.PolicyConfig, error) {
	const op = "settings.update"

	if len(values) == 0 {
		return payment.PolicyConfig{}, domain.Errorf(domain.ENOOP, op, "no settings to update")
	}

	unknown := &domain.ValidationError{Op: op, Fields: map[string]string{}}
	for key := range values {
		if !payment.IsSettingKey(key) {
			unknown.Fields[key] = "unknown setting"
		}
	}
	if len(unknown.Fields) > 0 {
		return payment.PolicyConfig{}, unknown
	}

	stored, err := s.store.GetSettings(ctx, payment.SettingsPrefix)
	if err != nil {
		return payment.PolicyConfig{}, domain.Internal(err, op, "failed to load payment settings")
	}
	merged := maps.Clone(stored)
	if merged == nil {
		merged = map[string]string{}
	}
	maps.Copy(merged, values)

	cfg, err := payment.ParsePolicyConfig(merged)
	if err != nil {
		return payment.PolicyConfig{}, err
	}

	if err := s.store.UpsertSettings(ctx, values); err != nil {
		return payment.PolicyConfig{}, domain.Internal(err, op, "failed to save payment settings")
	}
	s.Invalidate()

	s.logger.InfoContext(ctx, "payment settings updated", "keys", len(values))
	return cfg, nil
}

// Invalidate drops the cached configuration.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
