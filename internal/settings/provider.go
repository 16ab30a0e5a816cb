package settings

import (
	"context"
	"log/slog"
	"strconv"
)

// Well-known setting keys.
const (
	KeyBusinessTimeZone    = "business_time_zone"
	KeyCancellationMinHour = "cancellation_min_hours"
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// Provider reads system settings with baked-in defaults. Lookups never fail:
// a storage error falls back to the default so a settings outage cannot take
// booking down.
type Provider struct {
	store    Store
	logger   *slog.Logger
	defaults map[string]string
}

func NewProvider(store Store, logger *slog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
		defaults: map[string]string{
			KeyBusinessTimeZone:    "America/Toronto",
			KeyCancellationMinHour: "24",
		},
	}
}

func (p *Provider) GetOrDefault(ctx context.Context, key string) string {
	value, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("settings lookup failed, using default", "key", key, "error", err)
		return p.defaults[key]
	}
	if value == "" {
		return p.defaults[key]
	}
	return value
}

func (p *Provider) BusinessTimeZone(ctx context.Context) string {
	return p.GetOrDefault(ctx, KeyBusinessTimeZone)
}

func (p *Provider) CancellationMinHours(ctx context.Context) int {
	raw := p.GetOrDefault(ctx, KeyCancellationMinHour)
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 0 {
		p.logger.Warn("invalid cancellation threshold setting, using default", "value", raw)
		return 24
	}
	return hours
}
