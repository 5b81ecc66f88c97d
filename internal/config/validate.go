package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults used when fields are omitted.
const (
	DefaultAppName        = "Tasky"
	DefaultDismissAfter   = 20 * time.Second
	DefaultSurfaceTimeout = 10 * time.Second
	DefaultCommandTimeout = 10 * time.Second
	DefaultUpdateTimeout  = 30 * time.Second
	DefaultStopTimeout    = 10 * time.Second
	DefaultPollTimeout    = 10 * time.Second
)

// Surface values.
const (
	SurfaceWindow   = "window"
	SurfaceTelegram = "telegram"
	SurfaceBoth     = "both"
)

// SupersedeEnabled reports reminder.supersede, defaulting to true.
func SupersedeEnabled(r ReminderConfig) bool {
	return r.Supersede == nil || *r.Supersede
}

// DismissAfter resolves delivery.dismiss_after. Omitted means the default;
// an explicit "0s" disables self-dismiss.
func DismissAfter(d DeliveryConfig) (time.Duration, error) {
	if d.DismissAfter == nil {
		return DefaultDismissAfter, nil
	}
	return Duration("delivery.dismiss_after", *d.DismissAfter, 0)
}

// Duration parses the duration field at path. Empty or zero yields def;
// negative values are rejected.
func Duration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case d == 0:
		return def, nil
	}
	return d, nil
}

// SurfaceKind normalizes delivery.surface.
func SurfaceKind(d DeliveryConfig) string {
	s := strings.ToLower(strings.TrimSpace(d.Surface))
	if s == "" {
		return SurfaceWindow
	}
	return s
}

// Validate checks the settings that do not depend on other packages.
// Domain-specific checks (timezone, policy, cron) run in the app validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := Duration("app.stop_timeout", cfg.App.StopTimeout, 0)
	add(err)
	_, err = Duration("commands.default_timeout", cfg.Commands.DefaultTimeout, 0)
	add(err)
	_, err = DismissAfter(cfg.Delivery)
	add(err)
	_, err = Duration("delivery.surface_timeout", cfg.Delivery.SurfaceTimeout, 0)
	add(err)
	_, err = Duration("update.timeout", cfg.Update.Timeout, 0)
	add(err)
	_, err = Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0)
	add(err)

	switch SurfaceKind(cfg.Delivery) {
	case SurfaceWindow:
	case SurfaceTelegram, SurfaceBoth:
		if !cfg.Telegram.Enabled {
			add(fmt.Errorf("delivery.surface %q requires telegram.enabled", cfg.Delivery.Surface))
		}
	default:
		add(fmt.Errorf("delivery.surface: unknown value %q (use window, telegram or both)", cfg.Delivery.Surface))
	}

	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token is required when telegram.enabled (or set %s)", EnvTelegramToken))
	}
	if cfg.Update.Enabled && strings.TrimSpace(cfg.Update.FeedURL) == "" {
		add(errors.New("update.feed_url is required when update.enabled"))
	}
	if cfg.Storage != nil {
		if s := cfg.Storage; s.Driver != "" && s.Driver != "none" && strings.TrimSpace(s.Path) == "" {
			add(errors.New("storage.path is required"))
		}
		_, err = Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		add(err)
	}
	return errors.Join(errs...)
}
