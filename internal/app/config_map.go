package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tasky/internal/config"
	"tasky/internal/delivery"
	"tasky/internal/reminder"
	"tasky/internal/storage"
	kit "tasky/internal/transport"
	"tasky/internal/update"
	"tasky/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	pol, err := reminder.ParsePolicy(cfg.Reminder.PastPolicy)
	if err != nil {
		return reminder.Config{}, fmt.Errorf("reminder.past_policy: %w", err)
	}
	tz := strings.TrimSpace(cfg.Reminder.Timezone)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return reminder.Config{}, fmt.Errorf("reminder.timezone: invalid %q: %w", tz, err)
		}
	}
	return reminder.Config{
		Timezone:  tz,
		Policy:    pol,
		Supersede: config.SupersedeEnabled(cfg.Reminder),
	}, nil
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	after, err := config.DismissAfter(cfg.Delivery)
	if err != nil {
		return delivery.Config{}, err
	}
	st, err := config.Duration("delivery.surface_timeout", cfg.Delivery.SurfaceTimeout, config.DefaultSurfaceTimeout)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{DismissAfter: after, SurfaceTimeout: st}, nil
}

func mapUpdateConfig(cfg *config.Config, version string) (update.Config, error) {
	timeout, err := config.Duration("update.timeout", cfg.Update.Timeout, config.DefaultUpdateTimeout)
	if err != nil {
		return update.Config{}, err
	}
	if v := strings.TrimSpace(cfg.App.Version); v != "" {
		version = v
	}
	return update.Config{
		Enabled:     cfg.Update.Enabled,
		FeedURL:     strings.TrimSpace(cfg.Update.FeedURL),
		Platform:    platformOf(cfg),
		Version:     version,
		Schedule:    strings.TrimSpace(cfg.Update.Schedule),
		Timeout:     timeout,
		StagingDir:  strings.TrimSpace(cfg.Update.StagingDir),
		AutoInstall: cfg.Update.AutoInstall,
	}, nil
}

func commandTimeout(cfg *config.Config) time.Duration {
	d, err := config.Duration("commands.default_timeout", cfg.Commands.DefaultTimeout, config.DefaultCommandTimeout)
	if err != nil {
		return config.DefaultCommandTimeout
	}
	return d
}

func stopTimeout(cfg *config.Config) time.Duration {
	d, err := config.Duration("app.stop_timeout", cfg.App.StopTimeout, config.DefaultStopTimeout)
	if err != nil {
		return config.DefaultStopTimeout
	}
	return d
}

func platformOf(cfg *config.Config) string {
	switch p := strings.ToLower(strings.TrimSpace(cfg.Delivery.Platform)); p {
	case "":
	case update.PlatformDarwin, update.PlatformWin32, update.PlatformLinux:
		return p
	default:
		return update.Platform(p)
	}
	return update.CurrentPlatform()
}

// parseChatTarget reads "<chat_id>" or "<chat_id>:<thread_id>". Empty input
// yields the zero target.
func parseChatTarget(s string) (kit.ChatTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return kit.ChatTarget{}, nil
	}
	chat, thread, hasThread := strings.Cut(s, ":")
	id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
	if err != nil || id == 0 {
		return kit.ChatTarget{}, fmt.Errorf("invalid chat id %q", chat)
	}
	t := kit.ChatTarget{ChatID: id}
	if hasThread {
		n, err := strconv.Atoi(strings.TrimSpace(thread))
		if err != nil || n < 0 {
			return kit.ChatTarget{}, fmt.Errorf("invalid thread id %q", thread)
		}
		t.ThreadID = n
	}
	return t, nil
}

// logTarget resolves the log chat. logging.telegram.thread_id wins over a
// thread given in group_log.
func logTarget(cfg *config.Config) kit.ChatTarget {
	t, err := parseChatTarget(cfg.Telegram.GroupLog)
	if err != nil {
		return kit.ChatTarget{}
	}
	if cfg.Logging.Telegram.ThreadID > 0 {
		t.ThreadID = cfg.Logging.Telegram.ThreadID
	}
	return t
}

// defaultChat receives deliveries without a source chat and update prompts.
func defaultChat(cfg *config.Config) kit.ChatTarget {
	if id := cfg.Telegram.DefaultChatID; id != 0 {
		return kit.ChatTarget{ChatID: id}
	}
	if len(cfg.Telegram.OwnerUserIDs) > 0 {
		return kit.ChatTarget{ChatID: cfg.Telegram.OwnerUserIDs[0]}
	}
	return kit.ChatTarget{}
}

// validateConfig runs the config package checks plus the ones that need
// domain packages.
func validateConfig(cfg *config.Config, cronCheck func(string) error) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := mapReminderConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := parseChatTarget(cfg.Telegram.GroupLog); err != nil {
		return fmt.Errorf("telegram.group_log: %w", err)
	}
	if cronCheck != nil {
		if err := cronCheck(cfg.Update.Schedule); err != nil {
			return fmt.Errorf("update.schedule: %w", err)
		}
	}
	return nil
}
