package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "20s", "6h").
type Config struct {
	App      AppConfig      `json:"app"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Console  ConsoleConfig  `json:"console"`
	Commands CommandsConfig `json:"commands"`
	Reminder ReminderConfig `json:"reminder"`
	Delivery DeliveryConfig `json:"delivery"`
	Update   UpdateConfig   `json:"update"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type AppConfig struct {
	// Name is used for the tray tooltip and window title. Default "Tasky".
	Name string `json:"name,omitempty"`
	// Version overrides the build version, mostly for testing updates.
	Version     string `json:"version,omitempty"`
	StartHidden bool   `json:"start_hidden,omitempty"`
	// StopTimeout bounds graceful shutdown. Default "10s".
	StopTimeout string `json:"stop_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TelegramConfig struct {
	Enabled bool `json:"enabled"`
	// Token may be left empty and supplied via TASKY_TELEGRAM_TOKEN.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// DefaultChatID receives deliveries that did not come from a chat and
	// update prompts. Defaults to the first owner.
	DefaultChatID int64 `json:"default_chat_id,omitempty"`
	// GroupLog is "<chat_id>" or "<chat_id>:<thread_id>" for the log sink.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type ConsoleConfig struct {
	Enabled bool `json:"enabled"`
}

type CommandsConfig struct {
	// DefaultTimeout bounds a command handler. Default "10s".
	DefaultTimeout string `json:"default_timeout,omitempty"`
	// Audit records every dispatched command in storage.
	Audit bool `json:"audit,omitempty"`
}

// ReminderConfig controls the reminder scheduler.
//
// Example:
//
//	"reminder": { "timezone": "Asia/Jakarta", "past_policy": "rollover", "supersede": true }
type ReminderConfig struct {
	Timezone string `json:"timezone,omitempty"`
	// PastPolicy is "rollover" (default), "immediate" or "reject".
	PastPolicy string `json:"past_policy,omitempty"`
	// Supersede defaults to true when omitted.
	Supersede *bool `json:"supersede,omitempty"`
}

type DeliveryConfig struct {
	// DismissAfter closes a visible delivery. Default "20s"; "0s" disables.
	DismissAfter *string `json:"dismiss_after,omitempty"`
	// Surface is "window", "telegram" or "both". Default "window".
	Surface        string `json:"surface,omitempty"`
	SurfaceTimeout string `json:"surface_timeout,omitempty"`
	// Platform overrides the detected platform for window placement and the
	// update feed ("darwin", "win32", "linux").
	Platform string `json:"platform,omitempty"`
}

type UpdateConfig struct {
	Enabled bool   `json:"enabled"`
	FeedURL string `json:"feed_url"`
	// Schedule is an optional cron expression (5 or 6 fields, or @every 6h).
	Schedule    string `json:"schedule,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	StagingDir  string `json:"staging_dir,omitempty"`
	AutoInstall bool   `json:"auto_install,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tasky.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
