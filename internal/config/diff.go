package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tasky/pkg/logx"
)

// RestartSections are applied only at startup. A change is logged with a warning.
var RestartSections = map[string]bool{
	"telegram.transport": true,
	"console":            true,
	"storage":            true,
	"update":             true,
}

// SummarizeConfigChange returns (1) a sorted list of changed sections and
// (2) safe structured fields for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.App != newCfg.App {
		changed = append(changed, "app")
		attrs = append(attrs,
			logx.String("app.name", newCfg.App.Name),
			logx.Bool("app.start_hidden", newCfg.App.StartHidden),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Telegram: owners and default chat are live; token/poll need a restart.
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) || ot.DefaultChatID != nt.DefaultChatID ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.default_chat_set", nt.DefaultChatID != 0),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}
	if ot.Enabled != nt.Enabled || ot.Token != nt.Token || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		changed = append(changed, "telegram.transport")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", nt.Enabled),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
		)
	}

	if oldCfg.Console != newCfg.Console {
		changed = append(changed, "console")
		attrs = append(attrs, logx.Bool("console.enabled", newCfg.Console.Enabled))
	}

	if oldCfg.Commands != newCfg.Commands {
		changed = append(changed, "commands")
		attrs = append(attrs,
			logx.String("commands.default_timeout", newCfg.Commands.DefaultTimeout),
			logx.Bool("commands.audit", newCfg.Commands.Audit),
		)
	}

	if !reflect.DeepEqual(oldCfg.Reminder, newCfg.Reminder) {
		changed = append(changed, "reminder")
		attrs = append(attrs,
			logx.String("reminder.timezone", newCfg.Reminder.Timezone),
			logx.String("reminder.past_policy", newCfg.Reminder.PastPolicy),
			logx.Bool("reminder.supersede", SupersedeEnabled(newCfg.Reminder)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Delivery, newCfg.Delivery) {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.String("delivery.dismiss_after", derefStr(newCfg.Delivery.DismissAfter)),
			logx.String("delivery.surface", newCfg.Delivery.Surface),
		)
	}

	if oldCfg.Update != newCfg.Update {
		changed = append(changed, "update")
		attrs = append(attrs,
			logx.Bool("update.enabled", newCfg.Update.Enabled),
			logx.String("update.feed_url", newCfg.Update.FeedURL),
			logx.String("update.schedule", newCfg.Update.Schedule),
		)
	}

	// Nil means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// NeedsRestart filters changed sections down to those not applied live.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, c := range changed {
		if RestartSections[c] {
			out = append(out, c)
		}
	}
	return out
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
