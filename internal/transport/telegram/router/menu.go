package router

import (
	"context"
	"strings"
	"unicode"

	"tasky/internal/command"
	kit "tasky/internal/transport"
	"tasky/pkg/logx"
)

// sanitizeCommand converts a verb into a Telegram-safe bot command name.
// Telegram command names are restricted to [a-z0-9_]{1,32}.
func sanitizeCommand(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "/")
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	// Clients expect commands to start with a letter.
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// MenuCommands lists one menu entry per registered command, using the first
// word of its usage line as the bot command.
func MenuCommands(reg *command.Registry) []kit.BotCommand {
	var out []kit.BotCommand
	seen := map[string]bool{}
	for _, e := range reg.Entries() {
		usage := e.Usage
		if usage == "" {
			usage = command.Usage[e.Name]
		}
		verb, _, _ := strings.Cut(usage, " ")
		name := sanitizeCommand(verb)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(e.Description), "\n", " ")
		out = append(out, kit.BotCommand{Command: name, Description: desc})
	}
	return out
}

// SyncMenu pushes the command menu when the adapter supports it.
func (r *Router) SyncMenu(ctx context.Context) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	if err := up.UpdateMenuCommands(ctx, MenuCommands(r.disp.Registry())); err != nil {
		r.log.Warn("menu update failed", logx.Err(err))
	}
}
