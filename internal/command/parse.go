package command

import (
	"fmt"
	"strconv"
	"strings"

	"tasky/internal/reminder"
)

// verbs maps the text grammar to command names.
var verbs = map[string]string{
	"remind":  ReminderSchedule,
	"cancel":  ReminderCancel,
	"list":    ReminderList,
	"ls":      ReminderList,
	"dismiss": DeliveryDismiss,
	"show":    MainShow,
	"hide":    MainClose,
	"toggle":  TrayClick,
	"menu":    TrayMenu,
	"quit":    AppQuit,
	"history": HistoryList,
	"update":  UpdateCheck,
	"help":    Help,
	"start":   Help,
}

// Usage lines for the text grammar, keyed by command name.
var Usage = map[string]string{
	ReminderSchedule: `remind HH:MM <title...> [--body "text"] [--key k]`,
	ReminderCancel:   "cancel <id>",
	ReminderList:     "list",
	DeliveryDismiss:  "dismiss [id]",
	MainShow:         "show",
	MainClose:        "hide",
	TrayClick:        "toggle",
	TrayMenu:         "menu",
	AppQuit:          "quit",
	HistoryList:      "history [n]",
	UpdateCheck:      "update",
	Help:             "help [command]",
}

// ParseLine turns one line of user text into a Command. A leading "/" and a
// "@botname" suffix on the verb are accepted; quoted arguments are honoured.
func ParseLine(text string) (Command, error) {
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}
	verb := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	args := parts[1:]

	name, ok := verbs[verb]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
	cmd := Command{Name: name}

	switch name {
	case ReminderSchedule:
		pos, flags, _ := parseFlags(args)
		if len(pos) < 2 {
			return Command{}, fmt.Errorf("%w: usage: %s", ErrBadPayload, Usage[name])
		}
		cmd.Payload = ScheduleArgs{
			At: pos[0],
			Task: reminder.Task{
				Title: strings.Join(pos[1:], " "),
				Body:  flags["body"],
			},
			Key: flags["key"],
		}
	case ReminderCancel:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: usage: %s", ErrBadPayload, Usage[name])
		}
		cmd.Payload = CancelArgs{ID: args[0]}
	case DeliveryDismiss:
		if len(args) > 1 {
			return Command{}, fmt.Errorf("%w: usage: %s", ErrBadPayload, Usage[name])
		}
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		cmd.Payload = DismissArgs{ID: id}
	case HistoryList:
		var n int
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return Command{}, fmt.Errorf("%w: history limit %q", ErrBadPayload, args[0])
			}
			n = v
		}
		cmd.Payload = HistoryArgs{Limit: n}
	case Help:
		cmd.Payload = HelpArgs{Topic: strings.Join(args, " ")}
	}
	return cmd, nil
}

// tokenizeCommandLine splits command text into tokens while supporting quotes.
//
//	remind 09:05 "buy milk" --body='2 liters'
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
		quote bool
	)
	flush := func() {
		if buf.Len() > 0 || quote {
			out = append(out, buf.String())
			buf.Reset()
		}
		quote = false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
			quote = true
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// parseFlags splits raw args into positionals and flags.
//
// Supported:
//
//	--k=v, --k v, --flag (bool)
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--") && len(a) > 2 {
			key := strings.TrimPrefix(a, "--")
			if eq := strings.IndexByte(key, '='); eq >= 0 {
				flags[key[:eq]] = key[eq+1:]
				continue
			}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
				flags[key] = args[i+1]
				i++
				continue
			}
			bools[key] = true
			continue
		}
		pos = append(pos, a)
	}
	return pos, flags, bools
}
