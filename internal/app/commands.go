package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tasky/internal/command"
	"tasky/internal/reminder"
)

const (
	shortIDLen     = 8
	defaultHistory = 10
	maxHistory     = 100
	// update.check waits for the yes/no answer.
	updateCheckTimeout = 10 * time.Minute
)

func (a *App) registerCommands(reg *command.Registry) error {
	owner := func(name, desc string, h command.HandlerFunc) command.Entry {
		return command.Entry{Name: name, Description: desc, Usage: command.Usage[name], Access: command.AccessOwnerOnly, Handle: h}
	}
	entries := []command.Entry{
		owner(command.ReminderSchedule, "arm a reminder for a time of day", a.cmdSchedule),
		owner(command.ReminderCancel, "cancel a pending reminder", a.cmdCancel),
		owner(command.ReminderList, "list pending reminders", a.cmdList),
		owner(command.DeliveryDismiss, "dismiss the visible reminder", a.cmdDismiss),
		owner(command.MainShow, "show the main window", a.cmdMainShow),
		owner(command.MainClose, "hide the main window", a.cmdMainClose),
		owner(command.TrayClick, "toggle the main window", a.cmdTrayClick),
		owner(command.TrayMenu, "open the tray menu", a.cmdTrayMenu),
		owner(command.AppQuit, "quit the app", a.cmdQuit),
		owner(command.HistoryList, "recent deliveries", a.cmdHistory),
		owner(command.UpdateCheck, "check for a new version", a.cmdUpdate),
		{Name: command.Help, Description: "show commands", Usage: command.Usage[command.Help], Handle: a.cmdHelp},
	}
	for i := range entries {
		if entries[i].Name == command.UpdateCheck {
			entries[i].Timeout = updateCheckTimeout
		}
		if err := reg.RegisterEntry(entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cmdSchedule(ctx context.Context, req *command.Request) (command.Result, error) {
	args, err := command.PayloadAs[command.ScheduleArgs](req.Command)
	if err != nil {
		return command.Result{}, err
	}
	at, err := reminder.ParseTimeOfDay(args.At)
	if err != nil {
		return command.Result{}, err
	}
	task := args.Task.Clone()
	if len(req.Command.Caller.Meta) > 0 {
		if task.Meta == nil {
			task.Meta = map[string]string{}
		}
		for k, v := range req.Command.Caller.Meta {
			if _, set := task.Meta[k]; !set {
				task.Meta[k] = v
			}
		}
	}
	h, err := a.sched.Schedule(ctx, reminder.Request{At: at, Task: task, Key: args.Key})
	if err != nil {
		return command.Result{}, err
	}
	text := fmt.Sprintf("reminder %s armed for %s (in %s)",
		shortID(h.ID()), h.Target().Format("Mon 15:04"), roundDelay(h.Delay()))
	if n := len(h.Superseded()); n > 0 {
		text += fmt.Sprintf(", replaced %d", n)
	}
	return command.Result{Text: text, Data: h.Pending()}, nil
}

func (a *App) cmdCancel(_ context.Context, req *command.Request) (command.Result, error) {
	args, err := command.PayloadAs[command.CancelArgs](req.Command)
	if err != nil {
		return command.Result{}, err
	}
	id, err := resolvePendingID(a.sched.Pending(), args.ID)
	if err != nil {
		return command.Result{Text: err.Error()}, nil
	}
	if !a.sched.Cancel(id) {
		return command.Result{Text: "no pending reminder " + args.ID}, nil
	}
	return command.Result{Text: "cancelled " + shortID(id)}, nil
}

func (a *App) cmdList(_ context.Context, _ *command.Request) (command.Result, error) {
	pending := a.sched.Pending()
	if len(pending) == 0 {
		return command.Result{Text: "no pending reminders"}, nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Target.Before(pending[j].Target) })
	lines := make([]string, 0, len(pending)+1)
	lines = append(lines, fmt.Sprintf("%d pending:", len(pending)))
	for _, p := range pending {
		lines = append(lines, fmt.Sprintf("- %s %s %s", shortID(p.ID), p.Target.Format("Mon 15:04"), p.Task.Title))
	}
	return command.Result{Text: strings.Join(lines, "\n"), Data: pending}, nil
}

func (a *App) cmdDismiss(ctx context.Context, req *command.Request) (command.Result, error) {
	args, err := command.PayloadAs[command.DismissArgs](req.Command)
	if err != nil {
		return command.Result{}, err
	}
	if !a.pres.Dismiss(ctx, strings.TrimSpace(args.ID)) {
		return command.Result{Text: "nothing to dismiss"}, nil
	}
	return command.Result{Text: "dismissed"}, nil
}

func (a *App) cmdMainShow(context.Context, *command.Request) (command.Result, error) {
	a.shell.ShowMain()
	return command.Result{Text: "main window shown"}, nil
}

func (a *App) cmdMainClose(context.Context, *command.Request) (command.Result, error) {
	a.shell.HideMain()
	return command.Result{Text: "main window hidden"}, nil
}

func (a *App) cmdTrayClick(context.Context, *command.Request) (command.Result, error) {
	a.shell.Toggle()
	if a.shell.MainVisible() {
		return command.Result{Text: "main window shown"}, nil
	}
	return command.Result{Text: "main window hidden"}, nil
}

func (a *App) cmdTrayMenu(context.Context, *command.Request) (command.Result, error) {
	a.shell.PopUpMenu()
	return command.Result{Text: "menu opened"}, nil
}

func (a *App) cmdQuit(context.Context, *command.Request) (command.Result, error) {
	a.RequestStop(StopQuit)
	return command.Result{Text: "bye"}, nil
}

func (a *App) cmdHistory(ctx context.Context, req *command.Request) (command.Result, error) {
	if a.store == nil {
		return command.Result{Text: "history is off (storage.driver is none)"}, nil
	}
	args, err := command.PayloadAs[command.HistoryArgs](req.Command)
	if err != nil {
		return command.Result{}, err
	}
	n := args.Limit
	if n <= 0 {
		n = defaultHistory
	}
	n = min(n, maxHistory)
	recs, err := a.store.RecentDeliveries(ctx, n)
	if err != nil {
		return command.Result{}, fmt.Errorf("read history: %w", err)
	}
	if len(recs) == 0 {
		return command.Result{Text: "no deliveries yet"}, nil
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("- %s %s [%s]", r.ShownAt.Local().Format("Jan 02 15:04"), r.Title, r.Reason))
	}
	return command.Result{Text: strings.Join(lines, "\n"), Data: recs}, nil
}

func (a *App) cmdUpdate(ctx context.Context, _ *command.Request) (command.Result, error) {
	if !a.updatesEnabled {
		return command.Result{Text: "update checks are disabled"}, nil
	}
	out, err := a.upd.CheckNow(ctx)
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{Text: out.String(), Data: out}, nil
}

func (a *App) cmdHelp(_ context.Context, req *command.Request) (command.Result, error) {
	args, err := command.PayloadAs[command.HelpArgs](req.Command)
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{Text: a.disp.Registry().HelpText(args.Topic)}, nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func roundDelay(d time.Duration) time.Duration {
	if d < time.Minute {
		return d.Round(time.Second)
	}
	return d.Round(time.Minute)
}

var errAmbiguousID = errors.New("ambiguous id")

// resolvePendingID accepts a full id or a unique prefix of one, as printed
// by list.
func resolvePendingID(pending []reminder.Pending, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: id required", command.ErrBadPayload)
	}
	var match string
	for _, p := range pending {
		if p.ID == id {
			return id, nil
		}
		if strings.HasPrefix(p.ID, id) {
			if match != "" {
				return "", fmt.Errorf("%w %q", errAmbiguousID, id)
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no pending reminder %s", id)
	}
	return match, nil
}
