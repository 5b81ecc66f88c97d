package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"tasky/internal/command"
	"tasky/internal/config"
	"tasky/internal/delivery"
	"tasky/internal/eventbus"
	"tasky/internal/reminder"
	"tasky/internal/runtime/supervisor"
	"tasky/internal/shell"
	"tasky/internal/storage"
	"tasky/internal/surface"
	kit "tasky/internal/transport"
	"tasky/internal/transport/console"
	telegram "tasky/internal/transport/telegram/adapter"
	"tasky/internal/transport/telegram/router"
	"tasky/internal/update"
	"tasky/pkg/logx"
	"tasky/pkg/systemd"
)

// Options carries what the host provides. Zero fields fall back to headless
// windows, stdin/stdout and the real clock.
type Options struct {
	ConfigPath string
	// EnvFiles are dotenv files overlaid on the config; edits reload it.
	EnvFiles []string
	// Version is the running build version, compared against the update feed.
	Version string

	Windows surface.WindowFactory
	Tray    surface.Tray
	Screen  surface.Screen

	Stdin  io.Reader
	Stdout io.Writer

	Clock      clockwork.Clock
	HTTPClient *http.Client
}

type App struct {
	opts Options
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched   *reminder.Scheduler
	pres    *delivery.Presenter
	windows *surface.WindowSurface
	shell   *shell.Shell
	disp    *command.Dispatcher

	tg        *telegram.Adapter
	router    *router.Router
	tgSurface *router.Surface
	prompter  *router.Prompter
	console   *console.Console

	upd            *update.Service
	updatesEnabled bool
	notify         *systemd.Notifier

	updates chan kit.Update

	stopOnce sync.Once
	stopReq  chan StopReason
}

func NewApp(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath, opts.EnvFiles...)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg, update.ValidateSchedule); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	// The chat sink needs the adapter, which needs a logger. Start with the
	// chat sink off and enable it once the target is set.
	bootCfg := mapLogConfig(cfg)
	bootCfg.Chat.Enabled = false
	logSvc, root := logx.New(bootCfg, nil)
	log := root.With(logx.String("comp", "app"))

	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		updates: make(chan kit.Update, 256),
		stopReq: make(chan StopReason, 1),
		notify:  systemd.NewNotifier(root.With(logx.String("comp", "systemd"))),
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.pres = delivery.NewPresenter(dcfg, nil, opts.Clock, root.With(logx.String("comp", "delivery")), a.bus)

	rcfg, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.sched = reminder.New(rcfg, a.fire, opts.Clock, root.With(logx.String("comp", "reminder")), a.bus)

	if err := a.buildShell(cfg, root); err != nil {
		return nil, err
	}

	reg := command.NewRegistry()
	a.disp = command.NewDispatcher(reg, root.With(logx.String("comp", "commands")), commandTimeout(cfg))
	if err := a.registerCommands(reg); err != nil {
		return nil, err
	}
	if cfg.Commands.Audit {
		if a.store == nil {
			log.Warn("commands.audit needs storage; audit disabled")
		} else {
			a.disp.Use(auditMiddleware(a.store, root.With(logx.String("comp", "audit"))))
		}
	}

	if cfg.Telegram.Enabled {
		if err := a.buildTelegram(cfg, root); err != nil {
			return nil, err
		}
	}
	logSvc.Apply(mapLogConfig(cfg))

	if cfg.Console.Enabled {
		a.console = console.New(opts.Stdin, opts.Stdout, a.disp, root.With(logx.String("comp", "console")))
	}
	a.pres.SetSurface(a.selectSurface(cfg))

	if err := a.buildUpdater(cfg, root); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildShell(cfg *config.Config, root logx.Logger) error {
	platform := platformOf(cfg)
	if a.opts.Windows == nil {
		a.opts.Windows = surface.NewHeadlessFactory(root.With(logx.String("comp", "window")))
	}
	if a.opts.Screen == nil {
		a.opts.Screen = surface.StaticScreen{X: 0, Y: 0, W: 1920, H: 1040}
	}
	if a.opts.Tray == nil {
		a.opts.Tray = surface.NewHeadlessTray(headlessTrayBounds(platform), root.With(logx.String("comp", "tray")))
	}
	name := strings.TrimSpace(cfg.App.Name)
	if name == "" {
		name = config.DefaultAppName
	}
	sh, err := shell.New(shell.Config{AppName: name, StartHidden: cfg.App.StartHidden},
		a.opts.Windows, a.opts.Tray, func() { a.RequestStop(StopQuit) }, root.With(logx.String("comp", "shell")))
	if err != nil {
		return err
	}
	a.shell = sh
	a.windows = surface.NewWindowSurface(a.opts.Windows, a.opts.Screen, a.opts.Tray, platform, root.With(logx.String("comp", "window")))
	return nil
}

func headlessTrayBounds(platform string) surface.Rect {
	if platform == surface.PlatformDarwin {
		return surface.Rect{X: 1880, Y: 0, W: 24, H: 24}
	}
	return surface.Rect{X: 1880, Y: 1040, W: 24, H: 24}
}

func (a *App) buildTelegram(cfg *config.Config, root logx.Logger) error {
	poll, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return err
	}
	tg, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
	}, root.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}
	a.tg = tg
	a.logs.SetSender(telegram.LogSender{Adapter: tg, Target: logTarget(cfg)})

	a.router = router.New(router.Config{Owners: cfg.Telegram.OwnerUserIDs}, tg, a.disp, root.With(logx.String("comp", "telegram.router")))
	a.tgSurface = router.NewSurface(tg, defaultChat(cfg), root.With(logx.String("comp", "telegram.surface")))
	a.prompter = router.NewPrompter(tg, defaultChat(cfg), root.With(logx.String("comp", "telegram.prompt")))

	a.router.HandleCallback("dismiss", a.router.CommandCallback(command.DeliveryDismiss, func(id string) any {
		return command.DismissArgs{ID: id}
	}))
	a.router.HandleCallback("update", a.prompter.Callback)
	return nil
}

func (a *App) buildUpdater(cfg *config.Config, root logx.Logger) error {
	ucfg, err := mapUpdateConfig(cfg, a.opts.Version)
	if err != nil {
		return err
	}
	ulog := root.With(logx.String("comp", "update"))
	checker := update.NewChecker(a.opts.HTTPClient, ucfg.FeedURL, ucfg.Platform, ucfg.Version, ulog)
	installer := update.NewStagingInstaller(a.opts.HTTPClient, ucfg.StagingDir, ulog)

	var prompter update.Prompter = update.PromptFunc(func(_ context.Context, rel update.Release) (bool, error) {
		ulog.Info("update available; no prompt surface, set update.auto_install to install unattended", logx.String("version", rel.Version))
		return false, nil
	})
	if a.prompter != nil {
		prompter = a.prompter
	}
	a.upd = update.New(ucfg, checker, prompter, installer, func(out update.Outcome) {
		a.log.Info("update staged", logx.String("version", out.Latest), logx.String("path", out.Staged))
		a.RequestStop(StopUpdate)
	}, ulog, a.bus)
	a.updatesEnabled = ucfg.Enabled
	return nil
}

// selectSurface builds the delivery surface for delivery.surface. The
// console always joins when enabled.
func (a *App) selectSurface(cfg *config.Config) delivery.Surface {
	var out delivery.Fanout
	switch config.SurfaceKind(cfg.Delivery) {
	case config.SurfaceTelegram:
		if a.tgSurface != nil {
			out = append(out, a.tgSurface)
		}
	case config.SurfaceBoth:
		out = append(out, a.windows)
		if a.tgSurface != nil {
			out = append(out, a.tgSurface)
		}
	default:
		out = append(out, a.windows)
	}
	if a.console != nil {
		out = append(out, a.console)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// fire runs on the scheduler loop when a reminder is due.
func (a *App) fire(ctx context.Context, p reminder.Pending) {
	if _, err := a.pres.Deliver(ctx, p.Task, p.ID); err != nil {
		a.log.Warn("deliver failed", logx.String("reminder_id", p.ID), logx.Err(err))
	}
}

// Dispatcher exposes the command surface to embedders and tests.
func (a *App) Dispatcher() *command.Dispatcher { return a.disp }

// RequestStop asks the process owner to stop. Only the first reason counts.
func (a *App) RequestStop(reason StopReason) {
	a.stopOnce.Do(func() {
		a.stopReq <- reason
	})
}

// StopRequested delivers the reason passed to RequestStop.
func (a *App) StopRequested() <-chan StopReason { return a.stopReq }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg, update.ValidateSchedule)
	})

	runCtx := a.sup.Context()
	a.pres.Start(runCtx)
	a.sched.Start(runCtx)

	if a.store != nil {
		events, unsub := a.bus.Subscribe(64)
		a.sup.Go0("history", func(c context.Context) {
			defer unsub()
			recordHistory(c, events, a.store, a.log.With(logx.String("comp", "history")))
		})
	}

	if a.tg != nil {
		if err := a.tg.Start(runCtx, a.updates); err != nil {
			return err
		}
		a.sup.Go("telegram.router", func(c context.Context) error {
			return a.router.Run(c, a.updates)
		})
		a.sup.Go0("telegram.menu", a.router.SyncMenu)
	}
	if a.console != nil {
		a.sup.Go("console", a.console.Run)
	}

	if err := a.upd.Start(runCtx); err != nil {
		// Update checks never block startup.
		a.log.Warn("update service not started", logx.Err(err))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", string(e.Type)), logx.Time("time", e.Time))
			}
		}
	})

	sub, unsubCfg := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer unsubCfg()
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.notify.Watchdog)

	a.notify.Ready()
	a.notify.Status("running")
	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes the live-reloadable settings to running components.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	a.notify.Reloading()
	defer a.notify.Ready()

	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.NeedsRestart(sections); len(restart) > 0 {
		a.log.Warn("config change needs a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	if a.tg != nil {
		a.logs.SetSender(telegram.LogSender{Adapter: a.tg, Target: logTarget(newCfg)})
		a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
		a.tgSurface.SetFallback(defaultChat(newCfg))
	}
	a.logs.Apply(mapLogConfig(newCfg))

	if rcfg, err := mapReminderConfig(newCfg); err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(rcfg)
	}
	if dcfg, err := mapDeliveryConfig(newCfg); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.pres.Apply(dcfg)
	}
	a.pres.SetSurface(a.selectSurface(newCfg))
	a.disp.SetDefaultTimeout(commandTimeout(newCfg))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// StopTimeout is the configured bound for Stop.
func (a *App) StopTimeout() time.Duration { return stopTimeout(a.cfgm.Get()) }

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := a.stepper(ctx)
	step("update", 2*time.Second, func(c context.Context) error { a.upd.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("delivery", 2*time.Second, func(c context.Context) error { a.pres.Stop(c); return nil })
	if a.tg != nil {
		step("telegram", 2*time.Second, func(c context.Context) error { return a.tg.Stop(c) })
	}
	step("shell", 1*time.Second, func(context.Context) error { a.shell.Close(); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
