package update

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tasky/internal/eventbus"
	"tasky/pkg/logx"
)

type Config struct {
	Enabled    bool
	FeedURL    string
	Platform   string
	Version    string
	Schedule   string
	Timeout    time.Duration
	StagingDir string
	// AutoInstall skips the prompt.
	AutoInstall bool
}

// Outcome summarizes one check-and-maybe-install run.
type Outcome struct {
	Current   string
	Latest    string
	Available bool
	Accepted  bool
	Staged    string
}

func (o Outcome) String() string {
	switch {
	case o.Staged != "":
		return fmt.Sprintf("update %s staged at %s, restarting", o.Latest, o.Staged)
	case o.Available && !o.Accepted:
		return fmt.Sprintf("update %s available (running %s), declined", o.Latest, o.Current)
	case o.Available:
		return fmt.Sprintf("update %s available", o.Latest)
	default:
		return fmt.Sprintf("up to date (%s)", o.Current)
	}
}

// Service runs the startup check, the optional cron re-check and manual
// checks. A staged update calls onInstalled; the caller is expected to stop
// the process.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	checker   *Checker
	prompter  Prompter
	installer Installer

	onInstalled func(Outcome)
	log         logx.Logger
	bus         eventbus.Bus

	parser  cron.Parser
	c       *cron.Cron
	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func New(cfg Config, checker *Checker, prompter Prompter, installer Installer, onInstalled func(Outcome), log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if prompter == nil {
		prompter = Always
	}
	return &Service{
		cfg:         cfg,
		checker:     checker,
		prompter:    prompter,
		installer:   installer,
		onInstalled: onInstalled,
		log:         log,
		bus:         bus,
		parser:      scheduleParser,
	}
}

// scheduleParser accepts 5 or 6 fields and descriptors like "@every 6h".
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a cron expression. Empty means no schedule.
func ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	_, err := scheduleParser.Parse(spec)
	return err
}

// Start launches the startup check in the background and registers the cron
// schedule. It never blocks on the network.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("update checks disabled")
		return nil
	}
	if s.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if spec := strings.TrimSpace(s.cfg.Schedule); spec != "" {
		c := cron.New(cron.WithParser(s.parser))
		if _, err := c.AddFunc(spec, func() { s.background(runCtx, "cron") }); err != nil {
			cancel()
			s.cancel = nil
			return fmt.Errorf("update schedule %q: %w", spec, err)
		}
		c.Start()
		s.c = c
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.background(runCtx, "startup")
	}()
	s.log.Info("service started", logx.String("feed", s.cfg.FeedURL), logx.String("platform", s.checker.Platform()), logx.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel, c := s.cancel, s.c
	s.cancel, s.c = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if c != nil {
		<-c.Stop().Done()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for update check")
	}
	s.log.Info("service stopped")
}

// background runs one check and only logs failures.
func (s *Service) background(ctx context.Context, trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in update check", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	out, err := s.CheckNow(ctx)
	if err != nil {
		if errors.Is(err, ErrCheckInProgress) || errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warn("update check failed", logx.String("trigger", trigger), logx.Err(err))
		return
	}
	s.log.Info("update check done", logx.String("trigger", trigger), logx.String("result", out.String()))
}

// CheckNow checks the feed, prompts when a newer version exists and stages
// it on yes. Only one check runs at a time.
func (s *Service) CheckNow(ctx context.Context) (Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrCheckInProgress
	}
	defer s.running.Store(false)

	s.mu.Lock()
	cfg, prompter := s.cfg, s.prompter
	s.mu.Unlock()

	checkCtx, cancel := withTimeout(ctx, cfg.Timeout)
	res, err := s.checker.Check(checkCtx)
	cancel()
	if err != nil {
		eventbus.Emit(s.bus, eventbus.UpdateFailed, err.Error())
		return Outcome{}, err
	}
	out := Outcome{Current: res.Current, Latest: res.Release.Version, Available: res.Available}
	if !res.Available {
		return out, nil
	}
	eventbus.Emit(s.bus, eventbus.UpdateAvailable, res.Release.Version)
	s.log.Info("found new version", logx.String("current", res.Current), logx.String("latest", res.Release.Version))

	accepted := cfg.AutoInstall
	if !accepted {
		// The prompt waits for a human; the check timeout does not apply.
		accepted, err = prompter.Confirm(ctx, res.Release)
		if err != nil {
			return out, fmt.Errorf("prompt: %w", err)
		}
	}
	out.Accepted = accepted
	if !accepted || s.installer == nil {
		return out, nil
	}

	f, ok := res.Release.Artifact()
	if !ok {
		err := checkFailed("release %s lists no artifact", res.Release.Version)
		eventbus.Emit(s.bus, eventbus.UpdateFailed, err.Error())
		return out, err
	}
	u, err := s.checker.artifactURL(f)
	if err != nil {
		return out, err
	}
	staged, err := s.installer.Install(ctx, Artifact{Version: res.Release.Version, URL: u, SHA512: f.SHA512, Size: f.Size})
	if err != nil {
		eventbus.Emit(s.bus, eventbus.UpdateFailed, err.Error())
		return out, err
	}
	out.Staged = staged
	eventbus.Emit(s.bus, eventbus.UpdateInstalled, out)
	if s.onInstalled != nil {
		s.onInstalled(out)
	}
	return out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
