package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tasky/internal/eventbus"
	"tasky/internal/reminder"
	"tasky/pkg/logx"
)

type reqKind int

const (
	reqDeliver reqKind = iota
	reqDismiss
	reqCurrent
)

type request struct {
	kind       reqKind
	task       reminder.Task
	reminderID string
	id         string
	reply      chan response
}

type response struct {
	d   Delivery
	ok  bool
	err error
}

// Presenter owns the visible delivery. Every state change happens on its loop.
type Presenter struct {
	mu      sync.Mutex
	cfg     Config
	surface Surface

	clock clockwork.Clock
	log   logx.Logger
	bus   eventbus.Bus

	runMu  sync.Mutex
	reqs   chan request
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPresenter(cfg Config, surface Surface, clk clockwork.Clock, log logx.Logger, bus eventbus.Bus) *Presenter {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	p := &Presenter{surface: surface, clock: clk, log: log, bus: bus}
	p.Apply(cfg)
	return p
}

// Apply updates timeouts. A visible delivery keeps its running timer.
func (p *Presenter) Apply(cfg Config) {
	if cfg.DismissAfter < 0 {
		cfg.DismissAfter = 0
	}
	if cfg.SurfaceTimeout <= 0 {
		cfg.SurfaceTimeout = DefaultSurfaceTimeout
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Presenter) config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetSurface swaps the surface used for the next delivery. A visible
// delivery is still closed on the surface that showed it.
func (p *Presenter) SetSurface(s Surface) {
	p.mu.Lock()
	p.surface = s
	p.mu.Unlock()
}

func (p *Presenter) currentSurface() Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

func (p *Presenter) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.done != nil {
		return
	}
	lctx, cancel := context.WithCancel(ctx)
	p.reqs = make(chan request)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(lctx, p.reqs, p.done)
	p.log.Info("service started", logx.Duration("dismiss_after", p.config().DismissAfter))
}

// Stop dismisses the visible delivery with ReasonShutdown and ends the loop.
func (p *Presenter) Stop(ctx context.Context) {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.reqs = nil, nil, nil
	p.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	p.log.Info("service stopped")
}

// Deliver shows task, superseding whatever is visible.
func (p *Presenter) Deliver(ctx context.Context, task reminder.Task, reminderID string) (Delivery, error) {
	r, err := p.call(ctx, request{kind: reqDeliver, task: task.Clone(), reminderID: reminderID})
	if err != nil {
		return Delivery{}, err
	}
	return r.d, r.err
}

// Dismiss closes the visible delivery. An empty id means whichever is
// visible. It reports false when nothing matching is visible.
func (p *Presenter) Dismiss(ctx context.Context, id string) bool {
	r, err := p.call(ctx, request{kind: reqDismiss, id: id})
	return err == nil && r.ok
}

// Current returns the visible delivery, if any.
func (p *Presenter) Current() (Delivery, bool) {
	r, err := p.call(context.Background(), request{kind: reqCurrent})
	if err != nil {
		return Delivery{}, false
	}
	return r.d, r.ok
}

func (p *Presenter) call(ctx context.Context, r request) (response, error) {
	p.runMu.Lock()
	reqs, done := p.reqs, p.done
	p.runMu.Unlock()
	if reqs == nil {
		return response{}, ErrNotRunning
	}
	r.reply = make(chan response, 1)
	select {
	case reqs <- r:
	case <-done:
		return response{}, ErrNotRunning
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-r.reply:
		return resp, nil
	case <-done:
		return response{}, ErrNotRunning
	}
}

func (p *Presenter) run(ctx context.Context, reqs <-chan request, done chan struct{}) {
	defer close(done)

	var (
		cur     *Delivery
		shownOn Surface
		timer   clockwork.Timer
		timerC  <-chan time.Time
		timed   string
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC, timed = nil, nil, ""
	}
	dismiss := func(reason Reason) Delivery {
		stopTimer()
		d, s := *cur, shownOn
		cur, shownOn = nil, nil
		d.State = StateDismissed
		d.Reason = reason
		d.DismissedAt = p.clock.Now()
		p.closeOn(s, d)
		p.log.Info("delivery dismissed", logx.String("id", d.ID), logx.String("reason", string(reason)))
		eventbus.Emit(p.bus, eventbus.DeliveryDismissed, d)
		return d
	}

	for {
		select {
		case <-ctx.Done():
			if cur != nil {
				dismiss(ReasonShutdown)
			}
			return

		case r := <-reqs:
			var resp response
			switch r.kind {
			case reqDeliver:
				if cur != nil {
					dismiss(ReasonSuperseded)
				}
				d, s, err := p.show(r.task, r.reminderID)
				if err != nil {
					resp.err = err
					break
				}
				cur, shownOn = &d, s
				if after := p.config().DismissAfter; after > 0 {
					timer = p.clock.NewTimer(after)
					timerC = timer.Chan()
					timed = d.ID
				}
				resp.d, resp.ok = d, true
			case reqDismiss:
				if cur != nil && (r.id == "" || r.id == cur.ID) {
					resp.d, resp.ok = dismiss(ReasonUser), true
				}
			case reqCurrent:
				if cur != nil {
					resp.d, resp.ok = *cur, true
				}
			}
			r.reply <- resp

		case <-timerC:
			id := timed
			timer, timerC, timed = nil, nil, ""
			if cur == nil || cur.ID != id {
				continue
			}
			dismiss(ReasonTimeout)
		}
	}
}

func (p *Presenter) show(task reminder.Task, reminderID string) (Delivery, Surface, error) {
	s := p.currentSurface()
	if s == nil {
		return Delivery{}, nil, ErrNoSurface
	}
	d := Delivery{
		ID:         uuid.NewString(),
		ReminderID: reminderID,
		Task:       task,
		State:      StateVisible,
		ShownAt:    p.clock.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.config().SurfaceTimeout)
	defer cancel()
	if err := s.Show(ctx, d); err != nil {
		p.log.Warn("delivery show failed", logx.String("reminder_id", reminderID), logx.Err(err))
		return Delivery{}, nil, fmt.Errorf("show delivery: %w", err)
	}
	p.log.Info("delivery shown", logx.String("id", d.ID), logx.String("reminder_id", reminderID), logx.String("title", task.Title))
	eventbus.Emit(p.bus, eventbus.DeliveryShown, d)
	return d, s, nil
}

func (p *Presenter) closeOn(s Surface, d Delivery) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.config().SurfaceTimeout)
	defer cancel()
	if err := s.Close(ctx, d); err != nil {
		p.log.Warn("delivery close failed", logx.String("id", d.ID), logx.Err(err))
	}
}
