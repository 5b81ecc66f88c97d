package reminder

import (
	"container/heap"
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tasky/internal/eventbus"
	"tasky/pkg/logx"
)

// maxSleepCap bounds a single wait so wall-clock steps (NTP, DST, suspend)
// are noticed within a minute.
const maxSleepCap = 60 * time.Second

type opKind int

const (
	opArm opKind = iota
	opCancel
	opList
)

type op struct {
	kind  opKind
	p     *Pending
	id    string
	reply chan opReply
}

type opReply struct {
	ok         bool
	superseded []string
	list       []Pending
}

type Scheduler struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location

	clock clockwork.Clock
	fire  FireFunc
	log   logx.Logger
	bus   eventbus.Bus

	seq atomic.Uint64

	runMu  sync.Mutex
	ops    chan op
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a scheduler. fire must not be nil. clk, bus and log may be zero
// values; they default to the real clock, a no-op bus and a no-op logger.
func New(cfg Config, fire FireFunc, clk clockwork.Clock, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	s := &Scheduler{
		clock: clk,
		fire:  fire,
		log:   log,
		bus:   bus,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps policy, timezone and supersede settings. Armed reminders keep
// the target they were computed with.
func (s *Scheduler) Apply(cfg Config) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyRollover
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	s.mu.Lock()
	s.cfg = cfg
	s.loc = loc
	s.mu.Unlock()
}

// Config returns the active settings.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start launches the scheduler loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return
	}
	lctx, cancel := context.WithCancel(ctx)
	s.ops = make(chan op)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(lctx, s.ops, s.done)

	s.mu.Lock()
	tz, pol := s.loc.String(), s.cfg.Policy
	s.mu.Unlock()
	s.log.Info("service started", logx.String("tz", tz), logx.String("past_policy", string(pol)))
}

// Stop ends the loop and drops every armed reminder.
func (s *Scheduler) Stop(ctx context.Context) {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done, s.ops = nil, nil, nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	start := time.Now()
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Schedule arms a one-shot reminder and returns immediately.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*Handle, error) {
	if strings.TrimSpace(req.Task.Title) == "" {
		return nil, invalidf("task title required")
	}

	s.mu.Lock()
	loc, pol := s.loc, s.cfg.Policy
	s.mu.Unlock()

	now := s.clock.Now()
	target, delay, err := ComputeTarget(now, req.At, loc, pol)
	if err != nil {
		return nil, err
	}

	p := &Pending{
		ID:      uuid.NewString(),
		Key:     normalizeKey(req.Key, req.Task.Title),
		Task:    req.Task.Clone(),
		At:      req.At,
		Target:  target,
		Delay:   delay,
		ArmedAt: now,
		seq:     s.seq.Add(1),
	}
	rep, err := s.call(ctx, op{kind: opArm, p: p})
	if err != nil {
		return nil, err
	}

	s.log.Info("reminder armed",
		logx.String("id", p.ID),
		logx.String("at", req.At.String()),
		logx.Time("target", target),
		logx.Duration("delay", delay),
		logx.Int("superseded", len(rep.superseded)),
	)
	eventbus.Emit(s.bus, eventbus.ReminderArmed, *p)
	for _, id := range rep.superseded {
		eventbus.Emit(s.bus, eventbus.ReminderSuperseded, id)
	}
	return &Handle{s: s, p: *p, superseded: rep.superseded}, nil
}

// Cancel disarms the reminder with id.
func (s *Scheduler) Cancel(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	rep, err := s.call(context.Background(), op{kind: opCancel, id: id})
	if err != nil || !rep.ok {
		return false
	}
	s.log.Info("reminder cancelled", logx.String("id", id))
	eventbus.Emit(s.bus, eventbus.ReminderCancelled, id)
	return true
}

// Pending lists armed reminders in firing order.
func (s *Scheduler) Pending() []Pending {
	rep, err := s.call(context.Background(), op{kind: opList})
	if err != nil {
		return nil
	}
	return rep.list
}

func (s *Scheduler) call(ctx context.Context, o op) (opReply, error) {
	s.runMu.Lock()
	ops, done := s.ops, s.done
	s.runMu.Unlock()
	if ops == nil {
		return opReply{}, ErrNotRunning
	}
	o.reply = make(chan opReply, 1)
	select {
	case ops <- o:
	case <-done:
		return opReply{}, ErrNotRunning
	case <-ctx.Done():
		return opReply{}, ctx.Err()
	}
	select {
	case r := <-o.reply:
		return r, nil
	case <-done:
		return opReply{}, ErrNotRunning
	}
}

// run is the only goroutine touching the heap.
func (s *Scheduler) run(ctx context.Context, ops <-chan op, done chan struct{}) {
	defer close(done)

	h := &pendingHeap{}
	var (
		timer  clockwork.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	rearm := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if h.Len() == 0 {
			return
		}
		d := (*h)[0].Target.Sub(s.clock.Now())
		if d > maxSleepCap {
			d = maxSleepCap
		}
		if d < 0 {
			d = 0
		}
		timer = s.clock.NewTimer(d)
		timerC = timer.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			if h.Len() > 0 {
				s.log.Info("dropping armed reminders", logx.Int("count", h.Len()))
			}
			return

		case o := <-ops:
			var rep opReply
			switch o.kind {
			case opArm:
				cfg := s.Config()
				if cfg.Supersede {
					for _, id := range h.idsByKey(o.p.Key) {
						if _, ok := h.removeByID(id); ok {
							rep.superseded = append(rep.superseded, id)
						}
					}
				}
				heap.Push(h, o.p)
				rep.ok = true
			case opCancel:
				_, rep.ok = h.removeByID(o.id)
			case opList:
				rep.list = snapshot(*h)
			}
			rearm()
			o.reply <- rep

		case <-timerC:
			timer, timerC = nil, nil
			now := s.clock.Now()
			for h.Len() > 0 && !(*h)[0].Target.After(now) {
				p := heap.Pop(h).(*Pending)
				s.fireOne(ctx, *p)
			}
			rearm()
		}
	}
}

func (s *Scheduler) fireOne(ctx context.Context, p Pending) {
	late := s.clock.Now().Sub(p.Target)
	s.log.Info("reminder fired", logx.String("id", p.ID), logx.String("key", p.Key), logx.Duration("late", late))
	eventbus.Emit(s.bus, eventbus.ReminderFired, p)
	if s.fire == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("fire callback panicked",
				logx.String("id", p.ID),
				logx.String("panic", fmt.Sprint(r)),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	s.fire(ctx, p)
}

func snapshot(h pendingHeap) []Pending {
	out := make([]Pending, 0, len(h))
	for _, p := range h {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target.Equal(out[j].Target) {
			return out[i].seq < out[j].seq
		}
		return out[i].Target.Before(out[j].Target)
	})
	return out
}
