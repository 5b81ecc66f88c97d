package router

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"tasky/internal/command"
	rtsup "tasky/internal/runtime/supervisor"
	kit "tasky/internal/transport"
	"tasky/pkg/logx"
)

// Meta keys copied into commands, and from there into scheduled tasks.
const (
	MetaChatID   = "chat_id"
	MetaThreadID = "thread_id"
	MetaFromID   = "from_id"
)

// CallbackFunc handles an inline-button press. The returned text is shown
// as the callback answer.
type CallbackFunc func(ctx context.Context, cb kit.Callback, payload string, owner bool) (string, error)

type Config struct {
	Owners  []int64
	Workers int
	Queue   int
}

// Router turns chat updates into dispatcher commands and routes inline
// button presses ("<action>:<payload>") to registered callbacks.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	disp    *command.Dispatcher

	mu     sync.RWMutex
	owners []int64

	cbMu      sync.RWMutex
	callbacks map[string]CallbackFunc

	workers int
	jobs    chan func()
}

func New(cfg Config, adapter kit.Adapter, disp *command.Dispatcher, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	return &Router{
		log:       log,
		adapter:   adapter,
		disp:      disp,
		owners:    append([]int64(nil), cfg.Owners...),
		callbacks: map[string]CallbackFunc{},
		workers:   cfg.Workers,
		jobs:      make(chan func(), cfg.Queue),
	}
}

// SetOwners updates the owner list used for owner-only commands.
func (r *Router) SetOwners(owners []int64) {
	r.mu.Lock()
	r.owners = append([]int64(nil), owners...)
	r.mu.Unlock()
}

func (r *Router) isOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.owners {
		if o == id {
			return true
		}
	}
	return false
}

// HandleCallback registers fn for buttons whose data starts with "action:".
func (r *Router) HandleCallback(action string, fn CallbackFunc) {
	r.cbMu.Lock()
	r.callbacks[action] = fn
	r.cbMu.Unlock()
}

// Run consumes updates until ctx ends or updates is closed. Jobs run on a
// bounded worker pool.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))))
	for i := 0; i < r.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("command router started", logx.Int("workers", r.workers), logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		r.log.Info("command router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) enqueue(job func()) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		return false
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, *up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, *up.Callback)
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, msg kit.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, err := command.ParseLine(text)
	if err != nil {
		r.reply(ctx, to, replyForError(err))
		return
	}
	cmd.Caller = command.Caller{
		Source: "telegram",
		Owner:  r.isOwner(msg.FromID),
		Meta: map[string]string{
			MetaChatID:   strconv.FormatInt(msg.ChatID, 10),
			MetaThreadID: strconv.Itoa(msg.ThreadID),
			MetaFromID:   strconv.FormatInt(msg.FromID, 10),
		},
	}

	if !r.enqueue(func() {
		res, err := r.disp.Dispatch(ctx, cmd)
		if err != nil {
			r.reply(ctx, to, replyForError(err))
			return
		}
		if res.Text != "" {
			r.reply(ctx, to, res.Text)
		}
	}) {
		r.reply(ctx, to, "busy, try again")
	}
}

func (r *Router) routeCallback(ctx context.Context, cb kit.Callback) {
	action, payload, _ := strings.Cut(strings.TrimSpace(cb.Data), ":")
	r.cbMu.RLock()
	fn, ok := r.callbacks[action]
	r.cbMu.RUnlock()
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	owner := r.isOwner(cb.FromID)
	if !r.enqueue(func() {
		answer, err := fn(ctx, cb, payload, owner)
		if err != nil {
			r.log.Warn("callback failed", logx.String("action", action), logx.Int64("from_id", cb.FromID), logx.Err(err))
			answer = replyForError(err)
		}
		_ = r.adapter.AnswerCallback(ctx, cb.ID, answer)
	}) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (r *Router) reply(ctx context.Context, to kit.ChatTarget, text string) {
	if _, err := r.adapter.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}

func replyForError(err error) string {
	switch {
	case errors.Is(err, command.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, command.ErrUnknownCommand):
		return "unknown command. try /help"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "error: " + err.Error()
	}
}

// TargetFromMeta rebuilds the chat a command came from.
func TargetFromMeta(meta map[string]string) (kit.ChatTarget, bool) {
	id, err := strconv.ParseInt(meta[MetaChatID], 10, 64)
	if err != nil || id == 0 {
		return kit.ChatTarget{}, false
	}
	thread, _ := strconv.Atoi(meta[MetaThreadID])
	return kit.ChatTarget{ChatID: id, ThreadID: thread}, true
}
