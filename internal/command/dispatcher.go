package command

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tasky/pkg/logx"
)

// Dispatcher runs registry handlers through the middleware chain.
type Dispatcher struct {
	reg            *Registry
	log            logx.Logger
	defaultTimeout atomic.Int64

	mu    sync.RWMutex
	extra []Middleware
}

func NewDispatcher(reg *Registry, log logx.Logger, defaultTimeout time.Duration) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{reg: reg, log: log}
	d.SetDefaultTimeout(defaultTimeout)
	return d
}

// SetDefaultTimeout applies to handlers without their own timeout.
func (d *Dispatcher) SetDefaultTimeout(t time.Duration) { d.defaultTimeout.Store(int64(t)) }

func (d *Dispatcher) Registry() *Registry { return d.reg }

// Use appends middleware that runs outside the built-in chain, so it sees
// panics as errors and the full handler time.
func (d *Dispatcher) Use(m ...Middleware) {
	d.mu.Lock()
	d.extra = append(d.extra, m...)
	d.mu.Unlock()
}

// Dispatch runs the handler registered for cmd.Name.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	e, ok := d.reg.Lookup(cmd.Name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if e.Access == AccessOwnerOnly && !cmd.Caller.Owner {
		return Result{}, fmt.Errorf("%w: %s", ErrUnauthorized, cmd.Name)
	}

	rid := newReqID()
	req := &Request{
		Command: cmd,
		ReqID:   rid,
		Logger: d.log.With(
			logx.String("rid", rid),
			logx.String("source", cmd.Caller.Source),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = time.Duration(d.defaultTimeout.Load())
	}
	d.mu.RLock()
	mws := append([]Middleware(nil), d.extra...)
	d.mu.RUnlock()
	mws = append(mws,
		MWPanicRecover(d.log),
		MWRequestLog(d.log),
		MWTimeout(timeout),
	)
	return Chain(e.Handle, mws...)(ctx, req)
}

var ridSeq atomic.Uint64

// newReqID returns a short id: base36 timestamp, sequence and two random chars.
func newReqID() string {
	n := ridSeq.Add(1)
	return base36(time.Now().UnixNano()) + "-" + base36(int64(n)) + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alpha[rand.Intn(len(alpha))])
	}
	return b.String()
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [32]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}
