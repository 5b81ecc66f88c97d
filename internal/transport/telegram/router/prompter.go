package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"tasky/internal/command"
	kit "tasky/internal/transport"
	"tasky/internal/update"
	"tasky/pkg/logx"
)

// Prompter asks the owner chat whether to install an update, using Yes/No
// buttons answered through the "update" callback.
type Prompter struct {
	adapter kit.Adapter
	target  kit.ChatTarget
	log     logx.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan bool
}

func NewPrompter(adapter kit.Adapter, target kit.ChatTarget, log logx.Logger) *Prompter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Prompter{adapter: adapter, target: target, log: log, pending: map[string]chan bool{}}
}

// Confirm blocks until a button is pressed or ctx ends.
func (p *Prompter) Confirm(ctx context.Context, rel update.Release) (bool, error) {
	if p.target.IsZero() {
		return false, errNoChat
	}
	id := strconv.FormatUint(p.seq.Add(1), 10)
	answer := make(chan bool, 1)
	p.mu.Lock()
	p.pending[id] = answer
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	text := fmt.Sprintf("Update %s is available. Install now?", rel.Version)
	ref, err := p.adapter.SendText(ctx, p.target, text, &kit.SendOptions{Buttons: []kit.Button{
		{Text: "Yes", Data: "update:" + id + ":yes"},
		{Text: "No", Data: "update:" + id + ":no"},
	}})
	if err != nil {
		return false, err
	}

	var (
		yes  bool
		note string
	)
	select {
	case yes = <-answer:
		note = "skipped"
		if yes {
			note = "installing"
		}
	case <-ctx.Done():
		note = "no answer"
		err = ctx.Err()
	}
	_ = p.adapter.EditText(context.WithoutCancel(ctx), ref, text+"\n\n("+note+")", &kit.SendOptions{Buttons: []kit.Button{}})
	return yes, err
}

// Callback answers a pending prompt. Payload is "<id>:yes" or "<id>:no".
func (p *Prompter) Callback(_ context.Context, _ kit.Callback, payload string, owner bool) (string, error) {
	if !owner {
		return "", command.ErrUnauthorized
	}
	id, ans, _ := strings.Cut(payload, ":")
	p.mu.Lock()
	ch, ok := p.pending[id]
	p.mu.Unlock()
	if !ok {
		return "prompt expired", nil
	}
	select {
	case ch <- ans == "yes":
	default:
	}
	return "ok", nil
}
