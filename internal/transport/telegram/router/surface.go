package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tasky/internal/command"
	"tasky/internal/delivery"
	kit "tasky/internal/transport"
	"tasky/pkg/logx"
	"tasky/pkg/tgui"
)

var errNoChat = errors.New("no telegram chat to deliver to")

// Surface shows deliveries as chat messages with a Dismiss button. The chat
// is the one the reminder was scheduled from, else the default chat.
type Surface struct {
	adapter kit.Adapter
	log     logx.Logger

	mu       sync.Mutex
	fallback kit.ChatTarget
	sent     map[string]kit.MessageRef
}

func NewSurface(adapter kit.Adapter, fallback kit.ChatTarget, log logx.Logger) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Surface{adapter: adapter, log: log, fallback: fallback, sent: map[string]kit.MessageRef{}}
}

// SetFallback changes the default chat.
func (s *Surface) SetFallback(t kit.ChatTarget) {
	s.mu.Lock()
	s.fallback = t
	s.mu.Unlock()
}

func (s *Surface) target(meta map[string]string) (kit.ChatTarget, bool) {
	if t, ok := TargetFromMeta(meta); ok {
		return t, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback, !s.fallback.IsZero()
}

func (s *Surface) Show(ctx context.Context, d delivery.Delivery) error {
	to, ok := s.target(d.Task.Meta)
	if !ok {
		return errNoChat
	}
	ref, err := s.adapter.SendText(ctx, to, deliveryText(d).String(), &kit.SendOptions{
		ParseMode:      tgui.ParseMode,
		DisablePreview: true,
		Buttons:        []kit.Button{{Text: "Dismiss", Data: "dismiss:" + d.ID}},
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sent[d.ID] = ref
	s.mu.Unlock()
	return nil
}

// Close deletes the message once the user dismissed it or a newer one took
// its place. Otherwise the button is stripped and the text notes why.
func (s *Surface) Close(ctx context.Context, d delivery.Delivery) error {
	s.mu.Lock()
	ref, ok := s.sent[d.ID]
	delete(s.sent, d.ID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if d.Reason == delivery.ReasonUser || d.Reason == delivery.ReasonSuperseded {
		return s.adapter.DeleteMessage(ctx, ref)
	}
	text := deliveryText(d).String() + "\n\n" + tgui.I(closedNote(d.Reason)).String()
	return s.adapter.EditText(ctx, ref, text, &kit.SendOptions{ParseMode: tgui.ParseMode, DisablePreview: true, Buttons: []kit.Button{}})
}

const maxBodyRunes = 1000

func deliveryText(d delivery.Delivery) tgui.H {
	return tgui.Lines(
		"⏰ "+tgui.B(d.Task.Title),
		tgui.Esc(tgui.TruncRunes(strings.TrimSpace(d.Task.Body), maxBodyRunes)),
	)
}

func closedNote(r delivery.Reason) string {
	if r == delivery.ReasonTimeout {
		return "expired"
	}
	return "closed"
}

// CommandCallback dispatches name with a payload built from the button data.
// The press counts as coming from the chat it was made in.
func (r *Router) CommandCallback(name string, payload func(data string) any) CallbackFunc {
	return func(ctx context.Context, cb kit.Callback, data string, owner bool) (string, error) {
		cmd := command.Command{
			Name:    name,
			Payload: payload(data),
			Caller: command.Caller{
				Source: "telegram",
				Owner:  owner,
				Meta: map[string]string{
					MetaChatID: fmt.Sprint(cb.ChatID),
					MetaFromID: fmt.Sprint(cb.FromID),
				},
			},
		}
		res, err := r.disp.Dispatch(ctx, cmd)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}
}
