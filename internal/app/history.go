package app

import (
	"context"
	"time"

	"tasky/internal/command"
	"tasky/internal/delivery"
	"tasky/internal/eventbus"
	"tasky/internal/storage"
	"tasky/pkg/logx"
)

const storeWriteTimeout = 3 * time.Second

// recordHistory writes one row per finished delivery until ctx ends.
func recordHistory(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != eventbus.DeliveryDismissed {
				continue
			}
			d, ok := e.Data.(delivery.Delivery)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
			err := store.AppendDelivery(wctx, historyRecord(d))
			cancel()
			if err != nil {
				log.Warn("history write failed", logx.String("delivery_id", d.ID), logx.Err(err))
			}
		}
	}
}

func historyRecord(d delivery.Delivery) storage.DeliveryRecord {
	return storage.DeliveryRecord{
		DeliveryID:  d.ID,
		ReminderID:  d.ReminderID,
		Title:       d.Task.Title,
		Body:        d.Task.Body,
		Reason:      string(d.Reason),
		ShownAt:     d.ShownAt,
		DismissedAt: d.DismissedAt,
	}
}

// auditMiddleware stores one entry per dispatched command.
func auditMiddleware(store storage.Store, log logx.Logger) command.Middleware {
	return func(next command.HandlerFunc) command.HandlerFunc {
		return func(ctx context.Context, req *command.Request) (command.Result, error) {
			start := time.Now()
			res, err := next(ctx, req)
			e := storage.AuditEntry{
				At:      start.UTC(),
				Source:  req.Command.Caller.Source,
				Command: req.Command.Name,
				OK:      err == nil,
				TookMS:  time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Error = err.Error()
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
			if werr := store.AppendAudit(wctx, e); werr != nil {
				log.Warn("audit write failed", logx.String("cmd", e.Command), logx.Err(werr))
			}
			cancel()
			return res, err
		}
	}
}
