package notify

import (
	"context"
	"errors"

	"ms-raffle/internal/models"
)

type Publisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent) error
}

// Fanout hands every event to each publisher in turn. One failing publisher
// does not keep the event from the others.
type Fanout []Publisher

func (f Fanout) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishTicketEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Local adapts an in-process emitter to a Publisher, for running without
// Redis.
type Local struct {
	Emitter Emitter
}

func (l Local) PublishTicketEvent(_ context.Context, event models.TicketEvent) error {
	l.Emitter.Emit(event)
	return nil
}
