package delivery

import (
	"context"
	"errors"
)

// Fanout shows a delivery on several surfaces. Show succeeds when at least one
// surface succeeds; Close is attempted on all of them.
type Fanout []Surface

func (f Fanout) Show(ctx context.Context, d Delivery) error {
	if len(f) == 0 {
		return ErrNoSurface
	}
	var errs []error
	for _, s := range f {
		if err := s.Show(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) {
		return errors.Join(errs...)
	}
	return nil
}

func (f Fanout) Close(ctx context.Context, d Delivery) error {
	var errs []error
	for _, s := range f {
		if err := s.Close(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
