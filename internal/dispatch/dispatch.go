package dispatch

import (
	"context"
	"errors"

	"github.com/example/shelter-matching/internal/models"
)

var ErrNoSession = errors.New("no ws session")

type Notifier interface {
	Notify(ctx context.Context, n models.MatchNotice) error
}

// Fanout tries each notifier in order and stops at the first that delivers.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n models.MatchNotice) error {
	var errs []error
	for _, nt := range f {
		if nt == nil {
			continue
		}
		err := nt.Notify(ctx, n)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoSession
	}
	return errors.Join(errs...)
}
