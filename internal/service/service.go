package service

import (
	"errors"
	"strings"
	"time"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/repository"
)

// base carries the clock and audit recorder shared by the mutation
// services. Tests replace now to pin timestamps.
type base struct {
	store *repository.Store
	now   func() time.Time
}

func newBase(store *repository.Store) base {
	return base{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (b base) recorder() audit.Recorder {
	return audit.Recorder{Now: b.now}
}

func requireActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return Validation("acting user is required")
	}
	return nil
}

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return Validation("%s is required", name)
	}
	return nil
}

// notFound maps a repository miss to the named failure and leaves other
// errors untouched.
func notFound(err error, named *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return named
	}
	return err
}

func authorized(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
