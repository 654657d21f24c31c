package swap

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	ScheduleID  uuid.UUID
	RequesterID uuid.UUID
	Status      Status
	Limit       int
	Offset      int
}

type Repository interface {
	GetPaginated(ctx context.Context, params *FindParams) ([]*Request, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Create(ctx context.Context, data *Request) (*Request, error)

	// UpdateStatus persists the request's current state guarded by a
	// conditional write on the previous status. A false return means
	// another transition won the race and nothing was written.
	UpdateStatus(ctx context.Context, data *Request, expected Status) (bool, error)

	// UpdatePending rewrites the amendable fields while the request is
	// still pending, with the same conditional-write guard.
	UpdatePending(ctx context.Context, data *Request) (bool, error)

	// ExpireStale marks up to limit pending requests whose expiry or
	// original window start has passed. Returns the number of requests
	// expired.
	ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error)

	// CompleteElapsed marks up to limit accepted requests whose original
	// window has fully passed. Returns the number of requests completed.
	CompleteElapsed(ctx context.Context, now time.Time, limit int) (int64, error)
}
