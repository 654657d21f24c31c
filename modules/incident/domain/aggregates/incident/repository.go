package incident

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Q        string
	Status   Status
	Severity Severity
	Limit    int
	Offset   int
}

type Repository interface {
	GetPaginated(ctx context.Context, params *FindParams) ([]*Incident, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Incident, error)
	Create(ctx context.Context, data *Incident) (*Incident, error)
	Update(ctx context.Context, data *Incident) (*Incident, error)
}
