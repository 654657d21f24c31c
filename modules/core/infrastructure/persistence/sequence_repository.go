package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
)

// sequenceNextQuery allocates the next value atomically. Concurrent callers
// serialize on the (tenant_id, scope) row, so values never repeat.
const sequenceNextQuery = `
    INSERT INTO tenant_sequences (tenant_id, scope, value)
    VALUES ($1, $2, 1)
    ON CONFLICT (tenant_id, scope)
    DO UPDATE SET value = tenant_sequences.value + 1
    RETURNING value`

type PgSequenceRepository struct{}

func NewSequenceRepository() sequence.Repository {
	return &PgSequenceRepository{}
}

func (s *PgSequenceRepository) Next(ctx context.Context, scope sequence.Scope) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var value int64
	if err := tx.QueryRow(ctx, sequenceNextQuery, tenantID, scope).Scan(&value); err != nil {
		return 0, errors.Wrap(err, "failed to advance sequence")
	}
	return value, nil
}
