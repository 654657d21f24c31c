package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
)

const (
	overrideFindQuery = `
        SELECT
            o.id,
            o.tenant_id,
            o.schedule_id,
            o.user_id,
            o.original_user_id,
            o.start_time,
            o.end_time,
            o.reason,
            o.created_at
        FROM oncall_overrides o`

	overrideInsertQuery = `
        INSERT INTO oncall_overrides (
            tenant_id, schedule_id, user_id, original_user_id,
            start_time, end_time, reason
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	overrideDeleteQuery = `DELETE FROM oncall_overrides WHERE id = $1 AND tenant_id = $2`
)

type PgOverrideRepository struct{}

func NewOverrideRepository() override.Repository {
	return &PgOverrideRepository{}
}

func (g *PgOverrideRepository) GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]override.Override, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryOverrides(ctx,
		overrideFindQuery+" WHERE o.schedule_id = $1 AND o.tenant_id = $2 ORDER BY o.start_time",
		scheduleID, tenantID,
	)
}

// GetActiveAt keeps the most recent override first; on overlap the newest
// one is the effective assignment.
func (g *PgOverrideRepository) GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]override.Override, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryOverrides(ctx,
		overrideFindQuery+` WHERE o.schedule_id = $1 AND o.tenant_id = $2
            AND o.start_time <= $3 AND o.end_time > $3
        ORDER BY o.created_at DESC, o.id DESC`,
		scheduleID, tenantID, at,
	)
}

func (g *PgOverrideRepository) GetInRange(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]override.Override, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryOverrides(ctx,
		overrideFindQuery+` WHERE o.schedule_id = $1 AND o.tenant_id = $2
            AND o.start_time < $4 AND o.end_time > $3
        ORDER BY o.start_time`,
		scheduleID, tenantID, from, to,
	)
}

func (g *PgOverrideRepository) Create(ctx context.Context, data override.Override) (override.Override, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return override.Override{}, err
	}

	row := models.Override{
		TenantID:       data.TenantID(),
		ScheduleID:     data.ScheduleID(),
		UserID:         data.UserID(),
		OriginalUserID: uuidPtr(data.OriginalUserID()),
		StartTime:      data.StartTime(),
		EndTime:        data.EndTime(),
		Reason:         data.Reason(),
	}
	if err := tx.QueryRow(ctx, overrideInsertQuery,
		row.TenantID, row.ScheduleID, row.UserID, row.OriginalUserID,
		row.StartTime, row.EndTime, row.Reason,
	).Scan(&row.ID, &row.CreatedAt); err != nil {
		return override.Override{}, errors.Wrap(err, "failed to create override")
	}
	return toDomainOverride(row), nil
}

func (g *PgOverrideRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, overrideDeleteQuery, id, tenantID); err != nil {
		return errors.Wrap(err, "failed to delete override")
	}
	return nil
}

func (g *PgOverrideRepository) queryOverrides(ctx context.Context, query string, args ...any) ([]override.Override, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query overrides")
	}
	defer rows.Close()

	overrides := make([]override.Override, 0)
	for rows.Next() {
		var row models.Override
		if err := rows.Scan(
			&row.ID, &row.TenantID, &row.ScheduleID, &row.UserID,
			&row.OriginalUserID, &row.StartTime, &row.EndTime,
			&row.Reason, &row.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan override")
		}
		overrides = append(overrides, toDomainOverride(row))
	}
	return overrides, rows.Err()
}
