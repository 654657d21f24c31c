package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
)

const (
	shiftFindQuery = `
        SELECT
            sh.id,
            sh.tenant_id,
            sh.schedule_id,
            sh.user_id,
            sh.start_time,
            sh.end_time,
            sh.shift_type,
            sh.layer,
            sh.created_at
        FROM oncall_shifts sh`

	shiftInsertQuery = `
        INSERT INTO oncall_shifts (
            tenant_id, schedule_id, user_id, start_time, end_time, shift_type, layer
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	shiftDeleteQuery = `DELETE FROM oncall_shifts WHERE id = $1 AND tenant_id = $2`
)

type PgShiftRepository struct{}

func NewShiftRepository() shift.Repository {
	return &PgShiftRepository{}
}

func (g *PgShiftRepository) GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]shift.Shift, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryShifts(ctx,
		shiftFindQuery+" WHERE sh.schedule_id = $1 AND sh.tenant_id = $2 ORDER BY sh.start_time",
		scheduleID, tenantID,
	)
}

// GetActiveAt orders by layer, primary before secondary, so the first row
// is the effective shift assignment.
func (g *PgShiftRepository) GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]shift.Shift, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryShifts(ctx,
		shiftFindQuery+` WHERE sh.schedule_id = $1 AND sh.tenant_id = $2
            AND sh.start_time <= $3 AND sh.end_time > $3
        ORDER BY sh.layer, CASE sh.shift_type WHEN 'primary' THEN 0 ELSE 1 END, sh.created_at`,
		scheduleID, tenantID, at,
	)
}

func (g *PgShiftRepository) Create(ctx context.Context, data shift.Shift) (shift.Shift, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return shift.Shift{}, err
	}

	row := models.Shift{
		TenantID:   data.TenantID(),
		ScheduleID: data.ScheduleID(),
		UserID:     data.UserID(),
		StartTime:  data.StartTime(),
		EndTime:    data.EndTime(),
		ShiftType:  string(data.ShiftType()),
		Layer:      data.Layer(),
	}
	if err := tx.QueryRow(ctx, shiftInsertQuery,
		row.TenantID, row.ScheduleID, row.UserID, row.StartTime,
		row.EndTime, row.ShiftType, row.Layer,
	).Scan(&row.ID, &row.CreatedAt); err != nil {
		return shift.Shift{}, errors.Wrap(err, "failed to create shift")
	}
	return toDomainShift(row), nil
}

func (g *PgShiftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, shiftDeleteQuery, id, tenantID); err != nil {
		return errors.Wrap(err, "failed to delete shift")
	}
	return nil
}

func (g *PgShiftRepository) queryShifts(ctx context.Context, query string, args ...any) ([]shift.Shift, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query shifts")
	}
	defer rows.Close()

	shifts := make([]shift.Shift, 0)
	for rows.Next() {
		var row models.Shift
		if err := rows.Scan(
			&row.ID, &row.TenantID, &row.ScheduleID, &row.UserID,
			&row.StartTime, &row.EndTime, &row.ShiftType, &row.Layer,
			&row.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan shift")
		}
		shifts = append(shifts, toDomainShift(row))
	}
	return shifts, rows.Err()
}
