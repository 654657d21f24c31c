package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/repo"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrScheduleNotFound = serrors.NotFound("SCHEDULE_NOT_FOUND", "schedule not found")
)

const (
	scheduleFindQuery = `
        SELECT
            s.id,
            s.tenant_id,
            s.name,
            s.timezone,
            s.rotation_type,
            s.rotation_length_days,
            s.handoff_time,
            s.handoff_weekday,
            s.epoch,
            s.is_active,
            s.created_at,
            s.updated_at
        FROM oncall_schedules s`

	scheduleCountQuery = `SELECT COUNT(*) FROM oncall_schedules s`

	scheduleInsertQuery = `
        INSERT INTO oncall_schedules (
            tenant_id, name, timezone, rotation_type, rotation_length_days,
            handoff_time, handoff_weekday, epoch, is_active
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at, updated_at`

	scheduleUpdateQuery = `
        UPDATE oncall_schedules
        SET name = $3, is_active = $4, updated_at = now()
        WHERE id = $1 AND tenant_id = $2`

	scheduleMembersQuery = `
        SELECT schedule_id, user_id, position, is_active
        FROM oncall_rotation_members
        WHERE schedule_id = $1
        ORDER BY position`

	scheduleMembersDeleteQuery = `DELETE FROM oncall_rotation_members WHERE schedule_id = $1`

	scheduleMemberInsertQuery = `
        INSERT INTO oncall_rotation_members (schedule_id, user_id, position, is_active)
        VALUES ($1, $2, $3, $4)`

	scheduleByAppQuery = `
        SELECT
            s.id,
            s.tenant_id,
            s.name,
            s.timezone,
            s.rotation_type,
            s.rotation_length_days,
            s.handoff_time,
            s.handoff_weekday,
            s.epoch,
            s.is_active,
            s.created_at,
            s.updated_at
        FROM oncall_schedules s
        JOIN application_schedules aps ON aps.schedule_id = s.id
        WHERE aps.application_id = $1 AND s.tenant_id = $2 AND s.is_active
        ORDER BY s.created_at`

	appLinkInsertQuery = `
        INSERT INTO application_schedules (application_id, schedule_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	appLinkDeleteQuery = `
        DELETE FROM application_schedules
        WHERE application_id = $1 AND schedule_id = $2`
)

type PgScheduleRepository struct{}

func NewScheduleRepository() schedule.Repository {
	return &PgScheduleRepository{}
}

func (g *PgScheduleRepository) buildFilters(ctx context.Context, params *schedule.FindParams) ([]string, []any, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, nil, err
	}

	where := []string{"s.tenant_id = $1"}
	args := []any{tenantID}
	if params.Q != "" {
		args = append(args, "%"+params.Q+"%")
		where = append(where, fmt.Sprintf("s.name ILIKE $%d", len(args)))
	}
	if params.ActiveOnly {
		where = append(where, "s.is_active")
	}
	return where, args, nil
}

func (g *PgScheduleRepository) GetPaginated(ctx context.Context, params *schedule.FindParams) ([]*schedule.Schedule, int64, error) {
	where, args, err := g.buildFilters(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	query := repo.Join(
		scheduleFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY s.created_at DESC",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	schedules, err := g.querySchedules(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	countQuery := repo.Join(scheduleCountQuery, repo.JoinWhere(where...))
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count schedules")
	}
	return schedules, total, nil
}

func (g *PgScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	schedules, err := g.querySchedules(ctx, scheduleFindQuery+" WHERE s.id = $1 AND s.tenant_id = $2", id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, ErrScheduleNotFound
	}
	return schedules[0], nil
}

func (g *PgScheduleRepository) GetByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*schedule.Schedule, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.querySchedules(ctx, scheduleByAppQuery, applicationID, tenantID)
}

func (g *PgScheduleRepository) Create(ctx context.Context, data *schedule.Schedule) (*schedule.Schedule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := models.Schedule{
		TenantID:           data.TenantID(),
		Name:               data.Name(),
		Timezone:           data.Timezone(),
		RotationType:       string(data.RotationKind()),
		RotationLengthDays: data.RotationLengthDays(),
		HandoffTime:        data.HandoffTime(),
		HandoffWeekday:     int(data.HandoffWeekday()),
		Epoch:              data.Epoch(),
		IsActive:           data.IsActive(),
	}
	if err := tx.QueryRow(ctx, scheduleInsertQuery,
		row.TenantID, row.Name, row.Timezone, row.RotationType,
		row.RotationLengthDays, row.HandoffTime, row.HandoffWeekday,
		row.Epoch, row.IsActive,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create schedule")
	}

	for _, m := range data.Members() {
		if _, err := tx.Exec(ctx, scheduleMemberInsertQuery, row.ID, m.UserID, m.Position, m.IsActive); err != nil {
			return nil, errors.Wrap(err, "failed to add rotation member")
		}
	}
	return g.GetByID(ctx, row.ID)
}

func (g *PgScheduleRepository) Update(ctx context.Context, data *schedule.Schedule) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, scheduleUpdateQuery, data.ID(), data.TenantID(), data.Name(), data.IsActive()); err != nil {
		return errors.Wrap(err, "failed to update schedule")
	}
	return nil
}

func (g *PgScheduleRepository) ReplaceMembers(ctx context.Context, scheduleID uuid.UUID, members []schedule.MemberInput) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, scheduleMembersDeleteQuery, scheduleID); err != nil {
		return errors.Wrap(err, "failed to clear rotation members")
	}
	for _, m := range members {
		if _, err := tx.Exec(ctx, scheduleMemberInsertQuery, scheduleID, m.UserID, m.Position, m.IsActive); err != nil {
			return errors.Wrap(err, "failed to add rotation member")
		}
	}
	return nil
}

func (g *PgScheduleRepository) LinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, appLinkInsertQuery, applicationID, scheduleID); err != nil {
		return errors.Wrap(err, "failed to link application")
	}
	return nil
}

func (g *PgScheduleRepository) UnlinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, appLinkDeleteQuery, applicationID, scheduleID); err != nil {
		return errors.Wrap(err, "failed to unlink application")
	}
	return nil
}

func (g *PgScheduleRepository) querySchedules(ctx context.Context, query string, args ...any) ([]*schedule.Schedule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query schedules")
	}
	defer rows.Close()

	scheduleRows := make([]models.Schedule, 0)
	for rows.Next() {
		var row models.Schedule
		if err := rows.Scan(
			&row.ID, &row.TenantID, &row.Name, &row.Timezone,
			&row.RotationType, &row.RotationLengthDays, &row.HandoffTime,
			&row.HandoffWeekday, &row.Epoch, &row.IsActive,
			&row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule")
		}
		scheduleRows = append(scheduleRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate schedules")
	}

	schedules := make([]*schedule.Schedule, 0, len(scheduleRows))
	for _, row := range scheduleRows {
		memberRows, err := g.queryMembers(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, toDomainSchedule(row, memberRows))
	}
	return schedules, nil
}

func (g *PgScheduleRepository) queryMembers(ctx context.Context, scheduleID uuid.UUID) ([]models.RotationMember, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, scheduleMembersQuery, scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query rotation members")
	}
	defer rows.Close()

	members := make([]models.RotationMember, 0)
	for rows.Next() {
		var row models.RotationMember
		if err := rows.Scan(&row.ScheduleID, &row.UserID, &row.Position, &row.IsActive); err != nil {
			return nil, errors.Wrap(err, "failed to scan rotation member")
		}
		members = append(members, row)
	}
	return members, rows.Err()
}
