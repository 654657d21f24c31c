package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/escalation"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrPolicyNotFound = serrors.NotFound("ESCALATION_POLICY_NOT_FOUND", "escalation policy not found")
)

const (
	policyFindQuery = `
        SELECT
            p.id,
            p.tenant_id,
            p.name,
            p.repeat_count,
            p.repeat_delay_minutes,
            p.created_at,
            p.updated_at
        FROM oncall_escalation_policies p`

	policyInsertQuery = `
        INSERT INTO oncall_escalation_policies (tenant_id, name, repeat_count, repeat_delay_minutes)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	policyUpdateQuery = `
        UPDATE oncall_escalation_policies
        SET name = $3, repeat_count = $4, repeat_delay_minutes = $5, updated_at = now()
        WHERE id = $1 AND tenant_id = $2`

	policyDeleteQuery = `DELETE FROM oncall_escalation_policies WHERE id = $1 AND tenant_id = $2`

	policyStepsQuery = `
        SELECT policy_id, step_number, delay_minutes, notify_type, target_id, channels
        FROM oncall_escalation_steps
        WHERE policy_id = $1
        ORDER BY step_number`

	policyStepsDeleteQuery = `DELETE FROM oncall_escalation_steps WHERE policy_id = $1`

	policyStepInsertQuery = `
        INSERT INTO oncall_escalation_steps (
            policy_id, step_number, delay_minutes, notify_type, target_id, channels
        )
        VALUES ($1, $2, $3, $4, $5, $6)`
)

type PgEscalationRepository struct{}

func NewEscalationRepository() escalation.Repository {
	return &PgEscalationRepository{}
}

func (g *PgEscalationRepository) GetAll(ctx context.Context) ([]*escalation.Policy, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryPolicies(ctx, policyFindQuery+" WHERE p.tenant_id = $1 ORDER BY p.name", tenantID)
}

func (g *PgEscalationRepository) GetByID(ctx context.Context, id uuid.UUID) (*escalation.Policy, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	policies, err := g.queryPolicies(ctx, policyFindQuery+" WHERE p.id = $1 AND p.tenant_id = $2", id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, ErrPolicyNotFound
	}
	return policies[0], nil
}

func (g *PgEscalationRepository) Create(ctx context.Context, data *escalation.Policy) (*escalation.Policy, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := models.EscalationPolicy{
		TenantID:           data.TenantID(),
		Name:               data.Name(),
		RepeatCount:        data.RepeatCount(),
		RepeatDelayMinutes: data.RepeatDelayMinutes(),
	}
	if err := tx.QueryRow(ctx, policyInsertQuery,
		row.TenantID, row.Name, row.RepeatCount, row.RepeatDelayMinutes,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create escalation policy")
	}

	if err := g.insertSteps(ctx, row.ID, data.Steps()); err != nil {
		return nil, err
	}
	return g.GetByID(ctx, row.ID)
}

func (g *PgEscalationRepository) Update(ctx context.Context, data *escalation.Policy) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, policyUpdateQuery,
		data.ID(), data.TenantID(), data.Name(), data.RepeatCount(), data.RepeatDelayMinutes(),
	); err != nil {
		return errors.Wrap(err, "failed to update escalation policy")
	}
	if _, err := tx.Exec(ctx, policyStepsDeleteQuery, data.ID()); err != nil {
		return errors.Wrap(err, "failed to clear escalation steps")
	}
	return g.insertSteps(ctx, data.ID(), data.Steps())
}

func (g *PgEscalationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, policyDeleteQuery, id, tenantID); err != nil {
		return errors.Wrap(err, "failed to delete escalation policy")
	}
	return nil
}

func (g *PgEscalationRepository) insertSteps(ctx context.Context, policyID uuid.UUID, steps []escalation.Step) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if _, err := tx.Exec(ctx, policyStepInsertQuery,
			policyID, s.StepNumber, s.DelayMinutes, string(s.NotifyType), s.TargetID, s.Channels,
		); err != nil {
			return errors.Wrap(err, "failed to add escalation step")
		}
	}
	return nil
}

func (g *PgEscalationRepository) queryPolicies(ctx context.Context, query string, args ...any) ([]*escalation.Policy, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query escalation policies")
	}
	defer rows.Close()

	policyRows := make([]models.EscalationPolicy, 0)
	for rows.Next() {
		var row models.EscalationPolicy
		if err := rows.Scan(
			&row.ID, &row.TenantID, &row.Name, &row.RepeatCount,
			&row.RepeatDelayMinutes, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan escalation policy")
		}
		policyRows = append(policyRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate escalation policies")
	}

	policies := make([]*escalation.Policy, 0, len(policyRows))
	for _, row := range policyRows {
		steps, err := g.querySteps(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		policies = append(policies, toDomainPolicy(row, steps))
	}
	return policies, nil
}

func (g *PgEscalationRepository) querySteps(ctx context.Context, policyID uuid.UUID) ([]models.EscalationStep, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, policyStepsQuery, policyID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query escalation steps")
	}
	defer rows.Close()

	steps := make([]models.EscalationStep, 0)
	for rows.Next() {
		var row models.EscalationStep
		if err := rows.Scan(
			&row.PolicyID, &row.StepNumber, &row.DelayMinutes,
			&row.NotifyType, &row.TargetID, &row.Channels,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan escalation step")
		}
		steps = append(steps, row)
	}
	return steps, rows.Err()
}
