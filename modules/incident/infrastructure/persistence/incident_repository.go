package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/incident/domain/aggregates/incident"
	"github.com/opsdesk-io/opsdesk/modules/incident/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/repo"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrIncidentNotFound = serrors.NotFound("INCIDENT_NOT_FOUND", "incident not found")
)

const (
	incidentFindQuery = `
        SELECT
            i.id,
            i.tenant_id,
            i.incident_number,
            i.title,
            i.description,
            i.status,
            i.severity,
            i.escalation_policy_id,
            i.acknowledged_by,
            i.acknowledged_at,
            i.resolved_by,
            i.resolved_at,
            i.created_at,
            i.updated_at
        FROM incidents i`

	incidentCountQuery = `SELECT COUNT(*) FROM incidents i`

	incidentInsertQuery = `
        INSERT INTO incidents (
            tenant_id, incident_number, title, description,
            status, severity, escalation_policy_id
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	incidentUpdateQuery = `
        UPDATE incidents
        SET title = $3, description = $4, status = $5, severity = $6,
            acknowledged_by = $7, acknowledged_at = $8,
            resolved_by = $9, resolved_at = $10, updated_at = now()
        WHERE id = $1 AND tenant_id = $2`
)

type PgIncidentRepository struct{}

func NewIncidentRepository() incident.Repository {
	return &PgIncidentRepository{}
}

func (g *PgIncidentRepository) buildFilters(ctx context.Context, params *incident.FindParams) ([]string, []any, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, nil, err
	}

	where := []string{"i.tenant_id = $1"}
	args := []any{tenantID}
	if params.Q != "" {
		args = append(args, "%"+params.Q+"%")
		where = append(where, fmt.Sprintf("i.title ILIKE $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if params.Severity != "" {
		args = append(args, string(params.Severity))
		where = append(where, fmt.Sprintf("i.severity = $%d", len(args)))
	}
	return where, args, nil
}

func (g *PgIncidentRepository) GetPaginated(ctx context.Context, params *incident.FindParams) ([]*incident.Incident, int64, error) {
	where, args, err := g.buildFilters(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	query := repo.Join(
		incidentFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY i.created_at DESC",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	incidents, err := g.queryIncidents(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	countQuery := repo.Join(incidentCountQuery, repo.JoinWhere(where...))
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count incidents")
	}
	return incidents, total, nil
}

func (g *PgIncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	incidents, err := g.queryIncidents(ctx, incidentFindQuery+" WHERE i.id = $1 AND i.tenant_id = $2", id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return nil, ErrIncidentNotFound
	}
	return incidents[0], nil
}

func (g *PgIncidentRepository) Create(ctx context.Context, data *incident.Incident) (*incident.Incident, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := toDBIncident(data)
	if err := tx.QueryRow(ctx, incidentInsertQuery,
		row.TenantID, row.IncidentNumber, row.Title, row.Description,
		row.Status, row.Severity, row.EscalationPolicyID,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create incident")
	}
	return toDomainIncident(row), nil
}

func (g *PgIncidentRepository) Update(ctx context.Context, data *incident.Incident) (*incident.Incident, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := toDBIncident(data)
	if _, err := tx.Exec(ctx, incidentUpdateQuery,
		row.ID, row.TenantID, row.Title, row.Description, row.Status,
		row.Severity, row.AcknowledgedBy, row.AcknowledgedAt,
		row.ResolvedBy, row.ResolvedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update incident")
	}
	return g.GetByID(ctx, data.ID())
}

func (g *PgIncidentRepository) queryIncidents(ctx context.Context, query string, args ...any) ([]*incident.Incident, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query incidents")
	}
	defer rows.Close()

	incidents := make([]*incident.Incident, 0)
	for rows.Next() {
		var row models.Incident
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.IncidentNumber,
			&row.Title,
			&row.Description,
			&row.Status,
			&row.Severity,
			&row.EscalationPolicyID,
			&row.AcknowledgedBy,
			&row.AcknowledgedAt,
			&row.ResolvedBy,
			&row.ResolvedAt,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan incident")
		}
		incidents = append(incidents, toDomainIncident(row))
	}
	return incidents, rows.Err()
}
