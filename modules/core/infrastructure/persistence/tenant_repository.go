package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/tenant"
	"github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrTenantNotFound = serrors.NotFound("TENANT_NOT_FOUND", "tenant not found")
)

const (
	tenantFindQuery = `
        SELECT
            t.id,
            t.name,
            t.domain,
            t.is_active,
            t.created_at,
            t.updated_at
        FROM tenants t`

	tenantInsertQuery = `
        INSERT INTO tenants (name, domain, is_active)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	tenantUpdateQuery = `
        UPDATE tenants
        SET name = $2, domain = $3, is_active = $4, updated_at = now()
        WHERE id = $1`
)

type PgTenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &PgTenantRepository{}
}

func (g *PgTenantRepository) GetAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return g.queryTenants(ctx, tenantFindQuery+" WHERE t.is_active ORDER BY t.created_at")
}

func (g *PgTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	tenants, err := g.queryTenants(ctx, tenantFindQuery+" WHERE t.id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (g *PgTenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	tenants, err := g.queryTenants(ctx, tenantFindQuery+" WHERE t.domain = $1 AND t.is_active", domain)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (g *PgTenantRepository) Create(ctx context.Context, data *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := toDBTenant(data)
	created := row
	if err := tx.QueryRow(ctx, tenantInsertQuery, row.Name, row.Domain, row.IsActive).Scan(
		&created.ID,
		&created.CreatedAt,
		&created.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create tenant")
	}
	return toDomainTenant(created), nil
}

func (g *PgTenantRepository) Update(ctx context.Context, data *tenant.Tenant) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	row := toDBTenant(data)
	if _, err := tx.Exec(ctx, tenantUpdateQuery, row.ID, row.Name, row.Domain, row.IsActive); err != nil {
		return errors.Wrap(err, "failed to update tenant")
	}
	return nil
}

func (g *PgTenantRepository) queryTenants(ctx context.Context, query string, args ...any) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tenants")
	}
	defer rows.Close()

	tenants := make([]*tenant.Tenant, 0)
	for rows.Next() {
		var row models.Tenant
		if err := rows.Scan(
			&row.ID,
			&row.Name,
			&row.Domain,
			&row.IsActive,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant")
		}
		tenants = append(tenants, toDomainTenant(row))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tenants")
	}
	return tenants, nil
}
