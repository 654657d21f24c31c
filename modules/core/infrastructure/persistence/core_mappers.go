package persistence

import (
	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/group"
	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/tenant"
	"github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence/models"

	"github.com/google/uuid"
)

func toDomainTenant(row models.Tenant) *tenant.Tenant {
	domain := ""
	if row.Domain != nil {
		domain = *row.Domain
	}
	return tenant.New(
		row.Name,
		tenant.WithID(row.ID),
		tenant.WithDomain(domain),
		tenant.WithIsActive(row.IsActive),
		tenant.WithCreatedAt(row.CreatedAt),
		tenant.WithUpdatedAt(row.UpdatedAt),
	)
}

func toDBTenant(t *tenant.Tenant) models.Tenant {
	var domain *string
	if t.Domain() != "" {
		d := t.Domain()
		domain = &d
	}
	return models.Tenant{
		ID:        t.ID(),
		Name:      t.Name(),
		Domain:    domain,
		IsActive:  t.IsActive(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func toDomainUser(row models.User) user.User {
	return user.Hydrate(
		row.TenantID,
		row.ID,
		row.Email,
		row.DisplayName,
		row.IsActive,
		row.IsAdmin,
		row.CreatedAt,
		row.UpdatedAt,
	)
}

func toDomainGroup(row models.Group, memberIDs []uuid.UUID) group.Group {
	return group.Hydrate(
		row.TenantID,
		row.ID,
		row.Name,
		memberIDs,
		row.CreatedAt,
		row.UpdatedAt,
	)
}
