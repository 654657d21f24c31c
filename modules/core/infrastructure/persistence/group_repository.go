package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/group"
	"github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrGroupNotFound = serrors.NotFound("GROUP_NOT_FOUND", "group not found")
)

const (
	groupFindQuery = `
        SELECT g.id, g.tenant_id, g.name, g.created_at, g.updated_at
        FROM groups g`

	groupInsertQuery = `
        INSERT INTO groups (tenant_id, name)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`

	groupUpdateQuery = `
        UPDATE groups SET name = $3, updated_at = now()
        WHERE id = $1 AND tenant_id = $2`

	groupDeleteQuery = `DELETE FROM groups WHERE id = $1 AND tenant_id = $2`

	groupMembersQuery      = `SELECT user_id FROM group_users WHERE group_id = $1 ORDER BY user_id`
	groupMemberDeleteQuery = `DELETE FROM group_users WHERE group_id = $1`
	groupMemberInsertQuery = `INSERT INTO group_users (group_id, user_id) VALUES ($1, $2)`
)

type PgGroupRepository struct{}

func NewGroupRepository() group.Repository {
	return &PgGroupRepository{}
}

func (g *PgGroupRepository) GetAll(ctx context.Context) ([]group.Group, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryGroups(ctx, groupFindQuery+" WHERE g.tenant_id = $1 ORDER BY g.name", tenantID)
}

func (g *PgGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return group.Group{}, err
	}

	groups, err := g.queryGroups(ctx, groupFindQuery+" WHERE g.id = $1 AND g.tenant_id = $2", id, tenantID)
	if err != nil {
		return group.Group{}, err
	}
	if len(groups) == 0 {
		return group.Group{}, ErrGroupNotFound
	}
	return groups[0], nil
}

func (g *PgGroupRepository) Create(ctx context.Context, data group.Group) (group.Group, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return group.Group{}, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return group.Group{}, err
	}

	row := models.Group{TenantID: tenantID, Name: data.Name()}
	if err := tx.QueryRow(ctx, groupInsertQuery, row.TenantID, row.Name).Scan(
		&row.ID, &row.CreatedAt, &row.UpdatedAt,
	); err != nil {
		return group.Group{}, errors.Wrap(err, "failed to create group")
	}

	for _, memberID := range data.MemberIDs() {
		if _, err := tx.Exec(ctx, groupMemberInsertQuery, row.ID, memberID); err != nil {
			return group.Group{}, errors.Wrap(err, "failed to add group member")
		}
	}
	return toDomainGroup(row, data.MemberIDs()), nil
}

func (g *PgGroupRepository) Update(ctx context.Context, data group.Group) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, groupUpdateQuery, data.ID(), tenantID, data.Name()); err != nil {
		return errors.Wrap(err, "failed to update group")
	}
	if _, err := tx.Exec(ctx, groupMemberDeleteQuery, data.ID()); err != nil {
		return errors.Wrap(err, "failed to clear group members")
	}
	for _, memberID := range data.MemberIDs() {
		if _, err := tx.Exec(ctx, groupMemberInsertQuery, data.ID(), memberID); err != nil {
			return errors.Wrap(err, "failed to add group member")
		}
	}
	return nil
}

func (g *PgGroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, groupDeleteQuery, id, tenantID); err != nil {
		return errors.Wrap(err, "failed to delete group")
	}
	return nil
}

func (g *PgGroupRepository) queryGroups(ctx context.Context, query string, args ...any) ([]group.Group, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query groups")
	}
	defer rows.Close()

	groupRows := make([]models.Group, 0)
	for rows.Next() {
		var row models.Group
		if err := rows.Scan(&row.ID, &row.TenantID, &row.Name, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan group")
		}
		groupRows = append(groupRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate groups")
	}

	groups := make([]group.Group, 0, len(groupRows))
	for _, row := range groupRows {
		memberIDs, err := g.queryMemberIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, toDomainGroup(row, memberIDs))
	}
	return groups, nil
}

func (g *PgGroupRepository) queryMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, groupMembersQuery, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query group members")
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan group member")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
