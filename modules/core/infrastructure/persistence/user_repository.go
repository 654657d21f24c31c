package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/repo"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrUserNotFound = serrors.NotFound("USER_NOT_FOUND", "user not found")
)

const (
	userFindQuery = `
        SELECT
            u.id,
            u.tenant_id,
            u.email,
            u.display_name,
            u.is_active,
            u.is_admin,
            u.created_at,
            u.updated_at
        FROM users u`

	userCountQuery = `SELECT COUNT(u.id) FROM users u`

	userInsertQuery = `
        INSERT INTO users (tenant_id, email, display_name, is_active, is_admin)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	userUpdateQuery = `
        UPDATE users
        SET email = $3, display_name = $4, is_active = $5, is_admin = $6, updated_at = now()
        WHERE id = $1 AND tenant_id = $2`
)

type PgUserRepository struct{}

func NewUserRepository() user.Repository {
	return &PgUserRepository{}
}

func (g *PgUserRepository) buildUserFilters(ctx context.Context, params *user.FindParams) ([]string, []any, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get tenant from context")
	}

	where := []string{"u.tenant_id = $1"}
	args := []any{tenantID}

	if params != nil && params.Q != "" {
		index := len(args) + 1
		where = append(
			where,
			fmt.Sprintf("(u.email ILIKE $%d OR u.display_name ILIKE $%d)", index, index),
		)
		args = append(args, "%"+params.Q+"%")
	}

	return where, args, nil
}

func (g *PgUserRepository) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	if params == nil {
		params = &user.FindParams{}
	}

	where, args, err := g.buildUserFilters(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	query := repo.Join(
		userFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY u.display_name",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	users, err := g.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to get paginated users")
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	countQuery := repo.Join(userCountQuery, repo.JoinWhere(where...))
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count users")
	}
	return users, total, nil
}

func (g *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	users, err := g.queryUsers(ctx, userFindQuery+" WHERE u.id = $1 AND u.tenant_id = $2", id, tenantID)
	if err != nil {
		return user.User{}, err
	}
	if len(users) == 0 {
		return user.User{}, ErrUserNotFound
	}
	return users[0], nil
}

func (g *PgUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	users, err := g.queryUsers(ctx, userFindQuery+" WHERE u.email = $1 AND u.tenant_id = $2", email, tenantID)
	if err != nil {
		return user.User{}, err
	}
	if len(users) == 0 {
		return user.User{}, ErrUserNotFound
	}
	return users[0], nil
}

func (g *PgUserRepository) Create(ctx context.Context, data user.User) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}

	row := models.User{
		TenantID:    tenantID,
		Email:       data.Email(),
		DisplayName: data.DisplayName(),
		IsActive:    data.IsActive(),
		IsAdmin:     data.IsAdmin(),
	}
	if err := tx.QueryRow(
		ctx, userInsertQuery,
		row.TenantID, row.Email, row.DisplayName, row.IsActive, row.IsAdmin,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return user.User{}, errors.Wrap(err, "failed to create user")
	}
	return toDomainUser(row), nil
}

func (g *PgUserRepository) Update(ctx context.Context, data user.User) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx, userUpdateQuery,
		data.ID(), tenantID, data.Email(), data.DisplayName(), data.IsActive(), data.IsAdmin(),
	); err != nil {
		return errors.Wrap(err, "failed to update user")
	}
	return nil
}

func (g *PgUserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		var row models.User
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.Email,
			&row.DisplayName,
			&row.IsActive,
			&row.IsAdmin,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, errors.Wrap(err, "failed to scan user")
		}
		users = append(users, toDomainUser(row))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate users")
	}
	return users, nil
}
