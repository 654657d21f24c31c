package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/repo"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrSwapNotFound = serrors.NotFound("SWAP_NOT_FOUND", "swap request not found")
)

const (
	swapFindQuery = `
        SELECT
            sw.id,
            sw.tenant_id,
            sw.swap_number,
            sw.schedule_id,
            sw.requester_id,
            sw.original_shift_id,
            sw.original_start,
            sw.original_end,
            sw.offered_to_user_id,
            sw.reason,
            sw.expires_at,
            sw.status,
            sw.accepter_id,
            sw.replacement_start,
            sw.replacement_end,
            sw.response_message,
            sw.responded_at,
            sw.approved_by,
            sw.created_at,
            sw.updated_at
        FROM oncall_swap_requests sw`

	swapCountQuery = `SELECT COUNT(*) FROM oncall_swap_requests sw`

	swapInsertQuery = `
        INSERT INTO oncall_swap_requests (
            tenant_id, swap_number, schedule_id, requester_id,
            original_shift_id, original_start, original_end,
            offered_to_user_id, reason, expires_at, status
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at, updated_at`

	// Status transitions are compare-and-swap: the write only lands when
	// the stored status still matches what the caller read.
	swapStatusUpdateQuery = `
        UPDATE oncall_swap_requests
        SET status = $3, accepter_id = $4, replacement_start = $5,
            replacement_end = $6, response_message = $7, responded_at = $8,
            approved_by = $9, updated_at = now()
        WHERE id = $1 AND tenant_id = $2 AND status = $10`

	swapPendingUpdateQuery = `
        UPDATE oncall_swap_requests
        SET offered_to_user_id = $3, reason = $4, expires_at = $5, updated_at = now()
        WHERE id = $1 AND tenant_id = $2 AND status = 'pending'`

	swapExpireQuery = `
        UPDATE oncall_swap_requests
        SET status = 'expired', updated_at = now()
        WHERE id IN (
            SELECT id FROM oncall_swap_requests
            WHERE tenant_id = $1 AND status = 'pending'
                AND ((expires_at IS NOT NULL AND expires_at < $2) OR original_start < $2)
            ORDER BY created_at
            LIMIT $3
        )`

	swapCompleteQuery = `
        UPDATE oncall_swap_requests
        SET status = 'completed', updated_at = now()
        WHERE id IN (
            SELECT id FROM oncall_swap_requests
            WHERE tenant_id = $1 AND status = 'accepted' AND original_end < $2
            ORDER BY created_at
            LIMIT $3
        )`
)

type PgSwapRepository struct{}

func NewSwapRepository() swap.Repository {
	return &PgSwapRepository{}
}

func (g *PgSwapRepository) buildFilters(ctx context.Context, params *swap.FindParams) ([]string, []any, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, nil, err
	}

	where := []string{"sw.tenant_id = $1"}
	args := []any{tenantID}
	if params.ScheduleID != uuid.Nil {
		args = append(args, params.ScheduleID)
		where = append(where, fmt.Sprintf("sw.schedule_id = $%d", len(args)))
	}
	if params.RequesterID != uuid.Nil {
		args = append(args, params.RequesterID)
		where = append(where, fmt.Sprintf("sw.requester_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("sw.status = $%d", len(args)))
	}
	return where, args, nil
}

func (g *PgSwapRepository) GetPaginated(ctx context.Context, params *swap.FindParams) ([]*swap.Request, int64, error) {
	where, args, err := g.buildFilters(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	query := repo.Join(
		swapFindQuery,
		repo.JoinWhere(where...),
		"ORDER BY sw.created_at DESC",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	requests, err := g.querySwaps(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	countQuery := repo.Join(swapCountQuery, repo.JoinWhere(where...))
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count swap requests")
	}
	return requests, total, nil
}

func (g *PgSwapRepository) GetByID(ctx context.Context, id uuid.UUID) (*swap.Request, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	requests, err := g.querySwaps(ctx, swapFindQuery+" WHERE sw.id = $1 AND sw.tenant_id = $2", id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, ErrSwapNotFound
	}
	return requests[0], nil
}

func (g *PgSwapRepository) Create(ctx context.Context, data *swap.Request) (*swap.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := toDBSwap(data)
	if err := tx.QueryRow(ctx, swapInsertQuery,
		row.TenantID, row.SwapNumber, row.ScheduleID, row.RequesterID,
		row.OriginalShiftID, row.OriginalStart, row.OriginalEnd,
		row.OfferedToUserID, row.Reason, row.ExpiresAt, row.Status,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create swap request")
	}
	return toDomainSwap(row), nil
}

func (g *PgSwapRepository) UpdateStatus(ctx context.Context, data *swap.Request, expected swap.Status) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	row := toDBSwap(data)
	tag, err := tx.Exec(ctx, swapStatusUpdateQuery,
		row.ID, row.TenantID, row.Status, row.AccepterID,
		row.ReplacementStart, row.ReplacementEnd, row.ResponseMessage,
		row.RespondedAt, row.ApprovedBy, string(expected),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to update swap status")
	}
	return tag.RowsAffected() > 0, nil
}

func (g *PgSwapRepository) UpdatePending(ctx context.Context, data *swap.Request) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	row := toDBSwap(data)
	tag, err := tx.Exec(ctx, swapPendingUpdateQuery,
		row.ID, row.TenantID, row.OfferedToUserID, row.Reason, row.ExpiresAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to update swap request")
	}
	return tag.RowsAffected() > 0, nil
}

func (g *PgSwapRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	return g.sweep(ctx, swapExpireQuery, now, limit)
}

func (g *PgSwapRepository) CompleteElapsed(ctx context.Context, now time.Time, limit int) (int64, error) {
	return g.sweep(ctx, swapCompleteQuery, now, limit)
}

func (g *PgSwapRepository) sweep(ctx context.Context, query string, now time.Time, limit int) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, query, tenantID, now, limit)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep swap requests")
	}
	return tag.RowsAffected(), nil
}

func (g *PgSwapRepository) querySwaps(ctx context.Context, query string, args ...any) ([]*swap.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query swap requests")
	}
	defer rows.Close()

	requests := make([]*swap.Request, 0)
	for rows.Next() {
		var row models.SwapRequest
		if err := rows.Scan(
			&row.ID, &row.TenantID, &row.SwapNumber, &row.ScheduleID,
			&row.RequesterID, &row.OriginalShiftID, &row.OriginalStart,
			&row.OriginalEnd, &row.OfferedToUserID, &row.Reason,
			&row.ExpiresAt, &row.Status, &row.AccepterID,
			&row.ReplacementStart, &row.ReplacementEnd, &row.ResponseMessage,
			&row.RespondedAt, &row.ApprovedBy, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan swap request")
		}
		requests = append(requests, toDomainSwap(row))
	}
	return requests, rows.Err()
}
