package services

import (
	"context"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
)

// SequenceService hands out per-tenant human-readable numbers such as
// SWAP-000042. Next must run inside the same transaction as the row the
// number is assigned to, so a rolled back create never burns a number
// visibly out of order.
type SequenceService struct {
	repo sequence.Repository
}

func NewSequenceService(repo sequence.Repository) *SequenceService {
	return &SequenceService{repo: repo}
}

func (s *SequenceService) Next(ctx context.Context, scope sequence.Scope) (int64, error) {
	return s.repo.Next(ctx, scope)
}

func (s *SequenceService) NextFormatted(ctx context.Context, scope sequence.Scope) (string, error) {
	value, err := s.repo.Next(ctx, scope)
	if err != nil {
		return "", err
	}
	return sequence.Format(scope, value), nil
}
