package sequence

import (
	"context"
	"fmt"
)

// Scope names an independent per-tenant counter.
type Scope string

const (
	ScopeSwap     Scope = "swap"
	ScopeIncident Scope = "incident"
)

func (s Scope) Prefix() string {
	switch s {
	case ScopeSwap:
		return "SWAP"
	case ScopeIncident:
		return "INC"
	default:
		return "SEQ"
	}
}

// Format renders a sequence value as a human-readable reference number,
// zero-padded to six digits (SWAP-000123).
func Format(scope Scope, value int64) string {
	return fmt.Sprintf("%s-%06d", scope.Prefix(), value)
}

// Repository hands out monotonically increasing values per tenant and scope.
type Repository interface {
	Next(ctx context.Context, scope Scope) (int64, error)
}
