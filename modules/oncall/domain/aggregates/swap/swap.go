package swap

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition may leave the status.
// Accepted still completes; everything else but pending is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

var (
	ErrNotPending  = serrors.InvalidState("SWAP_NOT_PENDING", "swap request has already been responded to")
	ErrNotAccepted = serrors.InvalidState("SWAP_NOT_ACCEPTED", "swap request is not accepted")
)

// Request is one rotation member's offer to hand a specific shift window
// to another member. Every status change is one-directional; a request
// never leaves a terminal status.
type Request struct {
	tenantID   uuid.UUID
	id         uuid.UUID
	number     string
	scheduleID uuid.UUID

	requesterID     uuid.UUID
	originalShiftID uuid.UUID // zero when the window is rotation-computed
	originalStart   time.Time
	originalEnd     time.Time
	offeredToUserID uuid.UUID // zero for an open offer
	reason          string
	expiresAt       time.Time // zero when the request only expires with its window

	status           Status
	accepterID       uuid.UUID
	replacementStart time.Time
	replacementEnd   time.Time
	responseMessage  string
	respondedAt      time.Time
	approvedBy       uuid.UUID

	createdAt time.Time
	updatedAt time.Time
}

func New(
	tenantID uuid.UUID,
	scheduleID uuid.UUID,
	requesterID uuid.UUID,
	originalStart time.Time,
	originalEnd time.Time,
	reason string,
) *Request {
	return &Request{
		tenantID:      tenantID,
		scheduleID:    scheduleID,
		requesterID:   requesterID,
		originalStart: originalStart,
		originalEnd:   originalEnd,
		reason:        strings.TrimSpace(reason),
		status:        StatusPending,
	}
}

type Option func(*Request)

func WithOfferedTo(userID uuid.UUID) Option {
	return func(r *Request) { r.offeredToUserID = userID }
}

func WithOriginalShiftID(shiftID uuid.UUID) Option {
	return func(r *Request) { r.originalShiftID = shiftID }
}

func WithExpiresAt(expiresAt time.Time) Option {
	return func(r *Request) { r.expiresAt = expiresAt }
}

func WithNumber(number string) Option {
	return func(r *Request) { r.number = number }
}

func (r *Request) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(r)
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	number string,
	scheduleID uuid.UUID,
	requesterID uuid.UUID,
	originalShiftID uuid.UUID,
	originalStart time.Time,
	originalEnd time.Time,
	offeredToUserID uuid.UUID,
	reason string,
	expiresAt time.Time,
	status Status,
	accepterID uuid.UUID,
	replacementStart time.Time,
	replacementEnd time.Time,
	responseMessage string,
	respondedAt time.Time,
	approvedBy uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) *Request {
	return &Request{
		tenantID:         tenantID,
		id:               id,
		number:           number,
		scheduleID:       scheduleID,
		requesterID:      requesterID,
		originalShiftID:  originalShiftID,
		originalStart:    originalStart,
		originalEnd:      originalEnd,
		offeredToUserID:  offeredToUserID,
		reason:           reason,
		expiresAt:        expiresAt,
		status:           status,
		accepterID:       accepterID,
		replacementStart: replacementStart,
		replacementEnd:   replacementEnd,
		responseMessage:  responseMessage,
		respondedAt:      respondedAt,
		approvedBy:       approvedBy,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (r *Request) TenantID() uuid.UUID         { return r.tenantID }
func (r *Request) ID() uuid.UUID               { return r.id }
func (r *Request) Number() string              { return r.number }
func (r *Request) ScheduleID() uuid.UUID       { return r.scheduleID }
func (r *Request) RequesterID() uuid.UUID      { return r.requesterID }
func (r *Request) OriginalShiftID() uuid.UUID  { return r.originalShiftID }
func (r *Request) OriginalStart() time.Time    { return r.originalStart }
func (r *Request) OriginalEnd() time.Time      { return r.originalEnd }
func (r *Request) OfferedToUserID() uuid.UUID  { return r.offeredToUserID }
func (r *Request) Reason() string              { return r.reason }
func (r *Request) ExpiresAt() time.Time        { return r.expiresAt }
func (r *Request) Status() Status              { return r.status }
func (r *Request) AccepterID() uuid.UUID       { return r.accepterID }
func (r *Request) ReplacementStart() time.Time { return r.replacementStart }
func (r *Request) ReplacementEnd() time.Time   { return r.replacementEnd }
func (r *Request) ResponseMessage() string     { return r.responseMessage }
func (r *Request) RespondedAt() time.Time      { return r.respondedAt }
func (r *Request) ApprovedBy() uuid.UUID       { return r.approvedBy }
func (r *Request) CreatedAt() time.Time        { return r.createdAt }
func (r *Request) UpdatedAt() time.Time        { return r.updatedAt }

// Directed reports whether the offer names a specific target.
func (r *Request) Directed() bool { return r.offeredToUserID != uuid.Nil }

// StaleAt reports whether the request has outlived its expiry or its
// original window's start at the given instant.
func (r *Request) StaleAt(at time.Time) bool {
	if !r.expiresAt.IsZero() && at.After(r.expiresAt) {
		return true
	}
	return at.After(r.originalStart)
}

func (r *Request) Accept(accepterID uuid.UUID, message string, at time.Time) error {
	if r.status != StatusPending {
		return ErrNotPending
	}
	r.status = StatusAccepted
	r.accepterID = accepterID
	r.replacementStart = r.originalStart
	r.replacementEnd = r.originalEnd
	r.responseMessage = strings.TrimSpace(message)
	r.respondedAt = at
	return nil
}

func (r *Request) Approve(accepterID, approvedBy uuid.UUID, at time.Time) error {
	if err := r.Accept(accepterID, "", at); err != nil {
		return err
	}
	r.approvedBy = approvedBy
	return nil
}

func (r *Request) Reject(message string, at time.Time) error {
	if r.status != StatusPending {
		return ErrNotPending
	}
	r.status = StatusRejected
	r.responseMessage = strings.TrimSpace(message)
	r.respondedAt = at
	return nil
}

func (r *Request) Cancel() error {
	if r.status != StatusPending {
		return ErrNotPending
	}
	r.status = StatusCancelled
	return nil
}

func (r *Request) Expire() error {
	if r.status != StatusPending {
		return ErrNotPending
	}
	r.status = StatusExpired
	return nil
}

func (r *Request) Complete() error {
	if r.status != StatusAccepted {
		return ErrNotAccepted
	}
	r.status = StatusCompleted
	return nil
}

// AmendOffer re-targets or re-words a pending request.
func (r *Request) AmendOffer(offeredTo uuid.UUID, reason string, expiresAt time.Time) error {
	if r.status != StatusPending {
		return ErrNotPending
	}
	r.offeredToUserID = offeredTo
	r.reason = strings.TrimSpace(reason)
	r.expiresAt = expiresAt
	return nil
}
