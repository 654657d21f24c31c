package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	tenantID    uuid.UUID
	id          uuid.UUID
	email       string
	displayName string
	isActive    bool
	isAdmin     bool
	createdAt   time.Time
	updatedAt   time.Time
}

func New(tenantID uuid.UUID, email, displayName string, isAdmin bool) User {
	return User{
		tenantID:    tenantID,
		email:       normalizeEmail(email),
		displayName: strings.TrimSpace(displayName),
		isActive:    true,
		isAdmin:     isAdmin,
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	email string,
	displayName string,
	isActive bool,
	isAdmin bool,
	createdAt time.Time,
	updatedAt time.Time,
) User {
	return User{
		tenantID:    tenantID,
		id:          id,
		email:       normalizeEmail(email),
		displayName: strings.TrimSpace(displayName),
		isActive:    isActive,
		isAdmin:     isAdmin,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (u User) TenantID() uuid.UUID  { return u.tenantID }
func (u User) ID() uuid.UUID        { return u.id }
func (u User) Email() string        { return u.email }
func (u User) DisplayName() string  { return u.displayName }
func (u User) IsActive() bool       { return u.isActive }
func (u User) IsAdmin() bool        { return u.isAdmin }
func (u User) CreatedAt() time.Time { return u.createdAt }
func (u User) UpdatedAt() time.Time { return u.updatedAt }
func (u User) IsZero() bool         { return u.id == uuid.Nil && u.email == "" }

func normalizeEmail(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
