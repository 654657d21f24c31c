package models

import (
	"time"

	"github.com/google/uuid"
)

type Incident struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	IncidentNumber     string
	Title              string
	Description        string
	Status             string
	Severity           string
	EscalationPolicyID *uuid.UUID
	AcknowledgedBy     *uuid.UUID
	AcknowledgedAt     *time.Time
	ResolvedBy         *uuid.UUID
	ResolvedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
