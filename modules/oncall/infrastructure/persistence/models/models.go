package models

import (
	"time"

	"github.com/google/uuid"
)

type Schedule struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Timezone           string
	RotationType       string
	RotationLengthDays int
	HandoffTime        string
	HandoffWeekday     int
	Epoch              time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type RotationMember struct {
	ScheduleID uuid.UUID
	UserID     uuid.UUID
	Position   int
	IsActive   bool
}

type Shift struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ScheduleID uuid.UUID
	UserID     uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	ShiftType  string
	Layer      int
	CreatedAt  time.Time
}

type Override struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ScheduleID     uuid.UUID
	UserID         uuid.UUID
	OriginalUserID *uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Reason         string
	CreatedAt      time.Time
}

type SwapRequest struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SwapNumber       string
	ScheduleID       uuid.UUID
	RequesterID      uuid.UUID
	OriginalShiftID  *uuid.UUID
	OriginalStart    time.Time
	OriginalEnd      time.Time
	OfferedToUserID  *uuid.UUID
	Reason           string
	ExpiresAt        *time.Time
	Status           string
	AccepterID       *uuid.UUID
	ReplacementStart *time.Time
	ReplacementEnd   *time.Time
	ResponseMessage  string
	RespondedAt      *time.Time
	ApprovedBy       *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type EscalationPolicy struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	RepeatCount        int
	RepeatDelayMinutes int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type EscalationStep struct {
	PolicyID     uuid.UUID
	StepNumber   int
	DelayMinutes int
	NotifyType   string
	TargetID     uuid.UUID
	Channels     []string
}
