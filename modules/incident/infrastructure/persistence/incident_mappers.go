package persistence

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/incident/domain/aggregates/incident"
	"github.com/opsdesk-io/opsdesk/modules/incident/infrastructure/persistence/models"
)

func derefUUID(v *uuid.UUID) uuid.UUID {
	if v == nil {
		return uuid.Nil
	}
	return *v
}

func uuidPtr(v uuid.UUID) *uuid.UUID {
	if v == uuid.Nil {
		return nil
	}
	return &v
}

func derefTime(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return *v
}

func timePtr(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func toDomainIncident(row models.Incident) *incident.Incident {
	return incident.Hydrate(
		row.TenantID,
		row.ID,
		row.IncidentNumber,
		row.Title,
		row.Description,
		incident.Status(row.Status),
		incident.Severity(row.Severity),
		derefUUID(row.EscalationPolicyID),
		derefUUID(row.AcknowledgedBy),
		derefTime(row.AcknowledgedAt),
		derefUUID(row.ResolvedBy),
		derefTime(row.ResolvedAt),
		row.CreatedAt,
		row.UpdatedAt,
	)
}

func toDBIncident(i *incident.Incident) models.Incident {
	return models.Incident{
		ID:                 i.ID(),
		TenantID:           i.TenantID(),
		IncidentNumber:     i.Number(),
		Title:              i.Title(),
		Description:        i.Description(),
		Status:             string(i.Status()),
		Severity:           string(i.Severity()),
		EscalationPolicyID: uuidPtr(i.PolicyID()),
		AcknowledgedBy:     uuidPtr(i.AcknowledgedBy()),
		AcknowledgedAt:     timePtr(i.AcknowledgedAt()),
		ResolvedBy:         uuidPtr(i.ResolvedBy()),
		ResolvedAt:         timePtr(i.ResolvedAt()),
		CreatedAt:          i.CreatedAt(),
		UpdatedAt:          i.UpdatedAt(),
	}
}
