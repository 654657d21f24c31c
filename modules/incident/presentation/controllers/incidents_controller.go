package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opsdesk-io/opsdesk/modules/incident/domain/aggregates/incident"
	"github.com/opsdesk-io/opsdesk/modules/incident/services"
	oncallservices "github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
	"github.com/opsdesk-io/opsdesk/pkg/httpapi"
)

type incidentView struct {
	ID             uuid.UUID  `json:"id"`
	Number         string     `json:"number"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Severity       string     `json:"severity"`
	PolicyID       *uuid.UUID `json:"escalation_policy_id,omitempty"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toIncidentView(i *incident.Incident) incidentView {
	v := incidentView{
		ID:          i.ID(),
		Number:      i.Number(),
		Title:       i.Title(),
		Description: i.Description(),
		Status:      string(i.Status()),
		Severity:    string(i.Severity()),
		CreatedAt:   i.CreatedAt(),
		UpdatedAt:   i.UpdatedAt(),
	}
	if id := i.PolicyID(); id != uuid.Nil {
		v.PolicyID = &id
	}
	if id := i.AcknowledgedBy(); id != uuid.Nil {
		v.AcknowledgedBy = &id
	}
	if id := i.ResolvedBy(); id != uuid.Nil {
		v.ResolvedBy = &id
	}
	if t := i.AcknowledgedAt(); !t.IsZero() {
		v.AcknowledgedAt = &t
	}
	if t := i.ResolvedAt(); !t.IsZero() {
		v.ResolvedAt = &t
	}
	return v
}

type incidentListView struct {
	Items []incidentView `json:"items"`
	Total int64          `json:"total"`
}

type planStepView struct {
	FireAt     time.Time   `json:"fire_at"`
	Cycle      int         `json:"cycle"`
	StepNumber int         `json:"step_number"`
	NotifyType string      `json:"notify_type"`
	TargetID   uuid.UUID   `json:"target_id"`
	UserIDs    []uuid.UUID `json:"user_ids"`
	Channels   []string    `json:"channels"`
}

type IncidentsController struct {
	app application.Application
}

func NewIncidentsController(app application.Application) application.Controller {
	return &IncidentsController{app: app}
}

func (c *IncidentsController) Key() string {
	return "/incidents"
}

func (c *IncidentsController) Register(r *mux.Router) {
	router := r.PathPrefix("/incidents").Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Update).Methods(http.MethodPatch)
	router.HandleFunc("/{id}/acknowledge", c.Acknowledge).Methods(http.MethodPost)
	router.HandleFunc("/{id}/resolve", c.Resolve).Methods(http.MethodPost)
	router.HandleFunc("/{id}/escalation-plan", c.EscalationPlan).Methods(http.MethodGet)
}

func (c *IncidentsController) service() *services.IncidentService {
	return c.app.Service(services.IncidentService{}).(*services.IncidentService)
}

func (c *IncidentsController) List(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	params := &incident.FindParams{
		Q:        r.URL.Query().Get("q"),
		Status:   incident.Status(r.URL.Query().Get("status")),
		Severity: incident.Severity(r.URL.Query().Get("severity")),
		Limit:    queryInt(r, "limit", conf.PageSize, conf.MaxPageSize),
		Offset:   queryInt(r, "offset", 0, 1<<30),
	}

	items, total, err := c.service().GetPaginated(r.Context(), params)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]incidentView, 0, len(items))
	for _, item := range items {
		views = append(views, toIncidentView(item))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, incidentListView{Items: views, Total: total})
}

func (c *IncidentsController) Create(w http.ResponseWriter, r *http.Request) {
	dto := &incident.CreateDTO{}
	if !httpapi.DecodeBody(w, r, dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}

	created, err := c.service().Create(r.Context(), dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toIncidentView(created))
}

func (c *IncidentsController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entity, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toIncidentView(entity))
}

func (c *IncidentsController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &incident.UpdateDTO{}
	if !httpapi.DecodeBody(w, r, dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}

	updated, err := c.service().Update(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toIncidentView(updated))
}

func (c *IncidentsController) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entity, err := c.service().Acknowledge(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toIncidentView(entity))
}

func (c *IncidentsController) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entity, err := c.service().Resolve(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toIncidentView(entity))
}

func (c *IncidentsController) EscalationPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	startAt, err := httpapi.QueryTime(r, "start_at", time.Time{})
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "start_at must be RFC 3339", nil)
		return
	}

	actions, err := c.service().EscalationPreview(r.Context(), id, startAt)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]planStepView, 0, len(actions))
	for _, a := range actions {
		views = append(views, toPlanStepView(a))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, views)
}

func toPlanStepView(a oncallservices.Action) planStepView {
	return planStepView{
		FireAt:     a.FireAt,
		Cycle:      a.Cycle,
		StepNumber: a.StepNumber,
		NotifyType: string(a.NotifyType),
		TargetID:   a.TargetID,
		UserIDs:    a.UserIDs,
		Channels:   a.Channels,
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_ID", "malformed id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
