package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/escalation"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/httpapi"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type stepBody struct {
	StepNumber   int       `json:"step_number"`
	DelayMinutes int       `json:"delay_minutes"`
	NotifyType   string    `json:"notify_type"`
	TargetID     uuid.UUID `json:"target_id"`
	Channels     []string  `json:"channels"`
}

type policyBody struct {
	Name               string     `json:"name"`
	RepeatCount        int        `json:"repeat_count"`
	RepeatDelayMinutes int        `json:"repeat_delay_minutes"`
	Steps              []stepBody `json:"steps"`
}

func (b *policyBody) validate() (serrors.ValidationErrors, bool) {
	out := serrors.ValidationErrors{}
	if b.Name == "" {
		out["name"] = "is required"
	}
	if b.RepeatCount < 0 {
		out["repeat_count"] = "must not be negative"
	}
	if b.RepeatDelayMinutes < 0 {
		out["repeat_delay_minutes"] = "must not be negative"
	}
	if len(b.Steps) == 0 {
		out["steps"] = "at least one step is required"
	} else if b.Steps[0].DelayMinutes != 0 {
		out["steps"] = "the first step must have delay_minutes 0"
	}
	for _, s := range b.Steps {
		switch escalation.NotifyType(s.NotifyType) {
		case escalation.NotifySchedule, escalation.NotifyUser, escalation.NotifyGroup:
		default:
			out["steps"] = "notify_type must be schedule, user or group"
		}
		if s.DelayMinutes < 0 {
			out["steps"] = "delay_minutes must not be negative"
		}
		if s.TargetID == uuid.Nil {
			out["steps"] = "target_id is required"
		}
	}
	return out, len(out) == 0
}

func (b *policyBody) steps() []escalation.Step {
	steps := make([]escalation.Step, 0, len(b.Steps))
	for i, s := range b.Steps {
		number := s.StepNumber
		if number == 0 {
			number = i + 1
		}
		steps = append(steps, escalation.Step{
			StepNumber:   number,
			DelayMinutes: s.DelayMinutes,
			NotifyType:   escalation.NotifyType(s.NotifyType),
			TargetID:     s.TargetID,
			Channels:     s.Channels,
		})
	}
	return steps
}

type policyView struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	RepeatCount        int        `json:"repeat_count"`
	RepeatDelayMinutes int        `json:"repeat_delay_minutes"`
	Steps              []stepBody `json:"steps"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toPolicyView(p *escalation.Policy) policyView {
	steps := make([]stepBody, 0, len(p.Steps()))
	for _, s := range p.Steps() {
		steps = append(steps, stepBody{
			StepNumber:   s.StepNumber,
			DelayMinutes: s.DelayMinutes,
			NotifyType:   string(s.NotifyType),
			TargetID:     s.TargetID,
			Channels:     s.Channels,
		})
	}
	return policyView{
		ID:                 p.ID(),
		Name:               p.Name(),
		RepeatCount:        p.RepeatCount(),
		RepeatDelayMinutes: p.RepeatDelayMinutes(),
		Steps:              steps,
		CreatedAt:          p.CreatedAt(),
		UpdatedAt:          p.UpdatedAt(),
	}
}

type actionView struct {
	FireAt     time.Time   `json:"fire_at"`
	Cycle      int         `json:"cycle"`
	StepNumber int         `json:"step_number"`
	NotifyType string      `json:"notify_type"`
	TargetID   uuid.UUID   `json:"target_id"`
	UserIDs    []uuid.UUID `json:"user_ids"`
	Channels   []string    `json:"channels"`
}

type EscalationController struct {
	app application.Application
}

func NewEscalationController(app application.Application) application.Controller {
	return &EscalationController{app: app}
}

func (c *EscalationController) Key() string {
	return "/oncall/escalation-policies"
}

func (c *EscalationController) Register(r *mux.Router) {
	router := r.PathPrefix("/oncall/escalation-policies").Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Update).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/plan", c.Plan).Methods(http.MethodGet)
}

func (c *EscalationController) service() *services.EscalationService {
	return c.app.Service(services.EscalationService{}).(*services.EscalationService)
}

func (c *EscalationController) List(w http.ResponseWriter, r *http.Request) {
	policies, err := c.service().GetAll(r.Context())
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, toPolicyView(p))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, views)
}

func (c *EscalationController) Create(w http.ResponseWriter, r *http.Request) {
	body := &policyBody{}
	if !httpapi.DecodeBody(w, r, body) {
		return
	}
	if errs, ok := body.validate(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}

	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}

	created, err := c.service().Create(r.Context(), escalation.New(
		tenantID, body.Name, body.RepeatCount, body.RepeatDelayMinutes, body.steps(),
	))
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toPolicyView(created))
}

func (c *EscalationController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	policy, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toPolicyView(policy))
}

func (c *EscalationController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	body := &policyBody{}
	if !httpapi.DecodeBody(w, r, body) {
		return
	}
	if errs, ok := body.validate(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}

	existing, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	updated := escalation.Hydrate(
		existing.TenantID(), id, body.Name,
		body.RepeatCount, body.RepeatDelayMinutes, body.steps(),
		existing.CreatedAt(), existing.UpdatedAt(),
	)
	if err := c.service().Update(r.Context(), updated); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toPolicyView(updated))
}

func (c *EscalationController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.service().Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *EscalationController) Plan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	startAt, err := httpapi.QueryTime(r, "start_at", time.Now().UTC())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "start_at must be RFC 3339", nil)
		return
	}

	actions, err := c.service().BuildPlan(r.Context(), id, startAt)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, actionView{
			FireAt:     a.FireAt,
			Cycle:      a.Cycle,
			StepNumber: a.StepNumber,
			NotifyType: string(a.NotifyType),
			TargetID:   a.TargetID,
			UserIDs:    a.UserIDs,
			Channels:   a.Channels,
		})
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, views)
}
