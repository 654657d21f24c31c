package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
	"github.com/opsdesk-io/opsdesk/pkg/httpapi"
)

type swapView struct {
	ID               uuid.UUID  `json:"id"`
	Number           string     `json:"number"`
	ScheduleID       uuid.UUID  `json:"schedule_id"`
	RequesterID      uuid.UUID  `json:"requester_id"`
	OfferedToUserID  *uuid.UUID `json:"offered_to_user_id,omitempty"`
	OriginalStart    time.Time  `json:"original_start"`
	OriginalEnd      time.Time  `json:"original_end"`
	Reason           string     `json:"reason,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Status           string     `json:"status"`
	AccepterID       *uuid.UUID `json:"accepter_id,omitempty"`
	ReplacementStart *time.Time `json:"replacement_start,omitempty"`
	ReplacementEnd   *time.Time `json:"replacement_end,omitempty"`
	ResponseMessage  string     `json:"response_message,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	ApprovedBy       *uuid.UUID `json:"approved_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toSwapView(r *swap.Request) swapView {
	v := swapView{
		ID:              r.ID(),
		Number:          r.Number(),
		ScheduleID:      r.ScheduleID(),
		RequesterID:     r.RequesterID(),
		OriginalStart:   r.OriginalStart(),
		OriginalEnd:     r.OriginalEnd(),
		Reason:          r.Reason(),
		Status:          string(r.Status()),
		ResponseMessage: r.ResponseMessage(),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
	if id := r.OfferedToUserID(); id != uuid.Nil {
		v.OfferedToUserID = &id
	}
	if id := r.AccepterID(); id != uuid.Nil {
		v.AccepterID = &id
	}
	if id := r.ApprovedBy(); id != uuid.Nil {
		v.ApprovedBy = &id
	}
	if t := r.ExpiresAt(); !t.IsZero() {
		v.ExpiresAt = &t
	}
	if t := r.ReplacementStart(); !t.IsZero() {
		v.ReplacementStart = &t
	}
	if t := r.ReplacementEnd(); !t.IsZero() {
		v.ReplacementEnd = &t
	}
	if t := r.RespondedAt(); !t.IsZero() {
		v.RespondedAt = &t
	}
	return v
}

type swapListView struct {
	Items []swapView `json:"items"`
	Total int64      `json:"total"`
}

type SwapsController struct {
	app application.Application
}

func NewSwapsController(app application.Application) application.Controller {
	return &SwapsController{app: app}
}

func (c *SwapsController) Key() string {
	return "/oncall/swaps"
}

func (c *SwapsController) Register(r *mux.Router) {
	router := r.PathPrefix("/oncall/swaps").Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Update).Methods(http.MethodPatch)
	router.HandleFunc("/{id}/cancel", c.Cancel).Methods(http.MethodPost)
	router.HandleFunc("/{id}/accept", c.Accept).Methods(http.MethodPost)
	router.HandleFunc("/{id}/reject", c.Reject).Methods(http.MethodPost)
	router.HandleFunc("/{id}/approve", c.Approve).Methods(http.MethodPost)
}

func (c *SwapsController) service() *services.SwapService {
	return c.app.Service(services.SwapService{}).(*services.SwapService)
}

func (c *SwapsController) List(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	params := &swap.FindParams{
		Status: swap.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", conf.PageSize, conf.MaxPageSize),
		Offset: queryInt(r, "offset", 0, 1<<30),
	}
	if raw := r.URL.Query().Get("schedule_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_ID", "malformed schedule_id", nil)
			return
		}
		params.ScheduleID = id
	}
	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_ID", "malformed requester_id", nil)
			return
		}
		params.RequesterID = id
	}

	items, total, err := c.service().GetPaginated(r.Context(), params)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]swapView, 0, len(items))
	for _, item := range items {
		views = append(views, toSwapView(item))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, swapListView{Items: views, Total: total})
}

func (c *SwapsController) Create(w http.ResponseWriter, r *http.Request) {
	dto := &swap.CreateDTO{}
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
	_ = httpapi.WriteJSON(w, http.StatusCreated, toSwapView(created))
}

func (c *SwapsController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entity, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(entity))
}

func (c *SwapsController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &swap.UpdateDTO{}
	if !httpapi.DecodeBody(w, r, dto) {
		return
	}

	updated, err := c.service().Update(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(updated))
}

func (c *SwapsController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entity, err := c.service().Cancel(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(entity))
}

func (c *SwapsController) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &swap.RespondDTO{}
	if r.ContentLength > 0 && !httpapi.DecodeBody(w, r, dto) {
		return
	}

	entity, err := c.service().Accept(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(entity))
}

func (c *SwapsController) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &swap.RespondDTO{}
	if r.ContentLength > 0 && !httpapi.DecodeBody(w, r, dto) {
		return
	}

	entity, err := c.service().Reject(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(entity))
}

func (c *SwapsController) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &swap.ApproveDTO{}
	if r.ContentLength > 0 && !httpapi.DecodeBody(w, r, dto) {
		return
	}

	entity, err := c.service().Approve(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toSwapView(entity))
}
