package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
	"github.com/opsdesk-io/opsdesk/pkg/httpapi"
)

type scheduleView struct {
	ID                 uuid.UUID    `json:"id"`
	Name               string       `json:"name"`
	Timezone           string       `json:"timezone"`
	RotationType       string       `json:"rotation_type"`
	RotationLengthDays int          `json:"rotation_length_days,omitempty"`
	HandoffTime        string       `json:"handoff_time"`
	HandoffWeekday     int          `json:"handoff_weekday"`
	Epoch              time.Time    `json:"epoch"`
	IsActive           bool         `json:"is_active"`
	Members            []memberView `json:"members"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

type memberView struct {
	UserID   uuid.UUID `json:"user_id"`
	Position int       `json:"position"`
	IsActive bool      `json:"is_active"`
}

type assignmentView struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	UserID     uuid.UUID `json:"user_id"`
	Source     string    `json:"source"`
	At         time.Time `json:"at"`
}

type listView struct {
	Items []scheduleView `json:"items"`
	Total int64          `json:"total"`
}

func toScheduleView(s *schedule.Schedule) scheduleView {
	members := make([]memberView, 0, len(s.Members()))
	for _, m := range s.Members() {
		members = append(members, memberView{UserID: m.UserID, Position: m.Position, IsActive: m.IsActive})
	}
	return scheduleView{
		ID:                 s.ID(),
		Name:               s.Name(),
		Timezone:           s.Timezone(),
		RotationType:       string(s.RotationKind()),
		RotationLengthDays: s.RotationLengthDays(),
		HandoffTime:        s.HandoffTime(),
		HandoffWeekday:     int(s.HandoffWeekday()),
		Epoch:              s.Epoch(),
		IsActive:           s.IsActive(),
		Members:            members,
		CreatedAt:          s.CreatedAt(),
		UpdatedAt:          s.UpdatedAt(),
	}
}

type SchedulesController struct {
	app application.Application
}

func NewSchedulesController(app application.Application) application.Controller {
	return &SchedulesController{app: app}
}

func (c *SchedulesController) Key() string {
	return "/oncall/schedules"
}

func (c *SchedulesController) Register(r *mux.Router) {
	router := r.PathPrefix("/oncall/schedules").Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Update).Methods(http.MethodPatch)
	router.HandleFunc("/{id}/members", c.ReplaceMembers).Methods(http.MethodPut)
	router.HandleFunc("/{id}/on-call", c.WhoIsOnCall).Methods(http.MethodGet)
	router.HandleFunc("/{id}/overrides", c.CreateOverride).Methods(http.MethodPost)
	router.HandleFunc("/{id}/shifts", c.CreateShift).Methods(http.MethodPost)
	router.HandleFunc("/{id}/applications/{applicationID}", c.LinkApplication).Methods(http.MethodPost)
	router.HandleFunc("/{id}/applications/{applicationID}", c.UnlinkApplication).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/roster.xlsx", c.ExportRoster).Methods(http.MethodGet)

	r.HandleFunc("/oncall/overrides/{id}", c.DeleteOverride).Methods(http.MethodDelete)
	r.HandleFunc("/oncall/shifts/{id}", c.DeleteShift).Methods(http.MethodDelete)
	r.HandleFunc("/oncall/applications/{applicationID}/on-call", c.WhoIsOnCallForApp).Methods(http.MethodGet)
}

func (c *SchedulesController) scheduleService() *services.ScheduleService {
	return c.app.Service(services.ScheduleService{}).(*services.ScheduleService)
}

func (c *SchedulesController) oncallService() *services.OnCallService {
	return c.app.Service(services.OnCallService{}).(*services.OnCallService)
}

func (c *SchedulesController) exportService() *services.ExportService {
	return c.app.Service(services.ExportService{}).(*services.ExportService)
}

func (c *SchedulesController) List(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	params := &schedule.FindParams{
		Q:          r.URL.Query().Get("q"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      queryInt(r, "limit", conf.PageSize, conf.MaxPageSize),
		Offset:     queryInt(r, "offset", 0, 1<<30),
	}

	items, total, err := c.scheduleService().GetPaginated(r.Context(), params)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}

	views := make([]scheduleView, 0, len(items))
	for _, s := range items {
		views = append(views, toScheduleView(s))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, listView{Items: views, Total: total})
}

func (c *SchedulesController) Create(w http.ResponseWriter, r *http.Request) {
	dto := &schedule.CreateDTO{}
	if !httpapi.DecodeBody(w, r, dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}
	if dto.Epoch.IsZero() {
		dto.Epoch = time.Now().UTC()
	}

	created, err := c.scheduleService().Create(r.Context(), dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toScheduleView(created))
}

func (c *SchedulesController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sched, err := c.scheduleService().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toScheduleView(sched))
}

func (c *SchedulesController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dto := &schedule.UpdateDTO{}
	if !httpapi.DecodeBody(w, r, dto) {
		return
	}
	if errs, ok := dto.Ok(); !ok {
		_ = httpapi.WriteValidationErrors(w, errs)
		return
	}

	updated, err := c.scheduleService().Update(r.Context(), id, dto)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toScheduleView(updated))
}

func (c *SchedulesController) ReplaceMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Members []schedule.MemberDTO `json:"members"`
	}
	if !httpapi.DecodeBody(w, r, &body) {
		return
	}

	members := make([]schedule.MemberInput, 0, len(body.Members))
	for _, m := range body.Members {
		members = append(members, schedule.MemberInput{
			UserID:   m.UserID,
			Position: m.Position,
			IsActive: m.IsActive,
		})
	}
	if err := c.scheduleService().ReplaceMembers(r.Context(), id, members); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *SchedulesController) WhoIsOnCall(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	at, err := httpapi.QueryTime(r, "at", time.Now().UTC())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "at must be RFC 3339", nil)
		return
	}

	assignment, err := c.oncallService().WhoIsOnCall(r.Context(), id, at)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, assignmentView{
		ScheduleID: assignment.ScheduleID,
		UserID:     assignment.UserID,
		Source:     string(assignment.Source),
		At:         at,
	})
}

func (c *SchedulesController) WhoIsOnCallForApp(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathUUID(w, r, "applicationID")
	if !ok {
		return
	}
	at, err := httpapi.QueryTime(r, "at", time.Now().UTC())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "at must be RFC 3339", nil)
		return
	}

	assignments, err := c.oncallService().WhoIsOnCallForApp(r.Context(), appID, at)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{
			ScheduleID: a.ScheduleID,
			UserID:     a.UserID,
			Source:     string(a.Source),
			At:         at,
		})
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, views)
}

func (c *SchedulesController) CreateOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		UserID         uuid.UUID  `json:"user_id"`
		OriginalUserID *uuid.UUID `json:"original_user_id"`
		StartTime      time.Time  `json:"start_time"`
		EndTime        time.Time  `json:"end_time"`
		Reason         string     `json:"reason"`
	}
	if !httpapi.DecodeBody(w, r, &body) {
		return
	}
	if !body.EndTime.After(body.StartTime) {
		_ = httpapi.WriteValidationErrors(w, map[string]string{"end_time": "must be after start_time"})
		return
	}

	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	originalUserID := uuid.Nil
	if body.OriginalUserID != nil {
		originalUserID = *body.OriginalUserID
	}

	created, err := c.scheduleService().CreateOverride(r.Context(), override.New(
		tenantID, id, body.UserID, originalUserID, body.StartTime, body.EndTime, body.Reason,
	))
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"user_id":    created.UserID(),
		"start_time": created.StartTime(),
		"end_time":   created.EndTime(),
	})
}

func (c *SchedulesController) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.scheduleService().DeleteOverride(r.Context(), id); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *SchedulesController) CreateShift(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		UserID    uuid.UUID `json:"user_id"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		ShiftType string    `json:"shift_type"`
		Layer     int       `json:"layer"`
	}
	if !httpapi.DecodeBody(w, r, &body) {
		return
	}
	if !body.EndTime.After(body.StartTime) {
		_ = httpapi.WriteValidationErrors(w, map[string]string{"end_time": "must be after start_time"})
		return
	}
	if body.ShiftType == "" {
		body.ShiftType = string(shift.TypePrimary)
	}
	if body.Layer < 1 {
		body.Layer = 1
	}

	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}

	created, err := c.scheduleService().CreateShift(r.Context(), shift.New(
		tenantID, id, body.UserID, body.StartTime, body.EndTime, shift.Type(body.ShiftType), body.Layer,
	))
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"user_id":    created.UserID(),
		"shift_type": string(created.ShiftType()),
		"layer":      created.Layer(),
	})
}

func (c *SchedulesController) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.scheduleService().DeleteShift(r.Context(), id); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *SchedulesController) LinkApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	appID, ok := pathUUID(w, r, "applicationID")
	if !ok {
		return
	}
	if err := c.scheduleService().LinkApplication(r.Context(), id, appID); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *SchedulesController) UnlinkApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	appID, ok := pathUUID(w, r, "applicationID")
	if !ok {
		return
	}
	if err := c.scheduleService().UnlinkApplication(r.Context(), id, appID); err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *SchedulesController) ExportRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	now := time.Now().UTC()
	from, err := httpapi.QueryTime(r, "from", now)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "from must be RFC 3339", nil)
		return
	}
	to, err := httpapi.QueryTime(r, "to", now.AddDate(0, 0, 13))
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_TIME", "to must be RFC 3339", nil)
		return
	}

	sched, err := c.scheduleService().GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}
	workbook, err := c.exportService().RosterWorkbook(r.Context(), id, from, to)
	if err != nil {
		_ = httpapi.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+services.RosterFilename(sched.Name(), from, to)+`"`)
	if err := workbook.Write(w); err != nil {
		composables.UseLogger(r.Context()).WithError(err).Error("failed to stream roster workbook")
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
