package services_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
	"github.com/opsdesk-io/opsdesk/modules/incident/domain/aggregates/incident"
	"github.com/opsdesk-io/opsdesk/modules/incident/services"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type noopTx struct {
	pgx.Tx
}

func testContext(tenantID, actorID uuid.UUID) context.Context {
	ctx := composables.WithTenantID(context.Background(), tenantID)
	if actorID != uuid.Nil {
		ctx = composables.WithActorID(ctx, actorID)
	}
	return composables.WithTx(ctx, noopTx{})
}

func newTestPublisher() eventbus.EventBus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return eventbus.NewEventPublisher(log)
}

type incidentRepoStub struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]*incident.Incident
}

func newIncidentRepoStub() *incidentRepoStub {
	return &incidentRepoStub{incidents: make(map[uuid.UUID]*incident.Incident)}
}

func (r *incidentRepoStub) clone(i *incident.Incident) *incident.Incident {
	return incident.Hydrate(
		i.TenantID(), i.ID(), i.Number(), i.Title(), i.Description(),
		i.Status(), i.Severity(), i.PolicyID(),
		i.AcknowledgedBy(), i.AcknowledgedAt(),
		i.ResolvedBy(), i.ResolvedAt(),
		i.CreatedAt(), i.UpdatedAt(),
	)
}

func (r *incidentRepoStub) GetPaginated(ctx context.Context, params *incident.FindParams) ([]*incident.Incident, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*incident.Incident, 0, len(r.incidents))
	for _, i := range r.incidents {
		if params.Status != "" && i.Status() != params.Status {
			continue
		}
		out = append(out, r.clone(i))
	}
	return out, int64(len(out)), nil
}

func (r *incidentRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.incidents[id]
	if !ok {
		return nil, serrors.NotFound("INCIDENT_NOT_FOUND", "incident not found")
	}
	return r.clone(i), nil
}

func (r *incidentRepoStub) Create(ctx context.Context, data *incident.Incident) (*incident.Incident, error) {
	created := incident.Hydrate(
		data.TenantID(), uuid.New(), data.Number(), data.Title(), data.Description(),
		data.Status(), data.Severity(), data.PolicyID(),
		uuid.Nil, time.Time{}, uuid.Nil, time.Time{},
		time.Now(), time.Now(),
	)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents[created.ID()] = created
	return r.clone(created), nil
}

func (r *incidentRepoStub) Update(ctx context.Context, data *incident.Incident) (*incident.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[data.ID()]; !ok {
		return nil, serrors.NotFound("INCIDENT_NOT_FOUND", "incident not found")
	}
	r.incidents[data.ID()] = r.clone(data)
	return r.clone(data), nil
}

type sequenceRepoStub struct {
	mu     sync.Mutex
	values map[sequence.Scope]int64
}

func newSequenceRepoStub() *sequenceRepoStub {
	return &sequenceRepoStub{values: make(map[sequence.Scope]int64)}
}

func (r *sequenceRepoStub) Next(ctx context.Context, scope sequence.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[scope]++
	return r.values[scope], nil
}

type incidentFixture struct {
	tenantID uuid.UUID
	actorID  uuid.UUID
	repo     *incidentRepoStub
	clock    *clockwork.FakeClock
	service  *services.IncidentService
}

func newIncidentFixture(t *testing.T) *incidentFixture {
	t.Helper()
	repo := newIncidentRepoStub()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC))
	svc := services.NewIncidentService(repo, newSequenceRepoStub(), nil, clock, newTestPublisher())
	return &incidentFixture{
		tenantID: uuid.New(),
		actorID:  uuid.New(),
		repo:     repo,
		clock:    clock,
		service:  svc,
	}
}

func (f *incidentFixture) ctx() context.Context {
	return testContext(f.tenantID, f.actorID)
}

func (f *incidentFixture) create(t *testing.T) *incident.Incident {
	t.Helper()
	created, err := f.service.Create(f.ctx(), &incident.CreateDTO{
		Title:    "api latency spike",
		Severity: "high",
	})
	require.NoError(t, err)
	return created
}

func TestIncidentCreate_AssignsNumber(t *testing.T) {
	f := newIncidentFixture(t)

	first := f.create(t)
	assert.Equal(t, "INC-000001", first.Number())
	assert.Equal(t, incident.StatusOpen, first.Status())

	second := f.create(t)
	assert.Equal(t, "INC-000002", second.Number())
}

func TestIncidentAcknowledge(t *testing.T) {
	f := newIncidentFixture(t)
	created := f.create(t)

	acked, err := f.service.Acknowledge(f.ctx(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, incident.StatusAcknowledged, acked.Status())
	assert.Equal(t, f.actorID, acked.AcknowledgedBy())
	assert.Equal(t, f.clock.Now(), acked.AcknowledgedAt())

	_, err = f.service.Acknowledge(f.ctx(), created.ID())
	require.ErrorIs(t, err, incident.ErrAlreadyAcknowledged)
}

func TestIncidentResolve(t *testing.T) {
	f := newIncidentFixture(t)
	created := f.create(t)

	resolved, err := f.service.Resolve(f.ctx(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, resolved.Status())
	assert.Equal(t, f.actorID, resolved.ResolvedBy())
	// direct resolve records the resolver as acknowledger too
	assert.Equal(t, f.actorID, resolved.AcknowledgedBy())

	_, err = f.service.Resolve(f.ctx(), created.ID())
	require.ErrorIs(t, err, incident.ErrAlreadyResolved)
	assert.Equal(t, serrors.KindInvalidState, serrors.KindOf(err))

	_, err = f.service.Acknowledge(f.ctx(), created.ID())
	require.ErrorIs(t, err, incident.ErrAlreadyResolved)
}

func TestIncidentUpdate(t *testing.T) {
	f := newIncidentFixture(t)
	created := f.create(t)

	title := "api latency spike in eu-west"
	severity := "critical"
	updated, err := f.service.Update(f.ctx(), created.ID(), &incident.UpdateDTO{
		Title:    &title,
		Severity: &severity,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title())
	assert.Equal(t, incident.SeverityCritical, updated.Severity())
	assert.Equal(t, "INC-000001", updated.Number())
}

func TestEscalationPreview_RequiresPolicy(t *testing.T) {
	f := newIncidentFixture(t)
	created := f.create(t)

	_, err := f.service.EscalationPreview(f.ctx(), created.ID(), time.Time{})
	require.ErrorIs(t, err, services.ErrNoEscalationPolicy)
	assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))
}
