package incident

import (
	"embed"

	"github.com/jonboulle/clockwork"

	corepersistence "github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/incident/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/incident/presentation/controllers"
	"github.com/opsdesk-io/opsdesk/modules/incident/services"
	oncallservices "github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/incident-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "incident"
}

// Register wires incidents against the escalation evaluator; the oncall
// module must be loaded first.
func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	escalation := app.Service(oncallservices.EscalationService{}).(*oncallservices.EscalationService)

	app.RegisterServices(
		services.NewIncidentService(
			persistence.NewIncidentRepository(),
			corepersistence.NewSequenceRepository(),
			escalation,
			clockwork.NewRealClock(),
			app.EventPublisher(),
		),
	)

	app.RegisterControllers(
		controllers.NewIncidentsController(app),
	)
	return nil
}
