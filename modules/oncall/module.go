package oncall

import (
	"embed"

	"github.com/jonboulle/clockwork"

	corepersistence "github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/presentation/controllers"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/oncall-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "oncall"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	scheduleRepo := persistence.NewScheduleRepository()
	overrideRepo := persistence.NewOverrideRepository()
	shiftRepo := persistence.NewShiftRepository()

	oncallService := services.NewOnCallService(scheduleRepo, overrideRepo, shiftRepo)
	app.RegisterServices(
		oncallService,
		services.NewScheduleService(scheduleRepo, overrideRepo, shiftRepo, app.EventPublisher()),
		services.NewSwapService(
			persistence.NewSwapRepository(),
			scheduleRepo,
			overrideRepo,
			corepersistence.NewUserRepository(),
			corepersistence.NewSequenceRepository(),
			clockwork.NewRealClock(),
			app.EventPublisher(),
		),
		services.NewEscalationService(
			persistence.NewEscalationRepository(),
			oncallService,
			corepersistence.NewGroupRepository(),
		),
		services.NewExportService(scheduleRepo, oncallService, corepersistence.NewUserRepository()),
	)

	app.RegisterControllers(
		controllers.NewSchedulesController(app),
		controllers.NewSwapsController(app),
		controllers.NewEscalationController(app),
	)

	registerNotificationHandlers(app)
	return nil
}

// registerNotificationHandlers subscribes the delivery hooks. The default
// handlers only log; a real notification adapter replaces them by
// subscribing to the same events.
func registerNotificationHandlers(app application.Application) {
	logger := app.Logger()

	app.EventPublisher().Subscribe(func(ev services.SwapAcceptedEvent) {
		logger.WithField("swap_number", ev.Result.Number()).
			WithField("accepter_id", ev.Result.AccepterID()).
			Info("swap accepted, notifying requester")
	})
	app.EventPublisher().Subscribe(func(ev services.SwapRejectedEvent) {
		logger.WithField("swap_number", ev.Result.Number()).
			Info("swap rejected, notifying requester")
	})
	app.EventPublisher().Subscribe(func(ev services.EscalationTriggeredEvent) {
		logger.WithField("step", ev.Action.StepNumber).
			WithField("targets", len(ev.Action.UserIDs)).
			Info("escalation step fired")
	})
}
