package core

import (
	"embed"

	"github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/core/services"
	"github.com/opsdesk-io/opsdesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/core-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "core"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.RegisterServices(
		services.NewTenantService(persistence.NewTenantRepository(), app.EventPublisher()),
		services.NewUserService(persistence.NewUserRepository(), app.EventPublisher()),
		services.NewGroupService(persistence.NewGroupRepository(), app.EventPublisher()),
		services.NewSequenceService(persistence.NewSequenceRepository()),
	)
	return nil
}
