package modules

import (
	"github.com/opsdesk-io/opsdesk/modules/core"
	"github.com/opsdesk-io/opsdesk/modules/incident"
	"github.com/opsdesk-io/opsdesk/modules/oncall"
	"github.com/opsdesk-io/opsdesk/pkg/application"
)

// BuiltInModules is registered in order: incident depends on oncall's
// escalation evaluator, oncall on core's users and sequences.
var BuiltInModules = []application.Module{
	core.NewModule(),
	oncall.NewModule(),
	incident.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, append(BuiltInModules, externalModules...)...)
}
