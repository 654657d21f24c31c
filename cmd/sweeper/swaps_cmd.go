package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	corepersistence "github.com/opsdesk-io/opsdesk/modules/core/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/configuration"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
)

// drain runs one sweep repeatedly until a pass comes back short of the
// batch size, so each transaction stays bounded while the backlog still
// empties in a single invocation.
func drain(ctx context.Context, batch int, sweep func(context.Context, int) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := sweep(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batch) {
			return total, nil
		}
	}
}

// newSwapsCmd expires stale pending swap requests and completes accepted
// ones whose window has passed, tenant by tenant. A tenant failure is
// logged and skipped so one bad tenant cannot stall the rest.
func newSwapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swaps",
		Short: "Expire stale swap requests and complete elapsed ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			logger := conf.Logger()

			ctx, cancel := context.WithTimeout(cmd.Context(), conf.Sweep.Timeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, conf.Database.Opts)
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx = composables.WithPool(ctx, pool)

			svc := services.NewSwapService(
				persistence.NewSwapRepository(),
				persistence.NewScheduleRepository(),
				persistence.NewOverrideRepository(),
				corepersistence.NewUserRepository(),
				corepersistence.NewSequenceRepository(),
				clockwork.NewRealClock(),
				eventbus.NewEventPublisher(logger),
			)

			tenants, err := corepersistence.NewTenantRepository().GetAll(ctx)
			if err != nil {
				return err
			}
			batch := conf.Sweep.BatchSize
			for _, t := range tenants {
				if !t.IsActive() {
					continue
				}
				tenantCtx := composables.WithTenantID(ctx, t.ID())
				log := logger.WithField("tenant_id", t.ID())

				expired, err := drain(tenantCtx, batch, svc.ExpireStale)
				if err != nil {
					log.WithError(err).Error("failed to expire swap requests")
					continue
				}
				completed, err := drain(tenantCtx, batch, svc.CompleteElapsed)
				if err != nil {
					log.WithError(err).Error("failed to complete swap requests")
					continue
				}
				if expired > 0 || completed > 0 {
					log.WithField("expired", expired).WithField("completed", completed).Info("swept swap requests")
				}
			}
			return nil
		},
	}
}
