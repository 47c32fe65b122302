package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shilder25/opinion-arena/internal/scheduler"
	"github.com/Shilder25/opinion-arena/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and cron scheduler",
		Long: `Starts the admin HTTP server together with the scheduled jobs: the
daily trading cycle, the periodic order monitor, and the midnight
status snapshot. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.build(); err != nil {
				return err
			}
			defer app.close()

			srv := server.New(server.Deps{
				Config:       app.Config,
				Store:        app.Store,
				Orchestrator: app.Orchestrator,
				Monitor:      app.Monitor,
				Logger:       app.Logger,
			})

			sched := scheduler.New(app.Logger)
			if err := sched.AddJob(app.Config.Cycle.CronSpec, &scheduler.CycleJob{Orchestrator: app.Orchestrator}); err != nil {
				return err
			}
			if err := sched.AddJob(app.Config.Monitor.CronSpec, &scheduler.MonitorJob{Monitor: app.Monitor}); err != nil {
				return err
			}
			if err := sched.AddJob("0 0 * * *", &scheduler.StatusJob{Store: app.Store, Logger: app.Logger}); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				app.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}
