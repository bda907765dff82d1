package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow job lifecycle events published by the API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := current.loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Events.Enabled {
			return domain.ConfigError("events.enabled is false; nothing is published", nil)
		}
		if _, err := current.service(ctx); err != nil {
			return err
		}

		events, unsubscribe, err := current.runtime.Audit.Subscribe(ctx)
		if err != nil {
			return err
		}
		defer unsubscribe()

		current.ui.Info("Listening on %s (Ctrl-C to stop)", cfg.Events.Channel)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if current.ui.JSONMode() {
					current.ui.JSON(ev)
					continue
				}
				current.ui.Step("%s %-20s job=%s state=%s",
					ev.OccurredAt.Local().Format(time.TimeOnly), ev.Action, ev.JobID, ev.State)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
