package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

var paySimulate bool

var payCmd = &cobra.Command{
	Use:   "pay <job-id>",
	Short: "Start payment for a completed job",
	Long: `pay prints the payment gateway URL the customer must visit to authorize
the charge. With --simulate (development only) the job is marked authorized
without contacting the gateway.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}

		if paySimulate {
			if !current.cfg.Devel.Enabled {
				return domain.ValidationError("simulated payment requires devel.enabled", nil)
			}
			view, err := svc.SimulatePayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			current.ui.Success("Job %s marked authorized", view.ID)
			return nil
		}

		redirect, err := svc.InitiatePayment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if current.ui.JSONMode() {
			return current.ui.JSON(map[string]string{"jobId": args[0], "redirectUrl": redirect})
		}
		current.ui.Info("Send the customer to:")
		fmt.Fprintln(current.ui.Out(), redirect)
		return nil
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all jobs and tasks to an Excel workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		data, err := svc.ExportXLSX(cmd.Context())
		if err != nil {
			return err
		}
		out := exportOutput
		if out == "" {
			out = "recapturedocs-jobs-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		current.ui.Success("Wrote %s (%d jobs)", out, len(svc.ListJobs()))
		return nil
	},
}

var disableConfirm bool

var disableAllCmd = &cobra.Command{
	Use:   "disable-all",
	Short: "Disable every registered task and forget all jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !disableConfirm {
			return domain.ValidationError("disable-all purges every job; pass --yes to confirm", nil)
		}
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		if !current.cfg.Devel.Enabled {
			return domain.ValidationError("disable-all requires devel.enabled", nil)
		}

		bar := current.ui.NewProgressBar(0, "Disabling tasks")
		report, err := svc.DisableAll(cmd.Context(), func(done, total int) {
			bar.SetTotal(int64(total))
			bar.Set(int64(done))
		})
		bar.Finish()
		if err != nil {
			return err
		}

		if current.ui.JSONMode() {
			return current.ui.JSON(report)
		}
		current.ui.Success("Disabled %d tasks and purged %d jobs", report.Disabled, report.Jobs)
		for _, id := range report.Failed {
			current.ui.Warning("Could not disable task %s", id)
		}
		current.ui.Info("Remember to remove the tasks from any other servers")
		return nil
	},
}

func init() {
	payCmd.Flags().BoolVar(&paySimulate, "simulate", false, "mark the job authorized without the gateway (devel only)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "workbook path")
	disableAllCmd.Flags().BoolVar(&disableConfirm, "yes", false, "confirm purging every job")

	rootCmd.AddCommand(payCmd, exportCmd, disableAllCmd)
}
