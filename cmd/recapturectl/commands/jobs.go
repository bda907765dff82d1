package commands

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/recapturedocs/recapturedocs/cmd/recapturectl/ui"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List all jobs without polling the marketplace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		views := svc.ListJobs()
		if current.ui.JSONMode() {
			return current.ui.JSON(views)
		}
		if len(views) == 0 {
			current.ui.Info("No jobs")
			return nil
		}
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, []string{
				v.ID,
				v.Filename,
				string(v.State),
				fmt.Sprintf("%d/%d", v.TasksComplete, len(v.Tasks)),
				v.Cost,
				strconv.FormatBool(v.Authorized),
			})
		}
		current.ui.Table([]string{"ID", "FILE", "STATE", "DONE", "COST", "PAID"}, rows)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Poll a job's tasks and show its status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		view, err := svc.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJob(current.ui, view)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document and register one task per page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}

		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}

		current.ui.Step("Uploading %s (%s)", filepath.Base(path), ui.FormatBytes(int64(len(data))))
		spin := current.ui.NewSpinner("Splitting pages and registering tasks...")
		spin.Start()
		j, err := svc.Upload(cmd.Context(), data, contentTypeFor(path, data), filepath.Base(path))
		spin.Stop()
		if err != nil {
			if j != nil {
				current.ui.Warning("Job %s created but only %d of %d tasks registered; run `recapturectl register %s`",
					j.ID, j.RegisteredCount(), len(j.Tasks), j.ID)
			}
			return err
		}

		current.ui.Success("Job %s created with %d tasks", j.ID, len(j.Tasks))
		printJob(current.ui, orchestrator.NewJobView(j))
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <job-id>",
	Short: "Register the tasks a previous upload failed to create",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		j, err := svc.RetryRegistration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		current.ui.Success("%d of %d tasks registered", j.RegisteredCount(), len(j.Tasks))
		return nil
	},
}

var (
	watchInterval time.Duration
	watchTimeout  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>...",
	Short: "Poll jobs until every task is complete",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if watchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchTimeout)
			defer cancel()
		}

		svc, err := current.service(ctx)
		if err != nil {
			return err
		}

		tracker := current.ui.NewJobTracker()
		errs := make(chan error, len(args))
		updates := make(chan orchestrator.JobView)
		for _, id := range args {
			go func(id string) {
				errs <- svc.Watch(ctx, id, watchInterval, func(v orchestrator.JobView) {
					updates <- v
				})
			}(id)
		}

		var firstErr error
		for remaining := len(args); remaining > 0; {
			select {
			case v := <-updates:
				tracker.Update(shortID(v.ID), v.TasksComplete, len(v.Tasks))
				if current.ui.JSONMode() {
					current.ui.JSON(v)
				}
			case err := <-errs:
				remaining--
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		tracker.Close()

		if firstErr != nil {
			return firstErr
		}
		current.ui.Success("All watched jobs are complete")
		return nil
	},
}

var resultsOutput string

var resultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Print the assembled text of a completed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := current.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.GetResults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if current.ui.JSONMode() {
			return current.ui.JSON(res)
		}
		if !res.Complete {
			current.ui.Warning("Job %s is %s", args[0], res.Text)
			return nil
		}
		if resultsOutput != "" {
			if err := os.WriteFile(resultsOutput, []byte(res.Text), 0o644); err != nil {
				return fmt.Errorf("write results: %w", err)
			}
			current.ui.Success("Wrote %s", resultsOutput)
			return nil
		}
		fmt.Fprintln(current.ui.Out(), res.Text)
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "poll interval")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "give up after this long (0 waits forever)")
	resultsCmd.Flags().StringVarP(&resultsOutput, "output", "o", "", "write the text to a file")

	rootCmd.AddCommand(jobsCmd, statusCmd, uploadCmd, registerCmd, watchCmd, resultsCmd)
}

func printJob(u *ui.UI, v orchestrator.JobView) {
	if u.JSONMode() {
		u.JSON(v)
		return
	}
	u.Section("Job " + v.ID)
	u.KeyValue("File", v.Filename)
	u.KeyValue("State", v.State)
	u.KeyValue("Pages", v.Pages)
	u.KeyValue("Tasks", fmt.Sprintf("%d registered, %d complete", v.TasksRegistered, v.TasksComplete))
	u.KeyValue("Cost", "$"+v.Cost)
	u.KeyValue("Authorized", v.Authorized)
	if v.Declined {
		u.KeyValue("Declined", v.DeclineStatus)
	}
	if u.Verbose() {
		rows := make([][]string, 0, len(v.Tasks))
		for _, t := range v.Tasks {
			rows = append(rows, []string{strconv.Itoa(t.Page), t.ID, string(t.Status), strconv.Itoa(t.Assignments)})
		}
		u.Newline()
		u.Table([]string{"PAGE", "TASK", "STATUS", "ASSIGNMENTS"}, rows)
	}
}

func contentTypeFor(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
