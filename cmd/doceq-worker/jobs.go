package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/pablopunk/doceq/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newJobsCmd groups the per-job admin operations from spec §4.8: list,
// get, retry, cancel, cancel-queued, delete, delete-by-state, run-now
// and force-unlock. Each subcommand opens its own database handle and
// closes it before returning, since this is a one-shot CLI invocation
// rather than a long-lived process.
func newJobsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and administer individual jobs",
	}
	cmd.AddCommand(
		newJobsListCmd(v),
		newJobsGetCmd(v),
		newJobsRetryCmd(v),
		newJobsCancelCmd(v),
		newJobsCancelQueuedCmd(v),
		newJobsDeleteCmd(v),
		newJobsDeleteByStateCmd(v),
		newJobsRunNowCmd(v),
		newJobsForceUnlockCmd(v),
	)
	return cmd
}

func newJobsListCmd(v *viper.Viper) *cobra.Command {
	var (
		stateFlag     string
		typeFlag      string
		projectFlag   string
		queryFlag     string
		limitFlag     int
		offsetFlag    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs matching filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			filters := store.Filters{Type: job.Type(typeFlag), Query: queryFlag}
			if stateFlag != "" {
				state, err := job.ParseState(stateFlag)
				if err != nil {
					return err
				}
				filters.State = state
			}
			if projectFlag != "" {
				id, err := uuid.Parse(projectFlag)
				if err != nil {
					return fmt.Errorf("parse --project: %w", err)
				}
				filters.ProjectID = &id
			}

			jobs, err := engine.ListJobs(ctx, filters, limitFlag, offsetFlag)
			if err != nil {
				return err
			}
			printJobsTable(jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", "", "filter by state (queued, running, succeeded, failed, cancelled)")
	cmd.Flags().StringVar(&typeFlag, "type", "", "filter by job type")
	cmd.Flags().StringVar(&projectFlag, "project", "", "filter by project id")
	cmd.Flags().StringVar(&queryFlag, "query", "", "free-text match on payload/last_error")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "max rows to return")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "pagination offset")
	return cmd
}

func newJobsGetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one job's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			j, err := engine.GetJob(ctx, id)
			if err != nil {
				return err
			}
			if j == nil {
				return fmt.Errorf("job %s not found", id)
			}
			printJobDetail(j)
			return nil
		},
	}
}

func newJobsRetryCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-enqueue a copy of a terminal job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			clone, err := engine.RetryJob(ctx, id, uuid.New())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "retried %s as new job %s\n", id, clone.ID)
			return nil
		},
	}
}

func newJobsCancelCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cooperative cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.RequestCancel(ctx, id)
		},
	}
}

func newJobsCancelQueuedCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-queued <id>",
		Short: "Cancel a job directly, only if it has not yet been claimed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			ok, err := engine.CancelQueuedJob(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s was not queued", id)
			}
			return nil
		},
	}
}

func newJobsDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a terminal job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.DeleteJob(ctx, id)
		},
	}
}

func newJobsDeleteByStateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-by-state <state>",
		Short: "Bulk-delete every job in a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			state, err := job.ParseState(args[0])
			if err != nil {
				return err
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := engine.DeleteJobsByState(ctx, state)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "deleted %d jobs\n", n)
			return nil
		},
	}
}

func newJobsRunNowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run-now <id>",
		Short: "Bring a queued job's run_at forward to now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			ok, err := engine.RunNow(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s was not queued", id)
			}
			return nil
		},
	}
}

func newJobsForceUnlockCmd(v *viper.Viper) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "force-unlock <id>",
		Short: "Force a job of any state to failed, clearing its lease unconditionally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.ForceUnlock(ctx, id, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "force-unlocked by admin", "last_error recorded on the job")
	return cmd
}

func printJobsTable(jobs []*job.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATE\tPROJECT\tATTEMPTS\tRUN_AT")
	for _, j := range jobs {
		project := "-"
		if j.ProjectID != nil {
			project = j.ProjectID.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Type, j.State, project,
			strconv.Itoa(int(j.Attempts))+"/"+strconv.Itoa(int(j.MaxAttempts)),
			j.RunAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	w.Flush()
}

func printJobDetail(j *job.Job) {
	fmt.Fprintf(os.Stdout, "id:             %s\n", j.ID)
	fmt.Fprintf(os.Stdout, "type:           %s\n", j.Type)
	fmt.Fprintf(os.Stdout, "state:          %s\n", j.State)
	if j.ProjectID != nil {
		fmt.Fprintf(os.Stdout, "project_id:     %s\n", j.ProjectID)
	}
	fmt.Fprintf(os.Stdout, "priority:       %d\n", j.Priority)
	fmt.Fprintf(os.Stdout, "attempts:       %d/%d\n", j.Attempts, j.MaxAttempts)
	fmt.Fprintf(os.Stdout, "run_at:         %s\n", j.RunAt)
	fmt.Fprintf(os.Stdout, "locked_by:      %s\n", j.LockedBy)
	fmt.Fprintf(os.Stdout, "dedupe_key:     %s\n", j.DedupeKey)
	fmt.Fprintf(os.Stdout, "last_error:     %s\n", j.LastError)
	fmt.Fprintf(os.Stdout, "payload:        %s\n", string(j.Payload))
	fmt.Fprintf(os.Stdout, "created_at:     %s\n", j.CreatedAt)
	fmt.Fprintf(os.Stdout, "updated_at:     %s\n", j.UpdatedAt)
}
