package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/semstore/internal/jobs"
)

// JobsOptions holds flags for the jobs command.
type JobsOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewJobsCommand creates the jobs command.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JobsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List scheduled propagation jobs",
		Long: `List the propagation jobs scheduled when property declarations changed,
oldest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "only jobs in this state (queued|running|done)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of jobs (0 = all)")

	return cmd
}

func runJobs(cmd *cobra.Command, opts *JobsOptions) error {
	var status *jobs.Status
	switch s := jobs.Status(opts.Status); s {
	case "":
	case jobs.StatusQueued, jobs.StatusRunning, jobs.StatusDone:
		status = &s
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q", opts.Status))
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must be >= 0")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	list, err := e.queue.List(ctx, status, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list jobs", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(list)
	}
	w := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs.")
		return nil
	}
	for _, j := range list {
		fmt.Fprintf(w, "%s  %-8s %-12s %s\n", j.ID, j.Status, j.Kind, e.lang.PrefixedText(j.Subject))
	}
	return nil
}
