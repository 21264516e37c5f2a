package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/semstore/internal/conceptcache"
	"github.com/roach88/semstore/internal/ir"
)

// ConceptsOptions holds flags for the concepts command.
type ConceptsOptions struct {
	*RootOptions
	Status  bool
	Create  bool
	Delete  bool
	Concept string
	Start   int64
	End     int64
	Update  bool
	Old     int
	Hard    bool
	Quiet   bool
}

// ConceptsResult is the JSON payload of the concepts command.
type ConceptsResult struct {
	Action     conceptcache.Action `json:"action"`
	Considered int                 `json:"considered"`
	Processed  int                 `json:"processed"`
	Skipped    map[string]int      `json:"skipped,omitempty"`
}

// NewConceptsCommand creates the concepts command.
func NewConceptsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConceptsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "concepts (--status | --create | --delete)",
		Short: "Report, rebuild or purge concept caches",
		Long: `Work through concepts one by one: report their cache status, rebuild
their cached member sets, or purge them.

Without --concept every concept is selected; -s and -e restrict the run to
a range of concept IDs. --update, --old and --hard further skip concepts
whose cache is empty, fresh, or within the query limits.

Create and delete runs wait concepts.delay_seconds before starting unless
--quiet is given, so an accidental run can be interrupted.

Exit codes:
  0 - Run completed
  1 - Run stopped after processing some concepts
  2 - Command error
  3 - Run failed before processing any concept`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConcepts(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Status, "status", false, "report the cache status of each concept")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "rebuild concept caches")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "purge concept caches")
	cmd.Flags().StringVar(&opts.Concept, "concept", "", "process only this concept")
	cmd.Flags().Int64VarP(&opts.Start, "start", "s", 0, "first concept ID of the range")
	cmd.Flags().Int64VarP(&opts.End, "end", "e", 0, "last concept ID of the range")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "only concepts that already have a cache")
	cmd.Flags().IntVar(&opts.Old, "old", 0, "only concepts cached at least this many minutes ago")
	cmd.Flags().BoolVar(&opts.Hard, "hard", false, "only concepts exceeding the query limits")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "suppress progress output")

	cmd.MarkFlagsMutuallyExclusive("status", "create", "delete")
	cmd.MarkFlagsOneRequired("status", "create", "delete")
	cmd.MarkFlagsMutuallyExclusive("concept", "start")
	cmd.MarkFlagsMutuallyExclusive("concept", "end")

	return cmd
}

func (o *ConceptsOptions) action() conceptcache.Action {
	switch {
	case o.Create:
		return conceptcache.ActionCreate
	case o.Delete:
		return conceptcache.ActionDelete
	}
	return conceptcache.ActionStatus
}

func runConcepts(cmd *cobra.Command, opts *ConceptsOptions) error {
	if opts.Old < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--old must be >= 0, got %d", opts.Old))
	}
	if opts.Start < 0 || opts.End < 0 {
		return NewExitError(ExitCommandError, "-s and -e must be >= 0")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	runOpts := conceptcache.Options{
		Action:     opts.action(),
		StartID:    opts.Start,
		EndID:      opts.End,
		UpdateOnly: opts.Update,
		OldOnly:    opts.Old > 0,
		OldMinutes: opts.Old,
		HardOnly:   opts.Hard,
		Quiet:      opts.Quiet,
		Verbose:    opts.Verbose,
	}
	if opts.Concept != "" {
		subj, err := e.lang.ParseSubject(opts.Concept, ir.NSConcept)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid concept", err)
		}
		runOpts.Concept = &subj
	}

	// Progress text would break JSON output on stdout.
	f := opts.formatter(cmd)
	reportTo := f.Writer
	if opts.Format == "json" {
		reportTo = cmd.ErrOrStderr()
	}

	rebuilder := conceptcache.New(e.store, e.settings.QueryLimits(),
		conceptcache.WithReporter(conceptcache.NewWriterReporter(reportTo, runOpts.OutputLevel())),
		conceptcache.WithDelay(e.settings.ConceptDelay()),
		conceptcache.WithLanguage(e.lang),
		conceptcache.WithLogger(e.logger))

	sum, err := rebuilder.Rebuild(ctx, runOpts)
	if err != nil {
		return conceptRunExit(err)
	}

	if opts.Format == "json" {
		out := ConceptsResult{
			Action:     sum.Action,
			Considered: sum.Considered,
			Processed:  sum.Processed,
		}
		if len(sum.Skipped) > 0 {
			out.Skipped = make(map[string]int, len(sum.Skipped))
			for reason, n := range sum.Skipped {
				out.Skipped[reason.String()] = n
			}
		}
		return f.Success(out)
	}
	return nil
}
