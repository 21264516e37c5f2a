package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/semstore/internal/ir"
)

// DeleteResult reports one deleted subject.
type DeleteResult struct {
	Subject ir.Subject `json:"subject"`
	Found   bool       `json:"found"`
	Rows    int64      `json:"rows_deleted"`
	IDs     int        `json:"ids_freed"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <subject>...",
		Short: "Remove every stored fact of subjects",
		Long: `Remove the facts, subobjects, fingerprint and concept cache of each subject.
Subjects are written as page titles with an optional namespace prefix,
e.g. "Berlin" or "Property:Population".

Whether the freed IDs are reused follows store.id_retention.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, rootOpts, args)
		},
	}
}

func runDelete(cmd *cobra.Command, opts *RootOptions, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	subjects := make([]ir.Subject, 0, len(args))
	for _, text := range args {
		subj, err := e.lang.ParseSubject(text, ir.NSMain)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid subject", err)
		}
		subjects = append(subjects, subj)
	}

	results := make([]DeleteResult, 0, len(subjects))
	for _, subj := range subjects {
		stats, err := e.store.DeleteSubject(ctx, subj)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("delete of %s failed", subj), err)
		}
		results = append(results, DeleteResult{
			Subject: subj,
			Found:   stats.Found,
			Rows:    stats.RowsDeleted,
			IDs:     stats.IDsFreed,
		})
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		if !r.Found {
			fmt.Fprintf(w, "%s: not stored\n", e.lang.PrefixedText(r.Subject))
			continue
		}
		fmt.Fprintf(w, "%s: %d rows deleted, %d ids freed\n", e.lang.PrefixedText(r.Subject), r.Rows, r.IDs)
	}
	return nil
}
