package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/semstore/internal/factfile"
	"github.com/roach88/semstore/internal/updater"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	ChangeProp   bool
	NoUpdateJobs bool
}

// UpdateResult is the JSON payload of the update command.
type UpdateResult struct {
	Results []updater.Result `json:"results"`
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <fact-file>...",
		Short: "Store the facts of one or more subjects",
		Long: `Store each document of the given fact files as the complete set of facts
of its subject. Files ending in .json are read as JSON, anything else as YAML.

Every document is processed in order; page metadata in the documents feeds
the predefined page properties.

Examples:
  semstore update pages.yaml
  semstore update --no-update-jobs Property_Age.yaml
  semstore update pages.json --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.ChangeProp, "change-prop", false, "mark the updates as scheduled by change propagation")
	cmd.Flags().BoolVar(&opts.NoUpdateJobs, "no-update-jobs", false, "do not schedule propagation jobs or handle redirects")

	return cmd
}

func runUpdate(cmd *cobra.Command, opts *UpdateOptions, files []string) error {
	var docs []factfile.Document
	for _, path := range files {
		d, err := factfile.Load(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load fact file", err)
		}
		docs = append(docs, d...)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.connectBus(ctx); err != nil {
		return err
	}

	pages, err := factfile.NewPages(e.lang, docs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fact file", err)
	}
	u := e.updater(pages)

	updateOpts := updater.UpdateOptions{
		ChangeProp:      opts.ChangeProp,
		CommandLineMode: true,
	}
	if opts.NoUpdateJobs {
		off := false
		updateOpts.UpdateJobs = &off
	}

	out := UpdateResult{Results: make([]updater.Result, 0, len(docs))}
	for i, doc := range docs {
		data, err := doc.SemanticData(e.lang)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("document %d", i+1), err)
		}
		res, err := u.Update(ctx, data, updateOpts)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("update of %s failed", data.Subject()), err)
		}
		out.Results = append(out.Results, res)
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(out)
	}
	for _, res := range out.Results {
		fmt.Fprintln(cmd.OutOrStdout(), formatUpdate(e, res))
	}
	return nil
}

// formatUpdate renders one result as "<outcome> <subject> [notes]".
func formatUpdate(e *env, res updater.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %s", res.Outcome, e.lang.PrefixedText(res.Subject))
	if res.Target != nil {
		fmt.Fprintf(&b, " -> %s (%d rows moved)", e.lang.PrefixedText(*res.Target), res.Retarget.RowsMoved)
	}
	if len(res.Write.TablesChanged) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(res.Write.TablesChanged, ", "))
	}
	if res.Propagated {
		b.WriteString(" (propagation scheduled)")
	}
	return b.String()
}
