package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/lang"
)

// ShowResult is the stored state of one subject.
type ShowResult struct {
	Subject ir.Subject  `json:"subject"`
	Facts   []ShowFact  `json:"facts"`
	Cache   *CacheView  `json:"concept_cache,omitempty"`
	Hashes  []TableHash `json:"fingerprint,omitempty"`
}

// ShowFact lists the values of one property.
type ShowFact struct {
	Property string   `json:"property"`
	Label    string   `json:"label"`
	Values   []string `json:"values"`
}

// CacheView is the display form of a concept cache record.
type CacheView struct {
	Status   ir.CacheStatus `json:"status"`
	Date     *time.Time     `json:"date,omitempty"`
	Count    int            `json:"count"`
	Size     int            `json:"size"`
	Depth    int            `json:"depth"`
	Features string         `json:"features"`
	Members  []string       `json:"members,omitempty"`
}

// TableHash is one fingerprint entry.
type TableHash struct {
	Table string `json:"table"`
	Hash  string `json:"hash"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <subject>",
		Short: "Print the stored facts of a subject",
		Long: `Print the facts stored for a subject, labelled in the configured language.
For concepts the cache record and cached members are shown as well.
With --verbose the per-table fingerprint is included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, rootOpts, args[0])
		},
	}
}

func runShow(cmd *cobra.Command, opts *RootOptions, text string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, err := openEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	subj, err := e.lang.ParseSubject(text, ir.NSMain)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid subject", err)
	}

	data, err := e.store.ReadSemanticData(ctx, subj)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read facts", err)
	}
	out := ShowResult{Subject: subj, Facts: []ShowFact{}}
	for _, p := range data.Properties() {
		fact := ShowFact{Property: p.Key, Label: e.lang.PropertyLabel(p)}
		for _, v := range data.Values(p) {
			fact.Values = append(fact.Values, displayValue(e.lang, p, v))
		}
		out.Facts = append(out.Facts, fact)
	}

	if subj.IsConcept() {
		rec, err := e.store.ReadConceptCache(ctx, subj)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read concept cache", err)
		}
		if rec != nil {
			out.Cache, err = cacheView(ctx, e, subj, *rec)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read concept members", err)
			}
		}
	}

	if opts.Verbose {
		hashes, err := e.store.Fingerprint(ctx, subj)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read fingerprint", err)
		}
		for _, table := range sortedKeys(hashes) {
			out.Hashes = append(out.Hashes, TableHash{Table: table, Hash: hashes[table]})
		}
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(out)
	}
	printShow(cmd, e.lang, out)
	return nil
}

func cacheView(ctx context.Context, e *env, concept ir.Subject, rec ir.CacheRecord) (*CacheView, error) {
	view := &CacheView{
		Status:   rec.Status,
		Count:    rec.Count,
		Size:     rec.Size,
		Depth:    rec.Depth,
		Features: rec.Features.String(),
	}
	if !rec.IsFull() {
		return view, nil
	}
	date := rec.Date.UTC()
	view.Date = &date
	members, err := e.store.ConceptMembers(ctx, concept)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		view.Members = append(view.Members, e.lang.PrefixedText(m))
	}
	return view, nil
}

// displayValue renders v for people. Datatype IDs are shown by label.
func displayValue(t *lang.Table, p ir.Property, v ir.DataItem) string {
	switch x := v.(type) {
	case ir.Blob:
		if p.Key == ir.PropType {
			return t.DatatypeLabel(string(x))
		}
		return string(x)
	case ir.Number:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case ir.Boolean:
		return strconv.FormatBool(bool(x))
	case ir.Time:
		return x.T.UTC().Format(time.RFC3339)
	case ir.Page:
		return t.PrefixedText(x.Subject)
	case ir.Concept:
		if x.Documentation != "" {
			return fmt.Sprintf("%s (%s)", x.Documentation, x.Description)
		}
		return x.Description
	default:
		return v.CanonicalKey()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printShow(cmd *cobra.Command, t *lang.Table, out ShowResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, t.PrefixedText(out.Subject))
	if len(out.Facts) == 0 {
		fmt.Fprintln(w, "  (no facts stored)")
	}
	for _, f := range out.Facts {
		for _, v := range f.Values {
			fmt.Fprintf(w, "  %s: %s\n", f.Label, v)
		}
	}
	if c := out.Cache; c != nil {
		fmt.Fprintf(w, "Concept cache: %s, %d members (size %d, depth %d, features %s)\n",
			c.Status, c.Count, c.Size, c.Depth, c.Features)
		if c.Date != nil {
			fmt.Fprintf(w, "  cached at %s\n", c.Date.Format(time.RFC3339))
		}
		for _, m := range c.Members {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	}
	for _, h := range out.Hashes {
		fmt.Fprintf(w, "  fingerprint %s %s\n", h.Table, h.Hash)
	}
}
