// Package demo runs the canonical query scenarios against an in-memory
// sample database and prints what the detector reports.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/datastore"
	"github.com/tphakala/preloadwatch/internal/datastore/sample"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/gormhook"
	"github.com/tphakala/preloadwatch/internal/logger"
	"github.com/tphakala/preloadwatch/internal/notify"
	"github.com/tphakala/preloadwatch/internal/scenario"
)

// Options selects what the demo runs and how it prints.
type Options struct {
	Format    string
	Scenarios []string
	Dispatch  bool
}

// Result is one scenario outcome in json and yaml output.
type Result struct {
	Scenario    string        `json:"scenario" yaml:"scenario"`
	Description string        `json:"description" yaml:"description"`
	Report      notify.Report `json:"report" yaml:"report"`
}

// Command returns the demo command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		opts Options
		list bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the canonical N+1 and eager loading scenarios",
		Long: `Run query scenarios against an in-memory SQLite copy of the sample
domain and print the detector report for each.

Examples:
  preloadwatch demo
  preloadwatch demo --scenario n-plus-one --scenario unused-preload --format json
  preloadwatch demo --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				for _, s := range scenario.All() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", s.Name, s.Description)
				}
				return nil
			}
			return Run(cmd.Context(), cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", notify.FormatText, "Output format: text, json or yaml")
	cmd.Flags().StringSliceVarP(&opts.Scenarios, "scenario", "s", nil, "Scenario to run, repeatable (default: all)")
	cmd.Flags().BoolVar(&opts.Dispatch, "notify", false, "Also deliver reports through the configured notifiers")
	cmd.Flags().BoolVar(&list, "list", false, "List scenarios and exit")
	return cmd
}

// Run executes the selected scenarios and writes their reports to w.
func Run(ctx context.Context, w io.Writer, settings *conf.Settings, opts Options) error {
	log := logger.Global().Module("cli")

	switch opts.Format {
	case notify.FormatText, notify.FormatJSON, notify.FormatYAML:
	default:
		return errors.Newf("unknown format %q, want text, json or yaml", opts.Format).
			Category(errors.CategoryValidation).
			Build()
	}

	selected, err := selectScenarios(opts.Scenarios)
	if err != nil {
		return err
	}

	store, err := datastore.Open(&conf.DatabaseSettings{
		Type:          conf.DatabaseSQLite,
		SlowThreshold: settings.Database.SlowThreshold,
		SQLite:        conf.SQLiteSettings{Path: ":memory:"},
	}, log, gormhook.New(gormhook.WithLogger(log)))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(sample.Models()...); err != nil {
		return err
	}
	if err := sample.Seed(ctx, store.DB()); err != nil {
		return err
	}

	var dispatcher *notify.Dispatcher
	if opts.Dispatch {
		if dispatcher, err = notify.FromSettings(settings, log); err != nil {
			return err
		}
		defer func() { _ = dispatcher.Close() }()
	}

	results := make([]Result, 0, len(selected))
	for _, s := range selected {
		report, err := scenario.Run(ctx, store.DB(), s, nil)
		if err != nil {
			return err
		}
		if err := dispatcher.Dispatch(ctx, report); err != nil {
			log.Warn("scenario report delivery failed", logger.String("scenario", s.Name), logger.Error(err))
		}
		results = append(results, Result{Scenario: s.Name, Description: s.Description, Report: report})
	}

	return render(w, opts.Format, results)
}

func selectScenarios(names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return scenario.All(), nil
	}
	selected := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		s, ok := scenario.Find(name)
		if !ok {
			return nil, errors.Newf("unknown scenario %q, known: %s", name, strings.Join(scenario.Names(), ", ")).
				Category(errors.CategoryValidation).
				Build()
		}
		if !slices.ContainsFunc(selected, func(o scenario.Scenario) bool { return o.Name == s.Name }) {
			selected = append(selected, s)
		}
	}
	return selected, nil
}

func render(w io.Writer, format string, results []Result) error {
	switch format {
	case notify.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case notify.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	}

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s: %s\n", r.Scenario, r.Description)
		if r.Report.Empty() {
			fmt.Fprintln(w, "no notices")
			continue
		}
		if err := r.Report.Render(w, notify.FormatText); err != nil {
			return err
		}
	}
	return nil
}
