// Package main provides the sift CLI: filter the rows of a SQLite table with a
// declarative condition document.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/core/condition"
	"github.com/asaidimu/go-sift/core/dataset"
	"github.com/asaidimu/go-sift/core/transform"
	"github.com/asaidimu/go-sift/sqlite"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitParseError   = 2
	ExitRuntimeError = 3
)

// Build information (set via ldflags during build)
var version = "dev"

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type cliOptions struct {
	verbose   bool
	dbPath    string
	table     string
	condFile  string
	where     string
	header    bool
	countOnly bool
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(ExitRuntimeError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "sift",
		Short: "sift - declarative row filtering",
		Long: `sift filters tabular data with a declarative condition document.

Conditions are JSON or YAML documents made of relational leaves
({dimension, relation, value}) combined with and / or / not.

Examples:
  # Keep adults living in Paris
  sift filter --db people.db --table people --condition adults.yaml

  # Inline condition
  sift filter --db people.db --table people --where '{"dimension":"age","relation":"gte","value":18}'`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter the rows of a SQLite table",
		Long: `Filter the rows of a SQLite table and print the kept rows as JSON lines.

Exit codes:
  0 - Rows filtered successfully
  1 - Invalid condition (malformed, unknown dimension, ...)
  2 - Condition file could not be read or decoded
  3 - Database or runtime error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFilter(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	filterCmd.Flags().StringVar(&opts.dbPath, "db", "", "Path to the SQLite database")
	filterCmd.Flags().StringVar(&opts.table, "table", "", "Table to filter")
	filterCmd.Flags().StringVarP(&opts.condFile, "condition", "c", "", "Condition file (.json, .yaml, .yml)")
	filterCmd.Flags().StringVarP(&opts.where, "where", "w", "", "Inline condition (JSON or YAML)")
	filterCmd.Flags().BoolVar(&opts.header, "header", false, "Emit a header row with the column names")
	filterCmd.Flags().BoolVar(&opts.countOnly, "count", false, "Print only the number of kept data rows")
	_ = filterCmd.MarkFlagRequired("db")
	_ = filterCmd.MarkFlagRequired("table")

	validateCmd := &cobra.Command{
		Use:   "validate <condition-file>",
		Short: "Check that a condition document is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := loadConditionFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "condition is valid (%s)\n", node.Kind)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sift %s\n", version)
		},
	}

	root.AddCommand(filterCmd, validateCmd, versionCmd)
	return root
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runFilter(ctx context.Context, out io.Writer, opts *cliOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.verbose)
	defer logger.Sync()

	node, err := loadCondition(opts)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(ctx, opts.dbPath)
	if err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}
	defer db.Close()

	source, err := sqlite.NewTableSource(ctx, db, opts.table, &sqlite.TableSourceOptions{
		IncludeHeader: opts.header,
		Logger:        logger,
	})
	if err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}

	registry, err := transform.NewRegistry(&transform.RegistryOptions{
		Logger:        logger,
		DisableEvents: true,
	})
	if err != nil {
		return &exitError{code: ExitRuntimeError, err: err}
	}

	result, err := registry.Apply(ctx, source, transform.Option{Type: transform.FilterType, Config: node})
	if err != nil {
		if errors.Is(err, condition.ErrConfiguration) {
			return &exitError{code: ExitConfigError, err: err}
		}
		return &exitError{code: ExitRuntimeError, err: err}
	}

	if opts.countOnly {
		_, err := fmt.Fprintln(out, len(result.Data)-source.HeaderCount())
		return err
	}
	return writeRows(out, result.Data)
}

func writeRows(out io.Writer, rows []dataset.RawRow) error {
	enc := json.NewEncoder(out)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return &exitError{code: ExitRuntimeError, err: fmt.Errorf("failed to write row: %w", err)}
		}
	}
	return nil
}

func loadCondition(opts *cliOptions) (condition.Node, error) {
	switch {
	case opts.condFile != "" && opts.where != "":
		return condition.Node{}, &exitError{code: ExitParseError, err: errors.New("--condition and --where are mutually exclusive")}
	case opts.condFile != "":
		return loadConditionFile(opts.condFile)
	case opts.where != "":
		return parseCondition([]byte(opts.where), isJSON(opts.where))
	}
	return condition.Node{}, &exitError{code: ExitParseError, err: errors.New("a condition is required (--condition or --where)")}
}

func loadConditionFile(path string) (condition.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return condition.Node{}, &exitError{code: ExitParseError, err: fmt.Errorf("failed to read condition file: %w", err)}
	}
	ext := strings.ToLower(filepath.Ext(path))
	return parseCondition(data, ext == ".json" || (ext != ".yaml" && ext != ".yml" && isJSON(string(data))))
}

func parseCondition(data []byte, asJSON bool) (condition.Node, error) {
	attrs := map[string]bool{condition.DimensionAttr: true}
	var (
		node condition.Node
		err  error
	)
	if asJSON {
		node, err = condition.ParseJSON(data, attrs)
	} else {
		node, err = condition.ParseYAML(data, attrs)
	}
	if err != nil {
		var cfgErr *condition.ConfigurationError
		if errors.As(err, &cfgErr) && cfgErr.Err != nil {
			return node, &exitError{code: ExitParseError, err: err}
		}
		return node, &exitError{code: ExitConfigError, err: err}
	}
	return node, nil
}

func isJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
