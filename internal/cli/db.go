package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sendyhalim/lezeh/internal/catalog"
	"github.com/sendyhalim/lezeh/internal/cherrypick"
	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/logger"
	"github.com/sendyhalim/lezeh/internal/render"
	"github.com/sendyhalim/lezeh/pkg/config"
)

const (
	formatInsert   = "insert-statement"
	formatGraphviz = "graphviz"
)

type cherryPickOptions struct {
	sourceDB          string
	schema            string
	table             string
	column            string
	values            []string
	outputFormat      string
	graphTableColumns string
	output            string
	fetchConcurrency  int
	quiet             bool
}

type describeOptions struct {
	sourceDB string
	schema   string
	table    string
}

func newDBCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database tools",
		Long:  color.CyanString("Database tools for copying related rows between environments"),
	}

	cmd.AddCommand(newCherryPickCommand(a))
	cmd.AddCommand(newDescribeCommand(a))
	cmd.AddCommand(newDialectsCommand())

	return cmd
}

func newCherryPickCommand(a *app) *cobra.Command {
	opts := &cherryPickOptions{}

	cmd := &cobra.Command{
		Use:   "cherry-pick",
		Short: "Copy a row with every row it depends on and every row depending on it",
		Long: `Fetch the rows matching --table.--column = --values from the source database,
follow foreign keys in both directions until no new row is found, and print
INSERT statements in an order that satisfies every foreign key, or the
dependency graph in Graphviz DOT format.`,
		Example: `  lezeh db cherry-pick --source-db prod --table orders --values 123
  lezeh db cherry-pick --source-db prod --schema public --table users --column email --values ann@example.com
  lezeh db cherry-pick --source-db prod --table orders --values 123,124 --output-format graphviz \
      --graph-table-columns "users:id|email,orders:id|status" | dot -Tpng > orders.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCherryPick(cmd, a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.sourceDB, "source-db", "", "configured database to read from")
	flags.StringVar(&opts.schema, "schema", "", "schema of the root table (default: the connection's current schema)")
	flags.StringVar(&opts.table, "table", "", "root table")
	flags.StringVar(&opts.column, "column", "id", "root column")
	flags.StringSliceVar(&opts.values, "values", nil, "comma separated root values")
	flags.StringVar(&opts.outputFormat, "output-format", formatInsert, "insert-statement or graphviz")
	flags.StringVar(&opts.graphTableColumns, "graph-table-columns", "", `columns shown per table in graphviz output, e.g. "users:id|email,orders:id"`)
	flags.StringVarP(&opts.output, "output", "o", "", "write to this file instead of stdout")
	flags.IntVar(&opts.fetchConcurrency, "fetch-concurrency", 0, "lookups run at once per row (default from config)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress output")
	_ = cmd.MarkFlagRequired("source-db")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("values")

	return cmd
}

func runCherryPick(cmd *cobra.Command, a *app, opts *cherryPickOptions) error {
	switch opts.outputFormat {
	case formatInsert, formatGraphviz:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", opts.outputFormat, formatInsert, formatGraphviz)
	}
	display, err := displayColumns(a.cfg.CherryPick.DisplayColumns, opts.graphTableColumns)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	gw, err := openGateway(ctx, a.cfg, opts.sourceDB)
	if err != nil {
		return err
	}
	defer gw.Close()

	schema := opts.schema
	if schema == "" {
		if schema, err = gw.DefaultSchema(ctx); err != nil {
			return err
		}
	}

	concurrency := opts.fetchConcurrency
	if concurrency <= 0 {
		concurrency = a.cfg.CherryPick.FetchConcurrency
	}

	bar := newRowSpinner(cmd.ErrOrStderr(), "cherry-picking", opts.quiet)
	builder := cherrypick.NewBuilder(catalog.New(gw), gw, cherrypick.Options{
		Concurrency: concurrency,
		OnRow: func(r *cherrypick.Row) {
			logger.Debug("fetched %s", r.Key)
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})

	start := time.Now()
	g, err := builder.Build(ctx, cherrypick.Root{
		Schema: schema,
		Table:  opts.table,
		Column: opts.column,
		Values: opts.values,
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	logger.Info("cherry-picked %d rows and %d relations from %s in %s",
		g.Len(), len(g.Edges()), opts.sourceDB, time.Since(start).Round(time.Millisecond))

	var out string
	switch opts.outputFormat {
	case formatInsert:
		stmts, err := render.InsertStatements(g, gw.Dialect().QuoteIdent)
		if err != nil {
			return err
		}
		out = strings.Join(stmts, "\n") + "\n"
	case formatGraphviz:
		out = render.Graphviz(g, display)
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, out)
}

// displayColumns merges the configured display columns with the ones given
// on the command line, the latter winning per table.
func displayColumns(configured map[string][]string, flag string) (render.DisplayColumns, error) {
	parsed, err := config.ParseDisplayColumns(flag)
	if err != nil {
		return nil, err
	}
	out := render.DisplayColumns{}
	for t, cols := range configured {
		out[t] = cols
	}
	for t, cols := range parsed {
		out[t] = cols
	}
	return out, nil
}

func writeOutput(stdout io.Writer, path, out string) error {
	if path == "" {
		_, err := io.WriteString(stdout, out)
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("wrote %s", path)
	return nil
}

func openGateway(ctx context.Context, cfg config.AppConfig, name string) (*db.Gateway, error) {
	dbCfg, err := cfg.Database(name)
	if err != nil {
		return nil, err
	}
	driver, dsn, err := config.BuildDriverAndDSN(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", name, err)
	}
	logger.Debug("connecting to %s using %s", name, driver)
	return db.Open(ctx, driver, dsn, db.Options{
		Timeout: time.Duration(dbCfg.Timeout) * time.Second,
		Retry: db.RetryConfig{
			MaxAttempts: cfg.CherryPick.Retry.MaxAttempts,
			BaseBackoff: cfg.CherryPick.Retry.BaseBackoff,
		},
	})
}

func newDescribeCommand(a *app) *cobra.Command {
	opts := &describeOptions{}

	cmd := &cobra.Command{
		Use:     "describe",
		Short:   "Show the columns, primary key and foreign keys of a table",
		Example: `  lezeh db describe --source-db prod --schema public --table orders`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := openGateway(ctx, a.cfg, opts.sourceDB)
			if err != nil {
				return err
			}
			defer gw.Close()

			schema := opts.schema
			if schema == "" {
				if schema, err = gw.DefaultSchema(ctx); err != nil {
					return err
				}
			}
			t, err := catalog.New(gw).Get(ctx, schema, opts.table)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(t); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVar(&opts.sourceDB, "source-db", "", "configured database to read from")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "schema (default: the connection's current schema)")
	cmd.Flags().StringVar(&opts.table, "table", "", "table to describe")
	_ = cmd.MarkFlagRequired("source-db")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func newDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the database types this build can read",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range db.RegisteredDialects() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
