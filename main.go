package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultConfigPath = "safety-audit.yml"

type options struct {
	configPath  string
	envFile     string
	dataDir     string
	sourceKind  string
	dataset     string
	jsonOut     string
	xlsxOut     string
	csvOut      string
	collapseAll bool
	collapse    []int
	verbose     bool
}

var (
	opts   options
	cfg    Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "safety-audit",
	Short: "Monthly delivery-safety violation report",
	Long: `Loads one month of delivery-safety events, classifies each event as a
violation or not, and reports violation counts per delivery associate and
metric type with per-associate subtotals and a grand total.

Without a subcommand the report for the most recent month is printed.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runReport,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the violation report for one month",
	RunE:  runReport,
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the configured months in chronological order",
	RunE:  runDatasets,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve datasets, summaries, reports and spreadsheet exports over HTTP",
	RunE:  runServe,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the Postgres schema and seed it from the data directory if empty",
	RunE:  runInitDB,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to YAML config")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Optional .env file")
	pf.StringVar(&opts.dataDir, "data-dir", "", "Directory holding the monthly JSON files")
	pf.StringVar(&opts.sourceKind, "source", "", "Dataset source: dir, http or postgres")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{rootCmd, reportCmd} {
		f := cmd.Flags()
		f.StringVar(&opts.dataset, "dataset", "", "Dataset identifier; defaults to the most recent month")
		f.StringVar(&opts.jsonOut, "json", "", "Optional JSON output path")
		f.StringVar(&opts.xlsxOut, "xlsx", "", "Optional workbook export path (e.g. "+defaultExportName+")")
		f.StringVar(&opts.csvOut, "csv", "", "Optional CSV export path (e.g. "+defaultCSVName+")")
		f.BoolVar(&opts.collapseAll, "collapse-all", false, "Collapse every associate group")
		f.IntSliceVar(&opts.collapse, "collapse", nil, "Toggle the listed group positions")
	}

	rootCmd.AddCommand(reportCmd, datasetsCmd, serveCmd, initDBCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = loadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.Source.DataDir = opts.dataDir
	}
	if opts.sourceKind != "" {
		cfg.Source.Kind = opts.sourceKind
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	zapCfg := zap.NewProductionConfig()
	if opts.verbose || cfg.Verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err = zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		exitWithError(err)
	}
}

// newSource builds the configured dataset source. The returned close func
// releases any connection it holds.
func newSource(ctx context.Context, cfg Config) (Source, func(), error) {
	switch cfg.Source.Kind {
	case sourceHTTP:
		return NewHTTPSource(cfg.Source.BaseURL, cfg.Source.HTTPTimeout), func() {}, nil
	case sourcePostgres:
		db, err := openDB(ctx, DBConfig{URL: cfg.Database.URL, Schema: cfg.Database.Schema})
		if err != nil {
			return nil, nil, err
		}
		src, err := NewPostgresSource(db, cfg.Database.Schema)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return src, func() { _ = db.Close() }, nil
	default:
		return NewDirSource(cfg.Source.DataDir), func() {}, nil
	}
}

func newCatalog(cfg Config) (Catalog, error) {
	catalog := BuildCatalog(cfg.Datasets)
	if catalog.Len() == 0 {
		return Catalog{}, fmt.Errorf("configuration error: %w", ErrEmptyCatalog)
	}
	return catalog, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	source, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	session, err := NewSession(catalog)
	if err != nil {
		return err
	}

	identifier := opts.dataset
	if identifier == "" {
		def, _ := catalog.Default()
		identifier = def.Identifier
	}
	logger.Debug("loading dataset", zap.String("dataset", identifier), zap.String("source", cfg.Source.Kind))

	snapshot, err := session.Load(ctx, source, identifier)
	if err != nil {
		return err
	}

	if opts.collapseAll {
		session.Dispatch(CollapseAll{})
	}
	for _, group := range opts.collapse {
		session.Dispatch(ToggleGroup{Group: group})
	}

	printReport(os.Stdout, snapshot, session.Rows())

	if opts.jsonOut != "" {
		if err := writeJSON(snapshot, opts.jsonOut); err != nil {
			return err
		}
		fmt.Printf("\nJSON report saved to %s\n", opts.jsonOut)
	}
	if opts.xlsxOut != "" {
		if err := writeRowsFile(opts.xlsxOut, session.Rows(), writeRowsXLSX); err != nil {
			return err
		}
		fmt.Printf("Workbook export saved to %s\n", opts.xlsxOut)
	}
	if opts.csvOut != "" {
		if err := writeRowsFile(opts.csvOut, session.Rows(), writeRowsCSV); err != nil {
			return err
		}
		fmt.Printf("CSV export saved to %s\n", opts.csvOut)
	}
	return nil
}

func runDatasets(cmd *cobra.Command, args []string) error {
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	printCatalog(os.Stdout, catalog)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	source, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	return serve(ctx, cfg.Server, NewServer(catalog, source, logger), logger)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	db, err := openDB(ctx, DBConfig{URL: cfg.Database.URL, Schema: cfg.Database.Schema})
	if err != nil {
		return err
	}
	defer db.Close()

	datasets, err := loadAll(ctx, NewDirSource(cfg.Source.DataDir), catalog, cfg.Concurrency)
	if err != nil {
		return err
	}
	seeded, err := seedDatabase(ctx, db, cfg.Database.Schema, datasets, logger)
	if err != nil {
		return err
	}
	if seeded > 0 {
		fmt.Printf("Seeded Postgres with %d datasets (schema %s)\n", seeded, cfg.Database.Schema)
	}
	return nil
}

func printCatalog(w io.Writer, catalog Catalog) {
	def, err := catalog.Default()
	if err != nil {
		fmt.Fprintln(w, "No datasets configured.")
		return
	}
	for _, entry := range catalog.Entries() {
		marker := " "
		if entry.Identifier == def.Identifier {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", marker, entry.Label, entry.Identifier)
	}
}

func printReport(w io.Writer, snapshot Snapshot, rows []Row) {
	fmt.Fprintln(w, "Monthly Safety Violations")
	fmt.Fprintln(w, strings.Repeat("=", 38))
	fmt.Fprintln(w, snapshot.Dataset.Title())
	fmt.Fprintf(w, "Total events: %d\n", snapshot.Aggregate.Total)
	fmt.Fprintf(w, "Violations: %d | Non-violations: %d\n", snapshot.Aggregate.Violations, snapshot.Aggregate.NonViolations)

	printSeries(w, "Violation count per delivery associate", snapshot.Aggregate.AssociateSeries())
	printSeries(w, "Violation count per metric type", snapshot.Aggregate.MetricTypeSeries())

	fmt.Fprintln(w, "\nViolation details")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	for _, row := range rows {
		switch row.Kind {
		case RowGroupHeader:
			fmt.Fprintf(w, "%s %s\n", row.Cells[0], row.Cells[1])
		case RowDetail:
			fmt.Fprintf(w, "    %s | %s | %s | %s\n", row.Cells[1], row.Cells[3], row.Cells[4], row.Cells[5])
		case RowSubtotal:
			fmt.Fprintf(w, "    %s: %s\n", row.Cells[1], row.Cells[5])
		case RowGrandTotal:
			fmt.Fprintf(w, "%s: %s\n", row.Cells[0], row.Cells[5])
		}
	}
}

func printSeries(w io.Writer, title string, series []Count) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(series) == 0 {
		fmt.Fprintln(w, "No violations.")
		return
	}
	for _, entry := range series {
		fmt.Fprintf(w, "%s: %d\n", entry.Key, entry.Count)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
