// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fdb/internal/backup"
	"fdb/internal/config"
	"fdb/internal/ioutil"
	"fdb/internal/output"
	"fdb/internal/parser/toml"
	"fdb/internal/query"
	"fdb/internal/store"
)

const staleTempMaxAge = 24 * time.Hour

type rootFlags struct {
	configFile string
	root       string
	kekEnv     string
}

type createTableFlags struct {
	schemaFile string
}

type insertFlags struct {
	data string
	file string
}

type queryFlags struct {
	wheres   []string
	sorts    []string
	joins    []string
	selects  []string
	distinct string
	limit    int
	offset   int
	noCache  bool
	format   string
	outFile  string
}

type backupFlags struct {
	outFile string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "fdbctl",
		Short: "File-backed document store tool",
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "Storage root directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.kekEnv, "kek-env", "", "Environment variable holding the key-encryption key")

	rootCmd.AddCommand(createDBCmd(flags))
	rootCmd.AddCommand(createTableCmd(flags))
	rootCmd.AddCommand(insertCmd(flags))
	rootCmd.AddCommand(queryCmd(flags))
	rootCmd.AddCommand(backupCmd(flags))
	rootCmd.AddCommand(restoreCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig merges the config file (when given) with the root-level
// flag overrides into one effective configuration.
func resolveConfig(flags *rootFlags) (*config.Config, error) {
	cfg := &config.Config{}
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.root != "" {
		cfg.StorageRoot = flags.root
	}
	if flags.kekEnv != "" {
		cfg.KEKEnv = flags.kekEnv
	}
	if cfg.StorageRoot == "" {
		return nil, fmt.Errorf("storage root is required: pass --root or set storage_root in the config file")
	}
	return cfg, nil
}

func openDatabase(flags *rootFlags, name string) (*store.Database, error) {
	cfg, err := resolveConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := ioutil.SweepStaleTemp(cfg.StorageRoot, staleTempMaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stale temp sweep: %v\n", err)
	}
	return store.Open(cfg.StorageRoot, name, cfg.KEK(), cfg.CacheExpiration())
}

func createDBCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create-db <name>",
		Short: "Create a database under the storage root",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := openDatabase(root, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("database %s ready\n", db.Name())
			return nil
		},
	}
}

func createTableCmd(root *rootFlags) *cobra.Command {
	flags := &createTableFlags{}
	cmd := &cobra.Command{
		Use:   "create-table <db>",
		Short: "Create tables from a TOML schema definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCreateTable(args[0], root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.schemaFile, "schema", "s", "", "Path to the TOML schema definition (required)")

	return cmd
}

func runCreateTable(dbName string, root *rootFlags, flags *createTableFlags) error {
	if flags.schemaFile == "" {
		return fmt.Errorf("--schema is required")
	}

	def, err := toml.NewParser().ParseFile(flags.schemaFile)
	if err != nil {
		return fmt.Errorf("failed to parse schema definition: %w", err)
	}

	db, err := openDatabase(root, dbName)
	if err != nil {
		return err
	}

	for _, td := range def.Tables {
		if _, err := db.CreateTable(td.Name, td.Schema); err != nil {
			return fmt.Errorf("failed to create table %s: %w", td.Name, err)
		}
		fmt.Printf("created table %s\n", td.Name)
	}
	return nil
}

func insertCmd(root *rootFlags) *cobra.Command {
	flags := &insertFlags{}
	cmd := &cobra.Command{
		Use:   "insert <db> <table>",
		Short: "Insert a row from a JSON object",
		Long: `Insert reads a JSON object and writes it as one row. An "_id" key
updates the existing row with that id; without one a fresh id is generated.

Examples:
  fdbctl insert shop customers --data '{"name":"bob"}'
  fdbctl insert shop customers --file row.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInsert(args[0], args[1], root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Row content as an inline JSON object")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Path to a JSON file holding the row content")

	return cmd
}

func runInsert(dbName, tableName string, root *rootFlags, flags *insertFlags) error {
	raw, err := readInsertPayload(flags)
	if err != nil {
		return err
	}

	var columns map[string]any
	if err := json.Unmarshal(raw, &columns); err != nil {
		return fmt.Errorf("failed to parse row JSON: %w", err)
	}

	db, err := openDatabase(root, dbName)
	if err != nil {
		return err
	}
	table, err := db.Table(tableName)
	if err != nil {
		return err
	}
	row, err := table.Insert(columns)
	if err != nil {
		return err
	}
	fmt.Printf("inserted row %s\n", row.ID())
	return nil
}

func readInsertPayload(flags *insertFlags) ([]byte, error) {
	switch {
	case flags.data != "":
		return []byte(flags.data), nil
	case flags.file != "":
		data, err := os.ReadFile(flags.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read row file: %w", err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read row from stdin: %w", err)
		}
		return data, nil
	}
}

func queryCmd(root *rootFlags) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <db> <table>",
		Short: "Evaluate a query against a table",
		Long: `Query evaluates declarative clauses against one table and prints the
result.

Examples:
  fdbctl query shop orders --where 'status,=,processing' --sort totalAmount:DESC --limit 2
  fdbctl query shop orders --join 'customers,customerId,=,_id,cust.' --select 'cust.name,buyer'`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runQuery(args[0], args[1], root, flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.wheres, "where", "w", nil, "Predicate as 'col,op,value' (repeatable, AND-ed)")
	cmd.Flags().StringArrayVar(&flags.sorts, "sort", nil, "Sort key as 'col:ASC' or 'col:DESC' (repeatable)")
	cmd.Flags().StringArrayVar(&flags.joins, "join", nil, "Left-outer join as 'right,leftCol,op,rightCol[,prefix]' (repeatable)")
	cmd.Flags().StringArrayVar(&flags.selects, "select", nil, "Projection rename as 'col,newName' (repeatable)")
	cmd.Flags().StringVar(&flags.distinct, "distinct", "", "Keep the first row per distinct value of this column")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum rows to return (0 = unlimited)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Rows to skip before the window")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Disable read-through and write-through result caching")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format: human or json")
	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output file for the result")

	return cmd
}

func runQuery(dbName, tableName string, root *rootFlags, flags *queryFlags) error {
	db, err := openDatabase(root, dbName)
	if err != nil {
		return err
	}

	b, err := buildQuery(db.Query(tableName), flags)
	if err != nil {
		return err
	}

	col, err := b.Evaluate()
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(flags.format)
	if err != nil {
		return err
	}
	formatted, err := formatter.FormatCollection(col)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	return writeOutput(formatted, flags.outFile)
}

func buildQuery(b *query.Builder, flags *queryFlags) (*query.Builder, error) {
	for _, j := range flags.joins {
		parts := strings.SplitN(j, ",", 5)
		if len(parts) < 4 {
			return nil, fmt.Errorf("invalid --join %q: expected 'right,leftCol,op,rightCol[,prefix]'", j)
		}
		prefix := ""
		if len(parts) == 5 {
			prefix = parts[4]
		}
		b = b.Join(parts[0], parts[1], parts[2], parts[3], prefix)
	}

	for _, w := range flags.wheres {
		parts := strings.SplitN(w, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid --where %q: expected 'col,op,value'", w)
		}
		b = b.Where(parts[0], parts[1], parseLiteral(parts[2]))
	}

	for _, s := range flags.selects {
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --select %q: expected 'col,newName'", s)
		}
		b = b.Select(parts[0], parts[1])
	}

	if flags.distinct != "" {
		b = b.Distinct(flags.distinct)
	}

	for _, s := range flags.sorts {
		col, order, found := strings.Cut(s, ":")
		if !found {
			order = string(query.Asc)
		}
		b = b.Sort(col, query.SortOrder(strings.ToUpper(order)))
	}

	if flags.limit > 0 || flags.offset > 0 {
		limit := flags.limit
		if limit == 0 {
			limit = int(^uint(0) >> 1)
		}
		b = b.Limit(limit, flags.offset)
	}

	if flags.noCache {
		b = b.NoCache()
	}

	return b, nil
}

// parseLiteral interprets a --where value the way a JSON decoder would:
// numbers, booleans, and null become typed values, everything else
// stays a string.
func parseLiteral(raw string) any {
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func backupCmd(root *rootFlags) *cobra.Command {
	flags := &backupFlags{}
	cmd := &cobra.Command{
		Use:   "backup <db>",
		Short: "Archive a database into a ZIP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runBackup(args[0], root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output path for the archive (required)")

	return cmd
}

func runBackup(dbName string, root *rootFlags, flags *backupFlags) error {
	if flags.outFile == "" {
		return fmt.Errorf("--output is required")
	}

	db, err := openDatabase(root, dbName)
	if err != nil {
		return err
	}

	f, err := os.Create(flags.outFile)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := backup.Dump(db, f); err != nil {
		return fmt.Errorf("failed to archive database: %w", err)
	}
	fmt.Printf("archive saved to %s\n", flags.outFile)
	return nil
}

func restoreCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore a ZIP archive into the storage root",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRestore(args[0], root)
		},
	}
}

func runRestore(archivePath string, root *rootFlags) error {
	cfg, err := resolveConfig(root)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := backup.Load(f, info.Size(), cfg.StorageRoot); err != nil {
		return fmt.Errorf("failed to restore archive: %w", err)
	}
	fmt.Printf("restored into %s\n", cfg.StorageRoot)
	return nil
}

func writeOutput(content, outFile string) error {
	if outFile == "" {
		fmt.Print(content)
		return nil
	}

	if err := os.WriteFile(outFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Output saved to %s\n", outFile)
	return nil
}
