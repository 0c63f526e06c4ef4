package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/ferrumweb/internal/config"
	"github.com/nao1215/ferrumweb/internal/database"
	"github.com/nao1215/ferrumweb/internal/log"
	"github.com/nao1215/ferrumweb/internal/model"
	"github.com/nao1215/ferrumweb/internal/report"
)

// errEmptyStore is returned when there is no crawl to render.
var errEmptyStore = errors.New("no links stored (run a crawl first)")

// NewTreeCmd creates the tree command.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render the links stored by the last crawl",
		Long: `Tree reads the stored links, checks their lineage and prints them as a tree
rooted at the seed.

Examples:
  # Indented tree on stdout
  ferrumweb tree

  # Markdown report with per-depth and per-host tables
  ferrumweb tree --format markdown -o report.md

  # Nested JSON for other tools
  ferrumweb tree --format json

  # Save the tree to a file and print it too
  ferrumweb tree -o tree.txt --tee`,
		Args: cobra.NoArgs,
		RunE: runTreeCmd,
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Output format: text, markdown, json or json-compact")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file instead of stdout (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"With --output, also write the report to stdout")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the SQLite link database")
	cmd.Flags().String("database-url", "",
		"PostgreSQL URL to read links from instead of SQLite")

	return cmd
}

// treeOptions holds the tree command settings.
type treeOptions struct {
	format      report.Format
	outputPath  string
	tee         bool
	dbDir       string
	databaseURL string
}

// runTreeCmd executes the tree command.
func runTreeCmd(cmd *cobra.Command, _ []string) error {
	opts, err := buildTreeOptions(cmd)
	if err != nil {
		return err
	}

	logger := log.New(cmd.ErrOrStderr(), getVerboseFlag(cmd), getLogJSONFlag(cmd))

	return runTree(cmd.Context(), opts, logger, cmd.OutOrStdout())
}

// buildTreeOptions reads the flags, falling back to FERRUMWEB_* variables
// for the database location.
func buildTreeOptions(cmd *cobra.Command) (treeOptions, error) {
	if err := config.LoadDotEnv(); err != nil {
		return treeOptions{}, err
	}
	cfg := config.NewConfig()
	cfg.ApplyEnv()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return treeOptions{}, err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return treeOptions{}, err
	}
	tee, err := cmd.Flags().GetBool("tee")
	if err != nil {
		return treeOptions{}, err
	}

	opts := treeOptions{
		format:      report.Format(format),
		outputPath:  outputPath,
		tee:         tee,
		dbDir:       cfg.DBDir,
		databaseURL: cfg.DatabaseURL,
	}
	if cmd.Flags().Changed("db-dir") {
		if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
			return treeOptions{}, err
		}
	}
	if cmd.Flags().Changed("database-url") {
		if opts.databaseURL, err = cmd.Flags().GetString("database-url"); err != nil {
			return treeOptions{}, err
		}
	}
	return opts, nil
}

// runTree loads the stored links and writes the report.
func runTree(ctx context.Context, opts treeOptions, logger *slog.Logger, stdout io.Writer) (err error) {
	// Reject an unknown format before touching the output file.
	if _, err := report.New(opts.format, io.Discard); err != nil {
		return err
	}

	store, err := database.OpenStore(ctx, opts.databaseURL, opts.dbDir, database.ReadOnlyOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	links, err := store.ListLinks(ctx)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return errEmptyStore
	}

	for _, v := range model.ValidateLinks(links) {
		logger.Warn("lineage violation", "link", v.LinkID, "reason", v.Reason)
	}

	tree, err := model.BuildTree(links)
	if err != nil {
		return fmt.Errorf("failed to build link tree: %w", err)
	}

	if opts.outputPath == "" {
		return writeReport(opts.format, tree, stdout)
	}

	f, err := createOutputFile(opts.outputPath)
	if err != nil {
		return err
	}
	defer closeOutput(f, &err)

	if !opts.tee {
		return writeReport(opts.format, tree, f)
	}
	return writeReport(opts.format, tree, f, stdout)
}

// closeOutput closes the report file and reports a failed close through
// err unless an earlier error is already set.
func closeOutput(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output file: %w", cerr)
	}
}

// writeReport renders tree in format to every output.
func writeReport(format report.Format, tree *model.Tree, outputs ...io.Writer) error {
	writers := make([]report.Writer, 0, len(outputs))
	for _, out := range outputs {
		w, err := report.New(format, out)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}

	if _, err := report.NewMultiWriter(writers...).Write(tree); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// createOutputFile creates or truncates path with owner-only permissions.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
