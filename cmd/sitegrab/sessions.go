package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/model"
)

// defaultListLimit is the number of sessions listed without --limit.
const defaultListLimit = 20

// NewSessionsCmd creates the sessions command and its subcommands.
// Sessions are written by 'sitegrab crawl --save'.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show, compare and delete saved crawl sessions",
		Long: `Sessions manages the crawl sessions saved with 'sitegrab crawl --save'.

Without a subcommand the most recent sessions are listed. A session can be
named by its full ID or by a unique prefix of at least four characters.

Examples:
  # List the 20 most recent sessions
  sitegrab sessions

  # Show a saved session as Markdown
  sitegrab sessions show 6f1c2a4e --markdown

  # Compare two crawls of the same site
  sitegrab sessions diff 6f1c2a4e 9b03d7c1

  # Find where a downloaded file was saved, by its SHA3-256 digest
  sitegrab sessions lookup 3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532`,
		Args: cobra.NoArgs,
		RunE: runSessionsListCmd,
	}

	cmd.PersistentFlags().String("data-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().IntP("limit", "n", defaultListLimit,
		"Maximum number of sessions to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the list as JSON")

	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDiffCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsDownloadsCmd())
	cmd.AddCommand(newSessionsLookupCmd())

	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the report of a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShowCmd,
	}
	cmd.Flags().StringSlice("category", nil,
		"With --urls, only list these categories")
	addReportFlags(cmd)
	return cmd
}

func newSessionsDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two saved sessions",
		Long: `Diff prints the resources added, removed and recategorized between two
saved sessions of the same seed. Resources are matched by address.`,
		Args: cobra.ExactArgs(2),
		RunE: runSessionsDiffCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDeleteCmd,
	}
}

func newSessionsDownloadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downloads BATCH_ID",
		Short: "Print the results of a saved download batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDownloadsCmd,
	}
}

func newSessionsLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup DIGEST",
		Short: "Find downloaded files by SHA3-256 digest",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsLookupCmd,
	}
}

// openSessionStore opens the existing session database. A missing database
// is reported instead of created.
func openSessionStore(cmd *cobra.Command) (*config.Config, *database.CrawlDB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := readDataDir(cmd, cfg); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, db, nil
}

func runSessionsListCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	_, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	return printSessionList(out, sessions)
}

// printSessionList prints sessions as an aligned table.
func printSessionList(w io.Writer, sessions []database.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No saved sessions.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tRESOURCES\tSIZE\tSEED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(s.ID),
			s.StartedAt.Local().Format(time.DateTime),
			s.State,
			s.RecordCount,
			model.FormatSize(s.TotalBytes),
			s.Seed,
		)
	}
	return tw.Flush()
}

// shortID returns the first eight characters of a session ID, which is
// enough to name it in the other subcommands.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func runSessionsShowCmd(cmd *cobra.Command, args []string) error {
	cfg, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	values, err := cmd.Flags().GetStringSlice("category")
	if err != nil {
		return err
	}
	categories, err := parseCategories(values)
	if err != nil {
		return err
	}

	session, err := db.LoadSession(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", args[0], err)
	}
	return writeSessionReport(cmd, cfg, session, categories)
}

func runSessionsDiffCmd(cmd *cobra.Command, args []string) error {
	cfg, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	previous, err := loadSessionPair(ctx, db, args[0])
	if err != nil {
		return err
	}
	current, err := loadSessionPair(ctx, db, args[1])
	if err != nil {
		return err
	}

	if previous.Seed != current.Seed {
		return fmt.Errorf("sessions crawled different seeds (%s, %s)", previous.Seed, current.Seed)
	}

	output, closeOutput, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // Write errors are reported by the writer

	diff := model.DiffSessions(previous, current)
	if _, err := newReportWriter(cfg, output, nil).WriteDiff(diff); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}
	return nil
}

func loadSessionPair(ctx context.Context, db *database.CrawlDB, id string) (*model.CrawlSession, error) {
	session, err := db.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session, nil
}

func runSessionsDeleteCmd(cmd *cobra.Command, args []string) error {
	_, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteSession(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func runSessionsDownloadsCmd(cmd *cobra.Command, args []string) error {
	_, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.LoadDownloads(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no download batch %s", args[0])
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tSIZE\tPATH\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Index+1, r.Status, model.FormatSize(r.Bytes), r.Path, r.Error)
	}
	return tw.Flush()
}

func runSessionsLookupCmd(cmd *cobra.Command, args []string) error {
	_, db, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	paths, err := db.FindByDigest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no downloaded file with digest %s", args[0])
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
