package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/crawler"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/download"
	"github.com/nao1215/sitegrab/internal/inspect"
	"github.com/nao1215/sitegrab/internal/model"
)

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [url...]",
		Short: "Download resources into a directory",
		Long: `Download saves the given addresses, or the resources of a saved session,
into one directory. Files are downloaded one after another. A file whose
name is already taken is saved as <name>_<unix time><ext>.

Press Ctrl+C to cancel the batch. The file being written is removed and
the remaining files are skipped.

Examples:
  # Download two files into the default download directory
  sitegrab download https://example.com/a.pdf https://example.com/b.pdf

  # Download every image of a saved session into ./images
  sitegrab download --session 6f1c2a4e --category image --dir ./images

  # Download and list GPS or camera metadata found in the images
  sitegrab download --exif --dir ./photos https://example.com/photo.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: runDownloadCmd,
	}

	cmd.Flags().StringP("dir", "D", config.DefaultDownloadDir(),
		"Destination directory")
	cmd.Flags().String("session", "",
		"Download the resources of a saved session (ID or unique prefix)")
	cmd.Flags().StringSlice("category", nil,
		"With --session, only download these categories")
	cmd.Flags().DurationP("timeout", "t", config.DefaultDownloadTimeout,
		"Fail a file when no data arrives for this long")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Read buffer size in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Bool("exif", false,
		"Inspect downloaded images for EXIF metadata")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not show progress bars")
	cmd.Flags().BoolP("save", "s", false,
		"Save the download results to the database")
	cmd.Flags().String("data-dir", "",
		"Database directory (default: XDG data directory)")

	addTransportFlags(cmd)

	return cmd
}

// runDownloadCmd executes the download command.
func runDownloadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildDownloadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	categories, err := parseCategories(cfg.Categories)
	if err != nil {
		return err
	}

	sessionID, err := cmd.Flags().GetString("session")
	if err != nil {
		return err
	}
	inspectExif, err := cmd.Flags().GetBool("exif")
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // Best effort on exit

	ctx := cmd.Context()

	var addresses []string
	switch {
	case sessionID != "" && len(args) > 0:
		return errors.New("give either addresses or --session, not both")
	case sessionID != "":
		session, err := loadStoredSession(ctx, cfg, sessionID)
		if err != nil {
			return err
		}
		sessionID = session.ID
		addresses = session.Downloadable(categories...)
	default:
		if len(categories) > 0 {
			return errors.New("--category requires --session")
		}
		for _, arg := range args {
			normalized, err := crawler.NormalizeAddress(arg)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", arg, err)
			}
			addresses = append(addresses, normalized)
		}
	}
	if len(addresses) == 0 {
		return errors.New("nothing to download (specify addresses or --session)")
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	nw, err := openNetwork(ctx, cfg, logger, addresses)
	if err != nil {
		return err
	}
	defer nw.Close()

	return runDownload(ctx, cmd, cfg, nw, db, sessionID, addresses, inspectExif)
}

// buildDownloadConfig creates a Config from cobra command flags.
func buildDownloadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DownloadDir, err = cmd.Flags().GetString("dir"); err != nil {
		return nil, err
	}
	if cfg.Categories, err = cmd.Flags().GetStringSlice("category"); err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = cmd.Flags().GetInt("chunk-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return nil, err
	}
	if err := readDataDir(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readTransportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadStoredSession reads a saved session from the database.
func loadStoredSession(ctx context.Context, cfg *config.Config, id string) (*model.CrawlSession, error) {
	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	session, err := db.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session, nil
}

// runDownload downloads addresses as one batch into cfg.DownloadDir and
// prints the completion record. The first SIGINT or SIGTERM cancels the
// batch. Failed items make the command fail after the batch has ended.
func runDownload(ctx context.Context, cmd *cobra.Command, cfg *config.Config, nw *network, db *database.CrawlDB, sessionID string, addresses []string, inspectExif bool) error {
	logger := nw.logger
	manager := download.NewManager(
		nw.client.HTTPClient(0),
		download.WithTimeout(cfg.DownloadTimeout),
		download.WithChunkSize(cfg.ChunkSize),
		download.WithUserAgent(cfg.UserAgent),
		download.WithLogger(logger),
	)

	job, err := manager.Start(ctx, cfg.DownloadDir, model.NewDownloadItems(addresses...))
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}

	quiet, _ := cmd.Flags().GetBool("quiet") //nolint:errcheck // absent flag means not quiet
	var out io.Writer = cmd.ErrOrStderr()
	view := newProgressView(out, quiet)

	fmt.Fprintf(out, "Downloading %d file(s) to %s\n", len(addresses), job.Dir())

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		return watchSignals(gctx, logger, job.Cancel)
	})
	g.Go(func() error {
		defer stopWatching()
		for ev := range job.Events() {
			view.handle(ev)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	record := job.Wait()
	printCompletion(cmd.OutOrStdout(), record)

	if db != nil {
		if err := db.SaveDownloads(context.WithoutCancel(ctx), job.ID(), sessionID, record); err != nil {
			logger.Error("failed to save download results", "batch", job.ID(), "error", err)
		} else {
			logger.Info("download results saved to database", "batch", job.ID())
			fmt.Fprintf(out, "Batch saved as %s (see 'sitegrab sessions downloads')\n", job.ID())
		}
	}

	if inspectExif {
		printMetadata(ctx, cmd.OutOrStdout(), record, logger)
	}

	if len(record.Failed) > 0 && !record.Cancelled {
		return fmt.Errorf("%d download(s) failed", len(record.Failed))
	}
	return nil
}

// printCompletion prints the completion title, message and failed files.
func printCompletion(w io.Writer, record *model.CompletionRecord) {
	fmt.Fprintf(w, "\n%s\n", record.Title())
	fmt.Fprintln(w, record.Message())
	for _, r := range record.Results {
		if r.Status == model.ItemFailed {
			fmt.Fprintf(w, "  [x] %s: %s\n", r.Name(), r.Error)
		}
	}
}

// printMetadata inspects the saved images of record and prints the
// privacy relevant EXIF tags found in each. Verbose logging lists every tag.
func printMetadata(ctx context.Context, w io.Writer, record *model.CompletionRecord, logger *slog.Logger) {
	paths := make([]string, 0, len(record.Results))
	for _, r := range record.Results {
		if r.Status == model.ItemSucceeded {
			paths = append(paths, r.Path)
		}
	}

	results, err := inspect.InspectFiles(ctx, paths, inspect.WithLogger(logger))
	if err != nil {
		logger.Warn("metadata inspection interrupted", "error", err)
	}

	found := 0
	for _, result := range results {
		for _, t := range result.Tags {
			logger.Debug("exif tag", "path", result.Path, "group", string(t.Group), "tag", t.Name)
		}
		sensitive := result.Sensitive()
		if len(sensitive) == 0 {
			continue
		}
		if found == 0 {
			fmt.Fprintln(w, "\nMetadata found in downloaded images:")
		}
		found++
		fmt.Fprintf(w, "  %s\n", result.Path)
		for _, t := range sensitive {
			fmt.Fprintf(w, "    [%s] %s\n", t.Group, t)
		}
	}
	if found == 0 {
		fmt.Fprintln(w, "\nNo privacy relevant metadata found in downloaded images.")
	}
}
