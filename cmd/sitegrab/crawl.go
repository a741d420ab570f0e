package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/crawler"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/model"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website and list its resources",
		Long: `Crawl fetches the start address and follows every link that stays on the
same origin (scheme, host and port), breadth-first. Each fetch becomes one
record with its category and size, printed as it is discovered.

Press Ctrl+C to stop the crawl early; the resources found so far are still
reported.

Examples:
  # Crawl a site and print a text report
  sitegrab crawl https://example.com

  # Stop after 200 fetches and sort the report by size, largest first
  sitegrab crawl --max-pages 200 --sort size --reverse https://example.com

  # Save the session and write a Markdown report
  sitegrab crawl --save --markdown -o report.md https://example.com

  # Crawl, then download every image and PDF that was found
  sitegrab crawl --download ./out --category image,pdf https://example.com

  # Crawl an onion service through an embedded Tor daemon
  sitegrab crawl --tor http://exampleonion.onion

Configuration file (.sitegrab) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      maxPages: 500
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout for each fetch")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Pause after each fetch")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of fetches (0 = unlimited)")
	cmd.Flags().Int64("max-body", config.DefaultMaxBodySize,
		"Maximum number of body bytes kept for link extraction")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not print resources while crawling")

	// Follow-up download flags
	cmd.Flags().String("download", "",
		"After the crawl, download the discovered resources into this directory")
	cmd.Flags().StringSlice("category", nil,
		"Only download these categories (html, image, css, javascript, pdf, other)")

	// Persistence
	cmd.Flags().BoolP("save", "s", false,
		"Save the session (and download results) to the database")
	cmd.Flags().String("data-dir", "",
		"Database directory (default: XDG data directory)")

	addTransportFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.ValidateSeed(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	categories, err := parseCategories(cfg.Categories)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // Best effort on exit

	ctx := cmd.Context()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	nw, err := openNetwork(ctx, cfg, logger, []string{cfg.Seed})
	if err != nil {
		return err
	}
	defer nw.Close()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}
	var progress io.Writer = cmd.ErrOrStderr()
	if quiet {
		progress = io.Discard
	}

	engine := newEngine(cmd, cfg, nw, logger)
	session, err := runCrawl(ctx, engine, cfg.Seed, progress, logger)
	if err != nil {
		return err
	}

	if err := writeSessionReport(cmd, cfg, session, categories); err != nil {
		return err
	}

	if err := saveSession(ctx, db, session, logger); err != nil {
		logger.Error("failed to save session", "session", session.ID, "error", err)
	}

	if cfg.DownloadDir == "" {
		return nil
	}
	addresses := session.Downloadable(categories...)
	if len(addresses) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to download.")
		return nil
	}
	return runDownload(ctx, cmd, cfg, nw, db, session.ID, addresses, false)
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.Seed = args[0]

	if cfg.FetchTimeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	// The crawl only downloads when --download names a directory.
	if cfg.DownloadDir, err = cmd.Flags().GetString("download"); err != nil {
		return nil, err
	}
	if cfg.Categories, err = cmd.Flags().GetStringSlice("category"); err != nil {
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
	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine creates the crawl engine with the site-specific settings of
// the seed host merged over the flags.
func newEngine(cmd *cobra.Command, cfg *config.Config, nw *network, logger *slog.Logger) *crawler.Engine {
	seed, _ := url.Parse(cfg.Seed) //nolint:errcheck // validated by ValidateSeed
	site := cfg.SiteFor(seed.Host)

	// A site limit applies unless --max-pages was given explicitly.
	maxPages := cfg.MaxPages
	if site.MaxPages > 0 && !cmd.Flags().Changed("max-pages") {
		maxPages = site.MaxPages
	}

	fetcher := crawler.NewHTTPFetcher(
		nw.client.HTTPClient(cfg.FetchTimeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	return crawler.NewEngine(fetcher,
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithMaxPages(maxPages),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
	)
}

// runCrawl runs one crawl to its end, printing every discovery to progress.
// The first SIGINT or SIGTERM stops the engine; the records fetched so far
// are kept.
func runCrawl(ctx context.Context, engine *crawler.Engine, seed string, progress io.Writer, logger *slog.Logger) (*model.CrawlSession, error) {
	events, err := engine.Start(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to start crawl: %w", err)
	}

	fmt.Fprintf(progress, "Crawling %s...\n", seed)
	startTime := time.Now()

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		return watchSignals(gctx, logger, engine.Stop)
	})

	var done crawler.Event
	count := 0
	g.Go(func() error {
		defer stopWatching()
		for ev := range events {
			switch ev.Type {
			case crawler.EventDiscovered:
				count++
				r := ev.Record
				fmt.Fprintf(progress, "  [%d] %-10s %10s  %s\n", count, r.Category, r.SizeDisplay(), r.Address)
			case crawler.EventDone:
				done = ev
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := engine.Wait()
	elapsed := time.Since(startTime).Round(time.Millisecond)
	switch final {
	case crawler.StateStopped:
		fmt.Fprintf(progress, "Crawl stopped after %s (%d resources)\n\n", elapsed, count)
	default:
		fmt.Fprintf(progress, "Crawl finished in %s (%d resources)\n\n", elapsed, count)
	}
	if done.Err != nil {
		fmt.Fprintf(progress, "Warning: the crawl ended unexpectedly: %v\n\n", done.Err)
	}

	return engine.Session().Snapshot(), nil
}

// writeSessionReport writes the session in the configured report format.
func writeSessionReport(cmd *cobra.Command, cfg *config.Config, session *model.CrawlSession, categories []model.Category) error {
	output, closeOutput, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // Write errors are reported by the writer

	if _, err := newReportWriter(cfg, output, categories).Write(session); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.ReportFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.ReportFile)
	}
	return nil
}

// saveSession saves the session to the database if enabled.
// If db is nil, this function is a no-op.
func saveSession(ctx context.Context, db *database.CrawlDB, session *model.CrawlSession, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// A stop signal does not cancel ctx, but the save must complete either way.
	if err := db.SaveSession(context.WithoutCancel(ctx), session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	logger.Info("session saved to database", "session", session.ID, "seed", session.Seed)
	return nil
}
