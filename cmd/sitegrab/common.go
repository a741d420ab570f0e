package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/log"
	"github.com/nao1215/sitegrab/internal/transport"
)

// loadConfig creates a Config from the global flags and the config file.
// Command specific flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.Verbose, err = cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}
	cfg.LogFile, err = cmd.Flags().GetString("log-file")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if err := cfg.Load(); err != nil {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", cfg.ConfigFilePath, err)
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return cfg, nil
}

// setupLogger creates the secure structured logger and makes it the default.
func setupLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closeLog, err := log.New(os.Stderr, log.Options{
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

// watchSignals calls onSignal once when SIGINT or SIGTERM arrives and
// returns when ctx is done. After the first signal the default handler is
// restored, so a second one ends the process.
func watchSignals(ctx context.Context, logger *slog.Logger, onSignal func()) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		onSignal()
		signal.Stop(sigCh)
		<-ctx.Done()
	case <-ctx.Done():
	}
	return nil
}

// network is the transport chosen for a command, with the embedded Tor
// daemon when one was started.
type network struct {
	client *transport.Client
	tor    *transport.EmbeddedTor
	logger *slog.Logger
}

// Close stops the embedded Tor daemon, if any.
func (n *network) Close() {
	if n.tor == nil {
		return
	}
	n.logger.Info("stopping embedded Tor daemon")
	if err := n.tor.Stop(); err != nil {
		n.logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// openNetwork builds the transport client for the configured proxy mode.
// Site credentials from the config file are attached for every address
// in targets.
func openNetwork(ctx context.Context, cfg *config.Config, logger *slog.Logger, targets []string) (*network, error) {
	opts := credentialOptions(cfg, targets)

	switch {
	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, logger, opts)
	case cfg.ProxyAddress != "":
		client, err := transport.NewClient(append(opts, transport.WithProxy(cfg.ProxyAddress))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "proxy", cfg.ProxyAddress)
		return &network{client: client, logger: logger}, nil
	default:
		client, err := transport.NewClient(opts...)
		if err != nil {
			return nil, err
		}
		return &network{client: client, logger: logger}, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client that
// dials through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts []transport.Option) (*network, error) {
	fmt.Fprintln(os.Stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(os.Stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := tor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", tor.SocksAddr(),
		"controlAddr", tor.ControlAddr(),
	)

	client, err := tor.NewClient(opts...)
	if err != nil {
		_ = tor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		_ = tor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}
	return &network{client: client, tor: tor, logger: logger}, nil
}

// credentialOptions returns one WithCredentials option per distinct host
// of targets that has a cookie or headers configured.
func credentialOptions(cfg *config.Config, targets []string) []transport.Option {
	if cfg.SiteConfigs == nil {
		return nil
	}
	seen := make(map[string]bool)
	opts := make([]transport.Option, 0)
	for _, target := range targets {
		u, err := url.Parse(target)
		if err != nil || u.Host == "" || seen[u.Host] {
			continue
		}
		seen[u.Host] = true

		sc := cfg.SiteFor(u.Host)
		if !sc.HasCredentials() && u.Port() != "" {
			sc = cfg.SiteFor(u.Hostname())
		}
		if sc.HasCredentials() {
			opts = append(opts, transport.WithCredentials(u.Host, transport.Credentials{
				Cookie:  sc.Cookie,
				Headers: sc.Headers,
			}))
		}
	}
	return opts
}

// openDatabase opens the session database when saving is enabled.
// It returns nil without error when it is not.
func openDatabase(cfg *config.Config, logger *slog.Logger) (*database.CrawlDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", db.Path())
	return db, nil
}

// openOutput returns the report destination: the named file, created with
// owner-only permissions, or stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain session cookies in addresses; keep them owner-readable only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
