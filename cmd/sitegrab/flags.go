package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/model"
	"github.com/nao1215/sitegrab/internal/report"
)

// addTransportFlags registers the proxy selection flags.
func addTransportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("proxy", "x", "",
		"Route traffic through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
}

// readTransportFlags copies the proxy selection flags into cfg.
func readTransportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
		return err
	}
	if cfg.UseTor, err = cmd.Flags().GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return err
	}
	return nil
}

// addReportFlags registers the report format and ordering flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --urls)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json and --urls)")
	cmd.Flags().BoolP("urls", "u", false,
		"Output only the addresses, one per line")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("sort", "",
		"Sort resources by 'type' or 'size' (default: fetch order)")
	cmd.Flags().BoolP("reverse", "r", false,
		"Reverse the sort order")
}

// readReportFlags copies the report flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.URLList, err = cmd.Flags().GetBool("urls"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if cfg.SortKey, err = cmd.Flags().GetString("sort"); err != nil {
		return err
	}
	if _, ok := model.ParseSortKey(cfg.SortKey); !ok {
		return fmt.Errorf("invalid sort key %q (use 'type' or 'size')", cfg.SortKey)
	}
	if cfg.Reverse, err = cmd.Flags().GetBool("reverse"); err != nil {
		return err
	}
	return nil
}

// readDataDir applies the --data-dir override of the database directory.
func readDataDir(cmd *cobra.Command, cfg *config.Config) error {
	dir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.DBDir = dir
	}
	return nil
}

// parseCategories converts the --category values into categories.
func parseCategories(values []string) ([]model.Category, error) {
	cats, bad := model.ParseCategories(strings.Join(values, ","))
	if len(bad) > 0 {
		return nil, fmt.Errorf("unknown category %q (valid: html, image, css, javascript, pdf, other)", strings.Join(bad, ", "))
	}
	for _, c := range cats {
		if !c.Downloadable() {
			return nil, fmt.Errorf("category %q cannot be selected", c)
		}
	}
	return cats, nil
}

// newReportWriter returns the writer for the configured report format.
// categories only affect the address list format.
func newReportWriter(cfg *config.Config, w io.Writer, categories []model.Category) report.Writer {
	key, _ := model.ParseSortKey(cfg.SortKey)
	opts := []report.Option{
		report.WithSort(key, cfg.Reverse),
		report.WithVersion(getVersion()),
		report.WithVerbose(cfg.Verbose),
	}

	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, append(opts, report.WithPrettyPrint())...)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w, opts...)
	case cfg.URLList:
		return report.NewListWriter(w, categories, opts...)
	default:
		return report.NewSimpleWriter(w, opts...)
	}
}
