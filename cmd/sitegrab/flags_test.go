package main

import (
	"bytes"
	"testing"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/model"
	"github.com/nao1215/sitegrab/internal/report"
)

func TestParseCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		values  []string
		want    []model.Category
		wantErr bool
	}{
		{name: "empty", values: nil, want: nil},
		{name: "case insensitive", values: []string{"IMAGE", "pdf"}, want: []model.Category{model.CategoryImage, model.CategoryPDF}},
		{name: "comma list in one value", values: []string{"css,js"}, want: []model.Category{model.CategoryCSS, model.CategoryJavaScript}},
		{name: "unknown", values: []string{"video"}, wantErr: true},
		{name: "error is not selectable", values: []string{"error"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCategories(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCategories(%v) error = %v, wantErr %v", tt.values, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCategories(%v) = %v, want %v", tt.values, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCategories(%v)[%d] = %s, want %s", tt.values, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadReportFlags(t *testing.T) {
	t.Parallel()

	t.Run("reads every flag", func(t *testing.T) {
		t.Parallel()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--json", "--sort", "size", "-r", "-o", "out.json"}); err != nil {
			t.Fatalf("ParseFlags() error = %v", err)
		}
		cfg := config.NewConfig()
		if err := readReportFlags(cmd, cfg); err != nil {
			t.Fatalf("readReportFlags() error = %v", err)
		}
		if !cfg.JSONReport || cfg.SortKey != "size" || !cfg.Reverse || cfg.ReportFile != "out.json" {
			t.Errorf("unexpected config: json=%v sort=%q reverse=%v output=%q",
				cfg.JSONReport, cfg.SortKey, cfg.Reverse, cfg.ReportFile)
		}
	})

	t.Run("rejects unknown sort key", func(t *testing.T) {
		t.Parallel()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--sort", "name"}); err != nil {
			t.Fatalf("ParseFlags() error = %v", err)
		}
		if err := readReportFlags(cmd, config.NewConfig()); err == nil {
			t.Error("expected error for unknown sort key")
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*config.Config)
		check func(report.Writer) bool
	}{
		{
			name:  "text by default",
			setup: func(*config.Config) {},
			check: func(w report.Writer) bool { _, ok := w.(*report.SimpleWriter); return ok },
		},
		{
			name:  "json",
			setup: func(c *config.Config) { c.JSONReport = true },
			check: func(w report.Writer) bool { _, ok := w.(*report.JSONWriter); return ok },
		},
		{
			name:  "markdown",
			setup: func(c *config.Config) { c.MarkdownReport = true },
			check: func(w report.Writer) bool { _, ok := w.(*report.MarkdownWriter); return ok },
		},
		{
			name:  "address list",
			setup: func(c *config.Config) { c.URLList = true },
			check: func(w report.Writer) bool { _, ok := w.(*report.ListWriter); return ok },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			tt.setup(cfg)
			if w := newReportWriter(cfg, &bytes.Buffer{}, nil); !tt.check(w) {
				t.Errorf("newReportWriter() returned %T", w)
			}
		})
	}
}
