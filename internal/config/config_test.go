package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/user/product-crawler/internal/domain"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		mode      Mode
		crawlName string
		seed      domain.CrawlTask
	}{
		{ModeQuery, "darazquery", domain.CrawlTask{URL: "https://www.daraz.pk/catalog/?q=laptops", Kind: domain.SearchPage}},
		{ModeCrawl, "daraz", domain.CrawlTask{URL: "https://www.daraz.pk/", Kind: domain.ListingPage}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			cfg, err := Load(newFlags(t), tt.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.CrawlName != tt.crawlName {
				t.Errorf("expected crawl name %q, got %q", tt.crawlName, cfg.CrawlName)
			}
			if seeds := cfg.Seeds(); len(seeds) != 1 || seeds[0] != tt.seed {
				t.Errorf("expected seed %+v, got %+v", tt.seed, seeds)
			}
			if cfg.Concurrency != 8 || cfg.FetchTimeout != 30*time.Second || cfg.LegacyTrailingComma {
				t.Errorf("unexpected defaults %+v", cfg)
			}
			if !slices.Equal(cfg.AllowedDomains, []string{"daraz.pk"}) {
				t.Errorf("unexpected allowed domains %v", cfg.AllowedDomains)
			}
		})
	}
}

func TestLoadQueryIsEscaped(t *testing.T) {
	cfg, err := Load(newFlags(t, "--query", "gaming laptop & mouse"), ModeQuery)
	if err != nil {
		t.Fatal(err)
	}
	want := "https://www.daraz.pk/catalog/?q=gaming+laptop+%26+mouse"
	if seeds := cfg.Seeds(); seeds[0].URL != want {
		t.Errorf("expected %s, got %s", want, seeds[0].URL)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "crawler.yaml")
	content := "concurrency: 3\nmax_pages: 50\ncrawl_name: fromfile\ntimeout: 2m\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRAWLER_MAX_PAGES", "70")
	t.Setenv("CRAWLER_PROXIES", "http://p1:8080,http://p2:8080")

	cfg, err := Load(newFlags(t, "--config", file, "--crawl-name", "fromflag"), ModeCrawl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("expected concurrency from file, got %d", cfg.Concurrency)
	}
	if cfg.MaxPages != 70 {
		t.Errorf("expected max_pages from env, got %d", cfg.MaxPages)
	}
	if cfg.CrawlName != "fromflag" {
		t.Errorf("expected crawl name from flag, got %q", cfg.CrawlName)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("expected timeout from file, got %s", cfg.Timeout)
	}
	if !slices.Equal(cfg.Proxies, []string{"http://p1:8080", "http://p2:8080"}) {
		t.Errorf("unexpected proxies %v", cfg.Proxies)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"negative budget", []string{"--max-pages", "-1"}},
		{"empty query", []string{"--query", ""}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"bad start url", []string{"--start-urls", "ftp://x"}},
		{"path in crawl name", []string{"--crawl-name", "../etc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...), ModeQuery)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSeedsFromStartURLs(t *testing.T) {
	cfg, err := Load(newFlags(t, "--start-urls", "https://www.daraz.pk/a/,https://www.daraz.pk/b/"), ModeQuery)
	if err != nil {
		t.Fatal(err)
	}
	seeds := cfg.Seeds()
	if len(seeds) != 2 || seeds[1].URL != "https://www.daraz.pk/b/" || seeds[1].Kind != domain.SearchPage {
		t.Errorf("unexpected seeds %+v", seeds)
	}
}
