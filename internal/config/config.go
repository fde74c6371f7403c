package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/rules"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Mode selects how the crawl discovers products.
type Mode string

const (
	ModeQuery Mode = "query"
	ModeCrawl Mode = "crawl"
)

// EnvPrefix is prepended to every environment variable, e.g. CRAWLER_CONCURRENCY.
const EnvPrefix = "CRAWLER"

const (
	DefaultQuery     = "laptops"
	DefaultSearchURL = "https://www.daraz.pk/catalog/?q="
	DefaultStartURL  = "https://www.daraz.pk/"
)

// Config stores all configuration for a crawl.
type Config struct {
	Mode Mode `mapstructure:"-"`

	Query          string   `mapstructure:"query"`
	SearchURL      string   `mapstructure:"search_url"`
	StartURLs      []string `mapstructure:"start_urls"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	RulesFile      string   `mapstructure:"rules_file"`

	Concurrency int           `mapstructure:"concurrency"`
	MaxPages    int           `mapstructure:"max_pages"`
	MaxDepth    int           `mapstructure:"max_depth"`
	Timeout     time.Duration `mapstructure:"timeout"`

	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	FetchRetries int           `mapstructure:"fetch_retries"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	UserAgents   []string      `mapstructure:"user_agents"`
	Proxies      []string      `mapstructure:"proxies"`

	RunID               string `mapstructure:"run_id"`
	CrawlName           string `mapstructure:"crawl_name"`
	OutputDir           string `mapstructure:"output_dir"`
	LegacyTrailingComma bool   `mapstructure:"legacy_trailing_comma"`

	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	PostgresURL   string `mapstructure:"postgres_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// RegisterFlags defines one flag per setting. Flag names use dashes where
// the config keys use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (any format viper reads)")

	fs.String("query", DefaultQuery, "search term (query mode)")
	fs.String("search-url", DefaultSearchURL, "search URL the escaped query is appended to")
	fs.StringSlice("start-urls", nil, "start URLs (crawl mode; overrides the search URL in query mode)")
	fs.StringSlice("allowed-domains", []string{rules.DefaultDomain}, "domains the crawl may visit")
	fs.String("rules-file", "", "YAML file overriding the built-in extraction and link rules")

	fs.Int("concurrency", 8, "maximum concurrent fetches")
	fs.Int("max-pages", 0, "stop after dispatching this many fetches (0 = unlimited)")
	fs.Int("max-depth", 0, "maximum link depth (0 = unlimited)")
	fs.Duration("timeout", 0, "wall-clock budget for the crawl (0 = unlimited)")

	fs.Duration("fetch-timeout", 30*time.Second, "timeout for a single fetch attempt")
	fs.Int("fetch-retries", 2, "retries after transport errors and 429/5xx responses")
	fs.Float64("rate-limit", 0, "maximum requests per second (0 = unlimited)")
	fs.StringSlice("user-agents", nil, "user agents to rotate through")
	fs.StringSlice("proxies", nil, "proxy URLs to rotate through")

	fs.String("run-id", "", "identifier shared by processes working on the same crawl (default: random)")
	fs.String("crawl-name", "", "name of the crawl; output goes to products_<crawl-name>.json")
	fs.String("output-dir", ".", "directory for the output file")
	fs.Bool("legacy-trailing-comma", false, "write a comma after every record like older tooling did")

	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "json", "json or console")
	fs.String("metrics-addr", "", "serve /metrics and /api on this address while crawling")

	fs.String("postgres-url", "", "mirror written records into this PostgreSQL database")
	fs.String("redis-addr", "", "keep the visited-URL set in this Redis instance")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
}

// Load resolves the configuration of a run. Precedence is flag, then
// environment, then config file, then defaults.
func Load(fs *pflag.FlagSet, mode Mode) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Mode = mode
	cfg.applyModeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyModeDefaults() {
	if c.CrawlName == "" {
		switch c.Mode {
		case ModeQuery:
			c.CrawlName = "darazquery"
		case ModeCrawl:
			c.CrawlName = "daraz"
		}
	}
	if c.Mode == ModeCrawl && len(c.StartURLs) == 0 {
		c.StartURLs = []string{DefaultStartURL}
	}
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Mode == ModeQuery || c.Mode == ModeCrawl, "unknown mode %q", c.Mode)
	check(c.Concurrency > 0, "concurrency must be positive, got %d", c.Concurrency)
	check(c.MaxPages >= 0, "max_pages must not be negative, got %d", c.MaxPages)
	check(c.MaxDepth >= 0, "max_depth must not be negative, got %d", c.MaxDepth)
	check(c.Timeout >= 0, "timeout must not be negative, got %s", c.Timeout)
	check(c.FetchTimeout > 0, "fetch_timeout must be positive, got %s", c.FetchTimeout)
	check(c.FetchRetries >= 0, "fetch_retries must not be negative, got %d", c.FetchRetries)
	check(c.RateLimit >= 0, "rate_limit must not be negative, got %g", c.RateLimit)
	check(c.CrawlName != "" && !strings.ContainsAny(c.CrawlName, `/\`), "crawl_name %q is not a valid file name part", c.CrawlName)
	check(c.RedisDB >= 0, "redis_db must not be negative, got %d", c.RedisDB)

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		check(false, "unknown log_level %q", c.LogLevel)
	}
	check(c.LogFormat == "json" || c.LogFormat == "console", "unknown log_format %q", c.LogFormat)

	if len(c.StartURLs) == 0 {
		check(c.Mode != ModeQuery || c.Query != "", "query must not be empty")
		check(c.Mode != ModeQuery || c.SearchURL != "", "search_url must not be empty")
	}
	for _, s := range c.StartURLs {
		u, err := url.Parse(s)
		check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", "invalid start url %q", s)
	}
	return errors.Join(errs...)
}

// Seeds returns the initial tasks of the run.
func (c *Config) Seeds() []domain.CrawlTask {
	kind := domain.ListingPage
	if c.Mode == ModeQuery {
		kind = domain.SearchPage
	}
	urls := c.StartURLs
	if len(urls) == 0 && c.Mode == ModeQuery {
		urls = []string{c.SearchURL + url.QueryEscape(c.Query)}
	}
	seeds := make([]domain.CrawlTask, 0, len(urls))
	for _, u := range urls {
		seeds = append(seeds, domain.CrawlTask{URL: u, Kind: kind})
	}
	return seeds
}

// LinkRules picks the link rule set for the configured mode.
func (c *Config) LinkRules(set *rules.Set) rules.LinkRuleSet {
	if c.Mode == ModeQuery {
		return set.Query
	}
	return set.Crawl
}
