package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Resume signals understood by the crawler
const (
	ResumeDirectory = "directory" // an existing data_<year> directory marks the year as done
	ResumeMarker    = "marker"    // only a completion record in the state store marks the year as done
)

// DefaultNamespace is the namespace UUID used to derive paper and author identifiers
const DefaultNamespace = "5ee6531f-0d79-4cf1-8da6-dc83cb553336"

// SiteConfig describes the layout of the conference archive being crawled
type SiteConfig struct {
	BaseURL           string `yaml:"base_url"`
	IndexPathTemplate string `yaml:"index_path_template"` // {number} and {year} are substituted
	FirstYear         int    `yaml:"first_year"`
	Namespace         string `yaml:"namespace"`
	PaperPathPrefix   string `yaml:"paper_path_prefix"`
	AbstractSelector  string `yaml:"abstract_selector"`
	AuthorSelector    string `yaml:"author_selector"`
	PDFFolder         string `yaml:"pdf_folder"`
	RecordsFilename   string `yaml:"records_filename"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	OutputBaseDir      string           `yaml:"output_base_dir"`
	StateDir           string           `yaml:"state_dir"`
	LogFile            string           `yaml:"log_file,omitempty"`
	UserAgent          string           `yaml:"user_agent,omitempty"`
	YearDelay          time.Duration    `yaml:"year_delay,omitempty"`
	DelayPerHost       time.Duration    `yaml:"delay_per_host,omitempty"` // 0 disables per-host pacing
	DetailWorkers      int              `yaml:"detail_workers,omitempty"`
	ProgressInterval   time.Duration    `yaml:"progress_interval,omitempty"` // 0 disables periodic progress logs
	MaxRetries         int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	ResumeSignal       string           `yaml:"resume_signal,omitempty"`
	VerifyPDFs         bool             `yaml:"verify_pdfs,omitempty"`
	MaxPDFSizeBytes    int64            `yaml:"max_pdf_size_bytes,omitempty"` // 0 = unlimited
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Site               SiteConfig       `yaml:"site"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// DefaultSite returns the NeurIPS proceedings layout
func DefaultSite() SiteConfig {
	return SiteConfig{
		BaseURL:           "http://papers.nips.cc",
		IndexPathTemplate: "/book/advances-in-neural-information-processing-systems-{number}-{year}",
		FirstYear:         1988,
		Namespace:         DefaultNamespace,
		PaperPathPrefix:   "/paper/",
		AbstractSelector:  "p.abstract",
		AuthorSelector:    "li.author",
		PDFFolder:         "pdfs",
		RecordsFilename:   "papers_data.jsons",
	}
}

// Default returns a configuration that crawls the default site without a config file
func Default() AppConfig {
	return AppConfig{
		OutputBaseDir:     "./output/",
		StateDir:          DefaultStateDir(),
		LogFile:           "./crawler_log.txt",
		UserAgent:         "conf-crawler/1.0",
		YearDelay:         300 * time.Millisecond,
		DetailWorkers:     1,
		ProgressInterval:  30 * time.Second,
		MaxRetries:        3,
		InitialRetryDelay: 1 * time.Second,
		MaxRetryDelay:     30 * time.Second,
		ResumeSignal:      ResumeDirectory,
		Site:              DefaultSite(),
	}
}

// DefaultStateDir places crawl bookkeeping under the XDG state home
func DefaultStateDir() string {
	return filepath.Join(xdg.StateHome, "conf-crawler")
}

// Load reads a YAML file over the defaults; fields absent from the file keep their default value
func Load(path string) (AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variables that override file values
const (
	EnvOutput    = "CONF_CRAWLER_OUTPUT"
	EnvStateDir  = "CONF_CRAWLER_STATE_DIR"
	EnvUserAgent = "CONF_CRAWLER_USER_AGENT"
	EnvLogLevel  = "CONF_CRAWLER_LOGLEVEL"
)

// ApplyEnv overrides file values with CONF_CRAWLER_* variables; lookup is os.LookupEnv in production
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOutput); ok && strings.TrimSpace(v) != "" {
		c.OutputBaseDir = v
	}
	if v, ok := lookup(EnvStateDir); ok && strings.TrimSpace(v) != "" {
		c.StateDir = v
	}
	if v, ok := lookup(EnvUserAgent); ok && strings.TrimSpace(v) != "" {
		c.UserAgent = v
	}
}
