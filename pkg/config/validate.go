package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// OutputBaseDir
	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './output/'")
		c.OutputBaseDir = "./output/"
	}

	// StateDir
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
		warnings = append(warnings, fmt.Sprintf("state_dir is empty, defaulting to '%s'", c.StateDir))
	}

	if c.UserAgent == "" {
		c.UserAgent = "conf-crawler/1.0"
	}

	// YearDelay
	if c.YearDelay < 0 {
		warnings = append(warnings, "year_delay cannot be negative, setting to 0")
		c.YearDelay = 0
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling per-host pacing")
		c.DelayPerHost = 0
	}

	// DetailWorkers
	if c.DetailWorkers <= 0 {
		warnings = append(warnings, "detail_workers should be > 0, defaulting to 1")
		c.DetailWorkers = 1
	}

	// ProgressInterval
	if c.ProgressInterval < 0 {
		warnings = append(warnings, "progress_interval cannot be negative, disabling progress logs")
		c.ProgressInterval = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// ResumeSignal
	signal := strings.ToLower(strings.TrimSpace(c.ResumeSignal))
	if signal == "" {
		signal = ResumeDirectory
	}
	if signal != ResumeDirectory && signal != ResumeMarker {
		return warnings, fmt.Errorf("%w: resume_signal must be %q or %q, got %q",
			utils.ErrConfigValidation, ResumeDirectory, ResumeMarker, c.ResumeSignal)
	}
	c.ResumeSignal = signal

	// MaxPDFSizeBytes
	if c.MaxPDFSizeBytes < 0 {
		warnings = append(warnings, "max_pdf_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPDFSizeBytes = 0
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	siteWarnings, err := c.Site.Validate()
	warnings = append(warnings, siteWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: BaseURL
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: site needs base_url", utils.ErrConfigValidation)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: site base_url %q is not an absolute URL", utils.ErrConfigValidation, c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	// Required: IndexPathTemplate
	if c.IndexPathTemplate == "" {
		return nil, fmt.Errorf("%w: site needs index_path_template", utils.ErrConfigValidation)
	}
	if !strings.Contains(c.IndexPathTemplate, "{year}") && !strings.Contains(c.IndexPathTemplate, "{number}") {
		warnings = append(warnings, "index_path_template has neither {year} nor {number}; every year will resolve to the same page")
	}

	if c.FirstYear <= 0 {
		return nil, fmt.Errorf("%w: site first_year must be positive, got %d", utils.ErrConfigValidation, c.FirstYear)
	}

	// Namespace
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if _, perr := uuid.Parse(c.Namespace); perr != nil {
		return nil, fmt.Errorf("%w: site namespace %q: %w", utils.ErrConfigValidation, c.Namespace, perr)
	}

	// PaperPathPrefix normalization
	if c.PaperPathPrefix == "" {
		c.PaperPathPrefix = "/paper/"
	} else if c.PaperPathPrefix[0] != '/' {
		c.PaperPathPrefix = "/" + c.PaperPathPrefix
	}

	if c.AbstractSelector == "" {
		c.AbstractSelector = "p.abstract"
	}
	if c.AuthorSelector == "" {
		c.AuthorSelector = "li.author"
	}

	if c.PDFFolder == "" {
		c.PDFFolder = "pdfs"
	}
	if c.RecordsFilename == "" {
		c.RecordsFilename = "papers_data.jsons"
	}
	if strings.ContainsAny(c.PDFFolder+c.RecordsFilename, "/\\") {
		return nil, fmt.Errorf("%w: pdf_folder and records_filename must be plain names", utils.ErrConfigValidation)
	}

	return warnings, nil
}

// NamespaceUUID returns the parsed identifier namespace; call after Validate
func (c SiteConfig) NamespaceUUID() uuid.UUID {
	ns, err := uuid.Parse(c.Namespace)
	if err != nil {
		return uuid.MustParse(DefaultNamespace)
	}
	return ns
}
