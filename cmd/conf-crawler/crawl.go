package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/conf-crawler/pkg/artifact"
	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/crawler"
	"github.com/Sriram-PR/conf-crawler/pkg/fetch"
	"github.com/Sriram-PR/conf-crawler/pkg/index"
	"github.com/Sriram-PR/conf-crawler/pkg/parse"
	"github.com/Sriram-PR/conf-crawler/pkg/storage"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

type crawlOptions struct {
	from, to        int
	configPath      string
	output          string
	stateDir        string
	logFile         string
	logLevel        string
	resumeSignal    string
	workers         int
	force           bool
	verifyPDFs      bool
	writeVisitedLog bool
}

func newCrawlCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl --from YEAR --to YEAR",
		Short: "Crawl a range of conference years",
		Long: `Crawl every conference year from --from to --to (inclusive).

Examples:
  conf-crawler crawl --from 2017 --to 2019
  conf-crawler crawl --from 2019 --to 2019 --force --output ./papers
  conf-crawler crawl --from 1988 --to 2000 --config crawler.yaml --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.from, "from", 0, "First year to crawl (required)")
	f.IntVar(&opts.to, "to", 0, "Last year to crawl, inclusive (required)")
	f.StringVar(&opts.configPath, "config", "", "Path to YAML config file (defaults to the built-in NeurIPS settings)")
	f.StringVar(&opts.output, "output", "./output/", "Output root directory")
	f.StringVar(&opts.stateDir, "state-dir", "", "Crawl state directory (default under the XDG state home)")
	f.StringVar(&opts.logFile, "log-file", "./crawler_log.txt", "Append log output to this file as well as stderr (empty disables)")
	f.StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
	f.StringVar(&opts.resumeSignal, "resume-signal", config.ResumeDirectory, "What marks a year as done: 'directory' or 'marker'")
	f.IntVar(&opts.workers, "workers", 1, "Papers processed concurrently within a year")
	f.BoolVar(&opts.force, "force", false, "Re-crawl years that already have output; recorded papers are still skipped")
	f.BoolVar(&opts.verifyPDFs, "verify-pdfs", false, "Reject downloads that do not parse as PDF")
	f.BoolVar(&opts.writeVisitedLog, "write-visited-log", false, "Write the crawl state entries to a TSV file after the run")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

// applyFlags overrides file and environment values with explicitly set flags.
// The output and log file defaults also apply when no config file sets them.
func applyFlags(cmd *cobra.Command, cfg *config.AppConfig, opts crawlOptions) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.OutputBaseDir = opts.output
	}
	if changed("state-dir") {
		cfg.StateDir = opts.stateDir
	}
	if changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	if changed("resume-signal") {
		cfg.ResumeSignal = opts.resumeSignal
	}
	if changed("workers") {
		cfg.DetailWorkers = opts.workers
	}
	if changed("verify-pdfs") {
		cfg.VerifyPDFs = opts.verifyPDFs
	}
}

// resolveLogLevel picks the --loglevel flag, then CONF_CRAWLER_LOGLEVEL, then the flag default
func resolveLogLevel(cmd *cobra.Command, opts crawlOptions) string {
	if !cmd.Flags().Changed("loglevel") {
		if v, ok := os.LookupEnv(config.EnvLogLevel); ok && v != "" {
			return v
		}
	}
	return opts.logLevel
}

func setupLogger(levelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

func runCrawl(cmd *cobra.Command, opts crawlOptions, stdout, stderr io.Writer) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	appCfg, err := loadConfig(opts.configPath)
	if err != nil {
		return usageError(err)
	}
	appCfg.ApplyEnv(os.LookupEnv)
	applyFlags(cmd, &appCfg, opts)

	log := setupLogger(resolveLogLevel(cmd, opts), stderr)
	warnings, err := appCfg.Validate()
	if err != nil {
		return usageError(err)
	}
	if _, err := index.NewResolver(appCfg.Site).Resolve(opts.from, opts.to); err != nil {
		return usageError(err)
	}
	host, err := parse.HostKey(appCfg.Site.BaseURL)
	if err != nil {
		return usageError(err)
	}

	if appCfg.LogFile != "" {
		logFile, err := os.OpenFile(appCfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return usageError(fmt.Errorf("%w: open log file %s: %w", utils.ErrFilesystem, appCfg.LogFile, err))
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(stderr, logFile))
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	logAppConfig(&appCfg, log)

	baseLog := logrus.NewEntry(log)

	// --- Storage ---
	store, err := storage.NewBadgerStore(ctx, appCfg.StateDir, host, baseLog.WithField("component", "storage"))
	if err != nil {
		return runtimeError(err)
	}
	defer store.Close()

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go store.RunGC(gcCtx, 10*time.Minute)

	// --- HTTP Fetching Components ---
	fetchLog := baseLog.WithField("component", "fetch")
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.UserAgent, fetchLog)
	fetcher := fetch.NewFetcher(httpClient, &appCfg, fetchLog)
	downloader := artifact.NewDownloader(fetcher, appCfg.MaxPDFSizeBytes, appCfg.VerifyPDFs, baseLog.WithField("component", "artifact"))

	c, err := crawler.NewCrawler(&appCfg, fetcher, downloader, store, crawler.Options{Force: opts.force}, baseLog)
	if err != nil {
		return usageError(err)
	}

	summary, runErr := c.Run(ctx, opts.from, opts.to)

	if opts.writeVisitedLog {
		if ctx.Err() != nil {
			log.Warnf("Skipping visited log due to context error: %v", ctx.Err())
		} else {
			visitedPath := filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(host)+"-visited.txt")
			if err := store.WriteVisitedLog(visitedPath); err != nil {
				log.Errorf("Error writing visited log: %v", err)
			}
		}
	}

	fmt.Fprintf(stdout, "%d years, %d papers written, %d failed\n", len(summary.Years), summary.Written(), summary.Failed())

	switch {
	case runErr == nil:
		log.Info("Crawl completed successfully.")
		return nil
	case errors.Is(runErr, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return nil
	case errors.Is(runErr, utils.ErrInvalidRange):
		return usageError(runErr)
	default:
		return runtimeError(runErr)
	}
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Site:%s, FirstYear:%d, Output:%s, StateDir:%s",
		appCfg.Site.BaseURL, appCfg.Site.FirstYear, appCfg.OutputBaseDir, appCfg.StateDir)
	log.Infof("Config: YearDelay:%v, DelayPerHost:%v, Workers:%d, ResumeSignal:%s, VerifyPDFs:%t",
		appCfg.YearDelay, appCfg.DelayPerHost, appCfg.DetailWorkers, appCfg.ResumeSignal, appCfg.VerifyPDFs)
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}
