// Package crawler walks conference years, turning every paper link into a stored PDF and a JSON record.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/conf-crawler/pkg/artifact"
	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/extract"
	"github.com/Sriram-PR/conf-crawler/pkg/ident"
	"github.com/Sriram-PR/conf-crawler/pkg/index"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/parse"
	"github.com/Sriram-PR/conf-crawler/pkg/storage"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// PageFetcher retrieves and parses HTML pages
type PageFetcher interface {
	FetchDocument(ctx context.Context, rawURL string) (*parse.Document, error)
}

// ArtifactDownloader stores a remote file at a local path
type ArtifactDownloader interface {
	Download(ctx context.Context, rawURL, destPath string) (artifact.Artifact, error)
}

// Options contains optional behaviour switches for a Crawler
type Options struct {
	// Force re-crawls years whose output already exists; papers already in the
	// records file are still skipped.
	Force bool
}

// Progress is a snapshot of a running crawl
type Progress struct {
	YearsDone       int64
	PapersProcessed int64
	CurrentYear     string
}

// Crawler runs the per-year pipeline: index page, paper links, detail pages, artifacts, records
type Crawler struct {
	log   *logrus.Entry
	cfg   *config.AppConfig
	force bool

	resolver   *index.Resolver
	links      *extract.LinkExtractor
	details    *extract.DetailExtractor
	pages      PageFetcher
	downloader ArtifactDownloader
	store      storage.CrawlStore // nil disables bookkeeping

	yearsDone       atomic.Int64
	papersProcessed atomic.Int64
	currentYear     atomic.Value // string
}

// NewCrawler wires a Crawler from a validated configuration.
// store may be nil unless resume_signal is "marker".
func NewCrawler(
	cfg *config.AppConfig,
	pages PageFetcher,
	downloader ArtifactDownloader,
	store storage.CrawlStore,
	opts Options,
	baseLogger *logrus.Entry,
) (*Crawler, error) {
	if cfg.ResumeSignal == config.ResumeMarker && store == nil {
		return nil, fmt.Errorf("%w: resume_signal %q requires a crawl state store", utils.ErrConfigValidation, cfg.ResumeSignal)
	}

	log := baseLogger.WithField("component", "crawler")
	ids := ident.NewDeriver(cfg.Site.NamespaceUUID())
	c := &Crawler{
		log:        log,
		cfg:        cfg,
		force:      opts.Force,
		resolver:   index.NewResolver(cfg.Site),
		links:      extract.NewLinkExtractor(cfg.Site, ids, log),
		details:    extract.NewDetailExtractor(cfg.Site, ids),
		pages:      pages,
		downloader: downloader,
		store:      store,
	}
	c.currentYear.Store("")
	return c, nil
}

// GetProgress returns the current progress of the crawl
func (c *Crawler) GetProgress() Progress {
	return Progress{
		YearsDone:       c.yearsDone.Load(),
		PapersProcessed: c.papersProcessed.Load(),
		CurrentYear:     c.currentYear.Load().(string),
	}
}

// Run crawls every year from..to inclusive, one year at a time.
// Per-paper and per-year failures are reported in the Summary; the returned error is
// set only for an invalid range, a cancelled context or a persistence failure.
func (c *Crawler) Run(ctx context.Context, from, to int) (models.Summary, error) {
	var summary models.Summary
	years, err := c.resolver.Resolve(from, to)
	if err != nil {
		return summary, err
	}

	start := time.Now()
	c.log.WithFields(logrus.Fields{
		"from":          from,
		"to":            to,
		"output":        c.cfg.OutputBaseDir,
		"resume_signal": c.cfg.ResumeSignal,
		"force":         c.force,
		"workers":       c.cfg.DetailWorkers,
		"state_entries": c.stateEntries(),
	}).Info("Starting crawl")

	stopProgress := c.startProgress(ctx, c.cfg.ProgressInterval)
	defer stopProgress()

	for loc := range years {
		if err := ctx.Err(); err != nil {
			c.logSummary(summary, time.Since(start))
			return summary, err
		}
		c.currentYear.Store(loc.Year)

		result, err := c.processYear(ctx, loc)
		summary.Years = append(summary.Years, result)
		c.yearsDone.Add(1)
		if err != nil {
			c.log.WithFields(logrus.Fields{"year": loc.Year, "category": utils.CategorizeError(err)}).Errorf("Crawl aborted: %v", err)
			c.logSummary(summary, time.Since(start))
			return summary, err
		}
		if result.Skipped {
			continue
		}
		if err := c.pause(ctx); err != nil {
			c.logSummary(summary, time.Since(start))
			return summary, err
		}
	}

	c.logSummary(summary, time.Since(start))
	return summary, nil
}

// stateEntries returns the number of bookkeeping entries, or -1 when unknown
func (c *Crawler) stateEntries() int {
	if c.store == nil {
		return -1
	}
	n, err := c.store.GetVisitedCount()
	if err != nil {
		c.log.Warnf("Could not count crawl state entries: %v", err)
		return -1
	}
	return n
}

// startProgress logs GetProgress every interval until the returned stop func is called.
// A non-positive interval disables it.
func (c *Crawler) startProgress(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	progCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-progCtx.Done():
				return
			case <-ticker.C:
				p := c.GetProgress()
				c.log.WithFields(logrus.Fields{
					"current_year":     p.CurrentYear,
					"years_done":       p.YearsDone,
					"papers_processed": p.PapersProcessed,
					"state_entries":    c.stateEntries(),
				}).Info("Crawl progress")
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// pause waits year_delay unless ctx ends first
func (c *Crawler) pause(ctx context.Context) error {
	if c.cfg.YearDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.cfg.YearDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processYear crawls one year. The error return is reserved for conditions that must stop the run.
func (c *Crawler) processYear(ctx context.Context, loc models.ConferenceLocator) (result models.YearResult, err error) {
	start := time.Now()
	result = models.YearResult{Year: loc.Year}
	defer func() { result.Duration = time.Since(start) }()

	yearLog := c.log.WithFields(logrus.Fields{"year": loc.Year, "number": loc.Number})
	out := NewYearOutput(c.cfg.OutputBaseDir, c.cfg.Site, loc.Year, yearLog)

	exists, err := out.Exists()
	if err != nil {
		return result, err
	}
	if reason, skip, err := c.shouldSkip(loc.Year, exists); err != nil {
		return result, err
	} else if skip {
		result.Skipped = true
		result.SkipReason = reason
		yearLog.WithField("reason", reason).Info("Year already processed, skipping")
		return result, nil
	}

	yearLog.WithField("url", loc.URL).Info("Fetching conference index")
	doc, err := c.pages.FetchDocument(ctx, loc.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		result.Err = fmt.Errorf("%w: %s: %w", utils.ErrIndexPage, loc.URL, err)
		yearLog.WithField("category", utils.CategorizeError(err)).Errorf("Index page unusable, skipping year: %v", err)
		c.markYear(loc.Year, models.YearStatusFailed, start, result, yearLog)
		return result, nil
	}

	refs := c.links.Extract(doc)
	result.Links = len(refs)
	if len(refs) == 0 {
		yearLog.Warn("No paper links found on index page")
	} else {
		yearLog.Infof("Found %d paper links", len(refs))
	}

	recorded := map[string]struct{}{}
	if exists {
		if recorded, err = LoadRecorded(out.RecordsPath(), yearLog); err != nil {
			return result, err
		}
		yearLog.Infof("%d papers already recorded, they will be skipped", len(recorded))
		c.logPreviousFailures(ctx, loc.Year, yearLog)
	}

	if err := out.Open(); err != nil {
		return result, err
	}
	yearLog.WithField("dir", out.Dir()).Debug("Year output open")
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	c.markYear(loc.Year, models.YearStatusInProgress, start, result, yearLog)

	var mu sync.Mutex
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.DetailWorkers)
	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			paper, err := c.processPaper(gctx, loc.Year, ref, out, recorded, yearLog)
			if err != nil {
				return err
			}
			n := done.Add(1)
			c.papersProcessed.Add(1)
			yearLog.WithFields(logrus.Fields{
				"pdf_name": paper.PDFName,
				"outcome":  paper.Outcome.String(),
			}).Infof("Paper %d/%d done", n, len(refs))

			mu.Lock()
			result.Record(paper)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := out.Close(); err != nil {
		return result, err
	}
	c.markYear(loc.Year, models.YearStatusComplete, start, result, yearLog)

	yearLog.WithFields(logrus.Fields{
		"written":          result.Written,
		"already_recorded": result.AlreadyRecorded,
		"failed":           result.Failed(),
		"duration":         time.Since(start).Round(time.Millisecond),
	}).Info("Year complete")
	return result, nil
}

// shouldSkip applies the configured resumability signal
func (c *Crawler) shouldSkip(year string, exists bool) (reason string, skip bool, err error) {
	if c.force {
		return "", false, nil
	}
	switch c.cfg.ResumeSignal {
	case config.ResumeMarker:
		status, _, err := c.store.CheckYearStatus(year)
		if err != nil {
			return "", false, err
		}
		if status == models.YearStatusComplete {
			return "completion record", true, nil
		}
		return "", false, nil
	default:
		if exists {
			return "output directory exists", true, nil
		}
		return "", false, nil
	}
}

// logPreviousFailures reports papers that failed in an earlier run of this year
func (c *Crawler) logPreviousFailures(ctx context.Context, year string, yearLog *logrus.Entry) {
	if c.store == nil {
		return
	}
	failed, err := c.store.FailedPapers(ctx, year)
	if err != nil {
		yearLog.Warnf("Could not list previously failed papers: %v", err)
		return
	}
	if len(failed) > 0 {
		yearLog.Infof("Retrying %d papers that failed in an earlier run", len(failed))
	}
}

// processPaper runs the per-paper pipeline. Paper-level problems come back as a failed
// PaperResult; the error return is reserved for cancellation and persistence failures.
func (c *Crawler) processPaper(
	ctx context.Context,
	year string,
	ref models.PaperRef,
	out *YearOutput,
	recorded map[string]struct{},
	yearLog *logrus.Entry,
) (models.PaperResult, error) {
	pdfName := c.links.PDFName(ref)
	paperLog := yearLog.WithField("pdf_name", pdfName)

	if _, ok := recorded[pdfName]; ok {
		paperLog.Debug("Paper already recorded, skipping")
		return models.PaperResult{PDFName: pdfName, Outcome: models.OutcomeSkipped}, nil
	}
	c.logPriorFailure(year, pdfName, paperLog)

	rec, err := c.links.BuildSkeleton(ref)
	if err != nil {
		return c.paperFailed(year, pdfName, models.FailMalformedLink, err, paperLog), nil
	}

	doc, err := c.pages.FetchDocument(ctx, rec.InfoLink)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.PaperResult{}, ctxErr
		}
		return c.paperFailed(year, pdfName, models.FailFetchDetail, err, paperLog), nil
	}

	rec, err = c.details.FillDetails(rec, doc)
	if err != nil {
		kind := models.FailAbstractNotFound
		if errors.Is(err, utils.ErrMalformedAuthor) {
			kind = models.FailMalformedAuthor
		}
		return c.paperFailed(year, pdfName, kind, err, paperLog), nil
	}

	stored, err := c.downloader.Download(ctx, rec.PDFLink, out.PDFPath(rec.PDFName))
	if err != nil {
		if errors.Is(err, utils.ErrFilesystem) {
			return models.PaperResult{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.PaperResult{}, ctxErr
		}
		kind := models.FailDownload
		if errors.Is(err, utils.ErrArtifactInvalid) {
			kind = models.FailVerify
		}
		return c.paperFailed(year, pdfName, kind, err, paperLog), nil
	}

	if err := out.Append(rec); err != nil {
		return models.PaperResult{}, err
	}

	now := time.Now()
	c.markPaper(year, pdfName, &models.PaperDBEntry{
		Status:         models.PaperStatusSuccess,
		ProcessedAt:    now,
		LastAttempt:    now,
		ArtifactSHA256: stored.SHA256,
		ArtifactBytes:  stored.Bytes,
	}, paperLog)
	paperLog.WithFields(logrus.Fields{
		"authors": len(rec.Authors),
		"size":    humanize.Bytes(uint64(stored.Bytes)),
	}).Info("Paper saved")
	return models.PaperResult{PDFName: pdfName, Outcome: models.OutcomeWritten}, nil
}

// logPriorFailure notes a paper whose last recorded attempt failed
func (c *Crawler) logPriorFailure(year, pdfName string, paperLog *logrus.Entry) {
	if c.store == nil {
		return
	}
	status, entry, err := c.store.CheckPaperStatus(year, pdfName)
	if err != nil {
		paperLog.Debugf("Could not read paper status: %v", err)
		return
	}
	if status == models.PaperStatusFailure && entry != nil {
		paperLog.WithFields(logrus.Fields{
			"previous_error": entry.ErrorType,
			"last_attempt":   entry.LastAttempt.Format(time.RFC3339),
		}).Info("Retrying paper that failed earlier")
	}
}

// paperFailed logs and records a per-paper failure
func (c *Crawler) paperFailed(year, pdfName string, kind models.FailureKind, err error, paperLog *logrus.Entry) models.PaperResult {
	category := utils.CategorizeError(err)
	paperLog.WithFields(logrus.Fields{"kind": kind, "category": category}).Warnf("Skipping paper: %v", err)
	c.markPaper(year, pdfName, &models.PaperDBEntry{
		Status:      models.PaperStatusFailure,
		ErrorType:   category,
		LastAttempt: time.Now(),
	}, paperLog)
	return models.PaperResult{PDFName: pdfName, Outcome: models.OutcomeFailed, Kind: kind, Err: err}
}

// markPaper writes paper bookkeeping. Store failures are logged only: the records
// file stays authoritative for which papers are done.
func (c *Crawler) markPaper(year, pdfName string, entry *models.PaperDBEntry, paperLog *logrus.Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdatePaperStatus(year, pdfName, entry); err != nil {
		paperLog.WithField("category", utils.CategorizeError(err)).Errorf("Failed to record paper status: %v", err)
	}
}

// markYear writes year bookkeeping. A lost completion record only means the year is
// crawled again, with its recorded papers skipped.
func (c *Crawler) markYear(year string, status models.YearStatus, started time.Time, result models.YearResult, yearLog *logrus.Entry) {
	if c.store == nil {
		return
	}
	entry := &models.YearDBEntry{
		Status:    status,
		StartedAt: started,
		Written:   result.Written,
		Failed:    result.Failed(),
	}
	if status == models.YearStatusComplete {
		entry.CompletedAt = time.Now()
	}
	if err := c.store.UpdateYearStatus(year, entry); err != nil {
		yearLog.WithField("category", utils.CategorizeError(err)).Errorf("Failed to record year status: %v", err)
	}
}

// logSummary logs a per-year summary of the run
func (c *Crawler) logSummary(summary models.Summary, totalDuration time.Duration) {
	c.log.Info("============================================")
	c.log.Infof("Crawl finished in %v", totalDuration.Round(time.Millisecond))
	c.log.Info("Year Results:")

	skipped, aborted := 0, 0
	for _, y := range summary.Years {
		switch {
		case y.Skipped:
			skipped++
			c.log.Infof("  %s: SKIPPED (%s)", y.Year, y.SkipReason)
		case y.Err != nil:
			aborted++
			c.log.Infof("  %s: FAILED - %v", y.Year, y.Err)
		default:
			c.log.Infof("  %s: %d links, %d written, %d already recorded, %d failed in %v",
				y.Year, y.Links, y.Written, y.AlreadyRecorded, y.Failed(), y.Duration.Round(time.Millisecond))
			for _, kind := range y.FailureKinds() {
				c.log.Infof("    %s: %d", kind, y.Failures[kind])
			}
		}
	}

	c.log.Info("--------------------------------------------")
	c.log.Infof("Total: %d years (%d skipped, %d failed), %s papers written, %s failed",
		len(summary.Years), skipped, aborted,
		humanize.Comma(int64(summary.Written())), humanize.Comma(int64(summary.Failed())))
	c.log.Info("============================================")
}
