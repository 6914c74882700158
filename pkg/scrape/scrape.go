// Package scrape implements the first stage of the pipeline: walking
// category pages and persisting the presentation listings as CSV.
package scrape

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"slidescraper/pkg/browser"
	"slidescraper/pkg/config"
	"slidescraper/pkg/dispatch"
	"slidescraper/pkg/errs"
	"slidescraper/pkg/extract"
	"slidescraper/pkg/logger"
	"slidescraper/pkg/models"
	"slidescraper/pkg/records"
	"slidescraper/pkg/retry"
)

// MetadataFileName is the run summary written next to the CSV files.
const MetadataFileName = "scrape_info.json"

// Scraper orchestrates listing collection across browser workers.
type Scraper struct {
	cfg       *config.Config
	extractor *extract.Extractor
	factory   dispatch.SessionFactory
	workers   int
	log       logger.Logger
}

// New builds a Scraper. workers controls how many browser sessions run
// in parallel; factory may be overridden for tests.
func New(cfg *config.Config, workers int, factory dispatch.SessionFactory, log logger.Logger) *Scraper {
	if factory == nil {
		factory = func(ctx context.Context, workerID int) (*browser.Session, func(), error) {
			s, err := browser.Open(ctx, &cfg.Browser, log)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		}
	}
	return &Scraper{
		cfg:       cfg,
		extractor: extract.NewDefault(),
		factory:   factory,
		workers:   workers,
		log:       log,
	}
}

// Summary reports what a finished run produced.
type Summary struct {
	RunDir   string
	Metadata *models.RunMetadata
}

// Run collects listings for every task expanded from category and
// section, writes one CSV per task plus a metadata document, and
// returns the run summary. Individual task failures are recorded in
// the metadata, not returned as errors.
func (s *Scraper) Run(ctx context.Context, category, section string, targetCount int) (*Summary, error) {
	tasks, err := models.ExpandTasks(category, section, targetCount)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "invalid scrape arguments", err)
	}

	start := time.Now()
	params := map[string]string{
		"category": category,
		"section":  section,
		"num":      strconv.Itoa(targetCount),
	}
	if s.cfg.Browser.Headless {
		params["headless"] = "true"
	}
	if s.workers > 1 {
		params["window"] = strconv.Itoa(s.workers)
	}
	runDir := records.DeriveRunDir(s.cfg.Output.URLDir, start, params)

	s.log.InfoWithFields("starting scrape run", map[string]interface{}{
		"tasks":   len(tasks),
		"workers": s.workers,
		"run_dir": runDir,
	})

	d, err := dispatch.New[models.CrawlTask, []models.ListingRecord](s.workers, s.factory, s.log)
	if err != nil {
		return nil, err
	}

	batch := d.Run(ctx, tasks, func(ctx context.Context, session *browser.Session, task models.CrawlTask) ([]models.ListingRecord, error) {
		return s.scrapeTask(ctx, session, task, runDir)
	})

	meta := models.NewRunMetadata(start, params)
	meta.Results.TotalTasks = len(tasks)
	meta.Results.SuccessfulTasks = batch.Successful
	meta.Results.FailedTasks = batch.Failed
	meta.Results.ExecutionTime = time.Since(start).Seconds()
	meta.SystemInfo = map[string]string{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"workers":    strconv.Itoa(s.workers),
	}
	for _, res := range batch.Results {
		if res.Succeeded() {
			meta.Results.TotalData += len(res.Value)
			meta.Results.Files = append(meta.Results.Files, records.CSVFileName(res.Task))
		} else {
			s.log.ErrorWithFields("task failed", map[string]interface{}{
				"task":  res.Task.Name(),
				"error": res.Err.Error(),
			})
		}
	}

	if err := records.WriteMetadata(filepath.Join(runDir, MetadataFileName), meta); err != nil {
		return nil, err
	}

	s.log.InfoWithFields("scrape run finished", map[string]interface{}{
		"successful": batch.Successful,
		"failed":     batch.Failed,
		"records":    meta.Results.TotalData,
		"elapsed":    batch.Elapsed.String(),
	})
	return &Summary{RunDir: runDir, Metadata: meta}, nil
}

// scrapeTask collects up to task.TargetCount listings for one
// (category, section) pair and writes them to CSV.
func (s *Scraper) scrapeTask(ctx context.Context, session *browser.Session, task models.CrawlTask, runDir string) ([]models.ListingRecord, error) {
	if session == nil {
		return nil, errs.New(errs.KindEnvironment, "no browser session available")
	}

	url := models.CategoryURL(task.Category)
	log := s.log.WithFields(map[string]interface{}{
		"task": task.Name(),
		"url":  url,
	})

	retryCfg := retry.FromConfig(&s.cfg.Retry, s.log)
	retryCfg.Context = ctx
	if err := retry.Do(func() error {
		return session.Navigate(ctx, url)
	}, retryCfg); err != nil {
		return nil, err
	}

	sel := extract.DefaultSelectors()

	// let lazy content load before the first snapshot
	if n, err := session.ScrollToLoad(ctx, sel.Card, task.TargetCount,
		s.cfg.Scrape.MaxScrolls, s.cfg.Scrape.SettleDelay); err != nil {
		log.WithError(err).Warn("initial scroll failed")
	} else {
		log.WithField("cards", n).Debug("page settled after scrolling")
	}

	collected := make([]models.ListingRecord, 0, task.TargetCount)
	seen := make(map[string]struct{})
	consecutiveErrors := 0

	for round := 0; round < s.cfg.Scrape.MaxScrolls; round++ {
		html, err := session.HTML(ctx)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= s.cfg.Scrape.MaxConsecutiveErrors {
				return nil, errs.Wrap(errs.KindExtraction,
					fmt.Sprintf("giving up after %d consecutive errors", consecutiveErrors), err)
			}
			continue
		}

		recs, skipped, err := s.extractor.ExtractListing(html, task.Section)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= s.cfg.Scrape.MaxConsecutiveErrors {
				return nil, err
			}
			log.WithError(err).Warn("extraction failed, retrying after settle")
			if serr := sleep(ctx, s.cfg.Scrape.SettleDelay); serr != nil {
				return nil, serr
			}
			continue
		}
		consecutiveErrors = 0
		if skipped > 0 {
			log.WithField("skipped", skipped).Debug("skipped malformed cards")
		}

		added := merge(&collected, seen, recs)
		log.DebugWithFields("collection progress", map[string]interface{}{
			"round": round,
			"new":   added,
			"total": len(collected),
		})
		if len(collected) >= task.TargetCount {
			break
		}

		clicked, err := session.ClickIfPresent(ctx, sel.ShowMore)
		if err != nil {
			log.WithError(err).Warn("show more click failed")
		}
		if !clicked && added == 0 {
			log.Info("no new content available, stopping early")
			break
		}
		if err := sleep(ctx, s.cfg.Scrape.SettleDelay); err != nil {
			return nil, err
		}
	}

	final := renumber(truncate(collected, task.TargetCount))
	if err := records.WriteCSV(filepath.Join(runDir, records.CSVFileName(task)), final); err != nil {
		return nil, err
	}

	log.InfoWithFields("task complete", map[string]interface{}{
		"collected": len(final),
		"target":    task.TargetCount,
	})
	return final, nil
}

// merge appends records whose detail URL has not been seen yet and
// reports how many were added.
func merge(collected *[]models.ListingRecord, seen map[string]struct{}, recs []models.ListingRecord) int {
	added := 0
	for _, r := range recs {
		if _, dup := seen[r.DetailURL]; dup {
			continue
		}
		seen[r.DetailURL] = struct{}{}
		*collected = append(*collected, r)
		added++
	}
	return added
}

func truncate(recs []models.ListingRecord, n int) []models.ListingRecord {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

// renumber assigns dense sequence indices starting at 1.
func renumber(recs []models.ListingRecord) []models.ListingRecord {
	for i := range recs {
		recs[i].SequenceIndex = i + 1
	}
	return recs
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
