// Package download implements the second stage of the pipeline:
// visiting each collected presentation and materializing its slides
// as JPEG files.
package download

import (
	"context"
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
	"slidescraper/pkg/materialize"
	"slidescraper/pkg/models"
	"slidescraper/pkg/ratelimit"
	"slidescraper/pkg/records"
	"slidescraper/pkg/retry"
)

// MetadataFileName is the run summary written into the output tree.
const MetadataFileName = "download_info.json"

// Downloader walks presentation pages and stores their slides.
type Downloader struct {
	cfg          *config.Config
	extractor    *extract.Extractor
	materializer *materialize.Materializer
	factory      dispatch.SessionFactory
	pace         ratelimit.Limiter
	log          logger.Logger
}

// New assembles a Downloader. factory may be overridden for tests.
func New(cfg *config.Config, factory dispatch.SessionFactory, log logger.Logger) *Downloader {
	if factory == nil {
		factory = func(ctx context.Context, workerID int) (*browser.Session, func(), error) {
			s, err := browser.Open(ctx, &cfg.Browser, log)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		}
	}

	client := materialize.NewClient(cfg.Download.Timeout, cfg.Browser.UserAgent, models.BaseURL)
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	retrier := retry.NewRetrier(retry.FromConfig(&cfg.Retry, log))

	return &Downloader{
		cfg:          cfg,
		extractor:    extract.NewDefault(),
		materializer: materialize.New(client, limiter, retrier, cfg.Download.Overwrite, log),
		factory:      factory,
		pace:         ratelimit.NewInterval(cfg.Download.Delay),
		log:          log,
	}
}

// Summary reports what a download run produced.
type Summary struct {
	OutputDir     string
	Tasks         int
	Successful    int
	Failed        int
	SlidesWritten int
	SlidesSkipped int
}

type taskResult struct {
	written int
	skipped int
}

// Run downloads slides for every presentation selected by src. A
// selection that matches no CSV files succeeds with a warning so that
// repeated invocations stay idempotent.
func (d *Downloader) Run(ctx context.Context, src Source) (*Summary, error) {
	files, runName, err := src.Resolve(d.cfg.Output.URLDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		d.log.Warn("selection matched no listing files, nothing to download")
		return &Summary{}, nil
	}

	var tasks []models.DownloadTask
	for _, file := range files {
		recs, err := records.ReadCSV(file)
		if err != nil {
			return nil, err
		}
		stem := csvStem(file)
		for _, rec := range recs {
			tasks = append(tasks, models.DownloadTask{
				Record:  rec,
				CSVStem: stem,
				RunName: runName,
			})
		}
	}

	outputDir := filepath.Join(d.cfg.Output.FilesDir, runName)
	if len(tasks) == 0 {
		d.log.Warn("listing files contain no records, nothing to download")
		return &Summary{OutputDir: outputDir}, nil
	}

	start := time.Now()
	d.log.InfoWithFields("starting download run", map[string]interface{}{
		"presentations": len(tasks),
		"workers":       d.cfg.Download.Workers,
		"output_dir":    outputDir,
	})

	disp, err := dispatch.New[models.DownloadTask, taskResult](d.cfg.Download.Workers, d.factory, d.log)
	if err != nil {
		return nil, err
	}

	batch := disp.Run(ctx, tasks, func(ctx context.Context, session *browser.Session, task models.DownloadTask) (taskResult, error) {
		return d.downloadPresentation(ctx, session, task, outputDir)
	})

	summary := &Summary{
		OutputDir:  outputDir,
		Tasks:      len(tasks),
		Successful: batch.Successful,
		Failed:     batch.Failed,
	}
	for _, res := range batch.Results {
		summary.SlidesWritten += res.Value.written
		summary.SlidesSkipped += res.Value.skipped
		if !res.Succeeded() {
			d.log.ErrorWithFields("presentation failed", map[string]interface{}{
				"url":   res.Task.Record.DetailURL,
				"error": res.Err.Error(),
			})
		}
	}

	meta := models.NewRunMetadata(start, map[string]string{
		"source":  runName,
		"workers": strconv.Itoa(d.cfg.Download.Workers),
	})
	meta.Results = models.RunResults{
		TotalTasks:      summary.Tasks,
		SuccessfulTasks: summary.Successful,
		FailedTasks:     summary.Failed,
		TotalData:       summary.SlidesWritten,
		ExecutionTime:   time.Since(start).Seconds(),
		Files:           baseNames(files),
	}
	meta.SystemInfo = map[string]string{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
	if err := records.WriteMetadata(filepath.Join(outputDir, MetadataFileName), meta); err != nil {
		return nil, err
	}

	d.log.InfoWithFields("download run finished", map[string]interface{}{
		"successful":     summary.Successful,
		"failed":         summary.Failed,
		"slides_written": summary.SlidesWritten,
		"slides_skipped": summary.SlidesSkipped,
		"elapsed":        batch.Elapsed.String(),
	})
	return summary, nil
}

// downloadPresentation fetches one detail page and stores every slide
// it shows.
func (d *Downloader) downloadPresentation(ctx context.Context, session *browser.Session, task models.DownloadTask, outputDir string) (taskResult, error) {
	var result taskResult
	if session == nil {
		return result, errs.New(errs.KindEnvironment, "no browser session available")
	}

	url := task.Record.DetailURL
	log := d.log.WithFields(map[string]interface{}{
		"url":  url,
		"task": task.CSVStem,
	})

	retryCfg := retry.FromConfig(&d.cfg.Retry, d.log)
	retryCfg.Context = ctx

	sel := extract.DefaultSelectors()
	images, html, err := d.capturePage(func() (string, error) {
		if err := session.Navigate(ctx, url); err != nil {
			return "", err
		}
		if err := session.WaitVisible(ctx, sel.SlideImage); err != nil {
			log.WithError(err).Warn("slide container slow to appear, trying snapshot anyway")
		}
		return session.HTML(ctx)
	}, url, retryCfg)
	if err != nil {
		return result, err
	}

	title := task.Record.Title
	if title == "" {
		if title, _ = d.extractor.ExtractTitle(html); title == "" {
			title = records.TitleFromURL(url)
		}
	}

	itemDir := records.ItemDirName(filepath.Join(outputDir, task.CSVStem), task.Record.SequenceIndex, title)
	for _, img := range images {
		path := records.SlidePath(itemDir, title, img.Ordinal)
		written, err := d.materializer.Materialize(ctx, img.SourceURL, path)
		if err != nil {
			log.ErrorWithFields("slide download failed", map[string]interface{}{
				"ordinal": img.Ordinal,
				"source":  img.SourceURL,
				"error":   err.Error(),
			})
			return result, err
		}
		if written {
			result.written++
		} else {
			result.skipped++
		}

		if err := d.pace.Wait(ctx); err != nil {
			return result, err
		}
	}

	log.InfoWithFields("presentation complete", map[string]interface{}{
		"slides":  len(images),
		"written": result.written,
		"skipped": result.skipped,
	})
	return result, nil
}

type capturedPage struct {
	html   string
	images []models.SlideImage
}

// capturePage loads a detail page via load and extracts its slide
// images. A page that renders without slides counts as a transient
// failure and the whole load runs again under cfg's budget.
func (d *Downloader) capturePage(load func() (string, error), url string, cfg *retry.Config) ([]models.SlideImage, string, error) {
	page, err := retry.DoWithResult(func() (capturedPage, error) {
		html, err := load()
		if err != nil {
			return capturedPage{}, err
		}
		images, err := d.extractor.ExtractImages(html)
		if err != nil {
			return capturedPage{}, err
		}
		if len(images) == 0 {
			return capturedPage{}, errs.Newf(errs.KindExtraction, "no slide images on %s", url)
		}
		return capturedPage{html: html, images: images}, nil
	}, cfg)
	return page.images, page.html, err
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
