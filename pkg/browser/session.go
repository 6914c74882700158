// Package browser drives a headless Chrome instance through chromedp.
// Each Session owns one browser context; the scraper gives every
// worker its own Session so page state never crosses workers.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"slidescraper/pkg/config"
	"slidescraper/pkg/errs"
	"slidescraper/pkg/logger"
)

// Session wraps a single chromedp browser context.
type Session struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	pageTimeout     time.Duration
	waitTimeout     time.Duration
	log             logger.Logger
	closeOnce       sync.Once
}

// chrome binaries probed for a friendlier error before chromedp
// falls back to its own lookup.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
}

func chromeAvailable() bool {
	for _, name := range chromeCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// Open launches a browser and verifies it responds. The caller must
// Close the session when done.
func Open(ctx context.Context, cfg *config.BrowserConfig, log logger.Logger) (*Session, error) {
	if !chromeAvailable() {
		return nil, errs.New(errs.KindEnvironment,
			"no chrome or chromium binary found in PATH")
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		pageTimeout:     cfg.PageLoadTimeout,
		waitTimeout:     cfg.WaitTimeout,
		log:             log,
	}

	// startup probe
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, errs.Wrap(errs.KindEnvironment, "browser failed startup probe", err)
	}

	return s, nil
}

// Navigate loads url and waits for the document to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.withTimeout(ctx, s.pageTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Wrap(errs.KindNavigationTimeout,
				fmt.Sprintf("timed out loading %s", url), err)
		}
		return errs.Wrap(errs.KindNavigation,
			fmt.Sprintf("failed to load %s", url), err)
	}
	return nil
}

// WaitVisible blocks until an element matching sel is visible, bounded
// by the configured wait timeout.
func (s *Session) WaitVisible(ctx context.Context, sel string) error {
	runCtx, cancel := s.withTimeout(ctx, s.waitTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Wrap(errs.KindNavigationTimeout,
				fmt.Sprintf("element %q never became visible", sel), err)
		}
		return errs.Wrap(errs.KindNavigation,
			fmt.Sprintf("wait for %q failed", sel), err)
	}
	return nil
}

// HTML returns a snapshot of the current document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.withTimeout(ctx, s.waitTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errs.Wrap(errs.KindNavigation, "failed to capture page html", err)
	}
	return html, nil
}

// ScrollToLoad scrolls to the bottom repeatedly until the number of
// elements matching countSel stops growing, reaches target, or
// maxScrolls is hit. Returns the final element count.
func (s *Session) ScrollToLoad(ctx context.Context, countSel string, target, maxScrolls int, settle time.Duration) (int, error) {
	count, err := s.countElements(ctx, countSel)
	if err != nil {
		return 0, err
	}

	noGrowth := 0
	for i := 0; i < maxScrolls && count < target; i++ {
		runCtx, cancel := s.withTimeout(ctx, s.waitTimeout)
		err := chromedp.Run(runCtx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		)
		cancel()
		if err != nil {
			return count, errs.Wrap(errs.KindNavigation, "scroll failed", err)
		}

		if err := sleepCtx(ctx, settle); err != nil {
			return count, err
		}

		next, err := s.countElements(ctx, countSel)
		if err != nil {
			return count, err
		}
		if next <= count {
			noGrowth++
			if noGrowth >= 2 {
				break
			}
		} else {
			noGrowth = 0
		}
		count = next
	}
	return count, nil
}

func (s *Session) countElements(ctx context.Context, sel string) (int, error) {
	runCtx, cancel := s.withTimeout(ctx, s.waitTimeout)
	defer cancel()

	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, sel)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, errs.Wrap(errs.KindNavigation, "element count failed", err)
	}
	return count, nil
}

// ClickIfPresent clicks the first visible element matching sel via JS.
// Reports whether anything was clicked; a missing element is not an
// error.
func (s *Session) ClickIfPresent(ctx context.Context, sel string) (bool, error) {
	runCtx, cancel := s.withTimeout(ctx, s.waitTimeout)
	defer cancel()

	var clicked bool
	expr := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el || el.disabled || el.offsetParent === null) { return false; }
		el.click();
		return true;
	})()`, sel)

	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, errs.Wrap(errs.KindNavigation,
			fmt.Sprintf("click on %q failed", sel), err)
	}
	return clicked, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocatorCancel != nil {
			s.allocatorCancel()
		}
	})
}

// withTimeout merges the caller's context with the session's browser
// context so cancellation from either side stops the operation.
func (s *Session) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancelTimeout := context.WithTimeout(s.ctx, d)
	stop := context.AfterFunc(ctx, cancelTimeout)
	return runCtx, func() {
		stop()
		cancelTimeout()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
