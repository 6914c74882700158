package materialize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"slidescraper/pkg/errs"
)

// maxImageBytes caps a single download. Slide renders are a few
// hundred KB; anything past this is not a slide.
const maxImageBytes = 32 << 20

// Client fetches image bytes with the headers the CDN expects.
type Client struct {
	http      *http.Client
	userAgent string
	referer   string
}

// NewClient builds a download client. referer should be the site base
// URL; some CDN endpoints reject requests without it.
func NewClient(timeout time.Duration, userAgent, referer string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		referer:   referer,
	}
}

// Fetch downloads url and returns the body bytes and content type.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindDownload, fmt.Sprintf("bad image url %s", url), err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindNetwork, fmt.Sprintf("request to %s failed", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := &errs.Error{
			Kind:    errs.ClassifyStatus(resp.StatusCode),
			Message: fmt.Sprintf("unexpected status fetching %s", url),
			Code:    resp.StatusCode,
		}
		return nil, "", e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", errs.Wrap(errs.KindNetwork, fmt.Sprintf("reading body of %s failed", url), err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
