// Package linkcheck probes the liveness of links collected from article
// bodies and classifies each outcome.
package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pybitesdata/blogpipe/internal/blog"
)

var absoluteHTTP = regexp.MustCompile(`^https?://`)

// DefaultTimeout is the per-request probe budget.
const DefaultTimeout = 30 * time.Second

// DefaultConcurrency bounds how many probes are in flight at once.
const DefaultConcurrency = 16

// Checker classifies links by probing them over HTTP. One hanging request
// never blocks the batch (per-request timeout becomes a classified result)
// and one malformed URL never aborts it (classified as parse_error).
type Checker struct {
	client      *http.Client
	timeout     time.Duration
	concurrency int64
	logger      *zap.Logger
}

// New builds a Checker. Zero values fall back to the defaults.
func New(timeout time.Duration, concurrency int, logger *zap.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		timeout:     timeout,
		concurrency: int64(concurrency),
		logger:      logger,
	}
}

// timeoutResult is the distinguished non-error outcome for a hung probe.
func (c *Checker) timeoutResult() string {
	return fmt.Sprintf("timeout %d sec", int(c.timeout.Seconds()))
}

// Classify determines the status of one link belonging to the article at
// articleURL. Fragment-only and mailto links classify without a network
// call; everything else is probed, resolved against the article URL when
// relative. Classify never returns an error: bad input is a parse_error.
func (c *Checker) Classify(ctx context.Context, articleURL, link string) string {
	link = strings.TrimSpace(link)
	switch {
	case link == "":
		return blog.LinkParseError
	case strings.HasPrefix(link, "#"):
		return blog.LinkInternalWorking
	case strings.HasPrefix(link, "mailto:"):
		return blog.LinkMail
	case absoluteHTTP.MatchString(link):
		return c.probe(ctx, link, blog.LinkExternalWorking, blog.LinkExternalBroken)
	}

	base, err := url.Parse(articleURL)
	if err != nil {
		return blog.LinkParseError
	}
	ref, err := url.Parse(link)
	if err != nil {
		return blog.LinkParseError
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return blog.LinkParseError
	}
	return c.probe(ctx, resolved.String(), blog.LinkInternalWorking, blog.LinkInternalBroken)
}

func (c *Checker) probe(ctx context.Context, target, working, broken string) string {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return blog.LinkParseError
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return c.timeoutResult()
		}
		return broken
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return working
	}
	return broken
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CheckAll probes every content link with bounded concurrency. Results are
// positioned by their originating row, not by completion order, so the
// output lines up with the input regardless of scheduling.
func (c *Checker) CheckAll(ctx context.Context, links []blog.ContentLinkRow) []blog.LinkStatusRow {
	results := make([]blog.LinkStatusRow, len(links))
	sem := semaphore.NewWeighted(c.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, row := range links {
		if err := sem.Acquire(gctx, 1); err != nil {
			// Context gone; classify the remainder as timeouts.
			for j := i; j < len(links); j++ {
				results[j] = statusRow(links[j], c.timeoutResult())
			}
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			status := c.Classify(gctx, row.URL, row.Link)
			if status == blog.LinkParseError {
				c.logger.Warn("Unparseable link",
					zap.String("article", row.URL),
					zap.String("link", row.Link))
			}
			results[i] = statusRow(row, status)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("Probed content links", zap.Int("links", len(links)))
	return results
}

func statusRow(row blog.ContentLinkRow, status string) blog.LinkStatusRow {
	return blog.LinkStatusRow{
		RowID:        row.RowID,
		URL:          row.URL,
		Link:         row.Link,
		Status:       status,
		DateModified: row.DateModified,
	}
}
