// Package snapshot reads listings from archived result and detail pages served
// over HTTP, such as a saved copy of a map-service search.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/extract"
	"github.com/aluiziolira/leadscout/page"
	"github.com/aluiziolira/leadscout/scraper"
)

const (
	feedSelector    = `div[role="feed"], div[role="article"]`
	listingSelector = `div[role="article"]`

	defaultMaxRetries   = 2
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

var errNoFeed = errors.New("snapshot: no result feed on page")

// Navigator implements scraper.Navigator over static pages fetched with colly.
type Navigator struct {
	collector    *colly.Collector
	maxRetries   int
	retryBackoff time.Duration

	results  *page.Document
	listings []string
}

// New builds a navigator using cfg's user agent and results timeout.
func New(cfg *config.Config) *Navigator {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.ResultsTimeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ResultsTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Navigator{
		collector:    collector,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
}

// Open fetches the results page.
func (n *Navigator) Open(ctx context.Context, rawURL string) error {
	doc, err := n.fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	n.results = doc
	n.listings = nil
	return nil
}

// WaitResults checks the results page actually holds a feed. Static pages
// are complete once fetched, so there is nothing to wait for.
func (n *Navigator) WaitResults(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.results == nil {
		return fmt.Errorf("snapshot: results page not opened")
	}
	if n.results.Selection().Find(feedSelector).Length() == 0 {
		return errNoFeed
	}
	n.listings = n.collectListings()
	return nil
}

// LoadMore is a no-op; every card of an archived page is already present.
func (n *Navigator) LoadMore(ctx context.Context, _ int) error {
	return ctx.Err()
}

// ListingCount reports the cards that link to a detail page.
func (n *Navigator) ListingCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(n.listings), nil
}

// OpenListing fetches the detail page of card index.
func (n *Navigator) OpenListing(ctx context.Context, index int, timeout time.Duration) (extract.PageReader, error) {
	if index < 0 || index >= len(n.listings) {
		return nil, fmt.Errorf("snapshot: listing %d out of range (%d cards)", index, len(n.listings))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return n.fetch(ctx, n.listings[index])
}

// Close has nothing to release.
func (n *Navigator) Close() error {
	return nil
}

func (n *Navigator) collectListings() []string {
	base, _ := url.Parse(n.results.URL())
	var out []string
	n.results.Selection().Find(listingSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		out = append(out, ref.String())
	})
	return out
}

// fetch downloads and parses rawURL, retrying throttled or unreachable
// fetches with exponential backoff.
func (n *Navigator) fetch(ctx context.Context, rawURL string) (*page.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff(attempt)
			slog.Debug("retrying snapshot fetch",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		doc, err := n.fetchOnce(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (n *Navigator) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := n.retryBackoff
	if base <= 0 {
		base = defaultRetryBackoff
	}
	delay := base * time.Duration(1<<(attempt-1))
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}

func retryable(err error) bool {
	var (
		rateLimited scraper.ErrRateLimited
		conn        scraper.ErrConnection
		timeout     scraper.ErrTimeout
	)
	return errors.As(err, &rateLimited) || errors.As(err, &conn) || errors.As(err, &timeout)
}

type fetchResult struct {
	doc *page.Document
	err error
}

// fetchOnce runs a single colly visit. Colly has no context support, so the
// visit runs aside and ctx only bounds how long we wait for it.
func (n *Navigator) fetchOnce(ctx context.Context, rawURL string) (*page.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := n.collector.Clone()
	var (
		body   []byte
		status int
		final  = rawURL
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
		final = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	done := make(chan fetchResult, 1)
	go func() {
		if err := c.Visit(rawURL); err != nil {
			done <- fetchResult{err: scraper.ClassifyError(err, status)}
			return
		}
		if status >= http.StatusBadRequest {
			done <- fetchResult{err: scraper.ClassifyError(nil, status)}
			return
		}
		doc, err := page.Parse(final, body)
		done <- fetchResult{doc: doc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, scraper.ErrTimeout{Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, res.err)
		}
		return res.doc, nil
	}
}
