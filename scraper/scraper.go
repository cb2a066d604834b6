// Package scraper runs a prospecting batch: it walks the listings a Navigator
// exposes, extracts each one and feeds the resulting leads to a pipeline.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/extract"
	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/parser"
	"github.com/aluiziolira/leadscout/pipeline"
)

// Navigator drives the map service's result list.
type Navigator interface {
	// Open loads the search page.
	Open(ctx context.Context, url string) error
	// WaitResults blocks until the result feed is visible.
	WaitResults(ctx context.Context, timeout time.Duration) error
	// LoadMore scrolls the feed so further cards load.
	LoadMore(ctx context.Context, rounds int) error
	// ListingCount reports how many cards are currently visible.
	ListingCount(ctx context.Context) (int, error)
	// OpenListing activates card index and returns its rendered detail view.
	OpenListing(ctx context.Context, index int, timeout time.Duration) (extract.PageReader, error)
	Close() error
}

// Scraper processes listings one at a time, in feed order.
type Scraper struct {
	cfg       *config.Config
	nav       Navigator
	extractor *extract.Extractor
	limiter   *rate.Limiter
	Metrics   *Metrics
	now       func() time.Time

	mu           sync.Mutex
	errorsByType map[string]int
	strategyHits map[string]map[string]int
}

// NewScraper builds a scraper reading listings through nav.
func NewScraper(cfg *config.Config, nav Navigator) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if nav == nil {
		return nil, fmt.Errorf("navigator is required")
	}

	limit := rate.Inf
	if cfg.ListingInterval > 0 {
		limit = rate.Every(cfg.ListingInterval)
	}

	return &Scraper{
		cfg:          cfg,
		nav:          nav,
		extractor:    extract.New(),
		limiter:      rate.NewLimiter(limit, 1),
		Metrics:      NewMetrics(),
		now:          time.Now,
		errorsByType: make(map[string]int),
		strategyHits: make(map[string]map[string]int),
	}, nil
}

// BuildSearchURL formats the map-service search for "<niche> em <region>,<state>".
func BuildSearchURL(base string, q models.Query) string {
	term := plusJoin(q.Niche) + "+em+" + plusJoin(q.Region)
	if state := strings.TrimSpace(q.State); state != "" {
		term += "," + plusJoin(state)
	}
	return base + term
}

func plusJoin(s string) string {
	return strings.Join(strings.Fields(s), "+")
}

// Run executes one batch and returns the leads collected by p, in listing
// order. p should serve a single batch.
//
// A result feed that never appears is reported as ErrBatchTimeout with an
// empty result. Cancelling ctx stops the batch between listings; the leads
// gathered so far are returned with Canceled set and a nil error.
func (s *Scraper) Run(ctx context.Context, q models.Query, p *pipeline.Pipeline) (*models.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if strings.TrimSpace(q.Niche) == "" || strings.TrimSpace(q.Region) == "" {
		return nil, fmt.Errorf("query needs a niche and a region")
	}
	if q.MaxRecords <= 0 {
		q.MaxRecords = s.cfg.MaxRecords
	}

	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}

	result := &models.BatchResult{Query: q, StartTime: s.now()}
	finish := func() *models.BatchResult {
		result.EndTime = s.now()
		result.Leads = p.Leads()
		result.ErrorsByType = s.snapshotErrors()
		result.StrategyHits = s.snapshotHits()
		return result
	}

	searchURL := s.searchURL(q)
	slog.Info("opening search",
		slog.String("url", searchURL),
		slog.Int("max_records", q.MaxRecords),
	)
	if err := s.nav.Open(ctx, searchURL); err != nil {
		return s.abort(ctx, finish, fmt.Errorf("open search: %w", err))
	}
	if err := s.nav.WaitResults(ctx, s.cfg.ResultsTimeout); err != nil {
		return s.abort(ctx, finish, fmt.Errorf("wait for results: %w", err))
	}
	if err := s.nav.LoadMore(ctx, s.cfg.FeedScrollRounds); err != nil {
		slog.Warn("load more listings", slog.Any("error", err))
	}

	count, err := s.nav.ListingCount(ctx)
	if err != nil {
		return s.abort(ctx, finish, fmt.Errorf("count listings: %w", err))
	}
	result.Found = count
	total := min(count, q.MaxRecords)
	slog.Info("listings found", slog.Int("found", count), slog.Int("processing", total))

	var stopErr error
	for i := 0; i < total; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			stopErr = err
			break
		}
		result.Attempted++
		skipped, err := s.processListing(ctx, i, q, p)
		if skipped {
			result.Skipped++
		}
		if errors.Is(err, pipeline.ErrPipelineClosed) {
			return finish(), err
		}
		if err != nil {
			stopErr = err
			break
		}
	}
	if stopErr == nil {
		stopErr = ctx.Err()
	}

	if stopErr != nil {
		result.Canceled = true
		s.recordError(stopErr)
		slog.Warn("batch interrupted",
			slog.Int("attempted", result.Attempted),
			slog.Any("error", stopErr),
		)
	}
	return finish(), nil
}

// abort ends a batch that never reached its listings.
func (s *Scraper) abort(ctx context.Context, finish func() *models.BatchResult, err error) (*models.BatchResult, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		res := finish()
		res.Canceled = true
		return res, nil
	}
	batchErr := ErrBatchTimeout{Err: err}
	s.recordError(batchErr)
	slog.Error("batch failed", slog.Any("error", batchErr))
	return finish(), batchErr
}

func (s *Scraper) searchURL(q models.Query) string {
	if s.cfg.Source == config.SourceSnapshot {
		return s.cfg.SnapshotURL
	}
	return BuildSearchURL(s.cfg.SearchBaseURL, q)
}

// processListing reports whether the listing was skipped. A non-nil error
// means the batch must stop.
func (s *Scraper) processListing(ctx context.Context, i int, q models.Query, p *pipeline.Pipeline) (bool, error) {
	start := s.now()
	detail, err := s.nav.OpenListing(ctx, i, s.cfg.DetailTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		renderErr := ErrRenderTimeout{Listing: i, Err: err}
		s.recordError(renderErr)
		s.Metrics.IncListing("failed")
		slog.Warn("skipping listing", slog.Int("listing", i), slog.Any("error", renderErr))
		return true, nil
	}
	s.Metrics.ObserveRender(s.now().Sub(start))

	fields, err := s.extractor.Extract(ctx, i, detail)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		unusable := ErrListingUnusable{Listing: i, Err: err}
		s.recordError(unusable)
		s.Metrics.IncListing("skipped")
		slog.Warn("skipping listing", slog.Int("listing", i), slog.Any("error", unusable))
		return true, nil
	}
	s.recordHits(fields.Attempts)

	lead := s.buildLead(i, q, detail.URL(), fields)
	if err := p.Process(lead); err != nil {
		if errors.Is(err, pipeline.ErrDuplicateLead) || errors.Is(err, pipeline.ErrInvalidLead) {
			s.recordError(err)
			s.Metrics.IncListing("skipped")
			slog.Warn("skipping listing",
				slog.Int("listing", i),
				slog.String("company", lead.CompanyName),
				slog.Any("error", err),
			)
			return true, nil
		}
		return false, err
	}
	s.Metrics.IncLeads()
	s.Metrics.IncListing("lead")
	slog.Info("lead extracted",
		slog.Int("listing", i),
		slog.String("company", lead.CompanyName),
		slog.String("quality", string(lead.WebsiteQuality)),
	)
	return false, nil
}

func (s *Scraper) buildLead(i int, q models.Query, source string, fields extract.Fields) *models.Lead {
	presence := parser.ClassifyPresence(fields.Website, fields.Social)

	whatsapp, ok := parser.NormalizePhone(fields.Phone)
	if !ok {
		slog.Debug("phone not dialable",
			slog.Int("listing", i),
			slog.String("field", extract.FieldPhone),
			slog.String("phone", parser.Unobtainable),
		)
	}

	return &models.Lead{
		CompanyName:    parser.CleanText(fields.Name),
		Niche:          q.Niche,
		Territory:      q.Region,
		Website:        fields.Website,
		Phone:          fields.Phone,
		WhatsApp:       whatsapp,
		Instagram:      fields.Social,
		GoogleMaps:     source,
		WebsiteQuality: presence.Quality,
		Notes:          presence.Notes,
		ScrapedAt:      s.now(),
	}
}

func (s *Scraper) recordError(err error) {
	label := errorTypeLabel(err)
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
	s.Metrics.IncError(label)
}

func (s *Scraper) recordHits(attempts []extract.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attempts {
		if !a.Found {
			continue
		}
		byStrategy, ok := s.strategyHits[a.Field]
		if !ok {
			byStrategy = make(map[string]int)
			s.strategyHits[a.Field] = byStrategy
		}
		byStrategy[a.Strategy]++
		s.Metrics.IncStrategyHit(a.Field, a.Strategy)
	}
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func (s *Scraper) snapshotHits() map[string]map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]int, len(s.strategyHits))
	for field, byStrategy := range s.strategyHits {
		inner := make(map[string]int, len(byStrategy))
		for k, v := range byStrategy {
			inner[k] = v
		}
		out[field] = inner
	}
	return out
}
