package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrInvalidLead wraps the validation failure of a dropped lead.
	ErrInvalidLead = errors.New("pipeline: invalid lead")
	// ErrDuplicateLead is returned for a listing already collected in this batch.
	ErrDuplicateLead = errors.New("pipeline: duplicate lead")
)

// RecordSink persists a batch of leads.
type RecordSink interface {
	Name() string
	Append(ctx context.Context, leads []*models.Lead) error
	Close() error
}

// Pipeline collects validated, de-duplicated leads in arrival order and hands
// them to the sink when flushed.
type Pipeline struct {
	sink RecordSink
	seen *lru.Cache[string, struct{}]

	mu      sync.Mutex // guards leads/flushed/closed
	leads   []*models.Lead
	flushed int
	closed  bool

	metrics metrics

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to sink.
func NewPipeline(sink RecordSink, cfg *config.Config) (*Pipeline, error) {
	size := cfg.DedupeMaxSize
	if size <= 0 {
		size = 1
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &Pipeline{
		sink:     sink,
		seen:     seen,
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}, nil
}

// Process validates a lead and appends it. Invalid and repeated listings are
// counted and dropped with ErrInvalidLead or ErrDuplicateLead; the batch can
// carry on after either.
func (p *Pipeline) Process(lead *models.Lead) error {
	if lead == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}

	if err := parser.ValidateLead(lead); err != nil {
		p.metrics.addValidation("invalid_record")
		return fmt.Errorf("%w: %w", ErrInvalidLead, err)
	}

	if key := dedupeKey(lead); key != "" {
		if ok, _ := p.seen.ContainsOrAdd(key, struct{}{}); ok {
			p.metrics.addValidation("duplicate_url")
			return fmt.Errorf("%w: %s", ErrDuplicateLead, lead.CompanyName)
		}
	}

	p.leads = append(p.leads, lead)
	p.metrics.incrementProcessed()
	return nil
}

// dedupeKey pairs the listing URL with the company, so two companies that
// report the same URL are both kept.
func dedupeKey(lead *models.Lead) string {
	if lead.GoogleMaps == "" {
		return ""
	}
	return lead.GoogleMaps + "\x00" + strings.ToLower(lead.Key())
}

// Leads returns the collected leads in order.
func (p *Pipeline) Leads() []*models.Lead {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Lead, len(p.leads))
	copy(out, p.leads)
	return out
}

// Flush appends every lead not yet written to the sink. A failed flush leaves
// the collected leads intact so it can be retried.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := make([]*models.Lead, len(p.leads)-p.flushed)
	copy(pending, p.leads[p.flushed:])
	p.mu.Unlock()

	if len(pending) == 0 || p.sink == nil {
		return nil
	}

	if err := p.sink.Append(ctx, pending); err != nil {
		var sinkErr ErrSink
		if errors.As(err, &sinkErr) {
			return err
		}
		return ErrSink{Sink: p.sink.Name(), Err: err}
	}

	p.mu.Lock()
	p.flushed += len(pending)
	p.mu.Unlock()
	p.metrics.addExported(len(pending))
	return nil
}

// Close prevents further submissions and stops progress reporting.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", metrics["processed_leads"].(int64)),
					slog.Int("validation_errors", len(metrics["validation_errors"].(map[string]int))),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	exported   int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addExported(n int) {
	m.mu.Lock()
	m.exported += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_leads":   m.processed,
		"exported_leads":    m.exported,
		"validation_errors": copyValidation,
	}
}
