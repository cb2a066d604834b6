package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/models"
)

type mockSink struct {
	mu      sync.Mutex
	batches [][]*models.Lead
	err     error
	closed  bool
}

func (ms *mockSink) Name() string { return "mock" }

func (ms *mockSink) Append(_ context.Context, leads []*models.Lead) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return ms.err
	}
	copyBatch := make([]*models.Lead, len(leads))
	copy(copyBatch, leads)
	ms.batches = append(ms.batches, copyBatch)
	return nil
}

func (ms *mockSink) Close() error {
	ms.mu.Lock()
	ms.closed = true
	ms.mu.Unlock()
	return nil
}

func (ms *mockSink) totalWritten() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	total := 0
	for _, batch := range ms.batches {
		total += len(batch)
	}
	return total
}

func newLead(name, mapsURL string) *models.Lead {
	return &models.Lead{
		CompanyName:    name,
		Niche:          "Clínica Odontológica",
		Territory:      "Belém",
		Website:        models.NoSite,
		Phone:          models.NotFound,
		Instagram:      models.NotFound,
		GoogleMaps:     mapsURL,
		WebsiteQuality: models.QualityNone,
		Notes:          "no own site | no social presence",
		ScrapedAt:      time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
}

func newTestPipeline(t *testing.T, sink RecordSink) *Pipeline {
	t.Helper()
	p, err := NewPipeline(sink, config.DefaultConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPipelineProcessValidationAndDedup(t *testing.T) {
	sink := &mockSink{}
	p := newTestPipeline(t, sink)

	valid := newLead("Clínica Sorriso", "https://maps.test/place/1")
	invalid := newLead("", "https://maps.test/place/2")
	duplicate := newLead("Clínica Sorriso", "https://maps.test/place/1")

	if err := p.Process(valid); err != nil {
		t.Fatalf("process valid: %v", err)
	}
	if err := p.Process(invalid); !errors.Is(err, ErrInvalidLead) {
		t.Fatalf("process invalid = %v, want ErrInvalidLead", err)
	}
	if err := p.Process(duplicate); !errors.Is(err, ErrDuplicateLead) {
		t.Fatalf("process duplicate = %v, want ErrDuplicateLead", err)
	}
	if err := p.Process(nil); err != nil {
		t.Fatalf("process nil: %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := sink.totalWritten(); got != 1 {
		t.Fatalf("written leads = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] == 0 {
		t.Fatalf("expected invalid_record validation error")
	}
	if validation["duplicate_url"] == 0 {
		t.Fatalf("expected duplicate_url validation error")
	}
	if exported := metrics["exported_leads"].(int64); exported != 1 {
		t.Fatalf("exported_leads = %d, want 1", exported)
	}
}

func TestPipelineKeepsDistinctCompaniesSharingURL(t *testing.T) {
	p := newTestPipeline(t, &mockSink{})

	for _, name := range []string{"Alfa Odonto", "Beta Sorrisos"} {
		if err := p.Process(newLead(name, "https://maps.test/place/shared")); err != nil {
			t.Fatalf("process %s: %v", name, err)
		}
	}

	leads := p.Leads()
	if len(leads) != 2 || leads[0].CompanyName != "Alfa Odonto" || leads[1].CompanyName != "Beta Sorrisos" {
		t.Fatalf("leads = %v, want both companies", leads)
	}
}

func TestPipelineKeepsArrivalOrder(t *testing.T) {
	p := newTestPipeline(t, &mockSink{})

	for i := 0; i < 10; i++ {
		lead := newLead("Empresa "+strconv.Itoa(i), "https://maps.test/place/"+strconv.Itoa(i))
		if err := p.Process(lead); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	leads := p.Leads()
	if len(leads) != 10 {
		t.Fatalf("leads = %d, want 10", len(leads))
	}
	for i, lead := range leads {
		if want := "Empresa " + strconv.Itoa(i); lead.CompanyName != want {
			t.Fatalf("leads[%d] = %q, want %q", i, lead.CompanyName, want)
		}
	}
}

func TestPipelineFlushOnlySendsPending(t *testing.T) {
	sink := &mockSink{}
	p := newTestPipeline(t, sink)

	_ = p.Process(newLead("A", "https://maps.test/a"))
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	_ = p.Process(newLead("B", "https://maps.test/b"))
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(sink.batches) != 2 || len(sink.batches[0]) != 1 || len(sink.batches[1]) != 1 {
		t.Fatalf("unexpected batches: %v", sink.batches)
	}
}

func TestPipelineSinkFailureKeepsLeads(t *testing.T) {
	sink := &mockSink{err: errors.New("permission denied")}
	p := newTestPipeline(t, sink)

	_ = p.Process(newLead("A", "https://maps.test/a"))
	_ = p.Process(newLead("B", "https://maps.test/b"))

	err := p.Flush(context.Background())
	var sinkErr ErrSink
	if !errors.As(err, &sinkErr) || sinkErr.Sink != "mock" {
		t.Fatalf("flush error = %v, want ErrSink from mock", err)
	}
	if got := len(p.Leads()); got != 2 {
		t.Fatalf("leads after failed flush = %d, want 2", got)
	}

	sink.err = nil
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if got := sink.totalWritten(); got != 2 {
		t.Fatalf("written after retry = %d, want 2", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := newTestPipeline(t, &mockSink{})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(newLead("A", "https://maps.test/a")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestMergeLeadsLastWriteWins(t *testing.T) {
	oldA := newLead("Clínica Sorriso", "https://maps.test/old")
	oldB := newLead("Odonto Center", "https://maps.test/b")
	newA := newLead("Clínica Sorriso ", "https://maps.test/new")
	newC := newLead("Dr. Dente", "https://maps.test/c")

	merged := MergeLeads([]*models.Lead{oldA, oldB}, []*models.Lead{newA, newC})

	if len(merged) != 3 {
		t.Fatalf("merged = %d, want 3", len(merged))
	}
	if merged[0] != oldB || merged[1] != newA || merged[2] != newC {
		t.Fatalf("unexpected order: %q, %q, %q", merged[0].CompanyName, merged[1].CompanyName, merged[2].CompanyName)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &mockSink{}, &mockSink{}
	ms, err := NewMultiSink(a, b)
	if err != nil {
		t.Fatalf("new multi sink: %v", err)
	}

	if err := ms.Append(context.Background(), []*models.Lead{newLead("A", "u")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if a.totalWritten() != 1 || b.totalWritten() != 1 {
		t.Fatalf("fan out failed: a=%d b=%d", a.totalWritten(), b.totalWritten())
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("sinks not closed")
	}
}

func TestMultiSinkReportsFailingSink(t *testing.T) {
	ok := &mockSink{}
	failing := &namedSink{mockSink: mockSink{err: errors.New("quota exceeded")}, name: "firestore"}
	ms, err := NewMultiSink(ok, failing)
	if err != nil {
		t.Fatalf("new multi sink: %v", err)
	}

	err = ms.Append(context.Background(), []*models.Lead{newLead("A", "u")})
	var sinkErr ErrSink
	if !errors.As(err, &sinkErr) || sinkErr.Sink != "firestore" {
		t.Fatalf("append error = %v, want ErrSink from firestore", err)
	}
}

type namedSink struct {
	mockSink
	name string
}

func (ns *namedSink) Name() string { return ns.name }

// slowSink only persists when its ctx is still alive after a short write.
type slowSink struct {
	mockSink
}

func (ss *slowSink) Name() string { return "sqlite" }

func (ss *slowSink) Append(ctx context.Context, leads []*models.Lead) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return ss.mockSink.Append(ctx, leads)
}

func TestMultiSinkFailureDoesNotAbortOtherSinks(t *testing.T) {
	slow := &slowSink{}
	failing := &namedSink{mockSink: mockSink{err: errors.New("lock held")}, name: "json"}
	ms, err := NewMultiSink(failing, slow)
	if err != nil {
		t.Fatalf("new multi sink: %v", err)
	}

	err = ms.Append(context.Background(), []*models.Lead{newLead("A", "u")})
	var sinkErr ErrSink
	if !errors.As(err, &sinkErr) || sinkErr.Sink != "json" {
		t.Fatalf("append error = %v, want ErrSink from json", err)
	}
	if got := slow.totalWritten(); got != 1 {
		t.Fatalf("slow sink wrote %d leads, want 1", got)
	}
}

func TestNewMultiSinkRequiresSinks(t *testing.T) {
	if _, err := NewMultiSink(); err == nil {
		t.Fatalf("expected error for empty multi sink")
	}
}
