package page

import (
	"context"
	"errors"
	"testing"
)

const card = `<div role="article" aria-selected="true">
  <div class="fontHeadlineSmall"> Clínica  Sorriso </div>
  <a href="https://www.google.com/maps/place/sorriso" aria-label="Clínica Sorriso">open</a>
</div>`

func TestDocumentQuery(t *testing.T) {
	doc, err := FromString("https://maps.test/place/1", card)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := context.Background()

	cards, err := doc.Query(ctx, `div[role="article"]`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(cards))
	}

	titles, err := cards[0].Query(ctx, `div[class*="fontHeadlineSmall"]`)
	if err != nil || len(titles) != 1 {
		t.Fatalf("nested query = %d, %v", len(titles), err)
	}
	text, err := titles[0].Text(ctx)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if text != "Clínica  Sorriso" {
		t.Fatalf("text = %q", text)
	}

	links, _ := doc.Query(ctx, "a")
	href, ok, err := links[0].Attr(ctx, "href")
	if err != nil || !ok || href != "https://www.google.com/maps/place/sorriso" {
		t.Fatalf("href = %q, %v, %v", href, ok, err)
	}
	if _, ok, _ := links[0].Attr(ctx, "data-item-id"); ok {
		t.Fatalf("missing attribute reported as present")
	}

	if doc.URL() != "https://maps.test/place/1" {
		t.Fatalf("url = %q", doc.URL())
	}
}

func TestDocumentScrollCounts(t *testing.T) {
	doc, err := Parse("https://maps.test/place/1", []byte(card))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := doc.Scroll(context.Background()); err != nil {
			t.Fatalf("scroll: %v", err)
		}
	}
	if doc.Scrolls() != 2 {
		t.Fatalf("scrolls = %d, want 2", doc.Scrolls())
	}
}

func TestDocumentHonoursCanceledContext(t *testing.T) {
	doc, err := FromString("https://maps.test/place/1", card)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	elements, err := doc.Query(context.Background(), "a")
	if err != nil || len(elements) == 0 {
		t.Fatalf("query: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := doc.Query(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("query error = %v, want context.Canceled", err)
	}
	if err := doc.Scroll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("scroll error = %v, want context.Canceled", err)
	}
	if _, err := elements[0].Text(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("text error = %v, want context.Canceled", err)
	}
	if _, _, err := elements[0].Attr(ctx, "href"); !errors.Is(err, context.Canceled) {
		t.Fatalf("attr error = %v, want context.Canceled", err)
	}
	if doc.Scrolls() != 0 {
		t.Fatalf("canceled scroll should not count")
	}
}
