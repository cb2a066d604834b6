// Package extract pulls contact fields out of a rendered listing page using
// ordered fallback strategies per field.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/leadscout/models"
)

var (
	// ErrNoMatch is returned by a strategy that found nothing usable.
	ErrNoMatch = errors.New("extract: no match")
	// ErrNoName means every name strategy missed; the listing cannot become a lead.
	ErrNoName = errors.New("extract: no company name")
)

// Element is a node on the page.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	Query(ctx context.Context, selector string) ([]Element, error)
}

// PageReader exposes the rendered detail view of one listing.
type PageReader interface {
	Query(ctx context.Context, selector string) ([]Element, error)
	// Scroll moves the detail panel to its end and back so lazy sections render.
	Scroll(ctx context.Context) error
	URL() string
}

// Strategy is one way of finding a field's value.
type Strategy struct {
	Name string
	Find func(ctx context.Context, page PageReader) (string, error)
}

// Chain tries its strategies in order and keeps the first value found.
type Chain struct {
	Field      string
	Strategies []Strategy
	Fallback   string
}

// Miss records why a strategy produced nothing.
type Miss struct {
	Strategy string
	Err      error
}

// Attempt is the outcome of resolving one field.
type Attempt struct {
	Field    string
	Value    string
	Strategy string
	Found    bool
	Misses   []Miss
}

// Resolve runs the chain against page. It never fails: when every strategy
// misses, the attempt carries the chain's fallback value.
func (c Chain) Resolve(ctx context.Context, listing int, page PageReader) Attempt {
	attempt := Attempt{Field: c.Field, Value: c.Fallback}
	for _, s := range c.Strategies {
		if ctx.Err() != nil {
			attempt.Misses = append(attempt.Misses, Miss{Strategy: s.Name, Err: ctx.Err()})
			break
		}
		value, err := runStrategy(ctx, s, page)
		if err != nil {
			attempt.Misses = append(attempt.Misses, Miss{Strategy: s.Name, Err: err})
			if !errors.Is(err, ErrNoMatch) {
				slog.Debug("extraction strategy failed",
					slog.Int("listing", listing),
					slog.String("field", c.Field),
					slog.String("strategy", s.Name),
					slog.Any("error", err),
				)
			}
			continue
		}
		attempt.Value = value
		attempt.Strategy = s.Name
		attempt.Found = true
		return attempt
	}
	return attempt
}

func runStrategy(ctx context.Context, s Strategy, page PageReader) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()

	value, err = s.Find(ctx, page)
	if err != nil {
		return "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNoMatch
	}
	return value, nil
}

// Fields is the best-effort extraction of one listing.
type Fields struct {
	Name     string
	Phone    string
	Website  string
	Social   string
	Attempts []Attempt
}

// Extractor resolves the four lead fields of a listing page.
type Extractor struct {
	Name    Chain
	Phone   Chain
	Website Chain
	Social  Chain
}

// New returns an extractor wired with the map-service strategy chains.
func New() *Extractor {
	return &Extractor{
		Name:    NameChain(),
		Phone:   PhoneChain(),
		Website: WebsiteChain(),
		Social:  SocialChain(),
	}
}

// Extract reads a listing. The name is resolved first; without one the
// listing is unusable and ErrNoName is returned before the panel is scrolled.
func (e *Extractor) Extract(ctx context.Context, listing int, page PageReader) (Fields, error) {
	var fields Fields

	name := e.Name.Resolve(ctx, listing, page)
	fields.Attempts = append(fields.Attempts, name)
	if !name.Found {
		return fields, ErrNoName
	}
	fields.Name = name.Value

	if err := page.Scroll(ctx); err != nil {
		slog.Warn("scroll detail panel",
			slog.Int("listing", listing),
			slog.Any("error", err),
		)
	}

	website := e.Website.Resolve(ctx, listing, page)
	phone := e.Phone.Resolve(ctx, listing, page)
	social := e.Social.Resolve(ctx, listing, page)
	fields.Attempts = append(fields.Attempts, website, phone, social)

	fields.Website = website.Value
	fields.Phone = phone.Value
	fields.Social = social.Value
	return fields, nil
}

// Field names used in attempts, logs and metrics.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldWebsite = "website"
	FieldSocial  = "social"
)

// NameChain builds the company-name chain. It has no fallback value.
func NameChain() Chain {
	return Chain{
		Field: FieldName,
		Strategies: []Strategy{
			{Name: "detail_heading", Find: detailHeading},
			{Name: "active_card_title", Find: activeCardTitle},
			{Name: "any_heading", Find: anyHeading},
		},
	}
}

// PhoneChain builds the raw phone chain.
func PhoneChain() Chain {
	return Chain{
		Field: FieldPhone,
		Strategies: []Strategy{
			{Name: "phone_item_id", Find: phoneItemID},
			{Name: "tel_link", Find: telLink},
			{Name: "text_pattern", Find: phoneInText},
		},
		Fallback: models.NotFound,
	}
}

// WebsiteChain builds the website chain.
func WebsiteChain() Chain {
	return Chain{
		Field: FieldWebsite,
		Strategies: []Strategy{
			{Name: "authority_item_id", Find: authorityLink},
			{Name: "site_label", Find: siteLabelLink},
			{Name: "outbound_link", Find: outboundLink},
		},
		Fallback: models.NoSite,
	}
}

// SocialChain builds the Instagram chain.
func SocialChain() Chain {
	return Chain{
		Field: FieldSocial,
		Strategies: []Strategy{
			{Name: "instagram_href", Find: instagramHref},
			{Name: "instagram_label", Find: instagramLabel},
		},
		Fallback: models.NotFound,
	}
}
