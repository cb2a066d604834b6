package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const minHeadingRunes = 4

var (
	phonePattern = regexp.MustCompile(`\(?\d{2}\)?\s*\d{4,5}-?\d{4}`)

	// headings the map service shows while no place is open
	placeholderHeadings = []string{
		"resultados",
		"resultados da pesquisa",
		"results",
		"search results",
	}

	socialHosts = []string{
		"instagram.com",
		"facebook.com",
		"twitter.com",
		"x.com",
		"linkedin.com",
		"tiktok.com",
	}
)

func detailHeading(ctx context.Context, page PageReader) (string, error) {
	text, err := firstText(ctx, page, `div[role="main"] h1`)
	if err != nil {
		return "", err
	}
	if isPlaceholder(text) {
		return "", ErrNoMatch
	}
	return text, nil
}

func activeCardTitle(ctx context.Context, page PageReader) (string, error) {
	cards, err := page.Query(ctx, `div[role="article"][aria-selected="true"]`)
	if err != nil {
		return "", err
	}
	if len(cards) == 0 {
		return "", ErrNoMatch
	}
	titles, err := cards[0].Query(ctx, `div[class*="fontHeadlineSmall"]`)
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", ErrNoMatch
	}
	return titles[0].Text(ctx)
}

func anyHeading(ctx context.Context, page PageReader) (string, error) {
	headings, err := page.Query(ctx, "h1")
	if err != nil {
		return "", err
	}
	for _, h := range headings {
		text, err := h.Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || isPlaceholder(text) || utf8.RuneCountInString(text) < minHeadingRunes {
			continue
		}
		return text, nil
	}
	return "", ErrNoMatch
}

func phoneItemID(ctx context.Context, page PageReader) (string, error) {
	buttons, err := page.Query(ctx, `button[data-item-id*="phone"]`)
	if err != nil {
		return "", err
	}
	for _, b := range buttons {
		id, ok, err := b.Attr(ctx, "data-item-id")
		if err != nil || !ok {
			continue
		}
		_, number, found := strings.Cut(id, "phone:tel:")
		if !found {
			continue
		}
		if number = strings.TrimSpace(number); number != "" {
			return number, nil
		}
	}
	return "", ErrNoMatch
}

func telLink(ctx context.Context, page PageReader) (string, error) {
	links, err := page.Query(ctx, `a[href^="tel:"]`)
	if err != nil {
		return "", err
	}
	for _, l := range links {
		href, ok, err := l.Attr(ctx, "href")
		if err != nil || !ok {
			continue
		}
		if number := strings.TrimSpace(strings.TrimPrefix(href, "tel:")); number != "" {
			return number, nil
		}
	}
	return "", ErrNoMatch
}

func phoneInText(ctx context.Context, page PageReader) (string, error) {
	blocks, err := page.Query(ctx, `div[class*="fontBody"]`)
	if err != nil {
		return "", err
	}
	for _, b := range blocks {
		text, err := b.Text(ctx)
		if err != nil {
			continue
		}
		if match := phonePattern.FindString(text); match != "" {
			return match, nil
		}
	}
	return "", ErrNoMatch
}

func authorityLink(ctx context.Context, page PageReader) (string, error) {
	return firstHref(ctx, page, `a[data-item-id="authority"]`)
}

func siteLabelLink(ctx context.Context, page PageReader) (string, error) {
	return firstHref(ctx, page, `a[aria-label*="Site"]`)
}

func outboundLink(ctx context.Context, page PageReader) (string, error) {
	links, err := page.Query(ctx, `a[href^="http"]`)
	if err != nil {
		return "", err
	}
	for _, l := range links {
		href, ok, err := l.Attr(ctx, "href")
		if err != nil || !ok || href == "" {
			continue
		}
		if isMapServiceURL(href) || isSocialURL(href) {
			continue
		}
		return href, nil
	}
	return "", ErrNoMatch
}

func instagramHref(ctx context.Context, page PageReader) (string, error) {
	return firstHref(ctx, page, `a[href*="instagram.com"]`)
}

func instagramLabel(ctx context.Context, page PageReader) (string, error) {
	return firstHref(ctx, page, `a[aria-label*="Instagram"]`)
}

func firstText(ctx context.Context, page PageReader, selector string) (string, error) {
	els, err := page.Query(ctx, selector)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", ErrNoMatch
	}
	return els[0].Text(ctx)
}

func firstHref(ctx context.Context, page PageReader, selector string) (string, error) {
	els, err := page.Query(ctx, selector)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", ErrNoMatch
	}
	href, ok, err := els[0].Attr(ctx, "href")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoMatch
	}
	return href, nil
}

// isPlaceholder matches whole headings only, so names such as
// "Instituto de Pesquisa" survive.
func isPlaceholder(text string) bool {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, p := range placeholderHeadings {
		if lower == p {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isMapServiceURL(raw string) bool {
	host := hostOf(raw)
	if host == "" {
		return strings.Contains(raw, "google.com") || strings.Contains(raw, "gstatic.com")
	}
	if hostMatches(host, "gstatic.com") || hostMatches(host, "googleusercontent.com") {
		return true
	}
	// google.com, google.com.br, maps.google.co.uk, ...
	labels := strings.Split(host, ".")
	for _, label := range labels[:len(labels)-1] {
		if label == "google" {
			return true
		}
	}
	return false
}

func isSocialURL(raw string) bool {
	host := hostOf(raw)
	for _, domain := range socialHosts {
		if host == "" {
			if strings.Contains(raw, domain) {
				return true
			}
			continue
		}
		if hostMatches(host, domain) {
			return true
		}
	}
	return false
}
