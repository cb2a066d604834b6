package parser

import (
	"net/url"
	"strings"

	"github.com/aluiziolira/leadscout/models"
)

// Opportunity notes attached to each lead.
const (
	NoteNoSite      = "no own site"
	NotePoorSite    = "generic/amateur site — upgrade opportunity"
	NoteNoSocial    = "no social presence"
	NoteComplete    = "presence appears complete"
	NotesSeparator  = " | "
	legacyNoSiteTag = "sem site"
)

// aggregatorHosts are link-in-bio and free-builder services that stand in for a real site.
var aggregatorHosts = []string{
	"linktr.ee",
	"linktree.com",
	"bio.link",
	"meulink.com",
	"beacons.ai",
	"sites.google.com",
}

// Presence is the classifier verdict for one lead.
type Presence struct {
	Quality models.WebsiteQuality
	Notes   string
}

// WebsiteQuality tags a website value as none, poor or good.
func WebsiteQuality(website string) models.WebsiteQuality {
	lower := strings.ToLower(strings.TrimSpace(website))
	if lower == "" || strings.Contains(lower, models.NoSite) || strings.Contains(lower, legacyNoSiteTag) {
		return models.QualityNone
	}
	if isAggregator(lower) {
		return models.QualityPoor
	}
	return models.QualityGood
}

// ClassifyPresence derives the quality tag and the opportunity note.
// The website problem always precedes the social one in the note.
func ClassifyPresence(website, social string) Presence {
	quality := WebsiteQuality(website)

	var problems []string
	switch quality {
	case models.QualityNone:
		problems = append(problems, NoteNoSite)
	case models.QualityPoor:
		problems = append(problems, NotePoorSite)
	}
	if strings.TrimSpace(social) == "" || social == models.NotFound {
		problems = append(problems, NoteNoSocial)
	}

	notes := NoteComplete
	if len(problems) > 0 {
		notes = strings.Join(problems, NotesSeparator)
	}
	return Presence{Quality: quality, Notes: notes}
}

func isAggregator(website string) bool {
	host := hostOf(website)
	if host == "" {
		for _, candidate := range aggregatorHosts {
			if strings.Contains(website, candidate) {
				return true
			}
		}
		return false
	}
	for _, candidate := range aggregatorHosts {
		if host == candidate || strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

// hostOf returns the lowercase host of a URL, tolerating a missing scheme.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
