// Package models defines data structures for the scraper.
package models

import (
	"strings"
	"time"
)

// Sentinels stored in place of fields that could not be extracted.
const (
	NoSite   = "no site"
	NotFound = "not found"
)

// WebsiteQuality tags how usable a lead's web presence is.
type WebsiteQuality string

const (
	QualityGood WebsiteQuality = "good"
	QualityPoor WebsiteQuality = "poor"
	QualityNone WebsiteQuality = "none"
)

// Lead is one business listing extracted from the map service.
type Lead struct {
	CompanyName    string         `csv:"Empresa" json:"companyName"`
	Niche          string         `csv:"Nicho" json:"niche"`
	Territory      string         `csv:"Territorio" json:"territory"`
	Website        string         `csv:"Site" json:"website"`
	Phone          string         `csv:"WhatsApp" json:"phone"`
	WhatsApp       string         `json:"whatsapp"`
	Instagram      string         `csv:"Instagram" json:"instagram"`
	GoogleMaps     string         `csv:"Google_Maps" json:"googleMaps"`
	WebsiteQuality WebsiteQuality `csv:"WebsiteQuality" json:"websiteQuality"`
	Status         string         `csv:"Status" json:"status,omitempty"`
	Notes          string         `csv:"Notas" json:"notes"`
	ScrapedAt      time.Time      `json:"scrapedAt"`
}

// Key is the identity used when merging batches: the trimmed company name.
func (l *Lead) Key() string {
	return strings.TrimSpace(l.CompanyName)
}

// WhatsAppLink returns the wa.me deep link, or "" when no dialable number exists.
func (l *Lead) WhatsAppLink() string {
	if l.WhatsApp == "" {
		return ""
	}
	return "https://wa.me/" + l.WhatsApp
}

// Query describes one prospecting batch.
type Query struct {
	Niche      string
	Region     string
	State      string
	MaxRecords int
}

// BatchResult holds the overall result of a prospecting run.
type BatchResult struct {
	Query        Query
	Leads        []*Lead
	StartTime    time.Time
	EndTime      time.Time
	Found        int
	Attempted    int
	Skipped      int
	ErrorsByType map[string]int
	StrategyHits map[string]map[string]int
	Canceled     bool
}
