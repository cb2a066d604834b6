package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/leadscout/models"
)

// ValidateLead ensures the scraper captured the required fields.
func ValidateLead(l *models.Lead) error {
	if l == nil {
		return fmt.Errorf("lead is nil")
	}
	if strings.TrimSpace(l.CompanyName) == "" {
		return fmt.Errorf("lead missing company name")
	}
	if strings.TrimSpace(l.Website) == "" {
		return fmt.Errorf("lead missing website sentinel for %s", l.CompanyName)
	}
	if strings.TrimSpace(l.Phone) == "" {
		return fmt.Errorf("lead missing phone sentinel for %s", l.CompanyName)
	}
	if strings.TrimSpace(l.Instagram) == "" {
		return fmt.Errorf("lead missing instagram sentinel for %s", l.CompanyName)
	}
	return nil
}

// CleanText collapses runs of whitespace, including non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// OrSentinel returns the cleaned value, or sentinel when nothing is left.
func OrSentinel(value, sentinel string) string {
	if cleaned := CleanText(value); cleaned != "" {
		return cleaned
	}
	return sentinel
}
