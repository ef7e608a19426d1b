// Package parser validates and normalizes API records at ingestion so the
// rest of the code never has to guard against missing fields.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/librosync/models"
)

// Report counts records dropped during normalization, keyed by reason.
type Report map[string]int

// Dropped returns the total number of rejected records.
func (r Report) Dropped() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// ValidateBook ensures the record carries the fields the views rely on.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book missing id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title for %s", b.ID)
	}
	return nil
}

// NormalizeBook trims text fields, clamps the copy count and replaces nil
// genre/category lists with empty ones.
func NormalizeBook(b models.Book) models.Book {
	b.ID = strings.TrimSpace(b.ID)
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Picture = strings.TrimSpace(b.Picture)
	b.ISBN = strings.TrimSpace(b.ISBN)
	b.Publisher = strings.TrimSpace(b.Publisher)
	b.PublishedDate = strings.TrimSpace(b.PublishedDate)
	if b.AvailableCount < 0 {
		b.AvailableCount = 0
	}
	if b.Pages < 0 {
		b.Pages = 0
	}
	b.Genre = NormalizeTags(b.Genre)
	b.Category = NormalizeTags(b.Category)
	return b
}

// NormalizeTags trims entries and drops blanks. It never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// NormalizeBooks normalizes a fetched collection, dropping invalid records and
// repeated identifiers (first occurrence wins). Source order is preserved.
func NormalizeBooks(books []models.Book) ([]models.Book, Report) {
	report := Report{}
	out := make([]models.Book, 0, len(books))
	seen := make(map[string]struct{}, len(books))
	for _, raw := range books {
		b := NormalizeBook(raw)
		if err := ValidateBook(&b); err != nil {
			report["invalid_record"]++
			continue
		}
		if _, ok := seen[b.ID]; ok {
			report["duplicate_id"]++
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out, report
}

// ValidateAnnouncement ensures an announcement can be displayed.
func ValidateAnnouncement(a *models.Announcement) error {
	if a == nil {
		return fmt.Errorf("announcement is nil")
	}
	if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("announcement %q has neither title nor content", a.ID)
	}
	return nil
}

// NormalizeAnnouncements trims fields and drops empty announcements while
// keeping the order supplied by the source.
func NormalizeAnnouncements(items []models.Announcement) ([]models.Announcement, Report) {
	report := Report{}
	out := make([]models.Announcement, 0, len(items))
	for _, a := range items {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			a.ID = strings.TrimSpace(a.LegacyID)
		}
		a.LegacyID = ""
		a.Title = strings.TrimSpace(a.Title)
		a.Content = strings.TrimSpace(a.Content)
		a.CreatedAt = strings.TrimSpace(a.CreatedAt)
		if err := ValidateAnnouncement(&a); err != nil {
			report["invalid_record"]++
			continue
		}
		out = append(out, a)
	}
	return out, report
}
