// Package output renders books, announcements and history entries as tables,
// CSV, JSON, JSON lines or YAML.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aluiziolira/librosync/models"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatJSONL, FormatYAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Render writes items to w in format f. header and row describe the columns
// used by the table and CSV formats.
func Render[T any](w io.Writer, f Format, items []T, header []string, row func(T) []string) error {
	switch f {
	case FormatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
		for _, item := range items {
			fmt.Fprintln(tw, strings.Join(row(item), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("flush table: %w", err)
		}
	case FormatCSV:
		writer := csv.NewWriter(w)
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, item := range items {
			if err := writer.Write(row(item)); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if items == nil {
			items = []T{}
		}
		if err := encoder.Encode(items); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case FormatJSONL:
		encoder := json.NewEncoder(w)
		for _, item := range items {
			if err := encoder.Encode(item); err != nil {
				return fmt.Errorf("encode json record: %w", err)
			}
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if items == nil {
			items = []T{}
		}
		if err := encoder.Encode(items); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("close yaml encoder: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
	return nil
}

var bookHeader = []string{"id", "title", "author", "available", "genre", "category", "isbn"}

func bookRow(b models.Book) []string {
	return []string{
		b.ID,
		b.Title,
		b.Author,
		strconv.Itoa(b.AvailableCount),
		strings.Join(b.Genre, ";"),
		strings.Join(b.Category, ";"),
		b.ISBN,
	}
}

// Books renders a list of books.
func Books(w io.Writer, f Format, books []models.Book) error {
	return Render(w, f, books, bookHeader, bookRow)
}

// BookDetail renders one book as aligned label/value lines.
func BookDetail(w io.Writer, b models.Book) error {
	availability := "Not available"
	if b.Available() {
		availability = fmt.Sprintf("%d available", b.AvailableCount)
	}
	lines := [][2]string{
		{"Title", b.Title},
		{"Author", b.Author},
		{"Availability", availability},
		{"Genre", strings.Join(b.Genre, ", ")},
		{"Category", strings.Join(b.Category, ", ")},
		{"ISBN", b.ISBN},
		{"Publisher", b.Publisher},
		{"Published", b.PublishedDate},
		{"Description", b.Description},
	}
	if b.Pages > 0 {
		lines = append(lines, [2]string{"Pages", strconv.Itoa(b.Pages)})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range lines {
		if l[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", l[0], l[1])
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

var announcementHeader = []string{"id", "title", "created_at", "content"}

// Announcements renders announcements in the given order.
func Announcements(w io.Writer, f Format, items []models.Announcement) error {
	return Render(w, f, items, announcementHeader, func(a models.Announcement) []string {
		return []string{a.ID, a.Title, a.CreatedAt, a.Content}
	})
}

var historyHeader = []string{"book_id", "title", "author", "viewed_at"}

// History renders reading history entries, most recent first.
func History(w io.Writer, f Format, entries []models.HistoryEntry) error {
	return Render(w, f, entries, historyHeader, func(e models.HistoryEntry) []string {
		return []string{e.BookID, e.Title, e.Author, e.ViewedAt.Format(time.RFC3339)}
	})
}

// Create opens filename for writing, creating parent directories.
func Create(filename string) (*os.File, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
