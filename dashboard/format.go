package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/CrowderSoup/microjobs/database"
)

// TitleWordLimit is the number of words shown before a title is cut.
const TitleWordLimit = 8

// Placeholders rendered in place of missing values.
const (
	NoDate           = "No date"
	InvalidDate      = "Invalid date"
	NotAvailable     = "N/A"
	UntitledTask     = "Untitled Task"
	PlaceholderImage = "/static/placeholder.svg"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// FormatDate renders a raw date as "Jan 5, 2024". The calendar date is taken
// as written, without converting between time zones.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NoDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return InvalidDate
}

// TruncateWords keeps the first limit space separated words of text and
// appends "..." when anything was dropped.
func TruncateWords(text string, limit int) string {
	words := strings.Split(text, " ")
	if len(words) > limit {
		return strings.Join(words[:limit], " ") + "..."
	}
	return text
}

// IsTruncated reports whether TruncateWords would shorten text.
func IsTruncated(text string, limit int) bool {
	return text != "" && len(strings.Split(text, " ")) > limit
}

// TaskRow is a task prepared for display.
type TaskRow struct {
	ID             string
	Title          string
	ShortTitle     string
	Truncated      bool
	Details        string
	Workers        int
	Payment        string
	DueDate        string
	Image          string
	SubmissionInfo string
	Striped        bool
}

// NewTaskRow applies the display defaults to t.
func NewTaskRow(t database.Task, index int) TaskRow {
	row := TaskRow{
		ID:             t.ID,
		Title:          t.Title,
		Details:        t.Details,
		Workers:        t.RequiredWorkers,
		Payment:        FormatPayment(t.PayableAmount),
		DueDate:        FormatDate(t.CompletionDate),
		Image:          t.Image,
		SubmissionInfo: t.SubmissionInfo,
		Striped:        index%2 == 1,
	}
	if row.ID == "" {
		row.ID = NotAvailable
	}
	if row.Title == "" {
		row.Title = UntitledTask
	}
	row.ShortTitle = TruncateWords(row.Title, TitleWordLimit)
	row.Truncated = IsTruncated(t.Title, TitleWordLimit)
	if row.Image == "" {
		row.Image = PlaceholderImage
	}
	return row
}

// FormatPayment renders an amount as dollars with two decimals and
// thousands separators.
func FormatPayment(amount float64) string {
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// Summary is the footer line under the task table.
func Summary(s Snapshot, now time.Time) string {
	plural := "s"
	if s.Total == 1 {
		plural = ""
	}
	updated := "never"
	if !s.LoadedAt.IsZero() {
		updated = humanize.RelTime(s.LoadedAt, now, "ago", "from now")
	}
	return fmt.Sprintf("Displaying %d of %d task%s • Last updated: %s", len(s.Tasks), s.Total, plural, updated)
}
