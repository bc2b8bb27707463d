// Package formatter renders a finished questionnaire into the text posted to
// the reports channel.
package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/period"
)

// MaxTextRunes is the longest text Telegram accepts in a single message.
const MaxTextRunes = 4096

// ellipsis marks a clipped comment.
const ellipsis = "…"

// Author identifies who filed a report.
type Author struct {
	ID       int64
	Username string
	FullName string
}

// Display returns "@username", falling back to the full name.
func (a Author) Display() string {
	if u := strings.TrimPrefix(strings.TrimSpace(a.Username), "@"); u != "" {
		return "@" + u
	}
	if n := strings.TrimSpace(a.FullName); n != "" {
		return n
	}
	return "?"
}

// Line is one "<label>: <value>" row of a report.
type Line struct {
	Label string
	Value string
}

// String renders the line.
func (l Line) String() string {
	return l.Label + ": " + l.Value
}

// Report is an immutable snapshot of a completed questionnaire.
type Report struct {
	Period period.Period
	Author Author
	Lines  []Line
}

// Build renders answers in questionnaire order. Fields that the branch taken
// could not reach are forced to the placeholder even if a stale value is
// stored: a "No" participation blanks every later field, and a "No" pioneer
// status blanks hours. The comment is clipped so that Text fits in one
// Telegram message.
func Build(p period.Period, author Author, answers map[string]string) Report {
	participated := answers[catalog.FieldParticipation] != catalog.No
	pioneer := answers[catalog.FieldPioneerStatus] != catalog.No

	qs := catalog.Questions()
	lines := make([]Line, 0, len(qs))
	comment := -1
	for _, q := range qs {
		value := strings.TrimSpace(answers[q.Field])
		switch {
		case q.Field != catalog.FieldParticipation && !participated:
			value = catalog.Placeholder
		case q.Field == catalog.FieldHours && !pioneer:
			value = catalog.Placeholder
		case value == "":
			value = catalog.Placeholder
		}
		if q.Field == catalog.FieldComment {
			comment = len(lines)
		}
		lines = append(lines, Line{Label: q.Label, Value: value})
	}
	r := Report{Period: p, Author: author, Lines: lines}
	if comment >= 0 {
		r.clip(comment)
	}
	return r
}

// clip shortens line i until Text fits in MaxTextRunes.
func (r *Report) clip(i int) {
	over := utf8.RuneCountInString(r.Text()) - MaxTextRunes
	if over <= 0 {
		return
	}
	runes := []rune(r.Lines[i].Value)
	keep := len(runes) - over - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	r.Lines[i].Value = string(runes[:keep]) + ellipsis
}

// LineStrings returns the rendered body lines.
func (r Report) LineStrings() []string {
	out := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = l.String()
	}
	return out
}

// Header returns the two header lines: period and author.
func (r Report) Header() string {
	h := fmt.Sprintf("📝 Отчёт за %s\nОт: %s", r.Period, r.Author.Display())
	if r.Author.ID != 0 {
		h += fmt.Sprintf(" (ID: %d)", r.Author.ID)
	}
	return h
}

// Text renders the full message posted to the channel.
func (r Report) Text() string {
	return r.Header() + "\n\n" + strings.Join(r.LineStrings(), "\n")
}
