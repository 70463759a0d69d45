package ingestion

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/poiesic/arxivsearch/core"
)

var (
	errNoVersions = errors.New("record has no versions")
	errBadCreated = errors.New("unparseable versions[0].created")
)

// createdLayouts are the timestamp formats seen in versions[].created.
var createdLayouts = []string{
	"Mon, _2 Jan 2006 15:04:05 MST",
	time.RFC1123Z,
	time.RFC3339,
}

// NormalizeText lowercases s, drops every rune that is not an ASCII letter,
// digit or whitespace, collapses whitespace runs to one space and trims.
// NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		default:
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DocumentText builds the normalized text for a record.
func DocumentText(rec core.Record) string {
	return NormalizeText(rec.Title + " " + rec.Abstract)
}

// ExtractYear returns the four digit year of the earliest version.
func ExtractYear(versions []core.Version) (string, error) {
	if len(versions) == 0 {
		return "", errNoVersions
	}
	created := strings.TrimSpace(versions[0].Created)

	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, created); err == nil {
			year := t.Format("2006")
			if core.IsValidYear(year) {
				return year, nil
			}
		}
	}

	// Fixed offset from the end of "Mon, 2 Apr 2007 19:18:42 GMT"
	if len(created) >= 17 {
		year := created[len(created)-17 : len(created)-13]
		if core.IsValidYear(year) {
			return year, nil
		}
	}
	return "", errBadCreated
}
