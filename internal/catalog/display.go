package catalog

import (
	"time"

	"github.com/dustin/go-humanize"
)

// launchLayouts are the date encodings seen in backend launchDate values.
var launchLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
}

// FormatLaunchDate renders a launch date as YYYY-MM-DD plus a relative age
// ("12 years ago"). Unparseable values come back raw with an empty age.
func FormatLaunchDate(raw string, now time.Time) (date, age string) {
	for _, layout := range launchLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return t.UTC().Format("2006-01-02"), humanize.RelTime(t, now, "ago", "from now")
	}
	return raw, ""
}
