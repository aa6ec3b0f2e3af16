package event

import "strings"

// Partition buckets events into per-month artist lists for the given months.
// Within each bucket, artists are deduplicated by trimmed name with first-seen
// order preserved. Months with no matching events are absent from the result,
// so callers can tell "no artists this month" apart from an empty list.
func Partition(events []ArtistEvent, months []MonthKey) map[MonthKey][]string {
	result := make(map[MonthKey][]string)
	for _, month := range months {
		seen := make(map[string]struct{})
		var artists []string
		for _, ev := range events {
			if !month.Matches(ev.Date) {
				continue
			}
			name := strings.TrimSpace(ev.Name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			artists = append(artists, name)
		}
		if len(artists) > 0 {
			result[month] = artists
		}
	}
	return result
}
