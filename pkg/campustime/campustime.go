// Package campustime centralizes the campus time zone assumptions shared by
// the store, the query renderer, and the analysis functions: the remote
// reports times in campus-local wall clock, and every bucketing or
// calendar-date comparison in this module needs to agree on that zone.
package campustime

import "time"

// Zone is the campus card service's reporting time zone. The remote has no
// notion of UTC offsets in its payloads, only local wall-clock strings.
var Zone = mustLoadLocation("Asia/Shanghai")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// A missing tzdata entry is a build/deployment defect, not a
		// runtime condition callers can recover from.
		panic("campustime: " + err.Error())
	}
	return loc
}

// remoteLayout is the datetime format the card service emits in its JSON
// payloads, e.g. "2024-03-15 08:03:00".
const remoteLayout = "2006-01-02 15:04:05"

// ParseRemote parses a remote-reported datetime string as campus local time.
func ParseRemote(s string) (time.Time, error) {
	return time.ParseInLocation(remoteLayout, s, Zone)
}

// ParseDate parses a calendar date ("YYYY-MM-DD") as campus-local midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, Zone)
}

// InZone converts an absolute instant to its campus-local wall-clock
// representation, regardless of what zone it is currently expressed in.
func InZone(t time.Time) time.Time {
	return t.In(Zone)
}

// MonthKey returns the "YYYY-MM" bucket key for a campus-local instant.
func MonthKey(t time.Time) string {
	return InZone(t).Format("2006-01")
}
