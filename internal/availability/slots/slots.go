// Package slots turns a weekly availability rule and a set of busy intervals into the
// bookable slots of one date.
package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
)

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ValidClock reports whether s is a 24h HH:MM clock string. A single-digit hour is accepted.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// ParseClock returns the offset of an HH:MM clock string from midnight.
func ParseClock(s string) (time.Duration, error) {
	if !ValidClock(s) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Window anchors the rule's clock strings on the UTC day of date.
func Window(rule model.AvailabilityRule, date time.Time) (time.Time, time.Time, error) {
	startOffset, err := ParseClock(rule.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endOffset, err := ParseClock(rule.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	day := StartOfDay(date)
	return day.Add(startOffset), day.Add(endOffset), nil
}

// StartOfDay is midnight UTC of t's UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Generate walks the rule's window in steps of d and keeps every full slot that starts after
// now and does not intersect a busy interval. Intervals are half-open, so a slot may end
// exactly where a busy interval begins. The result is chronological and never nil.
func Generate(rule model.AvailabilityRule, date, now time.Time, busy []model.BusyInterval, d time.Duration) ([]model.Slot, error) {
	if d <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %s", d)
	}

	ruleStart, ruleEnd, err := Window(rule, date)
	if err != nil {
		return nil, err
	}

	slots := []model.Slot{}
	for s := ruleStart; !s.Add(d).After(ruleEnd); s = s.Add(d) {
		end := s.Add(d)
		if !s.After(now) {
			continue
		}
		if overlapsAny(s, end, busy) {
			continue
		}
		slots = append(slots, model.Slot{Start: s, End: end})
	}
	return slots, nil
}

// Overlaps is the half-open intersection test shared with booking conflict checks.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func overlapsAny(start, end time.Time, busy []model.BusyInterval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
