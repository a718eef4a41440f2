// Package timewindow classifies due dates into the four planning horizons
// and maps horizons to the persisted bucket codes.
//
// A window is always derived from (due date, now) at read time and never stored.
package timewindow

import (
	"math"
	"strings"
	"time"

	"scoutline/internal/domain"
)

type Window string

const (
	ThisWeek  Window = "this_week"
	NextWeek  Window = "next_week"
	ThisMonth Window = "this_month"
	Backlog   Window = "backlog"
)

const day = 24 * time.Hour

// Spec describes one horizon. MaxDays is inclusive; Backlog has no bound.
type Spec struct {
	Key     Window
	Label   string
	Bucket  domain.Bucket
	MaxDays int
	Offset  time.Duration
}

var windows = []Spec{
	{Key: ThisWeek, Label: "This Week", Bucket: domain.Bucket30, MaxDays: 7, Offset: 7 * day},
	{Key: NextWeek, Label: "Next Week", Bucket: domain.Bucket60, MaxDays: 14, Offset: 14 * day},
	{Key: ThisMonth, Label: "This Month", Bucket: domain.Bucket90, MaxDays: 30, Offset: 30 * day},
	{Key: Backlog, Label: "Backlog", Bucket: domain.BucketBacklog, MaxDays: math.MaxInt, Offset: 90 * day},
}

// Windows returns the horizons in display order.
func Windows() []Spec {
	out := make([]Spec, len(windows))
	copy(out, windows)
	return out
}

// Lookup returns the metadata of a window.
func Lookup(w Window) (Spec, bool) {
	for _, s := range windows {
		if s.Key == w {
			return s, true
		}
	}
	return Spec{}, false
}

func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Lookup(w); !ok {
		return "", domain.Invalid("window", "unknown window %q", s)
	}
	return w, nil
}

// DaysUntil is the whole number of days from now to due, rounded up.
// Past dates give zero or a negative count.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// Classify returns the window of a due date. A missing date is backlog and an
// overdue date falls in this_week.
func Classify(due *time.Time, now time.Time) Window {
	if due == nil {
		return Backlog
	}
	days := DaysUntil(*due, now)
	for _, s := range windows {
		if days <= s.MaxDays {
			return s.Key
		}
	}
	return Backlog
}

// BucketFor derives the bucket code of an explicit due date.
func BucketFor(due *time.Time, now time.Time) domain.Bucket {
	s, _ := Lookup(Classify(due, now))
	return s.Bucket
}

// DefaultDueDate is the due date assigned when an item is dropped into a
// bucket. Unknown codes fall back to the backlog offset.
func DefaultDueDate(bucket domain.Bucket, now time.Time) time.Time {
	for _, s := range windows {
		if s.Bucket == bucket {
			return now.Add(s.Offset)
		}
	}
	return now.Add(90 * day)
}
