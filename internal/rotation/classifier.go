package rotation

import (
	"fmt"
	"strings"
	"time"
)

// Record is one file from a storage listing
type Record struct {
	Name    string // file name without directories, matched against the name filter
	Path    string // path relative to the listed folder, unique per listing
	ModTime string // raw listing timestamp
}

// Tier identifies where the classifier placed a record
type Tier string

const (
	TierHourly  Tier = "hourly"
	TierDaily   Tier = "daily"
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
	TierDelete  Tier = "delete"
)

// State is the result of classifying the records of one backup set.
// Every filtered record ends up in exactly one bucket or in ToDelete.
type State struct {
	Hourly   map[string]Record
	Daily    map[string]Record
	Monthly  map[string]Record
	Yearly   map[string]Record
	ToDelete []Record
}

func newState() *State {
	return &State{
		Hourly:  make(map[string]Record),
		Daily:   make(map[string]Record),
		Monthly: make(map[string]Record),
		Yearly:  make(map[string]Record),
	}
}

// Classify partitions the records whose name contains nameFilter into
// retention buckets and a delete list, relative to now.
//
// The first record to claim a bucket keeps it, so the result depends on the
// listing order. nameFilter is a substring match: a filter that is contained
// in another backup set's name also claims that set's files.
func Classify(records []Record, nameFilter string, now time.Time) (*State, error) {
	h := horizonFor(now)
	state := newState()

	for _, rec := range records {
		if !strings.Contains(rec.Name, nameFilter) {
			continue
		}

		mod, err := ParseModTime(rec.ModTime)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", rec.Path, err)
		}

		state = state.place(rec, mod, h)
	}

	return state, nil
}

// place files rec into the first tier it is young enough for and whose
// bucket is still free, or into ToDelete.
func (s *State) place(rec Record, mod time.Time, h horizon) *State {
	switch {
	case mod.After(h.day) && !occupied(s.Hourly, HourKey(mod)):
		s.Hourly[HourKey(mod)] = rec
	case mod.After(h.month) && !occupied(s.Daily, DayKey(mod)):
		s.Daily[DayKey(mod)] = rec
	case mod.After(h.year) && !occupied(s.Monthly, MonthKey(mod)):
		s.Monthly[MonthKey(mod)] = rec
	case mod.Before(h.year) && !occupied(s.Yearly, YearKey(mod)):
		s.Yearly[YearKey(mod)] = rec
	default:
		s.ToDelete = append(s.ToDelete, rec)
	}
	return s
}

func occupied(bucket map[string]Record, key string) bool {
	_, ok := bucket[key]
	return ok
}

// Kept returns the number of retained records
func (s *State) Kept() int {
	return len(s.Hourly) + len(s.Daily) + len(s.Monthly) + len(s.Yearly)
}

// Tiers returns the retention buckets keyed by tier
func (s *State) Tiers() map[Tier]map[string]Record {
	return map[Tier]map[string]Record{
		TierHourly:  s.Hourly,
		TierDaily:   s.Daily,
		TierMonthly: s.Monthly,
		TierYearly:  s.Yearly,
	}
}

// TierOf reports where the record with the given path was placed
func (s *State) TierOf(path string) (Tier, bool) {
	for tier, bucket := range s.Tiers() {
		for _, rec := range bucket {
			if rec.Path == path {
				return tier, true
			}
		}
	}
	for _, rec := range s.ToDelete {
		if rec.Path == path {
			return TierDelete, true
		}
	}
	return "", false
}
