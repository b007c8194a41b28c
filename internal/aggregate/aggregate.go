// Package aggregate groups time-stamped log records into per-day summaries.
//
// Grouping is a pure computation over an in-memory snapshot: the caller
// supplies the processing time, the location used for calendar conversion
// and the locale used to format the grouping key.
package aggregate

import (
	"math"
	"slices"
	"time"
)

// Record is the view of a log entry the aggregator needs.
type Record interface {
	// Timestamp reports when the record was logged. ok is false when the
	// store holds no timestamp for it.
	Timestamp() (ts time.Time, ok bool)
	// Measures returns the numeric fields that contribute to group totals.
	Measures() Totals
}

// Totals holds the summed numeric fields of a group.
type Totals struct {
	Calories        float64 `json:"calories"`
	DurationMinutes int     `json:"duration_minutes"`
	Carbs           float64 `json:"carbs"`
	Fat             float64 `json:"fat"`
	Protein         float64 `json:"protein"`
}

// Add returns t plus other, treating negative, NaN and infinite values as
// zero.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Calories:        t.Calories + measure(other.Calories),
		DurationMinutes: t.DurationMinutes + max(other.DurationMinutes, 0),
		Carbs:           t.Carbs + measure(other.Carbs),
		Fat:             t.Fat + measure(other.Fat),
		Protein:         t.Protein + measure(other.Protein),
	}
}

// DateGroup is the set of records sharing one calendar-date key.
type DateGroup[R Record] struct {
	Date    string
	Records []R
	Totals  Totals
	// UndatedCount is how many records landed here because they had no
	// timestamp and were keyed by the processing date instead.
	UndatedCount int

	day time.Time
}

// Options controls how grouping keys are derived.
type Options struct {
	// Now is the processing time used for records without a timestamp.
	// The zero value means time.Now().
	Now time.Time
	// Location converts timestamps to a calendar date. nil means time.Local.
	Location *time.Location
	// Keys formats the calendar date. The zero value formats en-US dates.
	Keys DateKeyer
}

func (o Options) normalized() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Keys.layout == "" {
		o.Keys = DefaultKeyer
	}
	return o
}

// GroupByDate buckets records by calendar date. Groups are returned in the
// order their key was first encountered in records; records inside a group
// keep their input order.
func GroupByDate[R Record](records []R, opts Options) []DateGroup[R] {
	opts = opts.normalized()
	groups := newOrderedGroups[R](len(records))

	for _, rec := range records {
		ts, ok := rec.Timestamp()
		undated := !ok || ts.IsZero()
		if undated {
			ts = opts.Now
		}
		local := ts.In(opts.Location)
		key := opts.Keys.Key(local)

		g := groups.get(key, local)
		g.Records = append(g.Records, rec)
		g.Totals = g.Totals.Add(rec.Measures())
		if undated {
			g.UndatedCount++
		}
	}

	return groups.list()
}

// GroupByDateSorted is GroupByDate with groups ordered newest day first.
func GroupByDateSorted[R Record](records []R, opts Options) []DateGroup[R] {
	groups := GroupByDate(records, opts)
	slices.SortStableFunc(groups, func(a, b DateGroup[R]) int {
		return b.day.Compare(a.day)
	})
	return groups
}

// Count returns the number of records across groups.
func Count[R Record](groups []DateGroup[R]) int {
	n := 0
	for _, g := range groups {
		n += len(g.Records)
	}
	return n
}

// Undated returns the number of records across groups that used the
// missing-timestamp fallback.
func Undated[R Record](groups []DateGroup[R]) int {
	n := 0
	for _, g := range groups {
		n += g.UndatedCount
	}
	return n
}

func measure(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// orderedGroups preserves first-seen key order.
type orderedGroups[R Record] struct {
	index  map[string]int
	groups []DateGroup[R]
}

func newOrderedGroups[R Record](hint int) *orderedGroups[R] {
	return &orderedGroups[R]{index: make(map[string]int, hint)}
}

func (o *orderedGroups[R]) get(key string, local time.Time) *DateGroup[R] {
	if i, ok := o.index[key]; ok {
		return &o.groups[i]
	}
	y, m, d := local.Date()
	o.index[key] = len(o.groups)
	o.groups = append(o.groups, DateGroup[R]{
		Date: key,
		day:  time.Date(y, m, d, 0, 0, 0, 0, local.Location()),
	})
	return &o.groups[len(o.groups)-1]
}

func (o *orderedGroups[R]) list() []DateGroup[R] {
	if len(o.groups) == 0 {
		return []DateGroup[R]{}
	}
	return o.groups
}
