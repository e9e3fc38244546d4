package booking

import (
	"sort"
	"time"
)

// SlotOptions controls how candidate slot starts are generated.
type SlotOptions struct {
	// Duration of the service being booked.
	Duration time.Duration
	// Granularity is the spacing between candidate starts, anchored at
	// the beginning of each working interval.
	Granularity time.Duration
	// Now enables lead-time filtering when non-zero: starts earlier than
	// Now+MinLeadTime are dropped. Leave zero for dates other than today.
	Now         time.Time
	MinLeadTime time.Duration
}

// ResolveWorkingIntervals builds the absolute open intervals for one date.
// A date-specific override replaces the weekly schedule entirely; a closed
// override yields no intervals.
func ResolveWorkingIntervals(date time.Time, loc *time.Location, weekly []WeeklyHours, override *ScheduleOverride) []Interval {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	if override != nil {
		if override.Closed {
			return nil
		}
		return []Interval{{
			Start: midnight.Add(time.Duration(override.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(override.EndMinute) * time.Minute),
		}}
	}

	var open []Interval
	for _, wh := range weekly {
		if wh.Weekday != midnight.Weekday() || wh.EndMinute <= wh.StartMinute {
			continue
		}
		open = append(open, Interval{
			Start: midnight.Add(time.Duration(wh.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(wh.EndMinute) * time.Minute),
		})
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return open
}

// CoalesceIntervals sorts busy intervals and merges overlapping or adjacent
// ones into maximal runs.
func CoalesceIntervals(busy []Interval) []Interval {
	if len(busy) == 0 {
		return nil
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// ComputeSlots walks the open intervals in time order and emits every slot
// start at the configured granularity whose [start, start+Duration) fits
// inside the interval and clears every busy run. Busy intervals need not be
// pre-sorted. An empty result is a valid answer.
func ComputeSlots(open []Interval, busy []Interval, opts SlotOptions) []time.Time {
	if opts.Duration <= 0 || opts.Granularity <= 0 {
		return nil
	}

	runs := CoalesceIntervals(busy)
	cutoff := time.Time{}
	if !opts.Now.IsZero() {
		cutoff = opts.Now.Add(opts.MinLeadTime)
	}

	var slots []time.Time
	for _, iv := range open {
		for start := iv.Start; !start.Add(opts.Duration).After(iv.End); start = start.Add(opts.Granularity) {
			if !cutoff.IsZero() && start.Before(cutoff) {
				continue
			}
			candidate := Interval{Start: start, End: start.Add(opts.Duration)}
			if overlapsAny(candidate, runs) {
				continue
			}
			slots = append(slots, start)
		}
	}
	return slots
}

func overlapsAny(candidate Interval, runs []Interval) bool {
	for _, run := range runs {
		if candidate.Overlaps(run) {
			return true
		}
		if !run.Start.Before(candidate.End) {
			break
		}
	}
	return false
}
