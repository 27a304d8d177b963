package scheduling

import (
	"sort"
	"time"
)

// BookableStarts lists every start on a step grid, anchored at each open
// block's start, that Validate accepts. It is a convenience for rendering
// clickable slots and never disagrees with Validate.
func BookableStarts(av Availability, durationMinutes int, step time.Duration, now time.Time) []time.Time {
	if step <= 0 || durationMinutes <= 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	var out []time.Time
	for _, block := range av.OpenBlocks {
		for t := block.Start; t.Before(block.End); t = t.Add(step) {
			if _, ok := seen[t.UnixNano()]; ok {
				continue
			}
			if d := Validate(t, av.OpenBlocks, av.Booked, durationMinutes, now); d.Accepted {
				seen[t.UnixNano()] = struct{}{}
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
