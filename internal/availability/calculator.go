package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/telemed-platform/pkg/logging"
)

// bookedLister reports appointment start times already holding a slot.
type bookedLister interface {
	BookedTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
}

type templateSource interface {
	ListActiveForWeekday(ctx context.Context, doctorID uuid.UUID, weekday int) ([]Template, error)
}

// Calculator derives bookable start times for a doctor and date.
type Calculator struct {
	templates templateSource
	booked    bookedLister
	cache     *SlotCache
	logger    *logging.Logger
}

// NewCalculator constructs a slot calculator. The cache is optional.
func NewCalculator(templates templateSource, booked bookedLister, cache *SlotCache, logger *logging.Logger) *Calculator {
	if templates == nil {
		panic("availability: template source required")
	}
	if booked == nil {
		panic("availability: booked lister required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Calculator{
		templates: templates,
		booked:    booked,
		cache:     cache,
		logger:    logger,
	}
}

// SlotsForDate computes the ordered bookable start times ("HH:MM", local to
// the date's location) for a doctor on a given day. A slot is emitted only
// when the full consultation still fits inside a window: start+duration must
// not pass the window end, with equality allowed.
func (c *Calculator) SlotsForDate(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMinutes int) ([]string, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("availability: duration must be positive, got %d", durationMinutes)
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	if c.cache != nil {
		if slots, ok, err := c.cache.Get(ctx, doctorID, day); err != nil {
			c.logger.Warn("slot cache read failed", "error", err, "doctor_id", doctorID)
		} else if ok {
			return slots, nil
		}
	}

	templates, err := c.templates.ListActiveForWeekday(ctx, doctorID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}

	slots := expandTemplates(templates, durationMinutes)

	slots, err = c.filterBooked(ctx, doctorID, day, slots)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, doctorID, day, slots); err != nil {
			c.logger.Warn("slot cache write failed", "error", err, "doctor_id", doctorID)
		}
	}
	return slots, nil
}

// expandTemplates merges overlapping windows and walks each merged window in
// duration-sized steps.
func expandTemplates(templates []Template, durationMinutes int) []string {
	type window struct{ start, end int }

	var windows []window
	for _, t := range templates {
		start, err := parseClock(t.StartTime)
		if err != nil {
			continue
		}
		end, err := parseClock(t.EndTime)
		if err != nil || start >= end {
			continue
		}
		windows = append(windows, window{start: start, end: end})
	}
	if len(windows) == 0 {
		return []string{}
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}

	seen := make(map[int]struct{})
	var starts []int
	for _, w := range merged {
		for t := w.start; t+durationMinutes <= w.end; t += durationMinutes {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			starts = append(starts, t)
		}
	}
	sort.Ints(starts)

	slots := make([]string, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, formatClock(s))
	}
	return slots
}

// filterBooked removes start times already held by an active appointment.
// This keeps the presented list honest, but the atomic reservation at
// booking time remains the authoritative guarantee.
func (c *Calculator) filterBooked(ctx context.Context, doctorID uuid.UUID, day time.Time, slots []string) ([]string, error) {
	if len(slots) == 0 {
		return slots, nil
	}
	taken, err := c.booked.BookedTimes(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("availability: booked lookup: %w", err)
	}
	if len(taken) == 0 {
		return slots, nil
	}

	occupied := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		occupied[t.In(day.Location()).Format("15:04")] = struct{}{}
	}

	out := slots[:0]
	for _, s := range slots {
		if _, hit := occupied[s]; !hit {
			out = append(out, s)
		}
	}
	return out, nil
}
