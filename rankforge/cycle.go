package rankforge

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Cycle is the recurrence kind governing a leaderboard's active window and
// renewal cadence.
type Cycle string

const (
	CycleDaily   Cycle = "Daily"
	CycleWeekly  Cycle = "Weekly"
	CycleMonthly Cycle = "Monthly"

	// CycleCustom defaults to a 10 year window anchored at creation and is
	// expected to be adjusted manually or through a reset cron expression.
	CycleCustom Cycle = "Custom"
)

// DefaultReferenceZone is the fixed offset every window computation is
// anchored to. Windows must be reproducible across machines, so wall-clock
// local time is never used.
var DefaultReferenceZone = time.FixedZone("UTC-7", -7*60*60)

// TimeWindow is an inclusive [Start, End] interval. End is always the last
// whole second of the cycle, i.e. start + duration - 1s.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CycleStart normalizes at to the reference zone and truncates it to the
// cycle anchor: hour 0 of the same day for Daily and Custom, hour 0 of the
// most recent Sunday for Weekly, hour 0 of day 1 for Monthly.
func CycleStart(cycle Cycle, at time.Time, zone *time.Location) time.Time {
	if zone == nil {
		zone = DefaultReferenceZone
	}
	t := at.In(zone)

	switch cycle {
	case CycleWeekly:
		// time.Weekday is already 0 for Sunday.
		t = t.AddDate(0, 0, -int(t.Weekday()))
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, zone)

	case CycleMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, zone)

	default:
		// Daily, and Custom which anchors to the beginning of the day and
		// expects the end to be set manually.
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, zone)
	}
}

// CycleWindow computes the active window for the given cycle around at.
// Durations are 1 day, 1 week, 1 calendar month and 10 years for Custom.
func CycleWindow(cycle Cycle, at time.Time, zone *time.Location) TimeWindow {
	start := CycleStart(cycle, at, zone)

	var end time.Time
	switch cycle {
	case CycleDaily:
		end = start.AddDate(0, 0, 1)
	case CycleWeekly:
		end = start.AddDate(0, 0, 7)
	case CycleMonthly:
		end = start.AddDate(0, 1, 0)
	default:
		end = start.AddDate(10, 0, 0)
	}

	return TimeWindow{Start: start, End: end.Add(-time.Second)}
}

// cycleWindowCron computes a Custom window whose end is the next fire of the
// reset cron expression after at, minus one second. An unparsable expression
// falls back to the plain Custom window.
func cycleWindowCron(at time.Time, cronexpr string, zone *time.Location) (TimeWindow, error) {
	if zone == nil {
		zone = DefaultReferenceZone
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cronexpr)
	if err != nil {
		return CycleWindow(CycleCustom, at, zone), err
	}

	start := CycleStart(CycleCustom, at, zone)
	end := sched.Next(at.In(zone))
	return TimeWindow{Start: start, End: end.Add(-time.Second)}, nil
}
