package schedule

import (
	"time"

	"github.com/scmhub/calendar"
)

const (
	openHour  = 15
	closeHour = 14

	// DefaultLead is how early a wait ends before the market opens.
	DefaultLead = 30 * time.Second
)

// Hours is the futures trading week: Sunday 15:00 to Friday 14:00 local time
// with a daily break from 14:00 to 15:00. A session opening at 15:00 belongs to
// the next trade date, and trade dates the exchange calendar does not list as
// business days are closed.
type Hours struct {
	loc  *time.Location
	cal  *calendar.Calendar
	lead time.Duration
}

// New creates market hours in loc. A nil cal only applies the weekly pattern.
func New(loc *time.Location, cal *calendar.Calendar, lead time.Duration) *Hours {
	if loc == nil {
		loc = time.UTC
	}
	return &Hours{loc: loc, cal: cal, lead: lead}
}

// Default returns US/Pacific hours on the NYSE calendar.
func Default() (*Hours, error) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return nil, err
	}
	return New(loc, calendar.GetCalendar("xnys"), DefaultLead), nil
}

// IsOpen reports whether the market is open at t.
func (h *Hours) IsOpen(t time.Time) bool {
	local := t.In(h.loc)
	hour := local.Hour()
	switch local.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		if hour < openHour {
			return false
		}
	case time.Friday:
		if hour >= closeHour {
			return false
		}
	default:
		if hour == closeHour {
			return false
		}
	}
	return h.isTradeDate(tradeDate(local))
}

// NextOpen returns the first session open after t.
func (h *Hours) NextOpen(t time.Time) time.Time {
	local := t.In(h.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), openHour, 0, 0, 0, h.loc)
	if !day.After(local) {
		day = day.AddDate(0, 0, 1)
	}
	for range 31 {
		if wd := day.Weekday(); wd != time.Friday && wd != time.Saturday && h.isTradeDate(day.AddDate(0, 0, 1)) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// UntilOpen returns zero while the market is open, otherwise the time until
// the next open less the lead.
func (h *Hours) UntilOpen(now time.Time) time.Duration {
	if h.IsOpen(now) {
		return 0
	}
	return max(h.NextOpen(now).Sub(now)-h.lead, 0)
}

// tradeDate maps a local time to the trade date of its session.
func tradeDate(local time.Time) time.Time {
	if local.Hour() >= openHour {
		return local.AddDate(0, 0, 1)
	}
	return local
}

func (h *Hours) isTradeDate(d time.Time) bool {
	if h.cal == nil {
		return true
	}
	return h.cal.IsBusinessDay(time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, h.cal.Loc))
}
