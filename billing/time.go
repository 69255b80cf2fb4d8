package billing

import "time"

// =============================================================================
// DATE STAMP - Day-granular time (billing is a per-night business)
// =============================================================================

// DateStamp is a calendar day in UTC. Charges, add-ons, and payments are
// all dated to the day; nothing in the engine needs finer granularity.
type DateStamp struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) DateStamp {
	return DateStamp{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() DateStamp {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d DateStamp) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d DateStamp) Before(o DateStamp) bool        { return d.normalize().Before(o.normalize()) }
func (d DateStamp) After(o DateStamp) bool         { return d.normalize().After(o.normalize()) }
func (d DateStamp) Equal(o DateStamp) bool         { return d.normalize().Equal(o.normalize()) }
func (d DateStamp) BeforeOrEqual(o DateStamp) bool { return d.Before(o) || d.Equal(o) }
func (d DateStamp) AfterOrEqual(o DateStamp) bool  { return d.After(o) || d.Equal(o) }

// Arithmetic
func (d DateStamp) AddDays(n int) DateStamp   { return DateStamp{Time: d.Time.AddDate(0, 0, n)} }
func (d DateStamp) AddMonths(n int) DateStamp { return DateStamp{Time: d.Time.AddDate(0, n, 0)} }

func (d DateStamp) IsZero() bool { return d.Time.IsZero() }

func (d DateStamp) String() string { return d.normalize().Format("2006-01-02") }

// ParseDate parses a YYYY-MM-DD stamp.
func ParseDate(s string) (DateStamp, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateStamp{}, err
	}
	return DateStamp{Time: t}, nil
}

// =============================================================================
// PERIOD - The reporting window every reconciliation is computed for
// =============================================================================

// Period is an inclusive [Start, End] reporting window. "Period" figures
// sum within the window; "cumulative" figures sum over all history up to
// and including End.
type Period struct {
	Start DateStamp
	End   DateStamp
}

func (p Period) Contains(d DateStamp) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthOf returns the calendar month containing the given date, the usual
// reporting window for hotel/client statements.
func MonthOf(d DateStamp) Period {
	start := NewDate(d.Time.Year(), d.Time.Month(), 1)
	end := DateStamp{Time: start.Time.AddDate(0, 1, -1)}
	return Period{Start: start, End: end}
}
