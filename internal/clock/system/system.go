// Package system provides the wall clock used by notifications and the
// default job date.
package system

import "time"

// DateLayout is the backend's target_date format.
const DateLayout = "2006-01-02"

// Clock reads time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New returns a Clock in loc; nil means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Today formats the current date as the backend expects it.
func (c *Clock) Today() string {
	return c.Now().Format(DateLayout)
}
