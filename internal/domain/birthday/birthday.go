package birthday

import (
	"database/sql"
	"time"
)

// Birthday represents one chat member's recorded date of birth.
// The year component is kept as entered but the notifier only ever
// matches on month and day.
type Birthday struct {
	ID         int64
	ChatID     int64
	UserID     int64
	Date       time.Time
	CreatedAt  time.Time
	ModifiedAt sql.NullTime
}

// OccursOn reports whether the birthday recurs on the given calendar day.
// Birthdays recorded on Feb 29 are celebrated on Feb 28 in non-leap years.
func (b *Birthday) OccursOn(today time.Time) bool {
	month, day := b.Date.Month(), b.Date.Day()
	if month == time.February && day == 29 && !isLeapYear(today.Year()) {
		month, day = time.February, 28
	}
	return today.Month() == month && today.Day() == day
}

// MatchingOn selects the birthdays occurring on the given day, year ignored.
// Order of the result is not significant.
func MatchingOn(today time.Time, all []*Birthday) []*Birthday {
	matched := make([]*Birthday, 0)
	for _, b := range all {
		if b.OccursOn(today) {
			matched = append(matched, b)
		}
	}
	return matched
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
