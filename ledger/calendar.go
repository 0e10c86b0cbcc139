package ledger

import "time"

// expirationDate computes the deterministic, time-zone free expiration
// date for a batch created on creationDate whose subscription was
// originally ordered on anchorDay (the day-of-month component of
// contractServiceCreationDate).
//
// The candidate month is creationDate's month plus one, carrying the
// year. The result's day clamps the anchor day to the last day of that
// candidate month, so an anchor day of 31 lands on the last day of a
// shorter month instead of spilling into the month after it.
func expirationDate(creationDate time.Time, anchorDay int) time.Time {
	candidateYear, candidateMonth := creationDate.Year(), creationDate.Month()+1
	if candidateMonth > time.December {
		candidateMonth = time.January
		candidateYear++
	}
	day := anchorDay
	if last := lastDayOfMonth(candidateYear, candidateMonth); day > last {
		day = last
	}
	return time.Date(candidateYear, candidateMonth, day, 0, 0, 0, 0, time.UTC)
}

// lastDayOfMonth returns the number of days in the given month, handling
// leap years via time.Date's own normalization: the first day of the
// following month minus one day always lands on the last day of month.
func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfNext.AddDate(0, 0, -1)
	return lastDay.Day()
}

// truncateToDate strips the time-of-day component, since every
// expiration and reference comparison in this domain is calendar-date
// only (§4.2: "time-zone free, uses only calendar dates").
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
