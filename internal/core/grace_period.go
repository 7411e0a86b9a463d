package core

import "time"

// Grace period units as delivered by the circulation system.
const (
	GracePeriodMinutes = "Minutes"
	GracePeriodHours   = "Hours"
	GracePeriodDays    = "Days"
	GracePeriodWeeks   = "Weeks"
	GracePeriodMonths  = "Months"
)

// Fixed unit conversions. Months are deliberately approximated as 31 days,
// matching the loan policy interpretation of the circulation system.
const (
	minutesPerHour  = 60
	minutesPerDay   = 24 * minutesPerHour
	minutesPerWeek  = 7 * minutesPerDay
	minutesPerMonth = 31 * minutesPerDay
)

// GracePeriod is the slack a loan policy grants before an overdue loan
// starts counting against the patron.
type GracePeriod struct {
	Duration int    `json:"duration"`
	Unit     string `json:"intervalId"`
}

// Minutes converts the grace period to whole minutes.
// An unknown unit yields zero, treating the grace period as absent.
func (gp GracePeriod) Minutes() int {
	switch gp.Unit {
	case GracePeriodMinutes:
		return gp.Duration
	case GracePeriodHours:
		return gp.Duration * minutesPerHour
	case GracePeriodDays:
		return gp.Duration * minutesPerDay
	case GracePeriodWeeks:
		return gp.Duration * minutesPerWeek
	case GracePeriodMonths:
		return gp.Duration * minutesPerMonth
	default:
		return 0
	}
}

// OverdueMinutes reports how many minutes past due a loan is at the given
// moment. A grace period absorbs the overdue amount completely as long as
// the raw overdue minutes do not strictly exceed it; there is no partial
// credit. A missing or future due date yields zero.
func OverdueMinutes(dueDate time.Time, gracePeriod *GracePeriod, now time.Time) int {
	if dueDate.IsZero() || !dueDate.Before(now) {
		return 0
	}

	rawMinutes := int(now.Sub(dueDate) / time.Minute)

	if gracePeriod != nil && rawMinutes <= gracePeriod.Minutes() {
		return 0
	}

	return rawMinutes
}

// OverdueDays converts overdue minutes to whole days, rounding any started
// day up.
func OverdueDays(overdueMinutes int) int {
	if overdueMinutes <= 0 {
		return 0
	}

	return (overdueMinutes + minutesPerDay - 1) / minutesPerDay
}
