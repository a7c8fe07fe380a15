package utils

import (
	"fmt"
	"time"

	"custody-backend/internal/domain"
)

// DateLayout is the yyyy-mm-dd layout used for dates on the wire.
const DateLayout = "2006-01-02"

// Tariff holds the configured rates, in cents, per rental kind.
type Tariff struct {
	InternalRateCents      int64
	ExternalDailyRateCents int64
}

// RateFor returns the rate snapshot a new rental of the given kind should carry.
func (t Tariff) RateFor(kind domain.RentalKind) (int64, error) {
	switch kind {
	case domain.RentalKindInternal:
		return t.InternalRateCents, nil
	case domain.RentalKindExternal:
		return t.ExternalDailyRateCents, nil
	}
	return 0, fmt.Errorf("unknown rental kind %q: %w", kind, domain.ErrInvalidInput)
}

// SettlementCharge is the detailed result of pricing one settlement.
type SettlementCharge struct {
	Quantity    int
	Days        int
	RateCents   int64
	AmountCents int64
}

// ParseDate converts a yyyy-mm-dd string into midnight of that day in loc.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd: %w", dateStr, domain.ErrInvalidInput)
	}
	return t, nil
}

// CalendarDays returns the number of calendar-day boundaries between start and
// end, as seen in loc. Times on the same calendar day are 0 days apart.
func CalendarDays(start, end time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	e := end.In(loc)
	sd := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	ed := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	return int(ed.Sub(sd).Hours() / 24)
}

// ChargeableDays is the day count billed for an EXTERNAL settlement: calendar
// days from the rental start to now, never less than 1.
func ChargeableDays(start, now time.Time, loc *time.Location) int {
	days := CalendarDays(start, now, loc)
	if days < 1 {
		return 1
	}
	return days
}

// EstimatedDays is the planned rental length from today to the estimated
// return date, never less than 1.
func EstimatedDays(today, estimatedReturn time.Time, loc *time.Location) int {
	days := CalendarDays(today, estimatedReturn, loc)
	if days < 1 {
		return 1
	}
	return days
}

// CalculateCharge prices a settlement of quantity assets.
// INTERNAL rentals are a flat charge per asset; EXTERNAL rentals are charged
// per asset per day.
func CalculateCharge(kind domain.RentalKind, rateCents int64, quantity, days int) (SettlementCharge, error) {
	if quantity < 0 {
		return SettlementCharge{}, fmt.Errorf("quantity must not be negative: %w", domain.ErrInvalidInput)
	}
	charge := SettlementCharge{Quantity: quantity, RateCents: rateCents}
	switch kind {
	case domain.RentalKindInternal:
		charge.Days = 0
		charge.AmountCents = int64(quantity) * rateCents
	case domain.RentalKindExternal:
		if days < 1 {
			days = 1
		}
		charge.Days = days
		charge.AmountCents = int64(quantity) * rateCents * int64(days)
	default:
		return SettlementCharge{}, fmt.Errorf("unknown rental kind %q: %w", kind, domain.ErrInvalidInput)
	}
	return charge, nil
}
