package domain

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	StatusDepending  ReservationStatus = "Depending"
	StatusSuccess    ReservationStatus = "Success"
	StatusCheckedIn  ReservationStatus = "CheckedIn"
	StatusCheckedOut ReservationStatus = "CheckedOut"
	StatusCanceled   ReservationStatus = "Canceled"
	StatusExpired    ReservationStatus = "Expired"
)

// ActiveStatuses are the statuses that claim a room for their date
// interval and therefore block overlapping reservations. Depending is
// included on purpose: two tentative requests for the same room and
// dates must conflict at booking time, not at confirmation time.
var ActiveStatuses = []ReservationStatus{StatusDepending, StatusSuccess, StatusCheckedIn}

// ParseReservationStatus rejects any value outside the closed status set.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case StatusDepending, StatusSuccess, StatusCheckedIn, StatusCheckedOut, StatusCanceled, StatusExpired:
		return ReservationStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown reservation status %q", ErrValidation, s)
}

func (s ReservationStatus) Active() bool {
	return s == StatusDepending || s == StatusSuccess || s == StatusCheckedIn
}

// Reservation is a claim on one or more rooms over a half-open date
// interval [StartDate, EndDate).
type Reservation struct {
	ID              int64
	GuestID         int64
	StartDate       time.Time
	EndDate         time.Time
	ReservationDate time.Time
	Status          ReservationStatus
	Rooms           []Room
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Overlaps reports whether the reservation's interval intersects
// [start, end). Intervals are half-open: a stay ending on the day
// another begins does not conflict. The store's overlap query applies
// this same predicate.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && r.EndDate.After(start)
}

// Nights is the number of billable nights, never less than one.
func (r *Reservation) Nights() int {
	nights := int(r.EndDate.Sub(r.StartDate).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}

// RoomIDs returns the ids of all assigned rooms.
func (r *Reservation) RoomIDs() []int64 {
	ids := make([]int64, 0, len(r.Rooms))
	for _, room := range r.Rooms {
		ids = append(ids, room.ID)
	}
	return ids
}
