package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReservation_Nights(t *testing.T) {
	start := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	r := &Reservation{StartDate: start, EndDate: start.AddDate(0, 0, 3)}
	assert.Equal(t, 3, r.Nights())

	// A same-day stay is still billed as one night.
	r = &Reservation{StartDate: start, EndDate: start}
	assert.Equal(t, 1, r.Nights())
}

func TestReservation_Overlaps(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
	}
	r := &Reservation{StartDate: day(10), EndDate: day(13)}

	testCases := []struct {
		name     string
		start    time.Time
		end      time.Time
		overlaps bool
	}{
		{"Identical interval", day(10), day(13), true},
		{"Contained interval", day(11), day(12), true},
		{"Containing interval", day(8), day(15), true},
		{"Overlapping the start", day(8), day(11), true},
		{"Overlapping the end", day(12), day(15), true},
		// Half-open boundary: checkout day equals the next arrival day.
		{"Adjacent after", day(13), day(16), false},
		{"Adjacent before", day(7), day(10), false},
		{"Disjoint after", day(20), day(23), false},
		{"Disjoint before", day(1), day(4), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlaps, r.Overlaps(tc.start, tc.end))
		})
	}
}

func TestParseReservationStatus(t *testing.T) {
	for _, s := range []string{"Depending", "Success", "CheckedIn", "CheckedOut", "Canceled", "Expired"} {
		status, err := ParseReservationStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, ReservationStatus(s), status)
	}

	_, err := ParseReservationStatus("Pending")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRoles_Privileged(t *testing.T) {
	assert.False(t, Roles(nil).Privileged())
	assert.False(t, Roles{RoleGuest}.Privileged())
	assert.True(t, Roles{RoleReceptionist}.Privileged())
	assert.True(t, Roles{RoleGuest, RoleAdministrator}.Privileged())
}
