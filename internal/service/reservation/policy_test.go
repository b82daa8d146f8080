package reservation

import (
	"testing"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanCancel(t *testing.T) {
	today := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	owner := domain.Principal{ID: 7, Roles: domain.Roles{domain.RoleGuest}}
	receptionist := domain.Principal{ID: 99, Roles: domain.Roles{domain.RoleReceptionist}}
	admin := domain.Principal{ID: 100, Roles: domain.Roles{domain.RoleAdministrator}}

	reservation := func(status domain.ReservationStatus, start time.Time) *domain.Reservation {
		return &domain.Reservation{
			ID:        42,
			GuestID:   7,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 3),
			Status:    status,
		}
	}

	testCases := []struct {
		name    string
		res     *domain.Reservation
		actor   domain.Principal
		allowed bool
	}{
		{
			name:    "Owner well before arrival",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 20)),
			actor:   owner,
			allowed: true,
		},
		{
			name:    "Owner exactly at the minimum lead",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 12)),
			actor:   owner,
			allowed: true,
		},
		{
			name:    "Owner one day before arrival",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 11)),
			actor:   owner,
			allowed: false,
		},
		{
			name:    "Owner on the arrival date",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 10)),
			actor:   owner,
			allowed: false,
		},
		{
			name:    "Receptionist inside the guest window",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 10)),
			actor:   receptionist,
			allowed: true,
		},
		{
			name:    "Administrator inside the guest window",
			res:     reservation(domain.StatusDepending, date(2026, time.March, 11)),
			actor:   admin,
			allowed: true,
		},
		{
			name:    "Another guest",
			res:     reservation(domain.StatusSuccess, date(2026, time.March, 20)),
			actor:   domain.Principal{ID: 8, Roles: domain.Roles{domain.RoleGuest}},
			allowed: false,
		},
		{
			name:    "Depending reservation owned by guest",
			res:     reservation(domain.StatusDepending, date(2026, time.March, 20)),
			actor:   owner,
			allowed: true,
		},
		{
			name:    "Checked-in reservation, even for staff",
			res:     reservation(domain.StatusCheckedIn, date(2026, time.March, 8)),
			actor:   admin,
			allowed: false,
		},
		{
			name:    "Checked-out reservation",
			res:     reservation(domain.StatusCheckedOut, date(2026, time.March, 5)),
			actor:   receptionist,
			allowed: false,
		},
		{
			name:    "Already cancelled",
			res:     reservation(domain.StatusCanceled, date(2026, time.March, 20)),
			actor:   owner,
			allowed: false,
		},
		{
			name:    "Expired reservation",
			res:     reservation(domain.StatusExpired, date(2026, time.March, 20)),
			actor:   admin,
			allowed: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, reason := CanCancel(tc.res, tc.actor, today)
			assert.Equal(t, tc.allowed, allowed)
			if tc.allowed {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
