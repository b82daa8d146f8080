package reservation

import (
	"fmt"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
)

// MinCancellationDays is the minimum lead time, in days before arrival,
// a guest must give to cancel their own reservation. Staff are not bound
// by it.
const MinCancellationDays = 2

// CanCancel is the cancellation policy: a pure decision over the
// reservation, the acting party and today's date. It never touches the
// store. Ownership is re-checked here so the policy stands on its own
// even when a caller forgets the boundary check.
func CanCancel(res *domain.Reservation, actor domain.Principal, today time.Time) (bool, string) {
	switch res.Status {
	case domain.StatusDepending, domain.StatusSuccess:
	default:
		return false, fmt.Sprintf("reservation in status %s cannot be cancelled", res.Status)
	}

	if actor.Roles.Privileged() {
		return true, ""
	}
	if actor.ID != res.GuestID {
		return false, "only the reservation's own guest or staff may cancel"
	}

	days := int(dateOnly(res.StartDate).Sub(dateOnly(today)).Hours() / 24)
	if days < MinCancellationDays {
		return false, fmt.Sprintf("guests must cancel at least %d days before arrival", MinCancellationDays)
	}
	return true, ""
}
