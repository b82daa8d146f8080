package reservation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/hotelguru/hotelguru/internal/kafka"
	"github.com/hotelguru/hotelguru/internal/repository"
	"github.com/sirupsen/logrus"
)

type ReservationUseCase interface {
	Create(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	Confirm(ctx context.Context, id int64) (*domain.Reservation, error)
	CheckIn(ctx context.Context, id int64) (*domain.Reservation, error)
	CheckOut(ctx context.Context, id int64) (*domain.Reservation, *domain.Invoice, error)
	Cancel(ctx context.Context, id int64, actor domain.Principal) (*domain.Reservation, error)
	AttachServices(ctx context.Context, id int64, actor domain.Principal, serviceIDs []int64) (*domain.Invoice, error)
	Get(ctx context.Context, id int64) (*domain.Reservation, error)
	List(ctx context.Context) ([]domain.Reservation, error)
	SearchByRoom(ctx context.Context, roomNumber int) ([]domain.Reservation, error)
	SearchByGuest(ctx context.Context, guestID int64) ([]domain.Reservation, error)
	ExpireStale(ctx context.Context) ([]domain.Reservation, error)
}

type Cache interface {
	AcquireRoomHold(ctx context.Context, roomID int64, ttl time.Duration) (bool, error)
	ReleaseRoomHold(ctx context.Context, roomID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// InvoiceLedger is the monetary counterpart of the state machine. The
// check-out path finalizes the invoice inside the repository transaction;
// this interface serves the service-attachment and read paths. Reads go
// through GetByReservation: only the mutating paths may create the
// invoice lazily.
type InvoiceLedger interface {
	GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	AttachServices(ctx context.Context, reservationID int64, serviceIDs []int64) (*domain.Invoice, error)
}

type ReservationService struct {
	reservations       repository.ReservationRepository
	catalog            repository.CatalogRepository
	ledger             InvoiceLedger
	cache              Cache
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	roomHoldTTL        time.Duration
	dependingTTL       time.Duration
	now                func() time.Time
}

type CreateReservationInput struct {
	GuestID         int64     `json:"guest_id"`
	RoomNumbers     []int     `json:"room_numbers"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ReservationDate time.Time `json:"reservation_date"`
}

type ReservationServiceOption func(*ReservationService)

func WithNotificationsTopic(topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notificationsTopic = topic
	}
}

// WithClock overrides the time source used for date guards.
func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		s.now = now
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	catalog repository.CatalogRepository,
	ledger InvoiceLedger,
	cache Cache,
	producer Producer,
	eventsTopic string,
	roomHoldTTL, dependingTTL time.Duration,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		reservations: reservations,
		catalog:      catalog,
		ledger:       ledger,
		cache:        cache,
		producer:     producer,
		eventsTopic:  eventsTopic,
		roomHoldTTL:  roomHoldTTL,
		dependingTTL: dependingTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Create books rooms for a guest over [start, end), entering the
// lifecycle at Depending. The overlap check and the insert run in one
// serializable transaction in the repository; on top of that a per-room
// redis hold makes concurrent requests for the same room fail fast.
func (s *ReservationService) Create(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error) {
	if len(input.RoomNumbers) == 0 {
		return nil, fmt.Errorf("%w: at least one room number is required", domain.ErrValidation)
	}

	start := dateOnly(input.StartDate)
	end := dateOnly(input.EndDate)
	today := dateOnly(s.now())
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start date must be before end date", domain.ErrValidation)
	}
	if start.Before(today) {
		return nil, fmt.Errorf("%w: reservations cannot start in the past", domain.ErrValidation)
	}

	reservationDate := today
	if !input.ReservationDate.IsZero() {
		reservationDate = dateOnly(input.ReservationDate)
	}

	guest, err := s.catalog.GetGuest(ctx, input.GuestID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.catalog.RoomsByNumbers(ctx, input.RoomNumbers)
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		if room.OutOfService {
			return nil, fmt.Errorf("%w: room %d is out of service", domain.ErrValidation, room.Number)
		}
	}

	roomIDs := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}

	held, err := s.holdRooms(ctx, roomIDs)
	if err != nil {
		s.releaseRooms(ctx, held)
		return nil, err
	}
	defer s.releaseRooms(ctx, held)

	res := &domain.Reservation{
		GuestID:         guest.ID,
		StartDate:       start,
		EndDate:         end,
		ReservationDate: reservationDate,
	}
	if err := s.reservations.Create(ctx, res, roomIDs); err != nil {
		return nil, err
	}
	res.Rooms = rooms

	logrus.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"guest_id":       res.GuestID,
		"rooms":          input.RoomNumbers,
	}).Info("reservation created")
	s.publish(ctx, "reservation_created", res, 0)
	return res, nil
}

// Confirm moves a Depending reservation to Success after the repository
// re-checks every room for overlaps, excluding the reservation itself.
func (s *ReservationService) Confirm(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := s.reservations.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}
	logrus.WithField("reservation_id", id).Info("reservation confirmed")
	s.publish(ctx, "reservation_confirmed", res, 0)
	return res, nil
}

// CheckIn admits the guest: allowed only from Success, and only on the
// arrival date itself.
func (s *ReservationService) CheckIn(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.StatusSuccess {
		return nil, fmt.Errorf("%w: cannot check in reservation in status %s", domain.ErrInvalidState, res.Status)
	}
	if !dateOnly(s.now()).Equal(dateOnly(res.StartDate)) {
		return nil, fmt.Errorf("%w: check-in is only possible on the arrival date %s",
			domain.ErrDateNotReached, res.StartDate.Format(time.DateOnly))
	}

	updated, err := s.reservations.UpdateStatus(ctx, id, domain.StatusSuccess, domain.StatusCheckedIn)
	if err != nil {
		return nil, err
	}
	logrus.WithField("reservation_id", id).Info("guest checked in")
	s.publish(ctx, "reservation_checked_in", updated, 0)
	return updated, nil
}

// CheckOut releases the guest: allowed only from CheckedIn, on or after
// the departure date. The status transition, the invoice finalization
// and the room flag reset commit or roll back together.
func (s *ReservationService) CheckOut(ctx context.Context, id int64) (*domain.Reservation, *domain.Invoice, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if res.Status != domain.StatusCheckedIn {
		return nil, nil, fmt.Errorf("%w: cannot check out reservation in status %s", domain.ErrInvalidState, res.Status)
	}
	if dateOnly(s.now()).Before(dateOnly(res.EndDate)) {
		return nil, nil, fmt.Errorf("%w: check-out is possible from the departure date %s",
			domain.ErrDateNotReached, res.EndDate.Format(time.DateOnly))
	}

	updated, invoice, err := s.reservations.FinalizeCheckOut(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"invoice_id":     invoice.ID,
		"amount_cents":   invoice.AmountCents,
	}).Info("guest checked out, invoice closed")
	s.publish(ctx, "reservation_checked_out", updated, invoice.AmountCents)
	return updated, invoice, nil
}

// Cancel applies the cancellation policy for the acting party and, when
// allowed, cancels the reservation and forces its invoice to Canceled.
func (s *ReservationService) Cancel(ctx context.Context, id int64, actor domain.Principal) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != res.GuestID && !actor.Roles.Privileged() {
		return nil, fmt.Errorf("%w: reservation %d belongs to another guest", domain.ErrForbidden, id)
	}

	if ok, reason := CanCancel(res, actor, s.now()); !ok {
		logrus.WithFields(logrus.Fields{
			"reservation_id": id,
			"actor_id":       actor.ID,
		}).Warn("cancellation denied: " + reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, reason)
	}

	canceled, err := s.reservations.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"actor_id":       actor.ID,
	}).Info("reservation cancelled")
	s.publish(ctx, "reservation_cancelled", canceled, 0)
	return canceled, nil
}

// AttachServices adds service line items to the reservation's invoice.
// Permitted only to the owning guest or staff, only while the
// reservation is Success or CheckedIn, and only while the invoice is
// still Live.
func (s *ReservationService) AttachServices(ctx context.Context, id int64, actor domain.Principal, serviceIDs []int64) (*domain.Invoice, error) {
	if len(serviceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service id is required", domain.ErrValidation)
	}

	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != res.GuestID && !actor.Roles.Privileged() {
		return nil, fmt.Errorf("%w: reservation %d belongs to another guest", domain.ErrForbidden, id)
	}
	if res.Status != domain.StatusSuccess && res.Status != domain.StatusCheckedIn {
		return nil, fmt.Errorf("%w: services can only be added in status Success or CheckedIn, not %s",
			domain.ErrInvalidState, res.Status)
	}

	invoice, err := s.ledger.AttachServices(ctx, id, serviceIDs)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"invoice_id":     invoice.ID,
		"amount_cents":   invoice.AmountCents,
	}).Info("services attached to invoice")
	return invoice, nil
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

func (s *ReservationService) List(ctx context.Context) ([]domain.Reservation, error) {
	return s.reservations.ListAll(ctx)
}

func (s *ReservationService) SearchByRoom(ctx context.Context, roomNumber int) ([]domain.Reservation, error) {
	return s.reservations.SearchByRoom(ctx, roomNumber)
}

func (s *ReservationService) SearchByGuest(ctx context.Context, guestID int64) ([]domain.Reservation, error) {
	return s.reservations.SearchByGuest(ctx, guestID)
}

// ExpireStale lapses Depending reservations that sat unconfirmed longer
// than the configured hold TTL, releasing the rooms they were blocking.
func (s *ReservationService) ExpireStale(ctx context.Context) ([]domain.Reservation, error) {
	cutoff := s.now().Add(-s.dependingTTL)
	expired, err := s.reservations.ExpireDependingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.publish(ctx, "reservation_expired", &expired[i], 0)
	}
	return expired, nil
}

func (s *ReservationService) holdRooms(ctx context.Context, roomIDs []int64) ([]int64, error) {
	if s.cache == nil {
		return nil, nil
	}
	held := make([]int64, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		ok, err := s.cache.AcquireRoomHold(ctx, roomID, s.roomHoldTTL)
		if err != nil {
			return held, fmt.Errorf("%w: room hold: %v", domain.ErrBusy, err)
		}
		if !ok {
			return held, fmt.Errorf("%w: room %d is being booked by another request", domain.ErrBusy, roomID)
		}
		held = append(held, roomID)
	}
	return held, nil
}

func (s *ReservationService) releaseRooms(ctx context.Context, roomIDs []int64) {
	if s.cache == nil {
		return
	}
	for _, roomID := range roomIDs {
		_ = s.cache.ReleaseRoomHold(ctx, roomID)
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, res *domain.Reservation, amountCents int64) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	roomNumbers := make([]int, 0, len(res.Rooms))
	for _, room := range res.Rooms {
		roomNumbers = append(roomNumbers, room.Number)
	}
	event := kafka.ReservationEvent{
		Type:          eventType,
		ReservationID: res.ID,
		GuestID:       res.GuestID,
		Status:        string(res.Status),
		StartDate:     res.StartDate,
		EndDate:       res.EndDate,
		RoomNumbers:   roomNumbers,
		AmountCents:   amountCents,
		OccurredAt:    s.now(),
	}
	key := strconv.FormatInt(res.ID, 10)
	if err := s.producer.Publish(ctx, s.eventsTopic, key, event); err != nil {
		logrus.WithError(err).WithField("reservation_id", res.ID).Warnf("failed to publish %s event", eventType)
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, key, event); err != nil {
			logrus.WithError(err).WithField("reservation_id", res.ID).Warnf("failed to publish %s notification", eventType)
		}
	}
}

// dateOnly truncates to midnight UTC; the engine reasons in whole days.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ ReservationUseCase = (*ReservationService)(nil)
