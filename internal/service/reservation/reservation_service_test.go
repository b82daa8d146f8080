package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, reservation *domain.Reservation, roomIDs []int64) error {
	args := m.Called(ctx, reservation, roomIDs)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) SearchByRoom(ctx context.Context, roomNumber int) ([]domain.Reservation, error) {
	args := m.Called(ctx, roomNumber)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) SearchByGuest(ctx context.Context, guestID int64) ([]domain.Reservation, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) HasOverlap(ctx context.Context, roomID int64, start, end time.Time, excludeReservationID int64) (bool, error) {
	args := m.Called(ctx, roomID, start, end, excludeReservationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) Confirm(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) (*domain.Reservation, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Cancel(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FinalizeCheckOut(ctx context.Context, id int64) (*domain.Reservation, *domain.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Reservation), args.Get(1).(*domain.Invoice), args.Error(2)
}

func (m *MockReservationRepository) ExpireDependingBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetGuest(ctx context.Context, id int64) (*domain.Guest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Guest), args.Error(1)
}

func (m *MockCatalogRepository) RoomsByNumbers(ctx context.Context, numbers []int) ([]domain.Room, error) {
	args := m.Called(ctx, numbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockCatalogRepository) FindAvailableRooms(ctx context.Context, start, end *time.Time) ([]domain.Room, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockCatalogRepository) ListActiveServices(ctx context.Context, ids []int64) ([]domain.Service, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.Service), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetOrCreate(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockLedger) GetByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockLedger) AttachServices(ctx context.Context, reservationID int64, serviceIDs []int64) (*domain.Invoice, error) {
	args := m.Called(ctx, reservationID, serviceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireRoomHold(ctx context.Context, roomID int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, roomID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseRoomHold(ctx context.Context, roomID int64) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// Fixed clock for date guards.
var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo *MockReservationRepository, catalog *MockCatalogRepository, ledger *MockLedger, cache *MockCache, producer *MockProducer) *ReservationService {
	return &ReservationService{
		reservations: repo,
		catalog:      catalog,
		ledger:       ledger,
		cache:        cache,
		producer:     producer,
		eventsTopic:  "reservation_events",
		roomHoldTTL:  30 * time.Second,
		dependingTTL: 48 * time.Hour,
		now:          func() time.Time { return testNow },
	}
}

func TestReservationService_Create_Success(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockCatalog := &MockCatalogRepository{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, mockCatalog, nil, mockCache, mockProducer)

	ctx := context.Background()
	input := CreateReservationInput{
		GuestID:     7,
		RoomNumbers: []int{101, 102},
		StartDate:   date(2026, time.March, 15),
		EndDate:     date(2026, time.March, 18),
	}

	rooms := []domain.Room{
		{ID: 1, Number: 101, PriceCents: 12000},
		{ID: 2, Number: 102, PriceCents: 15000},
	}

	mockCatalog.On("GetGuest", ctx, int64(7)).Return(&domain.Guest{ID: 7, Name: "Anna"}, nil).Once()
	mockCatalog.On("RoomsByNumbers", ctx, []int{101, 102}).Return(rooms, nil).Once()
	mockCache.On("AcquireRoomHold", ctx, int64(1), 30*time.Second).Return(true, nil).Once()
	mockCache.On("AcquireRoomHold", ctx, int64(2), 30*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseRoomHold", ctx, int64(1)).Return(nil).Once()
	mockCache.On("ReleaseRoomHold", ctx, int64(2)).Return(nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Reservation"), []int64{1, 2}).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Reservation).ID = 42
			args.Get(1).(*domain.Reservation).Status = domain.StatusDepending
		}).Return(nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, err := service.Create(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, domain.StatusDepending, res.Status)
	assert.Equal(t, int64(7), res.GuestID)
	assert.Equal(t, date(2026, time.March, 15), res.StartDate)
	assert.Len(t, res.Rooms, 2)

	mockRepo.AssertExpectations(t)
	mockCatalog.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestReservationService_Create_ValidationErrors(t *testing.T) {
	service := newTestService(&MockReservationRepository{}, &MockCatalogRepository{}, nil, nil, nil)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input CreateReservationInput
	}{
		{
			name: "No rooms",
			input: CreateReservationInput{
				GuestID:   7,
				StartDate: date(2026, time.March, 15),
				EndDate:   date(2026, time.March, 18),
			},
		},
		{
			name: "Start equals end",
			input: CreateReservationInput{
				GuestID:     7,
				RoomNumbers: []int{101},
				StartDate:   date(2026, time.March, 15),
				EndDate:     date(2026, time.March, 15),
			},
		},
		{
			name: "Start after end",
			input: CreateReservationInput{
				GuestID:     7,
				RoomNumbers: []int{101},
				StartDate:   date(2026, time.March, 18),
				EndDate:     date(2026, time.March, 15),
			},
		},
		{
			name: "Start in the past",
			input: CreateReservationInput{
				GuestID:     7,
				RoomNumbers: []int{101},
				StartDate:   date(2026, time.March, 1),
				EndDate:     date(2026, time.March, 5),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := service.Create(ctx, tc.input)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestReservationService_Create_RoomOutOfService(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockCatalog := &MockCatalogRepository{}

	service := newTestService(mockRepo, mockCatalog, nil, nil, nil)

	ctx := context.Background()
	input := CreateReservationInput{
		GuestID:     7,
		RoomNumbers: []int{101},
		StartDate:   date(2026, time.March, 15),
		EndDate:     date(2026, time.March, 18),
	}

	mockCatalog.On("GetGuest", ctx, int64(7)).Return(&domain.Guest{ID: 7}, nil).Once()
	mockCatalog.On("RoomsByNumbers", ctx, []int{101}).
		Return([]domain.Room{{ID: 1, Number: 101, OutOfService: true}}, nil).Once()

	res, err := service.Create(ctx, input)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrValidation)
	mockRepo.AssertNotCalled(t, "Create")
}

// Concurrent bookings for the same room: the second request loses the
// redis hold and fails fast without touching the store.
func TestReservationService_Create_RoomHeldByAnotherRequest(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockCatalog := &MockCatalogRepository{}
	mockCache := &MockCache{}

	service := newTestService(mockRepo, mockCatalog, nil, mockCache, nil)

	ctx := context.Background()
	input := CreateReservationInput{
		GuestID:     7,
		RoomNumbers: []int{101},
		StartDate:   date(2026, time.March, 15),
		EndDate:     date(2026, time.March, 18),
	}

	mockCatalog.On("GetGuest", ctx, int64(7)).Return(&domain.Guest{ID: 7}, nil).Once()
	mockCatalog.On("RoomsByNumbers", ctx, []int{101}).
		Return([]domain.Room{{ID: 1, Number: 101}}, nil).Once()
	mockCache.On("AcquireRoomHold", ctx, int64(1), 30*time.Second).Return(false, nil).Once()

	res, err := service.Create(ctx, input)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrBusy)
	mockCache.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Create")
}

// Overlapping dates detected inside the repository transaction surface
// as a conflict; exactly one of two competing bookings wins.
func TestReservationService_Create_OverlapConflict(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockCatalog := &MockCatalogRepository{}
	mockCache := &MockCache{}

	service := newTestService(mockRepo, mockCatalog, nil, mockCache, nil)

	ctx := context.Background()
	input := CreateReservationInput{
		GuestID:     7,
		RoomNumbers: []int{101},
		StartDate:   date(2026, time.March, 16),
		EndDate:     date(2026, time.March, 19),
	}

	conflictErr := errors.New("room 101 is already reserved for the requested dates: conflict")

	mockCatalog.On("GetGuest", ctx, int64(7)).Return(&domain.Guest{ID: 7}, nil).Once()
	mockCatalog.On("RoomsByNumbers", ctx, []int{101}).
		Return([]domain.Room{{ID: 1, Number: 101}}, nil).Once()
	mockCache.On("AcquireRoomHold", ctx, int64(1), 30*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseRoomHold", ctx, int64(1)).Return(nil).Once()
	mockRepo.On("Create", ctx, mock.Anything, []int64{1}).Return(conflictErr).Once()

	res, err := service.Create(ctx, input)

	assert.Nil(t, res)
	assert.Equal(t, conflictErr, err)
	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestReservationService_Confirm_Success(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	confirmed := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 15),
		EndDate:   date(2026, time.March, 18),
		Status:    domain.StatusSuccess,
	}

	mockRepo.On("Confirm", ctx, int64(42)).Return(confirmed, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, err := service.Confirm(ctx, 42)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)
	mockRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestReservationService_CheckIn_Success(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 10),
		EndDate:   date(2026, time.March, 13),
		Status:    domain.StatusSuccess,
	}
	checkedIn := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: existing.StartDate,
		EndDate:   existing.EndDate,
		Status:    domain.StatusCheckedIn,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()
	mockRepo.On("UpdateStatus", ctx, int64(42), domain.StatusSuccess, domain.StatusCheckedIn).Return(checkedIn, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, err := service.CheckIn(ctx, 42)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedIn, res.Status)
	mockRepo.AssertExpectations(t)
}

func TestReservationService_CheckIn_BeforeArrivalDate(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		StartDate: date(2026, time.March, 15),
		EndDate:   date(2026, time.March, 18),
		Status:    domain.StatusSuccess,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	res, err := service.CheckIn(ctx, 42)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrDateNotReached)
	mockRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestReservationService_CheckIn_WrongStatus(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()

	for _, status := range []domain.ReservationStatus{
		domain.StatusDepending,
		domain.StatusCheckedIn,
		domain.StatusCheckedOut,
		domain.StatusCanceled,
		domain.StatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			existing := &domain.Reservation{
				ID:        42,
				StartDate: date(2026, time.March, 10),
				EndDate:   date(2026, time.March, 13),
				Status:    status,
			}
			mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

			res, err := service.CheckIn(ctx, 42)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
	mockRepo.AssertNotCalled(t, "UpdateStatus")
}

// Check-out closes the invoice with the room charges and whatever
// services were attached during the stay.
func TestReservationService_CheckOut_Success(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 7),
		EndDate:   date(2026, time.March, 10),
		Status:    domain.StatusCheckedIn,
	}
	checkedOut := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: existing.StartDate,
		EndDate:   existing.EndDate,
		Status:    domain.StatusCheckedOut,
	}
	// 3 nights at 12000 plus one 4500 service.
	closedInvoice := &domain.Invoice{
		ID:            9,
		ReservationID: 42,
		AmountCents:   40500,
		Status:        domain.InvoiceStatusClosed,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()
	mockRepo.On("FinalizeCheckOut", ctx, int64(42)).Return(checkedOut, closedInvoice, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, invoice, err := service.CheckOut(ctx, 42)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedOut, res.Status)
	assert.Equal(t, domain.InvoiceStatusClosed, invoice.Status)
	assert.Equal(t, int64(40500), invoice.AmountCents)
	mockRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestReservationService_CheckOut_BeforeDepartureDate(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		StartDate: date(2026, time.March, 8),
		EndDate:   date(2026, time.March, 12),
		Status:    domain.StatusCheckedIn,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	res, invoice, err := service.CheckOut(ctx, 42)

	assert.Nil(t, res)
	assert.Nil(t, invoice)
	assert.ErrorIs(t, err, domain.ErrDateNotReached)
	mockRepo.AssertNotCalled(t, "FinalizeCheckOut")
}

func TestReservationService_CheckOut_NotCheckedIn(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		StartDate: date(2026, time.March, 7),
		EndDate:   date(2026, time.March, 10),
		Status:    domain.StatusSuccess,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	res, invoice, err := service.CheckOut(ctx, 42)

	assert.Nil(t, res)
	assert.Nil(t, invoice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	mockRepo.AssertNotCalled(t, "FinalizeCheckOut")
}

// A guest one day before arrival is rejected by the policy; a
// receptionist cancelling the same reservation succeeds.
func TestReservationService_Cancel_PolicyWindow(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 11),
		EndDate:   date(2026, time.March, 14),
		Status:    domain.StatusSuccess,
	}

	guest := domain.Principal{ID: 7, Roles: domain.Roles{domain.RoleGuest}}
	receptionist := domain.Principal{ID: 99, Roles: domain.Roles{domain.RoleReceptionist}}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Twice()

	res, err := service.Cancel(ctx, 42, guest)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrPolicyDenied)
	mockRepo.AssertNotCalled(t, "Cancel")

	canceled := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: existing.StartDate,
		EndDate:   existing.EndDate,
		Status:    domain.StatusCanceled,
	}
	mockRepo.On("Cancel", ctx, int64(42)).Return(canceled, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, err = service.Cancel(ctx, 42, receptionist)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, res.Status)
	mockRepo.AssertExpectations(t)
}

func TestReservationService_Cancel_OwnReservationWithinWindow(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 12),
		EndDate:   date(2026, time.March, 15),
		Status:    domain.StatusDepending,
	}
	canceled := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: existing.StartDate,
		EndDate:   existing.EndDate,
		Status:    domain.StatusCanceled,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()
	mockRepo.On("Cancel", ctx, int64(42)).Return(canceled, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()

	res, err := service.Cancel(ctx, 42, domain.Principal{ID: 7, Roles: domain.Roles{domain.RoleGuest}})

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, res.Status)
	mockRepo.AssertExpectations(t)
}

func TestReservationService_Cancel_ForeignReservation(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 20),
		EndDate:   date(2026, time.March, 23),
		Status:    domain.StatusSuccess,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	res, err := service.Cancel(ctx, 42, domain.Principal{ID: 8, Roles: domain.Roles{domain.RoleGuest}})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	mockRepo.AssertNotCalled(t, "Cancel")
}

func TestReservationService_Cancel_TerminalStatus(t *testing.T) {
	mockRepo := &MockReservationRepository{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, nil)

	ctx := context.Background()

	for _, status := range []domain.ReservationStatus{
		domain.StatusCheckedIn,
		domain.StatusCheckedOut,
		domain.StatusCanceled,
		domain.StatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			existing := &domain.Reservation{
				ID:        42,
				GuestID:   7,
				StartDate: date(2026, time.March, 20),
				EndDate:   date(2026, time.March, 23),
				Status:    status,
			}
			mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

			res, err := service.Cancel(ctx, 42, domain.Principal{ID: 99, Roles: domain.Roles{domain.RoleAdministrator}})

			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrPolicyDenied)
		})
	}
	mockRepo.AssertNotCalled(t, "Cancel")
}

func TestReservationService_AttachServices_Success(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockLedger := &MockLedger{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, mockLedger, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 8),
		EndDate:   date(2026, time.March, 12),
		Status:    domain.StatusCheckedIn,
	}
	updated := &domain.Invoice{
		ID:            9,
		ReservationID: 42,
		AmountCents:   52500,
		Status:        domain.InvoiceStatusLive,
		Services:      []domain.Service{{ID: 3, Name: "breakfast", PriceCents: 4500}},
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()
	mockLedger.On("AttachServices", ctx, int64(42), []int64{3}).Return(updated, nil).Once()

	invoice, err := service.AttachServices(ctx, 42, domain.Principal{ID: 7, Roles: domain.Roles{domain.RoleGuest}}, []int64{3})

	assert.NoError(t, err)
	assert.Equal(t, int64(52500), invoice.AmountCents)
	mockRepo.AssertExpectations(t)
	mockLedger.AssertExpectations(t)
}

// Services cannot be added to a cancelled reservation.
func TestReservationService_AttachServices_CanceledReservation(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockLedger := &MockLedger{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, mockLedger, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 8),
		EndDate:   date(2026, time.March, 12),
		Status:    domain.StatusCanceled,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	invoice, err := service.AttachServices(ctx, 42, domain.Principal{ID: 7, Roles: domain.Roles{domain.RoleGuest}}, []int64{3})

	assert.Nil(t, invoice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	mockLedger.AssertNotCalled(t, "AttachServices")
}

func TestReservationService_AttachServices_ForeignReservation(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockLedger := &MockLedger{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, mockLedger, nil, nil)

	ctx := context.Background()
	existing := &domain.Reservation{
		ID:        42,
		GuestID:   7,
		StartDate: date(2026, time.March, 8),
		EndDate:   date(2026, time.March, 12),
		Status:    domain.StatusCheckedIn,
	}

	mockRepo.On("GetByID", ctx, int64(42)).Return(existing, nil).Once()

	invoice, err := service.AttachServices(ctx, 42, domain.Principal{ID: 8, Roles: domain.Roles{domain.RoleGuest}}, []int64{3})

	assert.Nil(t, invoice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	mockLedger.AssertNotCalled(t, "AttachServices")
}

func TestReservationService_AttachServices_EmptyBatch(t *testing.T) {
	service := newTestService(&MockReservationRepository{}, &MockCatalogRepository{}, &MockLedger{}, nil, nil)

	invoice, err := service.AttachServices(context.Background(), 42, domain.Principal{ID: 7}, nil)

	assert.Nil(t, invoice)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReservationService_ExpireStale(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	expired := []domain.Reservation{
		{ID: 1, GuestID: 7, Status: domain.StatusExpired},
		{ID: 2, GuestID: 8, Status: domain.StatusExpired},
	}

	cutoff := testNow.Add(-48 * time.Hour)
	mockRepo.On("ExpireDependingBefore", ctx, cutoff).Return(expired, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "1", mock.Anything).Return(nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "2", mock.Anything).Return(nil).Once()

	result, err := service.ExpireStale(ctx)

	assert.NoError(t, err)
	assert.Equal(t, expired, result)
	mockRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestReservationService_ExpireStale_Error(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	expectedErr := errors.New("database error")
	mockRepo.On("ExpireDependingBefore", ctx, mock.AnythingOfType("time.Time")).Return(nil, expectedErr).Once()

	result, err := service.ExpireStale(ctx)

	assert.Nil(t, result)
	assert.Equal(t, expectedErr, err)
	mockProducer.AssertNotCalled(t, "Publish")
}

// Publishing failures are logged, never surfaced to the caller.
func TestReservationService_PublishFailureIsSwallowed(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)

	ctx := context.Background()
	confirmed := &domain.Reservation{ID: 42, GuestID: 7, Status: domain.StatusSuccess}

	mockRepo.On("Confirm", ctx, int64(42)).Return(confirmed, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).
		Return(errors.New("kafka unavailable")).Once()

	res, err := service.Confirm(ctx, 42)

	assert.NoError(t, err)
	assert.NotNil(t, res)
	mockProducer.AssertExpectations(t)
}

func TestReservationService_Publish_WithNotifications(t *testing.T) {
	mockRepo := &MockReservationRepository{}
	mockProducer := &MockProducer{}

	service := newTestService(mockRepo, &MockCatalogRepository{}, nil, nil, mockProducer)
	service.notificationsTopic = "reservation_notifications"

	ctx := context.Background()
	confirmed := &domain.Reservation{ID: 42, GuestID: 7, Status: domain.StatusSuccess}

	mockRepo.On("Confirm", ctx, int64(42)).Return(confirmed, nil).Once()
	mockProducer.On("Publish", ctx, "reservation_events", "42", mock.Anything).Return(nil).Once()
	mockProducer.On("Publish", ctx, "reservation_notifications", "42", mock.Anything).Return(nil).Once()

	_, err := service.Confirm(ctx, 42)

	assert.NoError(t, err)
	mockProducer.AssertExpectations(t)
}
