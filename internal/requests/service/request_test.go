package service

import (
	"context"
	"strings"
	"testing"
	"time"

	hallserrors "hallbook/internal/halls/errors"
	requestserrors "hallbook/internal/requests/errors"
	"hallbook/internal/requests/validator"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"
)

// Mock repositories for testing

type mockRequestRepository struct {
	createFunc                func(ctx context.Context, req *model.BookingRequest) error
	findByIDFunc              func(ctx context.Context, id string) (*model.BookingRequest, error)
	findAllFunc               func(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, error)
	countFunc                 func(ctx context.Context) (int64, error)
	findPendingFunc           func(ctx context.Context, hallKey string) ([]*model.BookingRequest, error)
	findByTokenFunc           func(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error)
	consumeTokenFunc          func(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error)
	transitionStatusFunc      func(ctx context.Context, id string, from, to model.Status) error
	reclassifyOverlappingFunc func(ctx context.Context, hallKey string, start, end time.Time) (int64, error)
	deleteElapsedFunc         func(ctx context.Context, cutoff time.Time) (int64, error)
	deleteStalePendingFunc    func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockRequestRepository) Create(ctx context.Context, req *model.BookingRequest) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	req.ID = "65a000000000000000000001"
	return nil
}

func (m *mockRequestRepository) FindByID(ctx context.Context, id string) (*model.BookingRequest, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, requestserrors.ErrNotFound
}

func (m *mockRequestRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.BookingRequest{}, nil
}

func (m *mockRequestRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockRequestRepository) FindPending(ctx context.Context, hallKey string) ([]*model.BookingRequest, error) {
	if m.findPendingFunc != nil {
		return m.findPendingFunc(ctx, hallKey)
	}
	return []*model.BookingRequest{}, nil
}

func (m *mockRequestRepository) FindByToken(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
	if m.findByTokenFunc != nil {
		return m.findByTokenFunc(ctx, token, expected, now)
	}
	return nil, requestserrors.ErrTokenNotFound
}

func (m *mockRequestRepository) ConsumeToken(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
	if m.consumeTokenFunc != nil {
		return m.consumeTokenFunc(ctx, token, expected, now, next)
	}
	return nil, requestserrors.ErrTokenNotFound
}

func (m *mockRequestRepository) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	if m.transitionStatusFunc != nil {
		return m.transitionStatusFunc(ctx, id, from, to)
	}
	return nil
}

func (m *mockRequestRepository) ReclassifyOverlapping(ctx context.Context, hallKey string, start, end time.Time) (int64, error) {
	if m.reclassifyOverlappingFunc != nil {
		return m.reclassifyOverlappingFunc(ctx, hallKey, start, end)
	}
	return 0, nil
}

func (m *mockRequestRepository) DeleteElapsed(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteElapsedFunc != nil {
		return m.deleteElapsedFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockRequestRepository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteStalePendingFunc != nil {
		return m.deleteStalePendingFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockRequestRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockHallRepository struct {
	createFunc            func(ctx context.Context, hall *model.Hall) error
	findByKeyFunc         func(ctx context.Context, key string) (*model.Hall, error)
	findAllFunc           func(ctx context.Context) ([]*model.Hall, error)
	appendReservationFunc func(ctx context.Context, key string, version int64, res model.Reservation) error
	removeReservationFunc func(ctx context.Context, key string, sourceRequestID string) error
	sweepExpiredFunc      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockHallRepository) Create(ctx context.Context, hall *model.Hall) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, hall)
	}
	return nil
}

func (m *mockHallRepository) FindByKey(ctx context.Context, key string) (*model.Hall, error) {
	if m.findByKeyFunc != nil {
		return m.findByKeyFunc(ctx, key)
	}
	return nil, hallserrors.ErrNotFound
}

func (m *mockHallRepository) FindAll(ctx context.Context) ([]*model.Hall, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx)
	}
	return []*model.Hall{}, nil
}

func (m *mockHallRepository) AppendReservation(ctx context.Context, key string, version int64, res model.Reservation) error {
	if m.appendReservationFunc != nil {
		return m.appendReservationFunc(ctx, key, version, res)
	}
	return nil
}

func (m *mockHallRepository) RemoveReservationBySource(ctx context.Context, key string, sourceRequestID string) error {
	if m.removeReservationFunc != nil {
		return m.removeReservationFunc(ctx, key, sourceRequestID)
	}
	return nil
}

func (m *mockHallRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.sweepExpiredFunc != nil {
		return m.sweepExpiredFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *mockHallRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// Test fixtures

var testClock = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		TokenTTL:           15 * time.Minute,
		CleanupMinInterval: 30 * time.Second,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
	}
}

func newTestService(requests *mockRequestRepository, halls *mockHallRepository) *bookingService {
	cfg := testConfig()
	svc := &bookingService{
		repo:      requests,
		halls:     halls,
		validator: validator.NewRequestValidator(cfg.Log),
		tokens:    &TokenIssuer{ttl: cfg.TokenTTL, now: func() time.Time { return testClock }},
		notifier:  NewNoopNotifier(),
		cfg:       cfg,
		now:       func() time.Time { return testClock },
	}
	return svc
}

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{
		HallName:    "Main Hall",
		RequesterID: "user-1",
		Label:       "Algorithms Lecture",
		Start:       ts(10),
		End:         ts(12),
	}
}

func freeHall() *model.Hall {
	return &model.Hall{
		ID:      "65a0000000000000000000aa",
		Name:    "Main Hall",
		NameKey: "main hall",
		Version: 3,
	}
}

// Tests

func TestCreate_AutoBooksFreeSlot(t *testing.T) {
	hall := freeHall()
	var appended *model.Reservation
	var appendedVersion int64

	halls := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			if key != "main hall" {
				t.Errorf("expected lookup by normalized key, got %q", key)
			}
			return hall, nil
		},
		appendReservationFunc: func(ctx context.Context, key string, version int64, res model.Reservation) error {
			appended = &res
			appendedVersion = version
			return nil
		},
	}
	svc := newTestService(&mockRequestRepository{}, halls)

	req := validRequest()
	if err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != model.StatusAutoBooked {
		t.Errorf("expected status %s, got %s", model.StatusAutoBooked, req.Status)
	}
	if req.Token == "" || req.TokenExpiry == nil {
		t.Error("expected an action token on the created request")
	}
	if appended == nil {
		t.Fatal("expected a reservation to be committed")
	}
	if appendedVersion != 3 {
		t.Errorf("expected append conditioned on version 3, got %d", appendedVersion)
	}
	if appended.SourceRequestID != req.ID {
		t.Errorf("reservation source %q does not match request id %q", appended.SourceRequestID, req.ID)
	}
}

func TestCreate_ParksConflictingRequestAsPending(t *testing.T) {
	hall := freeHall()
	hall.Reservations = []model.Reservation{
		{ReservationID: "r1", Start: ts(11), End: ts(13)},
	}

	var reclassified bool
	halls := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			return hall, nil
		},
		appendReservationFunc: func(ctx context.Context, key string, version int64, res model.Reservation) error {
			t.Error("conflicting request must not commit a reservation")
			return nil
		},
	}
	requests := &mockRequestRepository{
		reclassifyOverlappingFunc: func(ctx context.Context, hallKey string, start, end time.Time) (int64, error) {
			reclassified = true
			if hallKey != "main hall" {
				t.Errorf("unexpected hall key %q", hallKey)
			}
			return 1, nil
		},
	}
	svc := newTestService(requests, halls)

	req := validRequest()
	if err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != model.StatusPending {
		t.Errorf("expected status %s, got %s", model.StatusPending, req.Status)
	}
	if req.Token == "" {
		t.Error("pending request must still carry an action token")
	}
	if !reclassified {
		t.Error("expected overlapping settled requests to be reclassified")
	}
}

func TestCreate_RetriesOnHallVersionConflict(t *testing.T) {
	hall := freeHall()
	attempts := 0

	halls := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			return hall, nil
		},
		appendReservationFunc: func(ctx context.Context, key string, version int64, res model.Reservation) error {
			attempts++
			if attempts == 1 {
				return hallserrors.ErrVersionConflict
			}
			return nil
		},
	}
	svc := newTestService(&mockRequestRepository{}, halls)

	req := validRequest()
	if err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempts != 2 {
		t.Errorf("expected 2 append attempts, got %d", attempts)
	}
	if req.Status != model.StatusAutoBooked {
		t.Errorf("expected status %s, got %s", model.StatusAutoBooked, req.Status)
	}
}

func TestCreate_RejectsInvalidInterval(t *testing.T) {
	svc := newTestService(&mockRequestRepository{}, &mockHallRepository{})

	tests := []struct {
		name   string
		mutate func(req *model.BookingRequest)
	}{
		{
			name:   "inverted interval",
			mutate: func(req *model.BookingRequest) { req.Start, req.End = req.End, req.Start },
		},
		{
			name:   "zero-length interval",
			mutate: func(req *model.BookingRequest) { req.End = req.Start },
		},
		{
			name:   "start in the past",
			mutate: func(req *model.BookingRequest) { req.Start = testClock.Add(-time.Hour); req.End = testClock.Add(time.Hour) },
		},
		{
			name:   "missing requester",
			mutate: func(req *model.BookingRequest) { req.RequesterID = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := svc.Create(context.Background(), req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Errorf("expected %s, got %v", apperrors.CodeValidation, err)
			}
		})
	}
}

func TestCreate_UnknownHall(t *testing.T) {
	svc := newTestService(&mockRequestRepository{}, &mockHallRepository{})

	err := svc.Create(context.Background(), validRequest())
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestDecideByToken_Approve(t *testing.T) {
	pending := validRequest()
	pending.ID = "65a000000000000000000001"
	pending.HallKey = "main hall"
	pending.Status = model.StatusPending
	pending.Token = "tok-1"

	var appended bool
	halls := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			return freeHall(), nil
		},
		appendReservationFunc: func(ctx context.Context, key string, version int64, res model.Reservation) error {
			appended = true
			return nil
		},
	}
	requests := &mockRequestRepository{
		findByTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
			if token != "tok-1" || expected != model.StatusPending {
				return nil, requestserrors.ErrTokenNotFound
			}
			return pending, nil
		},
		consumeTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
			if next != model.StatusApproved {
				t.Errorf("expected transition to %s, got %s", model.StatusApproved, next)
			}
			out := *pending
			out.Status = next
			out.Token = ""
			out.TokenExpiry = nil
			return &out, nil
		},
	}
	svc := newTestService(requests, halls)

	updated, err := svc.DecideByToken(context.Background(), "tok-1", model.DecisionApprove)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusApproved {
		t.Errorf("expected status %s, got %s", model.StatusApproved, updated.Status)
	}
	if !appended {
		t.Error("expected approval to commit a reservation")
	}
}

func TestDecideByToken_ApproveConflictKeepsTokenLive(t *testing.T) {
	pending := validRequest()
	pending.ID = "65a000000000000000000001"
	pending.HallKey = "main hall"
	pending.Status = model.StatusPending
	pending.Token = "tok-1"

	hall := freeHall()
	hall.Reservations = []model.Reservation{
		{ReservationID: "r1", Start: ts(11), End: ts(13)},
	}

	halls := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			return hall, nil
		},
		appendReservationFunc: func(ctx context.Context, key string, version int64, res model.Reservation) error {
			t.Error("conflicting approval must not commit a reservation")
			return nil
		},
	}
	requests := &mockRequestRepository{
		findByTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
			return pending, nil
		},
		consumeTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
			t.Error("token must not be consumed when the approval is blocked")
			return nil, requestserrors.ErrTokenNotFound
		},
	}
	svc := newTestService(requests, halls)

	_, err := svc.DecideByToken(context.Background(), "tok-1", model.DecisionApprove)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected %s, got %v", apperrors.CodeConflict, err)
	}
}

func TestDecideByToken_InvalidTokenIsGeneric(t *testing.T) {
	svc := newTestService(&mockRequestRepository{}, &mockHallRepository{})

	for _, decision := range []model.Decision{
		model.DecisionApprove, model.DecisionReject, model.DecisionVacate, model.DecisionLeave,
	} {
		_, err := svc.DecideByToken(context.Background(), "bogus", decision)
		if err == nil {
			t.Fatalf("%s: expected an error for unknown token", decision)
		}

		appErr := apperrors.AsAppError(err)
		if appErr.Code != apperrors.CodeInvalidToken {
			t.Errorf("%s: expected code %s, got %s", decision, apperrors.CodeInvalidToken, appErr.Code)
		}
		if appErr.Message != apperrors.TokenErrorMessage {
			t.Errorf("%s: token errors must not reveal state, got %q", decision, appErr.Message)
		}
	}
}

func TestDecideByToken_VacateReleasesReservation(t *testing.T) {
	booked := validRequest()
	booked.ID = "65a000000000000000000001"
	booked.HallKey = "main hall"
	booked.Status = model.StatusAutoBooked
	booked.Token = "tok-2"

	var released string
	halls := &mockHallRepository{
		removeReservationFunc: func(ctx context.Context, key string, sourceRequestID string) error {
			released = sourceRequestID
			return nil
		},
	}
	requests := &mockRequestRepository{
		findByTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
			if expected != model.StatusAutoBooked {
				t.Errorf("vacate link must act on %s, got %s", model.StatusAutoBooked, expected)
			}
			return booked, nil
		},
		consumeTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
			if next != model.StatusVacated {
				t.Errorf("expected transition to %s, got %s", model.StatusVacated, next)
			}
			out := *booked
			out.Status = next
			out.Token = ""
			return &out, nil
		},
	}
	svc := newTestService(requests, halls)

	updated, err := svc.DecideByToken(context.Background(), "tok-2", model.DecisionVacate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusVacated {
		t.Errorf("expected status %s, got %s", model.StatusVacated, updated.Status)
	}
	if released != booked.ID {
		t.Errorf("expected reservation for request %s released, got %q", booked.ID, released)
	}
}

func TestDecideByToken_LeaveKeepsReservation(t *testing.T) {
	booked := validRequest()
	booked.ID = "65a000000000000000000001"
	booked.HallKey = "main hall"
	booked.Status = model.StatusAutoBooked
	booked.Token = "tok-3"

	halls := &mockHallRepository{
		removeReservationFunc: func(ctx context.Context, key string, sourceRequestID string) error {
			t.Error("leave must not release the reservation")
			return nil
		},
	}
	requests := &mockRequestRepository{
		findByTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
			return booked, nil
		},
		consumeTokenFunc: func(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
			out := *booked
			out.Status = next
			out.Token = ""
			return &out, nil
		},
	}
	svc := newTestService(requests, halls)

	updated, err := svc.DecideByToken(context.Background(), "tok-3", model.DecisionLeave)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusLeft {
		t.Errorf("expected status %s, got %s", model.StatusLeft, updated.Status)
	}
}

func TestDecide_AlreadyProcessed(t *testing.T) {
	approved := validRequest()
	approved.ID = "65a000000000000000000001"
	approved.Status = model.StatusApproved

	requests := &mockRequestRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.BookingRequest, error) {
			return approved, nil
		},
	}
	svc := newTestService(requests, &mockHallRepository{})

	_, err := svc.Decide(context.Background(), approved.ID, model.DecisionApprove)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected %s, got %v", apperrors.CodeConflict, err)
	}

	appErr := apperrors.AsAppError(err)
	if !strings.Contains(appErr.Message, "already processed") {
		t.Errorf("expected an already-processed message, got %q", appErr.Message)
	}
	if !strings.Contains(appErr.Message, string(model.StatusApproved)) {
		t.Errorf("expected current status in message, got %q", appErr.Message)
	}
}

func TestDecide_RejectPending(t *testing.T) {
	pending := validRequest()
	pending.ID = "65a000000000000000000001"
	pending.HallKey = "main hall"
	pending.Status = model.StatusPending
	pending.Token = "tok-4"

	var from, to model.Status
	requests := &mockRequestRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.BookingRequest, error) {
			return pending, nil
		},
		transitionStatusFunc: func(ctx context.Context, id string, f, to2 model.Status) error {
			from, to = f, to2
			return nil
		},
	}
	svc := newTestService(requests, &mockHallRepository{})

	updated, err := svc.Decide(context.Background(), pending.ID, model.DecisionReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if from != model.StatusPending || to != model.StatusRejected {
		t.Errorf("expected transition %s -> %s, got %s -> %s", model.StatusPending, model.StatusRejected, from, to)
	}
	if updated.Status != model.StatusRejected {
		t.Errorf("expected status %s, got %s", model.StatusRejected, updated.Status)
	}
	if updated.Token != "" || updated.TokenExpiry != nil {
		t.Error("decided request must not keep its token")
	}
}

func TestDecide_StatusChangedUnderneath(t *testing.T) {
	pending := validRequest()
	pending.ID = "65a000000000000000000001"
	pending.Status = model.StatusPending

	requests := &mockRequestRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.BookingRequest, error) {
			return pending, nil
		},
		transitionStatusFunc: func(ctx context.Context, id string, from, to model.Status) error {
			return requestserrors.ErrStatusChanged
		},
	}
	svc := newTestService(requests, &mockHallRepository{})

	_, err := svc.Decide(context.Background(), pending.ID, model.DecisionReject)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected %s, got %v", apperrors.CodeConflict, err)
	}
}
