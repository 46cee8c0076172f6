package service

import (
	"context"
	"testing"
	"time"

	hallserrors "hallbook/internal/halls/errors"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

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

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

func newTestService(repo *mockHallRepository, now time.Time) *hallService {
	return &hallService{
		repo:     repo,
		validate: validator.New(),
		cfg:      testConfig(),
		now:      func() time.Time { return now },
	}
}

func TestCreate_NormalizesNameAndResetsState(t *testing.T) {
	var stored *model.Hall
	repo := &mockHallRepository{
		createFunc: func(ctx context.Context, hall *model.Hall) error {
			stored = hall
			return nil
		},
	}
	svc := newTestService(repo, time.Now())

	hall := &model.Hall{
		Name:     "  Main   HALL ",
		Capacity: 120,
		Reservations: []model.Reservation{
			{ReservationID: "smuggled"},
		},
		Occupied: true,
		Version:  7,
	}
	if err := svc.Create(context.Background(), hall); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored.Name != "Main HALL" {
		t.Errorf("expected normalized name, got %q", stored.Name)
	}
	if stored.NameKey != "main hall" {
		t.Errorf("expected lowercase join key, got %q", stored.NameKey)
	}
	if len(stored.Reservations) != 0 || stored.Occupied || stored.Version != 0 {
		t.Error("client-supplied reservation state must be discarded on create")
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := &mockHallRepository{
		createFunc: func(ctx context.Context, hall *model.Hall) error {
			return hallserrors.ErrDuplicateName
		},
	}
	svc := newTestService(repo, time.Now())

	err := svc.Create(context.Background(), &model.Hall{Name: "Main Hall", Capacity: 10})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected %s, got %v", apperrors.CodeConflict, err)
	}
}

func TestCreate_InvalidCapacity(t *testing.T) {
	svc := newTestService(&mockHallRepository{}, time.Now())

	for _, capacity := range []int{0, -5, 5000} {
		err := svc.Create(context.Background(), &model.Hall{Name: "Main Hall", Capacity: capacity})
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Errorf("capacity %d: expected %s, got %v", capacity, apperrors.CodeValidation, err)
		}
	}
}

func TestGetByName_MatchesCaseInsensitively(t *testing.T) {
	var capturedKey string
	repo := &mockHallRepository{
		findByKeyFunc: func(ctx context.Context, key string) (*model.Hall, error) {
			capturedKey = key
			return &model.Hall{Name: "Main Hall", NameKey: key}, nil
		},
	}
	svc := newTestService(repo, time.Now())

	if _, err := svc.GetByName(context.Background(), " MAIN hall "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedKey != "main hall" {
		t.Errorf("expected lookup by normalized key, got %q", capturedKey)
	}

	if _, err := svc.GetByName(context.Background(), "   "); !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected %s for blank name, got %v", apperrors.CodeInvalidInput, err)
	}
}

func TestList_DerivesLiveStatus(t *testing.T) {
	now := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	repo := &mockHallRepository{
		findAllFunc: func(ctx context.Context) ([]*model.Hall, error) {
			return []*model.Hall{
				{
					Name: "Main Hall",
					Reservations: []model.Reservation{
						{Start: now.Add(-time.Hour), End: now.Add(time.Hour)},
					},
				},
				{
					Name: "Annex",
					Reservations: []model.Reservation{
						{Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour)},
					},
				},
			}, nil
		},
	}
	svc := newTestService(repo, now)

	views, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 halls, got %d", len(views))
	}

	if views[0].Status != model.HallBooked {
		t.Errorf("hall with a live reservation must be %s, got %s", model.HallBooked, views[0].Status)
	}
	if views[1].Status != model.HallFree {
		t.Errorf("hall booked only in the future must be %s, got %s", model.HallFree, views[1].Status)
	}
}
