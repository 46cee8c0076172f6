package service

import (
	"context"
	"errors"
	"time"

	hallserrors "hallbook/internal/halls/errors"
	"hallbook/internal/halls/repository"
	"hallbook/pkg/config"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"
	"hallbook/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

type HallService interface {
	Create(ctx context.Context, hall *model.Hall) error
	GetByName(ctx context.Context, name string) (*model.Hall, error)
	// List returns every hall with its FREE/BOOKED status derived from the
	// current reservations at call time.
	List(ctx context.Context) ([]*model.HallView, error)
}

type hallService struct {
	repo     repository.HallRepository
	validate *validator.Validate
	cfg      *config.Config
	now      func() time.Time
}

func NewHallService(repo repository.HallRepository, cfg *config.Config) HallService {
	return &hallService{
		repo:     repo,
		validate: validator.New(),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *hallService) Create(ctx context.Context, hall *model.Hall) error {
	hall.Name = sanitizer.NormalizeName(hall.Name)
	hall.NameKey = sanitizer.HallKey(hall.Name)
	hall.Reservations = []model.Reservation{}
	hall.Occupied = false
	hall.Version = 0

	if err := s.validate.Struct(hall); err != nil {
		s.cfg.Log.Warn("Hall validation failed", "error", err)
		return apperrors.Validation("Hall validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, hall); err != nil {
		if errors.Is(err, hallserrors.ErrDuplicateName) {
			return apperrors.Conflict("A hall with this name already exists")
		}
		s.cfg.Log.Error("Failed to create hall", "name", hall.Name, "error", err)
		return apperrors.Internal("Failed to create hall", err)
	}

	s.cfg.Log.Info("Hall created", "id", hall.ID, "name", hall.Name, "capacity", hall.Capacity)
	return nil
}

func (s *hallService) GetByName(ctx context.Context, name string) (*model.Hall, error) {
	key := sanitizer.HallKey(name)
	if key == "" {
		return nil, apperrors.InvalidInput("Hall name cannot be empty")
	}

	hall, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, hallserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Hall")
		}
		return nil, apperrors.Internal("Failed to retrieve hall", err)
	}

	return hall, nil
}

func (s *hallService) List(ctx context.Context) ([]*model.HallView, error) {
	halls, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list halls", "error", err)
		return nil, apperrors.Internal("Failed to retrieve halls", err)
	}

	now := s.now()
	views := make([]*model.HallView, 0, len(halls))
	for _, h := range halls {
		views = append(views, &model.HallView{
			Hall:   *h,
			Status: h.Availability(now),
		})
	}

	return views, nil
}
