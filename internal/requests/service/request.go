package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hallserrors "hallbook/internal/halls/errors"
	hallrepo "hallbook/internal/halls/repository"
	requestserrors "hallbook/internal/requests/errors"
	"hallbook/internal/requests/repository"
	"hallbook/internal/requests/validator"
	"hallbook/pkg/config"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"
	"hallbook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// maxCommitAttempts bounds retries of the conflict-check-then-append write
// when the hall's reservation list moves underneath us.
const maxCommitAttempts = 3

type BookingService interface {
	// Create runs the conflict check and selects the initial state: a free
	// slot is committed immediately as auto_booked, a contested one parks
	// the request as pending for a human decision. Both paths issue an
	// action token.
	Create(ctx context.Context, req *model.BookingRequest) error
	GetByID(ctx context.Context, id string) (*model.BookingRequest, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, int64, error)
	// DecideByToken drives a transition from an unauthenticated action
	// link. Every failure mode maps to the same generic token error.
	DecideByToken(ctx context.Context, token string, decision model.Decision) (*model.BookingRequest, error)
	// Decide drives the same transitions from the authenticated admin
	// channel, keyed by request id instead of token.
	Decide(ctx context.Context, id string, decision model.Decision) (*model.BookingRequest, error)
	// BulkDecide applies one strategy across the scoped pending requests.
	BulkDecide(ctx context.Context, strategy model.BulkStrategy, hallName string) (*model.BulkOutcome, error)
}

type bookingService struct {
	repo      repository.RequestRepository
	halls     hallrepo.HallRepository
	validator *validator.RequestValidator
	tokens    *TokenIssuer
	notifier  Notifier
	sweeper   *Sweeper
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.RequestRepository,
	halls hallrepo.HallRepository,
	validator *validator.RequestValidator,
	tokens *TokenIssuer,
	notifier Notifier,
	sweeper *Sweeper,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		halls:     halls,
		validator: validator,
		tokens:    tokens,
		notifier:  notifier,
		sweeper:   sweeper,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) error {
	s.opportunisticSweep(ctx)
	s.sanitize(req)

	if err := s.validator.Validate(req, s.now()); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return apperrors.Validation("Booking request validation failed", map[string]any{"error": err.Error()})
	}

	hall, err := s.halls.FindByKey(ctx, req.HallKey)
	if err != nil {
		if errors.Is(err, hallserrors.ErrNotFound) {
			return apperrors.NotFound("Hall")
		}
		return apperrors.Internal("Failed to look up hall", err)
	}

	token, expiry, err := s.tokens.Issue()
	if err != nil {
		return apperrors.Internal("Failed to issue action token", err)
	}
	req.Token = token
	req.TokenExpiry = &expiry

	var commitErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if HasCommittedConflict(hall, req.Start, req.End) {
			if err := s.createPending(ctx, req); err != nil {
				return err
			}
			s.notifyCreated(ctx, req)
			return nil
		}

		commitErr = s.createAutoBooked(ctx, req, hall.Version)
		if !errors.Is(commitErr, hallserrors.ErrVersionConflict) {
			break
		}

		// Lost the race on the reservation list; re-read and re-check.
		hall, err = s.halls.FindByKey(ctx, req.HallKey)
		if err != nil {
			return apperrors.Internal("Failed to re-read hall after version conflict", err)
		}
	}

	if commitErr != nil {
		if errors.Is(commitErr, hallserrors.ErrVersionConflict) {
			return apperrors.Conflict("Hall is being booked concurrently, please try again")
		}
		if apperrors.IsAppError(commitErr) {
			return commitErr
		}
		s.cfg.Log.Error("Failed to create booking request", "error", commitErr)
		return apperrors.Internal("Failed to create booking request", commitErr)
	}

	s.cfg.Log.Info("Booking request auto-booked",
		"id", req.ID,
		"hall", req.HallName,
		"requester_id", req.RequesterID,
		"start_time", req.Start,
	)
	s.notifyCreated(ctx, req)
	return nil
}

// createAutoBooked commits the reservation and the request in one
// transaction, conditioned on the hall version observed during the conflict
// check.
func (s *bookingService) createAutoBooked(ctx context.Context, req *model.BookingRequest, hallVersion int64) error {
	req.Status = model.StatusAutoBooked
	req.ID = ""

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, req); err != nil {
			return apperrors.Internal("Failed to create booking request", err)
		}
		if err := s.halls.AppendReservation(sessCtx, req.HallKey, hallVersion, s.reservationFor(req)); err != nil {
			return err
		}
		return nil
	})
}

// createPending stores the contested request and demotes settled
// (approved/left) requests overlapping the same window back to auto_booked,
// so the new clash shows up in the contested bucket.
func (s *bookingService) createPending(ctx context.Context, req *model.BookingRequest) error {
	req.Status = model.StatusPending
	req.ID = ""

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, req); err != nil {
			return apperrors.Internal("Failed to create booking request", err)
		}
		demoted, err := s.repo.ReclassifyOverlapping(sessCtx, req.HallKey, req.Start, req.End)
		if err != nil {
			return apperrors.Internal("Failed to reclassify overlapping requests", err)
		}
		if demoted > 0 {
			s.cfg.Log.Info("Reclassified settled requests as contested",
				"hall_key", req.HallKey,
				"count", demoted,
			)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create pending booking request", "error", err)
		return apperrors.AsAppError(err)
	}

	s.cfg.Log.Info("Booking request pending approval",
		"id", req.ID,
		"hall", req.HallName,
		"requester_id", req.RequesterID,
		"start_time", req.Start,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.BookingRequest, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking request ID cannot be empty")
	}

	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, requestserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking request", id)
		}
		if errors.Is(err, requestserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking request ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking request", err)
	}

	return req, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, int64, error) {
	s.opportunisticSweep(ctx)

	var count int64
	var requests []*model.BookingRequest
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count booking requests", "error", errCount)
			errCount = apperrors.Internal("Failed to count booking requests", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		requests, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list booking requests", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve booking requests", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return requests, count, nil
}

func (s *bookingService) DecideByToken(ctx context.Context, token string, decision model.Decision) (*model.BookingRequest, error) {
	expected := decision.ExpectedStatus()
	if expected == "" {
		return nil, apperrors.InvalidInput("Unsupported decision")
	}

	req, err := s.repo.FindByToken(ctx, token, expected, s.now())
	if err != nil {
		if errors.Is(err, requestserrors.ErrTokenNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, apperrors.Internal("Failed to resolve action token", err)
	}

	var updated *model.BookingRequest
	switch decision {
	case model.DecisionApprove:
		updated, err = s.approveByToken(ctx, req)
	case model.DecisionReject:
		updated, err = s.consumeToken(ctx, token, expected, model.StatusRejected)
	case model.DecisionVacate:
		updated, err = s.vacateByToken(ctx, req)
	case model.DecisionLeave:
		updated, err = s.consumeToken(ctx, token, expected, model.StatusLeft)
	}
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking request decided via action link",
		"id", updated.ID,
		"decision", decision,
		"status", updated.Status,
	)
	s.notifyDecided(ctx, updated, decision)
	return updated, nil
}

func (s *bookingService) Decide(ctx context.Context, id string, decision model.Decision) (*model.BookingRequest, error) {
	req, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := decision.ExpectedStatus()
	if expected == "" {
		return nil, apperrors.InvalidInput("Unsupported decision")
	}
	if req.Status != expected {
		return nil, apperrors.Conflict(fmt.Sprintf("Request already processed (status: %s)", req.Status))
	}

	var updated *model.BookingRequest
	switch decision {
	case model.DecisionApprove:
		updated, err = s.approveAdmin(ctx, req)
	case model.DecisionReject:
		updated, err = s.transition(ctx, req, model.StatusRejected)
	case model.DecisionVacate:
		updated, err = s.vacateAdmin(ctx, req)
	case model.DecisionLeave:
		updated, err = s.transition(ctx, req, model.StatusLeft)
	}
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking request decided",
		"id", updated.ID,
		"decision", decision,
		"status", updated.Status,
	)
	s.notifyDecided(ctx, updated, decision)
	return updated, nil
}

// commitApproval re-checks the conflict at decision time, then appends the
// reservation and runs finalize (the status flip) in one transaction. The
// hall version check closes the window between "no conflict found" and
// "reservation appended".
func (s *bookingService) commitApproval(ctx context.Context, req *model.BookingRequest, finalize func(sessCtx mongo.SessionContext) error) error {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		hall, err := s.halls.FindByKey(ctx, req.HallKey)
		if err != nil {
			if errors.Is(err, hallserrors.ErrNotFound) {
				return apperrors.NotFound("Hall")
			}
			return apperrors.Internal("Failed to look up hall", err)
		}

		if HasCommittedConflict(hall, req.Start, req.End) {
			return apperrors.Conflict("Cannot approve: the requested time overlaps an existing reservation")
		}

		err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := s.halls.AppendReservation(sessCtx, req.HallKey, hall.Version, s.reservationFor(req)); err != nil {
				return err
			}
			return finalize(sessCtx)
		})
		if errors.Is(err, hallserrors.ErrVersionConflict) {
			continue
		}
		if err != nil && !apperrors.IsAppError(err) {
			return apperrors.Internal("Failed to commit approval", err)
		}
		return err
	}

	return apperrors.Conflict("Hall is being booked concurrently, please try again")
}

func (s *bookingService) approveByToken(ctx context.Context, req *model.BookingRequest) (*model.BookingRequest, error) {
	var updated *model.BookingRequest
	err := s.commitApproval(ctx, req, func(sessCtx mongo.SessionContext) error {
		u, err := s.repo.ConsumeToken(sessCtx, req.Token, model.StatusPending, s.now(), model.StatusApproved)
		if err != nil {
			if errors.Is(err, requestserrors.ErrTokenNotFound) {
				return apperrors.InvalidToken()
			}
			return apperrors.Internal("Failed to consume action token", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *bookingService) approveAdmin(ctx context.Context, req *model.BookingRequest) (*model.BookingRequest, error) {
	var updated *model.BookingRequest
	err := s.commitApproval(ctx, req, func(sessCtx mongo.SessionContext) error {
		u, err := s.transition(sessCtx, req, model.StatusApproved)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *bookingService) vacateByToken(ctx context.Context, req *model.BookingRequest) (*model.BookingRequest, error) {
	var updated *model.BookingRequest
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.releaseReservation(sessCtx, req); err != nil {
			return err
		}
		u, err := s.repo.ConsumeToken(sessCtx, req.Token, model.StatusAutoBooked, s.now(), model.StatusVacated)
		if err != nil {
			if errors.Is(err, requestserrors.ErrTokenNotFound) {
				return apperrors.InvalidToken()
			}
			return apperrors.Internal("Failed to consume action token", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, apperrors.AsAppError(err)
	}
	return updated, nil
}

func (s *bookingService) vacateAdmin(ctx context.Context, req *model.BookingRequest) (*model.BookingRequest, error) {
	var updated *model.BookingRequest
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.releaseReservation(sessCtx, req); err != nil {
			return err
		}
		u, err := s.transition(sessCtx, req, model.StatusVacated)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, apperrors.AsAppError(err)
	}
	return updated, nil
}

// releaseReservation frees the slot held for an auto-booked request. A hall
// that disappeared is not an error at this point: the request still
// transitions, there is just nothing left to release.
func (s *bookingService) releaseReservation(ctx context.Context, req *model.BookingRequest) error {
	err := s.halls.RemoveReservationBySource(ctx, req.HallKey, req.ID)
	if err != nil && !errors.Is(err, hallserrors.ErrNotFound) {
		return apperrors.Internal("Failed to release reservation", err)
	}
	return nil
}

// transition flips the status conditioned on the one observed, clearing the
// token in the same update.
func (s *bookingService) transition(ctx context.Context, req *model.BookingRequest, to model.Status) (*model.BookingRequest, error) {
	if err := s.repo.TransitionStatus(ctx, req.ID, req.Status, to); err != nil {
		switch {
		case errors.Is(err, requestserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking request", req.ID)
		case errors.Is(err, requestserrors.ErrStatusChanged):
			current, ferr := s.repo.FindByID(ctx, req.ID)
			if ferr == nil {
				return nil, apperrors.Conflict(fmt.Sprintf("Request already processed (status: %s)", current.Status))
			}
			return nil, apperrors.Conflict("Request already processed")
		default:
			return nil, apperrors.Internal("Failed to update request status", err)
		}
	}

	out := *req
	out.Status = to
	out.Token = ""
	out.TokenExpiry = nil
	return &out, nil
}

func (s *bookingService) consumeToken(ctx context.Context, token string, expected, next model.Status) (*model.BookingRequest, error) {
	updated, err := s.repo.ConsumeToken(ctx, token, expected, s.now(), next)
	if err != nil {
		if errors.Is(err, requestserrors.ErrTokenNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, apperrors.Internal("Failed to consume action token", err)
	}
	return updated, nil
}

func (s *bookingService) reservationFor(req *model.BookingRequest) model.Reservation {
	return model.Reservation{
		ReservationID:   uuid.New().String(),
		RequesterID:     req.RequesterID,
		Label:           req.Label,
		Start:           req.Start,
		End:             req.End,
		SourceRequestID: req.ID,
	}
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.HallName = sanitizer.NormalizeName(req.HallName)
	req.HallKey = sanitizer.HallKey(req.HallName)
	req.Label = sanitizer.NormalizeLabel(req.Label)
	req.Description = sanitizer.TrimAndNormalize(req.Description)
}

// opportunisticSweep gives the cleanup a chance to run before reads and
// creates. The sweeper's own throttle keeps this cheap.
func (s *bookingService) opportunisticSweep(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	s.sweeper.Run(ctx, false)
}

func (s *bookingService) notifyCreated(ctx context.Context, req *model.BookingRequest) {
	if err := s.notifier.RequestCreated(ctx, req); err != nil {
		s.cfg.Log.Warn("Notification dispatch failed", "request_id", req.ID, "error", err)
	}
}

func (s *bookingService) notifyDecided(ctx context.Context, req *model.BookingRequest, decision model.Decision) {
	if err := s.notifier.RequestDecided(ctx, req, decision); err != nil {
		s.cfg.Log.Warn("Notification dispatch failed", "request_id", req.ID, "error", err)
	}
}
