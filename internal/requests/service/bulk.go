package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	hallserrors "hallbook/internal/halls/errors"
	hallrepo "hallbook/internal/halls/repository"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"
	"hallbook/pkg/sanitizer"
)

// BulkDecide applies a strategy to pending requests, oldest first, optionally
// scoped to one hall. Each item is decided independently: a failure or skip
// never aborts the run and nothing already decided rolls back.
func (s *bookingService) BulkDecide(ctx context.Context, strategy model.BulkStrategy, hallName string) (*model.BulkOutcome, error) {
	if strategy.RequiresHall() && strings.TrimSpace(hallName) == "" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Bulk strategy %s requires a hall name", strategy))
	}

	hallKey := sanitizer.HallKey(hallName)
	pending, err := s.repo.FindPending(ctx, hallKey)
	if err != nil {
		return nil, apperrors.Internal("Failed to load pending requests", err)
	}

	outcome := &model.BulkOutcome{}
	halls := newHallCache(s.halls)

	for _, req := range pending {
		switch strategy {
		case model.BulkApproveSafe:
			s.bulkApproveSafe(ctx, req, pending, halls, outcome)
		case model.BulkApproveAll, model.BulkApproveSpecific:
			s.bulkApprove(ctx, req, outcome)
		case model.BulkRejectConflicts:
			s.bulkRejectConflicts(ctx, req, pending, halls, outcome)
		case model.BulkRejectAll, model.BulkRejectSpecific:
			s.bulkReject(ctx, req, outcome)
		default:
			return nil, apperrors.InvalidInput(fmt.Sprintf("Unsupported bulk strategy: %s", strategy))
		}
	}

	s.cfg.Log.Info("Bulk decision run finished",
		"strategy", strategy,
		"hall", hallName,
		"candidates", len(pending),
		"approved", outcome.Approved,
		"rejected", outcome.Rejected,
		"skipped", outcome.Skipped,
		"failed", outcome.Failed,
	)
	return outcome, nil
}

// bulkApproveSafe approves only requests that clash with nothing: no
// committed reservation and no sibling pending request on the same hall.
// Safe requests are pairwise disjoint, so approving them in sequence cannot
// introduce a new conflict among them.
func (s *bookingService) bulkApproveSafe(ctx context.Context, req *model.BookingRequest, siblings []*model.BookingRequest, halls *hallCache, outcome *model.BulkOutcome) {
	hall, err := halls.get(ctx, req.HallKey)
	if err != nil {
		s.cfg.Log.Warn("Bulk item failed on hall lookup", "request_id", req.ID, "error", err)
		outcome.Failed++
		return
	}
	if hall == nil || HasCommittedConflict(hall, req.Start, req.End) || HasSiblingConflict(req, siblings) {
		outcome.Skipped++
		return
	}

	s.bulkApprove(ctx, req, outcome)
}

// bulkApprove runs the full approval path with its commit-time conflict
// guard. A guard rejection counts as skipped, a transient error as failed.
func (s *bookingService) bulkApprove(ctx context.Context, req *model.BookingRequest, outcome *model.BulkOutcome) {
	updated, err := s.approveAdmin(ctx, req)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			outcome.Skipped++
			return
		}
		s.cfg.Log.Warn("Bulk item failed to approve", "request_id", req.ID, "error", err)
		outcome.Failed++
		return
	}

	outcome.Approved++
	s.notifyDecided(ctx, updated, model.DecisionApprove)
}

func (s *bookingService) bulkRejectConflicts(ctx context.Context, req *model.BookingRequest, siblings []*model.BookingRequest, halls *hallCache, outcome *model.BulkOutcome) {
	hall, err := halls.get(ctx, req.HallKey)
	if err != nil {
		s.cfg.Log.Warn("Bulk item failed on hall lookup", "request_id", req.ID, "error", err)
		outcome.Failed++
		return
	}

	conflicted := (hall != nil && HasCommittedConflict(hall, req.Start, req.End)) ||
		HasSiblingConflict(req, siblings)
	if !conflicted {
		outcome.Skipped++
		return
	}

	s.bulkReject(ctx, req, outcome)
}

func (s *bookingService) bulkReject(ctx context.Context, req *model.BookingRequest, outcome *model.BulkOutcome) {
	updated, err := s.transition(ctx, req, model.StatusRejected)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			outcome.Skipped++
			return
		}
		s.cfg.Log.Warn("Bulk item failed to reject", "request_id", req.ID, "error", err)
		outcome.Failed++
		return
	}

	outcome.Rejected++
	s.notifyDecided(ctx, updated, model.DecisionReject)
}

// hallCache memoizes hall reads within one bulk run. A missing hall is cached
// as nil so every request against it takes the same path.
type hallCache struct {
	repo  hallrepo.HallRepository
	halls map[string]*model.Hall
}

func newHallCache(repo hallrepo.HallRepository) *hallCache {
	return &hallCache{
		repo:  repo,
		halls: make(map[string]*model.Hall),
	}
}

func (c *hallCache) get(ctx context.Context, key string) (*model.Hall, error) {
	if hall, ok := c.halls[key]; ok {
		return hall, nil
	}

	hall, err := c.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, hallserrors.ErrNotFound) {
			c.halls[key] = nil
			return nil, nil
		}
		return nil, err
	}

	c.halls[key] = hall
	return hall, nil
}
