package service

import (
	"context"
	"errors"
	"fmt"
	reservationserrors "poolsched/internal/reservations/errors"
	"poolsched/internal/reservations/repository"
	"poolsched/internal/reservations/validator"
	"poolsched/pkg/config"
	apperrors "poolsched/pkg/errors"
	"poolsched/pkg/interval"
	"poolsched/pkg/lock"
	"poolsched/pkg/metrics"
	"poolsched/pkg/model"
	"poolsched/pkg/sanitizer"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ResourceLookup resolves the lanes, lockers and pools reservations refer to.
type ResourceLookup interface {
	GetPool(ctx context.Context, id string) (*model.Pool, error)
	GetLane(ctx context.Context, id string) (*model.Lane, error)
	GetLocker(ctx context.Context, id string) (*model.Locker, error)
}

type ReservationService interface {
	CreateLaneReservation(ctx context.Context, laneID string, period interval.Period, users []string) (*model.Reservation, error)
	CreateLockerReservation(ctx context.Context, lockerID, userID string, period interval.Period) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	CheckIn(ctx context.Context, id string) (*model.Reservation, error)
	CheckOut(ctx context.Context, id string) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	PurgeResource(ctx context.Context, kind model.Kind, resourceID string) error
}

type Option func(*reservationService)

// WithClock replaces the wall clock used for cancel, check-in, check-out and
// creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *reservationService) { s.now = now }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *reservationService) { s.publisher = p }
}

type reservationService struct {
	repo      repository.ReservationRepository
	resources ResourceLookup
	locker    lock.Locker
	validator *validator.ReservationValidator
	publisher EventPublisher
	now       func() time.Time
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	resources ResourceLookup,
	locker lock.Locker,
	validator *validator.ReservationValidator,
	cfg *config.Config,
	opts ...Option,
) ReservationService {
	s := &reservationService{
		repo:      repo,
		resources: resources,
		locker:    locker,
		validator: validator,
		publisher: NopPublisher(),
		now:       cfg.Now,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *reservationService) CreateLaneReservation(ctx context.Context, laneID string, period interval.Period, users []string) (*model.Reservation, error) {
	if laneID == "" {
		return nil, apperrors.InvalidInput("Lane ID cannot be empty")
	}
	lane, err := s.resources.GetLane(ctx, laneID)
	if err != nil {
		return nil, err
	}

	r := model.LaneReservation(lane.ID, lane.PoolID, period, sanitizer.NormalizeUsers(users))
	if err := s.create(ctx, r, lane.MaxSwimmers, lock.LaneKey(lane.ID)); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *reservationService) CreateLockerReservation(ctx context.Context, lockerID, userID string, period interval.Period) (*model.Reservation, error) {
	if lockerID == "" {
		return nil, apperrors.InvalidInput("Locker ID cannot be empty")
	}
	locker, err := s.resources.GetLocker(ctx, lockerID)
	if err != nil {
		return nil, err
	}

	userID = sanitizer.NormalizeID(userID)
	r := model.LockerReservation(locker.ID, locker.PoolID, userID, period)
	if err := s.create(ctx, r, 1, lock.LockerKey(locker.ID), lock.UserKey(userID)); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *reservationService) create(ctx context.Context, r *model.Reservation, capacity int, keys ...string) error {
	if p := r.Period; p.Lower != nil && p.Upper != nil && p.Lower.After(*p.Upper) {
		return apperrors.InvalidRange(&interval.InvalidRangeError{
			Lower: p.Lower.String(),
			Upper: p.Upper.String(),
		})
	}

	r.ID = uuid.NewString()
	r.CreatedAt = s.now().UTC()

	if err := s.validator.Validate(r, capacity); err != nil {
		s.cfg.Log.Warn("Reservation validation failed",
			"kind", r.Kind,
			"resource_id", r.ResourceID,
			"error", err,
		)
		return apperrors.Validation("Reservation validation failed", map[string]any{"errors": err})
	}

	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		conflicts, err := s.repo.FindConflicts(ctx, r)
		if err != nil {
			return apperrors.Internal("Failed to check reservation conflicts", err)
		}
		if c := firstOverlap(r, conflicts); c != nil {
			metrics.IncReservationConflict(string(r.Kind))
			s.cfg.Log.Info("Reservation conflicts with an existing reservation",
				"kind", r.Kind,
				"resource_id", r.ResourceID,
				"conflicting_id", c.ID,
			)
			return apperrors.ConflictWithID(conflictMessage(r, c), c.ID)
		}

		if err := s.repo.Create(ctx, r); err != nil {
			if errors.Is(err, reservationserrors.ErrDuplicateID) {
				return apperrors.ConflictWithID("Reservation with this ID already exists", r.ID)
			}
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeConflict) {
			s.cfg.Log.Error("Failed to create reservation", "kind", r.Kind, "resource_id", r.ResourceID, "error", err)
		}
		return err
	}

	metrics.IncReservationCreated(string(r.Kind))
	s.cfg.Log.Info("Reservation created successfully",
		"id", r.ID,
		"kind", r.Kind,
		"resource_id", r.ResourceID,
		"period", r.Period.String(),
	)
	s.publish(ctx, EventCreated, r)
	return nil
}

// firstOverlap re-checks the repository's candidates in Go and returns the
// one with the smallest id, so the reported conflict does not depend on scan
// order.
func firstOverlap(r *model.Reservation, candidates []*model.Reservation) *model.Reservation {
	var hits []*model.Reservation
	for _, c := range candidates {
		if !c.IsCancelled() && c.Period.Overlaps(r.Period) {
			hits = append(hits, c)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits[0]
}

func conflictMessage(r, c *model.Reservation) string {
	if r.Kind == model.KindLocker && c.ResourceID != r.ResourceID {
		return "User already has a locker reserved for an overlapping period"
	}
	return fmt.Sprintf("The %s is already reserved for an overlapping period", r.Kind)
}

// Cancel stamps the reservation as cancelled at now. Cancelling again moves
// the timestamp forward.
func (s *reservationService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	var again bool
	r, err := s.mutate(ctx, id, func(r *model.Reservation, now time.Time) bool {
		again = r.IsCancelled()
		r.Cancelled = &now
		return true
	})
	if err != nil {
		return nil, err
	}

	if again {
		s.cfg.Log.Info("Reservation cancellation refreshed", "id", id, "cancelled", *r.Cancelled)
	} else {
		metrics.IncReservationCancelled(string(r.Kind))
		s.cfg.Log.Info("Reservation cancelled successfully", "id", id, "kind", r.Kind)
	}
	s.publish(ctx, EventCancelled, r)
	return r, nil
}

// CheckIn records the actual start. The actual end, if any, is kept.
func (s *reservationService) CheckIn(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.mutate(ctx, id, func(r *model.Reservation, now time.Time) bool {
		r.Actual = r.Actual.WithLower(&now)
		return true
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCheckin(string(r.Kind), metrics.DirectionIn)
	s.cfg.Log.Info("Reservation checked in", "id", id, "actual", r.Actual.String())
	s.publish(ctx, EventCheckedIn, r)
	return r, nil
}

// CheckOut records the actual end. The actual start, if any, is kept.
func (s *reservationService) CheckOut(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.mutate(ctx, id, func(r *model.Reservation, now time.Time) bool {
		r.Actual = r.Actual.WithUpper(&now)
		return true
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCheckin(string(r.Kind), metrics.DirectionOut)
	s.cfg.Log.Info("Reservation checked out", "id", id, "actual", r.Actual.String())
	s.publish(ctx, EventCheckedOut, r)
	return r, nil
}

// mutate runs a read-modify-write of one row under its reservation key.
// apply reports whether the row changed.
func (s *reservationService) mutate(ctx context.Context, id string, apply func(r *model.Reservation, now time.Time) bool) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	release, err := s.acquire(ctx, lock.ReservationKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var out *model.Reservation
	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.translate(err, id, "Failed to retrieve reservation")
		}
		if apply(r, s.now().UTC()) {
			if err := s.repo.Update(ctx, r); err != nil {
				return s.translate(err, id, "Failed to update reservation")
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve reservation")
	}
	return r, nil
}

// PurgeResource deletes every reservation of a lane or locker. It joins the
// caller's transaction when ctx carries one.
func (s *reservationService) PurgeResource(ctx context.Context, kind model.Kind, resourceID string) error {
	n, err := s.repo.DeleteByResource(ctx, kind, resourceID)
	if err != nil {
		s.cfg.Log.Error("Failed to purge reservations", "kind", kind, "resource_id", resourceID, "error", err)
		return apperrors.Internal("Failed to delete reservations", err)
	}
	s.cfg.Log.Info("Reservations purged", "kind", kind, "resource_id", resourceID, "count", n)
	return nil
}

func (s *reservationService) acquire(ctx context.Context, keys ...string) (lock.Release, error) {
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		s.cfg.Log.Warn("Failed to acquire reservation lock", "keys", keys, "error", err)
		return nil, err
	}
	return release, nil
}

// publish logs and drops failures; the reservation is already stored.
func (s *reservationService) publish(ctx context.Context, eventType string, r *model.Reservation) {
	if err := s.publisher.Publish(ctx, eventType, r); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"id", r.ID,
			"error", err,
		)
	}
}

func (s *reservationService) translate(err error, id, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}
