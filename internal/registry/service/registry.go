package service

import (
	"context"
	"errors"
	registryerrors "poolsched/internal/registry/errors"
	"poolsched/internal/registry/repository"
	"poolsched/internal/registry/validator"
	"poolsched/pkg/config"
	apperrors "poolsched/pkg/errors"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"poolsched/pkg/sanitizer"

	"github.com/google/uuid"
)

// ReservationPurger deletes every reservation of a lane or locker. The
// registry calls it before removing the resource.
type ReservationPurger interface {
	PurgeResource(ctx context.Context, kind model.Kind, resourceID string) error
}

type RegistryService interface {
	CreatePool(ctx context.Context, pool *model.Pool) error
	GetPool(ctx context.Context, id string) (*model.Pool, error)
	ListPools(ctx context.Context) ([]*model.Pool, error)
	DeletePool(ctx context.Context, id string) error

	CreateLane(ctx context.Context, lane *model.Lane) error
	GetLane(ctx context.Context, id string) (*model.Lane, error)
	ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error)
	DeleteLane(ctx context.Context, id string) error

	CreateLocker(ctx context.Context, locker *model.Locker) error
	GetLocker(ctx context.Context, id string) (*model.Locker, error)
	ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error)
	DeleteLocker(ctx context.Context, id string) error

	CreateClosure(ctx context.Context, closure *model.Closure) error
	ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error)
	DeleteClosure(ctx context.Context, id string) error
	ClosuresOverlapping(ctx context.Context, poolID string, dates interval.Period) ([]*model.Closure, error)

	Seed(ctx context.Context, path string) (*SeedResult, error)
	SetPurger(purger ReservationPurger)
}

type registryService struct {
	repo      repository.RegistryRepository
	validator *validator.RegistryValidator
	purger    ReservationPurger
	cfg       *config.Config
}

func NewRegistryService(
	repo repository.RegistryRepository,
	validator *validator.RegistryValidator,
	cfg *config.Config,
) RegistryService {
	return &registryService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *registryService) SetPurger(purger ReservationPurger) {
	s.purger = purger
}

func (s *registryService) CreatePool(ctx context.Context, pool *model.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.NewString()
	}
	if pool.BusinessHours.Lower == nil && pool.BusinessHours.Upper == nil {
		pool.BusinessHours = model.DefaultBusinessHours
	}
	pool.Name = sanitizer.NormalizeName(pool.Name)
	pool.Address = sanitizer.NormalizeName(pool.Address)

	if err := s.validator.ValidatePool(pool); err != nil {
		s.cfg.Log.Warn("Pool validation failed", "error", err)
		return apperrors.Validation("Pool validation failed", map[string]any{"errors": err})
	}
	if err := s.repo.CreatePool(ctx, pool); err != nil {
		return s.translate(err, "Pool", pool.ID, "Failed to create pool")
	}

	s.cfg.Log.Info("Pool created successfully", "id", pool.ID, "name", pool.Name)
	return nil
}

func (s *registryService) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Pool ID cannot be empty")
	}
	pool, err := s.repo.FindPool(ctx, id)
	if err != nil {
		return nil, s.translate(err, "Pool", id, "Failed to retrieve pool")
	}
	return pool, nil
}

func (s *registryService) ListPools(ctx context.Context) ([]*model.Pool, error) {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list pools", "error", err)
		return nil, apperrors.Internal("Failed to retrieve pools", err)
	}
	return pools, nil
}

// DeletePool removes the pool, its lanes, lockers and closures, and the
// reservations of those lanes and lockers.
func (s *registryService) DeletePool(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Pool ID cannot be empty")
	}

	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindPool(ctx, id); err != nil {
			return s.translate(err, "Pool", id, "Failed to retrieve pool")
		}
		lanes, err := s.repo.ListLanes(ctx, id)
		if err != nil {
			return apperrors.Internal("Failed to list lanes of pool", err)
		}
		for _, l := range lanes {
			if err := s.purge(ctx, model.KindLane, l.ID); err != nil {
				return err
			}
		}
		lockers, err := s.repo.ListLockers(ctx, id)
		if err != nil {
			return apperrors.Internal("Failed to list lockers of pool", err)
		}
		for _, l := range lockers {
			if err := s.purge(ctx, model.KindLocker, l.ID); err != nil {
				return err
			}
		}
		if err := s.repo.DeletePool(ctx, id); err != nil {
			return s.translate(err, "Pool", id, "Failed to delete pool")
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete pool", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Pool deleted successfully", "id", id)
	return nil
}

func (s *registryService) CreateLane(ctx context.Context, lane *model.Lane) error {
	if lane.ID == "" {
		lane.ID = uuid.NewString()
	}
	lane.Name = sanitizer.NormalizeName(lane.Name)

	if err := s.validator.ValidateLane(lane); err != nil {
		s.cfg.Log.Warn("Lane validation failed", "error", err)
		return apperrors.Validation("Lane validation failed", map[string]any{"errors": err})
	}
	if err := s.repo.CreateLane(ctx, lane); err != nil {
		return s.translate(err, "Lane", lane.ID, "Failed to create lane")
	}

	s.cfg.Log.Info("Lane created successfully", "id", lane.ID, "pool_id", lane.PoolID, "name", lane.Name)
	return nil
}

func (s *registryService) GetLane(ctx context.Context, id string) (*model.Lane, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Lane ID cannot be empty")
	}
	lane, err := s.repo.FindLane(ctx, id)
	if err != nil {
		return nil, s.translate(err, "Lane", id, "Failed to retrieve lane")
	}
	return lane, nil
}

func (s *registryService) ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error) {
	lanes, err := s.repo.ListLanes(ctx, poolID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve lanes", err)
	}
	return lanes, nil
}

func (s *registryService) DeleteLane(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Lane ID cannot be empty")
	}
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindLane(ctx, id); err != nil {
			return s.translate(err, "Lane", id, "Failed to retrieve lane")
		}
		if err := s.purge(ctx, model.KindLane, id); err != nil {
			return err
		}
		if err := s.repo.DeleteLane(ctx, id); err != nil {
			return s.translate(err, "Lane", id, "Failed to delete lane")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Lane deleted successfully", "id", id)
	return nil
}

func (s *registryService) CreateLocker(ctx context.Context, locker *model.Locker) error {
	if locker.ID == "" {
		locker.ID = uuid.NewString()
	}
	locker.Number = sanitizer.NormalizeName(locker.Number)

	if err := s.validator.ValidateLocker(locker); err != nil {
		s.cfg.Log.Warn("Locker validation failed", "error", err)
		return apperrors.Validation("Locker validation failed", map[string]any{"errors": err})
	}
	if err := s.repo.CreateLocker(ctx, locker); err != nil {
		return s.translate(err, "Locker", locker.ID, "Failed to create locker")
	}

	s.cfg.Log.Info("Locker created successfully", "id", locker.ID, "pool_id", locker.PoolID, "number", locker.Number)
	return nil
}

func (s *registryService) GetLocker(ctx context.Context, id string) (*model.Locker, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Locker ID cannot be empty")
	}
	locker, err := s.repo.FindLocker(ctx, id)
	if err != nil {
		return nil, s.translate(err, "Locker", id, "Failed to retrieve locker")
	}
	return locker, nil
}

func (s *registryService) ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error) {
	lockers, err := s.repo.ListLockers(ctx, poolID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve lockers", err)
	}
	return lockers, nil
}

func (s *registryService) DeleteLocker(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Locker ID cannot be empty")
	}
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindLocker(ctx, id); err != nil {
			return s.translate(err, "Locker", id, "Failed to retrieve locker")
		}
		if err := s.purge(ctx, model.KindLocker, id); err != nil {
			return err
		}
		if err := s.repo.DeleteLocker(ctx, id); err != nil {
			return s.translate(err, "Locker", id, "Failed to delete locker")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Locker deleted successfully", "id", id)
	return nil
}

func (s *registryService) CreateClosure(ctx context.Context, closure *model.Closure) error {
	if closure.ID == "" {
		closure.ID = uuid.NewString()
	}
	closure.Reason = sanitizer.NormalizeName(closure.Reason)

	if err := s.validator.ValidateClosure(closure); err != nil {
		s.cfg.Log.Warn("Closure validation failed", "error", err)
		return apperrors.Validation("Closure validation failed", map[string]any{"errors": err})
	}
	if err := s.repo.CreateClosure(ctx, closure); err != nil {
		return s.translate(err, "Closure", closure.ID, "Failed to create closure")
	}

	s.cfg.Log.Info("Closure created successfully", "id", closure.ID, "pool_id", closure.PoolID, "dates", closure.Dates.String())
	return nil
}

func (s *registryService) ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error) {
	closures, err := s.repo.ListClosures(ctx, poolID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve closures", err)
	}
	return closures, nil
}

func (s *registryService) DeleteClosure(ctx context.Context, id string) error {
	if err := s.repo.DeleteClosure(ctx, id); err != nil {
		return s.translate(err, "Closure", id, "Failed to delete closure")
	}
	s.cfg.Log.Info("Closure deleted successfully", "id", id)
	return nil
}

// ClosuresOverlapping lists the pool's closures that share a day with dates.
// Closures do not block reservations.
func (s *registryService) ClosuresOverlapping(ctx context.Context, poolID string, dates interval.Period) ([]*model.Closure, error) {
	closures, err := s.ListClosures(ctx, poolID)
	if err != nil {
		return nil, err
	}
	var out []*model.Closure
	for _, c := range closures {
		if c.Dates.Overlaps(dates) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *registryService) purge(ctx context.Context, kind model.Kind, resourceID string) error {
	if s.purger == nil {
		return nil
	}
	if err := s.purger.PurgeResource(ctx, kind, resourceID); err != nil {
		s.cfg.Log.Error("Failed to purge reservations", "kind", kind, "resource_id", resourceID, "error", err)
		return err
	}
	return nil
}

func (s *registryService) translate(err error, resource, id, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, registryerrors.ErrPoolNotFound) && resource != "Pool":
		return apperrors.NotFound("Pool")
	case errors.Is(err, registryerrors.ErrPoolNotFound),
		errors.Is(err, registryerrors.ErrLaneNotFound),
		errors.Is(err, registryerrors.ErrLockerNotFound),
		errors.Is(err, registryerrors.ErrClosureNotFound):
		return apperrors.NotFoundWithID(resource, id)
	case errors.Is(err, registryerrors.ErrDuplicateID):
		return apperrors.ConflictWithID(resource+" with this ID already exists", id)
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}
