package service

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	migrations "poolsched/internal/migrations/sqlite"
	registryrepo "poolsched/internal/registry/repository"
	registryservice "poolsched/internal/registry/service"
	registryvalidator "poolsched/internal/registry/validator"
	"poolsched/internal/reservations/repository"
	"poolsched/internal/reservations/validator"
	"poolsched/pkg/config"
	"poolsched/pkg/db/sqlite"
	apperrors "poolsched/pkg/errors"
	"poolsched/pkg/interval"
	"poolsched/pkg/lock"
	"poolsched/pkg/logger"
	"poolsched/pkg/metrics"
	"poolsched/pkg/model"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

type recordedEvent struct {
	eventType string
	id        string
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []recordedEvent
	publish func(ctx context.Context, eventType string, r *model.Reservation) error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) error {
	p.mu.Lock()
	p.events = append(p.events, recordedEvent{eventType: eventType, id: r.ID})
	p.mu.Unlock()
	if p.publish != nil {
		return p.publish(ctx, eventType, r)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type fixture struct {
	svc       ReservationService
	registry  registryservice.RegistryService
	repo      repository.ReservationRepository
	publisher *recordingPublisher
	clock     *fakeClock
	pool      *model.Pool
	lanes     []*model.Lane
	lockers   []*model.Locker
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewMemoryReservationRepository())
}

func newSQLiteRepo(t *testing.T) repository.ReservationRepository {
	t.Helper()
	conn, err := sqlite.Open(filepath.Join(t.TempDir(), "reservations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.RunMigration(context.Background(), conn))
	return repository.NewSQLiteReservationRepository(conn)
}

func newFixtureWithRepo(t *testing.T, repo repository.ReservationRepository) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		Log:         logger.Nop(),
		Location:    time.UTC,
		LockBackend: lock.BackendLocal,
	}

	registry := registryservice.NewRegistryService(
		registryrepo.NewMemoryRegistryRepository(),
		registryvalidator.NewRegistryValidator(cfg.Log),
		cfg,
	)
	pool := &model.Pool{Name: "Central", Address: "1 Water Street", Depth: interval.MustBetween[interval.Int](3, 12)}
	require.NoError(t, registry.CreatePool(ctx, pool))

	f := &fixture{
		registry:  registry,
		repo:      repo,
		publisher: &recordingPublisher{},
		clock:     &fakeClock{now: time.Date(2031, 1, 1, 7, 0, 0, 0, time.UTC)},
		pool:      pool,
	}
	for _, name := range []string{"Lane 1", "Lane 2"} {
		lane := &model.Lane{PoolID: pool.ID, Name: name, MaxSwimmers: 3}
		require.NoError(t, registry.CreateLane(ctx, lane))
		f.lanes = append(f.lanes, lane)
	}
	for _, number := range []string{"A1", "A2"} {
		locker := &model.Locker{PoolID: pool.ID, Number: number}
		require.NoError(t, registry.CreateLocker(ctx, locker))
		f.lockers = append(f.lockers, locker)
	}

	f.svc = NewReservationService(
		f.repo,
		registry,
		lock.NewLocalLocker(time.Second),
		validator.NewReservationValidator(cfg.Log),
		cfg,
		WithClock(f.clock.Now),
		WithPublisher(f.publisher),
	)
	registry.SetPurger(f.svc)
	return f
}

// span returns the period of length d starting at h:m on 2031-01-01 UTC.
func span(h, m int, d time.Duration) interval.Period {
	lower := time.Date(2031, 1, 1, h, m, 0, 0, time.UTC)
	upper := lower.Add(d)
	return interval.Period{Lower: &lower, Upper: &upper}
}

// ────────────────────────────────────────────────
// Lane reservations
// ────────────────────────────────────────────────

func TestCreateLaneReservation_ConflictScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lane := f.lanes[0]

	first, err := f.svc.CreateLaneReservation(ctx, lane.ID, span(9, 0, 9*time.Hour), []string{"alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, f.pool.ID, first.PoolID)
	assert.True(t, first.Actual.IsUnboundedLower())
	assert.True(t, first.Actual.IsUnboundedUpper())

	tests := []struct {
		name      string
		laneIdx   int
		period    interval.Period
		wantError bool
	}{
		{name: "overlapping last hour", laneIdx: 0, period: span(17, 0, 9*time.Hour), wantError: true},
		{name: "covering", laneIdx: 0, period: span(8, 0, 11*time.Hour), wantError: true},
		{name: "starting at the end", laneIdx: 0, period: span(18, 0, 9*time.Hour)},
		{name: "other lane same period", laneIdx: 1, period: span(9, 0, 9*time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateLaneReservation(ctx, f.lanes[tt.laneIdx].ID, tt.period, nil)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeConflict), "got %v", err)
			assert.Equal(t, first.ID, apperrors.ConflictingID(err))
		})
	}
}

func TestCreateLaneReservation_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lane := f.lanes[0]

	withSeconds := span(9, 0, 9*time.Hour)
	sec := withSeconds.Lower.Add(time.Second)
	withSeconds.Lower = &sec

	tests := []struct {
		name     string
		period   interval.Period
		users    []string
		wantCode string
	}{
		{name: "exactly nine hours", period: span(6, 0, 9*time.Hour)},
		{name: "half an hour short", period: span(6, 0, 8*time.Hour+30*time.Minute), wantCode: apperrors.CodeValidation},
		{name: "quarter past", period: span(6, 15, 9*time.Hour), wantCode: apperrors.CodeValidation},
		{name: "half past", period: span(20, 30, 9*time.Hour)},
		{name: "sub-minute precision", period: withSeconds, wantCode: apperrors.CodeValidation},
		{name: "unbounded", period: interval.Period{}, wantCode: apperrors.CodeValidation},
		{name: "over capacity", period: span(40, 0, 9*time.Hour), users: []string{"a", "b", "c", "d"}, wantCode: apperrors.CodeValidation},
		{name: "inverted", period: interval.Period{Lower: span(9, 0, 0).Lower, Upper: span(8, 0, 0).Lower}, wantCode: apperrors.CodeInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateLaneReservation(ctx, lane.ID, tt.period, tt.users)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.wantCode), "got %v", err)
		})
	}

	_, err := f.svc.CreateLaneReservation(ctx, "missing", span(9, 0, 9*time.Hour), nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestCreateLaneReservation_ValidationAggregates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLaneReservation(context.Background(), f.lanes[0].ID, span(9, 15, time.Hour), nil)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	var verrs validator.ValidationErrors
	require.True(t, errors.As(appErr.Details["errors"].(error), &verrs))
	// both bounds off the grid, and shorter than nine hours
	assert.Len(t, verrs, 3)
}

// ────────────────────────────────────────────────
// Locker reservations
// ────────────────────────────────────────────────

func TestCreateLockerReservation_PerUserExclusion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1, a2 := f.lockers[0], f.lockers[1]

	first, err := f.svc.CreateLockerReservation(ctx, a1.ID, "alice", span(8, 0, time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name     string
		lockerID string
		user     string
		period   interval.Period
		wantErr  bool
	}{
		{name: "same user other locker overlapping", lockerID: a2.ID, user: "alice", period: span(8, 30, time.Hour), wantErr: true},
		{name: "other user same locker overlapping", lockerID: a1.ID, user: "bob", period: span(8, 30, time.Hour), wantErr: true},
		{name: "other user other locker", lockerID: a2.ID, user: "bob", period: span(8, 0, time.Hour)},
		{name: "same user after", lockerID: a2.ID, user: "alice", period: span(9, 0, time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateLockerReservation(ctx, tt.lockerID, tt.user, tt.period)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
			assert.Equal(t, first.ID, apperrors.ConflictingID(err))
		})
	}
}

func TestCreateLockerReservation_MaxDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateLockerReservation(ctx, f.lockers[0].ID, "alice", span(8, 0, 20*24*time.Hour))
	assert.NoError(t, err)

	_, err = f.svc.CreateLockerReservation(ctx, f.lockers[1].ID, "bob", span(8, 0, 20*24*time.Hour+30*time.Minute))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = f.svc.CreateLockerReservation(ctx, f.lockers[1].ID, "", span(8, 0, time.Hour))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

// ────────────────────────────────────────────────
// Lifecycle
// ────────────────────────────────────────────────

func TestCancel_ReleasesPeriodAndRefreshesTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lane := f.lanes[0]

	r, err := f.svc.CreateLaneReservation(ctx, lane.ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)

	cancelledAt := time.Date(2031, 1, 1, 7, 30, 0, 0, time.UTC)
	f.clock.Set(cancelledAt)
	got, err := f.svc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Cancelled)
	assert.True(t, got.Cancelled.Equal(cancelledAt))

	recancelledAt := cancelledAt.Add(time.Hour)
	f.clock.Set(recancelledAt)
	again, err := f.svc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, again.Cancelled)
	assert.True(t, again.Cancelled.Equal(recancelledAt), "cancelled=%s", again.Cancelled)

	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled.Equal(recancelledAt))

	_, err = f.svc.CreateLaneReservation(ctx, lane.ID, span(9, 0, 9*time.Hour), nil)
	assert.NoError(t, err)

	assert.Equal(t, []string{EventCreated, EventCancelled, EventCancelled, EventCreated}, f.publisher.types())

	_, err = f.svc.Cancel(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	_, err = f.svc.Cancel(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
}

func TestCheckInCheckOut_PreserveOtherBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.CreateLaneReservation(ctx, f.lanes[0].ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)

	out := time.Date(2031, 1, 1, 18, 5, 0, 0, time.UTC)
	f.clock.Set(out)
	got, err := f.svc.CheckOut(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Actual.Lower)
	assert.True(t, got.Actual.Upper.Equal(out))

	in := time.Date(2031, 1, 1, 9, 2, 0, 0, time.UTC)
	f.clock.Set(in)
	got, err = f.svc.CheckIn(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Actual.Lower.Equal(in))
	assert.True(t, got.Actual.Upper.Equal(out))

	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.Actual.Equal(got.Actual))

	// No state guards: a cancelled reservation can still be checked in.
	_, err = f.svc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, r.ID)
	assert.NoError(t, err)

	assert.Equal(t,
		[]string{EventCreated, EventCheckedOut, EventCheckedIn, EventCancelled, EventCheckedIn},
		f.publisher.types(),
	)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.publish = func(ctx context.Context, eventType string, r *model.Reservation) error {
		return errors.New("broker down")
	}

	r, err := f.svc.CreateLaneReservation(context.Background(), f.lanes[0].ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), r.ID)
	assert.NoError(t, err)
}

func TestDeleteLane_PurgesReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.CreateLaneReservation(ctx, f.lanes[0].ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)
	other, err := f.svc.CreateLaneReservation(ctx, f.lanes[1].ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)

	require.NoError(t, f.registry.DeleteLane(ctx, f.lanes[0].ID))

	_, err = f.svc.Get(ctx, r.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	_, err = f.svc.Get(ctx, other.ID)
	assert.NoError(t, err)

	require.NoError(t, f.registry.DeletePool(ctx, f.pool.ID))
	_, err = f.svc.Get(ctx, other.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

// ────────────────────────────────────────────────
// Invariants
// ────────────────────────────────────────────────

func TestConcurrentCreate_ExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateLaneReservation(ctx, f.lanes[0].ID, span(9, 0, 9*time.Hour), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case apperrors.Is(err, apperrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, workers-1, conflicts)
}

// booked is an accepted, not yet cancelled reservation as the reference
// model sees it.
type booked struct {
	id       string
	kind     model.Kind
	resource string
	user     string
	period   interval.Period
}

// clashes reports whether candidate may not coexist with any row of ref:
// same lane, same locker, or same locker user over an overlapping period.
func clashes(ref []booked, candidate booked) bool {
	for _, b := range ref {
		if b.kind != candidate.kind || !b.period.Overlaps(candidate.period) {
			continue
		}
		if b.resource == candidate.resource {
			return true
		}
		if b.kind == model.KindLocker && b.user == candidate.user {
			return true
		}
	}
	return false
}

func TestExclusionInvariant_RandomWorkload(t *testing.T) {
	backends := map[string]func(t *testing.T) repository.ReservationRepository{
		"memory": func(t *testing.T) repository.ReservationRepository { return repository.NewMemoryReservationRepository() },
		"sqlite": newSQLiteRepo,
	}
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			f := newFixtureWithRepo(t, newRepo(t))
			ctx := context.Background()
			rng := rand.New(rand.NewSource(42))
			users := []string{"u1", "u2", "u3", "u4"}

			var (
				ref      []booked
				accepted int
				rejected int
			)
			for i := 0; i < 300; i++ {
				halfHours := rng.Intn(14 * 48)
				lower := base().Add(time.Duration(halfHours) * 30 * time.Minute)

				var (
					candidate booked
					r         *model.Reservation
					err       error
				)
				if rng.Intn(3) < 2 {
					lane := f.lanes[rng.Intn(len(f.lanes))]
					d := 9*time.Hour + time.Duration(rng.Intn(12))*30*time.Minute
					period := interval.Period{Lower: ptr(lower), Upper: ptr(lower.Add(d))}
					candidate = booked{kind: model.KindLane, resource: lane.ID, period: period}
					r, err = f.svc.CreateLaneReservation(ctx, lane.ID, period, nil)
				} else {
					locker := f.lockers[rng.Intn(len(f.lockers))]
					user := users[rng.Intn(len(users))]
					d := time.Duration(1+rng.Intn(96)) * 30 * time.Minute
					period := interval.Period{Lower: ptr(lower), Upper: ptr(lower.Add(d))}
					candidate = booked{kind: model.KindLocker, resource: locker.ID, user: user, period: period}
					r, err = f.svc.CreateLockerReservation(ctx, locker.ID, user, period)
				}

				if clashes(ref, candidate) {
					require.Error(t, err, "request %d should clash with an accepted reservation", i)
					require.True(t, apperrors.Is(err, apperrors.CodeConflict), "got %v", err)
					rejected++
				} else {
					require.NoError(t, err, "request %d has no clash in the reference", i)
					candidate.id = r.ID
					ref = append(ref, candidate)
					accepted++
				}

				if len(ref) > 0 && rng.Intn(10) == 0 {
					k := rng.Intn(len(ref))
					_, err := f.svc.Cancel(ctx, ref[k].id)
					require.NoError(t, err)
					ref = append(ref[:k], ref[k+1:]...)
				}
			}
			assert.NotZero(t, accepted)
			assert.NotZero(t, rejected)

			active, err := f.repo.Find(ctx, repository.Filter{})
			require.NoError(t, err)
			want := make([]string, 0, len(ref))
			for _, b := range ref {
				want = append(want, b.id)
			}
			got := make([]string, 0, len(active))
			for _, a := range active {
				got = append(got, a.ID)
			}
			assert.ElementsMatch(t, want, got)
		})
	}
}

func base() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }

func ptr(t time.Time) *time.Time { return &t }

// lockWaitSamples reads the local backend's lock wait sample count from the
// default registry.
func lockWaitSamples(t *testing.T) uint64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "poolsched_lock_wait_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "backend" && l.GetValue() == lock.BackendLocal {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestLockWait_ObservedOncePerAcquire(t *testing.T) {
	metrics.Register()
	f := newFixture(t)
	ctx := context.Background()

	before := lockWaitSamples(t)
	r, err := f.svc.CreateLaneReservation(ctx, f.lanes[0].ID, span(9, 0, 9*time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, lockWaitSamples(t))

	_, err = f.svc.CheckIn(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, before+2, lockWaitSamples(t))
}
