package repository

import (
	"context"
	"errors"
	"path/filepath"
	migrations "poolsched/internal/migrations/sqlite"
	reservationserrors "poolsched/internal/reservations/errors"
	"poolsched/pkg/db/sqlite"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hours(from, to int) interval.Period {
	base := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	lower := base.Add(time.Duration(from) * time.Hour)
	upper := base.Add(time.Duration(to) * time.Hour)
	return interval.Period{Lower: &lower, Upper: &upper}
}

func backends() map[string]func(t *testing.T) ReservationRepository {
	return map[string]func(t *testing.T) ReservationRepository{
		"memory": func(t *testing.T) ReservationRepository { return NewMemoryReservationRepository() },
		"sqlite": func(t *testing.T) ReservationRepository {
			conn, err := sqlite.Open(filepath.Join(t.TempDir(), "reservations.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })
			require.NoError(t, migrations.RunMigration(context.Background(), conn))
			return NewSQLiteReservationRepository(conn)
		},
	}
}

func ids(rows []*model.Reservation) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}

func seed(t *testing.T, repo ReservationRepository) {
	t.Helper()
	ctx := context.Background()
	rows := []*model.Reservation{
		{ID: "lane-a", Kind: model.KindLane, ResourceID: "lane-1", PoolID: "pool-1", Users: []string{"alice", "bob"}, Period: hours(9, 18)},
		{ID: "lane-b", Kind: model.KindLane, ResourceID: "lane-2", PoolID: "pool-2", Period: hours(9, 18)},
		{ID: "locker-a", Kind: model.KindLocker, ResourceID: "locker-1", PoolID: "pool-1", Users: []string{"alice"}, Period: hours(8, 10)},
		{ID: "locker-b", Kind: model.KindLocker, ResourceID: "locker-2", PoolID: "pool-1", Users: []string{"carol"}, Period: hours(20, 22)},
		{ID: "open-ended", Kind: model.KindLocker, ResourceID: "locker-3", PoolID: "pool-2", Users: []string{"dave"}, Period: interval.Period{Lower: hours(30, 31).Lower}},
	}
	for _, r := range rows {
		require.NoError(t, repo.Create(ctx, r))
	}
}

func TestReservationRepositories(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			seed(t, repo)

			t.Run("find by id keeps users in order", func(t *testing.T) {
				got, err := repo.FindByID(ctx, "lane-a")
				require.NoError(t, err)
				assert.Equal(t, []string{"alice", "bob"}, got.Users)
				assert.True(t, got.Period.Equal(hours(9, 18)))
				assert.Nil(t, got.Actual.Lower)
				assert.Nil(t, got.Cancelled)

				_, err = repo.FindByID(ctx, "missing")
				assert.ErrorIs(t, err, reservationserrors.ErrNotFound)
			})

			t.Run("duplicate id", func(t *testing.T) {
				err := repo.Create(ctx, &model.Reservation{ID: "lane-a", Kind: model.KindLane, ResourceID: "lane-9", PoolID: "pool-1", Period: hours(1, 2)})
				assert.ErrorIs(t, err, reservationserrors.ErrDuplicateID)
			})

			t.Run("conflicts", func(t *testing.T) {
				tests := []struct {
					name      string
					candidate *model.Reservation
					want      []string
				}{
					{
						name:      "same lane overlapping",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(17, 26)},
						want:      []string{"lane-a"},
					},
					{
						name:      "same lane touching",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(18, 27)},
						want:      []string{},
					},
					{
						name:      "lane users do not matter",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLane, ResourceID: "lane-3", Users: []string{"alice"}, Period: hours(9, 18)},
						want:      []string{},
					},
					{
						name:      "locker same user other locker",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLocker, ResourceID: "locker-9", Users: []string{"alice"}, Period: hours(9, 11)},
						want:      []string{"locker-a"},
					},
					{
						name:      "locker open ended row",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLocker, ResourceID: "locker-3", Users: []string{"erin"}, Period: hours(100, 101)},
						want:      []string{"open-ended"},
					},
					{
						name:      "empty period overlaps nothing",
						candidate: &model.Reservation{ID: "x", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(10, 10)},
						want:      []string{},
					},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						got, err := repo.FindConflicts(ctx, tt.candidate)
						require.NoError(t, err)
						assert.Equal(t, tt.want, ids(got))
					})
				}
			})

			t.Run("find filters", func(t *testing.T) {
				window := hours(9, 10)
				tests := []struct {
					name   string
					filter Filter
					want   []string
				}{
					{name: "all active", filter: Filter{}, want: []string{"lane-a", "lane-b", "locker-a", "locker-b", "open-ended"}},
					{name: "by kind", filter: Filter{Kind: model.KindLane}, want: []string{"lane-a", "lane-b"}},
					{name: "by pool", filter: Filter{PoolID: "pool-2"}, want: []string{"lane-b", "open-ended"}},
					{name: "by user", filter: Filter{UserID: "alice"}, want: []string{"lane-a", "locker-a"}},
					{name: "by resource", filter: Filter{Kind: model.KindLocker, ResourceID: "locker-2"}, want: []string{"locker-b"}},
					{name: "overlapping", filter: Filter{Overlapping: &window}, want: []string{"lane-a", "lane-b", "locker-a"}},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						got, err := repo.Find(ctx, tt.filter)
						require.NoError(t, err)
						assert.Equal(t, tt.want, ids(got))
					})
				}
			})

			t.Run("update and cancel", func(t *testing.T) {
				r, err := repo.FindByID(ctx, "locker-b")
				require.NoError(t, err)
				in := time.Date(2031, 1, 1, 20, 3, 0, 0, time.UTC)
				cancelled := time.Date(2031, 1, 1, 21, 0, 0, 0, time.UTC)
				r.Actual = r.Actual.WithLower(&in)
				r.Cancelled = &cancelled
				require.NoError(t, repo.Update(ctx, r))

				got, err := repo.FindByID(ctx, "locker-b")
				require.NoError(t, err)
				assert.True(t, got.Actual.Lower.Equal(in))
				assert.Nil(t, got.Actual.Upper)
				require.NotNil(t, got.Cancelled)
				assert.True(t, got.Cancelled.Equal(cancelled))

				active, err := repo.Find(ctx, Filter{UserID: "carol"})
				require.NoError(t, err)
				assert.Empty(t, active)
				all, err := repo.Find(ctx, Filter{UserID: "carol", IncludeCancelled: true})
				require.NoError(t, err)
				assert.Len(t, all, 1)

				conflicts, err := repo.FindConflicts(ctx, &model.Reservation{ID: "y", Kind: model.KindLocker, ResourceID: "locker-2", Users: []string{"zed"}, Period: hours(20, 22)})
				require.NoError(t, err)
				assert.Empty(t, conflicts)

				err = repo.Update(ctx, &model.Reservation{ID: "missing"})
				assert.ErrorIs(t, err, reservationserrors.ErrNotFound)
			})

			t.Run("delete by resource", func(t *testing.T) {
				n, err := repo.DeleteByResource(ctx, model.KindLane, "lane-1")
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				_, err = repo.FindByID(ctx, "lane-a")
				assert.ErrorIs(t, err, reservationserrors.ErrNotFound)

				byUser, err := repo.Find(ctx, Filter{UserID: "bob"})
				require.NoError(t, err)
				assert.Empty(t, byUser)

				n, err = repo.DeleteByResource(ctx, model.KindLocker, "lane-2")
				require.NoError(t, err)
				assert.Zero(t, n)
			})
		})
	}
}

func TestSQLiteReservationRepository_RollbackDropsUsers(t *testing.T) {
	ctx := context.Background()
	repo := backends()["sqlite"](t)
	boom := errors.New("boom")

	err := repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		r := &model.Reservation{ID: "tmp", Kind: model.KindLocker, ResourceID: "locker-1", PoolID: "pool-1", Users: []string{"alice"}, Period: hours(1, 2)}
		if err := repo.Create(ctx, r); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := repo.Find(ctx, Filter{UserID: "alice", IncludeCancelled: true})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestConflicts(t *testing.T) {
	cancelled := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	lane := &model.Reservation{ID: "a", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(9, 18)}

	assert.True(t, Conflicts(&model.Reservation{ID: "b", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(10, 11)}, lane))
	assert.False(t, Conflicts(&model.Reservation{ID: "a", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(10, 11)}, lane))
	assert.False(t, Conflicts(&model.Reservation{ID: "b", Kind: model.KindLocker, ResourceID: "lane-1", Period: hours(10, 11)}, lane))

	gone := *lane
	gone.Cancelled = &cancelled
	assert.False(t, Conflicts(&model.Reservation{ID: "b", Kind: model.KindLane, ResourceID: "lane-1", Period: hours(10, 11)}, &gone))
}

func TestReservationRepositories_FarFutureInstants(t *testing.T) {
	ranges := []string{
		"01/01/2300 (09:00) - 01/01/2300 (18:00)",
		"12/30/9999 (09:00) - 12/30/9999 (18:30)",
		"01/01/0001 (09:00) - 01/01/0001 (18:00)",
	}
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			for i, s := range ranges {
				period, err := interval.ParseDateTimeRange(s, time.UTC)
				require.NoError(t, err)

				id := "far-" + string(rune('a'+i))
				require.NoError(t, repo.Create(ctx, &model.Reservation{ID: id, Kind: model.KindLane, ResourceID: "lane-1", PoolID: "pool-1", Period: period}))

				got, err := repo.FindByID(ctx, id)
				require.NoError(t, err)
				assert.True(t, got.Period.Equal(period), "stored %s, read back %s", period, got.Period)

				inside := period.Lower.Add(time.Hour)
				overlap := interval.Period{Lower: &inside, Upper: period.Upper}
				conflicts, err := repo.FindConflicts(ctx, &model.Reservation{ID: "x", Kind: model.KindLane, ResourceID: "lane-1", Period: overlap})
				require.NoError(t, err)
				assert.Equal(t, []string{id}, ids(conflicts))
			}
		})
	}
}
