package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	registryerrors "poolsched/internal/registry/errors"
	"poolsched/pkg/db"
	"poolsched/pkg/db/sqlite"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"time"

	"github.com/shopspring/decimal"
)

type sqliteRegistryRepository struct {
	conn      *sql.DB
	txManager db.TransactionManager
}

func NewSQLiteRegistryRepository(conn *sql.DB) RegistryRepository {
	return &sqliteRegistryRepository{
		conn:      conn,
		txManager: sqlite.NewTransactionManager(conn),
	}
}

func (r *sqliteRegistryRepository) q(ctx context.Context) sqlite.Querier {
	return sqlite.Conn(ctx, r.conn)
}

func createErr(what string, err error) error {
	switch {
	case sqlite.IsUniqueViolation(err):
		return registryerrors.ErrDuplicateID
	case sqlite.IsForeignKeyViolation(err):
		return registryerrors.ErrPoolNotFound
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

func deleteErr(res sql.Result, err error, what string, notFound error) error {
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

const poolColumns = `id, name, address, depth_lower, depth_upper, hours_lower, hours_upper, created_at`

func (r *sqliteRegistryRepository) CreatePool(ctx context.Context, pool *model.Pool) error {
	if pool.CreatedAt.IsZero() {
		pool.CreatedAt = time.Now().UTC()
	}
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO pools (`+poolColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pool.ID, pool.Name, pool.Address,
		sqlite.NullInt(pool.Depth.Lower), sqlite.NullInt(pool.Depth.Upper),
		sqlite.NullInt(pool.BusinessHours.Lower), sqlite.NullInt(pool.BusinessHours.Upper),
		sqlite.Unix(pool.CreatedAt),
	)
	if err != nil {
		return createErr("pool", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (*model.Pool, error) {
	var (
		p                    model.Pool
		dLow, dUp, hLow, hUp sql.NullInt64
		createdAt            int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &dLow, &dUp, &hLow, &hUp, &createdAt); err != nil {
		return nil, err
	}
	p.Depth = interval.IntRange{Lower: sqlite.IntPtr(dLow), Upper: sqlite.IntPtr(dUp)}
	p.BusinessHours = interval.IntRange{Lower: sqlite.IntPtr(hLow), Upper: sqlite.IntPtr(hUp)}
	p.CreatedAt = sqlite.FromUnix(createdAt)
	return &p, nil
}

func (r *sqliteRegistryRepository) FindPool(ctx context.Context, id string) (*model.Pool, error) {
	row := r.q(ctx).QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = ?`, id)
	p, err := scanPool(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registryerrors.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to find pool: %w", err)
	}
	return p, nil
}

func (r *sqliteRegistryRepository) ListPools(ctx context.Context) ([]*model.Pool, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var pools []*model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// DeletePool relies on ON DELETE CASCADE for lanes, lockers and closures.
func (r *sqliteRegistryRepository) DeletePool(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM pools WHERE id = ?`, id)
	return deleteErr(res, err, "pool", registryerrors.ErrPoolNotFound)
}

func (r *sqliteRegistryRepository) CreateLane(ctx context.Context, lane *model.Lane) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO lanes (id, pool_id, name, max_swimmers, per_hour_cost) VALUES (?, ?, ?, ?, ?)`,
		lane.ID, lane.PoolID, lane.Name, lane.MaxSwimmers, lane.PerHourCost.String(),
	)
	if err != nil {
		return createErr("lane", err)
	}
	return nil
}

func scanLane(row rowScanner) (*model.Lane, error) {
	var (
		l    model.Lane
		cost string
	)
	if err := row.Scan(&l.ID, &l.PoolID, &l.Name, &l.MaxSwimmers, &cost); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("invalid per_hour_cost %q: %w", cost, err)
	}
	l.PerHourCost = d
	return &l, nil
}

func (r *sqliteRegistryRepository) FindLane(ctx context.Context, id string) (*model.Lane, error) {
	row := r.q(ctx).QueryRowContext(ctx,
		`SELECT id, pool_id, name, max_swimmers, per_hour_cost FROM lanes WHERE id = ?`, id)
	l, err := scanLane(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registryerrors.ErrLaneNotFound
		}
		return nil, fmt.Errorf("failed to find lane: %w", err)
	}
	return l, nil
}

func (r *sqliteRegistryRepository) ListLanes(ctx context.Context, poolID string) ([]*model.Lane, error) {
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT id, pool_id, name, max_swimmers, per_hour_cost FROM lanes WHERE pool_id = ? ORDER BY name`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lanes: %w", err)
	}
	defer rows.Close()

	var lanes []*model.Lane
	for rows.Next() {
		l, err := scanLane(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode lane: %w", err)
		}
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

func (r *sqliteRegistryRepository) DeleteLane(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM lanes WHERE id = ?`, id)
	return deleteErr(res, err, "lane", registryerrors.ErrLaneNotFound)
}

func (r *sqliteRegistryRepository) CreateLocker(ctx context.Context, locker *model.Locker) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO lockers (id, pool_id, number, per_hour_cost) VALUES (?, ?, ?, ?)`,
		locker.ID, locker.PoolID, locker.Number, locker.PerHourCost.String(),
	)
	if err != nil {
		return createErr("locker", err)
	}
	return nil
}

func scanLocker(row rowScanner) (*model.Locker, error) {
	var (
		l    model.Locker
		cost string
	)
	if err := row.Scan(&l.ID, &l.PoolID, &l.Number, &cost); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("invalid per_hour_cost %q: %w", cost, err)
	}
	l.PerHourCost = d
	return &l, nil
}

func (r *sqliteRegistryRepository) FindLocker(ctx context.Context, id string) (*model.Locker, error) {
	row := r.q(ctx).QueryRowContext(ctx,
		`SELECT id, pool_id, number, per_hour_cost FROM lockers WHERE id = ?`, id)
	l, err := scanLocker(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registryerrors.ErrLockerNotFound
		}
		return nil, fmt.Errorf("failed to find locker: %w", err)
	}
	return l, nil
}

func (r *sqliteRegistryRepository) ListLockers(ctx context.Context, poolID string) ([]*model.Locker, error) {
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT id, pool_id, number, per_hour_cost FROM lockers WHERE pool_id = ? ORDER BY number`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lockers: %w", err)
	}
	defer rows.Close()

	var lockers []*model.Locker
	for rows.Next() {
		l, err := scanLocker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode locker: %w", err)
		}
		lockers = append(lockers, l)
	}
	return lockers, rows.Err()
}

func (r *sqliteRegistryRepository) DeleteLocker(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM lockers WHERE id = ?`, id)
	return deleteErr(res, err, "locker", registryerrors.ErrLockerNotFound)
}

func (r *sqliteRegistryRepository) CreateClosure(ctx context.Context, closure *model.Closure) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO closures (id, pool_id, dates_lower, dates_upper, reason) VALUES (?, ?, ?, ?, ?)`,
		closure.ID, closure.PoolID,
		sqlite.NullTime(closure.Dates.Lower), sqlite.NullTime(closure.Dates.Upper),
		closure.Reason,
	)
	if err != nil {
		return createErr("closure", err)
	}
	return nil
}

func (r *sqliteRegistryRepository) ListClosures(ctx context.Context, poolID string) ([]*model.Closure, error) {
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT id, pool_id, dates_lower, dates_upper, reason FROM closures WHERE pool_id = ? ORDER BY dates_lower`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	defer rows.Close()

	var closures []*model.Closure
	for rows.Next() {
		var (
			c         model.Closure
			low, high sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.PoolID, &low, &high, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to decode closure: %w", err)
		}
		c.Dates = interval.Period{Lower: sqlite.TimePtr(low), Upper: sqlite.TimePtr(high)}
		closures = append(closures, &c)
	}
	return closures, rows.Err()
}

func (r *sqliteRegistryRepository) DeleteClosure(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM closures WHERE id = ?`, id)
	return deleteErr(res, err, "closure", registryerrors.ErrClosureNotFound)
}

func (r *sqliteRegistryRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
