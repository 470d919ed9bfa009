package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	reservationserrors "poolsched/internal/reservations/errors"
	"poolsched/pkg/db"
	"poolsched/pkg/db/sqlite"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"strings"
	"time"
)

type sqliteReservationRepository struct {
	conn      *sql.DB
	txManager db.TransactionManager
}

func NewSQLiteReservationRepository(conn *sql.DB) ReservationRepository {
	return &sqliteReservationRepository{
		conn:      conn,
		txManager: sqlite.NewTransactionManager(conn),
	}
}

const reservationColumns = `id, kind, resource_id, pool_id, period_lower, period_upper, actual_lower, actual_upper, cancelled, created_at`

// overlapClause matches rows whose period shares an instant with [?, ?).
// NULL on either side is unbounded. Empty periods are dropped in Go.
const overlapClause = `(period_lower IS NULL OR ? IS NULL OR period_lower < ?) AND (period_upper IS NULL OR ? IS NULL OR ? < period_upper)`

func overlapArgs(p interval.Period) []any {
	lower, upper := sqlite.NullTime(p.Lower), sqlite.NullTime(p.Upper)
	return []any{upper, upper, lower, lower}
}

func (r *sqliteReservationRepository) q(ctx context.Context) sqlite.Querier {
	return sqlite.Conn(ctx, r.conn)
}

func (r *sqliteReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	return r.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := r.q(ctx).ExecContext(ctx,
			`INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, string(res.Kind), res.ResourceID, res.PoolID,
			sqlite.NullTime(res.Period.Lower), sqlite.NullTime(res.Period.Upper),
			sqlite.NullTime(res.Actual.Lower), sqlite.NullTime(res.Actual.Upper),
			sqlite.NullTime(res.Cancelled), sqlite.Unix(res.CreatedAt),
		)
		if err != nil {
			if sqlite.IsUniqueViolation(err) {
				return reservationserrors.ErrDuplicateID
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		for i, u := range res.Users {
			_, err := r.q(ctx).ExecContext(ctx,
				`INSERT INTO reservation_users (reservation_id, position, user_id) VALUES (?, ?, ?)`,
				res.ID, i, u,
			)
			if err != nil {
				return fmt.Errorf("failed to add reservation user: %w", err)
			}
		}
		return nil
	})
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res                            model.Reservation
		kind                           string
		pLow, pUp, aLow, aUp, canceled sql.NullInt64
		createdAt                      int64
	)
	err := row.Scan(&res.ID, &kind, &res.ResourceID, &res.PoolID, &pLow, &pUp, &aLow, &aUp, &canceled, &createdAt)
	if err != nil {
		return nil, err
	}
	res.Kind = model.Kind(kind)
	res.Period = interval.Period{Lower: sqlite.TimePtr(pLow), Upper: sqlite.TimePtr(pUp)}
	res.Actual = interval.Period{Lower: sqlite.TimePtr(aLow), Upper: sqlite.TimePtr(aUp)}
	res.Cancelled = sqlite.TimePtr(canceled)
	res.CreatedAt = sqlite.FromUnix(createdAt)
	return &res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	row := r.q(ctx).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	if err := r.loadUsers(ctx, []*model.Reservation{res}); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *sqliteReservationRepository) Update(ctx context.Context, res *model.Reservation) error {
	result, err := r.q(ctx).ExecContext(ctx,
		`UPDATE reservations SET actual_lower = ?, actual_upper = ?, cancelled = ? WHERE id = ?`,
		sqlite.NullTime(res.Actual.Lower), sqlite.NullTime(res.Actual.Upper), sqlite.NullTime(res.Cancelled), res.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if n == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

// DeleteByResource relies on ON DELETE CASCADE for reservation_users.
func (r *sqliteReservationRepository) DeleteByResource(ctx context.Context, kind model.Kind, resourceID string) (int64, error) {
	result, err := r.q(ctx).ExecContext(ctx,
		`DELETE FROM reservations WHERE kind = ? AND resource_id = ?`, string(kind), resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteReservationRepository) FindConflicts(ctx context.Context, res *model.Reservation) ([]*model.Reservation, error) {
	where := []string{"cancelled IS NULL", "id <> ?", overlapClause}
	args := append([]any{res.ID}, overlapArgs(res.Period)...)

	scope := "(kind = ? AND resource_id = ?)"
	args = append(args, string(res.Kind), res.ResourceID)
	if res.Kind == model.KindLocker && len(res.Users) > 0 {
		scope = "(" + scope + " OR (kind = ? AND id IN (SELECT reservation_id FROM reservation_users WHERE user_id IN (" + placeholders(len(res.Users)) + "))))"
		args = append(args, string(model.KindLocker))
		for _, u := range res.Users {
			args = append(args, u)
		}
	}
	where = append(where, scope)

	rows, err := r.query(ctx, where, args)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if Conflicts(res, row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *sqliteReservationRepository) Find(ctx context.Context, f Filter) ([]*model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.PoolID != "" {
		where = append(where, "pool_id = ?")
		args = append(args, f.PoolID)
	}
	if f.UserID != "" {
		where = append(where, "id IN (SELECT reservation_id FROM reservation_users WHERE user_id = ?)")
		args = append(args, f.UserID)
	}
	if !f.IncludeCancelled {
		where = append(where, "cancelled IS NULL")
	}
	if f.Overlapping != nil {
		where = append(where, overlapClause)
		args = append(args, overlapArgs(*f.Overlapping)...)
	}

	rows, err := r.query(ctx, where, args)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if f.Matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *sqliteReservationRepository) query(ctx context.Context, where []string, args []any) ([]*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	rows, err := r.q(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	var out []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to decode reservation: %w", err)
		}
		out = append(out, res)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}

	if err := r.loadUsers(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sqliteReservationRepository) loadUsers(ctx context.Context, list []*model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*model.Reservation, len(list))
	args := make([]any, 0, len(list))
	for _, res := range list {
		byID[res.ID] = res
		args = append(args, res.ID)
	}

	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT reservation_id, user_id FROM reservation_users WHERE reservation_id IN (`+placeholders(len(args))+`) ORDER BY reservation_id, position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load reservation users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, user string
		if err := rows.Scan(&id, &user); err != nil {
			return fmt.Errorf("failed to decode reservation user: %w", err)
		}
		if res, ok := byID[id]; ok {
			res.Users = append(res.Users, user)
		}
	}
	return rows.Err()
}

func (r *sqliteReservationRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
