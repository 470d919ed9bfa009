package sqlite

import (
	"database/sql"
	"errors"
	"poolsched/pkg/interval"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Instants are stored as unix microseconds, which covers every year the
// date parser accepts. NULL is an unbounded side.

func Unix(t time.Time) int64 { return t.UnixMicro() }

func FromUnix(n int64) time.Time { return time.UnixMicro(n).UTC() }

func NullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: Unix(*t), Valid: true}
}

func TimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromUnix(n.Int64)
	return &t
}

func NullInt(i *interval.Int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func IntPtr(n sql.NullInt64) *interval.Int {
	if !n.Valid {
		return nil
	}
	i := interval.Int(n.Int64)
	return &i
}

// IsUniqueViolation reports a PRIMARY KEY or UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// IsForeignKeyViolation reports a FOREIGN KEY constraint failure.
func IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
