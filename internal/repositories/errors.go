package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")
)

// SQLExecutor is satisfied by *sqlx.DB and *sqlx.Tx, so repository methods
// run either standalone or inside a service-owned transaction.
type SQLExecutor interface {
	sqlx.ExtContext
}

const (
	driverPostgres = "postgres"
	driverMySQL    = "mysql"
)

// isUniqueViolation recognizes unique constraint failures from every supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapError maps driver errors onto the repository sentinels.
func wrapError(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrDuplicateKey, action, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, action, err)
	}
}

// insertReturningID runs an INSERT written with ? placeholders and returns the new id.
// MySQL lacks RETURNING and reports the id through LastInsertId.
func insertReturningID(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (int64, error) {
	if exec.DriverName() == driverMySQL {
		res, err := exec.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	var id int64
	err := exec.QueryRowxContext(ctx, exec.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// rebind converts ? placeholders for the executor's driver.
func rebind(exec SQLExecutor, query string) string {
	return exec.Rebind(query)
}

// likePattern builds a case-insensitive substring pattern.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// requireRow turns an update that matched nothing into ErrNotFound.
func requireRow(res sql.Result, action string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError(err, action)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
