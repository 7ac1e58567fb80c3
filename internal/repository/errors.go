// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between failure scenarios without
// inspecting driver errors.  For example, ErrHintExists signals that the
// unique (cinema, movie, report date) key rejected an insert, while
// ErrConflict is returned when a city or cinema name is already taken.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing
// unique name. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// dbtx is the subset of *sql.DB and *sql.Tx used by the repositories so
// the same queries can run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const dateLayout = "2006-01-02"

// sqlDate formats a calendar day for DATE columns.
func sqlDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// nullDate converts an optional day into a DATE argument.
func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return sqlDate(*t)
}

// timePtr converts a scanned nullable DATE into the model representation.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
