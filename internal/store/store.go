package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"yunmun/api/internal/workflow"
)

var (
	// ErrVersionConflict means a version-predicated write matched no row.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicate wraps unique-constraint violations.
	ErrDuplicate = errors.New("store: duplicate key")
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Reader is the read side shared by Store and Tx.
type Reader interface {
	GetWork(ctx context.Context, workID string) (Work, error)
	GetChapter(ctx context.Context, workID string, number int) (Chapter, error)
	ActiveContract(ctx context.Context, workID, editorID string) (Contract, error)
	HasActiveContract(ctx context.Context, workID string) (bool, error)
	GetContract(ctx context.Context, contractID string) (Contract, error)
	GetSnapshot(ctx context.Context, snapshotID string) (Snapshot, error)
	CountChapters(ctx context.Context, workID string) (int, error)
	CountChaptersNotInStatus(ctx context.Context, workID string, status workflow.ChapterStatus) (int, error)
}

// Tx is the unit of work handed to WithinTx callbacks. Every write made
// through it commits or rolls back together.
type Tx interface {
	Reader
	LockWork(ctx context.Context, workID string) error
	InsertWork(ctx context.Context, work Work) error
	UpdateWorkStatus(ctx context.Context, workID string, status workflow.WorkStatus, at time.Time) error
	SetWorkEditor(ctx context.Context, workID, editorID string, at time.Time) error
	SetWorkTotalChapters(ctx context.Context, workID string, total int, at time.Time) error
	InsertChapter(ctx context.Context, chapter Chapter) error
	UpdateChapter(ctx context.Context, chapter Chapter, expectedVersion int64) error
	DeleteChapter(ctx context.Context, chapterID string) error
	InsertSnapshot(ctx context.Context, snapshot Snapshot) error
	InsertActivity(ctx context.Context, activity Activity) error
	InsertContract(ctx context.Context, contract Contract) error
	DeactivateContracts(ctx context.Context, workID, editorID string, at time.Time) error
	CompleteContract(ctx context.Context, contractID string, at time.Time) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries carries the SQL shared by the pooled handle and transactions.
type queries struct {
	q       querier
	dialect Dialect
}

func (q queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// timeArg binds a timestamp: TIMESTAMPTZ on Postgres, fixed-width text on
// SQLite so lexical order matches time order.
func (q queries) timeArg(t time.Time) any {
	t = t.UTC().Truncate(time.Millisecond)
	if q.dialect == DialectSQLite {
		return t.Format(timeLayout)
	}
	return t
}

func (q queries) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return q.timeArg(*t)
}

type Store struct {
	queries
	db *sql.DB
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{queries: queries{q: db, dialect: dialect}, db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqlTx struct {
	queries
}

// WithinTx runs fn inside a transaction. fn's error rolls everything back;
// SQLite busy errors retry the whole unit.
func (s *Store) WithinTx(ctx context.Context, fn func(Tx) error) error {
	run := func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(sqlTx{queries{q: tx, dialect: s.dialect}}); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}
	if s.dialect != DialectSQLite {
		return run()
	}
	return retryOnBusy(ctx, run)
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case 2067, 1555:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapWrite classifies a failed write.
func wrapWrite(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// timeScanner accepts TIMESTAMPTZ values and the text layout SQLite stores.
type timeScanner struct {
	dest *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dest = time.Time{}
		return nil
	case time.Time:
		*s.dest = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (s timeScanner) parse(value string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			*s.dest = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognized value %q", value)
}

type nullTimeScanner struct {
	dest **time.Time
}

func (s nullTimeScanner) Scan(src any) error {
	if src == nil {
		*s.dest = nil
		return nil
	}
	var t time.Time
	if err := (timeScanner{dest: &t}).Scan(src); err != nil {
		return err
	}
	*s.dest = &t
	return nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullableInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
