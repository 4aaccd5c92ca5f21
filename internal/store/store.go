// Package store provides the embedded local database for the sync engine.
//
// The store runs on SQLite (ncruces/go-sqlite3, embedded build) with WAL mode
// for concurrent reads. Each entity type gets one collection table with an
// identical shape: the full record as JSON plus indexed columns for id,
// status, updated_at and (where the entity has one) email. The indexed
// columns exist so the status partition behind every sync pass stays a cheap
// query even on large collections.
//
// All writes are scoped to a single record by primary key; the only multi-row
// write is the transactional synced-set replacement used by server imports.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
)

// Collection names, also the SQLite table names.
const (
	CollUsers           = "users"
	CollCenters         = "centers"
	CollTeachers        = "teachers"
	CollStudents        = "students"
	CollSubjects        = "subjects"
	CollTeacherSubjects = "teacherSubjects"
	CollStudentSubjects = "studentSubjects"
	CollReceipts        = "receipts"
	CollSchedules       = "schedules"
)

// collections in schema-creation order; the bool marks an email index.
var collections = []struct {
	name     string
	hasEmail bool
}{
	{CollUsers, true},
	{CollCenters, false},
	{CollTeachers, true},
	{CollStudents, true},
	{CollSubjects, false},
	{CollTeacherSubjects, false},
	{CollStudentSubjects, false},
	{CollReceipts, false},
	{CollSchedules, false},
}

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// OpenDB opens (creating if needed) the database file at path.
//
// The caller must Close() the returned DB.
func OpenDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates every collection table and its indexes. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	const collSchema = `
	CREATE TABLE IF NOT EXISTS "%[1]s" (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		email TEXT,
		updated_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS "idx_%[1]s_status" ON "%[1]s"(status);
	CREATE INDEX IF NOT EXISTS "idx_%[1]s_updated" ON "%[1]s"(updated_at);
	`
	const emailIndex = `CREATE INDEX IF NOT EXISTS "idx_%[1]s_email" ON "%[1]s"(email);`

	for _, c := range collections {
		stmt := fmt.Sprintf(collSchema, c.name)
		if c.hasEmail {
			stmt += fmt.Sprintf(emailIndex, c.name)
		}
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.name, err)
		}
	}

	meta := `
	CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.conn.ExecContext(ctx, meta); err != nil {
		return fmt.Errorf("failed to create sync_meta: %w", err)
	}
	return nil
}

// Store bundles the open database with one typed collection per entity.
type Store struct {
	db *DB

	users           *Collection[model.User, *model.User]
	centers         *Collection[model.Center, *model.Center]
	teachers        *Collection[model.Teacher, *model.Teacher]
	students        *Collection[model.Student, *model.Student]
	subjects        *Collection[model.Subject, *model.Subject]
	teacherSubjects *Collection[model.TeacherSubject, *model.TeacherSubject]
	studentSubjects *Collection[model.StudentSubject, *model.StudentSubject]
	receipts        *Collection[model.Receipt, *model.Receipt]
	schedules       *Collection[model.Schedule, *model.Schedule]
}

// Open opens the store at path and initializes the schema.
//
// If logger is nil, a no-op logger is used.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:              db,
		users:           NewCollection[model.User, *model.User](db, CollUsers, true, logger),
		centers:         NewCollection[model.Center, *model.Center](db, CollCenters, false, logger),
		teachers:        NewCollection[model.Teacher, *model.Teacher](db, CollTeachers, true, logger),
		students:        NewCollection[model.Student, *model.Student](db, CollStudents, true, logger),
		subjects:        NewCollection[model.Subject, *model.Subject](db, CollSubjects, false, logger),
		teacherSubjects: NewCollection[model.TeacherSubject, *model.TeacherSubject](db, CollTeacherSubjects, false, logger),
		studentSubjects: NewCollection[model.StudentSubject, *model.StudentSubject](db, CollStudentSubjects, false, logger),
		receipts:        NewCollection[model.Receipt, *model.Receipt](db, CollReceipts, false, logger),
		schedules:       NewCollection[model.Schedule, *model.Schedule](db, CollSchedules, false, logger),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the low-level database handle.
func (s *Store) DB() *DB { return s.db }

func (s *Store) Users() *Collection[model.User, *model.User]          { return s.users }
func (s *Store) Centers() *Collection[model.Center, *model.Center]    { return s.centers }
func (s *Store) Teachers() *Collection[model.Teacher, *model.Teacher] { return s.teachers }
func (s *Store) Students() *Collection[model.Student, *model.Student] { return s.students }
func (s *Store) Subjects() *Collection[model.Subject, *model.Subject] { return s.subjects }
func (s *Store) TeacherSubjects() *Collection[model.TeacherSubject, *model.TeacherSubject] {
	return s.teacherSubjects
}
func (s *Store) StudentSubjects() *Collection[model.StudentSubject, *model.StudentSubject] {
	return s.studentSubjects
}
func (s *Store) Receipts() *Collection[model.Receipt, *model.Receipt]    { return s.receipts }
func (s *Store) Schedules() *Collection[model.Schedule, *model.Schedule] { return s.schedules }

// StatusCounts returns one counting function per collection, keyed by
// collection name. Status reporting tallies unpushed work through these
// without caring about entity types.
func (s *Store) StatusCounts() map[string]func(context.Context, model.Status) (int, error) {
	counts := make(map[string]func(context.Context, model.Status) (int, error), len(collections))
	for _, c := range collections {
		name := c.name
		counts[name] = func(ctx context.Context, st model.Status) (int, error) {
			query := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE status = ?`, name)
			var n int
			if err := s.db.conn.QueryRowContext(ctx, query, string(st)).Scan(&n); err != nil {
				return 0, fmt.Errorf("failed to count %s: %w", name, err)
			}
			return n, nil
		}
	}
	return counts
}

// SetMeta stores an engine-level key/value (schema version, last sync time).
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO sync_meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns the stored value for key, or "" when unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.conn.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// MarkLastSync records the completion time of a successful sync pass.
func (s *Store) MarkLastSync(ctx context.Context, t time.Time) error {
	return s.SetMeta(ctx, "last_sync", t.UTC().Format(time.RFC3339))
}

// LastSync returns the recorded completion time of the last sync pass, or the
// zero time when none has completed yet.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := s.GetMeta(ctx, "last_sync")
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last_sync: %w", err)
	}
	return t, nil
}
