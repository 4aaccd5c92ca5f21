package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
)

// ErrNotFound is returned by point lookups when no record has the given key.
var ErrNotFound = errors.New("record not found")

// ErrNoEmailIndex is returned by GetLocalByEmail on collections whose entity
// has no email field.
var ErrNoEmailIndex = errors.New("collection has no email index")

// ptrRecord constrains P to "pointer to T implementing model.Record", so the
// collection can allocate fresh records when scanning rows.
type ptrRecord[T any] interface {
	*T
	model.Record
}

// Targets is the {waiting, pending} partition of one collection: the unit of
// work for one sync pass. Waiting records carry unpushed creates/updates,
// pending records are tombstones awaiting a confirmed remote delete.
type Targets[P any] struct {
	Waiting []P
	Pending []P
}

// Empty reports whether there is nothing to sync.
func (t *Targets[P]) Empty() bool {
	return len(t.Waiting) == 0 && len(t.Pending) == 0
}

// Collection is the uniform CRUD + status-transition layer over one entity
// table. It is instantiated once per entity type; every instance shares
// identical method semantics, which is what keeps nine structurally different
// business entities behaviorally consistent.
type Collection[T any, P ptrRecord[T]] struct {
	db       *DB
	name     string
	hasEmail bool
	logger   *zap.Logger
}

// NewCollection builds the action layer for one table. The table must already
// exist (see DB.InitSchema).
func NewCollection[T any, P ptrRecord[T]](db *DB, name string, hasEmail bool, logger *zap.Logger) *Collection[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection[T, P]{
		db:       db,
		name:     name,
		hasEmail: hasEmail,
		logger:   logger.With(zap.String("collection", name)),
	}
}

// Name returns the collection name.
func (c *Collection[T, P]) Name() string { return c.name }

// PutLocal inserts or replaces the record by id. The record's status is
// written as-is; callers own the status transition.
func (c *Collection[T, P]) PutLocal(ctx context.Context, rec P) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid %s record: %w", c.name, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", c.name, err)
	}

	email := sql.NullString{}
	if e := rec.EmailKey(); e != "" {
		email = sql.NullString{String: e, Valid: true}
	}

	query := fmt.Sprintf(`
	INSERT INTO "%s" (id, status, email, updated_at, data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		email = excluded.email,
		updated_at = excluded.updated_at,
		data = excluded.data
	`, c.name)

	_, err = c.db.conn.ExecContext(ctx, query,
		rec.EntityID(),
		string(rec.EntityStatus()),
		email,
		rec.LastUpdated().UnixMilli(),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s record %s: %w", c.name, rec.EntityID(), err)
	}
	return nil
}

// GetAll returns every record ordered by updated_at descending, so the
// most-recently-touched records come first.
func (c *Collection[T, P]) GetAll(ctx context.Context) ([]P, error) {
	query := fmt.Sprintf(`SELECT data FROM "%s" ORDER BY updated_at DESC`, c.name)
	rows, err := c.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer rows.Close()
	return c.scanRecords(rows)
}

// GetLocal returns the record with the given id, or ErrNotFound.
func (c *Collection[T, P]) GetLocal(ctx context.Context, id string) (P, error) {
	query := fmt.Sprintf(`SELECT data FROM "%s" WHERE id = ?`, c.name)
	return c.scanOne(c.db.conn.QueryRowContext(ctx, query, id))
}

// GetLocalByEmail returns the record with the given email, or ErrNotFound.
// Only collections with an email secondary index support this.
func (c *Collection[T, P]) GetLocalByEmail(ctx context.Context, email string) (P, error) {
	if !c.hasEmail {
		var zero P
		return zero, fmt.Errorf("%s: %w", c.name, ErrNoEmailIndex)
	}
	query := fmt.Sprintf(`SELECT data FROM "%s" WHERE email = ?`, c.name)
	return c.scanOne(c.db.conn.QueryRowContext(ctx, query, email))
}

// DeleteLocal hard-deletes the record. Deleting an absent id is a no-op.
func (c *Collection[T, P]) DeleteLocal(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM "%s" WHERE id = ?`, c.name)
	if _, err := c.db.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", c.name, id, err)
	}
	return nil
}

// MarkForDelete tombstones the record: status becomes pending-delete and
// updated_at is refreshed. Records already tombstoned are left untouched, so
// calling this twice observes the same state as calling it once.
func (c *Collection[T, P]) MarkForDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
	UPDATE "%s" SET
		status = ?,
		updated_at = ?,
		data = json_set(data, '$.status', ?, '$.updatedAt', ?)
	WHERE id = ? AND status != ?
	`, c.name)

	_, err := c.db.conn.ExecContext(ctx, query,
		string(model.StatusPendingDelete),
		now.UnixMilli(),
		string(model.StatusPendingDelete),
		now.Format(time.RFC3339Nano),
		id,
		string(model.StatusPendingDelete),
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s record %s for delete: %w", c.name, id, err)
	}
	return nil
}

// MarkSynced sets the record's status to synced. updated_at is not refreshed,
// the local content itself did not change.
func (c *Collection[T, P]) MarkSynced(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
	UPDATE "%s" SET
		status = ?,
		data = json_set(data, '$.status', ?)
	WHERE id = ?
	`, c.name)

	_, err := c.db.conn.ExecContext(ctx, query,
		string(model.StatusSynced),
		string(model.StatusSynced),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s record %s synced: %w", c.name, id, err)
	}
	return nil
}

// SyncTargets partitions the collection into waiting and pending-delete sets,
// each ordered by updated_at descending.
func (c *Collection[T, P]) SyncTargets(ctx context.Context) (*Targets[P], error) {
	waiting, err := c.byStatus(ctx, model.StatusWaiting)
	if err != nil {
		return nil, err
	}
	pending, err := c.byStatus(ctx, model.StatusPendingDelete)
	if err != nil {
		return nil, err
	}
	return &Targets[P]{Waiting: waiting, Pending: pending}, nil
}

// ReplaceSynced replaces the collection's synced records with fresh, inside a
// single transaction. Records currently waiting or tombstoned are preserved:
// a fresh record whose id still exists locally is skipped rather than allowed
// to clobber unpushed local work. Returns the number of records written.
//
// A failure anywhere in the sequence rolls the transaction back, leaving the
// store exactly as it was before the import.
func (c *Collection[T, P]) ReplaceSynced(ctx context.Context, fresh []P) (int, error) {
	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf(`DELETE FROM "%s" WHERE status = ?`, c.name)
	if _, err := tx.ExecContext(ctx, del, string(model.StatusSynced)); err != nil {
		return 0, fmt.Errorf("failed to clear synced %s records: %w", c.name, err)
	}

	ins := fmt.Sprintf(`
	INSERT INTO "%s" (id, status, email, updated_at, data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`, c.name)

	imported := 0
	for _, rec := range fresh {
		rec.SetStatus(model.StatusSynced)
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("invalid imported %s record: %w", c.name, err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal imported %s record: %w", c.name, err)
		}
		email := sql.NullString{}
		if e := rec.EmailKey(); e != "" {
			email = sql.NullString{String: e, Valid: true}
		}
		res, err := tx.ExecContext(ctx, ins,
			rec.EntityID(),
			string(model.StatusSynced),
			email,
			rec.LastUpdated().UnixMilli(),
			string(data),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to import %s record %s: %w", c.name, rec.EntityID(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read import result: %w", err)
		}
		if n == 0 {
			c.logger.Debug("import skipped record with unpushed local state",
				zap.String("id", rec.EntityID()))
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}

// CountByStatus returns the number of records in each status.
func (c *Collection[T, P]) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM "%s" GROUP BY status`, c.name)
	rows, err := c.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s records: %w", c.name, err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s counts: %w", c.name, err)
		}
		counts[model.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", c.name, err)
	}
	return counts, nil
}

func (c *Collection[T, P]) byStatus(ctx context.Context, status model.Status) ([]P, error) {
	query := fmt.Sprintf(`SELECT data FROM "%s" WHERE status = ? ORDER BY updated_at DESC`, c.name)
	rows, err := c.db.conn.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by status: %w", c.name, err)
	}
	defer rows.Close()
	return c.scanRecords(rows)
}

func (c *Collection[T, P]) scanOne(row *sql.Row) (P, error) {
	var zero P
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("failed to scan %s record: %w", c.name, err)
	}
	rec := P(new(T))
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return zero, fmt.Errorf("failed to unmarshal %s record: %w", c.name, err)
	}
	return rec, nil
}

func (c *Collection[T, P]) scanRecords(rows *sql.Rows) ([]P, error) {
	var recs []P
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", c.name, err)
		}
		rec := P(new(T))
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s record: %w", c.name, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", c.name, err)
	}
	return recs, nil
}
