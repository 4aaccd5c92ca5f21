package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutordesk/tutorsync/internal/model"
)

// testStore opens a store on a temp file. The file-backed database is shared
// by every pooled connection, unlike :memory:.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_CreatesSchema(t *testing.T) {
	st := testStore(t)

	for _, c := range collections {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := st.db.conn.QueryRow(query, c.name).Scan(&count); err != nil {
			t.Fatalf("failed to query table %s: %v", c.name, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", c.name)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.db.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() failed: %v", err)
	}
}

func TestMeta_RoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	got, err := st.GetMeta(ctx, "missing")
	if err != nil {
		t.Fatalf("GetMeta() failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetMeta(missing) = %q, want empty", got)
	}

	if err := st.SetMeta(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMeta() failed: %v", err)
	}
	if err := st.SetMeta(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMeta() overwrite failed: %v", err)
	}
	got, err = st.GetMeta(ctx, "k")
	if err != nil {
		t.Fatalf("GetMeta() failed: %v", err)
	}
	if got != "v2" {
		t.Errorf("GetMeta(k) = %q, want %q", got, "v2")
	}
}

func TestLastSync_RoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	got, err := st.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("LastSync() before any sync = %v, want zero", got)
	}

	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := st.MarkLastSync(ctx, want); err != nil {
		t.Fatalf("MarkLastSync() failed: %v", err)
	}
	got, err = st.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync() failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("LastSync() = %v, want %v", got, want)
	}
}

func TestStatusCounts(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	sub := &model.Subject{Meta: model.NewMeta(), Name: "Math", CenterID: model.NewID()}
	if err := st.Subjects().PutLocal(ctx, sub); err != nil {
		t.Fatalf("PutLocal() failed: %v", err)
	}

	counts := st.StatusCounts()
	n, err := counts[CollSubjects](ctx, model.StatusWaiting)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("waiting subjects = %d, want 1", n)
	}
	n, err = counts[CollStudents](ctx, model.StatusWaiting)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("waiting students = %d, want 0", n)
	}
}
