package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

func testUsers(t *testing.T) *store.Collection[model.User, *model.User] {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st.Users()
}

func putUser(t *testing.T, users *store.Collection[model.User, *model.User], name string, status model.Status, updated time.Time) *model.User {
	t.Helper()
	u := &model.User{
		Meta:  model.NewMeta(),
		Name:  name,
		Email: name + "@example.com",
		Role:  model.RoleManager,
	}
	u.Status = status
	u.UpdatedAt = updated
	if err := users.PutLocal(context.Background(), u); err != nil {
		t.Fatalf("PutLocal() failed: %v", err)
	}
	return u
}

func TestCurrentUser_Empty(t *testing.T) {
	r := NewResolver(testUsers(t))
	_, err := r.CurrentUser(context.Background())
	if !errors.Is(err, ErrNoUser) {
		t.Errorf("CurrentUser() error = %v, want ErrNoUser", err)
	}
}

func TestCurrentUser_PrefersSynced(t *testing.T) {
	users := testUsers(t)
	now := time.Now().UTC()

	// The waiting user is newer, but synced state is known-good.
	putUser(t, users, "fresh-waiting", model.StatusWaiting, now)
	synced := putUser(t, users, "synced", model.StatusSynced, now.Add(-time.Hour))

	got, err := NewResolver(users).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() failed: %v", err)
	}
	if got.ID != synced.ID {
		t.Errorf("CurrentUser() = %s, want the synced user", got.Name)
	}
}

func TestCurrentUser_FallsBackToNewest(t *testing.T) {
	users := testUsers(t)
	now := time.Now().UTC()

	putUser(t, users, "older", model.StatusWaiting, now.Add(-time.Hour))
	newest := putUser(t, users, "newest", model.StatusWaiting, now)

	got, err := NewResolver(users).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() failed: %v", err)
	}
	if got.ID != newest.ID {
		t.Errorf("CurrentUser() = %s, want the newest user", got.Name)
	}
}
