// Package identity resolves the current user from the local store, with no
// network involved. The result scopes pull-sync queries (a manager pulls only
// their own students, teachers, receipts and schedules).
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// ErrNoUser means the local store holds no cached user at all, so sync pulls
// cannot be scoped. The caller must sign in (out of scope here) first.
var ErrNoUser = errors.New("no locally cached user")

// Resolver answers "who is the current user" from the users collection.
type Resolver struct {
	users *store.Collection[model.User, *model.User]
}

// NewResolver creates a resolver over the given users collection.
func NewResolver(users *store.Collection[model.User, *model.User]) *Resolver {
	return &Resolver{users: users}
}

// CurrentUser returns the most-recently-updated synced user, since a synced
// record is known-good server state. When no synced user exists yet (first
// run, still offline), it falls back to the most-recently-updated user of any
// status. Returns ErrNoUser when the collection is empty.
func (r *Resolver) CurrentUser(ctx context.Context) (*model.User, error) {
	users, err := r.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached users: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrNoUser
	}

	for _, u := range users {
		if u.EntityStatus() == model.StatusSynced {
			return u, nil
		}
	}
	return users[0], nil
}
