package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// userDTO is the wire shape of a user. Local sync status never crosses the
// wire; createdAt/updatedAt are the server's timestamps, consumed on import.
type userDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func userToDTO(u *model.User) userDTO {
	return userDTO{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		Role:  string(u.Role),
	}
}

func userFromDTO(d userDTO) *model.User {
	return &model.User{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Name:  d.Name,
		Email: d.Email,
		Phone: d.Phone,
		Role:  model.Role(d.Role),
	}
}

// UserAdapter syncs the locally cached accounts with /api/users.
type UserAdapter struct {
	deps  Deps
	users *store.Collection[model.User, *model.User]
}

// NewUserAdapter builds the adapter for the users collection.
func NewUserAdapter(d Deps) *UserAdapter {
	return &UserAdapter{deps: d, users: d.Store.Users()}
}

func (a *UserAdapter) Name() string { return store.CollUsers }

func (a *UserAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/users", nil, id)
}

func (a *UserAdapter) CreateOnServer(ctx context.Context, rec *model.User) (*model.User, error) {
	var out userDTO
	if err := a.deps.API.Post(ctx, "/api/users", userToDTO(rec), &out); err != nil {
		return nil, err
	}
	return userFromDTO(out), nil
}

func (a *UserAdapter) UpdateOnServer(ctx context.Context, rec *model.User) (*model.User, error) {
	var out userDTO
	if err := a.deps.API.Patch(ctx, "/api/users/"+rec.ID, userToDTO(rec), &out); err != nil {
		return nil, err
	}
	return userFromDTO(out), nil
}

func (a *UserAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/users/"+id)
}

// MergeRemote adopts the server's canonical account fields, most importantly
// the normalized email.
func (a *UserAdapter) MergeRemote(local, remote *model.User) {
	local.Name = remote.Name
	local.Email = remote.Email
	local.Phone = remote.Phone
	if remote.Role != "" {
		local.Role = remote.Role
	}
}

func (a *UserAdapter) AfterPush(ctx context.Context, rec *model.User) error { return nil }

func (a *UserAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.users, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls the accounts visible to this client. Unlike the
// other entities the pull is unscoped: the server limits the listing to the
// caller's session, and the local cache rarely holds more than one account.
func (a *UserAdapter) ImportFromServer(ctx context.Context) (int, error) {
	fetch := func(ctx context.Context) ([]*model.User, error) {
		var dtos []userDTO
		if err := a.deps.API.Get(ctx, "/api/users", nil, &dtos); err != nil {
			return nil, err
		}
		users := make([]*model.User, 0, len(dtos))
		for _, d := range dtos {
			u := userFromDTO(d)
			if err := u.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid user from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			users = append(users, u)
		}
		return users, nil
	}
	n, err := runImport(ctx, a.users, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("user import: %w", err)
	}
	return n, nil
}
