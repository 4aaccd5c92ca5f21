package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// centerDTO is the wire shape of a center.
type centerDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	AdminID    string    `json:"adminId"`
	ManagerIDs []string  `json:"managerIds,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// centerCreateDTO is the creation payload: the center plus its subjects. The
// creation endpoint provisions both in one request, so a center created fully
// offline arrives with its curriculum intact.
type centerCreateDTO struct {
	centerDTO
	Subjects []centerSubjectDTO `json:"subjects,omitempty"`
}

type centerSubjectDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MonthlyFee float64 `json:"monthlyFee,omitempty"`
}

func centerToDTO(c *model.Center) centerDTO {
	return centerDTO{
		ID:         c.ID,
		Name:       c.Name,
		Address:    c.Address,
		Phone:      c.Phone,
		AdminID:    c.AdminID,
		ManagerIDs: c.ManagerIDs,
	}
}

func centerFromDTO(d centerDTO) *model.Center {
	return &model.Center{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Name:       d.Name,
		Address:    d.Address,
		Phone:      d.Phone,
		AdminID:    d.AdminID,
		ManagerIDs: d.ManagerIDs,
	}
}

// CenterAdapter syncs centers with /api/centers.
type CenterAdapter struct {
	deps     Deps
	centers  *store.Collection[model.Center, *model.Center]
	subjects *store.Collection[model.Subject, *model.Subject]
}

// NewCenterAdapter builds the adapter for the centers collection.
func NewCenterAdapter(d Deps) *CenterAdapter {
	return &CenterAdapter{deps: d, centers: d.Store.Centers(), subjects: d.Store.Subjects()}
}

func (a *CenterAdapter) Name() string { return store.CollCenters }

func (a *CenterAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/centers", nil, id)
}

// CreateOnServer embeds the center's active subjects into the creation
// payload. Tombstoned subjects stay out: the user already deleted them.
func (a *CenterAdapter) CreateOnServer(ctx context.Context, rec *model.Center) (*model.Center, error) {
	subjects, err := a.activeSubjects(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	payload := centerCreateDTO{centerDTO: centerToDTO(rec), Subjects: subjects}
	var out centerDTO
	if err := a.deps.API.Post(ctx, "/api/centers", payload, &out); err != nil {
		return nil, err
	}
	return centerFromDTO(out), nil
}

func (a *CenterAdapter) UpdateOnServer(ctx context.Context, rec *model.Center) (*model.Center, error) {
	var out centerDTO
	if err := a.deps.API.Patch(ctx, "/api/centers/"+rec.ID, centerToDTO(rec), &out); err != nil {
		return nil, err
	}
	return centerFromDTO(out), nil
}

func (a *CenterAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/centers/"+id)
}

func (a *CenterAdapter) MergeRemote(local, remote *model.Center) {
	local.Name = remote.Name
	local.Address = remote.Address
	local.Phone = remote.Phone
	if len(remote.ManagerIDs) > 0 {
		local.ManagerIDs = remote.ManagerIDs
	}
}

func (a *CenterAdapter) AfterPush(ctx context.Context, rec *model.Center) error { return nil }

func (a *CenterAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.centers, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls the centers owned by (admin) or staffed by (manager)
// the current user.
func (a *CenterAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("center import: %w", err)
	}
	fetch := func(ctx context.Context) ([]*model.Center, error) {
		var dtos []centerDTO
		if err := a.deps.API.Get(ctx, "/api/centers", scope, &dtos); err != nil {
			return nil, err
		}
		centers := make([]*model.Center, 0, len(dtos))
		for _, d := range dtos {
			c := centerFromDTO(d)
			if err := c.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid center from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			centers = append(centers, c)
		}
		return centers, nil
	}
	n, err := runImport(ctx, a.centers, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("center import: %w", err)
	}
	return n, nil
}

// activeSubjects collects the non-tombstoned subjects belonging to centerID.
func (a *CenterAdapter) activeSubjects(ctx context.Context, centerID string) ([]centerSubjectDTO, error) {
	all, err := a.subjects.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects for center %s: %w", centerID, err)
	}
	var out []centerSubjectDTO
	for _, s := range all {
		if s.CenterID != centerID || s.Status == model.StatusPendingDelete {
			continue
		}
		out = append(out, centerSubjectDTO{ID: s.ID, Name: s.Name, MonthlyFee: s.MonthlyFee})
	}
	return out, nil
}
