package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// subjectDTO is the wire shape of a subject.
type subjectDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CenterID   string    `json:"centerId"`
	MonthlyFee float64   `json:"monthlyFee,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

func subjectToDTO(s *model.Subject) subjectDTO {
	return subjectDTO{
		ID:         s.ID,
		Name:       s.Name,
		CenterID:   s.CenterID,
		MonthlyFee: s.MonthlyFee,
	}
}

func subjectFromDTO(d subjectDTO) *model.Subject {
	return &model.Subject{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Name:       d.Name,
		CenterID:   d.CenterID,
		MonthlyFee: d.MonthlyFee,
	}
}

// SubjectAdapter syncs subjects with /api/subjects.
//
// A subject pushed before its center exists remotely is rejected by the
// server (the center's own create may still be queued); the rejection is
// recorded and the subject retried next cycle, after the centers pass has
// had a chance to land.
type SubjectAdapter struct {
	deps     Deps
	subjects *store.Collection[model.Subject, *model.Subject]
}

// NewSubjectAdapter builds the adapter for the subjects collection.
func NewSubjectAdapter(d Deps) *SubjectAdapter {
	return &SubjectAdapter{deps: d, subjects: d.Store.Subjects()}
}

func (a *SubjectAdapter) Name() string { return store.CollSubjects }

func (a *SubjectAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/subjects", nil, id)
}

func (a *SubjectAdapter) CreateOnServer(ctx context.Context, rec *model.Subject) (*model.Subject, error) {
	var out subjectDTO
	if err := a.deps.API.Post(ctx, "/api/subjects", subjectToDTO(rec), &out); err != nil {
		return nil, err
	}
	return subjectFromDTO(out), nil
}

func (a *SubjectAdapter) UpdateOnServer(ctx context.Context, rec *model.Subject) (*model.Subject, error) {
	var out subjectDTO
	if err := a.deps.API.Patch(ctx, "/api/subjects/"+rec.ID, subjectToDTO(rec), &out); err != nil {
		return nil, err
	}
	return subjectFromDTO(out), nil
}

func (a *SubjectAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/subjects/"+id)
}

func (a *SubjectAdapter) MergeRemote(local, remote *model.Subject) {
	local.Name = remote.Name
	local.MonthlyFee = remote.MonthlyFee
}

func (a *SubjectAdapter) AfterPush(ctx context.Context, rec *model.Subject) error { return nil }

func (a *SubjectAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.subjects, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls the subjects of the current user's centers.
func (a *SubjectAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("subject import: %w", err)
	}
	fetch := func(ctx context.Context) ([]*model.Subject, error) {
		var dtos []subjectDTO
		if err := a.deps.API.Get(ctx, "/api/subjects", scope, &dtos); err != nil {
			return nil, err
		}
		subjects := make([]*model.Subject, 0, len(dtos))
		for _, d := range dtos {
			s := subjectFromDTO(d)
			if err := s.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid subject from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			subjects = append(subjects, s)
		}
		return subjects, nil
	}
	n, err := runImport(ctx, a.subjects, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("subject import: %w", err)
	}
	return n, nil
}
