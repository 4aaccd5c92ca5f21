package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// teacherDTO is the wire shape of a teacher. Subject assignments ride inside
// the teacher payload; the remote API has no standalone endpoint for them.
type teacherDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone,omitempty"`
	ManagerID string           `json:"managerId"`
	Subjects  []teacherLinkDTO `json:"subjects,omitempty"`
	CreatedAt time.Time        `json:"createdAt,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

type teacherLinkDTO struct {
	ID         string    `json:"id,omitempty"`
	SubjectID  string    `json:"subjectId"`
	Percentage float64   `json:"percentage,omitempty"`
	HourlyRate float64   `json:"hourlyRate,omitempty"`
	AssignedAt time.Time `json:"assignedAt,omitempty"`
}

func teacherFromDTO(d teacherDTO) *model.Teacher {
	return &model.Teacher{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		ManagerID: d.ManagerID,
	}
}

// TeacherAdapter syncs teachers (and their embedded subject assignments)
// with /api/teachers.
type TeacherAdapter struct {
	deps     Deps
	teachers *store.Collection[model.Teacher, *model.Teacher]
	links    *store.Collection[model.TeacherSubject, *model.TeacherSubject]
}

// NewTeacherAdapter builds the adapter for the teachers collection.
func NewTeacherAdapter(d Deps) *TeacherAdapter {
	return &TeacherAdapter{deps: d, teachers: d.Store.Teachers(), links: d.Store.TeacherSubjects()}
}

func (a *TeacherAdapter) Name() string { return store.CollTeachers }

func (a *TeacherAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/teachers", nil, id)
}

func (a *TeacherAdapter) CreateOnServer(ctx context.Context, rec *model.Teacher) (*model.Teacher, error) {
	payload, err := a.toDTO(ctx, rec)
	if err != nil {
		return nil, err
	}
	var out teacherDTO
	if err := a.deps.API.Post(ctx, "/api/teachers", payload, &out); err != nil {
		return nil, err
	}
	return teacherFromDTO(out), nil
}

func (a *TeacherAdapter) UpdateOnServer(ctx context.Context, rec *model.Teacher) (*model.Teacher, error) {
	payload, err := a.toDTO(ctx, rec)
	if err != nil {
		return nil, err
	}
	var out teacherDTO
	if err := a.deps.API.Patch(ctx, "/api/teachers/"+rec.ID, payload, &out); err != nil {
		return nil, err
	}
	return teacherFromDTO(out), nil
}

func (a *TeacherAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/teachers/"+id)
}

func (a *TeacherAdapter) MergeRemote(local, remote *model.Teacher) {
	local.Name = remote.Name
	local.Email = remote.Email
	local.Phone = remote.Phone
}

// AfterPush settles the assignment links that just rode inside the teacher
// payload: once the server holds them, they are synced too.
func (a *TeacherAdapter) AfterPush(ctx context.Context, rec *model.Teacher) error {
	links, err := a.activeLinks(ctx, rec.ID)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.Status == model.StatusSynced {
			continue
		}
		if err := a.links.MarkSynced(ctx, l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (a *TeacherAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.teachers, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls this manager's teachers, then repopulates the
// teacherSubjects collection from the embedded assignments. The two
// replacements are separate transactions; entities never share one.
func (a *TeacherAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("teacher import: %w", err)
	}

	knownLinks, err := a.knownLinkIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("teacher import: %w", err)
	}

	var linkRecords []*model.TeacherSubject
	fetch := func(ctx context.Context) ([]*model.Teacher, error) {
		var dtos []teacherDTO
		if err := a.deps.API.Get(ctx, "/api/teachers", scope, &dtos); err != nil {
			return nil, err
		}
		teachers := make([]*model.Teacher, 0, len(dtos))
		linkRecords = linkRecords[:0]
		for _, d := range dtos {
			t := teacherFromDTO(d)
			if err := t.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid teacher from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			teachers = append(teachers, t)
			for _, l := range d.Subjects {
				linkRecords = append(linkRecords, linkFromTeacherDTO(d.ID, l, knownLinks))
			}
		}
		return teachers, nil
	}

	n, err := runImport(ctx, a.teachers, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("teacher import: %w", err)
	}
	if _, err := a.links.ReplaceSynced(ctx, linkRecords); err != nil {
		return n, fmt.Errorf("teacher assignment import rolled back: %w", err)
	}
	return n, nil
}

// toDTO builds the push payload: the teacher plus their active assignments.
func (a *TeacherAdapter) toDTO(ctx context.Context, rec *model.Teacher) (teacherDTO, error) {
	links, err := a.activeLinks(ctx, rec.ID)
	if err != nil {
		return teacherDTO{}, err
	}
	dto := teacherDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Email:     rec.Email,
		Phone:     rec.Phone,
		ManagerID: rec.ManagerID,
	}
	for _, l := range links {
		dto.Subjects = append(dto.Subjects, teacherLinkDTO{
			ID:         l.ID,
			SubjectID:  l.SubjectID,
			Percentage: l.Percentage,
			HourlyRate: l.HourlyRate,
			AssignedAt: l.AssignedAt,
		})
	}
	return dto, nil
}

// activeLinks returns the non-tombstoned assignments for one teacher.
func (a *TeacherAdapter) activeLinks(ctx context.Context, teacherID string) ([]*model.TeacherSubject, error) {
	all, err := a.links.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments for teacher %s: %w", teacherID, err)
	}
	var out []*model.TeacherSubject
	for _, l := range all {
		if l.TeacherID != teacherID || l.Status == model.StatusPendingDelete {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// knownLinkIDs maps each local assignment's (teacher, subject) pair to its
// record id, keeping identities stable when the server omits link ids.
func (a *TeacherAdapter) knownLinkIDs(ctx context.Context) (map[string]string, error) {
	all, err := a.links.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	known := make(map[string]string, len(all))
	for _, l := range all {
		known[l.TeacherID+"\x00"+l.SubjectID] = l.ID
	}
	return known, nil
}

func linkFromTeacherDTO(teacherID string, d teacherLinkDTO, known map[string]string) *model.TeacherSubject {
	id := d.ID
	if id == "" {
		id = known[teacherID+"\x00"+d.SubjectID]
	}
	if id == "" {
		id = model.NewID()
	}
	now := time.Now().UTC()
	return &model.TeacherSubject{
		Meta: model.Meta{
			ID:        id,
			Status:    model.StatusSynced,
			CreatedAt: now,
			UpdatedAt: now,
		},
		TeacherID:  teacherID,
		SubjectID:  d.SubjectID,
		Percentage: d.Percentage,
		HourlyRate: d.HourlyRate,
		AssignedAt: d.AssignedAt,
	}
}
