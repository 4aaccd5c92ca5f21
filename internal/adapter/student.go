package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// studentDTO is the wire shape of a student with embedded enrollments.
type studentDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone,omitempty"`
	ManagerID string           `json:"managerId"`
	Subjects  []studentLinkDTO `json:"subjects,omitempty"`
	CreatedAt time.Time        `json:"createdAt,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

type studentLinkDTO struct {
	ID         string    `json:"id,omitempty"`
	SubjectID  string    `json:"subjectId"`
	TeacherID  string    `json:"teacherId,omitempty"`
	EnrolledAt time.Time `json:"enrolledAt,omitempty"`
}

func studentFromDTO(d studentDTO) *model.Student {
	return &model.Student{
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

// StudentAdapter syncs students (and their embedded enrollments) with
// /api/students.
type StudentAdapter struct {
	deps     Deps
	students *store.Collection[model.Student, *model.Student]
	links    *store.Collection[model.StudentSubject, *model.StudentSubject]
}

// NewStudentAdapter builds the adapter for the students collection.
func NewStudentAdapter(d Deps) *StudentAdapter {
	return &StudentAdapter{deps: d, students: d.Store.Students(), links: d.Store.StudentSubjects()}
}

func (a *StudentAdapter) Name() string { return store.CollStudents }

func (a *StudentAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/students", nil, id)
}

func (a *StudentAdapter) CreateOnServer(ctx context.Context, rec *model.Student) (*model.Student, error) {
	payload, err := a.toDTO(ctx, rec)
	if err != nil {
		return nil, err
	}
	var out studentDTO
	if err := a.deps.API.Post(ctx, "/api/students", payload, &out); err != nil {
		return nil, err
	}
	return studentFromDTO(out), nil
}

func (a *StudentAdapter) UpdateOnServer(ctx context.Context, rec *model.Student) (*model.Student, error) {
	payload, err := a.toDTO(ctx, rec)
	if err != nil {
		return nil, err
	}
	var out studentDTO
	if err := a.deps.API.Patch(ctx, "/api/students/"+rec.ID, payload, &out); err != nil {
		return nil, err
	}
	return studentFromDTO(out), nil
}

func (a *StudentAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/students/"+id)
}

func (a *StudentAdapter) MergeRemote(local, remote *model.Student) {
	local.Name = remote.Name
	local.Email = remote.Email
	local.Phone = remote.Phone
}

// AfterPush settles the enrollment links that just rode inside the student
// payload.
func (a *StudentAdapter) AfterPush(ctx context.Context, rec *model.Student) error {
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

func (a *StudentAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.students, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls this manager's students and repopulates the
// studentSubjects collection from the embedded enrollments.
func (a *StudentAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("student import: %w", err)
	}

	knownLinks, err := a.knownLinkIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("student import: %w", err)
	}

	var linkRecords []*model.StudentSubject
	fetch := func(ctx context.Context) ([]*model.Student, error) {
		var dtos []studentDTO
		if err := a.deps.API.Get(ctx, "/api/students", scope, &dtos); err != nil {
			return nil, err
		}
		students := make([]*model.Student, 0, len(dtos))
		linkRecords = linkRecords[:0]
		for _, d := range dtos {
			s := studentFromDTO(d)
			if err := s.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid student from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			students = append(students, s)
			for _, l := range d.Subjects {
				linkRecords = append(linkRecords, linkFromStudentDTO(d.ID, l, knownLinks))
			}
		}
		return students, nil
	}

	n, err := runImport(ctx, a.students, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("student import: %w", err)
	}
	if _, err := a.links.ReplaceSynced(ctx, linkRecords); err != nil {
		return n, fmt.Errorf("student enrollment import rolled back: %w", err)
	}
	return n, nil
}

func (a *StudentAdapter) toDTO(ctx context.Context, rec *model.Student) (studentDTO, error) {
	links, err := a.activeLinks(ctx, rec.ID)
	if err != nil {
		return studentDTO{}, err
	}
	dto := studentDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Email:     rec.Email,
		Phone:     rec.Phone,
		ManagerID: rec.ManagerID,
	}
	for _, l := range links {
		dto.Subjects = append(dto.Subjects, studentLinkDTO{
			ID:         l.ID,
			SubjectID:  l.SubjectID,
			TeacherID:  l.TeacherID,
			EnrolledAt: l.EnrolledAt,
		})
	}
	return dto, nil
}

// activeLinks returns the non-tombstoned enrollments for one student.
func (a *StudentAdapter) activeLinks(ctx context.Context, studentID string) ([]*model.StudentSubject, error) {
	all, err := a.links.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments for student %s: %w", studentID, err)
	}
	var out []*model.StudentSubject
	for _, l := range all {
		if l.StudentID != studentID || l.Status == model.StatusPendingDelete {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// knownLinkIDs maps each local enrollment's identifying triple to its record
// id, so imports that receive links without ids keep identities stable
// instead of reinserting every enrollment under a fresh id each pass.
func (a *StudentAdapter) knownLinkIDs(ctx context.Context) (map[string]string, error) {
	all, err := a.links.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	known := make(map[string]string, len(all))
	for _, l := range all {
		known[l.StudentID+"\x00"+l.SubjectID+"\x00"+l.TeacherID] = l.ID
	}
	return known, nil
}

func linkFromStudentDTO(studentID string, d studentLinkDTO, known map[string]string) *model.StudentSubject {
	id := d.ID
	if id == "" {
		id = known[studentID+"\x00"+d.SubjectID+"\x00"+d.TeacherID]
	}
	if id == "" {
		id = model.NewID()
	}
	now := time.Now().UTC()
	return &model.StudentSubject{
		Meta: model.Meta{
			ID:        id,
			Status:    model.StatusSynced,
			CreatedAt: now,
			UpdatedAt: now,
		},
		StudentID:  studentID,
		SubjectID:  d.SubjectID,
		TeacherID:  d.TeacherID,
		EnrolledAt: d.EnrolledAt,
	}
}
