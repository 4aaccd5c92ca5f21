package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

type scheduleDTO struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacherId"`
	SubjectID string    `json:"subjectId"`
	ManagerID string    `json:"managerId"`
	CenterID  string    `json:"centerId,omitempty"`
	Weekday   int       `json:"weekday"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func scheduleToDTO(s *model.Schedule) scheduleDTO {
	return scheduleDTO{
		ID:        s.ID,
		TeacherID: s.TeacherID,
		SubjectID: s.SubjectID,
		ManagerID: s.ManagerID,
		CenterID:  s.CenterID,
		Weekday:   s.Weekday,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}

func scheduleFromDTO(d scheduleDTO) *model.Schedule {
	return &model.Schedule{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		TeacherID: d.TeacherID,
		SubjectID: d.SubjectID,
		ManagerID: d.ManagerID,
		CenterID:  d.CenterID,
		Weekday:   d.Weekday,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
	}
}

// ScheduleAdapter syncs recurring lesson slots with /api/schedules. A slot
// that references a teacher or subject the server has not seen yet is
// rejected remotely and retried on the next cycle, after its parents sync.
type ScheduleAdapter struct {
	deps      Deps
	schedules *store.Collection[model.Schedule, *model.Schedule]
}

func NewScheduleAdapter(d Deps) *ScheduleAdapter {
	return &ScheduleAdapter{deps: d, schedules: d.Store.Schedules()}
}

func (a *ScheduleAdapter) Name() string { return store.CollSchedules }

func (a *ScheduleAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/schedules", nil, id)
}

func (a *ScheduleAdapter) CreateOnServer(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	var out scheduleDTO
	if err := a.deps.API.Post(ctx, "/api/schedules", scheduleToDTO(s), &out); err != nil {
		return nil, err
	}
	return scheduleFromDTO(out), nil
}

func (a *ScheduleAdapter) UpdateOnServer(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	var out scheduleDTO
	if err := a.deps.API.Patch(ctx, "/api/schedules/"+s.ID, scheduleToDTO(s), &out); err != nil {
		return nil, err
	}
	return scheduleFromDTO(out), nil
}

func (a *ScheduleAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/schedules/"+id)
}

func (a *ScheduleAdapter) MergeRemote(local, remote *model.Schedule) {
	local.TeacherID = remote.TeacherID
	local.SubjectID = remote.SubjectID
	local.CenterID = remote.CenterID
	local.Weekday = remote.Weekday
	local.StartTime = remote.StartTime
	local.EndTime = remote.EndTime
}

func (a *ScheduleAdapter) AfterPush(ctx context.Context, s *model.Schedule) error { return nil }

func (a *ScheduleAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.schedules, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls this manager's schedules.
func (a *ScheduleAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("schedule import: %w", err)
	}
	fetch := func(ctx context.Context) ([]*model.Schedule, error) {
		var dtos []scheduleDTO
		if err := a.deps.API.Get(ctx, "/api/schedules", scope, &dtos); err != nil {
			return nil, err
		}
		schedules := make([]*model.Schedule, 0, len(dtos))
		for _, d := range dtos {
			s := scheduleFromDTO(d)
			if err := s.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid schedule from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			schedules = append(schedules, s)
		}
		return schedules, nil
	}
	n, err := runImport(ctx, a.schedules, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("schedule import: %w", err)
	}
	return n, nil
}
