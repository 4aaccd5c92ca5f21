package model

import (
	"testing"
	"time"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusSynced, StatusWaiting, StatusPendingDelete} {
		if !s.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "2", "synced", "W"} {
		if s.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", s)
		}
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta()
	if !IsID(m.ID) {
		t.Errorf("NewMeta() id = %q, not a valid record id", m.ID)
	}
	if m.Status != StatusWaiting {
		t.Errorf("NewMeta() status = %q, want %q", m.Status, StatusWaiting)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("NewMeta() timestamps must be set")
	}
	if !m.CreatedAt.Equal(m.UpdatedAt) {
		t.Error("NewMeta() createdAt and updatedAt should start equal")
	}
}

func TestMeta_Touch(t *testing.T) {
	m := NewMeta()
	was := m.UpdatedAt
	m.Touch(was.Add(time.Hour))
	if !m.UpdatedAt.After(was) {
		t.Errorf("Touch() updatedAt = %v, want after %v", m.UpdatedAt, was)
	}
}

func TestMeta_Validate(t *testing.T) {
	m := NewMeta()
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() on fresh meta failed: %v", err)
	}

	bad := m
	bad.ID = "not-an-id"
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted malformed id")
	}

	bad = m
	bad.Status = "2"
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted unknown status")
	}
}

func TestUser_Validate(t *testing.T) {
	u := &User{Meta: NewMeta(), Name: "Dana", Email: "dana@example.com", Role: RoleManager}
	if err := u.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}

	u.Role = "owner"
	if err := u.Validate(); err == nil {
		t.Error("Validate() accepted unknown role")
	}

	u.Role = RoleAdmin
	u.Email = ""
	if err := u.Validate(); err == nil {
		t.Error("Validate() accepted empty email")
	}
}

func TestReceipt_Validate_TypeDiscrimination(t *testing.T) {
	base := Receipt{
		Meta:      NewMeta(),
		ManagerID: NewID(),
		Date:      time.Now().UTC(),
	}

	r := base
	r.Type = ReceiptStudentPayment
	r.StudentID = NewID()
	if err := r.Validate(); err != nil {
		t.Errorf("student payment Validate() failed: %v", err)
	}

	r.TeacherID = NewID()
	if err := r.Validate(); err == nil {
		t.Error("Validate() accepted student payment with teacherId")
	}

	r = base
	r.Type = ReceiptTeacherPayment
	r.TeacherID = NewID()
	if err := r.Validate(); err != nil {
		t.Errorf("teacher payment Validate() failed: %v", err)
	}

	r = base
	r.Type = "REFUND"
	r.StudentID = NewID()
	if err := r.Validate(); err == nil {
		t.Error("Validate() accepted unknown receipt type")
	}
}

func TestSchedule_Validate_SlotTimes(t *testing.T) {
	base := Schedule{
		Meta:      NewMeta(),
		TeacherID: NewID(),
		SubjectID: NewID(),
		ManagerID: NewID(),
		Weekday:   1,
		StartTime: "16:00",
		EndTime:   "17:30",
	}

	if err := base.Validate(); err != nil {
		t.Errorf("Validate() failed on a complete slot: %v", err)
	}

	s := base
	s.StartTime = ""
	if err := s.Validate(); err == nil {
		t.Error("Validate() accepted an empty startTime")
	}

	s = base
	s.EndTime = "5pm"
	if err := s.Validate(); err == nil {
		t.Error("Validate() accepted a non-HH:MM endTime")
	}

	s = base
	s.Weekday = 7
	if err := s.Validate(); err == nil {
		t.Error("Validate() accepted weekday 7")
	}
}

func TestEmailKey_Overrides(t *testing.T) {
	u := &User{Meta: NewMeta(), Email: "u@example.com", Role: RoleManager, Name: "U"}
	if got := u.EmailKey(); got != "u@example.com" {
		t.Errorf("User.EmailKey() = %q", got)
	}

	s := &Subject{Meta: NewMeta(), Name: "Math"}
	if got := s.EmailKey(); got != "" {
		t.Errorf("Subject.EmailKey() = %q, want empty", got)
	}
}
