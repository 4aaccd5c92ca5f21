package model

import (
	"fmt"
	"time"
)

// Role identifies what a cached user account is allowed to manage.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// ReceiptType discriminates payment direction on a receipt.
type ReceiptType string

const (
	// ReceiptStudentPayment is money received from a student.
	ReceiptStudentPayment ReceiptType = "STUDENT_PAYMENT"
	// ReceiptTeacherPayment is money paid out to a teacher.
	ReceiptTeacherPayment ReceiptType = "TEACHER_PAYMENT"
)

// User is a locally cached account (admin or manager). The newest synced user
// is treated as the current identity for scoping pulls.
type User struct {
	Meta
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

func (u *User) EmailKey() string { return u.Email }

func (u *User) Validate() error {
	if err := u.Meta.Validate(); err != nil {
		return err
	}
	if u.Email == "" {
		return fmt.Errorf("user email is required")
	}
	if u.Role != RoleAdmin && u.Role != RoleManager {
		return fmt.Errorf("user role must be %q or %q (got %q)", RoleAdmin, RoleManager, u.Role)
	}
	return nil
}

// Center is a tutoring center owned by an admin and staffed by managers.
type Center struct {
	Meta
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	AdminID    string   `json:"adminId"`
	ManagerIDs []string `json:"managerIds,omitempty"`
}

func (c *Center) Validate() error {
	if err := c.Meta.Validate(); err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("center name is required")
	}
	if c.AdminID == "" {
		return fmt.Errorf("center adminId is required")
	}
	return nil
}

// Teacher belongs to exactly one manager.
type Teacher struct {
	Meta
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	ManagerID string `json:"managerId"`
}

func (t *Teacher) EmailKey() string { return t.Email }

func (t *Teacher) Validate() error {
	if err := t.Meta.Validate(); err != nil {
		return err
	}
	if t.Name == "" {
		return fmt.Errorf("teacher name is required")
	}
	if t.ManagerID == "" {
		return fmt.Errorf("teacher managerId is required")
	}
	return nil
}

// Student belongs to exactly one manager.
type Student struct {
	Meta
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	ManagerID string `json:"managerId"`
}

func (s *Student) EmailKey() string { return s.Email }

func (s *Student) Validate() error {
	if err := s.Meta.Validate(); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("student name is required")
	}
	if s.ManagerID == "" {
		return fmt.Errorf("student managerId is required")
	}
	return nil
}

// Subject is a course offered by a center.
type Subject struct {
	Meta
	Name       string  `json:"name"`
	CenterID   string  `json:"centerId"`
	MonthlyFee float64 `json:"monthlyFee,omitempty"`
}

func (s *Subject) Validate() error {
	if err := s.Meta.Validate(); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("subject name is required")
	}
	if s.CenterID == "" {
		return fmt.Errorf("subject centerId is required")
	}
	return nil
}

// TeacherSubject links a teacher to a subject they teach, with the teacher's
// cut and rate. Join records never have their own remote endpoint; they ride
// inside the owning teacher's payload.
type TeacherSubject struct {
	Meta
	TeacherID  string    `json:"teacherId"`
	SubjectID  string    `json:"subjectId"`
	Percentage float64   `json:"percentage,omitempty"`
	HourlyRate float64   `json:"hourlyRate,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (ts *TeacherSubject) Validate() error {
	if err := ts.Meta.Validate(); err != nil {
		return err
	}
	if ts.TeacherID == "" || ts.SubjectID == "" {
		return fmt.Errorf("teacherSubject requires teacherId and subjectId")
	}
	return nil
}

// StudentSubject links a student to a subject they are enrolled in, and the
// teacher giving it. Like TeacherSubject, it syncs through its parent.
type StudentSubject struct {
	Meta
	StudentID  string    `json:"studentId"`
	SubjectID  string    `json:"subjectId"`
	TeacherID  string    `json:"teacherId,omitempty"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (ss *StudentSubject) Validate() error {
	if err := ss.Meta.Validate(); err != nil {
		return err
	}
	if ss.StudentID == "" || ss.SubjectID == "" {
		return fmt.Errorf("studentSubject requires studentId and subjectId")
	}
	return nil
}

// Receipt records a payment to or from the center. Exactly one of StudentID /
// TeacherID is set, matching Type. Number and Amount are server-assigned and
// merged back after a successful push.
type Receipt struct {
	Meta
	Type          ReceiptType `json:"type"`
	StudentID     string      `json:"studentId,omitempty"`
	TeacherID     string      `json:"teacherId,omitempty"`
	ManagerID     string      `json:"managerId"`
	Number        int         `json:"number,omitempty"`
	Amount        float64     `json:"amount,omitempty"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	Description   string      `json:"description,omitempty"`
	Date          time.Time   `json:"date"`
}

func (r *Receipt) Validate() error {
	if err := r.Meta.Validate(); err != nil {
		return err
	}
	switch r.Type {
	case ReceiptStudentPayment:
		if r.StudentID == "" {
			return fmt.Errorf("student payment receipt requires studentId")
		}
		if r.TeacherID != "" {
			return fmt.Errorf("student payment receipt must not carry a teacherId")
		}
	case ReceiptTeacherPayment:
		if r.TeacherID == "" {
			return fmt.Errorf("teacher payment receipt requires teacherId")
		}
		if r.StudentID != "" {
			return fmt.Errorf("teacher payment receipt must not carry a studentId")
		}
	default:
		return fmt.Errorf("receipt type must be %q or %q (got %q)",
			ReceiptStudentPayment, ReceiptTeacherPayment, r.Type)
	}
	if r.ManagerID == "" {
		return fmt.Errorf("receipt managerId is required")
	}
	return nil
}

// Schedule is a recurring lesson slot.
type Schedule struct {
	Meta
	TeacherID string `json:"teacherId"`
	SubjectID string `json:"subjectId"`
	ManagerID string `json:"managerId"`
	CenterID  string `json:"centerId,omitempty"`
	Weekday   int    `json:"weekday"` // 0=Sunday .. 6=Saturday
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (s *Schedule) Validate() error {
	if err := s.Meta.Validate(); err != nil {
		return err
	}
	if s.TeacherID == "" || s.SubjectID == "" || s.ManagerID == "" {
		return fmt.Errorf("schedule requires teacherId, subjectId and managerId")
	}
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("schedule weekday must be 0-6 (got %d)", s.Weekday)
	}
	if _, err := time.Parse("15:04", s.StartTime); err != nil {
		return fmt.Errorf("schedule startTime must be HH:MM (got %q)", s.StartTime)
	}
	if _, err := time.Parse("15:04", s.EndTime); err != nil {
		return fmt.Errorf("schedule endTime must be HH:MM (got %q)", s.EndTime)
	}
	return nil
}
