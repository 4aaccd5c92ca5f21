package adapter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// receiptCreateDTO is the creation payload. A receipt is not a direct field
// mapping: the server computes the amount from the subjects the student (or
// teacher) is currently enrolled in, so the adapter submits the derived
// subject IDs, not the receipt's own local fields.
type receiptCreateDTO struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	StudentID     string    `json:"studentId,omitempty"`
	TeacherID     string    `json:"teacherId,omitempty"`
	ManagerID     string    `json:"managerId"`
	SubjectIDs    []string  `json:"subjectIds"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Description   string    `json:"description,omitempty"`
	Date          time.Time `json:"date"`
}

// receiptUpdateDTO carries the only fields editable after issue.
type receiptUpdateDTO struct {
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Description   string    `json:"description,omitempty"`
	Date          time.Time `json:"date"`
}

// receiptDTO is the server's canonical receipt, including the
// server-assigned number and computed amount.
type receiptDTO struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	StudentID     string    `json:"studentId,omitempty"`
	TeacherID     string    `json:"teacherId,omitempty"`
	ManagerID     string    `json:"managerId"`
	Number        int       `json:"number,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Description   string    `json:"description,omitempty"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

func receiptFromDTO(d receiptDTO) *model.Receipt {
	return &model.Receipt{
		Meta: model.Meta{
			ID:        d.ID,
			Status:    model.StatusSynced,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		Type:          model.ReceiptType(d.Type),
		StudentID:     d.StudentID,
		TeacherID:     d.TeacherID,
		ManagerID:     d.ManagerID,
		Number:        d.Number,
		Amount:        d.Amount,
		PaymentMethod: d.PaymentMethod,
		Description:   d.Description,
		Date:          d.Date,
	}
}

// ReceiptAdapter syncs receipts with /api/receipts.
type ReceiptAdapter struct {
	deps         Deps
	receipts     *store.Collection[model.Receipt, *model.Receipt]
	studentLinks *store.Collection[model.StudentSubject, *model.StudentSubject]
	teacherLinks *store.Collection[model.TeacherSubject, *model.TeacherSubject]
}

// NewReceiptAdapter builds the adapter for the receipts collection.
func NewReceiptAdapter(d Deps) *ReceiptAdapter {
	return &ReceiptAdapter{
		deps:         d,
		receipts:     d.Store.Receipts(),
		studentLinks: d.Store.StudentSubjects(),
		teacherLinks: d.Store.TeacherSubjects(),
	}
}

func (a *ReceiptAdapter) Name() string { return store.CollReceipts }

func (a *ReceiptAdapter) CheckExists(ctx context.Context, id string) (bool, error) {
	return existsInList(ctx, a.deps.API, "/api/receipts", nil, id)
}

// CreateOnServer derives the payment's subject IDs from the active enrollment
// links and submits those. A receipt for a party with no active enrollments
// fails fast rather than submitting an empty payment request.
func (a *ReceiptAdapter) CreateOnServer(ctx context.Context, rec *model.Receipt) (*model.Receipt, error) {
	subjectIDs, err := a.deriveSubjectIDs(ctx, rec)
	if err != nil {
		return nil, err
	}

	payload := receiptCreateDTO{
		ID:            rec.ID,
		Type:          string(rec.Type),
		StudentID:     rec.StudentID,
		TeacherID:     rec.TeacherID,
		ManagerID:     rec.ManagerID,
		SubjectIDs:    subjectIDs,
		PaymentMethod: rec.PaymentMethod,
		Description:   rec.Description,
		Date:          rec.Date,
	}
	var out receiptDTO
	if err := a.deps.API.Post(ctx, "/api/receipts", payload, &out); err != nil {
		return nil, err
	}
	return receiptFromDTO(out), nil
}

func (a *ReceiptAdapter) UpdateOnServer(ctx context.Context, rec *model.Receipt) (*model.Receipt, error) {
	payload := receiptUpdateDTO{
		PaymentMethod: rec.PaymentMethod,
		Description:   rec.Description,
		Date:          rec.Date,
	}
	var out receiptDTO
	if err := a.deps.API.Patch(ctx, "/api/receipts/"+rec.ID, payload, &out); err != nil {
		return nil, err
	}
	return receiptFromDTO(out), nil
}

func (a *ReceiptAdapter) DeleteFromServer(ctx context.Context, id string) error {
	return a.deps.API.Delete(ctx, "/api/receipts/"+id)
}

// MergeRemote adopts the server-assigned receipt number and computed amount.
func (a *ReceiptAdapter) MergeRemote(local, remote *model.Receipt) {
	if remote.Number != 0 {
		local.Number = remote.Number
	}
	if remote.Amount != 0 {
		local.Amount = remote.Amount
	}
}

func (a *ReceiptAdapter) AfterPush(ctx context.Context, rec *model.Receipt) error { return nil }

func (a *ReceiptAdapter) Sync(ctx context.Context) (*Report, error) {
	return runSync(ctx, a.receipts, a, a.deps.Online, a.deps.logger())
}

// ImportFromServer pulls this manager's receipts.
func (a *ReceiptAdapter) ImportFromServer(ctx context.Context) (int, error) {
	scope, err := a.deps.scopeQuery(ctx)
	if err != nil {
		return 0, fmt.Errorf("receipt import: %w", err)
	}
	fetch := func(ctx context.Context) ([]*model.Receipt, error) {
		var dtos []receiptDTO
		if err := a.deps.API.Get(ctx, "/api/receipts", scope, &dtos); err != nil {
			return nil, err
		}
		receipts := make([]*model.Receipt, 0, len(dtos))
		for _, d := range dtos {
			r := receiptFromDTO(d)
			if err := r.Validate(); err != nil {
				a.deps.logger().Warn("skipping invalid receipt from server",
					zap.String("id", d.ID), zap.Error(err))
				continue
			}
			receipts = append(receipts, r)
		}
		return receipts, nil
	}
	n, err := runImport(ctx, a.receipts, fetch, a.deps.Online, a.deps.logger())
	if err != nil {
		return 0, fmt.Errorf("receipt import: %w", err)
	}
	return n, nil
}

// deriveSubjectIDs resolves the subject IDs the payment covers: the active
// (non-tombstoned) enrollment links of the paying student or the paid
// teacher.
func (a *ReceiptAdapter) deriveSubjectIDs(ctx context.Context, rec *model.Receipt) ([]string, error) {
	var ids []string
	switch rec.Type {
	case model.ReceiptStudentPayment:
		links, err := a.studentLinks.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load enrollments for receipt %s: %w", rec.ID, err)
		}
		for _, l := range links {
			if l.StudentID == rec.StudentID && l.Status != model.StatusPendingDelete {
				ids = append(ids, l.SubjectID)
			}
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("student %s has no active subject enrollments; refusing to push payment %s",
				rec.StudentID, rec.ID)
		}
	case model.ReceiptTeacherPayment:
		links, err := a.teacherLinks.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load assignments for receipt %s: %w", rec.ID, err)
		}
		for _, l := range links {
			if l.TeacherID == rec.TeacherID && l.Status != model.StatusPendingDelete {
				ids = append(ids, l.SubjectID)
			}
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("teacher %s has no active subject assignments; refusing to push payment %s",
				rec.TeacherID, rec.ID)
		}
	default:
		return nil, fmt.Errorf("receipt %s has unknown type %q", rec.ID, rec.Type)
	}
	return ids, nil
}
