package adapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tutordesk/tutorsync/internal/model"
)

// fakeReceipts captures create payloads and assigns number/amount the way the
// real server does.
type fakeReceipts struct {
	mu      sync.Mutex
	creates []receiptCreateDTO
	nextNum int
}

func (f *fakeReceipts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/receipts":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))

	case r.Method == http.MethodPost && r.URL.Path == "/api/receipts":
		var d receiptCreateDTO
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.creates = append(f.creates, d)
		f.nextNum++
		out := receiptDTO{
			ID:        d.ID,
			Type:      d.Type,
			StudentID: d.StudentID,
			TeacherID: d.TeacherID,
			ManagerID: d.ManagerID,
			Number:    f.nextNum,
			Amount:    float64(150 * len(d.SubjectIDs)),
			Date:      d.Date,
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(out)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/receipts/"):
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func newStudentReceipt(studentID string) *model.Receipt {
	return &model.Receipt{
		Meta:      model.NewMeta(),
		Type:      model.ReceiptStudentPayment,
		StudentID: studentID,
		ManagerID: model.NewID(),
		Date:      time.Now().UTC(),
	}
}

func TestReceiptAdapter_Create_DerivesActiveEnrollments(t *testing.T) {
	fake := &fakeReceipts{}
	d := newTestDeps(t, fake)
	a := NewReceiptAdapter(d)
	ctx := t.Context()

	studentID := model.NewID()
	active := &model.StudentSubject{Meta: model.NewMeta(), StudentID: studentID, SubjectID: model.NewID()}
	dropped := &model.StudentSubject{Meta: model.NewMeta(), StudentID: studentID, SubjectID: model.NewID()}
	other := &model.StudentSubject{Meta: model.NewMeta(), StudentID: model.NewID(), SubjectID: model.NewID()}
	for _, l := range []*model.StudentSubject{active, dropped, other} {
		if err := d.Store.StudentSubjects().PutLocal(ctx, l); err != nil {
			t.Fatalf("PutLocal() link failed: %v", err)
		}
	}
	if err := d.Store.StudentSubjects().MarkForDelete(ctx, dropped.ID); err != nil {
		t.Fatalf("MarkForDelete() failed: %v", err)
	}

	rec := newStudentReceipt(studentID)
	if err := d.Store.Receipts().PutLocal(ctx, rec); err != nil {
		t.Fatalf("PutLocal() receipt failed: %v", err)
	}

	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %d ok / %d failed: %+v", report.Succeeded, report.Failed, report.Results)
	}

	if len(fake.creates) != 1 {
		t.Fatalf("server saw %d creates, want 1", len(fake.creates))
	}
	got := fake.creates[0]
	if len(got.SubjectIDs) != 1 || got.SubjectIDs[0] != active.SubjectID {
		t.Errorf("submitted subjectIds = %v, want only the active enrollment %s",
			got.SubjectIDs, active.SubjectID)
	}
}

func TestReceiptAdapter_Create_MergesNumberAndAmount(t *testing.T) {
	fake := &fakeReceipts{}
	d := newTestDeps(t, fake)
	a := NewReceiptAdapter(d)
	ctx := t.Context()

	studentID := model.NewID()
	link := &model.StudentSubject{Meta: model.NewMeta(), StudentID: studentID, SubjectID: model.NewID()}
	if err := d.Store.StudentSubjects().PutLocal(ctx, link); err != nil {
		t.Fatalf("PutLocal() link failed: %v", err)
	}
	rec := newStudentReceipt(studentID)
	if err := d.Store.Receipts().PutLocal(ctx, rec); err != nil {
		t.Fatalf("PutLocal() receipt failed: %v", err)
	}

	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	got, err := d.Store.Receipts().GetLocal(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetLocal() failed: %v", err)
	}
	if got.Number != 1 {
		t.Errorf("merged number = %d, want the server-assigned 1", got.Number)
	}
	if got.Amount != 150 {
		t.Errorf("merged amount = %v, want 150", got.Amount)
	}
	if got.Status != model.StatusSynced {
		t.Errorf("status = %q, want synced", got.Status)
	}
}

func TestReceiptAdapter_Create_FailsFastWithoutEnrollments(t *testing.T) {
	fake := &fakeReceipts{}
	d := newTestDeps(t, fake)
	a := NewReceiptAdapter(d)
	ctx := t.Context()

	rec := newStudentReceipt(model.NewID())
	if err := d.Store.Receipts().PutLocal(ctx, rec); err != nil {
		t.Fatalf("PutLocal() receipt failed: %v", err)
	}

	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v, want the push to fail", report)
	}
	if !strings.Contains(report.Results[0].Err.Error(), "no active subject enrollments") {
		t.Errorf("failure = %v, want an explanatory no-enrollments error", report.Results[0].Err)
	}
	if len(fake.creates) != 0 {
		t.Error("server received a payment request with no enrollments")
	}

	// The receipt stays queued; enrolling the student would unblock it.
	got, err := d.Store.Receipts().GetLocal(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetLocal() failed: %v", err)
	}
	if got.Status != model.StatusWaiting {
		t.Errorf("status = %q, want waiting", got.Status)
	}
}

func TestReceiptAdapter_TeacherPayment_UsesAssignments(t *testing.T) {
	fake := &fakeReceipts{}
	d := newTestDeps(t, fake)
	a := NewReceiptAdapter(d)
	ctx := t.Context()

	teacherID := model.NewID()
	link := &model.TeacherSubject{Meta: model.NewMeta(), TeacherID: teacherID, SubjectID: model.NewID()}
	if err := d.Store.TeacherSubjects().PutLocal(ctx, link); err != nil {
		t.Fatalf("PutLocal() link failed: %v", err)
	}

	rec := &model.Receipt{
		Meta:      model.NewMeta(),
		Type:      model.ReceiptTeacherPayment,
		TeacherID: teacherID,
		ManagerID: model.NewID(),
		Date:      time.Now().UTC(),
	}
	if err := d.Store.Receipts().PutLocal(ctx, rec); err != nil {
		t.Fatalf("PutLocal() receipt failed: %v", err)
	}

	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report.Results)
	}
	got := fake.creates[0]
	if got.TeacherID != teacherID || len(got.SubjectIDs) != 1 || got.SubjectIDs[0] != link.SubjectID {
		t.Errorf("create payload = %+v, want teacher assignment subjects", got)
	}
}

func TestReceiptAdapter_Import_Scoped(t *testing.T) {
	var gotQuery string
	d := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	u := seedManager(t, d)
	a := NewReceiptAdapter(d)

	if _, err := a.ImportFromServer(t.Context()); err != nil {
		t.Fatalf("ImportFromServer() failed: %v", err)
	}
	if !strings.Contains(gotQuery, "managerId="+u.ID) {
		t.Errorf("import query = %q, want managerId scope", gotQuery)
	}
}
