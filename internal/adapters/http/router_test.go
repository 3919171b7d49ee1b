package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/usecase"
	"github.com/kirillkom/document-profiles/internal/infrastructure/repository/memory"
)

type exporterStub struct {
	err error
}

func (s exporterStub) ExportRegister(context.Context, domain.DocumentRegister) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("PK-register"), nil
}

func newTestServices(exporter exporterStub) Services {
	store := memory.New()
	history := usecase.NewHistoryRecorder(store, nil)
	schema := usecase.NewSchemaUseCase(store, store, history)
	return Services{
		Profiles:  usecase.NewProfileUseCase(store, schema, history, nil),
		Schema:    schema,
		Values:    usecase.NewValueUseCase(store, store, store, history),
		Documents: usecase.NewDocumentUseCase(store, store, store, store, exporter, history),
		Loans:     usecase.NewLoanUseCase(store, store, history),
		Approvals: usecase.NewApprovalUseCase(store, store, history),
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(newTestServices(exporterStub{}), Options{}).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorIDHeader, "actor-1")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeInto(t *testing.T, res *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, res.Body.String())
	}
}

func createActiveProfile(t *testing.T, h http.Handler, code string) domain.Profile {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/profiles", map[string]any{
		"enterprise_id": "ent-1",
		"code":          code,
		"name":          "Profile " + code,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create profile expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var p domain.Profile
	decodeInto(t, res, &p)

	res = do(t, h, http.MethodPost, "/v1/profiles/"+p.ID+"/open", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("open profile expected 200, got %d: %s", res.Code, res.Body.String())
	}
	decodeInto(t, res, &p)
	return p
}

func addDocument(t *testing.T, h http.Handler, profileID, title string) domain.ProfileDocument {
	t.Helper()
	res := do(t, h, http.MethodPost, "/v1/profiles/"+profileID+"/documents", map[string]any{"title": title})
	if res.Code != http.StatusCreated {
		t.Fatalf("add document expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.ProfileDocument
	decodeInto(t, res, &doc)
	return doc
}

func TestMutationWithoutActorReturns400(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader([]byte(`{"code":"A"}`)))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body errorBody
	decodeInto(t, res, &body)
	if body.Kind != "validation" || body.Field != actorIDHeader {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestMalformedJSONReturns400(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader([]byte(`{"code":`)))
	req.Header.Set(actorIDHeader, "actor-1")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body errorBody
	decodeInto(t, res, &body)
	if body.Field != "body" {
		t.Fatalf("expected body field error, got %+v", body)
	}
}

func TestDuplicateProfileCodeReturns409(t *testing.T) {
	h := newTestHandler(t)
	createActiveProfile(t, h, "HR")

	res := do(t, h, http.MethodPost, "/v1/profiles", map[string]any{
		"enterprise_id": "ent-1",
		"code":          "HR",
		"name":          "Again",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
	var body errorBody
	decodeInto(t, res, &body)
	if body.Kind != "duplicate_code" {
		t.Fatalf("expected duplicate_code kind, got %q", body.Kind)
	}
}

func TestGetMissingProfileReturns404(t *testing.T) {
	h := newTestHandler(t)

	res := do(t, h, http.MethodGet, "/v1/profiles/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	var body errorBody
	decodeInto(t, res, &body)
	if body.Entity != "profile" || body.Kind != "not_found" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestInvalidLifecycleEventReturns409(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "FIN")

	res := do(t, h, http.MethodPost, "/v1/profiles/"+p.ID+"/open", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 when opening an active profile, got %d", res.Code)
	}
}

func TestDeleteProfileWithDocumentsReturns409(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "LEGAL")
	addDocument(t, h, p.ID, "Charter")

	res := do(t, h, http.MethodDelete, "/v1/profiles/"+p.ID, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
	var body errorBody
	decodeInto(t, res, &body)
	if body.Kind != "not_empty" {
		t.Fatalf("expected not_empty kind, got %q", body.Kind)
	}
}

func TestSetValuesRejectsTypeMismatch(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "OPS")
	doc := addDocument(t, h, p.ID, "Permit")

	res := do(t, h, http.MethodPost, "/v1/fields", map[string]any{
		"profile_id": p.ID,
		"name":       "capacity",
		"label":      "Capacity",
		"data_type":  "number",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create field expected 201, got %d: %s", res.Code, res.Body.String())
	}

	res = do(t, h, http.MethodPut, "/v1/documents/"+doc.ID+"/values", map[string]any{
		"values": []map[string]any{{"field_name": "capacity", "value": "many"}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}

	res = do(t, h, http.MethodPut, "/v1/documents/"+doc.ID+"/values", map[string]any{
		"values": []map[string]any{{"field_name": "capacity", "value": 120}},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = do(t, h, http.MethodGet, "/v1/documents/"+doc.ID+"/values", nil)
	var out struct {
		Items []map[string]any `json:"items"`
	}
	decodeInto(t, res, &out)
	if len(out.Items) != 1 {
		t.Fatalf("expected one stored value, got %d", len(out.Items))
	}
}

func TestListDocumentsReturnsPage(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "ARCH")
	addDocument(t, h, p.ID, "First")
	addDocument(t, h, p.ID, "Second")
	addDocument(t, h, p.ID, "Third")

	res := do(t, h, http.MethodGet, "/v1/profiles/"+p.ID+"/documents?page=2&size=2", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var page domain.Page[domain.ProfileDocument]
	decodeInto(t, res, &page)
	if page.Total != 3 || len(page.Items) != 1 {
		t.Fatalf("expected total=3 with one item on page 2, got total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Items[0].Title != "Third" {
		t.Fatalf("expected display order to be kept, got %q", page.Items[0].Title)
	}
}

func TestListRejectsNonNumericPage(t *testing.T) {
	h := newTestHandler(t)

	res := do(t, h, http.MethodGet, "/v1/profiles?page=abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestExportRegisterServesSpreadsheet(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "REG")
	addDocument(t, h, p.ID, "Policy")

	res := do(t, h, http.MethodGet, "/v1/profiles/"+p.ID+"/documents/export", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if res.Header().Get("Content-Disposition") == "" {
		t.Fatalf("expected attachment disposition")
	}
	if res.Body.String() != "PK-register" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestExportFailureMapsTemporaryTo503(t *testing.T) {
	svc := newTestServices(exporterStub{err: domain.WrapError(domain.ErrTemporary, "export", errors.New("disk busy"))})
	h := NewRouter(svc, Options{}).Handler()
	p := createActiveProfile(t, h, "TMP")

	res := do(t, h, http.MethodGet, "/v1/profiles/"+p.ID+"/documents/export", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestLoanPartialReturnKeepsLoanBorrowed(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "LIB")
	first := addDocument(t, h, p.ID, "Deed")
	second := addDocument(t, h, p.ID, "Plan")

	res := do(t, h, http.MethodPost, "/v1/loans", map[string]any{
		"enterprise_id": "ent-1",
		"borrower_id":   "user-7",
		"borrower_name": "Auditor",
		"due_date":      time.Now().Add(48 * time.Hour).UTC(),
		"items": []map[string]any{
			{"document_id": first.ID},
			{"document_id": second.ID},
		},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("request loan expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var loan domain.Loan
	decodeInto(t, res, &loan)

	for _, step := range []string{"approve", "borrow"} {
		res = do(t, h, http.MethodPost, "/v1/loans/"+loan.ID+"/"+step, nil)
		if res.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d: %s", step, res.Code, res.Body.String())
		}
	}

	res = do(t, h, http.MethodPost, "/v1/loans/"+loan.ID+"/return", map[string]any{
		"item_ids": []string{loan.Items[0].ID},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("partial return expected 200, got %d: %s", res.Code, res.Body.String())
	}
	decodeInto(t, res, &loan)
	if loan.Status != domain.LoanBorrowed {
		t.Fatalf("expected loan to stay borrowed, got %s", loan.Status)
	}

	res = do(t, h, http.MethodPost, "/v1/loans/"+loan.ID+"/return", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("final return expected 200, got %d: %s", res.Code, res.Body.String())
	}
	decodeInto(t, res, &loan)
	if loan.Status != domain.LoanReturned {
		t.Fatalf("expected loan returned, got %s", loan.Status)
	}

	res = do(t, h, http.MethodPost, "/v1/loans/"+loan.ID+"/approve", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("approving a returned loan expected 409, got %d", res.Code)
	}
}

func TestApprovalDecisionIsFinal(t *testing.T) {
	h := newTestHandler(t)
	p := createActiveProfile(t, h, "QA")
	doc := addDocument(t, h, p.ID, "Manual")

	res := do(t, h, http.MethodPost, "/v1/documents/"+doc.ID+"/approvals", map[string]any{"notes": "please review"})
	if res.Code != http.StatusCreated {
		t.Fatalf("request approval expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var approval domain.Approval
	decodeInto(t, res, &approval)

	res = do(t, h, http.MethodPost, "/v1/approvals/"+approval.ID+"/approve", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("approve expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = do(t, h, http.MethodPost, "/v1/approvals/"+approval.ID+"/reject", map[string]any{"reason": "late"})
	if res.Code != http.StatusConflict {
		t.Fatalf("reject after approve expected 409, got %d", res.Code)
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NotFound("loan", "x"), http.StatusNotFound},
		{domain.WrapError(domain.ErrDuplicateCode, "create", errors.New("dup")), http.StatusConflict},
		{domain.InvalidTransition("loan", "x", "pending", "borrow"), http.StatusConflict},
		{domain.NewFieldError(domain.ErrNotEmpty, "profile", "", "has children"), http.StatusConflict},
		{domain.NewFieldError(domain.ErrFieldInUse, "metadata_field", "", "has values"), http.StatusConflict},
		{domain.NewFieldError(domain.ErrRequiredField, "metadata_value", "capacity", "required"), http.StatusBadRequest},
		{domain.NewFieldError(domain.ErrUnknownField, "metadata_value", "colour", "unknown"), http.StatusBadRequest},
		{domain.WrapError(domain.ErrPersistence, "db", errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
