package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/infrastructure/repository/memory"
)

type exporterFake struct {
	register domain.DocumentRegister
	err      error
}

func (f *exporterFake) ExportRegister(_ context.Context, register domain.DocumentRegister) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.register = register
	return []byte("xlsx"), nil
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) PublishHistory(context.Context, domain.HistoryEntry) error {
	p.calls++
	return errors.New("broker unavailable")
}

type fixture struct {
	store     *memory.Store
	exporter  *exporterFake
	profiles  *ProfileUseCase
	schema    *SchemaUseCase
	values    *ValueUseCase
	documents *DocumentUseCase
	loans     *LoanUseCase
	approvals *ApprovalUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return newFixtureWithHistory(store, NewHistoryRecorder(store, nil))
}

func newFixtureWithHistory(store *memory.Store, history *HistoryRecorder) *fixture {
	exporter := &exporterFake{}
	schema := NewSchemaUseCase(store, store, history)
	return &fixture{
		store:     store,
		exporter:  exporter,
		profiles:  NewProfileUseCase(store, schema, history, nil),
		schema:    schema,
		values:    NewValueUseCase(store, store, store, history),
		documents: NewDocumentUseCase(store, store, store, store, exporter, history),
		loans:     NewLoanUseCase(store, store, history),
		approvals: NewApprovalUseCase(store, store, history),
	}
}

func (f *fixture) createProfile(t *testing.T, code string, parentID *string) *domain.Profile {
	t.Helper()
	p, err := f.profiles.Create(context.Background(), "actor-1", domain.ProfileInput{
		EnterpriseID: "ent-1",
		Code:         code,
		Name:         "Profile " + code,
		ParentID:     parentID,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", code, err)
	}
	return p
}

func (f *fixture) addDocument(t *testing.T, profileID, title string) *domain.ProfileDocument {
	t.Helper()
	doc, err := f.documents.Add(context.Background(), "actor-1", profileID, domain.DocumentInput{
		FileObjectID: "file-" + title,
		Title:        title,
	})
	if err != nil {
		t.Fatalf("Add(%s) error = %v", title, err)
	}
	return doc
}

func (f *fixture) createField(t *testing.T, in domain.FieldInput) *domain.MetadataField {
	t.Helper()
	field, err := f.schema.CreateField(context.Background(), "actor-1", in)
	if err != nil {
		t.Fatalf("CreateField(%s) error = %v", in.Name, err)
	}
	return field
}

func ptr[T any](v T) *T {
	return &v
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
