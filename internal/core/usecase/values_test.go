package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func TestInventoryCapacityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "INV-2024-01", nil)
	f.createField(t, domain.FieldInput{
		ProfileID: &p.ID,
		Name:      "capacity",
		DataType:  domain.DataTypeNumber,
		Required:  true,
		MinValue:  ptr(0.0),
	})
	doc := f.addDocument(t, p.ID, "inventory sheet")

	_, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "capacity", Value: -5}})
	requireKind(t, err, domain.ErrValidation)
	fe, ok := domain.AsFieldError(err)
	if !ok || fe.Field != "capacity" {
		t.Fatalf("expected field-level detail, got %v", err)
	}

	stored, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "capacity", Value: 100}})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Value.NumberVal == nil || *stored[0].Value.NumberVal != 100 {
		t.Fatalf("unexpected stored values: %+v", stored)
	}

	opened, err := f.profiles.Open(ctx, "actor-1", p.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened.Status != domain.ProfileActive || opened.OpenedAt == nil {
		t.Fatalf("unexpected profile after open: %+v", opened)
	}
}

func TestSetValuesTwiceKeepsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "serial", DataType: domain.DataTypeString})
	doc := f.addDocument(t, p.ID, "doc")

	first, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: field.ID, Value: "A-1"}})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	second, err := f.values.SetValues(ctx, "actor-2", doc.ID, []domain.FieldValueInput{{FieldID: field.ID, Value: "A-2"}})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected a single row, got %d", len(second))
	}
	if second[0].Value.ID != first[0].Value.ID {
		t.Fatalf("upsert created a new row: %s != %s", second[0].Value.ID, first[0].Value.ID)
	}
	if *second[0].Value.StringVal != "A-2" || second[0].Value.UpdatedBy != "actor-2" || second[0].Value.CreatedBy != "actor-1" {
		t.Fatalf("unexpected row after second write: %+v", second[0].Value)
	}
}

func TestConcurrentSetValuesConvergeOnOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "serial", DataType: domain.DataTypeString})
	doc := f.addDocument(t, p.ID, "doc")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.values.SetValues(ctx, fmt.Sprintf("actor-%d", i), doc.ID,
				[]domain.FieldValueInput{{FieldID: field.ID, Value: fmt.Sprintf("S-%d", i)}})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("SetValues #%d error = %v", i, err)
		}
	}

	values, err := f.values.GetValues(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetValues() error = %v", err)
	}
	live := 0
	for _, v := range values {
		if v.Field.ID == field.ID {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected one live row for the pair, got %d", live)
	}
}

func TestSetValuesIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "serial", DataType: domain.DataTypeString})
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "weight", DataType: domain.DataTypeNumber})
	doc := f.addDocument(t, p.ID, "doc")

	_, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{
		{FieldName: "serial", Value: "S-1"},
		{FieldName: "weight", Value: "heavy"},
	})
	requireKind(t, err, domain.ErrValidation)

	values, err := f.values.GetValues(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetValues() error = %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("partial write stored %d values", len(values))
	}
}

func TestSetValuesUnknownOrDisabledField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createProfile(t, "A", nil)
	b := f.createProfile(t, "B", nil)
	foreign := f.createField(t, domain.FieldInput{ProfileID: &b.ID, Name: "foreign", DataType: domain.DataTypeString})
	f.createField(t, domain.FieldInput{ProfileID: &a.ID, Name: "hidden", DataType: domain.DataTypeString, Enabled: ptr(false)})
	doc := f.addDocument(t, a.ID, "doc")

	_, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: foreign.ID, Value: "x"}})
	requireKind(t, err, domain.ErrUnknownField)

	_, err = f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "hidden", Value: "x"}})
	requireKind(t, err, domain.ErrUnknownField)
}

func TestSetValuesGlobalFieldAppliesEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	f.createField(t, domain.FieldInput{Name: "confidential", DataType: domain.DataTypeBoolean})
	doc := f.addDocument(t, p.ID, "doc")

	values, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "confidential", Value: "true"}})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if len(values) != 1 || values[0].Value.BoolVal == nil || !*values[0].Value.BoolVal {
		t.Fatalf("unexpected values: %+v", values)
	}
}

func TestSetValuesTypedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "issued", DataType: domain.DataTypeDate})
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "grade", DataType: domain.DataTypeSelect, Options: []string{"A", "B"}})
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "tags", DataType: domain.DataTypeMultiSelect, Options: []string{"red", "blue"}})
	doc := f.addDocument(t, p.ID, "doc")

	_, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "grade", Value: "C"}})
	requireKind(t, err, domain.ErrValidation)

	values, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{
		{FieldName: "issued", Value: "2024-03-01"},
		{FieldName: "grade", Value: "B"},
		{FieldName: "tags", Value: []any{"blue", "red", "blue"}},
	})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	byName := map[string]domain.MetadataValue{}
	for _, fv := range values {
		byName[fv.Field.Name] = fv.Value
	}
	if byName["issued"].DateVal == nil || byName["issued"].String() != "2024-03-01" {
		t.Fatalf("unexpected date slot: %+v", byName["issued"])
	}
	if byName["grade"].StringVal == nil || *byName["grade"].StringVal != "B" {
		t.Fatalf("unexpected select slot: %+v", byName["grade"])
	}
	if byName["tags"].JSONVal == nil || *byName["tags"].JSONVal != `["blue","red"]` {
		t.Fatalf("unexpected multiselect slot: %+v", byName["tags"])
	}
}

func TestEmptyValueClearsOptionalField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "serial", DataType: domain.DataTypeString})
	required := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "owner", DataType: domain.DataTypeString, Required: true})
	doc := f.addDocument(t, p.ID, "doc")

	if _, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{
		{FieldID: field.ID, Value: "S-1"},
		{FieldID: required.ID, Value: "ops"},
	}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	_, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: required.ID, Value: ""}})
	requireKind(t, err, domain.ErrRequiredField)

	values, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: field.ID, Value: ""}})
	if err != nil {
		t.Fatalf("SetValues(clear) error = %v", err)
	}
	if len(values) != 1 || values[0].Field.ID != required.ID {
		t.Fatalf("optional value not cleared: %+v", values)
	}

	if err := f.values.DeleteValue(ctx, "actor-1", doc.ID, required.ID); err != nil {
		t.Fatalf("DeleteValue() error = %v", err)
	}
	requireKind(t, f.values.DeleteValue(ctx, "actor-1", doc.ID, required.ID), domain.ErrNotFound)
}

func TestSetValuesRecordsHistoryPerField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "serial", DataType: domain.DataTypeString})
	doc := f.addDocument(t, p.ID, "doc")

	if _, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "serial", Value: "S-1"}}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if _, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldName: "serial", Value: "S-2"}}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	var last domain.HistoryEntry
	for _, e := range f.store.History(doc.ID) {
		if e.ChangeType == domain.ChangeValueSet {
			last = e
		}
	}
	if last.FieldName != "serial" || last.OldValue != "S-1" || last.NewValue != "S-2" {
		t.Fatalf("unexpected history entry: %+v", last)
	}
}
