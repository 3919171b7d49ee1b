package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func TestSchemaCreateFieldRejectsIllegalRules(t *testing.T) {
	tests := []struct {
		name string
		in   domain.FieldInput
	}{
		{name: "bad name", in: domain.FieldInput{Name: "9lives", DataType: domain.DataTypeString}},
		{name: "unknown type", in: domain.FieldInput{Name: "x", DataType: "blob"}},
		{name: "pattern on number", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeNumber, Pattern: `\d+`}},
		{name: "broken pattern", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeString, Pattern: `([`}},
		{name: "range on string", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeString, MinValue: ptr(1.0)}},
		{name: "inverted range", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeNumber, MinValue: ptr(10.0), MaxValue: ptr(1.0)}},
		{name: "select without options", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeSelect}},
		{name: "duplicate options", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeSelect, Options: []string{"a", "a"}}},
		{name: "options on string", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeString, Options: []string{"a"}}},
		{name: "default outside range", in: domain.FieldInput{Name: "x", DataType: domain.DataTypeNumber, MinValue: ptr(0.0), DefaultValue: "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.schema.CreateField(context.Background(), "actor-1", tt.in)
			requireKind(t, err, domain.ErrSchema)
		})
	}
}

func TestSchemaFieldNamesUniquePerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createProfile(t, "A", nil)
	b := f.createProfile(t, "B", nil)

	f.createField(t, domain.FieldInput{ProfileID: &a.ID, Name: "serial", DataType: domain.DataTypeString})
	_, err := f.schema.CreateField(ctx, "actor-1", domain.FieldInput{ProfileID: &a.ID, Name: "SERIAL", DataType: domain.DataTypeString})
	requireKind(t, err, domain.ErrDuplicateCode)

	f.createField(t, domain.FieldInput{ProfileID: &b.ID, Name: "serial", DataType: domain.DataTypeString})
	f.createField(t, domain.FieldInput{Name: "serial", DataType: domain.DataTypeString})
}

func TestSchemaDisplayOrderAppends(t *testing.T) {
	f := newFixture(t)
	p := f.createProfile(t, "A", nil)
	first := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "first", DataType: domain.DataTypeString})
	second := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "second", DataType: domain.DataTypeString})
	if first.DisplayOrder != 1 || second.DisplayOrder != 2 {
		t.Fatalf("unexpected orders %d, %d", first.DisplayOrder, second.DisplayOrder)
	}

	err := f.schema.ReorderFields(context.Background(), "actor-1", &p.ID, []domain.DisplayOrder{
		{ID: first.ID, Order: 2},
		{ID: second.ID, Order: 1},
	})
	if err != nil {
		t.Fatalf("ReorderFields() error = %v", err)
	}
	fields, err := f.schema.ListFields(context.Background(), &p.ID, true)
	if err != nil {
		t.Fatalf("ListFields() error = %v", err)
	}
	if fields[0].ID != second.ID {
		t.Fatalf("reorder not applied: %+v", fields)
	}
}

func TestSchemaReorderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "first", DataType: domain.DataTypeString})

	err := f.schema.ReorderFields(context.Background(), "actor-1", &p.ID, []domain.DisplayOrder{
		{ID: field.ID, Order: 9},
		{ID: "missing", Order: 1},
	})
	requireKind(t, err, domain.ErrNotFound)

	stored, err := f.schema.GetField(context.Background(), field.ID)
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if stored.DisplayOrder != 1 {
		t.Fatalf("partial reorder applied: %d", stored.DisplayOrder)
	}
}

func TestSchemaTypeChangeBlockedOnceValuesExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "code", DataType: domain.DataTypeString})
	doc := f.addDocument(t, p.ID, "doc")

	if _, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: field.ID, Value: "X1"}}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	_, err := f.schema.UpdateField(ctx, "actor-1", field.ID, domain.FieldInput{Name: "code", DataType: domain.DataTypeNumber})
	requireKind(t, err, domain.ErrFieldInUse)

	updated, err := f.schema.UpdateField(ctx, "actor-1", field.ID, domain.FieldInput{Name: "code", Label: "Inventory code", DataType: domain.DataTypeString})
	if err != nil {
		t.Fatalf("UpdateField() label change error = %v", err)
	}
	if updated.Label != "Inventory code" {
		t.Fatalf("label not updated: %+v", updated)
	}
}

func TestSchemaTypeChangeBlockedByClearedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	field := f.createField(t, domain.FieldInput{ProfileID: &p.ID, Name: "batch", DataType: domain.DataTypeString})
	doc := f.addDocument(t, p.ID, "doc")

	if _, err := f.values.SetValues(ctx, "actor-1", doc.ID, []domain.FieldValueInput{{FieldID: field.ID, Value: "B-7"}}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if err := f.values.DeleteValue(ctx, "actor-1", doc.ID, field.ID); err != nil {
		t.Fatalf("DeleteValue() error = %v", err)
	}

	_, err := f.schema.UpdateField(ctx, "actor-1", field.ID, domain.FieldInput{Name: "batch", DataType: domain.DataTypeNumber})
	requireKind(t, err, domain.ErrFieldInUse)
}

func TestSchemaCopyFieldsProducesIndependentCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createProfile(t, "A", nil)
	b := f.createProfile(t, "B", nil)
	source := f.createField(t, domain.FieldInput{
		ProfileID: &a.ID,
		Name:      "capacity",
		Label:     "Capacity",
		DataType:  domain.DataTypeNumber,
		Required:  true,
		MinValue:  ptr(0.0),
	})
	f.createField(t, domain.FieldInput{ProfileID: &b.ID, Name: "existing", DataType: domain.DataTypeString})

	copies, err := f.schema.CopyFields(ctx, "actor-1", a.ID, b.ID)
	if err != nil {
		t.Fatalf("CopyFields() error = %v", err)
	}
	if len(copies) != 1 {
		t.Fatalf("expected one copy, got %d", len(copies))
	}
	dup := copies[0]
	if dup.ID == source.ID || dup.Label != "Capacity" || dup.DataType != domain.DataTypeNumber || !dup.Required || *dup.MinValue != 0 {
		t.Fatalf("unexpected copy: %+v", dup)
	}
	if dup.DisplayOrder != 2 {
		t.Fatalf("copy should follow existing fields, got order %d", dup.DisplayOrder)
	}

	if err := f.schema.DeleteField(ctx, "actor-1", source.ID); err != nil {
		t.Fatalf("DeleteField() error = %v", err)
	}
	if _, err := f.schema.GetField(ctx, dup.ID); err != nil {
		t.Fatalf("copy affected by source delete: %v", err)
	}

	_, err = f.schema.CopyFields(ctx, "actor-1", b.ID, b.ID)
	requireKind(t, err, domain.ErrValidation)
}

func TestSchemaCopyFieldsAbortsOnNameCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createProfile(t, "A", nil)
	b := f.createProfile(t, "B", nil)
	f.createField(t, domain.FieldInput{ProfileID: &a.ID, Name: "serial", DataType: domain.DataTypeString})
	f.createField(t, domain.FieldInput{ProfileID: &a.ID, Name: "weight", DataType: domain.DataTypeNumber})
	f.createField(t, domain.FieldInput{ProfileID: &b.ID, Name: "weight", DataType: domain.DataTypeNumber})

	_, err := f.schema.CopyFields(ctx, "actor-1", a.ID, b.ID)
	requireKind(t, err, domain.ErrDuplicateCode)

	fields, err := f.schema.ListFields(ctx, &b.ID, true)
	if err != nil {
		t.Fatalf("ListFields() error = %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("partial copy left %d fields", len(fields))
	}
}
