// Package xlsx renders a profile's document register as an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const (
	sheetName      = "Register"
	maxNotesLength = 140
)

var fixedColumns = []struct {
	header string
	width  float64
	value  func(domain.ProfileDocument) any
}{
	{"No.", 6, func(d domain.ProfileDocument) any { return d.DisplayOrder }},
	{"Title", 32, func(d domain.ProfileDocument) any { return d.Title }},
	{"Document Number", 18, func(d domain.ProfileDocument) any { return d.DocumentNumber }},
	{"Type", 16, func(d domain.ProfileDocument) any { return d.DocumentType }},
	{"Issue Date", 12, func(d domain.ProfileDocument) any { return formatDate(d.IssueDate) }},
	{"Expiry Date", 12, func(d domain.ProfileDocument) any { return formatDate(d.ExpiryDate) }},
	{"Issuing Authority", 22, func(d domain.ProfileDocument) any { return d.IssuingAuthority }},
	{"Status", 10, func(d domain.ProfileDocument) any { return d.Status }},
	{"Notes", 48, func(d domain.ProfileDocument) any { return truncate(d.Notes, maxNotesLength) }},
}

type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// ExportRegister writes one row per document followed by a column per list-visible field.
func (e *Exporter) ExportRegister(ctx context.Context, register domain.DocumentRegister) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}

	if err := e.writeTitle(f, register.Profile); err != nil {
		return nil, err
	}

	const headerRow = 3
	col := 1
	for _, c := range fixedColumns {
		if err := setCell(f, col, headerRow, c.header); err != nil {
			return nil, err
		}
		if err := setWidth(f, col, c.width); err != nil {
			return nil, err
		}
		col++
	}
	for _, field := range register.Fields {
		label := field.Label
		if label == "" {
			label = field.Name
		}
		if err := setCell(f, col, headerRow, label); err != nil {
			return nil, err
		}
		if err := setWidth(f, col, 18); err != nil {
			return nil, err
		}
		col++
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(col-1, headerRow)
		_ = f.SetCellStyle(sheetName, "A3", last, style)
	}

	row := headerRow + 1
	for _, r := range register.Rows {
		col = 1
		for _, c := range fixedColumns {
			if err := setCell(f, col, row, c.value(r.Document)); err != nil {
				return nil, err
			}
			col++
		}
		for _, field := range register.Fields {
			if v, ok := r.Values[field.ID]; ok {
				if err := setCell(f, col, row, cellValue(v)); err != nil {
					return nil, err
				}
			}
			col++
		}
		row++
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: headerRow, TopLeftCell: "A4", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("xlsx freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("register_export_ok",
		"profile_id", register.Profile.ID,
		"rows", len(register.Rows),
		"metadata_columns", len(register.Fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (e *Exporter) writeTitle(f *excelize.File, p domain.Profile) error {
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s %s", p.Code, p.Name)); err != nil {
		return fmt.Errorf("xlsx title: %w", err)
	}
	if err := f.SetCellValue(sheetName, "A2", fmt.Sprintf("Path: %s  Status: %s", p.Path, p.Status)); err != nil {
		return fmt.Errorf("xlsx subtitle: %w", err)
	}
	return nil
}

// cellValue keeps numbers and booleans native so spreadsheet formulas work on them.
func cellValue(v domain.MetadataValue) any {
	switch raw := v.Raw().(type) {
	case float64, bool:
		return raw
	default:
		return v.String()
	}
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, v); err != nil {
		return fmt.Errorf("xlsx set %s: %w", cell, err)
	}
	return nil
}

func setWidth(f *excelize.File, col int, width float64) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Errorf("xlsx column: %w", err)
	}
	return f.SetColWidth(sheetName, name, name, width)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
