// Package report writes reservation spreadsheets.
package report

import (
	"fmt"
	"io"
	"poolsched/pkg/model"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	SheetLanes   = "Lanes"
	SheetLockers = "Lockers"

	maxSheetName = 31
)

// Columns is the header row of every sheet.
var Columns = []string{
	"id", "kind", "pool", "resource", "users",
	"period start", "period end", "actual start", "actual end", "cancelled",
}

// Workbook wraps an excelize file and tracks the sheet being written.
type Workbook struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet makes name the active sheet. The default sheet is renamed on the
// first call.
func (w *Workbook) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *Workbook) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
	}
	return nil
}

func (w *Workbook) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

func (w *Workbook) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *Workbook) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// PoolNamer resolves a pool id to the name printed in the pool column.
type PoolNamer func(poolID string) string

// Reservations writes one sheet per kind. Lanes come first; a kind with no
// rows still gets its header. Times are written in loc, unbounded values as
// empty cells.
func (w *Workbook) Reservations(rows []*model.Reservation, pool PoolNamer, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if pool == nil {
		pool = func(id string) string { return id }
	}

	sheets := []struct {
		name string
		kind model.Kind
	}{
		{SheetLanes, model.KindLane},
		{SheetLockers, model.KindLocker},
	}
	for _, s := range sheets {
		if err := w.AddSheet(s.name); err != nil {
			return err
		}
		if err := w.WriteHeader(Columns); err != nil {
			return err
		}
		for _, r := range rows {
			if r.Kind != s.kind {
				continue
			}
			if err := w.WriteRow(reservationRow(r, pool, loc)); err != nil {
				return fmt.Errorf("write reservation %s: %w", r.ID, err)
			}
		}
	}
	return nil
}

func reservationRow(r *model.Reservation, pool PoolNamer, loc *time.Location) []any {
	return []any{
		r.ID,
		string(r.Kind),
		pool(r.PoolID),
		r.ResourceID,
		strings.Join(r.Users, ", "),
		stamp(r.Period.Lower, loc),
		stamp(r.Period.Upper, loc),
		stamp(r.Actual.Lower, loc),
		stamp(r.Actual.Upper, loc),
		stamp(r.Cancelled, loc),
	}
}

func stamp(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
