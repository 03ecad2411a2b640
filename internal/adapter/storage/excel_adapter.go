package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	inventorySheet = "Inventory"
	logsSheet      = "Logs"
	defaultSheet   = "Sheet1"
)

var (
	inventoryHeaders = []string{"Item", "Location", "Category", "Initial_Stock", "Current_Stock"}
	logHeaders       = []string{"Time", "Action", "Item", "Quantity", "From", "To", "Previous Count", "Final Count", "Detail", "ID"}

	// naive timestamps written by earlier spreadsheet tooling, read as local time
	legacyTimeLayouts = []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02T15:04:05.999999"}
)

// ExcelAdapter keeps the inventory and the ledger in one .xlsx workbook.
// Every write goes to a temporary file that is renamed over the workbook.
type ExcelAdapter struct {
	path string
	mu   sync.Mutex
}

func NewExcelAdapter(path string) *ExcelAdapter {
	return &ExcelAdapter{path: path}
}

func (x *ExcelAdapter) LoadInventory(ctx context.Context) ([]domain.StockEntry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.readSheet(inventorySheet)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.StockEntry, 0, len(rows))
	if len(rows) == 0 {
		return entries, nil
	}

	cols, err := columnIndex(rows[0], "Item", "Location", "Current_Stock")
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", inventorySheet, err)
	}
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		line := i + 2
		e := domain.StockEntry{
			Item:     cell(row, cols, "Item"),
			Location: cell(row, cols, "Location"),
			Category: cell(row, cols, "Category"),
		}
		if e.CurrentStock, err = intCell(row, cols, "Current_Stock"); err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", inventorySheet, line, err)
		}
		if e.InitialStock, err = intCell(row, cols, "Initial_Stock"); err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", inventorySheet, line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (x *ExcelAdapter) SaveInventory(ctx context.Context, entries []domain.StockEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := resetSheet(f, inventorySheet); err != nil {
		return err
	}
	if err := writeRow(f, inventorySheet, 1, toAny(inventoryHeaders)); err != nil {
		return err
	}
	for i, e := range entries {
		row := []any{e.Item, e.Location, e.Category, e.InitialStock, e.CurrentStock}
		if err := writeRow(f, inventorySheet, i+2, row); err != nil {
			return err
		}
	}
	return x.save(f)
}

func (x *ExcelAdapter) LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.readSheet(logsSheet)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LedgerEntry, 0, len(rows))
	if len(rows) == 0 {
		return entries, nil
	}

	cols, err := columnIndex(rows[0], "Time", "Action", "Item", "Quantity")
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", logsSheet, err)
	}
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		e, err := parseLogRow(row, cols, i+2)
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", logsSheet, i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (x *ExcelAdapter) AppendLog(ctx context.Context, entry domain.LedgerEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(logsSheet)
	if err != nil {
		return fmt.Errorf("locate sheet %s: %w", logsSheet, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(logsSheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", logsSheet, err)
		}
	}
	rows, err := f.GetRows(logsSheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", logsSheet, err)
	}
	if len(rows) == 0 {
		if err := writeRow(f, logsSheet, 1, toAny(logHeaders)); err != nil {
			return err
		}
		rows = [][]string{logHeaders}
	}

	row := []any{
		entry.Timestamp.Format(time.RFC3339Nano),
		string(entry.Action),
		entry.Item,
		entry.Quantity,
		entry.FromLocation,
		entry.ToLocation,
		entry.PreviousCount,
		entry.FinalCount,
		entry.Detail,
		entry.ID,
	}
	if err := writeRow(f, logsSheet, len(rows)+1, row); err != nil {
		return err
	}
	return x.save(f)
}

func (x *ExcelAdapter) readSheet(sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", x.path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("locate sheet %s: %w", sheet, err)
	}
	if idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// open returns the workbook, creating an empty one on first write.
func (x *ExcelAdapter) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", x.path, err)
	}
	return f, nil
}

func (x *ExcelAdapter) save(f *excelize.File) error {
	// a fresh workbook still carries an empty default sheet
	if idx, err := f.GetSheetIndex(defaultSheet); err == nil && idx >= 0 && f.SheetCount > 1 {
		if rows, err := f.GetRows(defaultSheet); err == nil && len(rows) == 0 {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return fmt.Errorf("drop default sheet: %w", err)
			}
		}
	}

	// excelize picks the format from the extension, so the temp name keeps it
	ext := filepath.Ext(x.path)
	tmp := filepath.Join(filepath.Dir(x.path), "."+strings.TrimSuffix(filepath.Base(x.path), ext)+".tmp"+ext)
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmp, x.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func resetSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("locate sheet %s: %w", sheet, err)
	}
	if idx >= 0 {
		if f.SheetCount == 1 {
			// excelize refuses to delete the only sheet
			if _, err := f.NewSheet(defaultSheet); err != nil {
				return fmt.Errorf("create placeholder sheet: %w", err)
			}
		}
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("clear sheet %s: %w", sheet, err)
		}
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, start, err)
	}
	return nil
}

// parseLogRow reads one Logs row. Rows written before entries carried an ID get
// one derived from the row number and content, stable across loads.
func parseLogRow(row []string, cols map[string]int, line int) (domain.LedgerEntry, error) {
	var (
		e   domain.LedgerEntry
		err error
	)
	if e.Timestamp, err = parseTime(cell(row, cols, "Time")); err != nil {
		return e, err
	}
	if e.Action, err = domain.ParseAction(cell(row, cols, "Action")); err != nil {
		return e, err
	}
	e.Item = cell(row, cols, "Item")
	e.FromLocation = cell(row, cols, "From")
	e.ToLocation = cell(row, cols, "To")
	e.Detail = cell(row, cols, "Detail")
	if e.Quantity, err = intCell(row, cols, "Quantity"); err != nil {
		return e, err
	}
	if e.PreviousCount, err = intCell(row, cols, "Previous Count"); err != nil {
		return e, err
	}
	if e.FinalCount, err = intCell(row, cols, "Final Count"); err != nil {
		return e, err
	}
	if e.ID = cell(row, cols, "ID"); e.ID == "" {
		name := fmt.Sprintf("%s:%d:%s", logsSheet, line, strings.Join(row, "\x1f"))
		e.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
	}
	return e, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unreadable time %q", s)
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// intCell reads a whole number; an absent or empty cell is zero.
func intCell(row []string, cols map[string]int, name string) (int, error) {
	s := cell(row, cols, name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, fmt.Errorf("column %s: %q is not a whole number", name, s)
	}
	return n, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
