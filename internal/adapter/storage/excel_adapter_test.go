package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

func TestExcel_MissingWorkbookLoadsEmpty(t *testing.T) {
	adapter := NewExcelAdapter(filepath.Join(t.TempDir(), "inventory.xlsx"))
	ctx := context.Background()

	inv, err := adapter.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inv)

	logs, err := adapter.LoadLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExcel_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	adapter := NewExcelAdapter(path)
	ctx := context.Background()

	rows := []domain.StockEntry{
		{Item: "Plastic Bucket", Location: "Basement", Category: "Plastics", InitialStock: 75, CurrentStock: 70},
		{Item: "Plastic Bucket", Location: "Shop", CurrentStock: 5},
	}
	require.NoError(t, adapter.SaveInventory(ctx, rows))

	first := domain.LedgerEntry{
		ID: "a", Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Action: domain.ActionAdd,
		Item: "Plastic Bucket", Quantity: 75, ToLocation: "Basement", FinalCount: 75,
	}
	second := domain.LedgerEntry{
		ID: "b", Timestamp: time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), Action: domain.ActionMove,
		Item: "Plastic Bucket", Quantity: 5, FromLocation: "Basement", ToLocation: "Shop",
		PreviousCount: 75, FinalCount: 70,
	}
	require.NoError(t, adapter.AppendLog(ctx, first))
	require.NoError(t, adapter.AppendLog(ctx, second))

	// saving the table again must not touch the ledger sheet
	require.NoError(t, adapter.SaveInventory(ctx, rows))

	reopened := NewExcelAdapter(path)
	gotRows, err := reopened.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, gotRows)

	gotLogs, err := reopened.LoadLogs(ctx)
	require.NoError(t, err)
	require.Len(t, gotLogs, 2)
	assert.True(t, first.Timestamp.Equal(gotLogs[0].Timestamp))
	gotLogs[0].Timestamp, gotLogs[1].Timestamp = first.Timestamp, second.Timestamp
	assert.Equal(t, []domain.LedgerEntry{first, second}, gotLogs)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.ElementsMatch(t, []string{inventorySheet, logsSheet}, f.GetSheetList())

	_, err = os.Stat(filepath.Join(filepath.Dir(path), ".inventory.tmp.xlsx"))
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")
}

func TestExcel_ReadsHandEditedWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(inventorySheet)
	require.NoError(t, err)
	_, err = f.NewSheet(logsSheet)
	require.NoError(t, err)

	// columns in a different order, no category and stock typed as floats
	inv := [][]any{
		{"Current_Stock", "Item", "Location", "Initial_Stock"},
		{"20.0", "Water Tank", "Basement", 20},
		{},
		{40, "Chair Model 220", "Basement", 40},
	}
	for i, row := range inv {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(inventorySheet, cellName, &row))
	}
	logs := [][]any{
		{"Time", "Action", "Item", "Quantity", "From", "To", "Previous Count", "Final Count", "Detail"},
		{"2024-03-01 09:15:00", "Purchase", "Water Tank", 5, "", "Basement", 15, 20, ""},
		{"2024-03-01 09:15:00", "Purchase", "Water Tank", 5, "", "Basement", 15, 20, ""},
	}
	for i, row := range logs {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(logsSheet, cellName, &row))
	}
	require.NoError(t, f.SaveAs(path))
	f.Close()

	adapter := NewExcelAdapter(path)
	ctx := context.Background()

	rows, err := adapter.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.StockEntry{
		{Item: "Water Tank", Location: "Basement", InitialStock: 20, CurrentStock: 20},
		{Item: "Chair Model 220", Location: "Basement", InitialStock: 40, CurrentStock: 40},
	}, rows)

	entries, err := adapter.LoadLogs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionPurchase, entries[0].Action)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 15, 0, 0, time.Local), entries[0].Timestamp)

	again, err := NewExcelAdapter(path).LoadLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, again[0].ID)
	assert.Equal(t, entries[1].ID, again[1].ID)
}

func TestExcel_RejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(inventorySheet)
	require.NoError(t, err)
	header := []any{"Item", "Location", "Current_Stock"}
	row := []any{"Bucket", "Basement", "lots"}
	require.NoError(t, f.SetSheetRow(inventorySheet, "A1", &header))
	require.NoError(t, f.SetSheetRow(inventorySheet, "A2", &row))
	require.NoError(t, f.SaveAs(path))
	f.Close()

	_, err = NewExcelAdapter(path).LoadInventory(context.Background())
	assert.ErrorContains(t, err, "row 2")
}

func TestExcel_SaveKeepsWorkbookFormat(t *testing.T) {
	ctx := context.Background()
	rows := []domain.StockEntry{{Item: "Bucket", Location: "Basement", InitialStock: 3, CurrentStock: 3}}

	for _, name := range []string{"stock.xlsx", "stock.xlsm", "stock.v2.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, NewExcelAdapter(path).SaveInventory(ctx, rows))
			require.NoError(t, NewExcelAdapter(path).AppendLog(ctx, domain.LedgerEntry{
				ID: "a", Timestamp: time.Now(), Action: domain.ActionAdd, Item: "Bucket", Quantity: 3,
			}))

			got, err := NewExcelAdapter(path).LoadInventory(ctx)
			require.NoError(t, err)
			assert.Equal(t, rows, got)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestExcel_UnreadableWorkbookIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(inventorySheet)
	require.NoError(t, err)
	sheet := [][]any{
		{"Item", "Location", "Current_Stock"},
		{"Bucket", "Basement", 75},
		{"Chair", "Shop", "lots"},
	}
	for i, row := range sheet {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(inventorySheet, cellName, &row))
	}
	require.NoError(t, f.SaveAs(path))
	f.Close()

	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	adapter := NewExcelAdapter(path)
	svc := service.NewInventoryService(adapter, service.NewLedger(adapter, time.UTC, nil), service.WithLogger(logger))

	require.ErrorIs(t, svc.Load(ctx), domain.ErrLoad)
	_, err = svc.AddItem(ctx, "Table", "Shop", 3)
	assert.ErrorIs(t, err, domain.ErrLoad)
	seeded, err := svc.SeedIfEmpty(ctx, domain.DefaultInventory())
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.False(t, seeded)

	reopened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetRows(inventorySheet)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "lots", got[2][2])
}
