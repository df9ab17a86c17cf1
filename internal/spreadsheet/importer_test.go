package spreadsheet

import (
	"bytes"
	"context"
	"testing"
	"time"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/database"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var importNow = time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

func newImporter(t *testing.T) (*Importer, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewImporter(db).WithClock(func() time.Time { return importNow }), db
}

func loadPlant(t *testing.T, db *gorm.DB, code string) models.Plant {
	t.Helper()
	var p models.Plant
	require.NoError(t, db.Where("code = ?", code).First(&p).Error)
	return p
}

func TestImportReceiptLayout(t *testing.T) {
	im, db := newImporter(t)
	wb := buildWorkbook(t, testSheet{name: "Sheet1", rows: [][]any{
		{"Tên hàng", "Số lượng", "Giá tiền", "Ngày"},
		{"Trúc Nhật", 5, 20000, "2024-01-01"},
	}})

	report, err := im.Import(context.Background(), wb, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Receipts)

	plant := loadPlant(t, db, "TRUC-NHAT")
	assert.Equal(t, "Trúc Nhật", plant.Name)
	assert.Equal(t, 5.0, plant.Stock)

	var receipts []models.Receipt
	require.NoError(t, db.Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.Equal(t, 100000.0, receipts[0].TotalCost)
	assert.Equal(t, "2024-01-01", receipts[0].Date.UTC().Format(ledger.DateLayout))
}

func TestImportTwiceSkipsDuplicateReceipts(t *testing.T) {
	im, db := newImporter(t)
	rows := [][]any{
		{"Tên hàng", "Số lượng", "Giá tiền", "Ngày"},
		{"Trúc Nhật", 5, 20000, "2024-01-01"},
	}

	_, err := im.Import(context.Background(), buildWorkbook(t, testSheet{"Sheet1", rows}), audit.Actor{})
	require.NoError(t, err)
	report, err := im.Import(context.Background(), buildWorkbook(t, testSheet{"Sheet1", rows}), audit.Actor{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 0, report.Receipts)
	assert.Equal(t, 5.0, loadPlant(t, db, "TRUC-NHAT").Stock)
}

func TestImportStockSheetOverwritesStock(t *testing.T) {
	im, db := newImporter(t)
	ctx := context.Background()

	_, err := ledger.NewService(db).RecordReceipt(ctx, ledger.ReceiptInput{Code: "A001", Name: "Mai", Quantity: 99})
	require.NoError(t, err)

	wb := buildWorkbook(t, testSheet{name: "NHẬP XUẤT TỒN  T12.2015", rows: [][]any{
		{"MÃ CÂY", "LOẠI CÂY", "TỒN từ 3.12.25", "SỐ LƯỢNG NHẬP", "GIÁ NHẬP", "PHÍ SHIP", "NGÀY NHẬP", "GHI CHÚ"},
		{"A001", "Mai vàng", 12, 10, 50000, 5000, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "lô đầu"},
		{"B002", "Cây Bàng", 3},
		{"", "nan"},
		{"C003", "Sen đá", "nhiều"},
		{},
	}})

	report, err := im.Import(ctx, wb, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Receipts)
	assert.Equal(t, 2, report.Skipped)
	assert.NotEmpty(t, report.Warnings)

	a := loadPlant(t, db, "A001")
	assert.Equal(t, "Mai vàng", a.Name)
	assert.Equal(t, 12.0, a.Stock)
	assert.Equal(t, 3.0, loadPlant(t, db, "B002").Stock)

	var receipt models.Receipt
	require.NoError(t, db.Where("plant_id = ? AND note = ?", a.ID, "lô đầu").First(&receipt).Error)
	assert.Equal(t, 505000.0, receipt.TotalCost)
	assert.Equal(t, "2024-01-02", receipt.Date.UTC().Format(ledger.DateLayout))

	var missing int64
	require.NoError(t, db.Model(&models.Plant{}).Where("code = ?", "C003").Count(&missing).Error)
	assert.Zero(t, missing)
}

func TestImportDefaultsDateToToday(t *testing.T) {
	im, db := newImporter(t)
	wb := buildWorkbook(t, testSheet{name: "Sheet1", rows: [][]any{
		{"Tên hàng", "SL", "Đơn giá", "Ngày"},
		{"Lan hồ điệp", 2, "150.000", "không rõ"},
		{"Sen đá", 4, "", ""},
	}})

	report, err := im.Import(context.Background(), wb, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Receipts)
	assert.Equal(t, 1, report.Skipped)

	var r models.Receipt
	require.NoError(t, db.First(&r).Error)
	assert.Equal(t, 150000.0, r.UnitCost)
	assert.Equal(t, "2024-03-20", r.Date.UTC().Format(ledger.DateLayout))
}

func TestImportUsesFirstMatchingSheet(t *testing.T) {
	im, _ := newImporter(t)
	wb := buildWorkbook(t,
		testSheet{name: "Ghi chú", rows: [][]any{{"nội dung"}, {"xin chào"}}},
		testSheet{name: "Tồn", rows: [][]any{{"Mã cây", "Tồn kho"}, {"A001", 4}}},
	)

	report, err := im.Import(context.Background(), wb, audit.Actor{})
	require.NoError(t, err)
	assert.Equal(t, "Tồn", report.Sheet)
	assert.Equal(t, 1, report.Created)
}

func TestImportRejectsBadInput(t *testing.T) {
	im, db := newImporter(t)

	_, err := im.Import(context.Background(), buildWorkbook(t, testSheet{"Sheet1", [][]any{{"foo", "bar"}, {1, 2}}}), audit.Actor{})
	assert.ErrorIs(t, err, ErrMissingColumns)

	_, err = im.Import(context.Background(), bytes.NewReader([]byte("not a workbook")), audit.Actor{})
	assert.ErrorIs(t, err, ErrInvalidWorkbook)

	var plants int64
	require.NoError(t, db.Model(&models.Plant{}).Count(&plants).Error)
	assert.Zero(t, plants)
}

func TestImportWritesAuditRow(t *testing.T) {
	im, db := newImporter(t)
	uid := uint(4)
	wb := buildWorkbook(t, testSheet{"Sheet1", [][]any{{"Mã cây", "Tồn"}, {"A001", 1}}})

	_, err := im.Import(context.Background(), wb, audit.Actor{UserID: &uid, UserName: "Kim"})
	require.NoError(t, err)

	var entry models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", audit.EntityImport).First(&entry).Error)
	assert.Equal(t, models.AuditActionImport, entry.Action)
	assert.Equal(t, "Kim", entry.UserName)
}
