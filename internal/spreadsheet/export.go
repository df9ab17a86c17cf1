package spreadsheet

import (
	"context"
	"fmt"
	"io"

	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"gorm.io/gorm"
)

var ExportHeaders = []string{"Tên hàng", "Số lượng", "Giá tiền", "Ngày"}

// ExportReceipts writes every receipt, newest first, and returns the row count.
func ExportReceipts(ctx context.Context, db *gorm.DB, w io.Writer) (int, error) {
	var receipts []models.Receipt
	if err := db.WithContext(ctx).
		Preload("Plant").
		Order("date DESC, created_at DESC, id DESC").
		Find(&receipts).Error; err != nil {
		return 0, fmt.Errorf("load receipts: %w", err)
	}

	rows := make([][]any, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, []any{
			r.Plant.Name,
			r.Quantity,
			r.UnitCost,
			r.Date.UTC().Format(ledger.DateLayout),
		})
	}

	if err := WriteTable(w, "Nhập kho", ExportHeaders, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
