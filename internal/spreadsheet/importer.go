package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxWarnings = 50

// ErrMissingColumns is returned when no sheet has a name or code column plus
// a quantity or stock column.
var ErrMissingColumns = errors.New("không tìm thấy cột bắt buộc: cần cột tên hàng hoặc mã cây, và cột số lượng hoặc tồn kho")

type ImportReport struct {
	Sheet      string   `json:"sheet"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Receipts   int      `json:"receipts"`
	Duplicates int      `json:"duplicates"`
	Skipped    int      `json:"skipped"`
	Warnings   []string `json:"warnings"`
}

func (r *ImportReport) warn(format string, args ...any) {
	if len(r.Warnings) < maxWarnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	}
}

// Importer loads a stock workbook into the ledger.
type Importer struct {
	db      *gorm.DB
	matcher *Matcher
	now     func() time.Time
}

func NewImporter(db *gorm.DB) *Importer {
	return &Importer{db: db, matcher: NewMatcher(DefaultRules), now: time.Now}
}

func (im *Importer) WithClock(now func() time.Time) *Importer {
	return &Importer{db: im.db, matcher: im.matcher, now: now}
}

func importable(cols Columns) bool {
	return (cols.Has(FieldName) || cols.Has(FieldCode)) &&
		(cols.Has(FieldQuantity) || cols.Has(FieldStock))
}

// Import reads the first sheet carrying the required columns. A stock column
// overwrites plant stock and receipts are then recorded as history only;
// without it each receipt increments stock. Storage errors roll back the whole file.
func (im *Importer) Import(ctx context.Context, r io.Reader, actor audit.Actor) (*ImportReport, error) {
	sheets, err := readSheets(r, im.matcher)
	if err != nil {
		return nil, err
	}

	var sheet *Sheet
	for i := range sheets {
		if importable(sheets[i].Columns) {
			sheet = &sheets[i]
			break
		}
	}
	if sheet == nil {
		return nil, ErrMissingColumns
	}

	report := &ImportReport{Sheet: sheet.Name, Warnings: []string{}}
	today := ledger.Day(im.now())

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, row := range sheet.Rows {
			rowNum := sheet.HeaderRow + i + 1
			if err := im.importRow(tx, sheet.Columns, row, rowNum, today, actor, report); err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:      actor,
			EntityType: audit.EntityImport,
			Action:     models.AuditActionImport,
			Description: fmt.Sprintf("Import sheet %q: %d cây mới, %d cập nhật, %d phiếu nhập",
				report.Sheet, report.Created, report.Updated, report.Receipts),
			After: report,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sheet", report.Sheet).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("receipts", report.Receipts).
		Int("duplicates", report.Duplicates).
		Int("skipped", report.Skipped).
		Msg("spreadsheet imported")
	return report, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// importRow returns an error only for storage failures; bad rows are counted.
func (im *Importer) importRow(tx *gorm.DB, cols Columns, row []string, rowNum int, today time.Time, actor audit.Actor, report *ImportReport) error {
	if blankRow(row) {
		return nil
	}

	name := cols.Cell(row, FieldName)
	if IsJunkName(name) {
		name = ""
	}
	code := cols.Cell(row, FieldCode)
	if strings.EqualFold(code, "nan") {
		code = ""
	}
	if code == "" && name != "" {
		code = CodeFromName(name)
	}
	if code == "" {
		report.Skipped++
		return nil
	}
	if len(code) > maxCodeLen {
		report.Skipped++
		report.warn("dòng %d: mã cây %q quá dài", rowNum, code)
		return nil
	}

	hasStock := cols.Has(FieldStock)
	var stock float64
	if hasStock {
		raw := cols.Cell(row, FieldStock)
		if raw != "" {
			v, ok := ParseQuantity(raw)
			if !ok {
				report.Skipped++
				report.warn("dòng %d: tồn kho %q không hợp lệ", rowNum, raw)
				return nil
			}
			stock = v
		}
	}

	qty, hasQty := ParseQuantity(cols.Cell(row, FieldQuantity))
	price, hasPrice := ParseMoney(cols.Cell(row, FieldUnitPrice))
	wantReceipt := hasQty && qty > 0 && hasPrice && price >= 0

	if !hasStock && !wantReceipt {
		report.Skipped++
		report.warn("dòng %d: thiếu số lượng hoặc giá nhập", rowNum)
		return nil
	}

	plant, created, err := ledger.FindOrCreatePlant(tx, code, name, actor)
	if err != nil {
		return err
	}
	if created {
		report.Created++
	} else {
		report.Updated++
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != "" && name != plant.Name {
		updates["name"] = name
		updates["search_key"] = models.PlantSearchKey(plant.Code, name)
	}
	if hasStock {
		updates["stock"] = stock
	}
	if err := tx.Model(&models.Plant{}).Where("id = ?", plant.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update plant %s: %w", code, err)
	}

	if !wantReceipt {
		return nil
	}

	date := today
	if raw := cols.Cell(row, FieldDate); raw != "" {
		if d, ok := ParseDate(raw); ok {
			date = d
		} else {
			report.warn("dòng %d: ngày %q không hợp lệ, dùng ngày hôm nay", rowNum, raw)
		}
	}
	ship := 0.0
	if v, ok := ParseMoney(cols.Cell(row, FieldShippingFee)); ok && v > 0 {
		ship = v
	}

	var dup int64
	if err := tx.Model(&models.Receipt{}).
		Where("plant_id = ? AND quantity = ? AND unit_cost = ? AND date = ?", plant.ID, qty, price, date).
		Count(&dup).Error; err != nil {
		return fmt.Errorf("check duplicate receipt: %w", err)
	}
	if dup > 0 {
		report.Duplicates++
		return nil
	}

	receipt := models.Receipt{
		PlantID:     plant.ID,
		Quantity:    qty,
		UnitCost:    price,
		ShippingFee: ship,
		TotalCost:   ledger.TotalCost(qty, price, ship),
		Date:        date,
		Note:        cols.Cell(row, FieldNote),
	}
	if err := tx.Create(&receipt).Error; err != nil {
		return fmt.Errorf("create receipt for %s: %w", code, err)
	}
	report.Receipts++

	if !hasStock {
		if err := tx.Model(&models.Plant{}).
			Where("id = ?", plant.ID).
			Update("stock", gorm.Expr("stock + ?", qty)).Error; err != nil {
			return fmt.Errorf("increment stock %s: %w", code, err)
		}
	}
	return nil
}
