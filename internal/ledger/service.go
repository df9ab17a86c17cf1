package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns every write to plant stock. Each operation runs in one transaction.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock replaces the clock used for default dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{db: s.db, now: now}
}

type ReceiptInput struct {
	Code        string
	Name        string
	Quantity    float64
	UnitCost    float64
	ShippingFee float64
	Date        time.Time // zero means today
	Note        string
	Actor       audit.Actor
}

type ReceiptResult struct {
	Plant   models.Plant
	Receipt models.Receipt
	Created bool // plant did not exist before
}

type DispatchInput struct {
	Code     string
	Quantity float64
	Date     time.Time
	Reason   string
	Note     string
	Actor    audit.Actor
}

type DispatchResult struct {
	Plant    models.Plant
	Dispatch models.Dispatch
}

// TotalCost computes quantity*unitCost + shippingFee without float drift.
func TotalCost(quantity, unitCost, shippingFee float64) float64 {
	return decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(unitCost)).
		Add(decimal.NewFromFloat(shippingFee)).
		InexactFloat64()
}

func (s *Service) RecordReceipt(ctx context.Context, in ReceiptInput) (*ReceiptResult, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Code == "":
		return nil, invalid("mã cây là bắt buộc")
	case len(in.Code) > 50:
		return nil, invalid("mã cây tối đa 50 ký tự")
	case in.Quantity <= 0:
		return nil, invalid("số lượng phải lớn hơn 0")
	case in.UnitCost < 0 || in.ShippingFee < 0:
		return nil, invalid("giá nhập và phí ship không được âm")
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	var res ReceiptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant, created, err := FindOrCreatePlant(tx, in.Code, in.Name, in.Actor)
		if err != nil {
			return err
		}

		receipt := models.Receipt{
			PlantID:     plant.ID,
			Quantity:    in.Quantity,
			UnitCost:    in.UnitCost,
			ShippingFee: in.ShippingFee,
			TotalCost:   TotalCost(in.Quantity, in.UnitCost, in.ShippingFee),
			Date:        Day(date),
			Note:        in.Note,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		updates := map[string]any{
			"stock":      gorm.Expr("stock + ?", in.Quantity),
			"updated_at": time.Now().UTC(),
		}
		if in.Name != "" && in.Name != plant.Name {
			updates["name"] = in.Name
			updates["search_key"] = models.PlantSearchKey(plant.Code, in.Name)
		}
		if err := tx.Model(&models.Plant{}).Where("id = ?", plant.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		if err := tx.First(plant, plant.ID).Error; err != nil {
			return fmt.Errorf("reload plant: %w", err)
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			Actor:       in.Actor,
			EntityType:  audit.EntityReceipt,
			EntityID:    receipt.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Nhập %g cây %s", in.Quantity, plant.Code),
			After:       receipt,
		}); err != nil {
			return err
		}

		res = ReceiptResult{Plant: *plant, Receipt: receipt, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", res.Plant.Code).
		Float64("quantity", in.Quantity).
		Float64("stock", res.Plant.Stock).
		Msg("receipt recorded")
	return &res, nil
}

func (s *Service) RecordDispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return nil, invalid("mã cây là bắt buộc")
	}
	if in.Quantity <= 0 {
		return nil, invalid("số lượng phải lớn hơn 0")
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	var res DispatchResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant, err := findPlant(tx, in.Code)
		if err != nil {
			return err
		}

		// stock check and decrement in one statement
		upd := tx.Model(&models.Plant{}).
			Where("id = ? AND stock >= ?", plant.ID, in.Quantity).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock - ?", in.Quantity),
				"updated_at": time.Now().UTC(),
			})
		if upd.Error != nil {
			return fmt.Errorf("decrement stock: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			if err := tx.First(plant, plant.ID).Error; err != nil {
				return fmt.Errorf("reload plant: %w", err)
			}
			return &InsufficientStockError{Code: plant.Code, Current: plant.Stock, Requested: in.Quantity}
		}

		dispatch := models.Dispatch{
			PlantID:  plant.ID,
			Quantity: in.Quantity,
			Date:     Day(date),
			Reason:   in.Reason,
			Note:     in.Note,
		}
		if err := tx.Create(&dispatch).Error; err != nil {
			return fmt.Errorf("create dispatch: %w", err)
		}
		if err := tx.First(plant, plant.ID).Error; err != nil {
			return fmt.Errorf("reload plant: %w", err)
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			Actor:       in.Actor,
			EntityType:  audit.EntityDispatch,
			EntityID:    dispatch.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Xuất %g cây %s (%s)", in.Quantity, plant.Code, in.Reason),
			After:       dispatch,
		}); err != nil {
			return err
		}

		res = DispatchResult{Plant: *plant, Dispatch: dispatch}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", res.Plant.Code).
		Float64("quantity", in.Quantity).
		Float64("stock", res.Plant.Stock).
		Msg("dispatch recorded")
	return &res, nil
}

// DeletePlant removes the plant with its receipts and dispatches and returns the
// stored image path so the caller can remove the file.
func (s *Service) DeletePlant(ctx context.Context, code string, actor audit.Actor) (string, error) {
	var imagePath string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant, err := findPlant(tx, code)
		if err != nil {
			return err
		}
		imagePath = plant.ImagePath

		if err := tx.Where("plant_id = ?", plant.ID).Delete(&models.Receipt{}).Error; err != nil {
			return fmt.Errorf("delete receipts: %w", err)
		}
		if err := tx.Where("plant_id = ?", plant.ID).Delete(&models.Dispatch{}).Error; err != nil {
			return fmt.Errorf("delete dispatches: %w", err)
		}
		if err := tx.Delete(&models.Plant{}, plant.ID).Error; err != nil {
			return fmt.Errorf("delete plant: %w", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPlant,
			EntityID:    plant.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Xóa cây %s", plant.Code),
			After:       plant,
		})
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("code", code).Msg("plant deleted")
	return imagePath, nil
}

// SetImage stores a new image path on the plant and returns the previous one.
func (s *Service) SetImage(ctx context.Context, code, path string, actor audit.Actor) (string, error) {
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant, err := findPlant(tx, code)
		if err != nil {
			return err
		}
		previous = plant.ImagePath

		if err := tx.Model(plant).Updates(map[string]any{
			"image_path": path,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("update image: %w", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPlant,
			EntityID:    plant.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Cập nhật ảnh cây %s", plant.Code),
			After:       map[string]string{"image_path": path},
		})
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// Balance compares the stored running stock with the stock derived from history.
type Balance struct {
	Code       string  `json:"code"`
	Stored     float64 `json:"stored_stock"`
	Received   float64 `json:"received"`
	Dispatched float64 `json:"dispatched"`
	Derived    float64 `json:"derived_stock"`
	Drift      float64 `json:"drift"`
}

// LedgerBalance is read-only: a non-zero drift is reported, never corrected.
func (s *Service) LedgerBalance(ctx context.Context, code string) (*Balance, error) {
	db := s.db.WithContext(ctx)
	plant, err := findPlant(db, code)
	if err != nil {
		return nil, err
	}

	var received, dispatched float64
	if err := db.Model(&models.Receipt{}).
		Where("plant_id = ?", plant.ID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&received).Error; err != nil {
		return nil, fmt.Errorf("sum receipts: %w", err)
	}
	if err := db.Model(&models.Dispatch{}).
		Where("plant_id = ?", plant.ID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&dispatched).Error; err != nil {
		return nil, fmt.Errorf("sum dispatches: %w", err)
	}

	derived := decimal.NewFromFloat(received).Sub(decimal.NewFromFloat(dispatched))
	drift := decimal.NewFromFloat(plant.Stock).Sub(derived)

	return &Balance{
		Code:       plant.Code,
		Stored:     plant.Stock,
		Received:   received,
		Dispatched: dispatched,
		Derived:    derived.InexactFloat64(),
		Drift:      drift.InexactFloat64(),
	}, nil
}

// FindOrCreatePlant loads the plant by code, inserting it with the given name when
// missing. An empty name falls back to the code.
func FindOrCreatePlant(tx *gorm.DB, code, name string, actor audit.Actor) (*models.Plant, bool, error) {
	if name == "" {
		name = code
	}
	plant := models.Plant{Code: code, Name: name}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&plant)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create plant: %w", res.Error)
	}
	created := res.RowsAffected == 1

	var stored models.Plant
	if err := tx.Where("code = ?", code).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("load plant: %w", err)
	}
	if created {
		if err := audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityPlant,
			EntityID:    stored.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Tạo cây %s", code),
			After:       stored,
		}); err != nil {
			return nil, false, err
		}
	}
	return &stored, created, nil
}

// FindPlant loads a plant by code, mapping a missing row to ErrPlantNotFound.
func FindPlant(ctx context.Context, db *gorm.DB, code string) (*models.Plant, error) {
	return findPlant(db.WithContext(ctx), code)
}

func findPlant(tx *gorm.DB, code string) (*models.Plant, error) {
	var plant models.Plant
	err := tx.Where("code = ?", strings.TrimSpace(code)).First(&plant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load plant: %w", err)
	}
	return &plant, nil
}
