package dashboard

import (
	"context"
	"time"

	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const listSize = 10

type TopPlant struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Stock float64 `json:"stock"`
}

type Summary struct {
	PlantCount       int64                 `json:"plant_count"`
	TotalStock       float64               `json:"total_stock"`
	InventoryValue   float64               `json:"inventory_value"`
	MonthReceived    float64               `json:"month_received"`
	MonthDispatched  float64               `json:"month_dispatched"`
	Month            string                `json:"month"` // YYYY-MM
	TopPlants        []TopPlant            `json:"top_plants"`
	RecentReceipts   []ledger.ReceiptView  `json:"recent_receipts"`
	RecentDispatches []ledger.DispatchView `json:"recent_dispatches"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{db: s.db, now: now}
}

// Summary computes every figure independently; a failing query is logged and
// leaves its figure at zero so the page still renders.
func (s *Service) Summary(ctx context.Context) Summary {
	db := s.db.WithContext(ctx)
	// same calendar reading as ledger.Day, which stamps receipts
	now := s.now()
	start, end := ledger.MonthRange(now)

	out := Summary{
		Month:            now.Format("2006-01"),
		TopPlants:        []TopPlant{},
		RecentReceipts:   []ledger.ReceiptView{},
		RecentDispatches: []ledger.DispatchView{},
	}

	if err := db.Model(&models.Plant{}).Count(&out.PlantCount).Error; err != nil {
		warn(err, "plant_count")
		out.PlantCount = 0
	}

	if err := db.Model(&models.Plant{}).
		Select("COALESCE(SUM(stock), 0)").
		Scan(&out.TotalStock).Error; err != nil {
		warn(err, "total_stock")
		out.TotalStock = 0
	}

	// stock valued at the unit cost of each plant's latest receipt
	valueSQL := `
		SELECT COALESCE(SUM(p.stock * COALESCE((
			SELECT r.unit_cost FROM receipts r
			WHERE r.plant_id = p.id
			ORDER BY r.date DESC, r.created_at DESC, r.id DESC
			LIMIT 1
		), 0)), 0)
		FROM plants p`
	if err := db.Raw(valueSQL).Scan(&out.InventoryValue).Error; err != nil {
		warn(err, "inventory_value")
		out.InventoryValue = 0
	}

	if err := db.Model(&models.Receipt{}).
		Where("date >= ? AND date < ?", start, end).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&out.MonthReceived).Error; err != nil {
		warn(err, "month_received")
		out.MonthReceived = 0
	}

	if err := db.Model(&models.Dispatch{}).
		Where("date >= ? AND date < ?", start, end).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&out.MonthDispatched).Error; err != nil {
		warn(err, "month_dispatched")
		out.MonthDispatched = 0
	}

	var top []models.Plant
	if err := db.Order("stock DESC, name ASC").Limit(listSize).Find(&top).Error; err != nil {
		warn(err, "top_plants")
	} else {
		for _, p := range top {
			out.TopPlants = append(out.TopPlants, TopPlant{Code: p.Code, Name: p.Name, Stock: p.Stock})
		}
	}

	var receipts []models.Receipt
	if err := db.Preload("Plant").
		Order("date DESC, created_at DESC, id DESC").
		Limit(listSize).
		Find(&receipts).Error; err != nil {
		warn(err, "recent_receipts")
	} else {
		for _, r := range receipts {
			out.RecentReceipts = append(out.RecentReceipts, ledger.NewReceiptView(r))
		}
	}

	var dispatches []models.Dispatch
	if err := db.Preload("Plant").
		Order("date DESC, created_at DESC, id DESC").
		Limit(listSize).
		Find(&dispatches).Error; err != nil {
		warn(err, "recent_dispatches")
	} else {
		for _, d := range dispatches {
			out.RecentDispatches = append(out.RecentDispatches, ledger.NewDispatchView(d))
		}
	}

	return out
}

func warn(err error, figure string) {
	log.Warn().Err(err).Str("figure", figure).Msg("dashboard query failed, using default")
}
