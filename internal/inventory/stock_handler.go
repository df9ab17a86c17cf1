package inventory

import (
	"strings"

	"kimbiofarm-backend/internal/auth"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type PlantResponse struct {
	ID        uint    `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Stock     float64 `json:"stock"`
	HasImage  bool    `json:"has_image"`
	UpdatedAt string  `json:"updated_at"`
}

func toPlantResponse(p models.Plant) PlantResponse {
	return PlantResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Stock:     p.Stock,
		HasImage:  p.ImagePath != "",
		UpdatedAt: p.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPlantResponses(plants []models.Plant) []PlantResponse {
	out := make([]PlantResponse, 0, len(plants))
	for _, p := range plants {
		out = append(out, toPlantResponse(p))
	}
	return out
}

// GET /api/stock?search=mai&page=1
func StockListHandler(db *gorm.DB, pageSize int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		search := strings.TrimSpace(c.Query("search"))

		q := db.WithContext(c.UserContext()).Model(&models.Plant{})
		if term := models.SearchText(search); term != "" {
			q = q.Where("search_key LIKE ?", "%"+term+"%")
		}

		var plants []models.Plant
		page, err := paginate(q, "stock DESC, code ASC", c.QueryInt("page", 1), pageSize, &plants)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải danh sách tồn kho")
		}

		return c.JSON(fiber.Map{
			"items":      toPlantResponses(plants),
			"pagination": page,
			"search":     search,
		})
	}
}

// GET /api/plants/:code
func PlantDetailHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		plant, err := ledger.FindPlant(ctx, db, c.Params("code"))
		if err != nil {
			return ledgerError(c, err)
		}
		tx := db.WithContext(ctx)

		var receipts []models.Receipt
		if err := tx.Preload("Plant").
			Where("plant_id = ?", plant.ID).
			Order("date DESC, created_at DESC, id DESC").
			Find(&receipts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải lịch sử nhập")
		}
		var dispatches []models.Dispatch
		if err := tx.Preload("Plant").
			Where("plant_id = ?", plant.ID).
			Order("date DESC, created_at DESC, id DESC").
			Find(&dispatches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải lịch sử xuất")
		}

		var totalCost, received, dispatched float64
		for _, r := range receipts {
			totalCost += r.TotalCost
			received += r.Quantity
		}
		for _, d := range dispatches {
			dispatched += d.Quantity
		}

		rv := make([]ledger.ReceiptView, 0, len(receipts))
		for _, r := range receipts {
			rv = append(rv, ledger.NewReceiptView(r))
		}
		dv := make([]ledger.DispatchView, 0, len(dispatches))
		for _, d := range dispatches {
			dv = append(dv, ledger.NewDispatchView(d))
		}

		return c.JSON(fiber.Map{
			"plant":            toPlantResponse(*plant),
			"receipts":         rv,
			"dispatches":       dv,
			"total_cost":       totalCost,
			"total_received":   received,
			"total_dispatched": dispatched,
		})
	}
}

// GET /api/plants/:code/summary
func PlantSummaryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		plant, err := ledger.FindPlant(ctx, db, c.Params("code"))
		if err != nil {
			return ledgerError(c, err)
		}

		var latest models.Receipt
		var latestCost any
		res := db.WithContext(ctx).
			Where("plant_id = ?", plant.ID).
			Order("date DESC, created_at DESC, id DESC").
			Limit(1).
			Find(&latest)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải phiếu nhập")
		}
		if res.RowsAffected > 0 {
			latestCost = latest.UnitCost
		}

		return c.JSON(fiber.Map{
			"success":          true,
			"code":             plant.Code,
			"name":             plant.Name,
			"stock":            plant.Stock,
			"latest_unit_cost": latestCost,
		})
	}
}

// GET /api/plants/:code/balance
func PlantBalanceHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bal, err := svc.LedgerBalance(c.UserContext(), c.Params("code"))
		if err != nil {
			return ledgerError(c, err)
		}
		return c.JSON(bal)
	}
}

// DELETE /api/plants/:code (admin)
func DeletePlantHandler(svc *ledger.Service, images *ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		imagePath, err := svc.DeletePlant(c.UserContext(), code, auth.ActorFromCtx(c))
		if err != nil {
			return ledgerError(c, err)
		}

		if err := images.Remove(imagePath); err != nil {
			log.Warn().Err(err).Str("image", imagePath).Msg("could not remove plant image")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Đã xóa cây " + code,
		})
	}
}
