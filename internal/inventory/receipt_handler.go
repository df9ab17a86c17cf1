package inventory

import (
	"strings"
	"time"

	"kimbiofarm-backend/internal/auth"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateReceiptRequest struct {
	Code        string  `json:"code" form:"code"`
	Name        string  `json:"name" form:"name"`
	Quantity    float64 `json:"quantity" form:"quantity"`
	UnitCost    float64 `json:"unit_cost" form:"unit_cost"`
	ShippingFee float64 `json:"shipping_fee" form:"shipping_fee"`
	Date        string  `json:"date" form:"date"` // YYYY-MM-DD, empty means today
	Note        string  `json:"note" form:"note"`
}

// parseDay reads an optional YYYY-MM-DD date; empty gives the zero time.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "Ngày không hợp lệ, định dạng YYYY-MM-DD")
	}
	return t, nil
}

// GET /api/receipts/form
func ReceiptFormHandler(db *gorm.DB, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var plants []models.Plant
		if err := db.WithContext(c.UserContext()).Order("name ASC, code ASC").Find(&plants).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải danh sách cây")
		}
		return c.JSON(fiber.Map{
			"plants": toPlantResponses(plants),
			"today":  now().Format(ledger.DateLayout),
		})
	}
}

// POST /api/receipts
func CreateReceiptHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateReceiptRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Dữ liệu gửi lên không hợp lệ")
		}
		date, err := parseDay(body.Date)
		if err != nil {
			return err
		}

		res, err := svc.RecordReceipt(c.UserContext(), ledger.ReceiptInput{
			Code:        body.Code,
			Name:        body.Name,
			Quantity:    body.Quantity,
			UnitCost:    body.UnitCost,
			ShippingFee: body.ShippingFee,
			Date:        date,
			Note:        body.Note,
			Actor:       auth.ActorFromCtx(c),
		})
		if err != nil {
			return ledgerError(c, err)
		}

		res.Receipt.Plant = res.Plant
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Nhập hàng thành công!",
			"plant":   toPlantResponse(res.Plant),
			"receipt": ledger.NewReceiptView(res.Receipt),
		})
	}
}
