package inventory

import (
	"time"

	"kimbiofarm-backend/internal/auth"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateDispatchRequest struct {
	Code     string  `json:"code" form:"code"`
	Quantity float64 `json:"quantity" form:"quantity"`
	Date     string  `json:"date" form:"date"`
	Reason   string  `json:"reason" form:"reason"`
	Note     string  `json:"note" form:"note"`
}

// GET /api/dispatches/form (only plants that have stock)
func DispatchFormHandler(db *gorm.DB, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var plants []models.Plant
		if err := db.WithContext(c.UserContext()).
			Where("stock > 0").
			Order("name ASC, code ASC").
			Find(&plants).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải danh sách cây")
		}
		return c.JSON(fiber.Map{
			"plants": toPlantResponses(plants),
			"today":  now().Format(ledger.DateLayout),
		})
	}
}

// POST /api/dispatches
func CreateDispatchHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateDispatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Dữ liệu gửi lên không hợp lệ")
		}
		date, err := parseDay(body.Date)
		if err != nil {
			return err
		}

		res, err := svc.RecordDispatch(c.UserContext(), ledger.DispatchInput{
			Code:     body.Code,
			Quantity: body.Quantity,
			Date:     date,
			Reason:   body.Reason,
			Note:     body.Note,
			Actor:    auth.ActorFromCtx(c),
		})
		if err != nil {
			return ledgerError(c, err)
		}

		res.Dispatch.Plant = res.Plant
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":  true,
			"message":  "Xuất hàng thành công!",
			"plant":    toPlantResponse(res.Plant),
			"dispatch": ledger.NewDispatchView(res.Dispatch),
		})
	}
}
