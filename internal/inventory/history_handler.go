package inventory

import (
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const historyOrder = "date DESC, created_at DESC, id DESC"

type receiptPage struct {
	Items      []ledger.ReceiptView `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

type dispatchPage struct {
	Items      []ledger.DispatchView `json:"items"`
	Pagination Pagination            `json:"pagination"`
}

func loadReceiptPage(db *gorm.DB, page, size int) (*receiptPage, error) {
	var rows []models.Receipt
	p, err := paginate(db.Model(&models.Receipt{}), historyOrder, page, size, &rows, "Plant")
	if err != nil {
		return nil, err
	}
	out := &receiptPage{Items: make([]ledger.ReceiptView, 0, len(rows)), Pagination: p}
	for _, r := range rows {
		out.Items = append(out.Items, ledger.NewReceiptView(r))
	}
	return out, nil
}

func loadDispatchPage(db *gorm.DB, page, size int) (*dispatchPage, error) {
	var rows []models.Dispatch
	p, err := paginate(db.Model(&models.Dispatch{}), historyOrder, page, size, &rows, "Plant")
	if err != nil {
		return nil, err
	}
	out := &dispatchPage{Items: make([]ledger.DispatchView, 0, len(rows)), Pagination: p}
	for _, d := range rows {
		out.Items = append(out.Items, ledger.NewDispatchView(d))
	}
	return out, nil
}

// GET /api/history?type=all|receipts|dispatches&page=1
func HistoryHandler(db *gorm.DB, pageSize int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind := c.Query("type", "all")
		page := c.QueryInt("page", 1)
		tx := db.WithContext(c.UserContext())

		resp := fiber.Map{"type": kind}
		switch kind {
		case "receipts", "dispatches", "all":
		default:
			return fiber.NewError(fiber.StatusBadRequest, "type phải là all, receipts hoặc dispatches")
		}

		if kind != "dispatches" {
			receipts, err := loadReceiptPage(tx, page, pageSize)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải lịch sử nhập")
			}
			resp["receipts"] = receipts
		}
		if kind != "receipts" {
			dispatches, err := loadDispatchPage(tx, page, pageSize)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Không thể tải lịch sử xuất")
			}
			resp["dispatches"] = dispatches
		}

		return c.JSON(resp)
	}
}
