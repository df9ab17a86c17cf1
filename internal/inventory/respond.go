package inventory

import (
	"errors"
	"fmt"
	"strings"

	"kimbiofarm-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ledgerError renders a ledger failure as the {"success": false} envelope.
func ledgerError(c *fiber.Ctx, err error) error {
	var insufficient *ledger.InsufficientStockError
	switch {
	case errors.Is(err, ledger.ErrPlantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Không tìm thấy cây!",
		})
	case errors.Is(err, ledger.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), ledger.ErrInvalidInput.Error()+": ")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":       false,
			"message":       fmt.Sprintf("Không đủ tồn kho! Tồn hiện tại: %g", insufficient.Current),
			"current_stock": insufficient.Current,
		})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("ledger operation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Lỗi lưu dữ liệu, thao tác đã được hủy",
		})
	}
}

const defaultPageSize = 50

type Pagination struct {
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// paginate counts q and loads one page of it, sorted by order, into dest.
// Pages start at 1. Associations are preloaded on the page query only.
func paginate(q *gorm.DB, order string, page, size int, dest any, preloads ...string) (Pagination, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	p := Pagination{Page: page, Size: size}

	if err := q.Session(&gorm.Session{}).Count(&p.Total).Error; err != nil {
		return p, err
	}
	p.Pages = int((p.Total + int64(size) - 1) / int64(size))

	for _, assoc := range preloads {
		q = q.Preload(assoc)
	}
	if err := q.Order(order).Offset((page - 1) * size).Limit(size).Find(dest).Error; err != nil {
		return p, err
	}
	return p, nil
}
