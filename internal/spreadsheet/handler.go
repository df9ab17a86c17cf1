package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"time"

	"kimbiofarm-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func openUpload(c *fiber.Ctx, field string) (multipart.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Không có file %q được chọn", field))
	}
	if fh.Filename == "" || fh.Size == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "File rỗng")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Không thể đọc file")
	}
	return f, nil
}

func sendWorkbook(c *fiber.Ctx, filename string, buf *bytes.Buffer) error {
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

// POST /api/import (multipart "file")
func ImportHandler(im *Importer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := openUpload(c, "file")
		if err != nil {
			return err
		}
		defer file.Close()

		report, err := im.Import(c.UserContext(), file, auth.ActorFromCtx(c))
		switch {
		case errors.Is(err, ErrMissingColumns), errors.Is(err, ErrInvalidWorkbook):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		case err != nil:
			log.Error().Err(err).Msg("import failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Lỗi khi import, dữ liệu không thay đổi")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Import thành công! Đã thêm %d cây mới, cập nhật %d cây, %d phiếu nhập.",
				report.Created, report.Updated, report.Receipts),
			"report": report,
		})
	}
}

// POST /api/reconcile (multipart "prices" and "stock"), responds with the merged workbook.
func ReconcileHandler(m *Matcher, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pricesFile, err := openUpload(c, "prices")
		if err != nil {
			return err
		}
		defer pricesFile.Close()
		stockFile, err := openUpload(c, "stock")
		if err != nil {
			return err
		}
		defer stockFile.Close()

		prices, err := ReadPriceList(pricesFile, m)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bảng giá: "+err.Error())
		}
		stock, err := ReadStockList(stockFile, m)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bảng tồn: "+err.Error())
		}

		ts := now()
		res := Reconcile(prices, stock, ts)

		var buf bytes.Buffer
		if err := WriteReconcile(&buf, res.Rows); err != nil {
			log.Error().Err(err).Msg("reconcile write failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể tạo file tổng hợp")
		}

		log.Info().Int("matched", res.Matched).Int("unmatched", res.Unmatched).Msg("reconcile done")
		c.Set("X-Matched", strconv.Itoa(res.Matched))
		c.Set("X-Unmatched", strconv.Itoa(res.Unmatched))
		return sendWorkbook(c, "DuLieuTongHop_"+ts.Format("20060102_150405")+".xlsx", &buf)
	}
}

// GET /api/export/receipts
func ExportReceiptsHandler(db *gorm.DB, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		n, err := ExportReceipts(c.UserContext(), db, &buf)
		if err != nil {
			log.Error().Err(err).Msg("export failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Không thể xuất dữ liệu")
		}

		c.Set("X-Row-Count", strconv.Itoa(n))
		return sendWorkbook(c, "NhapKho_"+now().Format("20060102_150405")+".xlsx", &buf)
	}
}
