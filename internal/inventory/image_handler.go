package inventory

import (
	"errors"
	"net/url"

	"kimbiofarm-backend/internal/auth"
	"kimbiofarm-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ImageURLRequest struct {
	URL string `json:"url" form:"url"`
}

func imageError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	if errors.Is(err, ErrImageTooLarge) {
		status = fiber.StatusRequestEntityTooLarge
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}

// attachImage points the plant at a freshly stored file and drops the old one.
// The new file is removed again when the plant cannot be updated.
func attachImage(c *fiber.Ctx, svc *ledger.Service, store *ImageStore, code, name string) error {
	previous, err := svc.SetImage(c.UserContext(), code, name, auth.ActorFromCtx(c))
	if err != nil {
		_ = store.Remove(name)
		return ledgerError(c, err)
	}
	if previous != "" && previous != name {
		if err := store.Remove(previous); err != nil {
			log.Warn().Err(err).Str("image", previous).Msg("could not remove replaced plant image")
		}
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Đã cập nhật ảnh",
		"image_url": "/api/plants/" + url.PathEscape(code) + "/image",
	})
}

// POST /api/plants/:code/image (multipart field "image")
func UploadImageHandler(svc *ledger.Service, store *ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		fh, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Thiếu tệp ảnh (image)")
		}
		name, err := store.Save(fh)
		if err != nil {
			return imageError(c, err)
		}
		return attachImage(c, svc, store, code, name)
	}
}

// POST /api/plants/:code/image-url {"url": "https://..."}
func ImageURLHandler(svc *ledger.Service, store *ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		var body ImageURLRequest
		if err := c.BodyParser(&body); err != nil || body.URL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Thiếu đường dẫn ảnh (url)")
		}
		name, err := store.Download(c.UserContext(), body.URL)
		if err != nil {
			return imageError(c, err)
		}
		return attachImage(c, svc, store, code, name)
	}
}

// GET /api/plants/:code/image
func GetImageHandler(db *gorm.DB, store *ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plant, err := ledger.FindPlant(c.UserContext(), db, c.Params("code"))
		if err != nil {
			return ledgerError(c, err)
		}
		if plant.ImagePath == "" {
			return fiber.NewError(fiber.StatusNotFound, "Cây chưa có ảnh")
		}
		return c.SendFile(store.Path(plant.ImagePath))
	}
}
