package dashboard

import "github.com/gofiber/fiber/v2"

// GET /api/dashboard
func SummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Summary(c.UserContext()))
	}
}
