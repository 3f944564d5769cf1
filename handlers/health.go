package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/database"
	"github.com/studyplanner/api/utils/response"
)

// HealthCheck reports API and database health
func HealthCheck(store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database is unreachable")
		}

		return response.Success(c, fiber.Map{
			"status": "ok",
		})
	}
}
