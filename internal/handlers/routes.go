package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the user endpoints into the app. The count
// route comes before the parameterised ones so "count" is never taken
// for a lookup criteria.
func RegisterRoutes(app *fiber.App, h *UserHandler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	users := app.Group("/users")
	users.Post("/", h.UpdateUser)
	users.Get("/", h.FindUsers)
	users.Get("/count", h.CountUsers)
	users.Get("/:criteria", h.FetchUser)
	users.Get("/:criteria/cars/count", h.CountCars)
	users.Post("/:criteria/cars", h.AddCar)

	app.Delete("/cars/:carId", h.RemoveCar)
}
