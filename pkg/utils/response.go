package utils

import "github.com/gofiber/fiber/v2"

// Successes are raw JSON bodies; failures are {error: true, message: "..."}
// with a matching status code.

func JSON(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
