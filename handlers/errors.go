package handlers

import (
	"errors"
	"log"
	"strconv"

	"lucremais-task/middleware"
	"lucremais-task/services"

	"github.com/gofiber/fiber/v2"
)

// respondError renders a service error as {"error": code, "message": msg}.
func respondError(c *fiber.Ctx, err error) error {
	var se *services.Error
	if errors.As(err, &se) {
		return c.Status(statusFor(se.Kind)).JSON(fiber.Map{
			"error":   se.Code,
			"message": se.Message,
		})
	}
	log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal",
		"message": "internal server error",
	})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindInvalidInput:
		return fiber.StatusBadRequest
	case services.KindThrottleExceeded:
		return fiber.StatusTooManyRequests
	case services.KindInsufficientBalance:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_input",
		"message": msg,
	})
}

func parseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// forbidUser writes a 403 and returns true when the request's validated
// init data belongs to a different user than the one addressed.
func forbidUser(c *fiber.Ctx, userID int64) bool {
	if id, ok := middleware.TelegramID(c); ok && id != userID {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "init data does not match the addressed user",
		})
		return true
	}
	return false
}
