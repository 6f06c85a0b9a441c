package middleware

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	tu "github.com/mymmrac/telego/telegoutil"
)

// LocalTelegramID is the c.Locals key holding the validated Telegram user id.
const LocalTelegramID = "telegram_id"

// InitDataHeader carries Telegram.WebApp.initData from the mini app.
const InitDataHeader = "X-Telegram-Init-Data"

// initDataUser is the part of the init data "user" field we read.
type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// TelegramInitDataMiddleware validates the signed init data the mini app
// sends and stores the user id in c.Locals. When required is false requests
// without init data pass through unauthenticated; invalid data is always
// rejected.
func TelegramInitDataMiddleware(botToken string, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(InitDataHeader)
		if raw == "" {
			if auth := c.Get("Authorization"); strings.HasPrefix(auth, "tma ") {
				raw = strings.TrimPrefix(auth, "tma ")
			}
		}

		if raw == "" {
			if required {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   "unauthorized",
					"message": "telegram init data missing",
				})
			}
			return c.Next()
		}

		values, err := tu.ValidateWebAppData(botToken, raw)
		if err != nil {
			log.Printf("❌ [INIT_DATA] Invalid init data for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid telegram init data",
			})
		}

		var user initDataUser
		if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "telegram init data has no user",
			})
		}

		c.Locals(LocalTelegramID, user.ID)
		return c.Next()
	}
}

// TelegramID returns the validated user id, if the request carried init data.
func TelegramID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(LocalTelegramID).(int64)
	return id, ok && id != 0
}
