// handlers/api.go
package handlers

import (
	"lucremais-task/services"
	"lucremais-task/utils"

	"github.com/gofiber/fiber/v2"
)

// API bundles the core operations the mini app calls.
type API struct {
	Accounts    *services.AccountService
	Catalog     *services.CatalogService
	Completions *services.CompletionService
	Referrals   *services.ReferralService
	Payouts     *services.PayoutService
	Rankings    *services.RankingService
	Clock       *services.Clock
	BotUsername string
}

// SetupAPIRoutes mounts the mini app routes on r (normally the /api group).
func SetupAPIRoutes(r fiber.Router, api *API) {
	// 📋 Tasks
	r.Get("/tasks", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Query("telegram_id"))
		if !ok {
			return badRequest(c, "telegram_id is required")
		}
		if forbidUser(c, userID) {
			return nil
		}
		day := c.Query("day", api.Clock.Today())
		tasks, err := api.Catalog.TasksForDay(c.UserContext(), userID, day)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(tasks)
	})

	r.Post("/tasks/:id/complete", func(c *fiber.Ctx) error {
		var body struct {
			TelegramID int64 `json:"telegram_id"`
			Points     int64 `json:"points"`
		}
		if err := c.BodyParser(&body); err != nil || body.TelegramID <= 0 {
			return badRequest(c, "telegram_id is required")
		}
		if forbidUser(c, body.TelegramID) {
			return nil
		}
		res, err := api.Completions.RecordCompletion(c.UserContext(), body.TelegramID, c.Params("id"), api.Clock.Today(), body.Points, c.IP())
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	// 👤 Users
	r.Post("/users", func(c *fiber.Ctx) error {
		var body struct {
			TelegramID int64  `json:"telegram_id"`
			Name       string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil || body.TelegramID <= 0 {
			return badRequest(c, "telegram_id is required")
		}
		if forbidUser(c, body.TelegramID) {
			return nil
		}
		acc, err := api.Accounts.GetOrCreate(c.UserContext(), body.TelegramID, body.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(acc)
	})

	r.Get("/users/:id", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Params("id"))
		if !ok {
			return badRequest(c, "invalid user id")
		}
		if forbidUser(c, userID) {
			return nil
		}
		acc, err := api.Accounts.GetAccount(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(acc)
	})

	r.Get("/users/:id/completions", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Params("id"))
		if !ok {
			return badRequest(c, "invalid user id")
		}
		if forbidUser(c, userID) {
			return nil
		}
		list, err := api.Completions.ListCompletions(c.UserContext(), userID, c.Query("day", api.Clock.Today()))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Get("/users/:id/referrals", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Params("id"))
		if !ok {
			return badRequest(c, "invalid user id")
		}
		if forbidUser(c, userID) {
			return nil
		}
		list, err := api.Referrals.ListByIndicator(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Get("/users/:id/referral-qr", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Params("id"))
		if !ok {
			return badRequest(c, "invalid user id")
		}
		if _, err := api.Accounts.GetAccount(c.UserContext(), userID); err != nil {
			return respondError(c, err)
		}
		png, err := utils.ReferralQR(api.BotUsername, userID, 256)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(png)
	})

	// 🤝 Referrals
	r.Post("/referrals", func(c *fiber.Ctx) error {
		var body struct {
			IndicatedID int64 `json:"indicated_id"`
			IndicatorID int64 `json:"indicator_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.IndicatedID <= 0 || body.IndicatorID <= 0 {
			return badRequest(c, "indicated_id and indicator_id are required")
		}
		if forbidUser(c, body.IndicatedID) {
			return nil
		}
		ref, err := api.Referrals.RegisterReferral(c.UserContext(), body.IndicatedID, body.IndicatorID, c.IP())
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ref)
	})

	r.Post("/referrals/activate", func(c *fiber.Ctx) error {
		var body struct {
			TelegramID int64 `json:"telegram_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.TelegramID <= 0 {
			return badRequest(c, "telegram_id is required")
		}
		if forbidUser(c, body.TelegramID) {
			return nil
		}
		act, err := api.Referrals.ActivateReferral(c.UserContext(), body.TelegramID, c.IP())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(act)
	})

	// 🏆 Ranking
	r.Get("/ranking", func(c *fiber.Ctx) error {
		ranking, err := api.Rankings.Both(c.UserContext(), c.QueryInt("limit", services.DefaultRankingSize))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(ranking)
	})

	// 💸 Payouts
	r.Post("/payouts", func(c *fiber.Ctx) error {
		var body struct {
			TelegramID int64  `json:"telegram_id"`
			PixKey     string `json:"pix_key"`
			CPF        string `json:"cpf"`
		}
		if err := c.BodyParser(&body); err != nil || body.TelegramID <= 0 || body.PixKey == "" || body.CPF == "" {
			return badRequest(c, "telegram_id, pix_key and cpf are required")
		}
		if forbidUser(c, body.TelegramID) {
			return nil
		}
		req, err := api.Payouts.RequestPayout(c.UserContext(), body.TelegramID, body.PixKey, body.CPF)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"request":         req,
			"value_formatted": utils.FormatBRL(req.Value),
		})
	})

	r.Get("/payouts", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Query("telegram_id"))
		if !ok {
			return badRequest(c, "telegram_id is required")
		}
		if forbidUser(c, userID) {
			return nil
		}
		list, err := api.Payouts.ListPayouts(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})
}
