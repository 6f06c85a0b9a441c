// handlers/admin.go
package handlers

import (
	"fmt"

	"lucremais-task/models"
	"lucremais-task/services"

	"github.com/gofiber/fiber/v2"
)

// Admin bundles the operator operations.
type Admin struct {
	Accounts *services.AccountService
	Catalog  *services.CatalogService
	Payouts  *services.PayoutService
	Reports  *services.ReportService
	Clock    *services.Clock
}

// SetupAdminRoutes mounts the operator routes on r (the /admin group, behind
// AdminAuthMiddleware).
func SetupAdminRoutes(r fiber.Router, admin *Admin) {
	r.Post("/tasks", func(c *fiber.Ctx) error {
		var in services.CreateTaskInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid task payload")
		}
		task, err := admin.Catalog.CreateTask(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(task)
	})

	r.Post("/tasks/:id/deactivate", func(c *fiber.Ctx) error {
		task, err := admin.Catalog.DeactivateTask(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(task)
	})

	r.Get("/tasks", func(c *fiber.Ctx) error {
		tasks, err := admin.Catalog.ListActiveTasks(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(tasks)
	})

	r.Get("/payouts/pending", func(c *fiber.Ctx) error {
		list, err := admin.Payouts.ListPendingPayouts(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Patch("/payouts/:id/status", func(c *fiber.Ctx) error {
		var body struct {
			Status  string `json:"status"`
			Comment string `json:"comment"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid status payload")
		}
		req, err := admin.Payouts.SetPayoutStatus(c.UserContext(), c.Params("id"), models.PayoutStatus(body.Status), body.Comment)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(req)
	})

	// 📊 xlsx export; from/to default to today
	r.Get("/payouts/export", func(c *fiber.Ctx) error {
		today := admin.Clock.Today()
		from := c.Query("from", today)
		to := c.Query("to", from)
		body, err := admin.Reports.BuildPayoutReport(c.UserContext(), models.PayoutStatus(c.Query("status")), from, to)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, services.XLSXContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", services.ReportFilename(admin.Clock.Now())))
		return c.Send(body)
	})

	r.Get("/accounts", func(c *fiber.Ctx) error {
		list, err := admin.Accounts.SearchAccounts(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Get("/accounts/:id/entries", func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c.Params("id"))
		if !ok {
			return badRequest(c, "invalid user id")
		}
		entries, err := admin.Accounts.ListBalanceEntries(c.UserContext(), userID, c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})
}
