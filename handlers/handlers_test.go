package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"lucremais-task/middleware"
	"lucremais-task/models"
	"lucremais-task/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	app      *fiber.App
	accounts *services.AccountService
	catalog  *services.CatalogService
}

func newTestEnv(t *testing.T, pre ...fiber.Handler) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, AppConfig(nil), pre...)
}

func newTestEnvWithConfig(t *testing.T, appCfg fiber.Config, pre ...fiber.Handler) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	clock := services.NewClock(loc)
	rules := services.DefaultRules

	accounts := services.NewAccountService(db)
	catalog := services.NewCatalogService(db)
	referrals := services.NewReferralService(db, rules, nil)
	payouts := services.NewPayoutService(db, rules, clock, nil)

	app := fiber.New(appCfg)
	for _, h := range pre {
		app.Use(h)
	}
	SetupAPIRoutes(app.Group("/api"), &API{
		Accounts:    accounts,
		Catalog:     catalog,
		Completions: services.NewCompletionService(db, referrals),
		Referrals:   referrals,
		Payouts:     payouts,
		Rankings:    services.NewRankingService(db, nil),
		Clock:       clock,
		BotUsername: "lucremais_bot",
	})
	SetupAdminRoutes(app.Group("/admin"), &Admin{
		Accounts: accounts,
		Catalog:  catalog,
		Payouts:  payouts,
		Reports:  services.NewReportService(payouts, nil),
		Clock:    clock,
	})
	return &testEnv{db: db, app: app, accounts: accounts, catalog: catalog}
}

func (e *testEnv) do(t *testing.T, method, path string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	return e.doWithHeaders(t, method, path, payload, nil)
}

func (e *testEnv) doWithHeaders(t *testing.T, method, path string, payload interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (e *testEnv) account(t *testing.T, userID int64) {
	t.Helper()
	_, err := e.accounts.GetOrCreate(context.Background(), userID, fmt.Sprintf("User %d", userID))
	require.NoError(t, err)
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Error
}

func TestCompleteTask_StatusMapping(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, 10)
	task, err := env.catalog.CreateTask(context.Background(), services.CreateTaskInput{
		Title: "Seguir canal", Link: "https://t.me/lucremais", Points: 15,
	})
	require.NoError(t, err)

	path := "/api/tasks/" + task.ID + "/complete"
	resp, _ := env.do(t, "POST", path, fiber.Map{"telegram_id": 10})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, "POST", path, fiber.Map{"telegram_id": 10})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_done", errorCode(t, body))

	resp, body = env.do(t, "POST", "/api/tasks/"+uuid.NewString()+"/complete", fiber.Map{"telegram_id": 10})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "task_not_found", errorCode(t, body))

	resp, _ = env.do(t, "POST", path, fiber.Map{"points": 15})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, "GET", "/api/users/10", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var acc models.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, int64(15), acc.Points)
	assert.Equal(t, int64(1), acc.TasksCompleted)

	resp, body = env.do(t, "GET", "/api/users/10/completions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var done []models.Completion
	require.NoError(t, json.Unmarshal(body, &done))
	require.Len(t, done, 1)
	assert.Equal(t, task.ID, done[0].TaskID)

	resp, _ = env.do(t, "GET", "/api/users/10/completions?day=yesterday", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, "GET", "/api/tasks?telegram_id=10", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var daily []models.DailyTask
	require.NoError(t, json.Unmarshal(body, &daily))
	require.Len(t, daily, 1)
	assert.True(t, daily[0].Done)
}

func TestReferrals_ThrottleIs429(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, 1)
	for i := int64(0); i < 4; i++ {
		env.account(t, 100+i)
	}

	for i := int64(0); i < 3; i++ {
		resp, _ := env.do(t, "POST", "/api/referrals", fiber.Map{"indicated_id": 100 + i, "indicator_id": 1})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
	resp, body := env.do(t, "POST", "/api/referrals", fiber.Map{"indicated_id": 103, "indicator_id": 1})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp, body = env.do(t, "GET", "/api/users/1/referrals", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var refs []models.Referral
	require.NoError(t, json.Unmarshal(body, &refs))
	assert.Len(t, refs, 3)
	assert.Equal(t, "throttle_exceeded", errorCode(t, body))

	resp, body = env.do(t, "POST", "/api/referrals", fiber.Map{"indicated_id": 1, "indicator_id": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "self_referral", errorCode(t, body))
}

func TestPayouts_InsufficientIs422(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, 20)

	resp, body := env.do(t, "POST", "/api/payouts", fiber.Map{"telegram_id": 20, "pix_key": "ana@example.com", "cpf": "529.982.247-25"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_balance", errorCode(t, body))

	resp, body = env.do(t, "POST", "/api/payouts", fiber.Map{"telegram_id": 20, "pix_key": "ana@example.com", "cpf": "111.111.111-11"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_destination", errorCode(t, body))

	require.NoError(t, env.db.Model(&models.Account{}).Where("user_id = ?", 20).Update("points", 450).Error)
	resp, body = env.do(t, "POST", "/api/payouts", fiber.Map{"telegram_id": 20, "pix_key": "ana@example.com", "cpf": "529.982.247-25"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created struct {
		Request        models.PayoutRequest `json:"request"`
		ValueFormatted string               `json:"value_formatted"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, int64(450), created.Request.Points)
	assert.Equal(t, "R$ 22,50", created.ValueFormatted)

	resp, _ = env.do(t, "PATCH", "/admin/payouts/"+created.Request.ID+"/status", fiber.Map{"status": "approved"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, body = env.do(t, "PATCH", "/admin/payouts/"+created.Request.ID+"/status", fiber.Map{"status": "rejected"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "payout_decided", errorCode(t, body))
}

func TestInitDataMismatchIsForbidden(t *testing.T) {
	env := newTestEnv(t, func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalTelegramID, int64(999))
		return c.Next()
	})
	env.account(t, 30)

	resp, body := env.do(t, "GET", "/api/users/30", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, body))

	env.account(t, 999)
	resp, _ = env.do(t, "GET", "/api/users/999", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReferralQR(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, 40)

	resp, body := env.do(t, "GET", "/api/users/40/referral-qr", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, _ = env.do(t, "GET", "/api/users/41/referral-qr", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminExport(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/admin/payouts/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetCellValue("Saques", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)
}

func TestAdminTasks(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/admin/tasks", fiber.Map{"title": "Curtir post", "link": "ftp://nope", "points": 5})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(t, body))

	resp, body = env.do(t, "POST", "/admin/tasks", fiber.Map{"title": "Curtir post", "link": "https://t.me/x/1", "schedule": "Monday", "points": 5})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var task models.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, "monday", task.Schedule)

	resp, _ = env.do(t, "POST", "/admin/tasks/"+task.ID+"/deactivate", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "GET", "/admin/tasks", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var active []models.Task
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Empty(t, active)
}

func TestReferrals_ForwardedForFromUntrustedPeerIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, 1)
	for i := int64(0); i < 4; i++ {
		env.account(t, 100+i)
	}

	codes := []int{}
	for i := int64(0); i < 4; i++ {
		resp, _ := env.doWithHeaders(t, "POST", "/api/referrals",
			fiber.Map{"indicated_id": 100 + i, "indicator_id": 1},
			map[string]string{fiber.HeaderXForwardedFor: fmt.Sprintf("198.51.100.%d", i+1)})
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{201, 201, 201, 429}, codes)
}

func TestAppConfig_TrustedProxy(t *testing.T) {
	app := fiber.New(AppConfig([]string{"0.0.0.0"}))
	app.Get("/ip", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })

	ip := func(xff string) string {
		req := httptest.NewRequest("GET", "/ip", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, xff)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(raw)
	}

	assert.Equal(t, "203.0.113.7", ip("203.0.113.7"))
	assert.Equal(t, "0.0.0.0", ip("not-an-ip"))

	untrusted := fiber.New(AppConfig([]string{"10.0.0.1"}))
	untrusted.Get("/ip", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })
	req := httptest.NewRequest("GET", "/ip", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.7")
	resp, err := untrusted.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", string(raw))
}
