package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"lucremais-task/bot"
	"lucremais-task/config"
	"lucremais-task/database"
	"lucremais-task/handlers"
	"lucremais-task/middleware"
	"lucremais-task/services"
	"lucremais-task/utils"
	"lucremais-task/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	rdb, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal(err)
	}

	// --- Telegram bot (optional) and notification dispatch ---
	var tgBot *bot.Bot
	var sender workers.Sender
	if cfg.BotToken != "" {
		instance, err := bot.NewBot(cfg.BotToken)
		if err != nil {
			log.Fatal(err)
		}
		tgBot = &bot.Bot{
			Instance:   instance,
			Username:   cfg.BotUsername,
			WebAppURL:  cfg.WebAppURL,
			VIPGroupID: cfg.VIPGroupID,
			Rules:      cfg.Rules,
		}
		sender = tgBot
	} else {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set, bot and notifications disabled")
	}
	dispatcher := workers.NewDispatcher(sender, 512)
	dispatcher.Start(ctx, 2)

	// --- Core services ---
	clock := services.NewClock(loc)
	accounts := services.NewAccountService(db)
	catalog := services.NewCatalogService(db)
	referrals := services.NewReferralService(db, cfg.Rules, dispatcher)
	completions := services.NewCompletionService(db, referrals)
	payouts := services.NewPayoutService(db, cfg.Rules, clock, dispatcher)
	rankings := services.NewRankingService(db, rdb)

	var uploader services.Uploader
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		uploader = r2
	}
	reports := services.NewReportService(payouts, uploader)

	var vipChecker services.VIPChecker
	if tgBot != nil && cfg.VIPGroupID != 0 {
		vipChecker = tgBot
	}
	vip := services.NewVIPService(accounts, vipChecker)

	if tgBot != nil {
		tgBot.Accounts = accounts
		tgBot.Referrals = referrals
		tgBot.VIP = vip
		tgBot.Clock = clock
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("[BOT] ❌ %v", err)
			}
		}()
	}

	sched, err := services.StartScheduler(ctx, vip, reports, clock)
	if err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}

	// --- HTTP ---
	app := fiber.New(handlers.AppConfig(cfg.TrustedProxies))
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.InitDataHeader,
		MaxAge:       86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "day": clock.Today()})
	})

	var limiter middleware.Limiter
	if rdb != nil {
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitRPM)
	} else {
		mem := middleware.NewMemoryLimiter(cfg.RateLimitRPM)
		go mem.Cleanup(ctx)
		limiter = mem
	}

	api := app.Group("/api",
		middleware.RateLimitMiddleware(limiter),
		middleware.TelegramInitDataMiddleware(cfg.BotToken, cfg.RequireInitData),
	)
	handlers.SetupAPIRoutes(api, &handlers.API{
		Accounts:    accounts,
		Catalog:     catalog,
		Completions: completions,
		Referrals:   referrals,
		Payouts:     payouts,
		Rankings:    rankings,
		Clock:       clock,
		BotUsername: cfg.BotUsername,
	})

	admin := app.Group("/admin", middleware.AdminAuthMiddleware(cfg.AdminToken))
	handlers.SetupAdminRoutes(admin, &handlers.Admin{
		Accounts: accounts,
		Catalog:  catalog,
		Payouts:  payouts,
		Reports:  reports,
		Clock:    clock,
	})

	app.Static("/", "./public")

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Day boundary: %s (today is %s)", loc, clock.Today())
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	dispatcher.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Println("Bye.")
}
