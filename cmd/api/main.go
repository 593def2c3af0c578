package main

import (
	"flag"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/emandor/mailsift/internal/cache"
	"github.com/emandor/mailsift/internal/config"
	"github.com/emandor/mailsift/internal/db"
	"github.com/emandor/mailsift/internal/export"
	"github.com/emandor/mailsift/internal/harvest"
	"github.com/emandor/mailsift/internal/history"
	"github.com/emandor/mailsift/internal/img"
	"github.com/emandor/mailsift/internal/middleware"
	"github.com/emandor/mailsift/internal/ocr"
	"github.com/emandor/mailsift/internal/telemetry"
	"github.com/emandor/mailsift/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run history migrations and exit")
	flag.Parse()

	cfg := config.Load()
	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))

	var hist history.Recorder = history.Nop{}
	if cfg.DBDSN != "" {
		sqlxDB := db.MustConnect(cfg.DBDSN)
		if *doMigrate {
			db.MustMigrate(sqlxDB)
			log.Println("migrations done")
			return
		}
		hist = history.NewSQLRecorder(sqlxDB)
	} else if *doMigrate {
		log.Fatal("-migrate needs DB_DSN")
	}

	targetDir, err := cfg.ExportDir()
	if err != nil {
		tlog.Fatal().Err(err).Msg("resolve_export_dir_failed")
	}

	engine := buildEngine(cfg)
	if cfg.RedisAddr != "" {
		rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)
		engine = ocr.NewCached(engine, ocr.NewRedisStore(rdb), cfg.OCRCacheTTL)
	}

	recognizer := ocr.NewRecognizer(engine, img.PrepOptions{
		MaxWidth:  cfg.OCRImgMaxW,
		Grayscale: cfg.OCRImgGrayscale,
	})
	svc := harvest.NewService(recognizer, export.NewWriter(), ws.Notifier{}, hist, harvest.Options{
		TargetDir:  targetDir,
		FileName:   cfg.ExportFile,
		BackupName: cfg.ExportBackupFile,
	})
	hh := harvest.NewHandler(svc, hist)

	tlog.Info().
		Str("port", cfg.AppPort).
		Str("engine", engine.Name()).
		Str("target_dir", targetDir).
		Bool("history", cfg.DBDSN != "").
		Msg("booting mailsift")

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.MaxBodyLimit * 1024 * 1024,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders(cfg.AppEnv))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static("/", "./web")

	api := app.Group("/api/v1")
	api.Post("/extractions",
		middleware.RateLimiter(cfg.RateLimitMax),
		middleware.FileUploadValidator(cfg),
		hh.CreateExtraction,
	)
	api.Get("/extractions", hh.ListRuns)

	app.Get("/ws", middleware.WSUpgradeMiddleware(), websocket.New(ws.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}

func buildEngine(cfg *config.Config) ocr.Engine {
	switch cfg.OCREngine {
	case "openai":
		if cfg.OCROpenAIKey == "" {
			log.Fatal("OCR_ENGINE=openai needs OCR_OPENAI_KEY")
		}
		return ocr.NewOpenAIVision(cfg.OCROpenAIKey, cfg.OCROpenAIModel, cfg.OpenAIRPS, cfg.OpenAIBurst)
	default:
		return ocr.NewTesseract(cfg.OCRLang)
	}
}
