package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/wolfman30/whatsapp-test-harness/internal/app/bootstrap"
	appconfig "github.com/wolfman30/whatsapp-test-harness/internal/config"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)
	logger.Info("starting whatsapp sender", "env", cfg.Env, "provider", cfg.WhatsAppProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := bootstrap.RunSender(ctx, cfg, bootstrap.Options{
		Out:     os.Stdout,
		Colored: !color.NoColor,
		Logger:  logger,
	})
	stop()
	os.Exit(code)
}
