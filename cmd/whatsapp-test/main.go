package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/wolfman30/whatsapp-test-harness/cmd/mainconfig"
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
	logger.Info("starting whatsapp message test",
		"env", cfg.Env,
		"provider", cfg.WhatsAppProvider,
		"listen_addr", cfg.ListenAddr,
	)

	// SIGINT/SIGTERM stop sending; results are still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := bootstrap.Options{
		Out:     os.Stdout,
		Colored: !color.NoColor,
		Logger:  logger,
	}
	if store := mainconfig.ResultArchive(ctx, cfg, logger); store != nil {
		opts.Sink = store
	}

	code := bootstrap.RunTest(ctx, cfg, opts)
	stop()
	os.Exit(code)
}
