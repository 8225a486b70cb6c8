package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"livemenu/internal/app"
	"livemenu/internal/bot"
	"livemenu/internal/config"
	"livemenu/internal/logging"
	"livemenu/internal/metrics"
)

var errTelegramDisabled = errors.New("telegram is not configured: set telegram.bot_token and telegram.admin_chat_ids")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if !cfg.Telegram.Enabled() {
		logger.Error().Msg("Задайте токен бота и admin_chat_ids в config.yaml")
		return errTelegramDisabled
	}
	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	a, err := app.New(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer (func() { _ = a.Close() })()

	if err := a.Menu.Load(ctx); err != nil {
		return fmt.Errorf("load menu: %w", err)
	}

	exportWorker := a.NewExportWorker()
	tg, err := a.InitTelegram()
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}

	adminBot := bot.NewAdminBot(tg, a.Menu, a.Exports, cfg.Telegram.AdminChatIDs, &logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exportWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		updates := tg.Updates(60)
		go func() {
			<-gctx.Done()
			tg.StopReceivingUpdates()
		}()
		logger.Info().Str("bot", tg.Username()).Msg("Бот запущен...")
		adminBot.Start(gctx, updates)
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("Shutdown complete.")
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Database.Driver != "postgres" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
			return err
		}
	}
	if cfg.Exports.Storage.Driver != "s3" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
			return err
		}
	}
	return nil
}
