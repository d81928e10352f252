package main

import (
	"context"
	"errors"
	"net/http"

	"personal-connect/internal/bot"
	"personal-connect/internal/catalog"
	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"
	"personal-connect/internal/service"
	client_service "personal-connect/internal/service/client"
	"personal-connect/internal/web"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Zap()}
		}),
		fx.Provide(
			config.Load,
			newLogger,
			catalog.Default,
			newBackends,
			newClientFactory,
			newHandler,
			web.NewServer,
		),
		fx.Invoke(runServer, runBot),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	log.Info("🚀 Запуск", "environment", cfg.Environment)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Sync()
			return nil
		},
	})
	return log, nil
}

func newClientFactory(b client_service.Backends, log *logger.Logger) service.ClientFactory {
	return client_service.NewClientFactory(b, log)
}

func newHandler(clients service.ClientFactory, c *catalog.Catalog, cfg *config.Config, log *logger.Logger) *web.Handler {
	return web.NewHandler(clients, c, cfg.Auth, log)
}

func runServer(lc fx.Lifecycle, srv *http.Server, h *web.Handler, log *logger.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("HTTP server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			h.Close()
			return err
		},
	})
}

// runBot starts Telegram polling when a token is configured.
func runBot(lc fx.Lifecycle, cfg *config.Config, clients service.ClientFactory, c *catalog.Catalog, log *logger.Logger, shutdowner fx.Shutdowner) error {
	if cfg.Bot.Token == "" {
		log.Info("BOT_TOKEN не задан, Telegram бот отключен")
		return nil
	}

	telegramBot, err := bot.NewBot(cfg.Bot, clients, c, log)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := telegramBot.Start(); err != nil {
					log.Error("❌ Ошибка запуска бота", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			telegramBot.Stop()
			log.Info("👋 Корректное завершение работы")
			return nil
		},
	})
	return nil
}
