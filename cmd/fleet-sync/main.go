package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/DIMO-Network/fleet-sync/internal/app"
	"github.com/DIMO-Network/fleet-sync/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const appName = "fleet-sync"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	group, gCtx := errgroup.WithContext(ctx)

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", appName).Logger()

	settings, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse environment variables.")
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Invalid log level %q.", settings.LogLevel)
	}
	zerolog.SetGlobalLevel(level)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("Received signal, shutting down...")
	}()

	webApp, err := app.CreateWebServer(&logger, &settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't create web server.")
	}
	monApp := app.CreateMonitoringServer()

	logger.Info().Int("port", settings.Port).Int("monPort", settings.MonPort).Msg("Starting servers")
	RunFiber(gCtx, webApp, ":"+strconv.Itoa(settings.Port), group)
	RunFiber(gCtx, monApp, ":"+strconv.Itoa(settings.MonPort), group)

	err = group.Wait()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to run servers.")
	}
}

// RunFiber runs a fiber server on addr until ctx is done.
func RunFiber(ctx context.Context, fiberApp *fiber.App, addr string, group *errgroup.Group) {
	group.Go(func() error {
		if err := fiberApp.Listen(addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		if err := fiberApp.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})
}
