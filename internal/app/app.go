package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/DIMO-Network/fleet-sync/internal/auth"
	"github.com/DIMO-Network/fleet-sync/internal/client/identity"
	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/DIMO-Network/fleet-sync/internal/client/telemetry"
	"github.com/DIMO-Network/fleet-sync/internal/config"
	"github.com/DIMO-Network/fleet-sync/internal/fleet"
	"github.com/DIMO-Network/fleet-sync/internal/screen"
	"github.com/DIMO-Network/fleet-sync/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

const requestIDHeader = "X-Request-Id"

// CreateWebServer wires the fleet API clients, the session and the view models into a fiber app.
func CreateWebServer(logger *zerolog.Logger, settings *config.Settings) (*fiber.App, error) {
	httpClient := &http.Client{Timeout: settings.RequestTimeout}

	ctrl, err := setupController(logger, settings, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to setup controller: %w", err)
	}
	return createApp(logger, ctrl), nil
}

// CreateMonitoringServer serves prometheus metrics.
func CreateMonitoringServer() *fiber.App {
	monApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	monApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	return monApp
}

func createApp(logger *zerolog.Logger, ctrl *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrorHandler(c, err, logger)
		},
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		Next:              nil,
		EnableStackTrace:  true,
		StackTraceHandler: nil,
	}))

	app.Use(func(c *fiber.Ctx) error {
		requestID := ksuid.New().String()
		c.Set(requestIDHeader, requestID)
		userCtx := logger.With().Str("httpPath", strings.TrimPrefix(c.Path(), "/")).
			Str("httpMethod", c.Method()).
			Str("requestId", requestID).Logger().WithContext(c.UserContext())
		c.SetUserContext(userCtx)
		return c.Next()
	})

	app.Get("/", HealthCheck)
	app.Post("/login", ctrl.PostLogin)
	app.Post("/logout", ctrl.PostLogout)
	app.Get("/home", ctrl.GetHome)
	app.Get("/vehicles/:chassis", ctrl.GetVehicle)
	return app
}

// HealthCheck shows the status of the server.
func HealthCheck(ctx *fiber.Ctx) error {
	res := map[string]any{
		"data": "Server is up and running",
	}

	return ctx.JSON(res)
}

// ErrorHandler custom handler to log recovered errors using our logger and return json instead of string.
func ErrorHandler(ctx *fiber.Ctx, err error, logger *zerolog.Logger) error {
	code := fiber.StatusInternalServerError // Default 500 statuscode
	message := "Internal error."

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// don't log not found errors
	if code != fiber.StatusNotFound {
		logger.Err(err).Int("httpStatusCode", code).
			Str("httpPath", strings.TrimPrefix(ctx.Path(), "/")).
			Str("httpMethod", ctx.Method()).
			Msg("caught an error from http request")
	}

	return ctx.Status(code).JSON(codeResp{Code: code, Message: message})
}

type codeResp struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// setupController creates and configures all the clients needed for the controller.
func setupController(logger *zerolog.Logger, settings *config.Settings, httpClient *http.Client) (*Controller, error) {
	restClient, err := rest.NewClient(settings.APIBaseURL, httpClient, rest.RetryPolicy{
		MaxRetries:      settings.RetryMaxRetries,
		InitialInterval: settings.RetryInitialInterval,
	}, logger.With().Str("component", "rest").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	identityClient, err := identity.NewClient(restClient)
	if err != nil {
		return nil, err
	}
	telemetryClient, err := telemetry.NewClient(restClient)
	if err != nil {
		return nil, err
	}

	guard := session.NewGuard()

	flow, err := auth.NewFlow(identityClient, guard, logger.With().Str("component", "auth").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create auth flow: %w", err)
	}
	vehicleFetcher, err := fleet.NewVehicleFetcher(guard, telemetryClient, logger.With().Str("component", "fleet").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle fetcher: %w", err)
	}
	historyFetcher, err := fleet.NewHistoryFetcher(guard, telemetryClient, logger.With().Str("component", "history").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create history fetcher: %w", err)
	}

	msgs := screen.MessagesFor(settings.Locale)
	return NewController(
		logger,
		guard,
		screen.NewLoginView(flow, msgs),
		screen.NewHomeView(vehicleFetcher, guard, msgs, settings.AvatarBaseURL),
		screen.NewDetailsView(historyFetcher, msgs),
	)
}
