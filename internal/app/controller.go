package app

import (
	"errors"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/auth"
	"github.com/DIMO-Network/fleet-sync/internal/metrics"
	"github.com/DIMO-Network/fleet-sync/internal/screen"
	"github.com/DIMO-Network/fleet-sync/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Controller serves the view models of the single session held by this process.
type Controller struct {
	logger  *zerolog.Logger
	guard   *session.Guard
	login   *screen.LoginView
	home    *screen.HomeView
	details *screen.DetailsView
}

func NewController(
	logger *zerolog.Logger,
	guard *session.Guard,
	login *screen.LoginView,
	home *screen.HomeView,
	details *screen.DetailsView,
) (*Controller, error) {
	if guard == nil {
		return nil, errors.New("session guard is nil")
	}
	if login == nil || home == nil || details == nil {
		return nil, errors.New("view models are required")
	}
	return &Controller{
		logger:  logger,
		guard:   guard,
		login:   login,
		home:    home,
		details: details,
	}, nil
}

// intents collects the navigation and alert intents raised while serving one request.
type intents struct {
	Navigate *navigation `json:"navigate,omitempty"`
	Alerts   []alertResp `json:"alerts,omitempty"`
}

type navigation struct {
	Screen screen.Name `json:"screen"`
	Params any         `json:"params,omitempty"`
}

type alertResp struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NavigateTo implements screen.Navigator.
func (i *intents) NavigateTo(name screen.Name, params any) {
	i.Navigate = &navigation{Screen: name, Params: params}
}

// Alert implements screen.Alerter.
func (i *intents) Alert(title, message string) {
	i.Alerts = append(i.Alerts, alertResp{Title: title, Message: message})
}

type viewResp struct {
	Data any `json:"data,omitempty"`
	intents
}

type loginResp struct {
	Profile  *session.Profile `json:"profile,omitempty"`
	Greeting *screen.Greeting `json:"greeting,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

type homeResp struct {
	Loaded   bool             `json:"loaded"`
	Greeting *screen.Greeting `json:"greeting,omitempty"`
	Markers  []screen.Marker  `json:"markers"`
}

type vehicleResp struct {
	Vehicle screen.VehicleHeader `json:"vehicle"`
	History []screen.HistoryRow  `json:"history"`
}

// PostLogin submits credentials.
// @Summary Log in
// @Accept json
// @Produce json
// @Router /login [post]
func (c *Controller) PostLogin(ctx *fiber.Ctx) error {
	var creds auth.Credentials
	if err := ctx.BodyParser(&creds); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	resp := viewResp{}
	profile, fields, err := c.login.Submit(ctx.UserContext(), &resp.intents, creds)
	if err != nil {
		c.logFailure(ctx, err)
		if fields != nil {
			resp.Data = loginResp{Fields: fields}
		}
		return ctx.Status(statusFor(err)).JSON(resp)
	}

	greeting, _ := c.home.Greeting()
	resp.Data = loginResp{Profile: profile, Greeting: &greeting}
	return ctx.JSON(resp)
}

// PostLogout ends the session and forgets the fleet shown for it.
// @Summary Log out
// @Produce json
// @Router /logout [post]
func (c *Controller) PostLogout(ctx *fiber.Ctx) error {
	_ = c.guard.ClearSession()
	metrics.SessionActive.Set(0)
	c.home.Reset()
	c.details.Reset()

	resp := viewResp{}
	resp.NavigateTo(screen.Login, nil)
	return ctx.JSON(resp)
}

// GetHome loads the fleet and returns the map markers with the user greeting.
// The last loaded fleet is returned alongside a service failure.
// @Summary Fleet map
// @Produce json
// @Router /home [get]
func (c *Controller) GetHome(ctx *fiber.Ctx) error {
	resp := viewResp{}
	err := c.home.Load(ctx.UserContext(), &resp.intents)
	if err != nil {
		c.logFailure(ctx, err)
	}

	data := homeResp{Loaded: c.home.Loaded(), Markers: c.home.Markers()}
	if greeting, ok := c.home.Greeting(); ok {
		data.Greeting = &greeting
	}
	resp.Data = data
	return ctx.Status(statusFor(err)).JSON(resp)
}

// GetVehicle selects a vehicle of the displayed fleet and returns its detail and history.
// @Summary Vehicle details
// @Produce json
// @Param chassis path string true "Vehicle chassis"
// @Router /vehicles/{chassis} [get]
func (c *Controller) GetVehicle(ctx *fiber.Ctx) error {
	chassis := ctx.Params("chassis")
	vehicle, ok := c.home.Vehicle(chassis)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Vehicle not found")
	}

	resp := viewResp{}
	err := c.details.Select(ctx.UserContext(), &resp.intents, vehicle)
	if err != nil {
		c.logFailure(ctx, err)
	}

	header, _ := c.details.Header()
	resp.Data = vehicleResp{Vehicle: header, History: c.details.Rows()}
	return ctx.Status(statusFor(err)).JSON(resp)
}

func (c *Controller) logFailure(ctx *fiber.Ctx, err error) {
	zerolog.Ctx(ctx.UserContext()).Debug().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("view request failed")
}

// statusFor maps the taxonomy onto HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, screen.ErrDiscarded) {
		return fiber.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindNone:
		return fiber.StatusOK
	case apperr.KindAuthRequired, apperr.KindRejected:
		return fiber.StatusUnauthorized
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindBusy:
		return fiber.StatusConflict
	case apperr.KindCanceled:
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusServiceUnavailable
	}
}
