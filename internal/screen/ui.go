// Package screen turns fetch results into render-ready view models and maps
// every failure onto exactly one user-facing recovery.
package screen

import (
	"errors"
	"strings"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
)

// Name identifies a navigation target.
type Name string

const (
	Login          Name = "Login"
	Home           Name = "Home"
	VehicleDetails Name = "VehicleDetails"
)

// ErrDiscarded is returned when a result resolved after its view was closed or superseded.
var ErrDiscarded = errors.New("result discarded")

// Navigator is the routing collaborator.
type Navigator interface {
	NavigateTo(screen Name, params any)
}

// Alerter is the alert collaborator.
type Alerter interface {
	Alert(title, message string)
}

// UI is the surface a view model reports intents to.
type UI interface {
	Navigator
	Alerter
}

// Messages holds the user-facing alert texts.
type Messages struct {
	Title               string
	SessionRequired     string
	VehiclesUnavailable string
	HistoryUnavailable  string
	LoginUnavailable    string
	InvalidData         string
}

// PortugueseMessages are the pt-BR alert texts the app ships with.
var PortugueseMessages = Messages{
	Title:               "Erro",
	SessionRequired:     "Token de autenticação não encontrado. Por favor, faça login novamente.",
	VehiclesUnavailable: "Não foi possível carregar os veículos.",
	HistoryUnavailable:  "Não foi possível carregar o histórico do veículo.",
	LoginUnavailable:    "Não foi possível acessar o serviço de login.",
	InvalidData:         "O servidor enviou dados que não puderam ser exibidos.",
}

// DefaultMessages are the English alert texts.
var DefaultMessages = Messages{
	Title:               "Error",
	SessionRequired:     "Authentication token not found. Please log in again.",
	VehiclesUnavailable: "Could not load the vehicles.",
	HistoryUnavailable:  "Could not load the vehicle history.",
	LoginUnavailable:    "Could not reach the login service.",
	InvalidData:         "The server sent data that could not be displayed.",
}

// MessagesFor returns the alert texts for a locale tag such as "pt-BR" or "en".
// Unknown locales get DefaultMessages.
func MessagesFor(locale string) Messages {
	switch strings.ToLower(strings.ReplaceAll(locale, "_", "-")) {
	case "pt", "pt-br":
		return PortugueseMessages
	default:
		return DefaultMessages
	}
}

// Recover reports err to ui and returns the kind it was treated as.
// unavailable is the alert text for service failures in the calling context.
func Recover(ui UI, msgs Messages, unavailable string, err error) apperr.Kind {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindAuthRequired:
		ui.Alert(msgs.Title, msgs.SessionRequired)
		ui.NavigateTo(Login, nil)
	case apperr.KindServiceUnavailable:
		ui.Alert(msgs.Title, unavailable)
	case apperr.KindValidation:
		ui.Alert(msgs.Title, msgs.InvalidData)
	case apperr.KindRejected:
		var rejected *apperr.RejectedError
		if errors.As(err, &rejected) && rejected.Message != "" {
			ui.Alert(msgs.Title, rejected.Message)
		} else {
			ui.Alert(msgs.Title, unavailable)
		}
	case apperr.KindNone, apperr.KindBusy, apperr.KindCanceled:
	}
	return kind
}
