package screen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/auth"
	"github.com/DIMO-Network/fleet-sync/internal/fleet"
	"github.com/DIMO-Network/fleet-sync/internal/session"
)

// Submitter runs a login.
type Submitter interface {
	Submit(ctx context.Context, creds auth.Credentials) (*session.Profile, error)
}

// VehicleLister fetches the fleet.
type VehicleLister interface {
	FetchAll(ctx context.Context) ([]fleet.Vehicle, error)
}

// HistoryLister fetches one vehicle's history.
type HistoryLister interface {
	FetchHistory(ctx context.Context, vehicleID string) ([]fleet.HistoryEntry, error)
}

// ProfileSource exposes the current profile.
type ProfileSource interface {
	Profile() (session.Profile, bool)
}

// view tracks the lifetime of a view model and the latest request it issued.
type view struct {
	mu     sync.Mutex
	closed bool
	seq    uint64
}

// begin registers a new request and returns its sequence number.
func (v *view) begin() (uint64, error) {
	if v.closed {
		return 0, ErrDiscarded
	}
	v.seq++
	return v.seq, nil
}

// current reports whether the request seq may still be applied. Callers hold mu.
func (v *view) current(ctx context.Context, seq uint64) bool {
	return !v.closed && ctx.Err() == nil && seq == v.seq
}

// Close discards every result that resolves from now on.
func (v *view) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

// LoginView is the login form's view model.
type LoginView struct {
	view
	flow Submitter
	msgs Messages

	inFlight bool
}

// NewLoginView creates a LoginView.
func NewLoginView(flow Submitter, msgs Messages) *LoginView {
	return &LoginView{flow: flow, msgs: msgs}
}

// Submit logs in and navigates to Home on success. Credential errors are returned
// per field and are not alerted; every other failure is recovered through ui.
// A submit made while another is running returns apperr.ErrBusy and leaves the
// running one in charge of the outcome.
func (l *LoginView) Submit(ctx context.Context, ui UI, creds auth.Credentials) (*session.Profile, map[string]string, error) {
	l.mu.Lock()
	if l.inFlight && !l.closed {
		l.mu.Unlock()
		return nil, nil, apperr.ErrBusy
	}
	seq, err := l.begin()
	if err != nil {
		l.mu.Unlock()
		return nil, nil, err
	}
	l.inFlight = true
	l.mu.Unlock()

	profile, err := l.flow.Submit(ctx, creds)

	l.mu.Lock()
	l.inFlight = false
	applied := l.current(ctx, seq)
	l.mu.Unlock()
	if !applied {
		return nil, nil, discarded(ctx)
	}

	if err != nil {
		var verr *apperr.ValidationError
		if errors.As(err, &verr) && verr.Source == "credentials" {
			return nil, verr.FieldMessages(), err
		}
		Recover(ui, l.msgs, l.msgs.LoginUnavailable, err)
		return nil, nil, err
	}
	ui.NavigateTo(Home, nil)
	return profile, nil, nil
}

// HomeView is the fleet map's view model.
type HomeView struct {
	view
	vehicles      VehicleLister
	profiles      ProfileSource
	msgs          Messages
	avatarBaseURL string

	loaded bool
	list   []fleet.Vehicle
}

// NewHomeView creates a HomeView.
func NewHomeView(vehicles VehicleLister, profiles ProfileSource, msgs Messages, avatarBaseURL string) *HomeView {
	return &HomeView{
		vehicles:      vehicles,
		profiles:      profiles,
		msgs:          msgs,
		avatarBaseURL: avatarBaseURL,
	}
}

// Load fetches the fleet. On a service failure the previously loaded fleet stays
// displayed; before the first success nothing is shown. Losing the session clears it.
func (h *HomeView) Load(ctx context.Context, ui UI) error {
	h.mu.Lock()
	seq, err := h.begin()
	h.mu.Unlock()
	if err != nil {
		return err
	}

	vehicles, err := h.vehicles.FetchAll(ctx)

	h.mu.Lock()
	if !h.current(ctx, seq) {
		h.mu.Unlock()
		return discarded(ctx)
	}
	if err == nil {
		h.list = vehicles
		h.loaded = true
		h.mu.Unlock()
		return nil
	}
	if apperr.KindOf(err) == apperr.KindAuthRequired {
		h.list = nil
		h.loaded = false
	}
	h.mu.Unlock()

	Recover(ui, h.msgs, h.msgs.VehiclesUnavailable, err)
	return err
}

// Reset forgets the displayed fleet and discards any load still running.
func (h *HomeView) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.list = nil
	h.loaded = false
}

// Loaded reports whether a fleet has been loaded successfully.
func (h *HomeView) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Markers returns the markers of the displayed fleet.
func (h *HomeView) Markers() []Marker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ToMarkers(h.list)
}

// Vehicle looks up a displayed vehicle by chassis.
func (h *HomeView) Vehicle(chassis string) (fleet.Vehicle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.IndexFunc(h.list, func(v fleet.Vehicle) bool { return v.Chassis == chassis })
	if i < 0 {
		return fleet.Vehicle{}, false
	}
	return h.list[i], true
}

// Greeting returns the avatar block of the signed-in user.
func (h *HomeView) Greeting() (Greeting, bool) {
	profile, ok := h.profiles.Profile()
	if !ok {
		return Greeting{}, false
	}
	return NewGreeting(profile, h.avatarBaseURL), true
}

// DetailsView is the vehicle detail screen's view model.
type DetailsView struct {
	view
	history HistoryLister
	msgs    Messages

	vehicle *fleet.Vehicle
	entries []fleet.HistoryEntry
}

// NewDetailsView creates a DetailsView.
func NewDetailsView(history HistoryLister, msgs Messages) *DetailsView {
	return &DetailsView{history: history, msgs: msgs}
}

// Select shows vehicle and fetches its history. Selecting a different vehicle
// drops the previous history at once; re-selecting the same vehicle keeps it
// displayed until the refresh succeeds. A response for an older selection is discarded.
func (d *DetailsView) Select(ctx context.Context, ui UI, vehicle fleet.Vehicle) error {
	d.mu.Lock()
	seq, err := d.begin()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if d.vehicle == nil || d.vehicle.Chassis != vehicle.Chassis {
		d.entries = nil
	}
	d.vehicle = &vehicle
	d.mu.Unlock()

	entries, err := d.history.FetchHistory(ctx, vehicle.Chassis)

	d.mu.Lock()
	if !d.current(ctx, seq) {
		d.mu.Unlock()
		return discarded(ctx)
	}
	if err == nil {
		d.entries = entries
		d.mu.Unlock()
		return nil
	}
	if apperr.KindOf(err) == apperr.KindAuthRequired {
		d.entries = nil
	}
	d.mu.Unlock()

	Recover(ui, d.msgs, d.msgs.HistoryUnavailable, err)
	return err
}

// Reset forgets the selected vehicle and its history and discards any fetch still running.
func (d *DetailsView) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.vehicle = nil
	d.entries = nil
}

// Header returns the detail panel of the selected vehicle.
func (d *DetailsView) Header() (VehicleHeader, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vehicle == nil {
		return VehicleHeader{}, false
	}
	return ToHeader(*d.vehicle), true
}

// Rows returns the history rows of the selected vehicle.
func (d *DetailsView) Rows() []HistoryRow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ToHistoryRows(d.entries)
}

func discarded(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDiscarded, err)
	}
	return ErrDiscarded
}
