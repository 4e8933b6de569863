// Package app orchestrates the client: session/lock/load phase routing, date
// navigation, and every user-driven mutation of the log store. The remote
// bearer token and the local PIN are two independent gates: the PIN only
// decides what is visible, never whether data syncs.
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/agonv/tapertrack/internal/auth"
	"github.com/agonv/tapertrack/internal/localstore"
	"github.com/agonv/tapertrack/internal/logstore"
	"github.com/agonv/tapertrack/internal/models"
	"github.com/agonv/tapertrack/internal/syncengine"
)

// Phase is the coarse app state that decides which screen renders.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseLoading
	PhaseLocked
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseLoading:
		return "loading"
	case PhaseLocked:
		return "locked"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// View selects which main screen is active once the app is ready.
type View string

const (
	ViewToday   View = "TODAY"
	ViewTaper   View = "TAPER"
	ViewHistory View = "HISTORY"
)

var (
	pinPattern  = regexp.MustCompile(`^\d{4}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ErrLocked is returned by Unlock on a wrong code.
var ErrLocked = errors.New("incorrect code")

// Controller wires the store, sync engine, session manager and local store
// together and owns the phase machine.
type Controller struct {
	store    *logstore.Store
	engine   *syncengine.Engine
	sessions *auth.Manager
	local    *localstore.Store

	mu           sync.Mutex
	phase        Phase
	view         View
	selectedDate string
	settings     models.UserSettings // full local settings, PIN included
}

// New builds a controller. Local settings (and the PIN within them) are
// restored from the local store; absent settings start at the defaults.
func New(store *logstore.Store, engine *syncengine.Engine, sessions *auth.Manager, local *localstore.Store) *Controller {
	settings := models.DefaultSettings()
	if local != nil {
		if loaded, err := local.LoadSettings(); err == nil {
			settings = loaded
		}
	}
	return &Controller{
		store:        store,
		engine:       engine,
		sessions:     sessions,
		local:        local,
		phase:        PhaseUnauthenticated,
		view:         ViewToday,
		selectedDate: models.Today(),
		settings:     settings,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Start resumes a persisted session if one exists: load remote data, then
// land on Ready, or Locked when the local PIN gate is armed. Without a
// session the app stays unauthenticated.
func (c *Controller) Start(ctx context.Context) error {
	if _, ok := c.sessions.Current(); !ok {
		c.setPhase(PhaseUnauthenticated)
		return nil
	}
	return c.loadAndSettle(ctx)
}

// Login authenticates and pulls remote state. Credential rejections come
// back as auth.RejectionError for the UI to display.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if _, err := c.sessions.Acquire(ctx, username, password); err != nil {
		return err
	}
	return c.loadAndSettle(ctx)
}

// Register creates an account and settles like Login. A brand-new user has
// no remote document; the local defaults stand.
func (c *Controller) Register(ctx context.Context, username, password string) error {
	if _, err := c.sessions.Register(ctx, username, password); err != nil {
		return err
	}
	return c.loadAndSettle(ctx)
}

func (c *Controller) loadAndSettle(ctx context.Context) error {
	c.setPhase(PhaseLoading)

	err := c.engine.Load(ctx)
	if errors.Is(err, syncengine.ErrUnauthorized) {
		// The engine already invalidated the session.
		c.setPhase(PhaseUnauthenticated)
		return err
	}
	// A transient load failure is not fatal: local data stays authoritative
	// and the app proceeds.

	c.settle()
	return nil
}

// settle lands on Ready or Locked. The lock decision reads only local
// settings, independent of anything the remote load returned.
func (c *Controller) settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings.IsPinEnabled && c.settings.PinCode != "" {
		c.phase = PhaseLocked
	} else {
		c.phase = PhaseReady
	}
}

// Unlock checks the code against the locally stored PIN. Sync carries on
// regardless; only the view is gated.
func (c *Controller) Unlock(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseLocked {
		return nil
	}
	if code != c.settings.PinCode {
		return ErrLocked
	}
	c.phase = PhaseReady
	return nil
}

// Lock re-arms the PIN gate, if one is configured.
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseReady && c.settings.IsPinEnabled && c.settings.PinCode != "" {
		c.phase = PhaseLocked
	}
}

// Logout invalidates the session and clears the aggregate in memory AND on
// disk. The durable copy must not outlive the session: a different account
// logging in on this device later would otherwise inherit it (and a flush
// would push one user's medical log into another's remote document).
func (c *Controller) Logout() error {
	err := c.sessions.Invalidate()
	if cerr := c.clearLocalData(); cerr != nil && err == nil {
		err = cerr
	}
	c.setPhase(PhaseUnauthenticated)
	return err
}

// HandleUnauthorized is the engine's rejection callback: the session is
// already gone, so clear sensitive entries (memory and disk, same hazard as
// Logout) and route to the authentication screen.
func (c *Controller) HandleUnauthorized() {
	_ = c.clearLocalData()
	c.setPhase(PhaseUnauthenticated)
}

func (c *Controller) clearLocalData() error {
	c.store.Reset()
	if c.local == nil {
		return nil
	}
	return c.local.ClearState()
}

// View returns the active screen.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches the active screen.
func (c *Controller) SetView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// SelectedDate returns the date the UI is focused on.
func (c *Controller) SelectedDate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate
}

// SelectDate focuses a specific date.
func (c *Controller) SelectDate(date string) error {
	if !models.ValidDate(date) {
		return fmt.Errorf("invalid date %q", date)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedDate = date
	return nil
}

// ShiftDate moves the focused date by n days.
func (c *Controller) ShiftDate(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := models.AddDays(c.selectedDate, n)
	if err != nil {
		return err
	}
	c.selectedDate = next
	return nil
}

// Entry returns the entry (persisted or carry-forward projection) for date.
func (c *Controller) Entry(date string) (models.DailyLogEntry, bool) {
	return c.store.Entry(date)
}

// EntriesSince returns persisted entries from the last n days (n<=0 means
// all), in ascending date order.
func (c *Controller) EntriesSince(days int) []models.DailyLogEntry {
	entries := c.store.Entries()
	if days <= 0 {
		return entries
	}
	cutoff, err := models.AddDays(models.Today(), -days)
	if err != nil {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Date >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// SyncStatus surfaces the engine's indicator.
func (c *Controller) SyncStatus() syncengine.Status {
	return c.engine.Status()
}

// Settings returns the full local settings, PIN included.
func (c *Controller) Settings() models.UserSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings replaces the settings wholesale. The full value (PIN
// included) is persisted locally; only the sanitized part enters the
// synchronized aggregate. Disabling the PIN releases an armed lock.
func (c *Controller) UpdateSettings(settings models.UserSettings) error {
	if settings.IsPinEnabled && !pinPattern.MatchString(settings.PinCode) {
		return fmt.Errorf("PIN must be exactly 4 digits")
	}
	if settings.NotificationsEnabled && !timePattern.MatchString(settings.NotificationTime) {
		return fmt.Errorf("reminder time must be HH:MM")
	}
	if !settings.IsPinEnabled {
		settings.PinCode = ""
	}

	c.mu.Lock()
	c.settings = settings
	if !settings.IsPinEnabled && c.phase == PhaseLocked {
		c.phase = PhaseReady
	}
	c.mu.Unlock()

	if c.local != nil {
		if err := c.local.SaveSettings(settings); err != nil {
			return err
		}
	}
	return c.store.ReplaceSettings(settings)
}

// Inventory returns the medication stock record.
func (c *Controller) Inventory() models.Inventory {
	return c.store.Inventory()
}

// SetStock replaces the stock total outright (a recount, not a refill).
func (c *Controller) SetStock(totalMg float64) error {
	if totalMg < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	inv := c.store.Inventory()
	inv.TotalMg = totalMg
	return c.store.ReplaceInventory(inv)
}

// AddStock records a refill: the amount is added to the running total and
// the refill date stamped today.
func (c *Controller) AddStock(amountMg float64) error {
	if amountMg <= 0 {
		return fmt.Errorf("refill amount must be positive")
	}
	inv := c.store.Inventory()
	inv.TotalMg += amountMg
	inv.LastRefillDate = models.Today()
	return c.store.ReplaceInventory(inv)
}

// DaysOfStock estimates remaining supply at today's dose (carry-forward
// applies, so the estimate works on days with no entry yet). The bool is
// false when the dose is zero or unknown and no estimate is possible.
func (c *Controller) DaysOfStock() (int, bool) {
	entry, _ := c.store.Entry(models.Today())
	if entry.LDose <= 0 {
		return 0, false
	}
	return c.store.Inventory().DaysRemaining(entry.LDose), true
}

// ReplaceSchedule swaps the taper plan.
func (c *Controller) ReplaceSchedule(steps []models.TaperStep) error {
	return c.store.ReplaceSchedule(steps)
}

// SetStartDate sets the protocol start date.
func (c *Controller) SetStartDate(date string) error {
	return c.store.SetStartDate(date)
}
