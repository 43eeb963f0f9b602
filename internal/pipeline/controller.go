package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// ErrInvalidOccupation is returned for occupation codes that are not SOC codes.
var ErrInvalidOccupation = errors.New("invalid occupation code")

// Updater is the part of the Orchestrator the Controller drives. Begin is
// called under the Controller's lock so tickets are issued in selection
// order; Run does the I/O on its own goroutine.
type Updater interface {
	Begin(ctx context.Context, occupation string, salary float64) (Ticket, error)
	Run(t Ticket) error
}

// Controller turns user selection changes into orchestrator updates.
// Occupation changes dispatch immediately; salary changes are debounced so
// typing a number triggers one fetch rather than one per keystroke.
type Controller struct {
	ctx      context.Context
	updater  Updater
	clock    clockwork.Clock
	debounce time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	occupation string
	salary     float64 // last salary that made it past the debounce
	pending    clockwork.Timer
	wg         sync.WaitGroup
}

// NewController creates a Controller seeded with an initial selection.
// Dispatched updates run under ctx and stop when it is cancelled.
func NewController(ctx context.Context, updater Updater, clock clockwork.Clock, debounce time.Duration, occupation string, salary float64, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		ctx:        ctx,
		updater:    updater,
		clock:      clock,
		debounce:   debounce,
		logger:     logger,
		occupation: occupation,
		salary:     salary,
	}
}

// Selection returns the current occupation and debounced salary.
func (c *Controller) Selection() (string, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupation, c.salary
}

// Refresh dispatches the current selection, e.g. once base data is ready.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.occupation == "" {
		return
	}
	c.dispatchLocked()
}

// SetOccupation switches the occupation and dispatches an update at once
// with the last debounced salary. A pending salary change stays pending.
func (c *Controller) SetOccupation(code string) error {
	if !domain.ValidOccupationCode(code) {
		return fmt.Errorf("%w: %q", ErrInvalidOccupation, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.occupation = code
	c.dispatchLocked()
	return nil
}

// SetSalary schedules a salary change. Repeated calls within the debounce
// window collapse into one update carrying the last value.
func (c *Controller) SetSalary(annual float64) error {
	if !domain.ValidSalary(annual) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSalary, annual)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.debounce <= 0 {
		c.salary = annual
		c.dispatchLocked()
		return nil
	}

	var timer clockwork.Timer
	timer = c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending != timer {
			return
		}
		c.pending = nil
		c.salary = annual
		c.dispatchLocked()
	})
	c.pending = timer
	return nil
}

// Wait blocks until every dispatched update has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Stop cancels any pending debounced salary change.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) dispatchLocked() {
	if c.occupation == "" {
		return
	}
	occupation, salary := c.occupation, c.salary

	ticket, err := c.updater.Begin(c.ctx, occupation, salary)
	if err != nil {
		c.report(occupation, salary, err)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.report(occupation, salary, c.updater.Run(ticket))
	}()
}

func (c *Controller) report(occupation string, salary float64, err error) {
	switch {
	case err == nil, errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
	case errors.Is(err, ErrBaseDataNotReady):
		c.logger.Debug("selection deferred until base data is ready", "occupation", occupation)
	default:
		c.logger.Warn("selection update failed", "occupation", occupation, "salary", salary, "error", err)
	}
}
