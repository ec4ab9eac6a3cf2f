// Package draft autosaves the wizard so an interrupted session can resume.
package draft

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/manasm11/ralph/internal/wizard"
)

// DefaultDelay is the autosave debounce.
const DefaultDelay = 500 * time.Millisecond

// Store is where drafts live.
type Store interface {
	Save(ctx context.Context, d wizard.DraftState) error
	Load(ctx context.Context) (*wizard.DraftState, error)
	Exists(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// CheckState tracks the startup probe for a resumable draft.
type CheckState int

const (
	CheckPending CheckState = iota
	CheckChecking
	CheckExists
	CheckEmpty
)

func (c CheckState) String() string {
	switch c {
	case CheckChecking:
		return "checking"
	case CheckExists:
		return "exists"
	case CheckEmpty:
		return "empty"
	default:
		return "pending"
	}
}

// Controller debounces draft saves. Only the latest scheduled snapshot is
// written, and a save that fires after being superseded does nothing.
// Storage writes are serialized: SaveNow and Clear wait for an autosave
// already in flight, so it can never land after them.
type Controller struct {
	store  Store
	delay  time.Duration
	logger *slog.Logger

	// saveMu is held across every store write; take it before mu.
	saveMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	check   CheckState
	onError func(error)
}

// NewController returns a controller saving to store after delay. A
// non-positive delay uses DefaultDelay.
func NewController(store Store, delay time.Duration, logger *slog.Logger) *Controller {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{store: store, delay: delay, logger: logger}
}

// OnError sets the callback for failed background saves. It runs on the
// timer goroutine.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// ScheduleSave replaces any pending save with one of d. Drafts in a
// transient step are ignored.
func (c *Controller) ScheduleSave(d wizard.DraftState) {
	if d.Step == nil || wizard.IsTransient(d.Step) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.seq++
	seq := c.seq
	c.timer = time.AfterFunc(c.delay, func() { c.fire(seq, d) })
}

func (c *Controller) fire(seq uint64, d wizard.DraftState) {
	c.saveMu.Lock()
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.saveMu.Unlock()
		return
	}
	c.timer = nil
	onError := c.onError
	c.mu.Unlock()

	err := c.store.Save(context.Background(), d)
	// the callback may block on the UI loop, which may be waiting on saveMu
	c.saveMu.Unlock()
	if err != nil {
		c.logger.Warn("draft autosave failed", "step", d.Step.Name(), "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}
	c.logger.Debug("draft autosaved", "step", d.Step.Name())
}

// SaveNow cancels any pending save and writes d immediately.
func (c *Controller) SaveNow(ctx context.Context, d wizard.DraftState) error {
	c.Cancel()
	if d.Step == nil || wizard.IsTransient(d.Step) {
		return nil
	}
	c.saveMu.Lock()
	err := c.store.Save(ctx, d)
	c.saveMu.Unlock()
	if err != nil {
		c.logger.Warn("draft save failed", "step", d.Step.Name(), "error", err)
		return err
	}
	c.mu.Lock()
	c.check = CheckPending
	c.mu.Unlock()
	return nil
}

// Cancel drops the pending save, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.seq++
}

// Pending reports whether a save is scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Check probes storage for a draft.
func (c *Controller) Check(ctx context.Context) (CheckState, error) {
	c.setCheck(CheckChecking)
	ok, err := c.store.Exists(ctx)
	if err != nil {
		c.setCheck(CheckEmpty)
		return CheckEmpty, err
	}
	state := CheckEmpty
	if ok {
		state = CheckExists
	}
	c.setCheck(state)
	return state, nil
}

// CheckState returns the result of the last probe.
func (c *Controller) CheckState() CheckState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.check
}

func (c *Controller) setCheck(s CheckState) {
	c.mu.Lock()
	c.check = s
	c.mu.Unlock()
}

// Load restores the stored draft into w. It reports false when there is
// nothing to restore.
func (c *Controller) Load(ctx context.Context, w *wizard.Wizard) (bool, error) {
	d, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	c.setCheck(CheckEmpty)
	if d == nil {
		return false, nil
	}
	w.Restore(*d)
	c.logger.Info("draft restored", "step", w.Step().Name())
	return true, nil
}

// Clear drops any pending save and deletes the stored draft.
func (c *Controller) Clear(ctx context.Context) error {
	c.Cancel()
	c.saveMu.Lock()
	err := c.store.Clear(ctx)
	c.saveMu.Unlock()
	if err != nil {
		return err
	}
	c.setCheck(CheckEmpty)
	return nil
}

// ClearAndReset discards the draft and starts w over. The wizard is reset
// even when storage fails.
func (c *Controller) ClearAndReset(ctx context.Context, w *wizard.Wizard) error {
	err := c.Clear(ctx)
	w.Reset()
	c.setCheck(CheckEmpty)
	return err
}
