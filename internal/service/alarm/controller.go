package alarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/cucoon/internal/audio"
	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
	"github.com/oshokin/cucoon/internal/metrics"
)

// State is the playback state of the siren.
type State int

const (
	// Stopped means the siren is silent.
	Stopped State = iota
	// Playing means the siren is audible.
	Playing
)

// String returns the upper-case name of the state.
func (s State) String() string {
	if s == Playing {
		return "PLAYING"
	}

	return "STOPPED"
}

// HandleFactory builds a fresh siren handle.
type HandleFactory func() (*audio.Handle, error)

// Option configures the controller.
type Option func(*Controller)

// WithRebuildDelay sets the pause between a stop and building the replacement handle.
func WithRebuildDelay(delay time.Duration) Option {
	return func(c *Controller) {
		if delay >= 0 {
			c.rebuildDelay = delay
		}
	}
}

// WithNotify registers a callback invoked after a background step changed
// what Playing or HasHandle report. It is called without locks held.
func WithNotify(notify func()) Option {
	return func(c *Controller) {
		c.notify = notify
	}
}

// errNoFactory is returned when the controller is built without a handle factory.
var errNoFactory = errors.New("handle factory must be provided")

// Controller drives one siren handle through STOPPED and PLAYING.
// Its methods are meant to be called from a single event loop; the mutex
// guards the handle against the background rebuild and readiness waits.
type Controller struct {
	// ctx carries the logger for background work. It is never used for cancellation.
	ctx          context.Context //nolint:containedctx // Logger scope for goroutines.
	factory      HandleFactory
	rebuildDelay time.Duration
	notify       func()

	mu    sync.Mutex
	state State
	// handle is the siren for the next ALERT; nil while a replacement is being built.
	handle *audio.Handle
	// pending is the handle waiting for the output to unlock before it starts.
	pending    *audio.Handle
	rebuilding bool
	closed     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewController creates a controller and builds its first handle.
// A failed first build is logged and retried in the background.
func NewController(ctx context.Context, factory HandleFactory, opts ...Option) (*Controller, error) {
	if factory == nil {
		return nil, errNoFactory
	}

	c := &Controller{
		ctx:          logger.WithName(context.WithoutCancel(ctx), "alarm"),
		factory:      factory,
		rebuildDelay: 0,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	handle, err := factory()
	if err != nil {
		logger.ErrorKV(c.ctx, "Failed to build alarm handle", "error", err)
		metrics.IncAlarmFailure(metrics.StageRebuild)

		c.mu.Lock()
		c.scheduleRebuildLocked(c.rebuildDelay)
		c.mu.Unlock()

		return c, nil
	}

	c.handle = handle

	return c, nil
}

// Apply moves the siren to match the alert state.
func (c *Controller) Apply(ctx context.Context, state alert.State) {
	if state == alert.StateAlert {
		c.Start(ctx)
		return
	}

	c.Stop(ctx)
}

// Start makes the siren audible unless it already is. When the output is
// still locked the start completes in the background once it unlocks.
// Failures are logged and leave the siren silent.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.state == Playing || c.pending != nil {
		logger.DebugKV(ctx, "Alarm already playing", "pending", c.pending != nil)
		return
	}

	if c.handle == nil {
		logger.Warn(ctx, "Alarm handle is not ready yet, staying silent")
		metrics.IncAlarmFailure(metrics.StageMissing)
		c.scheduleRebuildLocked(0)

		return
	}

	handle := c.handle

	select {
	case <-handle.Ready():
		c.startLocked(ctx, handle)

		return
	default:
	}

	logger.Info(ctx, "Audio output is locked, alarm will start once it unlocks")

	c.pending = handle

	c.wg.Add(1)

	go c.awaitReady(handle)
}

// Stop silences the siren. A playing handle is discarded and a replacement
// is built after the rebuild delay.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		// The pending handle never played, so it stays usable.
		c.pending = nil
		logger.Info(ctx, "Pending alarm start cancelled")
	}

	if c.state != Playing {
		return
	}

	c.state = Stopped
	handle := c.handle
	c.handle = nil

	if err := handle.Stop(); err != nil {
		logger.ErrorKV(ctx, "Failed to stop alarm", "error", err)
		metrics.IncAlarmFailure(metrics.StageStop)
	}

	logger.Info(ctx, "Alarm stopped")

	c.scheduleRebuildLocked(c.rebuildDelay)
}

// State returns the playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Playing reports whether the siren is audible.
func (c *Controller) Playing() bool {
	return c.State() == Playing
}

// HasHandle reports whether a handle is ready for the next start.
func (c *Controller) HasHandle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handle != nil
}

// Close stops the siren and waits for background work to finish.
func (c *Controller) Close() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.pending = nil
	close(c.done)

	if c.handle != nil {
		if err := c.handle.Stop(); err != nil {
			logger.ErrorKV(c.ctx, "Failed to release alarm on close", "error", err)
		}

		c.handle = nil
	}

	c.state = Stopped
	c.mu.Unlock()

	c.wg.Wait()
}

// startLocked starts the handle and records the outcome.
func (c *Controller) startLocked(ctx context.Context, handle *audio.Handle) {
	if err := handle.Start(); err != nil {
		logger.WarnKV(ctx, "Alarm failed to start, staying silent until the next interaction", "error", err)
		metrics.IncAlarmFailure(metrics.StageStart)

		return
	}

	c.state = Playing
	metrics.AlarmStartsTotal.Inc()
	logger.Info(ctx, "Alarm playing")
}

// awaitReady starts handle once its output unlocks, unless the start was cancelled meanwhile.
func (c *Controller) awaitReady(handle *audio.Handle) {
	defer c.wg.Done()

	select {
	case <-handle.Ready():
	case <-c.done:
		return
	}

	c.mu.Lock()

	if c.pending != handle || c.closed {
		c.mu.Unlock()
		return
	}

	c.pending = nil
	c.startLocked(c.ctx, handle)
	c.mu.Unlock()

	c.fireNotify()
}

// scheduleRebuildLocked builds a replacement handle in the background unless one is on its way.
func (c *Controller) scheduleRebuildLocked(delay time.Duration) {
	if c.rebuilding || c.closed {
		return
	}

	c.rebuilding = true

	c.wg.Add(1)

	go c.rebuild(delay)
}

// rebuild waits for delay, builds a handle and installs it.
func (c *Controller) rebuild(delay time.Duration) {
	defer c.wg.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-c.done:
			c.mu.Lock()
			c.rebuilding = false
			c.mu.Unlock()

			return
		}
	}

	handle, err := c.factory()

	c.mu.Lock()
	c.rebuilding = false

	switch {
	case err != nil:
		c.mu.Unlock()
		logger.ErrorKV(c.ctx, "Failed to rebuild alarm handle", "error", err)
		metrics.IncAlarmFailure(metrics.StageRebuild)

		return
	case c.closed || c.handle != nil:
		c.mu.Unlock()
		_ = handle.Stop()

		return
	}

	c.handle = handle
	c.mu.Unlock()

	logger.DebugKV(c.ctx, "Alarm handle rebuilt")
	c.fireNotify()
}

func (c *Controller) fireNotify() {
	if c.notify != nil {
		c.notify()
	}
}
