package alarm

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oshokin/cucoon/internal/audio"
	"github.com/oshokin/cucoon/internal/domain/alert"
)

var (
	errTestBuild = errors.New("test build error")
	errTestPlay  = errors.New("test play error")
	errTestClose = errors.New("test close error")
)

// recordingOutput counts voice starts and can be locked or made to fail.
type recordingOutput struct {
	ready     chan struct{}
	starts    atomic.Int64
	closes    atomic.Int64
	failPlay  atomic.Bool
	failClose atomic.Bool
}

func newRecordingOutput(unlocked bool) *recordingOutput {
	o := &recordingOutput{ready: make(chan struct{})}
	if unlocked {
		close(o.ready)
	}

	return o
}

func (o *recordingOutput) Ready() <-chan struct{} { return o.ready }

func (o *recordingOutput) NewVoice(io.Reader) (audio.Voice, error) {
	return &recordingVoice{output: o}, nil
}

func (o *recordingOutput) Close() error { return nil }

type recordingVoice struct{ output *recordingOutput }

func (v *recordingVoice) Play() error {
	if v.output.failPlay.Load() {
		return errTestPlay
	}

	v.output.starts.Add(1)

	return nil
}

func (v *recordingVoice) Close() error {
	v.output.closes.Add(1)

	if v.output.failClose.Load() {
		return errTestClose
	}

	return nil
}

// countingFactory builds handles on the output and counts builds.
type countingFactory struct {
	output *recordingOutput
	builds atomic.Int64
	fail   atomic.Bool
	mu     sync.Mutex
	last   *audio.Handle
}

func (f *countingFactory) build() (*audio.Handle, error) {
	f.builds.Add(1)

	if f.fail.Load() {
		return nil, errTestBuild
	}

	h, err := audio.NewHandle(f.output, audio.SirenParams{SampleRate: 8000, ToneHz: 800, Gain: 0.1})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.last = h
	f.mu.Unlock()

	return h, nil
}

func newTestController(t *testing.T, output *recordingOutput, opts ...Option) (*Controller, *countingFactory) {
	t.Helper()

	factory := &countingFactory{output: output}

	c, err := NewController(context.Background(), factory.build, opts...)
	require.NoError(t, err)

	return c, factory
}

// TestController_AlertStopCycle covers ALERT → PLAYING, STOP → STOPPED with a rebuilt handle.
func TestController_AlertStopCycle(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		output := newRecordingOutput(true)
		c, factory := newTestController(t, output, WithRebuildDelay(100*time.Millisecond))
		defer c.Close()

		ctx := context.Background()
		first := factory.last

		c.Apply(ctx, alert.StateAlert)
		require.True(t, c.Playing())
		require.EqualValues(t, 1, output.starts.Load())

		// Repeated ALERT never starts the oscillator again.
		c.Apply(ctx, alert.StateAlert)
		require.EqualValues(t, 1, output.starts.Load())

		c.Apply(ctx, alert.StateSafe)
		require.False(t, c.Playing())
		require.True(t, first.Spent())
		require.EqualValues(t, 1, output.closes.Load())

		// Rebuild is asynchronous.
		require.False(t, c.HasHandle())

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		require.True(t, c.HasHandle())
		require.EqualValues(t, 2, factory.builds.Load())
		require.NotSame(t, first, factory.last)

		// Next cycle plays the new handle.
		c.Apply(ctx, alert.StateAlert)
		require.True(t, c.Playing())
		require.EqualValues(t, 2, output.starts.Load())
	})
}

// TestController_SafeWhileStoppedIsNoop verifies no teardown or rebuild without a transition.
func TestController_SafeWhileStoppedIsNoop(t *testing.T) {
	t.Parallel()

	output := newRecordingOutput(true)
	c, factory := newTestController(t, output)
	defer c.Close()

	c.Apply(context.Background(), alert.StateSafe)
	c.Apply(context.Background(), alert.StateSafe)

	require.False(t, c.Playing())
	require.True(t, c.HasHandle())
	require.EqualValues(t, 1, factory.builds.Load())
	require.EqualValues(t, 0, output.closes.Load())
}

// TestController_AlertDuringRebuild tolerates a missing handle and stays silent.
func TestController_AlertDuringRebuild(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		output := newRecordingOutput(true)
		c, factory := newTestController(t, output, WithRebuildDelay(time.Second))
		defer c.Close()

		ctx := context.Background()

		c.Start(ctx)
		c.Stop(ctx)

		// Inside the rebuild window.
		require.NotPanics(t, func() { c.Start(ctx) })
		require.False(t, c.Playing())
		require.EqualValues(t, 1, output.starts.Load())

		time.Sleep(time.Second)
		synctest.Wait()

		// Only one rebuild was in flight.
		require.EqualValues(t, 2, factory.builds.Load())
		require.True(t, c.HasHandle())
		require.False(t, c.Playing())
	})
}

// TestController_LockedOutputStartsLater waits for the output to unlock without blocking.
func TestController_LockedOutputStartsLater(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		output := newRecordingOutput(false)

		var notified atomic.Int64

		c, _ := newTestController(t, output, WithNotify(func() { notified.Add(1) }))
		defer c.Close()

		c.Start(context.Background())
		require.False(t, c.Playing())

		// Pending start is not duplicated by a repeat ALERT.
		c.Start(context.Background())

		close(output.ready)
		synctest.Wait()

		require.True(t, c.Playing())
		require.EqualValues(t, 1, output.starts.Load())
		require.EqualValues(t, 1, notified.Load())
	})
}

// TestController_StopCancelsPendingStart keeps the untouched handle for the next alert.
func TestController_StopCancelsPendingStart(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		output := newRecordingOutput(false)
		c, factory := newTestController(t, output)
		defer c.Close()

		c.Start(context.Background())
		c.Stop(context.Background())

		close(output.ready)
		synctest.Wait()

		require.False(t, c.Playing())
		require.True(t, c.HasHandle())
		require.EqualValues(t, 0, output.starts.Load())
		require.EqualValues(t, 1, factory.builds.Load())
	})
}

// TestController_StartFailureIsRecoverable leaves the siren silent until retried.
func TestController_StartFailureIsRecoverable(t *testing.T) {
	t.Parallel()

	output := newRecordingOutput(true)
	output.failPlay.Store(true)

	c, _ := newTestController(t, output)
	defer c.Close()

	c.Start(context.Background())
	require.False(t, c.Playing())
	require.True(t, c.HasHandle())

	output.failPlay.Store(false)

	c.Start(context.Background())
	require.True(t, c.Playing())
}

// TestController_StopFailureStillRebuilds ensures teardown errors do not block replacement.
func TestController_StopFailureStillRebuilds(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		output := newRecordingOutput(true)
		output.failClose.Store(true)

		c, factory := newTestController(t, output, WithRebuildDelay(10*time.Millisecond))
		defer c.Close()

		c.Start(context.Background())
		c.Stop(context.Background())

		time.Sleep(10 * time.Millisecond)
		synctest.Wait()

		require.False(t, c.Playing())
		require.True(t, c.HasHandle())
		require.EqualValues(t, 2, factory.builds.Load())
	})
}

// TestController_BuildFailureRetriesOnAlert keeps working after a failed build.
func TestController_BuildFailureRetriesOnAlert(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		factory := &countingFactory{output: newRecordingOutput(true)}
		factory.fail.Store(true)

		c, err := NewController(context.Background(), factory.build)
		require.NoError(t, err)

		defer c.Close()

		synctest.Wait()
		require.False(t, c.HasHandle())

		factory.fail.Store(false)

		// ALERT finds no handle, stays silent and kicks a rebuild.
		c.Start(context.Background())
		require.False(t, c.Playing())

		synctest.Wait()
		require.True(t, c.HasHandle())

		c.Start(context.Background())
		require.True(t, c.Playing())
	})
}

// TestController_CloseReleasesEverything verifies no goroutines outlive Close.
func TestController_CloseReleasesEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	output := newRecordingOutput(false)
	c, _ := newTestController(t, output, WithRebuildDelay(time.Hour))

	// One goroutine waits for the output, another for the rebuild timer.
	c.Start(context.Background())
	c.Close()

	output2 := newRecordingOutput(true)
	c2, _ := newTestController(t, output2, WithRebuildDelay(time.Hour))

	c2.Start(context.Background())
	c2.Stop(context.Background())
	c2.Close()

	require.False(t, c2.Playing())

	// Close is idempotent and later calls are ignored.
	c2.Close()
	c2.Start(context.Background())
	require.False(t, c2.Playing())
}

// TestNewController_RequiresFactory rejects a nil factory.
func TestNewController_RequiresFactory(t *testing.T) {
	t.Parallel()

	_, err := NewController(context.Background(), nil)
	require.ErrorIs(t, err, errNoFactory)
}
