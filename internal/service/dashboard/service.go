package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/cucoon/internal/broadcast"
	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
	"github.com/oshokin/cucoon/internal/metrics"
)

// Transport publishes control payloads to the broker.
type Transport interface {
	// IsConnected reports whether the broker session is open.
	IsConnected() bool
	// Publish sends payload to topic without waiting for delivery.
	Publish(topic, payload string) error
}

// Siren is the local alarm driven by the alert state.
type Siren interface {
	Apply(ctx context.Context, state alert.State)
	Start(ctx context.Context)
	Stop(ctx context.Context)
	Playing() bool
}

// Settings controls the broker side of local actions.
type Settings struct {
	// ControlTopic receives STOP and TEST_ALERT.
	ControlTopic string
	// PublishTestAlert announces local test alerts on the control topic.
	PublishTestAlert bool
}

// eventQueueSize bounds how many triggers may wait for the loop.
const eventQueueSize = 64

// errNilDependency is returned when a required collaborator is missing.
var errNilDependency = errors.New("transport and siren must be provided")

type eventKind int

const (
	eventMessage eventKind = iota
	eventStopSiren
	eventTestAlert
	eventTestSafe
	eventUnlockAudio
	eventConnection
	eventRefresh
)

// event is one trigger for the loop. reply, when set, receives the resulting snapshot.
type event struct {
	kind    eventKind
	topic   string
	payload []byte
	status  alert.ConnectionStatus
	reply   chan alert.Snapshot
}

// Service is the alert state store and its messaging glue.
type Service struct {
	settings  Settings
	transport Transport
	siren     Siren
	broker    *broadcast.Broker[alert.Snapshot]
	now       func() time.Time

	events  chan event
	stopped chan struct{}
	once    sync.Once

	// mu guards snapshot for readers outside the loop; only the loop writes it.
	mu       sync.RWMutex
	snapshot alert.Snapshot
}

// NewService creates a service in the SAFE state.
func NewService(settings Settings, transport Transport, siren Siren) (*Service, error) {
	if transport == nil || siren == nil {
		return nil, errNilDependency
	}

	if settings.ControlTopic == "" {
		settings.ControlTopic = alert.DefaultControlTopic
	}

	return &Service{
		settings:  settings,
		transport: transport,
		siren:     siren,
		broker:    broadcast.NewBroker[alert.Snapshot](),
		now:       time.Now,
		events:    make(chan event, eventQueueSize),
		stopped:   make(chan struct{}),
	}, nil
}

// Run applies triggers until ctx is cancelled. It must be called once.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "dashboard")

	defer s.once.Do(func() {
		close(s.stopped)
		s.broker.Close()
	})

	logger.Info(ctx, "Dashboard event loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Dashboard event loop stopped")
			return nil
		case ev := <-s.events:
			s.apply(ctx, ev)
		}
	}
}

// HandleMessage queues an inbound broker payload.
func (s *Service) HandleMessage(topic string, payload []byte) {
	s.enqueue(event{kind: eventMessage, topic: topic, payload: append([]byte(nil), payload...)})
}

// SetConnectionStatus queues a broker connection status change.
func (s *Service) SetConnectionStatus(status alert.ConnectionStatus) {
	s.enqueue(event{kind: eventConnection, status: status})
}

// Refresh queues a re-read of the siren state, e.g. after a background start.
func (s *Service) Refresh() {
	s.enqueue(event{kind: eventRefresh})
}

// StopSiren acknowledges the alert: SAFE, siren off, STOP published when connected.
func (s *Service) StopSiren(ctx context.Context) (*alert.Snapshot, error) {
	return s.do(ctx, eventStopSiren)
}

// TriggerTestAlert raises a local test alert and announces it when connected.
func (s *Service) TriggerTestAlert(ctx context.Context) (*alert.Snapshot, error) {
	return s.do(ctx, eventTestAlert)
}

// TriggerTestSafe returns the dashboard to SAFE locally without notifying the broker.
func (s *Service) TriggerTestSafe(ctx context.Context) (*alert.Snapshot, error) {
	return s.do(ctx, eventTestSafe)
}

// UnlockAudio retries a siren start that was blocked, if the dashboard is in ALERT.
func (s *Service) UnlockAudio(ctx context.Context) (*alert.Snapshot, error) {
	return s.do(ctx, eventUnlockAudio)
}

// Snapshot returns the current presentation view.
func (s *Service) Snapshot() *alert.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.Clone()
}

// State returns the current alert state.
func (s *Service) State() alert.State {
	return s.Snapshot().State
}

// Subscribe returns a stream of snapshots published after every applied event.
func (s *Service) Subscribe() *broadcast.Subscription[alert.Snapshot] {
	return s.broker.Subscribe()
}

// enqueue hands an event to the loop, dropping it once the loop has stopped.
func (s *Service) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.stopped:
	}
}

// do submits a local action and waits for the resulting snapshot.
func (s *Service) do(ctx context.Context, kind eventKind) (*alert.Snapshot, error) {
	reply := make(chan alert.Snapshot, 1)

	select {
	case s.events <- event{kind: kind, reply: reply}:
	case <-s.stopped:
		return nil, alert.ErrUnavailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snapshot := <-reply:
		return &snapshot, nil
	case <-s.stopped:
		return nil, alert.ErrUnavailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// apply runs one event on the loop goroutine.
func (s *Service) apply(ctx context.Context, ev event) {
	switch ev.kind {
	case eventMessage:
		if !s.applyMessage(ctx, ev.topic, ev.payload) {
			return
		}
	case eventStopSiren:
		s.setState(ctx, alert.StateSafe, alert.SourceLocalStop)
		s.publish(ctx, alert.PayloadStop)
		s.siren.Stop(ctx)
	case eventTestAlert:
		s.setState(ctx, alert.StateAlert, alert.SourceLocalTest)
		s.siren.Start(ctx)

		if s.settings.PublishTestAlert {
			s.publish(ctx, alert.PayloadTestAlert)
		}
	case eventTestSafe:
		s.setState(ctx, alert.StateSafe, alert.SourceLocalSafe)
		s.siren.Stop(ctx)
	case eventUnlockAudio:
		if s.currentState() == alert.StateAlert {
			s.siren.Start(ctx)
		}
	case eventConnection:
		s.mu.Lock()
		s.snapshot.Connection = ev.status
		s.mu.Unlock()
		logger.InfoKV(ctx, "Broker connection status changed", "status", ev.status.String())
	case eventRefresh:
	}

	snapshot := s.commit()

	if ev.reply != nil {
		ev.reply <- snapshot
	}
}

// applyMessage maps an inbound payload to a trigger. It returns false for ignored payloads.
func (s *Service) applyMessage(ctx context.Context, topic string, payload []byte) bool {
	state, ok := alert.ParsePayload(payload)
	if !ok {
		logger.DebugKV(ctx, "Ignoring unrecognized payload", "topic", topic, "payload", string(payload))
		metrics.IncMessage(string(payload), false)

		return false
	}

	metrics.IncMessage(string(payload), true)

	if s.setState(ctx, state, alert.SourceBroker) {
		s.siren.Apply(ctx, state)
	}

	return true
}

// setState stores the new state and reports whether it changed.
func (s *Service) setState(ctx context.Context, state alert.State, source alert.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.State == state {
		return false
	}

	s.snapshot.State = state
	s.snapshot.ChangedAt = s.now()
	s.snapshot.LastSource = source

	metrics.StateTransitionsTotal.WithLabelValues(state.String(), string(source)).Inc()
	metrics.SetAlertActive(state == alert.StateAlert)
	logger.InfoKV(ctx, "Alert state changed", "state", state.String(), "source", string(source))

	return true
}

func (s *Service) currentState() alert.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.State
}

// publish sends a control payload if the broker session is up.
func (s *Service) publish(ctx context.Context, payload string) {
	if !s.transport.IsConnected() {
		logger.InfoKV(ctx, "Not connected to broker, skipping publish", "payload", payload)
		metrics.IncPublish(payload, metrics.OutcomeDisconnected)

		return
	}

	if err := s.transport.Publish(s.settings.ControlTopic, payload); err != nil {
		logger.ErrorKV(ctx, "Failed to publish", "topic", s.settings.ControlTopic, "payload", payload, "error", err)
	}
}

// commit bumps the revision, refreshes the siren flag and broadcasts the snapshot.
func (s *Service) commit() alert.Snapshot {
	playing := s.siren.Playing()

	s.mu.Lock()
	s.snapshot.Revision++
	s.snapshot.AlarmPlaying = playing
	snapshot := s.snapshot
	s.mu.Unlock()

	s.broker.Publish(snapshot)

	return snapshot
}
