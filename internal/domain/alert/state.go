package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State is the two-valued status of the monitored system.
type State int

const (
	// StateSafe means nothing is wrong. It is the initial state.
	StateSafe State = iota
	// StateAlert means a device raised an alert that was not acknowledged yet.
	StateAlert
)

// String returns the upper-case name of the state.
func (s State) String() string {
	switch s {
	case StateSafe:
		return "SAFE"
	case StateAlert:
		return "ALERT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalJSON renders the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a state name written by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseState(name)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ConnectionStatus describes the link to the message broker.
type ConnectionStatus int

const (
	// Disconnected means there is no broker session.
	Disconnected ConnectionStatus = iota
	// Connecting means a connection attempt is in progress.
	Connecting
	// Connected means the broker session is up.
	Connected
)

// String returns the upper-case name of the status.
func (c ConnectionStatus) String() string {
	switch c {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("ConnectionStatus(%d)", int(c))
	}
}

// MarshalJSON renders the status by name.
func (c ConnectionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON reads a status name written by MarshalJSON.
func (c *ConnectionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseConnectionStatus(name)
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// Source names the trigger that produced the last state change.
type Source string

const (
	// SourceNone is used before any trigger has been applied.
	SourceNone Source = ""
	// SourceBroker is an inbound broker message.
	SourceBroker Source = "mqtt"
	// SourceLocalStop is the operator acknowledging the siren.
	SourceLocalStop Source = "local-stop"
	// SourceLocalTest is the operator triggering a test alert.
	SourceLocalTest Source = "local-test"
	// SourceLocalSafe is the operator resetting the dashboard to safe without notifying anyone.
	SourceLocalSafe Source = "local-safe"
)

// Snapshot is the presentation view of the dashboard at one point in time.
type Snapshot struct {
	// Revision increases by one every time the dashboard applies an event.
	Revision uint64 `json:"revision"`
	// State is the current alert state.
	State State `json:"state"`
	// Connection is the current broker connection status.
	Connection ConnectionStatus `json:"connection"`
	// AlarmPlaying reports whether the local siren is audible.
	AlarmPlaying bool `json:"alarm_playing"`
	// ChangedAt is when State last changed. Zero until the first change.
	ChangedAt time.Time `json:"changed_at"`
	// LastSource is the trigger that produced the last state change.
	LastSource Source `json:"last_source"`
}

// Clone returns a copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// ErrUnavailable is returned by dashboard operations while its event loop is not running.
var ErrUnavailable = errors.New("dashboard is not running")

// errUnknownName is returned when parsing an unrecognized enum name.
var errUnknownName = errors.New("unknown name")

// ParseState converts a state name produced by State.String back to a State.
func ParseState(name string) (State, error) {
	switch name {
	case "SAFE":
		return StateSafe, nil
	case "ALERT":
		return StateAlert, nil
	default:
		return StateSafe, fmt.Errorf("state %q: %w", name, errUnknownName)
	}
}

// ParseConnectionStatus converts a status name produced by ConnectionStatus.String back to a status.
func ParseConnectionStatus(name string) (ConnectionStatus, error) {
	switch name {
	case "DISCONNECTED":
		return Disconnected, nil
	case "CONNECTING":
		return Connecting, nil
	case "CONNECTED":
		return Connected, nil
	default:
		return Disconnected, fmt.Errorf("connection status %q: %w", name, errUnknownName)
	}
}
