package dashboard

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cucoon/internal/domain/alert"
)

// Snapshot field names inside the Struct, matching the JSON API.
const (
	fieldRevision     = "revision"
	fieldState        = "state"
	fieldConnection   = "connection"
	fieldAlarmPlaying = "alarm_playing"
	fieldChangedAt    = "changed_at"
	fieldLastSource   = "last_source"
)

var errEmptyStruct = errors.New("snapshot struct is empty")

// SnapshotToStruct encodes a snapshot for the wire.
func SnapshotToStruct(snapshot *alert.Snapshot) (*structpb.Struct, error) {
	if snapshot == nil {
		snapshot = new(alert.Snapshot)
	}

	changedAt := ""
	if !snapshot.ChangedAt.IsZero() {
		changedAt = snapshot.ChangedAt.UTC().Format(time.RFC3339Nano)
	}

	result, err := structpb.NewStruct(map[string]any{
		fieldRevision:     snapshot.Revision,
		fieldState:        snapshot.State.String(),
		fieldConnection:   snapshot.Connection.String(),
		fieldAlarmPlaying: snapshot.AlarmPlaying,
		fieldChangedAt:    changedAt,
		fieldLastSource:   string(snapshot.LastSource),
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return result, nil
}

// SnapshotFromStruct decodes a snapshot received from the wire.
func SnapshotFromStruct(s *structpb.Struct) (*alert.Snapshot, error) {
	fields := s.GetFields()
	if len(fields) == 0 {
		return nil, errEmptyStruct
	}

	state, err := alert.ParseState(fields[fieldState].GetStringValue())
	if err != nil {
		return nil, err
	}

	connection, err := alert.ParseConnectionStatus(fields[fieldConnection].GetStringValue())
	if err != nil {
		return nil, err
	}

	snapshot := &alert.Snapshot{
		Revision:     uint64(fields[fieldRevision].GetNumberValue()),
		State:        state,
		Connection:   connection,
		AlarmPlaying: fields[fieldAlarmPlaying].GetBoolValue(),
		LastSource:   alert.Source(fields[fieldLastSource].GetStringValue()),
	}

	if raw := fields[fieldChangedAt].GetStringValue(); raw != "" {
		snapshot.ChangedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldChangedAt, err)
		}
	}

	return snapshot, nil
}
