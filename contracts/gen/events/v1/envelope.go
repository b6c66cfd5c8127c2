package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CurrentSchemaVersion is stamped on every envelope produced by this runtime.
const CurrentSchemaVersion = 1

// Envelope is the canonical, versioned event envelope shared by the outbox,
// the relay worker and every broker adapter. Field names are part of the wire
// contract and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

var (
	errMissingEventID   = errors.New("envelope event_id is required")
	errMissingEventType = errors.New("envelope event_type is required")
	errUnknownSchema    = errors.New("envelope schema_version is not supported")
)

// Validate rejects envelopes a consumer could not route or decode.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return errMissingEventID
	}
	if strings.TrimSpace(e.EventType) == "" {
		return errMissingEventType
	}
	if e.SchemaVersion < 1 || e.SchemaVersion > CurrentSchemaVersion {
		return errUnknownSchema
	}
	return nil
}
