package gamedto

import "encoding/json"

// Envelope is the single frame shape exchanged over the websocket.
// Data is left raw so each handler decodes its own payload type.
type Envelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an outbound envelope.
func NewEnvelope(event string, seq int64, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Seq: seq, Data: raw}, nil
}
