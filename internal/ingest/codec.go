package ingest

import (
	"encoding/json"

	"github.com/tbaderts/oms-sub001/internal/model"
)

// encodeEvent/decodeEvent round-trip an Event through JSON for storage in the
// compressed replay ring. JSON is already the wire format for C7, so reusing
// it here avoids a second serialization scheme for the same shape.
func encodeEvent(e *model.Event) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEvent(raw []byte) (*model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
