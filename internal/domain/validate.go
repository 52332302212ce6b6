package domain

import "fmt"

// RawRecord is the untyped ingest wire shape: a road-state label wrapping
// the agent sample it was derived from. Pointer fields distinguish a
// missing key from a zero value.
type RawRecord struct {
	RoadState *string       `json:"road_state"`
	AgentData *RawAgentData `json:"agent_data"`
}

type RawAgentData struct {
	Accelerometer *RawAccelerometer `json:"accelerometer"`
	Gps           *RawGps           `json:"gps"`
	Timestamp     *string           `json:"timestamp"`
	UserID        *int64            `json:"user_id"`
}

type RawAccelerometer struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type RawGps struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ValidationError identifies the first record that failed schema
// validation. The whole batch is rejected; nothing before or after the
// offending record is persisted.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// ValidateBatch checks every record before any of them is persisted and
// returns the typed batch in input order, or the first ValidationError.
func ValidateBatch(raw []RawRecord) ([]ProcessedRecord, error) {
	records := make([]ProcessedRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := validateRecord(i, r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func validateRecord(i int, r RawRecord) (ProcessedRecord, error) {
	var rec ProcessedRecord

	if r.RoadState == nil {
		return rec, &ValidationError{Index: i, Field: "road_state", Reason: "missing"}
	}
	state := RoadState(*r.RoadState)
	if !state.Valid() {
		return rec, &ValidationError{Index: i, Field: "road_state", Reason: fmt.Sprintf("unknown label %q", *r.RoadState)}
	}

	ad := r.AgentData
	if ad == nil {
		return rec, &ValidationError{Index: i, Field: "agent_data", Reason: "missing"}
	}
	if ad.UserID == nil {
		return rec, &ValidationError{Index: i, Field: "agent_data.user_id", Reason: "missing"}
	}
	acc := ad.Accelerometer
	if acc == nil {
		return rec, &ValidationError{Index: i, Field: "agent_data.accelerometer", Reason: "missing"}
	}
	if acc.X == nil || acc.Y == nil || acc.Z == nil {
		return rec, &ValidationError{Index: i, Field: "agent_data.accelerometer", Reason: "x, y and z are all required"}
	}
	if ad.Timestamp == nil {
		return rec, &ValidationError{Index: i, Field: "agent_data.timestamp", Reason: "missing"}
	}
	ts, err := ParseTimestamp(*ad.Timestamp)
	if err != nil {
		return rec, &ValidationError{Index: i, Field: "agent_data.timestamp", Reason: err.Error()}
	}

	rec = ProcessedRecord{
		RoadState: state,
		UserID:    *ad.UserID,
		X:         *acc.X,
		Y:         *acc.Y,
		Z:         *acc.Z,
		Timestamp: ts,
	}
	// GPS is optional; a sample without a fix stores zero coordinates.
	if gps := ad.Gps; gps != nil {
		if gps.Latitude == nil || gps.Longitude == nil {
			return rec, &ValidationError{Index: i, Field: "agent_data.gps", Reason: "latitude and longitude are both required when gps is present"}
		}
		rec.Latitude = *gps.Latitude
		rec.Longitude = *gps.Longitude
	}
	return rec, nil
}
