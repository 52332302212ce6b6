package domain

import "time"

type RoadState string

const (
	RoadStateNormal  RoadState = "normal"
	RoadStateBump    RoadState = "bump"
	RoadStatePothole RoadState = "pothole"
)

func (s RoadState) Valid() bool {
	switch s {
	case RoadStateNormal, RoadStateBump, RoadStatePothole:
		return true
	}
	return false
}

type Accelerometer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Gps struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Reading is one raw sensor sample as produced by an agent. Gps is nil
// when the sample carries no fix.
type Reading struct {
	UserID        int64
	Accelerometer Accelerometer
	Gps           *Gps
	Timestamp     time.Time
}

// ProcessedRecord is a classified reading, flattened for storage.
// Latitude/Longitude map from gps.latitude/gps.longitude respectively;
// some historical agents swapped the pair on write, so this mapping is
// pinned down by tests.
type ProcessedRecord struct {
	RoadState RoadState
	UserID    int64
	X         float64
	Y         float64
	Z         float64
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// PersistedRecord is a ProcessedRecord plus its store-assigned id. Ids are
// strictly increasing across the store's lifetime and never reused. This is
// also the wire form for ingest responses and broadcast payloads.
type PersistedRecord struct {
	ID        int64     `json:"id"`
	RoadState RoadState `json:"road_state"`
	UserID    int64     `json:"user_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp Timestamp `json:"timestamp"`
}
