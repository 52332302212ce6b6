package classifier

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"road-monitor/internal/domain"
)

// ErrInvalidSample is returned for non-finite vertical acceleration. A NaN
// stored as prev_z would poison every later delta for that user, so bad
// samples are rejected before state is touched.
var ErrInvalidSample = errors.New("non-finite accelerometer sample")

// Thresholds partition the absolute z-delta into road states. Values are
// raw accelerometer units, matched against |z - prev_z|.
type Thresholds struct {
	MinDelta float64
	Bump     float64
	Pothole  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDelta: 2500,
		Bump:     8000,
		Pothole:  16000,
	}
}

type userState struct {
	mu    sync.Mutex
	prevZ float64
	seen  bool
}

// Classifier labels road-surface anomalies from vertical-acceleration
// deltas, keeping one prev_z per user. Entries are created lazily and live
// for the process lifetime; there is no eviction, so state grows with the
// number of distinct users.
type Classifier struct {
	thresholds Thresholds

	mu     sync.Mutex
	states map[int64]*userState
}

func New(t Thresholds) *Classifier {
	return &Classifier{
		thresholds: t,
		states:     make(map[int64]*userState),
	}
}

// Classify returns the road state for the latest z sample of userID and
// records z as the user's new prev_z. Calls for the same user are
// serialized on that user's state; different users never contend beyond
// the map lookup.
func (c *Classifier) Classify(userID int64, z float64) (domain.RoadState, error) {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return "", fmt.Errorf("user %d: z=%v: %w", userID, z, ErrInvalidSample)
	}

	st := c.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	var delta float64
	if st.seen {
		delta = math.Abs(z - st.prevZ)
	}
	st.prevZ = z
	st.seen = true

	switch {
	case delta < c.thresholds.MinDelta:
		return domain.RoadStateNormal, nil
	case delta > c.thresholds.Pothole:
		return domain.RoadStatePothole, nil
	case delta > c.thresholds.Bump:
		return domain.RoadStateBump, nil
	default:
		return domain.RoadStateNormal, nil
	}
}

// Process classifies a raw reading and flattens it into the stored form.
func (c *Classifier) Process(r domain.Reading) (domain.ProcessedRecord, error) {
	state, err := c.Classify(r.UserID, r.Accelerometer.Z)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}
	rec := domain.ProcessedRecord{
		RoadState: state,
		UserID:    r.UserID,
		X:         r.Accelerometer.X,
		Y:         r.Accelerometer.Y,
		Z:         r.Accelerometer.Z,
		Timestamp: r.Timestamp,
	}
	if r.Gps != nil {
		rec.Latitude = r.Gps.Latitude
		rec.Longitude = r.Gps.Longitude
	}
	return rec, nil
}

func (c *Classifier) state(userID int64) *userState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[userID]
	if !ok {
		st = &userState{}
		c.states[userID] = st
	}
	return st
}
