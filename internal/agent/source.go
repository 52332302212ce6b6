package agent

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"road-monitor/internal/domain"
)

// FileSource replays recorded sensor rows as a live stream: one
// accelerometer row (x,y,z) paired with one GPS row (latitude,longitude)
// per tick. Rows that fail to parse (headers, torn lines) are skipped.
// GPS running out before the accelerometer does is fine; remaining
// readings just carry no fix.
type FileSource struct {
	accelerometerPath string
	gpsPath           string
	userID            int64
	sampleDelay       time.Duration
	logger            *zap.Logger
}

func NewFileSource(accelerometerPath, gpsPath string, userID int64, sampleDelay time.Duration, logger *zap.Logger) *FileSource {
	return &FileSource{
		accelerometerPath: accelerometerPath,
		gpsPath:           gpsPath,
		userID:            userID,
		sampleDelay:       sampleDelay,
		logger:            logger,
	}
}

// Run streams readings into out until the accelerometer file is exhausted
// or ctx is cancelled. The caller owns the channel.
func (s *FileSource) Run(ctx context.Context, out chan<- domain.Reading) error {
	accFile, err := os.Open(s.accelerometerPath)
	if err != nil {
		return fmt.Errorf("open accelerometer data: %w", err)
	}
	defer accFile.Close()

	gpsFile, err := os.Open(s.gpsPath)
	if err != nil {
		return fmt.Errorf("open gps data: %w", err)
	}
	defer gpsFile.Close()

	accReader := csv.NewReader(accFile)
	gpsReader := csv.NewReader(gpsFile)
	ticker := time.NewTicker(s.sampleDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		acc, ok := s.nextAccelerometer(accReader)
		if !ok {
			s.logger.Info("accelerometer data exhausted")
			return nil
		}

		reading := domain.Reading{
			UserID:        s.userID,
			Accelerometer: acc,
			Gps:           s.nextGps(gpsReader),
			Timestamp:     time.Now().UTC(),
		}

		select {
		case out <- reading:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *FileSource) nextAccelerometer(r *csv.Reader) (domain.Accelerometer, bool) {
	for {
		row, err := r.Read()
		if err == io.EOF {
			return domain.Accelerometer{}, false
		}
		if err != nil || len(row) < 3 {
			continue
		}
		x, errX := strconv.ParseFloat(row[0], 64)
		y, errY := strconv.ParseFloat(row[1], 64)
		z, errZ := strconv.ParseFloat(row[2], 64)
		if errX != nil || errY != nil || errZ != nil {
			continue
		}
		return domain.Accelerometer{X: x, Y: y, Z: z}, true
	}
}

func (s *FileSource) nextGps(r *csv.Reader) *domain.Gps {
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil || len(row) < 2 {
			continue
		}
		lat, errLat := strconv.ParseFloat(row[0], 64)
		lng, errLng := strconv.ParseFloat(row[1], 64)
		if errLat != nil || errLng != nil {
			continue
		}
		return &domain.Gps{Latitude: lat, Longitude: lng}
	}
}
