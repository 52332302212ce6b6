package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"road-monitor/internal/domain"
)

// Client posts classified batches to a hub's ingest endpoint. It is the
// edge agent's BatchSink; the hub does its own validation and fan-out.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: c}
}

type wireRecord struct {
	RoadState string        `json:"road_state"`
	AgentData wireAgentData `json:"agent_data"`
}

type wireAgentData struct {
	Accelerometer domain.Accelerometer `json:"accelerometer"`
	Gps           domain.Gps           `json:"gps"`
	Timestamp     domain.Timestamp     `json:"timestamp"`
	UserID        int64                `json:"user_id"`
}

func (c *Client) Save(ctx context.Context, records []domain.ProcessedRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload := make([]wireRecord, len(records))
	for i, rec := range records {
		payload[i] = wireRecord{
			RoadState: string(rec.RoadState),
			AgentData: wireAgentData{
				Accelerometer: domain.Accelerometer{X: rec.X, Y: rec.Y, Z: rec.Z},
				Gps:           domain.Gps{Latitude: rec.Latitude, Longitude: rec.Longitude},
				Timestamp:     domain.Timestamp{Time: rec.Timestamp},
				UserID:        rec.UserID,
			},
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/processed_agent_data/")
	if err != nil {
		return fmt.Errorf("post batch of %d: %w", len(records), err)
	}
	if resp.IsError() {
		return fmt.Errorf("store api rejected batch: %s: %s", resp.Status(), resp.Body())
	}
	return nil
}
