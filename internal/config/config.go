package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Classifier thresholds (raw accelerometer units)
	ClassifierMinDelta         float64
	ClassifierBumpThreshold    float64
	ClassifierPotholeThreshold float64

	// Fan-out
	BroadcastSendTimeout time.Duration

	// Agent-side batching
	BatchSize       int
	BatchFlushMS    int
	ReadingChanSize int

	// Edge agent
	HubURL             string
	AgentUserID        int64
	AccelerometerCSV   string
	GpsCSV             string
	AgentSampleDelayMS int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
	AgentAPIKey         string
}

func Load() *Config {
	return &Config{
		HTTPPort:                   getEnv("HTTP_PORT", "8000"),
		DBHost:                     getEnv("DB_HOST", "localhost"),
		DBPort:                     getEnv("DB_PORT", "5432"),
		DBUser:                     getEnv("DB_USER", "road_user"),
		DBPassword:                 getEnv("DB_PASSWORD", "road_password"),
		DBName:                     getEnv("DB_NAME", "road_monitor"),
		DBMaxConns:                 int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:                  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:              getEnv("REDIS_PASSWORD", ""),
		RedisDB:                    getEnvInt("REDIS_DB", 0),
		ClassifierMinDelta:         getEnvFloat("CLASSIFIER_MIN_DELTA", 2500),
		ClassifierBumpThreshold:    getEnvFloat("CLASSIFIER_BUMP_THRESHOLD", 8000),
		ClassifierPotholeThreshold: getEnvFloat("CLASSIFIER_POTHOLE_THRESHOLD", 16000),
		BroadcastSendTimeout:       time.Duration(getEnvInt("BROADCAST_SEND_TIMEOUT_MS", 2000)) * time.Millisecond,
		BatchSize:                  getEnvInt("BATCH_SIZE", 25),
		BatchFlushMS:               getEnvInt("BATCH_FLUSH_INTERVAL_MS", 1000),
		ReadingChanSize:            getEnvInt("READING_CHANNEL_SIZE", 1000),
		HubURL:                     getEnv("HUB_URL", "http://localhost:8000"),
		AgentUserID:                int64(getEnvInt("AGENT_USER_ID", 1)),
		AccelerometerCSV:           getEnv("ACCELEROMETER_CSV", "data/accelerometer.csv"),
		GpsCSV:                     getEnv("GPS_CSV", "data/gps.csv"),
		AgentSampleDelayMS:         getEnvInt("AGENT_SAMPLE_DELAY_MS", 100),
		AuthCacheTTLSeconds:        getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:               splitKeys(getEnv("VALID_API_KEYS", "")),
		AgentAPIKey:                getEnv("AGENT_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
