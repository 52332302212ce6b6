package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "road_user"),
		dbGetEnv("DB_PASSWORD", "road_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "road_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_records_table(ctx, conn)
	step2_indexes(ctx, conn)
	step3_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

func step1_records_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: processed_agent_data table ──────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS processed_agent_data (

			-- BIGSERIAL: strictly increasing, never reused.
			id         BIGSERIAL PRIMARY KEY,

			-- normal | bump | pothole
			road_state TEXT             NOT NULL,
			user_id    BIGINT           NOT NULL,

			-- Accelerometer sample
			x          DOUBLE PRECISION NOT NULL,
			y          DOUBLE PRECISION NOT NULL,
			z          DOUBLE PRECISION NOT NULL,

			-- GPS fix; zeroes when the sample carried none
			latitude   DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude  DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Sample time as reported by the agent, stored in UTC
			timestamp  TIMESTAMPTZ      NOT NULL
		);
	`, "processed_agent_data table created")
}

func step2_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Indexes ─────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_records_user_time
		ON processed_agent_data (user_id, timestamp DESC);
	`, "user/time index created")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_records_road_state
		ON processed_agent_data (road_state)
		WHERE road_state <> 'normal';
	`, "anomaly partial index created")
}

func step3_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	var count int
	err := conn.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.columns
		 WHERE table_name = 'processed_agent_data'`,
	).Scan(&count)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ processed_agent_data has %d columns\n", count)
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("Failed: %s: %v", label, err)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
