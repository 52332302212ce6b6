package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"road-monitor/internal/config"
	"road-monitor/internal/domain"
)

// ErrNotFound is returned by the by-id operations when no row matches.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const insertRecordSQL = `
	INSERT INTO processed_agent_data
		(road_state, user_id, x, y, z, latitude, longitude, timestamp)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
`

// InsertBatch persists the batch in input order inside one transaction.
// Ids come from a BIGSERIAL sequence, so they are strictly increasing in
// assignment order. Any failure rolls back the whole attempt; no
// partially-assigned ids are ever observable.
func (s *PostgresStore) InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.PersistedRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	persisted := make([]domain.PersistedRecord, 0, len(records))
	for _, rec := range records {
		var id int64
		err := tx.QueryRow(ctx, insertRecordSQL,
			string(rec.RoadState),
			rec.UserID,
			rec.X,
			rec.Y,
			rec.Z,
			rec.Latitude,
			rec.Longitude,
			rec.Timestamp,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert record for user %d: %w", rec.UserID, err)
		}
		persisted = append(persisted, persistedFrom(id, rec))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch of %d: %w", len(records), err)
	}
	return persisted, nil
}

const selectRecordSQL = `
	SELECT id, road_state, user_id, x, y, z, latitude, longitude, timestamp
	FROM processed_agent_data
`

func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.PersistedRecord, error) {
	row := s.pool.QueryRow(ctx, selectRecordSQL+" WHERE id = $1", id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PersistedRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.PersistedRecord{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.PersistedRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecordSQL+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []domain.PersistedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const updateRecordSQL = `
	UPDATE processed_agent_data
	SET road_state = $1, user_id = $2, x = $3, y = $4, z = $5,
	    latitude = $6, longitude = $7, timestamp = $8
	WHERE id = $9
`

func (s *PostgresStore) Update(ctx context.Context, id int64, rec domain.ProcessedRecord) (domain.PersistedRecord, error) {
	tag, err := s.pool.Exec(ctx, updateRecordSQL,
		string(rec.RoadState),
		rec.UserID,
		rec.X,
		rec.Y,
		rec.Z,
		rec.Latitude,
		rec.Longitude,
		rec.Timestamp,
		id,
	)
	if err != nil {
		return domain.PersistedRecord{}, fmt.Errorf("update record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.PersistedRecord{}, ErrNotFound
	}
	return persistedFrom(id, rec), nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) (domain.PersistedRecord, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM processed_agent_data
		 WHERE id = $1
		 RETURNING id, road_state, user_id, x, y, z, latitude, longitude, timestamp`,
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PersistedRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.PersistedRecord{}, fmt.Errorf("delete record %d: %w", id, err)
	}
	return rec, nil
}

func persistedFrom(id int64, rec domain.ProcessedRecord) domain.PersistedRecord {
	return domain.PersistedRecord{
		ID:        id,
		RoadState: rec.RoadState,
		UserID:    rec.UserID,
		X:         rec.X,
		Y:         rec.Y,
		Z:         rec.Z,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Timestamp: domain.Timestamp{Time: rec.Timestamp},
	}
}

func scanRecord(row pgx.Row) (domain.PersistedRecord, error) {
	var rec domain.PersistedRecord
	var state string
	err := row.Scan(
		&rec.ID,
		&state,
		&rec.UserID,
		&rec.X,
		&rec.Y,
		&rec.Z,
		&rec.Latitude,
		&rec.Longitude,
		&rec.Timestamp.Time,
	)
	if err != nil {
		return rec, err
	}
	rec.RoadState = domain.RoadState(state)
	return rec, nil
}
