package tour

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/umarmf343/PhantomViews/internal/tracing"
)

// Schema creates the tours table. Each blob is its own JSONB column so the
// content store can evolve one blob without rewriting the others.
const Schema = `
CREATE TABLE IF NOT EXISTS tours (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	scenes       JSONB NOT NULL DEFAULT '[]',
	branding     JSONB NOT NULL DEFAULT '{}',
	theme        JSONB NOT NULL DEFAULT '{}',
	expiration   JSONB NOT NULL DEFAULT '{}',
	floor_plans  JSONB NOT NULL DEFAULT '[]',
	audio_tracks JSONB NOT NULL DEFAULT '[]',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens and pings a PostgreSQL connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tours table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	if _, err = r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create tours table: %w", err)
	}
	return nil
}

// Create inserts a new tour, assigning an ID when none is set.
func (r *PostgresRepository) Create(ctx context.Context, t *Tour) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	blobs, err := encodeContent(t.Content().Normalize())
	if err != nil {
		return err
	}

	var updatedAt time.Time
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO tours (id, title, scenes, branding, theme, expiration, floor_plans, audio_tracks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at`,
		t.ID, t.Title, blobs[0], blobs[1], blobs[2], blobs[3], blobs[4], blobs[5],
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tour: %w", err)
	}
	t.UpdatedAt = &updatedAt
	return nil
}

// Get retrieves a tour by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (t *Tour, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var (
		title     string
		updatedAt time.Time
		blobs     [6][]byte
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT title, scenes, branding, theme, expiration, floor_plans, audio_tracks, updated_at
		FROM tours WHERE id = $1`, id,
	).Scan(&title, &blobs[0], &blobs[1], &blobs[2], &blobs[3], &blobs[4], &blobs[5], &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTourNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tour: %w", err)
	}

	c, err := decodeContent(blobs)
	if err != nil {
		return nil, fmt.Errorf("tour %s: %w", id, err)
	}
	t = &Tour{ID: id, Title: title, UpdatedAt: &updatedAt}
	t.Apply(c)
	return t, nil
}

// Exists reports whether a tour with the given ID exists.
func (r *PostgresRepository) Exists(ctx context.Context, id string) (ok bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tours WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check tour: %w", err)
	}
	return ok, nil
}

// SaveContent replaces the six metadata blobs of an existing tour in one statement.
func (r *PostgresRepository) SaveContent(ctx context.Context, id string, c Content) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tours", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	blobs, err := encodeContent(c.Normalize())
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tours
		SET scenes = $2, branding = $3, theme = $4, expiration = $5,
		    floor_plans = $6, audio_tracks = $7, updated_at = now()
		WHERE id = $1`,
		id, blobs[0], blobs[1], blobs[2], blobs[3], blobs[4], blobs[5],
	)
	if err != nil {
		return fmt.Errorf("failed to update tour: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrTourNotFound
	}
	return nil
}

func encodeContent(c Content) ([6][]byte, error) {
	var out [6][]byte
	parts := []any{c.Scenes, c.Branding, c.Theme, c.Expiration, c.FloorPlans, c.AudioTracks}
	for i, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			return out, fmt.Errorf("failed to encode tour blob: %w", err)
		}
		out[i] = b
	}
	return out, nil
}

// decodeContent reads stored blobs leniently: a blob that no longer decodes
// into its type is treated as empty, matching how untyped input is handled.
func decodeContent(blobs [6][]byte) (Content, error) {
	var raw [6]any
	for i, b := range blobs {
		if len(b) == 0 {
			continue
		}
		if err := json.Unmarshal(b, &raw[i]); err != nil {
			return Content{}, fmt.Errorf("failed to decode tour blob: %w", err)
		}
	}
	return ContentFromMap(map[string]any{
		"scenes":      raw[0],
		"branding":    raw[1],
		"theme":       raw[2],
		"expiration":  raw[3],
		"floorPlans":  raw[4],
		"audioTracks": raw[5],
	}), nil
}
