package recordings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, class_id, rtc_id, uri, started_at, segments, created_by, adjusted_at, COALESCE(modified_segments, '[]'::jsonb), transcoded_at, created_at`

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.ClassID, &rec.RtcID, &rec.URI, &rec.StartedAt,
		&rec.Segments, &rec.CreatedBy, &rec.AdjustedAt, &rec.ModifiedSegments,
		&rec.TranscodedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertBatch inserts the uploaded tracks for a class. A track already
// present for the same (class_id, rtc_id) is left untouched, so a redelivered
// upload notice never duplicates rows. Returns the stored rows for the class.
func (r *Repository) InsertBatch(ctx context.Context, classID uuid.UUID, recs []models.Recording) ([]models.Recording, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO recordings (id, class_id, rtc_id, uri, started_at, segments, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		ON CONFLICT (class_id, rtc_id) DO NOTHING`
	for _, rec := range recs {
		if _, err := tx.Exec(ctx, q, classID, rec.RtcID, rec.URI, rec.StartedAt, rec.Segments, rec.CreatedBy); err != nil {
			return nil, err
		}
	}
	stored, err := listByClass(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listByClass(ctx context.Context, q querier, classID uuid.UUID) ([]models.Recording, error) {
	rows, err := q.Query(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE class_id = $1 ORDER BY started_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// ListByClass returns all recordings for a class ordered by start time.
func (r *Repository) ListByClass(ctx context.Context, classID uuid.UUID) ([]models.Recording, error) {
	return listByClass(ctx, r.pool, classID)
}

// ApplyMinigroupAdjust commits the adjust result for a minigroup class:
// the class gets its original/modified event rooms, and every recording is
// stamped adjusted with its own segments as the modified set (the merged
// timeline is cut at transcoding time, not here).
func (r *Repository) ApplyMinigroupAdjust(ctx context.Context, classID, originalRoomID, modifiedRoomID uuid.UUID) ([]models.Recording, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE classes SET original_event_room_id = $1, modified_event_room_id = $2 WHERE id = $3`,
		originalRoomID, modifiedRoomID, classID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE recordings SET adjusted_at = NOW(), modified_segments = segments WHERE class_id = $1`,
		classID); err != nil {
		return nil, err
	}
	stored, err := listByClass(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// ApplyStreamAdjust commits the adjust result for a single-stream class
// (webinar, p2p): the class gets its original/modified event rooms and the
// adjusted recording stores the rebuilt segments.
func (r *Repository) ApplyStreamAdjust(ctx context.Context, classID, originalRoomID, modifiedRoomID, rtcID uuid.UUID, modified models.Segments) (*models.Recording, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE classes SET original_event_room_id = $1, modified_event_room_id = $2 WHERE id = $3`,
		originalRoomID, modifiedRoomID, classID); err != nil {
		return nil, err
	}
	rec, err := scanRecording(tx.QueryRow(ctx,
		`UPDATE recordings SET adjusted_at = NOW(), modified_segments = $1
		 WHERE class_id = $2 AND rtc_id = $3
		 RETURNING `+recordingColumns,
		modified, classID, rtcID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkTranscoded stamps every recording of a class as transcoded.
func (r *Repository) MarkTranscoded(ctx context.Context, classID uuid.UUID) (time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx,
		`WITH stamped AS (
			UPDATE recordings SET transcoded_at = NOW() WHERE class_id = $1
			RETURNING transcoded_at
		) SELECT transcoded_at FROM stamped LIMIT 1`,
		classID).Scan(&at)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	return at, err
}

// GetByRtcID returns the recording of a class for one rtc stream.
func (r *Repository) GetByRtcID(ctx context.Context, classID, rtcID uuid.UUID) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE class_id = $1 AND rtc_id = $2`,
		classID, rtcID))
}

// DeleteByClass removes every recording of a class within an existing
// transaction (used when a class is recreated).
func DeleteByClass(ctx context.Context, tx pgx.Tx, classID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM recordings WHERE class_id = $1`, classID)
	return err
}
