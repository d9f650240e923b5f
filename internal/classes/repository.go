package classes

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/internal/recordings"
)

// Repository handles class persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a class repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const classColumns = `id, kind, scope, audience, starts_at, ends_at, tags, host,
	conference_room_id, event_room_id, original_event_room_id, modified_event_room_id,
	preserve_history, reserve, created_at`

func scanClass(row pgx.Row) (*models.Class, error) {
	var cl models.Class
	err := row.Scan(&cl.ID, &cl.Kind, &cl.Scope, &cl.Audience,
		&cl.Time.StartsAt, &cl.Time.EndsAt, &cl.Tags, &cl.Host,
		&cl.ConferenceRoomID, &cl.EventRoomID,
		&cl.OriginalEventRoomID, &cl.ModifiedEventRoomID,
		&cl.PreserveHistory, &cl.Reserve, &cl.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// Create inserts a new class.
func (r *Repository) Create(ctx context.Context, cl *models.Class) error {
	const q = `INSERT INTO classes (id, kind, scope, audience, starts_at, ends_at, tags, host,
			conference_room_id, event_room_id, preserve_history, reserve)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, cl.Kind, cl.Scope, cl.Audience,
		cl.Time.StartsAt, cl.Time.EndsAt, cl.Tags, cl.Host,
		cl.ConferenceRoomID, cl.EventRoomID, cl.PreserveHistory, cl.Reserve).
		Scan(&cl.ID, &cl.CreatedAt)
}

// GetByID returns a class by ID and kind.
func (r *Repository) GetByID(ctx context.Context, kind models.ClassKind, id uuid.UUID) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1 AND kind = $2`, id, kind))
}

// GetByScope returns a class by its (audience, scope, kind) key.
func (r *Repository) GetByScope(ctx context.Context, kind models.ClassKind, audience, scope string) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE audience = $1 AND scope = $2 AND kind = $3`,
		audience, scope, kind))
}

// Get returns a class by ID regardless of kind.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
}

// GetByConferenceRoom returns the class owning a conference room. Upload
// notices carry only the room id, so this is the pipeline's entry lookup.
func (r *Repository) GetByConferenceRoom(ctx context.Context, roomID uuid.UUID) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE conference_room_id = $1`, roomID))
}

// GetByEventRoom returns the class owning an event room. Adjustment notices
// identify the class by the room that was adjusted.
func (r *Repository) GetByEventRoom(ctx context.Context, roomID uuid.UUID) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE event_room_id = $1`, roomID))
}

// UpdateTime sets the class schedule.
func (r *Repository) UpdateTime(ctx context.Context, id uuid.UUID, t models.TimeRange) (*models.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`UPDATE classes SET starts_at = $1, ends_at = $2 WHERE id = $3 RETURNING `+classColumns,
		t.StartsAt, t.EndsAt, id))
}

// UpdateReserve sets the class capacity reserve.
func (r *Repository) UpdateReserve(ctx context.Context, id uuid.UUID, reserve *int) error {
	_, err := r.pool.Exec(ctx, `UPDATE classes SET reserve = $1 WHERE id = $2`, reserve, id)
	return err
}

// Recreate points the class at freshly created rooms, resets the adjusted
// room references and drops every recording, all in one transaction.
func (r *Repository) Recreate(ctx context.Context, id, conferenceRoomID, eventRoomID uuid.UUID, t models.TimeRange) (*models.Class, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cl, err := scanClass(tx.QueryRow(ctx,
		`UPDATE classes SET conference_room_id = $1, event_room_id = $2,
			original_event_room_id = NULL, modified_event_room_id = NULL,
			starts_at = $3, ends_at = $4
		 WHERE id = $5 RETURNING `+classColumns,
		conferenceRoomID, eventRoomID, t.StartsAt, t.EndsAt, id))
	if err != nil {
		return nil, err
	}
	if err := recordings.DeleteByClass(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cl, nil
}
