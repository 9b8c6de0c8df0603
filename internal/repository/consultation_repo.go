package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

const consultationColumns = `
	id, client_id, provider_id, scheduled_date, scheduled_time, duration_min,
	kind, mode, status, fee, payment_status,
	cancel_reason, cancelled_by, cancelled_at,
	rating_score, rating_text, rated_at,
	version, created_at, updated_at
`

type CreateConsultationInput struct {
	ClientID      int64
	ProviderID    int64
	ScheduledDate time.Time
	ScheduledTime int
	DurationMin   int
	Kind          string
	Mode          string
	Fee           float64
	PaymentStatus string
}

type ConsultationListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type ConsultationRepository struct {
	db DBTX
}

func NewConsultationRepository(db DBTX) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

func scanConsultation(row pgx.Row) (*models.Consultation, error) {
	var c models.Consultation
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.ProviderID,
		&c.ScheduledDate,
		&c.ScheduledTime,
		&c.DurationMin,
		&c.Kind,
		&c.Mode,
		&c.Status,
		&c.Fee,
		&c.PaymentStatus,
		&c.CancelReason,
		&c.CancelledBy,
		&c.CancelledAt,
		&c.RatingScore,
		&c.RatingText,
		&c.RatedAt,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new pending consultation. The partial unique index on
// (provider_id, scheduled_date, scheduled_time) over active statuses makes
// this the atomic reservation: a losing racer gets a unique violation.
func (r *ConsultationRepository) Create(
	ctx context.Context,
	input CreateConsultationInput,
) (*models.Consultation, error) {
	query := fmt.Sprintf(`
		INSERT INTO consultations
			(client_id, provider_id, scheduled_date, scheduled_time, duration_min,
			 kind, mode, status, fee, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9)
		RETURNING %s
	`, consultationColumns)

	return scanConsultation(r.db.QueryRow(
		ctx,
		query,
		input.ClientID,
		input.ProviderID,
		input.ScheduledDate,
		input.ScheduledTime,
		input.DurationMin,
		input.Kind,
		input.Mode,
		input.Fee,
		input.PaymentStatus,
	))
}

func (r *ConsultationRepository) GetByID(ctx context.Context, id int64) (*models.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE id = $1`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id))
}

func (r *ConsultationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Consultation, error) {
	query := fmt.Sprintf(`SELECT %s FROM consultations WHERE id = $1 FOR UPDATE`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id))
}

func (r *ConsultationRepository) List(
	ctx context.Context,
	filter ConsultationListFilter,
) ([]models.Consultation, error) {
	actorColumn := "client_id"
	if filter.Role == "provider" {
		actorColumn = "provider_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_date + (scheduled_time * INTERVAL '1 minute') + (duration_min * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_date + (scheduled_time * INTERVAL '1 minute') + (duration_min * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM consultations
		WHERE %s
		ORDER BY scheduled_date ASC, scheduled_time ASC, id ASC
	`, consultationColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consultations := make([]models.Consultation, 0)
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		consultations = append(consultations, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return consultations, nil
}

// UpdateStatusIfCurrent applies a status transition only if the row still
// carries the expected status and version. pgx.ErrNoRows means another actor
// won the race and the caller must re-validate against the fresh record.
func (r *ConsultationRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id int64,
	currentStatus string,
	version int64,
	nextStatus string,
) (*models.Consultation, error) {
	query := fmt.Sprintf(`
		UPDATE consultations
		SET status = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING %s
	`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id, currentStatus, version, nextStatus))
}

// Cancel flips the record to cancelled and fixes the cancellation info in the
// same write, so reason/actor/timestamp can never be set twice.
func (r *ConsultationRepository) Cancel(
	ctx context.Context,
	id int64,
	currentStatus string,
	version int64,
	reason string,
	actorID int64,
) (*models.Consultation, error) {
	query := fmt.Sprintf(`
		UPDATE consultations
		SET status = 'cancelled',
		    cancel_reason = $4,
		    cancelled_by = $5,
		    cancelled_at = NOW(),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2 AND version = $3 AND cancelled_at IS NULL
		RETURNING %s
	`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id, currentStatus, version, reason, actorID))
}

// MoveSlot relocates an active consultation to a new (date, time) in a single
// UPDATE. The partial unique index keeps the move atomic: the old slot frees
// and the new slot occupies at commit, and a racing reservation on the new
// slot surfaces as a unique violation.
func (r *ConsultationRepository) MoveSlot(
	ctx context.Context,
	id int64,
	version int64,
	newDate time.Time,
	newTime int,
) (*models.Consultation, error) {
	query := fmt.Sprintf(`
		UPDATE consultations
		SET scheduled_date = $3, scheduled_time = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND status IN ('pending', 'confirmed')
		RETURNING %s
	`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id, version, newDate, newTime))
}

func (r *ConsultationRepository) AppendReschedule(
	ctx context.Context,
	entry models.RescheduleEntry,
) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO consultation_reschedules
			(consultation_id, old_date, old_time, new_date, new_time, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ConsultationID,
		entry.OldDate,
		entry.OldTime,
		entry.NewDate,
		entry.NewTime,
		entry.ActorID,
	)
	return err
}

func (r *ConsultationRepository) ListReschedules(
	ctx context.Context,
	consultationID int64,
) ([]models.RescheduleEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, consultation_id, old_date, old_time, new_date, new_time, actor_id, created_at
		FROM consultation_reschedules
		WHERE consultation_id = $1
		ORDER BY id ASC
	`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.RescheduleEntry, 0)
	for rows.Next() {
		var e models.RescheduleEntry
		if err := rows.Scan(
			&e.ID,
			&e.ConsultationID,
			&e.OldDate,
			&e.OldTime,
			&e.NewDate,
			&e.NewTime,
			&e.ActorID,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *ConsultationRepository) CountReschedules(
	ctx context.Context,
	consultationID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM consultation_reschedules WHERE consultation_id = $1
	`, consultationID).Scan(&count)
	return count, err
}

// SetRating writes the rating exactly once: only on a completed record whose
// rating is still unset. pgx.ErrNoRows signals every other case.
func (r *ConsultationRepository) SetRating(
	ctx context.Context,
	id int64,
	score int,
	text string,
) (*models.Consultation, error) {
	query := fmt.Sprintf(`
		UPDATE consultations
		SET rating_score = $2, rating_text = $3, rated_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND rating_score IS NULL
		RETURNING %s
	`, consultationColumns)
	return scanConsultation(r.db.QueryRow(ctx, query, id, score, text))
}

// HasActiveSlot reports whether an active consultation already holds the
// exact (provider, date, time) tuple. This is a read-side convenience; the
// authoritative check is the unique index at write time.
func (r *ConsultationRepository) HasActiveSlot(
	ctx context.Context,
	providerID int64,
	date time.Time,
	timeMinute int,
) (bool, error) {
	var held bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM consultations
			WHERE provider_id = $1
			  AND scheduled_date = $2
			  AND scheduled_time = $3
			  AND status IN ('pending', 'confirmed', 'in_progress')
		)
	`, providerID, date, timeMinute).Scan(&held)
	return held, err
}

// CancelExpiredPending cancels pending consultations created before the
// cutoff and returns their ids. Used by the expiry worker when an expiry
// window is configured.
func (r *ConsultationRepository) CancelExpiredPending(
	ctx context.Context,
	cutoff time.Time,
) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE consultations
		SET status = 'cancelled',
		    cancel_reason = 'pending booking expired',
		    cancelled_at = NOW(),
		    version = version + 1,
		    updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
