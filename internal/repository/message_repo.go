package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

const messageColumns = `
	id, consultation_id, seq, sender_id, kind, body, file_ref, read_by, created_at
`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*models.ChannelMessage, error) {
	var m models.ChannelMessage
	err := row.Scan(
		&m.ID,
		&m.ConsultationID,
		&m.Seq,
		&m.SenderID,
		&m.Kind,
		&m.Body,
		&m.FileRef,
		&m.ReadBy,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if m.ReadBy == nil {
		m.ReadBy = []int64{}
	}
	return &m, nil
}

// Append durably adds a message to the consultation's log and assigns the
// next per-consultation sequence number. The unique index on
// (consultation_id, seq) turns two racing appends into one winner and one
// unique violation, which the caller retries.
func (r *MessageRepository) Append(
	ctx context.Context,
	consultationID int64,
	senderID int64,
	kind string,
	body string,
	fileRef *string,
) (*models.ChannelMessage, error) {
	query := `
		INSERT INTO channel_messages (consultation_id, seq, sender_id, kind, body, file_ref, read_by)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, '{}'
		FROM channel_messages
		WHERE consultation_id = $1
		RETURNING` + messageColumns

	return scanMessage(r.db.QueryRow(ctx, query, consultationID, senderID, kind, body, fileRef))
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID int64) (*models.ChannelMessage, error) {
	query := `SELECT` + messageColumns + `FROM channel_messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, messageID))
}

// ListByConsultation returns one history page, newest first, plus the total
// message count for pagination metadata.
func (r *MessageRepository) ListByConsultation(
	ctx context.Context,
	consultationID int64,
	limit int,
	offset int,
) ([]models.ChannelMessage, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM channel_messages WHERE consultation_id = $1
	`, consultationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT` + messageColumns + `
		FROM channel_messages
		WHERE consultation_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, consultationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.ChannelMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkRead adds the reader to the message's reader set. Marking an
// already-read message is a no-op that returns the unchanged row.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	messageID int64,
	readerID int64,
) (*models.ChannelMessage, error) {
	query := `
		UPDATE channel_messages
		SET read_by = array_append(read_by, $2)
		WHERE id = $1 AND NOT ($2 = ANY(read_by))
		RETURNING` + messageColumns

	message, err := scanMessage(r.db.QueryRow(ctx, query, messageID, readerID))
	if err == nil {
		return message, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Either already read or the message does not exist.
	return r.GetByID(ctx, messageID)
}

// DeleteBySender removes a message from the durable log, but only for its
// original sender. pgx.ErrNoRows covers both a missing message and a
// non-sender caller.
func (r *MessageRepository) DeleteBySender(
	ctx context.Context,
	messageID int64,
	senderID int64,
) (*models.ChannelMessage, error) {
	query := `
		DELETE FROM channel_messages
		WHERE id = $1 AND sender_id = $2
		RETURNING` + messageColumns

	return scanMessage(r.db.QueryRow(ctx, query, messageID, senderID))
}
