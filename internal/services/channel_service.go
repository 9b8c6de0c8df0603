package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

const sendSeqRetries = 3

type consultationReader interface {
	GetByID(ctx context.Context, id int64) (*models.Consultation, error)
}

type messageStore interface {
	Append(ctx context.Context, consultationID, senderID int64, kind, body string, fileRef *string) (*models.ChannelMessage, error)
	GetByID(ctx context.Context, messageID int64) (*models.ChannelMessage, error)
	ListByConsultation(ctx context.Context, consultationID int64, limit, offset int) ([]models.ChannelMessage, int, error)
	MarkRead(ctx context.Context, messageID, readerID int64) (*models.ChannelMessage, error)
	DeleteBySender(ctx context.Context, messageID, senderID int64) (*models.ChannelMessage, error)
}

// ChannelService owns the per-consultation message log and the access rules
// around it. Live fan-out is the hub's job; everything here happens against
// the durable log first.
type ChannelService struct {
	consultationRepo consultationReader
	messageRepo      messageStore
}

func NewChannelService(consultationRepo consultationReader, messageRepo messageStore) *ChannelService {
	return &ChannelService{
		consultationRepo: consultationRepo,
		messageRepo:      messageRepo,
	}
}

type SendInput struct {
	Kind    string
	Body    string
	FileRef *string
}

// Authorize admits a caller to a consultation's channel scope. live=true is
// the join/send path and requires a joinable status; live=false covers
// historical reads, which stay open after cancellation or no-show.
func (s *ChannelService) Authorize(
	ctx context.Context,
	callerID int64,
	role string,
	consultationID int64,
	live bool,
) (*models.Consultation, error) {
	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !isAdmin(role) && !consultation.IsParticipant(callerID) {
		return nil, ErrAccessDenied
	}
	if live && !consultation.Joinable() {
		return nil, ErrAccessDenied
	}
	return consultation, nil
}

// Send appends to the durable log before anyone can observe the message.
// The per-consultation sequence number is assigned by the insert; a seq
// collision with a concurrent sender is retried.
func (s *ChannelService) Send(
	ctx context.Context,
	senderID int64,
	role string,
	consultationID int64,
	input SendInput,
) (*models.ChannelMessage, error) {
	if _, err := s.Authorize(ctx, senderID, role, consultationID, true); err != nil {
		return nil, err
	}

	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = models.MessageKindText
	}
	body := strings.TrimSpace(input.Body)

	switch kind {
	case models.MessageKindText:
		if body == "" {
			return nil, ErrInvalidInput
		}
	case models.MessageKindFile:
		if input.FileRef == nil || strings.TrimSpace(*input.FileRef) == "" {
			return nil, ErrInvalidInput
		}
	default:
		return nil, ErrInvalidInput
	}

	var lastErr error
	for attempt := 0; attempt < sendSeqRetries; attempt++ {
		message, err := s.messageRepo.Append(ctx, consultationID, senderID, kind, body, input.FileRef)
		if err == nil {
			return message, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// MarkRead is idempotent: the reader set grows at most once per reader.
func (s *ChannelService) MarkRead(
	ctx context.Context,
	readerID int64,
	role string,
	messageID int64,
) (*models.ChannelMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.Authorize(ctx, readerID, role, message.ConsultationID, false); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.MarkRead(ctx, messageID, readerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a message from the durable log; only its sender may do so.
func (s *ChannelService) Delete(
	ctx context.Context,
	senderID int64,
	role string,
	messageID int64,
) (*models.ChannelMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if message.SenderID != senderID {
		return nil, ErrAccessDenied
	}

	deleted, err := s.messageRepo.DeleteBySender(ctx, messageID, senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return deleted, nil
}

// History is the reconnect/recovery path: a paginated read of the log,
// independent of the live fan-out.
func (s *ChannelService) History(
	ctx context.Context,
	callerID int64,
	role string,
	consultationID int64,
	page int,
	limit int,
) ([]models.ChannelMessage, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	if _, err := s.Authorize(ctx, callerID, role, consultationID, false); err != nil {
		return nil, 0, err
	}
	return s.messageRepo.ListByConsultation(ctx, consultationID, limit, (page-1)*limit)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
