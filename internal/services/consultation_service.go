package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
)

// Transition actions accepted by the state machine.
const (
	ActionConfirm = "confirm"
	ActionStart   = "start"
	ActionFinish  = "finish"
	ActionNoShow  = "no_show"
	ActionCancel  = "cancel"
)

const (
	minDurationMin = 15
	maxDurationMin = 120
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// transitionRule is one row of the state machine table: which statuses the
// action may leave, where it lands, and which participant role may invoke
// it. Admins may invoke every action.
type transitionRule struct {
	from        []string
	to          string
	providerMay bool
	clientMay   bool
	event       string
}

var transitionRules = map[string]transitionRule{
	ActionConfirm: {
		from:        []string{models.StatusPending},
		to:          models.StatusConfirmed,
		providerMay: true,
		event:       EventConfirmed,
	},
	ActionStart: {
		from:        []string{models.StatusConfirmed},
		to:          models.StatusInProgress,
		providerMay: true,
		event:       EventStarted,
	},
	ActionFinish: {
		from:        []string{models.StatusInProgress},
		to:          models.StatusCompleted,
		providerMay: true,
		event:       EventCompleted,
	},
	ActionNoShow: {
		from:        []string{models.StatusConfirmed},
		to:          models.StatusNoShow,
		providerMay: true,
		event:       EventNoShow,
	},
	ActionCancel: {
		from:        []string{models.StatusPending, models.StatusConfirmed, models.StatusInProgress},
		to:          models.StatusCancelled,
		providerMay: true,
		clientMay:   true,
		event:       EventCancelled,
	},
}

type ConsultationService struct {
	db               *pgxpool.Pool
	consultationRepo *repository.ConsultationRepository
	scheduleRepo     *repository.ScheduleRepository
	userRepo         userReader
	guard            *SlotGuard
	notifier         Notifier
	maxReschedules   int
}

func NewConsultationService(
	db *pgxpool.Pool,
	consultationRepo *repository.ConsultationRepository,
	scheduleRepo *repository.ScheduleRepository,
	userRepo userReader,
	guard *SlotGuard,
	notifier Notifier,
	maxReschedules int,
) *ConsultationService {
	return &ConsultationService{
		db:               db,
		consultationRepo: consultationRepo,
		scheduleRepo:     scheduleRepo,
		userRepo:         userRepo,
		guard:            guard,
		notifier:         notifier,
		maxReschedules:   maxReschedules,
	}
}

type BookConsultationInput struct {
	ProviderID  int64
	Date        time.Time
	TimeMinute  int
	DurationMin int
	Kind        string
	Mode        string
}

func (s *ConsultationService) Book(
	ctx context.Context,
	clientID int64,
	input BookConsultationInput,
) (*models.Consultation, error) {
	if input.ProviderID <= 0 || clientID == input.ProviderID {
		return nil, ErrInvalidInput
	}
	if input.DurationMin < minDurationMin || input.DurationMin > maxDurationMin {
		return nil, ErrInvalidInput
	}
	if input.TimeMinute < 0 || input.TimeMinute >= 24*60 {
		return nil, ErrInvalidInput
	}
	if slotStart(input.Date, input.TimeMinute).Before(time.Now().UTC().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}

	provider, err := s.userRepo.GetByID(ctx, input.ProviderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if provider.Role != "provider" {
		return nil, ErrInvalidInput
	}

	if err := s.guard.CheckWindow(ctx, input.ProviderID, input.Date, input.TimeMinute, input.DurationMin); err != nil {
		return nil, err
	}

	fee, err := s.scheduleRepo.GetFee(ctx, input.ProviderID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	consultation, err := s.guard.Reserve(ctx, s.consultationRepo, repository.CreateConsultationInput{
		ClientID:      clientID,
		ProviderID:    input.ProviderID,
		ScheduledDate: input.Date,
		ScheduledTime: input.TimeMinute,
		DurationMin:   input.DurationMin,
		Kind:          strings.TrimSpace(input.Kind),
		Mode:          strings.TrimSpace(input.Mode),
		Fee:           fee * float64(input.DurationMin) / 60,
		PaymentStatus: "unpaid",
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, EventBooked, consultation, clientID)
	return consultation, nil
}

func (s *ConsultationService) CheckAvailability(
	ctx context.Context,
	providerID int64,
	date time.Time,
	timeMinute int,
	durationMin int,
) (bool, error) {
	if err := s.guard.CheckWindow(ctx, providerID, date, timeMinute, durationMin); err != nil {
		if errors.Is(err, ErrOutsideAvailability) {
			return false, nil
		}
		return false, err
	}

	held, err := s.consultationRepo.HasActiveSlot(ctx, providerID, date, timeMinute)
	if err != nil {
		return false, err
	}
	return !held, nil
}

// Transition applies one state machine action under optimistic concurrency:
// the compare-and-swap on (status, version) loses against a concurrent actor,
// in which case the fresh record is re-validated once before giving up.
func (s *ConsultationService) Transition(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
	action string,
	reason string,
) (*models.Consultation, error) {
	action, err := normalizeAction(action)
	if err != nil {
		return nil, err
	}
	if action == ActionCancel && strings.TrimSpace(reason) == "" {
		return nil, ErrInvalidInput
	}

	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := authorizeAction(role, actorID, consultation, action); err != nil {
			return nil, err
		}
		rule, err := validateTransition(consultation.Status, action)
		if err != nil {
			return nil, err
		}

		var updated *models.Consultation
		if action == ActionCancel {
			updated, err = s.consultationRepo.Cancel(
				ctx, consultation.ID, consultation.Status, consultation.Version,
				strings.TrimSpace(reason), actorID,
			)
		} else {
			updated, err = s.consultationRepo.UpdateStatusIfCurrent(
				ctx, consultation.ID, consultation.Status, consultation.Version, rule.to,
			)
		}
		if err == nil {
			s.notify(ctx, rule.event, updated, actorID)
			return updated, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		// Lost the per-record race; reload and re-validate from the table.
		consultation, err = s.consultationRepo.GetByID(ctx, consultationID)
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrIllegalTransition
}

// Reschedule moves a pending or confirmed consultation to a new slot. Release
// of the old slot and reservation of the new one commit as a single move.
func (s *ConsultationService) Reschedule(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
	newDate time.Time,
	newTime int,
) (*models.Consultation, error) {
	if newTime < 0 || newTime >= 24*60 {
		return nil, ErrInvalidInput
	}
	if slotStart(newDate, newTime).Before(time.Now().UTC().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}

	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if !isAdmin(role) && !isActingParticipant(role, actorID, consultation) {
			return nil, ErrAccessDenied
		}
		if consultation.Status != models.StatusPending && consultation.Status != models.StatusConfirmed {
			return nil, ErrIllegalTransition
		}
		if sameDay(consultation.ScheduledDate, newDate) && consultation.ScheduledTime == newTime {
			return nil, ErrInvalidInput
		}
		if s.maxReschedules > 0 {
			count, err := s.consultationRepo.CountReschedules(ctx, consultationID)
			if err != nil {
				return nil, err
			}
			if count >= s.maxReschedules {
				return nil, ErrIllegalTransition
			}
		}
		if err := s.guard.CheckWindow(ctx, consultation.ProviderID, newDate, newTime, consultation.DurationMin); err != nil {
			return nil, err
		}

		moved, err := s.moveSlotTx(ctx, consultation, newDate, newTime, actorID)
		if err == nil {
			s.notify(ctx, EventRescheduled, moved, actorID)
			return moved, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		consultation, err = s.consultationRepo.GetByID(ctx, consultationID)
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrIllegalTransition
}

func (s *ConsultationService) moveSlotTx(
	ctx context.Context,
	consultation *models.Consultation,
	newDate time.Time,
	newTime int,
	actorID int64,
) (*models.Consultation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := repository.NewConsultationRepository(tx)
	moved, err := s.guard.Move(ctx, txRepo, consultation, newDate, newTime, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return moved, nil
}

// Rate records the requester's rating. It is not a status transition: it is
// allowed exactly once, only on a completed record, only by the client.
func (s *ConsultationService) Rate(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
	score int,
	text string,
) (*models.Consultation, error) {
	if score < 1 || score > 5 {
		return nil, ErrInvalidInput
	}

	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if role != "client" || consultation.ClientID != actorID {
		return nil, ErrAccessDenied
	}

	rated, err := s.consultationRepo.SetRating(ctx, consultationID, score, strings.TrimSpace(text))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIllegalTransition
		}
		return nil, err
	}

	s.notify(ctx, EventRated, rated, actorID)
	return rated, nil
}

func (s *ConsultationService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	consultationID int64,
) (*models.ConsultationDetail, error) {
	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(role) && !isActingParticipant(role, actorID, consultation) {
		return nil, ErrAccessDenied
	}

	reschedules, err := s.consultationRepo.ListReschedules(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	return &models.ConsultationDetail{
		Consultation: *consultation,
		Reschedules:  reschedules,
	}, nil
}

func (s *ConsultationService) List(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.ConsultationListFilter,
) ([]models.Consultation, error) {
	if role != "client" && role != "provider" {
		return nil, ErrAccessDenied
	}
	return s.consultationRepo.List(ctx, repository.ConsultationListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
}

// notify fans out to both participants except the acting one. Failures are
// the notifier's problem, never the transition's.
func (s *ConsultationService) notify(ctx context.Context, event string, c *models.Consultation, actorID int64) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"consultation_id": c.ID,
		"status":          c.Status,
		"scheduled_date":  c.ScheduledDate.Format("2006-01-02"),
		"scheduled_time":  c.ScheduledTime,
	}
	for _, recipient := range []int64{c.ClientID, c.ProviderID} {
		if recipient != actorID {
			s.notifier.Notify(ctx, event, recipient, payload)
		}
	}
}

func normalizeAction(action string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "confirm", "confirmed":
		return ActionConfirm, nil
	case "start", "in_progress":
		return ActionStart, nil
	case "finish", "complete", "completed":
		return ActionFinish, nil
	case "no_show", "no-show", "noshow":
		return ActionNoShow, nil
	case "cancel", "cancelled", "canceled":
		return ActionCancel, nil
	default:
		return "", ErrInvalidAction
	}
}

// authorizeAction applies the single authorization rule set: only the two
// participants or an admin may act, and a participant only in the roles the
// table grants for that action.
func authorizeAction(role string, actorID int64, c *models.Consultation, action string) error {
	rule, ok := transitionRules[action]
	if !ok {
		return ErrInvalidAction
	}
	if isAdmin(role) {
		return nil
	}
	switch role {
	case "provider":
		if c.ProviderID == actorID && rule.providerMay {
			return nil
		}
	case "client":
		if c.ClientID == actorID && rule.clientMay {
			return nil
		}
	}
	return ErrAccessDenied
}

func validateTransition(status string, action string) (transitionRule, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return transitionRule{}, ErrInvalidAction
	}
	for _, from := range rule.from {
		if status == from {
			return rule, nil
		}
	}
	return transitionRule{}, ErrIllegalTransition
}

func isAdmin(role string) bool {
	return role == "admin"
}

func isActingParticipant(role string, actorID int64, c *models.Consultation) bool {
	switch role {
	case "client":
		return c.ClientID == actorID
	case "provider":
		return c.ProviderID == actorID
	}
	return false
}

func slotStart(date time.Time, minute int) time.Time {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(minute) * time.Minute)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
