package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/redislock"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
)

const activeSlotIndex = "uq_consultations_active_slot"

type scheduleReader interface {
	ListWindows(ctx context.Context, providerID int64) ([]models.ScheduleWindow, error)
}

// SlotGuard is the only write path for slot occupancy. Reserve and Move go
// through the partial unique index on (provider_id, scheduled_date,
// scheduled_time); release is the status flip out of the active set, which
// stops the index from covering the row at commit.
type SlotGuard struct {
	scheduleRepo scheduleReader
	locker       redislock.Locker
}

func NewSlotGuard(scheduleRepo scheduleReader, locker redislock.Locker) *SlotGuard {
	if locker == nil {
		locker = redislock.NewNoopLocker()
	}
	return &SlotGuard{
		scheduleRepo: scheduleRepo,
		locker:       locker,
	}
}

// CheckWindow is the cheap pre-filter: the requested time must fall inside an
// open window of the provider's weekly template. It never substitutes for the
// atomic reservation.
func (g *SlotGuard) CheckWindow(
	ctx context.Context,
	providerID int64,
	date time.Time,
	startMinute int,
	durationMin int,
) error {
	windows, err := g.scheduleRepo.ListWindows(ctx, providerID)
	if err != nil {
		return err
	}
	if !windowCovers(windows, date.Weekday(), startMinute, durationMin) {
		return ErrOutsideAvailability
	}
	return nil
}

func windowCovers(
	windows []models.ScheduleWindow,
	day time.Weekday,
	startMinute int,
	durationMin int,
) bool {
	end := startMinute + durationMin
	for _, w := range windows {
		if !w.Available || w.DayOfWeek != int(day) {
			continue
		}
		if startMinute >= w.StartMinute && end <= w.EndMinute {
			return true
		}
	}
	return false
}

// Reserve creates the consultation row under the per-slot lock. Losing the
// race surfaces as ErrSlotConflict, never as a generic failure.
func (g *SlotGuard) Reserve(
	ctx context.Context,
	repo *repository.ConsultationRepository,
	input repository.CreateConsultationInput,
) (*models.Consultation, error) {
	var created *models.Consultation

	key := slotKey(input.ProviderID, input.ScheduledDate, input.ScheduledTime)
	err := g.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		consultation, err := repo.Create(lockCtx, input)
		if err != nil {
			return err
		}
		created = consultation
		return nil
	})
	if err != nil {
		if isActiveSlotViolation(err) || errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	return created, nil
}

// Move relocates a consultation to a new slot and appends the reschedule
// history entry in the caller's transaction, so old-slot release and
// new-slot reservation commit as one atomic step.
func (g *SlotGuard) Move(
	ctx context.Context,
	repo *repository.ConsultationRepository,
	current *models.Consultation,
	newDate time.Time,
	newTime int,
	actorID int64,
) (*models.Consultation, error) {
	var moved *models.Consultation

	key := slotKey(current.ProviderID, newDate, newTime)
	err := g.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		updated, err := repo.MoveSlot(lockCtx, current.ID, current.Version, newDate, newTime)
		if err != nil {
			return err
		}
		if err := repo.AppendReschedule(lockCtx, models.RescheduleEntry{
			ConsultationID: current.ID,
			OldDate:        current.ScheduledDate,
			OldTime:        current.ScheduledTime,
			NewDate:        newDate,
			NewTime:        newTime,
			ActorID:        actorID,
		}); err != nil {
			return err
		}
		moved = updated
		return nil
	})
	if err != nil {
		if isActiveSlotViolation(err) || errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	return moved, nil
}

func slotKey(providerID int64, date time.Time, startMinute int) string {
	return fmt.Sprintf("%d:%s:%d", providerID, date.Format("2006-01-02"), startMinute)
}

func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotIndex
}
