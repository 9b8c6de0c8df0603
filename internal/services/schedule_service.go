package services

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
)

const minutesPerDay = 24 * 60

type ScheduleService struct {
	db           *pgxpool.Pool
	scheduleRepo *repository.ScheduleRepository
	userRepo     userReader
}

func NewScheduleService(
	db *pgxpool.Pool,
	scheduleRepo *repository.ScheduleRepository,
	userRepo userReader,
) *ScheduleService {
	return &ScheduleService{
		db:           db,
		scheduleRepo: scheduleRepo,
		userRepo:     userRepo,
	}
}

// Get returns a provider's weekly template and fee. Any authenticated user
// may read it; clients need it to pick a slot before booking.
func (s *ScheduleService) Get(ctx context.Context, providerID int64) (*models.ProviderSchedule, error) {
	if providerID <= 0 {
		return nil, ErrInvalidInput
	}

	provider, err := s.userRepo.GetByID(ctx, providerID)
	if err != nil {
		return nil, ErrProviderNotFound
	}
	if provider.Role != "provider" {
		return nil, ErrProviderNotFound
	}

	return s.scheduleRepo.GetSchedule(ctx, providerID)
}

// Update replaces the caller's weekly template and fee in one transaction.
// Replacing the template does not touch consultations already booked.
func (s *ScheduleService) Update(
	ctx context.Context,
	providerID int64,
	fee float64,
	windows []models.ScheduleWindow,
) (*models.ProviderSchedule, error) {
	if fee < 0 {
		return nil, ErrInvalidInput
	}
	if err := validateWindows(windows); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := repository.NewScheduleRepository(tx)
	if err := txRepo.ReplaceWindows(ctx, providerID, windows); err != nil {
		return nil, err
	}
	if err := txRepo.SetFee(ctx, providerID, fee); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.scheduleRepo.GetSchedule(ctx, providerID)
}

func validateWindows(windows []models.ScheduleWindow) error {
	byDay := make(map[int][]models.ScheduleWindow)
	for _, w := range windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return ErrInvalidInput
		}
		if w.StartMinute < 0 || w.EndMinute > minutesPerDay || w.StartMinute >= w.EndMinute {
			return ErrInvalidInput
		}
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
	}

	for _, day := range byDay {
		sort.Slice(day, func(i, j int) bool {
			return day[i].StartMinute < day[j].StartMinute
		})
		for i := 1; i < len(day); i++ {
			if day[i].StartMinute < day[i-1].EndMinute {
				return ErrInvalidInput
			}
		}
	}

	return nil
}
