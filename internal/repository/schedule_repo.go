package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

type ScheduleRepository struct {
	db DBTX
}

func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) ListWindows(
	ctx context.Context,
	providerID int64,
) ([]models.ScheduleWindow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, day_of_week, start_minute, end_minute, available, created_at, updated_at
		FROM provider_schedules
		WHERE provider_id = $1
		ORDER BY day_of_week ASC, start_minute ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make([]models.ScheduleWindow, 0)
	for rows.Next() {
		var w models.ScheduleWindow
		if err := rows.Scan(
			&w.ID,
			&w.ProviderID,
			&w.DayOfWeek,
			&w.StartMinute,
			&w.EndMinute,
			&w.Available,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return windows, nil
}

// ReplaceWindows swaps a provider's full weekly template in one transaction
// owned by the caller.
func (r *ScheduleRepository) ReplaceWindows(
	ctx context.Context,
	providerID int64,
	windows []models.ScheduleWindow,
) error {
	if _, err := r.db.Exec(ctx, `
		DELETE FROM provider_schedules WHERE provider_id = $1
	`, providerID); err != nil {
		return err
	}

	for _, w := range windows {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO provider_schedules (provider_id, day_of_week, start_minute, end_minute, available)
			VALUES ($1, $2, $3, $4, $5)
		`, providerID, w.DayOfWeek, w.StartMinute, w.EndMinute, w.Available); err != nil {
			return err
		}
	}

	return nil
}

func (r *ScheduleRepository) GetFee(ctx context.Context, providerID int64) (float64, error) {
	var fee float64
	err := r.db.QueryRow(ctx, `
		SELECT fee FROM provider_fees WHERE provider_id = $1
	`, providerID).Scan(&fee)
	return fee, err
}

func (r *ScheduleRepository) SetFee(ctx context.Context, providerID int64, fee float64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO provider_fees (provider_id, fee)
		VALUES ($1, $2)
		ON CONFLICT (provider_id)
		DO UPDATE SET fee = EXCLUDED.fee, updated_at = NOW()
	`, providerID, fee)
	return err
}

func (r *ScheduleRepository) GetSchedule(
	ctx context.Context,
	providerID int64,
) (*models.ProviderSchedule, error) {
	windows, err := r.ListWindows(ctx, providerID)
	if err != nil {
		return nil, err
	}

	fee, err := r.GetFee(ctx, providerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return &models.ProviderSchedule{
		ProviderID: providerID,
		Fee:        fee,
		Windows:    windows,
	}, nil
}
