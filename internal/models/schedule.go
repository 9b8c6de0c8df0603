package models

import "time"

// ScheduleWindow is one recurring weekly availability window for a provider.
// Times are minutes from midnight, DayOfWeek follows time.Weekday (0 = Sunday).
type ScheduleWindow struct {
	ID          int64     `json:"id"`
	ProviderID  int64     `json:"provider_id"`
	DayOfWeek   int       `json:"day_of_week"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProviderSchedule struct {
	ProviderID int64            `json:"provider_id"`
	Fee        float64          `json:"fee"`
	Windows    []ScheduleWindow `json:"windows"`
}
