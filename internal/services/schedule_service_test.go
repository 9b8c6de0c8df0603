package services

import (
	"errors"
	"testing"

	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

func TestValidateWindows(t *testing.T) {
	cases := []struct {
		name    string
		windows []models.ScheduleWindow
		wantErr bool
	}{
		{
			name: "non overlapping windows",
			windows: []models.ScheduleWindow{
				{DayOfWeek: 1, StartMinute: 540, EndMinute: 720},
				{DayOfWeek: 1, StartMinute: 780, EndMinute: 1020},
				{DayOfWeek: 2, StartMinute: 540, EndMinute: 1020},
			},
		},
		{
			name: "adjacent windows allowed",
			windows: []models.ScheduleWindow{
				{DayOfWeek: 1, StartMinute: 540, EndMinute: 720},
				{DayOfWeek: 1, StartMinute: 720, EndMinute: 900},
			},
		},
		{
			name:    "empty template allowed",
			windows: nil,
		},
		{
			name: "overlapping windows rejected",
			windows: []models.ScheduleWindow{
				{DayOfWeek: 1, StartMinute: 540, EndMinute: 720},
				{DayOfWeek: 1, StartMinute: 700, EndMinute: 900},
			},
			wantErr: true,
		},
		{
			name:    "day out of range",
			windows: []models.ScheduleWindow{{DayOfWeek: 7, StartMinute: 540, EndMinute: 720}},
			wantErr: true,
		},
		{
			name:    "inverted window",
			windows: []models.ScheduleWindow{{DayOfWeek: 1, StartMinute: 720, EndMinute: 540}},
			wantErr: true,
		},
		{
			name:    "end past midnight",
			windows: []models.ScheduleWindow{{DayOfWeek: 1, StartMinute: 1400, EndMinute: 1500}},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateWindows(tc.windows)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected valid template, got %v", err)
			}
		})
	}
}
