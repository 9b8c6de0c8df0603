package services

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

func TestWindowCovers(t *testing.T) {
	windows := []models.ScheduleWindow{
		{DayOfWeek: 1, StartMinute: 540, EndMinute: 720, Available: true},  // Mon 09:00-12:00
		{DayOfWeek: 1, StartMinute: 780, EndMinute: 1020, Available: true}, // Mon 13:00-17:00
		{DayOfWeek: 2, StartMinute: 540, EndMinute: 720, Available: false}, // Tue closed
	}

	cases := []struct {
		name     string
		day      time.Weekday
		start    int
		duration int
		want     bool
	}{
		{"inside morning window", time.Monday, 540, 30, true},
		{"fills morning window exactly", time.Monday, 540, 180, true},
		{"spills past window end", time.Monday, 700, 30, false},
		{"straddles the midday gap", time.Monday, 700, 120, false},
		{"inside afternoon window", time.Monday, 900, 60, true},
		{"unavailable window ignored", time.Tuesday, 540, 30, false},
		{"day without windows", time.Wednesday, 540, 30, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := windowCovers(windows, tc.day, tc.start, tc.duration); got != tc.want {
				t.Fatalf("windowCovers(%v, %d, %d) = %v, want %v", tc.day, tc.start, tc.duration, got, tc.want)
			}
		})
	}
}

func TestSlotKeyIsStablePerProviderSlot(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	key := slotKey(7, date, 540)
	if key != "7:2026-09-15:540" {
		t.Fatalf("unexpected slot key %q", key)
	}
	if slotKey(7, date, 540) != key {
		t.Fatal("expected identical inputs to produce identical keys")
	}
	if slotKey(8, date, 540) == key {
		t.Fatal("expected provider to partition keys")
	}
}

func TestIsActiveSlotViolationMatchesOnlyTheSlotIndex(t *testing.T) {
	slotErr := &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex}
	if !isActiveSlotViolation(slotErr) {
		t.Fatal("expected slot index violation to match")
	}

	otherUnique := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	if isActiveSlotViolation(otherUnique) {
		t.Fatal("expected unrelated unique violation not to match")
	}

	otherCode := &pgconn.PgError{Code: "40001", ConstraintName: activeSlotIndex}
	if isActiveSlotViolation(otherCode) {
		t.Fatal("expected non-unique error not to match")
	}
}
