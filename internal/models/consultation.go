package models

import "time"

// Consultation statuses. Completed, cancelled and no_show are terminal.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// ActiveStatuses are the statuses that hold a slot. The partial unique
// index on (provider_id, scheduled_date, scheduled_time) covers exactly
// these rows.
var ActiveStatuses = []string{StatusPending, StatusConfirmed, StatusInProgress}

type Consultation struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"client_id"`
	ProviderID    int64      `json:"provider_id"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	ScheduledTime int        `json:"scheduled_time"` // minutes from midnight
	DurationMin   int        `json:"duration_minutes"`
	Kind          string     `json:"kind"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	Fee           float64    `json:"fee"`
	PaymentStatus string     `json:"payment_status"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	CancelledBy   *int64     `json:"cancelled_by,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	RatingScore   *int       `json:"rating_score,omitempty"`
	RatingText    *string    `json:"rating_text,omitempty"`
	RatedAt       *time.Time `json:"rated_at,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *Consultation) IsTerminal() bool {
	switch c.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Joinable reports whether channel participants may still interact.
// Historical message reads stay available after this turns false.
func (c *Consultation) Joinable() bool {
	switch c.Status {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (c *Consultation) IsParticipant(userID int64) bool {
	return c.ClientID == userID || c.ProviderID == userID
}

type RescheduleEntry struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	OldDate        time.Time `json:"old_date"`
	OldTime        int       `json:"old_time"`
	NewDate        time.Time `json:"new_date"`
	NewTime        int       `json:"new_time"`
	ActorID        int64     `json:"actor_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConsultationDetail struct {
	Consultation
	Reschedules []RescheduleEntry `json:"reschedules,omitempty"`
}
