package models

import "time"

// Channel message payload kinds.
const (
	MessageKindText = "text"
	MessageKindFile = "file"
)

// ChannelMessage is one entry in a consultation's append-only message log.
// Seq is server-assigned and strictly increasing within one consultation;
// there is no ordering relation between different consultations' logs.
type ChannelMessage struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	Seq            int64     `json:"seq"`
	SenderID       int64     `json:"sender_id"`
	Kind           string    `json:"kind"`
	Body           string    `json:"body"`
	FileRef        *string   `json:"file_ref,omitempty"`
	ReadBy         []int64   `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *ChannelMessage) ReadByUser(userID int64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
