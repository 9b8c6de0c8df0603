package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
)

// Frame is the wire format for every live channel event. Message frames
// carry the server-assigned seq so subscribers can order them regardless of
// delivery timing.
type Frame struct {
	Type           string  `json:"type"`
	ConsultationID int64   `json:"consultation_id,omitempty"`
	MessageID      int64   `json:"message_id,omitempty"`
	Seq            int64   `json:"seq,omitempty"`
	SenderID       int64   `json:"sender_id,omitempty"`
	ReaderID       int64   `json:"reader_id,omitempty"`
	UserID         int64   `json:"user_id,omitempty"`
	Kind           string  `json:"kind,omitempty"`
	Body           string  `json:"body,omitempty"`
	FileRef        *string `json:"file_ref,omitempty"`
	ReadBy         []int64 `json:"read_by,omitempty"`
	Timestamp      string  `json:"timestamp,omitempty"`
}

// envelope pairs a frame with its target room. skip suppresses echo to one
// client (typing indicators); only narrows delivery to a single client
// (error frames), so every write to a send channel stays inside Run.
type envelope struct {
	consultationID int64
	frame          *Frame
	skip           *Client
	only           *Client
}

// Hub fans events out to one room per consultation. Rooms are independent:
// nothing synchronizes across consultations. A single Run goroutine owns all
// room state, including closing client send channels, and delivers
// broadcasts in FIFO order.
type Hub struct {
	rooms      map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	appendMu   sync.Map // consultation id -> *sync.Mutex
}

type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	userID         int64
	role           string
	consultationID int64
	send           chan []byte
}

type channelAPI interface {
	Send(ctx context.Context, senderID int64, role string, consultationID int64, input services.SendInput) (*models.ChannelMessage, error)
	MarkRead(ctx context.Context, readerID int64, role string, messageID int64) (*models.ChannelMessage, error)
	Delete(ctx context.Context, senderID int64, role string, messageID int64) (*models.ChannelMessage, error)
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64, role string, consultationID int64) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		userID:         userID,
		role:           role,
		consultationID: consultationID,
		send:           make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.consultationID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.consultationID] = room
			}
			room[client] = struct{}{}
			h.deliver(envelope{
				consultationID: client.consultationID,
				frame: &Frame{
					Type:           "join",
					ConsultationID: client.consultationID,
					UserID:         client.userID,
					Timestamp:      formatTimestamp(time.Now().UTC()),
				},
				skip: client,
			})
		case client := <-h.unregister:
			room, ok := h.rooms[client.consultationID]
			if !ok {
				continue
			}
			if _, exists := room[client]; exists {
				delete(room, client)
				close(client.send)
			}
			if len(room) == 0 {
				delete(h.rooms, client.consultationID)
				continue
			}
			h.deliver(envelope{
				consultationID: client.consultationID,
				frame: &Frame{
					Type:           "leave",
					ConsultationID: client.consultationID,
					UserID:         client.userID,
					Timestamp:      formatTimestamp(time.Now().UTC()),
				},
			})
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Broadcast(consultationID int64, frame *Frame) {
	h.broadcast <- envelope{consultationID: consultationID, frame: frame}
}

// appendLock serializes durable append plus broadcast enqueue per
// consultation, so in-room delivery order always matches seq order.
func (h *Hub) appendLock(consultationID int64) *sync.Mutex {
	lock, _ := h.appendMu.LoadOrStore(consultationID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (h *Hub) deliver(env envelope) {
	room, ok := h.rooms[env.consultationID]
	if !ok {
		return
	}

	encoded, err := json.Marshal(env.frame)
	if err != nil {
		log.Printf("channel hub encode frame: %v", err)
		return
	}

	if env.only != nil {
		if _, member := room[env.only]; member {
			h.send(room, env.only, encoded)
		}
	} else {
		for client := range room {
			if client == env.skip {
				continue
			}
			h.send(room, client, encoded)
		}
	}

	if len(room) == 0 {
		delete(h.rooms, env.consultationID)
	}
}

// send runs only on the Run goroutine, which also owns channel close, so a
// send can never race a close.
func (h *Hub) send(room map[*Client]struct{}, client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Slow consumer: drop the connection, never the log.
		delete(room, client)
		close(client.send)
	}
}

// ReadPump consumes frames from one connection until it closes. Message,
// read and delete frames go through the channel service (durable first),
// typing frames are relayed best-effort with no persistence.
func (c *Client) ReadPump(service channelAPI) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming Frame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError("invalid frame payload")
			continue
		}

		switch incoming.Type {
		case "message":
			c.publish(service, incoming)
		case "typing":
			c.hub.broadcast <- envelope{
				consultationID: c.consultationID,
				frame: &Frame{
					Type:           "typing",
					ConsultationID: c.consultationID,
					SenderID:       c.userID,
					Timestamp:      formatTimestamp(time.Now().UTC()),
				},
				skip: c,
			}
		case "read":
			message, err := service.MarkRead(context.Background(), c.userID, c.role, incoming.MessageID)
			if err != nil {
				c.writeError("failed to mark message read")
				continue
			}
			c.hub.broadcast <- envelope{
				consultationID: c.consultationID,
				frame: &Frame{
					Type:           "read",
					ConsultationID: message.ConsultationID,
					MessageID:      message.ID,
					Seq:            message.Seq,
					SenderID:       message.SenderID,
					ReaderID:       c.userID,
					ReadBy:         message.ReadBy,
					Timestamp:      formatTimestamp(time.Now().UTC()),
				},
			}
		case "delete":
			message, err := service.Delete(context.Background(), c.userID, c.role, incoming.MessageID)
			if err != nil {
				c.writeError("failed to delete message")
				continue
			}
			c.hub.broadcast <- envelope{
				consultationID: c.consultationID,
				frame: &Frame{
					Type:           "delete",
					ConsultationID: message.ConsultationID,
					MessageID:      message.ID,
					Seq:            message.Seq,
					SenderID:       message.SenderID,
					Timestamp:      formatTimestamp(time.Now().UTC()),
				},
			}
		default:
			c.writeError("unsupported frame type")
		}
	}
}

// publish appends to the durable log and enqueues the broadcast under the
// consultation's append lock. Two concurrent senders therefore enqueue in
// the same order the log assigned their seqs.
func (c *Client) publish(service channelAPI, incoming Frame) {
	lock := c.hub.appendLock(c.consultationID)
	lock.Lock()
	defer lock.Unlock()

	message, err := service.Send(context.Background(), c.userID, c.role, c.consultationID, services.SendInput{
		Kind:    incoming.Kind,
		Body:    incoming.Body,
		FileRef: incoming.FileRef,
	})
	if err != nil {
		c.writeError("failed to send message")
		return
	}

	c.hub.broadcast <- envelope{
		consultationID: c.consultationID,
		frame:          MessageFrame(message),
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// writeError routes through the hub so only the Run goroutine writes to the
// send channel. If the hub has already dropped this client the frame is
// discarded instead of hitting a closed channel.
func (c *Client) writeError(message string) {
	c.hub.broadcast <- envelope{
		consultationID: c.consultationID,
		frame: &Frame{
			Type:      "error",
			Body:      message,
			Timestamp: formatTimestamp(time.Now().UTC()),
		},
		only: c,
	}
}

// MessageFrame converts a persisted message into its live frame.
func MessageFrame(message *models.ChannelMessage) *Frame {
	return &Frame{
		Type:           "message",
		ConsultationID: message.ConsultationID,
		MessageID:      message.ID,
		Seq:            message.Seq,
		SenderID:       message.SenderID,
		Kind:           message.Kind,
		Body:           message.Body,
		FileRef:        message.FileRef,
		ReadBy:         message.ReadBy,
		Timestamp:      formatTimestamp(message.CreatedAt),
	}
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
