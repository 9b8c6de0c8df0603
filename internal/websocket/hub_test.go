package chatws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
)

// slowFirstSendAPI assigns seqs in call order but stalls the first call
// after its append committed, so a second append can complete before the
// first caller returns.
type slowFirstSendAPI struct {
	mu    sync.Mutex
	seq   int64
	stall time.Duration
}

func (s *slowFirstSendAPI) Send(_ context.Context, senderID int64, _ string, consultationID int64, input services.SendInput) (*models.ChannelMessage, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if seq == 1 {
		time.Sleep(s.stall)
	}

	return &models.ChannelMessage{
		ID:             seq,
		ConsultationID: consultationID,
		Seq:            seq,
		SenderID:       senderID,
		Kind:           "text",
		Body:           input.Body,
		ReadBy:         []int64{},
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (s *slowFirstSendAPI) MarkRead(context.Context, int64, string, int64) (*models.ChannelMessage, error) {
	return nil, nil
}

func (s *slowFirstSendAPI) Delete(context.Context, int64, string, int64) (*models.ChannelMessage, error) {
	return nil, nil
}

func receiveFrame(t *testing.T, client *Client) Frame {
	t.Helper()
	select {
	case payload := <-client.send:
		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func expectNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected frame: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastStaysWithinTheRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	clientA := NewClient(hub, nil, 10, "client", 1)
	clientB := NewClient(hub, nil, 20, "provider", 1)
	outsider := NewClient(hub, nil, 30, "client", 2)

	hub.Register(clientA)
	hub.Register(clientB)
	hub.Register(outsider)

	// A sees B's join announcement.
	joined := receiveFrame(t, clientA)
	if joined.Type != "join" || joined.UserID != 20 {
		t.Fatalf("expected join frame for user 20, got %+v", joined)
	}

	hub.Broadcast(1, MessageFrame(&models.ChannelMessage{
		ID:             7,
		ConsultationID: 1,
		Seq:            1,
		SenderID:       10,
		Kind:           "text",
		Body:           "hello",
		ReadBy:         []int64{},
		CreatedAt:      time.Now().UTC(),
	}))

	for _, client := range []*Client{clientA, clientB} {
		frame := receiveFrame(t, client)
		if frame.Type != "message" || frame.Seq != 1 || frame.MessageID != 7 {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	}
	expectNoFrame(t, outsider)
}

func TestBroadcastsArriveInSeqOrder(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 10, "client", 1)
	hub.Register(client)

	for seq := int64(1); seq <= 5; seq++ {
		hub.Broadcast(1, MessageFrame(&models.ChannelMessage{
			ID:             seq,
			ConsultationID: 1,
			Seq:            seq,
			SenderID:       20,
			Kind:           "text",
			Body:           "x",
			ReadBy:         []int64{},
		}))
	}

	for want := int64(1); want <= 5; want++ {
		frame := receiveFrame(t, client)
		if frame.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, frame.Seq)
		}
	}
}

func TestConcurrentSendersDeliverInSeqOrder(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	observer := NewClient(hub, nil, 30, "provider", 1)
	hub.Register(observer)

	senderA := NewClient(hub, nil, 10, "client", 1)
	senderB := NewClient(hub, nil, 20, "client", 1)
	service := &slowFirstSendAPI{stall: 50 * time.Millisecond}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		senderA.publish(service, Frame{Kind: "text", Body: "first"})
	}()
	go func() {
		defer wg.Done()
		senderB.publish(service, Frame{Kind: "text", Body: "second"})
	}()
	wg.Wait()

	for want := int64(1); want <= 2; want++ {
		frame := receiveFrame(t, observer)
		if frame.Type != "message" || frame.Seq != want {
			t.Fatalf("expected message seq %d, got %+v", want, frame)
		}
	}
}

func TestErrorFramesAfterDropDoNotPanic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 10, "client", 1)
	hub.Register(client)

	// Saturate the send buffer so the next delivery drops the client.
	for i := 0; i < cap(client.send); i++ {
		client.send <- []byte(`{"type":"typing"}`)
	}

	client.writeError("first failure")
	client.writeError("second failure")
	time.Sleep(100 * time.Millisecond)

	// The hub closed the channel when dropping the client; draining must
	// end in a closed channel, not a panic.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel was never closed after drop")
		}
	}
}

func TestUnregisterAnnouncesLeave(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	clientA := NewClient(hub, nil, 10, "client", 1)
	clientB := NewClient(hub, nil, 20, "provider", 1)

	hub.Register(clientA)
	hub.Register(clientB)
	receiveFrame(t, clientA) // B's join

	hub.Unregister(clientB)

	frame := receiveFrame(t, clientA)
	if frame.Type != "leave" || frame.UserID != 20 {
		t.Fatalf("expected leave frame for user 20, got %+v", frame)
	}
}
