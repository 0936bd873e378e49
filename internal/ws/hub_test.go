package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mockClient(hub *Hub, restaurantID uuid.UUID) *Client {
	return &Client{
		hub:          hub,
		restaurantID: restaurantID,
		send:         make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	restaurantID := uuid.New()
	client := mockClient(hub, restaurantID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[restaurantID] == nil {
		t.Fatal("restaurant room not created")
	}
	if !hub.rooms[restaurantID][client] {
		t.Fatal("client not registered in room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	restaurantID := uuid.New()
	client := mockClient(hub, restaurantID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[restaurantID] != nil {
		t.Fatal("room not cleaned up after last client left")
	}
}

func TestBroadcastIsScopedToRestaurant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	restaurantA := uuid.New()
	restaurantB := uuid.New()

	clientA := mockClient(hub, restaurantA)
	clientB := mockClient(hub, restaurantB)

	hub.register <- clientA
	hub.register <- clientB
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(restaurantA, EventOrderCreated, map[string]string{"order_id": "test-123"})

	select {
	case msg := <-clientA.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventOrderCreated {
			t.Errorf("expected type %s, got %s", EventOrderCreated, received.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("clientA did not receive the event")
	}

	select {
	case <-clientB.send:
		t.Fatal("clientB got an event for another restaurant")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesAllClientsInRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	restaurantID := uuid.New()
	clients := []*Client{
		mockClient(hub, restaurantID),
		mockClient(hub, restaurantID),
		mockClient(hub, restaurantID),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(restaurantID, EventTableUpdated, map[string]string{"table_id": "t-1"})

	for i, c := range clients {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client %d did not receive the event", i)
		}
	}
}
