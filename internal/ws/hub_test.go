package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meja-pos/api/internal/auth"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	log := logrus.New()
	log.Out = io.Discard
	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, restaurantID string) *Client {
	return mockRoleClient(hub, restaurantID, "waiter")
}

func mockRoleClient(hub *Hub, restaurantID, role string) *Client {
	return &Client{
		hub:          hub,
		restaurantID: restaurantID,
		vis:          orderflow.VisibilityFor(orderflow.ParseRole(role)),
		send:         make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, "r1")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["r1"] == nil {
		t.Fatal("restaurant room not created")
	}
	if !hub.rooms["r1"][client] {
		t.Fatal("client not registered in restaurant room")
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := testHub(t)
	client1 := mockClient(hub, "r1")
	client2 := mockClient(hub, "r1")

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)
	if n := hub.ClientCount("r1"); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)
	if n := hub.ClientCount("r1"); n != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", n)
	}

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms["r1"] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
}

func TestPublishToSingleRestaurant(t *testing.T) {
	hub := testHub(t)
	client1 := mockClient(hub, "r1")
	client2 := mockClient(hub, "r2")

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.Publish("r1", "order.updated", map[string]string{"id": "o1", "status": "ready"})

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.updated" {
			t.Errorf("expected type 'order.updated', got '%s'", received.Type)
		}
		if string(received.Payload) != `{"id":"o1","status":"ready"}` {
			t.Errorf("unexpected payload %s", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different restaurant")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToMultipleClientsInSameRestaurant(t *testing.T) {
	hub := testHub(t)
	clients := []*Client{mockClient(hub, "r1"), mockClient(hub, "r1"), mockClient(hub, "r1")}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRestaurant("r1", Event{Type: "table_map.updated", Payload: json.RawMessage(`{"id":"m1"}`)})

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "table_map.updated" {
				t.Errorf("client%d: got type %q", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestPublishUnmarshalablePayloadIsDropped(t *testing.T) {
	hub := testHub(t)
	client := mockClient(hub, "r1")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Publish("r1", "order.updated", make(chan int))

	select {
	case <-client.send:
		t.Fatal("no message expected")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := testHub(t)
	slow := &Client{hub: hub, restaurantID: "r1", send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRestaurant("r1", Event{Type: "order.updated", Payload: json.RawMessage(`{}`)})
	time.Sleep(20 * time.Millisecond)

	if n := hub.ClientCount("r1"); n != 0 {
		t.Fatalf("slow client should be removed, %d left", n)
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("slow client channel should be closed")
	}
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	log := logrus.New()
	log.Out = io.Discard
	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, "r1")
	hub.register <- client
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("client channel should be closed on shutdown")
	}
}

func TestServeWSRejects(t *testing.T) {
	hub := testHub(t)
	secret := "ws-secret"
	chefR2, err := auth.GenerateToken(secret, auth.Staff{UserID: "u1", RestaurantID: "r2", Role: "chef"}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	cashierR1, err := auth.GenerateToken(secret, auth.Staff{UserID: "u2", RestaurantID: "r1", Role: "cashier"}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/ws/restaurants/{rid}", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, secret, w, r)
	})

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"missing token", "/ws/restaurants/r1", http.StatusUnauthorized},
		{"bad token", "/ws/restaurants/r1?token=nope", http.StatusUnauthorized},
		{"other restaurant", "/ws/restaurants/r1?token=" + chefR2, http.StatusForbidden},
		{"unknown role", "/ws/restaurants/r1?token=" + cashierR1, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestPublishOrderFiltersItemsPerRole(t *testing.T) {
	hub := testHub(t)
	chef := mockRoleClient(hub, "r1", "chef")
	barman := mockRoleClient(hub, "r1", "barman")
	waiter := mockRoleClient(hub, "r1", "waiter")
	for _, c := range []*Client{chef, barman, waiter} {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	o := &model.Order{
		ID:           "o1",
		RestaurantID: "r1",
		Status:       "pending",
		Items: []model.OrderItem{
			{ID: "i1", Name: "Steak", Category: "main_course", Quantity: 1, Price: decimal.NewFromInt(20), Status: "pending"},
			{ID: "i2", Name: "Mojito", Category: "drinks", Quantity: 1, Price: decimal.NewFromInt(8), Status: "pending"},
		},
	}
	hub.Publish("r1", "order.updated", o)

	tests := []struct {
		name      string
		client    *Client
		wantItems []string
		wantScope string
	}{
		{"chef", chef, []string{"Steak"}, "food"},
		{"barman", barman, []string{"Mojito"}, "drinks"},
		{"waiter", waiter, []string{"Steak", "Mojito"}, "both"},
	}
	for _, tt := range tests {
		select {
		case msg := <-tt.client.send:
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("%s: unmarshal event: %v", tt.name, err)
			}
			var got struct {
				ID    string `json:"id"`
				Items []struct {
					Name string `json:"name"`
				} `json:"items"`
				HiddenItems int    `json:"hiddenItems"`
				Scope       string `json:"scope"`
			}
			if err := json.Unmarshal(ev.Payload, &got); err != nil {
				t.Fatalf("%s: unmarshal payload: %v", tt.name, err)
			}
			var names []string
			for _, it := range got.Items {
				names = append(names, it.Name)
			}
			if len(names) != len(tt.wantItems) {
				t.Fatalf("%s: items %v, want %v", tt.name, names, tt.wantItems)
			}
			for i := range names {
				if names[i] != tt.wantItems[i] {
					t.Errorf("%s: items %v, want %v", tt.name, names, tt.wantItems)
				}
			}
			if got.ID != "o1" || got.Scope != tt.wantScope || got.HiddenItems != 2-len(tt.wantItems) {
				t.Errorf("%s: id=%s scope=%s hidden=%d", tt.name, got.ID, got.Scope, got.HiddenItems)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive the order", tt.name)
		}
	}

	if len(o.Items) != 2 {
		t.Error("publishing must not modify the caller's order")
	}
}
