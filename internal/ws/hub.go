package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/sirupsen/logrus"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// orderPayload is an order as one client may see it.
type orderPayload struct {
	model.Order
	HiddenItems int             `json:"hiddenItems"`
	Scope       orderflow.Scope `json:"scope"`
}

// roomEvent routes an event to one restaurant's room. Either message is
// sent to every client, or order is rendered per client visibility.
type roomEvent struct {
	RestaurantID string
	Type         string
	message      []byte
	order        *model.Order
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by restaurant ID
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	log logrus.FieldLogger

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		log:        log.WithField("component", "ws_hub"),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, after
// closing every client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for rid, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, rid)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.restaurantID] == nil {
				h.rooms[client.restaurantID] = make(map[*Client]bool)
			}
			h.rooms[client.restaurantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			rendered := make(map[orderflow.Visibility][]byte)

			h.mu.Lock()
			for client := range h.rooms[event.RestaurantID] {
				message := event.message
				if event.order != nil {
					var ok bool
					if message, ok = rendered[client.vis]; !ok {
						message = h.renderOrder(event.Type, event.order, client.vis)
						rendered[client.vis] = message
					}
					if message == nil {
						continue
					}
				}
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.restaurantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.restaurantID)
	}
}

// renderOrder encodes o with only the items vis allows. A nil result means
// the event is skipped for that client.
func (h *Hub) renderOrder(eventType string, o *model.Order, vis orderflow.Visibility) []byte {
	items, hidden := orderflow.VisibleItems(vis, o.Items)
	view := orderPayload{Order: *o, HiddenItems: hidden, Scope: vis.Scope()}
	view.Items = items

	raw, err := json.Marshal(view)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("marshal ws order")
		return nil
	}
	message, err := json.Marshal(Event{Type: eventType, Payload: raw})
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("marshal ws event")
		return nil
	}
	return message
}

func (h *Hub) enqueue(event *roomEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.log.WithFields(logrus.Fields{
			"restaurant_id": event.RestaurantID,
			"type":          event.Type,
		}).Warn("ws broadcast queue full, event dropped")
	}
}

// BroadcastToRestaurant queues an event for every client of a restaurant.
// When the queue is full the event is dropped.
func (h *Hub) BroadcastToRestaurant(restaurantID string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("type", event.Type).Error("marshal ws event")
		return
	}
	h.enqueue(&roomEvent{RestaurantID: restaurantID, Type: event.Type, message: message})
}

// Publish broadcasts payload to a restaurant. Orders are filtered per
// client role so each socket only receives the items its role may see.
func (h *Hub) Publish(restaurantID, eventType string, payload any) {
	if o, ok := payload.(*model.Order); ok {
		h.enqueue(&roomEvent{RestaurantID: restaurantID, Type: eventType, order: o.Clone()})
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("marshal ws payload")
		return
	}
	h.BroadcastToRestaurant(restaurantID, Event{Type: eventType, Payload: raw})
}

// ClientCount returns the number of clients connected for a restaurant.
func (h *Hub) ClientCount(restaurantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[restaurantID])
}
